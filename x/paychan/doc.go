/*
Package paychan implements unidirectional payment channel functionality.

A payment channel allows to deposit an amount that can be later
transferred in chunks without touching the registry for every payment.
The sender authorizes each chunk by signing a voucher that carries the
cumulative amount spent so far. The receiver can redeem the most recent
voucher at any time by claiming it on the registry, which settles the
channel instantly.

If the receiver never claims, the sender starts a settlement with the
amount it believes is owed. The receiver then has the settlement period
to claim with a signed voucher. Once the period elapsed without a claim,
the sender finalizes unilaterally. Settlement splits the escrow between
both parties and is irreversible; closing a settled channel returns any
leftover to the sender and erases the record.
*/
package paychan
