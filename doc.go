/*
Package machinomy declares the interfaces and value types shared by all
packages of the unidirectional payment channel implementation.

A payer escrows funds under a channel and authorizes incremental payments
by signing vouchers off-chain. The payee can redeem the most recent voucher
at any time, or the payer can settle unilaterally after a dispute window.

This root package holds no protocol logic. It defines the key-value store
contracts that the channel registry persists into, the Address identity
type and the UnixTime ledger clock. The protocol itself lives in
x/paychan, with supporting pieces under abi, crypto, store and x/cash.
*/
package machinomy
