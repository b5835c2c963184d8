package paychan

import "math/big"

// SplitPayout computes how a finalized channel's escrow is divided. It
// is the only place a payout amount is ever decided.
//
// The receiver gets the claimed payment, capped at the escrowed value.
// Whatever the cap left over is refunded to the sender; an over-claim
// refunds nothing. The two results always sum up to the escrow exactly.
func SplitPayout(escrow, claimed *big.Int) (toReceiver, refund *big.Int) {
	if escrow == nil {
		escrow = big.NewInt(0)
	}
	if claimed == nil {
		claimed = big.NewInt(0)
	}
	if claimed.Cmp(escrow) > 0 {
		return new(big.Int).Set(escrow), big.NewInt(0)
	}
	toReceiver = new(big.Int).Set(claimed)
	refund = new(big.Int).Sub(escrow, claimed)
	return toReceiver, refund
}
