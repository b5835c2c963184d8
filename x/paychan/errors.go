package paychan

import "github.com/wolever/machinomy/errors"

// paychan takes error codes 1021-1029
var (
	// ErrInvalidSignature is returned when a voucher or claim signature
	// does not recover to the channel sender.
	ErrInvalidSignature = errors.Register(1021, "invalid signature")

	// ErrStaleVoucher is returned when a voucher was issued against an
	// escrow size that no longer matches the channel.
	ErrStaleVoucher = errors.Register(1022, "stale voucher")

	// ErrOutdatedVoucher is returned when a voucher does not advance the
	// cumulative value or reuses a nonce, so accepting it could replay
	// or roll back an earlier payment.
	ErrOutdatedVoucher = errors.Register(1023, "outdated voucher")
)
