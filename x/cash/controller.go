/*
Package cash keeps the account balances that payment channels escrow
into and pay out from.

Every account is identified by an address. Parties own their wallet
directly; each channel owns a derived escrow account that only the
registry moves funds out of.
*/
package cash

import (
	"math/big"

	"github.com/wolever/machinomy"
	"github.com/wolever/machinomy/errors"
)

// Controller is the functionality the payment channel registry needs
// from the funds ledger.
type Controller interface {
	// MoveCoins transfers the amount between two accounts, or fails
	// without any change when the source has insufficient funds.
	MoveCoins(db machinomy.KVStore, src, dst machinomy.Address, amount *big.Int) error

	// Balance returns the spendable amount of the account. Missing
	// accounts report a zero balance.
	Balance(db machinomy.ReadOnlyKVStore, addr machinomy.Address) (*big.Int, error)
}

// BankController maintains the wallet bucket and implements all balance
// mutations.
type BankController struct {
	bucket Bucket
}

var _ Controller = (*BankController)(nil)

// NewController returns a controller operating on given wallet bucket.
func NewController(bucket Bucket) *BankController {
	return &BankController{bucket: bucket}
}

// Balance implements Controller.
func (c *BankController) Balance(db machinomy.ReadOnlyKVStore, addr machinomy.Address) (*big.Int, error) {
	w, err := c.bucket.Get(db, addr)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(w.Balance), nil
}

// MoveCoins implements Controller. The transfer is all or nothing: a
// failure on either account leaves both untouched, provided the store is
// a cache-wrap that the caller discards on error.
func (c *BankController) MoveCoins(db machinomy.KVStore, src, dst machinomy.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return errors.ErrAmount.Newf("transfer amount: %v", amount)
	}

	srcWallet, err := c.bucket.Get(db, src)
	if err != nil {
		return err
	}
	if srcWallet == nil || srcWallet.Balance.Cmp(amount) < 0 {
		return errors.ErrInsufficientAmount.New("funds")
	}

	dstWallet, err := c.bucket.Get(db, dst)
	if err != nil {
		return err
	}
	if dstWallet == nil {
		dstWallet = &Wallet{Balance: big.NewInt(0)}
	}

	srcWallet.Balance = new(big.Int).Sub(srcWallet.Balance, amount)
	dstWallet.Balance = new(big.Int).Add(dstWallet.Balance, amount)

	if err := c.bucket.Save(db, src, srcWallet); err != nil {
		return err
	}
	return c.bucket.Save(db, dst, dstWallet)
}

// IssueCoins mints new funds on given account. This is how genesis and
// test fixtures fund the payer before any channel exists.
func (c *BankController) IssueCoins(db machinomy.KVStore, dst machinomy.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return errors.ErrAmount.Newf("issue amount: %v", amount)
	}
	w, err := c.bucket.Get(db, dst)
	if err != nil {
		return err
	}
	if w == nil {
		w = &Wallet{Balance: big.NewInt(0)}
	}
	w.Balance = new(big.Int).Add(w.Balance, amount)
	return c.bucket.Save(db, dst, w)
}
