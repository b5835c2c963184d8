package cash

import (
	"encoding/json"
	"math/big"

	"github.com/wolever/machinomy"
	"github.com/wolever/machinomy/errors"
)

// Wallet holds the spendable balance of a single account. Channel escrow
// accounts are wallets as well, owned by a derived address instead of a
// party.
type Wallet struct {
	Balance *big.Int `json:"balance"`
}

// Validate ensures the wallet is valid.
func (w *Wallet) Validate() error {
	if w.Balance == nil {
		return errors.ErrModel.New("missing balance")
	}
	if w.Balance.Sign() < 0 {
		return errors.ErrModel.New("negative balance")
	}
	return nil
}

// Bucket is a wrapper over the raw store that ensures only Wallet
// entities are persisted under the wallet namespace.
type Bucket struct {
	prefix []byte
}

// NewBucket returns a bucket for storing wallet state.
func NewBucket() Bucket {
	return Bucket{prefix: []byte("cash:")}
}

func (b Bucket) dbKey(addr machinomy.Address) []byte {
	return append(append([]byte{}, b.prefix...), addr...)
}

// Get loads the wallet of given account, or nil if there is none.
func (b Bucket) Get(db machinomy.ReadOnlyKVStore, addr machinomy.Address) (*Wallet, error) {
	raw, err := db.Get(b.dbKey(addr))
	if err != nil {
		return nil, errors.Wrap(err, "load wallet")
	}
	if raw == nil {
		return nil, nil
	}
	var w Wallet
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, errors.Wrap(errors.ErrModel, err.Error())
	}
	return &w, nil
}

// Save persists the state of given wallet entity.
func (b Bucket) Save(db machinomy.KVStore, addr machinomy.Address, w *Wallet) error {
	if err := w.Validate(); err != nil {
		return err
	}
	// Empty wallets are removed instead of persisted, so that closed
	// escrow accounts leave no record behind.
	if w.Balance.Sign() == 0 {
		return db.Delete(b.dbKey(addr))
	}
	raw, err := json.Marshal(w)
	if err != nil {
		return errors.Wrap(err, "serialize wallet")
	}
	return db.Set(b.dbKey(addr), raw)
}
