package paychan

import (
	"math/big"
	"sync"
	"time"

	"github.com/wolever/machinomy"
	"github.com/wolever/machinomy/crypto"
	"github.com/wolever/machinomy/errors"
	"github.com/wolever/machinomy/x/cash"
)

// DepositPolicy names who may grow the escrow of an open channel.
// Whether anyone but the original sender should be allowed to top up a
// channel is a deployment decision, so it is configuration instead of a
// hardcoded rule.
type DepositPolicy uint8

const (
	// DepositSenderOnly restricts deposits to the channel sender.
	DepositSenderOnly DepositPolicy = iota + 1
	// DepositAnyone allows any account to grow the escrow.
	DepositAnyone
)

// Config carries the registry identity and policies.
type Config struct {
	// ChainID and Address identify this registry inside the signed
	// voucher digest, so vouchers cannot be replayed across chains or
	// registry deployments.
	ChainID uint32
	Address machinomy.Address

	// Owner may finalize settlements on behalf of senders and close
	// settled channels.
	Owner machinomy.Address

	DepositPolicy DepositPolicy

	// Now provides ledger time. Deadlines are evaluated lazily against
	// it whenever an operation runs; nothing fires on its own.
	Now func() machinomy.UnixTime

	// Sink receives an event for every successful state transition.
	// Optional.
	Sink EventSink
}

// Registry owns the canonical channel records and drives all state
// transitions. Every mutating operation is serialized behind one lock
// and executed inside a store cache-wrap, so transitions are atomic:
// they either fully happen or leave no trace.
type Registry struct {
	mu     sync.RWMutex
	db     machinomy.CacheableKVStore
	bucket ChannelBucket
	cash   cash.Controller
	conf   Config
}

// NewRegistry returns a registry persisting into the given store and
// moving escrow funds through the given controller.
func NewRegistry(db machinomy.CacheableKVStore, ctrl cash.Controller, conf Config) (*Registry, error) {
	if err := conf.Address.Validate(); err != nil {
		return nil, errors.Wrap(err, "registry address")
	}
	if err := conf.Owner.Validate(); err != nil {
		return nil, errors.Wrap(err, "owner address")
	}
	if conf.DepositPolicy == 0 {
		conf.DepositPolicy = DepositSenderOnly
	}
	if conf.Now == nil {
		conf.Now = func() machinomy.UnixTime {
			return machinomy.AsUnixTime(time.Now())
		}
	}
	return &Registry{
		db:     db,
		bucket: NewChannelBucket(),
		cash:   ctrl,
		conf:   conf,
	}, nil
}

// CreateChannel escrows the deposit under a freshly allocated channel and
// returns its identifier. The channel expires at now+duration; once a
// settlement starts, the dispute window is settlementPeriod long.
func (r *Registry) CreateChannel(sender, receiver machinomy.Address, duration, settlementPeriod time.Duration, deposit *big.Int) (machinomy.HexBytes, error) {
	if err := sender.Validate(); err != nil {
		return nil, errors.Wrap(err, "sender")
	}
	if err := receiver.Validate(); err != nil {
		return nil, errors.Wrap(err, "receiver")
	}
	if deposit == nil || deposit.Sign() <= 0 {
		return nil, errors.ErrAmount.Newf("deposit: %v", deposit)
	}
	if settlementPeriod < 0 {
		return nil, errors.ErrInput.New("negative settlement period")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cache := r.db.CacheWrap()
	pc := &PaymentChannel{
		Sender:           sender,
		Receiver:         receiver,
		Value:            new(big.Int).Set(deposit),
		Payment:          big.NewInt(0),
		State:            Open,
		SettlementPeriod: int64(settlementPeriod / time.Second),
		Until:            r.conf.Now().Add(duration),
	}
	channelID, err := r.bucket.Create(cache, pc)
	if err != nil {
		cache.Discard()
		return nil, err
	}
	if err := r.cash.MoveCoins(cache, sender, channelAccount(channelID), deposit); err != nil {
		cache.Discard()
		return nil, err
	}
	if err := cache.Write(); err != nil {
		return nil, err
	}

	r.emit(DidCreateChannel{Sender: sender, Receiver: receiver, ChannelID: channelID})
	return channelID, nil
}

// Deposit grows the escrow of an open channel. Who may deposit is
// decided by the configured DepositPolicy.
func (r *Registry) Deposit(caller machinomy.Address, channelID machinomy.HexBytes, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return errors.ErrAmount.Newf("deposit: %v", amount)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cache := r.db.CacheWrap()
	defer cache.Discard()

	pc, err := r.bucket.Get(cache, channelID)
	if err != nil {
		return err
	}
	if pc.State != Open {
		return errors.ErrState.Newf("cannot deposit into %s channel", pc.State)
	}
	if r.conf.DepositPolicy == DepositSenderOnly && !caller.Equals(pc.Sender) {
		return errors.ErrUnauthorized.New("only the sender can deposit")
	}

	pc.Value = new(big.Int).Add(pc.Value, amount)
	if err := r.bucket.Save(cache, pc); err != nil {
		return err
	}
	if err := r.cash.MoveCoins(cache, caller, channelAccount(channelID), amount); err != nil {
		return err
	}
	if err := cache.Write(); err != nil {
		return err
	}

	r.emit(DidDeposit{ChannelID: channelID, Value: pc.Value})
	return nil
}

// Claim lets the receiver redeem a signed authorization for the given
// cumulative payment, settling the channel immediately and skipping any
// running dispute window.
//
// An invalid claim is a silent no-op: it reports false and no error, and
// leaves the channel untouched. The error return is reserved for storage
// and transfer faults, which abort the whole operation.
func (r *Registry) Claim(caller machinomy.Address, channelID machinomy.HexBytes, payment *big.Int, nonce uint32, sig *crypto.Signature) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cache := r.db.CacheWrap()
	defer cache.Discard()

	pc, err := r.bucket.Get(cache, channelID)
	if err != nil {
		if errors.ErrNotFound.Is(err) {
			return false, nil
		}
		return false, err
	}
	if pc.State != Open && pc.State != Settling {
		return false, nil
	}
	if !caller.Equals(pc.Receiver) {
		return false, nil
	}
	if payment == nil || payment.Sign() < 0 {
		return false, nil
	}

	digest, err := VoucherDigest(r.conf.ChainID, r.conf.Address, channelID, nonce, payment)
	if err != nil {
		// Unpackable claim data is just another invalid claim.
		return false, nil
	}
	if !crypto.Verify(pc.Sender, digest, sig) {
		return false, nil
	}

	refund, err := r.settle(cache, pc, payment)
	if err != nil {
		return false, err
	}
	if err := cache.Write(); err != nil {
		return false, err
	}

	r.emit(DidSettle{ChannelID: channelID, Payment: pc.Payment, OddValue: refund})
	return true, nil
}

// StartSettle begins a sender initiated settlement with the proposed
// payment. The receiver keeps the whole settlement period to claim with
// a signed voucher before the sender can finalize.
func (r *Registry) StartSettle(caller machinomy.Address, channelID machinomy.HexBytes, payment *big.Int) error {
	if payment == nil || payment.Sign() < 0 {
		return errors.ErrAmount.Newf("payment: %v", payment)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cache := r.db.CacheWrap()
	defer cache.Discard()

	pc, err := r.bucket.Get(cache, channelID)
	if err != nil {
		return err
	}
	if pc.State != Open {
		return errors.ErrState.Newf("cannot settle %s channel", pc.State)
	}
	if !caller.Equals(pc.Sender) {
		return errors.ErrUnauthorized.New("only the sender can start settling")
	}
	if payment.Cmp(pc.Value) > 0 {
		return errors.ErrAmount.New("payment exceeds escrow")
	}

	pc.State = Settling
	pc.Payment = new(big.Int).Set(payment)
	pc.Until = r.conf.Now().Add(time.Duration(pc.SettlementPeriod) * time.Second)
	if err := r.bucket.Save(cache, pc); err != nil {
		return err
	}
	if err := cache.Write(); err != nil {
		return err
	}

	r.emit(DidStartSettle{ChannelID: channelID, Payment: pc.Payment})
	return nil
}

// FinishSettle finalizes a settling channel with the payment recorded by
// StartSettle. It becomes available only once the settlement period has
// elapsed without a receiver claim.
func (r *Registry) FinishSettle(caller machinomy.Address, channelID machinomy.HexBytes) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cache := r.db.CacheWrap()
	defer cache.Discard()

	pc, err := r.bucket.Get(cache, channelID)
	if err != nil {
		return err
	}
	if pc.State != Settling {
		return errors.ErrState.Newf("cannot finish settling %s channel", pc.State)
	}
	if !caller.Equals(pc.Sender) && !caller.Equals(r.conf.Owner) {
		return errors.ErrUnauthorized.New("only the sender or owner can finish settling")
	}
	if now := r.conf.Now(); now < pc.Until {
		return errors.ErrState.Newf("settlement period running until %s", pc.Until)
	}

	refund, err := r.settle(cache, pc, pc.Payment)
	if err != nil {
		return err
	}
	if err := cache.Write(); err != nil {
		return err
	}

	r.emit(DidSettle{ChannelID: channelID, Payment: pc.Payment, OddValue: refund})
	return nil
}

// Close sweeps any remaining escrow back to the sender and erases the
// record of a settled channel. On a channel that is not settled yet it
// is a no-op.
func (r *Registry) Close(caller machinomy.Address, channelID machinomy.HexBytes) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cache := r.db.CacheWrap()
	defer cache.Discard()

	pc, err := r.bucket.Get(cache, channelID)
	if err != nil {
		return err
	}
	if !caller.Equals(pc.Sender) && !caller.Equals(pc.Receiver) && !caller.Equals(r.conf.Owner) {
		return errors.ErrUnauthorized.New("not a channel party")
	}
	if pc.State != Settled {
		return nil
	}

	// Settlement disburses the whole escrow, but sweep whatever an
	// interrupted payout may have left on the account.
	escrow := channelAccount(channelID)
	leftover, err := r.cash.Balance(cache, escrow)
	if err != nil {
		return err
	}
	if leftover.Sign() > 0 {
		if err := r.cash.MoveCoins(cache, escrow, pc.Sender, leftover); err != nil {
			return err
		}
	}
	if err := r.bucket.Delete(cache, channelID); err != nil {
		return err
	}
	return cache.Write()
}

// settle performs the irreversible payout split and returns the amount
// refunded to the sender. Both transfers and the state flip happen in
// the caller's cache-wrap: any failure aborts the whole settlement.
func (r *Registry) settle(db machinomy.KVStore, pc *PaymentChannel, payment *big.Int) (*big.Int, error) {
	toReceiver, refund := SplitPayout(pc.Value, payment)

	escrow := channelAccount(pc.ChannelID)
	if toReceiver.Sign() > 0 {
		if err := r.cash.MoveCoins(db, escrow, pc.Receiver, toReceiver); err != nil {
			return nil, err
		}
	}
	if refund.Sign() > 0 {
		if err := r.cash.MoveCoins(db, escrow, pc.Sender, refund); err != nil {
			return nil, err
		}
	}

	pc.State = Settled
	pc.Payment = toReceiver
	pc.Value = big.NewInt(0)
	if err := r.bucket.Save(db, pc); err != nil {
		return nil, err
	}
	return refund, nil
}

func (r *Registry) emit(e Event) {
	if r.conf.Sink != nil {
		r.conf.Sink.Emit(e)
	}
}

// GetState returns the lifecycle state of the channel.
func (r *Registry) GetState(channelID machinomy.HexBytes) (State, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	pc, err := r.bucket.Get(r.db, channelID)
	if err != nil {
		return 0, err
	}
	return pc.State, nil
}

// GetUntil returns the channel deadline: its own expiry while open, the
// end of the dispute window while settling.
func (r *Registry) GetUntil(channelID machinomy.HexBytes) (machinomy.UnixTime, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	pc, err := r.bucket.Get(r.db, channelID)
	if err != nil {
		return 0, err
	}
	return pc.Until, nil
}

// GetPayment returns the claimed or proposed payment amount.
func (r *Registry) GetPayment(channelID machinomy.HexBytes) (*big.Int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	pc, err := r.bucket.Get(r.db, channelID)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(pc.Payment), nil
}

// IsOpenChannel returns true if the channel exists and is open.
func (r *Registry) IsOpenChannel(channelID machinomy.HexBytes) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	pc, err := r.bucket.Get(r.db, channelID)
	if err != nil {
		if errors.ErrNotFound.Is(err) {
			return false, nil
		}
		return false, err
	}
	return pc.State == Open, nil
}
