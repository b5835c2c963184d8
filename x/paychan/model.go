package paychan

import (
	"encoding/binary"
	"encoding/json"
	"math/big"

	"github.com/wolever/machinomy"
	"github.com/wolever/machinomy/crypto"
	"github.com/wolever/machinomy/errors"
)

// ChannelIDSize is the width of a channel identifier. Identifiers are
// opaque digests, not sequence numbers, so they cannot be predicted or
// collide across registries.
const ChannelIDSize = 32

// State describes where a channel is in its lifecycle. Transitions only
// ever move forward: Open to Settling to Settled, or Open straight to
// Settled on a direct claim.
type State uint8

const (
	Open State = iota + 1
	Settling
	Settled
)

func (s State) String() string {
	switch s {
	case Open:
		return "open"
	case Settling:
		return "settling"
	case Settled:
		return "settled"
	default:
		return "invalid"
	}
}

// PaymentChannel is the canonical escrow record the registry owns.
type PaymentChannel struct {
	ChannelID machinomy.HexBytes `json:"channelId"`
	Sender    machinomy.Address  `json:"sender"`
	Receiver  machinomy.Address  `json:"receiver"`

	// Value is the total escrowed amount. Grows with deposits while the
	// channel is open, zeroed by settlement.
	Value *big.Int `json:"value"`

	// Payment is the amount claimed or proposed for settlement. Zero
	// until StartSettle or Claim set it.
	Payment *big.Int `json:"payment"`

	State State `json:"state"`

	// SettlementPeriod is the dispute window length in seconds.
	SettlementPeriod int64 `json:"settlementPeriod"`

	// Until is an absolute deadline. While Open it is the channel's own
	// expiry; in Settling it is the end of the dispute window.
	Until machinomy.UnixTime `json:"until"`
}

// Validate ensures the payment channel is valid.
func (pc *PaymentChannel) Validate() error {
	if len(pc.ChannelID) != ChannelIDSize {
		return errors.ErrModel.New("invalid channel ID")
	}
	if err := pc.Sender.Validate(); err != nil {
		return errors.ErrModel.New("missing sender")
	}
	if err := pc.Receiver.Validate(); err != nil {
		return errors.ErrModel.New("missing receiver")
	}
	if pc.Value == nil || pc.Value.Sign() < 0 {
		return errors.ErrModel.New("negative value")
	}
	if pc.Payment == nil || pc.Payment.Sign() < 0 {
		return errors.ErrModel.New("negative payment")
	}
	// Payment must never exceed the escrow, except after settlement
	// zeroed the escrow while keeping the paid amount for the record.
	if pc.State != Settled && pc.Payment.Cmp(pc.Value) > 0 {
		return errors.ErrModel.New("payment exceeds value")
	}
	if pc.SettlementPeriod < 0 {
		return errors.ErrModel.New("negative settlement period")
	}
	switch pc.State {
	case Open, Settling, Settled:
	default:
		return errors.ErrModel.Newf("invalid state %d", pc.State)
	}
	return nil
}

// sequence maintains a persisted counter generating a series of values,
// each greater than the last.
type sequence struct {
	id []byte
}

func newSequence(bucket, name string) sequence {
	return sequence{id: []byte("_s." + bucket + ":" + name)}
}

// nextVal increments the sequence and returns its state as 8 bytes.
func (s sequence) nextVal(db machinomy.KVStore) ([]byte, error) {
	raw, err := db.Get(s.id)
	if err != nil {
		return nil, err
	}
	var val uint64
	if raw != nil {
		val = binary.BigEndian.Uint64(raw)
	}
	val++
	raw = make([]byte, 8)
	binary.BigEndian.PutUint64(raw, val)
	return raw, db.Set(s.id, raw)
}

// ChannelBucket is a wrapper over the raw store that ensures only
// PaymentChannel entities are persisted under the channel namespace.
type ChannelBucket struct {
	prefix []byte
	idSeq  sequence
}

// NewChannelBucket returns a bucket for storing PaymentChannel state.
func NewChannelBucket() ChannelBucket {
	return ChannelBucket{
		prefix: []byte("paychan:"),
		idSeq:  newSequence("paychan", "id"),
	}
}

func (b ChannelBucket) dbKey(channelID []byte) []byte {
	return append(append([]byte{}, b.prefix...), channelID...)
}

// Create persists a new channel entity, allocating a fresh identifier
// for it. The identifier is the keccak digest of a monotone counter, so
// it is unique and opaque at the same time.
func (b ChannelBucket) Create(db machinomy.KVStore, pc *PaymentChannel) (machinomy.HexBytes, error) {
	seq, err := b.idSeq.nextVal(db)
	if err != nil {
		return nil, errors.Wrap(err, "id sequence")
	}
	pc.ChannelID = crypto.Keccak256(seq)
	if err := b.Save(db, pc); err != nil {
		return nil, err
	}
	return pc.ChannelID, nil
}

// Save updates the state of given PaymentChannel entity in the store.
func (b ChannelBucket) Save(db machinomy.KVStore, pc *PaymentChannel) error {
	if err := pc.Validate(); err != nil {
		return err
	}
	raw, err := json.Marshal(pc)
	if err != nil {
		return errors.Wrap(err, "serialize channel")
	}
	return db.Set(b.dbKey(pc.ChannelID), raw)
}

// Get returns the payment channel with given ID or ErrNotFound.
func (b ChannelBucket) Get(db machinomy.ReadOnlyKVStore, channelID []byte) (*PaymentChannel, error) {
	raw, err := db.Get(b.dbKey(channelID))
	if err != nil {
		return nil, errors.Wrap(err, "load channel")
	}
	if raw == nil {
		return nil, errors.ErrNotFound.New("payment channel not found")
	}
	var pc PaymentChannel
	if err := json.Unmarshal(raw, &pc); err != nil {
		return nil, errors.Wrap(errors.ErrModel, err.Error())
	}
	return &pc, nil
}

// Delete removes the channel record.
func (b ChannelBucket) Delete(db machinomy.KVStore, channelID []byte) error {
	return db.Delete(b.dbKey(channelID))
}

// channelAccount returns the escrow account address for a channel with
// given ID.
//
// Each channel deposits funds from the sender to ensure they are
// available to the receiver upon claim. Each channel has a unique
// account address that is derived from its ID.
func channelAccount(channelID []byte) machinomy.Address {
	return machinomy.NewAddress(append([]byte("paychan/escrow/"), channelID...))
}
