package paychan

import (
	"bytes"
	crand "crypto/rand"
	"encoding/binary"
	"math/big"
	"sync"
	"time"

	"github.com/wolever/machinomy"
	"github.com/wolever/machinomy/abi"
	"github.com/wolever/machinomy/crypto"
	"github.com/wolever/machinomy/errors"
)

// voucherSchema is the canonical byte layout hashed before signing. The
// field order and widths are a wire contract shared with the registry;
// changing anything here invalidates every voucher already issued.
var voucherSchema = abi.Schema{
	{Name: "chainId", Kind: abi.Uint, Bits: 32},
	{Name: "registry", Kind: abi.Bytes, Bits: 160},
	{Name: "channelId", Kind: abi.Bytes, Bits: 256},
	{Name: "nonce", Kind: abi.Uint, Bits: 32},
	{Name: "value", Kind: abi.Uint, Bits: 256},
}

// VoucherDigest computes the digest a voucher with the given fields must
// be signed over.
func VoucherDigest(chainID uint32, registry machinomy.Address, channelID []byte, nonce uint32, value *big.Int) ([]byte, error) {
	raw, err := voucherSchema.Pack(chainID, []byte(registry), channelID, nonce, value)
	if err != nil {
		return nil, errors.Wrap(err, "pack voucher")
	}
	return crypto.Keccak256(raw), nil
}

// PaymentVoucher is the off-chain, sender-signed authorization for the
// receiver to withdraw up to Value in total from the channel. It is
// never persisted by the registry and can always be rebuilt from its
// fields. The JSON form is the wire format exchanged between parties.
type PaymentVoucher struct {
	ChannelID machinomy.HexBytes `json:"channelId"`
	Sender    machinomy.Address  `json:"sender"`
	Receiver  machinomy.Address  `json:"receiver"`

	// Price is the increment this voucher adds on top of the previous
	// one. Value is the cumulative total authorized so far.
	Price *big.Int `json:"price"`
	Value *big.Int `json:"value"`

	// ChannelValue snapshots the escrow size at signing time so the
	// receiver can detect vouchers issued against outdated state.
	ChannelValue *big.Int `json:"channelValue"`

	Nonce uint32 `json:"nonce"`

	crypto.Signature
}

// Validate performs the structural checks that do not need any channel
// state.
func (v *PaymentVoucher) Validate() error {
	if len(v.ChannelID) != ChannelIDSize {
		return errors.ErrInput.New("invalid channel ID")
	}
	if err := v.Sender.Validate(); err != nil {
		return errors.ErrInput.New("missing sender")
	}
	if err := v.Receiver.Validate(); err != nil {
		return errors.ErrInput.New("missing receiver")
	}
	if v.Price == nil || v.Price.Sign() < 0 {
		return errors.ErrAmount.New("negative price")
	}
	if v.Value == nil || v.Value.Sign() < 0 {
		return errors.ErrAmount.New("negative value")
	}
	if v.ChannelValue == nil || v.ChannelValue.Sign() < 0 {
		return errors.ErrAmount.New("negative channel value")
	}
	return v.Signature.Validate()
}

// Digest returns the canonical digest this voucher signs.
func (v *PaymentVoucher) Digest(chainID uint32, registry machinomy.Address) ([]byte, error) {
	return VoucherDigest(chainID, registry, v.ChannelID, v.Nonce, v.Value)
}

// ChannelView is a party's off-chain bookkeeping of one channel: how much
// was cumulatively authorized and which nonce was used last. The sender
// advances it when issuing, the receiver when accepting.
type ChannelView struct {
	ChannelID machinomy.HexBytes
	Sender    machinomy.Address
	Receiver  machinomy.Address

	// Value is the escrow size as last observed on the registry.
	Value *big.Int
	// Spent is the cumulative amount covered by vouchers so far.
	Spent *big.Int

	LastNonce uint32
}

// Apply records an accepted voucher, advancing the cumulative spend and
// the nonce watermark.
func (c *ChannelView) Apply(v *PaymentVoucher) {
	c.Spent = new(big.Int).Set(v.Value)
	c.LastNonce = v.Nonce
}

// ValidVoucher decides whether the receiver should accept a voucher
// against its current view of the channel. It returns nil only if every
// rule holds; each violated rule reports its own error kind. Cheap field
// checks run before the signature recovery.
func ValidVoucher(v *PaymentVoucher, view *ChannelView, chainID uint32, registry machinomy.Address) error {
	if err := v.Validate(); err != nil {
		return err
	}
	if !bytes.Equal(v.ChannelID, view.ChannelID) {
		return errors.ErrMsg.New("channel mismatch")
	}
	if !v.Sender.Equals(view.Sender) {
		return errors.ErrMsg.New("sender mismatch")
	}
	// The voucher must be issued against the current escrow or a larger
	// one; a smaller snapshot means the sender signed against outdated
	// state.
	if view.Value.Cmp(v.ChannelValue) > 0 {
		return ErrStaleVoucher.Newf("channel value %s, voucher snapshot %s", view.Value, v.ChannelValue)
	}
	if v.Value.Cmp(v.ChannelValue) > 0 {
		return errors.ErrInsufficientAmount.New("cumulative value exceeds escrow")
	}
	if new(big.Int).Add(view.Spent, v.Price).Cmp(view.Value) > 0 {
		return errors.ErrInsufficientAmount.New("spend exceeds escrow")
	}
	// Cumulative value must never decrease and the nonce must strictly
	// advance. A reissued voucher keeps the value and bumps the nonce;
	// anything below the watermark could roll back an accepted payment.
	if v.Value.Cmp(view.Spent) < 0 {
		return ErrOutdatedVoucher.Newf("cumulative value %s below accepted %s", v.Value, view.Spent)
	}
	if v.Nonce <= view.LastNonce {
		return ErrOutdatedVoucher.Newf("nonce %d not after %d", v.Nonce, view.LastNonce)
	}

	digest, err := v.Digest(chainID, registry)
	if err != nil {
		return err
	}
	if !crypto.Verify(view.Sender, digest, &v.Signature) {
		return ErrInvalidSignature.New("voucher")
	}
	return nil
}

// VoucherSigner issues signed vouchers for a single channel on behalf of
// the sender. All issuance goes through one mutex so nonces are strictly
// increasing even with concurrent callers.
type VoucherSigner struct {
	mu       sync.Mutex
	key      *crypto.PrivateKey
	chainID  uint32
	registry machinomy.Address
	view     *ChannelView
	now      func() time.Time
}

// NewVoucherSigner returns a signer bound to the given channel view. The
// view must describe a channel whose sender matches the key.
func NewVoucherSigner(key *crypto.PrivateKey, chainID uint32, registry machinomy.Address, view *ChannelView) *VoucherSigner {
	return &VoucherSigner{
		key:      key,
		chainID:  chainID,
		registry: registry,
		view:     view,
		now:      time.Now,
	}
}

// Issue builds, signs and records a voucher adding price on top of the
// amount spent so far. The local view advances only after signing
// succeeded.
func (s *VoucherSigner) Issue(price *big.Int) (*PaymentVoucher, error) {
	if price == nil || price.Sign() < 0 {
		return nil, errors.ErrAmount.Newf("price: %v", price)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	value := new(big.Int).Add(s.view.Spent, price)
	if value.Cmp(s.view.Value) > 0 {
		return nil, errors.ErrInsufficientAmount.Newf("spend %s exceeds escrow %s", value, s.view.Value)
	}
	return s.issue(price, value)
}

// Reissue builds a fresh voucher for the amount already spent. Use it to
// replace a voucher that was lost or rejected in transport: the payment
// state stays the same, only the nonce moves forward.
func (s *VoucherSigner) Reissue() (*PaymentVoucher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.issue(big.NewInt(0), new(big.Int).Set(s.view.Spent))
}

func (s *VoucherSigner) issue(price, value *big.Int) (*PaymentVoucher, error) {
	nonce := nextNonce(s.now(), s.view.LastNonce)

	digest, err := VoucherDigest(s.chainID, s.registry, s.view.ChannelID, nonce, value)
	if err != nil {
		return nil, err
	}
	sig, err := s.key.SignHash(digest)
	if err != nil {
		return nil, errors.Wrap(err, "sign voucher")
	}

	v := &PaymentVoucher{
		ChannelID:    s.view.ChannelID,
		Sender:       s.view.Sender,
		Receiver:     s.view.Receiver,
		Price:        new(big.Int).Set(price),
		Value:        value,
		ChannelValue: new(big.Int).Set(s.view.Value),
		Nonce:        nonce,
		Signature:    *sig,
	}
	s.view.Spent = new(big.Int).Set(value)
	s.view.LastNonce = nonce
	return v, nil
}

// nextNonce derives a nonce from the millisecond timestamp mixed with
// random bits, bumped above the previous one if the clock did not move.
// Strict growth per channel is what prevents voucher replay.
func nextNonce(now time.Time, last uint32) uint32 {
	candidate := uint32(now.UnixNano() / int64(time.Millisecond))

	var rnd [2]byte
	if _, err := crand.Read(rnd[:]); err == nil {
		candidate ^= uint32(binary.BigEndian.Uint16(rnd[:]))
	}

	if candidate <= last {
		candidate = last + 1
	}
	return candidate
}
