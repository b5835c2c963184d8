package crypto

import (
	"github.com/btcsuite/btcd/btcec"

	"github.com/wolever/machinomy"
	"github.com/wolever/machinomy/errors"
)

const (
	// SignatureSize is the byte length of a serialized recoverable
	// signature: one recovery byte followed by R and S.
	SignatureSize = 65

	// sigComponentSize is the width of each of the R and S components.
	sigComponentSize = 32
)

// Signature is a recoverable secp256k1 signature over a 32 byte digest.
// V is the recovery identifier (27 or 28), R and S are the fixed-width
// signature components. The JSON field names are part of the voucher wire
// format.
type Signature struct {
	V uint8              `json:"v"`
	R machinomy.HexBytes `json:"r"`
	S machinomy.HexBytes `json:"s"`
}

// Validate returns an error unless the signature components have the
// correct width and a known recovery identifier.
func (s *Signature) Validate() error {
	if s == nil {
		return errors.ErrEmpty.New("signature")
	}
	if s.V != 27 && s.V != 28 {
		return errors.ErrInput.Newf("recovery id: %d", s.V)
	}
	if len(s.R) != sigComponentSize {
		return errors.ErrInput.Newf("r component: %d bytes", len(s.R))
	}
	if len(s.S) != sigComponentSize {
		return errors.ErrInput.Newf("s component: %d bytes", len(s.S))
	}
	return nil
}

// compact serializes into the 65 byte form the curve library understands.
func (s *Signature) compact() []byte {
	raw := make([]byte, 0, SignatureSize)
	raw = append(raw, s.V)
	raw = append(raw, s.R...)
	raw = append(raw, s.S...)
	return raw
}

// PrivateKey is a secp256k1 signing credential. It is held outside of the
// registry core; only the voucher construction path touches it.
type PrivateKey struct {
	key *btcec.PrivateKey
}

// GenPrivateKey returns a random new private key.
func GenPrivateKey() *PrivateKey {
	key, err := btcec.NewPrivateKey(btcec.S256())
	if err != nil {
		// The only failure mode is the entropy source misbehaving.
		panic(err)
	}
	return &PrivateKey{key: key}
}

// PrivKeyFromSeed deterministically builds a private key from the given
// bytes. Use for deterministic keys in test cases or when key material
// comes from an external wallet.
func PrivKeyFromSeed(seed []byte) *PrivateKey {
	key, _ := btcec.PrivKeyFromBytes(btcec.S256(), seed)
	return &PrivateKey{key: key}
}

// SignHash produces a recoverable signature over a 32 byte digest. The
// digest is signed as is; hashing the content is the caller's job.
func (p *PrivateKey) SignHash(hash []byte) (*Signature, error) {
	if len(hash) != 32 {
		return nil, errors.ErrInput.Newf("digest must be 32 bytes, got %d", len(hash))
	}
	raw, err := btcec.SignCompact(btcec.S256(), p.key, hash, false)
	if err != nil {
		return nil, errors.Wrap(err, "sign compact")
	}
	return &Signature{
		V: raw[0],
		R: append(machinomy.HexBytes{}, raw[1:1+sigComponentSize]...),
		S: append(machinomy.HexBytes{}, raw[1+sigComponentSize:]...),
	}, nil
}

// PublicKey returns the corresponding public key.
func (p *PrivateKey) PublicKey() *PublicKey {
	return &PublicKey{key: p.key.PubKey()}
}

// PublicKey identifies a signing party.
type PublicKey struct {
	key *btcec.PublicKey
}

// Address derives the party address: the last 20 bytes of the keccak
// digest of the uncompressed public key, without the format prefix.
func (p *PublicKey) Address() machinomy.Address {
	raw := p.key.SerializeUncompressed()
	digest := Keccak256(raw[1:])
	return machinomy.Address(digest[len(digest)-machinomy.AddressLength:])
}

// Recover returns the address of the party that signed the given digest.
// A malformed signature yields an error; the caller decides whether that
// is fatal.
func Recover(hash []byte, sig *Signature) (machinomy.Address, error) {
	if err := sig.Validate(); err != nil {
		return nil, err
	}
	key, _, err := btcec.RecoverCompact(btcec.S256(), sig.compact(), hash)
	if err != nil {
		return nil, errors.Wrap(err, "recover compact")
	}
	pub := PublicKey{key: key}
	return pub.Address(), nil
}

// Verify reports whether the signature over the given digest was created
// by the owner of the expected address. Recovery failure is a negative
// verification result, not an error.
func Verify(expected machinomy.Address, hash []byte, sig *Signature) bool {
	signer, err := Recover(hash, sig)
	if err != nil {
		return false
	}
	return signer.Equals(expected)
}
