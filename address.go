package machinomy

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/wolever/machinomy/crypto/bech32"
	"github.com/wolever/machinomy/errors"
)

// AddressLength is the length of all addresses. It must not change during
// the lifetime of a kvstore.
const AddressLength = 20

// Address identifies a party (payer, payee, registry owner) or a derived
// account such as a channel escrow. It is a 20 byte one-way digest.
//
// Party addresses are derived from secp256k1 public keys by the crypto
// package. Derived accounts are produced with NewAddress.
type Address []byte

// NewAddress hashes arbitrary data and truncates it to the address size.
// Use it for accounts that are derived from other state, like the escrow
// account of a channel. Returns nil for nil input.
func NewAddress(data []byte) Address {
	if data == nil {
		return nil
	}
	h := sha256.Sum256(data)
	return h[:AddressLength]
}

// Equals checks if two addresses are the same.
func (a Address) Equals(b Address) bool {
	return bytes.Equal(a, b)
}

// Clone returns an independent copy of this address.
func (a Address) Clone() Address {
	if a == nil {
		return nil
	}
	cp := make(Address, len(a))
	copy(cp, a)
	return cp
}

// Validate returns an error if the address is not the valid size.
func (a Address) Validate() error {
	if len(a) != AddressLength {
		return errors.ErrInput.Newf("address: %X", []byte(a))
	}
	return nil
}

// String returns a human readable string. Currently upper-case hex.
func (a Address) String() string {
	if len(a) == 0 {
		return "(nil)"
	}
	return strings.ToUpper(hex.EncodeToString(a))
}

// Bech32String returns a bech32 representation with the given human
// readable prefix.
func (a Address) Bech32String(hrp string) string {
	raw, err := bech32.Encode(hrp, a)
	if err != nil {
		return "(invalid)"
	}
	return string(raw)
}

// MarshalJSON provides a hex representation for JSON, to override the
// standard base64 []byte encoding.
func (a Address) MarshalJSON() ([]byte, error) {
	return marshalHex(a)
}

// UnmarshalJSON accepts addresses in hex (the default) or bech32 format.
// A "bech32:" prefix selects the latter.
func (a *Address) UnmarshalJSON(raw []byte) error {
	var enc string
	if err := json.Unmarshal(raw, &enc); err != nil {
		return errors.Wrap(err, "cannot decode json")
	}

	format := "hex"
	if chunks := strings.SplitN(enc, ":", 2); len(chunks) == 2 {
		format, enc = chunks[0], chunks[1]
	}

	// No value zeroes the address.
	if len(enc) == 0 {
		*a = nil
		return nil
	}

	switch format {
	case "hex":
		val, err := hex.DecodeString(enc)
		if err != nil {
			return errors.Wrap(err, "cannot decode hex")
		}
		addr := Address(val)
		if err := addr.Validate(); err != nil {
			return err
		}
		*a = addr
		return nil
	case "bech32":
		_, payload, err := bech32.Decode(enc)
		if err != nil {
			return errors.Wrap(err, "deserialize bech32")
		}
		addr := Address(payload)
		if err := addr.Validate(); err != nil {
			return err
		}
		*a = addr
		return nil
	default:
		return errors.ErrType.Newf("unknown format %q", format)
	}
}
