/*
Package abi packs typed values into the fixed-width byte layout that is
hashed before signing a payment voucher.

A Schema is an ordered list of field descriptors, each declaring a kind
and a bit width. Values are checked against the declared widths before
encoding and every violation is reported as a typed error. The resulting
byte layout is a wire contract: changing it breaks signature
compatibility with every already issued voucher.
*/
package abi

import (
	"encoding/hex"
	"math/big"

	"github.com/wolever/machinomy/errors"
)

// FieldKind describes how a single schema field is encoded.
type FieldKind uint8

const (
	// Uint is an unsigned integer, big-endian, zero-padded to the
	// declared bit width.
	Uint FieldKind = iota + 1

	// Bytes is a byte string, left zero-padded to the declared width.
	// Hex string input is accepted and must have even length.
	Bytes
)

// Field declares a single value slot of a packing schema.
type Field struct {
	Name string
	Kind FieldKind
	Bits uint
}

// width returns the field size in bytes.
func (f Field) width() int {
	return int(f.Bits / 8)
}

func (f Field) validate() error {
	if f.Name == "" {
		return errors.ErrEmpty.New("field name")
	}
	if f.Kind != Uint && f.Kind != Bytes {
		return errors.ErrType.Newf("field %s: unknown kind %d", f.Name, f.Kind)
	}
	if f.Bits == 0 || f.Bits%8 != 0 {
		return errors.ErrInput.Newf("field %s: bit width %d not a positive multiple of 8", f.Name, f.Bits)
	}
	return nil
}

// Schema is an ordered list of field descriptors. The order is part of
// the wire contract.
type Schema []Field

// Validate ensures every field descriptor is well formed.
func (s Schema) Validate() error {
	for _, f := range s {
		if err := f.validate(); err != nil {
			return err
		}
	}
	return nil
}

// Width returns the total encoded size in bytes.
func (s Schema) Width() int {
	var total int
	for _, f := range s {
		total += f.width()
	}
	return total
}

// Pack encodes the given values according to the schema. Exactly one
// value per field is required. Accepted value types are *big.Int, uint64,
// uint32 and int64 for Uint fields and []byte or a hex string for Bytes
// fields. Encoding never truncates: any value that does not fit its
// declared width is rejected with a typed error.
func (s Schema) Pack(values ...interface{}) ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if len(values) != len(s) {
		return nil, errors.ErrInput.Newf("want %d values, got %d", len(s), len(values))
	}

	out := make([]byte, 0, s.Width())
	for i, f := range s {
		chunk, err := f.pack(values[i])
		if err != nil {
			return nil, errors.Wrapf(err, "field %s", f.Name)
		}
		out = append(out, chunk...)
	}
	return out, nil
}

func (f Field) pack(value interface{}) ([]byte, error) {
	switch f.Kind {
	case Uint:
		n, err := asBigInt(value)
		if err != nil {
			return nil, err
		}
		if n.Sign() < 0 {
			return nil, errors.ErrAmount.New("negative value")
		}
		if n.BitLen() > int(f.Bits) {
			return nil, errors.ErrOverflow.Newf("%s exceeds %d bits", n, f.Bits)
		}
		return leftPad(n.Bytes(), f.width()), nil
	case Bytes:
		raw, err := asBytes(value)
		if err != nil {
			return nil, err
		}
		if len(raw) > f.width() {
			return nil, errors.ErrOverflow.Newf("%d bytes exceed width %d", len(raw), f.width())
		}
		return leftPad(raw, f.width()), nil
	default:
		return nil, errors.ErrType.Newf("kind %d", f.Kind)
	}
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		if v == nil {
			return nil, errors.ErrEmpty.New("nil big.Int")
		}
		return v, nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), nil
	case int64:
		return big.NewInt(v), nil
	case int:
		return big.NewInt(int64(v)), nil
	default:
		// Floats and the rest are rejected so that non-integral input
		// can never be silently truncated.
		return nil, errors.ErrType.Newf("%T is not an integer", value)
	}
}

func asBytes(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		raw, err := hex.DecodeString(v)
		if err != nil {
			return nil, errors.Wrap(errors.ErrInput, "malformed hex")
		}
		return raw, nil
	default:
		return nil, errors.ErrType.Newf("%T is not a byte string", value)
	}
}

func leftPad(raw []byte, width int) []byte {
	if len(raw) == width {
		return raw
	}
	out := make([]byte, width)
	copy(out[width-len(raw):], raw)
	return out
}
