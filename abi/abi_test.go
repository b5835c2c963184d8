package abi

import (
	"encoding/hex"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolever/machinomy/errors"
)

var testSchema = Schema{
	{Name: "chain", Kind: Uint, Bits: 32},
	{Name: "registry", Kind: Bytes, Bits: 160},
	{Name: "channel", Kind: Bytes, Bits: 256},
	{Name: "nonce", Kind: Uint, Bits: 32},
	{Name: "value", Kind: Uint, Bits: 256},
}

func TestPackPinnedLayout(t *testing.T) {
	registry := make([]byte, 20)
	registry[19] = 0xaa
	channel := make([]byte, 32)
	channel[31] = 0xbb

	raw, err := testSchema.Pack(uint32(3), registry, channel, uint32(7), big.NewInt(1000))
	require.NoError(t, err)

	// 4 + 20 + 32 + 4 + 32
	require.Len(t, raw, testSchema.Width())
	require.Equal(t, 92, len(raw))

	want := "00000003" +
		"00000000000000000000000000000000000000aa" +
		"00000000000000000000000000000000000000000000000000000000000000bb" +
		"00000007" +
		"00000000000000000000000000000000000000000000000000000000000003e8"
	assert.Equal(t, want, hex.EncodeToString(raw))
}

func TestPackShortInputsArePadded(t *testing.T) {
	// A 1 byte channel id must be left padded to the full 32 bytes.
	raw, err := testSchema.Pack(uint32(0), []byte{0x01}, []byte{0x02}, uint32(0), big.NewInt(0))
	require.NoError(t, err)
	assert.Equal(t, byte(0x01), raw[4+19])
	assert.Equal(t, byte(0x02), raw[4+20+31])
}

func TestPackHexStringInput(t *testing.T) {
	raw, err := testSchema.Pack(uint32(1), "ff", "0102", uint32(1), big.NewInt(1))
	require.NoError(t, err)
	assert.Equal(t, byte(0xff), raw[4+19])
}

func TestPackRejections(t *testing.T) {
	ok := func() []interface{} {
		return []interface{}{uint32(1), make([]byte, 20), make([]byte, 32), uint32(1), big.NewInt(1)}
	}

	cases := map[string]struct {
		values  []interface{}
		wantErr *errors.Error
	}{
		"negative value": {
			values:  replace(ok(), 4, big.NewInt(-5)),
			wantErr: errors.ErrAmount,
		},
		"value exceeding declared width": {
			values:  replace(ok(), 3, uint64(1<<40)),
			wantErr: errors.ErrOverflow,
		},
		"byte field exceeding declared width": {
			values:  replace(ok(), 1, make([]byte, 21)),
			wantErr: errors.ErrOverflow,
		},
		"odd length hex": {
			values:  replace(ok(), 2, "abc"),
			wantErr: errors.ErrInput,
		},
		"non-integral numeric": {
			values:  replace(ok(), 0, 1.5),
			wantErr: errors.ErrType,
		},
		"nil big int": {
			values:  replace(ok(), 4, (*big.Int)(nil)),
			wantErr: errors.ErrEmpty,
		},
		"wrong value count": {
			values:  ok()[:3],
			wantErr: errors.ErrInput,
		},
	}
	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			_, err := testSchema.Pack(tc.values...)
			if !tc.wantErr.Is(err) {
				t.Fatalf("want %v, got %+v", tc.wantErr, err)
			}
		})
	}
}

func TestSchemaValidate(t *testing.T) {
	bad := Schema{{Name: "x", Kind: Uint, Bits: 12}}
	if err := bad.Validate(); !errors.ErrInput.Is(err) {
		t.Fatalf("want ErrInput, got %+v", err)
	}
	if _, err := bad.Pack(uint32(1)); !errors.ErrInput.Is(err) {
		t.Fatalf("pack must validate the schema first, got %+v", err)
	}
}

func replace(vals []interface{}, idx int, v interface{}) []interface{} {
	vals[idx] = v
	return vals
}
