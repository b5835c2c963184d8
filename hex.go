package machinomy

import (
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/wolever/machinomy/errors"
)

// HexBytes is a byte slice that serializes to lower-case hex in JSON
// instead of the standard base64 encoding. Channel identifiers and
// signature components use it on the voucher wire format.
type HexBytes []byte

func (b HexBytes) MarshalJSON() ([]byte, error) {
	return marshalHex(b)
}

func (b *HexBytes) UnmarshalJSON(raw []byte) error {
	return unmarshalHex((*[]byte)(b), raw)
}

func unmarshalHex(dst *[]byte, src []byte) error {
	var s string
	if err := json.Unmarshal(src, &s); err != nil {
		return errors.Wrap(err, "parse string")
	}
	// Odd-length hex must be rejected, not padded. DecodeString does
	// this for us.
	val, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return errors.Wrap(err, "decode hex")
	}
	*dst = val
	return nil
}

func marshalHex(b []byte) ([]byte, error) {
	return json.Marshal(hex.EncodeToString(b))
}
