package machinomy

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestHexBytesJSON(t *testing.T) {
	cases := map[string]struct {
		json    string
		want    HexBytes
		wantErr bool
	}{
		"plain hex":     {json: `"deadbeef"`, want: HexBytes{0xde, 0xad, 0xbe, 0xef}},
		"0x prefix":     {json: `"0xdeadbeef"`, want: HexBytes{0xde, 0xad, 0xbe, 0xef}},
		"empty":         {json: `""`, want: HexBytes{}},
		"odd length":    {json: `"abc"`, wantErr: true},
		"not hex":       {json: `"hello!"`, wantErr: true},
		"not a string":  {json: `123`, wantErr: true},
		"upper case":    {json: `"DEADBEEF"`, want: HexBytes{0xde, 0xad, 0xbe, 0xef}},
	}

	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			var got HexBytes
			err := json.Unmarshal([]byte(tc.json), &got)
			if tc.wantErr {
				if err == nil {
					t.Fatal("want an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("cannot unmarshal: %+v", err)
			}
			if !bytes.Equal(got, tc.want) {
				t.Fatalf("want %x, got %x", tc.want, got)
			}
		})
	}
}

func TestHexBytesRoundTrip(t *testing.T) {
	original := HexBytes{0, 1, 2, 0xff}
	raw, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("cannot marshal: %+v", err)
	}
	if want := `"000102ff"`; string(raw) != want {
		t.Fatalf("want %s, got %s", want, raw)
	}
	var restored HexBytes
	if err := json.Unmarshal(raw, &restored); err != nil {
		t.Fatalf("cannot unmarshal: %+v", err)
	}
	if !bytes.Equal(original, restored) {
		t.Fatalf("want %x, got %x", original, restored)
	}
}
