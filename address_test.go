package machinomy

import (
	"encoding/json"
	"testing"

	"github.com/wolever/machinomy/errors"
)

func TestNewAddress(t *testing.T) {
	a := NewAddress([]byte("some account"))
	if err := a.Validate(); err != nil {
		t.Fatalf("derived address must be valid: %+v", err)
	}
	b := NewAddress([]byte("some account"))
	if !a.Equals(b) {
		t.Fatal("derivation must be deterministic")
	}
	if a.Equals(NewAddress([]byte("other account"))) {
		t.Fatal("different data must derive different addresses")
	}
	if NewAddress(nil) != nil {
		t.Fatal("nil data must derive nil address")
	}
}

func TestAddressValidate(t *testing.T) {
	cases := map[string]struct {
		addr    Address
		wantErr *errors.Error
	}{
		"valid":     {addr: make(Address, AddressLength)},
		"nil":       {addr: nil, wantErr: errors.ErrInput},
		"too short": {addr: make(Address, AddressLength-1), wantErr: errors.ErrInput},
		"too long":  {addr: make(Address, AddressLength+1), wantErr: errors.ErrInput},
	}

	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			if err := tc.addr.Validate(); !tc.wantErr.Is(err) {
				t.Fatalf("unexpected error: %+v", err)
			}
		})
	}
}

func TestAddressUnmarshalJSON(t *testing.T) {
	fromHex := func(t *testing.T, s string) Address {
		t.Helper()
		var a Address
		if err := json.Unmarshal([]byte(`"`+s+`"`), &a); err != nil {
			t.Fatalf("cannot unmarshal %q: %+v", s, err)
		}
		return a
	}

	cases := map[string]struct {
		json     string
		wantErr  *errors.Error
		wantAddr Address
	}{
		"default hex": {
			json:     `"8d0aca97d668914c15f7896b7072383b4c0d0c8a"`,
			wantAddr: fromHex(t, "8d0aca97d668914c15f7896b7072383b4c0d0c8a"),
		},
		"hex with prefix": {
			json:     `"hex:8d0aca97d668914c15f7896b7072383b4c0d0c8a"`,
			wantAddr: fromHex(t, "8d0aca97d668914c15f7896b7072383b4c0d0c8a"),
		},
		"empty zeroes": {
			json:     `""`,
			wantAddr: nil,
		},
		"wrong length": {
			json:    `"8d0aca97"`,
			wantErr: errors.ErrInput,
		},
		"unknown format": {
			json:    `"base64:gNrKl9Zo"`,
			wantErr: errors.ErrType,
		},
	}

	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			var a Address
			err := json.Unmarshal([]byte(tc.json), &a)
			if tc.wantErr != nil {
				if !tc.wantErr.Is(err) {
					t.Fatalf("unexpected error: %+v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("cannot unmarshal: %+v", err)
			}
			if !a.Equals(tc.wantAddr) {
				t.Fatalf("want %s, got %s", tc.wantAddr, a)
			}
		})
	}
}

func TestAddressUnmarshalInvalidHex(t *testing.T) {
	var a Address
	if err := json.Unmarshal([]byte(`"zzzz"`), &a); err == nil {
		t.Fatal("invalid hex must be rejected")
	}
}

func TestAddressBech32RoundTrip(t *testing.T) {
	a := NewAddress([]byte("some account"))
	enc := a.Bech32String("machi")

	raw, err := json.Marshal("bech32:" + enc)
	if err != nil {
		t.Fatalf("cannot marshal: %+v", err)
	}
	var restored Address
	if err := json.Unmarshal(raw, &restored); err != nil {
		t.Fatalf("cannot unmarshal bech32 address: %+v", err)
	}
	if !restored.Equals(a) {
		t.Fatalf("want %s, got %s", a, restored)
	}
}

func TestAddressJSONRoundTrip(t *testing.T) {
	a := NewAddress([]byte("some account"))
	raw, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("cannot marshal: %+v", err)
	}
	var restored Address
	if err := json.Unmarshal(raw, &restored); err != nil {
		t.Fatalf("cannot unmarshal: %+v", err)
	}
	if !restored.Equals(a) {
		t.Fatalf("want %s, got %s", a, restored)
	}
}
