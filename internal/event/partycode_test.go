package event

import (
	"strings"
	"testing"
)

func TestNewPartyCode_Length(t *testing.T) {
	code, err := NewPartyCode()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(code) != PartyCodeLength {
		t.Errorf("expected %d characters, got %d (%q)", PartyCodeLength, len(code), code)
	}
}

func TestNewPartyCode_Alphabet(t *testing.T) {
	for i := 0; i < 100; i++ {
		code, err := NewPartyCode()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, r := range code {
			if !strings.ContainsRune(codeAlphabet, r) {
				t.Fatalf("code %q contains %q outside the allowed alphabet", code, r)
			}
		}
	}
}

func TestNewPartyCode_NotConstant(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 50; i++ {
		code, err := NewPartyCode()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		seen[code] = struct{}{}
	}
	// 50 draws from a 36^6 space should essentially never collide, let alone
	// all collapse to one value.
	if len(seen) < 2 {
		t.Errorf("expected distinct codes across draws, got %d unique", len(seen))
	}
}
