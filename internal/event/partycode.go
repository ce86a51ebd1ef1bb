package event

import (
	"crypto/rand"
	"fmt"
)

// PartyCodeLength is the length of every generated party code.
const PartyCodeLength = 6

// codeAlphabet excludes nothing: codes are compared case-insensitively at
// join time by uppercasing input, so the generated set is uppercase
// alphanumeric.
const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewPartyCode generates a random 6-character uppercase alphanumeric join
// code, e.g. "PHOTO1". Uniqueness is enforced by the database constraint;
// callers retry on conflict.
func NewPartyCode() (string, error) {
	buf := make([]byte, PartyCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("event: party code entropy: %w", err)
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf), nil
}
