package session

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// NewHostKey mints the opaque host capability returned once at session
// creation. It authenticates every host-side operation on the session.
func NewHostKey() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate host key: %w", err)
	}
	return "hk_" + hex.EncodeToString(buf), nil
}
