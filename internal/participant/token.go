package participant

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// newToken mints the opaque bearer credential issued on join. It is the
// sole authentication artifact for anonymous participants; the server
// validates it on every request.
func newToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate participant token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
