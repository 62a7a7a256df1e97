package session

import "crypto/rand"

// Session codes skip easily-confused characters (0/O, 1/I) since they are
// read aloud and typed on phones.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const codeLength = 6

// generateSessionCode returns a random human-shareable join code
func generateSessionCode() string {
	b := make([]byte, codeLength)
	rand.Read(b)

	for i := range b {
		b[i] = codeAlphabet[b[i]%byte(len(codeAlphabet))]
	}
	return string(b)
}
