package oauthflow

import (
	"crypto/rand"
	"encoding/hex"
)

// GenerateState returns a random correlation token carried in the state
// parameter and used to route the code back to its attempt.
func GenerateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
