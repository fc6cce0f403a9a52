package utils

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint returns a short stable digest used to correlate a question
// across log lines without repeating its text.
func Fingerprint(input string) string {
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:6])
}
