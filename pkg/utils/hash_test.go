package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprint(t *testing.T) {
	a := Fingerprint("腎臟病要注意什麼？")

	assert.Len(t, a, 12)
	assert.Equal(t, a, Fingerprint("腎臟病要注意什麼？"))
	assert.NotEqual(t, a, Fingerprint("透析是什麼？"))
}
