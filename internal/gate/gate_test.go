package gate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheck(t *testing.T) {
	tests := []struct {
		name     string
		question string
		want     bool
	}{
		{"diet question", "腎臟病患者可以吃什麼？", true},
		{"lab marker", "肌酸酐偏高代表什麼", true},
		{"upper-case abbreviation", "What does CKD stage 3 mean?", true},
		{"mixed-case egfr", "My eGFR dropped", true},
		{"dialysis", "洗腎的頻率是多少", true},
		{"english kidney", "Is coffee bad for my kidney?", true},
		{"weather", "今天天氣如何？", false},
		{"empty", "", false},
		{"unrelated english", "How do I bake bread?", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Check(tt.question))
		})
	}
}

func TestCheckIsPure(t *testing.T) {
	for _, q := range []string{"腎臟病患者可以吃什麼？", "今天天氣如何？"} {
		assert.Equal(t, Check(q), Check(q))
	}
}

func TestCheckIsPermissive(t *testing.T) {
	// 飲食 alone is enough to pass even without a kidney term.
	assert.True(t, Check("減肥的飲食建議"))
}
