package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		candidate Candidate
		want      Verdict
	}{
		{
			name:      "empty text",
			candidate: Candidate{Text: "", Rows: []string{"a", "b"}, RowsCaptured: true},
			want:      Empty,
		},
		{
			name:      "whitespace text",
			candidate: Candidate{Text: "  \n", RowsCaptured: false},
			want:      Empty,
		},
		{
			name:      "multiple rows",
			candidate: Candidate{Text: "答案", Rows: []string{"a", "b"}, RowsCaptured: true},
			want:      Substantive,
		},
		{
			name:      "single row",
			candidate: Candidate{Text: "答案", Rows: []string{"a"}, RowsCaptured: true},
			want:      Substantive,
		},
		{
			name:      "captured but no rows",
			candidate: Candidate{Text: "答案", RowsCaptured: true},
			want:      Empty,
		},
		{
			name:      "rows outrank generic phrase",
			candidate: Candidate{Text: "Please consult your doctor.", Rows: []string{"a"}, RowsCaptured: true},
			want:      Substantive,
		},
		{
			name:      "generic deflection",
			candidate: Candidate{Text: "You should Talk To Your Doctor about this."},
			want:      GenericNonAnswer,
		},
		{
			name:      "chinese deflection",
			candidate: Candidate{Text: "這個問題請諮詢您的醫師。"},
			want:      GenericNonAnswer,
		},
		{
			name:      "plain answer without rows",
			candidate: Candidate{Text: "低蛋白飲食有助於延緩腎功能惡化。"},
			want:      Substantive,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Validate(tt.candidate))
		})
	}
}
