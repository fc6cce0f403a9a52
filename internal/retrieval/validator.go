package retrieval

import "strings"

type Verdict int

const (
	Empty Verdict = iota
	GenericNonAnswer
	Substantive
)

func (v Verdict) String() string {
	switch v {
	case Substantive:
		return "substantive"
	case GenericNonAnswer:
		return "generic"
	default:
		return "empty"
	}
}

// Candidate is a stage result awaiting validation. RowsCaptured is false when
// the stage produced text without row-level context.
type Candidate struct {
	Text         string
	Rows         []string
	RowsCaptured bool
}

var genericPhrases = []string{
	"consult with your",
	"consult your doctor",
	"talk to your doctor",
	"speak with your healthcare",
	"work closely with your",
	"請諮詢您的醫師",
	"請詢問您的醫師",
}

// Validate decides whether a candidate is worth answering from. Row evidence
// takes precedence over the text heuristics, and a single row is accepted.
func Validate(c Candidate) Verdict {
	if strings.TrimSpace(c.Text) == "" {
		return Empty
	}

	if c.RowsCaptured {
		if len(c.Rows) > 0 {
			return Substantive
		}
		return Empty
	}

	lower := strings.ToLower(c.Text)
	for _, phrase := range genericPhrases {
		if strings.Contains(lower, phrase) {
			return GenericNonAnswer
		}
	}

	return Substantive
}
