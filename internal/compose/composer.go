package compose

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/prompts"

	"github.com/ckd-chatbot/backend/internal/llm"
)

var detailPrompt = prompts.NewPromptTemplate(`你是一位腎臟健康衛教醫生，請根據下方系統提供的腎臟衛教回應進行整合，僅能根據提供的資訊回答：
- 不可自我介紹（如「作為醫生...」等開場白）。
- 不可要求使用者提供更多資訊。
- 不可給出與 context 無關的泛泛建議。
- 若資訊不足，請根據現有資訊盡量給出有幫助的建議，或簡要歸納 context 內容。
- 若 context 完全無法回答，才簡短說明目前無法提供具體建議。
請保持專業性以及語句清楚明瞭，務必使用繁體中文作答。

提供的資訊：
{{.retrieved}}

使用者問題：{{.question}}
有幫助的回答：
`, []string{"retrieved", "question"})

var outlinePrompt = prompts.NewPromptTemplate(`你是一位腎臟健康衛教醫生，請將系統提供的腎臟衛教回應，濃縮成簡短、易懂的大綱列點（3點以內），每點不超過15字，避免冗長解釋。請勿重複問題。請務必使用繁體中文作答。

提供的資訊：
{{.detail}}

使用者問題：{{.question}}
大綱列點：
`, []string{"detail", "question"})

// Composer turns retrieved text into the user-facing answer with two
// streaming calls on the same model.
type Composer struct {
	model llm.Model
}

func NewComposer(model llm.Model) *Composer {
	return &Composer{model: model}
}

// Detail streams the full explanation of retrieved for question.
func (c *Composer) Detail(ctx context.Context, retrieved, question string) (<-chan llm.StreamChunk, error) {
	prompt, err := detailPrompt.Format(map[string]any{
		"retrieved": retrieved,
		"question":  question,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to format detail prompt: %w", err)
	}
	return c.model.Stream(ctx, prompt)
}

// Outline streams a short bulleted summary. detail must be the complete
// output of Detail.
func (c *Composer) Outline(ctx context.Context, detail, question string) (<-chan llm.StreamChunk, error) {
	prompt, err := outlinePrompt.Format(map[string]any{
		"detail":   detail,
		"question": question,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to format outline prompt: %w", err)
	}
	return c.model.Stream(ctx, prompt)
}
