package advisor

import (
	"context"
	"errors"
	"testing"

	"github.com/oatsaysai/budgetbuddy/internal/conversation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type fakeModels struct {
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
	reply    string
	err      error
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model, f.contents, f.config = model, contents, config
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: genai.NewContentFromText(f.reply, genai.RoleModel),
	}}}, nil
}

func TestGenerateAdvice(t *testing.T) {
	f := &fakeModels{reply: "Spend less on food."}
	a := NewWithModels(f, "", 0)

	history := []conversation.Turn{{Role: "user", Text: "hi"}, {Role: "model", Text: "hello"}}
	got, err := a.GenerateAdvice(context.Background(), "You are BudgetBuddy.", history, "how am I doing?")
	require.NoError(t, err)
	assert.Equal(t, "Spend less on food.", got)

	assert.Equal(t, "gemini-2.0-flash", f.model)
	require.Len(t, f.contents, 3)
	assert.Equal(t, "model", f.contents[1].Role)
	assert.Equal(t, "how am I doing?", f.contents[2].Parts[0].Text)
	assert.Equal(t, "You are BudgetBuddy.", f.config.SystemInstruction.Parts[0].Text)
	assert.Equal(t, int32(800), f.config.MaxOutputTokens)
	assert.InDelta(t, 0.3, *f.config.Temperature, 1e-6)
}

func TestGenerateAdviceErrors(t *testing.T) {
	a := NewWithModels(&fakeModels{err: errors.New("quota")}, "m", 0)
	_, err := a.GenerateAdvice(context.Background(), "s", nil, "q")
	assert.Error(t, err)

	a = NewWithModels(&fakeModels{}, "m", 0)
	_, err = a.GenerateAdvice(context.Background(), "s", nil, "q")
	assert.Error(t, err)
}
