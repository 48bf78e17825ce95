// Package advisor generates budgeting advice with Google's Gemini API.
package advisor

import (
	"context"
	"fmt"
	"time"

	"github.com/oatsaysai/budgetbuddy/internal/conversation"
	"google.golang.org/genai"
)

// Sampling settings for advice replies.
const (
	temperature     = 0.3
	topP            = 0.95
	topK            = 50
	maxOutputTokens = 800
)

// Models is the part of the genai client the advisor uses.
type Models interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Advisor is a Gemini backed text generator.
type Advisor struct {
	models  Models
	model   string
	timeout time.Duration
}

// New creates a Gemini client for apiKey.
func New(ctx context.Context, apiKey, model string, timeout time.Duration) (*Advisor, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return NewWithModels(client.Models, model, timeout), nil
}

// NewWithModels builds an Advisor on an existing models client.
func NewWithModels(m Models, model string, timeout time.Duration) *Advisor {
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &Advisor{models: m, model: model, timeout: timeout}
}

// Contents converts the chat history plus the new message into request
// contents, oldest first.
func Contents(history []conversation.Turn, message string) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history)+1)
	for _, turn := range history {
		role := genai.Role(genai.RoleUser)
		if turn.Role == genai.RoleModel {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(turn.Text, role))
	}
	return append(contents, genai.NewContentFromText(message, genai.RoleUser))
}

// GenerateAdvice answers message given the system context and the earlier
// turns of the conversation.
func (a *Advisor) GenerateAdvice(ctx context.Context, system string, history []conversation.Turn, message string) (string, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		Temperature:       genai.Ptr[float32](temperature),
		TopP:              genai.Ptr[float32](topP),
		TopK:              genai.Ptr[float32](topK),
		MaxOutputTokens:   maxOutputTokens,
	}

	resp, err := a.models.GenerateContent(ctx, a.model, Contents(history, message), config)
	if err != nil {
		return "", fmt.Errorf("GenAI generate failed: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("no text returned")
	}
	return text, nil
}
