package warden

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// answerInstruction frames the model as the gatekeeper so generated
// prose stays in character.
const answerInstruction = "You are a cryptic but kind gatekeeper in a " +
	"guess-the-secret-word game. The visitor has spoken the trigger phrase " +
	"and earned one free-form answer. Reply in two or three sentences, in " +
	"character, without revealing any secret word. Question: "

// GenAIAnswerer generates free-form answers with Google's Gemini API.
type GenAIAnswerer struct {
	client *genai.Client
	model  string
}

// NewGenAIAnswerer creates an answer provider backed by the given
// model. The API key comes from the environment (GEMINI_API_KEY).
func NewGenAIAnswerer(ctx context.Context, apiKey, model string) (*GenAIAnswerer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GenAIAnswerer{client: client, model: model}, nil
}

// GenerateAnswer implements AnswerProvider.
func (a *GenAIAnswerer) GenerateAnswer(ctx context.Context, prompt string) (string, error) {
	result, err := a.client.Models.GenerateContent(ctx,
		a.model,
		genai.Text(answerInstruction+prompt),
		nil,
	)
	if err != nil {
		return "", fmt.Errorf("GenAI generation failed: %w", err)
	}

	text := strings.TrimSpace(result.Text())
	if text == "" {
		return "", fmt.Errorf("no answer returned")
	}
	return text, nil
}
