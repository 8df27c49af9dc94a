package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"tanisma/internal/logging"
)

const geminiModelName = "gemini-1.5-flash-latest"

// GeminiProvider is the first provider in the cascade. A missing API key
// leaves the client nil; calls then fail with a credential diagnostic
// instead of an error at startup.
type GeminiProvider struct {
	client *genai.Client
}

func NewGeminiProvider(ctx context.Context, apiKey string, logger logging.Logger) *GeminiProvider {
	if apiKey == "" {
		return &GeminiProvider{}
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		logger.Warn(ctx, "failed to create GenAI client, provider disabled", "error", err)
		return &GeminiProvider{}
	}
	return &GeminiProvider{client: client}
}

func (p *GeminiProvider) Name() string { return "gemini" }

func (p *GeminiProvider) Close() error {
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}

func (p *GeminiProvider) Reply(ctx context.Context, systemInstruction string, history []Message) (string, error) {
	if p.client == nil {
		return "", errMissingCredential
	}
	if len(history) == 0 {
		return "", errEmptyHistory
	}

	model := p.client.GenerativeModel(geminiModelName)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(systemInstruction)},
	}
	temp := float32(0.9)
	model.GenerationConfig = genai.GenerationConfig{Temperature: &temp}

	contents := make([]*genai.Content, 0, len(history))
	for _, m := range history {
		role := "model"
		if m.Role == RoleMe {
			role = "user"
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(m.Text)},
		})
	}

	last := contents[len(contents)-1]
	if last.Role != "user" {
		return "", fmt.Errorf("last message in history is not from the user")
	}

	chatSession := model.StartChat()
	chatSession.History = contents[:len(contents)-1]

	resp, err := chatSession.SendMessage(ctx, last.Parts...)
	if err != nil {
		return "", fmt.Errorf("SendMessage failed: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", errEmptyPayload
	}

	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			responseText.WriteString(string(txt))
		}
	}

	text := strings.TrimSpace(responseText.String())
	if text == "" {
		return "", errEmptyPayload
	}
	return text, nil
}
