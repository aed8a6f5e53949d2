package extract

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/tallai/tallai/internal/invoice"
)

const defaultTemperature = 0.3

// ChatCompleter is the slice of the OpenAI client the extractor uses.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Extractor turns document text into a typed invoice through a chat
// model prompted for the four-section CSV format.
type Extractor struct {
	client      ChatCompleter
	model       string
	temperature float32
	logger      *zap.Logger
}

func NewExtractor(client ChatCompleter, model string, temperature float32, logger *zap.Logger) *Extractor {
	if temperature == 0 {
		temperature = defaultTemperature
	}
	return &Extractor{
		client:      client,
		model:       model,
		temperature: temperature,
		logger:      logger,
	}
}

// Extract sends the document text through the model and parses the
// reply. The raw model output is returned alongside the invoice so it
// can be stored for review; on a parse failure the raw output is still
// returned for diagnosis.
func (e *Extractor) Extract(ctx context.Context, documentText string) (*invoice.Invoice, string, error) {
	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       e.model,
		Temperature: e.temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You are an expert accounting system assistant specializing in Tally data entry automation. Always respond with CSV lines only.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildPrompt(documentText),
			},
		},
	})
	if err != nil {
		e.logger.Error("Extraction model call failed", zap.Error(err))
		return nil, "", fmt.Errorf("failed to extract invoice data: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, "", fmt.Errorf("no response from model")
	}

	content := resp.Choices[0].Message.Content
	inv, err := invoice.Parse(content)
	if err != nil {
		e.logger.Error("Model output failed to parse",
			zap.Error(err),
			zap.String("content", content))
		return nil, content, fmt.Errorf("failed to parse extraction result: %w", err)
	}

	e.logger.Info("Invoice extracted",
		zap.String("voucher_type", string(inv.Type())),
		zap.Int("rows", len(inv.Items)+len(inv.Accounts)))
	return inv, content, nil
}
