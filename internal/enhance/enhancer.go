// Package enhance is the generative-model fallback for receipts the
// heuristic pass could not resolve confidently. It is best-effort by
// contract: every failure is reported as ErrUnavailable and the caller
// keeps its heuristic result.
package enhance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// ErrUnavailable indicates the enhancement call failed or returned
// unusable content. Never fatal to the pipeline.
var ErrUnavailable = errors.New("enhancement unavailable")

const defaultModel = "gpt-4o-mini"

const systemPrompt = `You are a receipt parsing assistant. The user sends raw OCR text of a purchase receipt.
Return ONLY a JSON object with these keys:
  "merchant": string, the merchant name
  "items": array of {"description": string, "price": number}
  "subtotal": number
  "tax": number
  "total": number
  "confidence": number between 0 and 1, your confidence in the extraction
Use 0 for amounts you cannot find and an empty string for the merchant if unknown.
Do not wrap the JSON in markdown code fences and do not add commentary.`

// Item is one purchased line in an enhanced receipt.
type Item struct {
	Description string  `json:"description"`
	Price       float64 `json:"price"`
}

// Receipt is the structured result of one enhancement call.
type Receipt struct {
	Merchant   string  `json:"merchant"`
	Items      []Item  `json:"items"`
	Subtotal   float64 `json:"subtotal"`
	Tax        float64 `json:"tax"`
	Total      float64 `json:"total"`
	Confidence float64 `json:"confidence"`
}

// Config holds the chat-endpoint settings.
type Config struct {
	APIKey  string
	BaseURL string // optional override, e.g. for tests or a proxy
	Model   string
	Logger  *zap.Logger
}

// Enhancer sends raw OCR text to a chat-completion endpoint and parses a
// structured receipt from the response.
type Enhancer struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// New creates an Enhancer.
func New(cfg Config) *Enhancer {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Enhancer{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
		logger: logger,
	}
}

// Enhance sends rawText to the model and parses the response. On any
// failure it logs and returns an error wrapping ErrUnavailable.
func (e *Enhancer) Enhance(ctx context.Context, rawText string) (*Receipt, error) {
	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       e.model,
		Temperature: 0.1,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: rawText},
		},
	})
	if err != nil {
		e.logger.Warn("enhancement call failed", zap.Error(err))
		return nil, fmt.Errorf("chat completion: %v: %w", err, ErrUnavailable)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		e.logger.Warn("enhancement returned empty content")
		return nil, fmt.Errorf("empty completion: %w", ErrUnavailable)
	}

	content := extractJSON(resp.Choices[0].Message.Content)

	var receipt Receipt
	if err := json.Unmarshal([]byte(content), &receipt); err != nil {
		e.logger.Warn("enhancement returned unparseable content",
			zap.Error(err),
			zap.String("content", truncate(content, 200)))
		return nil, fmt.Errorf("parse completion: %v: %w", err, ErrUnavailable)
	}

	return &receipt, nil
}

// extractJSON strips markdown code fences and truncates to the outermost
// {...} span, tolerating models that wrap JSON in prose.
func extractJSON(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start >= 0 && end > start {
		content = content[start : end+1]
	}
	return strings.TrimSpace(content)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
