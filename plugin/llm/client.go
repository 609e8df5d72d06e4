// Package llm wraps a hosted OpenAI-compatible chat-completion endpoint
// behind a total-function boundary: every call resolves to reply text or a
// classified Failure, nothing else escapes.
package llm

import (
	"context"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// requestTimeout bounds the single network call. The orchestrator enforces
// no timeout of its own.
const requestTimeout = 30 * time.Second

// CompletionRequest is the outbound payload for one completion call.
type CompletionRequest struct {
	Model        string
	SystemPrompt string
	Messages     []PromptMessage
	APIKey       string
	BaseURL      string
}

// Completer performs exactly one blocking completion call per invocation.
// No retries, and streaming is never enabled.
type Completer interface {
	Complete(ctx context.Context, req *CompletionRequest) (string, error)
}

type openAICompleter struct {
	// httpClient is shared across calls; the per-call client config only
	// varies by key and base URL.
	httpClient *http.Client
	// temperature matches the original deployment.
	temperature float32
}

// NewCompleter creates the OpenAI-compatible Completer.
func NewCompleter() Completer {
	return &openAICompleter{
		httpClient:  &http.Client{Timeout: requestTimeout},
		temperature: 0.7,
	}
}

func (c *openAICompleter) Complete(ctx context.Context, req *CompletionRequest) (string, error) {
	clientConfig := openai.DefaultConfig(strings.TrimPrefix(req.APIKey, "Bearer "))
	if req.BaseURL != "" {
		clientConfig.BaseURL = req.BaseURL
	}
	clientConfig.HTTPClient = c.httpClient
	client := openai.NewClientWithConfig(clientConfig)

	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	for _, m := range req.Messages {
		messages = append(messages, convertMessage(m))
	}

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: c.temperature,
		Stream:      false,
	})
	if err != nil {
		return "", Classify(err)
	}

	if len(resp.Choices) == 0 {
		return "", &Failure{Kind: FailureProvider, Message: "no usable reply content"}
	}
	reply := strings.TrimSpace(resp.Choices[0].Message.Content)
	if reply == "" {
		return "", &Failure{Kind: FailureProvider, Message: "no usable reply content"}
	}
	return reply, nil
}

func convertMessage(m PromptMessage) openai.ChatCompletionMessage {
	if !m.Content.IsParts() {
		return openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content.Text(),
		}
	}

	parts := make([]openai.ChatMessagePart, 0, len(m.Content.Parts()))
	for _, p := range m.Content.Parts() {
		switch p.Type {
		case ContentPartImage:
			parts = append(parts, openai.ChatMessagePart{
				Type:     openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{URL: p.ImageURL},
			})
		default:
			parts = append(parts, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeText,
				Text: p.Text,
			})
		}
	}
	return openai.ChatCompletionMessage{
		Role:         m.Role,
		MultiContent: parts,
	}
}
