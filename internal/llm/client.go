// Package llm talks to the Gemini generative-language API and exposes the two
// services the studio needs: chatting as an agent and suggesting agent details.
package llm

import (
	"context"
	"fmt"
	"time"
)

// Role constants for messages. Gemini names the assistant side "model".
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Message is a single turn in a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Schema is the subset of the Gemini response schema used for structured output.
type Schema struct {
	Type       string             `json:"type"` // "OBJECT" | "STRING" | ...
	Properties map[string]*Schema `json:"properties,omitempty"`
	Required   []string           `json:"required,omitempty"`
}

// CompletionRequest is the input to a Complete call.
type CompletionRequest struct {
	Model            string    `json:"model,omitempty"`
	System           string    `json:"system,omitempty"`
	Messages         []Message `json:"messages"`
	MaxTokens        int       `json:"maxTokens,omitempty"`
	Temperature      *float64  `json:"temperature,omitempty"`
	TopP             *float64  `json:"topP,omitempty"`
	ResponseMIMEType string    `json:"responseMimeType,omitempty"`
	ResponseSchema   *Schema   `json:"responseSchema,omitempty"`
}

// CompletionResponse is the result of a completion.
type CompletionResponse struct {
	Content    string        `json:"content"`
	StopReason string        `json:"stopReason,omitempty"`
	Usage      Usage         `json:"usage"`
	Model      string        `json:"model,omitempty"`
	Duration   time.Duration `json:"duration,omitempty"`
}

// Usage tracks token consumption.
type Usage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
}

// Client is the interface a generation backend implements.
type Client interface {
	// Complete sends a request and returns the full response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Name returns the provider name (e.g., "gemini").
	Name() string
}

// ProviderError is returned when an LLM provider fails.
type ProviderError struct {
	Provider string
	Message  string
	Code     int // HTTP status code (401, 429, 500, etc.)
}

func (e *ProviderError) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("%s: %d %s", e.Provider, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

func ptr[T any](v T) *T { return &v }
