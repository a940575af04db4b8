package llm

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/soyeahso/agentstudio/internal/domain"
	"github.com/soyeahso/agentstudio/internal/logging"
)

// Suggestion holds the agent fields a model proposed. Nil fields were absent
// (or not strings) in the reply.
type Suggestion struct {
	Name              *string `json:"name,omitempty"`
	Description       *string `json:"description,omitempty"`
	SystemInstruction *string `json:"systemInstruction,omitempty"`
}

// Empty reports whether no field was suggested.
func (s Suggestion) Empty() bool {
	return s.Name == nil && s.Description == nil && s.SystemInstruction == nil
}

// suggestionSchema constrains the structured reply to three string fields.
var suggestionSchema = &Schema{
	Type: "OBJECT",
	Properties: map[string]*Schema{
		"name":              {Type: "STRING"},
		"description":       {Type: "STRING"},
		"systemInstruction": {Type: "STRING"},
	},
	Required: []string{"name", "description", "systemInstruction"},
}

// SuggestionService expands a short description into agent details.
type SuggestionService struct {
	client  Client
	model   string
	timeout time.Duration
	log     *logging.Logger
}

// NewSuggestionService creates a suggestion service. An empty model selects
// the flash model.
func NewSuggestionService(client Client, model string, timeout time.Duration, log *logging.Logger) *SuggestionService {
	if model == "" {
		model = string(domain.ModelFlash)
	}
	return &SuggestionService{
		client:  client,
		model:   model,
		timeout: timeout,
		log:     log.Sub("suggest"),
	}
}

func suggestionPrompt(description string) string {
	return `Based on the following short description: "` + description + `", suggest a professional name, ` +
		"a more detailed description, and a comprehensive system instruction for an AI agent. " +
		"Return the result in a clean JSON format with keys: name, description, systemInstruction."
}

// SuggestAgentDetails asks the model for a name, description and system
// instruction. Any failure yields an empty Suggestion.
func (s *SuggestionService) SuggestAgentDetails(ctx context.Context, description string) Suggestion {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	resp, err := s.client.Complete(ctx, CompletionRequest{
		Model:            s.model,
		Messages:         []Message{{Role: RoleUser, Content: suggestionPrompt(description)}},
		ResponseMIMEType: "application/json",
		ResponseSchema:   suggestionSchema,
	})
	if err != nil {
		s.log.Warn().Err(err).Msg("suggestion failed")
		return Suggestion{}
	}

	sug, err := ParseSuggestion(resp.Content)
	if err != nil {
		s.log.Warn().Err(err).Msg("suggestion reply is not a JSON object")
		return Suggestion{}
	}
	return sug
}

// ParseSuggestion decodes a JSON object, keeping only the known keys whose
// values are strings. Blank input decodes as an empty object.
func ParseSuggestion(text string) (Suggestion, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Suggestion{}, nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return Suggestion{}, err
	}

	var sug Suggestion
	sug.Name = stringField(raw, "name")
	sug.Description = stringField(raw, "description")
	sug.SystemInstruction = stringField(raw, "systemInstruction")
	return sug, nil
}

func stringField(raw map[string]json.RawMessage, key string) *string {
	v, ok := raw[key]
	if !ok {
		return nil
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return nil
	}
	return &s
}
