package llm

import (
	"context"
	"time"

	"github.com/soyeahso/agentstudio/internal/domain"
	"github.com/soyeahso/agentstudio/internal/logging"
)

const (
	ChatTemperature = 0.7
	ChatTopP        = 0.9

	// EmptyReply stands in for a provider reply with no text.
	EmptyReply = "I'm sorry, I couldn't generate a response."

	// defaultFailure is used when a failure carries no message.
	defaultFailure = "Failed to communicate with Gemini"
)

// ChatService sends one chat turn on behalf of an agent.
type ChatService struct {
	client  Client
	timeout time.Duration
	log     *logging.Logger
}

// NewChatService creates a chat service. A positive timeout bounds each call.
func NewChatService(client Client, timeout time.Duration, log *logging.Logger) *ChatService {
	return &ChatService{
		client:  client,
		timeout: timeout,
		log:     log.Sub("chat"),
	}
}

// ChatWithAgent sends history followed by input under the agent's system
// instruction and model. It never fails: errors come back as "Error: <message>".
func (s *ChatService) ChatWithAgent(ctx context.Context, agent domain.Agent, history []domain.Message, input string) string {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	msgs := make([]Message, 0, len(history)+1)
	for _, m := range history {
		msgs = append(msgs, Message{Role: string(m.Role), Content: m.Content})
	}
	msgs = append(msgs, Message{Role: RoleUser, Content: input})

	resp, err := s.client.Complete(ctx, CompletionRequest{
		Model:       string(agent.Model),
		System:      agent.SystemInstruction,
		Messages:    msgs,
		Temperature: ptr(ChatTemperature),
		TopP:        ptr(ChatTopP),
	})
	if err != nil {
		s.log.Warn().Err(err).Str("agent", agent.ID).Str("model", string(agent.Model)).Msg("chat failed")
		msg := err.Error()
		if msg == "" {
			msg = defaultFailure
		}
		return "Error: " + msg
	}

	s.log.Debug().
		Str("agent", agent.ID).
		Int("inputTokens", resp.Usage.InputTokens).
		Int("outputTokens", resp.Usage.OutputTokens).
		Dur("duration", resp.Duration).
		Msg("chat reply")

	if resp.Content == "" {
		return EmptyReply
	}
	return resp.Content
}
