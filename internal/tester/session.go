// Package tester runs an ephemeral chat with one agent. Messages live only
// in memory for the lifetime of the session.
package tester

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/soyeahso/agentstudio/internal/domain"
	"github.com/soyeahso/agentstudio/internal/logging"
)

var (
	// ErrEmptyInput is returned for blank or whitespace-only input.
	ErrEmptyInput = errors.New("message is empty")
	// ErrSendInFlight is returned while a previous send has not resolved.
	ErrSendInFlight = errors.New("a message is already being sent")
	// ErrReset is returned by Send when the session was reset before the
	// reply arrived. The reply is discarded.
	ErrReset = errors.New("session was reset before the reply arrived")
)

// Chatter produces the agent's reply to one turn. It always returns text.
type Chatter interface {
	ChatWithAgent(ctx context.Context, agent domain.Agent, history []domain.Message, input string) string
}

// State is a snapshot of a session.
type State struct {
	Agent    domain.Agent     `json:"agent"`
	Messages []domain.Message `json:"messages"`
	Loading  bool             `json:"loading"`
}

// Session is one chat with an agent.
type Session struct {
	agent domain.Agent
	chat  Chatter

	mu         sync.Mutex
	messages   []domain.Message
	loading    bool
	generation uint64

	inflight *semaphore.Weighted
	now      func() time.Time
	log      *logging.Logger
}

// Option configures a Session.
type Option func(*Session)

// WithClock sets the time source for message timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// New opens an empty session with agent.
func New(agent domain.Agent, chat Chatter, log *logging.Logger, opts ...Option) *Session {
	s := &Session{
		agent:    agent,
		chat:     chat,
		messages: []domain.Message{},
		inflight: semaphore.NewWeighted(1),
		now:      time.Now,
		log:      log.Sub("tester").With("agent", agent.ID),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Agent returns the agent under test.
func (s *Session) Agent() domain.Agent {
	return s.agent
}

// Messages returns a copy of the transcript in order.
func (s *Session) Messages() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Message{}, s.messages...)
}

// Loading reports whether a send is outstanding.
func (s *Session) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// State returns a snapshot of the session.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		Agent:    s.agent,
		Messages: append([]domain.Message{}, s.messages...),
		Loading:  s.loading,
	}
}

// Send appends text as a user message, asks the agent for a reply with the
// earlier transcript as history, and appends the reply. It returns the reply
// message. Blank input and overlapping sends are rejected without changes.
func (s *Session) Send(ctx context.Context, text string) (domain.Message, error) {
	if strings.TrimSpace(text) == "" {
		return domain.Message{}, ErrEmptyInput
	}
	if !s.inflight.TryAcquire(1) {
		return domain.Message{}, ErrSendInFlight
	}
	defer s.inflight.Release(1)

	userMsg, err := s.newMessage(domain.RoleUser, text)
	if err != nil {
		return domain.Message{}, err
	}

	s.mu.Lock()
	gen := s.generation
	history := append([]domain.Message(nil), s.messages...)
	s.messages = append(s.messages, userMsg)
	s.loading = true
	s.mu.Unlock()

	s.log.Debug().Int("history", len(history)).Msg("sending message")
	reply := s.chat.ChatWithAgent(ctx, s.agent, history, text)

	replyMsg, err := s.newMessage(domain.RoleModel, reply)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if err != nil {
		return domain.Message{}, err
	}
	if s.generation != gen {
		s.log.Debug().Msg("dropping reply for a reset session")
		return domain.Message{}, ErrReset
	}
	s.messages = append(s.messages, replyMsg)
	return replyMsg, nil
}

// Reset clears the transcript. An outstanding send keeps the session loading
// until it resolves, and its reply is dropped.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.messages = []domain.Message{}
	s.log.Debug().Msg("session reset")
}

func (s *Session) newMessage(role domain.Role, content string) (domain.Message, error) {
	now := s.now()
	id, err := uuid.NewV7()
	if err != nil {
		return domain.Message{}, fmt.Errorf("generating message id: %w", err)
	}
	return domain.Message{
		ID:        id.String(),
		Role:      role,
		Content:   content,
		Timestamp: now.UnixMilli(),
	}, nil
}
