package tester

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/soyeahso/agentstudio/internal/domain"
	"github.com/soyeahso/agentstudio/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chatCall struct {
	agent   domain.Agent
	history []domain.Message
	input   string
}

// fakeChat replies with reply, optionally blocking until release is closed.
type fakeChat struct {
	mu      sync.Mutex
	calls   []chatCall
	reply   string
	started chan struct{}
	release chan struct{}
}

func (f *fakeChat) ChatWithAgent(_ context.Context, agent domain.Agent, history []domain.Message, input string) string {
	f.mu.Lock()
	f.calls = append(f.calls, chatCall{agent: agent, history: history, input: input})
	f.mu.Unlock()
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	return f.reply
}

func testAgent() domain.Agent {
	return domain.Agent{ID: "a1", Name: "Mentor", SystemInstruction: "teach", Model: domain.ModelFlash}
}

func newSession(chat Chatter) *Session {
	return New(testAgent(), chat, logging.New(nil, "silent"),
		WithClock(func() time.Time { return time.UnixMilli(1700000000000) }))
}

func TestNew_Empty(t *testing.T) {
	s := newSession(&fakeChat{})
	assert.Empty(t, s.Messages())
	assert.NotNil(t, s.Messages())
	assert.False(t, s.Loading())
	assert.Equal(t, "a1", s.Agent().ID)
}

func TestSend_AppendsUserAndReply(t *testing.T) {
	chat := &fakeChat{reply: "hello!"}
	s := newSession(chat)

	reply, err := s.Send(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleModel, reply.Role)
	assert.Equal(t, "hello!", reply.Content)

	msgs := s.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, domain.RoleUser, msgs[0].Role)
	assert.Equal(t, "hi", msgs[0].Content)
	assert.Equal(t, int64(1700000000000), msgs[0].Timestamp)
	assert.Equal(t, reply, msgs[1])
	assert.NotEqual(t, msgs[0].ID, msgs[1].ID)
	assert.False(t, s.Loading())

	require.Len(t, chat.calls, 1)
	assert.Empty(t, chat.calls[0].history)
	assert.Equal(t, "hi", chat.calls[0].input)
	assert.Equal(t, "teach", chat.calls[0].agent.SystemInstruction)
}

func TestSend_HistoryExcludesNewMessage(t *testing.T) {
	chat := &fakeChat{reply: "r"}
	s := newSession(chat)

	_, err := s.Send(context.Background(), "one")
	require.NoError(t, err)
	_, err = s.Send(context.Background(), "two")
	require.NoError(t, err)

	require.Len(t, chat.calls, 2)
	hist := chat.calls[1].history
	require.Len(t, hist, 2)
	assert.Equal(t, "one", hist[0].Content)
	assert.Equal(t, "r", hist[1].Content)
	assert.Equal(t, "two", chat.calls[1].input)
	assert.Len(t, s.Messages(), 4)
}

func TestSend_ErrorTextIsAReply(t *testing.T) {
	s := newSession(&fakeChat{reply: "Error: quota exceeded"})
	reply, err := s.Send(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "Error: quota exceeded", reply.Content)
	assert.Len(t, s.Messages(), 2)
}

func TestSend_EmptyInput(t *testing.T) {
	chat := &fakeChat{}
	s := newSession(chat)

	for _, in := range []string{"", "   ", "\n\t"} {
		_, err := s.Send(context.Background(), in)
		assert.ErrorIs(t, err, ErrEmptyInput)
	}
	assert.Empty(t, s.Messages())
	assert.Empty(t, chat.calls)
}

func TestSend_InFlightRejected(t *testing.T) {
	chat := &fakeChat{reply: "done", started: make(chan struct{}, 1), release: make(chan struct{})}
	s := newSession(chat)

	done := make(chan error, 1)
	go func() {
		_, err := s.Send(context.Background(), "first")
		done <- err
	}()
	<-chat.started

	assert.True(t, s.Loading())
	_, err := s.Send(context.Background(), "second")
	assert.ErrorIs(t, err, ErrSendInFlight)
	require.Len(t, s.Messages(), 1)

	close(chat.release)
	require.NoError(t, <-done)
	assert.False(t, s.Loading())
	assert.Len(t, s.Messages(), 2)
}

func TestReset(t *testing.T) {
	s := newSession(&fakeChat{reply: "r"})
	_, err := s.Send(context.Background(), "hi")
	require.NoError(t, err)

	s.Reset()
	assert.Empty(t, s.Messages())
	assert.False(t, s.Loading())
}

func TestReset_DropsLateReply(t *testing.T) {
	chat := &fakeChat{reply: "late", started: make(chan struct{}, 1), release: make(chan struct{})}
	s := newSession(chat)

	done := make(chan error, 1)
	go func() {
		_, err := s.Send(context.Background(), "first")
		done <- err
	}()
	<-chat.started

	s.Reset()
	assert.Empty(t, s.Messages())
	assert.True(t, s.Loading(), "send is still outstanding")

	close(chat.release)
	assert.ErrorIs(t, <-done, ErrReset)
	assert.Empty(t, s.Messages())
	assert.False(t, s.Loading())
}

func TestState(t *testing.T) {
	s := newSession(&fakeChat{reply: "r"})
	_, err := s.Send(context.Background(), "hi")
	require.NoError(t, err)

	st := s.State()
	assert.Equal(t, "a1", st.Agent.ID)
	assert.Len(t, st.Messages, 2)
	assert.False(t, st.Loading)
}
