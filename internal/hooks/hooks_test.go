package hooks

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/soyeahso/agentstudio/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testManager() *Manager {
	m := NewManager(logging.New(nil, "silent"))
	m.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return m
}

func nop(context.Context, Payload) error { return nil }

func TestEmitRunsHandlersInOrder(t *testing.T) {
	m := testManager()

	var order []string
	var got Payload
	m.On(EventAgentCreated, "first", func(_ context.Context, p Payload) error {
		order = append(order, "first")
		got = p
		return nil
	})
	m.On(EventAgentCreated, "failing", func(context.Context, Payload) error {
		order = append(order, "failing")
		return errors.New("handler broke")
	})
	m.On(EventAgentCreated, "last", func(context.Context, Payload) error {
		order = append(order, "last")
		return nil
	})

	m.Emit(context.Background(), EventAgentCreated, map[string]any{"id": "a1", "name": "Code Mentor"})

	assert.Equal(t, []string{"first", "failing", "last"}, order)
	assert.Equal(t, Payload{
		Event: EventAgentCreated,
		Time:  1700000000000,
		Data:  map[string]any{"id": "a1", "name": "Code Mentor"},
	}, got)
}

func TestEmitWithoutHandlers(t *testing.T) {
	m := testManager()
	m.Emit(context.Background(), EventGatewayStop, nil)
	m.EmitAsync(context.Background(), EventGatewayStop, nil)
	m.Wait()
}

func TestOff(t *testing.T) {
	m := testManager()

	var calls []string
	record := func(name string) Handler {
		return func(context.Context, Payload) error {
			calls = append(calls, name)
			return nil
		}
	}
	m.On(EventGatewayStart, "remove-me", record("remove-me"))
	m.On(EventGatewayStart, "keep-me", record("keep-me"))
	m.On(EventGatewayStart, "remove-me", record("remove-me"))

	assert.Equal(t, 2, m.Off(EventGatewayStart, "remove-me"))
	assert.Zero(t, m.Off(EventGatewayStart, "remove-me"))
	assert.Zero(t, m.Off(EventSessionEnd, "keep-me"))

	m.Emit(context.Background(), EventGatewayStart, nil)
	assert.Equal(t, []string{"keep-me"}, calls)
}

func TestEmitAsyncAndWait(t *testing.T) {
	m := testManager()

	var count atomic.Int32
	release := make(chan struct{})
	var started sync.WaitGroup
	started.Add(2)
	for _, name := range []string{"a", "b"} {
		m.On(EventAgentDeleted, name, func(context.Context, Payload) error {
			started.Done()
			<-release
			count.Add(1)
			return nil
		})
	}

	m.EmitAsync(context.Background(), EventAgentDeleted, nil)

	// Both handlers run concurrently; neither can finish until both started.
	started.Wait()
	assert.Zero(t, count.Load())
	close(release)

	m.Wait()
	assert.Equal(t, int32(2), count.Load())
}

func TestEmitSnapshotsHandlers(t *testing.T) {
	m := testManager()

	var added bool
	m.On(EventSessionStart, "adder", func(context.Context, Payload) error {
		if !added {
			added = true
			m.On(EventSessionStart, "late", func(context.Context, Payload) error {
				t.Error("handler registered during dispatch ran in the same dispatch")
				return nil
			})
		}
		return nil
	})

	m.Emit(context.Background(), EventSessionStart, nil)
	assert.Equal(t, 2, m.Count(EventSessionStart))
}

func TestCountAndEvents(t *testing.T) {
	m := testManager()
	assert.Zero(t, m.Count(EventGatewayStart))
	assert.Empty(t, m.Events())

	m.On(EventGatewayStart, "h1", nop)
	m.On(EventGatewayStart, "h2", nop)
	m.On(EventAgentCreated, "h3", nop)
	m.On(EventSessionEnd, "h4", nop)
	m.Off(EventSessionEnd, "h4")

	assert.Equal(t, 2, m.Count(EventGatewayStart))
	assert.Equal(t, []string{EventAgentCreated, EventGatewayStart}, m.Events())
}

func TestAllEvents(t *testing.T) {
	require.Len(t, AllEvents, 7)
	seen := map[string]bool{}
	for _, e := range AllEvents {
		assert.False(t, seen[e], "duplicate event %s", e)
		seen[e] = true
	}
}
