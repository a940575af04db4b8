package editor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/soyeahso/agentstudio/internal/domain"
	"github.com/soyeahso/agentstudio/internal/llm"
	"github.com/soyeahso/agentstudio/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func silentLog() *logging.Logger {
	return logging.New(nil, "silent")
}

func str(s string) *string { return &s }

type suggesterFunc func(ctx context.Context, description string) llm.Suggestion

func (f suggesterFunc) SuggestAgentDetails(ctx context.Context, description string) llm.Suggestion {
	return f(ctx, description)
}

// recorder collects saved agents.
type recorder struct {
	mu    sync.Mutex
	saved []domain.Agent
	err   error
}

func (r *recorder) save(_ context.Context, a domain.Agent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.saved = append(r.saved, a)
	return nil
}

var fixedNow = time.UnixMilli(1700000000123)

func newEditor(agent *domain.Agent, s Suggester, rec *recorder) *Editor {
	if s == nil {
		s = suggesterFunc(func(context.Context, string) llm.Suggestion { return llm.Suggestion{} })
	}
	return New(agent, s, rec.save, silentLog(), WithClock(func() time.Time { return fixedNow }))
}

func TestNew_Defaults(t *testing.T) {
	e := newEditor(nil, nil, &recorder{})
	assert.Equal(t, ModeCreate, e.Mode())
	assert.Nil(t, e.Original())
	assert.Equal(t, Draft{Model: domain.ModelFlash, Icon: "🤖"}, e.Draft())
	assert.False(t, e.Suggesting())
}

func TestNew_FromAgent(t *testing.T) {
	a := domain.SeedTemplates(5)[0]
	e := newEditor(&a, nil, &recorder{})
	assert.Equal(t, ModeEdit, e.Mode())
	assert.Equal(t, Draft{
		Name:              a.Name,
		Description:       a.Description,
		SystemInstruction: a.SystemInstruction,
		Model:             domain.ModelPro,
		Icon:              "💻",
	}, e.Draft())
}

func TestNew_AgentMissingModelAndIconUsesDefaults(t *testing.T) {
	e := newEditor(&domain.Agent{ID: "x", Name: "X"}, nil, &recorder{})
	d := e.Draft()
	assert.Equal(t, domain.ModelFlash, d.Model)
	assert.Equal(t, domain.DefaultIcon, d.Icon)
}

func TestApply(t *testing.T) {
	e := newEditor(nil, nil, &recorder{})
	pro := domain.ModelPro

	d, err := e.Apply(Patch{Name: str("Chef"), Model: &pro})
	require.NoError(t, err)
	assert.Equal(t, "Chef", d.Name)
	assert.Equal(t, domain.ModelPro, d.Model)
	assert.Equal(t, "🤖", d.Icon)

	d, err = e.Apply(Patch{Icon: str("🎵")})
	require.NoError(t, err)
	assert.Equal(t, "Chef", d.Name)
	assert.Equal(t, "🎵", d.Icon)
}

func TestApply_UnknownModel(t *testing.T) {
	e := newEditor(nil, nil, &recorder{})
	bad := domain.ModelType("gpt")
	_, err := e.Apply(Patch{Name: str("N"), Model: &bad})
	assert.Error(t, err)
	assert.Empty(t, e.Draft().Name)
}

func TestSubmit_RequiresNameAndInstruction(t *testing.T) {
	tests := []struct {
		name  string
		patch Patch
	}{
		{"both empty", Patch{}},
		{"no instruction", Patch{Name: str("N")}},
		{"no name", Patch{SystemInstruction: str("S")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			e := newEditor(nil, nil, rec)
			_, err := e.Apply(tt.patch)
			require.NoError(t, err)

			ok, _, err := e.Submit(context.Background())
			require.NoError(t, err)
			assert.False(t, ok)
			assert.Empty(t, rec.saved)
		})
	}
}

func TestSubmit_Create(t *testing.T) {
	rec := &recorder{}
	e := newEditor(nil, nil, rec)
	_, err := e.Apply(Patch{Name: str("Chef"), SystemInstruction: str("You cook."), Description: str("d")})
	require.NoError(t, err)

	ok, agent, err := e.Submit(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, rec.saved, 1)
	assert.Equal(t, agent, rec.saved[0])

	id, err := uuid.Parse(agent.ID)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), id.Version())
	assert.Equal(t, fixedNow.UnixMilli(), agent.CreatedAt)
	assert.Equal(t, domain.ModelFlash, agent.Model)
	assert.Equal(t, "🤖", agent.Icon)
}

func TestSubmit_EditKeepsIdentity(t *testing.T) {
	rec := &recorder{}
	orig := domain.Agent{ID: "keep", Name: "Old", SystemInstruction: "S", Model: domain.ModelPro, Icon: "🧠", CreatedAt: 99}
	e := newEditor(&orig, nil, rec)
	_, err := e.Apply(Patch{Name: str("New")})
	require.NoError(t, err)

	ok, agent, err := e.Submit(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "keep", agent.ID)
	assert.Equal(t, int64(99), agent.CreatedAt)
	assert.Equal(t, "New", agent.Name)
	assert.Equal(t, domain.ModelPro, agent.Model)
}

func TestSubmit_SaveError(t *testing.T) {
	rec := &recorder{err: errors.New("disk full")}
	e := newEditor(nil, nil, rec)
	_, _ = e.Apply(Patch{Name: str("N"), SystemInstruction: str("S")})

	ok, _, err := e.Submit(context.Background())
	assert.False(t, ok)
	assert.Error(t, err)
}

func TestAutoSuggest_RequiresDescription(t *testing.T) {
	called := false
	e := newEditor(nil, suggesterFunc(func(context.Context, string) llm.Suggestion {
		called = true
		return llm.Suggestion{}
	}), &recorder{})

	_, err := e.AutoSuggest(context.Background())
	assert.ErrorIs(t, err, ErrDescriptionRequired)
	assert.False(t, called)
}

func TestAutoSuggest_MergesPresentKeys(t *testing.T) {
	var gotDesc string
	e := newEditor(nil, suggesterFunc(func(_ context.Context, d string) llm.Suggestion {
		gotDesc = d
		return llm.Suggestion{Name: str("Chef Bot"), SystemInstruction: str("You are a chef.")}
	}), &recorder{})
	_, _ = e.Apply(Patch{Description: str("cooking"), Icon: str("🎨")})

	sug, err := e.AutoSuggest(context.Background())
	require.NoError(t, err)
	assert.False(t, sug.Empty())
	assert.Equal(t, "cooking", gotDesc)

	d := e.Draft()
	assert.Equal(t, "Chef Bot", d.Name)
	assert.Equal(t, "cooking", d.Description, "absent key leaves field alone")
	assert.Equal(t, "You are a chef.", d.SystemInstruction)
	assert.Equal(t, "🎨", d.Icon)
}

func TestAutoSuggest_FailureMergesNothing(t *testing.T) {
	e := newEditor(nil, nil, &recorder{})
	_, _ = e.Apply(Patch{Name: str("Mine"), Description: str("d")})

	sug, err := e.AutoSuggest(context.Background())
	require.NoError(t, err)
	assert.True(t, sug.Empty())
	assert.Equal(t, "Mine", e.Draft().Name)
}

func TestAutoSuggest_SinglePending(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	e := newEditor(nil, suggesterFunc(func(context.Context, string) llm.Suggestion {
		close(started)
		<-release
		return llm.Suggestion{Name: str("First")}
	}), &recorder{})
	_, _ = e.Apply(Patch{Description: str("d")})

	done := make(chan error, 1)
	go func() {
		_, err := e.AutoSuggest(context.Background())
		done <- err
	}()
	<-started

	assert.True(t, e.Suggesting())
	_, err := e.AutoSuggest(context.Background())
	assert.ErrorIs(t, err, ErrSuggestionPending)

	close(release)
	require.NoError(t, <-done)
	assert.False(t, e.Suggesting())
	assert.Equal(t, "First", e.Draft().Name)
}
