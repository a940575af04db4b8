// Package editor holds the draft behind the agent form: field edits,
// auto-suggestion and validated submit.
package editor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/soyeahso/agentstudio/internal/domain"
	"github.com/soyeahso/agentstudio/internal/llm"
	"github.com/soyeahso/agentstudio/internal/logging"
)

var (
	// ErrDescriptionRequired is returned by AutoSuggest on an empty description.
	ErrDescriptionRequired = errors.New("a description is required to suggest details")
	// ErrSuggestionPending is returned while another suggestion is in flight.
	ErrSuggestionPending = errors.New("a suggestion is already in progress")
)

// Mode tells whether the editor creates a new agent or edits an existing one.
type Mode string

const (
	ModeCreate Mode = "create"
	ModeEdit   Mode = "edit"
)

// Draft is the in-progress form state.
type Draft struct {
	Name              string           `json:"name"`
	Description       string           `json:"description"`
	SystemInstruction string           `json:"systemInstruction"`
	Model             domain.ModelType `json:"model"`
	Icon              string           `json:"icon"`
}

// Patch is a partial draft update. Nil fields are left untouched.
type Patch struct {
	Name              *string           `json:"name,omitempty"`
	Description       *string           `json:"description,omitempty"`
	SystemInstruction *string           `json:"systemInstruction,omitempty"`
	Model             *domain.ModelType `json:"model,omitempty"`
	Icon              *string           `json:"icon,omitempty"`
}

// Suggester proposes agent details from a short description.
type Suggester interface {
	SuggestAgentDetails(ctx context.Context, description string) llm.Suggestion
}

// SaveFunc persists the submitted agent.
type SaveFunc func(ctx context.Context, agent domain.Agent) error

// Editor owns one draft for the lifetime of an editor view.
type Editor struct {
	mu       sync.Mutex
	draft    Draft
	original *domain.Agent

	suggester  Suggester
	inflight   *semaphore.Weighted
	suggesting atomic.Bool
	save       SaveFunc
	now        func() time.Time
	log        *logging.Logger
}

// Option configures an Editor.
type Option func(*Editor)

// WithClock sets the time source used for new agents.
func WithClock(now func() time.Time) Option {
	return func(e *Editor) { e.now = now }
}

// New opens an editor. With a nil agent the draft starts from defaults;
// otherwise the agent's fields are merged over the defaults.
func New(agent *domain.Agent, suggester Suggester, save SaveFunc, log *logging.Logger, opts ...Option) *Editor {
	e := &Editor{
		draft: Draft{
			Model: domain.ModelFlash,
			Icon:  domain.DefaultIcon,
		},
		suggester: suggester,
		inflight:  semaphore.NewWeighted(1),
		save:      save,
		now:       time.Now,
		log:       log.Sub("editor"),
	}
	for _, opt := range opts {
		opt(e)
	}

	if agent != nil {
		a := *agent
		e.original = &a
		e.draft.Name = a.Name
		e.draft.Description = a.Description
		e.draft.SystemInstruction = a.SystemInstruction
		if a.Model != "" {
			e.draft.Model = a.Model
		}
		if a.Icon != "" {
			e.draft.Icon = a.Icon
		}
	}
	return e
}

// Mode reports whether the editor creates or edits.
func (e *Editor) Mode() Mode {
	if e.original != nil {
		return ModeEdit
	}
	return ModeCreate
}

// Original returns the agent being edited, or nil.
func (e *Editor) Original() *domain.Agent {
	if e.original == nil {
		return nil
	}
	a := *e.original
	return &a
}

// Draft returns a copy of the current draft.
func (e *Editor) Draft() Draft {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.draft
}

// Suggesting reports whether a suggestion is in flight.
func (e *Editor) Suggesting() bool {
	return e.suggesting.Load()
}

// Apply merges p into the draft and returns the result. An unknown model is
// rejected and nothing is applied.
func (e *Editor) Apply(p Patch) (Draft, error) {
	if p.Model != nil && !p.Model.Valid() {
		return e.Draft(), fmt.Errorf("unknown model %q", *p.Model)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if p.Name != nil {
		e.draft.Name = *p.Name
	}
	if p.Description != nil {
		e.draft.Description = *p.Description
	}
	if p.SystemInstruction != nil {
		e.draft.SystemInstruction = *p.SystemInstruction
	}
	if p.Model != nil {
		e.draft.Model = *p.Model
	}
	if p.Icon != nil {
		e.draft.Icon = *p.Icon
	}
	return e.draft, nil
}

// AutoSuggest fills the draft from the suggestion service. Only the fields
// present in the reply are merged; a failed suggestion changes nothing.
func (e *Editor) AutoSuggest(ctx context.Context) (llm.Suggestion, error) {
	desc := e.Draft().Description
	if desc == "" {
		return llm.Suggestion{}, ErrDescriptionRequired
	}
	if !e.inflight.TryAcquire(1) {
		return llm.Suggestion{}, ErrSuggestionPending
	}
	e.suggesting.Store(true)
	defer func() {
		e.suggesting.Store(false)
		e.inflight.Release(1)
	}()

	e.log.Debug().Str("description", desc).Msg("requesting suggestion")
	sug := e.suggester.SuggestAgentDetails(ctx, desc)
	if sug.Empty() {
		e.log.Info().Msg("no suggestion returned")
		return sug, nil
	}

	e.mu.Lock()
	if sug.Name != nil {
		e.draft.Name = *sug.Name
	}
	if sug.Description != nil {
		e.draft.Description = *sug.Description
	}
	if sug.SystemInstruction != nil {
		e.draft.SystemInstruction = *sug.SystemInstruction
	}
	e.mu.Unlock()
	return sug, nil
}

// Submit validates the draft and saves it. It returns false without saving
// when the name or system instruction is empty. Editing keeps the original
// id and creation time; creating assigns a new id and the current time.
func (e *Editor) Submit(ctx context.Context) (bool, domain.Agent, error) {
	d := e.Draft()
	if d.Name == "" || d.SystemInstruction == "" {
		e.log.Debug().Msg("submit rejected: name and system instruction are required")
		return false, domain.Agent{}, nil
	}

	agent := domain.Agent{
		Name:              d.Name,
		Description:       d.Description,
		SystemInstruction: d.SystemInstruction,
		Model:             d.Model,
		Icon:              d.Icon,
	}
	if e.original != nil {
		agent.ID = e.original.ID
		agent.CreatedAt = e.original.CreatedAt
	} else {
		id, err := uuid.NewV7()
		if err != nil {
			return false, domain.Agent{}, fmt.Errorf("generating agent id: %w", err)
		}
		agent.ID = id.String()
		agent.CreatedAt = e.now().UnixMilli()
	}

	if err := e.save(ctx, agent); err != nil {
		return false, domain.Agent{}, err
	}
	return true, agent, nil
}
