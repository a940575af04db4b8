// Package agents owns the in-memory agent collection and writes every change
// through to the store.
package agents

import (
	"context"
	"fmt"
	"sync"

	"github.com/soyeahso/agentstudio/internal/domain"
	"github.com/soyeahso/agentstudio/internal/hooks"
	"github.com/soyeahso/agentstudio/internal/logging"
)

// Store persists the full agent collection.
type Store interface {
	Load() ([]domain.Agent, error)
	Save(agents []domain.Agent) error
}

// ConfirmFunc is asked before a delete; returning false cancels it.
type ConfirmFunc func(agent domain.Agent) bool

// ChangeFunc is called after every successful mutation of the collection.
type ChangeFunc func(agents []domain.Agent)

// Controller holds the agent collection. Each mutation is followed by a save
// of the whole collection.
type Controller struct {
	mu       sync.Mutex
	agents   []domain.Agent
	store    Store
	hooks    *hooks.Manager
	onChange []ChangeFunc
	log      *logging.Logger
}

// New loads the collection from store. hooks may be nil.
func New(store Store, hm *hooks.Manager, log *logging.Logger) (*Controller, error) {
	agents, err := store.Load()
	if err != nil {
		return nil, err
	}
	return &Controller{
		agents: agents,
		store:  store,
		hooks:  hm,
		log:    log.Sub("agents"),
	}, nil
}

// OnChange registers fn to run after each mutation.
func (c *Controller) OnChange(fn ChangeFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = append(c.onChange, fn)
}

// List returns a copy of the collection in display order.
func (c *Controller) List() []domain.Agent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.Agent(nil), c.agents...)
}

// Get returns the agent with the given id.
func (c *Controller) Get(id string) (domain.Agent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := domain.Index(c.agents, id)
	if i < 0 {
		return domain.Agent{}, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	return c.agents[i], nil
}

// Create prepends agent to the collection.
func (c *Controller) Create(ctx context.Context, agent domain.Agent) error {
	c.mu.Lock()
	next := make([]domain.Agent, 0, len(c.agents)+1)
	next = append(next, agent)
	next = append(next, c.agents...)
	snapshot, err := c.commit(next)
	c.mu.Unlock()
	if err != nil {
		return err
	}

	c.log.Info().Str("id", agent.ID).Str("name", agent.Name).Msg("agent created")
	c.emit(ctx, hooks.EventAgentCreated, agent)
	c.notify(snapshot)
	return nil
}

// Update replaces the agent with the same id in place. An unknown id is
// created instead.
func (c *Controller) Update(ctx context.Context, agent domain.Agent) error {
	c.mu.Lock()
	i := domain.Index(c.agents, agent.ID)
	if i < 0 {
		c.mu.Unlock()
		return c.Create(ctx, agent)
	}
	next := append([]domain.Agent(nil), c.agents...)
	next[i] = agent
	snapshot, err := c.commit(next)
	c.mu.Unlock()
	if err != nil {
		return err
	}

	c.log.Info().Str("id", agent.ID).Str("name", agent.Name).Msg("agent updated")
	c.emit(ctx, hooks.EventAgentUpdated, agent)
	c.notify(snapshot)
	return nil
}

// Delete removes the agent with id once confirm approves. It reports whether
// the delete was confirmed. A nil confirm counts as approval; a confirmed
// delete of an unknown id leaves the collection unchanged but still saves.
func (c *Controller) Delete(ctx context.Context, id string, confirm ConfirmFunc) (bool, error) {
	c.mu.Lock()
	i := domain.Index(c.agents, id)
	target := domain.Agent{ID: id}
	if i >= 0 {
		target = c.agents[i]
	}
	c.mu.Unlock()

	if confirm != nil && !confirm(target) {
		c.log.Debug().Str("id", id).Msg("delete cancelled")
		return false, nil
	}

	c.mu.Lock()
	next := make([]domain.Agent, 0, len(c.agents))
	for _, a := range c.agents {
		if a.ID != id {
			next = append(next, a)
		}
	}
	removed := len(next) != len(c.agents)
	snapshot, err := c.commit(next)
	c.mu.Unlock()
	if err != nil {
		return true, err
	}

	if removed {
		c.log.Info().Str("id", id).Str("name", target.Name).Msg("agent deleted")
		c.emit(ctx, hooks.EventAgentDeleted, target)
	}
	c.notify(snapshot)
	return true, nil
}

// commit saves next and installs it as the collection. Callers hold c.mu.
func (c *Controller) commit(next []domain.Agent) ([]domain.Agent, error) {
	if err := c.store.Save(next); err != nil {
		return nil, fmt.Errorf("saving agents: %w", err)
	}
	c.agents = next
	return append([]domain.Agent(nil), next...), nil
}

func (c *Controller) notify(snapshot []domain.Agent) {
	c.mu.Lock()
	fns := append([]ChangeFunc(nil), c.onChange...)
	c.mu.Unlock()
	for _, fn := range fns {
		fn(snapshot)
	}
}

// emit runs hooks in the background so a slow hook command never holds up a save.
func (c *Controller) emit(ctx context.Context, event string, agent domain.Agent) {
	if c.hooks == nil {
		return
	}
	c.hooks.EmitAsync(context.WithoutCancel(ctx), event, map[string]any{
		"id":    agent.ID,
		"name":  agent.Name,
		"model": string(agent.Model),
	})
}
