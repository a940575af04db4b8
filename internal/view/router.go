// Package view tracks which screen is active and which agent it shows.
package view

import (
	"errors"
	"fmt"

	"github.com/soyeahso/agentstudio/internal/domain"
	"github.com/soyeahso/agentstudio/internal/logging"
)

// ErrInvalidTransition is returned when an action is not allowed from the
// current view. The router state is left unchanged.
var ErrInvalidTransition = errors.New("invalid view transition")

// Router is the screen state machine. The zero state is the dashboard with
// no agent selected. It is not safe for concurrent use.
type Router struct {
	view     domain.ViewState
	selected *domain.Agent
	log      *logging.Logger
}

// NewRouter creates a router on the dashboard.
func NewRouter(log *logging.Logger) *Router {
	return &Router{
		view: domain.ViewDashboard,
		log:  log.Sub("view"),
	}
}

// View returns the active view.
func (r *Router) View() domain.ViewState {
	return r.view
}

// Selected returns a copy of the selected agent, or nil.
func (r *Router) Selected() *domain.Agent {
	if r.selected == nil {
		return nil
	}
	a := *r.selected
	return &a
}

// CreateNew opens an empty editor. Allowed from any view.
func (r *Router) CreateNew() {
	r.set(domain.ViewEditor, nil)
}

// Edit opens the editor on agent. Dashboard only.
func (r *Router) Edit(agent *domain.Agent) error {
	if agent == nil {
		return fmt.Errorf("%w: edit requires an agent", ErrInvalidTransition)
	}
	if err := r.require("edit", domain.ViewDashboard); err != nil {
		return err
	}
	r.set(domain.ViewEditor, agent)
	return nil
}

// Test opens the chat tester on agent. Dashboard only.
func (r *Router) Test(agent *domain.Agent) error {
	if agent == nil {
		return fmt.Errorf("%w: test requires an agent", ErrInvalidTransition)
	}
	if err := r.require("test", domain.ViewDashboard); err != nil {
		return err
	}
	r.set(domain.ViewTester, agent)
	return nil
}

// Saved returns from the editor after a successful save.
func (r *Router) Saved() error {
	if err := r.require("saved", domain.ViewEditor); err != nil {
		return err
	}
	r.set(domain.ViewDashboard, nil)
	return nil
}

// Cancel leaves the editor without saving.
func (r *Router) Cancel() error {
	if err := r.require("cancel", domain.ViewEditor); err != nil {
		return err
	}
	r.set(domain.ViewDashboard, nil)
	return nil
}

// Back leaves the chat tester.
func (r *Router) Back() error {
	if err := r.require("back", domain.ViewTester); err != nil {
		return err
	}
	r.set(domain.ViewDashboard, nil)
	return nil
}

// Navigate handles sidebar navigation: the dashboard is reachable from
// anywhere, and the editor target starts a new agent. The tester needs an
// agent and cannot be navigated to.
func (r *Router) Navigate(target domain.ViewState) error {
	switch target {
	case domain.ViewDashboard:
		r.set(domain.ViewDashboard, nil)
		return nil
	case domain.ViewEditor:
		r.CreateNew()
		return nil
	default:
		return fmt.Errorf("%w: cannot navigate to %s", ErrInvalidTransition, target)
	}
}

func (r *Router) require(action string, from domain.ViewState) error {
	if r.view != from {
		return fmt.Errorf("%w: %s is only allowed from %s, current view is %s",
			ErrInvalidTransition, action, from, r.view)
	}
	return nil
}

func (r *Router) set(view domain.ViewState, agent *domain.Agent) {
	from := r.view
	r.view = view
	if agent != nil {
		a := *agent
		r.selected = &a
	} else {
		r.selected = nil
	}

	ev := r.log.Debug().Str("from", string(from)).Str("to", string(view))
	if agent != nil {
		ev = ev.Str("agent", agent.ID)
	}
	ev.Msg("view changed")
}
