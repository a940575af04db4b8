// Package studio ties the agent controller, view router, editor and chat
// tester together into the state of one UI session.
package studio

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/soyeahso/agentstudio/internal/agents"
	"github.com/soyeahso/agentstudio/internal/domain"
	"github.com/soyeahso/agentstudio/internal/editor"
	"github.com/soyeahso/agentstudio/internal/hooks"
	"github.com/soyeahso/agentstudio/internal/llm"
	"github.com/soyeahso/agentstudio/internal/logging"
	"github.com/soyeahso/agentstudio/internal/tester"
	"github.com/soyeahso/agentstudio/internal/view"
)

// ErrWrongView is returned when an editor or tester action is used while
// that screen is not open.
var ErrWrongView = errors.New("action not available in the current view")

// Deps are the shared services a Studio drives.
type Deps struct {
	Agents    *agents.Controller
	Chat      tester.Chatter
	Suggester editor.Suggester
	Hooks     *hooks.Manager // optional
	Log       *logging.Logger
}

// EditorState is a snapshot of the open editor.
type EditorState struct {
	Mode       editor.Mode   `json:"mode"`
	Draft      editor.Draft  `json:"draft"`
	Suggesting bool          `json:"suggesting"`
	Original   *domain.Agent `json:"original,omitempty"`
}

// State is a snapshot of the whole session.
type State struct {
	View     domain.ViewState `json:"view"`
	Selected *domain.Agent    `json:"selected"`
	Editor   *EditorState     `json:"editor,omitempty"`
	Tester   *tester.State    `json:"tester,omitempty"`
}

// Studio is the state of one UI session. The editor exists only while the
// editor view is open and the chat session only while the tester view is.
type Studio struct {
	id   string
	deps Deps
	log  *logging.Logger

	mu     sync.Mutex
	router *view.Router
	editor *editor.Editor
	chat   *tester.Session
}

// New creates a session on the dashboard.
func New(deps Deps) *Studio {
	id := uuid.Must(uuid.NewV7()).String()
	return &Studio{
		id:     id,
		deps:   deps,
		log:    deps.Log.Sub("studio").With("studio", id),
		router: view.NewRouter(deps.Log),
	}
}

// ID identifies the session in logs and hook payloads.
func (s *Studio) ID() string {
	return s.id
}

// Agents returns the shared agent controller.
func (s *Studio) Agents() *agents.Controller {
	return s.deps.Agents
}

// State returns a snapshot of the session.
func (s *Studio) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := State{View: s.router.View(), Selected: s.router.Selected()}
	if s.editor != nil {
		st.Editor = &EditorState{
			Mode:       s.editor.Mode(),
			Draft:      s.editor.Draft(),
			Suggesting: s.editor.Suggesting(),
			Original:   s.editor.Original(),
		}
	}
	if s.chat != nil {
		ts := s.chat.State()
		st.Tester = &ts
	}
	return st
}

// CreateNew opens an empty editor from any view.
func (s *Studio) CreateNew(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeChat(ctx)
	s.router.CreateNew()
	s.editor = s.newEditor(nil)
}

// Edit opens the editor on the agent with id.
func (s *Studio) Edit(ctx context.Context, id string) error {
	agent, err := s.deps.Agents.Get(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.router.Edit(&agent); err != nil {
		return err
	}
	s.editor = s.newEditor(&agent)
	return nil
}

// Test opens a fresh chat with the agent with id.
func (s *Studio) Test(ctx context.Context, id string) error {
	agent, err := s.deps.Agents.Get(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.router.Test(&agent); err != nil {
		return err
	}
	s.chat = tester.New(agent, s.deps.Chat, s.deps.Log)
	s.emit(ctx, hooks.EventSessionStart, map[string]any{
		"studio": s.id,
		"agent":  agent.ID,
		"name":   agent.Name,
	})
	return nil
}

// Back leaves the tester and discards its transcript.
func (s *Studio) Back(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.router.Back(); err != nil {
		return err
	}
	s.closeChat(ctx)
	return nil
}

// Cancel leaves the editor without saving.
func (s *Studio) Cancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.router.Cancel(); err != nil {
		return err
	}
	s.editor = nil
	return nil
}

// Dashboard returns to the dashboard from any view, discarding any open
// editor draft or chat transcript.
func (s *Studio) Dashboard(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeChat(ctx)
	s.editor = nil
	// Navigating to the dashboard is valid from every view.
	_ = s.router.Navigate(domain.ViewDashboard)
}

// UpdateDraft applies a field patch to the open editor.
func (s *Studio) UpdateDraft(p editor.Patch) (editor.Draft, error) {
	ed, err := s.openEditor()
	if err != nil {
		return editor.Draft{}, err
	}
	return ed.Apply(p)
}

// Suggest runs auto-suggest on the open editor. The session lock is not held
// while the model is working.
func (s *Studio) Suggest(ctx context.Context) (llm.Suggestion, error) {
	ed, err := s.openEditor()
	if err != nil {
		return llm.Suggestion{}, err
	}
	return ed.AutoSuggest(ctx)
}

// Submit validates and saves the draft. On success the editor closes and the
// dashboard is shown; an invalid draft returns false and changes nothing.
func (s *Studio) Submit(ctx context.Context) (bool, domain.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.editor == nil {
		return false, domain.Agent{}, fmt.Errorf("%w: no editor is open", ErrWrongView)
	}

	ok, agent, err := s.editor.Submit(ctx)
	if err != nil || !ok {
		return ok, agent, err
	}
	if err := s.router.Saved(); err != nil {
		return true, agent, err
	}
	s.editor = nil
	return true, agent, nil
}

// Send posts a chat message in the open tester. The session lock is not held
// while waiting for the reply.
func (s *Studio) Send(ctx context.Context, text string) (domain.Message, error) {
	chat, err := s.openChat()
	if err != nil {
		return domain.Message{}, err
	}
	return chat.Send(ctx, text)
}

// ResetChat clears the open tester transcript.
func (s *Studio) ResetChat() error {
	chat, err := s.openChat()
	if err != nil {
		return err
	}
	chat.Reset()
	return nil
}

// Close ends the session, closing any open chat.
func (s *Studio) Close(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeChat(ctx)
	s.editor = nil
}

func (s *Studio) openEditor() (*editor.Editor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.editor == nil {
		return nil, fmt.Errorf("%w: no editor is open", ErrWrongView)
	}
	return s.editor, nil
}

func (s *Studio) openChat() (*tester.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.chat == nil {
		return nil, fmt.Errorf("%w: no chat is open", ErrWrongView)
	}
	return s.chat, nil
}

func (s *Studio) newEditor(agent *domain.Agent) *editor.Editor {
	return editor.New(agent, s.deps.Suggester, s.deps.Agents.Update, s.deps.Log)
}

// closeChat drops the chat session. Callers hold s.mu.
func (s *Studio) closeChat(ctx context.Context) {
	if s.chat == nil {
		return
	}
	agent := s.chat.Agent()
	s.emit(ctx, hooks.EventSessionEnd, map[string]any{
		"studio":   s.id,
		"agent":    agent.ID,
		"name":     agent.Name,
		"messages": len(s.chat.Messages()),
	})
	s.chat = nil
}

func (s *Studio) emit(ctx context.Context, event string, data map[string]any) {
	if s.deps.Hooks == nil {
		return
	}
	s.deps.Hooks.EmitAsync(context.WithoutCancel(ctx), event, data)
}
