package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/soyeahso/agentstudio/internal/agents"
	"github.com/soyeahso/agentstudio/internal/config"
	"github.com/soyeahso/agentstudio/internal/hooks"
	"github.com/soyeahso/agentstudio/internal/llm"
	"github.com/soyeahso/agentstudio/internal/logging"
	"github.com/soyeahso/agentstudio/internal/store"
	"github.com/soyeahso/agentstudio/internal/studio"
)

// app is the wiring shared by every command that touches the collection.
type app struct {
	cfg     config.Config
	log     *logging.Logger
	hooks   *hooks.Manager
	store   *store.AgentStore
	agents  *agents.Controller
	chat    *llm.ChatService
	suggest *llm.SuggestionService
	closers []io.Closer
}

// openApp loads config, opens the store and loads the collection. The Gemini
// client is built only when withLLM is set, so offline commands work without
// credentials.
func openApp(ctx context.Context, withLLM bool) (*app, error) {
	a, err := openStore()
	if err != nil {
		return nil, err
	}

	a.agents, err = agents.New(a.store, a.hooks, a.log)
	if err != nil {
		a.Close()
		if errors.Is(err, store.ErrCorrupt) {
			return nil, fmt.Errorf("%w (set store.onCorrupt to seed or empty, or run `agentstudio agent reset`)", err)
		}
		return nil, err
	}

	if withLLM {
		if a.cfg.LLM.Auth != "adc" && a.cfg.LLM.APIKey == "" {
			a.Close()
			return nil, fmt.Errorf("%w (set llm.apiKey or GEMINI_API_KEY)", llm.ErrNoAPIKey)
		}
		client, err := llm.NewFromConfig(ctx, a.cfg.LLM)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("configuring Gemini client: %w", err)
		}
		timeout := time.Duration(a.cfg.LLM.TimeoutSeconds) * time.Second
		a.chat = llm.NewChatService(client, timeout, a.log)
		a.suggest = llm.NewSuggestionService(client, a.cfg.LLM.SuggestModel, timeout, a.log)
	}
	return a, nil
}

// openStore loads config and opens the agent store without reading the
// collection.
func openStore() (a *app, err error) {
	cfg, err := config.Load(paths.Config)
	if err != nil {
		return nil, err
	}
	if issues := config.Validate(&cfg); len(issues) > 0 {
		msgs := make([]string, len(issues))
		for i, issue := range issues {
			msgs[i] = issue.String()
		}
		return nil, fmt.Errorf("config validation failed: %s", strings.Join(msgs, "; "))
	}

	a = &app{cfg: cfg}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	level := logLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	l, logCloser, err := logging.NewWithOptions(logging.Options{
		Level: level,
		Style: cfg.Logging.ConsoleStyle,
		File:  cfg.Logging.File,
	})
	if err != nil {
		return nil, err
	}
	a.log = l
	a.closers = append(a.closers, logCloser)

	if err := paths.EnsureDirs(); err != nil {
		return nil, fmt.Errorf("creating data directories: %w", err)
	}

	kv, kvCloser, err := store.OpenBackend(cfg.Store.Backend, paths.StorePath(cfg.Store), a.log)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, kvCloser)

	a.store = store.NewAgentStore(kv, a.log,
		store.WithKey(cfg.Store.Key),
		store.WithCorruptPolicy(store.CorruptPolicy(cfg.Store.OnCorrupt)),
	)

	a.hooks = hooks.NewManager(a.log)
	if n := a.hooks.RegisterConfig(cfg.Hooks); n > 0 {
		a.log.Debug().Int("hooks", n).Msg("registered config hooks")
	}
	return a, nil
}

// newStudio starts a UI session over the shared services.
func (a *app) newStudio() *studio.Studio {
	deps := studio.Deps{
		Agents: a.agents,
		Hooks:  a.hooks,
		Log:    a.log,
	}
	if a.chat != nil {
		deps.Chat = a.chat
	}
	if a.suggest != nil {
		deps.Suggester = a.suggest
	}
	return studio.New(deps)
}

// Close waits for pending hooks and releases the store and log file.
func (a *app) Close() {
	if a.hooks != nil {
		a.hooks.Wait()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i].Close()
	}
	a.closers = nil
}
