package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/soyeahso/agentstudio/internal/domain"
	"github.com/soyeahso/agentstudio/internal/logging"
)

// ErrCorrupt is returned by Load when the stored collection cannot be decoded
// and the store is configured to fail on corruption.
var ErrCorrupt = errors.New("stored agent collection is corrupt")

// CorruptPolicy selects what Load does with an undecodable blob.
type CorruptPolicy string

const (
	CorruptFail  CorruptPolicy = "fail"
	CorruptSeed  CorruptPolicy = "seed"
	CorruptEmpty CorruptPolicy = "empty"
)

// DefaultKey is the storage key holding the serialized collection.
const DefaultKey = "gemini_agents"

// AgentStore owns the durable agent collection: one JSON array under one key.
type AgentStore struct {
	kv        KV
	key       string
	onCorrupt CorruptPolicy
	now       func() time.Time
	log       *logging.Logger
}

// Option configures an AgentStore.
type Option func(*AgentStore)

// WithKey overrides the storage key.
func WithKey(key string) Option {
	return func(s *AgentStore) {
		if key != "" {
			s.key = key
		}
	}
}

// WithCorruptPolicy sets the corrupt-blob policy.
func WithCorruptPolicy(p CorruptPolicy) Option {
	return func(s *AgentStore) {
		if p != "" {
			s.onCorrupt = p
		}
	}
}

// WithClock sets the time source used to stamp seed templates.
func WithClock(now func() time.Time) Option {
	return func(s *AgentStore) {
		s.now = now
	}
}

// NewAgentStore creates an agent store on top of kv.
func NewAgentStore(kv KV, log *logging.Logger, opts ...Option) *AgentStore {
	s := &AgentStore{
		kv:        kv,
		key:       DefaultKey,
		onCorrupt: CorruptFail,
		now:       time.Now,
		log:       log.Sub("agentstore"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load returns the persisted collection. The first load ever (no stored
// value) installs and persists the seed templates so later loads are stable.
func (s *AgentStore) Load() ([]domain.Agent, error) {
	data, ok, err := s.kv.Get(s.key)
	if err != nil {
		return nil, fmt.Errorf("loading agents: %w", err)
	}
	if !ok {
		s.log.Info().Str("key", s.key).Msg("no saved agents, installing seed templates")
		return s.install(domain.SeedTemplates(s.now().UnixMilli()))
	}

	var agents []domain.Agent
	if err := json.Unmarshal(data, &agents); err != nil {
		switch s.onCorrupt {
		case CorruptSeed:
			s.log.Warn().Err(err).Msg("corrupt agent collection, reinstalling seed templates")
			return s.install(domain.SeedTemplates(s.now().UnixMilli()))
		case CorruptEmpty:
			s.log.Warn().Err(err).Msg("corrupt agent collection, starting empty")
			return s.install([]domain.Agent{})
		default:
			return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
	}
	if agents == nil {
		agents = []domain.Agent{}
	}
	return agents, nil
}

// Save serializes the full collection and overwrites the stored value.
func (s *AgentStore) Save(agents []domain.Agent) error {
	if agents == nil {
		agents = []domain.Agent{}
	}
	data, err := json.Marshal(agents)
	if err != nil {
		return fmt.Errorf("encoding agents: %w", err)
	}
	if err := s.kv.Put(s.key, data); err != nil {
		return fmt.Errorf("saving agents: %w", err)
	}
	s.log.Debug().Int("count", len(agents)).Msg("agents saved")
	return nil
}

// Reset replaces the stored collection with fresh seed templates.
func (s *AgentStore) Reset() ([]domain.Agent, error) {
	return s.install(domain.SeedTemplates(s.now().UnixMilli()))
}

func (s *AgentStore) install(agents []domain.Agent) ([]domain.Agent, error) {
	if err := s.Save(agents); err != nil {
		return nil, err
	}
	return agents, nil
}
