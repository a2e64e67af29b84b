package warden

import (
	"encoding/json"

	"go.uber.org/zap"
)

// Store is the persistent keyed namespace the gateway writes through.
// Get reports absence via its second return rather than an error.
type Store interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
}

// Persisted field keys, namespaced per session by the gateway prefix.
const (
	keyMessages  = "messages"
	keyAttempts  = "attempts"
	keySolved    = "solved"
	keyHintIndex = "hint_index"

	keyConfMaxAttempts = "config:max_attempts"
	keyConfSecret      = "config:secret"
)

// Gateway wraps the store with JSON serialization and fail-soft
// semantics: a missing or unparseable value loads as the default, a
// failed write is logged and skipped. The in-memory session stays
// authoritative either way; persistence trouble is never surfaced to
// the player and never fatal.
type Gateway struct {
	store  Store
	prefix string
	log    *zap.Logger
}

// NewGateway returns a gateway whose keys are all prefixed, so several
// sessions can share one store.
func NewGateway(store Store, prefix string, log *zap.Logger) *Gateway {
	return &Gateway{store: store, prefix: prefix, log: log}
}

// Load reads and decodes one value, falling back to def when the key
// is absent, the read fails, or the stored text does not parse.
func Load[T any](g *Gateway, key string, def T) T {
	raw, ok, err := g.store.Get(g.prefix + key)
	if err != nil {
		g.log.Warn("failed to read persisted value",
			zap.String("key", g.prefix+key), zap.Error(err))
		return def
	}
	if !ok {
		return def
	}
	var out T
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		g.log.Warn("persisted value did not parse, using default",
			zap.String("key", g.prefix+key), zap.Error(err))
		return def
	}
	return out
}

// Save encodes and writes one value. Failures are logged and dropped.
func Save[T any](g *Gateway, key string, v T) {
	raw, err := json.Marshal(v)
	if err != nil {
		g.log.Warn("failed to encode value for persistence",
			zap.String("key", g.prefix+key), zap.Error(err))
		return
	}
	if err := g.store.Set(g.prefix+key, string(raw)); err != nil {
		g.log.Warn("failed to persist value",
			zap.String("key", g.prefix+key), zap.Error(err))
	}
}

// LoadSession restores a session from the store, or returns a fresh
// one when nothing (valid) was persisted. A message left mid-reveal by
// a previous process loads with its reveal flag cleared, so a restored
// session never starts out locked.
func (g *Gateway) LoadSession() *Session {
	s := &Session{
		Messages:     Load(g, keyMessages, []Message(nil)),
		AttemptCount: Load(g, keyAttempts, 0),
		Solved:       Load(g, keySolved, false),
		HintIndex:    Load(g, keyHintIndex, 0),
		phase:        PhaseIdle,
	}
	for i := range s.Messages {
		s.Messages[i].Revealing = false
	}
	return s
}

// SaveSession persists every session field. Called after each
// successful state mutation.
func (g *Gateway) SaveSession(s *Session) {
	Save(g, keyMessages, s.Messages)
	Save(g, keyAttempts, s.AttemptCount)
	Save(g, keySolved, s.Solved)
	Save(g, keyHintIndex, s.HintIndex)
}
