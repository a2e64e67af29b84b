// Package store provides the persistent keyed namespace game sessions
// are saved into: get/set by string key, durable across restarts.
package store

import (
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
	"go.uber.org/zap"
)

// Pebble is a key/value store backed by a Pebble database on disk.
type Pebble struct {
	db  *pebble.DB
	log *zap.Logger
}

// Open opens (or creates) a Pebble database at the given path.
func Open(path string, log *zap.Logger) (*Pebble, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open store at %s: %w", path, err)
	}
	log.Info("store opened", zap.String("path", path))
	return &Pebble{db: db, log: log}, nil
}

// Close closes the underlying database.
func (p *Pebble) Close() error {
	return p.db.Close()
}

// Get returns the value for key, with ok false when the key is absent.
func (p *Pebble) Get(key string) (string, bool, error) {
	v, closer, err := p.db.Get([]byte(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	defer closer.Close()
	return string(v), true, nil
}

// Set writes the value for key synchronously, so a crash right after a
// guess never loses the transcript.
func (p *Pebble) Set(key, value string) error {
	return p.db.Set([]byte(key), []byte(value), pebble.Sync)
}
