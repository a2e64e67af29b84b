package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"wordwarden/internal/store"
	"wordwarden/internal/warden"
)

func TestGameConfigDigestDefaults(t *testing.T) {
	cfg := validConfig()

	game, err := gameConfig(cfg)
	require.NoError(t, err)

	assert.Equal(t, warden.DefaultClues, game.Clues)
	assert.Equal(t, warden.DefaultRevealText(), game.RevealText,
		"the stock digest is the only one whose plaintext is known")
	assert.Contains(t, game.SuccessText, warden.DefaultRevealText())
	assert.Equal(t, 600*time.Millisecond, game.Delay)
}

func TestGameConfigCustomDigestKeepsSecret(t *testing.T) {
	cfg := validConfig()
	cfg.secretDigest = "49baa2b1ac2301a7836cc57318ed77f912f9ff0c32aefd768bed9ec83b6e3ced"

	game, err := gameConfig(cfg)
	require.NoError(t, err)

	assert.Empty(t, game.RevealText, "an unknown digest cannot be spelled out")
	assert.Equal(t, "The gate swings open.", game.SuccessText)
}

func TestGameConfigExactRevealsWord(t *testing.T) {
	cfg := validConfig()
	cfg.strategy = "exact"
	cfg.secret = "debuggle"

	game, err := gameConfig(cfg)
	require.NoError(t, err)

	assert.Equal(t, "Secret word is debuggle.", game.RevealText)
}

func TestUnloadedHubDropsTraffic(t *testing.T) {
	game, err := gameConfig(validConfig())
	require.NoError(t, err)

	h := newHub(context.Background(), "abcd1234", game, store.NewMemory(), nil, zap.NewNop())

	// Unload the hub without ever starting its run loop, as the reaper
	// does once the session idles out.
	close(h.done)

	finished := make(chan struct{})
	go func() {
		defer close(finished)
		h.enqueue(clientEvent{msg: ClientMessage{Type: "guess", Text: "hello"}})
		assert.False(t, h.addClient(&Client{send: make(chan any, 1)}))
	}()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("traffic to an unloaded session blocked")
	}
}

func TestLoadCluesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clues.txt")
	require.NoError(t, os.WriteFile(path, []byte("first clue\n\n  second clue  \n"), 0o644))

	cfg := validConfig()
	cfg.cluesFile = path

	clues, err := loadClues(cfg)
	require.NoError(t, err)
	assert.Equal(t, warden.ClueSequence{"first clue", "second clue"}, clues)
}

func TestLoadCluesMissingFile(t *testing.T) {
	cfg := validConfig()
	cfg.cluesFile = filepath.Join(t.TempDir(), "nope.txt")

	_, err := loadClues(cfg)
	assert.Error(t, err)
}
