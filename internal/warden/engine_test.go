package warden

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"wordwarden/internal/store"
)

// manualScheduler queues deferred work so tests decide exactly when
// the delayed response runs.
type manualScheduler struct {
	pending []func()
}

func (s *manualScheduler) After(_ time.Duration, fn func()) {
	s.pending = append(s.pending, fn)
}

func (s *manualScheduler) runAll() {
	for len(s.pending) > 0 {
		fn := s.pending[0]
		s.pending = s.pending[1:]
		fn()
	}
}

type fixedAnswerer struct {
	answer string
	err    error
	calls  int
}

func (f *fixedAnswerer) GenerateAnswer(_ context.Context, _ string) (string, error) {
	f.calls++
	return f.answer, f.err
}

func testConfig() Config {
	return Config{
		Secret: SecretDefinition{
			Kind:        StrategyHashedDigest,
			DigestHex:   misspelledDigest, // sha256("debuggel")
			MaxAttempts: 7,
		},
		Clues:          ClueSequence{"one", "two", "three", "four", "five", "six", "seven"},
		SuccessText:    "The gate swings open.",
		RevealText:     "Secret word is debuggel.",
		FallbackText:   "The magic fizzles.",
		SolveOnExhaust: true,
	}
}

// buildEngine wires one engine, scheduler and store together.
func buildEngine(t *testing.T, cfg Config, answers AnswerProvider) (*Engine, *manualScheduler, Store) {
	t.Helper()
	st := store.NewMemory()
	sched := &manualScheduler{}
	gw := NewGateway(st, "session:test:", zap.NewNop())
	e := NewEngine(context.Background(), cfg, gw, sched, answers, zap.NewNop())
	return e, sched, st
}

// playRound submits a guess, runs the delayed response, and confirms
// the reveal so the engine returns to idle. Returns the response text.
func playRound(t *testing.T, e *Engine, sched *manualScheduler, guess string) string {
	t.Helper()
	require.True(t, e.Submit(guess), "guess %q should be accepted", guess)
	sched.runAll()

	sess := e.Snapshot()
	last := sess.Messages[len(sess.Messages)-1]
	require.Equal(t, RoleResponder, last.Role)
	require.True(t, last.Revealing)
	require.True(t, e.RevealComplete(last.ID))
	return last.Content
}

func TestSubmitRejectsEmptyInput(t *testing.T) {
	e, _, _ := buildEngine(t, testConfig(), nil)

	assert.False(t, e.Submit(""))
	assert.False(t, e.Submit("   \t  "))

	sess := e.Snapshot()
	assert.Empty(t, sess.Messages)
	assert.Zero(t, sess.AttemptCount)
}

func TestSubmitWhileLockedIsDropped(t *testing.T) {
	e, sched, _ := buildEngine(t, testConfig(), nil)

	require.True(t, e.Submit("first"))

	// Locked: response still pending.
	assert.False(t, e.Submit("second"))
	sess := e.Snapshot()
	assert.Len(t, sess.Messages, 1)
	assert.Zero(t, sess.AttemptCount)

	sched.runAll()

	// Revealing: response appended but not yet confirmed.
	assert.False(t, e.Submit("third"))
	sess = e.Snapshot()
	assert.Len(t, sess.Messages, 2)
	assert.Equal(t, 1, sess.AttemptCount)

	// Wrong ids leave the reveal in place.
	assert.False(t, e.RevealComplete("nonsense"))
	assert.True(t, sess.Locked())

	last := e.Snapshot().Messages[1]
	require.True(t, e.RevealComplete(last.ID))
	assert.False(t, e.RevealComplete(last.ID), "completion is one-shot")
	assert.True(t, e.Submit("fourth"))
}

func TestUserMessageVisibleBeforeResponse(t *testing.T) {
	e, sched, _ := buildEngine(t, testConfig(), nil)

	require.True(t, e.Submit(" Hello there "))

	sess := e.Snapshot()
	require.Len(t, sess.Messages, 1)
	assert.Equal(t, RoleUser, sess.Messages[0].Role)
	assert.Equal(t, "Hello there", sess.Messages[0].Content)
	assert.False(t, sess.Messages[0].Revealing)
	assert.Zero(t, sess.AttemptCount, "attempts only advance with the response")

	sched.runAll()
	sess = e.Snapshot()
	require.Len(t, sess.Messages, 2)
	assert.Equal(t, 1, sess.AttemptCount)
}

func TestSevenAttemptDigestScenario(t *testing.T) {
	e, sched, _ := buildEngine(t, testConfig(), nil)

	wrong := []string{"hello", "world", "test", "a", "b", "c"}
	for i, guess := range wrong {
		text := playRound(t, e, sched, guess)
		assert.Equal(t, "Clue: "+e.cfg.Clues[i], text)
		assert.Equal(t, i+1, e.Snapshot().AttemptCount)
		assert.False(t, e.Snapshot().Solved)
	}

	text := playRound(t, e, sched, "debuggel")
	assert.Equal(t, "The gate swings open.", text)

	sess := e.Snapshot()
	assert.True(t, sess.Solved)
	assert.Equal(t, 7, sess.AttemptCount)
	assert.True(t, e.Closed())
	assert.False(t, e.Submit("one more"))
}

func TestExhaustionClosesSession(t *testing.T) {
	cfg := testConfig()
	cfg.Secret.MaxAttempts = 10
	cfg.SolveOnExhaust = false
	e, sched, _ := buildEngine(t, cfg, nil)

	for i := 1; i <= 9; i++ {
		playRound(t, e, sched, fmt.Sprintf("wrong-%d", i))
	}

	text := playRound(t, e, sched, "wrong-10")
	assert.Equal(t, cfg.Clues.Terminal(cfg.RevealText), text)

	sess := e.Snapshot()
	assert.False(t, sess.Solved, "exhaustion does not mark solved under this policy")
	assert.Equal(t, 10, sess.AttemptCount)
	assert.True(t, e.Closed())

	// Closed sessions ignore further guesses entirely.
	assert.False(t, e.Submit("late guess"))
	assert.Equal(t, 10, e.Snapshot().AttemptCount)
}

func TestSolveOnExhaustPolicy(t *testing.T) {
	cfg := testConfig()
	cfg.Secret.MaxAttempts = 2
	cfg.SolveOnExhaust = true
	e, sched, _ := buildEngine(t, cfg, nil)

	playRound(t, e, sched, "first wrong")
	playRound(t, e, sched, "second wrong")

	assert.True(t, e.Snapshot().Solved)
	assert.True(t, e.Closed())
}

func TestAttemptCountNeverExceedsMax(t *testing.T) {
	cfg := testConfig()
	cfg.Secret.MaxAttempts = 3
	e, sched, _ := buildEngine(t, cfg, nil)

	for i := 0; i < 10; i++ {
		if !e.Submit(fmt.Sprintf("guess-%d", i)) {
			continue
		}
		sched.runAll()
		if id := e.Snapshot().revealingID(); id != "" {
			e.RevealComplete(id)
		}
	}

	assert.LessOrEqual(t, e.Snapshot().AttemptCount, 3)
	assert.Equal(t, 3, e.Snapshot().AttemptCount)
}

func TestClueClampBeyondSequence(t *testing.T) {
	cfg := testConfig()
	cfg.Clues = ClueSequence{"only", "pair"}
	cfg.Secret.MaxAttempts = 5
	e, sched, _ := buildEngine(t, cfg, nil)

	assert.Equal(t, "Clue: only", playRound(t, e, sched, "w1"))
	assert.Equal(t, "Clue: pair", playRound(t, e, sched, "w2"))
	assert.Equal(t, "Clue: pair", playRound(t, e, sched, "w3"))
	assert.Equal(t, "Clue: pair", playRound(t, e, sched, "w4"))
}

func TestTriggerPhraseGeneratesAnswer(t *testing.T) {
	cfg := testConfig()
	cfg.Secret = SecretDefinition{
		Kind:        StrategyTriggerPhrase,
		Phrase:      "open sesame",
		MaxAttempts: 7,
	}
	answers := &fixedAnswerer{answer: "A pointer is an address, nothing more."}
	e, sched, _ := buildEngine(t, cfg, answers)

	text := playRound(t, e, sched, "Open Sesame")
	assert.Equal(t, "A pointer is an address, nothing more.", text)
	assert.Equal(t, 1, answers.calls)

	sess := e.Snapshot()
	assert.False(t, sess.Solved, "trigger match does not end the game")
	assert.Equal(t, 1, sess.AttemptCount)
	assert.False(t, e.Closed())
}

func TestTriggerPhraseProviderFailureUsesFallback(t *testing.T) {
	cfg := testConfig()
	cfg.Secret = SecretDefinition{
		Kind:        StrategyTriggerPhrase,
		Phrase:      "open sesame",
		MaxAttempts: 7,
	}
	answers := &fixedAnswerer{err: errors.New("model unavailable")}
	e, sched, _ := buildEngine(t, cfg, answers)

	text := playRound(t, e, sched, "open sesame")
	assert.Equal(t, cfg.FallbackText, text)
	assert.Equal(t, 1, e.Snapshot().AttemptCount)
}

func TestTriggerPhraseNoProviderNoFallbackUnlocksSilently(t *testing.T) {
	cfg := testConfig()
	cfg.Secret = SecretDefinition{
		Kind:        StrategyTriggerPhrase,
		Phrase:      "open sesame",
		MaxAttempts: 7,
	}
	cfg.FallbackText = ""
	e, sched, _ := buildEngine(t, cfg, nil)

	require.True(t, e.Submit("open sesame"))
	sched.runAll()

	sess := e.Snapshot()
	assert.Len(t, sess.Messages, 1, "no response appended")
	assert.Zero(t, sess.AttemptCount, "uncounted: attempts advance with the response")
	assert.False(t, sess.Locked(), "the lock is always released")
	assert.True(t, e.Submit("try again"))
}

func TestPersistenceRoundTrip(t *testing.T) {
	cfg := testConfig()
	st := store.NewMemory()
	sched := &manualScheduler{}
	gw := NewGateway(st, "session:abc:", zap.NewNop())
	e := NewEngine(context.Background(), cfg, gw, sched, nil, zap.NewNop())

	playRound(t, e, sched, "hello")
	playRound(t, e, sched, "world")
	before := e.Snapshot()

	// Fresh engine, same store: state survives the reload.
	restored := NewEngine(context.Background(), cfg,
		NewGateway(st, "session:abc:", zap.NewNop()),
		&manualScheduler{}, nil, zap.NewNop())
	after := restored.Snapshot()

	assert.Equal(t, before.Messages, after.Messages)
	assert.Equal(t, before.AttemptCount, after.AttemptCount)
	assert.Equal(t, before.Solved, after.Solved)
	assert.Equal(t, before.HintIndex, after.HintIndex)
	assert.False(t, after.Locked())
}

func TestRestoreClearsInterruptedReveal(t *testing.T) {
	cfg := testConfig()
	st := store.NewMemory()
	sched := &manualScheduler{}
	gw := NewGateway(st, "session:abc:", zap.NewNop())
	e := NewEngine(context.Background(), cfg, gw, sched, nil, zap.NewNop())

	// Stop mid-reveal: response appended, completion never signalled.
	require.True(t, e.Submit("hello"))
	sched.runAll()
	require.True(t, e.Snapshot().Locked())

	restored := NewEngine(context.Background(), cfg,
		NewGateway(st, "session:abc:", zap.NewNop()),
		&manualScheduler{}, nil, zap.NewNop())

	sess := restored.Snapshot()
	assert.False(t, sess.Locked(), "a restored session never starts locked")
	for _, m := range sess.Messages {
		assert.False(t, m.Revealing)
	}
	assert.True(t, restored.Submit("next guess"))
}

func TestCorruptedStoreYieldsDefaults(t *testing.T) {
	st := store.NewMemory()
	require.NoError(t, st.Set("session:abc:messages", "{definitely not json"))
	require.NoError(t, st.Set("session:abc:attempts", "\"three\""))

	e := NewEngine(context.Background(), testConfig(),
		NewGateway(st, "session:abc:", zap.NewNop()),
		&manualScheduler{}, nil, zap.NewNop())

	sess := e.Snapshot()
	assert.Empty(t, sess.Messages)
	assert.Zero(t, sess.AttemptCount)
	assert.False(t, sess.Solved)
}

func TestConfigureTakesEffectAndPersists(t *testing.T) {
	cfg := testConfig()
	cfg.Secret = SecretDefinition{
		Kind:        StrategyExactWord,
		Word:        "before",
		MaxAttempts: 7,
	}
	st := store.NewMemory()
	sched := &manualScheduler{}
	e := NewEngine(context.Background(), cfg,
		NewGateway(st, "session:abc:", zap.NewNop()), sched, nil, zap.NewNop())

	e.Configure(10, "after")
	assert.Equal(t, 10, e.MaxAttempts())

	// Old secret no longer matches, new one wins.
	playRound(t, e, sched, "before")
	assert.False(t, e.Snapshot().Solved)
	playRound(t, e, sched, "After")
	assert.True(t, e.Snapshot().Solved)

	// A reloaded session sees the persisted edits.
	restored := NewEngine(context.Background(), cfg,
		NewGateway(st, "session:abc:", zap.NewNop()),
		&manualScheduler{}, nil, zap.NewNop())
	assert.Equal(t, 10, restored.MaxAttempts())
}

func TestSnapshotAccessorsWorkOnValues(t *testing.T) {
	e, sched, _ := buildEngine(t, testConfig(), nil)

	// Accessors chain directly off Snapshot(), no variable needed.
	assert.False(t, e.Snapshot().Locked())
	assert.Empty(t, e.Snapshot().revealingID())
	assert.Equal(t, PhaseIdle, e.Snapshot().Phase())

	require.True(t, e.Submit("hello"))
	assert.True(t, e.Snapshot().Locked())
	assert.Equal(t, PhaseLocked, e.Snapshot().Phase())

	sched.runAll()
	assert.NotEmpty(t, e.Snapshot().revealingID())
	assert.False(t, e.Snapshot().Closed(7))
}

func TestOnChangeFiresPerTransition(t *testing.T) {
	e, sched, _ := buildEngine(t, testConfig(), nil)

	var fired int
	e.OnChange = func() { fired++ }

	require.True(t, e.Submit("hello"))
	assert.Equal(t, 1, fired, "user message append")

	sched.runAll()
	assert.Equal(t, 2, fired, "response append")

	id := e.Snapshot().revealingID()
	require.True(t, e.RevealComplete(id))
	assert.Equal(t, 3, fired, "reveal completion")
}
