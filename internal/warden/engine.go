package warden

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Scheduler defers work and delivers it back onto the goroutine that
// owns the session. The artificial pause between an accepted guess and
// its response runs through here.
type Scheduler interface {
	After(d time.Duration, fn func())
}

// AnswerProvider produces a free-form prose answer once the trigger
// phrase has been matched. It may fail; the engine recovers with a
// fixed fallback line.
type AnswerProvider interface {
	GenerateAnswer(ctx context.Context, prompt string) (string, error)
}

// Config carries everything about one game that is data rather than
// state: the secret, the clue sequence, the canned texts, and timing.
type Config struct {
	Secret SecretDefinition
	Clues  ClueSequence

	// SuccessText is the response when the secret is spoken.
	SuccessText string
	// RevealText, when set, is appended to the terminal message so an
	// exhausted player still learns the answer.
	RevealText string
	// FallbackText replaces the answer provider's output when the
	// provider is missing or fails. Empty means "unlock silently".
	FallbackText string
	// Delay is the deliberation pause before each response.
	Delay time.Duration
	// SolveOnExhaust marks the session solved when attempts run out.
	// Either way the session closes; this only affects the flag.
	SolveOnExhaust bool
}

// Engine drives one session through the guess-response cycle. It is
// not safe for concurrent use: every method must be called from the
// single goroutine that owns the session.
type Engine struct {
	cfg     Config
	sess    *Session
	gw      *Gateway
	sched   Scheduler
	answers AnswerProvider
	log     *zap.Logger
	ctx     context.Context

	// OnChange, when set, fires after every observable state change so
	// the owner can push the new snapshot to clients.
	OnChange func()
}

// NewEngine restores the session from the gateway and applies any
// persisted runtime configuration edits. answers may be nil.
func NewEngine(ctx context.Context, cfg Config, gw *Gateway, sched Scheduler, answers AnswerProvider, log *zap.Logger) *Engine {
	e := &Engine{
		cfg:     cfg,
		sess:    gw.LoadSession(),
		gw:      gw,
		sched:   sched,
		answers: answers,
		log:     log,
		ctx:     ctx,
	}
	e.cfg.Secret.MaxAttempts = Load(gw, keyConfMaxAttempts, e.cfg.Secret.MaxAttempts)
	if secret := Load(gw, keyConfSecret, ""); secret != "" {
		e.setSecret(secret)
	}
	return e
}

// Snapshot returns a copy of the session for broadcasting.
func (e *Engine) Snapshot() Session {
	return e.sess.snapshot()
}

// MaxAttempts returns the currently effective attempt budget.
func (e *Engine) MaxAttempts() int {
	return e.cfg.Secret.MaxAttempts
}

// Closed reports whether the game is over.
func (e *Engine) Closed() bool {
	return e.sess.Closed(e.cfg.Secret.MaxAttempts)
}

// Submit accepts one raw guess. It reports false, with no state
// change, for empty input, for a session that is locked or still
// revealing, and for a closed session. On acceptance the user message
// is appended immediately and the response is scheduled after the
// configured delay.
func (e *Engine) Submit(raw string) bool {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return false
	}
	if e.sess.Locked() || e.Closed() {
		return false
	}

	e.sess.Messages = append(e.sess.Messages, Message{
		ID:      uuid.NewString(),
		Role:    RoleUser,
		Content: trimmed,
	})
	e.sess.phase = PhaseLocked
	e.gw.SaveSession(e.sess)
	e.changed()

	e.sched.After(e.cfg.Delay, func() {
		e.respond(trimmed)
	})

	return true
}

// respond evaluates the in-flight guess and appends the response.
// Runs on the owning goroutine via the scheduler.
func (e *Engine) respond(guess string) {
	if e.sess.phase != PhaseLocked {
		return
	}

	outcome := Evaluate(Normalize(guess), e.cfg.Secret, e.log)
	next := e.sess.AttemptCount + 1

	var text string
	solved := e.sess.Solved

	switch outcome {
	case OutcomeSuccess:
		text = e.cfg.SuccessText
		solved = true
	case OutcomeUnlock:
		text = e.freeAnswer(guess)
		if text == "" {
			// Provider failed with no fallback configured: release the
			// lock without a response so the visitor can resubmit. The
			// attempt is not counted, since counting happens with the
			// response append.
			e.sess.phase = PhaseIdle
			e.changed()
			return
		}
	default:
		if next >= e.cfg.Secret.MaxAttempts {
			text = e.cfg.Clues.Terminal(e.cfg.RevealText)
			if e.cfg.SolveOnExhaust {
				solved = true
			}
		} else {
			text = "Clue: " + e.cfg.Clues.ClueFor(next)
		}
	}

	e.sess.Messages = append(e.sess.Messages, Message{
		ID:        uuid.NewString(),
		Role:      RoleResponder,
		Content:   text,
		Revealing: true,
	})
	e.sess.AttemptCount = next
	e.sess.Solved = solved
	e.sess.HintIndex = clueIndex(next, len(e.cfg.Clues))
	e.sess.phase = PhaseRevealing
	e.gw.SaveSession(e.sess)
	e.changed()
}

// freeAnswer asks the answer provider for prose, substituting the
// fallback line when the provider is absent or errors out.
func (e *Engine) freeAnswer(prompt string) string {
	if e.answers == nil {
		return e.cfg.FallbackText
	}
	answer, err := e.answers.GenerateAnswer(e.ctx, prompt)
	if err != nil {
		e.log.Warn("answer provider failed, using fallback response", zap.Error(err))
		return e.cfg.FallbackText
	}
	return answer
}

// RevealComplete records that the client finished animating the given
// responder message and unlocks input. Unknown or repeated ids are
// ignored.
func (e *Engine) RevealComplete(id string) bool {
	if e.sess.phase != PhaseRevealing {
		return false
	}
	for i := range e.sess.Messages {
		m := &e.sess.Messages[i]
		if m.ID == id && m.Revealing {
			m.Revealing = false
			e.sess.phase = PhaseIdle
			e.gw.SaveSession(e.sess)
			e.changed()
			return true
		}
	}
	return false
}

// Configure applies runtime settings edits. Zero values leave the
// corresponding setting untouched. Edits are persisted and take
// effect on the next submit.
func (e *Engine) Configure(maxAttempts int, secret string) {
	touched := false
	if maxAttempts > 0 {
		e.cfg.Secret.MaxAttempts = maxAttempts
		Save(e.gw, keyConfMaxAttempts, maxAttempts)
		touched = true
	}
	if secret != "" {
		e.setSecret(secret)
		Save(e.gw, keyConfSecret, secret)
		touched = true
	}
	if touched {
		e.changed()
	}
}

// setSecret routes a settings edit to the field the active strategy
// compares against.
func (e *Engine) setSecret(secret string) {
	switch e.cfg.Secret.Kind {
	case StrategyExactWord:
		e.cfg.Secret.Word = secret
	case StrategyHashedDigest:
		e.cfg.Secret.DigestHex = strings.ToLower(secret)
	case StrategySubstring, StrategyTriggerPhrase:
		e.cfg.Secret.Phrase = secret
	}
}

func (e *Engine) changed() {
	if e.OnChange != nil {
		e.OnChange()
	}
}

func clueIndex(attempt, clueCount int) int {
	i := attempt - 1
	if i >= clueCount {
		i = clueCount - 1
	}
	if i < 0 {
		i = 0
	}
	return i
}
