// Package warden implements the guess-evaluation engine behind the
// "speak the secret word" game: one gatekeeper holds a secret, the
// visitor gets a fixed number of guesses, and every wrong guess earns
// the next clue in the sequence.
//
// All state for one game lives in a Session, owned by exactly one
// goroutine (the session's hub). The Engine methods in this package
// must only ever be called from that goroutine; the locked/revealing
// phase discipline is the only concurrency control needed.
package warden

// Role identifies which side of the transcript a message belongs to.
type Role string

const (
	RoleUser      Role = "user"
	RoleResponder Role = "responder"
)

// Message is one immutable transcript entry. Revealing is true while
// the client is still animating the text of a responder message; at
// most one message carries it at a time.
type Message struct {
	ID        string `json:"id"`
	Role      Role   `json:"role"`
	Content   string `json:"content"`
	Revealing bool   `json:"revealing,omitempty"`
}

// Phase tracks where the session is in the guess-response cycle.
type Phase int

const (
	// PhaseIdle means no evaluation is in flight and input is accepted.
	PhaseIdle Phase = iota
	// PhaseLocked means a guess was accepted and its response is pending.
	PhaseLocked
	// PhaseRevealing means the response was appended and the client is
	// still animating it.
	PhaseRevealing
)

// Session is the whole persisted game state for one visitor.
type Session struct {
	Messages     []Message
	AttemptCount int
	Solved       bool
	HintIndex    int

	phase Phase
}

// Phase returns the current cycle phase. The closed condition is
// tracked separately, see Closed.
//
// The read-only accessors all take value receivers so they work on
// snapshots as well as the live session.
func (s Session) Phase() Phase {
	return s.phase
}

// Locked reports whether a guess-response cycle is in flight. New
// submissions are dropped while locked.
func (s Session) Locked() bool {
	return s.phase != PhaseIdle
}

// Closed reports whether the game is over for good: either the secret
// was spoken or the attempt budget ran out. Closed sessions ignore
// further submissions regardless of phase.
func (s Session) Closed(maxAttempts int) bool {
	return s.Solved || s.AttemptCount >= maxAttempts
}

// revealingID returns the id of the message currently being revealed,
// or "" when none is.
func (s Session) revealingID() string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Revealing {
			return s.Messages[i].ID
		}
	}
	return ""
}

// snapshot returns a copy safe to hand outside the owning goroutine.
func (s *Session) snapshot() Session {
	out := *s
	out.Messages = append([]Message(nil), s.Messages...)
	return out
}
