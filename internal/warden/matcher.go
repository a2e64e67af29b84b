package warden

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"go.uber.org/zap"
)

// Outcome is the result of evaluating one normalized guess.
type Outcome int

const (
	// OutcomeContinue means the guess was wrong; the game goes on.
	OutcomeContinue Outcome = iota
	// OutcomeSuccess means the secret was spoken; the game is won.
	OutcomeSuccess
	// OutcomeUnlock means the configured trigger phrase matched; the
	// answer provider produces the response and the game continues.
	OutcomeUnlock
)

// StrategyKind selects how guesses are compared to the secret.
type StrategyKind string

const (
	// StrategyExactWord matches when the guess equals the secret word.
	StrategyExactWord StrategyKind = "exact"
	// StrategyHashedDigest matches when the one-way digest of the guess
	// equals the configured hex digest. The plaintext is never stored.
	StrategyHashedDigest StrategyKind = "digest"
	// StrategySubstring matches when the guess contains the phrase.
	StrategySubstring StrategyKind = "substring"
	// StrategyTriggerPhrase matches when the guess equals the phrase,
	// and unlocks a free-form answer instead of ending the game.
	StrategyTriggerPhrase StrategyKind = "trigger"
)

// SecretDefinition is configuration, not derived state: it describes
// the secret and how many tries the visitor gets.
type SecretDefinition struct {
	Kind        StrategyKind
	Word        string // exact
	DigestHex   string // digest, lowercase hex
	Algorithm   string // digest, "sha256" (default)
	Phrase      string // substring / trigger
	MaxAttempts int
}

// Evaluate decides whether a normalized guess counts as correct under
// the secret definition. A guess that cannot be verified (unsupported
// digest algorithm) is treated as incorrect, never as success.
func Evaluate(normalized string, def SecretDefinition, log *zap.Logger) Outcome {
	switch def.Kind {
	case StrategyExactWord:
		if normalized == Normalize(def.Word) {
			return OutcomeSuccess
		}
	case StrategyHashedDigest:
		sum, err := digest(normalized, def.Algorithm)
		if err != nil {
			log.Warn("guess digest failed, treating as incorrect",
				zap.String("algorithm", def.Algorithm),
				zap.Error(err))
			return OutcomeContinue
		}
		if sum == strings.ToLower(def.DigestHex) {
			return OutcomeSuccess
		}
	case StrategySubstring:
		if strings.Contains(normalized, Normalize(def.Phrase)) {
			return OutcomeSuccess
		}
	case StrategyTriggerPhrase:
		if normalized == Normalize(def.Phrase) {
			return OutcomeUnlock
		}
	default:
		log.Warn("unknown matching strategy, treating guess as incorrect",
			zap.String("strategy", string(def.Kind)))
	}
	return OutcomeContinue
}

func digest(text, algorithm string) (string, error) {
	switch algorithm {
	case "", "sha256":
		sum := sha256.Sum256([]byte(text))
		return hex.EncodeToString(sum[:]), nil
	default:
		return "", errUnsupportedAlgorithm(algorithm)
	}
}

type errUnsupportedAlgorithm string

func (e errUnsupportedAlgorithm) Error() string {
	return "unsupported digest algorithm: " + string(e)
}
