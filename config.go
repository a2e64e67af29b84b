package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"wordwarden/internal/warden"
)

type Config struct {
	answerModel    string
	bind           string
	cluesFile      string
	dataDir        string
	digestAlgo     string
	maxAttempts    int
	port           int
	prefix         string
	profile        bool
	responseDelay  time.Duration
	secret         string
	secretDigest   string
	sessionTimeout time.Duration
	solveOnExhaust bool
	strategy       string
	tlsCert        string
	tlsKey         string
	verbose        bool
	version        bool
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.maxAttempts < 1 {
		return fmt.Errorf("invalid max attempts (must be positive): %d", c.maxAttempts)
	}
	if c.responseDelay < 0 {
		return fmt.Errorf("invalid response delay: %s", c.responseDelay)
	}

	switch warden.StrategyKind(c.strategy) {
	case warden.StrategyHashedDigest:
		if _, err := hex.DecodeString(c.secretDigest); err != nil || c.secretDigest == "" {
			return fmt.Errorf("invalid secret digest (must be hex): %q", c.secretDigest)
		}
	case warden.StrategyExactWord, warden.StrategySubstring, warden.StrategyTriggerPhrase:
		if strings.TrimSpace(c.secret) == "" {
			return fmt.Errorf("strategy %q requires --secret", c.strategy)
		}
	default:
		return fmt.Errorf("invalid strategy (must be one of exact, digest, substring, trigger): %q", c.strategy)
	}

	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

// secretDefinition assembles the matcher configuration for new sessions.
func (c *Config) secretDefinition() warden.SecretDefinition {
	return warden.SecretDefinition{
		Kind:        warden.StrategyKind(c.strategy),
		Word:        c.secret,
		DigestHex:   strings.ToLower(c.secretDigest),
		Algorithm:   c.digestAlgo,
		Phrase:      c.secret,
		MaxAttempts: c.maxAttempts,
	}
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("WORDWARDEN")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "wordwarden",
		Short:         "A riddling gatekeeper webgame: guess the secret word before your attempts run out.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg, args)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVar(&cfg.answerModel, "answer-model", "gemini-2.5-flash", "model used for trigger-phrase answers (env: WORDWARDEN_ANSWER_MODEL)")
	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: WORDWARDEN_BIND)")
	fs.StringVar(&cfg.cluesFile, "clues-file", "", "file with one clue per line, replacing the built-in clues (env: WORDWARDEN_CLUES_FILE)")
	fs.StringVar(&cfg.dataDir, "data-dir", "data", "directory for the session database (env: WORDWARDEN_DATA_DIR)")
	fs.StringVar(&cfg.digestAlgo, "digest-algorithm", "sha256", "one-way digest algorithm for the digest strategy (env: WORDWARDEN_DIGEST_ALGORITHM)")
	fs.IntVar(&cfg.maxAttempts, "max-attempts", 7, "guesses allowed before the game closes (env: WORDWARDEN_MAX_ATTEMPTS)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: WORDWARDEN_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: WORDWARDEN_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: WORDWARDEN_PROFILE)")
	fs.DurationVar(&cfg.responseDelay, "response-delay", 600*time.Millisecond, "deliberation pause before each response (env: WORDWARDEN_RESPONSE_DELAY)")
	fs.StringVar(&cfg.secret, "secret", "", "secret word or phrase, for the non-digest strategies (env: WORDWARDEN_SECRET)")
	fs.StringVar(&cfg.secretDigest, "secret-digest", warden.DefaultSecretDigest, "hex digest of the normalized secret, for the digest strategy (env: WORDWARDEN_SECRET_DIGEST)")
	fs.DurationVar(&cfg.sessionTimeout, "session-timeout", 60*time.Minute, "time before idle game sessions are unloaded (env: WORDWARDEN_SESSION_TIMEOUT)")
	fs.BoolVar(&cfg.solveOnExhaust, "solve-on-exhaust", true, "mark the session solved when attempts run out (env: WORDWARDEN_SOLVE_ON_EXHAUST)")
	fs.StringVar(&cfg.strategy, "strategy", "digest", "secret matching strategy: exact, digest, substring or trigger (env: WORDWARDEN_STRATEGY)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: WORDWARDEN_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: WORDWARDEN_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: WORDWARDEN_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: WORDWARDEN_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("wordwarden v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
