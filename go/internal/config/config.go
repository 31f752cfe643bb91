// Package config loads server settings from the environment and an optional
// YAML rules file.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/mcdev12/matchroom/go/internal/dbconfig"
	"github.com/mcdev12/matchroom/go/internal/matchroom"
	"github.com/mcdev12/matchroom/go/internal/models"
	"github.com/mcdev12/matchroom/go/internal/proposal"
	"github.com/mcdev12/matchroom/go/internal/queue"
)

// Config is the full server configuration.
type Config struct {
	Port      string `env:"PORT"             envDefault:"8080"`
	LogLevel  string `env:"LOG_LEVEL"        envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT"       envDefault:"console"`
	RulesFile string `env:"MATCHROOM_CONFIG"`

	Rules   Rules
	NATS    NATSConfig
	Archive ArchiveConfig
}

// Rules are the matchmaking options. Every field can also be set from the
// rules file.
type Rules struct {
	CohortSize        int           `env:"COHORT_SIZE"         envDefault:"10"      yaml:"cohort_size"`
	QueueCapacity     int           `env:"QUEUE_CAPACITY"      envDefault:"100"     yaml:"queue_capacity"`
	AcceptWindow      time.Duration `env:"ACCEPT_WINDOW"       envDefault:"30s"     yaml:"accept_window"`
	MethodWindow      time.Duration `env:"METHOD_WINDOW"       envDefault:"60s"     yaml:"method_window"`
	VoteWindow        time.Duration `env:"CAPTAIN_VOTE_WINDOW" envDefault:"45s"     yaml:"captain_vote_window"`
	PickWindow        time.Duration `env:"PICK_WINDOW"         envDefault:"30s"     yaml:"pick_window"`
	BanWindow         time.Duration `env:"BAN_WINDOW"          envDefault:"30s"     yaml:"ban_window"`
	ReportWindow      time.Duration `env:"REPORT_WINDOW"       envDefault:"10m"     yaml:"report_window"`
	MapPool           []string      `env:"MAP_POOL"            envSeparator:","     yaml:"map_pool"`
	CaptainCandidates int           `env:"CAPTAIN_CANDIDATES"  envDefault:"0"       yaml:"captain_candidates"`
	AcceptorRequeue   string        `env:"ACCEPTOR_REQUEUE"    envDefault:"front"   yaml:"acceptor_requeue"`
	NonAcceptorPolicy string        `env:"NON_ACCEPTOR_POLICY" envDefault:"requeue" yaml:"non_acceptor_policy"`
	FinishedRetention int           `env:"FINISHED_RETENTION"  envDefault:"256"     yaml:"finished_retention"`
}

// NATSConfig enables the JetStream event sink.
type NATSConfig struct {
	Enabled       bool   `env:"NATS_ENABLED"        envDefault:"false"`
	URL           string `env:"NATS_URL"            envDefault:"nats://127.0.0.1:4222"`
	Stream        string `env:"NATS_STREAM"         envDefault:"MATCHROOM_EVENTS"`
	SubjectPrefix string `env:"NATS_SUBJECT_PREFIX" envDefault:"matchroom.events"`
}

// ArchiveConfig enables the Postgres result archive.
type ArchiveConfig struct {
	Enabled bool `env:"ARCHIVE_ENABLED" envDefault:"false"`
	DB      dbconfig.Config
}

// Load reads .env (if present), the environment and the rules file named
// by MATCHROOM_CONFIG. Values in the rules file win over the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if len(cfg.Rules.MapPool) == 0 {
		cfg.Rules.MapPool = slices.Clone(models.DefaultMapPool)
	}

	if cfg.RulesFile != "" {
		if err := loadRules(cfg.RulesFile, &cfg.Rules); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.Rules.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadRules(path string, rules *Rules) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, rules); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

// Validate reports every invalid rule at once.
func (r Rules) Validate() error {
	var errs []error
	if r.CohortSize < 2 || r.CohortSize%2 != 0 {
		errs = append(errs, fmt.Errorf("cohort size must be an even number >= 2, got %d", r.CohortSize))
	}
	if r.QueueCapacity < r.CohortSize {
		errs = append(errs, fmt.Errorf("queue capacity %d is smaller than cohort size %d", r.QueueCapacity, r.CohortSize))
	}
	for name, d := range map[string]time.Duration{
		"accept window":       r.AcceptWindow,
		"method window":       r.MethodWindow,
		"captain vote window": r.VoteWindow,
		"pick window":         r.PickWindow,
		"ban window":          r.BanWindow,
		"report window":       r.ReportWindow,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, d))
		}
	}
	seen := make(map[string]bool, len(r.MapPool))
	for _, m := range r.MapPool {
		if m == "" || seen[m] {
			errs = append(errs, fmt.Errorf("map pool has an empty or duplicate entry %q", m))
		}
		seen[m] = true
	}
	if len(seen) < 2 {
		errs = append(errs, fmt.Errorf("map pool needs at least 2 maps, got %d", len(seen)))
	}
	if r.CaptainCandidates < 0 || r.CaptainCandidates == 1 {
		errs = append(errs, fmt.Errorf("captain candidates must be 0 or >= 2, got %d", r.CaptainCandidates))
	}
	switch proposal.RequeuePosition(r.AcceptorRequeue) {
	case proposal.RequeueFront, proposal.RequeueBack:
	default:
		errs = append(errs, fmt.Errorf("acceptor requeue must be front or back, got %q", r.AcceptorRequeue))
	}
	if _, ok := proposal.PolicyByName(r.NonAcceptorPolicy); !ok {
		errs = append(errs, fmt.Errorf("unknown non-acceptor policy %q", r.NonAcceptorPolicy))
	}
	return errors.Join(errs...)
}

// Queue returns the queue settings.
func (r Rules) Queue() queue.Config {
	return queue.Config{
		CohortSize: r.CohortSize,
		Capacity:   r.QueueCapacity,
	}
}

// Proposal returns the acceptance settings.
func (r Rules) Proposal() proposal.Config {
	return proposal.Config{
		AcceptWindow:    r.AcceptWindow,
		AcceptorRequeue: proposal.RequeuePosition(r.AcceptorRequeue),
		Retention:       r.FinishedRetention,
	}
}

// Policy returns the configured non-acceptor policy.
func (r Rules) Policy() proposal.NonAcceptancePolicy {
	p, ok := proposal.PolicyByName(r.NonAcceptorPolicy)
	if !ok {
		return proposal.RequeuePolicy{}
	}
	return p
}

// Match returns the match room settings.
func (r Rules) Match() matchroom.Config {
	return matchroom.Config{
		MapPool:           slices.Clone(r.MapPool),
		MethodWindow:      r.MethodWindow,
		VoteWindow:        r.VoteWindow,
		PickWindow:        r.PickWindow,
		BanWindow:         r.BanWindow,
		ReportWindow:      r.ReportWindow,
		CaptainCandidates: r.CaptainCandidates,
		FinishedRetention: r.FinishedRetention,
	}
}

// Redacted summarizes the configuration for startup logs.
func (c Config) Redacted() string {
	archive := "disabled"
	if c.Archive.Enabled {
		archive = c.Archive.DB.Redacted()
	}
	nats := "disabled"
	if c.NATS.Enabled {
		nats = c.NATS.URL
	}
	return fmt.Sprintf(
		"port=%s cohort=%d capacity=%d accept=%s maps=%d nats=%s archive=%s",
		c.Port, c.Rules.CohortSize, c.Rules.QueueCapacity, c.Rules.AcceptWindow, len(c.Rules.MapPool), nats, archive,
	)
}
