package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "roundtable.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional. Fatal
// configuration errors (e.g. ConvictionSaturationRounds <= 0) are
// aggregated and returned here, before any Orchestrator is constructed.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setInt(&cfg.Mechanism.StandardInvitePayment, "RTC_STANDARD_INVITE_PAYMENT")
	setInt(&cfg.Mechanism.MaximumCredit, "RTC_MAXIMUM_CREDIT")
	setInt(&cfg.Mechanism.ProposalSelfStake, "RTC_PROPOSAL_SELF_STAKE")
	setInt(&cfg.Mechanism.MaxThinkTicks, "RTC_MAX_THINK_TICKS")
	setInt(&cfg.Mechanism.KickOutPenalty, "RTC_KICK_OUT_PENALTY")
	setInt(&cfg.Mechanism.FeedbackStake, "RTC_FEEDBACK_STAKE")
	setInt(&cfg.Mechanism.MaxFeedbackPerAgent, "RTC_MAX_FEEDBACK_PER_AGENT")
	setInt(&cfg.Mechanism.FeedbackCharLimit, "RTC_FEEDBACK_CHAR_LIMIT")
	setInt(&cfg.Mechanism.RevisionCycles, "RTC_REVISION_CYCLES")
	setInt(&cfg.Mechanism.StakeRounds, "RTC_STAKE_ROUNDS")
	setInt(&cfg.Mechanism.StakeRoundsMax, "RTC_STAKE_ROUNDS_MAX")
	setFloat64(&cfg.Mechanism.MaxConvictionMultiplier, "RTC_MAX_CONVICTION_MULTIPLIER")
	setFloat64(&cfg.Mechanism.ConvictionTargetFraction, "RTC_CONVICTION_TARGET_FRACTION")
	setInt(&cfg.Mechanism.ConvictionSaturationRounds, "RTC_CONVICTION_SATURATION_ROUNDS")
	setInt64(&cfg.Mechanism.RandomSeed, "RTC_RANDOM_SEED")

	setString(&cfg.Server.Port, "RTC_PORT")
	setString(&cfg.Server.CORSOrigin, "RTC_CORS_ORIGIN")

	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "RTC_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "RTC_PG_MIN_CONNS")

	setString(&cfg.NATS.URL, "NATS_URL")
	setBool(&cfg.NATS.Enabled, "RTC_NATS_ENABLED")

	setString(&cfg.Logging.Level, "RTC_LOG_LEVEL")
	setString(&cfg.Logging.Service, "RTC_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "RTC_LOG_ASYNC")
}

// validate checks fatal configuration invariants, aggregating every
// violation instead of stopping at the first so an operator sees the
// whole picture in one error.
func validate(cfg *Config) error {
	var errs error

	m := cfg.Mechanism
	if m.ConvictionSaturationRounds <= 0 {
		errs = multierr.Append(errs, errors.New("mechanism.conviction_saturation_rounds must be > 0"))
	}
	if m.StakeRounds <= 0 {
		errs = multierr.Append(errs, errors.New("mechanism.stake_rounds must be >= 1"))
	}
	if m.StakeRoundsMax > 0 && m.StakeRounds > m.StakeRoundsMax {
		errs = multierr.Append(errs, fmt.Errorf("mechanism.stake_rounds (%d) exceeds stake_rounds_max (%d)", m.StakeRounds, m.StakeRoundsMax))
	}
	if m.RevisionCycles < 0 {
		errs = multierr.Append(errs, errors.New("mechanism.revision_cycles must be >= 0"))
	}
	if m.ConvictionTargetFraction <= 0 || m.ConvictionTargetFraction >= 1 {
		errs = multierr.Append(errs, errors.New("mechanism.conviction_target_fraction must be in (0,1)"))
	}
	if m.MaxConvictionMultiplier < 1 {
		errs = multierr.Append(errs, errors.New("mechanism.max_conviction_multiplier must be >= 1"))
	}
	if m.ProposalSelfStake < 0 {
		errs = multierr.Append(errs, errors.New("mechanism.proposal_self_stake must be >= 0"))
	}
	if m.MaxThinkTicks < 0 {
		errs = multierr.Append(errs, errors.New("mechanism.max_think_ticks must be >= 0"))
	}

	if cfg.Server.Port == "" {
		errs = multierr.Append(errs, errors.New("server.port is required"))
	}
	if cfg.Postgres.MaxConns < 1 {
		errs = multierr.Append(errs, errors.New("postgres.max_conns must be >= 1"))
	}

	return errs
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
