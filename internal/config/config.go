package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/mockify/interviewstats/internal/analytics"
	"github.com/mockify/interviewstats/internal/wordbank"
)

const (
	configFileName = "config.json"
	dbFileName     = "interviewstats.db"

	envDataDir         = "INTERVIEWSTATS_DATA_DIR"
	envInboxDir        = "INTERVIEWSTATS_INBOX_DIR"
	envHalfLife        = "INTERVIEWSTATS_HALF_LIFE_DAYS"
	envMatcher         = "INTERVIEWSTATS_MATCHER"
	envRebuildSchedule = "INTERVIEWSTATS_REBUILD_SCHEDULE"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config holds all application configuration.
type Config struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	DataDir         string        `json:"data_dir"`
	DBPath          string        `json:"-"`
	InMemory        bool          `json:"-"`
	InboxDir        string        `json:"inbox_dir,omitempty"`
	HalfLifeDays    float64       `json:"half_life_days"`
	Matcher         string        `json:"matcher"`
	RebuildSchedule string        `json:"rebuild_schedule,omitempty"`
	WriteTimeout    time.Duration `json:"-"`
}

// Default returns a Config with default values.
func Default() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, fmt.Errorf(
			"determining home directory: %w", err,
		)
	}
	dataDir := filepath.Join(home, ".interviewstats")
	return Config{
		Host:         "127.0.0.1",
		Port:         8090,
		DataDir:      dataDir,
		DBPath:       filepath.Join(dataDir, dbFileName),
		HalfLifeDays: analytics.DefaultHalfLifeDays,
		Matcher:      wordbank.MatcherSubstring,
		WriteTimeout: 30 * time.Second,
	}, nil
}

// Load builds a Config by layering: defaults < config file < env < flags.
// The provided FlagSet must already be parsed by the caller.
// Only flags that were explicitly set override the lower layers.
func Load(fs *flag.FlagSet) (Config, error) {
	cfg, err := load()
	if err != nil {
		return cfg, err
	}
	if err := applyFlags(&cfg, fs); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadMinimal builds a Config from defaults, config file and
// env, without CLI flags. Use this for subcommands that manage
// their own flag sets.
func LoadMinimal() (Config, error) {
	return Load(nil)
}

func load() (Config, error) {
	cfg, err := Default()
	if err != nil {
		return cfg, err
	}
	loadDotEnv()

	// The data dir decides where config.json lives, so it is
	// resolved from env before the file is read.
	if v := os.Getenv(envDataDir); v != "" {
		cfg.DataDir = v
	}
	if err := cfg.loadFile(); err != nil {
		return cfg, fmt.Errorf("loading config file: %w", err)
	}
	if err := cfg.loadEnv(); err != nil {
		return cfg, err
	}
	cfg.DBPath = filepath.Join(cfg.DataDir, dbFileName)
	return cfg, nil
}

// loadDotEnv reads .env from the working directory. Variables
// already present in the environment are not overridden.
func loadDotEnv() {
	if _, err := os.Stat(".env"); err != nil {
		return
	}
	_ = godotenv.Load()
}

func (c *Config) configPath() string {
	return filepath.Join(c.DataDir, configFileName)
}

func (c *Config) loadFile() error {
	data, err := os.ReadFile(c.configPath())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	var file struct {
		HalfLifeDays    *float64 `json:"half_life_days"`
		Matcher         string   `json:"matcher"`
		InboxDir        string   `json:"inbox_dir"`
		RebuildSchedule string   `json:"rebuild_schedule"`
	}
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}
	if file.HalfLifeDays != nil {
		c.HalfLifeDays = *file.HalfLifeDays
	}
	if file.Matcher != "" {
		c.Matcher = file.Matcher
	}
	if file.InboxDir != "" {
		c.InboxDir = file.InboxDir
	}
	if file.RebuildSchedule != "" {
		c.RebuildSchedule = file.RebuildSchedule
	}
	return nil
}

func (c *Config) loadEnv() error {
	if v := os.Getenv(envInboxDir); v != "" {
		c.InboxDir = v
	}
	if v := os.Getenv(envHalfLife); v != "" {
		days, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf(
				"%w: %s=%q is not a number", ErrInvalidConfig, envHalfLife, v,
			)
		}
		c.HalfLifeDays = days
	}
	if v := os.Getenv(envMatcher); v != "" {
		c.Matcher = v
	}
	if v := os.Getenv(envRebuildSchedule); v != "" {
		c.RebuildSchedule = v
	}
	return nil
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	if c.HalfLifeDays <= 0 {
		return fmt.Errorf(
			"%w: half-life must be positive, got %v",
			ErrInvalidConfig, c.HalfLifeDays,
		)
	}
	if _, err := wordbank.MatcherByName(c.Matcher); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.RebuildSchedule != "" {
		if _, err := cron.ParseStandard(c.RebuildSchedule); err != nil {
			return fmt.Errorf(
				"%w: rebuild schedule %q: %v",
				ErrInvalidConfig, c.RebuildSchedule, err,
			)
		}
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d", ErrInvalidConfig, c.Port)
	}
	return nil
}

// MatcherImpl returns the configured keyword matcher.
func (c *Config) MatcherImpl() wordbank.Matcher {
	m, err := wordbank.MatcherByName(c.Matcher)
	if err != nil {
		return wordbank.SubstringMatcher{}
	}
	return m
}

// RegisterServeFlags registers serve-command flags on fs.
// The caller must call fs.Parse before passing fs to Load.
func RegisterServeFlags(fs *flag.FlagSet) {
	fs.String("host", "127.0.0.1", "Host to bind to")
	fs.Int("port", 8090, "Port to listen on")
	fs.String("inbox", "", "Directory to watch for session JSON files")
	fs.Float64(
		"half-life", analytics.DefaultHalfLifeDays,
		"Recency weighting half-life in days",
	)
	fs.String(
		"matcher", wordbank.MatcherSubstring,
		"Keyword matcher: "+strings.Join(wordbank.MatcherNames, ", "),
	)
	fs.String(
		"rebuild-schedule", "",
		"Cron spec for scheduled word bank rebuilds (e.g. @daily)",
	)
	fs.Bool("in-memory", false, "Keep data in memory only")
}

// applyFlags copies explicitly-set flags from fs into cfg.
func applyFlags(cfg *Config, fs *flag.FlagSet) error {
	if fs == nil {
		return nil
	}
	var err error
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "host":
			cfg.Host = f.Value.String()
		case "port":
			// flag already validated the int; ignore parse error
			cfg.Port, _ = strconv.Atoi(f.Value.String())
		case "inbox":
			cfg.InboxDir = f.Value.String()
		case "half-life":
			cfg.HalfLifeDays, err = strconv.ParseFloat(f.Value.String(), 64)
		case "matcher":
			cfg.Matcher = f.Value.String()
		case "rebuild-schedule":
			cfg.RebuildSchedule = f.Value.String()
		case "in-memory":
			cfg.InMemory = f.Value.String() == "true"
		}
	})
	if err != nil {
		return fmt.Errorf("%w: half-life: %v", ErrInvalidConfig, err)
	}
	return nil
}

// ResolveDataDir returns the effective data directory by applying
// defaults and environment overrides, without reading any files.
func ResolveDataDir() (string, error) {
	cfg, err := Default()
	if err != nil {
		return "", err
	}
	if v := os.Getenv(envDataDir); v != "" {
		cfg.DataDir = v
	}
	return cfg.DataDir, nil
}

// SaveSettings persists the tunable settings to config.json,
// keeping any other keys already in the file.
func (c *Config) SaveSettings() error {
	if err := os.MkdirAll(c.DataDir, 0o700); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	existing := make(map[string]any)
	data, err := os.ReadFile(c.configPath())
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err == nil {
		if err := json.Unmarshal(data, &existing); err != nil {
			return fmt.Errorf(
				"existing config is invalid, cannot update: %w",
				err,
			)
		}
	}

	existing["half_life_days"] = c.HalfLifeDays
	existing["matcher"] = c.Matcher
	if c.InboxDir != "" {
		existing["inbox_dir"] = c.InboxDir
	}
	if c.RebuildSchedule != "" {
		existing["rebuild_schedule"] = c.RebuildSchedule
	}
	out, err := json.MarshalIndent(existing, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(c.configPath(), out, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}
