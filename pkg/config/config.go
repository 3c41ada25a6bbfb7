// Package config resolves the game master's settings.
//
// Sources, lowest precedence first: built-in defaults, an optional YAML
// file, the environment (a .env file in the working directory is loaded
// first and never overrides variables that are already set), and finally
// the positional command-line arguments
//
//	gm [variant] [round-seconds] [players] [bind-address]
//
// A positional argument that fails to parse leaves the value unchanged.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/daviddao/gamemaster/pkg/model"
)

// Defaults.
const (
	DefaultVariant      = model.VariantPlain
	DefaultRoundSeconds = 10
	DefaultParticipants = 3
	DefaultListen       = "127.0.0.1:7878"
	DefaultReportPath   = "output.txt"
	DefaultJournalPath  = ".gamemaster/journal.db"
	DefaultNATSSubject  = "gamemaster.rounds"
	DefaultConfigFile   = "gamemaster.yaml"

	// JournalOff disables the session journal when used as journal_path.
	JournalOff = "off"
)

// Config holds every setting of a game master process.
type Config struct {
	Variant      model.Variant `yaml:"variant"`
	RoundSeconds int           `yaml:"round_seconds"`
	Participants int           `yaml:"participants"`
	Listen       string        `yaml:"listen"`
	ReportPath   string        `yaml:"report_path"`
	JournalPath  string        `yaml:"journal_path"`
	NATSURL      string        `yaml:"nats_url"`
	NATSSubject  string        `yaml:"nats_subject"`
	LogLevel     string        `yaml:"log_level"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Variant:      DefaultVariant,
		RoundSeconds: DefaultRoundSeconds,
		Participants: DefaultParticipants,
		Listen:       DefaultListen,
		ReportPath:   DefaultReportPath,
		JournalPath:  DefaultJournalPath,
		NATSSubject:  DefaultNATSSubject,
		LogLevel:     "info",
	}
}

// RoundDuration returns the configured round length.
func (c Config) RoundDuration() time.Duration {
	return time.Duration(c.RoundSeconds) * time.Second
}

// JournalEnabled reports whether a session journal should be opened.
func (c Config) JournalEnabled() bool {
	return c.JournalPath != "" && c.JournalPath != JournalOff
}

// Load resolves the configuration from every source. args are the
// positional arguments after the program name.
func Load(args []string) (Config, error) {
	cfg, err := Resolve()
	if err != nil {
		return Config{}, err
	}
	cfg.MergeArgs(args)
	return cfg, cfg.Validate()
}

// Resolve applies defaults, the YAML file and the environment (including
// .env) without positional arguments or validation. Tools that only need
// paths, such as the journal viewer, use it to find what the server uses.
func Resolve() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()

	path := os.Getenv("GAMEMASTER_CONFIG")
	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
	}
	if err := cfg.MergeFile(path); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return Config{}, err
		}
	}

	if err := cfg.MergeEnv(os.Getenv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// MergeFile overlays the keys present in the YAML file at path.
func (c *Config) MergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

// MergeEnv overlays GAMEMASTER_* variables read through getenv.
func (c *Config) MergeEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v := getenv(key)
		if v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
		return nil
	}

	if v := getenv("GAMEMASTER_VARIANT"); v != "" {
		c.Variant = model.Variant(v)
	}
	if err := num("GAMEMASTER_ROUND_SECONDS", &c.RoundSeconds); err != nil {
		return err
	}
	if err := num("GAMEMASTER_PARTICIPANTS", &c.Participants); err != nil {
		return err
	}
	str("GAMEMASTER_LISTEN", &c.Listen)
	str("GAMEMASTER_REPORT", &c.ReportPath)
	str("GAMEMASTER_JOURNAL", &c.JournalPath)
	str("GAMEMASTER_NATS_URL", &c.NATSURL)
	str("GAMEMASTER_NATS_SUBJECT", &c.NATSSubject)
	str("GAMEMASTER_LOG_LEVEL", &c.LogLevel)
	return nil
}

// MergeArgs applies the positional arguments. Unparsable values are
// ignored and keep the current setting.
func (c *Config) MergeArgs(args []string) {
	if len(args) > 0 {
		if v, err := model.ParseVariant(strings.TrimSpace(args[0])); err == nil {
			c.Variant = v
		}
	}
	if len(args) > 1 {
		if n, err := strconv.ParseUint(args[1], 10, 31); err == nil {
			c.RoundSeconds = int(n)
		}
	}
	if len(args) > 2 {
		if n, err := strconv.ParseUint(args[2], 10, 31); err == nil {
			c.Participants = int(n)
		}
	}
	if len(args) > 3 && args[3] != "" {
		c.Listen = args[3]
	}
}

// Validate rejects configurations the game master cannot run with.
func (c Config) Validate() error {
	var errs []error
	if _, err := model.ParseVariant(string(c.Variant)); err != nil {
		errs = append(errs, err)
	}
	if c.RoundSeconds <= 0 {
		errs = append(errs, fmt.Errorf("round_seconds must be positive, got %d", c.RoundSeconds))
	}
	if c.Participants <= 0 {
		errs = append(errs, fmt.Errorf("participants must be positive, got %d", c.Participants))
	}
	if c.Listen == "" {
		errs = append(errs, errors.New("listen address is empty"))
	}
	if c.ReportPath == "" {
		errs = append(errs, errors.New("report_path is empty"))
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	return errors.Join(errs...)
}

// Level returns the configured zerolog level, defaulting to info.
func (c Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}
