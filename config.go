// File-based configuration.
//
// Config mirrors RotationPolicy, JSONL and the ambient options in a form
// that can live in a YAML file and be overridden from the environment.
// Hosts that configure everything in code do not need it.
package rotor

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable of a distributor.
type Config struct {
	Dir              string        `yaml:"dir" env:"ROTOR_DIR"`
	MaxRecords       uint64        `yaml:"maxRecords" env:"ROTOR_MAX_RECORDS"`
	MaxEpochs        uint64        `yaml:"maxEpochs" env:"ROTOR_MAX_EPOCHS"`
	Trigger          string        `yaml:"trigger" env:"ROTOR_TRIGGER"`
	FlushInterval    time.Duration `yaml:"flushInterval" env:"ROTOR_FLUSH_INTERVAL"`
	RelaxedRetention bool          `yaml:"relaxedRetention" env:"ROTOR_RELAXED_RETENTION"`
	Segment          SegmentConfig `yaml:"segment"`
	Log              LogConfig     `yaml:"log"`
}

// SegmentConfig selects the JSONL encoding.
type SegmentConfig struct {
	Checksum    string `yaml:"checksum" env:"ROTOR_CHECKSUM"` // xxh3, fnv1a, blake2b, none
	Compress    bool   `yaml:"compress" env:"ROTOR_COMPRESS"`
	SyncOnFlush bool   `yaml:"syncOnFlush" env:"ROTOR_SYNC_ON_FLUSH"`
}

// LogConfig configures diagnostic logging.
type LogConfig struct {
	Level  string `yaml:"level" env:"ROTOR_LOG_LEVEL"`   // debug, info, warn, error
	Format string `yaml:"format" env:"ROTOR_LOG_FORMAT"` // json, text
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Dir:           "logs",
		MaxEpochs:     8,
		FlushInterval: time.Second,
		Segment: SegmentConfig{
			Checksum: "xxh3",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadConfig reads a YAML file over the defaults, then applies ROTOR_*
// environment overrides and validates the result. An empty path skips
// the file.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}
	u64 := func(key string, dst *uint64) error {
		if v, ok := lookup(key); ok {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("config: %s: %w", key, err)
			}
			*dst = n
		}
		return nil
	}
	boolean := func(key string, dst *bool) error {
		if v, ok := lookup(key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("config: %s: %w", key, err)
			}
			*dst = b
		}
		return nil
	}

	str("ROTOR_DIR", &c.Dir)
	str("ROTOR_TRIGGER", &c.Trigger)
	str("ROTOR_CHECKSUM", &c.Segment.Checksum)
	str("ROTOR_LOG_LEVEL", &c.Log.Level)
	str("ROTOR_LOG_FORMAT", &c.Log.Format)
	if err := u64("ROTOR_MAX_RECORDS", &c.MaxRecords); err != nil {
		return err
	}
	if err := u64("ROTOR_MAX_EPOCHS", &c.MaxEpochs); err != nil {
		return err
	}
	if err := boolean("ROTOR_RELAXED_RETENTION", &c.RelaxedRetention); err != nil {
		return err
	}
	if err := boolean("ROTOR_COMPRESS", &c.Segment.Compress); err != nil {
		return err
	}
	if err := boolean("ROTOR_SYNC_ON_FLUSH", &c.Segment.SyncOnFlush); err != nil {
		return err
	}
	if v, ok := lookup("ROTOR_FLUSH_INTERVAL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: ROTOR_FLUSH_INTERVAL: %w", err)
		}
		c.FlushInterval = d
	}
	return nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.Dir == "" {
		return fmt.Errorf("config: dir is required")
	}
	if _, err := c.Policy(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := c.JSONL(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.FlushInterval < 0 {
		return fmt.Errorf("config: flushInterval must not be negative")
	}
	switch c.Log.Format {
	case "", "json", "text":
	default:
		return fmt.Errorf("config: unknown log format %q", c.Log.Format)
	}
	return nil
}

// Policy builds the RotationPolicy described by the config.
func (c *Config) Policy() (RotationPolicy, error) {
	trigger, err := ParseTrigger(c.Trigger)
	if err != nil {
		return RotationPolicy{}, err
	}
	p := RotationPolicy{
		MaxRecords: c.MaxRecords,
		Trigger:    trigger,
		MaxEpochs:  c.MaxEpochs,
	}
	return p, p.Validate()
}

// JSONL builds the segment format described by the config.
func (c *Config) JSONL() (JSONL, error) {
	f := JSONL{Compress: c.Segment.Compress, SyncOnFlush: c.Segment.SyncOnFlush}
	switch strings.ToLower(c.Segment.Checksum) {
	case "", "xxh3":
		f.Checksum = AlgXXHash3
	case "fnv1a":
		f.Checksum = AlgFNV1a
	case "blake2b":
		f.Checksum = AlgBlake2b
	case "none":
		f.Checksum = AlgNone
	default:
		return JSONL{}, fmt.Errorf("unknown checksum %q", c.Segment.Checksum)
	}
	return f, nil
}

// Logger builds a slog.Logger writing to w.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level, AddSource: level == slog.LevelDebug}
	if c.Log.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// Options returns the ambient options described by the config, plus
// extra.
func (c *Config) Options(w io.Writer, extra ...Option) []Option {
	opts := []Option{WithLogger(c.Logger(w))}
	if c.RelaxedRetention {
		opts = append(opts, WithRelaxedRetention())
	}
	return append(opts, extra...)
}

// OpenDistributor builds a JSONL distributor from the config.
func (c *Config) OpenDistributor(log io.Writer, extra ...Option) (*LogDistributor[*JSONLWriter], error) {
	policy, err := c.Policy()
	if err != nil {
		return nil, err
	}
	format, err := c.JSONL()
	if err != nil {
		return nil, err
	}
	return NewLogDistributor[*JSONLWriter](c.Dir, policy, format, c.Options(log, extra...)...)
}

// StartFlusher starts a background flusher for d at FlushInterval, also
// polling time triggers when one is configured. It returns nil when
// FlushInterval is zero.
func (c *Config) StartFlusher(d *LogDistributor[*JSONLWriter], extra ...Option) *FlushTask {
	if c.FlushInterval <= 0 {
		return nil
	}
	opts := extra
	if c.Trigger != "" && c.Trigger != "none" {
		opts = append([]Option{WithRotation()}, extra...)
	}
	return StartFlusher(c.FlushInterval, d, opts...)
}
