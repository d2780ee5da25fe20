// Package config loads the CLI configuration file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/aretw0/stepbnb/internal/logging"
	"github.com/aretw0/stepbnb/pkg/adapters/knapsack"
	"github.com/aretw0/stepbnb/pkg/domain"
)

var validate = validator.New()

// Config is the root of the YAML configuration file.
type Config struct {
	LogLevel string         `yaml:"log_level" validate:"omitempty,oneof=debug info warn error DEBUG INFO WARN ERROR"`
	Instance InstanceConfig `yaml:"instance"`
	Engine   EngineConfig   `yaml:"engine"`
	Server   ServerConfig   `yaml:"server"`

	// TraceDir keeps episode traces as files when Redis is not configured.
	TraceDir string `yaml:"trace_dir"`

	// Callbacks holds raw registration parameters keyed by callback kind:
	// "nodesel", "branchrule" or "heuristic".
	Callbacks map[string]map[string]any `yaml:"callbacks" validate:"omitempty,dive,keys,oneof=nodesel branchrule heuristic,endkeys"`
}

// InstanceConfig selects the knapsack instance. Path wins over generation.
type InstanceConfig struct {
	Path  string `yaml:"path"`
	Seed  uint64 `yaml:"seed"`
	Items int    `yaml:"items" validate:"gte=1,lte=10000"`
}

// EngineConfig tunes the in-process engine.
type EngineConfig struct {
	NodeLimit int  `yaml:"node_limit" validate:"gte=0"`
	DisableLP bool `yaml:"disable_lp"`
}

// ServerConfig configures `serve`.
type ServerConfig struct {
	Addr  string      `yaml:"addr" validate:"required"`
	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig enables the Redis trace store and locker when Addr is set.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Prefix   string        `yaml:"prefix"`
	TraceTTL time.Duration `yaml:"trace_ttl" validate:"gte=0"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Instance: InstanceConfig{Seed: 1, Items: 20},
		Server:   ServerConfig{Addr: ":8080", Redis: RedisConfig{Prefix: "stepbnb:"}},
	}
}

// Load reads path on top of the defaults and validates the result.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode reads YAML from r on top of the defaults. Unknown fields are rejected.
func Decode(r io.Reader) (*Config, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints and that every callback section decodes.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := c.Nodesel(); err != nil {
		return err
	}
	if _, err := c.Branchrule(); err != nil {
		return err
	}
	if _, err := c.Heuristic(); err != nil {
		return err
	}
	return nil
}

// Level returns the configured log level.
func (c *Config) Level() slog.Level {
	level, err := logging.ParseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

// Nodesel returns the node selector parameters over domain.DefaultNodesel.
func (c *Config) Nodesel() (domain.NodeselConstructor, error) {
	params := domain.DefaultNodesel()
	return params, c.decodeCallback("nodesel", &params)
}

// Branchrule returns the branching rule parameters over domain.DefaultBranchrule.
func (c *Config) Branchrule() (domain.BranchruleConstructor, error) {
	params := domain.DefaultBranchrule()
	return params, c.decodeCallback("branchrule", &params)
}

// Heuristic returns the heuristic parameters over domain.DefaultHeuristic.
func (c *Config) Heuristic() (domain.HeuristicConstructor, error) {
	params := domain.DefaultHeuristic()
	return params, c.decodeCallback("heuristic", &params)
}

func (c *Config) decodeCallback(kind string, out any) error {
	raw, ok := c.Callbacks[kind]
	if !ok {
		return nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(raw); err != nil {
		return fmt.Errorf("invalid %s parameters: %w", kind, err)
	}
	if err := validate.Struct(out); err != nil {
		return fmt.Errorf("invalid %s parameters: %w", kind, err)
	}
	return nil
}

// LoadInstance reads Instance.Path or generates an instance from the seed.
func (c *Config) LoadInstance() (*knapsack.Instance, error) {
	if c.Instance.Path != "" {
		return knapsack.LoadInstance(c.Instance.Path)
	}
	return knapsack.Generate(c.Instance.Seed, c.Instance.Items), nil
}

// EngineOptions translates the engine section into knapsack options.
func (c *Config) EngineOptions(logger *slog.Logger) []knapsack.Option {
	opts := []knapsack.Option{knapsack.WithLogger(logger)}
	if c.Engine.NodeLimit > 0 {
		opts = append(opts, knapsack.WithNodeLimit(c.Engine.NodeLimit))
	}
	if c.Engine.DisableLP {
		opts = append(opts, knapsack.WithoutLP())
	}
	return opts
}
