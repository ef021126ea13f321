package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rustyeddy/ibtrader/broker/ibkr"
	"github.com/rustyeddy/ibtrader/journal"
	"github.com/rustyeddy/ibtrader/market"
	"gopkg.in/yaml.v3"
)

// Config is everything a run needs apart from credentials and the signal.
type Config struct {
	Broker   BrokerConfig   `json:"broker" yaml:"broker"`
	Journal  JournalConfig  `json:"journal" yaml:"journal"`
	Resolver ResolverConfig `json:"resolver" yaml:"resolver"`
	Log      LogConfig      `json:"log" yaml:"log"`
}

// BrokerConfig points at the Client Portal gateway.
type BrokerConfig struct {
	BaseURL   string `json:"base_url" yaml:"base_url"`
	VerifyTLS bool   `json:"verify_tls" yaml:"verify_tls"`
	TimeoutMs int    `json:"timeout_ms" yaml:"timeout_ms"`
	// RequireSession aborts the run when the /tickle liveness check fails.
	RequireSession bool `json:"require_session" yaml:"require_session"`
}

// Timeout converts TimeoutMs to a duration.
func (b BrokerConfig) Timeout() time.Duration {
	return time.Duration(b.TimeoutMs) * time.Millisecond
}

// Options builds the gateway client options.
func (b BrokerConfig) Options() ibkr.Options {
	return ibkr.Options{
		BaseURL:   b.BaseURL,
		VerifyTLS: b.VerifyTLS,
		Timeout:   b.Timeout(),
	}
}

// JournalConfig says where trade records go.
type JournalConfig struct {
	Path       string `json:"path" yaml:"path"`
	SQLitePath string `json:"sqlite_path,omitempty" yaml:"sqlite_path,omitempty"`
}

const (
	ResolverFixed  = "fixed"
	ResolverTable  = "table"
	ResolverSearch = "search"
)

// ResolverConfig picks how symbols become contract ids.
type ResolverConfig struct {
	Kind         string           `json:"kind" yaml:"kind"`
	DefaultConID int64            `json:"default_conid,omitempty" yaml:"default_conid,omitempty"`
	Contracts    map[string]int64 `json:"contracts,omitempty" yaml:"contracts,omitempty"`
}

// Build returns the resolver selected by Kind. client is used only by the
// search resolver.
func (r ResolverConfig) Build(client *ibkr.Client) market.ContractResolver {
	fixed := market.FixedResolver{ConID: r.DefaultConID}
	switch r.Kind {
	case ResolverTable:
		return market.NewTableResolver(r.Contracts, fixed)
	case ResolverSearch:
		search := ibkr.SearchResolver{Client: client}
		if len(r.Contracts) == 0 {
			return search
		}
		return market.NewTableResolver(r.Contracts, search)
	default:
		return fixed
	}
}

type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Pretty bool   `json:"pretty" yaml:"pretty"`
}

// Load returns Default when path is empty and LoadFromFile otherwise.
func Load(path string) (*Config, error) {
	if path == "" {
		cfg := Default()
		cfg.applyEnv(os.Getenv)
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid config: %w", err)
		}
		return cfg, nil
	}
	return LoadFromFile(path)
}

// LoadFromFile loads configuration from a file (YAML, falling back to JSON).
// Unset fields keep their defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		cfg = Default()
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	cfg.applyEnv(os.Getenv)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SaveToFile writes YAML for .yaml/.yml paths and indented JSON otherwise.
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// EnvBaseURL overrides broker.base_url.
const EnvBaseURL = "IBKR_BASE_URL"

func (c *Config) applyEnv(getenv func(string) string) {
	if v := strings.TrimSpace(getenv(EnvBaseURL)); v != "" {
		c.Broker.BaseURL = v
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Broker.BaseURL == "" {
		return fmt.Errorf("broker.base_url is required")
	}
	if !strings.HasPrefix(c.Broker.BaseURL, "http://") && !strings.HasPrefix(c.Broker.BaseURL, "https://") {
		return fmt.Errorf("broker.base_url must be an http(s) URL")
	}
	if c.Broker.TimeoutMs <= 0 {
		return fmt.Errorf("broker.timeout_ms must be positive")
	}
	if c.Journal.Path == "" {
		return fmt.Errorf("journal.path is required")
	}

	switch c.Resolver.Kind {
	case ResolverFixed, ResolverSearch:
	case ResolverTable:
		if len(c.Resolver.Contracts) == 0 {
			return fmt.Errorf("resolver.contracts required for table resolver")
		}
	default:
		return fmt.Errorf("resolver.kind must be 'fixed', 'table' or 'search'")
	}
	if c.Resolver.DefaultConID < 0 {
		return fmt.Errorf("resolver.default_conid must not be negative")
	}
	for sym, conid := range c.Resolver.Contracts {
		if conid <= 0 {
			return fmt.Errorf("resolver.contracts[%s] must be positive", sym)
		}
	}
	return nil
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Broker: BrokerConfig{
			BaseURL:   ibkr.DefaultBaseURL,
			VerifyTLS: false,
			TimeoutMs: int(ibkr.DefaultTimeout / time.Millisecond),
		},
		Journal: JournalConfig{
			Path: journal.DefaultPath,
		},
		Resolver: ResolverConfig{
			Kind:         ResolverFixed,
			DefaultConID: market.DefaultConID,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
