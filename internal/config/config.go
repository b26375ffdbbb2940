package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultListenPort       = 8080
	DefaultScheduleInterval = 6 * time.Hour
	DefaultFastCount        = 25
	DefaultFetchTimeout     = 10 * time.Second
	DefaultProbeTimeout     = 5 * time.Second
	DefaultProbeConcurrency = 10
	DefaultMaxAddresses     = 200
	DefaultStorageBackend   = "sqlite"
	DefaultStoragePath      = "data/collector.db"
)

// DefaultSources is the harvest list used when the config file names none.
var DefaultSources = []string{
	"https://ip.164746.xyz",
	"https://ip.haogege.xyz",
	"https://stock.hostmonit.com/CloudFlareYes",
	"https://api.uouin.com/cloudflare.html",
	"https://addressesapi.090227.xyz",
	"https://www.wetest.vip",
}

// Config is the top-level configuration tree parsed from YAML.
type Config struct {
	Collector CollectorConfig `yaml:"collector"`
}

// CollectorConfig holds all runtime settings for the collector binary.
type CollectorConfig struct {
	// ListenPort is the port the HTTP control surface listens on.
	ListenPort int `yaml:"listen_port"`

	// Sources is the list of URLs scanned for candidate addresses.
	Sources []string `yaml:"sources"`

	// FetchTimeout is the deadline for downloading one source page.
	// Separate from the probe timeout: source pages are full documents,
	// probes are single HEAD round-trips.
	FetchTimeout time.Duration `yaml:"fetch_timeout"`

	// ScheduleInterval controls how often a full collect+probe run is
	// triggered automatically. Zero disables scheduled runs.
	ScheduleInterval time.Duration `yaml:"schedule_interval"`

	// FastCount is the number of top-ranked addresses retained.
	FastCount int `yaml:"fast_count"`

	// Probe holds the latency prober tuning knobs.
	Probe ProbeConfig `yaml:"probe"`

	// Admin configures the password gate for mutating operations.
	Admin AdminConfig `yaml:"admin"`

	// Storage configures the persistence backend.
	Storage StorageConfig `yaml:"storage"`
}

// ProbeConfig holds the latency prober tuning knobs.
type ProbeConfig struct {
	// Timeout is the per-probe deadline.
	Timeout time.Duration `yaml:"timeout"`

	// Concurrency is the fixed size of the probe worker pool.
	Concurrency int `yaml:"concurrency"`

	// MaxAddresses caps how many collected addresses are probed per run.
	MaxAddresses int `yaml:"max_addresses"`
}

// AdminConfig configures the password gate.
type AdminConfig struct {
	// PasswordEnv is the name of the environment variable holding the
	// admin password. An unset variable (or empty value) disables the
	// gate entirely — every request is authorized.
	PasswordEnv string `yaml:"password_env"`
}

// Password returns the admin password resolved from the environment.
// Returns empty string if PasswordEnv is unset or the variable is empty.
func (a AdminConfig) Password() string {
	if a.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(a.PasswordEnv)
}

// StorageConfig configures the persistence backend.
type StorageConfig struct {
	// Backend selects the store implementation: sqlite | memory.
	Backend string `yaml:"backend"`

	// Path is the filesystem path for the SQLite database file.
	Path string `yaml:"path"`
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with sensible defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Collector: CollectorConfig{
			ListenPort:       DefaultListenPort,
			Sources:          append([]string(nil), DefaultSources...),
			FetchTimeout:     DefaultFetchTimeout,
			ScheduleInterval: DefaultScheduleInterval,
			FastCount:        DefaultFastCount,
			Probe: ProbeConfig{
				Timeout:      DefaultProbeTimeout,
				Concurrency:  DefaultProbeConcurrency,
				MaxAddresses: DefaultMaxAddresses,
			},
			Storage: StorageConfig{
				Backend: DefaultStorageBackend,
				Path:    DefaultStoragePath,
			},
		},
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	c := cfg.Collector
	if c.ListenPort <= 0 || c.ListenPort > 65535 {
		return fmt.Errorf("collector.listen_port must be in 1..65535")
	}
	if len(c.Sources) == 0 {
		return fmt.Errorf("collector.sources must not be empty")
	}
	for i, s := range c.Sources {
		u, err := url.Parse(s)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("collector.sources[%d]: invalid url %q", i, s)
		}
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("collector.fetch_timeout must be positive")
	}
	if c.ScheduleInterval < 0 {
		return fmt.Errorf("collector.schedule_interval must not be negative")
	}
	if c.FastCount <= 0 {
		return fmt.Errorf("collector.fast_count must be positive")
	}
	if c.Probe.Timeout <= 0 {
		return fmt.Errorf("collector.probe.timeout must be positive")
	}
	if c.Probe.Concurrency <= 0 {
		return fmt.Errorf("collector.probe.concurrency must be positive")
	}
	if c.Probe.MaxAddresses <= 0 {
		return fmt.Errorf("collector.probe.max_addresses must be positive")
	}
	switch c.Storage.Backend {
	case "sqlite", "memory":
	default:
		return fmt.Errorf("collector.storage.backend: unknown backend %q", c.Storage.Backend)
	}
	if c.Storage.Backend == "sqlite" && c.Storage.Path == "" {
		return fmt.Errorf("collector.storage.path is required for the sqlite backend")
	}
	return nil
}
