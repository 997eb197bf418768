package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"famcal/internal/model"
)

// FeedConfig describes one subscribed calendar feed.
type FeedConfig struct {
	// URL is the feed endpoint (http, https or webcal).
	URL string `yaml:"url" json:"url"`
	// ID is an internal identifier used for attribution and logging.
	ID string `yaml:"id" json:"id"`
	// Name is the human-friendly label shown to the family.
	Name string `yaml:"name" json:"name"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen" json:"listen"`

	// RefreshCron is a cron expression (e.g. "*/15 * * * *") for the
	// periodic timeline prewarm. Empty disables the prewarm.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// FetchTimeoutSeconds bounds each single feed GET.
	FetchTimeoutSeconds int `yaml:"fetch_timeout_seconds" json:"fetch_timeout_seconds"`

	// MaxConcurrentFetches bounds merge fan-out across feeds.
	MaxConcurrentFetches int `yaml:"max_concurrent_fetches" json:"max_concurrent_fetches"`

	// DefaultFilter is the date filter applied when a request names none:
	// all, upcoming, this_week or this_month.
	DefaultFilter string `yaml:"default_filter" json:"default_filter"`

	// Feeds is the list of subscribed calendar feeds.
	Feeds []FeedConfig `yaml:"feeds" json:"feeds"`

	// BasicAuth, if non-nil, enables HTTP Basic Auth on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns the in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:               "127.0.0.1:8080",
		RefreshCron:          "*/15 * * * *",
		FetchTimeoutSeconds:  10,
		MaxConcurrentFetches: 6,
		DefaultFilter:        "all",
		Feeds:                []FeedConfig{},
	}
}

// Normalize fills missing or zero values with defaults so partially
// written config files still behave.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	if c.FetchTimeoutSeconds <= 0 {
		c.FetchTimeoutSeconds = 10
	}
	if c.MaxConcurrentFetches <= 0 {
		c.MaxConcurrentFetches = 6
	}
	switch c.DefaultFilter {
	case "all", "upcoming", "this_week", "this_month":
	default:
		c.DefaultFilter = "all"
	}
	if c.Feeds == nil {
		c.Feeds = []FeedConfig{}
	}
}

// FeedList converts the configured feeds into model values, deriving
// missing IDs from the name or URL.
func (c *Config) FeedList() []model.Feed {
	feeds := make([]model.Feed, 0, len(c.Feeds))
	for _, fc := range c.Feeds {
		if fc.URL == "" {
			continue
		}
		id := fc.ID
		if id == "" {
			if fc.Name != "" {
				id = fc.Name
			} else {
				id = fc.URL
			}
		}
		name := fc.Name
		if name == "" {
			name = id
		}
		feeds = append(feeds, model.Feed{URL: fc.URL, ID: id, Name: name})
	}
	return feeds
}

// Load reads configuration from the given YAML path. A missing file is
// treated as a first run: a default config is written (0600) and returned.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()
	return &cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600
// permissions, creating the parent directory if needed.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".famcald-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
