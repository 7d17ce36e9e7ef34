package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"eventclock/internal/clock"
	"eventclock/internal/model"
	"eventclock/internal/status"
)

// ClockConfig is one of the two wall clocks shown on the board.
type ClockConfig struct {
	// Label is shown above the clock (e.g. "Seoul").
	Label string `yaml:"label" json:"label"`
	// Timezone is an IANA name (e.g. "Asia/Seoul").
	Timezone string `yaml:"timezone" json:"timezone"`
}

// FeedConfig describes a single iCalendar source. Exactly one of URL and
// Path should be set.
type FeedConfig struct {
	ID   string `yaml:"id" json:"id"`
	URL  string `yaml:"url,omitempty" json:"url,omitempty"`
	Path string `yaml:"path,omitempty" json:"path,omitempty"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the board.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the board.
	Listen string `yaml:"listen" json:"listen"`

	// Clocks are the two fixed-timezone clocks.
	Clocks []ClockConfig `yaml:"clocks" json:"clocks"`

	// TimeLayout and DateLayout are Go reference layouts for the clocks.
	TimeLayout string `yaml:"time_layout" json:"time_layout"`
	DateLayout string `yaml:"date_layout" json:"date_layout"`

	// LiveThreshold is how long before its start an event is shown as live.
	LiveThreshold time.Duration `yaml:"live_threshold" json:"live_threshold"`

	// LiveDuration is how long after its start an event stays live.
	LiveDuration time.Duration `yaml:"live_duration" json:"live_duration"`

	// Tick is the re-evaluation period. Must be a whole number of seconds.
	Tick time.Duration `yaml:"tick" json:"tick"`

	// RefreshCron is the cron spec for reloading feeds
	// (e.g. "*/15 * * * *"). Ignored when there are no feeds.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// HorizonDays bounds recurrence expansion of feed events.
	HorizonDays int `yaml:"horizon_days" json:"horizon_days"`

	// CacheDir is where fetched feeds are cached.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// LogLevel is one of "debug", "info", "error".
	LogLevel string `yaml:"log_level" json:"log_level"`

	Events []model.Event `yaml:"events" json:"events"`
	Feeds  []FeedConfig  `yaml:"feeds" json:"feeds"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

const (
	defaultListen      = "127.0.0.1:8080"
	defaultTick        = time.Second
	defaultRefreshCron = "*/15 * * * *"
	defaultHorizonDays = 30
	defaultCacheDir    = "/var/lib/eventclock/feed-cache"
)

func defaultClocks() []ClockConfig {
	return []ClockConfig{
		{Label: "Seoul", Timezone: "Asia/Seoul"},
		{Label: "Los Angeles", Timezone: "America/Los_Angeles"},
	}
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:        defaultListen,
		Clocks:        defaultClocks(),
		TimeLayout:    clock.DefaultTimeLayout,
		DateLayout:    clock.DefaultDateLayout,
		LiveThreshold: status.DefaultLiveThreshold,
		LiveDuration:  status.DefaultLiveDuration,
		Tick:          defaultTick,
		RefreshCron:   defaultRefreshCron,
		HorizonDays:   defaultHorizonDays,
		CacheDir:      defaultCacheDir,
		LogLevel:      "info",
		Events:        []model.Event{},
		Feeds:         []FeedConfig{},
	}
}

// Normalize fills in missing/zero values so partially-filled files still
// behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if len(c.Clocks) == 0 {
		c.Clocks = defaultClocks()
	}
	if c.TimeLayout == "" {
		c.TimeLayout = clock.DefaultTimeLayout
	}
	if c.DateLayout == "" {
		c.DateLayout = clock.DefaultDateLayout
	}
	if c.LiveThreshold == 0 {
		c.LiveThreshold = status.DefaultLiveThreshold
	}
	if c.LiveDuration == 0 {
		c.LiveDuration = status.DefaultLiveDuration
	}
	if c.Tick <= 0 {
		c.Tick = defaultTick
	}
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefreshCron
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = defaultHorizonDays
	}
	if c.CacheDir == "" {
		c.CacheDir = defaultCacheDir
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Events == nil {
		c.Events = []model.Event{}
	}
	if c.Feeds == nil {
		c.Feeds = []FeedConfig{}
	}
}

var (
	ErrClockCount   = errors.New("exactly two clocks are required")
	ErrLiveWindow   = errors.New("live window is invalid")
	ErrTick         = errors.New("tick must be a whole number of seconds")
	ErrFeedLocation = errors.New("feed needs exactly one of url and path")
)

// Validate reports the first configuration error found. Call after
// Normalize.
func (c *Config) Validate() error {
	if len(c.Clocks) != 2 {
		return fmt.Errorf("config: clocks: %w (got %d)", ErrClockCount, len(c.Clocks))
	}
	for i, cc := range c.Clocks {
		if _, err := clock.LoadLocation(cc.Timezone); err != nil {
			return fmt.Errorf("config: clocks[%d].timezone: %w", i, err)
		}
	}
	if c.LiveThreshold < 0 {
		return fmt.Errorf("config: live_threshold: %w: must not be negative", ErrLiveWindow)
	}
	if c.LiveDuration <= 0 {
		return fmt.Errorf("config: live_duration: %w: must be positive", ErrLiveWindow)
	}
	if c.Tick < time.Second || c.Tick%time.Second != 0 {
		return fmt.Errorf("config: tick: %w (got %s)", ErrTick, c.Tick)
	}
	if len(c.Feeds) > 0 {
		if _, err := cron.ParseStandard(c.RefreshCron); err != nil {
			return fmt.Errorf("config: refresh: %w", err)
		}
	}
	for i, f := range c.Feeds {
		if (f.URL == "") == (f.Path == "") {
			return fmt.Errorf("config: feeds[%d]: %w", i, ErrFeedLocation)
		}
	}
	return nil
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults and validate
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the given configuration to path atomically (temp file +
// rename) with 0600 permissions, creating the parent directory (0700).
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

	tmp, err := os.CreateTemp(dir, ".eventclock-config-*.tmp")
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

// Save is a convenience method delegating to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
