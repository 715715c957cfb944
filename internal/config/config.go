package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FeedConfig describes a single ICS calendar subscription source.
type FeedConfig struct {
	// URL is the ICS endpoint.
	URL string `yaml:"url" json:"url"`
	// ID is an internal identifier used for provenance and logging.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label.
	Name string `yaml:"name" json:"name"`
}

// SheetConfig describes the safety-report spreadsheet, exported as CSV.
type SheetConfig struct {
	// URL is the CSV export endpoint of the report sheet.
	URL string `yaml:"url" json:"url"`
}

// GeocoderConfig tunes the reverse-geocoding collaborator.
type GeocoderConfig struct {
	// BaseURL is the Nominatim-compatible endpoint.
	BaseURL string `yaml:"base_url" json:"base_url"`
	// UserAgent identifies us to the geocoding service (required by the
	// Nominatim usage policy).
	UserAgent string `yaml:"user_agent" json:"user_agent"`
	// TimeoutSeconds bounds a single reverse lookup.
	TimeoutSeconds int `yaml:"timeout_seconds" json:"timeout_seconds"`
	// Attempts is the total number of tries before giving up silently.
	Attempts int `yaml:"attempts" json:"attempts"`
	// RetryWaitSeconds is the wait between attempts.
	RetryWaitSeconds int `yaml:"retry_wait_seconds" json:"retry_wait_seconds"`
}

// OutputConfig names the target page and the marker comments between which
// the generated fragments are spliced.
type OutputConfig struct {
	Page        string `yaml:"page" json:"page"`
	EventsStart string `yaml:"events_start" json:"events_start"`
	EventsEnd   string `yaml:"events_end" json:"events_end"`
	AlertsStart string `yaml:"alerts_start" json:"alerts_start"`
	AlertsEnd   string `yaml:"alerts_end" json:"alerts_end"`
}

// RuleConfig is one classifier rule: first matching keyword wins.
type RuleConfig struct {
	Keyword  string `yaml:"keyword" json:"keyword"`
	Category string `yaml:"category" json:"category"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the status server.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the status server (daemon mode).
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA reference zone to which all comparisons and
	// display are normalized (e.g. "America/Chicago").
	Timezone string `yaml:"timezone" json:"timezone"`

	// RefreshCron is a cron-style schedule string (e.g. "*/15 * * * *")
	// used for periodic refresh in daemon mode.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// HorizonDays is the number of future days an event may start or run
	// into and still be shown.
	HorizonDays int `yaml:"horizon_days" json:"horizon_days"`

	// DefaultPlace is the fallback place name used when a record carries
	// no usable location or town.
	DefaultPlace string `yaml:"default_place" json:"default_place"`

	// CacheDir is the base directory for the conditional-fetch disk cache.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// Calendars is the list of subscribed ICS sources.
	Calendars []FeedConfig `yaml:"calendars" json:"calendars"`

	// Sheet is the safety-report spreadsheet source.
	Sheet SheetConfig `yaml:"sheet" json:"sheet"`

	// Geocoder configures reverse geocoding of coordinate locations.
	Geocoder GeocoderConfig `yaml:"geocoder" json:"geocoder"`

	// Output is the target page and its marker comments.
	Output OutputConfig `yaml:"output" json:"output"`

	// Rules optionally overrides the built-in classifier rule table.
	Rules []RuleConfig `yaml:"rules,omitempty" json:"rules,omitempty"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:       "127.0.0.1:8080",
		Timezone:     "America/Chicago",
		RefreshCron:  "*/15 * * * *",
		HorizonDays:  7,
		DefaultPlace: "Clay County",
		CacheDir:     "./var/feed-cache",
		Calendars:    []FeedConfig{},
		Sheet:        SheetConfig{},
		Geocoder: GeocoderConfig{
			BaseURL:          "https://nominatim.openstreetmap.org",
			UserAgent:        "claycal/1.0 (community safety portal)",
			TimeoutSeconds:   30,
			Attempts:         3,
			RetryWaitSeconds: 2,
		},
		Output: OutputConfig{
			Page:        "./public/index.html",
			EventsStart: "<!-- EVENTS START -->",
			EventsEnd:   "<!-- EVENTS END -->",
			AlertsStart: "<!-- ALERTS START -->",
			AlertsEnd:   "<!-- ALERTS END -->",
		},
		BasicAuth: nil,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()

	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	if c.RefreshCron == "" {
		c.RefreshCron = def.RefreshCron
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = def.HorizonDays
	}
	if c.DefaultPlace == "" {
		c.DefaultPlace = def.DefaultPlace
	}
	if c.CacheDir == "" {
		c.CacheDir = def.CacheDir
	}
	if c.Calendars == nil {
		c.Calendars = []FeedConfig{}
	}

	if c.Geocoder.BaseURL == "" {
		c.Geocoder.BaseURL = def.Geocoder.BaseURL
	}
	if c.Geocoder.UserAgent == "" {
		c.Geocoder.UserAgent = def.Geocoder.UserAgent
	}
	if c.Geocoder.TimeoutSeconds <= 0 {
		c.Geocoder.TimeoutSeconds = def.Geocoder.TimeoutSeconds
	}
	if c.Geocoder.Attempts <= 0 {
		c.Geocoder.Attempts = def.Geocoder.Attempts
	}
	if c.Geocoder.RetryWaitSeconds <= 0 {
		c.Geocoder.RetryWaitSeconds = def.Geocoder.RetryWaitSeconds
	}

	if c.Output.Page == "" {
		c.Output.Page = def.Output.Page
	}
	if c.Output.EventsStart == "" {
		c.Output.EventsStart = def.Output.EventsStart
	}
	if c.Output.EventsEnd == "" {
		c.Output.EventsEnd = def.Output.EventsEnd
	}
	if c.Output.AlertsStart == "" {
		c.Output.AlertsStart = def.Output.AlertsStart
	}
	if c.Output.AlertsEnd == "" {
		c.Output.AlertsEnd = def.Output.AlertsEnd
	}
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
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
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
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

	// Atomic write: write to temp file in same directory then rename.
	tmp, err := os.CreateTemp(dir, ".claycal-config-*.tmp")
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

	if err := os.Rename(tmpName, path); err != nil {
		return err
	}

	return nil
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
