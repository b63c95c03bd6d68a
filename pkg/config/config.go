package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"tabcopy/pkg/errors"

	"github.com/andybalholm/cascadia"
	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

const (
	DefaultTableSelector   = "table.c-table"
	DefaultCaptionSelector = "caption"
	DefaultTriggerLabel    = "Generate Code"
	DefaultUserAgent       = "tabcopy/1.0"

	DefaultReadyTimeout  = 10 * time.Second
	DefaultReadyInterval = 500 * time.Millisecond
	DefaultMinTables     = 1

	DefaultHTTPTimeout  = 30 * time.Second
	DefaultRetryCount   = 3
	DefaultRetryWait    = 1 * time.Second
	DefaultRetryMaxWait = 10 * time.Second
)

// Config holds the complete configuration including site profiles
type Config struct {
	Extract       ExtractConfig   `yaml:"extract" json:"extract"`
	Readiness     ReadinessConfig `yaml:"readiness" json:"readiness"`
	HTTP          HTTPConfig      `yaml:"http" json:"http"`
	Profiles      []Profile       `yaml:"profiles,omitempty" json:"profiles,omitempty"`
	ActiveProfile string          `yaml:"active_profile,omitempty" json:"active_profile,omitempty"`
}

// ExtractConfig selects the tables and captions discovery works on.
type ExtractConfig struct {
	TableSelector   string `yaml:"table_selector,omitempty" json:"table_selector,omitempty"`
	CaptionSelector string `yaml:"caption_selector,omitempty" json:"caption_selector,omitempty"`
	TriggerLabel    string `yaml:"trigger_label,omitempty" json:"trigger_label,omitempty"`
}

// ReadinessConfig controls how long discovery waits for tables to appear.
type ReadinessConfig struct {
	Timeout   time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	Interval  time.Duration `yaml:"interval,omitempty" json:"interval,omitempty"`
	MinTables int           `yaml:"min_tables,omitempty" json:"min_tables,omitempty"`
}

type HTTPConfig struct {
	UserAgent    string        `yaml:"user_agent,omitempty" json:"user_agent,omitempty"`
	Timeout      time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	RetryCount   *int          `yaml:"retry_count,omitempty" json:"retry_count,omitempty"`
	RetryWait    time.Duration `yaml:"retry_wait,omitempty" json:"retry_wait,omitempty"`
	RetryMaxWait time.Duration `yaml:"retry_max_wait,omitempty" json:"retry_max_wait,omitempty"`
}

// Profile overrides extraction settings for pages matching its patterns.
// Patterns are doublestar globs over "host/path", e.g.
// "developer.arm.com/documentation/**".
type Profile struct {
	Name    string        `yaml:"name" json:"name"`
	Match   []string      `yaml:"match,omitempty" json:"match,omitempty"`
	Extract ExtractConfig `yaml:"extract" json:"extract"`
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{
		Profiles: []Profile{BuiltinProfile()},
	}
	applyDefaults(cfg)
	return cfg
}

// BuiltinProfile targets the Cortex-M3 peripheral register tables.
func BuiltinProfile() Profile {
	return Profile{
		Name:  "arm-cortex-m3",
		Match: []string{"developer.arm.com/documentation/dui0552/a/cortex-m3-peripherals/**"},
		Extract: ExtractConfig{
			TableSelector:   "table.c-table",
			CaptionSelector: "caption",
		},
	}
}

// Load reads the config file at path, or the default location when path
// is empty. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := GetConfigPath()
		if err != nil {
			return nil, errors.NewWithError(errors.ExitCodeConfig, "failed to get config path", err)
		}
		path = p
	}
	return loadFromPath(path)
}

// GetConfigPath returns the path to the config file
func GetConfigPath() (string, error) {
	if p := os.Getenv("TABCOPY_CONFIG"); p != "" {
		return p, nil
	}
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "tabcopy", "config.yaml"), nil
}

// Save writes the configuration to path, or the default location when
// path is empty.
func Save(cfg *Config, path string) error {
	if path == "" {
		p, err := GetConfigPath()
		if err != nil {
			return err
		}
		path = p
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.NewWithError(errors.ExitCodeFileOperation, "failed to create config directory", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.NewWithError(errors.ExitCodeConfig, "failed to marshal config", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.NewWithError(errors.ExitCodeFileOperation, "failed to write config file", err)
	}

	return nil
}

// GetProfile returns a profile by name
func (c *Config) GetProfile(name string) (*Profile, error) {
	for i := range c.Profiles {
		if c.Profiles[i].Name == name {
			return &c.Profiles[i], nil
		}
	}
	return nil, errors.NotFoundError(fmt.Sprintf("profile '%s'", name))
}

// SetProfile sets the active profile
func (c *Config) SetProfile(name string) error {
	if name == "" {
		c.ActiveProfile = ""
		return nil
	}

	if _, err := c.GetProfile(name); err != nil {
		return err
	}

	c.ActiveProfile = name
	return nil
}

// AddProfile adds a new profile
func (c *Config) AddProfile(profile Profile) error {
	if _, err := c.GetProfile(profile.Name); err == nil {
		return errors.ValidationError(fmt.Sprintf("profile '%s' already exists", profile.Name))
	}
	if err := validateProfile(profile); err != nil {
		return err
	}

	c.Profiles = append(c.Profiles, profile)
	return nil
}

// RemoveProfile removes a profile
func (c *Config) RemoveProfile(name string) error {
	if c.ActiveProfile == name {
		return errors.ValidationError(fmt.Sprintf("cannot remove active profile '%s'", name))
	}

	for i, p := range c.Profiles {
		if p.Name == name {
			c.Profiles = append(c.Profiles[:i], c.Profiles[i+1:]...)
			return nil
		}
	}
	return errors.NotFoundError(fmt.Sprintf("profile '%s'", name))
}

// ListProfiles returns a list of profile names
func (c *Config) ListProfiles() []string {
	names := make([]string, 0, len(c.Profiles))
	for _, p := range c.Profiles {
		names = append(names, p.Name)
	}
	return names
}

// IsProfileActive returns true if the given profile is active
func (c *Config) IsProfileActive(name string) bool {
	return c.ActiveProfile == name
}

// Resolve returns the extraction settings for target. A forced profile
// wins, then the active profile, then the first profile whose patterns
// match target. The returned name is empty when only the base settings
// apply.
func (c *Config) Resolve(target, forced string) (ExtractConfig, string, error) {
	name := forced
	if name == "" {
		name = c.ActiveProfile
	}
	if name != "" {
		p, err := c.GetProfile(name)
		if err != nil {
			return ExtractConfig{}, "", err
		}
		return mergeExtract(c.Extract, p.Extract), p.Name, nil
	}

	for _, p := range c.Profiles {
		if MatchTarget(p.Match, target) {
			return mergeExtract(c.Extract, p.Extract), p.Name, nil
		}
	}
	return c.Extract, "", nil
}

// MatchTarget reports whether target, an http(s) URL, matches any of the
// patterns. File paths and stdin never match.
func MatchTarget(patterns []string, target string) bool {
	u, err := url.Parse(target)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return false
	}
	subject := u.Host + u.EscapedPath()

	for _, pattern := range patterns {
		if i := strings.Index(pattern, "://"); i >= 0 {
			pattern = pattern[i+3:]
		}
		if ok, err := doublestar.Match(pattern, subject); err == nil && ok {
			return true
		}
	}
	return false
}

func mergeExtract(base, override ExtractConfig) ExtractConfig {
	if override.TableSelector != "" {
		base.TableSelector = override.TableSelector
	}
	if override.CaptionSelector != "" {
		base.CaptionSelector = override.CaptionSelector
	}
	if override.TriggerLabel != "" {
		base.TriggerLabel = override.TriggerLabel
	}
	return base
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}

func loadFromPath(configPath string) (*Config, error) {
	cfg := &Config{}

	found, err := loadConfigFile(configPath, cfg)
	if err != nil {
		return nil, err
	}
	if !found {
		cfg.Profiles = []Profile{BuiltinProfile()}
	}

	applyEnvironmentOverrides(cfg)
	applyDefaults(cfg)

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadConfigFile reads and parses the config file from the given path
func loadConfigFile(path string, cfg *Config) (bool, error) {
	if _, err := os.Stat(path); err != nil {
		// File doesn't exist, that's okay - defaults and env vars apply
		return false, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return false, errors.NewWithError(errors.ExitCodeFileOperation, "failed to read config file", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return false, errors.NewWithError(errors.ExitCodeConfig, "failed to parse config file", err)
	}

	return true, nil
}

// applyEnvironmentOverrides fills settings the file left empty from the
// environment
func applyEnvironmentOverrides(cfg *Config) {
	if cfg.Extract.TableSelector == "" {
		cfg.Extract.TableSelector = getEnv("TABCOPY_TABLE_SELECTOR", "")
	}
	if cfg.Extract.CaptionSelector == "" {
		cfg.Extract.CaptionSelector = getEnv("TABCOPY_CAPTION_SELECTOR", "")
	}
	if cfg.Readiness.Timeout == 0 {
		cfg.Readiness.Timeout = getEnvDuration("TABCOPY_READY_TIMEOUT", 0)
	}
	if cfg.HTTP.UserAgent == "" {
		cfg.HTTP.UserAgent = getEnv("TABCOPY_USER_AGENT", "")
	}

	// Profile can be overridden via environment
	if profileEnv := os.Getenv("TABCOPY_PROFILE"); profileEnv != "" {
		cfg.ActiveProfile = profileEnv
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Extract.TableSelector == "" {
		cfg.Extract.TableSelector = DefaultTableSelector
	}
	if cfg.Extract.CaptionSelector == "" {
		cfg.Extract.CaptionSelector = DefaultCaptionSelector
	}
	if cfg.Extract.TriggerLabel == "" {
		cfg.Extract.TriggerLabel = DefaultTriggerLabel
	}
	if cfg.Readiness.Timeout == 0 {
		cfg.Readiness.Timeout = DefaultReadyTimeout
	}
	if cfg.Readiness.Interval == 0 {
		cfg.Readiness.Interval = DefaultReadyInterval
	}
	if cfg.Readiness.MinTables == 0 {
		cfg.Readiness.MinTables = DefaultMinTables
	}
	if cfg.HTTP.UserAgent == "" {
		cfg.HTTP.UserAgent = DefaultUserAgent
	}
	if cfg.HTTP.Timeout == 0 {
		cfg.HTTP.Timeout = DefaultHTTPTimeout
	}
	if cfg.HTTP.RetryCount == nil {
		cfg.HTTP.RetryCount = Ptr(DefaultRetryCount)
	}
	if cfg.HTTP.RetryWait == 0 {
		cfg.HTTP.RetryWait = DefaultRetryWait
	}
	if cfg.HTTP.RetryMaxWait == 0 {
		cfg.HTTP.RetryMaxWait = DefaultRetryMaxWait
	}
}

// Retries returns the configured retry count. An explicit 0 disables
// retries, an unset count means DefaultRetryCount.
func (h HTTPConfig) Retries() int {
	if h.RetryCount == nil {
		return DefaultRetryCount
	}
	return *h.RetryCount
}

// Ptr returns a pointer to v, for optional settings such as RetryCount.
func Ptr[T any](v T) *T {
	return &v
}

// ValidateSelector checks that sel is a valid CSS selector.
func ValidateSelector(sel string) error {
	if _, err := cascadia.Compile(sel); err != nil {
		return errors.ConfigError(fmt.Sprintf("invalid selector '%s': %v", sel, err))
	}
	return nil
}

func validateProfile(p Profile) error {
	if p.Name == "" {
		return errors.ConfigError("profile name must not be empty")
	}
	for _, pattern := range p.Match {
		if !doublestar.ValidatePattern(pattern) {
			return errors.ConfigError(fmt.Sprintf("profile '%s': invalid match pattern '%s'", p.Name, pattern))
		}
	}
	for _, sel := range []string{p.Extract.TableSelector, p.Extract.CaptionSelector} {
		if sel == "" {
			continue
		}
		if err := ValidateSelector(sel); err != nil {
			return errors.Wrap(err, fmt.Sprintf("profile '%s'", p.Name))
		}
	}
	return nil
}

// validateConfig ensures selectors compile, durations are positive and
// profile names are unique
func validateConfig(cfg *Config) error {
	if err := ValidateSelector(cfg.Extract.TableSelector); err != nil {
		return err
	}
	if err := ValidateSelector(cfg.Extract.CaptionSelector); err != nil {
		return err
	}
	if cfg.Readiness.Timeout < 0 || cfg.Readiness.Interval < 0 {
		return errors.ConfigError("readiness timeout and interval must be positive")
	}
	if cfg.HTTP.Timeout < 0 || cfg.HTTP.Retries() < 0 {
		return errors.ConfigError("http timeout and retry_count must not be negative")
	}

	seen := make(map[string]bool, len(cfg.Profiles))
	for _, p := range cfg.Profiles {
		if seen[p.Name] {
			return errors.ConfigError(fmt.Sprintf("duplicate profile name '%s'", p.Name))
		}
		seen[p.Name] = true
		if err := validateProfile(p); err != nil {
			return err
		}
	}

	if cfg.ActiveProfile != "" && !seen[cfg.ActiveProfile] {
		return errors.ConfigError(fmt.Sprintf("active profile '%s' is not defined", cfg.ActiveProfile))
	}
	return nil
}
