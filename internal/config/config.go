// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/storyrun-tui/internal/model"
	"github.com/jeranaias/storyrun-tui/internal/offline"
	"github.com/jeranaias/storyrun-tui/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete storyrun configuration.
type Config struct {
	General    GeneralConfig    `toml:"general" json:"general"`
	Generation GenerationConfig `toml:"generation" json:"generation"`
	Retry      RetryConfig      `toml:"retry" json:"retry"`
	Providers  ProvidersConfig  `toml:"providers" json:"providers"`

	// Models overrides catalog context windows or adds models to the catalog
	Models []model.ModelSpec `toml:"models" json:"models"`

	Logging LoggingConfig `toml:"logging" json:"logging"`
	UI      UIConfig      `toml:"ui" json:"ui"`
}

// GeneralConfig contains application-wide settings.
type GeneralConfig struct {
	// DefaultModel is the "provider/name" used for new stories
	DefaultModel string `toml:"default_model" json:"default_model"`
	// StorageBackend is "json" or "sqlite"
	StorageBackend string `toml:"storage_backend" json:"storage_backend"`
	// DataDir holds stories (empty = ~/.storyrun)
	DataDir string `toml:"data_dir" json:"data_dir"`
	// MaxOutputTokens caps each continuation
	MaxOutputTokens int `toml:"max_output_tokens" json:"max_output_tokens"`
	// ReserveForOutput is the context kept free for the reply
	ReserveForOutput int `toml:"reserve_for_output" json:"reserve_for_output"`
	// Offline allows only local providers
	Offline bool `toml:"offline" json:"offline"`
}

// GenerationConfig contains sampling parameters.
type GenerationConfig struct {
	Temperature float64 `toml:"temperature" json:"temperature"`
	TopP        float64 `toml:"top_p" json:"top_p"`
}

// RetryConfig controls how failed provider calls are retried.
type RetryConfig struct {
	MaxAttempts    int      `toml:"max_attempts" json:"max_attempts"`
	BaseDelay      Duration `toml:"base_delay" json:"base_delay"`
	MaxDelay       Duration `toml:"max_delay" json:"max_delay"`
	AttemptTimeout Duration `toml:"attempt_timeout" json:"attempt_timeout"`
}

// ProvidersConfig holds per-provider connection settings.
type ProvidersConfig struct {
	OpenAI  ProviderConfig `toml:"openai" json:"openai"`
	Gemini  ProviderConfig `toml:"gemini" json:"gemini"`
	Mistral ProviderConfig `toml:"mistral" json:"mistral"`
	Ollama  ProviderConfig `toml:"ollama" json:"ollama"`
}

// ProviderConfig configures one provider endpoint.
type ProviderConfig struct {
	// BaseURL overrides the API root (empty = provider default)
	BaseURL string `toml:"base_url" json:"base_url"`
	// Timeout bounds one HTTP round trip
	Timeout Duration `toml:"timeout" json:"timeout"`
	// RequestsPerMinute paces calls (0 = adapter default, negative = unpaced)
	RequestsPerMinute int `toml:"requests_per_minute" json:"requests_per_minute"`
}

// LoggingConfig controls the structured log output.
type LoggingConfig struct {
	// Level is debug, info, warn or error
	Level string `toml:"level" json:"level"`
	// Format is text or json
	Format string `toml:"format" json:"format"`
	// File is the log path (empty = ~/.storyrun/storyrun.log)
	File string `toml:"file" json:"file"`
}

// UIConfig contains terminal UI settings.
type UIConfig struct {
	// Theme is "auto", "dark" or "light"
	Theme string `toml:"theme" json:"theme"`
	// WordWrap is the transcript wrap width (0 = terminal width)
	WordWrap int `toml:"word_wrap" json:"word_wrap"`
}

// Provider returns the settings for a provider id.
func (p ProvidersConfig) Provider(id string) ProviderConfig {
	switch id {
	case model.ProviderOpenAI:
		return p.OpenAI
	case model.ProviderGemini:
		return p.Gemini
	case model.ProviderMistral:
		return p.Mistral
	case model.ProviderOllama:
		return p.Ollama
	}
	return ProviderConfig{}
}

// =============================================================================
// DURATION
// =============================================================================

// Duration is a time.Duration written as "30s" in TOML and JSON.
type Duration struct {
	time.Duration
}

// Seconds builds a Duration from whole seconds.
func Seconds(n int) Duration {
	return Duration{time.Duration(n) * time.Second}
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
// A bare number is read as seconds.
func (d *Duration) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	if n, err := strconv.Atoi(s); err == nil {
		d.Duration = time.Duration(n) * time.Second
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = v
	return nil
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		General: GeneralConfig{
			DefaultModel:     model.DefaultModelID,
			StorageBackend:   "json",
			MaxOutputTokens:  100,
			ReserveForOutput: 100,
		},
		Generation: GenerationConfig{
			Temperature: 0.75,
			TopP:        1.0,
		},
		Retry: RetryConfig{
			MaxAttempts:    3,
			BaseDelay:      Seconds(1),
			MaxDelay:       Seconds(30),
			AttemptTimeout: Seconds(120),
		},
		Providers: ProvidersConfig{
			OpenAI:  ProviderConfig{Timeout: Seconds(60)},
			Gemini:  ProviderConfig{Timeout: Seconds(60)},
			Mistral: ProviderConfig{Timeout: Seconds(120)},
			Ollama:  ProviderConfig{BaseURL: "http://127.0.0.1:11434", Timeout: Seconds(120)},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		UI: UIConfig{
			Theme: "auto",
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the storyrun configuration directory path.
func ConfigDir() (string, error) {
	if dir := os.Getenv("STORYRUN_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".storyrun"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	return inConfigDir("config.toml")
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	return inConfigDir("config.json")
}

// SecretsPath returns the path to the secrets file.
func SecretsPath() (string, error) {
	return inConfigDir("secrets.toml")
}

func inConfigDir(name string) (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, util.PrivateDirPerm)
}

// ResolveDataDir returns the directory stories are kept in.
func (c *Config) ResolveDataDir() (string, error) {
	if c.General.DataDir != "" {
		return expandHome(c.General.DataDir)
	}
	return ConfigDir()
}

// ResolveLogFile returns the log file path.
func (c *Config) ResolveLogFile() (string, error) {
	if c.Logging.File != "" {
		return expandHome(c.Logging.File)
	}
	return inConfigDir("storyrun.log")
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the config file(s).
// Tries TOML first, then JSON, and falls back to defaults.
// Environment overrides are applied last.
func Load() (*Config, error) {
	for _, pathFn := range []func() (string, error){ConfigPathTOML, ConfigPathJSON} {
		path, err := pathFn()
		if err != nil {
			continue
		}
		if _, statErr := os.Stat(path); statErr == nil {
			return LoadFrom(path)
		}
	}

	cfg := Default()
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFrom loads configuration from a specific file path with full validation.
// Files ending in .json are read as JSON, anything else as TOML.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	if strings.HasSuffix(path, ".json") {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read JSON config %s: %w", path, err)
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode JSON config %s: %w", path, err)
		}
	} else {
		md, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to decode TOML config %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return nil, &ValidationError{Field: keys[0], Message: "unknown key (" + strings.Join(keys, ", ") + ")"}
		}
	}

	cfg.fillDefaults()
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// fillDefaults fills in values a partial file left at zero.
func (c *Config) fillDefaults() {
	d := Default()

	if c.General.DefaultModel == "" {
		c.General.DefaultModel = d.General.DefaultModel
	}
	if c.General.StorageBackend == "" {
		c.General.StorageBackend = d.General.StorageBackend
	}
	if c.General.MaxOutputTokens == 0 {
		c.General.MaxOutputTokens = d.General.MaxOutputTokens
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = d.Retry.MaxAttempts
	}
	if c.Retry.BaseDelay.Duration == 0 {
		c.Retry.BaseDelay = d.Retry.BaseDelay
	}
	if c.Retry.MaxDelay.Duration == 0 {
		c.Retry.MaxDelay = d.Retry.MaxDelay
	}
	if c.Retry.AttemptTimeout.Duration == 0 {
		c.Retry.AttemptTimeout = d.Retry.AttemptTimeout
	}
	if c.Providers.Ollama.BaseURL == "" {
		c.Providers.Ollama.BaseURL = d.Providers.Ollama.BaseURL
	}
	if c.Logging.Level == "" {
		c.Logging.Level = d.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = d.Logging.Format
	}
	if c.UI.Theme == "" {
		c.UI.Theme = d.UI.Theme
	}
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// WriteDefault writes the default configuration to the TOML path unless a
// TOML or JSON config already exists. It reports whether it wrote a file.
func WriteDefault() (bool, error) {
	for _, pathFn := range []func() (string, error){ConfigPathTOML, ConfigPathJSON} {
		path, err := pathFn()
		if err != nil {
			return false, err
		}
		if _, err := os.Stat(path); err == nil {
			return false, nil
		}
	}
	return true, Save(Default())
}

// SaveTOML saves the configuration to a TOML file.
// RELIABILITY: Atomic write with fsync prevents data loss on crash
func SaveTOML(cfg *Config, path string) error {
	var sb strings.Builder
	sb.WriteString("# storyrun configuration file\n")
	sb.WriteString("# API keys belong in secrets.toml, not here.\n\n")
	if err := toml.NewEncoder(&sb).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := util.AtomicWriteFile(path, []byte(sb.String()), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []*ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if _, _, err := model.ParseID(c.General.DefaultModel); err != nil {
		add("general.default_model", "must be provider/name, got %q", c.General.DefaultModel)
	}
	switch strings.ToLower(c.General.StorageBackend) {
	case "json", "sqlite":
	default:
		add("general.storage_backend", "must be json or sqlite, got %q", c.General.StorageBackend)
	}
	if c.General.MaxOutputTokens <= 0 {
		add("general.max_output_tokens", "must be positive")
	}
	if c.General.ReserveForOutput < 0 {
		add("general.reserve_for_output", "must not be negative")
	}

	if c.Generation.Temperature < 0 || c.Generation.Temperature > 2 {
		add("generation.temperature", "must be between 0 and 2")
	}
	if c.Generation.TopP < 0 || c.Generation.TopP > 1 {
		add("generation.top_p", "must be between 0 and 1")
	}

	if c.Retry.MaxAttempts < 1 || c.Retry.MaxAttempts > 10 {
		add("retry.max_attempts", "must be between 1 and 10")
	}
	if c.Retry.BaseDelay.Duration < 0 || c.Retry.MaxDelay.Duration < 0 {
		add("retry", "delays must not be negative")
	}
	if c.Retry.MaxDelay.Duration > 0 && c.Retry.BaseDelay.Duration > c.Retry.MaxDelay.Duration {
		add("retry.base_delay", "must not exceed max_delay")
	}
	if c.Retry.AttemptTimeout.Duration < 0 {
		add("retry.attempt_timeout", "must not be negative")
	}

	for _, id := range []string{model.ProviderOpenAI, model.ProviderGemini, model.ProviderMistral, model.ProviderOllama} {
		p := c.Providers.Provider(id)
		if p.BaseURL != "" && !strings.HasPrefix(p.BaseURL, "http://") && !strings.HasPrefix(p.BaseURL, "https://") {
			add("providers."+id+".base_url", "must be an http(s) URL")
		}
		if p.Timeout.Duration < 0 {
			add("providers."+id+".timeout", "must not be negative")
		}
	}

	if c.General.Offline {
		if u, err := url.Parse(c.Providers.Ollama.BaseURL); err != nil || !offline.IsLocalhost(u.Hostname()) {
			add("providers.ollama.base_url", "must be a localhost URL in offline mode")
		}
	}

	for i, m := range c.Models {
		if m.Provider == "" || m.Name == "" {
			add(fmt.Sprintf("models[%d]", i), "provider and name are required")
		}
		if m.ContextWindow < 0 {
			add(fmt.Sprintf("models[%d].context_window", i), "must not be negative")
		}
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		add("logging.level", "must be debug, info, warn or error")
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		add("logging.format", "must be text or json")
	}
	switch strings.ToLower(c.UI.Theme) {
	case "auto", "dark", "light":
	default:
		add("ui.theme", "must be auto, dark or light")
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// MODEL OVERRIDES
// =============================================================================

// ModelOverrides splits the [[models]] entries into context-window overrides
// for catalog models and extra specs for models the catalog lacks.
func (c *Config) ModelOverrides() (windows map[string]int, extra []model.ModelSpec) {
	windows = make(map[string]int)
	for _, m := range c.Models {
		if _, ok := model.Lookup(m.Provider, m.Name); ok {
			if m.ContextWindow > 0 {
				windows[m.ID()] = m.ContextWindow
			}
			continue
		}
		switch m.Provider {
		case model.ProviderOpenAI, model.ProviderGemini, model.ProviderMistral:
			m.RequiresCredential = true
		}
		extra = append(extra, m)
	}
	return windows, extra
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - STORYRUN_MODEL: overrides general.default_model
//   - STORYRUN_STORAGE: overrides general.storage_backend
//   - STORYRUN_DATA_DIR: overrides general.data_dir
//   - STORYRUN_MAX_OUTPUT_TOKENS: overrides general.max_output_tokens
//   - STORYRUN_OLLAMA_URL: overrides providers.ollama.base_url
//   - STORYRUN_LOG_LEVEL: overrides logging.level
//   - STORYRUN_LOG_FILE: overrides logging.file
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("STORYRUN_MODEL"); v != "" {
		c.General.DefaultModel = v
	}
	if v := os.Getenv("STORYRUN_STORAGE"); v != "" {
		c.General.StorageBackend = v
	}
	if v := os.Getenv("STORYRUN_DATA_DIR"); v != "" {
		c.General.DataDir = v
	}
	if v := os.Getenv("STORYRUN_MAX_OUTPUT_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.General.MaxOutputTokens = n
		}
	}
	if v := os.Getenv("STORYRUN_OFFLINE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.General.Offline = b
		}
	}
	if v := os.Getenv("STORYRUN_OLLAMA_URL"); v != "" {
		c.Providers.Ollama.BaseURL = v
	}
	if v := os.Getenv("STORYRUN_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("STORYRUN_LOG_FILE"); v != "" {
		c.Logging.File = v
	}
}
