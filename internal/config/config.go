package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/facetlabs/facet/internal/aspect"
	"github.com/facetlabs/facet/internal/bundle"
)

// Config is the effective facet configuration.
type Config struct {
	Aspects        []string      `json:"aspects"`
	MaxLLMCalls    int           `json:"maxLLMCalls"`
	MaxWorkers     int           `json:"maxWorkers"`
	TimeoutSeconds int           `json:"timeoutSeconds"`
	MaxTotalLines  int           `json:"maxTotalLines"`
	MaxFileLines   int           `json:"maxFileLines"`
	ContextLines   int           `json:"contextLines"`
	Format         string        `json:"format"`
	OpencodeBin    string        `json:"opencodeBin"`
	OpencodeModel  string        `json:"opencodeModel,omitempty"`
	OpencodeAgent  string        `json:"opencodeAgent,omitempty"`
	PromptsDir     string        `json:"promptsDir,omitempty"`
	Cache          CacheConfig   `json:"cache"`
	Privacy        PrivacyConfig `json:"privacy"`
	GitHub         GitHubConfig  `json:"github"`
}

// CacheConfig controls viewpoint response caching.
type CacheConfig struct {
	Enabled    bool   `json:"enabled"`
	Dir        string `json:"dir,omitempty"`
	TTLSeconds int    `json:"ttlSeconds"`
}

// PrivacyConfig controls redaction behavior.
type PrivacyConfig struct {
	RedactSecrets bool `json:"redactSecrets"`
}

// GitHubConfig controls PR comment posting.
type GitHubConfig struct {
	PostSummary bool `json:"postSummary"`
	PostInline  bool `json:"postInline"`
	InlineLimit int  `json:"inlineLimit"`
}

// Default returns a Config with all defaults applied.
func Default() Config {
	return Config{
		Aspects:        append([]string(nil), aspect.Known...),
		MaxLLMCalls:    8,
		MaxWorkers:     8,
		TimeoutSeconds: 300,
		MaxTotalLines:  bundle.DefaultMaxTotalLines,
		MaxFileLines:   bundle.DefaultMaxFileLines,
		ContextLines:   3,
		Format:         "markdown",
		OpencodeBin:    "opencode",
		Cache: CacheConfig{
			Enabled:    true,
			TTLSeconds: 86400,
		},
		Privacy: PrivacyConfig{
			RedactSecrets: true,
		},
		GitHub: GitHubConfig{
			InlineLimit: 150,
		},
	}
}

// ConfigDir returns the platform-appropriate config directory for facet.
func ConfigDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "facet"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "facet"), nil
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "facet"), nil
		}
		return filepath.Join(home, "AppData", "Roaming", "facet"), nil
	default:
		return filepath.Join(home, ".config", "facet"), nil
	}
}

// ConfigPath returns the full path to the config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// LoadFile loads config from the config file. Returns zero Config and nil
// error if the file doesn't exist.
func LoadFile() (Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return Config{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, nil
}

// Save writes the config to the config file.
func Save(cfg Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Load builds the effective config by merging: defaults <- file <- env <-
// overrides. The overrides map comes from CLI flags (only non-zero values
// should be set). A .env file in the working directory is loaded first so
// FACET_* and credential variables can live there.
func Load(overrides map[string]string) (Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	fileCfg, err := LoadFile()
	if err != nil {
		return Config{}, err
	}
	mergeFile(&cfg, fileCfg)
	mergeEnv(&cfg)
	mergeOverrides(&cfg, overrides)

	return cfg, nil
}

func splitAspects(value string) []string {
	var aspects []string
	for _, a := range strings.Split(value, ",") {
		if a = strings.TrimSpace(a); a != "" {
			aspects = append(aspects, a)
		}
	}
	return aspects
}

func mergeFile(dst *Config, src Config) {
	if len(src.Aspects) > 0 {
		dst.Aspects = src.Aspects
	}
	if src.MaxLLMCalls > 0 {
		dst.MaxLLMCalls = src.MaxLLMCalls
	}
	if src.MaxWorkers > 0 {
		dst.MaxWorkers = src.MaxWorkers
	}
	if src.TimeoutSeconds > 0 {
		dst.TimeoutSeconds = src.TimeoutSeconds
	}
	if src.MaxTotalLines > 0 {
		dst.MaxTotalLines = src.MaxTotalLines
	}
	if src.MaxFileLines > 0 {
		dst.MaxFileLines = src.MaxFileLines
	}
	if src.ContextLines > 0 {
		dst.ContextLines = src.ContextLines
	}
	if src.Format != "" {
		dst.Format = src.Format
	}
	if src.OpencodeBin != "" {
		dst.OpencodeBin = src.OpencodeBin
	}
	if src.OpencodeModel != "" {
		dst.OpencodeModel = src.OpencodeModel
	}
	if src.OpencodeAgent != "" {
		dst.OpencodeAgent = src.OpencodeAgent
	}
	if src.PromptsDir != "" {
		dst.PromptsDir = src.PromptsDir
	}
	if src.Cache.Dir != "" {
		dst.Cache.Dir = src.Cache.Dir
	}
	if src.Cache.TTLSeconds > 0 {
		dst.Cache.TTLSeconds = src.Cache.TTLSeconds
	}
	if src.GitHub.InlineLimit > 0 {
		dst.GitHub.InlineLimit = src.GitHub.InlineLimit
	}
	// JSON cannot distinguish unset booleans from false, so the file can
	// only turn these on; env vars and flags can turn them off.
	dst.Cache.Enabled = dst.Cache.Enabled || src.Cache.Enabled
	dst.Privacy.RedactSecrets = dst.Privacy.RedactSecrets || src.Privacy.RedactSecrets
	dst.GitHub.PostSummary = dst.GitHub.PostSummary || src.GitHub.PostSummary
	dst.GitHub.PostInline = dst.GitHub.PostInline || src.GitHub.PostInline
}

func mergeEnv(cfg *Config) {
	if v := os.Getenv("FACET_ASPECTS"); v != "" {
		if aspects := splitAspects(v); len(aspects) > 0 {
			cfg.Aspects = aspects
		}
	}
	if v := os.Getenv("FACET_FORMAT"); v != "" {
		cfg.Format = v
	}
	if v := os.Getenv("FACET_OPENCODE_BIN"); v != "" {
		cfg.OpencodeBin = v
	}
	if v := os.Getenv("FACET_OPENCODE_MODEL"); v != "" {
		cfg.OpencodeModel = v
	}
	if v := os.Getenv("FACET_OPENCODE_AGENT"); v != "" {
		cfg.OpencodeAgent = v
	}
	if v := os.Getenv("FACET_PROMPTS_DIR"); v != "" {
		cfg.PromptsDir = v
	}
	for key, dst := range map[string]*bool{
		"FACET_CACHE_ENABLED":  &cfg.Cache.Enabled,
		"FACET_REDACT_SECRETS": &cfg.Privacy.RedactSecrets,
		"FACET_POST_SUMMARY":   &cfg.GitHub.PostSummary,
		"FACET_POST_INLINE":    &cfg.GitHub.PostInline,
	} {
		if v := os.Getenv(key); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				*dst = b
			}
		}
	}
	for key, dst := range map[string]*int{
		"FACET_MAX_LLM_CALLS":   &cfg.MaxLLMCalls,
		"FACET_MAX_WORKERS":     &cfg.MaxWorkers,
		"FACET_TIMEOUT_SECONDS": &cfg.TimeoutSeconds,
		"FACET_MAX_TOTAL_LINES": &cfg.MaxTotalLines,
		"FACET_MAX_FILE_LINES":  &cfg.MaxFileLines,
		"FACET_CONTEXT_LINES":   &cfg.ContextLines,
	} {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
}

func mergeOverrides(cfg *Config, overrides map[string]string) {
	if overrides == nil {
		return
	}
	if v, ok := overrides["aspects"]; ok && v != "" {
		if aspects := splitAspects(v); len(aspects) > 0 {
			cfg.Aspects = aspects
		}
	}
	if v, ok := overrides["format"]; ok && v != "" {
		cfg.Format = v
	}
	if v, ok := overrides["opencodeBin"]; ok && v != "" {
		cfg.OpencodeBin = v
	}
	if v, ok := overrides["opencodeModel"]; ok && v != "" {
		cfg.OpencodeModel = v
	}
	if v, ok := overrides["opencodeAgent"]; ok && v != "" {
		cfg.OpencodeAgent = v
	}
	if v, ok := overrides["promptsDir"]; ok && v != "" {
		cfg.PromptsDir = v
	}
	for key, dst := range map[string]*bool{
		"cache.enabled":         &cfg.Cache.Enabled,
		"privacy.redactSecrets": &cfg.Privacy.RedactSecrets,
		"github.postSummary":    &cfg.GitHub.PostSummary,
		"github.postInline":     &cfg.GitHub.PostInline,
	} {
		if v, ok := overrides[key]; ok && v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				*dst = b
			}
		}
	}
	for key, dst := range map[string]*int{
		"maxLLMCalls":    &cfg.MaxLLMCalls,
		"maxWorkers":     &cfg.MaxWorkers,
		"timeoutSeconds": &cfg.TimeoutSeconds,
		"maxTotalLines":  &cfg.MaxTotalLines,
		"maxFileLines":   &cfg.MaxFileLines,
		"contextLines":   &cfg.ContextLines,
	} {
		if v, ok := overrides[key]; ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
}

// Get returns the string form of a single config value by its key.
func Get(cfg Config, key string) (string, error) {
	switch key {
	case "aspects":
		return strings.Join(cfg.Aspects, ","), nil
	case "maxLLMCalls":
		return strconv.Itoa(cfg.MaxLLMCalls), nil
	case "maxWorkers":
		return strconv.Itoa(cfg.MaxWorkers), nil
	case "timeoutSeconds":
		return strconv.Itoa(cfg.TimeoutSeconds), nil
	case "maxTotalLines":
		return strconv.Itoa(cfg.MaxTotalLines), nil
	case "maxFileLines":
		return strconv.Itoa(cfg.MaxFileLines), nil
	case "contextLines":
		return strconv.Itoa(cfg.ContextLines), nil
	case "format":
		return cfg.Format, nil
	case "opencodeBin":
		return cfg.OpencodeBin, nil
	case "opencodeModel":
		return cfg.OpencodeModel, nil
	case "opencodeAgent":
		return cfg.OpencodeAgent, nil
	case "promptsDir":
		return cfg.PromptsDir, nil
	case "cache.enabled":
		return strconv.FormatBool(cfg.Cache.Enabled), nil
	case "cache.dir":
		return cfg.Cache.Dir, nil
	case "cache.ttlSeconds":
		return strconv.Itoa(cfg.Cache.TTLSeconds), nil
	case "privacy.redactSecrets":
		return strconv.FormatBool(cfg.Privacy.RedactSecrets), nil
	case "github.postSummary":
		return strconv.FormatBool(cfg.GitHub.PostSummary), nil
	case "github.postInline":
		return strconv.FormatBool(cfg.GitHub.PostInline), nil
	case "github.inlineLimit":
		return strconv.Itoa(cfg.GitHub.InlineLimit), nil
	default:
		return "", fmt.Errorf("unknown config key: %s", key)
	}
}

// Set updates a single key in the config file.
func Set(key, value string) error {
	cfg, err := LoadFile()
	if err != nil {
		return err
	}

	switch key {
	case "aspects":
		cfg.Aspects = splitAspects(value)
	case "format":
		cfg.Format = value
	case "opencodeBin":
		cfg.OpencodeBin = value
	case "opencodeModel":
		cfg.OpencodeModel = value
	case "opencodeAgent":
		cfg.OpencodeAgent = value
	case "promptsDir":
		cfg.PromptsDir = value
	case "cache.dir":
		cfg.Cache.Dir = value
	case "maxLLMCalls", "maxWorkers", "timeoutSeconds", "maxTotalLines", "maxFileLines", "contextLines", "cache.ttlSeconds", "github.inlineLimit":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%s must be an integer: %q", key, value)
		}
		switch key {
		case "maxLLMCalls":
			cfg.MaxLLMCalls = n
		case "maxWorkers":
			cfg.MaxWorkers = n
		case "timeoutSeconds":
			cfg.TimeoutSeconds = n
		case "maxTotalLines":
			cfg.MaxTotalLines = n
		case "maxFileLines":
			cfg.MaxFileLines = n
		case "contextLines":
			cfg.ContextLines = n
		case "cache.ttlSeconds":
			cfg.Cache.TTLSeconds = n
		case "github.inlineLimit":
			cfg.GitHub.InlineLimit = n
		}
	case "cache.enabled", "privacy.redactSecrets", "github.postSummary", "github.postInline":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%s must be a boolean: %q", key, value)
		}
		switch key {
		case "cache.enabled":
			cfg.Cache.Enabled = b
		case "privacy.redactSecrets":
			cfg.Privacy.RedactSecrets = b
		case "github.postSummary":
			cfg.GitHub.PostSummary = b
		case "github.postInline":
			cfg.GitHub.PostInline = b
		}
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}

	return Save(cfg)
}

// Keys lists every settable config key in display order.
func Keys() []string {
	return []string{
		"aspects",
		"maxLLMCalls",
		"maxWorkers",
		"timeoutSeconds",
		"maxTotalLines",
		"maxFileLines",
		"contextLines",
		"format",
		"opencodeBin",
		"opencodeModel",
		"opencodeAgent",
		"promptsDir",
		"cache.enabled",
		"cache.dir",
		"cache.ttlSeconds",
		"privacy.redactSecrets",
		"github.postSummary",
		"github.postInline",
		"github.inlineLimit",
	}
}
