package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	chaterrors "github.com/abdul-hamid-achik/claudette/internal/errors"
	"github.com/abdul-hamid-achik/claudette/internal/logger"
)

var log = logger.WithPrefix("config")

// Provider names the LLM backend a binary talks to
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderGemini    Provider = "gemini"
)

// Provider defaults
const (
	DefaultAnthropicModel     = "claude-3-7-sonnet-latest"
	DefaultAnthropicMaxTokens = 8192
	DefaultAnthropicTemp      = 1.0
	DefaultThinkingBudget     = 0

	DefaultGeminiModel     = "gemini-2.5-pro-exp-03-25"
	DefaultGeminiMaxTokens = 65536
	DefaultGeminiTemp      = 0.7
	DefaultGeminiTopP      = 0.95
	DefaultGeminiTopK      = 40
)

// PricingTier is the price in dollars per 1K tokens for a model family
type PricingTier struct {
	Input      float64 `yaml:"input"`
	Output     float64 `yaml:"output"`
	CacheWrite float64 `yaml:"cache_write"`
	CacheRead  float64 `yaml:"cache_read"`
}

// AnthropicConfig holds Claude settings
type AnthropicConfig struct {
	APIKey         string                 `yaml:"api_key,omitempty"`
	BaseURL        string                 `yaml:"base_url,omitempty"`
	Model          string                 `yaml:"model"`
	MaxTokens      int                    `yaml:"max_tokens"`
	Temperature    float64                `yaml:"temperature"`
	ThinkingBudget int                    `yaml:"thinking_budget"` // 0 disables extended thinking
	Pricing        map[string]PricingTier `yaml:"pricing"`         // keyed by model-name substring
}

// GeminiConfig holds Google Generative Language settings
type GeminiConfig struct {
	APIKey      string  `yaml:"api_key,omitempty"`
	BaseURL     string  `yaml:"base_url,omitempty"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_output_tokens"`
	Temperature float64 `yaml:"temperature"`
	TopP        float64 `yaml:"top_p"`
	TopK        int     `yaml:"top_k"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	MaxRetries         int           `yaml:"max_retries"`          // Maximum retries on 429
	BaseDelay          time.Duration `yaml:"base_delay"`           // Base delay for exponential backoff
	MaxDelay           time.Duration `yaml:"max_delay"`            // Maximum delay between retries
	TokensPerMinute    int           `yaml:"tokens_per_minute"`    // Rate limit (tokens/minute)
	EnableRateLimiting bool          `yaml:"enable_rate_limiting"` // Enable proactive rate limiting
	OutageThreshold    int           `yaml:"outage_threshold"`     // consecutive failed responses before pausing requests
	OutageCooldown     time.Duration `yaml:"outage_cooldown"`      // pause length once the threshold is hit
}

// ChatConfig holds transcript and streaming behaviour
type ChatConfig struct {
	ChunkTimeout   time.Duration `yaml:"chunk_timeout"`   // max silence between stream chunks
	RequestTimeout time.Duration `yaml:"request_timeout"` // connect + first byte
	ShowMarkers    bool          `yaml:"show_copy_markers"`
	WordWrap       int           `yaml:"word_wrap"` // 0 wraps to the terminal width
}

// ContextConfig holds context file behaviour
type ContextConfig struct {
	Watch       bool          `yaml:"watch"`         // refresh attached files when they change on disk
	Debounce    time.Duration `yaml:"debounce"`      // watcher debounce window
	MaxFileSize int64         `yaml:"max_file_size"` // bytes
}

// Config holds the application configuration
type Config struct {
	Provider                  Provider        `yaml:"-"` // chosen by the binary
	Anthropic                 AnthropicConfig `yaml:"anthropic"`
	Gemini                    GeminiConfig    `yaml:"gemini"`
	SystemMessages            []string        `yaml:"system_messages"`
	DefaultSystemMessageIndex int             `yaml:"default_system_message_index"`
	RateLimit                 RateLimitConfig `yaml:"rate_limit"`
	Chat                      ChatConfig      `yaml:"chat"`
	Context                   ContextConfig   `yaml:"context"`
	LogLevel                  string          `yaml:"log_level"`

	// Internal: where config was loaded from
	configPath string
	// set by --token; never saved
	keyOverride string
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderAnthropic,
		Anthropic: AnthropicConfig{
			Model:          DefaultAnthropicModel,
			MaxTokens:      DefaultAnthropicMaxTokens,
			Temperature:    DefaultAnthropicTemp,
			ThinkingBudget: DefaultThinkingBudget,
			Pricing: map[string]PricingTier{
				"opus":   {Input: 0.015, Output: 0.075, CacheWrite: 0.01875, CacheRead: 0.0015},
				"sonnet": {Input: 0.003, Output: 0.015, CacheWrite: 0.00375, CacheRead: 0.0003},
				"haiku":  {Input: 0.0008, Output: 0.004, CacheWrite: 0.001, CacheRead: 0.00008},
			},
		},
		Gemini: GeminiConfig{
			Model:       DefaultGeminiModel,
			MaxTokens:   DefaultGeminiMaxTokens,
			Temperature: DefaultGeminiTemp,
			TopP:        DefaultGeminiTopP,
			TopK:        DefaultGeminiTopK,
		},
		SystemMessages: []string{
			"You are a helpful programming assistant. Answer concisely.",
		},
		RateLimit: RateLimitConfig{
			MaxRetries:         3,
			BaseDelay:          1 * time.Second,
			MaxDelay:           60 * time.Second,
			TokensPerMinute:    40000,
			EnableRateLimiting: true,
			OutageThreshold:    5,
			OutageCooldown:     30 * time.Second,
		},
		Chat: ChatConfig{
			ChunkTimeout:   2 * time.Minute,
			RequestTimeout: 5 * time.Minute,
			ShowMarkers:    true,
		},
		Context: ContextConfig{
			Watch:       true,
			Debounce:    300 * time.Millisecond,
			MaxFileSize: 10 * 1024 * 1024,
		},
		LogLevel: "warn",
	}
}

// Load loads configuration from files, .env and environment. A missing API
// key is not an error here: the chat reports it when a question is asked.
func Load(provider Provider) (*Config, error) {
	cfg := DefaultConfig()
	cfg.Provider = provider

	// .env is optional
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn("could not read .env: %v", err)
	}

	for _, path := range getConfigPaths() {
		if _, err := os.Stat(path); err == nil {
			if err := cfg.loadFromFile(path); err != nil {
				return nil, chaterrors.ConfigLoadFailed(path, err)
			}
			cfg.configPath = path
			break
		}
	}

	if cfg.configPath == "" {
		if err := cfg.createDefault(); err != nil {
			log.Warn("could not create default config: %v", err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// getConfigPaths returns config file paths in priority order
func getConfigPaths() []string {
	paths := []string{
		"claudette.yaml",
		filepath.Join(".claudette", "config.yaml"),
	}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "claudette", "config.yaml"))
	}

	return paths
}

// loadFromFile loads config from a YAML file
func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

// applyEnv lets environment keys override file keys
func (c *Config) applyEnv() {
	if k := os.Getenv("ANTHROPIC_API_KEY"); k != "" {
		c.Anthropic.APIKey = k
	}
	for _, name := range []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"} {
		if k := os.Getenv(name); k != "" {
			c.Gemini.APIKey = k
			break
		}
	}
	if lvl := os.Getenv("CLAUDETTE_LOG_LEVEL"); lvl != "" {
		c.LogLevel = lvl
	}
}

// createDefault creates a default config file
func (c *Config) createDefault() error {
	dir := ".claudette"
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	c.configPath = filepath.Join(dir, "config.yaml")
	return c.Save()
}

// Save writes the config back to where it was loaded from. API keys taken
// from the environment are not persisted.
func (c *Config) Save() error {
	if c.configPath == "" {
		c.configPath = filepath.Join(".claudette", "config.yaml")
	}

	out := *c
	if os.Getenv("ANTHROPIC_API_KEY") == c.Anthropic.APIKey {
		out.Anthropic.APIKey = ""
	}
	if os.Getenv("GEMINI_API_KEY") == c.Gemini.APIKey || os.Getenv("GOOGLE_API_KEY") == c.Gemini.APIKey {
		out.Gemini.APIKey = ""
	}

	data, err := yaml.Marshal(&out)
	if err != nil {
		return chaterrors.ConfigSaveFailed(c.configPath, err)
	}
	content := "# claudette configuration\n\n" + string(data)
	if err := os.WriteFile(c.configPath, []byte(content), 0600); err != nil {
		return chaterrors.ConfigSaveFailed(c.configPath, err)
	}
	return nil
}

// ConfigPath returns where the config was loaded from
func (c *Config) ConfigPath() string {
	return c.configPath
}

// SetConfigPath overrides where Save writes
func (c *Config) SetConfigPath(path string) {
	c.configPath = path
}

// APIKey returns the key for the active provider
func (c *Config) APIKey() string {
	if c.keyOverride != "" {
		return c.keyOverride
	}
	if c.Provider == ProviderGemini {
		return c.Gemini.APIKey
	}
	return c.Anthropic.APIKey
}

// SetAPIKey overrides the key for the active provider for this run only.
// Save never writes it.
func (c *Config) SetAPIKey(key string) {
	c.keyOverride = key
}

// APIKeyEnv names the environment variable users should set
func (c *Config) APIKeyEnv() string {
	if c.Provider == ProviderGemini {
		return "GEMINI_API_KEY"
	}
	return "ANTHROPIC_API_KEY"
}

// Model returns the model for the active provider
func (c *Config) Model() string {
	if c.Provider == ProviderGemini {
		return c.Gemini.Model
	}
	return c.Anthropic.Model
}

// SetModel updates the model for the active provider
func (c *Config) SetModel(model string) {
	if c.Provider == ProviderGemini {
		c.Gemini.Model = model
	} else {
		c.Anthropic.Model = model
	}
}

// SystemMessage returns the selected system message, trimmed.
// An index outside the list yields "" and false.
func (c *Config) SystemMessage() (string, bool) {
	i := c.DefaultSystemMessageIndex
	if i < 0 || i >= len(c.SystemMessages) {
		return "", false
	}
	msg := strings.TrimSpace(c.SystemMessages[i])
	return msg, msg != ""
}

// SetSystemMessageIndex selects a system message
func (c *Config) SetSystemMessageIndex(i int) error {
	if i < 0 || i >= len(c.SystemMessages) {
		return fmt.Errorf("system message %d out of range (have %d)", i+1, len(c.SystemMessages))
	}
	c.DefaultSystemMessageIndex = i
	return nil
}

// SystemMessageLabel renders a system message for a picker: its first
// line, cut at 120 characters, without trailing dots or blanks.
func SystemMessageLabel(msg string) string {
	first, _, _ := strings.Cut(msg, "\n")
	runes := []rune(first)
	if len(runes) > 120 {
		runes = runes[:120]
	}
	label := strings.TrimRight(string(runes), ". \t")
	if len([]rune(msg)) > 120 {
		label += "..."
	}
	return label
}

// ValidTemperature returns t when it lies in [0,1], otherwise def
func ValidTemperature(t, def float64) float64 {
	if t >= 0 && t <= 1 {
		return t
	}
	log.Warn("invalid temperature %v, using %v", t, def)
	return def
}

// ValidTopP returns p when it lies in (0,1], otherwise the Gemini default
func ValidTopP(p float64) float64 {
	if p > 0 && p <= 1 {
		return p
	}
	log.Warn("invalid top_p %v, using %v", p, DefaultGeminiTopP)
	return DefaultGeminiTopP
}

// ValidTopK returns k when positive, otherwise the Gemini default
func ValidTopK(k int) int {
	if k >= 1 {
		return k
	}
	log.Warn("invalid top_k %d, using %d", k, DefaultGeminiTopK)
	return DefaultGeminiTopK
}

// PricingFor returns the first pricing tier whose key appears in the model name
func (a AnthropicConfig) PricingFor(model string) (PricingTier, bool) {
	m := strings.ToLower(model)
	// longest key first so "sonnet-4" beats "sonnet"
	var best string
	for k := range a.Pricing {
		if strings.Contains(m, strings.ToLower(k)) && len(k) > len(best) {
			best = k
		}
	}
	if best == "" {
		return PricingTier{}, false
	}
	return a.Pricing[best], true
}
