// Package config loads and exposes application configuration (TOML).
package config

import (
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Default configuration values used when a field is missing in TOML.
const (
	DefaultConfigPath = "config.toml"
	DefaultHTTPAddr   = ":8080"
	DefaultPGHost     = "127.0.0.1"
	DefaultPGPort     = 5432
	DefaultPGUser     = "postgres"
	DefaultPGDatabase = "callcenter"
	DefaultPGSSLMode  = "disable"
)

// Config is the root application configuration loaded from TOML.
type Config struct {
	Log      LogConfig      `toml:"log"`
	Server   ServerConfig   `toml:"server"`
	Postgres PostgresConfig `toml:"postgres"`
	Twilio   TwilioConfig   `toml:"twilio"`
	OpenAI   OpenAIConfig   `toml:"openai"`
	Bot      BotConfig      `toml:"bot"`
	Intent   IntentConfig   `toml:"intent"`
	Media    MediaConfig    `toml:"media"`
	Catalog  CatalogConfig  `toml:"catalog"`
	Prompt   PromptConfig   `toml:"prompt"`
	Dispatch DispatchConfig `toml:"dispatch"`
}

// LogConfig holds logging level and format (e.g. level=info, format=text).
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// ServerConfig holds the HTTP server listen address.
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	SSLMode  string `toml:"sslmode"`
}

// TwilioConfig holds the WhatsApp transport credentials and sender number.
// FromNumber must carry the whatsapp: scheme (e.g. whatsapp:+5493416000000).
type TwilioConfig struct {
	AccountSID        string `toml:"account_sid"`
	AuthToken         string `toml:"auth_token"`
	FromNumber        string `toml:"from_number"`
	StatusCallbackURL string `toml:"status_callback_url"`
	BaseURL           string `toml:"base_url"`
}

// OpenAIConfig holds the text-completion provider parameters.
type OpenAIConfig struct {
	APIKey         string  `toml:"api_key"`
	BaseURL        string  `toml:"base_url"`
	Model          string  `toml:"model"`
	Temperature    float64 `toml:"temperature"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
}

// BotConfig holds reply language and the safe fallback texts.
type BotConfig struct {
	Language     string `toml:"language"`
	FallbackText string `toml:"fallback_text"`
	SendingImage string `toml:"sending_image_text"`
	NoPhotoText  string `toml:"no_photo_text"`
	MaxImages    int    `toml:"max_images"`
}

// IntentConfig holds the keyword and synonym tables for text intent
// extraction. Categories maps a category key to its synonym word list.
type IntentConfig struct {
	ImageKeywords  []string            `toml:"image_keywords"`
	PluralKeywords []string            `toml:"plural_keywords"`
	Stopwords      []string            `toml:"stopwords"`
	Categories     map[string][]string `toml:"categories"`
}

// MediaConfig holds the outbound media allow-list and URL transform.
type MediaConfig struct {
	AllowedHosts []string `toml:"allowed_hosts"`
	Transform    string   `toml:"transform"`
	MaxWidth     int      `toml:"max_width"`
}

// CatalogConfig gates the catalog-wide image fallback search.
type CatalogConfig struct {
	ImageFallback *bool `toml:"image_fallback"`
	MaxScan       int   `toml:"max_scan"`
}

// PromptConfig holds the active-prompt cache refresh schedule.
type PromptConfig struct {
	RefreshCron string `toml:"refresh_cron"`
}

// DispatchConfig holds inbound queue sizing and per-step timeouts.
type DispatchConfig struct {
	QueueSize            int `toml:"queue_size"`
	Workers              int `toml:"workers"`
	AppendTimeoutMS      int `toml:"append_timeout_ms"`
	PlanTimeoutMS        int `toml:"plan_timeout_ms"`
	SendTimeoutMS        int `toml:"send_timeout_ms"`
	CatalogTimeoutMS     int `toml:"catalog_timeout_ms"`
	ContactTouchTimeout  int `toml:"contact_touch_timeout_ms"`
	ContactLookupTimeout int `toml:"contact_lookup_timeout_ms"`
}

// AppendTimeout returns the conversation append timeout (default 1.5s).
func (c DispatchConfig) AppendTimeout() time.Duration {
	return msOrDefault(c.AppendTimeoutMS, 1500*time.Millisecond)
}

// PlanTimeout returns the AI planning timeout (default 7s).
func (c DispatchConfig) PlanTimeout() time.Duration {
	return msOrDefault(c.PlanTimeoutMS, 7*time.Second)
}

// SendTimeout returns the outbound transport timeout (default 7s).
func (c DispatchConfig) SendTimeout() time.Duration {
	return msOrDefault(c.SendTimeoutMS, 7*time.Second)
}

// CatalogTimeout returns the catalog/media resolution timeout (default 3s).
func (c DispatchConfig) CatalogTimeout() time.Duration {
	return msOrDefault(c.CatalogTimeoutMS, 3*time.Second)
}

// ContactTimeout returns the contact lookup timeout (default 1.5s).
func (c DispatchConfig) ContactTimeout() time.Duration {
	return msOrDefault(c.ContactLookupTimeout, 1500*time.Millisecond)
}

// TouchTimeout returns the contact timestamp write timeout (default 1.5s).
func (c DispatchConfig) TouchTimeout() time.Duration {
	return msOrDefault(c.ContactTouchTimeout, 1500*time.Millisecond)
}

func msOrDefault(ms int, def time.Duration) time.Duration {
	if ms <= 0 {
		return def
	}
	return time.Duration(ms) * time.Millisecond
}

// ImageFallbackEnabled reports whether the catalog-wide image fallback
// search is enabled (default true).
func (c CatalogConfig) ImageFallbackEnabled() bool {
	if c.ImageFallback == nil {
		return true
	}
	return *c.ImageFallback
}

// Timeout returns the completion call timeout (default 7s).
func (c OpenAIConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 7 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Load reads and parses the TOML config file at path and applies default
// values for missing fields.
func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Postgres: PostgresConfig{
			Host:     DefaultPGHost,
			Port:     DefaultPGPort,
			User:     DefaultPGUser,
			Database: DefaultPGDatabase,
			SSLMode:  DefaultPGSSLMode,
		},
		OpenAI: OpenAIConfig{
			Model:       "gpt-3.5-turbo",
			Temperature: 0.6,
		},
		Bot: BotConfig{
			Language:     "es",
			FallbackText: "Lo siento, estoy teniendo problemas para responderte en este momento. En breve te respondemos 🙌",
			SendingImage: "Te envío la imagen 📷",
			NoPhotoText:  "Por ahora no tengo una foto para mostrarte, pero contame qué estás buscando 🙌",
			MaxImages:    3,
		},
		Media: MediaConfig{
			AllowedHosts: []string{"res.cloudinary.com"},
			MaxWidth:     1024,
		},
		Prompt: PromptConfig{
			RefreshCron: "@every 15m",
		},
		Dispatch: DispatchConfig{
			QueueSize: 256,
			Workers:   1,
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}
