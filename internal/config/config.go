// File: internal/config/config.go
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Config holds the entire process configuration. It is built once at startup
// by NewConfigFromViper and passed by pointer to the components that need it.
type Config struct {
	Logger      LoggerConfig      `mapstructure:"logger" yaml:"logger"`
	Server      ServerConfig      `mapstructure:"server" yaml:"server"`
	Database    DatabaseConfig    `mapstructure:"database" yaml:"database"`
	Browser     BrowserConfig     `mapstructure:"browser" yaml:"browser"`
	Target      TargetConfig      `mapstructure:"target" yaml:"target"`
	Automation  AutomationConfig  `mapstructure:"automation" yaml:"automation"`
	Diagnostics DiagnosticsConfig `mapstructure:"diagnostics" yaml:"diagnostics"`
	Auth        AuthConfig        `mapstructure:"auth" yaml:"auth"`
}

// LoggerConfig defines all the settings for the logging system.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	ListenAddr        string        `mapstructure:"listen_addr" yaml:"listen_addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	MaxBodyBytes      int64         `mapstructure:"max_body_bytes" yaml:"max_body_bytes"`
	CORSOrigins       []string      `mapstructure:"cors_origins" yaml:"cors_origins"`
}

// DatabaseConfig holds the database connection details. An empty URL selects
// the in-memory stores.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// BrowserConfig holds settings for the per-request headless browser.
type BrowserConfig struct {
	Headless        bool              `mapstructure:"headless" yaml:"headless"`
	IgnoreTLSErrors bool              `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	ExecPath        string            `mapstructure:"exec_path" yaml:"exec_path"`
	UserAgent       string            `mapstructure:"user_agent" yaml:"user_agent"`
	Args            []string          `mapstructure:"args" yaml:"args"`
	Headers         map[string]string `mapstructure:"headers" yaml:"headers"`
	LaunchTimeout   time.Duration     `mapstructure:"launch_timeout" yaml:"launch_timeout"`
	PollInterval    time.Duration     `mapstructure:"poll_interval" yaml:"poll_interval"`
	CaptureConsole  bool              `mapstructure:"capture_console" yaml:"capture_console"`
	// MaxSessions bounds how many browsers may run at once.
	MaxSessions    int64         `mapstructure:"max_sessions" yaml:"max_sessions"`
	AcquireTimeout time.Duration `mapstructure:"acquire_timeout" yaml:"acquire_timeout"`
}

// TargetConfig describes where the raffle site lives.
type TargetConfig struct {
	BaseURL      string `mapstructure:"base_url" yaml:"base_url"`
	CreatePath   string `mapstructure:"create_path" yaml:"create_path"`
	RegisterPath string `mapstructure:"register_path" yaml:"register_path"`
	// RateLimit is the number of automation runs started per second. Zero disables it.
	RateLimit float64 `mapstructure:"rate_limit" yaml:"rate_limit"`
	RateBurst int     `mapstructure:"rate_burst" yaml:"rate_burst"`
}

// CreateURL returns the absolute URL of the event creation form.
func (t TargetConfig) CreateURL() string {
	return strings.TrimRight(t.BaseURL, "/") + t.CreatePath
}

// RegisterURL returns the absolute URL of the registration form for an event.
func (t TargetConfig) RegisterURL(eventID string) string {
	return strings.TrimRight(t.BaseURL, "/") + fmt.Sprintf(t.RegisterPath, url.PathEscape(eventID))
}

// AutomationConfig carries the per-step timeouts of the workflows.
type AutomationConfig struct {
	RequestDeadline           time.Duration `mapstructure:"request_deadline" yaml:"request_deadline"`
	CreateNavigationTimeout   time.Duration `mapstructure:"create_navigation_timeout" yaml:"create_navigation_timeout"`
	RegisterNavigationTimeout time.Duration `mapstructure:"register_navigation_timeout" yaml:"register_navigation_timeout"`
	RegisterSettle            time.Duration `mapstructure:"register_settle" yaml:"register_settle"`
	FormTimeout               time.Duration `mapstructure:"form_timeout" yaml:"form_timeout"`
	SubmitTimeout             time.Duration `mapstructure:"submit_timeout" yaml:"submit_timeout"`
	OutcomeTimeout            time.Duration `mapstructure:"outcome_timeout" yaml:"outcome_timeout"`
	SecondaryTimeout          time.Duration `mapstructure:"secondary_timeout" yaml:"secondary_timeout"`
}

// DiagnosticsConfig controls what is captured when a run fails.
type DiagnosticsConfig struct {
	Screenshots   bool   `mapstructure:"screenshots" yaml:"screenshots"`
	ScreenshotDir string `mapstructure:"screenshot_dir" yaml:"screenshot_dir"`
	MaxBodyLog    int    `mapstructure:"max_body_log" yaml:"max_body_log"`
}

// AuthConfig holds the token signing material and lifetimes.
type AuthConfig struct {
	SecretKey        string        `mapstructure:"secret_key" yaml:"secret_key"`
	RefreshSecretKey string        `mapstructure:"refresh_secret_key" yaml:"refresh_secret_key"`
	AccessTTL        time.Duration `mapstructure:"access_ttl" yaml:"access_ttl"`
	RefreshTTL       time.Duration `mapstructure:"refresh_ttl" yaml:"refresh_ttl"`
	BcryptCost       int           `mapstructure:"bcrypt_cost" yaml:"bcrypt_cost"`
}

// NewDefaultConfig returns a configuration populated only from defaults.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	// Defaults are all well formed, so the error is not interesting here.
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// SetDefaults registers the default value of every key.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "sorteando-crawler")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Server --
	v.SetDefault("server.listen_addr", ":3001")
	v.SetDefault("server.read_header_timeout", "10s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.max_body_bytes", 1<<20)
	v.SetDefault("server.cors_origins", []string{"*"})

	// -- Database --
	v.SetDefault("database.url", "")

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.ignore_tls_errors", true)
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.user_agent", "")
	v.SetDefault("browser.args", []string{})
	v.SetDefault("browser.headers", map[string]string{
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
		"Accept-Language": "pt-BR,pt;q=0.9,en;q=0.8",
		"Cache-Control":   "no-cache",
	})
	v.SetDefault("browser.launch_timeout", "30s")
	v.SetDefault("browser.poll_interval", "100ms")
	v.SetDefault("browser.capture_console", true)
	v.SetDefault("browser.max_sessions", 4)
	v.SetDefault("browser.acquire_timeout", "5s")

	// -- Target --
	v.SetDefault("target.base_url", "https://sorteando.vercel.app")
	v.SetDefault("target.create_path", "/evento/novo")
	v.SetDefault("target.register_path", "/evento/%s/cadastro")
	v.SetDefault("target.rate_limit", 0)
	v.SetDefault("target.rate_burst", 1)

	// -- Automation --
	v.SetDefault("automation.request_deadline", "90s")
	v.SetDefault("automation.create_navigation_timeout", "10s")
	v.SetDefault("automation.register_navigation_timeout", "30s")
	v.SetDefault("automation.register_settle", "3s")
	v.SetDefault("automation.form_timeout", "15s")
	v.SetDefault("automation.submit_timeout", "10s")
	v.SetDefault("automation.outcome_timeout", "10s")
	v.SetDefault("automation.secondary_timeout", "5s")

	// -- Diagnostics --
	v.SetDefault("diagnostics.screenshots", true)
	v.SetDefault("diagnostics.screenshot_dir", "~/.sorteando/diagnostics")
	v.SetDefault("diagnostics.max_body_log", 4096)

	// -- Auth --
	v.SetDefault("auth.secret_key", "")
	v.SetDefault("auth.refresh_secret_key", "")
	v.SetDefault("auth.access_ttl", "15m")
	v.SetDefault("auth.refresh_ttl", "168h")
	v.SetDefault("auth.bcrypt_cost", 10)
}

// NewConfigFromViper is the single configuration resolution point. Precedence
// follows viper: bound flags, then environment, then the config file, then defaults.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Secrets may come from the bare names used by earlier deployments.
	_ = v.BindEnv("auth.secret_key", "SORTEANDO_AUTH_SECRET_KEY", "SECRET_KEY")
	_ = v.BindEnv("auth.refresh_secret_key", "SORTEANDO_AUTH_REFRESH_SECRET_KEY", "REFRESH_SECRET_KEY")
	_ = v.BindEnv("database.url", "SORTEANDO_DATABASE_URL", "DATABASE_URL")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if cfg.Diagnostics.ScreenshotDir != "" {
		dir, err := homedir.Expand(cfg.Diagnostics.ScreenshotDir)
		if err != nil {
			return nil, fmt.Errorf("failed to expand diagnostics.screenshot_dir: %w", err)
		}
		cfg.Diagnostics.ScreenshotDir = dir
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Server.ListenAddr == "" {
		return fmt.Errorf("server.listen_addr is a required configuration field")
	}
	if c.Browser.MaxSessions <= 0 {
		return fmt.Errorf("browser.max_sessions must be a positive integer")
	}
	if c.Browser.PollInterval <= 0 {
		return fmt.Errorf("browser.poll_interval must be positive")
	}
	if err := c.Target.Validate(); err != nil {
		return fmt.Errorf("target configuration invalid: %w", err)
	}
	if err := c.Automation.Validate(); err != nil {
		return fmt.Errorf("automation configuration invalid: %w", err)
	}
	if c.Auth.SecretKey != "" && c.Auth.SecretKey == c.Auth.RefreshSecretKey {
		return fmt.Errorf("auth.secret_key and auth.refresh_secret_key must differ")
	}
	return nil
}

// Validate checks the target site settings.
func (t TargetConfig) Validate() error {
	u, err := url.Parse(t.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("base_url %q is not an absolute URL", t.BaseURL)
	}
	if !strings.Contains(t.RegisterPath, "%s") {
		return fmt.Errorf("register_path must contain a %%s placeholder for the event id")
	}
	if t.RateLimit < 0 {
		return fmt.Errorf("rate_limit cannot be negative")
	}
	return nil
}

// Validate ensures every step has a usable timeout.
func (a AutomationConfig) Validate() error {
	steps := map[string]time.Duration{
		"request_deadline":            a.RequestDeadline,
		"create_navigation_timeout":   a.CreateNavigationTimeout,
		"register_navigation_timeout": a.RegisterNavigationTimeout,
		"form_timeout":                a.FormTimeout,
		"submit_timeout":              a.SubmitTimeout,
		"outcome_timeout":             a.OutcomeTimeout,
		"secondary_timeout":           a.SecondaryTimeout,
	}
	for name, d := range steps {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	if a.RegisterSettle < 0 {
		return fmt.Errorf("register_settle cannot be negative")
	}
	return nil
}
