package adapter

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/mmcdole/reel/internal/catalog"
)

// StoreDriver identifies the local storage backend
type StoreDriver string

const (
	StoreDriverBolt   StoreDriver = "bolt"
	StoreDriverSQLite StoreDriver = "sqlite"
)

// ConfigFileName is the file LoadConfig looks for in each config directory.
const ConfigFileName = "config.yaml"

// envPrefix prefixes every environment override, e.g. REEL_CATALOG_API_KEY.
const envPrefix = "REEL"

// Config holds all application configuration
type Config struct {
	Catalog      CatalogConfig      `mapstructure:"catalog"`
	Store        StoreConfig        `mapstructure:"store"`
	Paging       PagingConfig       `mapstructure:"paging"`
	Refresh      RefreshConfig      `mapstructure:"refresh"`
	Connectivity ConnectivityConfig `mapstructure:"connectivity"`
	Logging      LoggingConfig      `mapstructure:"logging"`
	CrashLog     CrashLogConfig     `mapstructure:"crash_log"`
	Metrics      MetricsConfig      `mapstructure:"metrics"`
	Browser      BrowserConfig      `mapstructure:"browser"`
}

// CatalogConfig holds remote catalog configuration
type CatalogConfig struct {
	BaseURL           string        `mapstructure:"base_url" validate:"required,url"`
	APIKey            string        `mapstructure:"api_key"`
	ImageBaseURL      string        `mapstructure:"image_base_url" validate:"omitempty,url"`
	Timeout           time.Duration `mapstructure:"timeout" validate:"gt=0"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" validate:"gte=0"`
	Burst             int           `mapstructure:"burst" validate:"gte=0"`
}

// StoreConfig holds local storage configuration
type StoreConfig struct {
	Driver StoreDriver `mapstructure:"driver" validate:"oneof=bolt sqlite"`
	Dir    string      `mapstructure:"dir" validate:"required"`
}

// PagingConfig holds paging cursor configuration
type PagingConfig struct {
	WindowPages int `mapstructure:"window_pages" validate:"min=1"`
}

// RefreshConfig holds background refresh configuration
type RefreshConfig struct {
	Interval     time.Duration `mapstructure:"interval" validate:"gt=0"`
	RetryInitial time.Duration `mapstructure:"retry_initial" validate:"gt=0"`
	RetryMax     time.Duration `mapstructure:"retry_max" validate:"gtefield=RetryInitial"`
}

// ConnectivityConfig holds reachability probe configuration. An empty probe URL
// probes the catalog base URL.
type ConnectivityConfig struct {
	ProbeURL string        `mapstructure:"probe_url" validate:"omitempty,url"`
	Interval time.Duration `mapstructure:"interval" validate:"gt=0"`
	Timeout  time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level" validate:"omitempty,oneof=DEBUG INFO WARN WARNING ERROR"`
}

// CrashLogConfig holds failure report sink configuration
type CrashLogConfig struct {
	File   string `mapstructure:"file"`
	Buffer int    `mapstructure:"buffer" validate:"min=1"`
}

// MetricsConfig holds the prometheus listener address. Empty disables it.
type MetricsConfig struct {
	Addr string `mapstructure:"addr" validate:"omitempty,hostname_port"`
}

// BrowserConfig holds the command used to open movie pages. Empty uses the
// system default (open, xdg-open or start).
type BrowserConfig struct {
	Command string   `mapstructure:"command"`
	Args    []string `mapstructure:"args"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	dataDir := defaultDataPath()
	return &Config{
		Catalog: CatalogConfig{
			BaseURL:           catalog.DefaultBaseURL,
			ImageBaseURL:      catalog.DefaultImageBaseURL,
			Timeout:           10 * time.Second,
			RequestsPerSecond: 20,
			Burst:             5,
		},
		Store: StoreConfig{
			Driver: StoreDriverBolt,
			Dir:    filepath.Join(dataDir, "cache"),
		},
		Paging: PagingConfig{
			WindowPages: 5,
		},
		Refresh: RefreshConfig{
			Interval:     6 * time.Hour,
			RetryInitial: 30 * time.Second,
			RetryMax:     time.Hour,
		},
		Connectivity: ConnectivityConfig{
			Interval: 15 * time.Second,
			Timeout:  5 * time.Second,
		},
		Logging: LoggingConfig{
			File:  filepath.Join(dataDir, "reel.log"),
			Level: "INFO",
		},
		CrashLog: CrashLogConfig{
			File:   filepath.Join(dataDir, "crash.log"),
			Buffer: 256,
		},
		Browser: BrowserConfig{
			Args: []string{},
		},
	}
}

// defaultDataPath returns the default data directory for the current OS
func defaultDataPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("LOCALAPPDATA"), "reel")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "reel")
	}
}

// defaultConfigPath returns the default config directory for the current OS
func defaultConfigPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "reel")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "reel")
	}
}

// ConfigFile returns the path SaveConfig writes to.
func ConfigFile() string {
	return filepath.Join(defaultConfigPath(), ConfigFileName)
}

// LoadConfig loads configuration from the default config directory, the working
// directory and the environment.
func LoadConfig() (*Config, error) {
	return loadConfig(viper.New(), "", defaultConfigPath(), ".")
}

// LoadConfigFile loads configuration from an explicit file and the environment.
func LoadConfigFile(path string) (*Config, error) {
	return loadConfig(viper.New(), path)
}

func loadConfig(v *viper.Viper, file string, dirs ...string) (*Config, error) {
	setValues(DefaultConfig(), v.SetDefault)

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(strings.TrimSuffix(ConfigFileName, filepath.Ext(ConfigFileName)))
		v.SetConfigType("yaml")
		for _, dir := range dirs {
			v.AddConfigPath(dir)
		}
	}

	// Environment variable overrides
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	cfg.Logging.Level = strings.ToUpper(cfg.Logging.Level)
	cfg.Store.Dir = expandHome(cfg.Store.Dir)
	cfg.Logging.File = expandHome(cfg.Logging.File)
	cfg.CrashLog.File = expandHome(cfg.CrashLog.File)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every section of the configuration.
func (c *Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return fmt.Errorf("invalid config: %w", err)
		}
		messages := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			messages = append(messages, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
		}
		return fmt.Errorf("invalid config: %s", strings.Join(messages, "; "))
	}
	return nil
}

// IsConfigured returns true if a catalog API key is set
func (c *Config) IsConfigured() bool {
	return c.Catalog.APIKey != ""
}

// ProbeURL returns the URL the connectivity probe checks.
func (c *Config) ProbeURL() string {
	if c.Connectivity.ProbeURL != "" {
		return c.Connectivity.ProbeURL
	}
	return c.Catalog.BaseURL
}

// SaveConfig writes cfg to the default config file.
func SaveConfig(cfg *Config) error {
	return SaveConfigTo(cfg, ConfigFile())
}

// SaveConfigTo writes cfg as YAML to path.
func SaveConfigTo(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	setValues(cfg, v.Set)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// setValues applies cfg with snake_case key names, through either Set or
// SetDefault. Durations are written as strings so the saved file reads "6h0m0s".
func setValues(cfg *Config, set func(key string, value any)) {
	set("catalog.base_url", cfg.Catalog.BaseURL)
	set("catalog.api_key", cfg.Catalog.APIKey)
	set("catalog.image_base_url", cfg.Catalog.ImageBaseURL)
	set("catalog.timeout", cfg.Catalog.Timeout.String())
	set("catalog.requests_per_second", cfg.Catalog.RequestsPerSecond)
	set("catalog.burst", cfg.Catalog.Burst)

	set("store.driver", string(cfg.Store.Driver))
	set("store.dir", cfg.Store.Dir)

	set("paging.window_pages", cfg.Paging.WindowPages)

	set("refresh.interval", cfg.Refresh.Interval.String())
	set("refresh.retry_initial", cfg.Refresh.RetryInitial.String())
	set("refresh.retry_max", cfg.Refresh.RetryMax.String())

	set("connectivity.probe_url", cfg.Connectivity.ProbeURL)
	set("connectivity.interval", cfg.Connectivity.Interval.String())
	set("connectivity.timeout", cfg.Connectivity.Timeout.String())

	set("logging.file", cfg.Logging.File)
	set("logging.level", cfg.Logging.Level)

	set("crash_log.file", cfg.CrashLog.File)
	set("crash_log.buffer", cfg.CrashLog.Buffer)

	set("metrics.addr", cfg.Metrics.Addr)

	set("browser.command", cfg.Browser.Command)
	set("browser.args", cfg.Browser.Args)
}

// expandHome expands a leading ~ to the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
