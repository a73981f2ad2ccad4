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

// EnvPrefix is prepended to every environment override, e.g. FOCUSMAP_ENGINE_CONCURRENCY.
const EnvPrefix = "FOCUSMAP"

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Database() DatabaseConfig
	Engine() EngineConfig
	Browser() BrowserConfig
	Network() NetworkConfig
	Recorder() RecorderConfig
	Visualization() VisualizationConfig
	Report() ReportConfig
	Scan() ScanConfig
	SetScanConfig(sc ScanConfig)

	// Setters for values the CLI flags override.
	SetEngineConcurrency(int)
	SetBrowserHeadless(bool)
	SetRecorderMaxStops(int)
	SetReportFormat(string)
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg        LoggerConfig        `mapstructure:"logger" yaml:"logger"`
	DatabaseCfg      DatabaseConfig      `mapstructure:"database" yaml:"database"`
	EngineCfg        EngineConfig        `mapstructure:"engine" yaml:"engine"`
	BrowserCfg       BrowserConfig       `mapstructure:"browser" yaml:"browser"`
	NetworkCfg       NetworkConfig       `mapstructure:"network" yaml:"network"`
	RecorderCfg      RecorderConfig      `mapstructure:"recorder" yaml:"recorder"`
	VisualizationCfg VisualizationConfig `mapstructure:"visualization" yaml:"visualization"`
	ReportCfg        ReportConfig        `mapstructure:"report" yaml:"report"`
	// ScanCfg gets its marching orders from CLI flags, not the config file.
	ScanCfg ScanConfig `mapstructure:"-" yaml:"-"`
}

var _ Interface = (*Config)(nil)

func (c *Config) Logger() LoggerConfig               { return c.LoggerCfg }
func (c *Config) Database() DatabaseConfig           { return c.DatabaseCfg }
func (c *Config) Engine() EngineConfig               { return c.EngineCfg }
func (c *Config) Browser() BrowserConfig             { return c.BrowserCfg }
func (c *Config) Network() NetworkConfig             { return c.NetworkCfg }
func (c *Config) Recorder() RecorderConfig           { return c.RecorderCfg }
func (c *Config) Visualization() VisualizationConfig { return c.VisualizationCfg }
func (c *Config) Report() ReportConfig               { return c.ReportCfg }
func (c *Config) Scan() ScanConfig                   { return c.ScanCfg }

func (c *Config) SetScanConfig(sc ScanConfig)   { c.ScanCfg = sc }
func (c *Config) SetEngineConcurrency(n int)    { c.EngineCfg.Concurrency = n }
func (c *Config) SetBrowserHeadless(b bool)     { c.BrowserCfg.Headless = b }
func (c *Config) SetRecorderMaxStops(n int)     { c.RecorderCfg.MaxStops = n }
func (c *Config) SetReportFormat(format string) { c.ReportCfg.Format = format }

// LoggerConfig holds all the configuration for the logger.
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

// ColorConfig defines the color names for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// DatabaseConfig holds the database connection details. An empty URL disables persistence.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// EngineConfig bounds how many inputs are scanned at once.
type EngineConfig struct {
	Concurrency int           `mapstructure:"concurrency" yaml:"concurrency"`
	ScanTimeout time.Duration `mapstructure:"scan_timeout" yaml:"scan_timeout"`
}

// BrowserConfig holds settings for the headless browser.
type BrowserConfig struct {
	Headless          bool           `mapstructure:"headless" yaml:"headless"`
	IgnoreTLSErrors   bool           `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	Args              []string       `mapstructure:"args" yaml:"args"`
	Viewport          ViewportConfig `mapstructure:"viewport" yaml:"viewport"`
	NavigationTimeout time.Duration  `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	PostLoadWait      time.Duration  `mapstructure:"post_load_wait" yaml:"post_load_wait"`
}

// ViewportConfig is the layout viewport in CSS pixels, shared by the browser and the static layout.
type ViewportConfig struct {
	Width  int `mapstructure:"width" yaml:"width"`
	Height int `mapstructure:"height" yaml:"height"`
}

// NetworkConfig tunes how static inputs are fetched over HTTP.
type NetworkConfig struct {
	Timeout           time.Duration     `mapstructure:"timeout" yaml:"timeout"`
	UserAgent         string            `mapstructure:"user_agent" yaml:"user_agent"`
	Headers           map[string]string `mapstructure:"headers" yaml:"headers"`
	RequestsPerSecond float64           `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	MaxBodyBytes      int64             `mapstructure:"max_body_bytes" yaml:"max_body_bytes"`
	IgnoreTLSErrors   bool              `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	// ProxyURL routes requests through a proxy. Empty means the HTTP_PROXY environment.
	ProxyURL string `mapstructure:"proxy_url" yaml:"proxy_url"`
}

// RecorderConfig paces and bounds tab recording.
type RecorderConfig struct {
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
	MaxStops int           `mapstructure:"max_stops" yaml:"max_stops"`
}

// VisualizationConfig toggles the optional parts of the tab stop overlay.
type VisualizationConfig struct {
	ShowSolidFocusLine  bool `mapstructure:"show_solid_focus_line" yaml:"show_solid_focus_line"`
	ShowTabIndexedLabel bool `mapstructure:"show_tab_indexed_label" yaml:"show_tab_indexed_label"`
	// Highlights lists the class drawers enabled next to the tab stops overlay.
	Highlights []string `mapstructure:"highlights" yaml:"highlights"`
}

// ReportConfig selects the report encoding and where artifacts are written.
type ReportConfig struct {
	Format    string `mapstructure:"format" yaml:"format"`
	OutputDir string `mapstructure:"output_dir" yaml:"output_dir"`
}

// ScanConfig holds settings populated from CLI flags for a specific run.
type ScanConfig struct {
	Targets    []string
	Output     string
	Overlay    bool
	Screenshot bool
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "focusmap")
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

	// -- Engine --
	v.SetDefault("engine.concurrency", 4)
	v.SetDefault("engine.scan_timeout", "2m")

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.viewport.width", 1280)
	v.SetDefault("browser.viewport.height", 720)
	v.SetDefault("browser.navigation_timeout", "60s")
	v.SetDefault("browser.post_load_wait", "500ms")

	// -- Network --
	v.SetDefault("network.timeout", "30s")
	v.SetDefault("network.user_agent", "focusmap/1.0")
	v.SetDefault("network.requests_per_second", 5.0)
	v.SetDefault("network.max_body_bytes", 16<<20)
	v.SetDefault("network.ignore_tls_errors", false)
	v.SetDefault("network.proxy_url", "")

	// -- Recorder --
	v.SetDefault("recorder.interval", "50ms")
	v.SetDefault("recorder.max_stops", 500)

	// -- Visualization --
	v.SetDefault("visualization.show_solid_focus_line", true)
	v.SetDefault("visualization.show_tab_indexed_label", true)
	v.SetDefault("visualization.highlights", []string{})

	// -- Report --
	v.SetDefault("report.format", "text")
	v.SetDefault("report.output_dir", ".")
}

// BindEnv makes every key readable from FOCUSMAP_ prefixed environment variables.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// AutomaticEnv only covers keys viper already knows about.
	_ = v.BindEnv("database.url")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// expandPaths resolves a leading ~ in file system settings.
func (c *Config) expandPaths() error {
	for _, p := range []*string{&c.LoggerCfg.LogFile, &c.ReportCfg.OutputDir} {
		if *p == "" {
			continue
		}
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("failed to expand path %q: %w", *p, err)
		}
		*p = expanded
	}
	return nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.EngineCfg.Concurrency <= 0 {
		return fmt.Errorf("engine.concurrency must be a positive integer")
	}
	if c.BrowserCfg.Viewport.Width <= 0 || c.BrowserCfg.Viewport.Height <= 0 {
		return fmt.Errorf("browser.viewport width and height must be positive")
	}
	if c.RecorderCfg.Interval < 0 {
		return fmt.Errorf("recorder.interval must not be negative")
	}
	if c.RecorderCfg.MaxStops < 0 {
		return fmt.Errorf("recorder.max_stops must not be negative")
	}
	if c.NetworkCfg.RequestsPerSecond < 0 {
		return fmt.Errorf("network.requests_per_second must not be negative")
	}
	if c.NetworkCfg.ProxyURL != "" {
		u, err := url.Parse(c.NetworkCfg.ProxyURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("network.proxy_url must be an absolute URL, got %q", c.NetworkCfg.ProxyURL)
		}
	}
	switch c.ReportCfg.Format {
	case "text", "json", "yaml", "sarif":
	default:
		return fmt.Errorf("report.format must be one of text, json, yaml or sarif, got %q", c.ReportCfg.Format)
	}
	for _, h := range c.VisualizationCfg.Highlights {
		switch h {
		case "body", "color", "pseudo-selector":
		default:
			return fmt.Errorf("visualization.highlights: unknown highlight %q", h)
		}
	}
	return nil
}
