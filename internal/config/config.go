package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/teemow/meetsched/internal/availability"
	"github.com/teemow/meetsched/internal/instrumentation"
	"github.com/teemow/meetsched/internal/mirror"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "MEETSCHED"

const appName = "meetsched"

// Transport names accepted by the serve command.
const (
	TransportStdio          = "stdio"
	TransportStreamableHTTP = "streamable-http"
)

// Config is the complete runtime configuration.
type Config struct {
	Google     GoogleConfig     `mapstructure:"google"`
	Accounts   AccountsConfig   `mapstructure:"accounts"`
	Scheduling SchedulingConfig `mapstructure:"scheduling"`
	Retry      RetryConfig      `mapstructure:"retry"`
	Mirror     MirrorConfig     `mapstructure:"mirror"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
	OTLP       OTLPConfig       `mapstructure:"otlp"`
	Audit      AuditConfig      `mapstructure:"audit"`
	Transport  string           `mapstructure:"transport"`
	HTTPAddr   string           `mapstructure:"http_addr"`
	Debug      bool             `mapstructure:"debug"`
}

// GoogleConfig holds the OAuth client and API client settings.
type GoogleConfig struct {
	ClientID          string  `mapstructure:"client_id"`
	ClientSecret      string  `mapstructure:"client_secret"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type AccountsConfig struct {
	// File is the token store path; empty selects the user config directory.
	File string `mapstructure:"file"`
}

type SchedulingConfig struct {
	// Timezone is an IANA zone name; empty or "Local" uses the host zone.
	Timezone        string `mapstructure:"timezone"`
	WorkdayStart    int    `mapstructure:"workday_start"`
	WorkdayEnd      int    `mapstructure:"workday_end"`
	IncludeWeekends bool   `mapstructure:"include_weekends"`

	// WorkingHours disables the off-hours busy entry when false.
	WorkingHours bool `mapstructure:"working_hours"`
	MaxResults   int  `mapstructure:"max_results"`
}

type RetryConfig struct {
	MaxRetries int `mapstructure:"max_retries"`
}

type MirrorConfig struct {
	Backend  string       `mapstructure:"backend"`
	Calendar string       `mapstructure:"calendar"`
	CalDAV   CalDAVConfig `mapstructure:"caldav"`
}

type CalDAVConfig struct {
	URL      string `mapstructure:"url"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type MetricsConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Addr           string `mapstructure:"addr"`
	Exporter       string `mapstructure:"exporter"`
	DetailedLabels bool   `mapstructure:"detailed_labels"`
}

type TracingConfig struct {
	Exporter     string  `mapstructure:"exporter"`
	SamplingRate float64 `mapstructure:"sampling_rate"`
}

type OTLPConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Insecure bool   `mapstructure:"insecure"`
}

type AuditConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	IncludePII bool `mapstructure:"include_pii"`
}

// SetDefaults registers the default of every key. Keys need a default to be
// picked up from the environment by Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("google.client_id", "")
	v.SetDefault("google.client_secret", "")
	v.SetDefault("google.requests_per_second", 10.0)
	v.SetDefault("google.burst", 20)
	v.SetDefault("accounts.file", "")
	v.SetDefault("scheduling.timezone", "")
	v.SetDefault("scheduling.workday_start", 9)
	v.SetDefault("scheduling.workday_end", 17)
	v.SetDefault("scheduling.include_weekends", false)
	v.SetDefault("scheduling.working_hours", true)
	v.SetDefault("scheduling.max_results", 5)
	v.SetDefault("retry.max_retries", 4)
	v.SetDefault("mirror.backend", mirror.BackendNone)
	v.SetDefault("mirror.calendar", "")
	v.SetDefault("mirror.caldav.url", "")
	v.SetDefault("mirror.caldav.username", "")
	v.SetDefault("mirror.caldav.password", "")
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", ":9090")
	v.SetDefault("metrics.exporter", instrumentation.ExporterPrometheus)
	v.SetDefault("metrics.detailed_labels", false)
	v.SetDefault("tracing.exporter", instrumentation.ExporterNone)
	v.SetDefault("tracing.sampling_rate", 0.1)
	v.SetDefault("otlp.endpoint", "")
	v.SetDefault("otlp.insecure", false)
	v.SetDefault("audit.enabled", true)
	v.SetDefault("audit.include_pii", false)
	v.SetDefault("transport", TransportStdio)
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("debug", false)
}

// New returns a viper instance reading MEETSCHED_* variables, with defaults
// registered. GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET are accepted as
// fallbacks for the OAuth client.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("google.client_id", EnvPrefix+"_GOOGLE_CLIENT_ID", "GOOGLE_CLIENT_ID")
	_ = v.BindEnv("google.client_secret", EnvPrefix+"_GOOGLE_CLIENT_SECRET", "GOOGLE_CLIENT_SECRET")
	SetDefaults(v)
	return v
}

// BindFlags binds flags to keys. Flags that were not set on the command line
// keep the lower-precedence value.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet, keys map[string]string) error {
	for flag, key := range keys {
		f := flags.Lookup(flag)
		if f == nil {
			return fmt.Errorf("unknown flag %q", flag)
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind flag %q: %w", flag, err)
		}
	}
	return nil
}

// LoadDotEnv loads the given .env files, or ./.env when none are given.
// Missing files are ignored; variables already set are not overridden.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// Dir returns the meetsched directory below the user config directory.
func Dir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine config directory: %w", err)
	}
	return filepath.Join(base, appName), nil
}

// Load reads configFile, or config.yaml from Dir when configFile is empty,
// and returns the validated configuration. Only an explicitly named file
// must exist.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if dir, err := Dir(); err == nil {
			v.AddConfigPath(dir)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges and cross-field requirements.
func (c *Config) Validate() error {
	var errs []error

	switch c.Transport {
	case TransportStdio, TransportStreamableHTTP:
	default:
		errs = append(errs, fmt.Errorf("transport must be %s or %s, got %q", TransportStdio, TransportStreamableHTTP, c.Transport))
	}

	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	if err := c.workingHours().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("scheduling: %w", err))
	}
	if c.Scheduling.MaxResults <= 0 {
		errs = append(errs, fmt.Errorf("scheduling.max_results must be positive, got %d", c.Scheduling.MaxResults))
	}
	if c.Retry.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("retry.max_retries must not be negative, got %d", c.Retry.MaxRetries))
	}
	if c.Google.RequestsPerSecond < 0 || c.Google.Burst < 0 {
		errs = append(errs, errors.New("google.requests_per_second and google.burst must not be negative"))
	}

	switch c.Mirror.Backend {
	case mirror.BackendNone:
	case mirror.BackendAppleScript:
		if c.Mirror.Calendar == "" {
			errs = append(errs, errors.New("mirror.calendar is required for the applescript backend"))
		}
	case mirror.BackendCalDAV:
		if c.Mirror.Calendar == "" || c.Mirror.CalDAV.URL == "" {
			errs = append(errs, errors.New("mirror.calendar and mirror.caldav.url are required for the caldav backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("mirror.backend must be one of %s, %s, %s, got %q",
			mirror.BackendNone, mirror.BackendAppleScript, mirror.BackendCalDAV, c.Mirror.Backend))
	}

	instr := c.Instrumentation("")
	if err := instr.Validate(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// Location returns the scheduling time zone.
func (c *Config) Location() (*time.Location, error) {
	switch c.Scheduling.Timezone {
	case "", "Local":
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Scheduling.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid scheduling.timezone %q: %w", c.Scheduling.Timezone, err)
	}
	return loc, nil
}

// WorkingHours returns the configured working hours, or nil when the
// working-hours filter is disabled.
func (c *Config) WorkingHours() *availability.WorkingHours {
	if !c.Scheduling.WorkingHours {
		return nil
	}
	wh := c.workingHours()
	return &wh
}

func (c *Config) workingHours() availability.WorkingHours {
	loc, _ := c.Location()
	return availability.WorkingHours{
		StartHour:       c.Scheduling.WorkdayStart,
		EndHour:         c.Scheduling.WorkdayEnd,
		IncludeWeekends: c.Scheduling.IncludeWeekends,
		Location:        loc,
	}
}

// AccountsFile returns the token store path.
func (c *Config) AccountsFile() (string, error) {
	if c.Accounts.File != "" {
		return c.Accounts.File, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "accounts.json"), nil
}

// Instrumentation returns the OpenTelemetry settings. Instrumentation is
// enabled whenever metrics are served or traces exported.
func (c *Config) Instrumentation(version string) instrumentation.Config {
	return instrumentation.Config{
		ServiceName:       appName,
		ServiceVersion:    version,
		Enabled:           c.Metrics.Enabled || c.Tracing.Exporter != instrumentation.ExporterNone,
		MetricsExporter:   c.Metrics.Exporter,
		TracingExporter:   c.Tracing.Exporter,
		OTLPEndpoint:      c.OTLP.Endpoint,
		OTLPInsecure:      c.OTLP.Insecure,
		TraceSamplingRate: c.Tracing.SamplingRate,
		DetailedLabels:    c.Metrics.DetailedLabels,
		AuditLogging: instrumentation.AuditLoggingConfig{
			Enabled:    c.Audit.Enabled,
			IncludePII: c.Audit.IncludePII,
		},
	}
}
