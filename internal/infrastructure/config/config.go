package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Store    StoreConfig    `mapstructure:"store"`
	Planner  PlannerConfig  `mapstructure:"planner"`
	Logger   LoggerConfig   `mapstructure:"logger"`
	Security SecurityConfig `mapstructure:"security"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// AppConfig holds application-specific configuration
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	Host           string        `mapstructure:"host"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// StoreConfig holds document store configuration
type StoreConfig struct {
	DataDir       string        `mapstructure:"data_dir"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	WatchExternal bool          `mapstructure:"watch_external"`
	Collections   []string      `mapstructure:"collections"`
}

// PlannerConfig holds study plan defaults
type PlannerConfig struct {
	DefaultDailyHours float64 `mapstructure:"default_daily_hours"`
	DefaultWindowDays int     `mapstructure:"default_window_days"`
	MaxWindowDays     int     `mapstructure:"max_window_days"`
}

// LoggerConfig holds logging configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	CORSAllowedOrigins string        `mapstructure:"cors_allowed_origins"`
	RateLimitRequests  int           `mapstructure:"rate_limit_requests"`
	RateLimitWindow    time.Duration `mapstructure:"rate_limit_window"`
	BodyLimit          string        `mapstructure:"body_limit"`
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// DefaultCollections are preloaded at startup.
var DefaultCollections = []string{"tasks", "subjects", "timetable", "events", "chat", "assessments"}

// Load loads configuration from various sources
func Load() (*Config, error) {
	// Load .env file if it exists (ignore errors)
	_ = godotenv.Load()

	v := viper.New()

	// Configure viper
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set defaults
	setDefaults(v)

	// Bind environment variables
	bindEnvVars(v)

	if file := v.GetString("config_file"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "StudyPlanner")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.debug", false)

	// Server defaults
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.request_timeout", "30s")

	// Store defaults
	v.SetDefault("store.data_dir", "./data")
	v.SetDefault("store.write_timeout", "10s")
	v.SetDefault("store.watch_external", false)
	v.SetDefault("store.collections", DefaultCollections)

	// Planner defaults
	v.SetDefault("planner.default_daily_hours", 4)
	v.SetDefault("planner.default_window_days", 7)
	v.SetDefault("planner.max_window_days", 366)

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	v.SetDefault("logger.output", "stdout")
	v.SetDefault("logger.filename", "logs/studyplanner.log")
	v.SetDefault("logger.max_size_mb", 50)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age_days", 28)
	v.SetDefault("logger.compress", true)

	// Security defaults
	v.SetDefault("security.cors_allowed_origins", "http://localhost:8000")
	v.SetDefault("security.rate_limit_requests", 5000)
	v.SetDefault("security.rate_limit_window", "1m")
	v.SetDefault("security.body_limit", "1M")

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
}

func bindEnvVars(v *viper.Viper) {
	v.BindEnv("config_file", "CONFIG_FILE")

	// App
	v.BindEnv("app.name", "APP_NAME")
	v.BindEnv("app.version", "APP_VERSION")
	v.BindEnv("app.environment", "APP_ENVIRONMENT")
	v.BindEnv("app.debug", "APP_DEBUG")

	// Server
	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.host", "SERVER_HOST")
	v.BindEnv("server.read_timeout", "SERVER_READ_TIMEOUT")
	v.BindEnv("server.write_timeout", "SERVER_WRITE_TIMEOUT")
	v.BindEnv("server.idle_timeout", "SERVER_IDLE_TIMEOUT")
	v.BindEnv("server.request_timeout", "SERVER_REQUEST_TIMEOUT")

	// Store
	v.BindEnv("store.data_dir", "DATA_DIR")
	v.BindEnv("store.write_timeout", "STORE_WRITE_TIMEOUT")
	v.BindEnv("store.watch_external", "STORE_WATCH_EXTERNAL")

	// Planner
	v.BindEnv("planner.default_daily_hours", "PLANNER_DAILY_HOURS")
	v.BindEnv("planner.default_window_days", "PLANNER_WINDOW_DAYS")
	v.BindEnv("planner.max_window_days", "PLANNER_MAX_WINDOW_DAYS")

	// Logger
	v.BindEnv("logger.level", "LOG_LEVEL")
	v.BindEnv("logger.format", "LOG_FORMAT")
	v.BindEnv("logger.output", "LOG_OUTPUT")
	v.BindEnv("logger.filename", "LOG_FILE")

	// Security
	v.BindEnv("security.cors_allowed_origins", "CORS_ORIGIN")
	v.BindEnv("security.rate_limit_requests", "RATE_LIMIT_MAX")
	v.BindEnv("security.rate_limit_window", "RATE_LIMIT_WINDOW")
	v.BindEnv("security.body_limit", "JSON_LIMIT")

	// Metrics
	v.BindEnv("metrics.enabled", "ENABLE_METRICS")
}

// Validate checks a loaded configuration
func Validate(cfg *Config) error {
	if strings.TrimSpace(cfg.Store.DataDir) == "" {
		return fmt.Errorf("store data directory is required")
	}

	if cfg.Store.WriteTimeout < 0 {
		return fmt.Errorf("store write timeout cannot be negative")
	}

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535")
	}

	if cfg.Planner.DefaultDailyHours <= 0 {
		return fmt.Errorf("planner default daily hours must be positive")
	}

	if cfg.Planner.DefaultWindowDays <= 0 {
		return fmt.Errorf("planner default window days must be positive")
	}

	if cfg.Planner.MaxWindowDays < cfg.Planner.DefaultWindowDays {
		return fmt.Errorf("planner max window days must be at least the default window")
	}

	return nil
}

// Addr returns the listen address
func (cfg *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
}

// IsDevelopment returns true if the environment is development
func (cfg *AppConfig) IsDevelopment() bool {
	return cfg.Environment == "development"
}

// IsProduction returns true if the environment is production
func (cfg *AppConfig) IsProduction() bool {
	return cfg.Environment == "production"
}
