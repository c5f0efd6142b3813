package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"github.com/shwndea/automated-padc-processor/internal/attendance"
)

// EnvPrefix namespaces every environment variable read by Load.
const EnvPrefix = "ADA"

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Security  SecurityConfig  `yaml:"security" envconfig:"SECURITY"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Paths     PathsConfig     `yaml:"paths" envconfig:"PATHS"`
	WebSocket WebSocketConfig `yaml:"websocket" envconfig:"WEBSOCKET"`
	Audit     AuditConfig     `yaml:"audit" envconfig:"AUDIT"`
	Database  DatabaseConfig  `yaml:"database" envconfig:"DATABASE"`
	Cache     CacheConfig     `yaml:"cache" envconfig:"CACHE"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host             string        `yaml:"host" envconfig:"BIND_HOST"`
	Port             int           `yaml:"port" envconfig:"PORT"`
	ReadTimeout      time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout     time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	IdleTimeout      time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	MaxHeaderBytes   int           `yaml:"max_header_bytes" envconfig:"MAX_HEADER_BYTES"`
	ShutdownTimeout  time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	OperationTimeout time.Duration `yaml:"operation_timeout" envconfig:"OPERATION_TIMEOUT"`
	MaxUploadBytes   int64         `yaml:"max_upload_bytes" envconfig:"MAX_UPLOAD_BYTES"`
}

// Address returns host:port for net/http.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	AllowedOrigins []string        `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
	EnableCORS     bool            `yaml:"enable_cors" envconfig:"ENABLE_CORS"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED"`
	RPS     float64 `yaml:"rps" envconfig:"RPS"`
	Burst   int     `yaml:"burst" envconfig:"BURST"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LEVEL"`
	Format      string `yaml:"format" envconfig:"FORMAT"`
	Output      string `yaml:"output" envconfig:"OUTPUT"`
	FilePath    string `yaml:"file_path" envconfig:"FILE_PATH"`
	Development bool   `yaml:"development" envconfig:"DEVELOPMENT"`
}

// PathsConfig overrides the directory layout resolved by GetPaths.
type PathsConfig struct {
	BaseDir      string `yaml:"base_dir" envconfig:"BASE_DIR"`
	DownloadsDir string `yaml:"downloads_dir" envconfig:"DOWNLOADS_DIR"`
	ReportsDir   string `yaml:"reports_dir" envconfig:"REPORTS_DIR"`
	ProfilesDir  string `yaml:"profiles_dir" envconfig:"PROFILES_DIR"`
}

// WebSocketConfig contains WebSocket configuration
type WebSocketConfig struct {
	ReadBufferSize  int           `yaml:"read_buffer_size" envconfig:"READ_BUFFER_SIZE"`
	WriteBufferSize int           `yaml:"write_buffer_size" envconfig:"WRITE_BUFFER_SIZE"`
	PingPeriod      time.Duration `yaml:"ping_period" envconfig:"PING_PERIOD"`
	PongWait        time.Duration `yaml:"pong_wait" envconfig:"PONG_WAIT"`
}

// AuditConfig describes the school, the input export and the output workbook.
type AuditConfig struct {
	Location     string        `yaml:"location" envconfig:"LOCATION"`
	SchoolYear   string        `yaml:"school_year" envconfig:"SCHOOL_YEAR"`
	SchoolName   string        `yaml:"school_name" envconfig:"SCHOOL_NAME"`
	InputPattern string        `yaml:"input_pattern" envconfig:"INPUT_PATTERN"`
	InputSheet   string        `yaml:"input_sheet" envconfig:"INPUT_SHEET"`
	OutputFile   string        `yaml:"output_file" envconfig:"OUTPUT_FILE"`
	Worksheet    string        `yaml:"worksheet" envconfig:"WORKSHEET"`
	Concurrency  int           `yaml:"concurrency" envconfig:"CONCURRENCY"`
	Columns      ColumnsConfig `yaml:"columns" envconfig:"COLUMNS"`
}

// ColumnsConfig holds the 0-based columns of the attendance export.
type ColumnsConfig struct {
	Program int `yaml:"program" envconfig:"PROGRAM"`
	Month   int `yaml:"month" envconfig:"MONTH"`
	AgeBand int `yaml:"age_band" envconfig:"AGE_BAND"`
	Value   int `yaml:"value" envconfig:"VALUE"`
}

// Layout converts the configured columns for the attendance engine.
func (a AuditConfig) Layout() attendance.Layout {
	return attendance.Layout{
		ProgramColumn: a.Columns.Program,
		MonthColumn:   a.Columns.Month,
		AgeBandColumn: a.Columns.AgeBand,
		ValueColumn:   a.Columns.Value,
	}
}

// RunInfo returns the identity stamped on exports and history records.
func (a AuditConfig) RunInfo() attendance.RunInfo {
	return attendance.RunInfo{Location: a.Location, SchoolYear: a.SchoolYear, SchoolName: a.SchoolName}
}

// DatabaseConfig selects the run history backend. An empty DSN keeps history in memory.
type DatabaseConfig struct {
	Driver       string `yaml:"driver" envconfig:"DRIVER"`
	DSN          string `yaml:"dsn" envconfig:"DSN"`
	MaxOpenConns int    `yaml:"max_open_conns" envconfig:"MAX_OPEN_CONNS"`
}

// CacheConfig selects the result cache. An empty address keeps results in memory.
type CacheConfig struct {
	RedisAddr     string        `yaml:"redis_addr" envconfig:"REDIS_ADDR"`
	RedisPassword string        `yaml:"redis_password" envconfig:"REDIS_PASSWORD"`
	RedisDB       int           `yaml:"redis_db" envconfig:"REDIS_DB"`
	TTL           time.Duration `yaml:"ttl" envconfig:"TTL"`
}

// Load builds the configuration from defaults, the config file and environment
// variables, in that order.
func Load() (*Config, error) {
	cfg := Default()

	if configFile := getConfigFilePath(); configFile != "" {
		if err := loadFromFile(configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file %s: %w", configFile, err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays the YAML file onto cfg. Keys absent from the file keep
// their current values.
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// validate validates the configuration
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}

	if c.Security.EnableCORS && len(c.Security.AllowedOrigins) == 0 {
		return fmt.Errorf("at least one allowed origin must be specified")
	}

	switch c.Logging.Format {
	case "json", "text":
	case "":
		c.Logging.Format = "json"
	default:
		return fmt.Errorf("invalid logging format %q", c.Logging.Format)
	}

	switch c.Logging.Output {
	case "stdout", "stderr", "file", "both":
	default:
		return fmt.Errorf("invalid logging output %q", c.Logging.Output)
	}

	if c.Audit.Concurrency < 1 {
		return fmt.Errorf("audit concurrency must be at least 1")
	}

	if l := c.Audit.Layout(); l.ProgramColumn < 0 || l.MonthColumn < 0 || l.AgeBandColumn < 0 || l.ValueColumn < 0 {
		return fmt.Errorf("audit columns must be non-negative")
	}

	switch strings.ToLower(c.Database.Driver) {
	case "postgres", "pgx":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	return nil
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	if p := os.Getenv(EnvPrefix + "_CONFIG"); p != "" {
		return p
	}

	locations := []string{
		"config.yaml",
		"configs/config.yaml",
		"../configs/config.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return ""
}

// Default returns default configuration
func Default() *Config {
	layout := attendance.DefaultLayout()
	return &Config{
		Server: ServerConfig{
			Port:             8080,
			ReadTimeout:      15 * time.Second,
			WriteTimeout:     60 * time.Second,
			IdleTimeout:      60 * time.Second,
			MaxHeaderBytes:   1 << 20,
			ShutdownTimeout:  30 * time.Second,
			OperationTimeout: 10 * time.Minute,
			MaxUploadBytes:   32 << 20,
		},
		Security: SecurityConfig{
			AllowedOrigins: []string{"http://localhost:8080"},
			EnableCORS:     true,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     100,
				Burst:   50,
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "both",
			FilePath: "logs/ada-audit.log",
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			PingPeriod:      30 * time.Second,
			PongWait:        60 * time.Second,
		},
		Audit: AuditConfig{
			Location:     "TK-8",
			SchoolYear:   "2025-2026",
			SchoolName:   "CCCS",
			InputPattern: "PrintMonthlyAttendanceSummaryTotals_*.xlsx",
			OutputFile:   "2025-2026_I4C_ADA_Reconciliation.xlsx",
			Worksheet:    "Template- Apportionment Summary",
			Concurrency:  4,
			Columns: ColumnsConfig{
				Program: layout.ProgramColumn,
				Month:   layout.MonthColumn,
				AgeBand: layout.AgeBandColumn,
				Value:   layout.ValueColumn,
			},
		},
		Database: DatabaseConfig{
			Driver:       "postgres",
			MaxOpenConns: 5,
		},
		Cache: CacheConfig{
			TTL: 24 * time.Hour,
		},
	}
}
