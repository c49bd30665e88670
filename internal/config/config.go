package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for FundLens
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Detection DetectionConfig `yaml:"detection"`
	Alerts    AlertsConfig    `yaml:"alerts"`
	Audit     AuditConfig     `yaml:"audit"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port        int    `yaml:"port"`
	Environment string `yaml:"environment"`
}

// DetectionConfig holds pattern detection configuration
type DetectionConfig struct {
	StructuringWindow   time.Duration `yaml:"structuring_window"`
	ReportingThreshold  float64       `yaml:"reporting_threshold"`
	StructuringBand     float64       `yaml:"structuring_band"`
	MinStructuringCount int           `yaml:"min_structuring_count"`
	RapidWindow         time.Duration `yaml:"rapid_window"`
	MinRapidCount       int           `yaml:"min_rapid_count"`
	MinCycleLength      int           `yaml:"min_cycle_length"`
	MaxCycleLength      int           `yaml:"max_cycle_length"`
	MaxCycles           int           `yaml:"max_cycles"`
}

// AlertsConfig holds alerting configuration
type AlertsConfig struct {
	MinConfidence float64 `yaml:"min_confidence"`
	BufferSize    int     `yaml:"buffer_size"`
}

// AuditConfig holds audit trail configuration
type AuditConfig struct {
	Enabled    bool `yaml:"enabled"`
	BufferSize int  `yaml:"buffer_size"`
	MaxEvents  int  `yaml:"max_events"`
}

// Load loads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	// Audit starts enabled; only an explicit enabled: false in the file
	// turns it off. setDefaults cannot distinguish absent from false.
	cfg := Config{Audit: AuditConfig{Enabled: true}}
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	setDefaults(&cfg)
	return &cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 3008
	}
	if cfg.Server.Environment == "" {
		cfg.Server.Environment = "development"
	}
	if cfg.Detection.StructuringWindow == 0 {
		cfg.Detection.StructuringWindow = 7 * 24 * time.Hour
	}
	if cfg.Detection.ReportingThreshold == 0 {
		cfg.Detection.ReportingThreshold = 10000
	}
	if cfg.Detection.StructuringBand == 0 {
		cfg.Detection.StructuringBand = 0.9
	}
	if cfg.Detection.MinStructuringCount == 0 {
		cfg.Detection.MinStructuringCount = 3
	}
	if cfg.Detection.RapidWindow == 0 {
		cfg.Detection.RapidWindow = 24 * time.Hour
	}
	if cfg.Detection.MinRapidCount == 0 {
		cfg.Detection.MinRapidCount = 5
	}
	if cfg.Detection.MinCycleLength == 0 {
		cfg.Detection.MinCycleLength = 3
	}
	if cfg.Detection.MaxCycleLength == 0 {
		cfg.Detection.MaxCycleLength = 10
	}
	if cfg.Detection.MaxCycles == 0 {
		cfg.Detection.MaxCycles = 1000
	}
	if cfg.Alerts.MinConfidence == 0 {
		cfg.Alerts.MinConfidence = 0.2
	}
	if cfg.Alerts.BufferSize == 0 {
		cfg.Alerts.BufferSize = 256
	}
	if cfg.Audit.BufferSize == 0 {
		cfg.Audit.BufferSize = 256
	}
	if cfg.Audit.MaxEvents == 0 {
		cfg.Audit.MaxEvents = 10000
	}
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        getEnvInt("PORT", 3008),
			Environment: getEnv("ENVIRONMENT", "development"),
		},
		Detection: DetectionConfig{
			StructuringWindow:   getEnvDuration("DETECT_STRUCTURING_WINDOW", 7*24*time.Hour),
			ReportingThreshold:  getEnvFloat("DETECT_REPORTING_THRESHOLD", 10000),
			StructuringBand:     getEnvFloat("DETECT_STRUCTURING_BAND", 0.9),
			MinStructuringCount: getEnvInt("DETECT_MIN_STRUCTURING", 3),
			RapidWindow:         getEnvDuration("DETECT_RAPID_WINDOW", 24*time.Hour),
			MinRapidCount:       getEnvInt("DETECT_MIN_RAPID", 5),
			MinCycleLength:      getEnvInt("DETECT_MIN_CYCLE_LENGTH", 3),
			MaxCycleLength:      getEnvInt("DETECT_MAX_CYCLE_LENGTH", 10),
			MaxCycles:           getEnvInt("DETECT_MAX_CYCLES", 1000),
		},
		Alerts: AlertsConfig{
			MinConfidence: getEnvFloat("ALERTS_MIN_CONFIDENCE", 0.2),
			BufferSize:    getEnvInt("ALERTS_BUFFER_SIZE", 256),
		},
		Audit: AuditConfig{
			Enabled:    getEnvBool("AUDIT_ENABLED", true),
			BufferSize: getEnvInt("AUDIT_BUFFER_SIZE", 256),
			MaxEvents:  getEnvInt("AUDIT_MAX_EVENTS", 10000),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
