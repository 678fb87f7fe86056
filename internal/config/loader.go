package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// === PERSISTENCE ===

type DatabaseConfig struct {
	Path        string `json:"path"`
	JournalMode string `json:"journal_mode"`
	Synchronous string `json:"synchronous"`
}

// === DETECTOR SERVICE ===

type DetectorConfig struct {
	ListenAddr  string         `json:"listen_addr"`
	DatasetPath string         `json:"dataset_path"`
	Fallback    FallbackConfig `json:"fallback"`
	Metrics     MetricsConfig  `json:"metrics"`
	Alerting    AlertingConfig `json:"alerting"`
	MaxRecent   int            `json:"max_recent"` // in-memory recent-query ring
}

// AlertingConfig controls webhook delivery of high-confidence DGA hits.
type AlertingConfig struct {
	Enabled           bool    `json:"enabled"`
	WebhookURL        string  `json:"webhook_url"`
	MinConfidence     float64 `json:"min_confidence"`
	TimeoutSeconds    int     `json:"timeout_seconds"`
	RetryCount        int     `json:"retry_count"`
	RetryDelaySeconds int     `json:"retry_delay_seconds"`
}

// FallbackConfig holds the rule-based thresholds used when the model
// dataset is missing.
type FallbackConfig struct {
	EntropyThreshold    float64 `json:"entropy_threshold"`
	DigitRatioThreshold float64 `json:"digit_ratio_threshold"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// === ENDPOINT SIMULATOR ===

type EndpointConfig struct {
	ListenAddr string `json:"listen_addr"`
}

// === VICTIM / TRAFFIC GENERATOR ===

type VictimConfig struct {
	DetectorURL    string `json:"detector_url"`
	EndpointURL    string `json:"endpoint_url"`
	TimeoutSeconds int    `json:"timeout_seconds"`
	// DefaultPolicy decides a domain's fate when the detector is
	// unreachable or answers UNKNOWN: "block" (fail-closed) or "allow".
	DefaultPolicy string `json:"default_policy"`
}

// === LOGGING ===

type LoggingConfig struct {
	LogDir   string            `json:"log_dir"`
	LogLevel string            `json:"log_level"`
	Debug    bool              `json:"debug"`
	Rotation LogRotationConfig `json:"rotation"`
}

type LogRotationConfig struct {
	MaxSizeMB  int  `json:"max_size_mb"`
	MaxBackups int  `json:"max_backups"`
	MaxAgeDays int  `json:"max_age_days"`
	Compress   bool `json:"compress"`
}

// === MAIN CONFIG STRUCTURE ===

type Config struct {
	ProfilePath string         `json:"profile_path"` // shared DGA lab profile (YAML)
	Database    DatabaseConfig `json:"database"`
	Detector    DetectorConfig `json:"detector"`
	Endpoint    EndpointConfig `json:"endpoint"`
	Victim      VictimConfig   `json:"victim"`
	Logging     LoggingConfig  `json:"logging"`
}

// === LOADER FUNCTIONS ===

// Load reads the JSON config at configPath, falling back through well-known
// locations and finally to built-in defaults.
func Load(configPath string) (*Config, error) {
	var data []byte
	var err error

	if configPath != "" {
		data, err = os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	} else {
		locations := []string{
			"./config/default.json",
			"/etc/dgalab/config.json",
			os.Getenv("DGALAB_CONFIG"),
		}
		for _, loc := range locations {
			if loc == "" {
				continue
			}
			if d, err := os.ReadFile(loc); err == nil {
				data = d
				fmt.Printf("Loaded config from: %s\n", loc)
				break
			}
		}
	}

	if data == nil {
		fmt.Println("No config file found, using defaults")
		return getDefaults(), nil
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	expandEnvVars(&config)
	applyDefaults(&config)

	return &config, nil
}

// expandEnvVars replaces ${VAR_NAME} with environment variables
func expandEnvVars(cfg *Config) {
	cfg.Database.Path = os.ExpandEnv(cfg.Database.Path)
	cfg.Detector.DatasetPath = os.ExpandEnv(cfg.Detector.DatasetPath)
	cfg.ProfilePath = os.ExpandEnv(cfg.ProfilePath)
	cfg.Logging.LogDir = os.ExpandEnv(cfg.Logging.LogDir)
}

func getDefaults() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	// Database defaults
	if cfg.Database.Path == "" {
		cfg.Database.Path = "./data/dgalab.db"
	}
	if cfg.Database.JournalMode == "" {
		cfg.Database.JournalMode = "WAL"
	}
	if cfg.Database.Synchronous == "" {
		cfg.Database.Synchronous = "NORMAL"
	}

	// Detector defaults
	if cfg.Detector.ListenAddr == "" {
		cfg.Detector.ListenAddr = ":5000"
	}
	if cfg.Detector.DatasetPath == "" {
		cfg.Detector.DatasetPath = "./datasets/domains_features.csv"
	}
	if cfg.Detector.Fallback.EntropyThreshold == 0 {
		cfg.Detector.Fallback.EntropyThreshold = 3.0
	}
	if cfg.Detector.Fallback.DigitRatioThreshold == 0 {
		cfg.Detector.Fallback.DigitRatioThreshold = 0.3
	}
	if cfg.Detector.Metrics.Path == "" {
		cfg.Detector.Metrics.Path = "/metrics"
	}
	if cfg.Detector.MaxRecent == 0 {
		cfg.Detector.MaxRecent = 200
	}
	if cfg.Detector.Alerting.MinConfidence == 0 {
		cfg.Detector.Alerting.MinConfidence = 0.8
	}
	if cfg.Detector.Alerting.TimeoutSeconds == 0 {
		cfg.Detector.Alerting.TimeoutSeconds = 5
	}
	if cfg.Detector.Alerting.RetryCount == 0 {
		cfg.Detector.Alerting.RetryCount = 3
	}
	if cfg.Detector.Alerting.RetryDelaySeconds == 0 {
		cfg.Detector.Alerting.RetryDelaySeconds = 2
	}

	// Endpoint defaults
	if cfg.Endpoint.ListenAddr == "" {
		cfg.Endpoint.ListenAddr = ":8080"
	}

	// Victim defaults
	if cfg.Victim.DetectorURL == "" {
		cfg.Victim.DetectorURL = "http://localhost:5000"
	}
	if cfg.Victim.EndpointURL == "" {
		cfg.Victim.EndpointURL = "http://localhost:8080"
	}
	if cfg.Victim.TimeoutSeconds == 0 {
		cfg.Victim.TimeoutSeconds = 5
	}
	if cfg.Victim.DefaultPolicy == "" {
		cfg.Victim.DefaultPolicy = "block"
	}

	// Logging defaults
	if cfg.Logging.LogDir == "" {
		cfg.Logging.LogDir = "./logs"
	}
	if cfg.Logging.LogLevel == "" {
		cfg.Logging.LogLevel = "info"
	}
	if cfg.Logging.Rotation.MaxSizeMB == 0 {
		cfg.Logging.Rotation.MaxSizeMB = 50
	}
	if cfg.Logging.Rotation.MaxBackups == 0 {
		cfg.Logging.Rotation.MaxBackups = 5
	}
	if cfg.Logging.Rotation.MaxAgeDays == 0 {
		cfg.Logging.Rotation.MaxAgeDays = 14
	}

	// Create directories
	os.MkdirAll(cfg.Logging.LogDir, 0755)
	os.MkdirAll(filepath.Dir(cfg.Database.Path), 0755)
}
