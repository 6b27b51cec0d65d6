// config.go: settings struct for the DiSensor service and functions to load and save it.
package conf

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

//go:embed config.yaml
var configFiles embed.FS

// LogConfig defines the configuration for a log file
type LogConfig struct {
	Enabled    bool   // true to also write logs to Path
	Path       string // path to the log file
	Level      string // debug, info, warn or error
	MaxSizeMB  int    // rotate after this many megabytes
	MaxBackups int    // rotated files to keep
	MaxAgeDays int    // days to keep rotated files
}

// BackendSettings selects and configures the backend that holds nodes and readings.
type BackendSettings struct {
	Type string // sqlite, mysql or rest

	SQLite struct {
		Path string // path to sqlite database
	}

	MySQL struct {
		Username string
		Password string
		Database string
		Host     string
		Port     string
	}

	REST struct {
		URL     string        // base url of the PostgREST compatible endpoint, e.g. https://x.supabase.co/rest/v1
		APIKey  string        // anon key sent as apikey and bearer token
		Timeout time.Duration // per request timeout
	}
}

// ChangeStreamSettings configures the sources that push backend changes to the coordinator.
type ChangeStreamSettings struct {
	MQTT struct {
		Enabled bool   // subscribe to <topic>/readings and <topic>/nodes on the mqtt broker
		Topic   string // topic prefix
	}
	Kafka struct {
		Enabled bool
		Brokers []string
		Topic   string
		GroupID string
	}
}

// HexGridSettings contains settings for spatial aggregation.
type HexGridSettings struct {
	Resolution     int           // H3 resolution
	BatchLimit     int           // most recent readings aggregated per request
	LiveWindow     time.Duration // readings younger than this are live points
	NoisyThreshold float64       // decibel level above which a live point is noisy
	CacheTTL       time.Duration // hex map response cache lifetime
}

// LedgerSettings contains reward rates.
type LedgerSettings struct {
	BaseRate  float64 // tokens per pulse
	BonusRate float64 // share of each invitee's base paid to the inviter
	Precision int     // decimals used for display
}

// WebServerSettings contains settings for the HTTP API.
type WebServerSettings struct {
	Debug     bool
	Enabled   bool
	Listen    string  // address and port to listen on
	RateLimit float64 // requests per second per client, 0 disables limiting
	Burst     int
	Log       LogConfig // access log file
}

// MQTTSettings contains settings for MQTT integration.
type MQTTSettings struct {
	Enabled  bool   // true to publish the leaderboard
	Broker   string // MQTT (tcp://host:port)
	Topic    string // topic the leaderboard is published to
	Username string
	Password string
	ClientID string
	Retain   bool
}

// SentrySettings configures error reporting.
type SentrySettings struct {
	DSN         string
	Environment string
	SampleRate  float64
}

// TelemetrySettings contains settings for telemetry.
type TelemetrySettings struct {
	Enabled bool   // true to enable Prometheus compatible telemetry endpoint
	Listen  string // separate listener for /metrics, empty serves it on the web server
	Sentry  SentrySettings
}

// Settings is the root of the configuration tree.
type Settings struct {
	Debug bool // true to enable debug mode

	// Runtime values, not stored in config file
	Version   string `yaml:"-"`
	BuildDate string `yaml:"-"`

	Main struct {
		Name string    // name of this node, used in MQTT client id and logs
		Log  LogConfig // logging configuration
	}

	Backend      BackendSettings
	ChangeStream ChangeStreamSettings
	HexGrid      HexGridSettings
	Ledger       LedgerSettings
	WebServer    WebServerSettings
	MQTT         MQTTSettings
	Telemetry    TelemetrySettings
}

// settingsInstance is the current settings instance
var (
	settingsInstance *Settings
	once             sync.Once
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into the settings instance.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper sets defaults, env bindings and reads the config file,
// writing the embedded default when none exists.
func initViper() error {
	viper.SetConfigType("yaml")

	if configFile := viper.GetString("config"); configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName("config")
		configPaths, err := GetDefaultConfigPaths()
		if err != nil {
			return fmt.Errorf("error getting default config paths: %w", err)
		}
		for _, path := range configPaths {
			viper.AddConfigPath(path)
		}
	}

	setDefaultConfig()

	if err := configureEnvironmentVariables(); err != nil {
		log.Printf("Warning: %v", err)
	}

	err := viper.ReadInConfig()
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			return createDefaultConfig()
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// createDefaultConfig writes the embedded config.yaml to the first default path.
func createDefaultConfig() error {
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	configPath := filepath.Join(configPaths[0], "config.yaml")

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(getDefaultConfig()), 0o644); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	fmt.Println("Created default config file at:", configPath)
	viper.SetConfigFile(configPath)
	return viper.ReadInConfig()
}

// getDefaultConfig reads the embedded default configuration.
func getDefaultConfig() string {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		log.Fatalf("Error reading config file from embedded FS: %v", err)
	}
	return string(data)
}

// GetSettings returns the current settings instance, nil before Load.
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// Setting returns the current settings instance, loading it on first use.
func Setting() *Settings {
	once.Do(func() {
		if GetSettings() == nil {
			if _, err := Load(); err != nil {
				log.Fatalf("Error loading settings: %v", err)
			}
		}
	})
	return GetSettings()
}

// SaveSettings writes the current settings back to the config file in use.
func SaveSettings() error {
	settings := GetSettings()
	if settings == nil {
		return errors.New("settings not loaded")
	}

	configPath := viper.ConfigFileUsed()
	if configPath == "" {
		path, err := FindConfigFile()
		if err != nil {
			return fmt.Errorf("error finding config file: %w", err)
		}
		configPath = path
	}

	return SaveYAMLConfig(configPath, settings)
}

// SaveYAMLConfig marshals settings to YAML and replaces configPath atomically.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempFileName := tempFile.Name()
	defer os.Remove(tempFileName)

	if _, err := tempFile.Write(yamlData); err != nil {
		tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}

	// Rename fails across devices, fall back to copy & delete
	if err := os.Rename(tempFileName, configPath); err != nil {
		if err := moveFile(tempFileName, configPath); err != nil {
			return fmt.Errorf("error copying config file: %w", err)
		}
	}

	return nil
}

// MySQLDSN builds the gorm mysql DSN from the backend settings.
func (b *BackendSettings) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		b.MySQL.Username, b.MySQL.Password, b.MySQL.Host, b.MySQL.Port, b.MySQL.Database)
}
