// config.go: settings struct for PetMood and the functions that load it.
package conf

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/spf13/viper"

	"github.com/tphakala/petmood/internal/logger"
)

//go:embed config.yaml
var configFiles embed.FS

// MainSettings contains general application settings.
type MainSettings struct {
	Name    string // instance name, reported in health and MQTT client id
	DataDir string // directory for the SQLite database and downloaded models
}

// RateLimitSettings configures the token bucket shared by detect routes.
type RateLimitSettings struct {
	RPS   float64 // sustained requests per second, 0 disables limiting
	Burst int     // bucket size
}

// HistorySettings configures the history endpoint.
type HistorySettings struct {
	DefaultLimit int           // limit used when the query omits it
	MaxLimit     int           // larger limits are clamped to this
	CacheTTL     time.Duration // response cache lifetime, 0 disables caching
}

// WebServerSettings contains settings for the HTTP server.
type WebServerSettings struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
	MaxUploadMB     int // request body limit for detect uploads
	RateLimit       RateLimitSettings
	History         HistorySettings
}

// SQLiteSettings contains settings for the SQLite database.
type SQLiteSettings struct {
	Path string
}

// MySQLSettings contains settings for the MySQL database.
type MySQLSettings struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
}

// DatabaseSettings selects and configures the storage backend.
type DatabaseSettings struct {
	Type          string // sqlite or mysql
	SlowThreshold time.Duration
	SQLite        SQLiteSettings
	MySQL         MySQLSettings
}

// DetectorSettings configures the model for one species.
type DetectorSettings struct {
	Enabled       bool
	ModelPath     string // .tflite or .onnx checkpoint
	ModelURL      string // downloaded into ModelPath when the file is missing
	Backend       string // auto, tflite or onnx
	Normalization string // unit, imagenet or raw255; empty uses the species default
	InputName     string // onnx input tensor name
	OutputName    string // onnx output tensor name
	Probabilities bool   // model output is already softmaxed
}

// InferenceSettings are shared by both detectors.
type InferenceSettings struct {
	Threads         int    // tflite threads, 0 picks from CPU topology
	MaxConcurrent   int    // concurrent Predict calls per detector
	ONNXLibraryPath string // path to libonnxruntime, empty uses the system default
	FetchTimeout    time.Duration
}

// EmotionSettings groups the per-species detectors.
type EmotionSettings struct {
	Cat       DetectorSettings
	Dog       DetectorSettings
	Inference InferenceSettings
}

// MQTTSettings configures detection event publication.
type MQTTSettings struct {
	Enabled  bool
	Broker   string // tcp://host:1883
	Topic    string // base topic, events go to <topic>/<species>/<pet_id>
	Username string
	Password string
	ClientID string
	QoS      int
	Retain   bool
}

// MetricsSettings configures the Prometheus endpoint.
type MetricsSettings struct {
	Enabled bool
	Listen  string // optional dedicated listener, e.g. ":9090"
}

// SentrySettings configures error telemetry.
type SentrySettings struct {
	Enabled     bool
	DSN         string
	Environment string
	SampleRate  float64
}

// Settings contains all configuration options for PetMood.
type Settings struct {
	Debug     bool
	Main      MainSettings
	Logging   logger.LoggingConfig
	WebServer WebServerSettings
	Database  DatabaseSettings
	Emotion   EmotionSettings
	MQTT      MQTTSettings
	Metrics   MetricsSettings
	Sentry    SentrySettings
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables. An empty
// configFile searches the default config paths and writes the embedded
// default config to the first one when nothing is found.
func Load(configFile string) (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	if err := initViper(configFile); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	settings := &Settings{}
	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper registers defaults and env bindings, then reads the config file.
func initViper(configFile string) error {
	viper.SetConfigType("yaml")
	setDefaultConfig()

	if err := bindEnvVars(); err != nil {
		return err
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading config file %s: %w", configFile, err)
		}
		return nil
	}

	viper.SetConfigName("config")
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	err = viper.ReadInConfig()
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			return createDefaultConfig(configPaths[0])
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// createDefaultConfig writes the embedded config.yaml into dir and reads it.
func createDefaultConfig(dir string) error {
	configPath := filepath.Join(dir, "config.yaml")
	defaultConfig, err := getDefaultConfig()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}

	if err := os.WriteFile(configPath, defaultConfig, 0o644); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	fmt.Println("Created default config file at:", configPath)
	viper.SetConfigFile(configPath)
	return viper.ReadInConfig()
}

// getDefaultConfig returns the embedded default config.yaml.
func getDefaultConfig() ([]byte, error) {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		return nil, fmt.Errorf("error reading embedded config: %w", err)
	}
	return data, nil
}

// GetDefaultConfigPaths returns the directories searched for config.yaml,
// in priority order.
func GetDefaultConfigPaths() ([]string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("error getting home directory: %w", err)
	}

	if runtime.GOOS == "windows" {
		return []string{
			filepath.Join(homeDir, "AppData", "Roaming", "petmood"),
			".",
		}, nil
	}

	return []string{
		filepath.Join(homeDir, ".config", "petmood"),
		"/etc/petmood",
		".",
	}, nil
}

// GetSettings returns the settings from the last successful Load.
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// Detector returns the settings for species ("cat" or "dog").
func (e *EmotionSettings) Detector(species string) (DetectorSettings, bool) {
	switch species {
	case "cat":
		return e.Cat, true
	case "dog":
		return e.Dog, true
	default:
		return DetectorSettings{}, false
	}
}
