package config

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// FileName is the config file looked up in the config directory.
const FileName = "gazewatch.cfg.json"

// Known source, trigger and storage kinds.
var (
	SourceTypes  = []string{"replay", "imagedir", "camera"}
	TriggerTypes = []string{"keyboard", "recording", "none"}
	StorageTypes = []string{"memory", "sqlite", "postgres", "influx", "websocket", "log", "none"}
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// GazeConfig holds calibration and monitoring settings.
type GazeConfig struct {
	Margin         float64       `json:"margin" mapstructure:"margin"`
	StatusFile     string        `json:"statusFile" mapstructure:"statusFile"`
	StatusInterval time.Duration `json:"statusInterval" mapstructure:"statusInterval"`
}

// SourceConfig selects and configures the frame source.
type SourceConfig struct {
	Type     string        `json:"type" mapstructure:"type"`
	Path     string        `json:"path" mapstructure:"path"`
	Mirror   bool          `json:"mirror" mapstructure:"mirror"`
	Interval time.Duration `json:"interval" mapstructure:"interval"`
	Device   int           `json:"device" mapstructure:"device"`
	Width    int           `json:"width" mapstructure:"width"`
	Height   int           `json:"height" mapstructure:"height"`
	Trigger  string        `json:"trigger" mapstructure:"trigger"`
	Record   string        `json:"record" mapstructure:"record"`
}

// DetectorConfig points at the landmark sidecar. An empty URL means the frames
// already carry their landmarks.
type DetectorConfig struct {
	URL     string        `json:"url" mapstructure:"url"`
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`
}

// MemoryConfig holds in-memory/JSON storage backend settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds SQLite storage backend settings.
type SQLiteConfig struct {
	Path          string        `json:"path" mapstructure:"path"`
	FlushInterval time.Duration `json:"flushInterval" mapstructure:"flushInterval"`
}

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	Host          string        `json:"host" mapstructure:"host"`
	Port          string        `json:"port" mapstructure:"port"`
	Username      string        `json:"username" mapstructure:"username"`
	Password      string        `json:"password" mapstructure:"password"`
	Database      string        `json:"database" mapstructure:"database"`
	SSLMode       string        `json:"sslMode" mapstructure:"sslMode"`
	FlushInterval time.Duration `json:"flushInterval" mapstructure:"flushInterval"`
}

// DSN returns the libpq connection string.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(`host=%s port=%s user=%s password=%s dbname=%s sslmode=%s`,
		c.Host, c.Port, c.Username, c.Password, c.Database, c.SSLMode)
}

// InfluxConfig holds InfluxDB v2 settings.
type InfluxConfig struct {
	Host      string `json:"host" mapstructure:"host"`
	Port      string `json:"port" mapstructure:"port"`
	Protocol  string `json:"protocol" mapstructure:"protocol"`
	Token     string `json:"token" mapstructure:"token"`
	Org       string `json:"org" mapstructure:"org"`
	Bucket    string `json:"bucket" mapstructure:"bucket"`
	BackupDir string `json:"backupDir" mapstructure:"backupDir"`
}

// URL returns the server base URL.
func (c InfluxConfig) URL() string {
	return fmt.Sprintf("%s://%s:%s", c.Protocol, c.Host, c.Port)
}

// WebSocketConfig holds streaming backend settings.
type WebSocketConfig struct {
	URL    string `json:"url" mapstructure:"url"`
	Secret string `json:"secret" mapstructure:"secret"`
}

// StorageConfig holds storage backend selection and per-backend settings.
// Type may list several backends separated by commas.
type StorageConfig struct {
	Type       string          `json:"type" mapstructure:"type"`
	BufferSize int             `json:"bufferSize" mapstructure:"bufferSize"`
	Memory     MemoryConfig    `json:"memory" mapstructure:"memory"`
	SQLite     SQLiteConfig    `json:"sqlite" mapstructure:"sqlite"`
	Postgres   PostgresConfig  `json:"postgres" mapstructure:"postgres"`
	Influx     InfluxConfig    `json:"influx" mapstructure:"influx"`
	WebSocket  WebSocketConfig `json:"websocket" mapstructure:"websocket"`
}

// Types returns the configured backend names, trimmed and lower-cased.
func (c StorageConfig) Types() []string {
	var out []string
	for _, t := range strings.Split(c.Type, ",") {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// APIConfig holds report upload settings.
type APIConfig struct {
	ServerURL string `json:"serverUrl" mapstructure:"serverUrl"`
	APIKey    string `json:"apiKey" mapstructure:"apiKey"`
	Upload    bool   `json:"upload" mapstructure:"upload"`
}

// OTelConfig holds OpenTelemetry settings.
type OTelConfig struct {
	Enabled         bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName     string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout    time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	MetricsInterval time.Duration `json:"metricsInterval" mapstructure:"metricsInterval"`
	Endpoint        string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure        bool          `json:"insecure" mapstructure:"insecure"`
}

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"log-level":    "logLevel",
	"logs-dir":     "logsDir",
	"margin":       "gaze.margin",
	"status-file":  "gaze.statusFile",
	"subject":      "subject",
	"source":       "source.type",
	"input":        "source.path",
	"mirror":       "source.mirror",
	"device":       "source.device",
	"trigger":      "source.trigger",
	"record":       "source.record",
	"detector-url": "detector.url",
	"storage":      "storage.type",
	"output-dir":   "storage.memory.outputDir",
	"upload":       "api.upload",
	"otel":         "otel.enabled",
}

func setDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./gazelogs")
	viper.SetDefault("subject", "")

	viper.SetDefault("gaze.margin", 0.05)
	viper.SetDefault("gaze.statusFile", "")
	viper.SetDefault("gaze.statusInterval", "1s")

	viper.SetDefault("source.type", "replay")
	viper.SetDefault("source.path", "")
	viper.SetDefault("source.mirror", true)
	viper.SetDefault("source.interval", "0s")
	viper.SetDefault("source.device", 0)
	viper.SetDefault("source.width", 640)
	viper.SetDefault("source.height", 480)
	viper.SetDefault("source.trigger", "keyboard")
	viper.SetDefault("source.record", "")

	viper.SetDefault("detector.url", "")
	viper.SetDefault("detector.timeout", "2s")

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.bufferSize", 1000)
	viper.SetDefault("storage.memory.outputDir", "./reports")
	viper.SetDefault("storage.memory.compressOutput", true)
	viper.SetDefault("storage.sqlite.path", "")
	viper.SetDefault("storage.sqlite.flushInterval", "2s")
	viper.SetDefault("storage.postgres.host", "localhost")
	viper.SetDefault("storage.postgres.port", "5432")
	viper.SetDefault("storage.postgres.username", "postgres")
	viper.SetDefault("storage.postgres.password", "postgres")
	viper.SetDefault("storage.postgres.database", "gazewatch")
	viper.SetDefault("storage.postgres.sslMode", "disable")
	viper.SetDefault("storage.postgres.flushInterval", "2s")
	viper.SetDefault("storage.influx.host", "localhost")
	viper.SetDefault("storage.influx.port", "8086")
	viper.SetDefault("storage.influx.protocol", "http")
	viper.SetDefault("storage.influx.token", "supersecrettoken")
	viper.SetDefault("storage.influx.org", "gazewatch")
	viper.SetDefault("storage.influx.bucket", "gaze")
	viper.SetDefault("storage.influx.backupDir", "")
	viper.SetDefault("storage.websocket.url", "")
	viper.SetDefault("storage.websocket.secret", "")

	viper.SetDefault("api.serverUrl", "http://localhost:5000")
	viper.SetDefault("api.apiKey", "")
	viper.SetDefault("api.upload", false)

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "gazewatch")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.metricsInterval", "30s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)
}

// Load reads configuration from the JSON file in configDir and sets default
// values. Defaults are in place even when the file cannot be read.
func Load(configDir string) error {
	setDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}
	return nil
}

// ConfigFilePath returns the path of the config file that was read, if any.
func ConfigFilePath(configDir string) string {
	if used := viper.ConfigFileUsed(); used != "" {
		return used
	}
	return filepath.Join(configDir, FileName)
}

// BindFlags binds the known command-line flags present in fs to their config
// keys. Flags that were not set on the command line do not override the file.
func BindFlags(fs *pflag.FlagSet) error {
	var errs []error
	fs.VisitAll(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok {
			return
		}
		if err := viper.BindPFlag(key, f); err != nil {
			errs = append(errs, fmt.Errorf("bind flag %s: %w", f.Name, err))
		}
	})
	return errors.Join(errs...)
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetGazeConfig returns the calibration and monitoring settings.
func GetGazeConfig() GazeConfig {
	return GazeConfig{
		Margin:         viper.GetFloat64("gaze.margin"),
		StatusFile:     viper.GetString("gaze.statusFile"),
		StatusInterval: viper.GetDuration("gaze.statusInterval"),
	}
}

// GetSourceConfig returns the frame source settings.
func GetSourceConfig() SourceConfig {
	return SourceConfig{
		Type:     strings.ToLower(viper.GetString("source.type")),
		Path:     viper.GetString("source.path"),
		Mirror:   viper.GetBool("source.mirror"),
		Interval: viper.GetDuration("source.interval"),
		Device:   viper.GetInt("source.device"),
		Width:    viper.GetInt("source.width"),
		Height:   viper.GetInt("source.height"),
		Trigger:  strings.ToLower(viper.GetString("source.trigger")),
		Record:   viper.GetString("source.record"),
	}
}

// GetDetectorConfig returns the landmark sidecar settings.
func GetDetectorConfig() DetectorConfig {
	return DetectorConfig{
		URL:     viper.GetString("detector.url"),
		Timeout: viper.GetDuration("detector.timeout"),
	}
}

// GetStorageConfig returns the storage settings.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type:       viper.GetString("storage.type"),
		BufferSize: viper.GetInt("storage.bufferSize"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
		},
		SQLite: SQLiteConfig{
			Path:          viper.GetString("storage.sqlite.path"),
			FlushInterval: viper.GetDuration("storage.sqlite.flushInterval"),
		},
		Postgres: PostgresConfig{
			Host:          viper.GetString("storage.postgres.host"),
			Port:          viper.GetString("storage.postgres.port"),
			Username:      viper.GetString("storage.postgres.username"),
			Password:      viper.GetString("storage.postgres.password"),
			Database:      viper.GetString("storage.postgres.database"),
			SSLMode:       viper.GetString("storage.postgres.sslMode"),
			FlushInterval: viper.GetDuration("storage.postgres.flushInterval"),
		},
		Influx: InfluxConfig{
			Host:      viper.GetString("storage.influx.host"),
			Port:      viper.GetString("storage.influx.port"),
			Protocol:  viper.GetString("storage.influx.protocol"),
			Token:     viper.GetString("storage.influx.token"),
			Org:       viper.GetString("storage.influx.org"),
			Bucket:    viper.GetString("storage.influx.bucket"),
			BackupDir: viper.GetString("storage.influx.backupDir"),
		},
		WebSocket: WebSocketConfig{
			URL:    viper.GetString("storage.websocket.url"),
			Secret: viper.GetString("storage.websocket.secret"),
		},
	}
}

// GetAPIConfig returns the report upload settings.
func GetAPIConfig() APIConfig {
	return APIConfig{
		ServerURL: viper.GetString("api.serverUrl"),
		APIKey:    viper.GetString("api.apiKey"),
		Upload:    viper.GetBool("api.upload"),
	}
}

// GetOTelConfig returns the OpenTelemetry settings.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:         viper.GetBool("otel.enabled"),
		ServiceName:     viper.GetString("otel.serviceName"),
		BatchTimeout:    viper.GetDuration("otel.batchTimeout"),
		MetricsInterval: viper.GetDuration("otel.metricsInterval"),
		Endpoint:        viper.GetString("otel.endpoint"),
		Insecure:        viper.GetBool("otel.insecure"),
	}
}

// Validate checks the loaded configuration for values the program cannot run with.
func Validate() error {
	var errs []error

	margin := viper.GetFloat64("gaze.margin")
	if margin < 0 || math.IsNaN(margin) || math.IsInf(margin, 0) {
		errs = append(errs, fmt.Errorf("%w: gaze.margin must be a finite non-negative number, got %v", ErrInvalid, margin))
	}

	src := GetSourceConfig()
	if !slices.Contains(SourceTypes, src.Type) {
		errs = append(errs, fmt.Errorf("%w: unknown source type %q", ErrInvalid, src.Type))
	}
	if src.Type != "camera" && src.Path == "" {
		errs = append(errs, fmt.Errorf("%w: source.path is required for %s sources", ErrInvalid, src.Type))
	}
	if !slices.Contains(TriggerTypes, src.Trigger) {
		errs = append(errs, fmt.Errorf("%w: unknown trigger type %q", ErrInvalid, src.Trigger))
	}
	if src.Trigger == "recording" && src.Type != "replay" {
		errs = append(errs, fmt.Errorf("%w: recording triggers need a replay source", ErrInvalid))
	}

	for _, t := range GetStorageConfig().Types() {
		if !slices.Contains(StorageTypes, t) {
			errs = append(errs, fmt.Errorf("%w: unknown storage type %q", ErrInvalid, t))
		}
	}

	return errors.Join(errs...)
}

