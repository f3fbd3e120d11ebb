// Package config loads and validates snapshot settings via Viper.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/weekly-snapshots/internal/logging"
)

// reportFile is the report name inside the latest folder.
const reportFile = "report.json"

// Pool size bounds for concurrent captures.
const (
	MinWorkers = 1
	MaxWorkers = 3
)

// Config captures all settings loaded via Viper.
type Config struct {
	Logging  logging.Config `mapstructure:"logging"`
	URLsFile string         `mapstructure:"urls_file"`
	Output   OutputConfig   `mapstructure:"output"`
	Capture  CaptureConfig  `mapstructure:"capture"`
	Storage  StorageConfig  `mapstructure:"storage"`
	DB       DBConfig       `mapstructure:"db"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Readme   ReadmeConfig   `mapstructure:"readme"`
}

// OutputConfig locates the archive tree.
type OutputConfig struct {
	BaseDir    string `mapstructure:"base_dir"`
	LatestDir  string `mapstructure:"latest_dir"`
	WeekPrefix string `mapstructure:"week_prefix"`
}

// CaptureConfig controls the external capture tool and the worker pool.
type CaptureConfig struct {
	Tool           string `mapstructure:"tool"`
	BrowserPath    string `mapstructure:"browser_path"`
	BrowserArgs    string `mapstructure:"browser_args"`
	WaitMs         int    `mapstructure:"wait_ms"`
	MaxResourceMB  int    `mapstructure:"max_resource_mb"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	MinBytes       int64  `mapstructure:"min_bytes"`
	MaxWorkers     int    `mapstructure:"max_workers"`
}

// StorageConfig enables the optional GCS mirror.
type StorageConfig struct {
	GCSBucket      string `mapstructure:"gcs_bucket"`
	Prefix         string `mapstructure:"prefix"`
	MirrorArchives bool   `mapstructure:"mirror_archives"`
}

// DBConfig enables run history in Postgres.
type DBConfig struct {
	DSN   string `mapstructure:"dsn"`
	Table string `mapstructure:"table"`
}

// PubSubConfig holds metadata for run notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// MetricsConfig controls the Prometheus textfile export and event logging.
type MetricsConfig struct {
	Textfile  string `mapstructure:"textfile"`
	LogEvents bool   `mapstructure:"log_events"`
}

// ReadmeConfig locates the document rewritten by the readme command.
type ReadmeConfig struct {
	Path       string `mapstructure:"path"`
	ReportPath string `mapstructure:"report_path"`
}

// New returns a Viper instance with env bindings and defaults applied.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("SNAPSHOTS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	return LoadFrom(New(), path)
}

// LoadFrom reads the optional file at path into v and decodes the result. Flags
// bound to v before the call take precedence over file values.
func LoadFrom(v *viper.Viper, path string) (Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if strings.TrimSpace(cfg.Readme.ReportPath) == "" {
		cfg.Readme.ReportPath = filepath.Join(cfg.Output.BaseDir, cfg.Output.LatestDir, reportFile)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("urls_file", "config/urls.json")
	v.SetDefault("output.base_dir", "capturas")
	v.SetDefault("output.latest_dir", "latest")
	v.SetDefault("output.week_prefix", "semana_")
	v.SetDefault("capture.tool", "single-file")
	v.SetDefault("capture.browser_path", "/usr/bin/google-chrome")
	v.SetDefault("capture.browser_args",
		"--no-sandbox --disable-dev-shm-usage --headless --disable-gpu --disable-extensions")
	v.SetDefault("capture.wait_ms", 3000)
	v.SetDefault("capture.max_resource_mb", 25)
	v.SetDefault("capture.timeout_seconds", 90)
	v.SetDefault("capture.min_bytes", 2000)
	v.SetDefault("capture.max_workers", 2)
	v.SetDefault("storage.gcs_bucket", "")
	v.SetDefault("storage.prefix", "snapshots")
	v.SetDefault("storage.mirror_archives", false)
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.table", "snapshot_runs")
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
	v.SetDefault("metrics.textfile", "")
	v.SetDefault("metrics.log_events", false)
	v.SetDefault("readme.path", "README.md")
	// Empty means <output.base_dir>/<output.latest_dir>/report.json.
	v.SetDefault("readme.report_path", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if strings.TrimSpace(c.URLsFile) == "" {
		return fmt.Errorf("urls_file is required")
	}
	if strings.TrimSpace(c.Output.BaseDir) == "" {
		return fmt.Errorf("output.base_dir is required")
	}
	if strings.TrimSpace(c.Output.LatestDir) == "" || strings.ContainsAny(c.Output.LatestDir, `/\`) {
		return fmt.Errorf("output.latest_dir must be a plain folder name")
	}
	if strings.TrimSpace(c.Capture.Tool) == "" {
		return fmt.Errorf("capture.tool is required")
	}
	if c.Capture.MaxWorkers < MinWorkers || c.Capture.MaxWorkers > MaxWorkers {
		return fmt.Errorf("capture.max_workers must be between %d and %d", MinWorkers, MaxWorkers)
	}
	if c.Capture.TimeoutSeconds <= 0 {
		return fmt.Errorf("capture.timeout_seconds must be > 0")
	}
	if c.Capture.MinBytes <= 0 {
		return fmt.Errorf("capture.min_bytes must be > 0")
	}
	if c.Capture.WaitMs < 0 || c.Capture.MaxResourceMB < 0 {
		return fmt.Errorf("capture.wait_ms and capture.max_resource_mb must be >= 0")
	}
	if (c.PubSub.ProjectID == "") != (c.PubSub.TopicName == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic_name must be set together")
	}
	return nil
}

// CaptureTimeout converts the capture timeout into a duration.
func (c Config) CaptureTimeout() time.Duration {
	return time.Duration(c.Capture.TimeoutSeconds) * time.Second
}
