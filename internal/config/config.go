package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/personaloom/internal/dataset"
	"github.com/KaramelBytes/personaloom/internal/pipeline"
)

// EnvPrefix is prepended to every key when read from the environment (PERSONALOOM_PORT, ...).
const EnvPrefix = "PERSONALOOM"

// Global configuration structure.
type Global struct {
	// HTTP server
	Host               string   `mapstructure:"host" yaml:"host"`
	Port               int      `mapstructure:"port" yaml:"port"`
	MaxUploadMB        int      `mapstructure:"max_upload_mb" yaml:"max_upload_mb"`
	CORSAllowedOrigins []string `mapstructure:"cors_allowed_origins" yaml:"cors_allowed_origins"`
	ShutdownTimeoutSec int      `mapstructure:"shutdown_timeout_sec" yaml:"shutdown_timeout_sec"`

	// Clustering
	MaxClusters        int     `mapstructure:"max_clusters" yaml:"max_clusters"`
	RandomSeed         int64   `mapstructure:"random_seed" yaml:"random_seed"`
	NInit              int     `mapstructure:"n_init" yaml:"n_init"`
	MaxIter            int     `mapstructure:"max_iter" yaml:"max_iter"`
	Tolerance          float64 `mapstructure:"tolerance" yaml:"tolerance"`
	IncludeCategorical bool    `mapstructure:"include_categorical" yaml:"include_categorical"`

	// Workbook selection
	SheetName  string `mapstructure:"sheet_name" yaml:"sheet_name"`
	SheetIndex int    `mapstructure:"sheet_index" yaml:"sheet_index"`

	// Logging
	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`
}

// Defaults returns the built-in configuration.
func Defaults() *Global {
	return &Global{
		Host:               "0.0.0.0",
		Port:               8000,
		MaxUploadMB:        32,
		CORSAllowedOrigins: []string{"*"},
		ShutdownTimeoutSec: 10,
		MaxClusters:        3,
		RandomSeed:         42,
		NInit:              10,
		MaxIter:            300,
		Tolerance:          1e-4,
		SheetIndex:         1,
		LogLevel:           "info",
		LogFormat:          "text",
	}
}

// Dir returns ~/.personaloom.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".personaloom"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.personaloom/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := Dir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: env > config file > defaults. Command flags are applied by the caller.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	d := Defaults()
	v.SetDefault("host", d.Host)
	v.SetDefault("port", d.Port)
	v.SetDefault("max_upload_mb", d.MaxUploadMB)
	v.SetDefault("cors_allowed_origins", d.CORSAllowedOrigins)
	v.SetDefault("shutdown_timeout_sec", d.ShutdownTimeoutSec)
	v.SetDefault("max_clusters", d.MaxClusters)
	v.SetDefault("random_seed", d.RandomSeed)
	v.SetDefault("n_init", d.NInit)
	v.SetDefault("max_iter", d.MaxIter)
	v.SetDefault("tolerance", d.Tolerance)
	v.SetDefault("include_categorical", d.IncludeCategorical)
	v.SetDefault("sheet_name", d.SheetName)
	v.SetDefault("sheet_index", d.SheetIndex)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", cfgFile, err)
			}
		}
	} else {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		// optional read
		_ = v.ReadInConfig()
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate rejects values the server or the clustering cannot work with.
func (c *Global) Validate() error {
	switch {
	case c.Port < 0 || c.Port > 65535:
		return fmt.Errorf("invalid port: %d", c.Port)
	case c.MaxUploadMB < 0:
		return fmt.Errorf("invalid max_upload_mb: %d", c.MaxUploadMB)
	case c.MaxClusters < 1:
		return fmt.Errorf("invalid max_clusters: %d (must be >= 1)", c.MaxClusters)
	case c.NInit < 1:
		return fmt.Errorf("invalid n_init: %d (must be >= 1)", c.NInit)
	case c.MaxIter < 1:
		return fmt.Errorf("invalid max_iter: %d (must be >= 1)", c.MaxIter)
	case c.Tolerance < 0:
		return fmt.Errorf("invalid tolerance: %v", c.Tolerance)
	case c.SheetIndex < 0:
		return fmt.Errorf("invalid sheet_index: %d", c.SheetIndex)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		return fmt.Errorf("invalid log_format: %s (use text or json)", c.LogFormat)
	}
	return nil
}

// Addr is host:port for the HTTP listener.
func (c *Global) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// MaxUploadBytes converts MaxUploadMB; 0 means unlimited.
func (c *Global) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// PipelineOptions maps the clustering and workbook settings onto a pipeline run.
func (c *Global) PipelineOptions() pipeline.Options {
	opt := pipeline.DefaultOptions()
	opt.MaxClusters = c.MaxClusters
	opt.Seed = c.RandomSeed
	opt.NInit = c.NInit
	opt.MaxIter = c.MaxIter
	opt.Tolerance = c.Tolerance
	opt.IncludeCategorical = c.IncludeCategorical
	opt.Dataset = dataset.Options{SheetName: c.SheetName, SheetIndex: c.SheetIndex}
	opt.MaxBytes = c.MaxUploadBytes()
	return opt
}

// ParseLevel maps a log_level name onto a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log_level: %s (use debug, info, warn or error)", s)
	}
	return l, nil
}

// NewLogger builds the process logger from log_level and log_format. debug forces debug level.
func (c *Global) NewLogger(w io.Writer, debug bool) *slog.Logger {
	level, err := ParseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	if debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
