// Package config loads entity-xref configuration from config.yaml and XREF_*
// environment variables and initializes the global logger.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config holds the full application configuration.
type Config struct {
	Workspace  WorkspaceConfig  `yaml:"workspace" mapstructure:"workspace"`
	Resolve    ResolveConfig    `yaml:"resolve" mapstructure:"resolve"`
	Scoring    ScoringConfig    `yaml:"scoring" mapstructure:"scoring"`
	Blocking   BlockingConfig   `yaml:"blocking" mapstructure:"blocking"`
	Xref       XrefConfig       `yaml:"xref" mapstructure:"xref"`
	Confidence ConfidenceConfig `yaml:"confidence" mapstructure:"confidence"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Fetch      FetchConfig      `yaml:"fetch" mapstructure:"fetch"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// WorkspaceConfig locates the investigation workspace.
type WorkspaceConfig struct {
	Dir          string `yaml:"dir" mapstructure:"dir" validate:"required"`
	Manifest     string `yaml:"manifest" mapstructure:"manifest" validate:"required"`
	ArtifactsDir string `yaml:"artifacts_dir" mapstructure:"artifacts_dir" validate:"required"`
	DatasetsDir  string `yaml:"datasets_dir" mapstructure:"datasets_dir" validate:"required"`
}

// ManifestPath returns the manifest path resolved against the workspace.
func (w WorkspaceConfig) ManifestPath() string { return w.resolve(w.Manifest) }

// ArtifactsPath returns the artifacts directory resolved against the workspace.
func (w WorkspaceConfig) ArtifactsPath() string { return w.resolve(w.ArtifactsDir) }

// DatasetsPath returns the datasets directory resolved against the workspace.
func (w WorkspaceConfig) DatasetsPath() string { return w.resolve(w.DatasetsDir) }

func (w WorkspaceConfig) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(w.Dir, p)
}

// ResolveConfig configures entity resolution thresholds and clustering.
type ResolveConfig struct {
	SimilarityThreshold      float64           `yaml:"similarity_threshold" mapstructure:"similarity_threshold" validate:"min=0,max=1"`
	WideNetThreshold         float64           `yaml:"wide_net_threshold" mapstructure:"wide_net_threshold" validate:"min=0,max=1"`
	DiscardThreshold         float64           `yaml:"discard_threshold" mapstructure:"discard_threshold" validate:"min=0,max=1"`
	MergeThreshold           float64           `yaml:"merge_threshold" mapstructure:"merge_threshold" validate:"min=0,max=1"`
	GatePolicy               string            `yaml:"gate_policy" mapstructure:"gate_policy" validate:"oneof=all representative"`
	Workers                  int               `yaml:"workers" mapstructure:"workers" validate:"min=1,max=64"`
	NameColumns              map[string]string `yaml:"name_columns" mapstructure:"name_columns"`
	RegisteredAgentAddresses []string          `yaml:"registered_agent_addresses" mapstructure:"registered_agent_addresses"`
}

// ScoringConfig holds the signal weights of the pair scorer.
type ScoringConfig struct {
	HardID            float64 `yaml:"hard_id" mapstructure:"hard_id" validate:"min=0"`
	Contact           float64 `yaml:"contact" mapstructure:"contact" validate:"min=0"`
	Name              float64 `yaml:"name" mapstructure:"name" validate:"min=0"`
	Address           float64 `yaml:"address" mapstructure:"address" validate:"min=0"`
	State             float64 `yaml:"state" mapstructure:"state" validate:"min=0"`
	SuffixPenalty     float64 `yaml:"suffix_penalty" mapstructure:"suffix_penalty" validate:"min=0"`
	NameFloor         float64 `yaml:"name_floor" mapstructure:"name_floor" validate:"min=0,max=1"`
	DisqualifiedScore float64 `yaml:"disqualified_score" mapstructure:"disqualified_score" validate:"max=0"`
}

// BlockingConfig configures candidate-pair generation.
type BlockingConfig struct {
	PrefixLen    int      `yaml:"prefix_len" mapstructure:"prefix_len" validate:"min=1"`
	Window       int      `yaml:"window" mapstructure:"window" validate:"min=2"`
	MaxBlockSize int      `yaml:"max_block_size" mapstructure:"max_block_size" validate:"min=2"`
	StopTokens   []string `yaml:"stop_tokens" mapstructure:"stop_tokens"`
}

// XrefConfig configures cross-dataset linkage.
type XrefConfig struct {
	MinDatasets int      `yaml:"min_datasets" mapstructure:"min_datasets" validate:"min=2"`
	Datasets    []string `yaml:"datasets" mapstructure:"datasets"`
}

// ConfidenceConfig configures tier assignment.
type ConfidenceConfig struct {
	DryRun bool `yaml:"dry_run" mapstructure:"dry_run"`
}

// StoreConfig configures the run ledger backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver" validate:"oneof=sqlite postgres none"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// FetchConfig configures the dataset fetch adapter.
type FetchConfig struct {
	UserAgent   string             `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int                `yaml:"timeout_secs" mapstructure:"timeout_secs" validate:"min=1"`
	MaxRetries  int                `yaml:"max_retries" mapstructure:"max_retries" validate:"min=0"`
	RateLimits  map[string]float64 `yaml:"rate_limits" mapstructure:"rate_limits"`
}

// ServerConfig configures the read-only API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level      string `yaml:"level" mapstructure:"level"`
	Format     string `yaml:"format" mapstructure:"format"`
	File       string `yaml:"file" mapstructure:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" mapstructure:"max_age_days"`
}

// DefaultStopTokens are tokens too common to be useful as a blocking key.
var DefaultStopTokens = []string{
	"and", "of", "the", "for", "inc", "llc", "co", "corp", "company", "group",
	"holdings", "services", "international", "national", "american", "association",
	"committee", "trust", "fund", "partners", "management",
}

// Load reads configuration from file and environment. config.yaml is looked
// up in the working directory and then in XREF_WORKSPACE_DIR when set.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if ws := os.Getenv("XREF_WORKSPACE_DIR"); ws != "" {
		v.AddConfigPath(ws)
	}

	// Environment
	v.SetEnvPrefix("XREF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("workspace.dir", ".")
	v.SetDefault("workspace.manifest", "investigation.yaml")
	v.SetDefault("workspace.artifacts_dir", "artifacts")
	v.SetDefault("workspace.datasets_dir", "datasets")
	v.SetDefault("resolve.similarity_threshold", 0.85)
	v.SetDefault("resolve.wide_net_threshold", 0.70)
	v.SetDefault("resolve.discard_threshold", 0.55)
	v.SetDefault("resolve.merge_threshold", 0.70)
	v.SetDefault("resolve.gate_policy", "all")
	v.SetDefault("resolve.workers", 4)
	v.SetDefault("scoring.hard_id", 1.0)
	v.SetDefault("scoring.contact", 0.8)
	v.SetDefault("scoring.name", 0.8)
	v.SetDefault("scoring.address", 0.10)
	v.SetDefault("scoring.state", 0.05)
	v.SetDefault("scoring.suffix_penalty", 0.05)
	v.SetDefault("scoring.name_floor", 0.5)
	v.SetDefault("scoring.disqualified_score", -1.0)
	v.SetDefault("blocking.prefix_len", 3)
	v.SetDefault("blocking.window", 5)
	v.SetDefault("blocking.max_block_size", 500)
	v.SetDefault("blocking.stop_tokens", DefaultStopTokens)
	v.SetDefault("xref.min_datasets", 2)
	v.SetDefault("confidence.dry_run", false)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("fetch.user_agent", "entity-xref/1.0")
	v.SetDefault("fetch.timeout_secs", 120)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger. When cfg.File is set, log
// lines are also written to a size-rotated file.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}

	if cfg.File != "" {
		sink := zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		})
		fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), sink, zapCfg.Level)
		logger = logger.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
			return zapcore.NewTee(c, fileCore)
		}))
	}
	zap.ReplaceGlobals(logger)

	return nil
}
