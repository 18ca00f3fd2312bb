package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Generate GenerateConfig `yaml:"generate" mapstructure:"generate"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Train    TrainConfig    `yaml:"train" mapstructure:"train"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// GenerateConfig configures a synthesis run.
type GenerateConfig struct {
	Tutors               int    `yaml:"tutors" mapstructure:"tutors"`
	Days                 int    `yaml:"days" mapstructure:"days"`
	SessionsPerDay       int    `yaml:"sessions_per_day" mapstructure:"sessions_per_day"`
	Seed                 int64  `yaml:"seed" mapstructure:"seed"`
	OutputDir            string `yaml:"output_dir" mapstructure:"output_dir"`
	IncludeEvents        bool   `yaml:"include_events" mapstructure:"include_events"`
	IncludeExperiments   bool   `yaml:"include_experiments" mapstructure:"include_experiments"`
	IncludeInterventions bool   `yaml:"include_interventions" mapstructure:"include_interventions"`
	Persist              bool   `yaml:"persist" mapstructure:"persist"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// TrainConfig configures the churn-model training command.
type TrainConfig struct {
	OutputDir string `yaml:"output_dir" mapstructure:"output_dir"`
}

// ServerConfig configures the summary HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures the global zap logger.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads config.yaml from the working directory, applies TUTORSIM_*
// environment overrides, fills defaults, and validates the generation
// parameters before any run starts.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("TUTORSIM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("generate.tutors", 150)
	v.SetDefault("generate.days", 30)
	v.SetDefault("generate.sessions_per_day", 750)
	v.SetDefault("generate.seed", 42)
	v.SetDefault("generate.output_dir", "data")
	v.SetDefault("generate.include_events", true)
	v.SetDefault("generate.include_experiments", true)
	v.SetDefault("generate.include_interventions", true)
	v.SetDefault("generate.persist", false)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "tutorsim.db")
	v.SetDefault("train.output_dir", "data")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !eris.As(err, &notFound) {
			return nil, eris.Wrap(err, "config: read config file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects invalid counts and ranges up front.
func (c *Config) Validate() error {
	g := c.Generate
	if g.Tutors < 1 {
		return eris.Errorf("config: generate.tutors must be >= 1, got %d", g.Tutors)
	}
	if g.Days < 1 {
		return eris.Errorf("config: generate.days must be >= 1, got %d", g.Days)
	}
	if g.SessionsPerDay < 1 {
		return eris.Errorf("config: generate.sessions_per_day must be >= 1, got %d", g.SessionsPerDay)
	}
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		return eris.Errorf("config: store.driver must be sqlite or postgres, got %q", c.Store.Driver)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return eris.Errorf("config: server.port out of range: %d", c.Server.Port)
	}
	return nil
}

// InitLogger initializes the global zap logger.
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
	zap.ReplaceGlobals(logger)

	return nil
}
