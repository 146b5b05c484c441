// Package config loads acd-server settings from defaults, an optional YAML
// file, ACD_* environment variables and command-line flags, in increasing
// order of precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/vehicle-quality/acd-registry/pkg/cache"
	"github.com/vehicle-quality/acd-registry/pkg/db"
	"github.com/vehicle-quality/acd-registry/pkg/logging"
)

// EnvPrefix is prepended to every environment variable, so db.dsn is read
// from ACD_DB_DSN.
const EnvPrefix = "ACD"

type Config struct {
	Server    ServerConfig      `mapstructure:"server"`
	DB        db.Config         `mapstructure:"db"`
	Cache     cache.CacheConfig `mapstructure:"cache"`
	Lifecycle LifecycleConfig   `mapstructure:"lifecycle"`
	Log       logging.Config    `mapstructure:"log"`
	Seed      SeedConfig        `mapstructure:"seed"`
}

type ServerConfig struct {
	Listen          string        `mapstructure:"listen"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LifecycleConfig struct {
	// StrictTransitions rejects status moves outside the lifecycle graph.
	StrictTransitions bool `mapstructure:"strict_transitions"`
}

type SeedConfig struct {
	// Enabled loads the demo projects into an empty database at start-up.
	Enabled bool `mapstructure:"enabled"`
}

// flagKeys maps flag names to configuration keys.
var flagKeys = map[string]string{
	"listen":             "server.listen",
	"cors-origins":       "server.cors_origins",
	"db-type":            "db.type",
	"db-dsn":             "db.dsn",
	"log-level":          "log.level",
	"log-format":         "log.format",
	"strict-transitions": "lifecycle.strict_transitions",
	"seed":               "seed.enabled",
	"cache":              "cache.enabled",
}

// RegisterFlags adds the server flags to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("config", "", "Path to a YAML config file")
	fs.String("listen", d.Server.Listen, "Address to listen on")
	fs.StringSlice("cors-origins", d.Server.CORSOrigins, "Allowed CORS origins")
	fs.String("db-type", d.DB.Type, "Database type (sqlite, postgres or mysql)")
	fs.String("db-dsn", d.DB.DSN, "Database connection string")
	fs.String("log-level", d.Log.Level, "Log level (debug, info, warn, error)")
	fs.String("log-format", d.Log.Format, "Log format (text or json)")
	fs.Bool("strict-transitions", d.Lifecycle.StrictTransitions, "Reject status changes outside the lifecycle graph")
	fs.Bool("seed", d.Seed.Enabled, "Load the demo dataset into an empty database")
	fs.Bool("cache", d.Cache.Enabled, "Cache list and audit responses")
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Listen:          ":8080",
			CORSOrigins:     []string{"*"},
			ShutdownTimeout: 30 * time.Second,
		},
		DB:    db.DefaultConfig(),
		Cache: *cache.DefaultCacheConfig(),
		Log: logging.Config{
			Level:  "info",
			Format: "text",
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("server.listen", d.Server.Listen)
	v.SetDefault("server.cors_origins", d.Server.CORSOrigins)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("db.type", d.DB.Type)
	v.SetDefault("db.dsn", d.DB.DSN)
	v.SetDefault("db.max_open_conns", d.DB.MaxOpenConns)
	v.SetDefault("db.max_idle_time", d.DB.MaxIdleTime)
	v.SetDefault("db.log_level", d.DB.LogLevel)
	v.SetDefault("cache.enabled", d.Cache.Enabled)
	v.SetDefault("cache.projects_ttl", d.Cache.ProjectsTTL)
	v.SetDefault("cache.audit_ttl", d.Cache.AuditTTL)
	v.SetDefault("cache.max_size", d.Cache.MaxSize)
	v.SetDefault("lifecycle.strict_transitions", d.Lifecycle.StrictTransitions)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("seed.enabled", d.Seed.Enabled)
}

// Load resolves the configuration. fs may be nil; when it carries a
// non-empty --config flag that file is read as YAML.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path := ""
	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
		if f := fs.Lookup("config"); f != nil {
			path = f.Value.String()
		}
	}
	if path == "" {
		path = v.GetString("config")
	}
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Listen) == "" {
		return fmt.Errorf("server.listen must not be empty")
	}
	switch strings.ToLower(c.DB.Type) {
	case db.TypeSQLite, db.TypePostgres, db.TypeMySQL:
	default:
		return fmt.Errorf("db.type %q is not one of sqlite, postgres, mysql", c.DB.Type)
	}
	if c.DB.DSN == "" {
		return fmt.Errorf("db.dsn must not be empty")
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format %q is not one of text, json", c.Log.Format)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if c.Cache.Enabled && c.Cache.MaxSize <= 0 {
		return fmt.Errorf("cache.max_size must be positive when the cache is enabled")
	}
	return nil
}
