// Package config loads client and CLI settings from a YAML file, the
// environment and .env files.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/satishbabariya/commerce-client/query/dialect"
	"github.com/satishbabariya/commerce-client/schema"
)

// EnvPrefix prefixes environment overrides, e.g. COMMERCE_QUERY_TIMEOUT.
const EnvPrefix = "COMMERCE"

// FileName is the config file name without extension.
const FileName = ".commerce-client"

// Config holds the resolved settings.
type Config struct {
	Provider           string
	DatabaseURL        string
	SchemaPath         string
	MaxConnections     int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
	QueryTimeout       time.Duration
	LogQueries         bool
	LogEnv             string
	Transaction        TransactionConfig
	Cache              CacheConfig
	Metrics            MetricsConfig
}

// TransactionConfig holds transaction defaults.
type TransactionConfig struct {
	MaxWait        time.Duration
	Timeout        time.Duration
	IsolationLevel string
}

// CacheConfig selects the read cache.
type CacheConfig struct {
	Enabled    bool
	Backend    string
	RedisURL   string
	TTL        time.Duration
	MaxEntries int
}

// MetricsConfig configures the Prometheus collectors.
type MetricsConfig struct {
	Namespace string
}

var keys = []string{
	"provider", "database_url", "schema_path",
	"max_connections", "max_idle_connections", "conn_max_lifetime", "query_timeout",
	"log_queries", "log_env",
	"transaction.max_wait", "transaction.timeout", "transaction.isolation_level",
	"cache.enabled", "cache.backend", "cache.redis_url", "cache.ttl", "cache.max_entries",
	"metrics.namespace",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("provider", schema.Embedded().Datasource.Provider)
	v.SetDefault("schema_path", "")
	v.SetDefault("max_connections", 10)
	v.SetDefault("max_idle_connections", 5)
	v.SetDefault("conn_max_lifetime", time.Hour)
	v.SetDefault("query_timeout", 30*time.Second)
	v.SetDefault("log_queries", false)
	v.SetDefault("log_env", "development")
	v.SetDefault("transaction.max_wait", 2*time.Second)
	v.SetDefault("transaction.timeout", 5*time.Second)
	v.SetDefault("transaction.isolation_level", "")
	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.redis_url", "redis://localhost:6379/0")
	v.SetDefault("cache.ttl", time.Minute)
	v.SetDefault("cache.max_entries", 1000)
	v.SetDefault("metrics.namespace", "commerce")
}

// EnvName returns the environment variable overriding key.
func EnvName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// Load resolves the configuration. Sources, lowest precedence first:
// defaults, the config file (searched in dir, $HOME and
// $HOME/.config/commerce-client), .env, .env.local, the process
// environment. DATABASE_URL is honoured when COMMERCE_DATABASE_URL is unset.
func Load(fs afero.Fs, dir string) (*Config, error) {
	v := viper.New()
	v.SetFs(fs)
	setDefaults(v)

	v.SetConfigName(FileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)
	if home, err := homedir.Dir(); err == nil {
		v.AddConfigPath(home)
		v.AddConfigPath(filepath.Join(home, ".config", "commerce-client"))
	}
	if err := v.ReadInConfig(); err != nil {
		if _, missing := err.(viper.ConfigFileNotFoundError); !missing {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	dotenv, err := readDotenv(fs, dir)
	if err != nil {
		return nil, err
	}
	lookup := func(name string) (string, bool) {
		if val, ok := os.LookupEnv(name); ok {
			return val, true
		}
		val, ok := dotenv[name]
		return val, ok
	}
	for _, key := range keys {
		if val, ok := lookup(EnvName(key)); ok {
			v.Set(key, val)
		}
	}
	if _, ok := lookup(EnvName("database_url")); !ok {
		if val, ok := lookup("DATABASE_URL"); ok {
			v.Set("database_url", val)
		}
	}

	cfg := &Config{
		Provider:           v.GetString("provider"),
		DatabaseURL:        v.GetString("database_url"),
		SchemaPath:         v.GetString("schema_path"),
		MaxConnections:     v.GetInt("max_connections"),
		MaxIdleConnections: v.GetInt("max_idle_connections"),
		ConnMaxLifetime:    v.GetDuration("conn_max_lifetime"),
		QueryTimeout:       v.GetDuration("query_timeout"),
		LogQueries:         v.GetBool("log_queries"),
		LogEnv:             v.GetString("log_env"),
		Transaction: TransactionConfig{
			MaxWait:        v.GetDuration("transaction.max_wait"),
			Timeout:        v.GetDuration("transaction.timeout"),
			IsolationLevel: v.GetString("transaction.isolation_level"),
		},
		Cache: CacheConfig{
			Enabled:    v.GetBool("cache.enabled"),
			Backend:    v.GetString("cache.backend"),
			RedisURL:   v.GetString("cache.redis_url"),
			TTL:        v.GetDuration("cache.ttl"),
			MaxEntries: v.GetInt("cache.max_entries"),
		},
		Metrics: MetricsConfig{Namespace: v.GetString("metrics.namespace")},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// readDotenv parses .env and then .env.local from dir, the latter winning.
func readDotenv(fs afero.Fs, dir string) (map[string]string, error) {
	out := make(map[string]string)
	for _, name := range []string{".env", ".env.local"} {
		f, err := fs.Open(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		vals, err := godotenv.Parse(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", name, err)
		}
		for k, val := range vals {
			out[k] = val
		}
	}
	return out, nil
}

// Validate checks the settings that do not need a connection.
func (c *Config) Validate() error {
	if _, err := dialect.Lookup(c.Provider); err != nil {
		return err
	}
	if c.MaxConnections < 0 || c.MaxIdleConnections < 0 {
		return fmt.Errorf("connection limits must not be negative")
	}
	if c.QueryTimeout < 0 || c.Transaction.MaxWait < 0 || c.Transaction.Timeout < 0 || c.Cache.TTL < 0 {
		return fmt.Errorf("durations must not be negative")
	}
	switch c.Cache.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown cache backend %q, expected memory or redis", c.Cache.Backend)
	}
	if c.Cache.Enabled && c.Cache.Backend == "redis" && c.Cache.RedisURL == "" {
		return fmt.Errorf("cache.redis_url is required for the redis cache backend")
	}
	return nil
}
