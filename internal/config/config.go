// Package config loads thicket settings from defaults, an optional
// thicket.yaml and THICKET_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aretw0/thicket/pkg/domain"
	"github.com/spf13/viper"
)

// FileName is the config file base name searched for (thicket.yaml, thicket.json, ...).
const FileName = "thicket"

// Config is the resolved configuration.
type Config struct {
	Dir      string `mapstructure:"dir"`
	Workflow string `mapstructure:"workflow"`

	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`

	Resolve struct {
		MaxDepth      int    `mapstructure:"max_depth"`
		MaxExpansions int    `mapstructure:"max_expansions"`
		MaxInputSize  int    `mapstructure:"max_input_size"`
		MaxDirectives int    `mapstructure:"max_directives"`
		Separator     string `mapstructure:"separator"`
	} `mapstructure:"resolve"`

	Store struct {
		LoadConcurrency int `mapstructure:"load_concurrency"`
	} `mapstructure:"store"`

	Server struct {
		Port    int  `mapstructure:"port"`
		Metrics bool `mapstructure:"metrics"`
	} `mapstructure:"server"`

	Redis struct {
		Addr   string `mapstructure:"addr"`
		Prefix string `mapstructure:"prefix"`
	} `mapstructure:"redis"`

	Lock struct {
		TTL time.Duration `mapstructure:"ttl"`
	} `mapstructure:"lock"`
}

// SetDefaults registers the default value of every key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("dir", ".")
	v.SetDefault("workflow", string(domain.WorkflowSFW))
	v.SetDefault("log.level", "info")

	v.SetDefault("resolve.max_depth", 32)
	v.SetDefault("resolve.max_expansions", 10000)
	v.SetDefault("resolve.max_input_size", 64*1024)
	v.SetDefault("resolve.max_directives", 256)
	v.SetDefault("resolve.separator", ", ")

	v.SetDefault("store.load_concurrency", 8)

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.metrics", true)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.prefix", "thicket:")
	v.SetDefault("lock.ttl", 30*time.Second)
}

// New returns a viper instance with defaults and environment binding.
// The config file is searched in the working directory and, when given,
// in each extra path.
func New(paths ...string) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("THICKET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	v.SetConfigName(FileName)
	v.AddConfigPath(".")
	for _, p := range paths {
		if p != "" {
			v.AddConfigPath(p)
		}
	}
	return v
}

// Load reads the config file (if any) into v and decodes the result.
// An explicit file that cannot be read is an error; a missing searched file is not.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values no component can work with.
func (c *Config) Validate() error {
	if _, err := domain.ParseWorkflow(c.Workflow); err != nil {
		return err
	}
	if c.Resolve.MaxDepth < 1 {
		return fmt.Errorf("resolve.max_depth must be positive, got %d", c.Resolve.MaxDepth)
	}
	for _, limit := range []struct {
		key string
		n   int
	}{
		{"resolve.max_expansions", c.Resolve.MaxExpansions},
		{"resolve.max_input_size", c.Resolve.MaxInputSize},
		{"resolve.max_directives", c.Resolve.MaxDirectives},
	} {
		if limit.n < 1 {
			return fmt.Errorf("%s must be positive, got %d", limit.key, limit.n)
		}
	}
	if c.Store.LoadConcurrency < 1 {
		return fmt.Errorf("store.load_concurrency must be positive, got %d", c.Store.LoadConcurrency)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	return nil
}

// WorkflowValue returns the parsed workflow. Validate has already accepted it.
func (c *Config) WorkflowValue() domain.Workflow {
	w, _ := domain.ParseWorkflow(c.Workflow)
	return w
}
