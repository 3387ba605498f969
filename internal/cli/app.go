// Package cli holds the wiring shared by the thicket commands: configuration,
// logging, engine construction and output.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aretw0/thicket"
	"github.com/aretw0/thicket/internal/config"
	"github.com/aretw0/thicket/internal/logging"
	"github.com/aretw0/thicket/internal/presentation/tui"
	redisAdapter "github.com/aretw0/thicket/pkg/adapters/redis"
	"github.com/aretw0/thicket/pkg/domain"
	goredis "github.com/redis/go-redis/v9"
)

// Options are the global command line settings. Empty fields keep the value
// from the config file or the environment.
type Options struct {
	Dir        string
	ConfigFile string
	Workflow   string
	LogLevel   string
	JSON       bool

	Out io.Writer
	Err io.Writer
}

// App bundles what a command needs to run.
type App struct {
	Config *config.Config
	Logger *slog.Logger
	Engine *thicket.Engine
	Out    io.Writer
	JSON   bool

	redis *goredis.Client
}

// LoadConfig resolves the configuration and applies the flag overrides.
func LoadConfig(opts Options) (*config.Config, error) {
	cfg, err := config.Load(config.New(opts.Dir), opts.ConfigFile)
	if err != nil {
		return nil, err
	}
	if opts.Dir != "" {
		cfg.Dir = opts.Dir
	}
	if opts.Workflow != "" {
		cfg.Workflow = opts.Workflow
	}
	if opts.LogLevel != "" {
		cfg.Log.Level = opts.LogLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NewApp loads the configuration and builds the engine it describes.
func NewApp(opts Options) (*App, error) {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Err == nil {
		opts.Err = os.Stderr
	}

	cfg, err := LoadConfig(opts)
	if err != nil {
		return nil, err
	}
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	logger := logging.NewWriter(opts.Err, level)

	app := &App{Config: cfg, Logger: logger, Out: opts.Out, JSON: opts.JSON}

	engineOpts := []thicket.Option{
		thicket.WithLogger(logger),
		thicket.WithMaxDepth(cfg.Resolve.MaxDepth),
		thicket.WithMaxExpansions(cfg.Resolve.MaxExpansions),
		thicket.WithInputLimits(cfg.Resolve.MaxInputSize, cfg.Resolve.MaxDirectives),
		thicket.WithSeparator(cfg.Resolve.Separator),
		thicket.WithLoadConcurrency(cfg.Store.LoadConcurrency),
	}
	if cfg.Redis.Addr != "" {
		app.redis = goredis.NewClient(&goredis.Options{Addr: cfg.Redis.Addr})
		locker := redisAdapter.NewLocker(app.redis, cfg.Redis.Prefix)
		engineOpts = append(engineOpts, thicket.WithLocker(locker, cfg.Lock.TTL))
		logger.Debug("distributed locking enabled", "addr", cfg.Redis.Addr)
	}

	engine, err := thicket.New(cfg.Dir, engineOpts...)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("error initializing engine: %w", err)
	}
	app.Engine = engine
	return app, nil
}

// Workflow returns the configured workflow.
func (a *App) Workflow() domain.Workflow {
	return a.Config.WorkflowValue()
}

// Render prints Markdown, styled when the output is a terminal.
func (a *App) Render(markdown string) error {
	out, err := tui.NewRenderer(a.Out)(markdown)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(a.Out, out)
	return err
}

// PrintJSON writes v as indented JSON.
func (a *App) PrintJSON(v any) error {
	enc := json.NewEncoder(a.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Show prints v as JSON in JSON mode and as Markdown otherwise.
func (a *App) Show(v any, markdown func() string) error {
	if a.JSON {
		return a.PrintJSON(v)
	}
	return a.Render(markdown())
}

// Close releases the Redis connection, if any.
func (a *App) Close() error {
	if a.redis != nil {
		return a.redis.Close()
	}
	return nil
}
