package process

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/aretw0/thicket/pkg/ports"
)

// ErrNotRegistered is returned for generators missing from the allow-list.
var ErrNotRegistered = errors.New("generator not registered")

// Runner executes local processes as text generators.
// It follows a Strict Registry pattern for security (Allow-Listing).
type Runner struct {
	registry map[string]GeneratorConfig
	baseDir  string
}

// RunnerOption configures the runner.
type RunnerOption func(*Runner)

// WithRegistry populates the allow-list from a loaded config.
func WithRegistry(generators map[string]GeneratorConfig) RunnerOption {
	return func(r *Runner) {
		for name, g := range generators {
			g.Name = name
			r.registry[name] = g
		}
	}
}

// WithBaseDir sets the working directory for executed processes.
func WithBaseDir(dir string) RunnerOption {
	return func(r *Runner) {
		r.baseDir = dir
	}
}

// NewRunner creates a new process Runner.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		registry: make(map[string]GeneratorConfig),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a trusted command to the allow-list.
func (r *Runner) Register(name string, command string, args ...string) {
	r.registry[name] = GeneratorConfig{Name: name, Command: command, Args: args}
}

// Names lists the registered generators.
func (r *Runner) Names() []string {
	out := make([]string, 0, len(r.registry))
	for name := range r.registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Generator binds a registered command to a set of arguments.
func (r *Runner) Generator(name string, args map[string]any) (ports.Generator, error) {
	cfg, ok := r.registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, name)
	}
	return &Generator{config: cfg, args: args, baseDir: r.baseDir}, nil
}

// Generator runs one allow-listed command per request.
type Generator struct {
	config  GeneratorConfig
	args    map[string]any
	baseDir string
}

var argKey = regexp.MustCompile(`[^A-Z0-9_]`)

// Generate writes the prompt to the process stdin and returns its stdout.
//
// Arguments are never appended to the command line. They are passed as
// THICKET_ARG_<KEY> environment variables, which rules out flag injection.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	cmd := exec.CommandContext(ctx, g.config.Command, g.config.Args...)
	cmd.Dir = g.baseDir
	cmd.Stdin = strings.NewReader(prompt)
	// Stop waiting on inherited pipes shortly after the context kills the process.
	cmd.WaitDelay = time.Second

	env := []string{"THICKET_GENERATOR=" + g.config.Name}
	for k, v := range g.config.Environment {
		env = append(env, k+"="+v)
	}
	for k, v := range g.args {
		key := argKey.ReplaceAllString(strings.ToUpper(k), "_")
		env = append(env, fmt.Sprintf("THICKET_ARG_%s=%s", key, formatArg(v)))
	}
	cmd.Env = append(cmd.Environ(), env...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("generator %s: %w", g.config.Name, ctx.Err())
		}
		return "", fmt.Errorf("generator %s failed: %w. Stderr: %s", g.config.Name, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

// formatArg renders primitives with fmt and everything else as JSON.
func formatArg(v any) string {
	switch v.(type) {
	case string, int, int64, float64, bool:
		return fmt.Sprintf("%v", v)
	case nil:
		return ""
	}
	if data, err := json.Marshal(v); err == nil {
		return string(data)
	}
	return fmt.Sprintf("%v", v)
}
