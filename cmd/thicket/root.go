package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/thicket/internal/cli"
	"github.com/spf13/cobra"
)

// errFailed reports a failure the command has already printed.
var errFailed = errors.New("command failed")

var globals cli.Options

var rootCmd = &cobra.Command{
	Use:   "thicket",
	Short: "Thicket resolves wildcard prompt templates",
	Long: `Thicket expands __wildcard__ directives in prompt templates from a library
of weighted choices, checks the library for broken references and cycles, and
refactors it safely.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// The command context is cancelled on SIGINT or SIGTERM.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		if !errors.Is(err, errFailed) {
			cli.PrintError(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	f := rootCmd.PersistentFlags()
	f.StringVar(&globals.Dir, "dir", "", `Data directory holding wildcards/ and templates/ (default ".")`)
	f.StringVar(&globals.ConfigFile, "config", "", "Config file (default thicket.yaml in the working or data directory)")
	f.StringVarP(&globals.Workflow, "workflow", "w", "", "Workflow to use: sfw or nsfw")
	f.StringVar(&globals.LogLevel, "log-level", "", "Log level: debug, info, warn or error")
	f.BoolVar(&globals.JSON, "json", false, "Print JSON instead of formatted text")
}

// openApp builds the application for cmd from the global flags.
func openApp(cmd *cobra.Command) (*cli.App, error) {
	opts := globals
	opts.Out = cmd.OutOrStdout()
	opts.Err = cmd.ErrOrStderr()
	return cli.NewApp(opts)
}
