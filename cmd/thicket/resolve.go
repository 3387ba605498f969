package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aretw0/thicket"
	"github.com/aretw0/thicket/internal/presentation/tui"
	"github.com/aretw0/thicket/pkg/domain"
	"github.com/spf13/cobra"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve [template]",
	Short: "Expand a template into a prompt",
	Long: `Resolves a stored template, the text given with --text, or the text read
from standard input. Previous bindings can be kept with --existing (a JSON
result of an earlier run) while --reroll draws the named wildcards again.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		req, err := resolveRequest(cmd, args)
		if err != nil {
			return err
		}
		// A stored template keeps its own workflow unless one is asked for.
		if req.Template == "" || cmd.Flags().Changed("workflow") {
			req.Workflow = app.Workflow()
		}

		res, err := app.Engine.Resolve(cmd.Context(), req)
		if err != nil {
			return err
		}
		app.Logger.Debug("resolved", "id", res.ID, "seed", res.Seed, "problems", len(res.Problems))

		if plain, _ := cmd.Flags().GetBool("plain"); plain && !app.JSON {
			_, err := fmt.Fprintln(app.Out, res.Text)
			return err
		}
		return app.Show(res, func() string { return tui.ResolutionMarkdown(res) })
	},
}

func resolveRequest(cmd *cobra.Command, args []string) (thicket.ResolveRequest, error) {
	flags := cmd.Flags()
	var req thicket.ResolveRequest

	req.Text, _ = flags.GetString("text")
	if len(args) > 0 {
		req.Template = args[0]
	}
	if req.Text == "" && req.Template == "" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return req, fmt.Errorf("failed to read template from stdin: %w", err)
		}
		req.Text = strings.TrimRight(string(data), "\n")
		if req.Text == "" {
			return req, fmt.Errorf("nothing to resolve: pass a template name, --text or pipe text on stdin")
		}
	}

	if flags.Changed("seed") {
		seed, _ := flags.GetInt64("seed")
		req.Seed = &seed
	}
	req.Swap, _ = flags.GetStringToString("swap")
	req.Reroll, _ = flags.GetStringSlice("reroll")
	req.Tidy, _ = flags.GetBool("tidy")

	if path, _ := flags.GetString("existing"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return req, fmt.Errorf("failed to read existing result: %w", err)
		}
		var prev domain.ResolvedPrompt
		if err := json.Unmarshal(data, &prev); err != nil {
			return req, fmt.Errorf("failed to parse existing result %s: %w", path, err)
		}
		req.Existing = prev.Bindings
		if req.Seed == nil && prev.Seeded {
			req.Seed = &prev.Seed
		}
	}
	return req, nil
}

func init() {
	rootCmd.AddCommand(resolveCmd)
	f := resolveCmd.Flags()
	f.StringP("text", "t", "", "Template text to resolve instead of a stored template")
	f.Int64("seed", 0, "Seed for a reproducible result")
	f.StringToString("swap", nil, "Force the value of a top-level wildcard (name=value)")
	f.StringSlice("reroll", nil, "Wildcards to draw again when reusing --existing")
	f.String("existing", "", "JSON result of an earlier resolve whose bindings are kept")
	f.Bool("tidy", false, "Collapse stray separators and whitespace")
	f.Bool("plain", false, "Print only the prompt text")
}
