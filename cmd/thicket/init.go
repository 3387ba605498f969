package main

import (
	"os"

	"github.com/aretw0/thicket/internal/cli"
	"github.com/aretw0/thicket/pkg/domain"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

// starterWildcards is the corpus written by init.
var starterWildcards = []*domain.Wildcard{
	{
		Name:        "color",
		Description: "Basic colors",
		Scope:       domain.ScopeShared,
		Format:      domain.FormatYAML,
		Choices: []domain.Choice{
			{Value: "red", Weight: 1},
			{Value: "blue", Weight: 1},
			{Value: "green", Weight: 1},
		},
	},
	{
		Name:        "fabric",
		Description: "Materials for garments",
		Scope:       domain.ScopeShared,
		Choices: []domain.Choice{
			{Value: "wool", Weight: 2, Tags: []string{"warm"}},
			{Value: "linen", Weight: 1},
		},
	},
	{
		Name:  "lighting",
		Scope: domain.ScopeShared,
		Choices: []domain.Choice{
			{Value: "soft light", Weight: 1},
			{Value: "film grain", Weight: 1},
			{Value: "bokeh", Weight: 1},
			{Value: "warm tones", Weight: 1},
		},
	},
	{
		Name:        "outfit",
		Description: "Garments; some only make sense with a given fabric",
		Scope:       domain.ScopeShared,
		Choices: []domain.Choice{
			{Value: "__color__ coat", Weight: 2},
			{Value: "__color__ scarf", Weight: 1, Requires: map[string]string{"fabric": "wool"}},
			{Value: "summer dress", Weight: 1, Requires: map[string]string{"fabric": "linen"}},
		},
	},
}

var starterTemplates = []domain.TemplateDoc{
	{
		Name:     "sfw/portrait",
		Title:    "Portrait",
		Workflow: domain.WorkflowSFW,
		Tags:     []string{"starter"},
		Text:     "portrait of a person wearing a __fabric__ __outfit__, __lighting:2-3__",
	},
}

var initCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Create a starter wildcard library",
	Long: `Writes a few wildcards and a template into the directory (default the
--dir flag or "."). Existing wildcards are left alone unless --force is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := globals
		if len(args) > 0 {
			opts.Dir = args[0]
		}
		if opts.Dir == "" {
			opts.Dir = "."
		}
		if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
			return err
		}
		opts.Out = cmd.OutOrStdout()
		opts.Err = cmd.ErrOrStderr()

		app, err := cli.NewApp(opts)
		if err != nil {
			return err
		}
		defer app.Close()

		force, _ := cmd.Flags().GetBool("force")
		ctx := cmd.Context()
		store := app.Engine.Store()

		written := 0
		for _, w := range starterWildcards {
			if !force {
				if _, err := store.Get(ctx, domain.WorkflowNSFW, w.Name); err == nil {
					continue
				} else if !errors.Is(err, domain.ErrMissingWildcard) {
					return err
				}
			}
			if err := store.Save(ctx, w.Clone()); err != nil {
				return err
			}
			written++
		}

		library := app.Engine.Library()
		if library == nil {
			return errors.New("no template library")
		}
		for _, doc := range starterTemplates {
			if _, err := library.Template(ctx, doc.Name); err == nil && !force {
				continue
			}
			if err := library.SaveTemplate(ctx, doc); err != nil {
				return err
			}
			written++
		}

		cli.PrintSystemMessage(app.Out, "Wrote %d files to %s. Try: thicket --dir %s resolve %s", written, app.Config.Dir, app.Config.Dir, starterTemplates[0].Name)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().Bool("force", false, "Overwrite the starter files")
}

