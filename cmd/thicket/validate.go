package main

import (
	"github.com/aretw0/thicket/internal/presentation/tui"
	"github.com/aretw0/thicket/pkg/domain"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the wildcards and templates for consistency",
	Long: `Runs every check over the workflow: broken references, include cycles,
empty wildcards, duplicate choices, requirements that can never hold, templates
that bind a required wildcard too late, corrupt files and template syntax.
Exits with status 1 when an error is found.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		diags, err := app.Engine.Validate(cmd.Context(), app.Workflow())
		if err != nil {
			return err
		}
		if diags == nil {
			diags = []domain.Diagnostic{}
		}
		if err := app.Show(diags, func() string { return tui.DiagnosticsMarkdown(diags) }); err != nil {
			return err
		}

		strict, _ := cmd.Flags().GetBool("strict")
		if len(domain.Errors(diags)) > 0 || (strict && len(diags) > 0) {
			return errFailed
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().Bool("strict", false, "Fail on warnings too")
}
