package main

import (
	"github.com/aretw0/thicket/internal/cli"
	"github.com/aretw0/thicket/internal/presentation/tui"
	"github.com/aretw0/thicket/internal/refactor"
	"github.com/aretw0/thicket/pkg/domain"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

// showReport prints the report even when some writes failed, so the user sees
// which files were changed.
func showReport(app *cli.App, report *refactor.Report, err error) error {
	if report != nil {
		if perr := app.Show(report, func() string { return tui.RefactorMarkdown(report) }); perr != nil {
			return perr
		}
	}
	if errors.Is(err, domain.ErrRefactorPartialFailure) {
		return errors.WithHint(err, "files listed as written were not rolled back; fix the cause and run the command again")
	}
	return err
}

func scopeFlag(cmd *cobra.Command) (domain.Scope, error) {
	raw, _ := cmd.Flags().GetString("scope")
	return domain.ParseScope(raw)
}

var renameCmd = &cobra.Command{
	Use:   "rename <old> <new>",
	Short: "Rename a wildcard and every reference to it",
	Long: `Renames the wildcard file and rewrites includes, requires keys, embedded
directives and templates that reference it.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		report, err := app.Engine.Rename(cmd.Context(), args[0], args[1])
		return showReport(app, report, err)
	},
}

var replaceValueCmd = &cobra.Command{
	Use:   "replace-value <wildcard> <old> <new>",
	Short: "Change a choice value and the requirements that name it",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		scope, err := scopeFlag(cmd)
		if err != nil {
			return err
		}
		app, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		report, err := app.Engine.ReplaceValue(cmd.Context(), scope, args[0], args[1], args[2])
		return showReport(app, report, err)
	},
}

var mergeCmd = &cobra.Command{
	Use:   "merge <target> <source>...",
	Short: "Fold wildcards into one",
	Long: `Unions the choices, tags, requirements and includes of the sources into the
target, archives the sources and points their references at the target.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		scope, err := scopeFlag(cmd)
		if err != nil {
			return err
		}
		app, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		report, err := app.Engine.Merge(cmd.Context(), scope, args[0], args[1:]...)
		return showReport(app, report, err)
	},
}

var archiveCmd = &cobra.Command{
	Use:   "archive <name>",
	Short: "Move a wildcard (or with --template, a template) into archive/",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		scope, err := scopeFlag(cmd)
		if err != nil {
			return err
		}
		app, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		var report *refactor.Report
		if tmpl, _ := cmd.Flags().GetBool("template"); tmpl {
			report, err = app.Engine.ArchiveTemplate(cmd.Context(), args[0])
		} else {
			report, err = app.Engine.Archive(cmd.Context(), scope, args[0])
		}
		return showReport(app, report, err)
	},
}

func init() {
	rootCmd.AddCommand(renameCmd, replaceValueCmd, mergeCmd, archiveCmd)
	for _, c := range []*cobra.Command{replaceValueCmd, mergeCmd, archiveCmd} {
		c.Flags().String("scope", string(domain.ScopeShared), "Scope of the wildcard: shared or nsfw")
	}
	archiveCmd.Flags().Bool("template", false, "Archive a template instead of a wildcard")
}
