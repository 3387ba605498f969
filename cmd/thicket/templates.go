package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/thicket/pkg/domain"
	"github.com/spf13/cobra"
)

var templatesCmd = &cobra.Command{
	Use:   "templates [name]",
	Short: "List the templates of a workflow, or show one",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		if len(args) == 1 {
			doc, err := app.Engine.Template(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return app.Show(doc, func() string {
				return fmt.Sprintf("## %s\n\n*workflow* `%s`\n\n```\n%s\n```\n", doc.Name, doc.Workflow, doc.Text)
			})
		}

		var workflow domain.Workflow
		if cmd.Flags().Changed("workflow") {
			workflow = app.Workflow()
		}
		docs, err := app.Engine.Templates(cmd.Context(), workflow)
		if err != nil {
			return err
		}
		if docs == nil {
			docs = []domain.TemplateDoc{}
		}
		return app.Show(docs, func() string {
			if len(docs) == 0 {
				return "No templates.\n"
			}
			var sb strings.Builder
			sb.WriteString("| name | workflow | title | tags |\n|---|---|---|---|\n")
			for _, d := range docs {
				fmt.Fprintf(&sb, "| %s | %s | %s | %s |\n", d.Name, d.Workflow, d.Title, strings.Join(d.Tags, ", "))
			}
			return sb.String()
		})
	},
}

func init() {
	rootCmd.AddCommand(templatesCmd)
}
