package main

import (
	"strings"

	"github.com/aretw0/thicket/internal/presentation/graph"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Export the wildcard dependency graph",
	Long: `Outputs the dependency graph of the workflow as a Mermaid flowchart, JSON
or YAML. --used highlights the wildcards the template library reaches.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		format, _ := cmd.Flags().GetString("format")
		focus, _ := cmd.Flags().GetString("focus")
		used, _ := cmd.Flags().GetBool("used")
		if app.JSON && !cmd.Flags().Changed("format") {
			format = "json"
		}

		var overlay *graph.Overlay
		if focus != "" || used {
			overlay = &graph.Overlay{Focus: focus}
		}
		g, usage, err := app.Engine.Usage(cmd.Context(), app.Workflow())
		if err != nil {
			return err
		}
		if used {
			overlay.Used = usage.Used
		}

		data, err := graph.Render(g, format, overlay)
		if err != nil {
			return err
		}
		_, err = app.Out.Write(data)
		return err
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().StringP("format", "f", "mermaid", "Output format: "+strings.Join(graph.Formats, ", "))
	graphCmd.Flags().String("focus", "", "Wildcard to highlight")
	graphCmd.Flags().Bool("used", false, "Highlight the wildcards reached from templates")
}
