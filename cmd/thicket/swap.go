package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var swapCmd = &cobra.Command{
	Use:   "swap <wildcard>",
	Short: "List the choices a wildcard could be swapped to",
	Long: `Lists, in file order, the choices of the wildcard whose requirements hold
under the given bindings. Pass each binding as --bind name=value; repeat it to
bind several values to one name.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		raw, _ := cmd.Flags().GetStringArray("bind")
		bindings := make(map[string][]string)
		for _, b := range raw {
			name, value, ok := strings.Cut(b, "=")
			if !ok || name == "" {
				return fmt.Errorf("invalid binding %q: want name=value", b)
			}
			bindings[name] = append(bindings[name], value)
		}

		choices, err := app.Engine.SwapOptions(cmd.Context(), app.Workflow(), args[0], bindings)
		if err != nil {
			return err
		}
		return app.Show(choices, func() string {
			if len(choices) == 0 {
				return fmt.Sprintf("No eligible choice for **%s**.\n", args[0])
			}
			var sb strings.Builder
			fmt.Fprintf(&sb, "## %s\n\n", args[0])
			for _, c := range choices {
				fmt.Fprintf(&sb, "- %s\n", c.Value)
			}
			return sb.String()
		})
	},
}

func init() {
	rootCmd.AddCommand(swapCmd)
	swapCmd.Flags().StringArray("bind", nil, "Value already chosen for a wildcard (name=value)")
}
