package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/thicket/internal/suggest"
	"github.com/spf13/cobra"
)

// depsView is the JSON shape of the deps command.
type depsView struct {
	Name         string   `json:"name,omitempty"`
	Dependencies []string `json:"dependencies,omitempty"`
	Dependents   []string `json:"dependents,omitempty"`
	Used         []string `json:"used,omitempty"`
	Unused       []string `json:"unused,omitempty"`
}

var depsCmd = &cobra.Command{
	Use:   "deps [wildcard]",
	Short: "Show what a wildcard depends on and what depends on it",
	Long: `With a wildcard name, lists the wildcards it includes or requires and the
ones that reference it. Without a name, lists the wildcards reachable from the
template library (--used) and the ones nothing reaches (--unused).`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		g, usage, err := app.Engine.Usage(cmd.Context(), app.Workflow())
		if err != nil {
			return err
		}

		var view depsView
		if len(args) == 1 {
			name := args[0]
			if !g.Has(name) {
				return suggest.MissingWildcard(name, g.Corpus().Names())
			}
			view = depsView{Name: name, Dependencies: g.Dependencies(name), Dependents: g.Dependents(name)}
		} else {
			used, _ := cmd.Flags().GetBool("used")
			unused, _ := cmd.Flags().GetBool("unused")
			if !used && !unused {
				used, unused = true, true
			}
			if used {
				view.Used = append([]string{}, usage.Used...)
			}
			if unused {
				view.Unused = append([]string{}, usage.Unused...)
			}
		}

		return app.Show(view, func() string {
			var sb strings.Builder
			section := func(title string, names []string) {
				fmt.Fprintf(&sb, "## %s (%d)\n\n", title, len(names))
				for _, n := range names {
					fmt.Fprintf(&sb, "- %s\n", n)
				}
				sb.WriteString("\n")
			}
			if view.Name != "" {
				section("Dependencies of "+view.Name, view.Dependencies)
				section("Dependents of "+view.Name, view.Dependents)
				return sb.String()
			}
			if view.Used != nil {
				section("Used", view.Used)
			}
			if view.Unused != nil {
				section("Unused", view.Unused)
			}
			return sb.String()
		})
	},
}

func init() {
	rootCmd.AddCommand(depsCmd)
	depsCmd.Flags().Bool("used", false, "List wildcards reached from templates")
	depsCmd.Flags().Bool("unused", false, "List wildcards no template reaches")
}
