package main

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/aretw0/thicket/pkg/adapters/process"
	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import <wildcard>",
	Short: "Add generated choices to a wildcard",
	Long: `Reads generated text from standard input, or runs the generator named by
--generator with --prompt, normalizes it into choices and merges them into the
wildcard. The wildcard is created when it does not exist.

Generators are external commands declared in generators.yaml in the data
directory (or the file given with --generators). The prompt is written to the
command's standard input.`,
	Args: cobra.ExactArgs(1),
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

		name := args[0]
		genName, _ := cmd.Flags().GetString("generator")
		if genName == "" {
			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("failed to read generated text: %w", err)
			}
			report, err := app.Engine.Import(cmd.Context(), scope, name, string(data))
			return showReport(app, report, err)
		}

		path, _ := cmd.Flags().GetString("generators")
		if path == "" {
			path = filepath.Join(app.Config.Dir, "generators.yaml")
		}
		configs, err := process.LoadGenerators(path)
		if err != nil {
			return err
		}
		runner := process.NewRunner(process.WithRegistry(configs), process.WithBaseDir(app.Config.Dir))

		genArgs := make(map[string]any)
		for k, v := range stringMap(cmd, "arg") {
			genArgs[k] = v
		}
		gen, err := runner.Generator(genName, genArgs)
		if err != nil {
			return err
		}

		prompt, _ := cmd.Flags().GetString("prompt")
		app.Logger.Info("running generator", "generator", genName, "wildcard", name)
		report, err := app.Engine.Generate(cmd.Context(), gen, scope, name, prompt)
		return showReport(app, report, err)
	},
}

func stringMap(cmd *cobra.Command, name string) map[string]string {
	m, _ := cmd.Flags().GetStringToString(name)
	return m
}

func init() {
	rootCmd.AddCommand(importCmd)
	f := importCmd.Flags()
	f.String("scope", "shared", "Scope of the wildcard: shared or nsfw")
	f.String("generator", "", "Generator to run instead of reading stdin")
	f.String("generators", "", "Generators config file (default <dir>/generators.yaml)")
	f.String("prompt", "", "Prompt passed to the generator")
	f.StringToString("arg", nil, "Extra generator argument exposed as THICKET_ARG_<KEY> (key=value)")
}
