// Package cli provides the command-line interface for praeparo.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/praeparo-labs/praeparo/internal/cli/commands"
	"github.com/praeparo-labs/praeparo/internal/cli/config"
)

var cfgFile string

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "praeparo",
		Short: "Praeparo - Declarative Power BI visuals",
		Long: `Praeparo renders declarative visual definitions into reports.

Visuals are YAML documents describing matrix and frame layouts; praeparo
resolves them, plans their DAX queries, executes them against Power BI or a
deterministic mock datasource, and emits HTML, CSV, JSON, or PNG artifacts.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}
			cfg, err := config.Load(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}
			cmd.SetContext(config.NewContext(cmd.Context(), cfg))
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
Declarative Power BI visuals
`)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./praeparo.yaml)")
	rootCmd.PersistentFlags().StringP("datasource", "d", "", `Override the documents' datasource reference (use "mock" for sample data)`)
	rootCmd.PersistentFlags().StringP("output-dir", "o", "", "Directory for emitted artifacts")
	rootCmd.PersistentFlags().StringSlice("formats", nil, "Output formats (html|csv|json|png)")
	rootCmd.PersistentFlags().String("png-exporter", "", "External binary used for PNG export")
	rootCmd.PersistentFlags().Int("max-attempts", 0, "Maximum query attempts against remote datasources")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose output")

	_ = rootCmd.RegisterFlagCompletionFunc("formats", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"html", "csv", "json", "png"}, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(commands.NewVersionCommand(Version))
	rootCmd.AddCommand(commands.NewRenderCommand())
	rootCmd.AddCommand(commands.NewPlanCommand())

	return rootCmd
}
