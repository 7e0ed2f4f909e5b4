package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/praeparo-labs/praeparo/internal/cli/config"
	"github.com/praeparo-labs/praeparo/internal/pipeline"
	"github.com/praeparo-labs/praeparo/internal/powerbi"
)

// NewRenderCommand creates the render command.
func NewRenderCommand() *cobra.Command {
	var (
		params   map[string]string
		validate bool
	)

	cmd := &cobra.Command{
		Use:   "render <visual.yaml> [more...]",
		Short: "Execute visual definitions and emit artifacts",
		Long: `Resolve each visual definition, execute its queries, and write the
configured output formats to the output directory. Documents without a
datasource (or with --datasource mock) use deterministic sample data.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromContext(cmd.Context())
			logger := newLogger(cfg)

			if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
				return fmt.Errorf("creating output directory: %w", err)
			}

			client := powerbi.New(powerbi.Config{
				Logger:      logger,
				MaxAttempts: cfg.MaxAttempts,
			})
			defer client.Close()

			var errs []error
			for _, source := range args {
				targets, err := outputTargets(cfg, source)
				if err != nil {
					return err
				}

				p := pipeline.New(pipeline.Config{
					Logger:  logger,
					Client:  client,
					Outputs: targets,
				})
				result, err := p.Execute(cmd.Context(), source, pipeline.Options{
					Datasource: cfg.Datasource,
					Parameters: params,
					Validate:   validate,
				})
				if result != nil {
					for _, artifact := range result.Artifacts {
						fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%s)\n", artifact.Path, artifact.Target)
					}
				}
				if err != nil {
					errs = append(errs, fmt.Errorf("%s: %w", source, err))
				}
			}
			return errors.Join(errs...)
		},
	}

	cmd.Flags().StringToStringVarP(&params, "param", "p", nil, "Template parameter (name=value, repeatable)")
	cmd.Flags().BoolVar(&validate, "validate", false, "Fail when a dataset is empty or missing declared values")
	return cmd
}
