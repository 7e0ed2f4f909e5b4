package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/praeparo-labs/praeparo/internal/cli/config"
	"github.com/praeparo-labs/praeparo/internal/pipeline"
)

// NewPlanCommand creates the plan command.
func NewPlanCommand() *cobra.Command {
	var params map[string]string

	cmd := &cobra.Command{
		Use:   "plan <visual.yaml>",
		Short: "Print the DAX queries a visual would execute",
		Long: `Resolve the visual definition and print its generated DAX statements
without executing anything. Frames print one statement per child.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromContext(cmd.Context())

			p := pipeline.New(pipeline.Config{Logger: newLogger(cfg)})
			plans, err := p.Plan(args[0], pipeline.Options{Parameters: params})
			if err != nil {
				return err
			}

			for i, plan := range plans {
				if i > 0 {
					fmt.Fprintln(cmd.OutOrStdout())
				}
				fmt.Fprintln(cmd.OutOrStdout(), plan.Statement)
			}
			return nil
		},
	}

	cmd.Flags().StringToStringVarP(&params, "param", "p", nil, "Template parameter (name=value, repeatable)")
	return cmd
}
