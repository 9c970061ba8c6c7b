package cli

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/weftworks/loom/engine/runtime"
	"github.com/weftworks/loom/engine/store/sqlite"
	"github.com/weftworks/loom/engine/tool"
	"github.com/weftworks/loom/engine/uc"
	"github.com/weftworks/loom/pkg/config"
	"github.com/weftworks/loom/pkg/logger"
)

func RunCmd() *cobra.Command {
	var argPairs []string
	cmd := &cobra.Command{
		Use:   "run <tool>",
		Short: "Run one tool, predecessors first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, _ *config.Config, s *sqlite.Store) error {
				toolArgs, err := parseArgs(argPairs)
				if err != nil {
					return err
				}
				out, err := uc.NewRunTool(s, runtime.Default()).Execute(ctx, &uc.RunToolInput{
					Name: args[0],
					Args: toolArgs,
				})
				if err != nil {
					if tool.IsFailure(err) {
						return fmt.Errorf("run failed: %w", err)
					}
					return err
				}
				printOutputs(cmd, out.Outputs)
				logger.FromContext(ctx).Info("Run finished", "tool", args[0])
				return nil
			})
		},
	}
	cmd.Flags().StringArrayVar(&argPairs, "arg", nil, "tool argument as key=value (repeatable)")
	return cmd
}

func printOutputs(cmd *cobra.Command, outputs tool.Output) {
	names := make([]string, 0, len(outputs))
	for name := range outputs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %v\n", name, outputs[name])
	}
}
