package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/weftworks/loom/engine/store/sqlite"
	"github.com/weftworks/loom/engine/uc"
	"github.com/weftworks/loom/pkg/config"
)

func DeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Remove tools, parameters, or outputs from the metadata store",
	}
	cmd.AddCommand(deleteToolCmd(), deleteParamCmd(), deleteOutputCmd())
	return cmd
}

func deleteToolCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tool <name>",
		Short: "Remove a tool and every row that references it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, _ *config.Config, s *sqlite.Store) error {
				return uc.NewDeleteTool(s).Execute(ctx, &uc.DeleteToolInput{Name: args[0]})
			})
		},
	}
}

func deleteParamCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "param <tool> <param>",
		Short: "Remove one parameter from a tool",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, _ *config.Config, s *sqlite.Store) error {
				return uc.NewDeleteToolParam(s).Execute(ctx, &uc.DeleteToolParamInput{
					Tool:  args[0],
					Param: args[1],
				})
			})
		},
	}
}

func deleteOutputCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "output <tool> <output>",
		Short: "Remove one declared output from a tool",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, _ *config.Config, s *sqlite.Store) error {
				return uc.NewDeleteToolOutput(s).Execute(ctx, &uc.DeleteToolOutputInput{
					Tool:   args[0],
					Output: args[1],
				})
			})
		},
	}
}
