package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/weftworks/loom/engine/runtime"
	"github.com/weftworks/loom/engine/store/sqlite"
	"github.com/weftworks/loom/engine/uc"
	"github.com/weftworks/loom/pkg/config"
)

func ScheduleCmd() *cobra.Command {
	var (
		cronExpr string
		argPairs []string
	)
	cmd := &cobra.Command{
		Use:   "schedule <tool>",
		Short: "Run one tool on a cron schedule until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, _ *config.Config, s *sqlite.Store) error {
				toolArgs, err := parseArgs(argPairs)
				if err != nil {
					return err
				}
				return uc.NewScheduleTool(s, runtime.Default()).Execute(ctx, &uc.ScheduleToolInput{
					Name: args[0],
					Cron: cronExpr,
					Args: toolArgs,
				})
			})
		},
	}
	cmd.Flags().StringVar(&cronExpr, "cron", "", "cron expression, e.g. \"*/5 * * * *\"")
	cmd.Flags().StringArrayVar(&argPairs, "arg", nil, "tool argument as key=value (repeatable)")
	_ = cmd.MarkFlagRequired("cron")
	return cmd
}
