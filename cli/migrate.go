package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/weftworks/loom/engine/store/sqlite"
	"github.com/weftworks/loom/engine/uc"
	"github.com/weftworks/loom/pkg/config"
	"github.com/weftworks/loom/pkg/logger"
)

func MigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the metadata store schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd, func(ctx context.Context, cfg *config.Config, s *sqlite.Store) error {
				if err := uc.NewMigrate(s).Execute(ctx); err != nil {
					return err
				}
				logger.FromContext(ctx).Info("Metadata store is up to date", "path", cfg.Database.Path)
				return nil
			})
		},
	}
}
