package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/weftworks/loom/engine/store/sqlite"
	"github.com/weftworks/loom/engine/uc"
	"github.com/weftworks/loom/pkg/config"
)

func ImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import [file]",
		Short: "Import a tool definition file into the metadata store",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, cfg *config.Config, s *sqlite.Store) error {
				file := configFile(cfg, firstArg(args))
				if err := uc.NewMigrate(s).Execute(ctx); err != nil {
					return err
				}
				return uc.NewImportConfig(s).Execute(ctx, &uc.ImportConfigInput{File: file})
			})
		},
	}
}

func SyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync [file]",
		Short: "Import a definition file, then rewrite it with resolved identifiers",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, cfg *config.Config, s *sqlite.Store) error {
				file := configFile(cfg, firstArg(args))
				if err := uc.NewMigrate(s).Execute(ctx); err != nil {
					return err
				}
				return uc.NewSyncConfig(s).Execute(ctx, &uc.SyncConfigInput{File: file})
			})
		},
	}
}
