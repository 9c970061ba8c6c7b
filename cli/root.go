// Package cli wires the loom commands: schema migration, config file
// import and sync, tool runs, scheduling, and deletions.
package cli

import (
	"github.com/spf13/cobra"
)

func RootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "loom",
		Short:         "Metadata-driven tool graph runner",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("db", "", "path to the metadata store")
	root.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	root.PersistentFlags().Bool("log-json", false, "render logs as JSON")

	root.AddCommand(
		MigrateCmd(),
		ImportCmd(),
		SyncCmd(),
		RunCmd(),
		ScheduleCmd(),
		DeleteCmd(),
	)
	return root
}
