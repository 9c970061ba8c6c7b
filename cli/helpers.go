package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/weftworks/loom/engine/store/sqlite"
	"github.com/weftworks/loom/pkg/config"
	"github.com/weftworks/loom/pkg/logger"
)

// setup loads the application settings, applies flag overrides, and
// returns a context carrying the configured logger.
func setup(cmd *cobra.Command) (context.Context, *config.Config, error) {
	ctx := cmd.Context()
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, nil, err
	}
	if db, _ := cmd.Flags().GetString("db"); db != "" {
		cfg.Database.Path = db
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Log.Level = level
	}
	if jsonLogs, _ := cmd.Flags().GetBool("log-json"); jsonLogs {
		cfg.Log.JSON = true
	}

	logCfg := logger.DefaultConfig()
	logCfg.Level = logger.LogLevel(cfg.Log.Level)
	logCfg.JSON = cfg.Log.JSON
	return logger.ContextWithLogger(ctx, logger.NewLogger(logCfg)), cfg, nil
}

func openStore(ctx context.Context, cfg *config.Config) (*sqlite.Store, error) {
	s, err := sqlite.NewStore(ctx, cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening metadata store: %w", err)
	}
	return s, nil
}

// withStore runs fn against an opened store with the configured logger
// on the context, closing the store afterwards.
func withStore(cmd *cobra.Command, fn func(ctx context.Context, cfg *config.Config, s *sqlite.Store) error) error {
	ctx, cfg, err := setup(cmd)
	if err != nil {
		return err
	}
	s, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(ctx, cfg, s)
}

func firstArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return ""
}

// parseArgs turns repeated --arg key=value flags into an argument map.
func parseArgs(pairs []string) (map[string]any, error) {
	args := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("argument %q is not key=value", pair)
		}
		args[key] = value
	}
	return args, nil
}

// configFile prefers the positional or flag-supplied path over the
// configured default.
func configFile(cfg *config.Config, override string) string {
	if override != "" {
		return override
	}
	return cfg.Import.File
}
