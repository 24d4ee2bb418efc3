package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/xraydraft/internal/paths"
	"github.com/mesh-intelligence/xraydraft/internal/settings"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize xraydraft storage",
		Long:  "Create the configuration directory, a default config.yaml, and the drafts root. The settings document materializes on first change.",
		RunE:  runInit,
	}
}

func runInit(cmd *cobra.Command, args []string) error {
	configDir, err := paths.ResolveConfigDir(flags.configDir)
	if err != nil {
		return exitError(cmd, exitSysError, fmt.Sprintf("resolve config directory: %s", err))
	}

	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return exitError(cmd, exitSysError, fmt.Sprintf("create config directory: %s", err))
	}
	if err := writeConfigIfMissing(configDir); err != nil {
		return exitError(cmd, exitSysError, fmt.Sprintf("write config: %s", err))
	}

	cfg, err := loadConfig(configDir)
	if err != nil {
		return exitError(cmd, exitSysError, fmt.Sprintf("load config: %s", err))
	}
	dataDir, err := paths.ResolveDataDir(flags.dataDir, cfg.GetString(cfgKeyDataDir))
	if err != nil {
		return exitError(cmd, exitSysError, fmt.Sprintf("resolve data directory: %s", err))
	}

	// Syncing creates the drafts root and registers any existing project
	// directories. A fresh install has nothing to persist yet.
	store := settings.New(paths.SettingsFile(configDir), paths.DraftsRoot(dataDir), nil)
	if _, err := store.SyncWithFilesystem(); err != nil {
		return exitError(cmd, exitSysError, fmt.Sprintf("initialize settings: %s", err))
	}

	fmt.Fprintln(cmd.OutOrStdout(), "xraydraft initialized successfully")
	return nil
}
