package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/xraydraft/internal/draftstore"
	"github.com/mesh-intelligence/xraydraft/internal/paths"
	"github.com/mesh-intelligence/xraydraft/internal/server"
	"github.com/mesh-intelligence/xraydraft/internal/settings"
	"github.com/mesh-intelligence/xraydraft/internal/xray"
	"github.com/mesh-intelligence/xraydraft/pkg/types"
)

const shutdownGrace = 5 * time.Second

func newServeCmd() *cobra.Command {
	var listenAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local REST API server",
		Long:  "Serve the draft, settings, and import API over HTTP until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, listenAddr)
		},
	}
	cmd.Flags().StringVar(&listenAddr, "listen", "", "listen address (default: config listen_addr or "+defaultListenAddr+")")

	return cmd
}

func runServe(cmd *cobra.Command, listenFlag string) error {
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	configDir, err := paths.ResolveConfigDir(flags.configDir)
	if err != nil {
		return exitError(cmd, exitSysError, fmt.Sprintf("resolve config directory: %s", err))
	}
	cfg, err := loadConfig(configDir)
	if err != nil {
		return exitError(cmd, exitSysError, fmt.Sprintf("load config: %s", err))
	}
	dataDir, err := paths.ResolveDataDir(flags.dataDir, cfg.GetString(cfgKeyDataDir))
	if err != nil {
		return exitError(cmd, exitSysError, fmt.Sprintf("resolve data directory: %s", err))
	}

	addr := listenFlag
	if addr == "" {
		addr = cfg.GetString(cfgKeyListenAddr)
	}
	xrayConfigPath := cfg.GetString(cfgKeyXrayConfig)
	if xrayConfigPath == "" {
		xrayConfigPath = paths.XrayConfigFile(configDir)
	} else if !filepath.IsAbs(xrayConfigPath) {
		xrayConfigPath = filepath.Join(configDir, xrayConfigPath)
	}

	drafts, err := draftstore.New(paths.DraftsRoot(dataDir), log)
	if err != nil {
		return exitError(cmd, exitSysError, fmt.Sprintf("open draft store: %s", err))
	}
	defer drafts.Close()

	settingsStore := settings.New(paths.SettingsFile(configDir), paths.DraftsRoot(dataDir), log)
	if _, err := settingsStore.SyncWithFilesystem(); err != nil {
		return exitError(cmd, exitSysError, fmt.Sprintf("initialize settings: %s", err))
	}

	// Credentials are re-read per import request so edits to the config file
	// take effect without a restart.
	importer := func() (types.Importer, error) {
		creds, err := xray.LoadConfig(xrayConfigPath)
		if err != nil {
			return nil, err
		}
		return xray.NewClient(creds, nil, log), nil
	}

	srv := &http.Server{
		Addr:    addr,
		Handler: server.New(drafts, settingsStore, importer, log).Handler(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("serving", "addr", addr, "dataDir", dataDir, "configDir", configDir)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return exitError(cmd, exitSysError, fmt.Sprintf("serve: %s", err))
		}
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return exitError(cmd, exitSysError, fmt.Sprintf("shutdown: %s", err))
		}
	}

	return nil
}
