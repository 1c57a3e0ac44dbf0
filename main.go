package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/choraleia/explorer/pkg/config"
	"github.com/choraleia/explorer/pkg/db"
	"github.com/choraleia/explorer/pkg/event"
	"github.com/choraleia/explorer/pkg/service"
	"github.com/choraleia/explorer/pkg/utils"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "explorer:", err)
		os.Exit(1)
	}
}

func run() error {
	if _, err := config.EnsureDefaultConfig(); err != nil {
		return err
	}
	cfg, cfgFile, err := config.Load()
	if err != nil {
		return err
	}

	utils.InitLogger(cfg.LogLevel())
	logger := utils.GetLogger()
	logger.Info("Config loaded", "file", cfgFile, "backend", cfg.Backend())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gdb, err := db.Open(cfg.DatabasePath())
	if err != nil {
		return err
	}
	history := service.NewUploadHistoryService(gdb)

	registry := service.NewFSRegistry()
	defer registry.Close()

	catalog, err := registry.OpenCatalog(ctx, cfg)
	if err != nil {
		return err
	}
	logger.Info("Storage ready", "root", catalog.Root())

	explorer := service.NewExplorerService(catalog,
		service.WithTransferer(service.NewFSTransferer(catalog, cfg.OverwriteUploads())),
		service.WithAuthorizer(service.NewPolicyAuthorizer(cfg.ReadOnly())),
		service.WithUploadHistory(history),
		service.WithUploadGracePeriod(cfg.GracePeriod()),
		service.WithEmitter(event.Global()),
	)
	defer explorer.Close()

	server := NewServer(cfg, explorer, history)
	if err := server.Start(ctx); err != nil {
		logger.Error("Failed to start server", "error", err)
		return err
	}

	<-ctx.Done()
	logger.Info("Shutting down")
	return nil
}
