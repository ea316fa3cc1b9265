package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"nftmarket/config"
	"nftmarket/core"
	"nftmarket/core/events"
	"nftmarket/core/genesis"
	"nftmarket/core/types"
	"nftmarket/observability/logging"
	"nftmarket/rpc"
	"nftmarket/storage"
)

// slogEmitter forwards every ledger event to the structured logger.
type slogEmitter struct {
	logger *slog.Logger
}

func (e slogEmitter) Emit(evt events.Event) {
	if evt == nil {
		return
	}
	args := []any{"event", evt.EventType()}
	if typed, ok := evt.(interface{ Event() *types.Event }); ok && typed.Event() != nil {
		for k, v := range typed.Event().Attributes {
			args = append(args, k, v)
		}
	}
	e.logger.Info("market event", args...)
}

func main() {
	configPath := flag.String("config", "./config.toml", "path to the marketd configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "path", *configPath, "error", err)
		os.Exit(1)
	}
	logger := logging.Setup("marketd", cfg.Env)
	logger.Info("starting marketd", "network", cfg.NetworkName, "rpc", cfg.RPCAddress)

	var db storage.Database
	if cfg.DataDir == "" {
		logger.Warn("no data directory configured, using in-memory store")
		db = storage.NewMemDB()
	} else {
		ldb, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "market"))
		if err != nil {
			logger.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		db = ldb
	}
	defer db.Close()

	node := core.NewNode(db)
	node.SetPauses(cfg.Pauses())
	node.SetEmitter(slogEmitter{logger: logger})

	if cfg.GenesisFile != "" {
		g, err := genesis.Load(cfg.GenesisFile)
		if err != nil {
			logger.Error("failed to load genesis", "path", cfg.GenesisFile, "error", err)
			os.Exit(1)
		}
		if err := node.ApplyGenesis(g); err != nil {
			logger.Error("failed to apply genesis", "error", err)
			os.Exit(1)
		}
	}

	server := rpc.NewServer(node, logger)
	httpServer := &http.Server{
		Addr:              cfg.RPCAddress,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("rpc server exited", "error", err)
			stop()
		}
	}()
	logger.Info("json-rpc server listening", "address", cfg.RPCAddress)

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}
