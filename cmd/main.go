package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/lmittmann/tint"
	flag "github.com/spf13/pflag"
	"k8s.io/client-go/kubernetes"

	"github.com/kubelane/kubelane/cmd/server"
	"github.com/kubelane/kubelane/internal/db"
	"github.com/kubelane/kubelane/internal/engine"
	kubewatch "github.com/kubelane/kubelane/internal/kubernetes"
	"github.com/kubelane/kubelane/internal/state"
)

const (
	defaultListenAddr = ":8080"
	defaultPreset     = "1h"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	listenAddrFlag := flag.String("listen-addr", defaultListenAddr, "HTTP server listen address")
	kubeconfigFlag := flag.String("kubeconfig", "", "path to kubeconfig (defaults to ~/.kube/config, then in-cluster)")
	namespaceFlag := flag.String("namespace", "", "namespace to watch (empty watches all)")
	presetFlag := flag.String("time-range", defaultPreset, "initial time range preset (15m, 30m, 1h, 2h, 4h, 8h, 12h, 1d, 2d, 3d, 7d)")
	verboseFlag := flag.Bool("verbose", false, "enable verbose (debug) logging")
	flag.Parse()

	// Load .env. godotenv never overrides existing env vars, so process
	// env takes precedence.
	_ = godotenv.Load()

	level := slog.LevelInfo
	if *verboseFlag {
		level = slog.LevelDebug
	}
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
	}))
	slog.SetDefault(logger)

	clock := clockwork.NewRealClock()

	var store state.EventStore
	if connStr := os.Getenv("DATABASE_URL"); connStr != "" {
		pgStore, err := db.NewPostgresStore(connStr, logger)
		if err != nil {
			logger.Warn("postgres unavailable, falling back to in-memory store", "error", err)
			store = state.NewMemoryStore()
		} else {
			logger.Info("connected to postgres event history")
			store = pgStore
			defer pgStore.Close()
		}
	} else {
		store = state.NewMemoryStore()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	topo := kubewatch.KindTopology()
	topoVersion := "kind-edges-v1"

	restConfig, err := kubewatch.LoadRESTConfig(*kubeconfigFlag)
	if err != nil {
		logger.Warn("no cluster access, running in demo mode without live events", "error", err)
	} else {
		clientset, err := kubernetes.NewForConfig(restConfig)
		if err != nil {
			return fmt.Errorf("failed to create clientset: %w", err)
		}
		watcher, err := kubewatch.NewWatcher(kubewatch.Config{
			Clientset: clientset,
			Store:     store,
			Logger:    logger,
			Clock:     clock,
			Namespace: *namespaceFlag,
		})
		if err != nil {
			return fmt.Errorf("failed to create watcher: %w", err)
		}
		topo, topoVersion = watcher.Topology()
		go func() {
			if err := watcher.Start(ctx); err != nil {
				logger.Error("watcher failed", "error", err)
			}
		}()
	}

	api, err := server.New(server.Config{
		Store:       store,
		Engine:      engine.New(),
		Topology:    topo,
		TopoVersion: topoVersion,
		Clock:       clock,
		Logger:      logger,

		DefaultPreset: *presetFlag,
	})
	if err != nil {
		return fmt.Errorf("failed to create API server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- api.Start(*listenAddrFlag)
	}()
	logger.Info("kubelane ready", "addr", *listenAddrFlag, "timeRange", *presetFlag)

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		return nil
	case err := <-errCh:
		return fmt.Errorf("API server failed: %w", err)
	}
}
