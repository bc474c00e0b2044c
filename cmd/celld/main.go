package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/raft"
	"github.com/heysubinoy/pyazcell/internal/api"
	"github.com/heysubinoy/pyazcell/internal/logging"
	"github.com/heysubinoy/pyazcell/internal/store"
	"github.com/heysubinoy/pyazcell/pkg/config"
	"github.com/heysubinoy/pyazcell/pkg/kv"
	"google.golang.org/grpc"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file (optional)")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "celld: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New("celld", cfg.LogLevel)
	if err := cfg.ValidateServer(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("celld stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger hclog.Logger) error {
	backend, raftNode, closeBackend, err := openBackend(cfg, logger)
	if err != nil {
		return err
	}
	defer closeBackend()

	instrumented := store.NewInstrumentedStore(backend)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.GRPCAddr, err)
	}
	grpcServer := grpc.NewServer()
	api.RegisterStoreServer(grpcServer, api.NewGRPCServer(instrumented))

	_, httpPort, err := net.SplitHostPort(cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("invalid HTTP address %s: %w", cfg.HTTPAddr, err)
	}
	srv := api.NewServer(instrumented, raftNode, httpPort)
	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)
	mux.Handle("/metrics", api.MetricsHandler(instrumented))
	httpServer := &http.Server{Addr: cfg.HTTPAddr, Handler: mux}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("gRPC server listening", "addr", cfg.GRPCAddr)
		errCh <- grpcServer.Serve(lis)
	}()
	go func() {
		logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown failed", "error", err)
	}
	grpcServer.GracefulStop()
	return serveErr
}

// openBackend builds the configured host store. The returned raft.Raft is
// nil unless the raft backend is selected.
func openBackend(cfg *config.Config, logger hclog.Logger) (kv.Store, *raft.Raft, func(), error) {
	switch cfg.Backend {
	case config.BackendMemory:
		logger.Info("using in-memory store", "quota_bytes", cfg.QuotaBytes)
		return store.NewMemStoreWithQuota(cfg.QuotaBytes), nil, func() {}, nil

	case config.BackendBolt:
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, nil, nil, fmt.Errorf("failed to create data dir: %w", err)
		}
		bs, err := store.OpenBoltStore(cfg.BoltPath())
		if err != nil {
			return nil, nil, nil, err
		}
		logger.Info("using bolt store", "path", cfg.BoltPath())
		return bs, nil, func() {
			if err := bs.Close(); err != nil {
				logger.Warn("failed to close bolt store", "error", err)
			}
		}, nil

	case config.BackendRaft:
		node, err := store.NewRaftNode(store.RaftNodeConfig{
			NodeID:    cfg.NodeID,
			Addr:      cfg.RaftAddr,
			DataDir:   cfg.DataDir,
			Bootstrap: cfg.RaftBootstrap,
			Logger:    logger,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		logger.Info("using raft store", "node_id", cfg.NodeID, "raft_addr", cfg.RaftAddr, "bootstrap", cfg.RaftBootstrap)
		return node.Store, node.Raft(), func() {
			if err := node.Close(); err != nil {
				logger.Warn("failed to stop raft", "error", err)
			}
		}, nil
	}
	return nil, nil, nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}
