package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"slices"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"superstore-dashboard/internal/config"
)

const defaultShutdownTimeout = 30 * time.Second

// Hook releases a resource after the HTTP server has stopped accepting
// requests.
type Hook func(ctx context.Context) error

// GracefulServer runs an http.Server until its context ends, drains open
// requests (SSE streams included) and then runs the shutdown hooks in
// reverse registration order.
type GracefulServer struct {
	server *http.Server
	logger *slog.Logger
	cfg    config.ServerConfig

	mu    sync.Mutex
	hooks []Hook
}

func NewGracefulServer(server *http.Server, logger *slog.Logger, cfg config.ServerConfig) *GracefulServer {
	return &GracefulServer{
		server: server,
		logger: logger,
		cfg:    cfg,
	}
}

func (gs *GracefulServer) RegisterShutdownHook(fn Hook) {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	gs.hooks = append(gs.hooks, fn)
}

// ListenAndServe serves on the server's address until SIGINT or SIGTERM.
func (gs *GracefulServer) ListenAndServe() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", gs.server.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", gs.server.Addr, err)
	}
	return gs.Serve(ctx, ln)
}

// Serve accepts on ln until ctx is done or serving fails. Either way the
// server is shut down and every hook runs before Serve returns.
func (gs *GracefulServer) Serve(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		gs.logger.Info("starting server",
			"addr", ln.Addr().String(),
			"read_timeout", gs.cfg.ReadTimeout,
			"write_timeout", gs.cfg.WriteTimeout,
		)
		if err := gs.server.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		gs.logger.Info("shutdown requested", "cause", context.Cause(gctx))

		timeout := gs.cfg.ShutdownTimeout
		if timeout <= 0 {
			timeout = defaultShutdownTimeout
		}
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()

		return gs.shutdown(shutdownCtx)
	})

	return g.Wait()
}

func (gs *GracefulServer) shutdown(ctx context.Context) error {
	start := time.Now()
	var errs []error

	if err := gs.server.Shutdown(ctx); err != nil {
		gs.logger.Error("HTTP server shutdown failed", "error", err)
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}

	gs.mu.Lock()
	hooks := slices.Clone(gs.hooks)
	gs.mu.Unlock()

	for i, hook := range slices.Backward(hooks) {
		if err := hook(ctx); err != nil {
			gs.logger.Error("shutdown hook failed", "hook_index", i, "error", err)
			errs = append(errs, fmt.Errorf("shutdown hook %d: %w", i, err))
		}
	}

	gs.logger.Info("graceful shutdown completed", "duration", time.Since(start), "hooks", len(hooks))
	return errors.Join(errs...)
}
