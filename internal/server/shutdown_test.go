package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"superstore-dashboard/internal/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func listen(t *testing.T) net.Listener {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	return ln
}

func TestGracefulServer_Serve(t *testing.T) {
	ln := listen(t)
	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})}
	gs := NewGracefulServer(srv, testLogger(), config.ServerConfig{ShutdownTimeout: 5 * time.Second})

	var mu sync.Mutex
	var order []string
	record := func(name string, err error) Hook {
		return func(context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, name)
			return err
		}
	}
	gs.RegisterShutdownHook(record("dataset", nil))
	gs.RegisterShutdownHook(record("cache", errors.New("flush failed")))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- gs.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("Expected status 204, got %d", resp.StatusCode)
	}

	cancel()

	select {
	case err := <-done:
		if err == nil || !strings.Contains(err.Error(), "flush failed") {
			t.Errorf("Expected the hook error to be returned, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancellation")
	}

	mu.Lock()
	defer mu.Unlock()
	if got := strings.Join(order, ","); got != "cache,dataset" {
		t.Errorf("Expected hooks in reverse order cache,dataset, got %s", got)
	}
}

func TestGracefulServer_ServeFailure(t *testing.T) {
	ln := listen(t)
	ln.Close()

	gs := NewGracefulServer(&http.Server{}, testLogger(), config.ServerConfig{})
	ran := false
	gs.RegisterShutdownHook(func(context.Context) error {
		ran = true
		return nil
	})

	err := gs.Serve(context.Background(), ln)
	if err == nil || !strings.Contains(err.Error(), "server failed") {
		t.Errorf("Expected a server failure, got %v", err)
	}
	if !ran {
		t.Error("Expected shutdown hooks to run after a failed serve")
	}
}
