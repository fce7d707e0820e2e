package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"testing"
	"time"
)

func listen(srv *http.Server) <-chan error {
	serveErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()
	return serveErr
}

func TestWaitForShutdownReturnsListenerFailure(t *testing.T) {
	taken, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer taken.Close()

	srv := &http.Server{Addr: taken.Addr().String(), Handler: http.NotFoundHandler()}
	serveErr := listen(srv)

	done := make(chan error, 1)
	go func() { done <- waitForShutdown(context.Background(), srv, serveErr) }()

	select {
	case err := <-done:
		if err == nil {
			t.Fatalf("expected the bind failure to be returned")
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("waitForShutdown did not return after the listener failed")
	}
}

func TestWaitForShutdownOnSignalIsClean(t *testing.T) {
	srv := &http.Server{Addr: "127.0.0.1:0", Handler: http.NotFoundHandler()}
	serveErr := listen(srv)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := waitForShutdown(ctx, srv, serveErr); err != nil {
		t.Fatalf("expected a clean shutdown, got %v", err)
	}
}
