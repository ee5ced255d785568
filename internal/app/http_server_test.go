package app

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"

	healthcheck "github.com/vladislavdragonenkov/dailygoods/internal/health"
	"github.com/vladislavdragonenkov/dailygoods/internal/version"
)

func TestOpsMux_Endpoints(t *testing.T) {
	healthHandler := healthcheck.NewHandler(version.GetVersion())
	healthHandler.RegisterChecker("storage", healthcheck.NewSimpleChecker("storage", func(context.Context) error {
		return nil
	}))

	srv := httptest.NewServer(newOpsMux(healthHandler))
	defer srv.Close()

	for _, path := range []string{"/metrics", "/healthz", "/livez", "/readyz"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("failed to get %s: %v", path, err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s returned status %d, expected 200", path, resp.StatusCode)
		}
		if len(body) == 0 {
			t.Errorf("%s should return non-empty response", path)
		}
	}
}

func TestOpsMux_UnhealthyStorage(t *testing.T) {
	healthHandler := healthcheck.NewHandler(version.GetVersion())
	healthHandler.RegisterChecker("storage", healthcheck.NewSimpleChecker("storage", func(context.Context) error {
		return fmt.Errorf("connection refused")
	}))

	srv := httptest.NewServer(newOpsMux(healthHandler))
	defer srv.Close()

	for _, path := range []string{"/healthz", "/readyz"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("failed to get %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusServiceUnavailable {
			t.Errorf("%s returned status %d, expected 503", path, resp.StatusCode)
		}
	}

	resp, err := http.Get(srv.URL + "/livez")
	if err != nil {
		t.Fatalf("failed to get /livez: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("liveness must not depend on storage, got %d", resp.StatusCode)
	}
}

func TestShutdownHTTP_NilServer(_ *testing.T) {
	logger := log.WithField("test", "http-nil")

	// Не должно паниковать
	shutdownHTTP(nil, logger)
}

func TestShutdownHTTP_WithServer(t *testing.T) {
	logger := log.WithField("test", "http-shutdown-func")

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/test", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("test"))
	})

	srv := &http.Server{Handler: mux}
	done := make(chan error, 1)
	go func() { done <- serveHTTP(srv, lis) }()

	url := fmt.Sprintf("http://%s/test", lis.Addr())
	waitForHTTP(t, url)

	shutdownHTTP(srv, logger)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serveHTTP must treat graceful shutdown as success, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop after shutdownHTTP")
	}

	if _, err := http.Get(url); err == nil {
		t.Error("server should be stopped after shutdownHTTP")
	}
}

// findFreePort находит свободный порт для тестов
func findFreePort(t *testing.T) int {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to find free port: %v", err)
	}
	defer listener.Close()

	return listener.Addr().(*net.TCPAddr).Port
}

// waitForHTTP ждёт, пока url начнёт отвечать.
func waitForHTTP(t *testing.T, url string) {
	t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("%s did not become available", url)
}
