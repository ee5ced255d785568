package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	log "github.com/sirupsen/logrus"

	healthcheck "github.com/vladislavdragonenkov/dailygoods/internal/health"
)

func TestRun_MemoryGracefulShutdown(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HTTPAddr = "127.0.0.1:0"
	cfg.MetricsAddr = "127.0.0.1:0"
	cfg.StorageDriver = StorageDriverMemory

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(150 * time.Millisecond)
		cancel()
	}()

	err := Run(ctx, cfg)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRun_ServesAPIAndOps(t *testing.T) {
	redisServer := miniredis.RunT(t)

	cfg := DefaultConfig()
	cfg.HTTPAddr = fmt.Sprintf("127.0.0.1:%d", findFreePort(t))
	cfg.MetricsAddr = fmt.Sprintf("127.0.0.1:%d", findFreePort(t))
	cfg.RedisAddr = redisServer.Addr()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- Run(ctx, cfg) }()

	healthURL := fmt.Sprintf("http://%s/health", cfg.HTTPAddr)
	waitForHTTP(t, healthURL)

	resp, err := http.Get(healthURL)
	if err != nil {
		t.Fatalf("get /health: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "Server is running") {
		t.Fatalf("unexpected /health response: %d %s", resp.StatusCode, body)
	}

	readyURL := fmt.Sprintf("http://%s/readyz", cfg.MetricsAddr)
	waitForHTTP(t, readyURL)
	resp, err = http.Get(readyURL)
	if err != nil {
		t.Fatalf("get /readyz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected ready service, got %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancellation")
	}
}

func TestRun_InvalidStorageDriver(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StorageDriver = "invalid-driver"
	cfg.HTTPAddr = "127.0.0.1:0"
	cfg.MetricsAddr = "127.0.0.1:0"

	err := Run(context.Background(), cfg)
	if err == nil || !strings.Contains(err.Error(), "unsupported storage driver") {
		t.Fatalf("expected unsupported storage driver error, got %v", err)
	}
}

func TestRun_AddressInUse(t *testing.T) {
	port := findFreePort(t)
	blocker := &http.Server{Addr: fmt.Sprintf("127.0.0.1:%d", port)}
	go func() { _ = blocker.ListenAndServe() }()
	defer shutdownHTTP(blocker, log.WithField("test", "blocker"))
	waitForHTTP(t, fmt.Sprintf("http://127.0.0.1:%d/", port))

	cfg := DefaultConfig()
	cfg.HTTPAddr = fmt.Sprintf("127.0.0.1:%d", port)
	cfg.MetricsAddr = "127.0.0.1:0"

	err := Run(context.Background(), cfg)
	if err == nil || !strings.Contains(err.Error(), "listen api") {
		t.Fatalf("expected listen error, got %v", err)
	}
}

func TestInitRuntimeDependencies_PostgresSuccess(t *testing.T) {
	dsn := postgresTestDSNCandidate()
	if dsn == "" {
		t.Skip("postgres dsn is not available")
	}

	cfg := DefaultConfig()
	cfg.StorageDriver = StorageDriverPostgres
	cfg.PostgresDSN = dsn
	cfg.PostgresAutoMigrate = true

	deps, err := initRuntimeDependencies(context.Background(), cfg, log.WithField("test", "postgres-init"))
	if err != nil {
		t.Skipf("postgres is not available for app integration test: %v", err)
	}
	defer deps.close(log.WithField("test", "postgres-init"))

	if deps.products == nil || deps.users == nil || deps.carts == nil || deps.orders == nil || deps.outbox == nil {
		t.Fatalf("postgres dependencies must be initialized: %+v", deps)
	}
	check := deps.storageChecker.Check(context.Background())
	if check.Status != healthcheck.StatusHealthy {
		t.Fatalf("expected healthy storage checker, got %+v", check)
	}
}

func TestInitRuntimeDependencies_MongoSuccess(t *testing.T) {
	uri := strings.TrimSpace(os.Getenv("MONGODB_TEST_URI"))
	if uri == "" {
		t.Skip("mongo uri is not available")
	}

	cfg := DefaultConfig()
	cfg.StorageDriver = StorageDriverMongo
	cfg.MongoURI = uri
	cfg.MongoDatabase = fmt.Sprintf("dailygoods_app_test_%d", time.Now().UnixNano())

	deps, err := initRuntimeDependencies(context.Background(), cfg, log.WithField("test", "mongo-init"))
	if err != nil {
		t.Skipf("mongo is not available for app integration test: %v", err)
	}
	defer deps.close(log.WithField("test", "mongo-init"))

	check := deps.storageChecker.Check(context.Background())
	if check.Status != healthcheck.StatusHealthy {
		t.Fatalf("expected healthy storage checker, got %+v", check)
	}
}

func postgresTestDSNCandidate() string {
	return strings.TrimSpace(os.Getenv("POSTGRES_TEST_DSN"))
}
