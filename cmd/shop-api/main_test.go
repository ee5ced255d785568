package main

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "sqlite")

	err := run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "unsupported storage driver") {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("HTTP_ADDR", "127.0.0.1:0")
	t.Setenv("METRICS_ADDR", "127.0.0.1:0")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("RABBITMQ_URL", "")
	t.Setenv("REDIS_ADDR", "")

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	if err := run(ctx); err != nil && !strings.Contains(err.Error(), "deadline") {
		t.Fatalf("unexpected error: %v", err)
	}
}
