package database

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/bevanyudira/IPBB-sub000/internal/config"
)

// Test configuration for local PostgreSQL
func getTestConfig() config.DatabaseConfig {
	return config.DatabaseConfig{
		Host:     getEnvOrDefault("DB_HOST", "localhost"),
		Port:     getEnvOrDefault("DB_PORT", "5432"),
		Name:     getEnvOrDefault("DB_NAME", "pbb"),
		User:     getEnvOrDefault("DB_USER", "postgres"),
		Password: getEnvOrDefault("DB_PASSWORD", "postgres"),
		PoolMin:  1,
		PoolMax:  4,
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// skipWithoutDatabase skips integration tests unless DB_INTEGRATION is set.
func skipWithoutDatabase(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	if os.Getenv("DB_INTEGRATION") == "" {
		t.Skip("Skipping integration test: DB_INTEGRATION not set")
	}
}

func TestDSN(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{
		Host: "db", Port: "5433", Name: "pbb", User: "app", Password: "secret",
	})
	want := "postgres://app:secret@db:5433/pbb?sslmode=disable"
	if dsn != want {
		t.Errorf("Expected %s, got %s", want, dsn)
	}
}

func TestNilDatabase(t *testing.T) {
	var db *Database

	if err := db.Ping(context.Background()); err == nil {
		t.Error("Expected ping on nil database to fail")
	}
	if _, err := db.Query(context.Background(), "SELECT 1"); err == nil {
		t.Error("Expected query on nil database to fail")
	}
	if db.Stats() != nil {
		t.Error("Expected nil stats for nil database")
	}

	// Close on nil should not panic
	db.Close()
	(&Database{}).Close()
}

func TestNewPostgresPool_Success(t *testing.T) {
	skipWithoutDatabase(t)

	ctx := context.Background()
	cfg := getTestConfig()

	db, err := NewPostgresPool(ctx, cfg)
	if err != nil {
		t.Fatalf("Failed to create connection pool: %v", err)
	}
	defer db.Close()

	stats := db.Stats()
	if stats == nil {
		t.Fatal("Expected stats to be available")
	}
	if stats.MaxConns() != int32(cfg.PoolMax) {
		t.Errorf("Expected MaxConns %d, got %d", cfg.PoolMax, stats.MaxConns())
	}
}

func TestNewPostgresPool_InvalidHost(t *testing.T) {
	skipWithoutDatabase(t)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	cfg := getTestConfig()
	cfg.Host = "invalid-host-that-does-not-exist"

	if _, err := NewPostgresPool(ctx, cfg); err == nil {
		t.Error("Expected error when connecting to invalid host")
	}
}

func TestPing_AfterClose(t *testing.T) {
	skipWithoutDatabase(t)

	ctx := context.Background()
	db, err := NewPostgresPool(ctx, getTestConfig())
	if err != nil {
		t.Fatalf("Failed to create connection pool: %v", err)
	}

	if err := db.Ping(ctx); err != nil {
		t.Errorf("Ping failed: %v", err)
	}

	db.Close()
	if err := db.Ping(ctx); err == nil {
		t.Error("Expected ping to fail after pool is closed")
	}
}
