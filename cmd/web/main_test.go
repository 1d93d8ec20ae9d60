package main

import (
	"testing"
	"time"

	"github.com/linguadesk/translator/internal/platform/config"
)

func TestBuildInfoFromEnvDefaults(t *testing.T) {
	started := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	info := buildInfoFromEnv(map[string]string{}, config.Config{}, started)

	if info.Version != "dev" || info.CommitSHA != "unknown" || info.Environment != "local" {
		t.Fatalf("unexpected defaults: %+v", info)
	}
	if !info.StartedAt.Equal(started) {
		t.Fatalf("expected started at %s, got %s", started, info.StartedAt)
	}
}

func TestBuildInfoFromEnvValues(t *testing.T) {
	cfg := config.Config{Server: config.ServerConfig{Environment: "prod"}}
	env := map[string]string{
		"LINGUA_BUILD_VERSION":    " 1.4.0 ",
		"LINGUA_BUILD_COMMIT_SHA": "abc123",
	}

	info := buildInfoFromEnv(env, cfg, time.Now())

	if info.Version != "1.4.0" || info.CommitSHA != "abc123" || info.Environment != "prod" {
		t.Fatalf("unexpected build info: %+v", info)
	}
}
