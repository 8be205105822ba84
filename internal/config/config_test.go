package config

import (
	"strings"
	"testing"
)

func TestLoadWithOptions_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("SYNC_WORKERS", "")
	t.Setenv("ENCRYPTION_KEY", "")

	cfg, err := LoadWithOptions(LoadOptions{RequireDatabaseURL: false})
	if err != nil {
		t.Fatalf("LoadWithOptions() error = %v", err)
	}
	if cfg.HTTPAddr != defaultHTTPAddr {
		t.Fatalf("HTTPAddr = %q, want %q", cfg.HTTPAddr, defaultHTTPAddr)
	}
	if cfg.SyncWorkers != defaultSyncWorkers {
		t.Fatalf("SyncWorkers = %d, want %d", cfg.SyncWorkers, defaultSyncWorkers)
	}
	if cfg.EncryptionKey != nil {
		t.Fatalf("EncryptionKey = %v, want nil", cfg.EncryptionKey)
	}
}

func TestLoadWithOptions_RequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	if _, err := LoadWithOptions(LoadOptions{RequireDatabaseURL: true}); err == nil {
		t.Fatal("expected error for missing DATABASE_URL")
	}
}

func TestLoadWithOptions_ParsesEncryptionKey(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("ENCRYPTION_KEY", strings.Repeat("ab", 32))

	cfg, err := LoadWithOptions(LoadOptions{RequireDatabaseURL: false})
	if err != nil {
		t.Fatalf("LoadWithOptions() error = %v", err)
	}
	if len(cfg.EncryptionKey) != 32 {
		t.Fatalf("EncryptionKey length = %d, want 32", len(cfg.EncryptionKey))
	}
}

func TestLoadWithOptions_RejectsBadEncryptionKey(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	t.Setenv("ENCRYPTION_KEY", "not-hex")
	if _, err := LoadWithOptions(LoadOptions{RequireDatabaseURL: false}); err == nil {
		t.Fatal("expected error for non-hex key")
	}

	t.Setenv("ENCRYPTION_KEY", "abcd")
	if _, err := LoadWithOptions(LoadOptions{RequireDatabaseURL: false}); err == nil {
		t.Fatal("expected error for short key")
	}
}

func TestLoadWithOptions_ClampsSyncWorkers(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("ENCRYPTION_KEY", "")

	t.Setenv("SYNC_WORKERS", "0")
	cfg, err := LoadWithOptions(LoadOptions{RequireDatabaseURL: false})
	if err != nil {
		t.Fatalf("LoadWithOptions() error = %v", err)
	}
	if cfg.SyncWorkers != defaultSyncWorkers {
		t.Fatalf("SyncWorkers = %d, want default %d", cfg.SyncWorkers, defaultSyncWorkers)
	}

	t.Setenv("SYNC_WORKERS", "8")
	cfg, err = LoadWithOptions(LoadOptions{RequireDatabaseURL: false})
	if err != nil {
		t.Fatalf("LoadWithOptions() error = %v", err)
	}
	if cfg.SyncWorkers != 8 {
		t.Fatalf("SyncWorkers = %d, want 8", cfg.SyncWorkers)
	}
}
