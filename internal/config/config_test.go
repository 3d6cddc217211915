package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultApplies(t *testing.T) {
	cfg := Default()
	if cfg.SwarmEventBufferSize != 16 {
		t.Fatalf("expected default buffer size 16, got %d", cfg.SwarmEventBufferSize)
	}
	if cfg.SwarmEventTimeoutMS != 200 {
		t.Fatalf("expected default timeout 200ms, got %d", cfg.SwarmEventTimeoutMS)
	}
	if cfg.Messaging.Timeout().Seconds() != 20 {
		t.Fatalf("expected default messaging timeout 20s, got %s", cfg.Messaging.Timeout())
	}
	if cfg.Advertise.QueryTimeout().Seconds() != 10 {
		t.Fatalf("expected default advertise query timeout 10s, got %s", cfg.Advertise.QueryTimeout())
	}
	if cfg.Blob.ChunkSizeBytes != 16*1024 {
		t.Fatalf("expected default chunk size 16KiB, got %d", cfg.Blob.ChunkSizeBytes)
	}
}

func TestRoundDownToMultipleOf4(t *testing.T) {
	cases := map[int]int{1: 4, 4: 4, 5: 4, 7: 4, 8: 8, 15: 12, 16: 16, 17: 16}
	for in, want := range cases {
		if got := roundDownToMultipleOf4(in); got != want {
			t.Errorf("roundDownToMultipleOf4(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestLoadParsesYAMLAndFillsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "swarm.yaml")
	const contents = `
identity_path: "./identity.key"
listen_addresses:
  - "/ip4/0.0.0.0/tcp/0"
swarm_event_buffer_size: 10
blob:
  chunk_size_bytes: 4096
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("writing config fixture: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.IdentityPath != "./identity.key" {
		t.Fatalf("unexpected identity path %q", cfg.IdentityPath)
	}
	if len(cfg.ListenAddresses) != 1 || cfg.ListenAddresses[0] != "/ip4/0.0.0.0/tcp/0" {
		t.Fatalf("unexpected listen addresses %v", cfg.ListenAddresses)
	}
	if cfg.SwarmEventBufferSize != 8 {
		t.Fatalf("expected 10 rounded down to 8, got %d", cfg.SwarmEventBufferSize)
	}
	if cfg.Blob.ChunkSizeBytes != 4096 {
		t.Fatalf("expected configured chunk size to survive defaulting, got %d", cfg.Blob.ChunkSizeBytes)
	}
	if cfg.Messaging.TimeoutMS != 20_000 {
		t.Fatalf("expected default messaging timeout to be applied, got %d", cfg.Messaging.TimeoutMS)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
