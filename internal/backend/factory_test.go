package backend

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"envelopes/internal/config"
)

func TestCreateBackend(t *testing.T) {
	f := NewFactory(nil)
	ctx := context.Background()

	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{name: "memory", cfg: Config{Type: MemoryBackend}},
		{name: "sqlite", cfg: Config{Type: SQLiteBackend, SQLiteDBPath: filepath.Join(t.TempDir(), "ledger.db")}},
		{name: "sqlite without path", cfg: Config{Type: SQLiteBackend}, wantErr: ErrMissingDBPath},
		{name: "unknown", cfg: Config{Type: "sheets"}, wantErr: ErrUnknownBackend},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := f.CreateBackend(ctx, tt.cfg)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("CreateBackend() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("CreateBackend: %v", err)
			}
			defer res.Cleanup()
			if err := res.Store.Ping(ctx); err != nil {
				t.Fatalf("Ping: %v", err)
			}
		})
	}
}

func TestFromAppConfig(t *testing.T) {
	if _, err := FromAppConfig(nil); err == nil {
		t.Fatalf("expected error for nil config")
	}
	cfg, err := FromAppConfig(&config.Config{DataBackend: "memory"})
	if err != nil || cfg.Type != MemoryBackend {
		t.Fatalf("FromAppConfig() = %+v, %v", cfg, err)
	}
	if _, err := FromAppConfig(&config.Config{DataBackend: "nope"}); !errors.Is(err, ErrUnknownBackend) {
		t.Fatalf("FromAppConfig(nope) error = %v, want ErrUnknownBackend", err)
	}
	if got := GetBackendTypes(); len(got) != 2 || got[0] != SQLiteBackend {
		t.Fatalf("GetBackendTypes() = %v", got)
	}
}
