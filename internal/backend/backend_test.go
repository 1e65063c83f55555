package backend

import (
	"context"
	"path/filepath"
	"testing"

	"envelopes/internal/config"
)

func TestTypeIsValid(t *testing.T) {
	for _, typ := range Types() {
		if !typ.IsValid() {
			t.Errorf("%s should be valid", typ)
		}
	}
	if Type("sheets").IsValid() {
		t.Error("unknown type reported valid")
	}
}

func TestFromAppConfig(t *testing.T) {
	cfg, err := FromAppConfig(&config.Config{
		DataBackend:  "sqlite",
		SQLiteDBPath: "/tmp/x.db",
		AMQPURL:      "amqp://localhost:5672/",
		AMQPExchange: "envelopes",
		AMQPQueue:    "envelope_activity",
	})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Type != SQLiteBackend || cfg.SQLiteDBPath != "/tmp/x.db" {
		t.Fatalf("unexpected config: %+v", cfg)
	}

	if _, err := FromAppConfig(nil); err == nil {
		t.Fatal("nil app config must fail")
	}
	if _, err := FromAppConfig(&config.Config{DataBackend: "mainframe"}); err == nil {
		t.Fatal("unknown backend must fail")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"memory needs nothing", Config{Type: MemoryBackend}, false},
		{"sqlite needs path", Config{Type: SQLiteBackend}, true},
		{"sqlite with path", Config{Type: SQLiteBackend, SQLiteDBPath: "/tmp/x.db"}, false},
		{"postgres needs url", Config{Type: PostgresBackend}, true},
		{"invalid type", Config{Type: "sheets"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("wantErr=%v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestCreateMemoryBackend(t *testing.T) {
	f := NewFactory(nil)
	result, err := f.CreateBackend(context.Background(), Config{Type: MemoryBackend})
	if err != nil {
		t.Fatal(err)
	}
	if result.Store == nil {
		t.Fatal("no store returned")
	}
	if result.Events != nil {
		t.Fatal("events client without AMQP URL")
	}
	if err := result.Cleanup(); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
}

func TestCreateSQLiteBackend(t *testing.T) {
	f := NewFactory(nil)
	result, err := f.CreateBackend(context.Background(), Config{
		Type:         SQLiteBackend,
		SQLiteDBPath: filepath.Join(t.TempDir(), "envelopes.db"),
	})
	if err != nil {
		t.Fatal(err)
	}
	defer result.Cleanup()

	if result.Store == nil {
		t.Fatal("no store returned")
	}
}

func TestCreateBackendRejectsInvalidConfig(t *testing.T) {
	f := NewFactory(nil)
	if _, err := f.CreateBackend(context.Background(), Config{Type: SQLiteBackend}); err == nil {
		t.Fatal("expected validation error")
	}
}
