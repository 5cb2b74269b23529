package database

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kbukum/datapipe/logger"
	"github.com/kbukum/datapipe/storage"
	"github.com/kbukum/datapipe/storage/storagetest"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), Config{DSN: filepath.Join(t.TempDir(), "test.db"), LogLevel: "silent"}, logger.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestStorage(t *testing.T) {
	s, err := NewStorage(context.Background(), newTestDB(t))
	if err != nil {
		t.Fatal(err)
	}
	storagetest.Run(t, s)
}

func TestStorage_ListPrefixIsLiteral(t *testing.T) {
	ctx := context.Background()
	s, err := NewStorage(ctx, newTestDB(t))
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range []string{"a_b/1", "axb/2", "a%/3", "époque/4", "époque/5", "eté/6"} {
		if err := s.Upload(ctx, p, strings.NewReader("x")); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		prefix string
		want   []string
	}{
		{"a_b/", []string{"a_b/1"}},
		{"a%", []string{"a%/3"}},
		{"époque/", []string{"époque/4", "époque/5"}},
		{"é", []string{"époque/4", "époque/5"}},
		{"eté/", []string{"eté/6"}},
	}
	for _, tc := range tests {
		t.Run(tc.prefix, func(t *testing.T) {
			files, err := s.List(ctx, tc.prefix)
			if err != nil {
				t.Fatal(err)
			}
			var got []string
			for _, f := range files {
				got = append(got, f.Path)
			}
			if strings.Join(got, ",") != strings.Join(tc.want, ",") {
				t.Errorf("List(%q) = %v, want %v", tc.prefix, got, tc.want)
			}
		})
	}
}

func TestFactoryRegistered(t *testing.T) {
	cfg := &Config{DSN: filepath.Join(t.TempDir(), "f.db"), LogLevel: "silent"}
	s, err := storage.New(storage.Config{Provider: storage.ProviderSQL}, cfg, logger.Nop())
	if err != nil {
		t.Fatal(err)
	}
	sql, ok := s.(*Storage)
	if !ok {
		t.Fatalf("expected *database.Storage, got %T", s)
	}
	if err := sql.Close(); err != nil {
		t.Error(err)
	}
}

func TestConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"idle above open", func(c *Config) { c.MaxIdleConns = 5 }, "max_idle_conns"},
		{"bad lifetime", func(c *Config) { c.ConnMaxLifetime = "forever" }, "conn_max_lifetime"},
		{"bad log level", func(c *Config) { c.LogLevel = "chatty" }, "log_level"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var cfg Config
			cfg.ApplyDefaults()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		msg  string
		want bool
	}{
		{"dial tcp: connection refused", true},
		{"database is locked", true},
		{"no such table: objects", false},
	}
	for _, tc := range tests {
		if got := IsRetryableError(errString(tc.msg)); got != tc.want {
			t.Errorf("IsRetryableError(%q) = %v, want %v", tc.msg, got, tc.want)
		}
	}
	if IsRetryableError(nil) {
		t.Error("nil is not retryable")
	}
}

type errString string

func (e errString) Error() string { return string(e) }
