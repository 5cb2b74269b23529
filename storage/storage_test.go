package storage_test

import (
	"context"
	"strings"
	"testing"

	"github.com/kbukum/datapipe/logger"
	"github.com/kbukum/datapipe/storage"
	"github.com/kbukum/datapipe/storage/storagetest"
)

func TestMemory(t *testing.T) {
	storagetest.Run(t, storage.NewMemory())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     storage.Config
		wantErr string
	}{
		{"memory", storage.Config{Provider: "memory"}, ""},
		{"local", storage.Config{Provider: "local", BasePath: "/tmp/x"}, ""},
		{"local without path", storage.Config{Provider: "local"}, "base_path is required"},
		{"s3 without bucket", storage.Config{Provider: "s3", Region: "eu-west-1"}, "bucket is required"},
		{"unknown", storage.Config{Provider: "ftp"}, "unsupported provider"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
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

func TestConfigApplyDefaults(t *testing.T) {
	var cfg storage.Config
	cfg.ApplyDefaults()
	if cfg.Provider != storage.ProviderLocal || cfg.BasePath == "" || cfg.Region != storage.DefaultRegion {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestNew(t *testing.T) {
	s, err := storage.New(storage.Config{Provider: storage.ProviderMemory}, nil, logger.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.(*storage.Memory); !ok {
		t.Errorf("expected *storage.Memory, got %T", s)
	}
	if _, err := storage.New(storage.Config{Provider: storage.ProviderRedis}, nil, logger.Nop()); err == nil {
		t.Error("expected an error for a provider whose package is not linked")
	}
}

func TestByteClient(t *testing.T) {
	ctx := context.Background()
	c := storage.NewByteClient(storage.NewMemory())
	if err := c.Upload(ctx, "k", []byte("payload")); err != nil {
		t.Fatal(err)
	}
	got, err := c.Download(ctx, "k")
	if err != nil || string(got) != "payload" {
		t.Fatalf("Download = %q, %v", got, err)
	}
	if _, err := c.Download(ctx, "nope"); !storage.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
}
