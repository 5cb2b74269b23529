package redis

import (
	"context"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/kbukum/datapipe/logger"
	"github.com/kbukum/datapipe/storage"
	"github.com/kbukum/datapipe/storage/storagetest"
)

// newTestClient creates a Client backed by miniredis for testing.
func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mini, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(func() { mini.Close() })

	client, err := New(Config{Addr: mini.Addr()}, logger.Nop())
	if err != nil {
		t.Fatalf("failed to create redis client: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client, mini
}

func TestStorage(t *testing.T) {
	client, _ := newTestClient(t)
	storagetest.Run(t, NewStorage(client, "test"))
}

func TestStorage_KeysArePrefixed(t *testing.T) {
	client, mini := newTestClient(t)
	s := NewStorage(client, "job7")
	if err := s.Upload(context.Background(), "ckpt/a.json", strings.NewReader("{}")); err != nil {
		t.Fatal(err)
	}
	if !mini.Exists("job7:obj:ckpt/a.json") {
		t.Errorf("expected prefixed object key, have %v", mini.Keys())
	}
	if got := mini.HGet("job7:index", "ckpt/a.json"); !strings.HasPrefix(got, "2:") {
		t.Errorf("expected index entry with size 2, got %q", got)
	}
}

func TestClient_PingAndClose(t *testing.T) {
	client, _ := newTestClient(t)
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatal(err)
	}
	if err := client.Close(); err != nil {
		t.Errorf("second Close should be a no-op, got %v", err)
	}
}

func TestFactoryRegistered(t *testing.T) {
	mini, err := miniredis.Run()
	if err != nil {
		t.Fatal(err)
	}
	defer mini.Close()
	s, err := storage.New(storage.Config{Provider: storage.ProviderRedis}, &Config{Addr: mini.Addr()}, logger.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.(*Storage); !ok {
		t.Errorf("expected *redis.Storage, got %T", s)
	}
}

func TestConfig(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	if cfg.Addr != "localhost:6379" || cfg.KeyPrefix != "datapipe" || cfg.PoolSize != 10 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
	cfg.ReadTimeout = "soon"
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "read_timeout") {
		t.Errorf("expected read_timeout error, got %v", err)
	}
}
