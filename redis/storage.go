package redis

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kbukum/datapipe/logger"
	"github.com/kbukum/datapipe/storage"
)

func init() {
	storage.RegisterFactory(storage.ProviderRedis, func(_ storage.Config, providerCfg any, log *logger.Logger) (storage.Storage, error) {
		c := &Config{}
		if providerCfg != nil {
			pc, ok := providerCfg.(*Config)
			if !ok {
				return nil, fmt.Errorf("redis: expected *redis.Config, got %T", providerCfg)
			}
			c = pc
		}
		client, err := New(*c, log)
		if err != nil {
			return nil, err
		}
		if err := client.Ping(context.Background()); err != nil {
			_ = client.Close()
			return nil, err
		}
		return NewStorage(client, client.cfg.KeyPrefix), nil
	})
}

// Storage implements storage.Storage on Redis. Each object is a string key;
// a hash at <prefix>:index records size and modification time per path, so
// listing needs no SCAN. Writes update both in one MULTI/EXEC.
type Storage struct {
	client *Client
	prefix string
}

// NewStorage creates a storage backend whose keys start with prefix.
func NewStorage(client *Client, prefix string) *Storage {
	return &Storage{client: client, prefix: prefix}
}

func (s *Storage) objectKey(path string) string { return s.prefix + ":obj:" + path }
func (s *Storage) indexKey() string            { return s.prefix + ":index" }

// Upload stores the object and its index entry atomically.
func (s *Storage) Upload(ctx context.Context, path string, reader io.Reader) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Errorf("storage: redis read upload: %w", err)
	}
	meta := strconv.Itoa(len(data)) + ":" + strconv.FormatInt(time.Now().UnixNano(), 10)
	_, err = s.client.rdb.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.Set(ctx, s.objectKey(path), data, 0)
		p.HSet(ctx, s.indexKey(), path, meta)
		return nil
	})
	if err != nil {
		return fmt.Errorf("storage: redis upload: %w", err)
	}
	return nil
}

// Download returns the object at path.
func (s *Storage) Download(ctx context.Context, path string) (io.ReadCloser, error) {
	data, err := s.client.rdb.Get(ctx, s.objectKey(path)).Bytes()
	if err != nil {
		if stderrors.Is(err, goredis.Nil) {
			return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, path)
		}
		return nil, fmt.Errorf("storage: redis download: %w", err)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Delete removes the object and its index entry.
func (s *Storage) Delete(ctx context.Context, path string) error {
	_, err := s.client.rdb.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.Del(ctx, s.objectKey(path))
		p.HDel(ctx, s.indexKey(), path)
		return nil
	})
	if err != nil {
		return fmt.Errorf("storage: redis delete: %w", err)
	}
	return nil
}

// Exists checks whether an object exists at path.
func (s *Storage) Exists(ctx context.Context, path string) (bool, error) {
	n, err := s.client.rdb.Exists(ctx, s.objectKey(path)).Result()
	if err != nil {
		return false, fmt.Errorf("storage: redis exists: %w", err)
	}
	return n > 0, nil
}

// List returns the indexed objects whose path starts with prefix.
func (s *Storage) List(ctx context.Context, prefix string) ([]storage.FileInfo, error) {
	index, err := s.client.rdb.HGetAll(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("storage: redis list: %w", err)
	}
	files := []storage.FileInfo{}
	for path, meta := range index {
		if !strings.HasPrefix(path, prefix) {
			continue
		}
		fi := storage.FileInfo{Path: path}
		if size, mod, ok := strings.Cut(meta, ":"); ok {
			fi.Size, _ = strconv.ParseInt(size, 10, 64)
			if ns, err := strconv.ParseInt(mod, 10, 64); err == nil {
				fi.LastModified = time.Unix(0, ns)
			}
		}
		files = append(files, fi)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// Close closes the client the storage was created with.
func (s *Storage) Close() error {
	return s.client.Close()
}

// compile-time check
var _ storage.Storage = (*Storage)(nil)
