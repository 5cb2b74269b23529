package source

import (
	"context"
	"fmt"
	"io"

	"github.com/kbukum/datapipe/errors"
	"github.com/kbukum/datapipe/pipeline"
	"github.com/kbukum/datapipe/storage"
)

// Object is the record yielded by an object source.
type Object struct {
	Key  string
	Data []byte
}

func init() {
	pipeline.RegisterRecordType(Object{})
}

// Objects reads every object stored under a prefix, in key order. The
// keys are listed when a handle opens; an object deleted afterwards
// yields a record error.
type Objects struct {
	store  storage.Storage
	prefix string
}

// ReadObjects returns a source over the objects of store under prefix.
func ReadObjects(store storage.Storage, prefix string) *Objects {
	return &Objects{store: store, prefix: prefix}
}

// Describe implements pipeline.RecordSource.
func (o *Objects) Describe() string {
	return fmt.Sprintf("read_objects(%s)", o.prefix)
}

// Validate implements pipeline.SourceValidator.
func (o *Objects) Validate() error {
	if o.store == nil {
		return errors.Configuration("read_objects", "storage must not be nil")
	}
	return nil
}

// Open implements pipeline.RecordSource.
func (o *Objects) Open(ctx context.Context) (pipeline.SourceHandle, error) {
	files, err := o.store.List(ctx, o.prefix)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", o.prefix, err)
	}
	keys := make([]string, len(files))
	for i, f := range files {
		keys[i] = f.Path
	}
	return &objectsHandle{store: o.store, keys: keys}, nil
}

type objectsHandle struct {
	store storage.Storage
	keys  []string
	pos   int
}

func (h *objectsHandle) Next(ctx context.Context) (pipeline.Record, bool, error) {
	if h.pos >= len(h.keys) {
		return nil, false, nil
	}
	key := h.keys[h.pos]
	h.pos++
	rc, err := h.store.Download(ctx, key)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, false, errors.Record("", errors.NoPosition, fmt.Errorf("object %s: %w", key, err))
		}
		return nil, false, fmt.Errorf("download %s: %w", key, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", key, err)
	}
	return Object{Key: key, Data: data}, true, nil
}

func (h *objectsHandle) Close() error { return nil }

func (h *objectsHandle) Position() ([]byte, error) { return encodeIndex(int64(h.pos)), nil }

func (h *objectsHandle) Seek(_ context.Context, token []byte) error {
	pos, err := decodeIndex(token, int64(len(h.keys)))
	if err != nil {
		return err
	}
	h.pos = int(pos)
	return nil
}
