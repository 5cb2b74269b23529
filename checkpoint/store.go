package checkpoint

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kbukum/datapipe/encryption"
	"github.com/kbukum/datapipe/errors"
	"github.com/kbukum/datapipe/logger"
	"github.com/kbukum/datapipe/observability"
	"github.com/kbukum/datapipe/pipeline"
	"github.com/kbukum/datapipe/storage"
	"github.com/kbukum/datapipe/validation"
)

const timeLayout = "20060102T150405.000000000Z"

// Entry describes one stored checkpoint.
type Entry struct {
	ID        string
	CreatedAt time.Time
	Key       string
	Size      int64
}

// Store saves and loads checkpoints through a storage backend.
type Store struct {
	objects storage.ByteClient
	cfg     Config
	sealer  encryption.Sealer
	log     *logger.Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithSealer encrypts checkpoints before upload and authenticates them on
// load. The checkpoint id is bound as additional data.
func WithSealer(s encryption.Sealer) StoreOption {
	return func(st *Store) { st.sealer = s }
}

// NewStore creates a store writing to backend.
func NewStore(backend storage.Storage, cfg Config, opts ...StoreOption) *Store {
	cfg.ApplyDefaults()
	s := &Store{
		objects: storage.NewByteClient(backend),
		cfg:     cfg,
		log:     logger.Get("checkpoint"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) key(cp *pipeline.Checkpoint) string {
	return fmt.Sprintf("%s/%s_%s.json", s.cfg.Prefix, cp.CreatedAt.UTC().Format(timeLayout), cp.ID)
}

// parseKey recovers the entry of a key written by Save.
func (s *Store) parseKey(fi storage.FileInfo) (Entry, bool) {
	name, ok := strings.CutPrefix(fi.Path, s.cfg.Prefix+"/")
	if !ok || strings.Contains(name, "/") {
		return Entry{}, false
	}
	name, ok = strings.CutSuffix(name, ".json")
	if !ok {
		return Entry{}, false
	}
	stamp, id, ok := strings.Cut(name, "_")
	if !ok {
		return Entry{}, false
	}
	created, err := time.Parse(timeLayout, stamp)
	if err != nil {
		return Entry{}, false
	}
	return Entry{ID: id, CreatedAt: created, Key: fi.Path, Size: fi.Size}, true
}

// Save writes cp and prunes checkpoints beyond Keep.
func (s *Store) Save(ctx context.Context, cp *pipeline.Checkpoint) error {
	ctx, span := observability.StartSpan(ctx, observability.SpanCheckpointSave)
	defer span.End()
	start := time.Now()

	data, err := cp.Marshal()
	if err != nil {
		observability.SetSpanError(ctx, err)
		return errors.CheckpointCorrupt("encode checkpoint", err)
	}
	if s.sealer != nil {
		if data, err = s.sealer.Seal(data, []byte(cp.ID)); err != nil {
			observability.SetSpanError(ctx, err)
			return fmt.Errorf("checkpoint: seal %s: %w", cp.ID, err)
		}
	}
	key := s.key(cp)
	observability.SetSpanAttribute(ctx, observability.AttrCheckpointID, cp.ID)
	if err := s.objects.Upload(ctx, key, data); err != nil {
		observability.SetSpanError(ctx, err)
		return fmt.Errorf("checkpoint: save %s: %w", cp.ID, err)
	}
	s.log.Info("checkpoint saved", logger.Fields(
		logger.FieldCheckpointID, cp.ID,
		"key", key,
		"bytes", len(data),
		logger.FieldDuration, time.Since(start).Milliseconds(),
	))
	return s.prune(ctx)
}

// List returns the stored checkpoints, oldest first.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	files, err := s.objects.List(ctx, s.cfg.Prefix+"/")
	if err != nil {
		return nil, fmt.Errorf("checkpoint: list: %w", err)
	}
	entries := make([]Entry, 0, len(files))
	for _, fi := range files {
		if e, ok := s.parseKey(fi); ok {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

// Load reads the checkpoint with the given id.
func (s *Store) Load(ctx context.Context, id string) (*pipeline.Checkpoint, error) {
	if _, err := validation.ValidateUUID("checkpoint_id", id); err != nil {
		return nil, errors.CheckpointNotFound(id).WithCause(err)
	}
	entries, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.ID == id {
			return s.read(ctx, e)
		}
	}
	return nil, errors.CheckpointNotFound(id)
}

// Latest reads the most recent checkpoint.
func (s *Store) Latest(ctx context.Context) (*pipeline.Checkpoint, error) {
	entries, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, errors.CheckpointNotFound("latest")
	}
	return s.read(ctx, entries[len(entries)-1])
}

// Delete removes the checkpoint with the given id, if stored.
func (s *Store) Delete(ctx context.Context, id string) error {
	entries, err := s.List(ctx)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.ID == id {
			return s.objects.Delete(ctx, e.Key)
		}
	}
	return nil
}

// Resume restores an iterator of p from the latest checkpoint, or starts
// a fresh one when none is stored.
func (s *Store) Resume(ctx context.Context, p *pipeline.Pipeline, opts ...pipeline.Option) (*pipeline.Iterator, error) {
	cp, err := s.Latest(ctx)
	if err != nil {
		if pe, ok := errors.AsPipelineError(err); ok && pe.Code == errors.ErrCodeCheckpointNotFound {
			s.log.Info("no checkpoint stored, starting from the beginning", logger.Fields("prefix", s.cfg.Prefix))
			return p.Iter(ctx, opts...), nil
		}
		return nil, err
	}
	return p.Restore(ctx, cp, opts...)
}

func (s *Store) read(ctx context.Context, e Entry) (*pipeline.Checkpoint, error) {
	ctx, span := observability.StartSpan(ctx, observability.SpanCheckpointLoad)
	defer span.End()
	observability.SetSpanAttribute(ctx, observability.AttrCheckpointID, e.ID)

	data, err := s.objects.Download(ctx, e.Key)
	if err != nil {
		observability.SetSpanError(ctx, err)
		if storage.IsNotFound(err) {
			return nil, errors.CheckpointNotFound(e.ID).WithCause(err)
		}
		return nil, fmt.Errorf("checkpoint: load %s: %w", e.ID, err)
	}
	if s.sealer != nil {
		if data, err = s.sealer.Open(data, []byte(e.ID)); err != nil {
			observability.SetSpanError(ctx, err)
			return nil, errors.CheckpointCorrupt(fmt.Sprintf("open sealed object %s", e.Key), err)
		}
	}
	cp, err := pipeline.UnmarshalCheckpoint(data)
	if err != nil {
		observability.SetSpanError(ctx, err)
		return nil, err
	}
	if cp.ID != e.ID {
		return nil, errors.CheckpointCorrupt(fmt.Sprintf("object %s holds checkpoint %s", e.Key, cp.ID), nil)
	}
	return cp, nil
}

func (s *Store) prune(ctx context.Context) error {
	if s.cfg.Keep <= 0 {
		return nil
	}
	entries, err := s.List(ctx)
	if err != nil {
		return err
	}
	for len(entries) > s.cfg.Keep {
		if err := s.objects.Delete(ctx, entries[0].Key); err != nil {
			return fmt.Errorf("checkpoint: prune %s: %w", entries[0].ID, err)
		}
		s.log.Debug("checkpoint pruned", logger.Fields(logger.FieldCheckpointID, entries[0].ID))
		entries = entries[1:]
	}
	return nil
}
