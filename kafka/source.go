package kafka

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/kbukum/datapipe/errors"
	"github.com/kbukum/datapipe/logger"
	"github.com/kbukum/datapipe/pipeline"
	"github.com/kbukum/datapipe/resilience"
	"github.com/kbukum/datapipe/source"
)

// partitionReader is the part of kafka.Reader a partition handle uses.
type partitionReader interface {
	ReadMessage(ctx context.Context) (kafkago.Message, error)
	SetOffset(offset int64) error
	Stats() kafkago.ReaderStats
	Close() error
}

// opener connects to the partition and reports its first offset and
// high-water mark.
type opener func(ctx context.Context) (r partitionReader, first, last int64, err error)

// Partition is a record source over one topic partition. Records are
// Message values.
type Partition struct {
	cfg  Config
	log  *logger.Logger
	open opener
}

// NewPartition creates a source reading the partition named by cfg.
func NewPartition(cfg Config) *Partition {
	cfg.ApplyDefaults()
	p := &Partition{cfg: cfg, log: logger.Get("kafka")}
	p.open = p.dial
	return p
}

// Describe implements pipeline.RecordSource.
func (p *Partition) Describe() string {
	return fmt.Sprintf("kafka(%s/%d)", p.cfg.Topic, p.cfg.Partition)
}

// Validate implements pipeline.SourceValidator.
func (p *Partition) Validate() error {
	if err := p.cfg.Validate(); err != nil {
		return errors.Configuration("kafka", err.Error())
	}
	return nil
}

// Retrying wraps the partition so that connection failures re-open it and
// seek back to the failed offset.
func (p *Partition) Retrying(cfg resilience.RetryConfig) pipeline.RecordSource {
	if cfg.RetryIf == nil {
		cfg.RetryIf = IsRetryableError
	}
	return source.WithRetry(p, cfg)
}

// Open implements pipeline.RecordSource.
func (p *Partition) Open(ctx context.Context) (pipeline.SourceHandle, error) {
	r, first, last, err := p.open(ctx)
	if err != nil {
		return nil, err
	}
	start := first
	if p.cfg.StartOffset > first {
		start = min(p.cfg.StartOffset, last)
	}
	if err := r.SetOffset(start); err != nil {
		_ = r.Close()
		return nil, fmt.Errorf("set offset %d: %w", start, err)
	}
	p.log.Debug("kafka partition opened", logger.Fields(
		logger.FieldSource, p.Describe(),
		"first", first,
		"start", start,
		"high_water", last,
	))
	return &partitionHandle{
		src:     p,
		r:       r,
		first:   first,
		next:    start,
		end:     last,
		timeout: ParseDuration(p.cfg.ReadTimeout),
	}, nil
}

func (p *Partition) dial(ctx context.Context) (partitionReader, int64, int64, error) {
	dialer, err := CreateDialer(&p.cfg)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("kafka dialer: %w", err)
	}
	conn, err := dialer.DialLeader(ctx, "tcp", p.cfg.Brokers[0], p.cfg.Topic, p.cfg.Partition)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("dial leader of %s: %w", p.Describe(), err)
	}
	first, last, err := conn.ReadOffsets()
	_ = conn.Close()
	if err != nil {
		return nil, 0, 0, fmt.Errorf("read offsets of %s: %w", p.Describe(), err)
	}

	klog := p.log.WithComponent("kafka.reader")
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:   p.cfg.Brokers,
		Topic:     p.cfg.Topic,
		Partition: p.cfg.Partition,
		Dialer:    dialer,
		MinBytes:  1,
		MaxBytes:  p.cfg.MaxBytes,
		ErrorLogger: kafkago.LoggerFunc(func(msg string, args ...interface{}) {
			klog.Error("reader: "+fmt.Sprintf(msg, args...), logger.Fields(logger.FieldSource, p.Describe()))
		}),
	})
	return reader, first, last, nil
}

type partitionHandle struct {
	src     *Partition
	r       partitionReader
	first   int64
	next    int64
	end     int64
	timeout time.Duration
}

func (h *partitionHandle) Next(ctx context.Context) (pipeline.Record, bool, error) {
	if h.next >= h.end {
		return nil, false, nil
	}
	rctx := ctx
	if h.timeout > 0 {
		var cancel context.CancelFunc
		rctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}
	msg, err := h.r.ReadMessage(rctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		return nil, false, fmt.Errorf("read %s at offset %d: %w", h.src.Describe(), h.next, err)
	}
	if msg.Offset >= h.end {
		// Compaction removed everything up to the high-water mark.
		h.next = h.end
		return nil, false, nil
	}
	h.next = msg.Offset + 1
	return FromKafkaMessage(msg), true, nil
}

func (h *partitionHandle) Close() error {
	h.src.log.Debug("kafka partition closed", logger.Merge(
		logger.Fields(logger.FieldSource, h.src.Describe()),
		CollectReaderMetrics(h.r.Stats()).Fields(),
	))
	return h.r.Close()
}

// Position encodes the next offset and the high-water mark, so a restored
// handle stops where the original would have.
func (h *partitionHandle) Position() ([]byte, error) {
	buf := binary.BigEndian.AppendUint64(nil, uint64(h.next))
	return binary.BigEndian.AppendUint64(buf, uint64(h.end)), nil
}

func (h *partitionHandle) Seek(_ context.Context, token []byte) error {
	if len(token) != 16 {
		return fmt.Errorf("kafka position must be 16 bytes, got %d", len(token))
	}
	next := int64(binary.BigEndian.Uint64(token[:8]))
	end := int64(binary.BigEndian.Uint64(token[8:]))
	if next < h.first || next > end {
		return fmt.Errorf("offset %d outside the retained range [%d, %d]", next, h.first, end)
	}
	if err := h.r.SetOffset(next); err != nil {
		return err
	}
	h.next = next
	h.end = end
	return nil
}
