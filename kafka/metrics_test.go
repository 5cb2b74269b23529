package kafka

import (
	"testing"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/kbukum/datapipe/logger"
)

func TestCollectReaderMetrics(t *testing.T) {
	m := CollectReaderMetrics(kafkago.ReaderStats{
		Dials:    1,
		Fetches:  4,
		Messages: 100,
		Bytes:    2048,
		Errors:   2,
		Offset:   99,
		Lag:      5,
	})
	if m.Dials != 1 || m.Fetches != 4 || m.Messages != 100 || m.Bytes != 2048 || m.Errors != 2 || m.Offset != 99 || m.Lag != 5 {
		t.Errorf("unexpected metrics %+v", m)
	}
	f := m.Fields()
	if f[logger.FieldRecords] != int64(100) || f["lag"] != int64(5) {
		t.Errorf("unexpected fields %v", f)
	}
}
