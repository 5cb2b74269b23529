package kafka

import (
	kafkago "github.com/segmentio/kafka-go"

	"github.com/kbukum/datapipe/logger"
)

// ReaderMetrics summarizes the work of one partition reader.
type ReaderMetrics struct {
	Dials    int64 `json:"dials"`
	Fetches  int64 `json:"fetches"`
	Messages int64 `json:"messages"`
	Bytes    int64 `json:"bytes"`
	Errors   int64 `json:"errors"`
	Offset   int64 `json:"offset"`
	Lag      int64 `json:"lag"`
}

// CollectReaderMetrics extracts structured metrics from kafka.ReaderStats.
func CollectReaderMetrics(stats kafkago.ReaderStats) ReaderMetrics {
	return ReaderMetrics{
		Dials:    stats.Dials,
		Fetches:  stats.Fetches,
		Messages: stats.Messages,
		Bytes:    stats.Bytes,
		Errors:   stats.Errors,
		Offset:   stats.Offset,
		Lag:      stats.Lag,
	}
}

// Fields returns the metrics as log fields.
func (m ReaderMetrics) Fields() map[string]interface{} {
	return logger.Fields(
		"dials", m.Dials,
		"fetches", m.Fetches,
		logger.FieldRecords, m.Messages,
		"bytes", m.Bytes,
		"errors", m.Errors,
		"offset", m.Offset,
		"lag", m.Lag,
	)
}
