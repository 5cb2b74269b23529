package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/kbukum/datapipe/errors"
	"github.com/kbukum/datapipe/pipeline"
)

// Message is the record yielded by a partition source.
type Message struct {
	Key       string            `json:"key"`
	Value     []byte            `json:"value"`
	Topic     string            `json:"topic"`
	Partition int               `json:"partition"`
	Offset    int64             `json:"offset"`
	Timestamp time.Time         `json:"timestamp"`
	Headers   map[string]string `json:"headers,omitempty"`
}

func init() {
	pipeline.RegisterRecordType(Message{})
}

// FromKafkaMessage converts a kafka-go Message to a Message record.
func FromKafkaMessage(msg kafkago.Message) Message {
	var headers map[string]string
	if len(msg.Headers) > 0 {
		headers = make(map[string]string, len(msg.Headers))
		for _, h := range msg.Headers {
			headers[h.Key] = string(h.Value)
		}
	}
	return Message{
		Key:       string(msg.Key),
		Value:     msg.Value,
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Timestamp: msg.Time,
		Headers:   headers,
	}
}

// DecodeJSON returns a map function that decodes the value of a Message
// record into T. A value that is not valid JSON is a corrupt record.
func DecodeJSON[T any]() pipeline.MapFunc {
	return pipeline.MapOf(func(_ context.Context, m Message) (T, error) {
		var v T
		if err := json.Unmarshal(m.Value, &v); err != nil {
			return v, errors.RecordCorrupt("", errors.NoPosition,
				fmt.Errorf("%s/%d@%d: %w", m.Topic, m.Partition, m.Offset, err))
		}
		return v, nil
	})
}
