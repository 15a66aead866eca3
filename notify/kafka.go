// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package notify

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/segmentio/kafka-go"
)

// ContextHeader carries the serialized logger context
const ContextHeader = "logger-context"

// MessageWriter is the part of kafka.Writer used here
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

var _ MessageWriter = (*kafka.Writer)(nil)

// KafkaSink publishes events to a Kafka topic, keyed by device
type KafkaSink struct {
	writer MessageWriter
}

var _ Sink = (*KafkaSink)(nil)

// NewKafkaSink returns a sink writing to topic on brokers
func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	return &KafkaSink{writer: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}}
}

// NewKafkaSinkWithWriter returns a sink writing to w
func NewKafkaSinkWithWriter(w MessageWriter) *KafkaSink {
	return &KafkaSink{writer: w}
}

// Send implements Sink
func (s *KafkaSink) Send(ctx context.Context, event Event, contextData []byte) error {
	value, err := json.Marshal(event)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:     []byte(event.Key()),
		Value:   value,
		Time:    event.Timestamp,
		Headers: []kafka.Header{{Key: ContextHeader, Value: contextData}},
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka: %w", err)
	}
	return nil
}

// Close closes the underlying writer if it can be closed
func (s *KafkaSink) Close() error {
	if c, ok := s.writer.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
