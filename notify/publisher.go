// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package notify

import (
	"context"

	"github.com/goccy/go-json"

	"github.com/relabs-tech/sesame/iot"
)

// PublisherSink republishes events on an MQTT broker, one topic per device
type PublisherSink struct {
	publisher iot.MessagePublisher
	prefix    string
}

var _ Sink = (*PublisherSink)(nil)

// NewPublisherSink returns a sink publishing to prefix + device. An empty prefix means
// iot.StatusTopicPrefix.
func NewPublisherSink(publisher iot.MessagePublisher, prefix string) *PublisherSink {
	if prefix == "" {
		prefix = iot.StatusTopicPrefix
	}
	return &PublisherSink{publisher: publisher, prefix: prefix}
}

// Topic returns the topic for events of the device with key
func (s *PublisherSink) Topic(key string) string {
	return s.prefix + key
}

// Send implements Sink. The logger context is not forwarded, MQTT 3.1.1 has no headers.
func (s *PublisherSink) Send(ctx context.Context, event Event, contextData []byte) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	s.publisher.PublishMessageQ1(s.Topic(event.Key()), payload)
	return nil
}
