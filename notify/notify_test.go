// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/sesame/core/logger"
	"github.com/relabs-tech/sesame/history"
	"github.com/relabs-tech/sesame/lock"
	"github.com/relabs-tech/sesame/mech"
	"github.com/relabs-tech/sesame/product"
	"github.com/relabs-tech/sesame/shadow"
)

var deviceID = uuid.MustParse("126d3d66-9222-4e5a-bcde-0c6629d48d43")

// fakeDevice is a lock.Device
type fakeDevice struct {
	status shadow.Status
}

func (f *fakeDevice) UUID() uuid.UUID { return deviceID }

func (f *fakeDevice) Model() product.Model { return product.SS4 }

func (f *fakeDevice) ShadowStatus() shadow.Status { return f.status }

func (f *fakeDevice) String() string { return "fake" }

func (f *fakeDevice) MechStatus(ctx context.Context) (mech.Status, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeDevice) History(ctx context.Context, page, pageSize int) ([]history.Entry, error) {
	return nil, nil
}

func (f *fakeDevice) Subscribe(ctx context.Context, callback lock.Callback) error {
	return nil
}

func (f *fakeDevice) SetShadowStatus(status shadow.Status) error {
	f.status = status
	return nil
}

var _ lock.Device = (*fakeDevice)(nil)

// recordingSink collects delivered events
type recordingSink struct {
	mu     sync.Mutex
	events []Event
	data   [][]byte
	err    error
	panics bool
	done   chan struct{}
}

func newRecordingSink() *recordingSink {
	return &recordingSink{done: make(chan struct{}, 10)}
}

func (r *recordingSink) Send(ctx context.Context, event Event, contextData []byte) error {
	defer func() { r.done <- struct{}{} }()
	if r.panics {
		panic("sink failure")
	}
	r.mu.Lock()
	r.events = append(r.events, event)
	r.data = append(r.data, contextData)
	r.mu.Unlock()
	return r.err
}

func (r *recordingSink) wait(t *testing.T) {
	select {
	case <-r.done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delivery")
	}
}

func unlockedStatus() mech.Status {
	return mech.Encode(mech.Lock, mech.Values{BatteryVoltage: 5.87, Position: 11, UnlockRange: true})
}

func TestNewEvent(t *testing.T) {
	now := time.Date(2021, 6, 7, 8, 33, 20, 0, time.UTC)
	e := NewEvent(&fakeDevice{status: shadow.Unlocked}, unlockedStatus(), now)
	assert.Equal(t, EventShadowStatus, e.Type)
	assert.Equal(t, deviceID, e.Device)
	assert.Equal(t, "sesame_4", e.Model)
	assert.Equal(t, shadow.Unlocked, e.Shadow)
	assert.Equal(t, 11, e.Position)
	assert.True(t, e.IsInUnlockRange)
	assert.False(t, e.IsInLockRange)
	assert.Equal(t, "126D3D66-9222-4E5A-BCDE-0C6629D48D43", e.Key())

	data, err := json.Marshal(e)
	require.NoError(t, err)
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, "unlocked", m["shadow"])
	assert.Equal(t, "126d3d66-9222-4e5a-bcde-0c6629d48d43", m["device"])
}

func TestDispatcher_Dispatch(t *testing.T) {
	d := NewDispatcher(1)
	for i := 0; i < QueueLength; i++ {
		require.True(t, d.Dispatch(context.Background(), Event{Device: deviceID}))
	}
	assert.Equal(t, QueueLength, d.Jobs())
	assert.False(t, d.Dispatch(context.Background(), Event{Device: deviceID}))
}

func TestDispatcher_Deliver(t *testing.T) {
	failing := newRecordingSink()
	failing.err = errors.New("broker down")
	panicking := newRecordingSink()
	panicking.panics = true
	sink := newRecordingSink()
	d := NewDispatcher(2, failing, panicking, sink)

	ctx, cancel := context.WithCancel(context.Background())
	d.Start(ctx)

	lctx, _ := logger.ContextWithDevice(context.Background(), "126D3D66-9222-4E5A-BCDE-0C6629D48D43")
	requestID := logger.RequestIDFromContext(lctx)
	require.True(t, d.Dispatch(lctx, Event{Type: EventShadowStatus, Device: deviceID}))
	sink.wait(t)

	cancel()
	d.Wait()

	require.Len(t, sink.events, 1)
	assert.Equal(t, deviceID, sink.events[0].Device)
	restored := logger.ContextWithLoggerFromData(context.Background(), sink.data[0])
	assert.Equal(t, requestID, logger.RequestIDFromContext(restored))
	assert.Len(t, failing.events, 1)
}

func TestDispatcher_Callback(t *testing.T) {
	sink := newRecordingSink()
	d := NewDispatcher(1, sink)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	callback := d.Callback()
	callback(&fakeDevice{status: shadow.Unlocked}, unlockedStatus())
	sink.wait(t)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Len(t, sink.events, 1)
	assert.Equal(t, shadow.Unlocked, sink.events[0].Shadow)
	assert.NotEqual(t, "{}", string(sink.data[0]))
}

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	f.msgs = append(f.msgs, msgs...)
	return f.err
}

func TestKafkaSink(t *testing.T) {
	w := &fakeWriter{}
	s := NewKafkaSinkWithWriter(w)
	now := time.Date(2021, 6, 7, 8, 33, 20, 0, time.UTC)
	event := NewEvent(&fakeDevice{status: shadow.Unlocked}, unlockedStatus(), now)

	require.NoError(t, s.Send(context.Background(), event, []byte(`{"requestID":"abc"}`)))
	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "126D3D66-9222-4E5A-BCDE-0C6629D48D43", string(msg.Key))
	assert.Equal(t, now, msg.Time)
	assert.Equal(t, []kafka.Header{{Key: ContextHeader, Value: []byte(`{"requestID":"abc"}`)}}, msg.Headers)

	var decoded Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, event.Device, decoded.Device)
	assert.Equal(t, shadow.Unlocked, decoded.Shadow)

	w.err = errors.New("leader not available")
	assert.ErrorContains(t, s.Send(context.Background(), event, nil), "kafka: leader not available")
	assert.NoError(t, s.Close())
}

type fakeSQS struct {
	input *sqs.SendMessageInput
	err   error
}

func (f *fakeSQS) SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &sqs.SendMessageOutput{MessageId: aws.String("1")}, nil
}

func TestSQSSink(t *testing.T) {
	fake := &fakeSQS{}
	s := NewSQSSink(fake, "https://sqs.ap-northeast-1.amazonaws.com/123456789012/sesame")
	event := NewEvent(&fakeDevice{status: shadow.Locked}, unlockedStatus(), time.Now())

	require.NoError(t, s.Send(context.Background(), event, []byte(`{}`)))
	assert.Equal(t, "https://sqs.ap-northeast-1.amazonaws.com/123456789012/sesame", aws.ToString(fake.input.QueueUrl))
	assert.Equal(t, EventShadowStatus, aws.ToString(fake.input.MessageAttributes["type"].StringValue))
	assert.Equal(t, event.Key(), aws.ToString(fake.input.MessageAttributes["device"].StringValue))

	var decoded Event
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(fake.input.MessageBody)), &decoded))
	assert.Equal(t, shadow.Locked, decoded.Shadow)

	fake.err = errors.New("AccessDenied")
	assert.ErrorContains(t, s.Send(context.Background(), event, nil), "AccessDenied")
}

type fakePublisher struct {
	topic   string
	payload []byte
}

func (f *fakePublisher) PublishMessageQ1(topic string, payload []byte) {
	f.topic = topic
	f.payload = payload
}

func TestPublisherSink(t *testing.T) {
	fake := &fakePublisher{}
	s := NewPublisherSink(fake, "")
	event := NewEvent(&fakeDevice{status: shadow.Locked}, unlockedStatus(), time.Now())

	require.NoError(t, s.Send(context.Background(), event, nil))
	assert.Equal(t, "sesame/status/126D3D66-9222-4E5A-BCDE-0C6629D48D43", fake.topic)
	var decoded Event
	require.NoError(t, json.Unmarshal(fake.payload, &decoded))
	assert.Equal(t, shadow.Locked, decoded.Shadow)

	assert.Equal(t, "home/126D3D66-9222-4E5A-BCDE-0C6629D48D43", NewPublisherSink(fake, "home/").Topic(event.Key()))
}
