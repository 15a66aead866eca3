// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

/*
Package notify fans shadow status changes out to message sinks.

Device callbacks run on the delivery goroutine of the push channel and must not block.
The Dispatcher therefore only queues events. A pool of workers hands them to every
sink, Kafka or SQS. A full queue drops the event and logs it.

Every event carries the serialized logger context of the dispatching goroutine, so the
worker logs under the same request ID.
*/
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/relabs-tech/sesame/core/logger"
	"github.com/relabs-tech/sesame/lock"
	"github.com/relabs-tech/sesame/mech"
)

// QueueLength is the number of events a dispatcher buffers
const QueueLength = 64

// Sink delivers events somewhere
type Sink interface {
	Send(ctx context.Context, event Event, contextData []byte) error
}

// job is a queued event
type job struct {
	event       Event
	contextData []byte
}

// Dispatcher manages a pool of workers delivering events to sinks
type Dispatcher struct {
	size  int
	jobs  chan job
	sinks []Sink
	clock func() time.Time
	wg    sync.WaitGroup
}

// NewDispatcher creates a new dispatcher with size workers
func NewDispatcher(size int, sinks ...Sink) *Dispatcher {
	if size < 1 {
		size = 1
	}
	return &Dispatcher{
		size:  size,
		jobs:  make(chan job, QueueLength),
		sinks: sinks,
		clock: time.Now,
	}
}

// Start launches the worker goroutines. They stop when ctx is done.
func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.size; i++ {
		d.wg.Add(1)
		go d.worker(ctx, i)
	}
}

// Wait blocks until all workers have stopped
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) worker(ctx context.Context, id int) {
	defer d.wg.Done()
	logger.Default().Debugf("notify worker %d started", id)
	for {
		select {
		case j := <-d.jobs:
			d.deliver(j)
		case <-ctx.Done():
			logger.Default().Debugf("notify worker %d shutting down", id)
			return
		}
	}
}

// deliver hands one event to every sink in a panic/recover envelope
func (d *Dispatcher) deliver(j job) {
	ctx := logger.ContextWithLoggerFromData(context.Background(), j.contextData)
	rlog := logger.FromContext(ctx)
	for _, sink := range d.sinks {
		err := func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("recovered from panic: %v", r)
				}
			}()
			return sink.Send(ctx, j.event, j.contextData)
		}()
		if err != nil {
			rlog.WithError(err).Errorf("cannot deliver %s event of %s to %T", j.event.Type, j.event.Key(), sink)
			continue
		}
		rlog.Debugf("delivered %s event of %s to %T", j.event.Type, j.event.Key(), sink)
	}
}

// Dispatch queues an event. It never blocks and returns false if the queue is full.
func (d *Dispatcher) Dispatch(ctx context.Context, event Event) bool {
	select {
	case d.jobs <- job{event: event, contextData: logger.SerializeLoggerContext(ctx)}:
		return true
	default:
		logger.FromContext(ctx).Warnf("notify queue full, dropping %s event of %s", event.Type, event.Key())
		return false
	}
}

// Jobs returns the number of queued events
func (d *Dispatcher) Jobs() int {
	return len(d.jobs)
}

// Callback returns a device callback which dispatches every shadow status change
func (d *Dispatcher) Callback() lock.Callback {
	return func(device lock.Device, status mech.Status) {
		event := NewEvent(device, status, d.clock())
		ctx, _ := logger.ContextWithDevice(context.Background(), event.Key())
		d.Dispatch(ctx, event)
	}
}
