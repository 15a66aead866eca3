// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

/*
Package lock provides the SESAME devices.

A device wires the status codec, the command signer and the shadow status tracker to the
cloud collaborators:

  - a core.CommandChannel sends signed commands and reads history, and by default also
    the mechanical status
  - an optional core.StatusReader replaces the status source, e.g. the IoT data plane
  - an optional core.PushChannel delivers shadow updates for Subscribe

Construction fetches the mechanical status once to initialize the shadow status. Every
later fetch resynchronizes it. Push updates are reconciled: a status reporting both or
neither range keeps the previous shadow status, and the callback only fires on a change.

Commands never return errors. Failures are logged and reported as false.
*/
package lock

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/relabs-tech/sesame/core"
	"github.com/relabs-tech/sesame/core/logger"
	"github.com/relabs-tech/sesame/core/schema"
	"github.com/relabs-tech/sesame/history"
	"github.com/relabs-tech/sesame/iot"
	"github.com/relabs-tech/sesame/mech"
	"github.com/relabs-tech/sesame/product"
	"github.com/relabs-tech/sesame/shadow"
	"github.com/relabs-tech/sesame/sign"
)

// DefaultHistoryTag is recorded in the device history when no tag is given
const DefaultHistoryTag = "sesame"

// Callback is called when a push update changes the shadow status of a device. It runs
// on the delivery goroutine of the push channel and must return quickly.
type Callback func(d Device, status mech.Status)

// Device is the behaviour common to all devices
type Device interface {
	UUID() uuid.UUID
	Model() product.Model
	MechStatus(ctx context.Context) (mech.Status, error)
	History(ctx context.Context, page, pageSize int) ([]history.Entry, error)
	Subscribe(ctx context.Context, callback Callback) error
	ShadowStatus() shadow.Status
	SetShadowStatus(status shadow.Status) error
	String() string
}

// Builder is a builder helper for devices
type Builder struct {
	// Cloud sends commands. This is mandatory.
	Cloud core.CommandChannel
	// Status fetches the mechanical status. Defaults to Cloud.
	Status core.StatusReader
	// Push delivers shadow updates. Without it Subscribe is not supported.
	Push core.PushChannel
	// DeviceUUID is the UUID of the device. This is mandatory.
	DeviceUUID string
	// SecretKey is the hex encoded 16 byte secret key. This is mandatory.
	SecretKey string
	// Model defaults to product.SS2
	Model product.Model
	// Policy is the optimistic update policy
	Policy OptimisticPolicy
	// HistoryTag defaults to DefaultHistoryTag
	HistoryTag string
	// Clock defaults to time.Now
	Clock func() time.Time
	// Validator checks push payloads. Defaults to the embedded schemas.
	Validator *schema.Validator
}

// device implements Device
type device struct {
	self       Device
	cloud      core.CommandChannel
	status     core.StatusReader
	push       core.PushChannel
	id         uuid.UUID
	key        sign.Key
	model      product.Model
	class      mech.Class
	policy     OptimisticPolicy
	historyTag []byte
	clock      func() time.Time
	validator  *schema.Validator
	tracker    *shadow.Tracker

	mu       sync.Mutex
	callback Callback
	last     mech.Status
}

// NewDevice returns the device implementation matching the model
func NewDevice(ctx context.Context, b *Builder) (Device, error) {
	model := b.Model
	if model == (product.Model{}) {
		model = product.SS2
	}
	kind, err := model.Kind()
	if err != nil {
		return nil, err
	}
	switch kind {
	case product.KindBot:
		return NewBot(ctx, b)
	default:
		return NewSesame2(ctx, b)
	}
}

func newDevice(b *Builder, want product.Kind) (*device, error) {
	if b.Cloud == nil {
		panic("cloud is missing")
	}
	id, err := uuid.Parse(b.DeviceUUID)
	if err != nil {
		return nil, fmt.Errorf("invalid device UUID %q: %w", b.DeviceUUID, err)
	}
	key, err := sign.ParseKey(b.SecretKey)
	if err != nil {
		return nil, err
	}
	model := b.Model
	if model == (product.Model{}) {
		model = product.SS2
	}
	kind, err := model.Kind()
	if err != nil {
		return nil, err
	}
	if kind != want {
		return nil, fmt.Errorf("model %s is not a %s", model, want)
	}

	d := &device{
		cloud:      b.Cloud,
		status:     b.Status,
		push:       b.Push,
		id:         id,
		key:        key,
		model:      model,
		class:      mech.Lock,
		policy:     b.Policy,
		historyTag: []byte(b.HistoryTag),
		clock:      b.Clock,
		validator:  b.Validator,
		tracker:    shadow.NewTracker(),
	}
	if kind == product.KindBot {
		d.class = mech.Bot
	}
	if d.status == nil {
		d.status = b.Cloud
	}
	if len(d.historyTag) == 0 {
		d.historyTag = []byte(DefaultHistoryTag)
	}
	if d.clock == nil {
		d.clock = time.Now
	}
	if d.validator == nil {
		d.validator = schema.Default()
	}
	return d, nil
}

// initialize performs the initial status fetch
func (d *device) initialize(ctx context.Context, self Device) error {
	d.self = self
	ctx, rlog := d.context(ctx)
	if _, err := d.MechStatus(ctx); err != nil {
		return fmt.Errorf("initial status of %s: %w", d.id, err)
	}
	rlog.Debugf("initialized %s", self)
	return nil
}

func (d *device) context(ctx context.Context) (context.Context, *logrus.Entry) {
	return logger.ContextWithDevice(ctx, strings.ToUpper(d.id.String()))
}

// UUID returns the device UUID
func (d *device) UUID() uuid.UUID { return d.id }

// Model returns the product model
func (d *device) Model() product.Model { return d.model }

// MechStatus fetches the mechanical status and reconciles the shadow status with it like
// a pushed update. A change fires the subscribed callback.
func (d *device) MechStatus(ctx context.Context) (mech.Status, error) {
	ctx, rlog := d.context(ctx)
	raw, err := d.status.FetchStatus(ctx, d.id)
	if err != nil {
		return nil, err
	}
	status, err := mech.Decode(d.class, raw)
	if err != nil {
		return nil, err
	}
	rlog.Debugf("mechStatus=%s", status)
	d.setLast(status)
	d.reconcile(rlog, status)
	return status, nil
}

// History returns one page of the device history, newest first
func (d *device) History(ctx context.Context, page, pageSize int) ([]history.Entry, error) {
	ctx, _ = d.context(ctx)
	return d.cloud.History(ctx, d.id, page, pageSize)
}

// ShadowStatus returns the cached shadow status
func (d *device) ShadowStatus() shadow.Status {
	return d.tracker.Status()
}

// SetShadowStatus sets the shadow status
func (d *device) SetShadowStatus(status shadow.Status) error {
	return d.tracker.Set(status)
}

// LastMechStatus returns the last mechanical status fetched or pushed, or nil
func (d *device) LastMechStatus() mech.Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}

func (d *device) setLast(status mech.Status) {
	d.mu.Lock()
	d.last = status
	d.mu.Unlock()
}

// Subscribe registers callback for shadow status changes pushed by the cloud. It fails
// with core.ErrNotSupported when the device has no push channel.
func (d *device) Subscribe(ctx context.Context, callback Callback) error {
	if d.push == nil {
		return core.ErrNotSupported
	}
	ctx, rlog := d.context(ctx)
	d.mu.Lock()
	d.callback = callback
	d.mu.Unlock()

	if !d.tracker.Initialized() {
		if _, err := d.MechStatus(ctx); err != nil {
			return err
		}
	}
	if err := d.push.Connect(ctx); err != nil {
		return fmt.Errorf("cannot connect push channel: %w", err)
	}
	topic := iot.ShadowTopic(d.id)
	if err := d.push.Subscribe(ctx, topic, d.onShadowUpdate); err != nil {
		return err
	}
	rlog.Infoln("subscribed to", topic)
	return nil
}

// onShadowUpdate reconciles a pushed shadow document. Nothing escapes into the delivery
// goroutine of the push channel.
func (d *device) onShadowUpdate(topic string, payload []byte) {
	_, rlog := d.context(context.Background())
	defer func() {
		if r := recover(); r != nil {
			rlog.Errorf("shadow update panicked: %v", r)
		}
	}()

	if err := d.validator.ValidateBytes(payload, schema.ShadowID); err != nil {
		rlog.WithError(err).Warnln("invalid shadow update")
		return
	}
	mechst, err := iot.ParseShadow(payload)
	if err != nil {
		rlog.WithError(err).Infoln("shadow updated without mechanical status")
		return
	}
	status, err := mech.DecodeHex(d.class, mechst)
	if err != nil {
		rlog.WithError(err).Warnln("invalid mechanical status in shadow update")
		return
	}
	d.setLast(status)
	rlog.Debugf("reported mechst=%s", status)
	d.reconcile(rlog, status)
}

// reconcile applies an observation to the tracker and calls the callback on a change
func (d *device) reconcile(rlog *logrus.Entry, status mech.Status) {
	prev, cur, changed := d.tracker.Observe(status)
	if !changed {
		rlog.Debugf("callback not triggered, shadow status stays %s", cur)
		return
	}
	rlog.Infof("shadow status %s -> %s", prev, cur)

	d.mu.Lock()
	callback := d.callback
	d.mu.Unlock()
	if callback == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			rlog.Errorf("shadow callback panicked: %v", r)
		}
	}()
	callback(d.self, status)
}

// send sends one command. Errors are logged and reported as false.
func (d *device) send(ctx context.Context, cmd core.Command, historyTag string) bool {
	ctx, rlog := d.context(ctx)
	tag := d.historyTag
	if historyTag != "" {
		tag = []byte(historyTag)
	}
	rlog.Infof("%s...", cmd)
	err := d.cloud.SendCommand(ctx, core.CommandRequest{
		Device:     d.id,
		Command:    cmd,
		HistoryTag: tag,
		Key:        d.key,
		Time:       d.clock(),
	})
	if err != nil {
		rlog.WithError(err).Errorf("%s failed", cmd)
		return false
	}
	return true
}

// optimistic sets the shadow status after a successful command, if the policy says so
func (d *device) optimistic(status shadow.Status) {
	if d.policy.applies(d.push != nil) {
		_ = d.tracker.Set(status)
	}
}

func (d *device) describe(name string) string {
	last := "unknown"
	if status := d.LastMechStatus(); status != nil {
		last = status.String()
	}
	return fmt.Sprintf("%s(deviceUUID=%s, deviceModel=%s, mechStatus=%s)",
		name, strings.ToUpper(d.id.String()), d.model, last)
}
