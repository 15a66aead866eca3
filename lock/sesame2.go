// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package lock

import (
	"context"

	"github.com/relabs-tech/sesame/core"
	"github.com/relabs-tech/sesame/product"
	"github.com/relabs-tech/sesame/shadow"
)

// Sesame2 is a SESAME 3 or SESAME 4 smart lock
type Sesame2 struct {
	*device
}

var _ Device = (*Sesame2)(nil)

// NewSesame2 returns a new lock. It fetches the mechanical status once to initialize
// the shadow status.
func NewSesame2(ctx context.Context, b *Builder) (*Sesame2, error) {
	d, err := newDevice(b, product.KindSesame2)
	if err != nil {
		return nil, err
	}
	s := &Sesame2{device: d}
	if err := d.initialize(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// Lock locks the device. An empty historyTag records the default tag.
func (s *Sesame2) Lock(ctx context.Context, historyTag string) bool {
	if !s.send(ctx, core.CommandLock, historyTag) {
		return false
	}
	s.optimistic(shadow.Locked)
	return true
}

// Unlock unlocks the device. An empty historyTag records the default tag.
func (s *Sesame2) Unlock(ctx context.Context, historyTag string) bool {
	if !s.send(ctx, core.CommandUnlock, historyTag) {
		return false
	}
	s.optimistic(shadow.Unlocked)
	return true
}

// Toggle unlocks a locked device and locks it otherwise, judged by the shadow status
func (s *Sesame2) Toggle(ctx context.Context, historyTag string) bool {
	if s.ShadowStatus() == shadow.Locked {
		return s.Unlock(ctx, historyTag)
	}
	return s.Lock(ctx, historyTag)
}

func (s *Sesame2) String() string {
	return s.describe(product.KindSesame2.String())
}
