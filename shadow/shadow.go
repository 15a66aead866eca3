// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

/*
Package shadow keeps the assumed lock state of a device.

The cloud reports lock range and unlock range as two independent flags. While the key
turns both can be set, or none. The tracker only moves to Locked or Unlocked when
exactly one flag is set and keeps its state otherwise, so a rotating key never produces
a spurious transition.
*/
package shadow

import (
	"fmt"
	"strings"
	"sync"

	"github.com/goccy/go-json"
)

// Status is the assumed lock state of a device
type Status int

// all shadow states
const (
	Locked Status = iota + 1
	Unlocked
	// Moved is reserved for a key which is neither locked nor unlocked
	Moved
)

var statusNames = map[Status]string{
	Locked:   "locked",
	Unlocked: "unlocked",
	Moved:    "moved",
}

// Valid returns true if s is one of the known states
func (s Status) Valid() bool {
	_, ok := statusNames[s]
	return ok
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown"
}

// ParseStatus returns the status for its name
func ParseStatus(name string) (Status, error) {
	name = strings.ToLower(name)
	for s, n := range statusNames {
		if n == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("%s is not valid shadow status", name)
}

// MarshalJSON is a custom JSON marshaller
func (s Status) MarshalJSON() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%d is not valid shadow status", int(s))
	}
	return json.Marshal(s.String())
}

// UnmarshalJSON is a custom JSON unmarshaller
func (s *Status) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	status, err := ParseStatus(name)
	if err != nil {
		return err
	}
	*s = status
	return nil
}

// Observation is anything reporting the two range flags, typically a mech.Status
type Observation interface {
	IsInLockRange() bool
	IsInUnlockRange() bool
}

// Initial returns the state derived from a first observation
func Initial(o Observation) Status {
	if o.IsInLockRange() {
		return Locked
	}
	return Unlocked
}

// Next returns the state following prev after observing o
func Next(prev Status, o Observation) Status {
	lock, unlock := o.IsInLockRange(), o.IsInUnlockRange()
	switch {
	case lock && !unlock:
		return Locked
	case !lock && unlock:
		return Unlocked
	default:
		return prev
	}
}

// Tracker holds the shadow status of one device. It is safe for concurrent use.
type Tracker struct {
	mu     sync.Mutex
	status Status
}

// NewTracker returns a tracker which has not seen any status yet
func NewTracker() *Tracker {
	return &Tracker{}
}

// Initialized returns true once the tracker holds a status
func (t *Tracker) Initialized() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status != 0
}

// Status returns the current status, or 0 if the tracker was never initialized
func (t *Tracker) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Set sets the status explicitly
func (t *Tracker) Set(s Status) error {
	if !s.Valid() {
		return fmt.Errorf("%d is not valid shadow status", int(s))
	}
	t.mu.Lock()
	t.status = s
	t.mu.Unlock()
	return nil
}

// Observe reconciles an observation, polled or pushed. An uninitialized tracker takes the
// initial status of o and reports no change.
func (t *Tracker) Observe(o Observation) (prev, cur Status, changed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	prev = t.status
	if prev == 0 {
		t.status = Initial(o)
		return prev, t.status, false
	}
	t.status = Next(prev, o)
	return prev, t.status, t.status != prev
}
