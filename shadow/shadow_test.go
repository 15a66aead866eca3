// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package shadow

import (
	"sync"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ranges struct{ lock, unlock bool }

func (r ranges) IsInLockRange() bool   { return r.lock }
func (r ranges) IsInUnlockRange() bool { return r.unlock }

var (
	locked   = ranges{lock: true}
	unlocked = ranges{unlock: true}
	both     = ranges{lock: true, unlock: true}
	neither  = ranges{}
)

func TestNext(t *testing.T) {
	testCases := []struct {
		name string
		prev Status
		o    ranges
		want Status
	}{
		{"lock only", Unlocked, locked, Locked},
		{"unlock only", Locked, unlocked, Unlocked},
		{"both keeps locked", Locked, both, Locked},
		{"both keeps unlocked", Unlocked, both, Unlocked},
		{"neither keeps locked", Locked, neither, Locked},
		{"neither keeps unlocked", Unlocked, neither, Unlocked},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Next(tc.prev, tc.o))
		})
	}
}

func TestInitial(t *testing.T) {
	assert.Equal(t, Locked, Initial(locked))
	assert.Equal(t, Locked, Initial(both))
	assert.Equal(t, Unlocked, Initial(unlocked))
	assert.Equal(t, Unlocked, Initial(neither))
}

func TestTracker_ChangesExactlyOnce(t *testing.T) {
	tr := NewTracker()
	assert.False(t, tr.Initialized())
	tr.Observe(locked)

	var transitions [][2]Status
	for _, o := range []ranges{locked, both, unlocked} {
		if prev, cur, changed := tr.Observe(o); changed {
			transitions = append(transitions, [2]Status{prev, cur})
		}
	}
	assert.Equal(t, [][2]Status{{Locked, Unlocked}}, transitions)

	require.NoError(t, tr.Set(Unlocked))
	changes := 0
	for _, o := range []ranges{unlocked, both, neither, unlocked} {
		if _, _, changed := tr.Observe(o); changed {
			changes++
		}
	}
	assert.Equal(t, 0, changes)
}

func TestTracker_ObserveInitializes(t *testing.T) {
	tr := NewTracker()
	prev, cur, changed := tr.Observe(locked)
	assert.Equal(t, Status(0), prev)
	assert.Equal(t, Locked, cur)
	assert.False(t, changed)
	assert.True(t, tr.Initialized())

	prev, cur, changed = tr.Observe(unlocked)
	assert.Equal(t, Locked, prev)
	assert.Equal(t, Unlocked, cur)
	assert.True(t, changed)
}

func TestTracker_Set(t *testing.T) {
	tr := NewTracker()
	require.NoError(t, tr.Set(Moved))
	assert.Equal(t, Moved, tr.Status())
	assert.Error(t, tr.Set(Status(42)))
	assert.Equal(t, Moved, tr.Status())
}

func TestTracker_Concurrent(t *testing.T) {
	tr := NewTracker()
	tr.Observe(locked)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				tr.Observe(locked)
			} else {
				tr.Observe(unlocked)
			}
			_ = tr.Status()
		}(i)
	}
	wg.Wait()
	assert.True(t, tr.Status() == Locked || tr.Status() == Unlocked)
}

func TestStatus_JSON(t *testing.T) {
	data, err := json.Marshal(Locked)
	require.NoError(t, err)
	assert.Equal(t, `"locked"`, string(data))

	var s Status
	require.NoError(t, json.Unmarshal([]byte(`"Unlocked"`), &s))
	assert.Equal(t, Unlocked, s)
	assert.Error(t, json.Unmarshal([]byte(`"ajar"`), &s))

	_, err = json.Marshal(Status(0))
	assert.Error(t, err)
}
