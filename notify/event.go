// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package notify

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/relabs-tech/sesame/lock"
	"github.com/relabs-tech/sesame/mech"
	"github.com/relabs-tech/sesame/shadow"
)

// EventShadowStatus is the type of shadow status change events
const EventShadowStatus = "shadow-status"

// Event is a shadow status change of a device, as handed to the sinks
type Event struct {
	Type              string        `json:"type"`
	Device            uuid.UUID     `json:"device"`
	Model             string        `json:"model"`
	Shadow            shadow.Status `json:"shadow"`
	BatteryVoltage    float64       `json:"batteryVoltage"`
	BatteryPercentage int           `json:"batteryPercentage"`
	Position          int           `json:"position"`
	IsInLockRange     bool          `json:"isInLockRange"`
	IsInUnlockRange   bool          `json:"isInUnlockRange"`
	Timestamp         time.Time     `json:"timestamp"`
}

// NewEvent returns the event for a status change of d
func NewEvent(d lock.Device, status mech.Status, now time.Time) Event {
	return Event{
		Type:              EventShadowStatus,
		Device:            d.UUID(),
		Model:             d.Model().ID(),
		Shadow:            d.ShadowStatus(),
		BatteryVoltage:    status.BatteryVoltage(),
		BatteryPercentage: status.BatteryPercentage(),
		Position:          status.Position(),
		IsInLockRange:     status.IsInLockRange(),
		IsInUnlockRange:   status.IsInUnlockRange(),
		Timestamp:         now.UTC(),
	}
}

// Key is the partition key of the event, the upper case device UUID
func (e Event) Key() string {
	return strings.ToUpper(e.Device.String())
}
