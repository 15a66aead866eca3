// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

// Package history decodes the event log the cloud keeps for every device.
package history

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// EventType is the kind of a history event
type EventType int

// all known event types
const (
	Unknown                EventType = -1
	None                   EventType = 0
	BLELock                EventType = 1
	BLEUnlock              EventType = 2
	TimeChanged            EventType = 3
	AutoLockUpdated        EventType = 4
	MechSettingUpdated     EventType = 5
	AutoLock               EventType = 6
	ManualLocked           EventType = 7
	ManualUnlocked         EventType = 8
	ManualElse             EventType = 9
	DriveLocked            EventType = 10
	DriveUnlocked          EventType = 11
	DriveFailed            EventType = 12
	BLEAdvParameterUpdated EventType = 13
	WM2Lock                EventType = 14
	WM2Unlock              EventType = 15
	WebLock                EventType = 16
	WebUnlock              EventType = 17
)

var eventTypeNames = map[EventType]string{
	Unknown:                "unknown",
	None:                   "none",
	BLELock:                "bleLock",
	BLEUnlock:              "bleUnLock",
	TimeChanged:            "timeChanged",
	AutoLockUpdated:        "autoLockUpdated",
	MechSettingUpdated:     "mechSettingUpdated",
	AutoLock:               "autoLock",
	ManualLocked:           "manualLocked",
	ManualUnlocked:         "manualUnlocked",
	ManualElse:             "manualElse",
	DriveLocked:            "driveLocked",
	DriveUnlocked:          "driveUnlocked",
	DriveFailed:            "driveFailed",
	BLEAdvParameterUpdated: "bleAdvParameterUpdated",
	WM2Lock:                "wm2Lock",
	WM2Unlock:              "wm2UnLock",
	WebLock:                "webLock",
	WebUnlock:              "webUnLock",
}

// ParseEventType maps a wire value to its event type. Values the cloud may add in the
// future map to Unknown.
func ParseEventType(v int) EventType {
	t := EventType(v)
	if _, ok := eventTypeNames[t]; !ok || t == Unknown {
		return Unknown
	}
	return t
}

func (t EventType) String() string {
	if name, ok := eventTypeNames[t]; ok {
		return name
	}
	return eventTypeNames[Unknown]
}

// TimeFormat is the layout of timestamps in Map
const TimeFormat = "2006/01/02 15:04:05"

// Entry is one event of a device
type Entry struct {
	RecordID  int64
	Type      EventType
	RawType   int
	Timestamp time.Time
	// Tag is the history tag of the key which triggered the event, if any
	Tag       []byte
	DevicePk  *string
	Parameter json.RawMessage
}

type wireEntry struct {
	RecordID   int64           `json:"recordID"`
	Type       int             `json:"type"`
	TimeStamp  int64           `json:"timeStamp"`
	HistoryTag *string         `json:"historyTag"`
	DevicePk   *string         `json:"devicePk"`
	Parameter  json.RawMessage `json:"parameter"`
}

// DecodeTag decodes a history tag. The Web API sends base64, the IoT history sends the
// tag as is.
func DecodeTag(s string) []byte {
	if data, err := base64.StdEncoding.DecodeString(s); err == nil {
		return data
	}
	return []byte(s)
}

// UnmarshalJSON is a custom JSON unmarshaller
func (e *Entry) UnmarshalJSON(data []byte) error {
	var w wireEntry
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("invalid history entry: %w", err)
	}
	*e = Entry{
		RecordID:  w.RecordID,
		Type:      ParseEventType(w.Type),
		RawType:   w.Type,
		Timestamp: time.UnixMilli(w.TimeStamp),
		DevicePk:  w.DevicePk,
	}
	if w.HistoryTag != nil {
		e.Tag = DecodeTag(*w.HistoryTag)
	}
	if len(w.Parameter) > 0 && string(w.Parameter) != "null" {
		e.Parameter = w.Parameter
	}
	return nil
}

// MarshalJSON is a custom JSON marshaller producing the wire format
func (e Entry) MarshalJSON() ([]byte, error) {
	w := wireEntry{
		RecordID:  e.RecordID,
		Type:      e.RawType,
		TimeStamp: e.Timestamp.UnixMilli(),
		DevicePk:  e.DevicePk,
		Parameter: e.Parameter,
	}
	if e.Type != Unknown {
		w.Type = int(e.Type)
	}
	if e.Tag != nil {
		tag := base64.StdEncoding.EncodeToString(e.Tag)
		w.HistoryTag = &tag
	}
	return json.Marshal(w)
}

// Map returns a flat view of the entry for display and logging. Missing optional values
// are nil.
func (e Entry) Map() map[string]interface{} {
	m := map[string]interface{}{
		"recordID":   e.RecordID,
		"timeStamp":  e.Timestamp.Local().Format(TimeFormat),
		"type":       e.Type.String(),
		"historyTag": nil,
		"devicePk":   nil,
		"parameter":  nil,
	}
	if e.Tag != nil {
		m["historyTag"] = string(e.Tag)
	}
	if e.DevicePk != nil {
		m["devicePk"] = *e.DevicePk
	}
	if e.Parameter != nil {
		var p interface{}
		if err := json.Unmarshal(e.Parameter, &p); err == nil {
			m["parameter"] = p
		}
	}
	return m
}

func (e Entry) String() string {
	return fmt.Sprintf("CHSesame2History(recordID=%d, type=%s, timeStamp=%s, historyTag=%q)",
		e.RecordID, e.Type, e.Timestamp.Local().Format(TimeFormat), string(e.Tag))
}

// Decode decodes a list of entries as returned by the cloud
func Decode(body []byte) ([]Entry, error) {
	var entries []Entry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}
