// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package mech

import (
	"fmt"

	"github.com/goccy/go-json"
)

// Keys of the Web API status dictionary
const (
	KeyBatteryVoltage = "batteryVoltage"
	KeyPosition       = "position"
	KeyStatus         = "CHSesame2Status"
	// KeyStatusShort is accepted as an alias of KeyStatus
	KeyStatusShort = "status"
)

// StatusLocked is the value of KeyStatus for a locked device
const StatusLocked = "locked"

// Fields is the Web API status dictionary
type Fields map[string]interface{}

// DecodeFields decodes the Web API dictionary
func DecodeFields(class Class, f Fields) (Reported, error) {
	voltage, err := f.number(KeyBatteryVoltage)
	if err != nil {
		return Reported{}, err
	}
	position, err := f.number(KeyPosition)
	if err != nil {
		return Reported{}, err
	}
	status, ok := f[KeyStatus]
	if !ok {
		status, ok = f[KeyStatusShort]
	}
	if !ok {
		return Reported{}, fmt.Errorf("%w: %s", ErrMissingField, KeyStatus)
	}
	s, ok := status.(string)
	if !ok {
		return Reported{}, fmt.Errorf("%w: %s is %T", ErrInvalidInput, KeyStatus, status)
	}
	return Reported{
		class:    class,
		voltage:  voltage,
		position: int(position),
		locked:   s == StatusLocked,
	}, nil
}

// DecodeJSON decodes a Web API status body
func DecodeJSON(class Class, body []byte) (Reported, error) {
	var f Fields
	if err := json.Unmarshal(body, &f); err != nil {
		return Reported{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return DecodeFields(class, f)
}

// Fields returns the Web API dictionary for r
func (r Reported) Fields() Fields {
	status := "unlocked"
	if r.locked {
		status = StatusLocked
	}
	return Fields{
		KeyBatteryVoltage: r.voltage,
		KeyPosition:       r.position,
		KeyStatus:         status,
	}
}

func (f Fields) number(key string) (float64, error) {
	v, ok := f[key]
	if !ok || v == nil {
		return 0, fmt.Errorf("%w: %s", ErrMissingField, key)
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int16:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	default:
		return 0, fmt.Errorf("%w: %s is %T", ErrInvalidInput, key, v)
	}
}
