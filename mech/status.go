// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

/*
Package mech decodes the mechanical status reported by SESAME devices.

A status arrives in one of two shapes. The device shadow carries an 8 byte
little endian record, usually as a hex string:

	[0:2] battery raw, voltage = raw * scale / 1023
	[2:4] target position, signed
	[4:6] current position, signed
	[6]   return code of the last command
	[7]   flags: 2 in lock range, 4 in unlock range, 32 battery critical

The Web API answers with a dictionary instead:

	{"batteryVoltage": 5.87, "position": 11, "CHSesame2Status": "locked"}

Both shapes decode into a Status. The device Class decides the battery scale and the
discharge curve.
*/
package mech

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	// ErrInvalidInput is returned for input which is neither bytes, hex string nor dictionary
	ErrInvalidInput = errors.New("invalid input type")
	// ErrInvalidLength is returned for binary records which are not exactly 8 bytes
	ErrInvalidLength = errors.New("invalid mechanical status length")
	// ErrMissingField is returned for dictionaries without a required field
	ErrMissingField = errors.New("missing field")
	// ErrNotSupported is returned for fields the Web API does not report
	ErrNotSupported = errors.New("not supported by the Web API")
)

// RecordSize is the size of a binary mechanical status
const RecordSize = 8

const (
	flagLockRange       = 2
	flagUnlockRange     = 4
	flagBatteryCritical = 32
)

// Status is a decoded mechanical status
type Status interface {
	BatteryVoltage() float64
	BatteryPercentage() int
	Position() int
	// Target is only reported by the binary record
	Target() (int, error)
	// RetCode is only reported by the binary record
	RetCode() (int, error)
	// MotorStatus is the bot's motor state
	MotorStatus() int
	IsInLockRange() bool
	IsInUnlockRange() bool
	IsBatteryCritical() bool
	String() string
}

// Binary is a status decoded from the 8 byte record
type Binary struct {
	class Class
	raw   [RecordSize]byte
}

// BatteryVoltage implements Status
func (b Binary) BatteryVoltage() float64 {
	return float64(binary.LittleEndian.Uint16(b.raw[0:2])) * b.class.Scale / 1023
}

// BatteryPercentage implements Status
func (b Binary) BatteryPercentage() int {
	return b.class.BatteryPercentage(b.BatteryVoltage())
}

// Position implements Status
func (b Binary) Position() int {
	return int(int16(binary.LittleEndian.Uint16(b.raw[4:6])))
}

// Target implements Status
func (b Binary) Target() (int, error) {
	return int(int16(binary.LittleEndian.Uint16(b.raw[2:4]))), nil
}

// RetCode implements Status
func (b Binary) RetCode() (int, error) {
	return int(b.raw[6]), nil
}

// MotorStatus implements Status
func (b Binary) MotorStatus() int {
	return int(b.raw[4])
}

// IsInLockRange implements Status
func (b Binary) IsInLockRange() bool { return b.raw[7]&flagLockRange > 0 }

// IsInUnlockRange implements Status
func (b Binary) IsInUnlockRange() bool { return b.raw[7]&flagUnlockRange > 0 }

// IsBatteryCritical implements Status
func (b Binary) IsBatteryCritical() bool { return b.raw[7]&flagBatteryCritical > 0 }

// Bytes returns the raw record
func (b Binary) Bytes() []byte {
	out := make([]byte, RecordSize)
	copy(out, b.raw[:])
	return out
}

// Hex returns the raw record as lower case hex, as found in the device shadow
func (b Binary) Hex() string {
	return hex.EncodeToString(b.raw[:])
}

func (b Binary) String() string {
	if b.class.motorInPlace {
		return fmt.Sprintf("%s(Battery=%d%% (%.2fV), motorStatus=%d)",
			b.class.Name, b.BatteryPercentage(), b.BatteryVoltage(), b.MotorStatus())
	}
	target, _ := b.Target()
	retCode, _ := b.RetCode()
	return fmt.Sprintf("%s(Battery=%d%% (%.2fV), isInLockRange=%t, isInUnlockRange=%t, retCode=%d, target=%d, position=%d)",
		b.class.Name, b.BatteryPercentage(), b.BatteryVoltage(), b.IsInLockRange(), b.IsInUnlockRange(),
		retCode, target, b.Position())
}

// Reported is a status decoded from the Web API dictionary
type Reported struct {
	class    Class
	voltage  float64
	position int
	locked   bool
}

// BatteryVoltage implements Status
func (r Reported) BatteryVoltage() float64 { return r.voltage }

// BatteryPercentage implements Status
func (r Reported) BatteryPercentage() int { return r.class.BatteryPercentage(r.voltage) }

// Position implements Status
func (r Reported) Position() int { return r.position }

// Target implements Status
func (r Reported) Target() (int, error) { return 0, ErrNotSupported }

// RetCode implements Status
func (r Reported) RetCode() (int, error) { return 0, ErrNotSupported }

// MotorStatus implements Status. The Web API reports it as position.
func (r Reported) MotorStatus() int { return r.position }

// IsInLockRange implements Status
func (r Reported) IsInLockRange() bool { return r.locked }

// IsInUnlockRange implements Status
func (r Reported) IsInUnlockRange() bool { return !r.locked }

// IsBatteryCritical implements Status. The Web API does not report it.
func (r Reported) IsBatteryCritical() bool { return false }

func (r Reported) String() string {
	if r.class.motorInPlace {
		return fmt.Sprintf("%s(Battery=%d%% (%.2fV), motorStatus=%d)",
			r.class.Name, r.BatteryPercentage(), r.voltage, r.position)
	}
	return fmt.Sprintf("%s(Battery=%d%% (%.2fV), isInLockRange=%t, isInUnlockRange=%t, position=%d)",
		r.class.Name, r.BatteryPercentage(), r.voltage, r.IsInLockRange(), r.IsInUnlockRange(), r.position)
}

// Values are the fields of a binary record, used to build one with Encode
type Values struct {
	BatteryVoltage  float64
	Target          int16
	Position        int16
	RetCode         byte
	LockRange       bool
	UnlockRange     bool
	BatteryCritical bool
}

// Encode builds the binary record for values. The voltage is quantized to the raw scale
// of the class.
func Encode(class Class, v Values) Binary {
	b := Binary{class: class}
	raw := math.Round(v.BatteryVoltage * 1023 / class.Scale)
	if raw < 0 {
		raw = 0
	}
	if raw > math.MaxUint16 {
		raw = math.MaxUint16
	}
	binary.LittleEndian.PutUint16(b.raw[0:2], uint16(raw))
	binary.LittleEndian.PutUint16(b.raw[2:4], uint16(v.Target))
	binary.LittleEndian.PutUint16(b.raw[4:6], uint16(v.Position))
	b.raw[6] = v.RetCode
	if v.LockRange {
		b.raw[7] |= flagLockRange
	}
	if v.UnlockRange {
		b.raw[7] |= flagUnlockRange
	}
	if v.BatteryCritical {
		b.raw[7] |= flagBatteryCritical
	}
	return b
}

// DecodeBytes decodes the 8 byte record
func DecodeBytes(class Class, data []byte) (Binary, error) {
	if len(data) != RecordSize {
		return Binary{}, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidLength, len(data), RecordSize)
	}
	b := Binary{class: class}
	copy(b.raw[:], data)
	return b, nil
}

// DecodeHex decodes the record from its hex representation
func DecodeHex(class Class, s string) (Binary, error) {
	data, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return Binary{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return DecodeBytes(class, data)
}

// Decode decodes raw, which may be a []byte, a hex string or a dictionary
func Decode(class Class, raw interface{}) (Status, error) {
	switch v := raw.(type) {
	case []byte:
		return DecodeBytes(class, v)
	case string:
		return DecodeHex(class, v)
	case Fields:
		return DecodeFields(class, v)
	case map[string]interface{}:
		return DecodeFields(class, Fields(v))
	default:
		return nil, fmt.Errorf("%w: %T", ErrInvalidInput, raw)
	}
}
