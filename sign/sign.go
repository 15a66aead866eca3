// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

/*
Package sign computes the signature which authorizes a command to move a lock.

The signature is an AES-CMAC over three bytes of the current Unix time, namely bytes 1
to 3 of its little endian encoding. Byte 0 is dropped, so a signature stays valid for a
window of 256 seconds. The key is the 16 byte secret of the device.
*/
package sign

import (
	"crypto/aes"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aead/cmac"
)

// KeySize is the size of a device secret in bytes
const KeySize = 16

// IoTSignLength is the number of hex characters the IoT gateway expects
const IoTSignLength = 8

// ErrInvalidKey is returned for secrets which are not 32 hex characters
var ErrInvalidKey = errors.New("invalid secret key")

// Key is the secret of a device
type Key [KeySize]byte

// ParseKey parses the hex representation of a device secret
func ParseKey(s string) (Key, error) {
	var k Key
	s = strings.TrimSpace(s)
	if len(s) != 2*KeySize {
		return k, fmt.Errorf("%w: length should be %d", ErrInvalidKey, 2*KeySize)
	}
	data, err := hex.DecodeString(s)
	if err != nil {
		return k, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	copy(k[:], data)
	return k, nil
}

// String returns the key as hex
func (k Key) String() string {
	return hex.EncodeToString(k[:])
}

// IsZero returns true if the key was never set
func (k Key) IsZero() bool {
	return k == Key{}
}

// Bucket returns the signed message for t
func Bucket(t time.Time) []byte {
	ts := uint32(t.Unix())
	return []byte{byte(ts >> 8), byte(ts >> 16), byte(ts >> 24)}
}

// Tag returns the AES-CMAC of msg
func Tag(k Key, msg []byte) []byte {
	block, err := aes.NewCipher(k[:])
	if err != nil {
		// aes accepts every 16 byte key
		panic(err)
	}
	tag, err := cmac.Sum(msg, block, block.BlockSize())
	if err != nil {
		panic(err)
	}
	return tag
}

// Sign returns the hex signature for a command sent at t, as expected by the Web API
func Sign(k Key, t time.Time) string {
	return hex.EncodeToString(Tag(k, Bucket(t)))
}

// SignIoT returns the truncated signature expected by the IoT gateway
func SignIoT(k Key, t time.Time) string {
	return Sign(k, t)[:IoTSignLength]
}
