// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package iot

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// ThingName is the thing all device shadows belong to
const ThingName = "sesame2"

const shadowPrefix = "$aws/things/" + ThingName + "/shadow/name/"

// ErrNoMechStatus is returned for shadow documents without a reported mechanical status
var ErrNoMechStatus = errors.New("shadow has no reported mechst")

// ShadowName returns the shadow name of a device, its upper case UUID
func ShadowName(device uuid.UUID) string {
	return strings.ToUpper(device.String())
}

// UpdateTopic is the topic a device publishes its reported state to
func UpdateTopic(device uuid.UUID) string {
	return shadowPrefix + ShadowName(device) + "/update"
}

// ShadowTopic is the topic the cloud publishes accepted shadow updates to
func ShadowTopic(device uuid.UUID) string {
	return UpdateTopic(device) + "/accepted"
}

// ShadowTopicFilter matches accepted shadow updates of all devices
const ShadowTopicFilter = shadowPrefix + "+/update/accepted"

// StatusTopicPrefix prefixes the topics on which status change events are republished
const StatusTopicPrefix = "sesame/status/"

// StatusTopicFilter matches status change events of all devices
const StatusTopicFilter = StatusTopicPrefix + "+"

// DeviceFromTopic extracts the device of an update or update/accepted topic
func DeviceFromTopic(topic string) (uuid.UUID, bool) {
	if !strings.HasPrefix(topic, shadowPrefix) {
		return uuid.Nil, false
	}
	rest := strings.TrimPrefix(topic, shadowPrefix)
	name, suffix, found := strings.Cut(rest, "/")
	if !found || (suffix != "update" && suffix != "update/accepted") {
		return uuid.Nil, false
	}
	device, err := uuid.Parse(name)
	if err != nil {
		return uuid.Nil, false
	}
	return device, true
}

// Shadow is a shadow document as far as it is used here
type Shadow struct {
	State struct {
		Reported struct {
			MechStatus string `json:"mechst,omitempty"`
		} `json:"reported"`
	} `json:"state"`
}

// NewShadow returns a shadow document reporting mechst
func NewShadow(mechst string) Shadow {
	var s Shadow
	s.State.Reported.MechStatus = mechst
	return s
}

// ParseShadow returns the reported mechanical status of a shadow document as hex string
func ParseShadow(payload []byte) (string, error) {
	var s Shadow
	if err := json.Unmarshal(payload, &s); err != nil {
		return "", fmt.Errorf("invalid shadow document: %w", err)
	}
	if s.State.Reported.MechStatus == "" {
		return "", ErrNoMechStatus
	}
	return s.State.Reported.MechStatus, nil
}
