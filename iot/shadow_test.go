// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package iot

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var device = uuid.MustParse("126d3d66-9222-4e5a-bcde-0c6629d48d43")

func TestTopics(t *testing.T) {
	assert.Equal(t, "$aws/things/sesame2/shadow/name/126D3D66-9222-4E5A-BCDE-0C6629D48D43/update", UpdateTopic(device))
	assert.Equal(t, "$aws/things/sesame2/shadow/name/126D3D66-9222-4E5A-BCDE-0C6629D48D43/update/accepted", ShadowTopic(device))
	assert.Equal(t, "$aws/things/sesame2/shadow/name/+/update/accepted", ShadowTopicFilter)
}

func TestDeviceFromTopic(t *testing.T) {
	testCases := []struct {
		topic string
		ok    bool
	}{
		{ShadowTopic(device), true},
		{UpdateTopic(device), true},
		{UpdateTopic(device) + "/rejected", false},
		{"$aws/things/sesame2/shadow/name/nouuid/update", false},
		{"$aws/things/other/shadow/name/126D3D66-9222-4E5A-BCDE-0C6629D48D43/update", false},
		{"sesame2", false},
	}
	for _, tc := range testCases {
		d, ok := DeviceFromTopic(tc.topic)
		assert.Equal(t, tc.ok, ok, tc.topic)
		if tc.ok {
			assert.Equal(t, device, d)
		}
	}
}

func TestParseShadow(t *testing.T) {
	mechst, err := ParseShadow([]byte(`{"state":{"reported":{"mechst":"5c030503e3027002"}},"metadata":{}}`))
	require.NoError(t, err)
	assert.Equal(t, "5c030503e3027002", mechst)

	_, err = ParseShadow([]byte(`{"state":{"reported":{}}}`))
	assert.ErrorIs(t, err, ErrNoMechStatus)

	_, err = ParseShadow([]byte(`not json`))
	assert.Error(t, err)

	payload, err := json.Marshal(NewShadow("5c030503e3027002"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"state":{"reported":{"mechst":"5c030503e3027002"}}}`, string(payload))
}
