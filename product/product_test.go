// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package product

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	testCases := []struct {
		id          string
		productType int
		locker      bool
		kind        Kind
	}{
		{"wm_2", 1, false, KindNone},
		{"sesame_2", 0, true, KindSesame2},
		{"sesame_4", 4, true, KindSesame2},
		{"ssmbot_1", 2, true, KindBot},
	}
	for _, tc := range testCases {
		t.Run(tc.id, func(t *testing.T) {
			byModel, err := ByModel(tc.id)
			require.NoError(t, err)
			byType, err := ByType(tc.productType)
			require.NoError(t, err)
			assert.Equal(t, byModel, byType)

			assert.Equal(t, tc.id, byModel.ID())
			assert.Equal(t, tc.productType, byModel.ProductType())
			assert.Equal(t, tc.locker, byModel.IsLocker())

			kind, err := byModel.Kind()
			assert.Equal(t, tc.kind, kind)
			if tc.kind == KindNone {
				assert.ErrorIs(t, err, ErrNoDevice)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRegistry_Unknown(t *testing.T) {
	_, err := ByModel("sesame_99")
	assert.ErrorIs(t, err, ErrNotSupported)
	_, err = ByType(99)
	assert.ErrorIs(t, err, ErrNotSupported)
}

func TestModel_JSON(t *testing.T) {
	type Device struct {
		Model Model `json:"model"`
	}
	var d Device
	require.NoError(t, json.Unmarshal([]byte(`{"model":"ssmbot_1"}`), &d))
	assert.Equal(t, SesameBot1, d.Model)

	data, err := json.Marshal(d)
	require.NoError(t, err)
	assert.JSONEq(t, `{"model":"ssmbot_1"}`, string(data))

	assert.Error(t, json.Unmarshal([]byte(`{"model":"sesame_99"}`), &d))
	assert.Error(t, json.Unmarshal([]byte(`{"model":2}`), &d))
}
