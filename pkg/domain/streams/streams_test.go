package streams

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeStreamSet_KeyedShape(t *testing.T) {
	raw := []byte(`{
		"time": {"data": [0, 1, 2], "series_type": "time", "original_size": 3, "resolution": "high"},
		"watts": {"data": [100, null, 120], "series_type": "time", "original_size": 3, "resolution": "high"},
		"latlng": {"data": [[1.0, 2.0]], "series_type": "time", "original_size": 1, "resolution": "high"}
	}`)

	set, err := DecodeStreamSet(raw)
	require.NoError(t, err)

	require.Len(t, set[MetricTime], 3)
	require.Len(t, set[MetricWatts], 3)
	assert.Nil(t, set[MetricWatts][1])
	assert.Equal(t, 120.0, *set[MetricWatts][2])
	assert.NotContains(t, set, "latlng")
}

func TestDecodeStreamSet_ArrayShape(t *testing.T) {
	raw := []byte(`[
		{"type": "time", "data": [0, 1], "series_type": "distance"},
		{"type": "heartrate", "data": [130, 131]},
		{"type": "moving", "data": [true, false]}
	]`)

	set, err := DecodeStreamSet(raw)
	require.NoError(t, err)

	assert.Len(t, set[MetricTime], 2)
	assert.Equal(t, 131.0, *set[MetricHeartrate][1])
	assert.NotContains(t, set, "moving")
}

func TestDecodeStreamSet_EmptyAndInvalid(t *testing.T) {
	for _, raw := range []string{"", "null", "  "} {
		set, err := DecodeStreamSet([]byte(raw))
		require.NoError(t, err, "input %q", raw)
		assert.Empty(t, set)
	}

	_, err := DecodeStreamSet([]byte(`"nope"`))
	assert.Error(t, err)

	_, err = DecodeStreamSet([]byte(`{"time": 5}`))
	assert.Error(t, err)
}

func TestDecodeThenConvert(t *testing.T) {
	raw := []byte(`{"time":{"data":[0,1,2,3,4]},"watts":{"data":[150,160,170]}}`)

	set, err := DecodeStreamSet(raw)
	require.NoError(t, err)

	table, err := Convert(set)
	require.NoError(t, err)
	assert.Equal(t, 5, table.Len())
	assert.Equal(t, 0, table.Rows[4].Power)
}
