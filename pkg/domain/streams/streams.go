package streams

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Metric names as Strava reports them.
const (
	MetricTime      = "time"
	MetricWatts     = "watts"
	MetricHeartrate = "heartrate"
	MetricCadence   = "cadence"
	MetricAltitude  = "altitude"
	MetricVelocity  = "velocity_smooth"
)

// StreamSet maps a metric name to its samples. A nil entry is a null sample.
// Sequences may differ in length; time decides the row count.
type StreamSet map[string][]*float64

// keyedStream is one value of the key_by_type=true object shape.
type keyedStream struct {
	Data         json.RawMessage `json:"data"`
	SeriesType   string          `json:"series_type"`
	OriginalSize int             `json:"original_size"`
	Resolution   string          `json:"resolution"`
}

// typedStream is one element of the key_by_type=false array shape.
type typedStream struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// DecodeStreamSet parses a Strava streams response in either shape:
//
//	{"time": {"data": [...]}, "watts": {"data": [...]}}
//	[{"type": "time", "data": [...]}, {"type": "watts", "data": [...]}]
//
// Streams whose samples are not scalar numbers (latlng, moving) are skipped.
func DecodeStreamSet(raw []byte) (StreamSet, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return StreamSet{}, nil
	}

	set := StreamSet{}
	switch trimmed[0] {
	case '{':
		var keyed map[string]keyedStream
		if err := json.Unmarshal(trimmed, &keyed); err != nil {
			return nil, fmt.Errorf("decode keyed streams: %w", err)
		}
		for name, s := range keyed {
			if samples, ok := decodeSamples(s.Data); ok {
				set[name] = samples
			}
		}
	case '[':
		var typed []typedStream
		if err := json.Unmarshal(trimmed, &typed); err != nil {
			return nil, fmt.Errorf("decode stream list: %w", err)
		}
		for _, s := range typed {
			if s.Type == "" {
				continue
			}
			if samples, ok := decodeSamples(s.Data); ok {
				set[s.Type] = samples
			}
		}
	default:
		return nil, errors.New("decode streams: expected JSON object or array")
	}
	return set, nil
}

func decodeSamples(data json.RawMessage) ([]*float64, bool) {
	if len(data) == 0 {
		return nil, false
	}
	var samples []*float64
	if err := json.Unmarshal(data, &samples); err != nil {
		return nil, false
	}
	return samples, true
}

// at returns the i-th sample of name, or 0 when it is missing or null.
func (s StreamSet) at(name string, i int) float64 {
	samples := s[name]
	if i < 0 || i >= len(samples) || samples[i] == nil {
		return 0
	}
	return *samples[i]
}
