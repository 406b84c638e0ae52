package cyclinganalytics

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// AnalysisResult holds the ride metrics Cycling Analytics computes. Fields
// the service did not send are nil.
type AnalysisResult struct {
	ID             *int64     `json:"id,omitempty"`
	Load           *float64   `json:"load,omitempty"`        // TSS
	Intensity      *float64   `json:"intensity,omitempty"`   // IF
	Variability    *float64   `json:"variability,omitempty"` // VI
	EffectivePower *float64   `json:"epower,omitempty"`      // normalised power
	Work           *float64   `json:"work,omitempty"`        // kJ
	AvgPower       *float64   `json:"avg_power,omitempty"`
	MaxPower       *float64   `json:"max_power,omitempty"`
	AvgHeartrate   *float64   `json:"avg_heartrate,omitempty"`
	PowerCurve     PowerCurve `json:"power_curve,omitempty"`
}

// PowerPoint is the best average power held for DurationSec seconds.
type PowerPoint struct {
	DurationSec float64 `json:"duration_sec"`
	Watts       float64 `json:"watts"`
}

// PowerCurve decodes from any of:
//
//	[[1, 820], [5, 640], ...]
//	{"time": [1, 5, ...], "watts": [820, 640, ...]}
//	[{"duration_sec": 1, "watts": 820}, ...]
type PowerCurve []PowerPoint

func (pc *PowerCurve) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*pc = nil
		return nil
	}

	if data[0] == '{' {
		var cols struct {
			Time  []float64 `json:"time"`
			Watts []float64 `json:"watts"`
		}
		if err := json.Unmarshal(data, &cols); err != nil {
			return fmt.Errorf("power curve: %w", err)
		}
		n := min(len(cols.Time), len(cols.Watts))
		out := make(PowerCurve, 0, n)
		for i := 0; i < n; i++ {
			out = append(out, PowerPoint{DurationSec: cols.Time[i], Watts: cols.Watts[i]})
		}
		*pc = out
		return nil
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		return fmt.Errorf("power curve: %w", err)
	}
	out := make(PowerCurve, 0, len(elems))
	for _, e := range elems {
		e = bytes.TrimSpace(e)
		if len(e) == 0 {
			continue
		}
		switch e[0] {
		case '[':
			var pair []*float64
			if err := json.Unmarshal(e, &pair); err != nil {
				return fmt.Errorf("power curve point: %w", err)
			}
			if len(pair) < 2 || pair[0] == nil || pair[1] == nil {
				continue
			}
			out = append(out, PowerPoint{DurationSec: *pair[0], Watts: *pair[1]})
		case '{':
			var p PowerPoint
			if err := json.Unmarshal(e, &p); err != nil {
				return fmt.Errorf("power curve point: %w", err)
			}
			out = append(out, p)
		}
	}
	*pc = out
	return nil
}

// Normalize turns a ride response into an AnalysisResult. The metrics of a
// ride live under "summary"; the ride id and power curve sit at the root and
// are folded into the summary first. Without a summary object the root is
// decoded directly.
func Normalize(raw []byte) (*AnalysisResult, error) {
	var root map[string]json.RawMessage
	if err := json.Unmarshal(raw, &root); err != nil {
		return nil, fmt.Errorf("normalize: %w", err)
	}

	target := raw
	if summaryRaw, ok := root["summary"]; ok {
		var summary map[string]json.RawMessage
		if err := json.Unmarshal(summaryRaw, &summary); err == nil && summary != nil {
			if id, ok := root["id"]; ok {
				summary["id"] = id
			}
			if curve, ok := root["power_curve"]; ok {
				summary["power_curve"] = curve
			}
			merged, err := json.Marshal(summary)
			if err != nil {
				return nil, fmt.Errorf("normalize: %w", err)
			}
			target = merged
		}
	}

	var result AnalysisResult
	if err := json.Unmarshal(target, &result); err != nil {
		return nil, fmt.Errorf("normalize: %w", err)
	}
	return &result, nil
}
