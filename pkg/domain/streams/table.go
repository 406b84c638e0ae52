package streams

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// ErrEmptyTable is returned when there is no time stream to build rows from.
// Callers treat it as "nothing to analyze", not as a failure.
var ErrEmptyTable = errors.New("streams: time stream absent or empty")

// CSVHeader is the column header Cycling Analytics expects.
var CSVHeader = []string{"Time", "Power", "Heart Rate", "Cadence", "Elevation", "Speed"}

// Row is one sample instant. Missing values are 0.
type Row struct {
	Time      int     `json:"time"`       // seconds from start
	Power     int     `json:"power"`      // watts
	HeartRate int     `json:"heart_rate"` // bpm
	Cadence   int     `json:"cadence"`    // rpm
	Elevation float64 `json:"elevation"`  // meters
	Speed     float64 `json:"speed"`      // m/s
}

// ActivityTable is the dense per-sample table derived from a StreamSet.
type ActivityTable struct {
	Rows []Row `json:"rows"`
}

// Len returns the number of rows.
func (t ActivityTable) Len() int {
	return len(t.Rows)
}

// Convert builds one row per element of the time stream. Other metrics
// contribute their i-th sample when present and non-null, else 0.
func Convert(set StreamSet) (ActivityTable, error) {
	times := set[MetricTime]
	if len(times) == 0 {
		return ActivityTable{}, ErrEmptyTable
	}

	rows := make([]Row, len(times))
	for i := range times {
		rows[i] = Row{
			Time:      int(set.at(MetricTime, i)),
			Power:     int(set.at(MetricWatts, i)),
			HeartRate: int(set.at(MetricHeartrate, i)),
			Cadence:   int(set.at(MetricCadence, i)),
			Elevation: set.at(MetricAltitude, i),
			Speed:     set.at(MetricVelocity, i),
		}
	}
	return ActivityTable{Rows: rows}, nil
}

// WriteCSV writes the header and one newline-terminated record per row.
func (t ActivityTable) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	record := make([]string, len(CSVHeader))
	for _, r := range t.Rows {
		record[0] = strconv.Itoa(r.Time)
		record[1] = strconv.Itoa(r.Power)
		record[2] = strconv.Itoa(r.HeartRate)
		record[3] = strconv.Itoa(r.Cadence)
		record[4] = formatDecimal(r.Elevation)
		record[5] = formatDecimal(r.Speed)
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// CSV renders the table to a byte slice.
func (t ActivityTable) CSV() []byte {
	var buf bytes.Buffer
	// bytes.Buffer writes do not fail.
	_ = t.WriteCSV(&buf)
	return buf.Bytes()
}

func formatDecimal(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
