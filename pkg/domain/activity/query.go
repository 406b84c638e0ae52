package activity

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// SortKey orders a result set.
type SortKey string

const (
	SortStartDesc   SortKey = "start_date_local_desc"
	SortStartAsc    SortKey = "start_date_local_asc"
	SortDistance    SortKey = "distance_desc"
	SortElapsedTime SortKey = "elapsed_time_desc"
)

const (
	DefaultPage    = 1
	DefaultPerPage = 30
	MaxPerPage     = 200
	// MaxPage keeps Page*MaxPerPage within int.
	MaxPage = math.MaxInt / MaxPerPage
)

const dateLayout = "2006-01-02"

// QuerySpec is one list request. Zero-valued filters are not applied.
type QuerySpec struct {
	Type          string
	DateFrom      *time.Time // midnight, reference zone
	DateTo        *time.Time // midnight, reference zone; the whole day is included
	MinDistanceKm *float64
	TextQuery     string
	Sort          SortKey
	Page          int
	PerPage       int
}

// ParseQuery builds a QuerySpec from raw request parameters. Malformed values
// are dropped rather than rejected: a bad date or distance disables that
// filter, a bad page or per_page falls back to the default.
func ParseQuery(params map[string]string, loc *time.Location) QuerySpec {
	if loc == nil {
		loc = time.Local
	}

	q := QuerySpec{
		Type:      strings.TrimSpace(params["type"]),
		TextQuery: strings.TrimSpace(params["q"]),
		Sort:      SortKey(strings.TrimSpace(params["sort"])),
		Page:      positiveInt(params["page"], DefaultPage),
		PerPage:   positiveInt(params["per_page"], DefaultPerPage),
	}
	if q.PerPage > MaxPerPage {
		q.PerPage = MaxPerPage
	}
	if q.Page > MaxPage {
		q.Page = MaxPage
	}

	if d, ok := parseDate(params["date_from"], loc); ok {
		q.DateFrom = &d
	}
	if d, ok := parseDate(params["date_to"], loc); ok {
		q.DateTo = &d
	}

	if raw := strings.TrimSpace(params["distance_min"]); raw != "" {
		if km, err := strconv.ParseFloat(raw, 64); err == nil && km >= 0 {
			q.MinDistanceKm = &km
		}
	}
	return q
}

// Normalized returns a copy with Page and PerPage forced into range.
func (q QuerySpec) Normalized() QuerySpec {
	if q.Page < 1 {
		q.Page = DefaultPage
	}
	if q.PerPage < 1 {
		q.PerPage = DefaultPerPage
	}
	if q.PerPage > MaxPerPage {
		q.PerPage = MaxPerPage
	}
	if q.Page > MaxPage {
		q.Page = MaxPage
	}
	return q
}

// Bounds translates the date filters into Strava's after/before UNIX seconds.
// after is the start of DateFrom; before is the start of the day following
// DateTo, so DateTo is inclusive.
func (q QuerySpec) Bounds() (before, after *int64) {
	if q.DateFrom != nil {
		a := startOfDay(*q.DateFrom).Unix()
		after = &a
	}
	if q.DateTo != nil {
		b := startOfDay(*q.DateTo).AddDate(0, 0, 1).Unix()
		before = &b
	}
	return before, after
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func parseDate(raw string, loc *time.Location) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(dateLayout, raw, loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func positiveInt(raw string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		return def
	}
	return n
}
