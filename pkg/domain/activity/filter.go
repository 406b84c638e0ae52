package activity

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"

	"github.com/flowtrack/server/pkg/integrations/strava"
)

// Predicate reports whether an activity passes a filter.
type Predicate func(strava.ActivitySummary) bool

// Predicates returns the client-side filters for q in evaluation order:
// type, minimum distance, name search. Inactive filters are omitted.
func Predicates(q QuerySpec) []Predicate {
	var preds []Predicate
	fold := cases.Fold()

	if q.Type != "" {
		want := fold.String(q.Type)
		preds = append(preds, func(a strava.ActivitySummary) bool {
			return fold.String(a.Type) == want
		})
	}

	if q.MinDistanceKm != nil {
		minMeters := *q.MinDistanceKm * 1000
		preds = append(preds, func(a strava.ActivitySummary) bool {
			return a.Distance != nil && *a.Distance >= minMeters
		})
	}

	if q.TextQuery != "" {
		needle := fold.String(q.TextQuery)
		preds = append(preds, func(a strava.ActivitySummary) bool {
			return strings.Contains(fold.String(a.Name), needle)
		})
	}
	return preds
}

// Match applies every predicate in order.
func Match(a strava.ActivitySummary, preds []Predicate) bool {
	for _, p := range preds {
		if !p(a) {
			return false
		}
	}
	return true
}

// Sort orders activities in place. The sort is stable and missing values go
// last. An empty or unknown key leaves the upstream order alone.
func Sort(activities []strava.ActivitySummary, key SortKey) {
	var less func(a, b strava.ActivitySummary) bool
	switch key {
	case SortStartDesc:
		less = func(a, b strava.ActivitySummary) bool {
			return b.StartDateLocal.Before(a.StartDateLocal)
		}
	case SortStartAsc:
		less = func(a, b strava.ActivitySummary) bool {
			return a.StartDateLocal.Before(b.StartDateLocal)
		}
	case SortDistance:
		less = func(a, b strava.ActivitySummary) bool {
			return descNilsLast(a.Distance, b.Distance)
		}
	case SortElapsedTime:
		less = func(a, b strava.ActivitySummary) bool {
			return descNilsLast(a.ElapsedTime, b.ElapsedTime)
		}
	default:
		return
	}

	sort.SliceStable(activities, func(i, j int) bool {
		return less(activities[i], activities[j])
	})
}

func descNilsLast[T int | float64](a, b *T) bool {
	switch {
	case a == nil:
		return false
	case b == nil:
		return true
	default:
		return *a > *b
	}
}
