package strava

import "time"

// ActivitySummary is the subset of Strava's activity representation the
// engine works with. Optional scalars are pointers: nil means Strava did not
// send the field. Values are immutable once decoded.
type ActivitySummary struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Type      string `json:"type"`       // Run, Ride, ...
	SportType string `json:"sport_type"` // MountainBikeRide, TrailRun, ...

	Description string `json:"description,omitempty"`

	StartDate time.Time `json:"start_date"`
	// StartDateLocal carries local wall-clock time. Strava suffixes it with
	// "Z"; the zone is not meaningful.
	StartDateLocal time.Time `json:"start_date_local"`
	Timezone       string    `json:"timezone,omitempty"`

	Distance           *float64 `json:"distance,omitempty"`     // meters
	MovingTime         *int     `json:"moving_time,omitempty"`  // seconds
	ElapsedTime        *int     `json:"elapsed_time,omitempty"` // seconds
	TotalElevationGain *float64 `json:"total_elevation_gain,omitempty"`

	AverageSpeed     *float64 `json:"average_speed,omitempty"` // m/s
	MaxSpeed         *float64 `json:"max_speed,omitempty"`
	AverageCadence   *float64 `json:"average_cadence,omitempty"`
	AverageHeartrate *float64 `json:"average_heartrate,omitempty"`
	MaxHeartrate     *float64 `json:"max_heartrate,omitempty"`

	AverageWatts         *float64 `json:"average_watts,omitempty"`
	WeightedAverageWatts *int     `json:"weighted_average_watts,omitempty"`
	MaxWatts             *int     `json:"max_watts,omitempty"`
	Kilojoules           *float64 `json:"kilojoules,omitempty"`
	DeviceWatts          *bool    `json:"device_watts,omitempty"`

	HasHeartrate *bool `json:"has_heartrate,omitempty"`
	Trainer      *bool `json:"trainer,omitempty"`
	Commute      *bool `json:"commute,omitempty"`
	Manual       *bool `json:"manual,omitempty"`
	Private      *bool `json:"private,omitempty"`

	GearID     string `json:"gear_id,omitempty"`
	DeviceName string `json:"device_name,omitempty"`
}

// Stream keys understood by the table converter, in Strava's naming.
const (
	StreamTime      = "time"
	StreamWatts     = "watts"
	StreamHeartrate = "heartrate"
	StreamCadence   = "cadence"
	StreamAltitude  = "altitude"
	StreamVelocity  = "velocity_smooth"
)

// AnalysisStreamKeys is the key list requested when bridging an activity.
var AnalysisStreamKeys = []string{
	StreamTime, StreamWatts, StreamHeartrate, StreamCadence, StreamAltitude, StreamVelocity,
}
