package models

import "math"

// Gear is the transmission state reported by the vehicle.
type Gear string

const (
	GearPark    Gear = "P"
	GearDrive   Gear = "D"
	GearReverse Gear = "R"
	GearNeutral Gear = "N"
)

// AutopilotState is the driving automation state reported by the vehicle.
type AutopilotState string

const (
	AutopilotManual      AutopilotState = "manual"
	AutopilotSelfDriving AutopilotState = "self_driving"
	AutopilotAutosteer   AutopilotState = "autosteer"
	AutopilotTACC        AutopilotState = "tacc"
)

// TelemetrySample is one decoded SEI telemetry record, positioned on the
// collection-relative timeline. Samples are sparse and non-uniform.
type TelemetrySample struct {
	// TimestampMs is collection-relative milliseconds.
	TimestampMs int64 `json:"timestamp_ms"`

	SpeedMps         float64        `json:"speed_mps"`
	Gear             Gear           `json:"gear"`
	Autopilot        AutopilotState `json:"autopilot"`
	BlinkerLeft      bool           `json:"blinker_left"`
	BlinkerRight     bool           `json:"blinker_right"`
	Brake            bool           `json:"brake"`
	AcceleratorPct   float64        `json:"accelerator_pct"`
	SteeringAngleDeg float64        `json:"steering_angle_deg"`

	// GPS fields are zero when the fix is absent; use HasGPS.
	LatitudeDeg  float64 `json:"latitude_deg,omitempty"`
	LongitudeDeg float64 `json:"longitude_deg,omitempty"`
	HeadingDeg   float64 `json:"heading_deg,omitempty"`
}

// HasGPS reports whether the sample carries a plausible GPS fix: finite,
// not the (0,0) null island placeholder, and within valid coordinate range.
func (s *TelemetrySample) HasGPS() bool {
	lat, lon := s.LatitudeDeg, s.LongitudeDeg
	if math.IsNaN(lat) || math.IsInf(lat, 0) || math.IsNaN(lon) || math.IsInf(lon, 0) {
		return false
	}
	if lat == 0 && lon == 0 {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// GpsPoint is one vertex of a GPS polyline.
type GpsPoint struct {
	LatitudeDeg  float64 `json:"lat"`
	LongitudeDeg float64 `json:"lon"`
	TimestampMs  int64   `json:"timestamp_ms"`
}

// GpsPath is an ordered polyline of valid GPS fixes, non-decreasing in time.
type GpsPath []GpsPoint

// Bounds returns the bounding box of the path. ok is false for an empty path.
func (p GpsPath) Bounds() (minLat, minLon, maxLat, maxLon float64, ok bool) {
	if len(p) == 0 {
		return 0, 0, 0, 0, false
	}
	minLat, maxLat = p[0].LatitudeDeg, p[0].LatitudeDeg
	minLon, maxLon = p[0].LongitudeDeg, p[0].LongitudeDeg
	for _, pt := range p[1:] {
		minLat = math.Min(minLat, pt.LatitudeDeg)
		maxLat = math.Max(maxLat, pt.LatitudeDeg)
		minLon = math.Min(minLon, pt.LongitudeDeg)
		maxLon = math.Max(maxLon, pt.LongitudeDeg)
	}
	return minLat, minLon, maxLat, maxLon, true
}
