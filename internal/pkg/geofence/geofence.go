// Package geofence holds the pure distance and time-window checks used to gate
// roll-call attendance.
package geofence

import (
	"fmt"
	"math"
	"time"
)

// EarthRadiusMeters is the mean Earth radius used by the haversine formula.
const EarthRadiusMeters = 6371000.0

// DefaultRadiusMeters is the default geofence radius around a hostel.
const DefaultRadiusMeters = 80.0

// Point is a WGS84 coordinate in decimal degrees.
type Point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// DistanceMeters returns the great-circle distance between a and b.
func DistanceMeters(a, b Point) float64 {
	lat1 := toRadians(a.Latitude)
	lat2 := toRadians(b.Latitude)
	dLat := toRadians(b.Latitude - a.Latitude)
	dLon := toRadians(b.Longitude - a.Longitude)

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLon*sinLon
	if h > 1 {
		h = 1
	}
	return 2 * EarthRadiusMeters * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Within reports whether point lies inside the circle, boundary included.
func Within(point, center Point, radiusMeters float64) bool {
	return DistanceMeters(point, center) <= radiusMeters
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// Slot is a daily attendance window expressed as offsets from local midnight.
// Both ends are inclusive.
type Slot struct {
	Name  string
	Start time.Duration
	End   time.Duration
}

// Label renders the slot for display, e.g. "Evening (20:00 - 21:30)".
func (s Slot) Label() string {
	return fmt.Sprintf("%s (%s - %s)", s.Name, clock(s.Start), clock(s.End))
}

func (s Slot) contains(offset time.Duration) bool {
	return offset >= s.Start && offset <= s.End
}

func clock(d time.Duration) string {
	return fmt.Sprintf("%02d:%02d", int(d.Hours()), int(d.Minutes())%60)
}

var (
	MorningSlot = Slot{Name: "Morning", Start: 7 * time.Hour, End: 9 * time.Hour}
	EveningSlot = Slot{Name: "Evening", Start: 20 * time.Hour, End: 21*time.Hour + 30*time.Minute}
)

// WindowStatus is the result of an attendance window check.
type WindowStatus struct {
	Allowed       bool   `json:"allowed"`
	CurrentSlot   string `json:"current_slot,omitempty"`
	NextSlotLabel string `json:"next_slot_label,omitempty"`
}

// CheckWindow evaluates now against the morning and evening slots in loc.
// A nil loc evaluates in now's own location. Slot ends are exact instants:
// 21:30:00 is inside the evening slot, 21:30:00.5 is not.
func CheckWindow(now time.Time, loc *time.Location) WindowStatus {
	if loc != nil {
		now = now.In(loc)
	}
	offset := sinceMidnight(now)

	switch {
	case MorningSlot.contains(offset):
		return WindowStatus{Allowed: true, CurrentSlot: MorningSlot.Name}
	case EveningSlot.contains(offset):
		return WindowStatus{Allowed: true, CurrentSlot: EveningSlot.Name}
	case offset < MorningSlot.Start:
		return WindowStatus{NextSlotLabel: MorningSlot.Label()}
	case offset < EveningSlot.Start:
		return WindowStatus{NextSlotLabel: EveningSlot.Label()}
	default:
		return WindowStatus{NextSlotLabel: "Tomorrow " + MorningSlot.Label()}
	}
}

// sinceMidnight is the wall-clock time of day of t, nanoseconds included
func sinceMidnight(t time.Time) time.Duration {
	h, m, s := t.Clock()
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second + time.Duration(t.Nanosecond())
}
