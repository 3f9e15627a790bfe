package session

import (
	"errors"
	"time"
)

// Validation failures surfaced at session creation. Nothing is persisted
// when any of these fire.
var (
	ErrSubjectRequired      = errors.New("subject required")
	ErrRoomRequired         = errors.New("room required")
	ErrInvalidWindow        = errors.New("end time must be after start time")
	ErrInvalidRadius        = errors.New("radius must be positive")
	ErrInvalidLateThreshold = errors.New("late threshold must be between 0 and session duration")
	ErrInvalidCoordinates   = errors.New("latitude/longitude out of range")
	ErrNotFound             = errors.New("session not found")
)

// Session is a scheduled, geolocated event for which attendance may be
// claimed. Immutable once created.
type Session struct {
	Token        string    `json:"token"`
	TeacherID    string    `json:"teacher_id"`
	Subject      string    `json:"subject"`
	Room         string    `json:"room"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	RadiusM      float64   `json:"radius_m"`
	LateAfterMin int       `json:"late_after_min"`
	Year         *int      `json:"year,omitempty"`
	Batch        *int      `json:"batch,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Validate checks the session invariants: end > start, radius > 0,
// 0 <= late threshold <= duration, coordinates in range.
func (s Session) Validate() error {
	if s.Subject == "" {
		return ErrSubjectRequired
	}
	if s.Room == "" {
		return ErrRoomRequired
	}
	if !s.End.After(s.Start) {
		return ErrInvalidWindow
	}
	if s.RadiusM <= 0 {
		return ErrInvalidRadius
	}
	duration := s.End.Sub(s.Start)
	late := time.Duration(s.LateAfterMin) * time.Minute
	if s.LateAfterMin < 0 || late > duration {
		return ErrInvalidLateThreshold
	}
	if s.Latitude < -90 || s.Latitude > 90 || s.Longitude < -180 || s.Longitude > 180 {
		return ErrInvalidCoordinates
	}
	return nil
}

// OpenTo reports whether the session audience scope admits a student of the
// given year and batch. Nil scope fields mean open to all.
func (s Session) OpenTo(year, batch int) bool {
	if s.Year != nil && *s.Year != year {
		return false
	}
	if s.Batch != nil && *s.Batch != batch {
		return false
	}
	return true
}
