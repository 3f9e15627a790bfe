package attendance

import (
	"fmt"
	"time"

	"presence/internal/geo"
	"presence/internal/session"
)

// EarlyGrace is the fixed window before session start during which a
// submission is still admitted. It absorbs clock drift between client
// and server.
const EarlyGrace = 2 * time.Minute

// Status classifies one evaluated submission. The value is a stable tag;
// callers branch on it, never on the human-readable reason.
type Status string

const (
	StatusPresent             Status = "Present"
	StatusLate                Status = "Late"
	StatusRejectedTooEarly    Status = "RejectedTooEarly"
	StatusRejectedClosed      Status = "RejectedClosed"
	StatusRejectedOutOfRadius Status = "RejectedOutOfRadius"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPresent, StatusLate, StatusRejectedTooEarly, StatusRejectedClosed, StatusRejectedOutOfRadius:
		return true
	}
	return false
}

// Accepted reports whether the student was admitted as attending.
func (s Status) Accepted() bool {
	return s == StatusPresent || s == StatusLate
}

// Decision is the outcome of evaluating one submission. Reason embeds the
// measured distance or the violated time boundary for operator legibility.
type Decision struct {
	Status    Status  `json:"status"`
	Reason    string  `json:"reason"`
	DistanceM float64 `json:"distance_m"`
}

// Evaluate turns (session, reported location, evaluation time) into a
// Decision. Time checks run before the radius check so a too-early or
// too-late submission carries the more actionable reason even when it is
// also out of range. Exact boundary instants favour the earlier status.
func Evaluate(sess session.Session, lat, lon, accuracyM float64, at time.Time) Decision {
	distance := geo.Distance(lat, lon, sess.Latitude, sess.Longitude)
	earlyBoundary := sess.Start.Add(-EarlyGrace)
	lateBoundary := sess.Start.Add(time.Duration(sess.LateAfterMin) * time.Minute)

	switch {
	case at.Before(earlyBoundary):
		return Decision{
			Status:    StatusRejectedTooEarly,
			Reason:    fmt.Sprintf("RejectedTooEarly: submissions open at %s", earlyBoundary.Format("15:04:05")),
			DistanceM: distance,
		}
	case at.After(sess.End):
		return Decision{
			Status:    StatusRejectedClosed,
			Reason:    fmt.Sprintf("RejectedClosed: session ended at %s", sess.End.Format("15:04:05")),
			DistanceM: distance,
		}
	case distance > sess.RadiusM:
		return Decision{
			Status:    StatusRejectedOutOfRadius,
			Reason:    fmt.Sprintf("RejectedOutOfRadius: %.1fm from anchor, allowed %.0fm", distance, sess.RadiusM),
			DistanceM: distance,
		}
	case !at.After(lateBoundary):
		return Decision{
			Status:    StatusPresent,
			Reason:    fmt.Sprintf("Present: %.1fm from anchor", distance),
			DistanceM: distance,
		}
	default:
		return Decision{
			Status:    StatusLate,
			Reason:    fmt.Sprintf("Late: after %s cutoff, %.1fm from anchor", lateBoundary.Format("15:04:05"), distance),
			DistanceM: distance,
		}
	}
}
