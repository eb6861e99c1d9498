package assist

import (
	"time"

	"github.com/soniakeys/meeus/julian"
)

// TimeToJD converts a wall-clock time to the Julian date used as the
// integration coordinate. The ephemeris time argument is TDB; the
// sub-minute offset between UTC and TDB is far below the accuracy of
// any initial condition specified as a calendar date, so no leap
// second table is carried.
func TimeToJD(t time.Time) float64 {
	return julian.TimeToJD(t.UTC())
}

// JDToTime converts a Julian date back to a wall-clock time.
func JDToTime(jd float64) time.Time {
	return julian.JDToTime(jd)
}
