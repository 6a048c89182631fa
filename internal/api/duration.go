package api

import "time"

// secondsThreshold separates the two units the backend uses for durations:
// values below one hour worth of milliseconds are taken as seconds.
const secondsThreshold = int64(time.Hour / time.Millisecond)

// DurationFromBackend converts a backend duration value. The backend does not
// tag the unit, so small values are read as seconds and large values as
// milliseconds. This misreads sub-hour millisecond durations; all unit
// guessing lives here so it can be replaced once the backend sends a unit.
func DurationFromBackend(v int64) time.Duration {
	if v < secondsThreshold {
		return time.Duration(v) * time.Second
	}
	return time.Duration(v) * time.Millisecond
}
