// Package timex holds small time helpers shared by the config loaders.
package timex

import (
	"encoding/json"
	"fmt"
	"time"
)

// Duration wraps time.Duration so JSON config files may carry either a Go
// duration string ("15m", "720h") or an integer number of nanoseconds.
type Duration struct {
	time.Duration
}

// UnmarshalJSON accepts "1m30s" style strings and integer nanoseconds.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value)
		return nil
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", value, err)
		}
		d.Duration = parsed
		return nil
	default:
		return fmt.Errorf("invalid duration type %T", v)
	}
}

// MarshalJSON writes the duration in its string form.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// YearsBetween returns the number of full calendar years elapsed from
// since to now. A negative value means since lies in the future.
func YearsBetween(since, now time.Time) int {
	years := now.Year() - since.Year()
	if now.Month() < since.Month() || (now.Month() == since.Month() && now.Day() < since.Day()) {
		years--
	}
	return years
}
