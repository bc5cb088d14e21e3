package utils

import (
	"fmt"
	"time"
)

// FormatRoundedUnit renders seconds as a compact "42s", "7m" or "3h" label.
func FormatRoundedUnit(seconds int64) string {
	if seconds < 0 {
		seconds = -seconds
	}
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}
	if seconds > 3600 {
		return fmt.Sprintf("%dh", int64(seconds/3600))
	}
	return fmt.Sprintf("%dm", int64(seconds/60))
}

// HumanizeElapsed renders d as whole seconds below one minute and as whole
// minutes (floored) otherwise, e.g. "1 second", "45 seconds", "2 minutes".
func HumanizeElapsed(d time.Duration) string {
	if d < time.Minute {
		return pluralize(int64(d/time.Second), "second")
	}
	return pluralize(int64(d/time.Minute), "minute")
}

func pluralize(n int64, unit string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
