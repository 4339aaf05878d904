package gtfs

import (
	"fmt"
	"strconv"
	"strings"
)

// SecondsPerDay is one nominal service day
const SecondsPerDay = 24 * 3600

// ParseTimeToSeconds converts GTFS time format (HH:MM:SS or HH:MM) to
// seconds since midnight of the service day.
// Handles times >= 24:00:00 (next day continuation of the same service day).
func ParseTimeToSeconds(timeStr string) (int, error) {
	if timeStr == "" {
		return 0, fmt.Errorf("empty time string")
	}

	parts := strings.Split(timeStr, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid time format: %s", timeStr)
	}

	hours, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || hours < 0 {
		return 0, fmt.Errorf("invalid hours in %q", timeStr)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("invalid minutes in %q", timeStr)
	}

	seconds := 0
	if len(parts) == 3 {
		seconds, err = strconv.Atoi(parts[2])
		if err != nil || seconds < 0 || seconds > 59 {
			return 0, fmt.Errorf("invalid seconds in %q", timeStr)
		}
	}

	return hours*3600 + minutes*60 + seconds, nil
}

// FormatSeconds renders seconds since midnight as HH:MM:SS.
// Values past 24:00:00 keep the service-day clock (e.g. 87900 -> "24:25:00").
func FormatSeconds(secs int) string {
	if secs < 0 {
		secs = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, (secs%3600)/60, secs%60)
}
