package date

import (
	"fmt"
	"strings"
	"time"
)

// Window is a trailing time span used for history charts.
type Window int

const (
	Last24h Window = iota
	Last7d
	Last30d
	Last90d
	LastYear
)

func (w Window) String() string {
	switch w {
	case Last24h:
		return "24h"
	case Last7d:
		return "7d"
	case Last30d:
		return "30d"
	case Last90d:
		return "90d"
	case LastYear:
		return "1y"
	default:
		panic(fmt.Sprintf("unknown window %d", w))
	}
}

// Days is the "days" parameter of a market chart request covering the window.
func (w Window) Days() int {
	switch w {
	case Last24h:
		return 1
	case Last7d:
		return 7
	case Last30d:
		return 30
	case Last90d:
		return 90
	default:
		return 365
	}
}

// Duration returns the span of the window.
func (w Window) Duration() time.Duration { return time.Duration(w.Days()) * Day }

// Since returns the start of the window ending at now.
func (w Window) Since(now time.Time) time.Time { return now.Add(-w.Duration()) }

func ParseWindow(w string) (Window, error) {
	switch strings.ToLower(w) {
	case "24h", "1d", "day":
		return Last24h, nil
	case "7d", "week":
		return Last7d, nil
	case "30d", "month":
		return Last30d, nil
	case "90d", "quarter":
		return Last90d, nil
	case "1y", "365d", "year":
		return LastYear, nil
	default:
		return Last24h, fmt.Errorf("unknown window %s", w)
	}
}
