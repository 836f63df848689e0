package diurnal

import (
	"fmt"
	"time"
)

// Window selects how far back from the anchor the aggregation looks. The
// anchor is the latest data timestamp, not wall-clock now.
type Window time.Duration

const (
	Window7d  Window = Window(7 * 24 * time.Hour)
	Window14d Window = Window(14 * 24 * time.Hour)
)

// ParseWindow maps a window selector to a Window. The empty string selects
// the default 14-day window.
func ParseWindow(s string) (Window, error) {
	switch s {
	case "", "14d":
		return Window14d, nil
	case "7d":
		return Window7d, nil
	}
	return 0, fmt.Errorf("unknown window %q (want 7d or 14d)", s)
}

func (w Window) String() string {
	if w == Window7d {
		return "7d"
	}
	return "14d"
}
