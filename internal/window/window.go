// Package window decides whether the monitor may run at a given instant.
package window

import (
	"fmt"
	"sort"
	"strings"
	"time"

	// Embedded zoneinfo so the configured zone resolves on minimal images.
	_ "time/tzdata"
)

// DefaultTimezone is the reference zone used when none is configured.
const DefaultTimezone = "Pacific/Auckland"

// Window is the operating window: allowed weekdays (Monday=0 … Sunday=6) and
// the half-open hour range [StartHour, EndHour) evaluated in Location.
// Ranges that wrap past midnight are not supported.
type Window struct {
	StartHour int
	EndHour   int
	Days      map[int]struct{}
	Location  *time.Location
}

// New builds a Window, loading the named IANA zone.
func New(startHour, endHour int, days []int, timezone string) (Window, error) {
	if startHour < 0 || startHour > 23 {
		return Window{}, fmt.Errorf("start hour %d out of range 0..23", startHour)
	}
	if endHour < 0 || endHour > 23 {
		return Window{}, fmt.Errorf("end hour %d out of range 0..23", endHour)
	}
	if strings.TrimSpace(timezone) == "" {
		timezone = DefaultTimezone
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return Window{}, fmt.Errorf("load timezone %q: %w", timezone, err)
	}
	set := make(map[int]struct{}, len(days))
	for _, d := range days {
		if d < 0 || d > 6 {
			return Window{}, fmt.Errorf("operating day %d out of range 0..6", d)
		}
		set[d] = struct{}{}
	}
	return Window{
		StartHour: startHour,
		EndHour:   endHour,
		Days:      set,
		Location:  loc,
	}, nil
}

// Weekday maps t to Monday=0 … Sunday=6.
func Weekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// ShouldRun reports whether now falls on an operating day and inside the
// operating hours, both evaluated in the window's zone.
func (w Window) ShouldRun(now time.Time) bool {
	local := w.local(now)
	if _, ok := w.Days[Weekday(local)]; !ok {
		return false
	}
	hour := local.Hour()
	return w.StartHour <= hour && hour < w.EndHour
}

// Explain describes the gate decision for now in a form suitable for logs.
func (w Window) Explain(now time.Time) string {
	local := w.local(now)
	day := Weekday(local)
	if _, ok := w.Days[day]; !ok {
		return fmt.Sprintf("%s (day %d) is not in operating days %v",
			local.Weekday(), day, w.SortedDays())
	}
	hour := local.Hour()
	if hour < w.StartHour || hour >= w.EndHour {
		return fmt.Sprintf("current time %s is outside operating hours (%d-%d)",
			local.Format("15:04"), w.StartHour, w.EndHour)
	}
	return fmt.Sprintf("operating within window: %s on %s", local.Format("15:04"), local.Weekday())
}

// SortedDays returns the operating days in ascending order.
func (w Window) SortedDays() []int {
	out := make([]int, 0, len(w.Days))
	for d := range w.Days {
		out = append(out, d)
	}
	sort.Ints(out)
	return out
}

func (w Window) local(now time.Time) time.Time {
	if w.Location == nil {
		return now
	}
	return now.In(w.Location)
}
