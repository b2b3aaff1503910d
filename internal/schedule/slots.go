package schedule

import (
	"fmt"
	"sort"
	"strconv"
	"time"
)

// Clock is a time of day in minutes since midnight.
type Clock int

// ParseClock parses a 24-hour "HH:MM" string. "24:00" is accepted as the end
// of the day.
func ParseClock(s string) (Clock, error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, fmt.Errorf("invalid time %q: want HH:MM", s)
	}
	h, err := strconv.Atoi(s[:2])
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: %w", s, err)
	}
	m, err := strconv.Atoi(s[3:])
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: %w", s, err)
	}
	if m < 0 || m > 59 || h < 0 || h > 24 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("invalid time %q: out of range", s)
	}
	return Clock(h*60 + m), nil
}

// MustClock is ParseClock for constants and tests.
func MustClock(s string) Clock {
	c, err := ParseClock(s)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// Day is a scheduling day and the clock range matches may occupy on it.
type Day struct {
	Date  time.Time
	Start Clock
	End   Clock
}

// Window is a clock range on a specific date. Availability windows and team
// restrictions are both windows.
type Window struct {
	Date  time.Time
	Start Clock
	End   Clock
}

// Contains reports whether [start, end) on date lies fully inside the window.
func (w Window) Contains(date time.Time, start, end Clock) bool {
	return sameDate(w.Date, date) && w.Start <= start && end <= w.End
}

// Overlaps reports whether [start, end) on date intersects the window.
func (w Window) Overlaps(date time.Time, start, end Clock) bool {
	return sameDate(w.Date, date) && start < w.End && w.Start < end
}

// TimeSlot is a bookable (date, start, end) on one court. Court is the index
// into the request's court list.
type TimeSlot struct {
	Date  time.Time
	Start Clock
	End   Clock
	Court int
}

func (s TimeSlot) String() string {
	return fmt.Sprintf("%s %s-%s court %d", s.Date.Format("2006-01-02"), s.Start, s.End, s.Court+1)
}

// GenerateSlots steps through every day in increments of the match duration
// and emits one slot per court for each step that fits before the day's end.
// When availability windows are given, a step is kept only if it lies fully
// inside one of them. Slots are ordered by date, start time and court.
func GenerateSlots(days []Day, duration, courts int, windows []Window) []TimeSlot {
	if duration <= 0 || courts <= 0 {
		return nil
	}

	var slots []TimeSlot
	for _, d := range days {
		date := truncateDate(d.Date)
		for t := d.Start; t+Clock(duration) <= d.End; t += Clock(duration) {
			end := t + Clock(duration)
			if len(windows) > 0 && !insideAny(windows, date, t, end) {
				continue
			}
			for c := 0; c < courts; c++ {
				slots = append(slots, TimeSlot{Date: date, Start: t, End: end, Court: c})
			}
		}
	}

	sort.SliceStable(slots, func(i, j int) bool {
		if !slots[i].Date.Equal(slots[j].Date) {
			return slots[i].Date.Before(slots[j].Date)
		}
		if slots[i].Start != slots[j].Start {
			return slots[i].Start < slots[j].Start
		}
		return slots[i].Court < slots[j].Court
	})

	return slots
}

func insideAny(windows []Window, date time.Time, start, end Clock) bool {
	for _, w := range windows {
		if w.Contains(date, start, end) {
			return true
		}
	}
	return false
}

func truncateDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// minutesBetween returns the minutes from the start of a to the start of b,
// counting whole days between their dates.
func minutesBetween(a, b TimeSlot) int {
	days := int(truncateDate(b.Date).Sub(truncateDate(a.Date)).Hours() / 24)
	return days*24*60 + int(b.Start) - int(a.Start)
}
