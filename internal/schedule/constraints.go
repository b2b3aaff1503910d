package schedule

import "time"

// Restriction blocks a team from playing during a window.
type Restriction struct {
	Team  string
	Date  time.Time
	Start Clock
	End   Clock
}

// OrderViolation is a bit set of broken 4-team pod dependencies.
type OrderViolation uint8

const (
	// WinnersOrder: order 3 placed before the first round has finished and rested.
	WinnersOrder OrderViolation = 1 << iota
	// LosersOrder: order 4 placed before order 3 or before the first round has rested.
	LosersOrder
)

// Count returns how many violation types are set.
func (v OrderViolation) Count() int {
	n := 0
	for b := v; b != 0; b &= b - 1 {
		n++
	}
	return n
}

// relation says match order `after` must follow match order `before` with
// `rest` full match durations between them when on the same day, and never
// on an earlier date.
type relation struct {
	before, after int
	rest          int
	kind          OrderViolation
}

var podRelations = []relation{
	{before: 1, after: 3, rest: 1, kind: WinnersOrder},
	{before: 2, after: 3, rest: 1, kind: WinnersOrder},
	{before: 1, after: 4, rest: 1, kind: LosersOrder},
	{before: 2, after: 4, rest: 1, kind: LosersOrder},
	{before: 3, after: 4, rest: 0, kind: LosersOrder},
}

// Checker holds the hard-rule predicates shared by every strategy.
type Checker struct {
	Duration     int
	restrictions map[string][]Window
}

// NewChecker builds a checker for a match duration in minutes and a set of
// per-team restrictions.
func NewChecker(duration int, restrictions []Restriction) Checker {
	byTeam := make(map[string][]Window)
	for _, r := range restrictions {
		byTeam[r.Team] = append(byTeam[r.Team], Window{Date: r.Date, Start: r.Start, End: r.End})
	}
	return Checker{Duration: duration, restrictions: byTeam}
}

// RestOK reports whether candidate keeps at least one full match duration of
// rest against every committed slot on the same day.
func (c Checker) RestOK(candidate TimeSlot, committed ...TimeSlot) bool {
	for _, o := range committed {
		if !sameDate(o.Date, candidate.Date) {
			continue
		}
		first, second := o, candidate
		if candidate.Start < o.Start {
			first, second = candidate, o
		}
		if second.Start < first.End+Clock(c.Duration) {
			return false
		}
	}
	return true
}

// OrderOK reports whether a 4-team pod match of the given order may take
// candidate, given the slots already held by the other matches of its pod.
func (c Checker) OrderOK(order int, candidate TimeSlot, siblings map[int]TimeSlot) bool {
	return c.OrderViolations(order, candidate, siblings) == 0
}

// OrderViolations returns the dependency types candidate would break.
// Relations are checked in both directions, so pod matches may be placed in
// any order.
func (c Checker) OrderViolations(order int, candidate TimeSlot, siblings map[int]TimeSlot) OrderViolation {
	if order == 0 {
		return 0
	}
	var v OrderViolation
	for _, r := range podRelations {
		switch order {
		case r.after:
			if prev, ok := siblings[r.before]; ok && !c.follows(prev, candidate, r.rest) {
				v |= r.kind
			}
		case r.before:
			if next, ok := siblings[r.after]; ok && !c.follows(candidate, next, r.rest) {
				v |= r.kind
			}
		}
	}
	return v
}

// satisfied counts the pod relations involving order that hold for candidate.
func (c Checker) satisfied(order int, candidate TimeSlot, siblings map[int]TimeSlot) int {
	n := 0
	for _, r := range podRelations {
		switch order {
		case r.after:
			if prev, ok := siblings[r.before]; ok && c.follows(prev, candidate, r.rest) {
				n++
			}
		case r.before:
			if next, ok := siblings[r.after]; ok && c.follows(candidate, next, r.rest) {
				n++
			}
		}
	}
	return n
}

func (c Checker) follows(first, second TimeSlot, rest int) bool {
	if truncateDate(second.Date).Before(truncateDate(first.Date)) {
		return false
	}
	if sameDate(first.Date, second.Date) {
		return second.Start >= first.End+Clock(rest*c.Duration)
	}
	return true
}

// Blocked reports whether candidate falls inside one of the team's
// restricted windows.
func (c Checker) Blocked(team string, candidate TimeSlot) bool {
	for _, w := range c.restrictions[team] {
		if w.Overlaps(candidate.Date, candidate.Start, candidate.End) {
			return true
		}
	}
	return false
}

// BlockedAny reports whether any of teams is blocked for candidate.
func (c Checker) BlockedAny(teams []string, candidate TimeSlot) bool {
	for _, t := range teams {
		if c.Blocked(t, candidate) {
			return true
		}
	}
	return false
}
