package schedule

import (
	"errors"
	"fmt"
)

var (
	// ErrInfeasible means there are fewer slots than matches.
	ErrInfeasible = errors.New("not enough time slots")
	// ErrNoCandidate means a match or pod has no slot satisfying the hard rules.
	ErrNoCandidate = errors.New("no legal time slot")
)

// InfeasibleError reports the exact shortfall found before any search runs.
type InfeasibleError struct {
	Required  int
	Available int
}

func (e *InfeasibleError) Error() string {
	return fmt.Sprintf("need %d time slots for %d matches but only %d are available",
		e.Required, e.Required, e.Available)
}

func (e *InfeasibleError) Is(target error) bool { return target == ErrInfeasible }

// NoCandidateError names the match (or whole pod) a strategy could not place.
type NoCandidateError struct {
	Strategy string
	MatchID  string
	GroupID  string
	Label    string
	Pod      bool
}

func (e *NoCandidateError) Error() string {
	if e.Pod {
		return fmt.Sprintf("%s: no valid slot set for pod %s", e.Strategy, e.GroupID)
	}
	if e.GroupID != "" {
		return fmt.Sprintf("%s: no legal slot for match %s (%s, group %s)", e.Strategy, e.MatchID, e.Label, e.GroupID)
	}
	return fmt.Sprintf("%s: no legal slot for match %s (%s)", e.Strategy, e.MatchID, e.Label)
}

func (e *NoCandidateError) Is(target error) bool { return target == ErrNoCandidate }
