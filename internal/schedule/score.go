package schedule

import "github.com/derekprior/podsched/internal/pod"

// Score weights. Higher scores are better.
const (
	earlySlotWeight  = 100.0
	dependencyBonus  = 50.0
	tightFollowBonus = 20.0
	clusterBonus     = 30.0
	spreadPenalty    = 15.0
	winnersPenalty   = 25000.0
	losersPenalty    = 10000.0

	// clusterWindow is how close (in minutes) two same-day matches of a team
	// must start to count as clustered.
	clusterWindow = 180
)

// Candidate describes one possible placement of a match for scoring.
type Candidate struct {
	Match pod.Match
	Slot  TimeSlot
	// Index is the slot's position in the generated slot sequence of Total slots.
	Index int
	Total int
	// TeamSlots are slots already committed to matches sharing a team.
	TeamSlots []TimeSlot
	// Siblings are slots already committed to the other orders of a 4-team pod.
	Siblings map[int]TimeSlot
	// Violations is non-zero only in relaxed mode.
	Violations OrderViolation
	Checker    Checker
}

// ScoreFunc rates a candidate placement. Every strategy uses the same one so
// ties break the same way everywhere.
type ScoreFunc func(c Candidate) float64

// DefaultScore rewards early slots, satisfied pod dependencies and a team's
// matches clustering within a few hours on the same day. Relaxed-mode order
// violations carry a large penalty per violation type.
func DefaultScore(c Candidate) float64 {
	score := 0.0

	if c.Total > 0 {
		score += earlySlotWeight * (1 - float64(c.Index)/float64(c.Total))
	}

	if c.Match.Order > 0 {
		score += dependencyBonus * float64(c.Checker.satisfied(c.Match.Order, c.Slot, c.Siblings))
		for _, s := range c.Siblings {
			if sameDate(s.Date, c.Slot.Date) && absClock(s.Start-c.Slot.Start) <= clusterWindow {
				score += tightFollowBonus
			}
		}
	}

	if c.Violations&WinnersOrder != 0 {
		score -= winnersPenalty
	}
	if c.Violations&LosersOrder != 0 {
		score -= losersPenalty
	}

	for _, s := range c.TeamSlots {
		if !sameDate(s.Date, c.Slot.Date) {
			continue
		}
		if absClock(s.Start-c.Slot.Start) <= clusterWindow {
			score += clusterBonus
		} else {
			score -= spreadPenalty
		}
	}

	return score
}

func absClock(c Clock) Clock {
	if c < 0 {
		return -c
	}
	return c
}
