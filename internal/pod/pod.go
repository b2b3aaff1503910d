package pod

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// namespace seeds deterministic match IDs so the same groups always produce
// the same identifiers.
var namespace = uuid.MustParse("6f1c7b52-3c1e-4b8e-9a4f-2d8f5b9c0e11")

// Status is the lifecycle state of a match.
type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusInProgress Status = "in_progress"
	StatusFinished   Status = "finished"
	StatusCancelled  Status = "cancelled"
)

// TeamRef is one side of a match: a concrete team, a textual placeholder
// such as "winner of match 1", or neither (bye/unknown).
type TeamRef struct {
	ID          string
	Placeholder string
}

// Team returns a reference to a concrete team.
func Team(id string) TeamRef { return TeamRef{ID: id} }

// IsEmpty reports whether the reference names nothing.
func (r TeamRef) IsEmpty() bool { return r.ID == "" && r.Placeholder == "" }

func (r TeamRef) String() string {
	if r.ID != "" {
		return r.ID
	}
	if r.Placeholder != "" {
		return r.Placeholder
	}
	return "BYE"
}

// Group is a pod of 3 or 4 teams. Order is the fixed group index (A=1, B=2, ...).
type Group struct {
	ID    string
	Order int
	Teams []string
}

// Match is a single game. Order is 1-4 inside a 4-team pod and 0 otherwise.
// Date, Start, End and Court stay zero until the match is scheduled.
type Match struct {
	ID      string
	GroupID string
	Team1   TeamRef
	Team2   TeamRef
	Order   int
	Date    time.Time
	Start   string
	End     string
	Court   string
	Status  Status
}

// Teams returns the concrete team IDs playing in the match.
func (m Match) Teams() []string {
	var teams []string
	for _, r := range []TeamRef{m.Team1, m.Team2} {
		if r.ID != "" {
			teams = append(teams, r.ID)
		}
	}
	return teams
}

// IsScheduled reports whether the match has a date, time and court.
func (m Match) IsScheduled() bool {
	return !m.Date.IsZero() && m.Start != "" && m.Court != ""
}

// Label is a short human readable description like "Hawks vs Owls".
func (m Match) Label() string {
	return fmt.Sprintf("%s vs %s", m.Team1, m.Team2)
}

// GenerateMatches builds the group-stage matches for every pod. A 3-team pod
// plays a round robin; a 4-team pod plays two first-round games followed by
// a winners game (order 3) and a losers game (order 4).
func GenerateMatches(groups []Group) ([]Match, error) {
	seenGroups := make(map[string]bool)
	seenTeams := make(map[string]string)
	var matches []Match

	for _, g := range groups {
		if g.ID == "" {
			return nil, fmt.Errorf("group has no id")
		}
		if seenGroups[g.ID] {
			return nil, fmt.Errorf("group %q appears more than once", g.ID)
		}
		seenGroups[g.ID] = true

		for _, team := range g.Teams {
			if prev, ok := seenTeams[team]; ok {
				return nil, fmt.Errorf("team %q appears in both group %q and group %q", team, prev, g.ID)
			}
			seenTeams[team] = g.ID
		}

		switch len(g.Teams) {
		case 3:
			matches = append(matches, roundRobin(g)...)
		case 4:
			matches = append(matches, fourPod(g)...)
		default:
			return nil, fmt.Errorf("group %q has %d teams, want 3 or 4", g.ID, len(g.Teams))
		}
	}

	return matches, nil
}

func roundRobin(g Group) []Match {
	var matches []Match
	n := 0
	for i := 0; i < len(g.Teams); i++ {
		for j := i + 1; j < len(g.Teams); j++ {
			n++
			matches = append(matches, Match{
				ID:      MatchID(g.ID, n),
				GroupID: g.ID,
				Team1:   Team(g.Teams[i]),
				Team2:   Team(g.Teams[j]),
				Status:  StatusScheduled,
			})
		}
	}
	return matches
}

func fourPod(g Group) []Match {
	t := g.Teams
	m := func(order int, a, b TeamRef) Match {
		return Match{
			ID:      MatchID(g.ID, order),
			GroupID: g.ID,
			Order:   order,
			Team1:   a,
			Team2:   b,
			Status:  StatusScheduled,
		}
	}
	placeholder := func(kind string, order int) TeamRef {
		return TeamRef{Placeholder: fmt.Sprintf("%s of %s%d", kind, g.ID, order)}
	}
	return []Match{
		m(1, Team(t[0]), Team(t[3])),
		m(2, Team(t[1]), Team(t[2])),
		m(3, placeholder("winner", 1), placeholder("winner", 2)),
		m(4, placeholder("loser", 1), placeholder("loser", 2)),
	}
}

// MatchID returns the deterministic identifier of the n-th match of a group.
func MatchID(groupID string, n int) string {
	return uuid.NewSHA1(namespace, []byte(fmt.Sprintf("%s/%d", groupID, n))).String()
}

// TeamsByGroup maps every group ID to the concrete teams appearing in its
// matches, in first-seen order.
func TeamsByGroup(matches []Match) map[string][]string {
	out := make(map[string][]string)
	seen := make(map[string]bool)
	for _, m := range matches {
		if m.GroupID == "" {
			continue
		}
		for _, team := range m.Teams() {
			key := m.GroupID + "\x00" + team
			if seen[key] {
				continue
			}
			seen[key] = true
			out[m.GroupID] = append(out[m.GroupID], team)
		}
	}
	return out
}
