package bracket

import (
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// ErrNotEnoughTeams is returned when fewer than two teams qualify.
var ErrNotEnoughTeams = errors.New("at least 2 teams required")

// maxSeedDepth bounds StandardSeedOrder's recursion (brackets up to 2^16).
const maxSeedDepth = 16

var namespace = uuid.MustParse("0b7d3c2e-8f4a-4d61-b1a5-7c9e2f6d4a83")

// QualifiedTeam is a team that advanced out of group play.
type QualifiedTeam struct {
	TeamID     string
	GroupID    string
	Position   int // finishing place in the group: 1, 2 or 3
	GroupOrder int // A=1, B=2, ...; zero means look it up by GroupID
}

// Source points at the match whose winner fills a bracket slot.
type Source struct {
	Round    string
	Position int
}

func (s Source) String() string {
	return fmt.Sprintf("winner of %s %d", s.Round, s.Position)
}

// Entrant is one side of a playoff match: a known team, the winner of an
// earlier match, or nothing (a true bye).
type Entrant struct {
	TeamID string
	Source *Source
}

// IsBye reports whether the slot is empty.
func (e Entrant) IsBye() bool { return e.TeamID == "" && e.Source == nil }

func (e Entrant) String() string {
	switch {
	case e.TeamID != "":
		return e.TeamID
	case e.Source != nil:
		return e.Source.String()
	default:
		return "BYE"
	}
}

// Match is one playoff game.
type Match struct {
	ID          string
	Round       string
	RoundNumber int
	Position    int
	Home        Entrant
	Away        Entrant
}

// FirstRound describes how many teams must play before the bracket is a
// power of two.
type FirstRound struct {
	// NextRoundSize is the number of teams in the round after the first.
	NextRoundSize int
	TeamsPlaying  int
	TeamsWithBye  int
	Name          string
	// Direct is true when the first round is already the final.
	Direct bool
}

// RoundName names a round by how many teams are in it.
func RoundName(teams int) string {
	switch teams {
	case 2:
		return "final"
	case 4:
		return "semifinal"
	case 8:
		return "quarterfinal"
	default:
		return fmt.Sprintf("round-of-%d", teams)
	}
}

// BuildGlobalRanking orders qualified teams into a single seed list: group
// winners by ascending group order, runners-up by descending group order,
// then third places (and below) by ascending group order.
func BuildGlobalRanking(teams []QualifiedTeam, groupOrder map[string]int) ([]QualifiedTeam, error) {
	ranked := make([]QualifiedTeam, len(teams))
	copy(ranked, teams)

	for i := range ranked {
		if ranked[i].GroupOrder != 0 {
			continue
		}
		order, ok := groupOrder[ranked[i].GroupID]
		if !ok {
			return nil, fmt.Errorf("no group order for group %q (team %q)", ranked[i].GroupID, ranked[i].TeamID)
		}
		ranked[i].GroupOrder = order
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Position != b.Position {
			return a.Position < b.Position
		}
		if a.Position == 2 {
			return a.GroupOrder > b.GroupOrder
		}
		return a.GroupOrder < b.GroupOrder
	})
	return ranked, nil
}

// CalculateFirstRound works out byes for n ranked teams. Fewer than two
// teams play no round at all: the result is empty apart from TeamsWithBye.
func CalculateFirstRound(n int) FirstRound {
	if n < 2 {
		return FirstRound{TeamsWithBye: max(n, 0)}
	}
	next := 1
	for next < (n+1)/2 {
		next *= 2
	}
	playing := 2 * (n - next)
	return FirstRound{
		NextRoundSize: next,
		TeamsPlaying:  playing,
		TeamsWithBye:  n - playing,
		Name:          RoundName(2 * next),
		Direct:        next == 1,
	}
}

// StandardSeedOrder returns seeds 1..size in bracket position order so that
// adjacent pairs are first-round opponents and seeds 1 and 2 can only meet
// in the final. Sizes that are not a power of two, or that exceed the depth
// limit, get sequential order.
func StandardSeedOrder(size int) []int {
	if size < 2 || size&(size-1) != 0 {
		return sequential(size)
	}
	order, ok := seedOrder(size, 0)
	if !ok {
		return sequential(size)
	}
	return order
}

func seedOrder(size, depth int) ([]int, bool) {
	if depth > maxSeedDepth {
		return nil, false
	}
	if size == 2 {
		return []int{1, 2}, true
	}
	half, ok := seedOrder(size/2, depth+1)
	if !ok {
		return nil, false
	}
	out := make([]int, 0, size)
	for _, s := range half {
		out = append(out, s, size+1-s)
	}
	return out, true
}

func sequential(size int) []int {
	out := make([]int, 0, size)
	for i := 1; i <= size; i++ {
		out = append(out, i)
	}
	return out
}

// GeneratePlayoffs ranks the qualified teams and builds the bracket.
func GeneratePlayoffs(teams []QualifiedTeam, groupOrder map[string]int) ([]Match, error) {
	ranked, err := BuildGlobalRanking(teams, groupOrder)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(ranked))
	for i, t := range ranked {
		ids[i] = t.TeamID
	}
	return Generate(ids)
}

// Generate builds a single-elimination bracket from teams already in seed
// order, down to the final. Rounds after the first refer to earlier matches
// through Source.
func Generate(ranked []string) ([]Match, error) {
	n := len(ranked)
	if n < 2 {
		return nil, fmt.Errorf("%w (got %d)", ErrNotEnoughTeams, n)
	}

	fr := CalculateFirstRound(n)
	b := &builder{}

	var prev []Match
	switch {
	case fr.Direct, fr.TeamsWithBye == 0:
		prev = b.seededRound(fr.Name, seeded(ranked))
	default:
		byes := ranked[:fr.TeamsWithBye]
		playing := ranked[fr.TeamsWithBye:]
		var first []playInMatch
		if len(playing) > 0 {
			first = b.playIn(fr.Name, playing, fr.TeamsWithBye+1)
		}
		prev = b.nextRoundWithByes(RoundName(fr.NextRoundSize), byes, first)
	}

	for len(prev) > 1 {
		prev = b.foldRound(prev)
	}
	return b.matches, nil
}

type builder struct {
	matches []Match
	round   int
}

func (b *builder) add(round string, position int, home, away Entrant) Match {
	m := Match{
		ID:          uuid.NewSHA1(namespace, []byte(fmt.Sprintf("%s/%d", round, position))).String(),
		Round:       round,
		RoundNumber: b.round,
		Position:    position,
		Home:        home,
		Away:        away,
	}
	b.matches = append(b.matches, m)
	return m
}

// seededEntrant is a bracket slot together with the seed it carries.
type seededEntrant struct {
	seed    int
	entrant Entrant
}

func seeded(ranked []string) []seededEntrant {
	out := make([]seededEntrant, len(ranked))
	for i, id := range ranked {
		out[i] = seededEntrant{seed: i + 1, entrant: Entrant{TeamID: id}}
	}
	return out
}

// seededRound pairs a full power-of-two field by standard seed order. Each
// match's position is its better seed, so later rounds can fold positions
// (1 vs last, 2 vs second-last) and keep the seeding intact.
func (b *builder) seededRound(name string, field []seededEntrant) []Match {
	b.round++
	bySeed := make(map[int]Entrant, len(field))
	for _, f := range field {
		bySeed[f.seed] = f.entrant
	}

	order := StandardSeedOrder(len(field))
	type pair struct{ hi, lo int }
	var pairs []pair
	for i := 0; i+1 < len(order); i += 2 {
		hi, lo := order[i], order[i+1]
		if lo < hi {
			hi, lo = lo, hi
		}
		pairs = append(pairs, pair{hi, lo})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].hi < pairs[j].hi })

	out := make([]Match, 0, len(pairs))
	for i, p := range pairs {
		out = append(out, b.add(name, i+1, bySeed[p.hi], bySeed[p.lo]))
	}
	return out
}

// playInMatch is a first-round match and the best seed playing in it.
type playInMatch struct {
	match    Match
	bestSeed int
}

// playIn pairs the teams without a bye best against worst. firstSeed is the
// seed of playing[0].
func (b *builder) playIn(name string, playing []string, firstSeed int) []playInMatch {
	b.round++
	out := make([]playInMatch, 0, len(playing)/2)
	for i := 0; i < len(playing)/2; i++ {
		home := Entrant{TeamID: playing[i]}
		away := Entrant{TeamID: playing[len(playing)-1-i]}
		out = append(out, playInMatch{
			match:    b.add(name, i+1, home, away),
			bestSeed: firstSeed + i,
		})
	}
	return out
}

// nextRoundWithByes builds the round that absorbs every bye. Play-in
// matches sorted weakest first (largest best seed) take the open seeds from
// the bottom up, so the weakest match meets the strongest bye.
func (b *builder) nextRoundWithByes(name string, byes []string, playIn []playInMatch) []Match {
	field := make([]seededEntrant, 0, len(byes)+len(playIn))
	for i, id := range byes {
		field = append(field, seededEntrant{seed: i + 1, entrant: Entrant{TeamID: id}})
	}

	weakest := append([]playInMatch(nil), playIn...)
	sort.SliceStable(weakest, func(i, j int) bool { return weakest[i].bestSeed > weakest[j].bestSeed })

	size := len(byes) + len(playIn)
	for i, pm := range weakest {
		field = append(field, seededEntrant{
			seed:    size - i,
			entrant: Entrant{Source: &Source{Round: pm.match.Round, Position: pm.match.Position}},
		})
	}
	return b.seededRound(name, field)
}

// foldRound pairs position i with position (size-i+1) of the previous round.
func (b *builder) foldRound(prev []Match) []Match {
	name := RoundName(len(prev))
	b.round++
	out := make([]Match, 0, len(prev)/2)
	for i := 0; i < len(prev)/2; i++ {
		hi, lo := prev[i], prev[len(prev)-1-i]
		out = append(out, b.add(name, i+1,
			Entrant{Source: &Source{Round: hi.Round, Position: hi.Position}},
			Entrant{Source: &Source{Round: lo.Round, Position: lo.Position}},
		))
	}
	return out
}
