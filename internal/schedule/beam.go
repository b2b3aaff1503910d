package schedule

import (
	"log/slog"
	"sort"
	"time"
)

// BeamLimits bound the pod beam search.
type BeamLimits struct {
	// BeamWidth is how many partial schedules survive after each pod.
	BeamWidth int
	// MaxCandidates is how many placements are kept per pod per state.
	MaxCandidates int
	// MaxEnumeration caps the brute-force fallback's slot combinations.
	MaxEnumeration int
}

const (
	patternWeight = 40.0
	compactWeight = 10.0
)

// Patterns are offsets into the sequence of distinct free start times, best
// first. Every 3-pod match shares a team with the other two, so each pair is
// two steps apart; 4-pod entries are orders 1-4.
var (
	threePodPatterns = [][]int{
		{0, 2, 4},
		{0, 2, 5},
		{0, 3, 5},
		{0, 3, 6},
		{0, 2, 6},
		{0, 4, 6},
		{0, 4, 8},
	}
	fourPodPatterns = [][]int{
		{0, 0, 2, 3},
		{0, 0, 2, 4},
		{0, 1, 3, 4},
		{0, 0, 3, 4},
		{0, 1, 3, 5},
		{0, 0, 3, 5},
		{0, 1, 4, 5},
		{0, 0, 4, 6},
	}
)

// podUnit is a pod's matches in the order pattern entries are applied.
type podUnit struct {
	groupID string
	matches []int
	four    bool
}

func podUnits(p *problem) []podUnit {
	byGroup := make(map[string][]int)
	var units []podUnit
	var groups []string
	for i, m := range p.matches {
		if m.GroupID == "" {
			units = append(units, podUnit{groupID: m.ID, matches: []int{i}})
			continue
		}
		if _, ok := byGroup[m.GroupID]; !ok {
			groups = append(groups, m.GroupID)
		}
		byGroup[m.GroupID] = append(byGroup[m.GroupID], i)
	}

	for _, g := range groups {
		idx := byGroup[g]
		sort.SliceStable(idx, func(a, b int) bool {
			return p.matches[idx[a]].Order < p.matches[idx[b]].Order
		})
		four := len(idx) == 4
		for k, mi := range idx {
			if p.matches[mi].Order != k+1 {
				four = false
			}
		}
		units = append(units, podUnit{groupID: g, matches: idx, four: four})
	}

	rank := func(u podUnit) int {
		switch {
		case u.four:
			return 0
		case len(u.matches) == 3:
			return 1
		default:
			return 2
		}
	}
	sort.SliceStable(units, func(a, b int) bool {
		if ra, rb := rank(units[a]), rank(units[b]); ra != rb {
			return ra < rb
		}
		return units[a].groupID < units[b].groupID
	})
	return units
}

func (u podUnit) patterns() [][]int {
	switch {
	case u.four:
		return fourPodPatterns
	case len(u.matches) == 3:
		return threePodPatterns
	default:
		return nil
	}
}

// podBeam places whole pods at a time, carrying the best partial schedules
// from pod to pod.
type podBeam struct {
	limits BeamLimits
	logger *slog.Logger
}

func (podBeam) name() string { return "pod-beam" }

type podCandidate struct {
	opts  []option
	bonus float64
	total float64
}

func (b podBeam) plan(p *problem, _ []int) (*state, error) {
	beam := []*state{newState(p)}

	for _, u := range podUnits(p) {
		var next []*state
		for _, st := range beam {
			for _, c := range b.podCandidates(st, u) {
				ns := st.clone()
				for k, mi := range u.matches {
					ns.assign(mi, c.opts[k])
				}
				ns.score += c.bonus
				next = append(next, ns)
			}
		}
		if len(next) == 0 {
			b.logger.Debug("pod has no valid placement", slog.String("group", u.groupID))
			return nil, &NoCandidateError{Strategy: b.name(), GroupID: u.groupID, Pod: true}
		}

		sort.SliceStable(next, func(i, j int) bool { return next[i].score > next[j].score })
		if len(next) > b.limits.BeamWidth {
			next = next[:b.limits.BeamWidth]
		}
		beam = next

		b.logger.Debug("pod placed",
			slog.String("group", u.groupID),
			slog.Int("beam", len(beam)),
			slog.Float64("best_score", beam[0].score))
	}

	return beam[0], nil
}

// podCandidates lists the best placements of u on top of st: catalogue
// patterns first, then the exact remaining free slots, then brute force.
func (b podBeam) podCandidates(st *state, u podUnit) []podCandidate {
	times := freeTimes(st)
	var out []podCandidate

	patterns := u.patterns()
	for pi, pat := range patterns {
		for start := range times {
			idx, ok := resolvePattern(times, start, pat)
			if !ok {
				continue
			}
			c, ok := trial(st, u, idx)
			if !ok {
				continue
			}
			c.bonus = patternWeight*float64(len(patterns)-pi) + compactness(st.p, idx)
			c.total += c.bonus
			out = append(out, c)
		}
	}

	if len(out) == 0 {
		out = b.exact(st, u)
	}
	if len(out) == 0 {
		out = b.enumerate(st, u)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].total > out[j].total })
	if len(out) > b.limits.MaxCandidates {
		out = out[:b.limits.MaxCandidates]
	}
	return out
}

// exact tries every arrangement of the remaining free slots when there are
// exactly as many as the pod needs.
func (b podBeam) exact(st *state, u podUnit) []podCandidate {
	free := freeSlots(st)
	if len(free) != len(u.matches) || len(free) > 6 {
		return nil
	}
	var out []podCandidate
	permute(free, func(idx []int) {
		if c, ok := trial(st, u, idx); ok {
			c.bonus = compactness(st.p, idx)
			c.total += c.bonus
			out = append(out, c)
		}
	})
	return out
}

// enumerate tries combinations of free slots in slot order until it has
// checked MaxEnumeration of them.
func (b podBeam) enumerate(st *state, u podUnit) []podCandidate {
	free := freeSlots(st)
	k := len(u.matches)
	if k == 0 || len(free) < k {
		return nil
	}

	var out []podCandidate
	checked := 0
	pick := make([]int, k)
	var walk func(from, depth int) bool
	walk = func(from, depth int) bool {
		if depth == k {
			checked++
			idx := append([]int(nil), pick...)
			if c, ok := trial(st, u, idx); ok {
				c.bonus = compactness(st.p, idx)
				c.total += c.bonus
				out = append(out, c)
			}
			return checked >= b.limits.MaxEnumeration
		}
		for i := from; i <= len(free)-(k-depth); i++ {
			pick[depth] = free[i]
			if walk(i+1, depth+1) {
				return true
			}
		}
		return false
	}
	walk(0, 0)
	return out
}

// trial validates placing u's matches on idx (one slot per match, in unit
// order) against st, scoring each with the shared scorer. st is restored
// before returning.
func trial(st *state, u podUnit, idx []int) (podCandidate, bool) {
	c := podCandidate{opts: make([]option, 0, len(idx))}
	placed := 0
	defer func() {
		for k := placed - 1; k >= 0; k-- {
			st.unassign(u.matches[k])
		}
	}()

	for k, mi := range u.matches {
		o, ok := st.evaluate(mi, idx[k], false)
		if !ok {
			return podCandidate{}, false
		}
		st.assign(mi, o)
		placed++
		c.opts = append(c.opts, o)
		c.total += o.score
	}
	return c, true
}

type freeTime struct {
	date  time.Time
	start Clock
	slots []int
}

func freeTimes(st *state) []freeTime {
	var out []freeTime
	for si, slot := range st.p.slots {
		if st.used[si] {
			continue
		}
		if n := len(out); n > 0 && sameDate(out[n-1].date, slot.Date) && out[n-1].start == slot.Start {
			out[n-1].slots = append(out[n-1].slots, si)
			continue
		}
		out = append(out, freeTime{date: slot.Date, start: slot.Start, slots: []int{si}})
	}
	return out
}

func freeSlots(st *state) []int {
	var out []int
	for si := range st.p.slots {
		if !st.used[si] {
			out = append(out, si)
		}
	}
	return out
}

// resolvePattern maps pattern offsets from start onto free slots, giving
// entries that share a start time different courts.
func resolvePattern(times []freeTime, start int, pat []int) ([]int, bool) {
	idx := make([]int, len(pat))
	taken := make(map[int]bool, len(pat))
	for k, off := range pat {
		ti := start + off
		if ti >= len(times) {
			return nil, false
		}
		found := false
		for _, si := range times[ti].slots {
			if !taken[si] {
				taken[si] = true
				idx[k] = si
				found = true
				break
			}
		}
		if !found {
			return nil, false
		}
	}
	return idx, true
}

// compactness penalises the time span a pod's slots cover.
func compactness(p *problem, idx []int) float64 {
	if len(idx) == 0 || p.checker.Duration <= 0 {
		return 0
	}
	first, last := p.slots[idx[0]], p.slots[idx[0]]
	for _, si := range idx[1:] {
		s := p.slots[si]
		if minutesBetween(s, first) > 0 {
			first = s
		}
		if minutesBetween(last, s) > 0 {
			last = s
		}
	}
	span := minutesBetween(first, last) + p.checker.Duration
	return -compactWeight * float64(span) / float64(p.checker.Duration)
}

// permute calls fn with every ordering of items.
func permute(items []int, fn func([]int)) {
	a := append([]int(nil), items...)
	var rec func(k int)
	rec = func(k int) {
		if k == len(a) {
			fn(append([]int(nil), a...))
			return
		}
		for i := k; i < len(a); i++ {
			a[k], a[i] = a[i], a[k]
			rec(k + 1)
			a[k], a[i] = a[i], a[k]
		}
	}
	rec(0)
}
