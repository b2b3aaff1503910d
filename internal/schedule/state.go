package schedule

import (
	"sort"

	"github.com/derekprior/podsched/internal/pod"
)

// problem is the read-only input shared by every strategy in one call.
type problem struct {
	matches []pod.Match
	slots   []TimeSlot
	checker Checker
	score   ScoreFunc

	teams       [][]string       // concrete teams per match
	blackout    [][]string       // teams checked against restrictions per match
	siblings    []map[int]int    // per match: pod order -> match index of the other orders
	teamMatches map[string][]int // team -> matches it plays
}

func newProblem(matches []pod.Match, slots []TimeSlot, checker Checker, score ScoreFunc) *problem {
	p := &problem{
		matches:     matches,
		slots:       slots,
		checker:     checker,
		score:       score,
		teams:       make([][]string, len(matches)),
		blackout:    make([][]string, len(matches)),
		siblings:    make([]map[int]int, len(matches)),
		teamMatches: make(map[string][]int),
	}

	pods := make(map[string]map[int]int)
	for i, m := range matches {
		p.teams[i] = m.Teams()
		for _, t := range p.teams[i] {
			p.teamMatches[t] = append(p.teamMatches[t], i)
		}
		if m.Order > 0 && m.GroupID != "" {
			if pods[m.GroupID] == nil {
				pods[m.GroupID] = make(map[int]int)
			}
			pods[m.GroupID][m.Order] = i
		}
	}

	for i, m := range matches {
		p.blackout[i] = append([]string(nil), p.teams[i]...)
		if m.Order == 0 || m.GroupID == "" {
			continue
		}
		sib := make(map[int]int)
		for order, j := range pods[m.GroupID] {
			if j != i {
				sib[order] = j
			}
		}
		p.siblings[i] = sib
		// Winners and losers games can involve any first-round team.
		if len(p.teams[i]) < 2 {
			for _, order := range []int{1, 2} {
				if j, ok := pods[m.GroupID][order]; ok && j != i {
					p.blackout[i] = append(p.blackout[i], p.teams[j]...)
				}
			}
		}
	}

	return p
}

// state is the working buffer a strategy mutates while it commits slots. It
// is owned by a single strategy run and copied, never shared.
type state struct {
	p      *problem
	slotOf []int // match -> slot index, -1 when unassigned
	used   []bool
	gain   []float64
	viol   []OrderViolation
	score  float64
}

// option is a legal slot for a match with its score.
type option struct {
	slot  int
	score float64
	viol  OrderViolation
}

func newState(p *problem) *state {
	s := &state{
		p:      p,
		slotOf: make([]int, len(p.matches)),
		used:   make([]bool, len(p.slots)),
		gain:   make([]float64, len(p.matches)),
		viol:   make([]OrderViolation, len(p.matches)),
	}
	for i := range s.slotOf {
		s.slotOf[i] = -1
	}
	return s
}

func (s *state) clone() *state {
	c := &state{
		p:      s.p,
		slotOf: make([]int, len(s.slotOf)),
		used:   make([]bool, len(s.used)),
		gain:   make([]float64, len(s.gain)),
		viol:   make([]OrderViolation, len(s.viol)),
		score:  s.score,
	}
	copy(c.slotOf, s.slotOf)
	copy(c.used, s.used)
	copy(c.gain, s.gain)
	copy(c.viol, s.viol)
	return c
}

func (s *state) assign(mi int, o option) {
	s.slotOf[mi] = o.slot
	s.used[o.slot] = true
	s.gain[mi] = o.score
	s.viol[mi] = o.viol
	s.score += o.score
}

func (s *state) unassign(mi int) {
	si := s.slotOf[mi]
	if si < 0 {
		return
	}
	s.used[si] = false
	s.slotOf[mi] = -1
	s.score -= s.gain[mi]
	s.gain[mi] = 0
	s.viol[mi] = 0
}

// complete reports whether every match holds a slot.
func (s *state) complete() bool {
	for _, si := range s.slotOf {
		if si < 0 {
			return false
		}
	}
	return true
}

// relaxations counts the accepted order violation types across all matches.
func (s *state) relaxations() int {
	n := 0
	for _, v := range s.viol {
		n += v.Count()
	}
	return n
}

// teamSlots returns the committed slots of other matches sharing a team with mi.
func (s *state) teamSlots(mi int) []TimeSlot {
	var out []TimeSlot
	seen := make(map[int]bool)
	for _, t := range s.p.teams[mi] {
		for _, j := range s.p.teamMatches[t] {
			if j == mi || seen[j] || s.slotOf[j] < 0 {
				continue
			}
			seen[j] = true
			out = append(out, s.p.slots[s.slotOf[j]])
		}
	}
	return out
}

// siblingSlots returns the committed slots of the other orders in mi's pod.
func (s *state) siblingSlots(mi int) map[int]TimeSlot {
	sib := s.p.siblings[mi]
	if len(sib) == 0 {
		return nil
	}
	out := make(map[int]TimeSlot, len(sib))
	for order, j := range sib {
		if si := s.slotOf[j]; si >= 0 {
			out[order] = s.p.slots[si]
		}
	}
	return out
}

// evaluate checks a single free slot for mi and scores it.
func (s *state) evaluate(mi, si int, relaxed bool) (option, bool) {
	return s.evaluateWith(mi, si, relaxed, s.teamSlots(mi), s.siblingSlots(mi))
}

func (s *state) evaluateWith(mi, si int, relaxed bool, teamSlots []TimeSlot, siblings map[int]TimeSlot) (option, bool) {
	m := s.p.matches[mi]
	slot := s.p.slots[si]
	if s.p.checker.BlockedAny(s.p.blackout[mi], slot) {
		return option{}, false
	}
	if !s.p.checker.RestOK(slot, teamSlots...) {
		return option{}, false
	}
	v := s.p.checker.OrderViolations(m.Order, slot, siblings)
	if v != 0 && !relaxed {
		return option{}, false
	}
	score := s.p.score(Candidate{
		Match:      m,
		Slot:       slot,
		Index:      si,
		Total:      len(s.p.slots),
		TeamSlots:  teamSlots,
		Siblings:   siblings,
		Violations: v,
		Checker:    s.p.checker,
	})
	return option{slot: si, score: score, viol: v}, true
}

// candidates returns every legal free slot for mi, best first. Equal scores
// keep slot order so earlier slots win ties.
func (s *state) candidates(mi int, relaxed bool) []option {
	teamSlots := s.teamSlots(mi)
	siblings := s.siblingSlots(mi)

	var opts []option
	for si := range s.p.slots {
		if s.used[si] {
			continue
		}
		if o, ok := s.evaluateWith(mi, si, relaxed, teamSlots, siblings); ok {
			opts = append(opts, o)
		}
	}
	sort.SliceStable(opts, func(i, j int) bool {
		return opts[i].score > opts[j].score
	})
	return opts
}

// priorityOrder puts 4-pod first-round games first, then winners/losers
// games, then round-robin matches with the busiest teams first.
func priorityOrder(matches []pod.Match) []int {
	counts := make(map[string]int)
	for _, m := range matches {
		for _, t := range m.Teams() {
			counts[t]++
		}
	}
	load := func(m pod.Match) int {
		n := 0
		for _, t := range m.Teams() {
			n += counts[t]
		}
		return n
	}
	tier := func(m pod.Match) int {
		switch m.Order {
		case 1, 2:
			return 0
		case 3, 4:
			return 1
		default:
			return 2
		}
	}

	order := make([]int, len(matches))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ma, mb := matches[order[a]], matches[order[b]]
		if ta, tb := tier(ma), tier(mb); ta != tb {
			return ta < tb
		}
		if tier(ma) == 2 {
			return load(ma) > load(mb)
		}
		return false
	})
	return order
}

func (s *state) noCandidate(strategy string, mi int) *NoCandidateError {
	m := s.p.matches[mi]
	return &NoCandidateError{Strategy: strategy, MatchID: m.ID, GroupID: m.GroupID, Label: m.Label()}
}
