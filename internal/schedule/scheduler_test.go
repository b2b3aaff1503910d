package schedule

import (
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/go-cmp/cmp"

	"github.com/derekprior/podsched/internal/pod"
)

func oneDay(start, end string, courts ...string) Request {
	return Request{
		Days:     []Day{{Date: mustDate("2026-06-06"), Start: MustClock(start), End: MustClock(end)}},
		Duration: 60,
		Courts:   courts,
	}
}

func mustMatches(t *testing.T, groups ...pod.Group) []pod.Match {
	t.Helper()
	matches, err := pod.GenerateMatches(groups)
	if err != nil {
		t.Fatalf("GenerateMatches() error: %v", err)
	}
	return matches
}

func testGroups() []pod.Group {
	return []pod.Group{
		{ID: "A", Order: 1, Teams: []string{"Hawks", "Owls", "Crows"}},
		{ID: "B", Order: 2, Teams: []string{"Bears", "Wolves", "Foxes"}},
		{ID: "C", Order: 3, Teams: []string{"Sharks", "Rays", "Eels", "Squid"}},
	}
}

// fakeGroups builds one pod per size with generated team names.
func fakeGroups(seed uint64, sizes ...int) []pod.Group {
	faker := gofakeit.New(seed)
	seen := make(map[string]bool)
	groups := make([]pod.Group, len(sizes))
	for g, size := range sizes {
		groups[g] = pod.Group{ID: string(rune('A' + g)), Order: g + 1}
		for len(groups[g].Teams) < size {
			name := fmt.Sprintf("%s %s", faker.City(), faker.Numerify("##"))
			if seen[name] {
				continue
			}
			seen[name] = true
			groups[g].Teams = append(groups[g].Teams, name)
		}
	}
	return groups
}

// assertValid checks every hard rule against the scheduled matches.
func assertValid(t *testing.T, matches []pod.Match, req Request) {
	t.Helper()
	checker := NewChecker(req.Duration, req.Restrictions)

	type courtKey struct {
		date  time.Time
		start string
		court string
	}
	used := make(map[courtKey]string)
	byTeam := make(map[string][]TimeSlot)
	pods := make(map[string]map[int]TimeSlot)
	members := make(map[string][]string)
	for g, teams := range pod.TeamsByGroup(matches) {
		members[g] = teams
	}

	for _, m := range matches {
		if !m.IsScheduled() {
			t.Errorf("%s (%s) is not scheduled", m.Label(), m.GroupID)
			continue
		}
		key := courtKey{m.Date, m.Start, m.Court}
		if prev, ok := used[key]; ok {
			t.Errorf("%s and %s share %s %s on %s", prev, m.Label(), m.Date.Format("01/02"), m.Start, m.Court)
		}
		used[key] = m.Label()

		slot := TimeSlot{Date: m.Date, Start: MustClock(m.Start), End: MustClock(m.End)}
		if slot.End-slot.Start != Clock(req.Duration) {
			t.Errorf("%s: got length %d, want %d", m.Label(), slot.End-slot.Start, req.Duration)
		}
		for _, team := range m.Teams() {
			if !checker.RestOK(slot, byTeam[team]...) {
				t.Errorf("%s has no rest before %s at %s", team, m.Label(), m.Start)
			}
			byTeam[team] = append(byTeam[team], slot)
		}
		blackout := m.Teams()
		if len(blackout) < 2 {
			blackout = members[m.GroupID]
		}
		if checker.BlockedAny(blackout, slot) {
			t.Errorf("%s at %s falls in a restriction", m.Label(), m.Start)
		}
		if m.Order > 0 {
			if pods[m.GroupID] == nil {
				pods[m.GroupID] = make(map[int]TimeSlot)
			}
			pods[m.GroupID][m.Order] = slot
		}
	}

	for g, slots := range pods {
		for order, slot := range slots {
			others := make(map[int]TimeSlot)
			for o, s := range slots {
				if o != order {
					others[o] = s
				}
			}
			if v := checker.OrderViolations(order, slot, others); v != 0 {
				t.Errorf("group %s order %d breaks pod order (%b)", g, order, v)
			}
		}
	}
}

type attempt struct {
	strategy string
	ok       bool
}

type fakeRecorder struct {
	attempts []attempt
}

func (f *fakeRecorder) Attempt(strategy string, ok bool, _ time.Duration) {
	f.attempts = append(f.attempts, attempt{strategy, ok})
}

func TestSchedule(t *testing.T) {
	t.Run("mixed pods on one day", func(t *testing.T) {
		matches := mustMatches(t, testGroups()...)
		req := oneDay("09:00", "17:00", "Court 1", "Court 2")

		res, err := Schedule(matches, req, Options{})
		if err != nil {
			t.Fatalf("Schedule() error: %v", err)
		}
		if len(res.Assignments) != 10 {
			t.Errorf("got %d assignments, want 10", len(res.Assignments))
		}
		if res.Relaxations != 0 {
			t.Errorf("got %d relaxations, want 0", res.Relaxations)
		}
		assertValid(t, matches, req)
	})

	t.Run("assignments match the updated matches", func(t *testing.T) {
		matches := mustMatches(t, testGroups()...)
		res, err := Schedule(matches, oneDay("09:00", "17:00", "Court 1", "Court 2"), Options{})
		if err != nil {
			t.Fatalf("Schedule() error: %v", err)
		}
		byID := make(map[string]pod.Match)
		for _, m := range matches {
			byID[m.ID] = m
		}
		for _, a := range res.Assignments {
			if diff := cmp.Diff(byID[a.Match.ID], a.Match); diff != "" {
				t.Errorf("assignment differs from match (-match +assignment):\n%s", diff)
			}
			if a.Court != a.Match.Court {
				t.Errorf("got court %q, want %q", a.Court, a.Match.Court)
			}
		}
	})

	t.Run("team restrictions are honored", func(t *testing.T) {
		matches := mustMatches(t, testGroups()...)
		req := oneDay("09:00", "18:00", "Court 1", "Court 2")
		req.Restrictions = []Restriction{
			{Team: "Hawks", Date: req.Days[0].Date, Start: MustClock("09:00"), End: MustClock("12:00")},
			{Team: "Squid", Date: req.Days[0].Date, Start: MustClock("13:00"), End: MustClock("15:00")},
		}
		if _, err := Schedule(matches, req, Options{}); err != nil {
			t.Fatalf("Schedule() error: %v", err)
		}
		assertValid(t, matches, req)
	})

	t.Run("not enough slots is infeasible", func(t *testing.T) {
		matches := mustMatches(t, testGroups()...)
		before := append([]pod.Match(nil), matches...)

		_, err := Schedule(matches, oneDay("09:00", "12:00", "Court 1"), Options{})
		if !errors.Is(err, ErrInfeasible) {
			t.Fatalf("got error %v, want ErrInfeasible", err)
		}
		var infeasible *InfeasibleError
		if !errors.As(err, &infeasible) {
			t.Fatalf("got %T, want *InfeasibleError", err)
		}
		if infeasible.Required != 10 || infeasible.Available != 3 {
			t.Errorf("got %d/%d, want 10/3", infeasible.Required, infeasible.Available)
		}
		if diff := cmp.Diff(before, matches); diff != "" {
			t.Errorf("matches changed on failure (-before +after):\n%s", diff)
		}
	})

	t.Run("failure leaves matches untouched", func(t *testing.T) {
		// Enough slots, but a 3-team pod on one court in four hours can't rest.
		matches := mustMatches(t, pod.Group{ID: "A", Teams: []string{"a", "b", "c"}})
		before := append([]pod.Match(nil), matches...)

		_, err := Schedule(matches, oneDay("09:00", "13:00", "Court 1"), Options{RandomRetries: 2})
		if !errors.Is(err, ErrNoCandidate) {
			t.Fatalf("got error %v, want ErrNoCandidate", err)
		}
		if diff := cmp.Diff(before, matches); diff != "" {
			t.Errorf("matches changed on failure (-before +after):\n%s", diff)
		}
	})

	t.Run("relaxes pod order when strict search fails", func(t *testing.T) {
		matches := mustMatches(t, pod.Group{ID: "A", Teams: []string{"a", "b", "c", "d"}})
		rec := &fakeRecorder{}

		res, err := Schedule(matches, oneDay("09:00", "13:00", "Court 1"), Options{Recorder: rec})
		if err != nil {
			t.Fatalf("Schedule() error: %v", err)
		}
		if res.Strategy != "backtracking-relaxed" {
			t.Errorf("got strategy %q, want backtracking-relaxed", res.Strategy)
		}
		if res.Relaxations == 0 {
			t.Error("expected at least one relaxation")
		}
		want := []attempt{
			{"greedy", false},
			{"backtracking-strict", false},
			{"backtracking-relaxed", true},
		}
		if diff := cmp.Diff(want, rec.attempts, cmp.AllowUnexported(attempt{})); diff != "" {
			t.Errorf("attempts mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("shuffled retries run before giving up", func(t *testing.T) {
		// Every pair in a 3-pod shares a team, so three back-to-back slots
		// can never give each team its rest.
		matches := mustMatches(t, pod.Group{ID: "A", Teams: []string{"a", "b", "c"}})
		rec := &fakeRecorder{}

		_, err := Schedule(matches, oneDay("09:00", "12:00", "Court 1"), Options{Recorder: rec, RandomRetries: 2})
		if !errors.Is(err, ErrNoCandidate) {
			t.Fatalf("got error %v, want ErrNoCandidate", err)
		}
		var nc *NoCandidateError
		if !errors.As(err, &nc) || nc.Strategy != "backtracking-relaxed" {
			t.Errorf("got %+v, want the relaxed backtracking failure", nc)
		}
		want := []attempt{
			{"greedy", false},
			{"backtracking-strict", false},
			{"backtracking-relaxed", false},
			{"greedy", false},
			{"backtracking-strict", false},
			{"greedy", false},
			{"backtracking-strict", false},
		}
		if diff := cmp.Diff(want, rec.attempts, cmp.AllowUnexported(attempt{})); diff != "" {
			t.Errorf("attempts mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("bad request", func(t *testing.T) {
		matches := mustMatches(t, testGroups()...)
		req := oneDay("09:00", "17:00")
		if _, err := Schedule(matches, req, Options{}); err == nil {
			t.Error("expected error for no courts")
		}
		req = oneDay("09:00", "17:00", "Court 1")
		req.Duration = 0
		if _, err := Schedule(matches, req, Options{}); err == nil {
			t.Error("expected error for zero duration")
		}
	})

	t.Run("deterministic", func(t *testing.T) {
		groups := fakeGroups(7, 3, 3, 3, 3)
		req := oneDay("08:00", "20:00", "Court 1", "Court 2")
		first := mustMatches(t, groups...)
		second := mustMatches(t, groups...)

		a, err := Schedule(first, req, Options{})
		if err != nil {
			t.Fatalf("Schedule() error: %v", err)
		}
		b, err := Schedule(second, req, Options{})
		if err != nil {
			t.Fatalf("Schedule() error: %v", err)
		}
		if diff := cmp.Diff(a, b); diff != "" {
			t.Errorf("two runs differ (-first +second):\n%s", diff)
		}
		assertValid(t, first, req)
	})
}

func TestScheduleBeam(t *testing.T) {
	t.Run("mixed pods on one day", func(t *testing.T) {
		matches := mustMatches(t, testGroups()...)
		req := oneDay("09:00", "17:00", "Court 1", "Court 2")

		res, err := ScheduleBeam(matches, req, Options{})
		if err != nil {
			t.Fatalf("ScheduleBeam() error: %v", err)
		}
		if res.Strategy != "pod-beam" {
			t.Errorf("got strategy %q, want pod-beam", res.Strategy)
		}
		assertValid(t, matches, req)
	})

	t.Run("generated league over two days", func(t *testing.T) {
		matches := mustMatches(t, fakeGroups(11, 4, 4, 4, 3, 3, 3)...)
		req := Request{
			Days: []Day{
				{Date: mustDate("2026-06-06"), Start: MustClock("09:00"), End: MustClock("18:00")},
				{Date: mustDate("2026-06-07"), Start: MustClock("09:00"), End: MustClock("18:00")},
			},
			Duration: 60,
			Courts:   []string{"North", "South"},
		}

		if _, err := ScheduleBeam(matches, req, Options{}); err != nil {
			t.Fatalf("ScheduleBeam() error: %v", err)
		}
		assertValid(t, matches, req)
	})

	t.Run("single slots on separate days", func(t *testing.T) {
		for _, days := range []int{3, 4, 6} {
			t.Run(fmt.Sprintf("%d days", days), func(t *testing.T) {
				matches := mustMatches(t, pod.Group{ID: "A", Teams: []string{"a", "b", "c"}})
				req := oneSlotDays(days)

				res, err := ScheduleBeam(matches, req, Options{})
				if err != nil {
					t.Fatalf("ScheduleBeam() error: %v", err)
				}
				if res.Strategy != "pod-beam" {
					t.Errorf("got strategy %q, want pod-beam", res.Strategy)
				}
				assertValid(t, matches, req)
				dates := make(map[time.Time]bool)
				for _, m := range matches {
					dates[m.Date] = true
				}
				if len(dates) != 3 {
					t.Errorf("got %d match dates, want 3", len(dates))
				}
			})
		}
	})

	t.Run("restricted team", func(t *testing.T) {
		matches := mustMatches(t, pod.Group{ID: "A", Teams: []string{"a", "b", "c", "d"}})
		req := oneDay("09:00", "17:00", "Court 1", "Court 2")
		req.Restrictions = []Restriction{
			{Team: "a", Date: mustDate("2026-06-06"), Start: MustClock("09:00"), End: MustClock("11:00")},
		}

		if _, err := ScheduleBeam(matches, req, Options{}); err != nil {
			t.Fatalf("ScheduleBeam() error: %v", err)
		}
		assertValid(t, matches, req)
		for _, m := range matches {
			if m.Order == 2 {
				continue
			}
			if start := MustClock(m.Start); start < MustClock("11:00") {
				t.Errorf("%s starts at %s, inside a's restriction", m.Label(), start)
			}
		}
	})

	t.Run("pod with no placement", func(t *testing.T) {
		matches := mustMatches(t, pod.Group{ID: "A", Teams: []string{"a", "b", "c"}})
		_, err := ScheduleBeam(matches, oneDay("09:00", "13:00", "Court 1"), Options{})
		var nc *NoCandidateError
		if !errors.As(err, &nc) {
			t.Fatalf("got error %v, want *NoCandidateError", err)
		}
		if !nc.Pod || nc.GroupID != "A" {
			t.Errorf("got %+v, want pod A", nc)
		}
	})
}

// oneSlotDays is n consecutive days with a single slot each.
func oneSlotDays(n int) Request {
	req := Request{Duration: 60, Courts: []string{"Court 1"}}
	first := mustDate("2026-06-06")
	for d := range n {
		req.Days = append(req.Days, Day{
			Date:  first.AddDate(0, 0, d),
			Start: MustClock("09:00"),
			End:   MustClock("10:00"),
		})
	}
	return req
}

func TestPodBeamFallbacks(t *testing.T) {
	matches := mustMatches(t, pod.Group{ID: "A", Teams: []string{"a", "b", "c"}})
	b := podBeam{limits: DefaultOptions().Beam, logger: slog.New(slog.DiscardHandler)}

	setup := func(t *testing.T, days int) (*state, podUnit) {
		t.Helper()
		req := oneSlotDays(days)
		slots := GenerateSlots(req.Days, req.Duration, len(req.Courts), nil)
		p := newProblem(matches, slots, NewChecker(req.Duration, nil), DefaultScore)
		units := podUnits(p)
		if len(units) != 1 {
			t.Fatalf("got %d pod units, want 1", len(units))
		}
		return newState(p), units[0]
	}

	t.Run("exact free slots", func(t *testing.T) {
		st, u := setup(t, 3)
		if _, ok := resolvePattern(freeTimes(st), 0, threePodPatterns[0]); ok {
			t.Fatal("pattern should not fit three start times")
		}
		// Every ordering of three days keeps the pod rested.
		if got := len(b.exact(st, u)); got != 6 {
			t.Errorf("exact() gave %d candidates, want 6", got)
		}
		if got := len(b.podCandidates(st, u)); got == 0 {
			t.Error("podCandidates() gave nothing")
		}
	})

	t.Run("enumerated combinations", func(t *testing.T) {
		st, u := setup(t, 4)
		if got := b.exact(st, u); got != nil {
			t.Errorf("exact() gave %d candidates with a spare slot, want none", len(got))
		}
		if got := len(b.enumerate(st, u)); got != 4 {
			t.Errorf("enumerate() gave %d candidates, want 4", got)
		}

		capped := podBeam{limits: BeamLimits{BeamWidth: 1, MaxCandidates: 8, MaxEnumeration: 2}}
		if got := len(capped.enumerate(st, u)); got != 2 {
			t.Errorf("capped enumerate() gave %d candidates, want 2", got)
		}
	})

	t.Run("pattern across days", func(t *testing.T) {
		st, _ := setup(t, 6)
		idx, ok := resolvePattern(freeTimes(st), 0, threePodPatterns[0])
		if !ok {
			t.Fatal("pattern should fit six start times")
		}
		if diff := cmp.Diff([]int{0, 2, 4}, idx); diff != "" {
			t.Errorf("resolved slots mismatch (-want +got):\n%s", diff)
		}
		if _, ok := resolvePattern(freeTimes(st), 2, threePodPatterns[0]); ok {
			t.Error("pattern starting on day 3 should run off the end")
		}
	})
}

func TestStrategies(t *testing.T) {
	matches := mustMatches(t, testGroups()...)
	req := oneDay("09:00", "17:00", "Court 1", "Court 2")
	slots := GenerateSlots(req.Days, req.Duration, len(req.Courts), nil)
	p := newProblem(matches, slots, NewChecker(req.Duration, nil), DefaultScore)
	order := priorityOrder(matches)

	planners := []planner{
		greedy{},
		backtracking{limits: Limits{BeamWidth: 3, MaxDepth: 200}},
		backtracking{limits: Limits{BeamWidth: 3, MaxDepth: 200}, relaxed: true},
		podBeam{limits: DefaultOptions().Beam, logger: slog.New(slog.DiscardHandler)},
	}
	for _, pl := range planners {
		t.Run(pl.name(), func(t *testing.T) {
			s, err := pl.plan(p, order)
			if err != nil {
				t.Fatalf("plan() error: %v", err)
			}
			if !s.complete() {
				t.Fatal("plan returned an incomplete state")
			}
			seen := make(map[int]bool)
			for mi, si := range s.slotOf {
				if seen[si] {
					t.Errorf("slot %d used twice (match %d)", si, mi)
				}
				seen[si] = true
			}
			if s.relaxations() != 0 {
				t.Errorf("got %d relaxations, want 0", s.relaxations())
			}
		})
	}
}

func TestPriorityOrder(t *testing.T) {
	matches := mustMatches(t, testGroups()...)
	order := priorityOrder(matches)

	var got []int
	for _, mi := range order {
		got = append(got, matches[mi].Order)
	}
	want := []int{1, 2, 3, 4, 0, 0, 0, 0, 0, 0}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("priority order mismatch (-want +got):\n%s", diff)
	}
}

func TestBacktrackingSingleCourt(t *testing.T) {
	// On one court a 4-team pod needs five consecutive slots: two first-round
	// games, a rest, then the winners and losers games.
	matches := mustMatches(t, pod.Group{ID: "A", Teams: []string{"a", "b", "c", "d"}})
	req := oneDay("09:00", "14:00", "Court 1")
	slots := GenerateSlots(req.Days, req.Duration, len(req.Courts), nil)
	p := newProblem(matches, slots, NewChecker(req.Duration, nil), DefaultScore)
	order := priorityOrder(matches)

	s, err := backtracking{limits: Limits{BeamWidth: 5, MaxDepth: 500}}.plan(p, order)
	if err != nil {
		t.Fatalf("plan() error: %v", err)
	}
	if s.relaxations() != 0 {
		t.Errorf("got %d relaxations, want 0", s.relaxations())
	}

	_, err = backtracking{limits: Limits{BeamWidth: 5, MaxDepth: 500}}.plan(
		newProblem(matches, slots[:4], NewChecker(req.Duration, nil), DefaultScore), order)
	if !errors.Is(err, ErrNoCandidate) {
		t.Errorf("four slots: got error %v, want ErrNoCandidate", err)
	}
}
