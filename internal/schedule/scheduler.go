package schedule

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/derekprior/podsched/internal/pod"
)

// Request is everything the caller knows about when and where matches may
// be played.
type Request struct {
	Days         []Day
	Duration     int // minutes
	Courts       []string
	Availability []Window
	Restrictions []Restriction
}

// Recorder observes each strategy attempt.
type Recorder interface {
	Attempt(strategy string, ok bool, elapsed time.Duration)
}

// Options tunes the search. Unset limits and scorer fall back to
// DefaultOptions; RandomRetries and Seed are taken as given.
type Options struct {
	Score         ScoreFunc
	Strict        Limits
	Relaxed       Limits
	Beam          BeamLimits
	RandomRetries int
	Seed          int64
	Logger        *slog.Logger
	Recorder      Recorder
}

// DefaultOptions returns the search budgets used when none are configured.
func DefaultOptions() Options {
	return Options{
		Score:         DefaultScore,
		Strict:        Limits{BeamWidth: 3, MaxDepth: 200},
		Relaxed:       Limits{BeamWidth: 6, MaxDepth: 2000},
		Beam:          BeamLimits{BeamWidth: 10, MaxCandidates: 8, MaxEnumeration: 20000},
		RandomRetries: 5,
		Seed:          42,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Score == nil {
		o.Score = d.Score
	}
	if o.Strict.BeamWidth <= 0 {
		o.Strict.BeamWidth = d.Strict.BeamWidth
	}
	if o.Strict.MaxDepth <= 0 {
		o.Strict.MaxDepth = d.Strict.MaxDepth
	}
	if o.Relaxed.BeamWidth <= 0 {
		o.Relaxed.BeamWidth = d.Relaxed.BeamWidth
	}
	if o.Relaxed.MaxDepth <= 0 {
		o.Relaxed.MaxDepth = d.Relaxed.MaxDepth
	}
	if o.Beam.BeamWidth <= 0 {
		o.Beam.BeamWidth = d.Beam.BeamWidth
	}
	if o.Beam.MaxCandidates <= 0 {
		o.Beam.MaxCandidates = d.Beam.MaxCandidates
	}
	if o.Beam.MaxEnumeration <= 0 {
		o.Beam.MaxEnumeration = d.Beam.MaxEnumeration
	}
	if o.RandomRetries < 0 {
		o.RandomRetries = 0
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	return o
}

// Assignment is a match with the slot and court it was given.
type Assignment struct {
	Match pod.Match
	Slot  TimeSlot
	Court string
}

// Result is a complete, valid schedule.
type Result struct {
	Strategy    string
	Assignments []Assignment
	Score       float64
	// Relaxations counts 4-pod order violation types accepted in relaxed mode.
	Relaxations int
}

// Schedule assigns a date, time and court to every match. It escalates from
// greedy to strict backtracking, relaxed backtracking and finally seeded
// shuffled orderings, keeping the first strategy that places every match.
// On success matches are updated in place; on failure they are untouched.
func Schedule(matches []pod.Match, req Request, opts Options) (*Result, error) {
	opts = opts.withDefaults()
	p, err := prepare(matches, req, opts)
	if err != nil {
		return nil, err
	}

	primary := priorityOrder(matches)
	type stage struct {
		planner planner
		order   []int
		label   string
	}
	stages := []stage{
		{greedy{}, primary, "greedy"},
		{backtracking{limits: opts.Strict}, primary, "backtracking-strict"},
		{backtracking{limits: opts.Relaxed, relaxed: true}, primary, "backtracking-relaxed"},
	}
	for attempt := range opts.RandomRetries {
		rng := rand.New(rand.NewSource(opts.Seed + int64(attempt)))
		shuffled := append([]int(nil), primary...)
		rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})
		label := fmt.Sprintf("shuffle-%d", attempt+1)
		stages = append(stages,
			stage{greedy{}, shuffled, label + "-greedy"},
			stage{backtracking{limits: opts.Strict}, shuffled, label + "-backtracking"},
		)
	}

	var firstErr error
	for _, st := range stages {
		s, err := run(st.planner, p, st.order, st.label, opts)
		if err == nil {
			return apply(matches, req, s, st.label), nil
		}
		if firstErr == nil || st.planner.name() == "backtracking-relaxed" {
			firstErr = err
		}
	}

	return nil, fmt.Errorf("could not schedule all %d matches into %d slots: %w", len(matches), len(p.slots), firstErr)
}

// ScheduleBeam assigns every match using the pod beam search alone.
func ScheduleBeam(matches []pod.Match, req Request, opts Options) (*Result, error) {
	opts = opts.withDefaults()
	p, err := prepare(matches, req, opts)
	if err != nil {
		return nil, err
	}

	b := podBeam{limits: opts.Beam, logger: opts.Logger}
	s, err := run(b, p, nil, b.name(), opts)
	if err != nil {
		return nil, fmt.Errorf("could not schedule all %d matches into %d slots: %w", len(matches), len(p.slots), err)
	}
	return apply(matches, req, s, b.name()), nil
}

func prepare(matches []pod.Match, req Request, opts Options) (*problem, error) {
	if req.Duration <= 0 {
		return nil, fmt.Errorf("match duration must be positive, got %d", req.Duration)
	}
	if len(req.Courts) == 0 {
		return nil, errors.New("at least one court is required")
	}

	slots := GenerateSlots(req.Days, req.Duration, len(req.Courts), req.Availability)
	if len(slots) < len(matches) {
		return nil, &InfeasibleError{Required: len(matches), Available: len(slots)}
	}

	opts.Logger.Info("scheduling matches",
		slog.Int("matches", len(matches)),
		slog.Int("slots", len(slots)),
		slog.Int("courts", len(req.Courts)))

	// The working copy keeps the caller's slice untouched until success.
	working := append([]pod.Match(nil), matches...)
	return newProblem(working, slots, NewChecker(req.Duration, req.Restrictions), opts.Score), nil
}

func run(pl planner, p *problem, order []int, label string, opts Options) (*state, error) {
	start := time.Now()
	s, err := pl.plan(p, order)
	elapsed := time.Since(start)
	if opts.Recorder != nil {
		opts.Recorder.Attempt(pl.name(), err == nil, elapsed)
	}
	if err != nil {
		opts.Logger.Info("strategy failed",
			slog.String("strategy", label),
			slog.Duration("elapsed", elapsed),
			slog.Any("error", err))
		return nil, err
	}
	opts.Logger.Info("strategy succeeded",
		slog.String("strategy", label),
		slog.Duration("elapsed", elapsed),
		slog.Float64("score", s.score),
		slog.Int("relaxations", s.relaxations()))
	return s, nil
}

func apply(matches []pod.Match, req Request, s *state, label string) *Result {
	res := &Result{Strategy: label, Score: s.score, Relaxations: s.relaxations()}
	for mi, si := range s.slotOf {
		slot := s.p.slots[si]
		m := &matches[mi]
		m.Date = slot.Date
		m.Start = slot.Start.String()
		m.End = slot.End.String()
		m.Court = req.Courts[slot.Court]
		res.Assignments = append(res.Assignments, Assignment{Match: *m, Slot: slot, Court: m.Court})
	}
	return res
}
