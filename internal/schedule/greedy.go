package schedule

// planner is one scheduling strategy. plan either returns a complete state or
// an error; partial states never leave a planner.
type planner interface {
	name() string
	plan(p *problem, order []int) (*state, error)
}

// greedy commits the single best legal slot for each match in turn.
type greedy struct{}

func (greedy) name() string { return "greedy" }

func (g greedy) plan(p *problem, order []int) (*state, error) {
	s := newState(p)
	for _, mi := range order {
		opts := s.candidates(mi, false)
		if len(opts) == 0 {
			return nil, s.noCandidate(g.name(), mi)
		}
		s.assign(mi, opts[0])
	}
	return s, nil
}
