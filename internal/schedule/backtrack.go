package schedule

// Limits bound a backtracking search.
type Limits struct {
	// BeamWidth is how many of the best slots are tried per match.
	BeamWidth int
	// MaxDepth is how many trial points (dead ends and complete assignments)
	// the search may reach before it stops.
	MaxDepth int
}

// backtracking keeps the top BeamWidth slots per match and searches them
// depth first, returning the best-scoring complete assignment found within
// its trial budget. In relaxed mode 4-pod order violations are scored
// instead of rejected.
type backtracking struct {
	limits  Limits
	relaxed bool
}

func (b backtracking) name() string {
	if b.relaxed {
		return "backtracking-relaxed"
	}
	return "backtracking-strict"
}

func (b backtracking) plan(p *problem, order []int) (*state, error) {
	s := newState(p)
	var best *state
	trials := 0
	deepest, stuck := -1, -1

	var search func(k int) bool
	search = func(k int) bool {
		if k == len(order) {
			if best == nil || s.score > best.score {
				best = s.clone()
			}
			trials++
			return trials >= b.limits.MaxDepth
		}

		mi := order[k]
		opts := s.candidates(mi, b.relaxed)
		if len(opts) == 0 {
			if k > deepest {
				deepest, stuck = k, mi
			}
			trials++
			return trials >= b.limits.MaxDepth
		}
		if len(opts) > b.limits.BeamWidth {
			opts = opts[:b.limits.BeamWidth]
		}

		for _, o := range opts {
			s.assign(mi, o)
			stop := search(k + 1)
			s.unassign(mi)
			if stop {
				return true
			}
		}
		return false
	}
	search(0)

	if best == nil {
		if stuck < 0 && len(order) > 0 {
			stuck = order[0]
		}
		return nil, s.noCandidate(b.name(), stuck)
	}
	return best, nil
}
