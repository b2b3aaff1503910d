package validator

import (
	"fmt"
	"sort"

	"github.com/xuri/excelize/v2"

	"github.com/derekprior/podsched/internal/config"
	"github.com/derekprior/podsched/internal/excel"
	"github.com/derekprior/podsched/internal/schedule"
)

// Violation represents a constraint violation found during validation.
type Violation struct {
	Row     int
	Type    string // "error" or "warning"
	Message string
}

// Validate reads a schedule workbook and checks it against the config rules.
func Validate(cfg *config.Config, path string) ([]Violation, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	entries, err := excel.ReadSchedule(f)
	if err != nil {
		return nil, fmt.Errorf("reading schedule: %w", err)
	}
	return Check(cfg, entries), nil
}

// Check runs every rule against already parsed schedule entries.
func Check(cfg *config.Config, entries []excel.Entry) []Violation {
	games := make([]game, 0, len(entries))
	for _, e := range entries {
		games = append(games, game{Entry: e, End: e.Start + schedule.Clock(cfg.MatchDuration)})
	}
	req := cfg.Request()
	checker := schedule.NewChecker(cfg.MatchDuration, req.Restrictions)

	var violations []Violation

	// Hard rules
	violations = append(violations, checkCourtOverlap(games)...)
	violations = append(violations, checkTeamRest(checker, games)...)
	violations = append(violations, checkPodOrder(checker, games)...)
	violations = append(violations, checkRestrictions(cfg, checker, games)...)
	violations = append(violations, checkPlayingDays(req, games)...)

	// Completeness
	violations = append(violations, checkCompleteness(cfg, games)...)

	return violations
}

type game struct {
	excel.Entry
	End schedule.Clock
}

func (g game) slot() schedule.TimeSlot {
	return schedule.TimeSlot{Date: g.Date, Start: g.Start, End: g.End}
}

func (g game) teams() []string {
	var teams []string
	for _, t := range []string{g.Team1, g.Team2} {
		if !excel.IsPlaceholder(t) {
			teams = append(teams, t)
		}
	}
	return teams
}

func checkCourtOverlap(games []game) []Violation {
	byCourt := make(map[string][]game)
	for _, g := range games {
		byCourt[g.Court] = append(byCourt[g.Court], g)
	}

	var violations []Violation
	for _, court := range sortedKeys(byCourt) {
		list := byCourt[court]
		sortGames(list)
		for i := 1; i < len(list); i++ {
			prev, cur := list[i-1], list[i]
			if prev.Date.Equal(cur.Date) && cur.Start < prev.End {
				violations = append(violations, Violation{
					Row:  cur.Row,
					Type: "error",
					Message: fmt.Sprintf("%s double-booked on %s: %s overlaps %s",
						court, cur.Date.Format("01/02"), cur.Start, prev.Start),
				})
			}
		}
	}
	return violations
}

func checkTeamRest(checker schedule.Checker, games []game) []Violation {
	byTeam := make(map[string][]game)
	for _, g := range games {
		for _, t := range g.teams() {
			byTeam[t] = append(byTeam[t], g)
		}
	}

	var violations []Violation
	for _, team := range sortedKeys(byTeam) {
		list := byTeam[team]
		sortGames(list)
		for i := 1; i < len(list); i++ {
			prev, cur := list[i-1], list[i]
			if !checker.RestOK(cur.slot(), prev.slot()) {
				violations = append(violations, Violation{
					Row:  cur.Row,
					Type: "error",
					Message: fmt.Sprintf("%s has no rest between %s and %s on %s",
						team, prev.Start, cur.Start, cur.Date.Format("01/02")),
				})
			}
		}
	}
	return violations
}

func checkPodOrder(checker schedule.Checker, games []game) []Violation {
	pods := make(map[string]map[int]game)
	for _, g := range games {
		if g.Order == 0 {
			continue
		}
		if pods[g.GroupID] == nil {
			pods[g.GroupID] = make(map[int]game)
		}
		pods[g.GroupID][g.Order] = g
	}

	var violations []Violation
	for _, groupID := range sortedKeys(pods) {
		pod := pods[groupID]
		for _, order := range []int{3, 4} {
			g, ok := pod[order]
			if !ok {
				continue
			}
			siblings := make(map[int]schedule.TimeSlot)
			for o, other := range pod {
				if o < order {
					siblings[o] = other.slot()
				}
			}
			v := checker.OrderViolations(order, g.slot(), siblings)
			if v&schedule.WinnersOrder != 0 {
				violations = append(violations, Violation{
					Row:     g.Row,
					Type:    "error",
					Message: fmt.Sprintf("group %s winners game at %s %s comes too soon after the first round", groupID, g.Date.Format("01/02"), g.Start),
				})
			}
			if v&schedule.LosersOrder != 0 {
				violations = append(violations, Violation{
					Row:     g.Row,
					Type:    "error",
					Message: fmt.Sprintf("group %s losers game at %s %s is out of order", groupID, g.Date.Format("01/02"), g.Start),
				})
			}
		}
	}
	return violations
}

// checkRestrictions flags games inside a team's blackout. Games between
// placeholders are checked against every team in their group.
func checkRestrictions(cfg *config.Config, checker schedule.Checker, games []game) []Violation {
	members := make(map[string][]string)
	for _, g := range cfg.Groups {
		members[g.Name] = g.Teams
	}

	var violations []Violation
	for _, g := range games {
		teams := g.teams()
		if len(teams) < 2 {
			teams = members[g.GroupID]
		}
		for _, t := range teams {
			if checker.Blocked(t, g.slot()) {
				violations = append(violations, Violation{
					Row:     g.Row,
					Type:    "error",
					Message: fmt.Sprintf("%s is unavailable on %s at %s", t, g.Date.Format("01/02"), g.Start),
				})
			}
		}
	}
	return violations
}

func checkPlayingDays(req schedule.Request, games []game) []Violation {
	var violations []Violation
	for _, g := range games {
		inDay := false
		for _, d := range req.Days {
			if d.Date.Equal(g.Date) && d.Start <= g.Start && g.End <= d.End {
				inDay = true
				break
			}
		}
		if !inDay {
			violations = append(violations, Violation{
				Row:     g.Row,
				Type:    "error",
				Message: fmt.Sprintf("%s vs %s at %s %s is outside the playing days", g.Team1, g.Team2, g.Date.Format("01/02"), g.Start),
			})
			continue
		}
		if len(req.Availability) == 0 {
			continue
		}
		available := false
		for _, w := range req.Availability {
			if w.Contains(g.Date, g.Start, g.End) {
				available = true
				break
			}
		}
		if !available {
			violations = append(violations, Violation{
				Row:     g.Row,
				Type:    "warning",
				Message: fmt.Sprintf("%s vs %s at %s %s is outside the availability windows", g.Team1, g.Team2, g.Date.Format("01/02"), g.Start),
			})
		}
	}
	return violations
}

// checkCompleteness verifies every 3-team pod played a full round robin and
// every 4-team pod has all four games.
func checkCompleteness(cfg *config.Config, games []game) []Violation {
	type pair struct{ a, b string }
	played := make(map[pair]int)
	orders := make(map[string]map[int]int)
	for _, g := range games {
		a, b := g.Team1, g.Team2
		if a > b {
			a, b = b, a
		}
		played[pair{a, b}]++
		if g.Order > 0 {
			if orders[g.GroupID] == nil {
				orders[g.GroupID] = make(map[int]int)
			}
			orders[g.GroupID][g.Order]++
		}
	}

	var violations []Violation
	for _, grp := range cfg.Groups {
		switch len(grp.Teams) {
		case 3:
			for i := 0; i < len(grp.Teams); i++ {
				for j := i + 1; j < len(grp.Teams); j++ {
					a, b := grp.Teams[i], grp.Teams[j]
					if a > b {
						a, b = b, a
					}
					switch n := played[pair{a, b}]; {
					case n == 0:
						violations = append(violations, Violation{
							Type:    "error",
							Message: fmt.Sprintf("group %s: %s vs %s is not scheduled", grp.Name, a, b),
						})
					case n > 1:
						violations = append(violations, Violation{
							Type:    "warning",
							Message: fmt.Sprintf("group %s: %s vs %s is scheduled %d times", grp.Name, a, b, n),
						})
					}
				}
			}
		case 4:
			for order := 1; order <= 4; order++ {
				switch n := orders[grp.Name][order]; {
				case n == 0:
					violations = append(violations, Violation{
						Type:    "error",
						Message: fmt.Sprintf("group %s: game %d is not scheduled", grp.Name, order),
					})
				case n > 1:
					violations = append(violations, Violation{
						Type:    "warning",
						Message: fmt.Sprintf("group %s: game %d is scheduled %d times", grp.Name, order, n),
					})
				}
			}
		}
	}
	return violations
}

func sortGames(games []game) {
	sort.SliceStable(games, func(i, j int) bool {
		if !games[i].Date.Equal(games[j].Date) {
			return games[i].Date.Before(games[j].Date)
		}
		return games[i].Start < games[j].Start
	})
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
