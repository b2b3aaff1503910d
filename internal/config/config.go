package config

import (
	"fmt"
	"os"
	"strings"
	"time"
	"unicode/utf16"

	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"

	"github.com/derekprior/podsched/internal/bracket"
	"github.com/derekprior/podsched/internal/pod"
	"github.com/derekprior/podsched/internal/schedule"
)

// Sheet names the workbook reserves for itself. Team sheets may not reuse them.
const (
	ScheduleSheet = "Schedule"
	BracketSheet  = "Bracket"
)

// Date is a wrapper around time.Time for YAML date parsing.
type Date struct {
	Time time.Time
}

func (d *Date) UnmarshalYAML(value *yaml.Node) error {
	t, err := time.Parse("2006-01-02", value.Value)
	if err != nil {
		return fmt.Errorf("invalid date %q: %w", value.Value, err)
	}
	d.Time = t
	return nil
}

// Clock is an "HH:MM" time of day.
type Clock struct {
	schedule.Clock
}

func (c *Clock) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := schedule.ParseClock(value.Value)
	if err != nil {
		return err
	}
	c.Clock = parsed
	return nil
}

type Day struct {
	Date  Date  `yaml:"date"`
	Start Clock `yaml:"start"`
	End   Clock `yaml:"end"`
}

type Window struct {
	Date  Date  `yaml:"date"`
	Start Clock `yaml:"start"`
	End   Clock `yaml:"end"`
}

type Restriction struct {
	Team   string `yaml:"team"`
	Date   Date   `yaml:"date"`
	Start  Clock  `yaml:"start"`
	End    Clock  `yaml:"end"`
	Reason string `yaml:"reason"`
}

type Group struct {
	Name  string   `yaml:"name"`
	Teams []string `yaml:"teams"`
}

// Standing is a group's final order, best first.
type Standing struct {
	Group string   `yaml:"group"`
	Teams []string `yaml:"teams"`
}

type Limits struct {
	BeamWidth int `yaml:"beam_width"`
	MaxDepth  int `yaml:"max_depth"`
}

type BeamLimits struct {
	BeamWidth      int `yaml:"beam_width"`
	MaxCandidates  int `yaml:"max_candidates"`
	MaxEnumeration int `yaml:"max_enumeration"`
}

type Scheduler struct {
	Seed          int64      `yaml:"seed"`
	RandomRetries *int       `yaml:"random_retries"`
	Strict        Limits     `yaml:"strict"`
	Relaxed       Limits     `yaml:"relaxed"`
	Beam          BeamLimits `yaml:"beam"`
}

type Config struct {
	Name          string        `yaml:"name"`
	MatchDuration int           `yaml:"match_duration"`
	Courts        []string      `yaml:"courts"`
	Days          []Day         `yaml:"days"`
	Availability  []Window      `yaml:"availability"`
	Restrictions  []Restriction `yaml:"restrictions"`
	Groups        []Group       `yaml:"groups"`
	Standings     []Standing    `yaml:"standings"`
	Scheduler     Scheduler     `yaml:"scheduler"`
}

// AllTeams returns all team names across all groups.
func (c *Config) AllTeams() []string {
	var teams []string
	for _, g := range c.Groups {
		teams = append(teams, g.Teams...)
	}
	return teams
}

// PodGroups converts the configured groups into pods. Group order follows
// the order groups are listed in (first = 1).
func (c *Config) PodGroups() []pod.Group {
	groups := make([]pod.Group, len(c.Groups))
	for i, g := range c.Groups {
		groups[i] = pod.Group{ID: g.Name, Order: i + 1, Teams: g.Teams}
	}
	return groups
}

// GroupOrder maps each group name to its 1-based position in the config.
func (c *Config) GroupOrder() map[string]int {
	order := make(map[string]int, len(c.Groups))
	for i, g := range c.Groups {
		order[g.Name] = i + 1
	}
	return order
}

// Request builds the scheduling request.
func (c *Config) Request() schedule.Request {
	req := schedule.Request{
		Duration: c.MatchDuration,
		Courts:   c.Courts,
	}
	for _, d := range c.Days {
		req.Days = append(req.Days, schedule.Day{Date: d.Date.Time, Start: d.Start.Clock, End: d.End.Clock})
	}
	for _, w := range c.Availability {
		req.Availability = append(req.Availability, schedule.Window{Date: w.Date.Time, Start: w.Start.Clock, End: w.End.Clock})
	}
	for _, r := range c.Restrictions {
		req.Restrictions = append(req.Restrictions, schedule.Restriction{
			Team:  r.Team,
			Date:  r.Date.Time,
			Start: r.Start.Clock,
			End:   r.End.Clock,
		})
	}
	return req
}

// Options builds the search options. Unset values keep the engine defaults.
func (c *Config) Options() schedule.Options {
	opts := schedule.DefaultOptions()
	s := c.Scheduler
	if s.Seed != 0 {
		opts.Seed = s.Seed
	}
	if s.RandomRetries != nil {
		opts.RandomRetries = *s.RandomRetries
	}
	if s.Strict.BeamWidth > 0 {
		opts.Strict.BeamWidth = s.Strict.BeamWidth
	}
	if s.Strict.MaxDepth > 0 {
		opts.Strict.MaxDepth = s.Strict.MaxDepth
	}
	if s.Relaxed.BeamWidth > 0 {
		opts.Relaxed.BeamWidth = s.Relaxed.BeamWidth
	}
	if s.Relaxed.MaxDepth > 0 {
		opts.Relaxed.MaxDepth = s.Relaxed.MaxDepth
	}
	if s.Beam.BeamWidth > 0 {
		opts.Beam.BeamWidth = s.Beam.BeamWidth
	}
	if s.Beam.MaxCandidates > 0 {
		opts.Beam.MaxCandidates = s.Beam.MaxCandidates
	}
	if s.Beam.MaxEnumeration > 0 {
		opts.Beam.MaxEnumeration = s.Beam.MaxEnumeration
	}
	return opts
}

// Qualified converts standings into bracket input. Only the top three of
// each group advance.
func (c *Config) Qualified() []bracket.QualifiedTeam {
	order := c.GroupOrder()
	var out []bracket.QualifiedTeam
	for _, s := range c.Standings {
		for i, team := range s.Teams {
			if i >= 3 {
				break
			}
			out = append(out, bracket.QualifiedTeam{
				TeamID:     team,
				GroupID:    s.Group,
				Position:   i + 1,
				GroupOrder: order[s.Group],
			})
		}
	}
	return out
}

// LoadFromBytes parses YAML bytes into a Config and validates it.
func LoadFromBytes(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFromFile reads and parses a YAML config file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return LoadFromBytes(data)
}

func (c *Config) validate() error {
	if c.MatchDuration <= 0 {
		return fmt.Errorf("match_duration must be positive, got %d", c.MatchDuration)
	}

	if len(c.Courts) == 0 {
		return fmt.Errorf("at least one court is required")
	}
	courts := make(map[string]bool)
	for _, name := range c.Courts {
		if courts[name] {
			return fmt.Errorf("court %q is listed twice", name)
		}
		courts[name] = true
	}

	if len(c.Days) == 0 {
		return fmt.Errorf("at least one day is required")
	}
	for _, d := range c.Days {
		if d.End.Clock <= d.Start.Clock {
			return fmt.Errorf("day %s: end %s must be after start %s",
				d.Date.Time.Format("2006-01-02"), d.End.Clock, d.Start.Clock)
		}
	}
	for _, w := range c.Availability {
		if w.End.Clock <= w.Start.Clock {
			return fmt.Errorf("availability on %s: end %s must be after start %s",
				w.Date.Time.Format("2006-01-02"), w.End.Clock, w.Start.Clock)
		}
	}

	// Check for duplicate team names
	seen := make(map[string]string)
	sheets := make(map[string]string)
	for _, g := range c.Groups {
		if len(g.Teams) != 3 && len(g.Teams) != 4 {
			return fmt.Errorf("group %q has %d teams, want 3 or 4", g.Name, len(g.Teams))
		}
		for _, team := range g.Teams {
			if prev, ok := seen[team]; ok {
				return fmt.Errorf("team %q appears in both %q and %q groups", team, prev, g.Name)
			}
			seen[team] = g.Name
			if err := checkSheetName(team); err != nil {
				return fmt.Errorf("team %q cannot name a sheet: %w", team, err)
			}
			// Excel compares sheet names case-insensitively.
			key := strings.ToLower(team)
			if prev, ok := sheets[key]; ok {
				return fmt.Errorf("team %q clashes with team %q", team, prev)
			}
			sheets[key] = team
		}
	}

	for _, r := range c.Restrictions {
		if _, ok := seen[r.Team]; !ok {
			return fmt.Errorf("restriction for unknown team %q", r.Team)
		}
		if r.End.Clock <= r.Start.Clock {
			return fmt.Errorf("restriction for %q: end %s must be after start %s", r.Team, r.End.Clock, r.Start.Clock)
		}
	}

	groups := c.GroupOrder()
	for _, s := range c.Standings {
		if _, ok := groups[s.Group]; !ok {
			return fmt.Errorf("standings for unknown group %q", s.Group)
		}
		for _, team := range s.Teams {
			if seen[team] != s.Group {
				return fmt.Errorf("standings for group %q list team %q which is not in it", s.Group, team)
			}
		}
	}

	return nil
}

// checkSheetName applies excelize's sheet naming rules and rejects the
// workbook's own sheet names.
func checkSheetName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return excelize.ErrSheetNameBlank
	case len(utf16.Encode([]rune(name))) > excelize.MaxSheetNameLength:
		return excelize.ErrSheetNameLength
	case strings.HasPrefix(name, "'") || strings.HasSuffix(name, "'"):
		return excelize.ErrSheetNameSingleQuote
	case strings.ContainsAny(name, ":\\/?*[]"):
		return excelize.ErrSheetNameInvalid
	}
	for _, reserved := range []string{ScheduleSheet, BracketSheet} {
		if strings.EqualFold(name, reserved) {
			return fmt.Errorf("%q is a reserved sheet name", reserved)
		}
	}
	return nil
}
