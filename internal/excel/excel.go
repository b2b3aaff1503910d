package excel

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/derekprior/podsched/internal/bracket"
	"github.com/derekprior/podsched/internal/config"
	"github.com/derekprior/podsched/internal/pod"
	"github.com/derekprior/podsched/internal/schedule"
)

const (
	ScheduleSheet = config.ScheduleSheet
	BracketSheet  = config.BracketSheet
)

// Generate creates a workbook with the master schedule and per-team sheets.
func Generate(cfg *config.Config, result *schedule.Result, slots []schedule.TimeSlot) (*excelize.File, error) {
	f := excelize.NewFile()

	// Set default font for the workbook
	f.SetDefaultFont("Arial")

	if err := writeScheduleSheet(f, cfg, result, slots); err != nil {
		return nil, fmt.Errorf("writing schedule sheet: %w", err)
	}

	entries := make([]Entry, 0, len(result.Assignments))
	for _, a := range result.Assignments {
		entries = append(entries, entryFromMatch(a.Match))
	}
	if err := writeTeamSheets(f, cfg, entries); err != nil {
		return nil, fmt.Errorf("writing team sheets: %w", err)
	}

	f.DeleteSheet("Sheet1")
	return f, nil
}

// GenerateBracket creates a workbook holding only the playoff bracket.
func GenerateBracket(matches []bracket.Match) (*excelize.File, error) {
	f := excelize.NewFile()
	f.SetDefaultFont("Arial")
	if err := WriteBracket(f, matches); err != nil {
		return nil, err
	}
	f.DeleteSheet("Sheet1")
	return f, nil
}

// WriteBracket adds (or replaces) the bracket sheet.
func WriteBracket(f *excelize.File, matches []bracket.Match) error {
	if idx, _ := f.GetSheetIndex(BracketSheet); idx >= 0 {
		// The sheet may be the workbook's only one, so clear it in place.
		rows, err := f.GetRows(BracketSheet)
		if err != nil {
			return fmt.Errorf("reading bracket sheet: %w", err)
		}
		for r := len(rows); r >= 1; r-- {
			if err := f.RemoveRow(BracketSheet, r); err != nil {
				return fmt.Errorf("clearing bracket sheet: %w", err)
			}
		}
	} else if _, err := f.NewSheet(BracketSheet); err != nil {
		return fmt.Errorf("creating bracket sheet: %w", err)
	}

	headers := []string{"Round", "Match", "Home", "Away"}
	writeHeaders(f, BracketSheet, headers)

	cellStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Size: 16, Family: "Arial"},
	})
	for i, m := range matches {
		row := i + 2
		f.SetCellValue(BracketSheet, cellRef(1, row), m.Round)
		f.SetCellValue(BracketSheet, cellRef(2, row), m.Position)
		f.SetCellValue(BracketSheet, cellRef(3, row), m.Home.String())
		f.SetCellValue(BracketSheet, cellRef(4, row), m.Away.String())
		if cellStyle != 0 {
			f.SetCellStyle(BracketSheet, cellRef(1, row), cellRef(len(headers), row), cellStyle)
		}
	}

	widths := map[string]float64{"A": 18, "B": 8, "C": 36, "D": 36}
	for col, w := range widths {
		f.SetColWidth(BracketSheet, col, col, w)
	}
	return nil
}

func writeScheduleSheet(f *excelize.File, cfg *config.Config, result *schedule.Result, slots []schedule.TimeSlot) error {
	sheet := ScheduleSheet
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}

	// Headers: Date, Day, Time, <court1>, <court2>, ...
	headers := []string{"Date", "Day", "Time"}
	headers = append(headers, cfg.Courts...)
	writeHeaders(f, sheet, headers)

	cellStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Size: 16, Family: "Arial"},
	})
	courtCellStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Size: 16, Family: "Arial"},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})

	type slotKey struct {
		date  time.Time
		start schedule.Clock
		court int
	}
	assignmentMap := make(map[slotKey]schedule.Assignment)
	for _, a := range result.Assignments {
		assignmentMap[slotKey{a.Slot.Date, a.Slot.Start, a.Slot.Court}] = a
	}

	// Collect all unique (date, start) pairs from both slots and assignments
	type timeSlot struct {
		date  time.Time
		start schedule.Clock
	}
	seen := make(map[timeSlot]bool)
	var times []timeSlot
	add := func(ts timeSlot) {
		if !seen[ts] {
			seen[ts] = true
			times = append(times, ts)
		}
	}
	for _, s := range slots {
		add(timeSlot{s.Date, s.Start})
	}
	for _, a := range result.Assignments {
		add(timeSlot{a.Slot.Date, a.Slot.Start})
	}
	sort.Slice(times, func(i, j int) bool {
		if !times[i].date.Equal(times[j].date) {
			return times[i].date.Before(times[j].date)
		}
		return times[i].start < times[j].start
	})

	for i, ts := range times {
		row := i + 2
		f.SetCellValue(sheet, cellRef(1, row), ts.date.Format("01/02/2006"))
		f.SetCellValue(sheet, cellRef(2, row), ts.date.Format("Mon"))
		f.SetCellValue(sheet, cellRef(3, row), ts.start.String())

		for ci := range cfg.Courts {
			col := ci + 4 // 1-indexed, after Date/Day/Time
			if a, ok := assignmentMap[slotKey{ts.date, ts.start, ci}]; ok {
				f.SetCellValue(sheet, cellRef(col, row), FormatMatch(a.Match))
			}
		}

		if cellStyle != 0 {
			f.SetCellStyle(sheet, cellRef(1, row), cellRef(3, row), cellStyle)
		}
		if courtCellStyle != 0 && len(cfg.Courts) > 0 {
			f.SetCellStyle(sheet, cellRef(4, row), cellRef(len(headers), row), courtCellStyle)
		}
	}

	// Set column widths (sized for Arial 16)
	f.SetColWidth(sheet, "A", "A", 18)
	f.SetColWidth(sheet, "B", "B", 8)
	f.SetColWidth(sheet, "C", "C", 10)
	for i := range cfg.Courts {
		col := colLetter(i + 4)
		f.SetColWidth(sheet, col, col, 48)
	}

	// Conditional formatting: open court cells get light green
	lastRow := len(times) + 1
	greenFill, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#C6EFCE"}},
		Font: &excelize.Font{Size: 16, Family: "Arial"},
	})
	for i := range cfg.Courts {
		col := colLetter(i + 4)
		cellRange := fmt.Sprintf("%s2:%s%d", col, col, lastRow)
		topCell := fmt.Sprintf("%s2", col)
		f.SetConditionalFormat(sheet, cellRange, []excelize.ConditionalFormatOptions{
			{
				Type:     "formula",
				Criteria: fmt.Sprintf(`%s=""`, topCell),
				Format:   &greenFill,
			},
		})
	}

	return nil
}

// Entry is one scheduled match as written to (or read from) a workbook.
type Entry struct {
	Row     int
	Date    time.Time
	Start   schedule.Clock
	Court   string
	GroupID string
	Order   int
	Team1   string
	Team2   string
}

// IsPlaceholder reports whether a team name refers to another match's result.
func IsPlaceholder(team string) bool {
	return placeholderPattern.MatchString(team)
}

var (
	matchCellPattern   = regexp.MustCompile(`^\[([^/\]]+)(?:/(\d))?\] (.+) vs (.+)$`)
	placeholderPattern = regexp.MustCompile(`^(winner|loser) of `)
)

// FormatMatch renders a match as a schedule cell, e.g. "[A/3] winner of A1
// vs winner of A2" or "[B] Hawks vs Owls".
func FormatMatch(m pod.Match) string {
	tag := m.GroupID
	if m.Order > 0 {
		tag = fmt.Sprintf("%s/%d", m.GroupID, m.Order)
	}
	return fmt.Sprintf("[%s] %s vs %s", tag, m.Team1, m.Team2)
}

func parseMatchCell(cell string) (groupID string, order int, team1, team2 string, ok bool) {
	sub := matchCellPattern.FindStringSubmatch(cell)
	if sub == nil {
		return "", 0, "", "", false
	}
	if sub[2] != "" {
		order, _ = strconv.Atoi(sub[2])
	}
	return sub[1], order, sub[3], sub[4], true
}

func entryFromMatch(m pod.Match) Entry {
	start, _ := schedule.ParseClock(m.Start)
	return Entry{
		Date:    m.Date,
		Start:   start,
		Court:   m.Court,
		GroupID: m.GroupID,
		Order:   m.Order,
		Team1:   m.Team1.String(),
		Team2:   m.Team2.String(),
	}
}

// ReadSchedule parses every match cell of the schedule sheet.
func ReadSchedule(f *excelize.File) ([]Entry, error) {
	rows, err := f.GetRows(ScheduleSheet)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", ScheduleSheet, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s is empty", ScheduleSheet)
	}

	// Header row determines court columns (index 3+)
	header := rows[0]

	var entries []Entry
	for i, row := range rows {
		if i == 0 || len(row) < 3 || row[0] == "" {
			continue
		}
		date, err := time.Parse("01/02/2006", row[0])
		if err != nil {
			continue
		}
		start, err := schedule.ParseClock(row[2])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		for col := 3; col < len(row) && col < len(header); col++ {
			groupID, order, t1, t2, ok := parseMatchCell(row[col])
			if !ok {
				continue
			}
			entries = append(entries, Entry{
				Row:     i + 1,
				Date:    date,
				Start:   start,
				Court:   header[col],
				GroupID: groupID,
				Order:   order,
				Team1:   t1,
				Team2:   t2,
			})
		}
	}
	return entries, nil
}

// UpdateTeamSheets regenerates every team sheet from the schedule sheet, so
// manual edits to the schedule carry through.
func UpdateTeamSheets(path string, cfg *config.Config) error {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	entries, err := ReadSchedule(f)
	if err != nil {
		return err
	}
	for _, team := range cfg.AllTeams() {
		if idx, _ := f.GetSheetIndex(team); idx >= 0 {
			f.DeleteSheet(team)
		}
	}
	if err := writeTeamSheets(f, cfg, entries); err != nil {
		return fmt.Errorf("writing team sheets: %w", err)
	}
	return f.Save()
}

func writeTeamSheets(f *excelize.File, cfg *config.Config, entries []Entry) error {
	members := make(map[string]map[string]bool)
	for _, g := range cfg.Groups {
		members[g.Name] = make(map[string]bool)
		for _, t := range g.Teams {
			members[g.Name][t] = true
		}
	}

	for _, team := range cfg.AllTeams() {
		sheet := team
		if _, err := f.NewSheet(sheet); err != nil {
			return err
		}

		headers := []string{"Date", "Day", "Time", "Court", "Opponent", "Group"}
		writeHeaders(f, sheet, headers)

		// Games between placeholders go on every pod member's sheet.
		var games []Entry
		for _, e := range entries {
			switch {
			case e.Team1 == team || e.Team2 == team:
				games = append(games, e)
			case (IsPlaceholder(e.Team1) || IsPlaceholder(e.Team2)) && members[e.GroupID][team]:
				games = append(games, e)
			}
		}
		sort.Slice(games, func(i, j int) bool {
			if !games[i].Date.Equal(games[j].Date) {
				return games[i].Date.Before(games[j].Date)
			}
			return games[i].Start < games[j].Start
		})

		cellStyle, _ := f.NewStyle(&excelize.Style{
			Font: &excelize.Font{Size: 16, Family: "Arial"},
		})

		for i, g := range games {
			row := i + 2
			var opponent string
			switch team {
			case g.Team1:
				opponent = g.Team2
			case g.Team2:
				opponent = g.Team1
			default:
				opponent = g.Team1 + " / " + g.Team2
			}
			f.SetCellValue(sheet, cellRef(1, row), g.Date.Format("01/02/2006"))
			f.SetCellValue(sheet, cellRef(2, row), g.Date.Format("Mon"))
			f.SetCellValue(sheet, cellRef(3, row), g.Start.String())
			f.SetCellValue(sheet, cellRef(4, row), g.Court)
			f.SetCellValue(sheet, cellRef(5, row), opponent)
			f.SetCellValue(sheet, cellRef(6, row), g.GroupID)
			if cellStyle != 0 {
				f.SetCellStyle(sheet, cellRef(1, row), cellRef(len(headers), row), cellStyle)
			}
		}

		// Set column widths (sized for Arial 16)
		widths := map[string]float64{"A": 18, "B": 8, "C": 10, "D": 20, "E": 20, "F": 10}
		for col, w := range widths {
			f.SetColWidth(sheet, col, col, w)
		}
	}

	return nil
}

func writeHeaders(f *excelize.File, sheet string, headers []string) {
	for i, h := range headers {
		f.SetCellValue(sheet, cellRef(i+1, 1), h)
	}
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "#FFFFFF", Size: 16, Family: "Arial"},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#4472C4"}},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if headerStyle != 0 {
		f.SetCellStyle(sheet, cellRef(1, 1), cellRef(len(headers), 1), headerStyle)
	}
}

func cellRef(col, row int) string {
	return fmt.Sprintf("%s%d", colLetter(col), row)
}

func colLetter(col int) string {
	result := ""
	for col > 0 {
		col--
		result = string(rune('A'+col%26)) + result
		col /= 26
	}
	return result
}
