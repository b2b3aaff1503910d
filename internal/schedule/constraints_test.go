package schedule

import (
	"testing"
	"time"
)

func slotAt(date time.Time, start string, duration int) TimeSlot {
	s := MustClock(start)
	return TimeSlot{Date: date, Start: s, End: s + Clock(duration)}
}

func TestRestOK(t *testing.T) {
	c := NewChecker(60, nil)
	d := mustDate("2026-06-06")
	played := slotAt(d, "10:00", 60)

	tests := []struct {
		name      string
		candidate TimeSlot
		want      bool
	}{
		{"half a match after", slotAt(d, "11:30", 60), false},
		{"back to back", slotAt(d, "11:00", 60), false},
		{"one full match of rest", slotAt(d, "12:00", 60), true},
		{"later in the day", slotAt(d, "15:00", 60), true},
		{"rest needed before too", slotAt(d, "08:30", 60), false},
		{"enough rest before", slotAt(d, "08:00", 60), true},
		{"next day", slotAt(mustDate("2026-06-07"), "10:00", 60), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.RestOK(tt.candidate, played); got != tt.want {
				t.Errorf("RestOK(%s) = %v, want %v", tt.candidate, got, tt.want)
			}
		})
	}

	if !c.RestOK(played) {
		t.Error("a slot with nothing committed should be fine")
	}
}

func TestOrderViolations(t *testing.T) {
	c := NewChecker(60, nil)
	d := mustDate("2026-06-06")
	firstRound := map[int]TimeSlot{
		1: slotAt(d, "09:00", 60),
		2: slotAt(d, "09:00", 60),
	}

	t.Run("winners game needs rest after the first round", func(t *testing.T) {
		if got := c.OrderViolations(3, slotAt(d, "10:00", 60), firstRound); got != WinnersOrder {
			t.Errorf("got %b, want WinnersOrder", got)
		}
		if got := c.OrderViolations(3, slotAt(d, "11:00", 60), firstRound); got != 0 {
			t.Errorf("got %b, want none", got)
		}
	})

	t.Run("losers game follows the winners game", func(t *testing.T) {
		siblings := map[int]TimeSlot{
			1: firstRound[1],
			2: firstRound[2],
			3: slotAt(d, "11:00", 60),
		}
		if got := c.OrderViolations(4, slotAt(d, "11:00", 60), siblings); got != LosersOrder {
			t.Errorf("same start as winners game: got %b, want LosersOrder", got)
		}
		if got := c.OrderViolations(4, slotAt(d, "12:00", 60), siblings); got != 0 {
			t.Errorf("right after winners game: got %b, want none", got)
		}
	})

	t.Run("both types can be broken at once", func(t *testing.T) {
		siblings := map[int]TimeSlot{3: slotAt(d, "11:00", 60)}
		got := c.OrderViolations(1, slotAt(d, "10:30", 60), siblings)
		if got != WinnersOrder {
			t.Errorf("got %b, want WinnersOrder", got)
		}
		siblings[4] = slotAt(d, "11:00", 60)
		got = c.OrderViolations(1, slotAt(d, "10:30", 60), siblings)
		if got != WinnersOrder|LosersOrder {
			t.Errorf("got %b, want both", got)
		}
		if got.Count() != 2 {
			t.Errorf("got count %d, want 2", got.Count())
		}
	})

	t.Run("earlier date is never allowed", func(t *testing.T) {
		if got := c.OrderViolations(3, slotAt(mustDate("2026-06-05"), "18:00", 60), firstRound); got != WinnersOrder {
			t.Errorf("got %b, want WinnersOrder", got)
		}
		if got := c.OrderViolations(3, slotAt(mustDate("2026-06-07"), "08:00", 60), firstRound); got != 0 {
			t.Errorf("next day: got %b, want none", got)
		}
	})

	t.Run("round robin matches have no order", func(t *testing.T) {
		if !c.OrderOK(0, slotAt(d, "09:00", 60), firstRound) {
			t.Error("order 0 should always be fine")
		}
	})
}

func TestBlocked(t *testing.T) {
	d := mustDate("2026-06-06")
	c := NewChecker(60, []Restriction{
		{Team: "Hawks", Date: d, Start: MustClock("09:00"), End: MustClock("11:00")},
	})

	if !c.Blocked("Hawks", slotAt(d, "10:30", 60)) {
		t.Error("10:30 overlaps the restriction")
	}
	if c.Blocked("Hawks", slotAt(d, "11:00", 60)) {
		t.Error("11:00 starts after the restriction")
	}
	if c.Blocked("Owls", slotAt(d, "10:00", 60)) {
		t.Error("Owls have no restriction")
	}
	if !c.BlockedAny([]string{"Owls", "Hawks"}, slotAt(d, "09:00", 60)) {
		t.Error("BlockedAny should report Hawks")
	}
}

func TestDefaultScore(t *testing.T) {
	d := mustDate("2026-06-06")
	c := NewChecker(60, nil)

	early := DefaultScore(Candidate{Slot: slotAt(d, "09:00", 60), Index: 0, Total: 10, Checker: c})
	late := DefaultScore(Candidate{Slot: slotAt(d, "15:00", 60), Index: 9, Total: 10, Checker: c})
	if early <= late {
		t.Errorf("early slot scored %v, late slot %v; want early higher", early, late)
	}

	clean := DefaultScore(Candidate{Slot: slotAt(d, "12:00", 60), Total: 10, Checker: c})
	relaxed := DefaultScore(Candidate{Slot: slotAt(d, "12:00", 60), Total: 10, Checker: c, Violations: LosersOrder})
	if clean-relaxed != losersPenalty {
		t.Errorf("got penalty %v, want %v", clean-relaxed, losersPenalty)
	}
}
