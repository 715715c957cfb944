package calendar

import (
	"testing"
	"time"

	"claycal/internal/model"
)

func TestExpandSingleEvent(t *testing.T) {
	loc := chicago(t)
	cfg := ExpandConfig{
		Loc:        loc,
		RangeStart: time.Date(2026, time.March, 4, 0, 0, 0, 0, loc),
		RangeEnd:   time.Date(2026, time.March, 13, 0, 0, 0, 0, loc),
	}

	events := []ParsedEvent{
		{
			Origin:  "town",
			Summary: "Inside window",
			Start:   time.Date(2026, time.March, 5, 18, 0, 0, 0, loc),
			End:     time.Date(2026, time.March, 5, 19, 0, 0, 0, loc),
		},
		{
			Origin:  "town",
			Summary: "Long gone",
			Start:   time.Date(2026, time.January, 1, 18, 0, 0, 0, loc),
			End:     time.Date(2026, time.January, 1, 19, 0, 0, 0, loc),
		},
	}

	records := Expand(events, cfg)
	if len(records) != 1 {
		t.Fatalf("Expand() returned %d records, want 1", len(records))
	}
	if records[0].Title != "Inside window" {
		t.Errorf("Title = %q", records[0].Title)
	}
	if records[0].Start.IsAllDay() {
		t.Error("timed event became all-day")
	}
}

func TestExpandAllDayDates(t *testing.T) {
	loc := chicago(t)
	cfg := ExpandConfig{
		Loc:        loc,
		RangeStart: time.Date(2026, time.March, 4, 0, 0, 0, 0, loc),
		RangeEnd:   time.Date(2026, time.March, 13, 0, 0, 0, 0, loc),
	}

	// All-day events from feeds often carry UTC-midnight times; the
	// extracted dates must not shift across zones.
	events := []ParsedEvent{
		{
			Origin:  "town",
			Summary: "County Fair",
			AllDay:  true,
			Start:   time.Date(2026, time.March, 7, 0, 0, 0, 0, time.UTC),
			End:     time.Date(2026, time.March, 9, 0, 0, 0, 0, time.UTC), // exclusive
		},
	}

	records := Expand(events, cfg)
	if len(records) != 1 {
		t.Fatalf("Expand() returned %d records, want 1", len(records))
	}

	rec := records[0]
	if !rec.Start.IsAllDay() {
		t.Fatal("record is not all-day")
	}
	start, end := rec.Bounds()
	if got := start.DisplayDate(loc); got != (model.Date{Year: 2026, Month: time.March, Day: 7}) {
		t.Errorf("start date = %v, want Mar 7", got)
	}
	// DTEND is exclusive: Mar 9 exclusive means the last day is Mar 8.
	if got := end.DisplayDate(loc); got != (model.Date{Year: 2026, Month: time.March, Day: 8}) {
		t.Errorf("end date = %v, want Mar 8", got)
	}
}

func TestExpandWeeklyRecurrence(t *testing.T) {
	loc := chicago(t)
	cfg := ExpandConfig{
		Loc:        loc,
		RangeStart: time.Date(2026, time.March, 4, 0, 0, 0, 0, loc),
		RangeEnd:   time.Date(2026, time.March, 19, 0, 0, 0, 0, loc),
	}

	events := []ParsedEvent{
		{
			Origin:   "town",
			UID:      "weekly",
			Summary:  "Rotary Lunch",
			Start:    time.Date(2026, time.February, 4, 12, 0, 0, 0, loc),
			End:      time.Date(2026, time.February, 4, 13, 0, 0, 0, loc),
			RawRRule: "FREQ=WEEKLY;BYDAY=WE",
		},
	}

	records := Expand(events, cfg)
	// Wednesdays in the window: Mar 4, Mar 11, Mar 18.
	if len(records) != 3 {
		t.Fatalf("Expand() returned %d records, want 3", len(records))
	}
	for i, rec := range records {
		start, end := rec.Bounds()
		s := start.SortKey(loc)
		if s.Weekday() != time.Wednesday {
			t.Errorf("occurrence %d on %v, want Wednesday", i, s.Weekday())
		}
		if got := end.SortKey(loc).Sub(s); got != time.Hour {
			t.Errorf("occurrence %d duration = %v, want 1h", i, got)
		}
	}
}

func TestExpandExDate(t *testing.T) {
	loc := chicago(t)
	cfg := ExpandConfig{
		Loc:        loc,
		RangeStart: time.Date(2026, time.March, 4, 0, 0, 0, 0, loc),
		RangeEnd:   time.Date(2026, time.March, 19, 0, 0, 0, 0, loc),
	}

	events := []ParsedEvent{
		{
			Origin:   "town",
			UID:      "weekly",
			Summary:  "Rotary Lunch",
			Start:    time.Date(2026, time.February, 4, 12, 0, 0, 0, loc),
			End:      time.Date(2026, time.February, 4, 13, 0, 0, 0, loc),
			RawRRule: "FREQ=WEEKLY;BYDAY=WE",
			ExDates:  []time.Time{time.Date(2026, time.March, 11, 12, 0, 0, 0, loc)},
		},
	}

	records := Expand(events, cfg)
	if len(records) != 2 {
		t.Fatalf("Expand() returned %d records, want 2 after EXDATE", len(records))
	}
	for _, rec := range records {
		if rec.Start.SortKey(loc).Day() == 11 {
			t.Error("excluded occurrence still present")
		}
	}
}

func TestExpandAllDayExDateFromFeed(t *testing.T) {
	loc := chicago(t)

	// The whole path matters here: an all-day series anchors its
	// occurrences and its EXDATEs at the same reference-zone midnight,
	// so a canceled week actually disappears.
	body := ics(
		"BEGIN:VEVENT",
		"UID:weekly",
		"SUMMARY:Farmers Market",
		"DTSTART;VALUE=DATE:20260304",
		"RRULE:FREQ=WEEKLY;BYDAY=WE",
		"EXDATE;VALUE=DATE:20260311",
		"END:VEVENT",
	)

	events, err := Parse("town", body, "Clay County", loc)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	cfg := ExpandConfig{
		Loc:        loc,
		RangeStart: time.Date(2026, time.March, 3, 0, 0, 0, 0, loc),
		RangeEnd:   time.Date(2026, time.March, 19, 0, 0, 0, 0, loc),
	}
	records := Expand(events, cfg)

	if len(records) != 2 {
		t.Fatalf("Expand() returned %d records, want 2 after EXDATE", len(records))
	}
	for _, rec := range records {
		if !rec.Start.IsAllDay() {
			t.Error("occurrence lost its all-day tag")
		}
		if got := rec.Start.DisplayDate(loc); got.Day == 11 {
			t.Errorf("excluded occurrence still present: %v", got)
		}
	}
}

func TestExpandRescheduledInstance(t *testing.T) {
	loc := chicago(t)

	body := ics(
		"BEGIN:VEVENT",
		"UID:board",
		"SUMMARY:Village Board Meeting",
		"DTSTART:20260304T180000Z",
		"DTEND:20260304T190000Z",
		"RRULE:FREQ=WEEKLY;BYDAY=WE",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:board",
		"RECURRENCE-ID:20260311T180000Z",
		"DTSTART:20260312T190000Z",
		"DTEND:20260312T200000Z",
		"SUMMARY:Village Board Meeting (moved)",
		"END:VEVENT",
	)

	events, err := Parse("town", body, "Clay County", loc)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	cfg := ExpandConfig{
		Loc:        loc,
		RangeStart: time.Date(2026, time.March, 3, 0, 0, 0, 0, loc),
		RangeEnd:   time.Date(2026, time.March, 19, 0, 0, 0, 0, loc),
	}
	records := Expand(events, cfg)

	// Still one record per week; the middle instance moved to Thursday.
	if len(records) != 3 {
		t.Fatalf("Expand() returned %d records, want 3", len(records))
	}

	var moved *model.SourceRecord
	for i, rec := range records {
		if rec.Start.SortKey(loc).Equal(time.Date(2026, time.March, 11, 18, 0, 0, 0, time.UTC)) {
			t.Error("overridden occurrence still at its original slot")
		}
		if rec.Title == "Village Board Meeting (moved)" {
			moved = &records[i]
		}
	}
	if moved == nil {
		t.Fatal("rescheduled instance missing from output")
	}
	if want := time.Date(2026, time.March, 12, 19, 0, 0, 0, time.UTC); !moved.Start.SortKey(loc).Equal(want) {
		t.Errorf("rescheduled start = %v, want %v", moved.Start.SortKey(loc), want)
	}
}

func TestExpandBadRRuleSkipsEvent(t *testing.T) {
	loc := chicago(t)
	cfg := ExpandConfig{
		Loc:        loc,
		RangeStart: time.Date(2026, time.March, 4, 0, 0, 0, 0, loc),
		RangeEnd:   time.Date(2026, time.March, 19, 0, 0, 0, 0, loc),
	}

	events := []ParsedEvent{
		{Origin: "town", Summary: "Broken", Start: time.Now(), End: time.Now(), RawRRule: "FREQ=NONSENSE"},
	}

	if records := Expand(events, cfg); len(records) != 0 {
		t.Errorf("Expand() returned %d records, want 0", len(records))
	}
}
