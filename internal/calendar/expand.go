package calendar

import (
	"time"

	"github.com/teambition/rrule-go"

	appLog "claycal/internal/log"
	"claycal/internal/model"
)

const defaultMaxOccurrencesPerEvent = 500

// ExpandConfig controls how recurrence expansion is performed.
type ExpandConfig struct {
	// Loc is the reference zone; all-day occurrences anchor to midnight
	// in this zone.
	Loc *time.Location

	// RangeStart / RangeEnd define the inclusive window for occurrences.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent is a safety cap against runaway rules.
	// Zero means defaultMaxOccurrencesPerEvent.
	MaxOccurrencesPerEvent int
}

// Expand turns parsed VEVENTs into flat source records, one per concrete
// occurrence inside the window. Non-recurring events yield at most one
// record; RRULE events yield one per instance, with EXDATEs removed and
// RECURRENCE-ID overrides substituted for their original slots.
// An unparseable RRULE drops only that event.
func Expand(events []ParsedEvent, cfg ExpandConfig) []model.SourceRecord {
	if cfg.Loc == nil {
		cfg.Loc = time.Local
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	// Overrides are VEVENTs carrying a RECURRENCE-ID; they never expand
	// on their own, they replace one instance of the series with their
	// UID.
	base := make([]ParsedEvent, 0, len(events))
	overridesByUID := make(map[string][]ParsedEvent)
	for _, ev := range events {
		if ev.RecurrenceID != nil {
			overridesByUID[ev.UID] = append(overridesByUID[ev.UID], ev)
			continue
		}
		base = append(base, ev)
	}

	records := make([]model.SourceRecord, 0, len(events))

	for _, ev := range base {
		overrides := overridesByUID[ev.UID]
		if ev.RawRRule == "" {
			if !timeRangesOverlap(ev.Start, ev.End, cfg.RangeStart, cfg.RangeEnd) {
				continue
			}
			if ov, ok := overrideFor(overrides, ev.Start); ok {
				records = append(records, makeRecord(ov, ov.Start, ov.End))
				continue
			}
			records = append(records, makeRecord(ev, ev.Start, ev.End))
			continue
		}
		records = append(records, expandRecurring(ev, overrides, cfg)...)
	}

	return records
}

func expandRecurring(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) []model.SourceRecord {
	out := make([]model.SourceRecord, 0)

	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Warn("unparseable RRULE, skipping event", "err", err, "origin", ev.Origin, "uid", ev.UID, "rrule", ev.RawRRule)
		return out
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	// Evaluate the window in the event's own location, as the rule does.
	rangeStart := cfg.RangeStart.In(ev.Start.Location())
	rangeEnd := cfg.RangeEnd.In(ev.Start.Location())

	occTimes := set.Between(rangeStart, rangeEnd, true)
	if len(occTimes) > cfg.MaxOccurrencesPerEvent {
		appLog.Warn("recurrence cap hit, truncating", "origin", ev.Origin, "uid", ev.UID, "cap", cfg.MaxOccurrencesPerEvent)
		occTimes = occTimes[:cfg.MaxOccurrencesPerEvent]
	}

	dur := ev.End.Sub(ev.Start)
	for _, occStart := range occTimes {
		start, end := occStart, occStart.Add(dur)
		if ev.AllDay {
			date := time.Date(occStart.Year(), occStart.Month(), occStart.Day(), 0, 0, 0, 0, occStart.Location())
			start, end = date, date
		}
		if ov, ok := overrideFor(overrides, start); ok {
			out = append(out, makeRecord(ov, ov.Start, ov.End))
			continue
		}
		out = append(out, makeRecord(ev, start, end))
	}

	return out
}

// overrideFor returns the override whose RECURRENCE-ID names the
// occurrence starting at start.
func overrideFor(overrides []ParsedEvent, start time.Time) (ParsedEvent, bool) {
	for _, ov := range overrides {
		if ov.RecurrenceID == nil {
			continue
		}
		if ov.RecurrenceID.In(start.Location()).Equal(start) {
			return ov, true
		}
	}
	return ParsedEvent{}, false
}

// makeRecord converts one concrete occurrence into a SourceRecord with a
// tagged start/end. For all-day events the ICS DTEND is exclusive, so a
// multi-day span of [Jan 1, Jan 3) becomes the dates Jan 1 and Jan 2.
// All-day dates are read from the value's own components and never
// converted across zones; a date is a date.
func makeRecord(ev ParsedEvent, start, end time.Time) model.SourceRecord {
	rec := model.SourceRecord{
		Origin:      ev.Origin,
		Title:       ev.Summary,
		Location:    ev.Location,
		Description: ev.Description,
	}

	if ev.AllDay {
		startDate := model.DateOf(start)
		endDate := startDate
		if end.After(start) {
			endDate = model.DateOf(end.AddDate(0, 0, -1))
			if endDate.Before(startDate) {
				endDate = startDate
			}
		}
		rec.Start = model.AllDay(startDate)
		rec.End = model.AllDay(endDate)
		return rec
	}

	rec.Start = model.Instant(start)
	rec.End = model.Instant(end)
	return rec
}

func timeRangesOverlap(aStart, aEnd, bStart, bEnd time.Time) bool {
	if aEnd.Before(bStart) {
		return false
	}
	if bEnd.Before(aStart) {
		return false
	}
	return true
}
