package model

import "time"

// Date is a plain calendar date with no time-of-day or zone attached.
// It is the unit of windowing comparisons and of the displayed date.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf truncates t to its calendar date in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// Midnight returns 00:00:00 of the date in loc.
func (d Date) Midnight(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

func (d Date) AddDays(n int) Date {
	return DateOf(d.Midnight(time.UTC).AddDate(0, 0, n))
}

func (d Date) Before(o Date) bool {
	if d.Year != o.Year {
		return d.Year < o.Year
	}
	if d.Month != o.Month {
		return d.Month < o.Month
	}
	return d.Day < o.Day
}

func (d Date) After(o Date) bool { return o.Before(d) }

func (d Date) IsZero() bool { return d == Date{} }

// Max returns the later of d and o.
func (d Date) Max(o Date) Date {
	if d.Before(o) {
		return o
	}
	return d
}

// EventTime is the temporal anchor of a source record: either a bare
// calendar date (an all-day value) or a zoned instant. Every consumer
// switches on the kind; there is no implicit guessing of a time of day
// for date-only values.
type EventTime struct {
	kind    timeKind
	date    Date
	instant time.Time
}

type timeKind int

const (
	kindNone timeKind = iota
	kindAllDay
	kindInstant
)

// AllDay builds a date-only EventTime.
func AllDay(d Date) EventTime {
	return EventTime{kind: kindAllDay, date: d}
}

// Instant builds an EventTime anchored to a zoned instant.
func Instant(t time.Time) EventTime {
	return EventTime{kind: kindInstant, instant: t}
}

func (et EventTime) IsZero() bool { return et.kind == kindNone }

func (et EventTime) IsAllDay() bool { return et.kind == kindAllDay }

// SortKey maps the value onto the single comparable timeline anchored to
// the reference zone: local midnight for all-day values, the actual
// instant (converted into loc) otherwise.
func (et EventTime) SortKey(loc *time.Location) time.Time {
	switch et.kind {
	case kindAllDay:
		return et.date.Midnight(loc)
	case kindInstant:
		return et.instant.In(loc)
	default:
		return time.Time{}
	}
}

// DisplayDate is the calendar date used for windowing and display,
// evaluated in the reference zone.
func (et EventTime) DisplayDate(loc *time.Location) Date {
	switch et.kind {
	case kindAllDay:
		return et.date
	case kindInstant:
		return DateOf(et.instant.In(loc))
	default:
		return Date{}
	}
}

// Label is the human display label: "ALL DAY" for date-only values, else
// a 12-hour clock string with no leading zero ("6:00 PM").
func (et EventTime) Label(loc *time.Location) string {
	switch et.kind {
	case kindAllDay:
		return "ALL DAY"
	case kindInstant:
		return et.instant.In(loc).Format("3:04 PM")
	default:
		return ""
	}
}
