package calendar

import (
	"bytes"
	"errors"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "claycal/internal/log"
)

// ParsedEvent is the normalized representation of a VEVENT as produced by
// the feed parser. Recurrence expansion operates on this type.
type ParsedEvent struct {
	Origin string // feed identifier

	UID string

	Summary     string
	Description string
	Location    string

	Start  time.Time
	End    time.Time
	AllDay bool

	RawRRule string
	ExDates  []time.Time

	// RecurrenceID is set when this VEVENT overrides one instance of the
	// recurring series with the same UID (a rescheduled occurrence).
	RecurrenceID *time.Time
}

// Parse parses a single ICS payload into a list of ParsedEvent.
//
//   - It relies on the underlying library's VTIMEZONE/TZID handling to
//     construct proper time.Time values (with Location set).
//   - It detects all-day events by inspecting the DTSTART value format;
//     a date-only DTSTART never gets a guessed time of day.
//   - Missing SUMMARY yields an empty title; missing LOCATION yields the
//     given fallback place; DESCRIPTION text escapes are unfolded into
//     real line breaks.
//   - A malformed VEVENT is logged and skipped; the rest of the feed is
//     still parsed.
func Parse(origin string, body []byte, fallbackPlace string, loc *time.Location) ([]ParsedEvent, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	events := make([]ParsedEvent, 0)

	for _, comp := range cal.Events() {
		ev, perr := parseVEvent(origin, comp, fallbackPlace, loc)
		if perr != nil {
			appLog.Warn("vevent parse failed, skipping", "err", perr, "origin", origin)
			continue
		}
		events = append(events, ev)
	}

	appLog.Info("calendar parse completed", "origin", origin, "event_count", len(events))
	return events, nil
}

func parseVEvent(origin string, ve *ical.VEvent, fallbackPlace string, loc *time.Location) (ParsedEvent, error) {
	var out ParsedEvent
	out.Origin = origin
	out.Location = fallbackPlace

	if uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId); uidProp != nil {
		out.UID = uidProp.Value
	}

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = unescapeText(p.Value)
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		out.Description = unescapeText(p.Value)
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil && strings.TrimSpace(p.Value) != "" {
		out.Location = unescapeText(p.Value)
	}

	// Detect all-day: VALUE=DATE or no 'T' in the DTSTART value.
	dtStartProp := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStartProp == nil || dtStartProp.Value == "" {
		return out, errors.New("missing DTSTART")
	}
	allDay := !strings.Contains(dtStartProp.Value, "T")
	if params := dtStartProp.ICalParameters; params != nil {
		if vs, ok := params["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
			allDay = true
		}
	}
	out.AllDay = allDay

	// DTSTART / DTEND. The library's helpers carry the TZID logic for
	// timed values. Date-only values are parsed from the raw property in
	// the reference zone instead: the library anchors them to UTC
	// midnight, and an all-day series must keep its occurrence instants,
	// EXDATEs, and RECURRENCE-IDs at the same midnight or exclusion and
	// override matching never line up.
	var start, end time.Time
	if allDay {
		t, err := parseICSTime(dtStartProp.Value, loc)
		if err != nil {
			return out, errors.New("unparseable DTSTART: " + dtStartProp.Value)
		}
		start = t
		if dtEndProp := ve.GetProperty(ical.ComponentPropertyDtEnd); dtEndProp != nil {
			if t, err := parseICSTime(dtEndProp.Value, loc); err == nil {
				end = t
			}
		}
	} else {
		start, _ = ve.GetStartAt()
		end, _ = ve.GetEndAt()
		if start.IsZero() {
			t, err := parseICSTime(dtStartProp.Value, loc)
			if err != nil {
				return out, errors.New("unparseable DTSTART: " + dtStartProp.Value)
			}
			start = t
		}
		if end.IsZero() {
			if dtEndProp := ve.GetProperty(ical.ComponentPropertyDtEnd); dtEndProp != nil {
				if t, err := parseICSTime(dtEndProp.Value, loc); err == nil {
					end = t
				}
			}
		}
	}
	if end.IsZero() {
		end = start
	}

	out.Start = start
	out.End = end

	// RRULE (raw string only; expansion is in expand.go).
	if rruleProp := ve.GetProperty(ical.ComponentPropertyRrule); rruleProp != nil {
		out.RawRRule = rruleProp.Value
	}

	// EXDATE (can appear multiple times, each possibly comma-separated).
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if t, err := parseICSTime(part, loc); err == nil {
				out.ExDates = append(out.ExDates, t)
			}
		}
	}

	// RECURRENCE-ID (raw property name; the library carries no constant
	// for it).
	if ridProp := ve.GetProperty("RECURRENCE-ID"); ridProp != nil {
		if t, err := parseICSTime(ridProp.Value, loc); err == nil {
			out.RecurrenceID = &t
		}
	}

	return out, nil
}

// parseICSTime parses a basic ICS date/date-time string. Date-only and
// floating values are interpreted in loc.
func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty time value")
	}

	// UTC form, e.g. 20250101T090000Z
	if strings.HasSuffix(v, "Z") {
		const layout = "20060102T150405Z"
		return time.Parse(layout, v)
	}

	// Floating date-time, e.g. 20250101T090000
	if strings.Contains(v, "T") {
		const layout = "20060102T150405"
		return time.ParseInLocation(layout, v, loc)
	}

	// Date-only (all-day), e.g. 20250101
	const layoutDate = "20060102"
	return time.ParseInLocation(layoutDate, v, loc)
}

// unescapeText unfolds iCalendar TEXT escape sequences (RFC 5545 3.3.11):
// \n and \N become real line breaks, \, \; and \\ become the literal
// character.
func unescapeText(s string) string {
	if !strings.ContainsRune(s, '\\') {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 == len(s) {
			b.WriteByte(c)
			continue
		}
		i++
		switch s[i] {
		case 'n', 'N':
			b.WriteByte('\n')
		case ',', ';', '\\':
			b.WriteByte(s[i])
		default:
			b.WriteByte('\\')
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
