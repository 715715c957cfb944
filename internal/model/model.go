package model

import "time"

// SourceRecord is the flat record pulled out of one heterogeneous source
// item (a calendar VEVENT occurrence or a spreadsheet row) before any
// filtering or normalization.
type SourceRecord struct {
	Origin string // source identifier, for logging and provenance

	Title       string
	Location    string
	Description string

	// Start is always set by extractors. A zero End means End == Start.
	Start EventTime
	End   EventTime
}

// Bounds returns the effective [start, end] pair, substituting Start for
// a missing End.
func (r SourceRecord) Bounds() (EventTime, EventTime) {
	if r.End.IsZero() {
		return r.Start, r.Start
	}
	return r.Start, r.End
}

// Category is a display grouping assigned by the keyword classifier.
type Category string

// NormalizedEvent is a render-ready calendar event: windowed, classified,
// location-humanized, with its timeline position precomputed.
type NormalizedEvent struct {
	Title       string
	Location    string // humanized
	Description string // plain text with real line breaks; escaped at render

	AllDay      bool
	DisplayDate Date      // clipped for multi-day events: max(start, today)
	TimeLabel   string    // "ALL DAY" or "6:00 PM"
	SortKey     time.Time // zoned instant in the reference zone

	Category Category
	Origin   string
}

// SafetyAlert is one spreadsheet row from the last 24 hours, reshaped for
// display. Alerts are recomputed every run; nothing persists between runs.
type SafetyAlert struct {
	Hazard      string // upper-cased for display
	Town        string
	RawLocation string
	Location    string // humanized
	MapLink     string // explicit link, or synthesized from coordinates
	ReportedAt  time.Time
}

// Entry is one element of a render-ready grouping: exactly one of Event
// or Alert is set.
type Entry struct {
	SortKey time.Time
	Event   *NormalizedEvent
	Alert   *SafetyAlert
}

// Title returns the dedup key of the entry: the event title or the alert
// hazard text.
func (e Entry) Title() string {
	if e.Event != nil {
		return e.Event.Title
	}
	if e.Alert != nil {
		return e.Alert.Hazard
	}
	return ""
}

// Groups is the pair of time-ordered sequences handed to the renderer:
// all-day entries and timed entries, each ascending by SortKey with
// encounter order breaking ties.
type Groups struct {
	AllDay []Entry
	Timed  []Entry
}
