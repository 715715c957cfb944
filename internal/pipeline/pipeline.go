// Package pipeline runs one fetch → extract → filter → merge pass over
// the configured sources and produces render-ready groupings.
package pipeline

import (
	"context"
	"sort"
	"time"

	"claycal/internal/calendar"
	"claycal/internal/classify"
	"claycal/internal/fetch"
	appLog "claycal/internal/log"
	"claycal/internal/location"
	"claycal/internal/model"
	"claycal/internal/sheet"
)

// alertWindow is how far back spreadsheet reports remain visible.
const alertWindow = 24 * time.Hour

// defaultMapLink is shown when an alert has neither an explicit link nor
// coordinates to synthesize one from.
const defaultMapLink = "https://www.google.com/maps"

// Pipeline holds the collaborators of one run. A Pipeline is reusable;
// all per-run state (the seen-title set, the groupings) lives on the
// stack of Build.
type Pipeline struct {
	Loc          *time.Location
	HorizonDays  int
	DefaultPlace string
	Classifier   *classify.Classifier
	Humanizer    *location.Humanizer
}

// Sources names the remote documents of one run.
type Sources struct {
	Fetcher   *fetch.Fetcher
	Calendars []fetch.Source
	Sheet     fetch.Source // zero URL disables the alert source
}

// Run fetches and extracts every source, then builds the groupings.
// A source that cannot be fetched or parsed is logged and skipped; the
// run continues with whatever sources succeeded.
func (p *Pipeline) Run(ctx context.Context, now time.Time, src Sources) model.Groups {
	now = now.In(p.Loc)
	today := model.DateOf(now)

	// Expansion range is one day wider than the display window on both
	// sides; the date-level filter in Build does the precise cut.
	expandCfg := calendar.ExpandConfig{
		Loc:        p.Loc,
		RangeStart: today.AddDays(-1).Midnight(p.Loc),
		RangeEnd:   today.AddDays(p.HorizonDays + 1).Midnight(p.Loc),
	}

	records := make([]model.SourceRecord, 0)
	for _, cal := range src.Calendars {
		res, err := src.Fetcher.FetchOne(ctx, cal)
		if err != nil {
			appLog.Error("calendar source unreachable, skipping", err, "id", cal.ID, "url", fetch.RedactURL(cal.URL))
			continue
		}
		parsed, err := calendar.Parse(cal.ID, res.Body, p.DefaultPlace, p.Loc)
		if err != nil {
			appLog.Error("calendar source unparseable, skipping", err, "id", cal.ID)
			continue
		}
		records = append(records, calendar.Expand(parsed, expandCfg)...)
	}

	alerts := make([]model.SafetyAlert, 0)
	if src.Sheet.URL != "" {
		res, err := src.Fetcher.FetchOne(ctx, src.Sheet)
		if err != nil {
			appLog.Error("sheet source unreachable, skipping", err, "id", src.Sheet.ID, "url", fetch.RedactURL(src.Sheet.URL))
		} else if parsed, perr := sheet.Parse(res.Body, p.Loc, p.DefaultPlace); perr != nil {
			appLog.Error("sheet source unparseable, skipping", perr, "id", src.Sheet.ID)
		} else {
			alerts = parsed
		}
	}

	return p.Build(ctx, now, records, alerts)
}

// Build filters, classifies, humanizes, and merges the extracted records
// into the two time-ordered groupings. Deterministic for fixed inputs
// and a fixed now.
func (p *Pipeline) Build(ctx context.Context, now time.Time, records []model.SourceRecord, alerts []model.SafetyAlert) model.Groups {
	now = now.In(p.Loc)
	today := model.DateOf(now)
	horizonEnd := today.AddDays(p.HorizonDays)
	cutoff := now.Add(-alertWindow)

	// One seen-title set per run, shared across sources: the second and
	// later records with an exact-match title are dropped, first wins.
	seen := make(map[string]bool)
	taken := func(title string) bool {
		if title == "" {
			return false
		}
		if seen[title] {
			return true
		}
		seen[title] = true
		return false
	}

	var groups model.Groups
	dropped := 0

	for _, rec := range records {
		start, end := rec.Bounds()
		startDate := start.DisplayDate(p.Loc)
		endDate := end.DisplayDate(p.Loc)

		// Keep when [startDate, endDate] overlaps [today, horizonEnd].
		if endDate.Before(today) || startDate.After(horizonEnd) {
			continue
		}
		if taken(rec.Title) {
			dropped++
			continue
		}

		// Multi-day events are clipped for display: an event already in
		// progress shows today's date, not its original start.
		displayDate := startDate.Max(today)

		ev := &model.NormalizedEvent{
			Title:       rec.Title,
			Location:    p.Humanizer.Humanize(ctx, rec.Location).Label,
			Description: rec.Description,
			AllDay:      start.IsAllDay(),
			DisplayDate: displayDate,
			TimeLabel:   start.Label(p.Loc),
			Category:    p.Classifier.Classify(rec.Title, rec.Location),
			Origin:      rec.Origin,
		}
		if ev.AllDay {
			ev.SortKey = displayDate.Midnight(p.Loc)
		} else {
			ev.SortKey = start.SortKey(p.Loc)
		}

		entry := model.Entry{SortKey: ev.SortKey, Event: ev}
		if ev.AllDay {
			groups.AllDay = append(groups.AllDay, entry)
		} else {
			groups.Timed = append(groups.Timed, entry)
		}
	}

	for _, al := range alerts {
		// Strictly newer than now-24h; a report at exactly the cutoff is
		// already gone.
		if !al.ReportedAt.After(cutoff) {
			continue
		}
		if taken(al.Hazard) {
			dropped++
			continue
		}

		res := p.Humanizer.Humanize(ctx, al.RawLocation)
		al.Location = res.Label
		al.MapLink = res.MapLink
		if al.MapLink == "" {
			al.MapLink = defaultMapLink
		}
		al.ReportedAt = al.ReportedAt.In(p.Loc)

		alCopy := al
		groups.Timed = append(groups.Timed, model.Entry{SortKey: alCopy.ReportedAt, Alert: &alCopy})
	}

	// Ascending by sort key; encounter order breaks ties.
	sort.SliceStable(groups.AllDay, func(i, j int) bool {
		return groups.AllDay[i].SortKey.Before(groups.AllDay[j].SortKey)
	})
	sort.SliceStable(groups.Timed, func(i, j int) bool {
		return groups.Timed[i].SortKey.Before(groups.Timed[j].SortKey)
	})

	appLog.Info("pipeline build completed",
		"all_day", len(groups.AllDay),
		"timed", len(groups.Timed),
		"duplicates_dropped", dropped,
		"today", today.Midnight(p.Loc).Format("2006-01-02"),
	)

	return groups
}
