// Package sheet parses the safety-report spreadsheet, exported as CSV
// over HTTP, into safety alerts.
package sheet

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"strings"
	"time"

	appLog "claycal/internal/log"
	"claycal/internal/model"
)

// The report form writes these column headers. The town column has been
// renamed across form revisions, hence the fallback chain.
const (
	colTimestamp = "Timestamp"
	colHazard    = "What is the hazard?"
	colLocation  = "Where is it exactly?"
)

var townColumns = []string{"Town/City", "Town", "City"}

// timestampLayout is the only accepted timestamp format: MM/DD/YYYY
// HH:MM:SS, with or without zero padding. Anything else skips the row.
const timestampLayout = "1/2/2006 15:04:05"

const defaultHazard = "SAFETY ALERT"

// Parse reads the CSV export into alerts. Timestamps are interpreted in
// the reference zone loc. Rows with a missing or unparseable timestamp
// are skipped silently; a malformed CSV line drops only that line. Only
// a body with no usable header row is an error.
//
// The returned alerts carry the raw location text; humanizing and map
// links are applied later in the pipeline.
func Parse(body []byte, loc *time.Location, defaultPlace string) ([]model.SafetyAlert, error) {
	r := csv.NewReader(bytes.NewReader(body))
	r.FieldsPerRecord = -1 // sheet exports pad rows unevenly

	header, err := r.Read()
	if err != nil {
		return nil, errors.New("sheet: missing header row")
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}
	if _, ok := col[colTimestamp]; !ok {
		return nil, errors.New("sheet: header has no " + colTimestamp + " column")
	}

	alerts := make([]model.SafetyAlert, 0)
	skipped := 0

	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			skipped++
			continue
		}

		ts := field(row, col, colTimestamp, "")
		if ts == "" {
			skipped++
			continue
		}
		reportedAt, err := time.ParseInLocation(timestampLayout, ts, loc)
		if err != nil {
			skipped++
			continue
		}

		hazard := field(row, col, colHazard, defaultHazard)
		rawLoc := field(row, col, colLocation, "")

		town := defaultPlace
		for _, name := range townColumns {
			if v := field(row, col, name, ""); v != "" {
				town = v
				break
			}
		}

		alerts = append(alerts, model.SafetyAlert{
			Hazard:      strings.ToUpper(hazard),
			Town:        town,
			RawLocation: rawLoc,
			ReportedAt:  reportedAt,
		})
	}

	appLog.Info("sheet parse completed", "row_count", len(alerts), "skipped", skipped)
	return alerts, nil
}

// field returns the trimmed cell under the named column, or def when the
// column is absent, out of range, or empty.
func field(row []string, col map[string]int, name, def string) string {
	i, ok := col[name]
	if !ok || i >= len(row) {
		return def
	}
	v := strings.TrimSpace(row[i])
	if v == "" {
		return def
	}
	return v
}
