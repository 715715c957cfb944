// Package render turns the merged groupings into the HTML fragments that
// get spliced into the portal page.
package render

import (
	"html/template"
	"strings"
	"time"

	"claycal/internal/model"
)

// eventTmpl is one calendar entry. All-day entries lead with the ALL DAY
// label; the date shown is the clipped display date.
const eventTmpl = `
<div class="event-entry">
    <div class="event-info">
        <div class="event-date">{{dateLabel .Event.DisplayDate}} <span class="event-time">{{.Event.TimeLabel}}</span></div>
        <h3 class="event-title">{{.Event.Title}}</h3>
        <div class="event-location">&#128205; {{.Event.Location}} <span class="event-category">({{.Event.Category}})</span></div>
        {{- if .Event.Description}}
        <div class="event-desc">{{nl2br .Event.Description}}</div>
        {{- end}}
    </div>
</div>`

// alertTmpl keeps the hand-styled look of the portal's alert boxes: red
// left border, upper-cased hazard headline, translated location with the
// town in parentheses, and the map button.
const alertTmpl = `
<div class="event-entry" style="border-left: 8px solid #eb1c24; background: #fff5f5; padding: 15px; margin-bottom: 15px; border-radius: 4px; box-shadow: 2px 2px 5px rgba(0,0,0,0.1);">
    <div class="event-info">
        <h3 style="margin: 0 0 5px 0; color: #eb1c24; font-family: 'Arial Black', sans-serif; font-size: 22px; font-weight: 900; line-height: 1.1;">
            &#9888;&#65039; {{.Alert.Hazard}}
        </h3>
        <div style="font-size: 16px; font-weight: bold; color: #333; margin-bottom: 8px;">
            &#128205; {{.Alert.Location}} <span style="font-weight: normal; color: #666;">({{.Alert.Town}})</span>
        </div>
        <div style="font-size: 12px; color: #666; border-top: 1px solid #ddd; padding-top: 10px; margin-top: 10px;">
            Reported: {{reportedLabel .Alert.ReportedAt}}
            <span style="margin: 0 10px;">&#8226;</span>
            <a href="{{.Alert.MapLink}}" target="_blank" style="display: inline-block; background: #eb1c24; color: white; padding: 6px 12px; text-decoration: none; border-radius: 4px; font-weight: bold; font-size: 11px; text-transform: uppercase;">
                View on Map
            </a>
        </div>
    </div>
</div>`

// Renderer renders groupings into fragments. Safe for reuse across runs.
type Renderer struct {
	event *template.Template
	alert *template.Template
}

func New() (*Renderer, error) {
	funcs := template.FuncMap{
		"nl2br":         nl2br,
		"dateLabel":     dateLabel,
		"reportedLabel": reportedLabel,
	}

	ev, err := template.New("event").Funcs(funcs).Parse(eventTmpl)
	if err != nil {
		return nil, err
	}
	al, err := template.New("alert").Funcs(funcs).Parse(alertTmpl)
	if err != nil {
		return nil, err
	}
	return &Renderer{event: ev, alert: al}, nil
}

// Events renders the calendar fragment: the all-day group first, then the
// timed group, both already in sort order. Alert entries belong to the
// alerts fragment and are skipped here.
func (r *Renderer) Events(g model.Groups) (string, error) {
	var b strings.Builder
	for _, e := range g.AllDay {
		if e.Event == nil {
			continue
		}
		if err := r.event.Execute(&b, e); err != nil {
			return "", err
		}
		b.WriteByte('\n')
	}
	for _, e := range g.Timed {
		if e.Event == nil {
			continue
		}
		if err := r.event.Execute(&b, e); err != nil {
			return "", err
		}
		b.WriteByte('\n')
	}
	return b.String(), nil
}

// Alerts renders the safety-alert fragment from the timed group, in the
// same chronological order the merge produced.
func (r *Renderer) Alerts(g model.Groups) (string, error) {
	var b strings.Builder
	for _, e := range g.Timed {
		if e.Alert == nil {
			continue
		}
		if err := r.alert.Execute(&b, e); err != nil {
			return "", err
		}
		b.WriteByte('\n')
	}
	return b.String(), nil
}

// nl2br escapes s and turns real line breaks into <br> tags.
func nl2br(s string) template.HTML {
	escaped := template.HTMLEscapeString(s)
	escaped = strings.ReplaceAll(escaped, "\r\n", "\n")
	return template.HTML(strings.ReplaceAll(escaped, "\n", "<br>"))
}

// dateLabel formats a display date like "Mon, Jan 2".
func dateLabel(d model.Date) string {
	return d.Midnight(time.UTC).Format("Mon, Jan 2")
}

// reportedLabel formats an alert timestamp like "6:05 PM", no leading
// zero, in the zone the pipeline already normalized it to.
func reportedLabel(t time.Time) string {
	return t.Format("3:04 PM")
}
