// Package location turns raw location text (coordinates, map links, or
// free text) into a short human-readable label plus a map link.
package location

import (
	"context"
	"regexp"
	"strings"
	"time"

	"claycal/internal/geocode"
	appLog "claycal/internal/log"
	"claycal/internal/retry"
)

var (
	coordPattern = regexp.MustCompile(`(-?\d+\.\d+),\s*(-?\d+\.\d+)`)
	urlPattern   = regexp.MustCompile(`https?://\S+`)
)

// Placeholder is the label used when nothing human-readable remains.
const Placeholder = "Location Pin"

// Result is the humanized form of one raw location value. MapLink is
// empty when the text carried neither a link nor a coordinate pair.
type Result struct {
	Label   string
	MapLink string
}

// Humanizer resolves raw location text, with reverse geocoding for
// coordinate pairs behind a best-effort, non-blocking wrapper: each
// lookup has its own deadline, and after the bounded attempts are
// exhausted it gives up silently and falls back to the text path.
type Humanizer struct {
	geo      geocode.Geocoder
	attempts int
	wait     time.Duration
	timeout  time.Duration
}

// New builds a Humanizer. geo may be nil, which disables geocoding and
// always takes the text path for coordinates.
func New(geo geocode.Geocoder, attempts int, wait, timeout time.Duration) *Humanizer {
	if attempts < 1 {
		attempts = 1
	}
	return &Humanizer{geo: geo, attempts: attempts, wait: wait, timeout: timeout}
}

// Humanize applies the resolution priority:
//
//  1. An embedded URL becomes the canonical map link and is stripped
//     from the display text.
//  2. Otherwise a decimal lat/lon pair is reverse-geocoded; on success
//     the label is the first two comma-separated address components and
//     a map link is synthesized from the coordinates.
//  3. Otherwise residual URLs are stripped and the trimmed text is the
//     label, or Placeholder when nothing remains.
func (h *Humanizer) Humanize(ctx context.Context, raw string) Result {
	if link := urlPattern.FindString(raw); link != "" {
		return Result{Label: textLabel(raw), MapLink: link}
	}

	if m := coordPattern.FindStringSubmatch(raw); m != nil {
		lat, lon := m[1], m[2]
		mapLink := "https://www.google.com/maps/search/?api=1&query=" + lat + "," + lon

		if h.geo != nil {
			addr, ok := retry.DoValue(ctx, h.attempts, h.wait, func() (string, error) {
				cctx, cancel := context.WithTimeout(ctx, h.timeout)
				defer cancel()
				return h.geo.Reverse(cctx, lat, lon)
			}, "")
			if ok {
				return Result{Label: addressLabel(addr), MapLink: mapLink}
			}
			appLog.Warn("reverse geocode gave up, using raw text", "lat", lat, "lon", lon, "attempts", h.attempts)
		}

		return Result{Label: textLabel(raw), MapLink: mapLink}
	}

	return Result{Label: textLabel(raw)}
}

// addressLabel keeps the street-level and locality components of a full
// geocoded address: "123 Main St, Flora, IL, USA" -> "123 Main St, Flora".
func addressLabel(addr string) string {
	parts := strings.Split(addr, ",")
	if len(parts) < 2 {
		return strings.TrimSpace(addr)
	}
	return strings.TrimSpace(parts[0]) + ", " + strings.TrimSpace(parts[1])
}

// textLabel strips URL substrings and trims what is left.
func textLabel(raw string) string {
	clean := strings.TrimSpace(urlPattern.ReplaceAllString(raw, ""))
	if clean == "" {
		return Placeholder
	}
	return clean
}
