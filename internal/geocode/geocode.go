// Package geocode provides the reverse-geocoding capability used to turn
// coordinate pairs into street-level addresses.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Geocoder resolves a latitude/longitude pair into an address string.
// Implementations must honor the context deadline; every caller treats a
// failure as recoverable.
type Geocoder interface {
	Reverse(ctx context.Context, lat, lon string) (string, error)
}

// Nominatim is a Geocoder backed by a Nominatim-compatible HTTP endpoint.
type Nominatim struct {
	baseURL   string
	userAgent string
	client    *http.Client
}

// NewNominatim creates a client for the given endpoint. The user agent is
// mandatory under the public Nominatim usage policy. timeout bounds a
// single lookup.
func NewNominatim(baseURL, userAgent string, timeout time.Duration) *Nominatim {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Nominatim{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		client:    &http.Client{Timeout: timeout},
	}
}

// reverseResponse is the subset of the jsonv2 reverse payload we read.
type reverseResponse struct {
	DisplayName string `json:"display_name"`
	Error       string `json:"error"`
}

// Reverse looks up the address for (lat, lon). A service-side error, an
// unexpected status, or an empty result all return an error; the caller
// decides whether to retry.
func (n *Nominatim) Reverse(ctx context.Context, lat, lon string) (string, error) {
	q := url.Values{}
	q.Set("format", "jsonv2")
	q.Set("lat", lat)
	q.Set("lon", lon)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+"/reverse?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", n.userAgent)

	resp, err := n.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("geocode: unexpected status %d", resp.StatusCode)
	}

	var body reverseResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	if body.Error != "" {
		return "", errors.New("geocode: " + body.Error)
	}
	if body.DisplayName == "" {
		return "", errors.New("geocode: empty result")
	}
	return body.DisplayName, nil
}
