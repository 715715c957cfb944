package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNominatimReverse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/reverse" {
			t.Errorf("path = %q, want /reverse", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("lat") != "38.66" || q.Get("lon") != "-88.48" {
			t.Errorf("query = %v", q)
		}
		if q.Get("format") != "jsonv2" {
			t.Errorf("format = %q, want jsonv2", q.Get("format"))
		}
		if ua := r.Header.Get("User-Agent"); ua != "claycal-test/1.0" {
			t.Errorf("User-Agent = %q", ua)
		}
		_, _ = w.Write([]byte(`{"display_name": "123 Main St, Flora, IL, USA"}`))
	}))
	defer srv.Close()

	n := NewNominatim(srv.URL, "claycal-test/1.0", 5*time.Second)
	got, err := n.Reverse(context.Background(), "38.66", "-88.48")
	if err != nil {
		t.Fatalf("Reverse() error = %v", err)
	}
	if got != "123 Main St, Flora, IL, USA" {
		t.Errorf("Reverse() = %q", got)
	}
}

func TestNominatimReverseErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "service error payload",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"error": "Unable to geocode"}`))
			},
		},
		{
			name: "empty result",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{}`))
			},
		},
		{
			name: "non-OK status",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "slow down", http.StatusTooManyRequests)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			n := NewNominatim(srv.URL, "claycal-test/1.0", 5*time.Second)
			if _, err := n.Reverse(context.Background(), "38.66", "-88.48"); err == nil {
				t.Error("Reverse() = nil error, want failure")
			}
		})
	}
}

func TestNominatimTimeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	n := NewNominatim(srv.URL, "claycal-test/1.0", 50*time.Millisecond)
	if _, err := n.Reverse(context.Background(), "38.66", "-88.48"); err == nil {
		t.Error("Reverse() = nil error, want timeout")
	}
}
