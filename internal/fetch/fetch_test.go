package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFetchOneCachesAndRevalidates(t *testing.T) {
	const etag = `"v1"`
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", etag)
		_, _ = w.Write([]byte("BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n"))
	}))
	defer srv.Close()

	f := New(t.TempDir())
	src := Source{ID: "town", URL: srv.URL}

	res, err := f.FetchOne(context.Background(), src)
	if err != nil {
		t.Fatalf("first FetchOne() error = %v", err)
	}
	if res.FromCache {
		t.Error("first fetch reported FromCache")
	}
	if len(res.Body) == 0 {
		t.Fatal("first fetch returned empty body")
	}

	res2, err := f.FetchOne(context.Background(), src)
	if err != nil {
		t.Fatalf("second FetchOne() error = %v", err)
	}
	if !res2.FromCache {
		t.Error("second fetch should have used the cache on 304")
	}
	if string(res2.Body) != string(res.Body) {
		t.Error("cached body differs from original")
	}
	if hits != 2 {
		t.Errorf("server saw %d requests, want 2", hits)
	}
}

func TestFetchOneFallsBackToCacheOnNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("payload"))
	}))

	f := New(t.TempDir())
	src := Source{ID: "town", URL: srv.URL}

	if _, err := f.FetchOne(context.Background(), src); err != nil {
		t.Fatalf("warm-up FetchOne() error = %v", err)
	}

	srv.Close() // origin goes away

	res, err := f.FetchOne(context.Background(), src)
	if err != nil {
		t.Fatalf("FetchOne() after origin loss error = %v", err)
	}
	if !res.FromCache {
		t.Error("expected cached fallback")
	}
	if string(res.Body) != "payload" {
		t.Errorf("Body = %q, want cached payload", res.Body)
	}
}

func TestFetchOneServerErrorWithoutCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := New(t.TempDir())
	if _, err := f.FetchOne(context.Background(), Source{ID: "town", URL: srv.URL}); err == nil {
		t.Error("FetchOne() on 500 with empty cache: want error")
	}
}

func TestFetchOneEmptyURL(t *testing.T) {
	f := New(t.TempDir())
	if _, err := f.FetchOne(context.Background(), Source{ID: "x"}); err == nil {
		t.Error("FetchOne() with empty URL: want error")
	}
}

func TestRedactURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://example.com/spreadsheets/d/KEY/export?format=csv", "https://example.com/...(redacted)"},
		{"https://example.com", "https://example.com/...(redacted)"},
		{"garbage", "feed://...(redacted)"},
	}
	for _, tt := range tests {
		if got := RedactURL(tt.in); got != tt.want {
			t.Errorf("RedactURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
