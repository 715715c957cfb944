// Package web exposes a small status server for daemon mode: the updated
// page itself, a JSON view of the last computed groupings, and a health
// endpoint.
package web

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"claycal/internal/config"
	appLog "claycal/internal/log"
	"claycal/internal/model"
)

// Server serves the portal page and the last run's groupings. The refresh
// loop publishes each run's result with SetGroups; handlers never trigger
// a pipeline run themselves.
type Server struct {
	cfg *config.Config
	mux *http.ServeMux

	mu   sync.RWMutex
	last *snapshot
}

type snapshot struct {
	groups    model.Groups
	updatedAt time.Time
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config) *Server {
	s := &Server{
		cfg: cfg,
		mux: http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// SetGroups publishes the result of a completed pipeline run.
func (s *Server) SetGroups(g model.Groups) {
	s.mu.Lock()
	s.last = &snapshot{groups: g, updatedAt: time.Now()}
	s.mu.Unlock()
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// An empty username or password counts as disabled.
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// /health stays reachable without credentials.
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="claycal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/groups", s.handleGroups)
	s.mux.HandleFunc("/", s.handlePage)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handlePage serves the spliced portal page straight from disk, so the
// server always shows exactly what the last successful write produced.
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, s.cfg.Output.Page)
}

// groupsResponse is the JSON response shape for /api/groups.
type groupsResponse struct {
	AllDay    []entryDTO `json:"all_day"`
	Timed     []entryDTO `json:"timed"`
	UpdatedAt time.Time  `json:"updated_at"`
	Timezone  string     `json:"timezone"`
}

// entryDTO is a JSON-friendly view of one grouping entry. Event fields
// and alert fields are mutually exclusive; Kind says which apply.
type entryDTO struct {
	Kind    string    `json:"kind"` // "event" or "alert"
	SortKey time.Time `json:"sort_key"`

	Title     string `json:"title,omitempty"`
	Location  string `json:"location,omitempty"`
	Category  string `json:"category,omitempty"`
	Date      string `json:"date,omitempty"`
	TimeLabel string `json:"time_label,omitempty"`

	Hazard     string     `json:"hazard,omitempty"`
	Town       string     `json:"town,omitempty"`
	MapLink    string     `json:"map_link,omitempty"`
	ReportedAt *time.Time `json:"reported_at,omitempty"`
}

func (s *Server) handleGroups(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	last := s.last
	s.mu.RUnlock()

	if last == nil {
		writeError(w, http.StatusServiceUnavailable, "no pipeline run has completed yet")
		return
	}

	resp := groupsResponse{
		AllDay:    toDTOs(last.groups.AllDay),
		Timed:     toDTOs(last.groups.Timed),
		UpdatedAt: last.updatedAt,
		Timezone:  s.cfg.Timezone,
	}
	writeJSON(w, http.StatusOK, resp)
}

func toDTOs(entries []model.Entry) []entryDTO {
	out := make([]entryDTO, 0, len(entries))
	for _, e := range entries {
		dto := entryDTO{SortKey: e.SortKey}
		switch {
		case e.Event != nil:
			dto.Kind = "event"
			dto.Title = e.Event.Title
			dto.Location = e.Event.Location
			dto.Category = string(e.Event.Category)
			dto.Date = e.Event.DisplayDate.Midnight(time.UTC).Format("2006-01-02")
			dto.TimeLabel = e.Event.TimeLabel
		case e.Alert != nil:
			dto.Kind = "alert"
			dto.Hazard = e.Alert.Hazard
			dto.Town = e.Alert.Town
			dto.Location = e.Alert.Location
			dto.MapLink = e.Alert.MapLink
			t := e.Alert.ReportedAt
			dto.ReportedAt = &t
		}
		out = append(out, dto)
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
