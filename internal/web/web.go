package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"famcal/internal/config"
	"famcal/internal/ics"
	appLog "famcal/internal/log"
	"famcal/internal/model"
	"famcal/internal/recur"
)

// snapshotTTL is how long a prewarmed timeline stays fresh before a
// request triggers a recompute. The cron prewarm usually refreshes well
// inside this window.
const snapshotTTL = 5 * time.Minute

// Server exposes the aggregation core over HTTP.
type Server struct {
	cfg     *config.Config
	fetcher *ics.Fetcher
	merger  *ics.Merger

	// Snapshot of the last unfiltered merge across the configured feeds.
	// Requests filter this snapshot; the cron prewarm refreshes it.
	snapMu   sync.RWMutex
	snapshot *timelineSnapshot
}

type timelineSnapshot struct {
	entries   []model.TimelineEntry
	errs      []ics.FeedError
	refDate   model.Date
	updatedAt time.Time
}

// NewServer wires a Server from configuration.
func NewServer(cfg *config.Config) *Server {
	fetcher := ics.NewFetcher(time.Duration(cfg.FetchTimeoutSeconds) * time.Second)
	return &Server{
		cfg:     cfg,
		fetcher: fetcher,
		merger:  ics.NewMerger(fetcher, cfg.MaxConcurrentFetches),
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	if s.basicAuthEnabled() {
		r.Use(s.basicAuth)
	}

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Post("/fetch-name", s.handleFetchName)
		r.Post("/fetch-events", s.handleFetchEvents)
		r.Post("/recurrence/preview", s.handleRecurrencePreview)
		r.Get("/timeline", s.handleTimeline)
	})
	r.Get("/export.ics", s.handleExport)

	return r
}

// RefreshTimeline recomputes the merged snapshot across the configured
// feeds. Called by the cron prewarm in cmd/famcald and on demand when a
// request finds the snapshot stale.
func (s *Server) RefreshTimeline(ctx context.Context) {
	s.refresh(ctx, model.DateOf(time.Now()))
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		appLog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (s *Server) basicAuthEnabled() bool {
	ba := s.cfg.BasicAuth
	return ba != nil && ba.Username != "" && ba.Password != ""
}

// basicAuth guards every endpoint except /health.
func (s *Server) basicAuth(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}
		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="famcal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// fetchNameRequest / fetchNameResponse are the boundary contract for
// POST /api/fetch-name.
type fetchNameRequest struct {
	URL string `json:"url"`
}

type fetchNameResponse struct {
	Success      bool   `json:"success"`
	CalendarName string `json:"calendarName,omitempty"`
}

// handleFetchName extracts the feed's display name best-effort. It never
// fails the caller: any validation, fetch or parse problem yields
// success=false with HTTP 200.
func (s *Server) handleFetchName(w http.ResponseWriter, r *http.Request) {
	var req fetchNameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusOK, fetchNameResponse{Success: false})
		return
	}

	raw, err := s.fetcher.Fetch(r.Context(), model.Feed{URL: req.URL, ID: req.URL})
	if err != nil {
		appLog.Debug("fetch-name failed", "url", req.URL)
		writeJSON(w, http.StatusOK, fetchNameResponse{Success: false})
		return
	}

	parsed, err := ics.Parse(raw)
	if err != nil {
		writeJSON(w, http.StatusOK, fetchNameResponse{Success: false})
		return
	}

	name := parsed.CalendarName
	if name == "" && len(parsed.Events) > 0 {
		// Best-effort fallback: feeds without X-WR-CALNAME still get a
		// usable label from their first event.
		name = parsed.Events[0].Title
	}

	writeJSON(w, http.StatusOK, fetchNameResponse{Success: true, CalendarName: name})
}

// fetchEventsRequest is the boundary contract for POST /api/fetch-events.
// ReferenceDate pins window computation for deterministic callers (and
// tests); empty means today.
type fetchEventsRequest struct {
	URL           string `json:"url"`
	DateFilter    string `json:"dateFilter,omitempty"`
	SearchTerm    string `json:"searchTerm,omitempty"`
	ReferenceDate string `json:"referenceDate,omitempty"`
}

type fetchEventsResponse struct {
	Success bool          `json:"success"`
	Events  []model.Event `json:"events"`
	Total   int           `json:"total"`
	Error   string        `json:"error,omitempty"`
}

func (s *Server) handleFetchEvents(w http.ResponseWriter, r *http.Request) {
	var req fetchEventsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFetchEventsError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !ics.ValidateURL(req.URL) {
		writeFetchEventsError(w, http.StatusBadRequest, "calendar URL is required and must use http, https or webcal")
		return
	}

	mode, err := ics.ParseFilterMode(req.DateFilter)
	if err != nil {
		writeFetchEventsError(w, http.StatusBadRequest, err.Error())
		return
	}

	ref, err := resolveReferenceDate(req.ReferenceDate)
	if err != nil {
		writeFetchEventsError(w, http.StatusBadRequest, err.Error())
		return
	}

	raw, err := s.fetcher.Fetch(r.Context(), model.Feed{URL: req.URL, ID: req.URL})
	if err != nil {
		appLog.Error("fetch-events fetch failed", err)
		writeFetchEventsError(w, http.StatusBadGateway, err.Error())
		return
	}

	parsed, err := ics.Parse(raw)
	if err != nil {
		writeFetchEventsError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	events := ics.Filter(parsed.Events, mode, ref)
	if req.SearchTerm != "" {
		events = searchEvents(events, req.SearchTerm)
	}
	ics.SortEvents(events)

	writeJSON(w, http.StatusOK, fetchEventsResponse{Success: true, Events: events, Total: len(events)})
}

func writeFetchEventsError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, fetchEventsResponse{Success: false, Events: []model.Event{}, Error: msg})
}

// recurrencePreviewRequest is the authoring-UI recurrence shape plus the
// anchor date and an optional horizon for never-ending rules.
type recurrencePreviewRequest struct {
	AnchorDate  string `json:"anchorDate"`
	HorizonDays int    `json:"horizonDays,omitempty"`
	recur.RuleInput
}

type recurrencePreviewResponse struct {
	Success bool         `json:"success"`
	Dates   []model.Date `json:"dates"`
	Total   int          `json:"total"`
	Error   string       `json:"error,omitempty"`
}

func (s *Server) handleRecurrencePreview(w http.ResponseWriter, r *http.Request) {
	var req recurrencePreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writePreviewError(w, "invalid request body")
		return
	}

	anchor, err := model.ParseDate(req.AnchorDate)
	if err != nil {
		writePreviewError(w, err.Error())
		return
	}

	rule, err := recur.ParseRule(anchor, req.RuleInput)
	if err != nil {
		writePreviewError(w, err.Error())
		return
	}

	// Rules with their own end policy expand in full; only never-ending
	// rules are bounded by the preview horizon.
	var rc recur.RangeCap
	if rule.End.Type == recur.EndNever {
		horizon := req.HorizonDays
		if horizon <= 0 {
			horizon = 365
		}
		rc.Until = anchor.AddDays(horizon)
	}
	dates, err := recur.Generate(anchor, rule, rc)
	if err != nil {
		writePreviewError(w, err.Error())
		return
	}
	if dates == nil {
		dates = []model.Date{}
	}

	writeJSON(w, http.StatusOK, recurrencePreviewResponse{Success: true, Dates: dates, Total: len(dates)})
}

func writePreviewError(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, recurrencePreviewResponse{Success: false, Dates: []model.Date{}, Error: msg})
}

type timelineResponse struct {
	Success bool                  `json:"success"`
	Events  []model.TimelineEntry `json:"events"`
	Errors  []feedErrorDTO        `json:"errors"`
	Total   int                   `json:"total"`
}

type feedErrorDTO struct {
	FeedID   string `json:"feedId"`
	FeedName string `json:"feedName"`
	Error    string `json:"error"`
}

// handleTimeline merges all configured feeds. The unfiltered merge is
// served from the prewarmed snapshot when fresh; the requested date
// filter is applied per request.
func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	filter := r.URL.Query().Get("filter")
	if filter == "" {
		filter = s.cfg.DefaultFilter
	}
	mode, err := ics.ParseFilterMode(filter)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ref, err := resolveReferenceDate(r.URL.Query().Get("referenceDate"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	snap := s.currentSnapshot(r.Context(), ref)
	entries := ics.FilterEntries(snap.entries, mode, ref)
	if entries == nil {
		entries = []model.TimelineEntry{}
	}

	errDTOs := make([]feedErrorDTO, 0, len(snap.errs))
	for _, fe := range snap.errs {
		errDTOs = append(errDTOs, feedErrorDTO{FeedID: fe.FeedID, FeedName: fe.FeedName, Error: fe.Err.Error()})
	}

	writeJSON(w, http.StatusOK, timelineResponse{
		Success: true,
		Events:  entries,
		Errors:  errDTOs,
		Total:   len(entries),
	})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	ref, err := resolveReferenceDate(r.URL.Query().Get("referenceDate"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	snap := s.currentSnapshot(r.Context(), ref)
	cal := ics.BuildCalendar("Family Calendar", snap.entries)

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="family.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(cal.Serialize()))
}

// currentSnapshot returns the cached unfiltered merge when it is fresh
// and was computed for the same reference date; otherwise it recomputes
// synchronously.
func (s *Server) currentSnapshot(ctx context.Context, ref model.Date) *timelineSnapshot {
	s.snapMu.RLock()
	snap := s.snapshot
	s.snapMu.RUnlock()
	if snap != nil && snap.refDate.Equal(ref) && time.Since(snap.updatedAt) < snapshotTTL {
		return snap
	}
	return s.refresh(ctx, ref)
}

func (s *Server) refresh(ctx context.Context, ref model.Date) *timelineSnapshot {
	feeds := s.cfg.FeedList()
	entries, errs := s.merger.MergeAll(ctx, feeds, ics.FilterAll, ref)
	snap := &timelineSnapshot{entries: entries, errs: errs, refDate: ref, updatedAt: time.Now()}

	s.snapMu.Lock()
	s.snapshot = snap
	s.snapMu.Unlock()

	appLog.Info("timeline refreshed",
		"feeds", len(feeds),
		"events", len(entries),
		"failed_feeds", len(errs),
		"reference_date", ref.String(),
	)
	return snap
}

// resolveReferenceDate parses an explicit reference date or defaults to
// today. Threading the date explicitly keeps every window computation
// deterministic for callers that need it.
func resolveReferenceDate(s string) (model.Date, error) {
	if s == "" {
		return model.DateOf(time.Now()), nil
	}
	return model.ParseDate(s)
}

func searchEvents(events []model.Event, term string) []model.Event {
	out := make([]model.Event, 0, len(events))
	for _, ev := range events {
		if containsFold(ev.Title, term) || containsFold(ev.Description, term) || containsFold(ev.Location, term) {
			out = append(out, ev)
		}
	}
	return out
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
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
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	writeJSON(w, status, errResp{Success: false, Error: msg})
}
