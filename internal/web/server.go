// Package web provides an HTTP status server for the cloudcover-switch daemon.
package web

import (
	"context"
	"net"
	"net/http"
	"strconv"

	"github.com/sweeney/cloudcover-switch/internal/status"
	"github.com/sweeney/cloudcover-switch/internal/store"
)

// DefaultHistory is the number of cycles shown when no limit is given.
const DefaultHistory = 24

// CycleLister returns recent cycle records, newest first.
// store.Store satisfies it.
type CycleLister interface {
	RecentCycles(ctx context.Context, n int) ([]store.CycleRecord, error)
}

// Server serves the status page over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	cycles     CycleLister
}

// New creates a Server that reads state from the given tracker. cycles may
// be nil, in which case /cycles.json returns an empty list.
func New(addr string, tracker *status.Tracker, cycles CycleLister) *Server {
	s := &Server{tracker: tracker, cycles: cycles}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/index.html", s.handleIndex)
	mux.HandleFunc("/index.json", s.handleJSON)
	mux.HandleFunc("/cycles.json", s.handleCycles)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	return s
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, snap, s.recent(r.Context(), 8))
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

func (s *Server) handleCycles(w http.ResponseWriter, r *http.Request) {
	n := DefaultHistory
	if v := r.URL.Query().Get("n"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			http.Error(w, "n must be a positive integer", http.StatusBadRequest)
			return
		}
		n = parsed
	}

	var recs []store.CycleRecord
	if s.cycles != nil {
		var err error
		recs, err = s.cycles.RecentCycles(r.Context(), n)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(formatCycles(recs))
}

// recent is best effort: the HTML page still renders without history.
func (s *Server) recent(ctx context.Context, n int) []store.CycleRecord {
	if s.cycles == nil {
		return nil
	}
	recs, err := s.cycles.RecentCycles(ctx, n)
	if err != nil {
		return nil
	}
	return recs
}
