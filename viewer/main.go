// Command viewer serves the parquet session archive over HTTP.
package main

import (
	"errors"
	"flag"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/devnull/blitzbot/logging"
	"github.com/rs/zerolog/log"
)

type server struct {
	cache *DBCache
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/sessions", s.handleSessions)
	mux.HandleFunc("/api/sessions/{id}", s.handleSession)
	return mux
}

func (s *server) handleSessions(w http.ResponseWriter, r *http.Request) {
	withCORS(w, r)
	if r.Method == http.MethodOptions {
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	db, err := s.cache.Get()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	limit := parseIntQuery(r, "limit", 200)
	offset := parseIntQuery(r, "offset", 0)
	total, err := querySessionsTotal(r.Context(), db)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	sessions, err := querySessions(r.Context(), db, limit, offset)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, SessionsResponse{Total: total, Sessions: sessions})
}

func (s *server) handleSession(w http.ResponseWriter, r *http.Request) {
	withCORS(w, r)
	if r.Method == http.MethodOptions {
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		http.Error(w, "missing session id", http.StatusBadRequest)
		return
	}
	db, err := s.cache.Get()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	summary, err := querySession(r.Context(), db, id)
	if errors.Is(err, ErrNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	ticks, err := queryTicks(r.Context(), db, id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, SessionResponse{Summary: summary, Ticks: ticks})
}

func main() {
	fs := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	listen := fs.String("listen", "127.0.0.1:8080", "HTTP listen address")
	dataDirs := fs.String("data-dirs", filepath.Join("archive"), "comma-separated directories of archive parquet files")
	refresh := fs.Duration("refresh", 30*time.Second, "how often new archive files are picked up")
	logLevel := fs.String("log-level", "info", "log level")
	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}
	if _, err := logging.Setup(os.Stderr, *logLevel, logging.Console); err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(2)
	}

	roots := parseDataRoots(*dataDirs)
	log.Info().Strs("roots", roots).Msg("viewer data roots")

	cache := NewDBCache(roots, *refresh)
	defer cache.Close()

	srv := &http.Server{
		Addr:              *listen,
		Handler:           (&server{cache: cache}).routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Info().Str("addr", *listen).Msg("viewer listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("viewer stopped")
	}
}
