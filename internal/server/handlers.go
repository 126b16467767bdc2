package server

import (
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

const (
	feedExt         = ".rss"
	feedContentType = "application/rss+xml; charset=utf-8"
)

// Handler holds the HTTP handlers for the feed server.
type Handler struct {
	dir     string
	version string
	logger  zerolog.Logger
}

// NewHandler creates handlers that read feeds from dir.
func NewHandler(dir, version string, logger zerolog.Logger) *Handler {
	return &Handler{dir: dir, version: version, logger: logger}
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// FeedInfo describes one feed file in the GET /feeds listing.
type FeedInfo struct {
	Year     string    `json:"year"`
	URL      string    `json:"url"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

// ErrorResponse wraps every JSON error body.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail is a machine-readable code and a message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Health reports that the server is up and which version it runs.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Version: h.version})
}

// ListFeeds lists the year feeds in the output directory, oldest year first.
func (h *Handler) ListFeeds(w http.ResponseWriter, r *http.Request) {
	entries, err := os.ReadDir(h.dir)
	if err != nil {
		h.logger.Error().Err(err).Str("dir", h.dir).Msg("cannot read feed directory")
		writeError(w, http.StatusInternalServerError, "INTERNAL", "cannot read feed directory")
		return
	}

	feeds := make([]FeedInfo, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, feedExt) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		year := strings.TrimSuffix(name, feedExt)
		feeds = append(feeds, FeedInfo{
			Year:     year,
			URL:      "/feeds/" + name,
			Size:     info.Size(),
			Modified: info.ModTime().UTC(),
		})
	}
	slices.SortFunc(feeds, func(a, b FeedInfo) int { return strings.Compare(a.Year, b.Year) })

	writeJSON(w, http.StatusOK, feeds)
}

// GetFeed serves one year's feed. Range and conditional requests are
// handled by http.ServeContent.
func (h *Handler) GetFeed(w http.ResponseWriter, r *http.Request) {
	year := chi.URLParam(r, "year")
	path := filepath.Join(h.dir, year+feedExt)

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "no feed for year "+year)
			return
		}
		h.logger.Error().Err(err).Str("path", path).Msg("cannot open feed")
		writeError(w, http.StatusInternalServerError, "INTERNAL", "cannot open feed")
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL", "cannot stat feed")
		return
	}

	w.Header().Set("Content-Type", feedContentType)
	http.ServeContent(w, r, year+feedExt, info.ModTime(), f)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}
