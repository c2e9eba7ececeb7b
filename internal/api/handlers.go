package api

import (
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/starford/pagefeed/internal/apperr"
	"github.com/starford/pagefeed/internal/checksum"
	"github.com/starford/pagefeed/internal/feed"
	"github.com/starford/pagefeed/internal/ledger"
	"github.com/starford/pagefeed/internal/storage"
)

// Handler holds API route handlers.
type Handler struct {
	pub      Publisher
	history  History
	store    storage.Provider
	feedPath string
	format   feed.Format
}

// NewHandler creates a new Handler. history may be nil when no ledger is
// configured. store and feedPath locate the generated feed file.
func NewHandler(pub Publisher, history History, store storage.Provider, feedPath string, format feed.Format) *Handler {
	return &Handler{pub: pub, history: history, store: store, feedPath: feedPath, format: format}
}

// Feed handles GET /feed.xml. It serves the last written document and
// honours If-None-Match.
//
//	@Summary		Get the generated feed
//	@Tags			feed
//	@Produce		xml
//	@Success		200	"Feed document"
//	@Success		304	"Not modified"
//	@Failure		404	{object}	ErrorResponse
//	@Router			/feed.xml [get]
func (h *Handler) Feed(w http.ResponseWriter, r *http.Request) {
	data, err := h.store.Read(h.feedPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			writeJSON(w, http.StatusNotFound, errorBody("feed not generated yet"))
			return
		}
		slog.Error("read feed failed", slog.String("path", h.feedPath), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}

	etag := checksum.ETag(data)
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "no-cache")
	if match := r.Header.Get("If-None-Match"); match != "" && etagMatches(match, etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", h.format.ContentType())
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func etagMatches(header, etag string) bool {
	for _, candidate := range strings.Split(header, ",") {
		c := strings.TrimSpace(candidate)
		c = strings.TrimPrefix(c, "W/")
		if c == "*" || c == etag {
			return true
		}
	}
	return false
}

// ListEntries handles GET /api/entries.
//
//	@Summary		List entries the next run would publish
//	@Tags			entries
//	@Produce		json
//	@Success		200	{object}	EntryListResponse
//	@Failure		502	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/entries [get]
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := h.pub.Eligible(r.Context())
	if err != nil {
		slog.Error("list entries failed", slog.String("error", err.Error()))
		writeJSON(w, statusFor(err), errorBody(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, EntryListResponse{Entries: entries, Total: len(entries)})
}

// Preview handles GET /api/preview.
//
//	@Summary		Build the next feed document without publishing
//	@Tags			feed
//	@Produce		json
//	@Success		200	{object}	models.FeedDocument
//	@Failure		502	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/preview [get]
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	res, err := h.pub.Preview(r.Context())
	if err != nil {
		slog.Error("preview failed", slog.String("error", err.Error()))
		writeJSON(w, statusFor(err), errorBody(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, res.Document)
}

// Publish handles POST /api/publish.
//
//	@Summary		Run the publish pipeline now
//	@Tags			feed
//	@Produce		json
//	@Success		200	{object}	PublishResponse
//	@Failure		409	{object}	ErrorResponse
//	@Failure		502	{object}	PublishErrorResponse
//	@Security		BearerAuth
//	@Router			/publish [post]
func (h *Handler) Publish(w http.ResponseWriter, r *http.Request) {
	res, err := h.pub.Run(r.Context())
	if err != nil {
		resp := PublishErrorResponse{Error: err.Error()}
		var pce *apperr.PartialCommitError
		if errors.As(err, &pce) {
			resp.Committed = pce.Committed
		}
		if !errors.Is(err, apperr.ErrRunInProgress) {
			slog.Error("publish failed", slog.String("error", err.Error()))
		}
		writeJSON(w, statusFor(err), resp)
		return
	}
	committed := res.Committed
	if committed == nil {
		committed = []string{}
	}
	writeJSON(w, http.StatusOK, PublishResponse{
		RunID:     res.RunID,
		Items:     len(res.Document.Items),
		Committed: committed,
		Skipped:   res.Skipped,
	})
}

// ListRuns handles GET /api/runs.
//
//	@Summary		List recent publish runs
//	@Tags			history
//	@Produce		json
//	@Param			limit	query		int	false	"Max results"
//	@Success		200		{object}	RunListResponse
//	@Failure		501		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/runs [get]
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeJSON(w, http.StatusNotImplemented, errorBody("ledger disabled"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := h.history.ListRuns(r.Context(), limit)
	if err != nil {
		slog.Error("list runs failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if runs == nil {
		runs = []ledger.Run{}
	}
	writeJSON(w, http.StatusOK, RunListResponse{Runs: runs})
}

// ListPublications handles GET /api/publications.
//
//	@Summary		List published entries
//	@Tags			history
//	@Produce		json
//	@Param			limit	query		int	false	"Max results"
//	@Success		200		{object}	PublicationListResponse
//	@Failure		501		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/publications [get]
func (h *Handler) ListPublications(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeJSON(w, http.StatusNotImplemented, errorBody("ledger disabled"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	pubs, err := h.history.ListPublications(r.Context(), limit)
	if err != nil {
		slog.Error("list publications failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if pubs == nil {
		pubs = []ledger.Publication{}
	}
	writeJSON(w, http.StatusOK, PublicationListResponse{Publications: pubs})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

func errorBody(msg string) ErrorResponse {
	return ErrorResponse{Error: msg}
}

// statusFor maps pipeline errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, apperr.ErrRunInProgress):
		return http.StatusConflict
	case errors.Is(err, apperr.ErrSourceUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
