package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dannyrandall/conferences/internal/conference"
	"github.com/dannyrandall/conferences/internal/logging"
	"github.com/dannyrandall/conferences/internal/store"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// Conference serves conferences stored in Folder of Backend. An empty
// Folder means the store root.
type Conference struct {
	Backend store.Backend
	Folder  string
}

type conferenceJSON struct {
	Key   string `json:"key"`
	Name  string `json:"name"`
	Year  int    `json:"year"`
	Title string `json:"title"`
}

func toJSON(key string, c conference.Conference) conferenceJSON {
	return conferenceJSON{Key: key, Name: c.Name, Year: c.Year, Title: c.Title()}
}

func (h *Conference) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := logging.ForSpan(trace.SpanFromContext(r.Context()))
	log.Info().Str("method", r.Method).Str("url", r.URL.String()).Msg("Handling request")

	switch r.Method {
	case http.MethodGet:
		h.getConference(log, w, r)
	case http.MethodPost:
		h.createConference(log, w, r)
	case http.MethodPut:
		h.updateConference(log, w, r)
	default:
		w.Header().Set("Allow", "GET, POST, PUT")
		httpError(w, http.StatusMethodNotAllowed, log, "method %s not allowed", r.Method)
	}
}

func (h *Conference) getConference(log zerolog.Logger, w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	key := r.URL.Query().Get("key")
	if key == "" {
		httpError(w, http.StatusBadRequest, log, "missing key")
		return
	}
	log.Info().Str("key", key).Msg("Getting conference")

	tx := store.Open(h.Backend)
	defer tx.Abort()

	c, err := tx.Folder(h.Folder).Get(ctx, key)
	switch {
	case errors.Is(err, store.ErrNotFound):
		httpError(w, http.StatusNotFound, log, "no conference found with key %q", key)
		return
	case errors.Is(err, store.ErrInvalidKey):
		httpError(w, http.StatusBadRequest, log, "%s", err)
		return
	case err != nil:
		httpError(w, http.StatusInternalServerError, log, "get conference: %s", err)
		return
	}

	log.Info().Str("key", key).Stringer("conference", c).Msg("Got conference")
	writeJSON(log, w, http.StatusOK, toJSON(key, c))
}

func (h *Conference) createConference(log zerolog.Logger, w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var req conferenceJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, log, "decode conference: %s", err)
		return
	}

	key := req.Key
	if key == "" {
		key = conference.NewKey()
	}
	c := conference.New(req.Name, req.Year)
	log.Info().Str("key", key).Stringer("conference", c).Msg("Creating conference")

	tx := store.Open(h.Backend)
	defer tx.Abort()

	if err := tx.Folder(h.Folder).Set(key, c); err != nil {
		httpError(w, http.StatusBadRequest, log, "set conference: %s", err)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		httpError(w, http.StatusInternalServerError, log, "commit: %s", err)
		return
	}

	log.Info().Str("key", key).Msg("Created conference")
	writeJSON(log, w, http.StatusCreated, toJSON(key, c))
}

func (h *Conference) updateConference(log zerolog.Logger, w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	key := r.URL.Query().Get("key")
	if key == "" {
		httpError(w, http.StatusBadRequest, log, "missing key")
		return
	}

	var req struct {
		Year *int `json:"year"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, log, "decode update: %s", err)
		return
	}
	if req.Year == nil {
		httpError(w, http.StatusBadRequest, log, "missing year")
		return
	}

	tx := store.Open(h.Backend)
	defer tx.Abort()

	folder := tx.Folder(h.Folder)
	c, err := folder.Get(ctx, key)
	switch {
	case errors.Is(err, store.ErrNotFound):
		httpError(w, http.StatusNotFound, log, "no conference found with key %q", key)
		return
	case errors.Is(err, store.ErrInvalidKey):
		httpError(w, http.StatusBadRequest, log, "%s", err)
		return
	case err != nil:
		httpError(w, http.StatusInternalServerError, log, "get conference: %s", err)
		return
	}

	c.SetYear(*req.Year)
	if err := folder.Set(key, c); err != nil {
		httpError(w, http.StatusInternalServerError, log, "set conference: %s", err)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		httpError(w, http.StatusInternalServerError, log, "commit: %s", err)
		return
	}

	log.Info().Str("key", key).Int("year", c.Year).Msg("Updated conference")
	writeJSON(log, w, http.StatusOK, toJSON(key, c))
}

func writeJSON(log zerolog.Logger, w http.ResponseWriter, code int, v conferenceJSON) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Str("key", v.Key).Msg("Unable to encode conference")
	}
}

func httpError(w http.ResponseWriter, code int, log zerolog.Logger, format string, a ...any) {
	str := fmt.Sprintf(format, a...)
	http.Error(w, str, code)
	log.Warn().Int("status", code).Msg("Returning error: " + str)
}
