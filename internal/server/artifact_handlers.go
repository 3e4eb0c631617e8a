package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/forecastbench/forecastbench/internal/domain"
	"github.com/forecastbench/forecastbench/internal/objstore"
)

// ArtifactHandlers serves published benchmark artifacts straight from
// the object store. The store is the single source of truth; nothing
// here is cached or recomputed.
type ArtifactHandlers struct {
	store objstore.Store
	log   zerolog.Logger
}

// NewArtifactHandlers creates the artifact serving handlers.
func NewArtifactHandlers(store objstore.Store, log zerolog.Logger) *ArtifactHandlers {
	return &ArtifactHandlers{
		store: store,
		log:   log.With().Str("component", "artifact_handlers").Logger(),
	}
}

// serveObject streams one object with the given content type.
func (h *ArtifactHandlers) serveObject(w http.ResponseWriter, r *http.Request, key, contentType string) {
	data, err := h.store.Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, objstore.ErrNotFound) {
			writeError(w, http.StatusNotFound, h.log, fmt.Errorf("no such artifact: %s", key))
			return
		}
		writeError(w, http.StatusInternalServerError, h.log, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	if _, err := w.Write(data); err != nil {
		h.log.Error().Err(err).Str("key", key).Msg("Failed to write artifact response")
	}
}

// variantParam validates the leaderboard variant path segment.
func variantParam(r *http.Request) (string, error) {
	variant := chi.URLParam(r, "variant")
	if variant != "baseline" && variant != "tournament" {
		return "", fmt.Errorf("unknown leaderboard variant %q", variant)
	}
	return variant, nil
}

// HandleLeaderboardJSON serves the leaderboard JSON feed.
func (h *ArtifactHandlers) HandleLeaderboardJSON(w http.ResponseWriter, r *http.Request) {
	variant, err := variantParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, h.log, err)
		return
	}
	h.serveObject(w, r, objstore.LeaderboardJSKey(variant), "application/json")
}

// HandleLeaderboardCSV serves the leaderboard CSV rendition.
func (h *ArtifactHandlers) HandleLeaderboardCSV(w http.ResponseWriter, r *http.Request) {
	variant, err := variantParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, h.log, err)
		return
	}
	h.serveObject(w, r, objstore.LeaderboardCSVKey(variant), "text/csv")
}

// HandleSOTAGraph serves the SOTA trajectory CSV.
func (h *ArtifactHandlers) HandleSOTAGraph(w http.ResponseWriter, r *http.Request) {
	variant, err := variantParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, h.log, err)
		return
	}
	h.serveObject(w, r, objstore.SOTAGraphKey(variant), "text/csv")
}

// HandleLatestQuestionSet serves the newest curated LLM question set.
func (h *ArtifactHandlers) HandleLatestQuestionSet(w http.ResponseWriter, r *http.Request) {
	h.serveObject(w, r, objstore.LatestLLMKey, "application/json")
}

// HandleQuestionSet serves a curated question set by due date and kind.
func (h *ArtifactHandlers) HandleQuestionSet(w http.ResponseWriter, r *http.Request) {
	date, err := domain.ParseDay(chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, h.log, err)
		return
	}
	kind := chi.URLParam(r, "kind")
	if kind != "llm" && kind != "human" {
		writeError(w, http.StatusBadRequest, h.log, fmt.Errorf("unknown question set kind %q", kind))
		return
	}
	h.serveObject(w, r, objstore.QuestionSetKey(date, kind), "application/json")
}

// HandleResolutionSet serves the published ground-truth table for a
// forecast due date.
func (h *ArtifactHandlers) HandleResolutionSet(w http.ResponseWriter, r *http.Request) {
	date, err := domain.ParseDay(chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, h.log, err)
		return
	}
	h.serveObject(w, r, objstore.ResolutionSetKey(date), "application/json")
}
