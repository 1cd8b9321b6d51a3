package handlers

import (
	"net/http"
	"strings"

	"animerec/internal/models"
	"animerec/internal/validation"

	"github.com/goccy/go-json"
)

const maxJSONBytes = 16 * 1024

type recommendationsResponse struct {
	Query   string               `json:"query"`
	Results []models.MediaRecord `json:"results"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) apiHome(w http.ResponseWriter, r *http.Request) {
	trending, popular := h.home.Load(r.Context())
	h.writeJSON(w, http.StatusOK, models.HomeLists{
		Trending: trending,
		Popular:  popular,
	})
}

func (h *Handler) apiRecommendations(w http.ResponseWriter, r *http.Request) {
	var req models.SearchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBytes)).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "request body must be JSON like {\"query\": \"...\"}"})
		return
	}

	req.Query = strings.TrimSpace(req.Query)
	if err := validation.Struct(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	h.writeJSON(w, http.StatusOK, recommendationsResponse{
		Query:   req.Query,
		Results: h.searcher.Run(r.Context(), req.Query),
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		h.logger.WithError(err).Error("Failed to marshal response")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}
