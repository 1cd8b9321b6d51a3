package handlers

import (
	"bytes"
	"net/http"
	"strings"

	"animerec/internal/models"
)

// maxFormBytes bounds the search form body.
const maxFormBytes = 16 * 1024

type pageData struct {
	Recommendations []models.MediaRecord
	Trending        []models.MediaRecord
	Popular         []models.MediaRecord
	LastInput       string
	Searched        bool
}

func (h *Handler) index(w http.ResponseWriter, r *http.Request) {
	trending, popular := h.home.Load(r.Context())
	h.render(w, pageData{
		Trending: trending,
		Popular:  popular,
	})
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		h.logger.WithError(err).Warn("Failed to parse search form")
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	userInput := r.PostForm.Get("user_input")

	var recommendations []models.MediaRecord
	if strings.TrimSpace(userInput) != "" {
		recommendations = h.searcher.Run(r.Context(), userInput)
	}

	h.render(w, pageData{
		Recommendations: recommendations,
		LastInput:       userInput,
		Searched:        true,
	})
}

func (h *Handler) render(w http.ResponseWriter, data pageData) {
	var buf bytes.Buffer
	if err := h.page.Execute(&buf, data); err != nil {
		h.logger.WithError(err).Error("Failed to render page")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}
