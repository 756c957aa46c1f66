package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/pgvector/pgvector-go"

	"github.com/sidewayz8solutions/sidewayz-legalreviewiq/pkg/models"
)

const maxClauseResults = 50

// ClauseSearchRequest is the body of POST /clauses/search
type ClauseSearchRequest struct {
	Text      string  `json:"text"`
	Limit     int     `json:"limit"`
	Threshold float64 `json:"threshold"`
}

// handleSearchClauses finds the caller's stored clauses closest to the given text
func (s *Server) handleSearchClauses(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	if s.embedder == nil || s.stores.Sections == nil {
		respondError(w, http.StatusServiceUnavailable, "clause search is not configured")
		return
	}

	var req ClauseSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Text = strings.TrimSpace(req.Text)
	if req.Text == "" {
		respondError(w, http.StatusBadRequest, "text is required")
		return
	}
	if req.Threshold < 0 || req.Threshold > 1 {
		respondError(w, http.StatusBadRequest, "threshold must be between 0 and 1")
		return
	}
	req.Limit = min(max(req.Limit, 0), maxClauseResults)

	embedding, err := s.embedder.EmbedText(r.Context(), req.Text)
	if err != nil {
		s.logger.Error("embed clause query", "err", err)
		respondError(w, http.StatusBadGateway, "failed to embed query")
		return
	}

	matches, err := s.stores.Sections.FindSimilar(r.Context(), userID, pgvector.NewVector(embedding), req.Limit, req.Threshold)
	if err != nil {
		s.logger.Error("find similar clauses", "err", err)
		respondError(w, http.StatusInternalServerError, "failed to search clauses")
		return
	}

	response := make([]models.ClauseMatch, 0, len(matches))
	for _, m := range matches {
		response = append(response, models.ClauseMatch{
			ContractID:  m.Section.ContractID.String(),
			FileName:    m.FileName,
			SectionType: m.Section.SectionType,
			Position:    m.Section.Position,
			Text:        m.Section.Text,
			Similarity:  m.Similarity,
		})
	}

	respondJSON(w, http.StatusOK, response)
}
