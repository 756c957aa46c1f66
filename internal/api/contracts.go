package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/sidewayz8solutions/sidewayz-legalreviewiq/internal/analyzer"
	"github.com/sidewayz8solutions/sidewayz-legalreviewiq/internal/auth"
	"github.com/sidewayz8solutions/sidewayz-legalreviewiq/internal/storage"
	"github.com/sidewayz8solutions/sidewayz-legalreviewiq/pkg/models"
)

// handleUploadContract stores a contract, analyzes it and meters the analysis
func (s *Server) handleUploadContract(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	up, err := readUpload(w, r, s.config.MaxUploadBytes)
	if err != nil {
		switch {
		case errors.Is(err, errUnsupportedFormat):
			respondError(w, http.StatusUnsupportedMediaType, err.Error())
		case isTooLarge(err):
			respondError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("file exceeds %d bytes", s.config.MaxUploadBytes))
		case errors.Is(err, errNoContent):
			respondError(w, http.StatusBadRequest, err.Error())
		default:
			respondError(w, http.StatusBadRequest, "invalid upload")
		}
		return
	}

	if len(strings.TrimSpace(up.Text)) < analyzer.MinTextLength {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("contract text must be at least %d characters", analyzer.MinTextLength))
		return
	}

	words := wordCount(up.Text)
	if words > s.config.MaxWords {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("contract exceeds %d words", s.config.MaxWords))
		return
	}

	ctx := r.Context()
	hash := contentHash(up.Text)

	// Quota check through usage record runs under the user's lock so parallel
	// uploads cannot overrun the free plan.
	unlock := s.uploads.lock(userID)
	defer unlock()

	existing, err := s.stores.Contracts.GetByHash(ctx, userID, hash)
	if err != nil {
		s.logger.Error("check duplicate contract", "err", err)
		respondError(w, http.StatusInternalServerError, "failed to check existing contracts")
		return
	}
	if existing != nil && existing.Status == storage.StatusCompleted {
		s.respondDuplicate(ctx, w, existing)
		return
	}

	usage, err := s.usageFor(ctx, userID)
	if err != nil {
		s.logger.Error("load usage", "err", err)
		respondError(w, http.StatusInternalServerError, "failed to check usage")
		return
	}
	if usage.Remaining != nil && *usage.Remaining <= 0 {
		respondError(w, http.StatusPaymentRequired, "monthly analysis limit reached; upgrade to premium for unlimited analyses")
		return
	}

	// A failed or abandoned earlier upload of the same text is analyzed again
	// in place; the content hash stays unique per user.
	contract := existing
	if contract != nil {
		s.logger.Info("retrying contract analysis", "contract", contract.ID, "status", contract.Status)
	} else {
		contract = &storage.Contract{
			UserID:      userID,
			FileName:    up.FileName,
			Content:     up.Text,
			ContentHash: hash,
			WordCount:   words,
		}
		if err := s.stores.Contracts.Create(ctx, contract); err != nil {
			if errors.Is(err, storage.ErrDuplicateContract) {
				s.respondStoredDuplicate(ctx, w, userID, hash)
				return
			}
			s.logger.Error("create contract", "err", err)
			respondError(w, http.StatusInternalServerError, "failed to save contract")
			return
		}
	}

	analysis, err := s.analyze(ctx, contract)
	if err != nil {
		if analyzer.IsValidationError(err) {
			respondError(w, http.StatusBadRequest, err.Error())
		} else {
			respondError(w, http.StatusInternalServerError, "failed to analyze contract")
		}
		return
	}

	s.recordUsage(ctx, contract, analysis)
	s.storeSections(ctx, contract)

	respondJSON(w, http.StatusCreated, models.UploadResult{
		ContractDetail: models.ContractDetail{
			Contract: toContractModel(contract),
			Analysis: toAnalysisModel(analysis),
		},
	})
}

func (s *Server) respondDuplicate(ctx context.Context, w http.ResponseWriter, existing *storage.Contract) {
	detail, err := s.contractDetail(ctx, existing)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to fetch analysis")
		return
	}
	respondJSON(w, http.StatusOK, models.UploadResult{ContractDetail: *detail, Duplicate: true})
}

// respondStoredDuplicate answers an upload that lost the insert race against
// an identical upload from another server instance.
func (s *Server) respondStoredDuplicate(ctx context.Context, w http.ResponseWriter, userID uuid.UUID, hash string) {
	existing, err := s.stores.Contracts.GetByHash(ctx, userID, hash)
	if err != nil || existing == nil {
		s.logger.Error("load duplicate contract", "err", err)
		respondError(w, http.StatusInternalServerError, "failed to check existing contracts")
		return
	}
	s.respondDuplicate(ctx, w, existing)
}

// analyze runs the engine under the analysis timeout and persists the result.
// The contract is marked failed when anything after creation goes wrong.
func (s *Server) analyze(ctx context.Context, contract *storage.Contract) (*storage.Analysis, error) {
	actx, cancel := context.WithTimeout(ctx, s.config.AnalysisTimeout)
	defer cancel()

	result, err := s.engine.AnalyzeContract(actx, contract.Content)
	if err != nil {
		s.markFailed(ctx, contract.ID, err)
		return nil, err
	}

	stored := &storage.Analysis{
		ContractID:      contract.ID,
		RiskLevel:       string(result.RiskLevel),
		Summary:         result.Summary,
		KeyTerms:        result.KeyTerms,
		RedFlags:        result.RedFlags,
		FavorableTerms:  result.FavorableTerms,
		Recommendations: result.Recommendations,
		Confidence:      result.Confidence,
	}
	if err := s.stores.Analyses.Create(ctx, stored); err != nil {
		s.markFailed(ctx, contract.ID, err)
		return nil, fmt.Errorf("save analysis: %w", err)
	}

	score := RiskScore(result)
	if err := s.stores.Contracts.MarkCompleted(ctx, contract.ID, score); err != nil {
		s.markFailed(ctx, contract.ID, err)
		return nil, fmt.Errorf("complete contract: %w", err)
	}

	contract.Status = storage.StatusCompleted
	contract.RiskScore = sql.NullInt64{Int64: int64(score), Valid: true}
	contract.AnalyzedAt = sql.NullTime{Time: s.now(), Valid: true}
	return stored, nil
}

func (s *Server) markFailed(ctx context.Context, id uuid.UUID, cause error) {
	s.logger.Error("contract analysis failed", "contract", id, "err", cause)
	if err := s.stores.Contracts.MarkFailed(ctx, id); err != nil {
		s.logger.Error("mark contract failed", "contract", id, "err", err)
	}
}

func (s *Server) recordUsage(ctx context.Context, contract *storage.Contract, analysis *storage.Analysis) {
	event := &storage.UsageEvent{
		UserID:     contract.UserID,
		EventType:  storage.EventContractAnalysis,
		ContractID: uuid.NullUUID{UUID: contract.ID, Valid: true},
		WordCount:  contract.WordCount,
		RiskLevel:  analysis.RiskLevel,
	}
	if err := s.stores.Usage.Record(ctx, event); err != nil {
		s.logger.Error("record usage", "contract", contract.ID, "err", err)
	}
}

// storeSections embeds the extracted clauses for precedent search. Failures are logged only.
func (s *Server) storeSections(ctx context.Context, contract *storage.Contract) {
	if s.embedder == nil || s.stores.Sections == nil {
		return
	}

	extracted := analyzer.ExtractSections(contract.Content)
	if len(extracted) == 0 {
		return
	}

	texts := make([]string, len(extracted))
	for i, sec := range extracted {
		texts[i] = sec.Text
	}

	vectors, err := s.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		s.logger.Warn("embed contract sections", "contract", contract.ID, "err", err)
		return
	}

	sections := make([]*storage.Section, len(extracted))
	for i, sec := range extracted {
		sections[i] = &storage.Section{
			ContractID:  contract.ID,
			Text:        sec.Text,
			SectionType: string(sec.Type),
			Position:    i,
			Embedding:   pgvector.NewVector(vectors[i]),
		}
	}

	if err := s.stores.Sections.CreateBatch(ctx, sections); err != nil {
		s.logger.Warn("store contract sections", "contract", contract.ID, "err", err)
	}
}

// handleListContracts lists the caller's contracts, newest first
func (s *Server) handleListContracts(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	contracts, err := s.stores.Contracts.GetByUserID(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to fetch contracts")
		return
	}

	response := make([]models.Contract, 0, len(contracts))
	for _, c := range contracts {
		response = append(response, toContractModel(c))
	}

	respondJSON(w, http.StatusOK, response)
}

// handleGetContract returns a contract with its latest analysis
func (s *Server) handleGetContract(w http.ResponseWriter, r *http.Request) {
	contract, ok := s.ownedContract(w, r)
	if !ok {
		return
	}

	detail, err := s.contractDetail(r.Context(), contract)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to fetch analysis")
		return
	}

	respondJSON(w, http.StatusOK, detail)
}

// handleDeleteContract deletes a contract with its analyses and sections
func (s *Server) handleDeleteContract(w http.ResponseWriter, r *http.Request) {
	contract, ok := s.ownedContract(w, r)
	if !ok {
		return
	}

	if err := s.stores.Contracts.Delete(r.Context(), contract.ID); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to delete contract")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ownedContract loads the {contractID} route parameter and hides other users' contracts
func (s *Server) ownedContract(w http.ResponseWriter, r *http.Request) (*storage.Contract, bool) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return nil, false
	}

	id, err := uuid.Parse(chi.URLParam(r, "contractID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid contract id")
		return nil, false
	}

	contract, err := s.stores.Contracts.GetByID(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to fetch contract")
		return nil, false
	}
	if contract == nil || contract.UserID != userID {
		respondError(w, http.StatusNotFound, "contract not found")
		return nil, false
	}

	return contract, true
}

func (s *Server) contractDetail(ctx context.Context, contract *storage.Contract) (*models.ContractDetail, error) {
	analysis, err := s.stores.Analyses.GetLatestByContractID(ctx, contract.ID)
	if err != nil {
		return nil, err
	}

	detail := &models.ContractDetail{Contract: toContractModel(contract)}
	if analysis != nil {
		detail.Analysis = toAnalysisModel(analysis)
	}
	return detail, nil
}

func currentUserID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	claims, ok := auth.GetUserFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return uuid.Nil, false
	}

	id, err := claims.UserUUID()
	if err != nil {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return uuid.Nil, false
	}
	return id, true
}

func toContractModel(c *storage.Contract) models.Contract {
	m := models.Contract{
		ID:        c.ID.String(),
		FileName:  c.FileName,
		Status:    c.Status,
		WordCount: c.WordCount,
		CreatedAt: c.CreatedAt,
	}
	if c.RiskScore.Valid {
		score := int(c.RiskScore.Int64)
		m.RiskScore = &score
	}
	if c.AnalyzedAt.Valid {
		at := c.AnalyzedAt.Time
		m.AnalyzedAt = &at
	}
	return m
}

func toAnalysisModel(a *storage.Analysis) *models.Analysis {
	score := RiskScore(&analyzer.ContractAnalysis{
		RiskLevel:      analyzer.RiskLevel(a.RiskLevel),
		RedFlags:       a.RedFlags,
		FavorableTerms: a.FavorableTerms,
	})
	return &models.Analysis{
		RiskLevel:       a.RiskLevel,
		RiskScore:       score,
		Summary:         a.Summary,
		KeyTerms:        a.KeyTerms,
		RedFlags:        a.RedFlags,
		FavorableTerms:  a.FavorableTerms,
		Recommendations: a.Recommendations,
		Confidence:      a.Confidence,
		CreatedAt:       a.CreatedAt,
	}
}
