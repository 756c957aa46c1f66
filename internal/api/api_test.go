package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidewayz8solutions/sidewayz-legalreviewiq/internal/analyzer"
	"github.com/sidewayz8solutions/sidewayz-legalreviewiq/internal/auth"
	"github.com/sidewayz8solutions/sidewayz-legalreviewiq/internal/metrics"
	"github.com/sidewayz8solutions/sidewayz-legalreviewiq/internal/storage"
	"github.com/sidewayz8solutions/sidewayz-legalreviewiq/pkg/models"
)

const testContract = `MASTER SERVICES AGREEMENT

1. Services. The Provider shall deliver software maintenance services to the Customer during the term.

2. Liability. The Provider accepts unlimited liability and shall indemnify the Customer for any breach.

3. Payment. The Customer shall pay the fees within thirty days of each invoice.
`

// --- in-memory stores ---

type memUsers struct {
	mu    sync.Mutex
	users map[string]*auth.User
}

func (m *memUsers) Create(_ context.Context, u *auth.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u.ID = uuid.New().String()
	if u.Plan == "" {
		u.Plan = auth.PlanFree
	}
	m.users[u.ID] = u
	return nil
}

func (m *memUsers) GetByID(_ context.Context, id string) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, auth.ErrUserNotFound
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, auth.ErrUserNotFound
}

type memContracts struct {
	mu        sync.Mutex
	contracts map[uuid.UUID]*storage.Contract
	failed    []uuid.UUID
	// hashMisses makes the next n GetByHash calls report no match
	hashMisses int
}

func (m *memContracts) Create(_ context.Context, c *storage.Contract) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.contracts {
		if existing.UserID == c.UserID && existing.ContentHash == c.ContentHash {
			return storage.ErrDuplicateContract
		}
	}
	c.ID = uuid.New()
	c.Status = storage.StatusProcessing
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	cp := *c
	m.contracts[c.ID] = &cp
	return nil
}

func (m *memContracts) GetByID(_ context.Context, id uuid.UUID) (*storage.Contract, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.contracts[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, nil
}

func (m *memContracts) GetByUserID(_ context.Context, userID uuid.UUID) ([]*storage.Contract, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*storage.Contract
	for _, c := range m.contracts {
		if c.UserID == userID {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memContracts) GetByHash(_ context.Context, userID uuid.UUID, hash string) (*storage.Contract, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hashMisses > 0 {
		m.hashMisses--
		return nil, nil
	}
	for _, c := range m.contracts {
		if c.UserID == userID && c.ContentHash == hash {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memContracts) MarkCompleted(_ context.Context, id uuid.UUID, riskScore int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.contracts[id]
	c.Status = storage.StatusCompleted
	c.RiskScore = sql.NullInt64{Int64: int64(riskScore), Valid: true}
	c.AnalyzedAt = sql.NullTime{Time: time.Now(), Valid: true}
	return nil
}

func (m *memContracts) MarkFailed(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contracts[id].Status = storage.StatusFailed
	m.failed = append(m.failed, id)
	return nil
}

func (m *memContracts) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.contracts, id)
	return nil
}

type memAnalyses struct {
	mu       sync.Mutex
	analyses map[uuid.UUID]*storage.Analysis
}

func (m *memAnalyses) Create(_ context.Context, a *storage.Analysis) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.ID = uuid.New()
	a.CreatedAt = time.Now()
	m.analyses[a.ContractID] = a
	return nil
}

func (m *memAnalyses) GetLatestByContractID(_ context.Context, contractID uuid.UUID) (*storage.Analysis, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.analyses[contractID], nil
}

type memUsage struct {
	mu     sync.Mutex
	events []*storage.UsageEvent
}

func (m *memUsage) Record(_ context.Context, e *storage.UsageEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.CreatedAt = time.Now()
	m.events = append(m.events, e)
	return nil
}

func (m *memUsage) CountSince(_ context.Context, userID uuid.UUID, eventType string, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.events {
		if e.UserID == userID && e.EventType == eventType && !e.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

type memSections struct {
	mu       sync.Mutex
	sections []*storage.Section
	query    pgvector.Vector
	limit    int
}

func (m *memSections) CreateBatch(_ context.Context, sections []*storage.Section) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sections = append(m.sections, sections...)
	return nil
}

func (m *memSections) GetByContractID(_ context.Context, contractID uuid.UUID) ([]*storage.Section, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*storage.Section
	for _, s := range m.sections {
		if s.ContractID == contractID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memSections) FindSimilar(_ context.Context, _ uuid.UUID, embedding pgvector.Vector, limit int, _ float64) ([]*storage.SectionWithSimilarity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.query = embedding
	m.limit = limit
	var out []*storage.SectionWithSimilarity
	for _, s := range m.sections {
		out = append(out, &storage.SectionWithSimilarity{Section: s, FileName: "msa.txt", Similarity: 0.9})
	}
	return out, nil
}

func (m *memSections) DeleteByContractID(_ context.Context, contractID uuid.UUID) error {
	return nil
}

type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1}
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	v, err := f.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return v[0], nil
}

func (f *fakeEmbedder) Dimension() int { return 2 }

type fakeAnalyzer struct {
	mu     sync.Mutex
	result *analyzer.ContractAnalysis
	err    error
	calls  int
}

func (f *fakeAnalyzer) AnalyzeContract(ctx context.Context, text string) (*analyzer.ContractAnalysis, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.result, f.err
}

// --- harness ---

type harness struct {
	server    *Server
	authSvc   *auth.JWTService
	users     *memUsers
	contracts *memContracts
	analyses  *memAnalyses
	usage     *memUsage
	sections  *memSections
}

func newHarness(t *testing.T, engine Analyzer, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		users:     &memUsers{users: make(map[string]*auth.User)},
		contracts: &memContracts{contracts: make(map[uuid.UUID]*storage.Contract)},
		analyses:  &memAnalyses{analyses: make(map[uuid.UUID]*storage.Analysis)},
		usage:     &memUsage{},
		sections:  &memSections{},
	}
	h.authSvc = auth.NewJWTService(auth.Config{SecretKey: "test", TokenDuration: time.Hour}, h.users)

	cfg := DefaultConfig()
	cfg.MaxWords = 200
	cfg.MaxUploadBytes = 64 << 10

	h.server = NewServer(cfg, engine, h.authSvc, Stores{
		Users:     h.users,
		Contracts: h.contracts,
		Analyses:  h.analyses,
		Usage:     h.usage,
		Sections:  h.sections,
	}, opts...)
	return h
}

// login registers a user and returns its bearer token
func (h *harness) login(t *testing.T, email string) string {
	t.Helper()
	_, err := h.authSvc.Register(context.Background(), email, "password123")
	require.NoError(t, err)
	token, _, err := h.authSvc.Login(context.Background(), email, "password123")
	require.NoError(t, err)
	return token
}

func (h *harness) do(t *testing.T, method, path, token string, body []byte, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	h.server.ServeHTTP(rec, req)
	return rec
}

func jsonBody(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func multipartBody(t *testing.T, fileName, content string) ([]byte, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return buf.Bytes(), mw.FormDataContentType()
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v), rec.Body.String())
	return v
}

func fixedAnalysis() *analyzer.ContractAnalysis {
	return &analyzer.ContractAnalysis{
		RiskLevel:       analyzer.RiskHigh,
		Summary:         "A services agreement with high-risk elements.",
		KeyTerms:        []string{"Liability: unlimited"},
		RedFlags:        []string{"Unlimited liability", "Broad indemnity"},
		FavorableTerms:  []string{"Net 30 payment"},
		Recommendations: []string{"Negotiate a liability cap"},
		Confidence:      0.7,
	}
}

// --- tests ---

func TestHealth(t *testing.T) {
	h := newHarness(t, &fakeAnalyzer{result: fixedAnalysis()})

	rec := h.do(t, http.MethodGet, "/health", "", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]string{"status": "ok"}, decode[map[string]string](t, rec))
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	h := newHarness(t, &fakeAnalyzer{result: fixedAnalysis()})

	for _, path := range []string{"/api/v1/contracts", "/api/v1/usage", "/api/v1/auth/me"} {
		rec := h.do(t, http.MethodGet, path, "", nil, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestUploadJSON(t *testing.T) {
	engine := &fakeAnalyzer{result: fixedAnalysis()}
	h := newHarness(t, engine, WithEmbedder(&fakeEmbedder{}))
	token := h.login(t, "counsel@example.com")

	body := jsonBody(t, map[string]string{"fileName": "msa.txt", "contractText": testContract})
	rec := h.do(t, http.MethodPost, "/api/v1/contracts", token, body, "application/json")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	res := decode[models.UploadResult](t, rec)
	assert.False(t, res.Duplicate)
	assert.Equal(t, "msa.txt", res.FileName)
	assert.Equal(t, storage.StatusCompleted, res.Status)
	require.NotNil(t, res.RiskScore)
	// high band 70-75, two of three terms are red flags
	assert.Equal(t, 73, *res.RiskScore)
	require.NotNil(t, res.Analysis)
	assert.Equal(t, "high", res.Analysis.RiskLevel)
	assert.Equal(t, 73, res.Analysis.RiskScore)
	assert.Equal(t, []string{"Unlimited liability", "Broad indemnity"}, res.Analysis.RedFlags)

	require.Len(t, h.usage.events, 1)
	assert.Equal(t, storage.EventContractAnalysis, h.usage.events[0].EventType)
	assert.Equal(t, "high", h.usage.events[0].RiskLevel)

	assert.NotEmpty(t, h.sections.sections, "section embeddings stored")
	for i, s := range h.sections.sections {
		assert.Equal(t, i, s.Position)
	}
}

func TestUploadMultipartWithRuleEngine(t *testing.T) {
	h := newHarness(t, analyzer.NewEngine(analyzer.DefaultConfig()))
	token := h.login(t, "counsel@example.com")

	body, ct := multipartBody(t, "msa.txt", testContract)
	rec := h.do(t, http.MethodPost, "/api/v1/contracts", token, body, ct)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	res := decode[models.UploadResult](t, rec)
	require.NotNil(t, res.Analysis)
	assert.True(t, analyzer.RiskLevel(res.Analysis.RiskLevel).Valid())
	assert.NotEmpty(t, res.Analysis.Summary)
	assert.NotEmpty(t, res.Analysis.Recommendations)
	assert.Equal(t, 0.7, res.Analysis.Confidence)
	assert.Empty(t, h.sections.sections, "no embedder configured")
}

func TestUploadRejections(t *testing.T) {
	pdf, pdfCT := multipartBody(t, "msa.pdf", "%PDF-1.4")
	long := strings.Repeat("word ", 201)

	tests := []struct {
		name        string
		body        []byte
		contentType string
		wantStatus  int
	}{
		{"pdf multipart", pdf, pdfCT, http.StatusUnsupportedMediaType},
		{"docx json", jsonBody(t, map[string]string{"fileName": "msa.docx", "contractText": testContract}), "application/json", http.StatusUnsupportedMediaType},
		{"other content type", []byte(testContract), "text/plain", http.StatusUnsupportedMediaType},
		{"too short", jsonBody(t, map[string]string{"contractText": "Short contract."}), "application/json", http.StatusBadRequest},
		{"empty", jsonBody(t, map[string]string{"contractText": "   "}), "application/json", http.StatusBadRequest},
		{"too many words", jsonBody(t, map[string]string{"contractText": long}), "application/json", http.StatusBadRequest},
		{"bad json", []byte("{"), "application/json", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := &fakeAnalyzer{result: fixedAnalysis()}
			h := newHarness(t, engine)
			token := h.login(t, "counsel@example.com")

			rec := h.do(t, http.MethodPost, "/api/v1/contracts", token, tt.body, tt.contentType)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.Zero(t, engine.calls)
			assert.Empty(t, h.contracts.contracts)
		})
	}
}

func TestUploadTooLarge(t *testing.T) {
	h := newHarness(t, &fakeAnalyzer{result: fixedAnalysis()})
	token := h.login(t, "counsel@example.com")

	huge := jsonBody(t, map[string]string{"contractText": strings.Repeat("x", 70<<10)})
	rec := h.do(t, http.MethodPost, "/api/v1/contracts", token, huge, "application/json")
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestUploadDuplicate(t *testing.T) {
	engine := &fakeAnalyzer{result: fixedAnalysis()}
	h := newHarness(t, engine)
	token := h.login(t, "counsel@example.com")

	body := jsonBody(t, map[string]string{"fileName": "msa.txt", "contractText": testContract})
	first := h.do(t, http.MethodPost, "/api/v1/contracts", token, body, "application/json")
	require.Equal(t, http.StatusCreated, first.Code)

	second := h.do(t, http.MethodPost, "/api/v1/contracts", token, body, "application/json")
	require.Equal(t, http.StatusOK, second.Code)

	res := decode[models.UploadResult](t, second)
	assert.True(t, res.Duplicate)
	require.NotNil(t, res.Analysis)
	assert.Equal(t, 1, engine.calls)
	assert.Len(t, h.usage.events, 1, "duplicates are not metered")
}

func TestUploadQuota(t *testing.T) {
	engine := &fakeAnalyzer{result: fixedAnalysis()}
	h := newHarness(t, engine)
	token := h.login(t, "free@example.com")

	for i := 0; i < 3; i++ {
		text := testContract + strings.Repeat(" extra", i)
		rec := h.do(t, http.MethodPost, "/api/v1/contracts", token,
			jsonBody(t, map[string]string{"contractText": text}), "application/json")
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec := h.do(t, http.MethodPost, "/api/v1/contracts", token,
		jsonBody(t, map[string]string{"contractText": testContract + " fourth"}), "application/json")
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.Equal(t, 3, engine.calls)

	usage := decode[models.Usage](t, h.do(t, http.MethodGet, "/api/v1/usage", token, nil, ""))
	assert.Equal(t, "free", usage.Plan)
	assert.Equal(t, 3, usage.Used)
	require.NotNil(t, usage.Remaining)
	assert.Equal(t, 0, *usage.Remaining)
}

func TestUploadPremiumUnlimited(t *testing.T) {
	engine := &fakeAnalyzer{result: fixedAnalysis()}
	h := newHarness(t, engine)
	token := h.login(t, "premium@example.com")
	for _, u := range h.users.users {
		u.Plan = auth.PlanPremium
	}

	for i := 0; i < 5; i++ {
		text := testContract + strings.Repeat(" more", i)
		rec := h.do(t, http.MethodPost, "/api/v1/contracts", token,
			jsonBody(t, map[string]string{"contractText": text}), "application/json")
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	usage := decode[models.Usage](t, h.do(t, http.MethodGet, "/api/v1/usage", token, nil, ""))
	assert.Equal(t, "premium", usage.Plan)
	assert.Equal(t, 5, usage.Used)
	assert.Nil(t, usage.Limit)
	assert.Nil(t, usage.Remaining)
}

func TestUploadEngineFailureMarksContract(t *testing.T) {
	engine := &fakeAnalyzer{err: errors.New("boom")}
	h := newHarness(t, engine)
	token := h.login(t, "counsel@example.com")

	rec := h.do(t, http.MethodPost, "/api/v1/contracts", token,
		jsonBody(t, map[string]string{"contractText": testContract}), "application/json")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "boom")
	assert.Len(t, h.contracts.failed, 1)
	assert.Empty(t, h.usage.events)
}

func TestUploadRetriesFailedContract(t *testing.T) {
	engine := &fakeAnalyzer{err: errors.New("model offline")}
	h := newHarness(t, engine)
	token := h.login(t, "counsel@example.com")
	body := jsonBody(t, map[string]string{"fileName": "msa.txt", "contractText": testContract})

	first := h.do(t, http.MethodPost, "/api/v1/contracts", token, body, "application/json")
	require.Equal(t, http.StatusInternalServerError, first.Code)
	require.Len(t, h.contracts.failed, 1)

	engine.err = nil
	engine.result = fixedAnalysis()
	second := h.do(t, http.MethodPost, "/api/v1/contracts", token, body, "application/json")
	require.Equal(t, http.StatusCreated, second.Code, second.Body.String())

	res := decode[models.UploadResult](t, second)
	assert.False(t, res.Duplicate)
	require.NotNil(t, res.Analysis)
	assert.Equal(t, h.contracts.failed[0].String(), res.Contract.ID)
	assert.Equal(t, storage.StatusCompleted, res.Contract.Status)
	assert.Equal(t, 2, engine.calls)
	assert.Len(t, h.contracts.contracts, 1)
	assert.Len(t, h.usage.events, 1)

	third := h.do(t, http.MethodPost, "/api/v1/contracts", token, body, "application/json")
	assert.Equal(t, http.StatusOK, third.Code)
	assert.True(t, decode[models.UploadResult](t, third).Duplicate)
	assert.Equal(t, 2, engine.calls)
}

func TestUploadInsertRaceReturnsDuplicate(t *testing.T) {
	engine := &fakeAnalyzer{result: fixedAnalysis()}
	h := newHarness(t, engine)
	token := h.login(t, "counsel@example.com")
	body := jsonBody(t, map[string]string{"contractText": testContract})

	first := h.do(t, http.MethodPost, "/api/v1/contracts", token, body, "application/json")
	require.Equal(t, http.StatusCreated, first.Code)

	// Another instance inserted the row after this one looked it up.
	h.contracts.hashMisses = 1
	second := h.do(t, http.MethodPost, "/api/v1/contracts", token, body, "application/json")
	require.Equal(t, http.StatusOK, second.Code, second.Body.String())
	assert.True(t, decode[models.UploadResult](t, second).Duplicate)
	assert.Equal(t, 1, engine.calls)
	assert.Len(t, h.usage.events, 1)
}

func TestUploadConcurrentRespectsQuota(t *testing.T) {
	engine := &fakeAnalyzer{result: fixedAnalysis()}
	h := newHarness(t, engine)
	token := h.login(t, "free@example.com")

	bodies := make([][]byte, 6)
	for i := range bodies {
		bodies[i] = jsonBody(t, map[string]string{"contractText": testContract + strings.Repeat(" again", i)})
	}

	codes := make([]int, len(bodies))
	var wg sync.WaitGroup
	for i, body := range bodies {
		i, body := i, body
		wg.Add(1)
		go func() {
			defer wg.Done()
			codes[i] = h.do(t, http.MethodPost, "/api/v1/contracts", token, body, "application/json").Code
		}()
	}
	wg.Wait()

	created, limited := 0, 0
	for _, code := range codes {
		switch code {
		case http.StatusCreated:
			created++
		case http.StatusPaymentRequired:
			limited++
		}
	}
	assert.Equal(t, 3, created)
	assert.Equal(t, 3, limited)
	assert.Len(t, h.usage.events, 3)
}

func TestUploadEmbeddingFailureIsNotFatal(t *testing.T) {
	h := newHarness(t, &fakeAnalyzer{result: fixedAnalysis()}, WithEmbedder(&fakeEmbedder{err: errors.New("rate limited")}))
	token := h.login(t, "counsel@example.com")

	rec := h.do(t, http.MethodPost, "/api/v1/contracts", token,
		jsonBody(t, map[string]string{"contractText": testContract}), "application/json")
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Empty(t, h.sections.sections)
}

func TestContractLifecycle(t *testing.T) {
	h := newHarness(t, &fakeAnalyzer{result: fixedAnalysis()})
	owner := h.login(t, "owner@example.com")
	other := h.login(t, "other@example.com")

	rec := h.do(t, http.MethodPost, "/api/v1/contracts", owner,
		jsonBody(t, map[string]string{"fileName": "lease.txt", "contractText": testContract}), "application/json")
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode[models.UploadResult](t, rec).ID

	list := decode[[]models.Contract](t, h.do(t, http.MethodGet, "/api/v1/contracts", owner, nil, ""))
	require.Len(t, list, 1)
	assert.Equal(t, id, list[0].ID)

	otherList := decode[[]models.Contract](t, h.do(t, http.MethodGet, "/api/v1/contracts", other, nil, ""))
	assert.Empty(t, otherList)

	got := h.do(t, http.MethodGet, "/api/v1/contracts/"+id, owner, nil, "")
	require.Equal(t, http.StatusOK, got.Code)
	detail := decode[models.ContractDetail](t, got)
	require.NotNil(t, detail.Analysis)
	assert.Equal(t, "high", detail.Analysis.RiskLevel)

	assert.Equal(t, http.StatusNotFound, h.do(t, http.MethodGet, "/api/v1/contracts/"+id, other, nil, "").Code)
	assert.Equal(t, http.StatusNotFound, h.do(t, http.MethodDelete, "/api/v1/contracts/"+id, other, nil, "").Code)
	assert.Equal(t, http.StatusBadRequest, h.do(t, http.MethodGet, "/api/v1/contracts/not-a-uuid", owner, nil, "").Code)

	assert.Equal(t, http.StatusNoContent, h.do(t, http.MethodDelete, "/api/v1/contracts/"+id, owner, nil, "").Code)
	assert.Equal(t, http.StatusNotFound, h.do(t, http.MethodGet, "/api/v1/contracts/"+id, owner, nil, "").Code)
}

func TestClauseSearch(t *testing.T) {
	h := newHarness(t, &fakeAnalyzer{result: fixedAnalysis()}, WithEmbedder(&fakeEmbedder{}))
	token := h.login(t, "counsel@example.com")

	rec := h.do(t, http.MethodPost, "/api/v1/contracts", token,
		jsonBody(t, map[string]string{"contractText": testContract}), "application/json")
	require.Equal(t, http.StatusCreated, rec.Code)

	search := h.do(t, http.MethodPost, "/api/v1/clauses/search", token,
		jsonBody(t, map[string]any{"text": "unlimited liability", "limit": 500}), "application/json")
	require.Equal(t, http.StatusOK, search.Code, search.Body.String())

	matches := decode[[]models.ClauseMatch](t, search)
	assert.Len(t, matches, len(h.sections.sections))
	assert.Equal(t, maxClauseResults, h.sections.limit)
	assert.Equal(t, []float32{float32(len("unlimited liability")), 1}, h.sections.query.Slice())

	bad := h.do(t, http.MethodPost, "/api/v1/clauses/search", token,
		jsonBody(t, map[string]any{"text": " "}), "application/json")
	assert.Equal(t, http.StatusBadRequest, bad.Code)

	bad = h.do(t, http.MethodPost, "/api/v1/clauses/search", token,
		jsonBody(t, map[string]any{"text": "x", "threshold": 1.5}), "application/json")
	assert.Equal(t, http.StatusBadRequest, bad.Code)
}

func TestClauseSearchNotConfigured(t *testing.T) {
	h := newHarness(t, &fakeAnalyzer{result: fixedAnalysis()})
	token := h.login(t, "counsel@example.com")

	rec := h.do(t, http.MethodPost, "/api/v1/clauses/search", token,
		jsonBody(t, map[string]any{"text": "indemnify"}), "application/json")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAuthRoutes(t *testing.T) {
	h := newHarness(t, &fakeAnalyzer{result: fixedAnalysis()})

	rec := h.do(t, http.MethodPost, "/api/v1/auth/register", "",
		jsonBody(t, map[string]string{"email": "new@example.com", "password": "password123"}), "application/json")
	require.Equal(t, http.StatusCreated, rec.Code)
	token := decode[auth.TokenResponse](t, rec).Token
	require.NotEmpty(t, token)

	me := decode[map[string]string](t, h.do(t, http.MethodGet, "/api/v1/auth/me", token, nil, ""))
	assert.Equal(t, "new@example.com", me["email"])
	assert.Equal(t, "free", me["plan"])
}

func TestMetricsEndpoint(t *testing.T) {
	h := newHarness(t, &fakeAnalyzer{result: fixedAnalysis()}, WithMetrics(metrics.New(nil)))

	h.do(t, http.MethodGet, "/health", "", nil, "")
	rec := h.do(t, http.MethodGet, "/metrics", "", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `legalreviewiq_http_requests_total{method="GET",route="/health",status="200"} 1`)
}

func TestRiskScore(t *testing.T) {
	flags := func(n int) []string { return make([]string, n) }

	tests := []struct {
		name      string
		level     analyzer.RiskLevel
		redFlags  int
		favorable int
		want      int
	}{
		{"low without terms", analyzer.RiskLow, 0, 0, 20},
		{"low balanced", analyzer.RiskLow, 1, 1, 22},
		{"low only favorable", analyzer.RiskLow, 0, 10, 20},
		{"medium mostly red", analyzer.RiskMedium, 2, 1, 46},
		{"high only red tops band", analyzer.RiskHigh, 9, 0, 75},
		{"critical is fixed", analyzer.RiskCritical, 5, 0, 90},
		{"unknown level counts as medium", analyzer.RiskLevel("odd"), 0, 0, 40},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RiskScore(&analyzer.ContractAnalysis{
				RiskLevel:      tt.level,
				RedFlags:       flags(tt.redFlags),
				FavorableTerms: flags(tt.favorable),
			})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUserLocksDropReleasedEntries(t *testing.T) {
	locks := newUserLocks()
	id := uuid.New()

	unlock := locks.lock(id)
	acquired := make(chan struct{})
	go func() {
		release := locks.lock(id)
		close(acquired)
		release()
	}()

	select {
	case <-acquired:
		t.Fatal("second lock acquired while the first was held")
	case <-time.After(20 * time.Millisecond):
	}

	unlock()
	<-acquired
	assert.Eventually(t, func() bool {
		locks.mu.Lock()
		defer locks.mu.Unlock()
		return len(locks.locks) == 0
	}, time.Second, 5*time.Millisecond)
}
