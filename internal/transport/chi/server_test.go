package chi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/scamlens/scamlens/internal/domain"
	"github.com/scamlens/scamlens/internal/domain/document"
	"github.com/scamlens/scamlens/internal/domain/retrieval"
	docrepo "github.com/scamlens/scamlens/internal/repository/document"
	classifyuc "github.com/scamlens/scamlens/internal/usecase/classify"
	corpusuc "github.com/scamlens/scamlens/internal/usecase/corpus"
	healthuc "github.com/scamlens/scamlens/internal/usecase/health"
	"github.com/scamlens/scamlens/internal/usecase/llm"
)

// --- Mocks ---

type mockRetriever struct {
	result retrieval.Result
	err    error
}

func (m *mockRetriever) Retrieve(_ context.Context, _ string) (retrieval.Result, error) {
	return m.result, m.err
}

type mockGenerator struct {
	resp llm.Response
	err  error
}

func (m *mockGenerator) Generate(_ context.Context, _ llm.Request) (llm.Response, error) {
	if m.err != nil {
		return llm.Response{}, m.err
	}
	return m.resp, nil
}

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(_ context.Context) error { return m.err }

type mockEmbedder struct {
	err error
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Embedding: []float32{0.1, 0.2}}, nil
}

type mockDocRepo struct {
	docs map[string]document.Document
}

func newMockDocRepo() *mockDocRepo {
	return &mockDocRepo{docs: make(map[string]document.Document)}
}

func (m *mockDocRepo) Upsert(_ context.Context, doc *document.Document, _ []float32) (docrepo.UpsertOutcome, error) {
	outcome := docrepo.UpsertCreated
	if prev, ok := m.docs[doc.ID()]; ok {
		if prev.Text() == doc.Text() && prev.Label() == doc.Label() {
			return docrepo.UpsertUnchanged, nil
		}
		outcome = docrepo.UpsertOverwritten
	}
	m.docs[doc.ID()] = *doc
	return outcome, nil
}

func (m *mockDocRepo) Get(_ context.Context, id string) (document.Document, error) {
	doc, ok := m.docs[id]
	if !ok {
		return document.Document{}, domain.ErrDocumentNotFound
	}
	return doc, nil
}

func (m *mockDocRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.docs[id]; !ok {
		return domain.ErrDocumentNotFound
	}
	delete(m.docs, id)
	return nil
}

func (m *mockDocRepo) Count(_ context.Context) (int, error) { return len(m.docs), nil }

func newTestRouter(retr *mockRetriever, gen *mockGenerator, pingErr error) http.Handler {
	classifySvc := classifyuc.New(retr, gen, classifyuc.Config{
		MaxConcurrent:     4,
		PromptBudgetBytes: 12288,
	}, zap.NewNop())
	corpusSvc := corpusuc.New(&mockEmbedder{}, newMockDocRepo(), zap.NewNop())
	healthSvc := healthuc.New(&mockPinger{err: pingErr}, nil, nil)

	server := NewServer(classifySvc, corpusSvc, nil, healthSvc, zap.NewNop())
	r := chi.NewRouter()
	server.Routes(r)
	return r
}

func goodGenerator() *mockGenerator {
	return &mockGenerator{resp: llm.Response{
		Raw:     `{"label": "scam", "confidence": 0.9, "rationale": "Known pattern."}`,
		Backend: "local-qwen",
	}}
}

func goodRetriever() *mockRetriever {
	doc := document.Reconstruct("doc-1", "You won!", document.LabelScam, "sms")
	return &mockRetriever{result: retrieval.Ranked([]retrieval.Hit{retrieval.NewHit(doc, 0.9)}, 5)}
}

func postClassify(t *testing.T, handler http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/classify", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

// --- Tests ---

func TestClassify_OK(t *testing.T) {
	handler := newTestRouter(goodRetriever(), goodGenerator(), nil)

	rec := postClassify(t, handler, `{"message": "you won a prize"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}

	var resp classifyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Label != "scam" {
		t.Errorf("label = %q, want scam", resp.Label)
	}
	if len(resp.SupportingDocumentIDs) != 1 || resp.SupportingDocumentIDs[0] != "doc-1" {
		t.Errorf("supporting = %v, want [doc-1]", resp.SupportingDocumentIDs)
	}
}

func TestClassify_EmptyMessage(t *testing.T) {
	handler := newTestRouter(goodRetriever(), goodGenerator(), nil)

	rec := postClassify(t, handler, `{"message": ""}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestClassify_InvalidBody(t *testing.T) {
	handler := newTestRouter(goodRetriever(), goodGenerator(), nil)

	rec := postClassify(t, handler, `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestClassify_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		retrErr    error
		genErr     error
		wantStatus int
	}{
		{"backends exhausted", nil, domain.ErrAllBackendsExhausted, http.StatusBadGateway},
		{"store unavailable", domain.ErrStoreUnavailable, nil, http.StatusServiceUnavailable},
		{"embedding unavailable", domain.ErrEmbeddingUnavailable, nil, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			retr := goodRetriever()
			retr.err = tt.retrErr
			gen := goodGenerator()
			gen.err = tt.genErr

			handler := newTestRouter(retr, gen, nil)
			rec := postClassify(t, handler, `{"message": "msg"}`)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestClassify_BusyMapsTo429(t *testing.T) {
	classifySvc := classifyuc.New(goodRetriever(), goodGenerator(), classifyuc.Config{
		MaxConcurrent:     0, // every request rejected
		PromptBudgetBytes: 12288,
	}, zap.NewNop())
	corpusSvc := corpusuc.New(&mockEmbedder{}, newMockDocRepo(), zap.NewNop())
	server := NewServer(classifySvc, corpusSvc, nil, healthuc.New(&mockPinger{}, nil, nil), zap.NewNop())
	r := chi.NewRouter()
	server.Routes(r)

	rec := postClassify(t, r, `{"message": "msg"}`)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", rec.Code)
	}
}

func TestAddDocument_CreatedThenUnchanged(t *testing.T) {
	handler := newTestRouter(goodRetriever(), goodGenerator(), nil)
	body := `{"text": "You won a prize, send $500 fee", "label": "scam", "source": "review"}`

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201; body: %s", rec.Code, rec.Body.String())
	}

	var resp documentResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ID == "" || resp.Label != "scam" {
		t.Errorf("response = %+v, want content-derived id and scam label", resp)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/documents", strings.NewReader(body))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("re-add status = %d, want 200", rec.Code)
	}
}

func TestAddDocument_InvalidLabel(t *testing.T) {
	handler := newTestRouter(goodRetriever(), goodGenerator(), nil)

	body := `{"text": "some text", "label": "spam"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestGetDocument_RoundTrip(t *testing.T) {
	handler := newTestRouter(goodRetriever(), goodGenerator(), nil)

	body := `{"text": "Your package ships tomorrow", "label": "legitimate"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("add status = %d, want 201", rec.Code)
	}
	var created documentResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/documents/"+created.ID, nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d, want 200", rec.Code)
	}
	var got documentResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Text != "Your package ships tomorrow" || got.Label != "legitimate" {
		t.Errorf("got = %+v", got)
	}
}

func TestDeleteDocument(t *testing.T) {
	handler := newTestRouter(goodRetriever(), goodGenerator(), nil)

	body := `{"text": "remove me", "label": "scam"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("add status = %d, want 201", rec.Code)
	}
	var created documentResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/v1/documents/"+created.ID, nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/documents/"+created.ID, nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", rec.Code)
	}
}

func TestDeleteDocument_NotFound(t *testing.T) {
	handler := newTestRouter(goodRetriever(), goodGenerator(), nil)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/documents/nope", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestGetDocument_NotFound(t *testing.T) {
	handler := newTestRouter(goodRetriever(), goodGenerator(), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/documents/nope", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestSeedReload_NotConfigured(t *testing.T) {
	handler := newTestRouter(goodRetriever(), goodGenerator(), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/seed/reload", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotImplemented {
		t.Errorf("status = %d, want 501", rec.Code)
	}
}

func TestHealth_OK(t *testing.T) {
	handler := newTestRouter(goodRetriever(), goodGenerator(), nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestHealth_StoreDown(t *testing.T) {
	handler := newTestRouter(goodRetriever(), goodGenerator(), context.DeadlineExceeded)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}
