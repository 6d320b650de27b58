package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/tanya/internal/answer"
	"github.com/hyperjump/tanya/internal/config"
	"github.com/hyperjump/tanya/internal/embedding"
	"github.com/hyperjump/tanya/internal/extract"
	"github.com/hyperjump/tanya/internal/indexer"
	"github.com/hyperjump/tanya/internal/keyword"
	"github.com/hyperjump/tanya/internal/models"
	"github.com/hyperjump/tanya/internal/search"
	"github.com/hyperjump/tanya/internal/storage"
	"github.com/hyperjump/tanya/internal/store"
)

const testDims = 32

type mockWatchService struct {
	dirs []string
}

func (m *mockWatchService) Directories() []string {
	return append([]string(nil), m.dirs...)
}

func (m *mockWatchService) AddDirectory(path string, _ bool) error {
	for _, d := range m.dirs {
		if d == path {
			return nil
		}
	}
	m.dirs = append(m.dirs, path)
	return nil
}

func (m *mockWatchService) RemoveDirectory(path string) error {
	for i, d := range m.dirs {
		if d == path {
			m.dirs = append(m.dirs[:i], m.dirs[i+1:]...)
			return nil
		}
	}
	return nil
}

type testEnv struct {
	srv     *Server
	handler http.Handler
	cfg     *config.Config
	store   *store.Store
}

// newTestEnv wires the real components over temp directories. The single
// retrieval tier accepts any score so the bag-of-words embedder always
// returns the stored chunks.
func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Storage.StorePath = filepath.Join(dir, "store")
	cfg.Storage.DatabasePath = filepath.Join(dir, "documents.db")
	cfg.Storage.KeywordIndexPath = filepath.Join(dir, "keyword")
	cfg.Storage.DocumentsDir = filepath.Join(dir, "documents")
	cfg.Embedding.Provider = "mock"
	cfg.Embedding.Dimensions = testDims
	cfg.Chunking = config.ChunkingConfig{ChunkSize: 200, ChunkOverlap: 20}

	st, err := store.Open(cfg.Storage.StorePath, testDims, store.WithEmbedder(embedding.NewMockEmbedder(testDims)))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = st.Close() })
	reg, err := storage.NewSQLiteRegistry(cfg.Storage.DatabasePath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = reg.Close() })
	kw, err := keyword.NewBleveIndex(cfg.Storage.KeywordIndexPath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = kw.Close() })

	idx := indexer.NewIndexer(st, reg, cfg.Chunking, indexer.WithKeywordIndex(kw))
	retriever, err := search.NewRetriever(st, search.Policy{{K: 3, Threshold: -1}},
		search.WithExpander(search.NewExpander(cfg.Retrieval.Abbreviations)))
	if err != nil {
		t.Fatal(err)
	}
	deps := Deps{
		Engine:    answer.NewEngine(retriever),
		Retriever: retriever,
		Finder:    search.NewFinder(kw, st, nil),
		Indexer:   idx,
		Registry:  reg,
		Keyword:   kw,
		Store:     st,
	}
	srv := NewServer(deps, cfg, zap.NewNop(), opts...)
	return &testEnv{srv: srv, handler: srv.Router(), cfg: cfg, store: st}
}

func (e *testEnv) do(t *testing.T, method, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	r := httptest.NewRequest(method, target, &buf)
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, r)
	return w
}

func (e *testEnv) index(t *testing.T, input models.DocumentInput) {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/v1/documents", input)
	if w.Code != http.StatusCreated {
		t.Fatalf("index %s: status %d: %s", input.ID, w.Code, w.Body.String())
	}
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

func TestHandleHealth(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Errorf("status: got %d", w.Code)
	}
}

func TestHandleIndexDocument(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodPost, "/api/v1/documents", models.DocumentInput{
		ID:      "vacation",
		Source:  "vacation_policy.txt",
		Content: "Full-time employees receive 15 days of paid vacation per year.",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status: got %d: %s", w.Code, w.Body.String())
	}
	var res indexer.Result
	decode(t, w, &res)
	if res.DocumentID != "vacation" || res.Chunks != 1 || res.FirstPosition != 0 {
		t.Errorf("result = %+v", res)
	}
	if env.store.Len() != 1 {
		t.Errorf("store len = %d", env.store.Len())
	}
}

func TestHandleIndexDocument_Errors(t *testing.T) {
	env := newTestEnv(t)
	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed", "{", http.StatusBadRequest},
		{"blank content", `{"content": "   "}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/api/v1/documents", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			env.handler.ServeHTTP(w, r)
			if w.Code != tt.want {
				t.Errorf("status: got %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestHandleAsk(t *testing.T) {
	env := newTestEnv(t)
	env.index(t, models.DocumentInput{
		ID:      "vacation",
		Source:  "docs/vacation_policy.txt",
		Content: "Full-time employees receive 15 days of paid vacation per year.",
	})

	w := env.do(t, http.MethodPost, "/api/v1/ask", models.AskRequest{Question: "How many vacation days do I get?"})
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d: %s", w.Code, w.Body.String())
	}
	var ans models.Answer
	decode(t, w, &ans)
	if !ans.Confident {
		t.Fatal("expected a confident answer")
	}
	if !strings.Contains(ans.Text, "15 days") {
		t.Errorf("answer does not quote the policy: %q", ans.Text)
	}
	if len(ans.Sources) != 1 || ans.Sources[0] != "vacation_policy.txt" {
		t.Errorf("sources = %v", ans.Sources)
	}
	if ans.Category != search.CategoryHRPolicy {
		t.Errorf("category = %q", ans.Category)
	}
}

func TestHandleAsk_EmptyStore(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodPost, "/api/v1/ask", models.AskRequest{Question: "anything?"})
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var ans models.Answer
	decode(t, w, &ans)
	if ans.Text != answer.NoAnswerMessage || ans.Confident {
		t.Errorf("answer = %+v", ans)
	}
}

func TestHandleAsk_Invalid(t *testing.T) {
	env := newTestEnv(t)
	for _, req := range []models.AskRequest{{Question: "  "}, {Question: "x", Mode: "poem"}} {
		w := env.do(t, http.MethodPost, "/api/v1/ask", req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%+v: status %d, want 400", req, w.Code)
		}
	}
}

func TestHandleSearch(t *testing.T) {
	env := newTestEnv(t)
	env.index(t, models.DocumentInput{ID: "a", Content: "Expense reports are due within 30 days."})
	env.index(t, models.DocumentInput{ID: "b", Content: "Remote work requires manager approval."})

	w := env.do(t, http.MethodPost, "/api/v1/search", models.SearchQuery{Query: "expense reports", K: 1})
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d: %s", w.Code, w.Body.String())
	}
	var resp models.SearchResponse
	decode(t, w, &resp)
	if len(resp.Results) != 1 || resp.Results[0].Metadata.DocumentID != "a" {
		t.Errorf("results = %+v", resp.Results)
	}
	if resp.Tier != 0 || !resp.Confident {
		t.Errorf("tier=%d confident=%v", resp.Tier, resp.Confident)
	}
}

func TestHandleSearch_Invalid(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodPost, "/api/v1/search", models.SearchQuery{Query: ""})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status: got %d", w.Code)
	}
}

func TestHandleFind(t *testing.T) {
	env := newTestEnv(t)
	env.index(t, models.DocumentInput{ID: "a", Source: "expense.txt", Content: "Submit receipts for reimbursement."})
	env.index(t, models.DocumentInput{ID: "b", Source: "remote.txt", Content: "Core hours are 10am to 3pm."})

	w := env.do(t, http.MethodGet, "/api/v1/find?q=receipts", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d: %s", w.Code, w.Body.String())
	}
	var out struct {
		Hits []*models.KeywordHit `json:"hits"`
	}
	decode(t, w, &out)
	if len(out.Hits) != 1 || out.Hits[0].Metadata.Source != "expense.txt" {
		t.Errorf("hits = %+v", out.Hits)
	}

	if w := env.do(t, http.MethodGet, "/api/v1/find", nil); w.Code != http.StatusBadRequest {
		t.Errorf("missing q: status %d", w.Code)
	}
	if w := env.do(t, http.MethodGet, "/api/v1/find?q=x&limit=abc", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad limit: status %d", w.Code)
	}
}

func TestHandleListAndGetDocuments(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < 3; i++ {
		env.index(t, models.DocumentInput{ID: fmt.Sprintf("doc-%d", i), Content: fmt.Sprintf("document number %d", i)})
	}

	w := env.do(t, http.MethodGet, "/api/v1/documents?offset=1&limit=1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var out struct {
		Documents []*models.Document `json:"documents"`
		Total     int64              `json:"total"`
	}
	decode(t, w, &out)
	if out.Total != 3 || len(out.Documents) != 1 || out.Documents[0].ID != "doc-1" {
		t.Errorf("list = %+v total=%d", out.Documents, out.Total)
	}

	w = env.do(t, http.MethodGet, "/api/v1/documents/doc-2", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get: status %d", w.Code)
	}
	var doc models.Document
	decode(t, w, &doc)
	if doc.FirstPosition != 2 || doc.ChunkCount != 1 {
		t.Errorf("doc = %+v", doc)
	}

	if w := env.do(t, http.MethodGet, "/api/v1/documents/nope", nil); w.Code != http.StatusNotFound {
		t.Errorf("missing doc: status %d", w.Code)
	}
	if w := env.do(t, http.MethodGet, "/api/v1/documents?offset=-1", nil); w.Code != http.StatusBadRequest {
		t.Errorf("negative offset: status %d", w.Code)
	}
}

func uploadRequest(t *testing.T, name, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	r := httptest.NewRequest(http.MethodPost, "/api/v1/documents/upload", &buf)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	return r
}

func TestHandleUpload(t *testing.T) {
	env := newTestEnv(t)
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, uploadRequest(t, "holidays.md", "# Holidays\n\nThe office closes on New Year's Day."))
	if w.Code != http.StatusCreated {
		t.Fatalf("status: got %d: %s", w.Code, w.Body.String())
	}
	var res indexer.Result
	decode(t, w, &res)
	if res.Chunks == 0 || !strings.HasSuffix(res.Source, "holidays.md") {
		t.Errorf("result = %+v", res)
	}
	if _, err := os.Stat(filepath.Join(env.cfg.Storage.DocumentsDir, "holidays.md")); err != nil {
		t.Errorf("upload not saved: %v", err)
	}

	w = httptest.NewRecorder()
	env.handler.ServeHTTP(w, uploadRequest(t, "holidays.md", "# Holidays\n\nThe office closes on New Year's Day."))
	if w.Code != http.StatusCreated {
		t.Fatalf("re-upload status: got %d", w.Code)
	}
	decode(t, w, &res)
	if !res.Skipped {
		t.Error("identical re-upload should be skipped")
	}
}

func TestHandleUpload_Rejects(t *testing.T) {
	env := newTestEnv(t)
	tests := []struct {
		name     string
		filename string
	}{
		{"unsupported", "photo.png"},
		{"hidden", ".env"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			env.handler.ServeHTTP(w, uploadRequest(t, tt.filename, "data"))
			if w.Code != http.StatusBadRequest {
				t.Errorf("status: got %d", w.Code)
			}
		})
	}

	r := httptest.NewRequest(http.MethodPost, "/api/v1/documents/upload", strings.NewReader("plain"))
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, r)
	if w.Code != http.StatusBadRequest {
		t.Errorf("non-multipart: status %d", w.Code)
	}
}

func TestHandleStats(t *testing.T) {
	env := newTestEnv(t)
	env.index(t, models.DocumentInput{ID: "a", Content: "one chunk"})

	w := env.do(t, http.MethodGet, "/api/v1/stats", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var out map[string]interface{}
	decode(t, w, &out)
	if out["total_documents"] != float64(1) || out["index_size"] != float64(1) {
		t.Errorf("store counts = %v / %v", out["total_documents"], out["index_size"])
	}
	if out["dimension"] != float64(testDims) {
		t.Errorf("dimension = %v", out["dimension"])
	}
	if out["documents"] != float64(1) || out["registered_chunks"] != float64(1) {
		t.Errorf("registry counts = %v / %v", out["documents"], out["registered_chunks"])
	}
	if _, ok := out["disk_usage_bytes"]; !ok {
		t.Error("expected disk_usage_bytes")
	}
	if usage, ok := out["disk_usage"].(map[string]interface{}); !ok {
		t.Errorf("disk_usage = %v", out["disk_usage"])
	} else if _, ok := usage["index_bytes"]; !ok {
		t.Errorf("disk_usage missing index_bytes: %v", usage)
	}
	if tiers, ok := out["tiers"].([]interface{}); !ok || len(tiers) != 1 {
		t.Errorf("tiers = %v", out["tiers"])
	}
	cfg, ok := out["config"].(map[string]interface{})
	if !ok || cfg["answer_mode"] != "template" {
		t.Errorf("config = %v", out["config"])
	}
}

func TestHandleClear(t *testing.T) {
	env := newTestEnv(t)
	env.index(t, models.DocumentInput{ID: "a", Content: "to be removed"})

	w := env.do(t, http.MethodDelete, "/api/v1/store", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	if env.store.Len() != 0 {
		t.Errorf("store len after clear = %d", env.store.Len())
	}
	w = env.do(t, http.MethodGet, "/api/v1/documents", nil)
	var out struct {
		Total int64 `json:"total"`
	}
	decode(t, w, &out)
	if out.Total != 0 {
		t.Errorf("registry total after clear = %d", out.Total)
	}
}

func TestHandleWatchDirectoriesList(t *testing.T) {
	mock := &mockWatchService{dirs: []string{"/tmp/docs"}}
	env := newTestEnv(t, WithWatch(mock, ""))

	w := env.do(t, http.MethodGet, "/api/v1/watch/directories", nil)
	if w.Code != http.StatusOK {
		t.Errorf("status: got %d", w.Code)
	}
	var out struct {
		Directories []string `json:"directories"`
	}
	decode(t, w, &out)
	if len(out.Directories) != 1 || out.Directories[0] != "/tmp/docs" {
		t.Errorf("directories: got %v", out.Directories)
	}
}

func TestHandleWatchDirectories_NotEnabled(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/api/v1/watch/directories", nil)
	if w.Code != http.StatusNotImplemented {
		t.Errorf("status: got %d, want 501", w.Code)
	}
}

func TestHandleWatchDirectoriesAddRemove(t *testing.T) {
	mock := &mockWatchService{}
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	env := newTestEnv(t, WithWatch(mock, configPath))
	dir := t.TempDir()

	w := env.do(t, http.MethodPost, "/api/v1/watch/directories", map[string]interface{}{"path": dir})
	if w.Code != http.StatusCreated {
		t.Fatalf("add status: got %d: %s", w.Code, w.Body.String())
	}
	if len(mock.dirs) != 1 {
		t.Fatalf("mock dirs = %v", mock.dirs)
	}
	saved, err := config.Load(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(saved.Watch.Directories) != 1 || saved.Watch.Directories[0] != dir {
		t.Errorf("saved watch directories = %v", saved.Watch.Directories)
	}

	w = env.do(t, http.MethodDelete, "/api/v1/watch/directories?path="+dir, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("remove status: got %d", w.Code)
	}
	if len(mock.dirs) != 0 {
		t.Errorf("mock dirs after remove = %v", mock.dirs)
	}
}

func TestHandleWatchDirectoriesAdd_InvalidPath(t *testing.T) {
	env := newTestEnv(t, WithWatch(&mockWatchService{}, ""))
	tests := []struct {
		name string
		body interface{}
		want int
	}{
		{"missing path", map[string]string{}, http.StatusBadRequest},
		{"not found", map[string]string{"path": filepath.Join(t.TempDir(), "nope")}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/api/v1/watch/directories", tt.body)
			if w.Code != tt.want {
				t.Errorf("status: got %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("wrap: %w", models.ErrInvalidRequest), http.StatusBadRequest},
		{extract.ErrUnsupported, http.StatusBadRequest},
		{indexer.ErrEmptyDocument, http.StatusBadRequest},
		{fmt.Errorf("%w: dimension mismatch", store.ErrIndexInsertion), http.StatusBadRequest},
		{storage.ErrNotFound, http.StatusNotFound},
		{embedding.ErrEmbeddingTimeout, http.StatusServiceUnavailable},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
