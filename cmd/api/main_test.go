package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ListingLensAI/listinglens-mvp/engine/assess"
	"github.com/ListingLensAI/listinglens-mvp/engine/catalog"
	"github.com/ListingLensAI/listinglens-mvp/engine/retrieve"
	"github.com/ListingLensAI/listinglens-mvp/engine/semantic"
)

type stubSearcher struct {
	results []semantic.SearchResult
}

func (s *stubSearcher) Search(context.Context, []float32, int) ([]semantic.SearchResult, error) {
	return s.results, nil
}

type stubEmbedder struct{}

func (stubEmbedder) Embed(context.Context, string) ([]float32, error) {
	return []float32{0.1, 0.2}, nil
}

func (stubEmbedder) Model() string { return "test-embed" }

type stubGenerator struct {
	response string
	err      error
}

func (s *stubGenerator) Generate(context.Context, string, string) (string, error) {
	return s.response, s.err
}

const testResponse = `1. POTENTIALLY MATCHING LISTINGS
Listing 1.15 - Disorders of the skeletal spine.
2. CRITERIA ANALYSIS
Listing 1.15:
` + "✅" + ` MET - A. Nerve root compromise shown on MRI.
3. EVIDENCE GAPS
None noted.
4. STRENGTH ASSESSMENT
Listing 1.15: MODERATE.
5. SOURCES
- Listing 1.15 - https://example.org/1.15
`

func testRetriever(t *testing.T, results []semantic.SearchResult) *retrieve.Retriever {
	t.Helper()
	cat, err := catalog.New([]catalog.Entry{
		{
			ID: "1.15", Title: "Disorders of the skeletal spine", Category: "Musculoskeletal",
			RawText:   "A. Nerve root compromise documented by imaging.",
			SourceURL: "https://example.org/1.15",
			Criteria: []catalog.Criterion{
				{Label: "A", Description: "Nerve root compromise", EvidenceHint: "imaging"},
			},
		},
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	logger := slog.New(slog.DiscardHandler)
	r := retrieve.New(&stubSearcher{results: results}, stubEmbedder{}, logger)
	r.Publish(&retrieve.Snapshot{Catalog: cat, EmbeddingModel: "test-embed", IndexedAt: time.Now()})
	return r
}

func spineHit() []semantic.SearchResult {
	return []semantic.SearchResult{{EntryID: "1.15", DocType: semantic.DocTypeEntry, Score: 0.9}}
}

func testService(t *testing.T, r *retrieve.Retriever, g assess.Generator) *assess.Service {
	t.Helper()
	return assess.New(r, g, nil, nil, nil, assess.Opts{
		JudgmentTimeout: time.Second,
		Logger:          slog.New(slog.DiscardHandler),
	})
}

func TestHandleAnalyze(t *testing.T) {
	r := testRetriever(t, spineHit())
	svc := testService(t, r, &stubGenerator{response: testResponse})
	handler := handleAnalyze(svc, slog.New(slog.DiscardHandler))

	body := `{"findings":"MRI shows disc herniation at L4-L5 compressing the L5 nerve root."}`
	req := httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp AnalyzeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.MatchedEntries) != 1 || resp.MatchedEntries[0] != "1.15" {
		t.Fatalf("matched = %v", resp.MatchedEntries)
	}
	if resp.HTML == "" || resp.Disclaimer == "" {
		t.Fatal("response incomplete")
	}
}

func TestHandleAnalyzeShortFindings(t *testing.T) {
	r := testRetriever(t, spineHit())
	svc := testService(t, r, &stubGenerator{response: testResponse})
	handler := handleAnalyze(svc, slog.New(slog.DiscardHandler))

	req := httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(`{"findings":"back pain"}`))
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Code != "no_evidence" {
		t.Fatalf("code = %q", resp.Code)
	}
}

func TestHandleAnalyzeBadBody(t *testing.T) {
	r := testRetriever(t, spineHit())
	svc := testService(t, r, &stubGenerator{response: testResponse})
	handler := handleAnalyze(svc, slog.New(slog.DiscardHandler))

	req := httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader("{broken"))
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestHandleAnalyzeEmptyIndex(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	r := retrieve.New(&stubSearcher{}, stubEmbedder{}, logger)
	svc := testService(t, r, &stubGenerator{response: testResponse})
	handler := handleAnalyze(svc, logger)

	body := `{"findings":"MRI shows disc herniation at L4-L5 compressing the L5 nerve root."}`
	req := httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Code != "empty_index" {
		t.Fatalf("code = %q", resp.Code)
	}
}

func TestHandleAnalyzeNoMatches(t *testing.T) {
	r := testRetriever(t, nil)
	svc := testService(t, r, &stubGenerator{response: testResponse})
	handler := handleAnalyze(svc, slog.New(slog.DiscardHandler))

	body := `{"findings":"unrelated administrative paperwork about an address change request"}`
	req := httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestHandleAnalyzeJudgmentFailure(t *testing.T) {
	r := testRetriever(t, spineHit())
	svc := testService(t, r, &stubGenerator{err: errors.New("engine down")})
	handler := handleAnalyze(svc, slog.New(slog.DiscardHandler))

	body := `{"findings":"MRI shows disc herniation at L4-L5 compressing the L5 nerve root."}`
	req := httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestHandleListings(t *testing.T) {
	r := testRetriever(t, nil)
	handler := handleListings(r)

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/api/listings", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Listings []catalog.Ref `json:"listings"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Listings) != 1 || resp.Listings[0].ID != "1.15" {
		t.Fatalf("listings = %+v", resp.Listings)
	}
}

func TestHandleListingByID(t *testing.T) {
	r := testRetriever(t, nil)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/listings/{id}", handleListing(r))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/listings/1.15", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var entry catalog.Entry
	if err := json.Unmarshal(rec.Body.Bytes(), &entry); err != nil {
		t.Fatal(err)
	}
	if entry.RawText != "A. Nerve root compromise documented by imaging." {
		t.Fatalf("raw text = %q", entry.RawText)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/listings/99.99", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestHandleListingsBeforeSnapshot(t *testing.T) {
	r := retrieve.New(&stubSearcher{}, stubEmbedder{}, slog.New(slog.DiscardHandler))
	handler := handleListings(r)

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/api/listings", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg := loadConfig()
	if cfg.Port != "8080" {
		t.Fatalf("port = %q", cfg.Port)
	}
	if cfg.TopK != 5 || cfg.JudgeTimeout != 3*time.Minute {
		t.Fatalf("cfg = %+v", cfg)
	}
}
