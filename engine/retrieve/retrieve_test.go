package retrieve

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ListingLensAI/listinglens-mvp/engine/catalog"
	"github.com/ListingLensAI/listinglens-mvp/engine/semantic"
)

func spineCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.New(
		[]catalog.Entry{
			{
				ID: "1.15", Title: "Disorders of the skeletal spine", Category: "Musculoskeletal",
				RawText: "Documented by evidence of nerve root compromise.",
				Criteria: []catalog.Criterion{
					{Label: "A", Description: "Nerve root compromise", EvidenceHint: "imaging"},
				},
			},
			{
				ID: "1.16", Title: "Lumbar spinal stenosis", Category: "Musculoskeletal",
				RawText: "Compromise of the cauda equina.",
				Criteria: []catalog.Criterion{
					{Label: "A", Description: "Cauda equina compromise", EvidenceHint: "imaging"},
				},
			},
			{
				ID: "2.02", Title: "Loss of central visual acuity", Category: "Special Senses",
				RawText: "Remaining vision of 20/200 or less.",
				Criteria: []catalog.Criterion{
					{Label: "A", Description: "Acuity threshold", EvidenceHint: "acuity exam"},
				},
			},
		}, nil)
	if err != nil {
		t.Fatal(err)
	}
	return cat
}

// fakeSearcher returns a fixed ranking regardless of the embedding.
type fakeSearcher struct {
	results  []semantic.SearchResult
	searches int
	err      error
}

func (f *fakeSearcher) Search(_ context.Context, _ []float32, topK int) ([]semantic.SearchResult, error) {
	f.searches++
	if f.err != nil {
		return nil, f.err
	}
	if len(f.results) > topK {
		return f.results[:topK], nil
	}
	return f.results, nil
}

type fakeEmbedder struct {
	model string
	err   error
}

func (f *fakeEmbedder) Embed(context.Context, string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2}, nil
}

func (f *fakeEmbedder) Model() string {
	if f.model == "" {
		return "nomic-embed-text"
	}
	return f.model
}

func snapshotFor(t *testing.T) *Snapshot {
	t.Helper()
	return &Snapshot{
		Catalog:        spineCatalog(t),
		EmbeddingModel: "nomic-embed-text",
		IndexedAt:      time.Now(),
	}
}

func TestRetrieveEmptyIndex(t *testing.T) {
	r := New(&fakeSearcher{}, &fakeEmbedder{}, nil)
	var emptyErr *EmptyIndexError
	if _, _, err := r.Retrieve(context.Background(), "chronic back pain", 3); !errors.As(err, &emptyErr) {
		t.Fatalf("err = %v, want EmptyIndexError", err)
	}
}

func TestRetrieveModelMismatch(t *testing.T) {
	r := New(&fakeSearcher{}, &fakeEmbedder{model: "all-minilm"}, nil)
	r.Publish(snapshotFor(t))

	var mismatch *ModelMismatchError
	_, _, err := r.Retrieve(context.Background(), "chronic back pain radiating to the leg", 3)
	if !errors.As(err, &mismatch) {
		t.Fatalf("err = %v, want ModelMismatchError", err)
	}
	if mismatch.IndexModel != "nomic-embed-text" || mismatch.QueryModel != "all-minilm" {
		t.Fatalf("mismatch = %+v", mismatch)
	}
}

func TestRetrieveReturnsServingSnapshot(t *testing.T) {
	store := &fakeSearcher{results: []semantic.SearchResult{
		{ID: "p1", EntryID: "1.15", Score: 0.9},
	}}
	r := New(store, &fakeEmbedder{}, nil)
	published := snapshotFor(t)
	r.Publish(published)

	_, snap, err := r.Retrieve(context.Background(), "chronic back pain", 3)
	if err != nil {
		t.Fatal(err)
	}
	if snap != published {
		t.Fatal("returned snapshot is not the one retrieval ranked against")
	}
}

func TestRetrieveNerveRootRanksFirst(t *testing.T) {
	store := &fakeSearcher{results: []semantic.SearchResult{
		{ID: "p1", EntryID: "1.15", DocType: semantic.DocTypeEntry, Score: 0.91},
		{ID: "p2", EntryID: "1.16", DocType: semantic.DocTypeEntry, Score: 0.74},
		{ID: "p3", EntryID: "2.02", DocType: semantic.DocTypeEntry, Score: 0.45},
	}}
	r := New(store, &fakeEmbedder{}, nil)
	r.Publish(snapshotFor(t))

	got, _, err := r.Retrieve(context.Background(), "disc herniation compressing nerve root", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) == 0 || got[0].EntryID != "1.15" {
		t.Fatalf("results = %+v, want 1.15 first", got)
	}
}

func TestRetrieveDropsLowSimilarityNoise(t *testing.T) {
	store := &fakeSearcher{results: []semantic.SearchResult{
		{ID: "p1", EntryID: "1.15", Score: 0.8},
		{ID: "p2", EntryID: "1.16", Score: 0.82},
		{ID: "p3", EntryID: "2.02", Score: 0.81},
		{ID: "p4", EntryID: "14.09", Score: 0.05},
	}}
	r := New(store, &fakeEmbedder{}, nil)
	r.Publish(snapshotFor(t))

	got, _, err := r.Retrieve(context.Background(), "chronic widespread joint pain", 4)
	if err != nil {
		t.Fatal(err)
	}
	for _, res := range got {
		if res.ID == "p4" {
			t.Fatal("noise result below the similarity floor was kept")
		}
	}
}

func TestRetrieveTiesBreakByCatalogOrder(t *testing.T) {
	store := &fakeSearcher{results: []semantic.SearchResult{
		{ID: "p2", EntryID: "1.16", Score: 0.8},
		{ID: "p1", EntryID: "1.15", Score: 0.8},
	}}
	r := New(store, &fakeEmbedder{}, nil)
	r.Publish(snapshotFor(t))

	got, _, err := r.Retrieve(context.Background(), "lumbar spinal problems with pain", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].EntryID != "1.15" || got[1].EntryID != "1.16" {
		t.Fatalf("tie order = %v %v, want 1.15 then 1.16", got[0].EntryID, got[1].EntryID)
	}
}

func TestRetrieveDeterministic(t *testing.T) {
	store := &fakeSearcher{results: []semantic.SearchResult{
		{ID: "p1", EntryID: "1.15", Score: 0.9},
		{ID: "p2", EntryID: "1.16", Score: 0.7},
	}}
	r := New(store, &fakeEmbedder{}, nil)
	r.Publish(snapshotFor(t))

	first, _, err := r.Retrieve(context.Background(), "degenerative disc disease of the spine", 3)
	if err != nil {
		t.Fatal(err)
	}
	second, _, err := r.Retrieve(context.Background(), "degenerative disc disease of the spine", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != len(second) {
		t.Fatalf("lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Fatalf("rank %d differs: %s vs %s", i, first[i].ID, second[i].ID)
		}
	}
}

func TestRetrieveRunsSubQueriesPerConditionFamily(t *testing.T) {
	store := &fakeSearcher{results: []semantic.SearchResult{
		{ID: "p1", EntryID: "1.15", Score: 0.9},
	}}
	r := New(store, &fakeEmbedder{}, nil)
	r.Publish(snapshotFor(t))

	// diabetes + neuropathy + vision should fan out beyond the base query
	findings := "Patient has diabetes with peripheral neuropathy and progressive vision loss."
	if _, _, err := r.Retrieve(context.Background(), findings, 3); err != nil {
		t.Fatal(err)
	}
	if store.searches != 4 {
		t.Fatalf("searches = %d, want 1 base + 3 sub-queries", store.searches)
	}
}

func TestExpandQueryWordBoundaries(t *testing.T) {
	// "disc" inside "discrimination" must not trigger the spine family
	if got := expandQuery("a case about employment discrimination"); len(got) != 0 {
		t.Fatalf("sub-queries = %v, want none", got)
	}
	got := expandQuery("MRI shows a herniated disc at L4-L5")
	if len(got) != 1 || !strings.Contains(got[0], "disorders of the spine") {
		t.Fatalf("sub-queries = %v", got)
	}
}

func TestRetrieveCapsTotal(t *testing.T) {
	var many []semantic.SearchResult
	ids := []string{"1.15", "1.16", "2.02"}
	for i := 0; i < 12; i++ {
		many = append(many, semantic.SearchResult{
			ID:      string(rune('a' + i)),
			EntryID: ids[i%len(ids)],
			Score:   0.9 - float32(i)*0.01,
		})
	}
	store := &fakeSearcher{results: many}
	r := New(store, &fakeEmbedder{}, nil)
	r.Publish(snapshotFor(t))

	got, _, err := r.Retrieve(context.Background(), "diabetes with neuropathy and back pain", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) > 6 {
		t.Fatalf("returned %d results, cap is 2k = 6", len(got))
	}
}
