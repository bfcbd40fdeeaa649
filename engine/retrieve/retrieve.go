// Package retrieve ranks catalog entries against free-text findings
// using the vector store. Retrieval reads an immutable snapshot that is
// swapped wholesale on reindex, so concurrent queries never observe a
// half-rebuilt index.
package retrieve

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"github.com/ListingLensAI/listinglens-mvp/engine/catalog"
	"github.com/ListingLensAI/listinglens-mvp/engine/semantic"
)

const (
	// guaranteedPerQuery is how many top results of each sub-query are
	// always kept, so one condition cannot drown out another.
	guaranteedPerQuery = 3
	// DefaultMinScore discards matches below this cosine similarity.
	DefaultMinScore = 0.4
)

// Snapshot is the immutable catalog and index identity a retriever
// serves from. A rebuild publishes a whole new snapshot.
type Snapshot struct {
	Catalog        *catalog.Catalog
	EmbeddingModel string
	IndexedAt      time.Time
}

// Embedder mirrors the query-time embedding capability.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Model() string
}

// Searcher is the vector store surface retrieval needs.
type Searcher interface {
	Search(ctx context.Context, embedding []float32, topK int) ([]semantic.SearchResult, error)
}

// Retriever runs multi-query semantic retrieval over the snapshot.
type Retriever struct {
	store    Searcher
	embedder Embedder
	snap     atomic.Pointer[Snapshot]
	minScore float32
	log      *slog.Logger
}

// New creates a Retriever with no snapshot published yet.
func New(store Searcher, embedder Embedder, log *slog.Logger) *Retriever {
	if log == nil {
		log = slog.Default()
	}
	return &Retriever{
		store:    store,
		embedder: embedder,
		minScore: DefaultMinScore,
		log:      log,
	}
}

// Publish atomically swaps in a new snapshot. Readers see either the
// old or the new snapshot, never a mix.
func (r *Retriever) Publish(s *Snapshot) {
	r.snap.Store(s)
	if s != nil {
		r.log.Info("retrieve.snapshot.published",
			"entries", s.Catalog.Len(),
			"embedding_model", s.EmbeddingModel,
			"indexed_at", s.IndexedAt,
		)
	}
}

// Snapshot returns the current snapshot, or nil before the first Publish.
func (r *Retriever) Snapshot() *Snapshot {
	return r.snap.Load()
}

// Retrieve embeds the findings plus one focused sub-query per detected
// condition family, searches each, and merges: the top results of every
// sub-query are guaranteed a slot, low-similarity noise is dropped, and
// the total is capped at 2k. Results are ordered by descending score
// with ties broken by catalog insertion order.
//
// The snapshot the results were ranked against is returned alongside
// them. Callers resolving result IDs must use that snapshot, not a
// fresh load, so a concurrent Publish cannot mix index generations.
func (r *Retriever) Retrieve(ctx context.Context, findings string, k int) ([]semantic.SearchResult, *Snapshot, error) {
	snap := r.snap.Load()
	if snap == nil {
		return nil, nil, &EmptyIndexError{}
	}
	if got := r.embedder.Model(); got != snap.EmbeddingModel {
		return nil, nil, &ModelMismatchError{IndexModel: snap.EmbeddingModel, QueryModel: got}
	}
	if k <= 0 {
		k = 5
	}

	queries := append([]string{findings}, expandQuery(findings)...)

	type candidate struct {
		result   semantic.SearchResult
		bestRank int
	}
	seen := make(map[string]*candidate)

	for _, q := range queries {
		embedding, err := r.embedder.Embed(ctx, q)
		if err != nil {
			return nil, nil, fmt.Errorf("retrieve: embed query: %w", err)
		}
		results, err := r.store.Search(ctx, embedding, k)
		if err != nil {
			return nil, nil, fmt.Errorf("retrieve: search: %w", err)
		}
		for rank, res := range results {
			c, ok := seen[res.ID]
			if !ok {
				seen[res.ID] = &candidate{result: res, bestRank: rank}
				continue
			}
			if res.Score > c.result.Score {
				c.result.Score = res.Score
			}
			if rank < c.bestRank {
				c.bestRank = rank
			}
		}
	}

	var guaranteed, overflow []semantic.SearchResult
	for _, c := range seen {
		if c.result.Score < r.minScore {
			continue
		}
		if c.bestRank < guaranteedPerQuery {
			guaranteed = append(guaranteed, c.result)
		} else {
			overflow = append(overflow, c.result)
		}
	}

	r.sortResults(snap, overflow)
	budget := k*2 - len(guaranteed)
	if budget < 0 {
		budget = 0
	}
	if len(overflow) > budget {
		overflow = overflow[:budget]
	}

	merged := append(guaranteed, overflow...)
	r.sortResults(snap, merged)

	r.log.Debug("retrieve.done",
		"queries", len(queries),
		"candidates", len(seen),
		"returned", len(merged),
	)
	return merged, snap, nil
}

// sortResults orders by descending score, then by catalog insertion
// order so equal-score results are deterministic.
func (r *Retriever) sortResults(snap *Snapshot, results []semantic.SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return snap.Catalog.Position(results[i].EntryID) < snap.Catalog.Position(results[j].EntryID)
	})
}
