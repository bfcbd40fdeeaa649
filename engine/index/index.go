package index

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/ListingLensAI/listinglens-mvp/engine/catalog"
	"github.com/ListingLensAI/listinglens-mvp/engine/semantic"
	"github.com/ListingLensAI/listinglens-mvp/pkg/fn"
)

const (
	// ReindexedSubject is the NATS subject announcing a completed rebuild.
	ReindexedSubject = "catalog.reindexed"
	// UpsertBatchSize is the max records per vector store write.
	UpsertBatchSize = 100
)

// ReindexedEvent is published after a successful rebuild so serving
// processes can swap in a fresh snapshot.
type ReindexedEvent struct {
	EmbeddingModel string    `json:"embedding_model"`
	Docs           int       `json:"docs"`
	IndexedAt      time.Time `json:"indexed_at"`
}

// Embedder produces fixed-length vectors for text. Model identifies the
// embedding model so index-time and query-time embeddings can be checked
// for consistency.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Model() string
}

// Writer is the vector store surface the rebuild needs.
type Writer interface {
	Recreate(ctx context.Context, dims int) error
	Upsert(ctx context.Context, records []semantic.VectorRecord) error
}

// Builder rebuilds the vector index from a validated catalog.
type Builder struct {
	store    Writer
	embedder Embedder
	limiter  *rate.Limiter
	workers  int
	retry    fn.RetryOpts
	log      *slog.Logger
}

// Opts configures a Builder.
type Opts struct {
	// EmbedRate caps embedding calls per second. Zero means unlimited.
	EmbedRate float64
	// Workers is the embedding concurrency. Zero means 4.
	Workers int
	Logger  *slog.Logger
}

// NewBuilder creates a Builder around a vector store and embedder.
func NewBuilder(store Writer, embedder Embedder, opts Opts) *Builder {
	lim := rate.NewLimiter(rate.Inf, 1)
	if opts.EmbedRate > 0 {
		lim = rate.NewLimiter(rate.Limit(opts.EmbedRate), 1)
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = 4
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Builder{
		store:    store,
		embedder: embedder,
		limiter:  lim,
		workers:  workers,
		retry:    fn.DefaultRetry(),
		log:      log,
	}
}

// --- Pipeline stages ---

type embeddedDocs struct {
	docs       []Document
	embeddings [][]float32
}

// buildStage flattens the catalog into indexable documents.
func buildStage(_ context.Context, cat *catalog.Catalog) fn.Result[[]Document] {
	docs := BuildDocs(cat)
	if len(docs) == 0 {
		return fn.Errf[[]Document]("index: catalog produced no documents")
	}
	return fn.Ok(docs)
}

// embedStage embeds every document before anything is written.
func (b *Builder) embedStage(ctx context.Context, docs []Document) fn.Result[embeddedDocs] {
	embeddings, err := fn.ParMapResult(ctx, b.workers, docs, b.embedDoc)
	if err != nil {
		return fn.Err[embeddedDocs](fmt.Errorf("index: embed: %w", err))
	}
	return fn.Ok(embeddedDocs{docs: docs, embeddings: embeddings})
}

// writeStage drops the collection and writes the new records in batches.
// It runs only after embedStage succeeded, so a failed rebuild leaves the
// previous index intact.
func (b *Builder) writeStage(ctx context.Context, ed embeddedDocs) fn.Result[*ReindexedEvent] {
	if err := b.store.Recreate(ctx, len(ed.embeddings[0])); err != nil {
		return fn.Err[*ReindexedEvent](fmt.Errorf("index: recreate collection: %w", err))
	}

	records := make([]semantic.VectorRecord, len(ed.docs))
	for i, d := range ed.docs {
		records[i] = d.record(ed.embeddings[i])
	}
	for start := 0; start < len(records); start += UpsertBatchSize {
		end := min(start+UpsertBatchSize, len(records))
		if err := b.store.Upsert(ctx, records[start:end]); err != nil {
			return fn.Err[*ReindexedEvent](fmt.Errorf("index: upsert batch at %d: %w", start, err))
		}
	}

	return fn.Ok(&ReindexedEvent{
		EmbeddingModel: b.embedder.Model(),
		Docs:           len(ed.docs),
		IndexedAt:      time.Now().UTC(),
	})
}

// Rebuild drops the existing collection and reindexes the catalog.
// The first embedding determines the vector dimensionality.
func (b *Builder) Rebuild(ctx context.Context, cat *catalog.Catalog) (*ReindexedEvent, error) {
	b.log.Info("index.rebuild.start", "entries", cat.Len(), "model", b.embedder.Model())

	build := fn.Stage[*catalog.Catalog, []Document](buildStage)
	embed := fn.Stage[[]Document, embeddedDocs](b.embedStage)
	write := fn.Stage[embeddedDocs, *ReindexedEvent](b.writeStage)
	pipeline := fn.Then(
		fn.Then(
			fn.TracedStage("index.docs", build),
			fn.TracedStage("index.embed", embed),
		),
		fn.TracedStage("index.write", write),
	)

	ev, err := pipeline(ctx, cat).Unwrap()
	if err != nil {
		return nil, err
	}
	b.log.Info("index.rebuild.done", "docs", ev.Docs)
	return ev, nil
}

func (b *Builder) embedDoc(ctx context.Context, d Document) fn.Result[[]float32] {
	return fn.FromPair(fn.Retry(ctx, b.retry, func(ctx context.Context) ([]float32, error) {
		if err := b.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		return b.embedder.Embed(ctx, d.Content)
	}))
}
