// Command index rebuilds the vector index from the catalog files, seeds the
// cross-reference graph, and announces the new index over NATS.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/ListingLensAI/listinglens-mvp/engine/catalog"
	"github.com/ListingLensAI/listinglens-mvp/engine/graph"
	"github.com/ListingLensAI/listinglens-mvp/engine/index"
	"github.com/ListingLensAI/listinglens-mvp/engine/semantic"
	"github.com/ListingLensAI/listinglens-mvp/pkg/natsutil"
	"github.com/ListingLensAI/listinglens-mvp/pkg/ollama"
)

func main() {
	var (
		entriesPath = flag.String("entries", "data/entries.json", "catalog entries JSON file")
		introsPath  = flag.String("intros", "data/intros.json", "category intros JSON file")
		ollamaURL   = flag.String("ollama", "http://localhost:11434", "Ollama base URL")
		embedModel  = flag.String("model", "nomic-embed-text", "Ollama embedding model")
		qdrantAddr  = flag.String("qdrant", "localhost:6334", "Qdrant gRPC address")
		collection  = flag.String("collection", "listings", "Qdrant collection name")
		neo4jURL    = flag.String("neo4j", "neo4j://localhost:7687", "Neo4j bolt URL")
		neo4jUser   = flag.String("neo4j-user", "neo4j", "Neo4j username")
		neo4jPass   = flag.String("neo4j-pass", "password", "Neo4j password")
		natsURL     = flag.String("nats", nats.DefaultURL, "NATS server URL")
		embedRate   = flag.Float64("embed-rate", 10, "embedding calls per second")
		workers     = flag.Int("workers", 4, "concurrent embedding workers")
		skipGraph   = flag.Bool("skip-graph", false, "do not seed the Neo4j cross-reference graph")
		skipNATS    = flag.Bool("skip-nats", false, "do not publish the reindexed event")
	)
	flag.Parse()

	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, config{
		entriesPath: *entriesPath,
		introsPath:  *introsPath,
		ollamaURL:   *ollamaURL,
		embedModel:  *embedModel,
		qdrantAddr:  *qdrantAddr,
		collection:  *collection,
		neo4jURL:    *neo4jURL,
		neo4jUser:   *neo4jUser,
		neo4jPass:   *neo4jPass,
		natsURL:     *natsURL,
		embedRate:   *embedRate,
		workers:     *workers,
		skipGraph:   *skipGraph,
		skipNATS:    *skipNATS,
	}, log); err != nil {
		log.Error("indexing failed", "err", err)
		os.Exit(1)
	}
}

type config struct {
	entriesPath string
	introsPath  string
	ollamaURL   string
	embedModel  string
	qdrantAddr  string
	collection  string
	neo4jURL    string
	neo4jUser   string
	neo4jPass   string
	natsURL     string
	embedRate   float64
	workers     int
	skipGraph   bool
	skipNATS    bool
}

func run(ctx context.Context, cfg config, log *slog.Logger) error {
	start := time.Now()

	// Validation happens at load time. A malformed catalog aborts the run
	// before anything is written.
	cat, err := catalog.LoadFiles(cfg.entriesPath, cfg.introsPath)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	log.Info("catalog loaded", "entries", cat.Len(), "intros", len(cat.Intros()))

	store, err := semantic.New(cfg.qdrantAddr, cfg.collection)
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer store.Close()

	embedder := ollama.NewEmbedClient(cfg.ollamaURL, cfg.embedModel)
	builder := index.NewBuilder(store, embedder, index.Opts{
		EmbedRate: cfg.embedRate,
		Workers:   cfg.workers,
		Logger:    log,
	})

	event, err := builder.Rebuild(ctx, cat)
	if err != nil {
		return fmt.Errorf("rebuild index: %w", err)
	}
	log.Info("index rebuilt", "docs", event.Docs, "model", event.EmbeddingModel, "took", time.Since(start))

	if !cfg.skipGraph {
		if err := seedGraph(ctx, cfg, cat, log); err != nil {
			// The vector index is already live. A missing graph only
			// disables enrichment, so it does not fail the run.
			log.Warn("cross-reference graph not seeded", "err", err)
		}
	}

	if !cfg.skipNATS {
		nc, err := nats.Connect(cfg.natsURL, nats.Name("listinglens-index"))
		if err != nil {
			return fmt.Errorf("nats connect: %w", err)
		}
		defer nc.Close()
		if err := natsutil.Publish(ctx, nc, index.ReindexedSubject, *event); err != nil {
			return fmt.Errorf("publish %s: %w", index.ReindexedSubject, err)
		}
		if err := nc.FlushTimeout(5 * time.Second); err != nil {
			return fmt.Errorf("nats flush: %w", err)
		}
		log.Info("reindexed event published", "subject", index.ReindexedSubject)
	}

	return nil
}

func seedGraph(ctx context.Context, cfg config, cat *catalog.Catalog, log *slog.Logger) error {
	crossRefs, err := graph.New(cfg.neo4jURL, cfg.neo4jUser, cfg.neo4jPass)
	if err != nil {
		return fmt.Errorf("neo4j driver: %w", err)
	}
	defer crossRefs.Close(ctx)

	if err := crossRefs.Seed(ctx, cat); err != nil {
		return fmt.Errorf("seed graph: %w", err)
	}
	log.Info("cross-reference graph seeded", "entries", cat.Len())
	return nil
}
