// Package main implements the ListingLens API server.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/ListingLensAI/listinglens-mvp/engine/assess"
	"github.com/ListingLensAI/listinglens-mvp/engine/catalog"
	"github.com/ListingLensAI/listinglens-mvp/engine/graph"
	"github.com/ListingLensAI/listinglens-mvp/engine/index"
	"github.com/ListingLensAI/listinglens-mvp/engine/judge"
	"github.com/ListingLensAI/listinglens-mvp/engine/retrieve"
	"github.com/ListingLensAI/listinglens-mvp/engine/semantic"
	"github.com/ListingLensAI/listinglens-mvp/engine/verdict"
	"github.com/ListingLensAI/listinglens-mvp/pkg/metrics"
	"github.com/ListingLensAI/listinglens-mvp/pkg/mid"
	"github.com/ListingLensAI/listinglens-mvp/pkg/natsutil"
	"github.com/ListingLensAI/listinglens-mvp/pkg/ollama"
	"github.com/ListingLensAI/listinglens-mvp/pkg/resilience"
)

// Config holds all environment-based configuration.
type Config struct {
	Port         string
	OllamaURL    string
	ChatModel    string
	EmbedModel   string
	Neo4jURL     string
	Neo4jUser    string
	Neo4jPass    string
	QdrantURL    string
	Collection   string
	NATSURL      string
	EntriesPath  string
	IntrosPath   string
	CORSOrigin   string
	TopK         int
	JudgeTimeout time.Duration
}

func loadConfig() Config {
	return Config{
		Port:         envOr("PORT", "8080"),
		OllamaURL:    envOr("OLLAMA_URL", "http://localhost:11434"),
		ChatModel:    envOr("CHAT_MODEL", "llama3.1:8b"),
		EmbedModel:   envOr("EMBED_MODEL", "nomic-embed-text"),
		Neo4jURL:     envOr("NEO4J_URL", "neo4j://localhost:7687"),
		Neo4jUser:    envOr("NEO4J_USER", "neo4j"),
		Neo4jPass:    envOr("NEO4J_PASS", "password"),
		QdrantURL:    envOr("QDRANT_URL", "localhost:6334"),
		Collection:   envOr("QDRANT_COLLECTION", "listings"),
		NATSURL:      envOr("NATS_URL", nats.DefaultURL),
		EntriesPath:  envOr("CATALOG_ENTRIES", "data/entries.json"),
		IntrosPath:   envOr("CATALOG_INTROS", "data/intros.json"),
		CORSOrigin:   envOr("CORS_ORIGIN", "*"),
		TopK:         envIntOr("RETRIEVE_TOP_K", 5),
		JudgeTimeout: envDurationOr("JUDGMENT_TIMEOUT", 3*time.Minute),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := loadConfig()

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Connect to Qdrant ---
	vectorStore, err := semantic.New(cfg.QdrantURL, cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer vectorStore.Close()

	// --- Connect to Neo4j (cross-reference enrichment, optional) ---
	var related assess.RelatedFinder
	crossRefs, err := graph.New(cfg.Neo4jURL, cfg.Neo4jUser, cfg.Neo4jPass)
	if err != nil {
		logger.Warn("neo4j unavailable, cross-reference enrichment disabled", "err", err)
	} else {
		defer crossRefs.Close(ctx)
		related = crossRefs
	}

	// --- Build the retrieval and judgment clients ---
	embedder := ollama.NewEmbedClient(cfg.OllamaURL, cfg.EmbedModel)
	generator := ollama.NewChatClient(cfg.OllamaURL, cfg.ChatModel, 0.1)

	retriever := retrieve.New(vectorStore, embedder, logger)
	if err := publishSnapshot(ctx, cfg, vectorStore, retriever, embedder.Model(), logger); err != nil {
		logger.Warn("no catalog snapshot at startup, waiting for reindex event", "err", err)
	}

	reg := metrics.New()
	svc := assess.New(retriever, generator,
		related,
		resilience.NewBreaker(resilience.DefaultBreakerOpts),
		resilience.NewLimiter(resilience.LimiterOpts{Rate: 1, Burst: 3}),
		assess.Opts{
			TopK:            cfg.TopK,
			JudgmentTimeout: cfg.JudgeTimeout,
			Logger:          logger,
			Registry:        reg,
		})

	// --- Subscribe to reindex events ---
	nc, err := nats.Connect(cfg.NATSURL, nats.Name("listinglens-api"))
	if err != nil {
		logger.Warn("nats unavailable, catalog reloads require a restart", "err", err)
	} else {
		defer nc.Close()
		sub, err := natsutil.Subscribe(nc, index.ReindexedSubject, func(ctx context.Context, ev index.ReindexedEvent) {
			cat, err := catalog.LoadFiles(cfg.EntriesPath, cfg.IntrosPath)
			if err != nil {
				logger.Error("catalog reload failed, keeping previous snapshot", "err", err)
				return
			}
			retriever.Publish(&retrieve.Snapshot{
				Catalog:        cat,
				EmbeddingModel: ev.EmbeddingModel,
				IndexedAt:      ev.IndexedAt,
			})
			logger.Info("catalog snapshot refreshed", "entries", cat.Len(), "docs", ev.Docs)
		})
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", index.ReindexedSubject, err)
		}
		defer sub.Unsubscribe()
	}

	// --- Build HTTP server ---
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.HandleFunc("POST /api/analyze", handleAnalyze(svc, logger))
	mux.HandleFunc("GET /api/listings", handleListings(retriever))
	mux.HandleFunc("GET /api/listings/{id}", handleListing(retriever))
	mux.Handle("GET /metrics", reg.Handler())

	handler := mid.Chain(mux,
		mid.Recover(logger),
		mid.Logger(logger),
		mid.CORS(cfg.CORSOrigin),
		mid.OTel("listinglens-api"),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.JudgeTimeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// --- Graceful shutdown ---
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

// publishSnapshot seeds the retriever from the catalog files when the
// vector collection already exists, so a restarted API serves queries
// without waiting for the next reindex.
func publishSnapshot(ctx context.Context, cfg Config, store *semantic.VectorStore, retriever *retrieve.Retriever, model string, logger *slog.Logger) error {
	exists, err := store.Exists(ctx)
	if err != nil {
		return fmt.Errorf("check collection: %w", err)
	}
	if !exists {
		return fmt.Errorf("collection %q not found", cfg.Collection)
	}
	cat, err := catalog.LoadFiles(cfg.EntriesPath, cfg.IntrosPath)
	if err != nil {
		return err
	}
	retriever.Publish(&retrieve.Snapshot{
		Catalog:        cat,
		EmbeddingModel: model,
		IndexedAt:      time.Now().UTC(),
	})
	logger.Info("catalog snapshot loaded", "entries", cat.Len())
	return nil
}

// --- Handlers ---

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// AnalyzeRequest is the JSON body for POST /api/analyze.
type AnalyzeRequest struct {
	Findings string `json:"findings"`
}

// AnalyzeResponse is the JSON response for POST /api/analyze.
type AnalyzeResponse struct {
	HTML           string                 `json:"html"`
	MatchedEntries []string               `json:"matched_entries"`
	Outcomes       []verdict.EntryOutcome `json:"outcomes"`
	Sources        []assess.Source        `json:"sources"`
	Degraded       bool                   `json:"degraded"`
	Warnings       []string               `json:"warnings,omitempty"`
	Disclaimer     string                 `json:"disclaimer"`
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func handleAnalyze(svc *assess.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AnalyzeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body", Code: "bad_request"})
			return
		}

		report, err := svc.Analyze(r.Context(), req.Findings)
		if err != nil {
			writeAnalyzeError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, AnalyzeResponse{
			HTML:           report.HTML,
			MatchedEntries: report.Verdict.MatchedEntries,
			Outcomes:       report.Outcomes,
			Sources:        report.Sources,
			Degraded:       report.Verdict.Degraded,
			Warnings:       report.Verdict.Warnings,
			Disclaimer:     report.Disclaimer,
		})
	}
}

// writeAnalyzeError maps pipeline errors onto HTTP statuses so callers
// can tell bad input from engine faults from infrastructure gaps.
func writeAnalyzeError(w http.ResponseWriter, err error, logger *slog.Logger) {
	var (
		noEvidence *judge.NoEvidenceError
		emptyIndex *retrieve.EmptyIndexError
		mismatch   *retrieve.ModelMismatchError
		judgment   *assess.JudgmentError
	)
	switch {
	case errors.As(err, &noEvidence):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: noEvidence.Error(), Code: "no_evidence"})
	case errors.Is(err, assess.ErrNoMatches):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: err.Error(), Code: "no_matches"})
	case errors.As(err, &emptyIndex):
		logger.Error("analyze against empty index", "err", err)
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: emptyIndex.Error(), Code: "empty_index"})
	case errors.As(err, &mismatch):
		logger.Error("embedding model mismatch", "err", err)
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: mismatch.Error(), Code: "model_mismatch"})
	case errors.Is(err, resilience.ErrRateLimited):
		writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "judgment engine is saturated, try again shortly", Code: "rate_limited"})
	case errors.As(err, &judgment):
		logger.Error("judgment engine failed", "err", err)
		writeJSON(w, http.StatusBadGateway, errorBody{Error: "judgment engine unavailable", Code: "judgment_failed"})
	default:
		logger.Error("analyze failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal server error", Code: "internal"})
	}
}

func handleListings(retriever *retrieve.Retriever) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := retriever.Snapshot()
		if snap == nil {
			writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "catalog not loaded", Code: "empty_index"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"listings": snap.Catalog.Refs()})
	}
}

func handleListing(retriever *retrieve.Retriever) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := retriever.Snapshot()
		if snap == nil {
			writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "catalog not loaded", Code: "empty_index"})
			return
		}
		entry, err := snap.Catalog.Lookup(r.PathValue("id"))
		if err != nil {
			writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error(), Code: "not_found"})
			return
		}
		writeJSON(w, http.StatusOK, entry)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
