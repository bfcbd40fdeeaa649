// Command analyze runs a single set of findings through the full pipeline
// and writes the report to stdout. Reads the findings from a file or stdin.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ListingLensAI/listinglens-mvp/engine/assess"
	"github.com/ListingLensAI/listinglens-mvp/engine/catalog"
	"github.com/ListingLensAI/listinglens-mvp/engine/graph"
	"github.com/ListingLensAI/listinglens-mvp/engine/retrieve"
	"github.com/ListingLensAI/listinglens-mvp/engine/semantic"
	"github.com/ListingLensAI/listinglens-mvp/pkg/ollama"
)

func main() {
	var (
		findingsPath = flag.String("f", "-", "findings file, or - for stdin")
		entriesPath  = flag.String("entries", "data/entries.json", "catalog entries JSON file")
		introsPath   = flag.String("intros", "data/intros.json", "category intros JSON file")
		ollamaURL    = flag.String("ollama", "http://localhost:11434", "Ollama base URL")
		chatModel    = flag.String("chat-model", "llama3.1:8b", "Ollama chat model")
		embedModel   = flag.String("embed-model", "nomic-embed-text", "Ollama embedding model")
		qdrantAddr   = flag.String("qdrant", "localhost:6334", "Qdrant gRPC address")
		collection   = flag.String("collection", "listings", "Qdrant collection name")
		neo4jURL     = flag.String("neo4j", "", "Neo4j bolt URL, empty disables cross-references")
		neo4jUser    = flag.String("neo4j-user", "neo4j", "Neo4j username")
		neo4jPass    = flag.String("neo4j-pass", "password", "Neo4j password")
		topK         = flag.Int("k", 5, "retrieval depth")
		timeout      = flag.Duration("timeout", 3*time.Minute, "judgment engine timeout")
		asHTML       = flag.Bool("html", false, "emit the rendered HTML instead of plain text")
	)
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, options{
		findingsPath: *findingsPath,
		entriesPath:  *entriesPath,
		introsPath:   *introsPath,
		ollamaURL:    *ollamaURL,
		chatModel:    *chatModel,
		embedModel:   *embedModel,
		qdrantAddr:   *qdrantAddr,
		collection:   *collection,
		neo4jURL:     *neo4jURL,
		neo4jUser:    *neo4jUser,
		neo4jPass:    *neo4jPass,
		topK:         *topK,
		timeout:      *timeout,
		asHTML:       *asHTML,
	}, log); err != nil {
		log.Error("analyze failed", "err", err)
		os.Exit(1)
	}
}

type options struct {
	findingsPath string
	entriesPath  string
	introsPath   string
	ollamaURL    string
	chatModel    string
	embedModel   string
	qdrantAddr   string
	collection   string
	neo4jURL     string
	neo4jUser    string
	neo4jPass    string
	topK         int
	timeout      time.Duration
	asHTML       bool
}

func run(ctx context.Context, opts options, log *slog.Logger) error {
	findings, err := readFindings(opts.findingsPath)
	if err != nil {
		return err
	}

	cat, err := catalog.LoadFiles(opts.entriesPath, opts.introsPath)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	store, err := semantic.New(opts.qdrantAddr, opts.collection)
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer store.Close()

	var related assess.RelatedFinder
	if opts.neo4jURL != "" {
		crossRefs, err := graph.New(opts.neo4jURL, opts.neo4jUser, opts.neo4jPass)
		if err != nil {
			return fmt.Errorf("neo4j driver: %w", err)
		}
		defer crossRefs.Close(ctx)
		related = crossRefs
	}

	embedder := ollama.NewEmbedClient(opts.ollamaURL, opts.embedModel)
	generator := ollama.NewChatClient(opts.ollamaURL, opts.chatModel, 0.1)

	retriever := retrieve.New(store, embedder, log)
	retriever.Publish(&retrieve.Snapshot{
		Catalog:        cat,
		EmbeddingModel: embedder.Model(),
		IndexedAt:      time.Now().UTC(),
	})

	svc := assess.New(retriever, generator, related, nil, nil, assess.Opts{
		TopK:            opts.topK,
		JudgmentTimeout: opts.timeout,
		Logger:          log,
	})

	report, err := svc.Analyze(ctx, findings)
	if err != nil {
		return err
	}

	if opts.asHTML {
		fmt.Println(report.HTML)
		return nil
	}
	printReport(report)
	return nil
}

func readFindings(path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read findings: %w", err)
	}
	return string(data), nil
}

func printReport(report *assess.Report) {
	if report.Verdict.Degraded {
		fmt.Printf("NOTE: response structure was not fully recognized (%s)\n\n", report.Verdict.DegradedReason)
	}
	for _, w := range report.Verdict.Warnings {
		fmt.Printf("WARNING: %s\n", w)
	}
	if len(report.Verdict.Warnings) > 0 {
		fmt.Println()
	}

	for _, section := range report.Verdict.Sections {
		fmt.Println(strings.ToUpper(section.Title))
		fmt.Println(strings.Repeat("-", len(section.Title)))
		fmt.Println(section.Body)
		fmt.Println()
	}
	if len(report.Verdict.Sections) == 0 {
		fmt.Println(report.Verdict.Raw)
	}

	if len(report.Outcomes) > 0 {
		fmt.Println("CRITERIA ROLLUP")
		fmt.Println("---------------")
		for _, o := range report.Outcomes {
			fmt.Printf("Listing %s: %s\n", o.EntryID, o.Status)
		}
		fmt.Println()
	}

	if len(report.Sources) > 0 {
		fmt.Println("SOURCES")
		fmt.Println("-------")
		for _, s := range report.Sources {
			line := fmt.Sprintf("Listing %s - %s", s.ID, s.Title)
			if s.URL != "" {
				line += " - " + s.URL
			}
			fmt.Println(line)
		}
		fmt.Println()
	}
	fmt.Println(report.Disclaimer)
}
