package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"docqa/config"
	"docqa/internal/adapter/embedding"
	"docqa/internal/adapter/store"
	"docqa/internal/domain"
	"docqa/internal/logger"
	"docqa/internal/port"
	"docqa/internal/usecase"
)

func main() {
	dir := flag.String("dir", ".", "Directory holding the .docqa store")
	doc := flag.String("doc", "", "Document name or hash")
	query := flag.String("q", "", "Query to test")
	topK := flag.Int("k", 5, "Number of results")
	sortByChunkID := flag.Bool("sort", false, "Order results by chunk position")
	flag.Parse()

	if *query == "" || *doc == "" {
		fmt.Println("Usage: go run ./cmd/benchmark -dir . -doc manual.pdf -q \"query\"")
		fmt.Println("\nReports:")
		fmt.Println("  1. Embedding infrastructure (model connection, chunk store)")
		fmt.Println("  2. Similarity of the top matches within the document")
		os.Exit(1)
	}

	cfg, err := config.LoadFromDir(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	ctx := context.Background()

	idx, err := store.OpenBoltIndex(cfg.StorePath(*dir))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening store: %v\n", err)
		os.Exit(1)
	}
	defer idx.Close()

	registry := usecase.NewRegistry()
	if err := registry.Load(ctx, idx); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading registry: %v\n", err)
		os.Exit(1)
	}
	chunks := usecase.NewChunkStore(idx, registry, logger.NewNop())

	hash, err := chunks.ResolveDocument(ctx, *doc)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Unknown document: %v\n", err)
		os.Exit(1)
	}

	embedder, err := setupEmbedding(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Embedding not available: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("RETRIEVAL BENCHMARK")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Chunks stored: %d\n", idx.Count())
	fmt.Printf("Model: %s (%s)\n", embedder.ModelName(), cfg.Embedding.Provider)
	fmt.Printf("Document: %s\n", hash)
	fmt.Println()

	fmt.Printf("Query: \"%s\"\n", *query)
	fmt.Println(strings.Repeat("-", 70))

	queryVec, err := embedder.Embed(ctx, []string{*query}, domain.TaskRetrievalQuery)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Embedding error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Query embedded: %d dimensions\n\n", len(queryVec[0]))

	results, err := chunks.QueryScored(ctx, queryVec[0], hash, *topK, *sortByChunkID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search error: %v\n", err)
		os.Exit(1)
	}
	if len(results) == 0 {
		fmt.Println("No chunks stored for this document.")
		return
	}

	fmt.Printf("Top %d matches:\n\n", len(results))

	totalScore := 0.0
	best := results[0].Score
	for i, r := range results {
		preview := r.Record.Text
		if len(preview) > 150 {
			preview = preview[:150] + "..."
		}

		similarity := r.Score
		totalScore += similarity
		if similarity > best {
			best = similarity
		}

		rating := "LOW"
		if similarity > 0.7 {
			rating = "HIGH"
		} else if similarity > 0.5 {
			rating = "GOOD"
		} else if similarity > 0.3 {
			rating = "OK"
		}

		fmt.Printf("%d. [%s %.3f] chunk %d of %s\n", i+1, rating, similarity, r.Record.Metadata.ChunkID, r.Record.Metadata.Source)
		fmt.Printf("   %s\n\n", preview)
	}

	avgScore := totalScore / float64(len(results))
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("QUALITY METRICS:\n")
	fmt.Printf("  Average similarity: %.3f\n", avgScore)
	fmt.Printf("  Best similarity:    %.3f\n", best)

	if avgScore > 0.5 {
		fmt.Println("  Status: GOOD - retrieval working well")
	} else if avgScore > 0.3 {
		fmt.Println("  Status: OK - results are somewhat related")
	} else {
		fmt.Println("  Status: POOR - may need better embeddings or re-ingestion")
	}
}

func setupEmbedding(cfg *config.Config) (port.Embedder, error) {
	ec := cfg.Embedding
	if ec.Provider == "local" {
		return embedding.NewLocalEmbedder(ec.Dimension), nil
	}
	emb, err := embedding.NewOpenAIEmbedder(embedding.OpenAIOptions{
		Provider: ec.Provider,
		APIKey:   os.Getenv(ec.APIKeyEnv),
		Model:    ec.Model,
		BaseURL:  ec.BaseURL,
		Timeout:  config.Seconds(ec.TimeoutSecs),
	})
	if err != nil {
		return nil, fmt.Errorf("embedder init failed: %w", err)
	}
	return emb, nil
}
