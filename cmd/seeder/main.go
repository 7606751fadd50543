package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"

	"github.com/poiesic/evidentia"
	"github.com/poiesic/evidentia/ai"
	"github.com/poiesic/evidentia/pipeline"
)

var vendors = []string{
	"Acme Office Supply",
	"Northwind Logistics",
	"Cascade Catering",
	"Summit IT Services",
	"Harbor Travel Group",
	"Pioneer Facilities",
	"Bluebird Print Co",
	"Granite Legal Partners",
}

var departments = []string{
	"finance",
	"procurement",
	"facilities",
	"engineering",
	"marketing",
}

// Seeder for the audit pipeline: generates synthetic invoices with
// labeled numeric fields so audits have something to chew on.
func main() {
	dataDir := flag.String("data", "./data", "data directory")
	count := flag.Int("count", 50, "number of documents to generate")
	embeddingHost := flag.String("embedding-host", "http://localhost:11434/v1", "embedding service host URL")
	embeddingModel := flag.String("embedding-model", "embeddinggemma", "embedding model name")
	seed := flag.Int64("seed", 42, "random seed")
	flag.Parse()

	cfg := ai.NewConfig(
		ai.WithHost(*embeddingHost),
		ai.WithEmbeddingModel(*embeddingModel),
	)
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid AI configuration", "err", err)
		os.Exit(1)
	}

	sys, err := evidentia.Open(*dataDir, evidentia.WithAIConfig(cfg))
	if err != nil {
		slog.Error("opening system", "err", err)
		os.Exit(1)
	}
	defer sys.Close()

	rng := rand.New(rand.NewSource(*seed))
	docs := make([]pipeline.RawDocument, *count)
	for i := range docs {
		vendor := vendors[rng.Intn(len(vendors))]
		department := departments[rng.Intn(len(departments))]
		total := float64(rng.Intn(500000)) / 100

		// A few negative totals so validation warnings show up in results.
		if rng.Intn(20) == 0 {
			total = -total
		}

		docs[i] = pipeline.RawDocument{
			Title:   fmt.Sprintf("Invoice %04d from %s", i+1, vendor),
			Content: fmt.Sprintf("Invoice issued by %s for the %s department. Total: %.2f. Count: %d line items.", vendor, department, total, rng.Intn(12)+1),
			Source:  "seeder",
			Metadata: map[string]string{
				"vendor":     vendor,
				"department": department,
			},
		}
	}

	batch, err := sys.ProcessBatch(context.Background(), docs)
	if err != nil {
		slog.Error("seeding failed", "err", err)
		os.Exit(1)
	}

	slog.Info("seeding complete",
		"total", batch.Total,
		"successful", batch.Successful,
		"failed", batch.Failed)
}
