//go:build ignore

// Generates a synthetic document corpus for indexing benchmarks.
// Usage: go run scripts/generate-test-corpus.go -files 500 -output testdata/bench
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
)

var (
	numFiles  = flag.Int("files", 500, "Number of documents to generate")
	outputDir = flag.String("output", "testdata/bench", "Output directory")
	seed      = flag.Int64("seed", 42, "Random seed for reproducibility")
	paras     = flag.Int("paragraphs", 8, "Paragraphs per document")
)

var topics = []string{
	"database replication", "incident response", "capacity planning",
	"backup verification", "deployment pipeline", "access control",
	"query optimization", "cache invalidation", "schema migration",
	"alert routing", "log retention", "service discovery",
}

var sentences = []string{
	"The %s runbook covers the standard escalation path for the on-call rotation.",
	"Changes to %s require a review from the owning team before rollout.",
	"Historical metrics show %s issues cluster around quarterly traffic peaks.",
	"The %s checklist was last audited in the previous review cycle.",
	"Teams should document %s exceptions in the shared operations log.",
	"Automated checks validate %s settings on every merge to the main branch.",
	"The %s dashboard aggregates signals from all production regions.",
	"A failed %s step blocks the release until the owning engineer signs off.",
}

func main() {
	flag.Parse()
	rng := rand.New(rand.NewSource(*seed))

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "create output dir: %v\n", err)
		os.Exit(1)
	}

	for i := 0; i < *numFiles; i++ {
		topic := topics[rng.Intn(len(topics))]
		name := fmt.Sprintf("%s-%04d.md", strings.ReplaceAll(topic, " ", "-"), i)

		var b strings.Builder
		fmt.Fprintf(&b, "# %s notes %d\n\n", topic, i)
		for p := 0; p < *paras; p++ {
			for s := 0; s < 4; s++ {
				fmt.Fprintf(&b, sentences[rng.Intn(len(sentences))]+" ", topics[rng.Intn(len(topics))])
			}
			b.WriteString("\n\n")
		}

		if err := os.WriteFile(filepath.Join(*outputDir, name), []byte(b.String()), 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "write %s: %v\n", name, err)
			os.Exit(1)
		}
	}
	fmt.Printf("Generated %d documents in %s\n", *numFiles, *outputDir)
}
