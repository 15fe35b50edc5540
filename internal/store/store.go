// Package store persists embedded page chunks per bot and serves
// similarity-ranked retrieval over them.
package store

import (
	"context"
	"fmt"

	"github.com/sitebot/sitebot/internal/config"
)

// Document is one retrievable unit of crawled content: a token-bounded chunk
// of a page's text together with its embedding vector.
type Document struct {
	ID        string
	BotID     int
	URL       string
	Text      string
	Embedding []float32
}

// ScoredDocument pairs a document with its cosine similarity to a query
// vector, in [-1, 1].
type ScoredDocument struct {
	Document
	Similarity float64
}

// DocumentStore is the persistence contract shared by backends. Retrieval
// returns only documents whose similarity exceeds threshold, ordered by
// descending similarity, capped at topK when topK > 0.
type DocumentStore interface {
	EnsureSchema(ctx context.Context) error
	SaveDocument(ctx context.Context, doc *Document) error
	SearchSimilar(ctx context.Context, botID int, query []float32, threshold float64, topK int) ([]ScoredDocument, error)
	Close() error
}

// Open builds the configured backend. Backends not listed in StorageConfig
// are rejected rather than silently mapped to a default.
func Open(cfg config.StorageConfig, dimension int) (DocumentStore, error) {
	switch cfg.Backend {
	case "", "postgres":
		return NewPostgres(cfg.PostgresDSN, dimension)
	case "qdrant":
		return NewQdrant(cfg.QdrantHost, cfg.QdrantPort, dimension)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
