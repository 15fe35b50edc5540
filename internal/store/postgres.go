package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// Postgres stores documents in a pgvector-enabled table. The similarity
// operator runs inside the database, so retrieval ordering and threshold
// filtering are done by the query itself.
type Postgres struct {
	db        *sql.DB
	dimension int
}

// NewPostgres opens a connection pool and verifies the database is reachable.
func NewPostgres(dsn string, dimension int) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", ErrBackendUnreachable, err)
	}

	return &Postgres{db: db, dimension: dimension}, nil
}

// NewPostgresFromDB wraps an existing database handle. Used by tests.
func NewPostgresFromDB(db *sql.DB, dimension int) *Postgres {
	return &Postgres{db: db, dimension: dimension}
}

// EnsureSchema creates the vector extension and the documents table.
// Idempotent, safe to run on every startup.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS documents (
			id BIGSERIAL PRIMARY KEY,
			bot_id BIGINT NOT NULL,
			url TEXT NOT NULL,
			text TEXT NOT NULL,
			embedding vector(%d)
		)`, p.dimension),
		`CREATE INDEX IF NOT EXISTS documents_bot_id_idx ON documents (bot_id)`,
	}
	for _, stmt := range stmts {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// SaveDocument inserts one chunk with its embedding. The id is assigned by
// the database.
func (p *Postgres) SaveDocument(ctx context.Context, doc *Document) error {
	if len(doc.Embedding) != p.dimension {
		return fmt.Errorf("%w: got %d, expected %d", ErrDimensionMismatch, len(doc.Embedding), p.dimension)
	}

	query := `INSERT INTO documents (bot_id, url, text, embedding) VALUES ($1, $2, $3, $4::vector)`
	if _, err := p.db.ExecContext(ctx, query,
		doc.BotID, doc.URL, doc.Text, pgvector.NewVector(doc.Embedding),
	); err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	return nil
}

// SearchSimilar returns the bot's documents whose cosine similarity to the
// query vector exceeds threshold, most similar first. topK 0 leaves the
// result unbounded.
func (p *Postgres) SearchSimilar(ctx context.Context, botID int, query []float32, threshold float64, topK int) ([]ScoredDocument, error) {
	if len(query) != p.dimension {
		return nil, fmt.Errorf("%w: query has %d, expected %d", ErrDimensionMismatch, len(query), p.dimension)
	}

	stmt := `SELECT id, bot_id, url, text, 1 - (embedding <=> $1::vector) AS similarity
	         FROM documents
	         WHERE bot_id = $2
	           AND embedding IS NOT NULL
	           AND 1 - (embedding <=> $1::vector) > $3
	         ORDER BY similarity DESC`
	args := []any{pgvector.NewVector(query), botID, threshold}
	if topK > 0 {
		stmt += ` LIMIT $4`
		args = append(args, topK)
	}

	rows, err := p.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("search similar: %w", err)
	}
	defer rows.Close()

	var results []ScoredDocument
	for rows.Next() {
		var (
			id  int64
			doc ScoredDocument
		)
		if err := rows.Scan(&id, &doc.BotID, &doc.URL, &doc.Text, &doc.Similarity); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		doc.ID = strconv.FormatInt(id, 10)
		results = append(results, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search similar: %w", err)
	}
	return results, nil
}

// Close closes the connection pool.
func (p *Postgres) Close() error {
	return p.db.Close()
}
