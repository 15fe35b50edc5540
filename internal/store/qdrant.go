package store

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// qdrantCollection is the single collection holding every bot's documents;
// bots are separated by a payload filter on bot_id.
const qdrantCollection = "documents"

// qdrantUnboundedLimit stands in for "no cap"; Qdrant requires a limit on
// every query, unlike the SQL backend.
const qdrantUnboundedLimit = 100

// Qdrant is an alternative DocumentStore backed by a Qdrant collection.
// The similarity threshold maps onto Qdrant's native score threshold, so
// filtering and ordering still happen server-side.
type Qdrant struct {
	client    *qdrant.Client
	dimension int
}

// NewQdrant connects to Qdrant and verifies health with retry, failing fast
// if the server stays unreachable.
func NewQdrant(host string, port int, dimension int) (*Qdrant, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}

	q := &Qdrant{client: client, dimension: dimension}

	if err := q.healthCheckWithRetry(context.Background()); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", ErrBackendUnreachable, err)
	}

	return q, nil
}

// healthCheckWithRetry probes Qdrant with exponential backoff.
// Initial interval 500ms, max interval 10s, max elapsed 30s.
func (q *Qdrant) healthCheckWithRetry(ctx context.Context) error {
	exponentialBackoff := backoff.NewExponentialBackOff()
	exponentialBackoff.InitialInterval = 500 * time.Millisecond
	exponentialBackoff.MaxInterval = 10 * time.Second
	exponentialBackoff.MaxElapsedTime = 30 * time.Second

	operation := func() error {
		result, err := q.client.HealthCheck(ctx)
		if err != nil {
			return fmt.Errorf("health check failed: %w", err)
		}
		if result == nil || result.Title == "" {
			return fmt.Errorf("health check returned invalid response")
		}
		return nil
	}

	return backoff.Retry(operation, backoff.WithContext(exponentialBackoff, ctx))
}

// EnsureSchema creates the collection with cosine distance vectors and a
// payload index on bot_id. Idempotent.
func (q *Qdrant) EnsureSchema(ctx context.Context) error {
	collections, err := q.client.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("list collections: %w", err)
	}
	for _, name := range collections {
		if name == qdrantCollection {
			return nil
		}
	}

	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: qdrantCollection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(q.dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("create collection: %w", err)
	}

	// Without the index, the bot_id filter degrades to a full scan.
	_, err = q.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: qdrantCollection,
		FieldName:      "bot_id",
		FieldType:      qdrant.FieldType_FieldTypeInteger.Enum(),
	})
	if err != nil {
		return fmt.Errorf("create bot_id index: %w", err)
	}

	return nil
}

// SaveDocument upserts one chunk as a point keyed by a fresh UUID.
func (q *Qdrant) SaveDocument(ctx context.Context, doc *Document) error {
	if len(doc.Embedding) != q.dimension {
		return fmt.Errorf("%w: got %d, expected %d", ErrDimensionMismatch, len(doc.Embedding), q.dimension)
	}

	point := &qdrant.PointStruct{
		Id:      qdrant.NewIDUUID(uuid.New().String()),
		Vectors: qdrant.NewVectors(doc.Embedding...),
		Payload: qdrant.NewValueMap(map[string]any{
			"bot_id": int64(doc.BotID),
			"url":    doc.URL,
			"text":   doc.Text,
		}),
	}

	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: qdrantCollection,
		Points:         []*qdrant.PointStruct{point},
	})
	if err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}
	return nil
}

// SearchSimilar queries the bot's documents above the similarity threshold,
// most similar first.
func (q *Qdrant) SearchSimilar(ctx context.Context, botID int, query []float32, threshold float64, topK int) ([]ScoredDocument, error) {
	if len(query) != q.dimension {
		return nil, fmt.Errorf("%w: query has %d, expected %d", ErrDimensionMismatch, len(query), q.dimension)
	}

	limit := topK
	if limit <= 0 {
		limit = qdrantUnboundedLimit
	}

	results, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: qdrantCollection,
		Query:          qdrant.NewQuery(query...),
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatchInt("bot_id", int64(botID)),
			},
		},
		Limit:          qdrant.PtrOf(uint64(limit)),
		ScoreThreshold: qdrant.PtrOf(float32(threshold)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("search similar: %w", err)
	}

	docs := make([]ScoredDocument, 0, len(results))
	for _, result := range results {
		payload := result.Payload
		docs = append(docs, ScoredDocument{
			Document: Document{
				ID:    result.Id.GetUuid(),
				BotID: int(payload["bot_id"].GetIntegerValue()),
				URL:   payload["url"].GetStringValue(),
				Text:  payload["text"].GetStringValue(),
			},
			Similarity: float64(result.Score),
		})
	}
	return docs, nil
}

// Close closes the client connection.
func (q *Qdrant) Close() error {
	if q.client != nil {
		return q.client.Close()
	}
	return nil
}
