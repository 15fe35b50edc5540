//go:build integration

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupQdrant connects to a local Qdrant instance, skipping when unavailable.
func setupQdrant(t *testing.T) *Qdrant {
	q, err := NewQdrant("localhost", 6334, 4)
	if err != nil {
		t.Skipf("qdrant not available: %v", err)
	}
	require.NoError(t, q.EnsureSchema(context.Background()))
	return q
}

func TestQdrantRoundTrip(t *testing.T) {
	q := setupQdrant(t)
	defer q.Close()

	ctx := context.Background()

	doc := &Document{
		BotID:     9001,
		URL:       "https://example.com/hours",
		Text:      "We are open 9-5",
		Embedding: []float32{0.1, 0.2, 0.3, 0.4},
	}
	require.NoError(t, q.SaveDocument(ctx, doc))

	results, err := q.SearchSimilar(ctx, 9001, []float32{0.1, 0.2, 0.3, 0.4}, 0.5, 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	assert.Equal(t, 9001, results[0].BotID)
	assert.Equal(t, "We are open 9-5", results[0].Text)
	assert.Greater(t, results[0].Similarity, 0.5)

	// A different bot must not see the document.
	other, err := q.SearchSimilar(ctx, 9002, []float32{0.1, 0.2, 0.3, 0.4}, 0.5, 5)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestQdrantDimensionMismatch(t *testing.T) {
	q := setupQdrant(t)
	defer q.Close()

	err := q.SaveDocument(context.Background(), &Document{
		BotID:     1,
		Embedding: []float32{0.1},
	})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}
