package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitebot/sitebot/internal/config"
)

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open(config.StorageConfig{Backend: "cassandra"}, 1536)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown storage backend "cassandra"`)
}
