package database

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valkey-io/valkey-go"
)

func setupTestCache(t *testing.T) (valkey.Client, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress:  []string{mr.Addr()},
		DisableCache: true,
	})
	require.NoError(t, err)
	t.Cleanup(client.Close)

	return client, mr
}

func TestCacheConstants(t *testing.T) {
	assert.Equal(t, 0, GENERAL_CACHE_INDEX)
	assert.Equal(t, 1, IMPORT_CACHE_INDEX)
	assert.Equal(t, 2, EVENTS_CACHE_INDEX)
}

func TestNewCacheBuilder_KeyComposition(t *testing.T) {
	id := uuid.New()

	builder := NewCacheBuilder(nil, id).WithHash("import:cancel")
	assert.Equal(t, "import:cancel:"+id.String(), builder.Key())

	builder = NewCacheBuilder(nil, "plain")
	assert.Equal(t, "plain", builder.Key())
}

func TestCacheBuilder_SetGetDelete(t *testing.T) {
	client, mr := setupTestCache(t)

	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	err := NewCacheBuilder(client, "item").
		WithHash("test").
		WithStruct(payload{Name: "feed", Count: 3}).
		WithTTL(time.Minute).
		Set()
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:item"))
	assert.Equal(t, time.Minute, mr.TTL("test:item"))

	var result payload
	found, err := NewCacheBuilder(client, "item").WithHash("test").Get(&result)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, payload{Name: "feed", Count: 3}, result)

	require.NoError(t, NewCacheBuilder(client, "item").WithHash("test").Delete())
	assert.False(t, mr.Exists("test:item"))
}

func TestCacheBuilder_GetMissingKey(t *testing.T) {
	client, _ := setupTestCache(t)

	var result bool
	found, err := NewCacheBuilder(client, "missing").Get(&result)
	assert.NoError(t, err)
	assert.False(t, found)
}

func TestCacheBuilder_SetRequiresValue(t *testing.T) {
	client, _ := setupTestCache(t)

	err := NewCacheBuilder(client, "empty").Set()
	assert.EqualError(t, err, "value is required")
}

func TestDB_PingWithoutConnection(t *testing.T) {
	db := &DB{}
	assert.Error(t, db.Ping(t.Context()))
}
