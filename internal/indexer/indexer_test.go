package indexer

import (
	"testing"

	"khoomi-api-io/checkout/internal/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func TestCheckoutIndexes(t *testing.T) {
	defs := CheckoutIndexes()
	require.Len(t, defs, 3)

	byName := map[string]IndexDefinition{}
	for _, def := range defs {
		assert.Equal(t, common.ORDER_DRAFT_COLLECTION, def.Collection)
		byName[indexName(def)] = def
	}

	unique := byName["order_id_unique"].Index.Options
	require.NotNil(t, unique)
	require.NotNil(t, unique.Unique)
	assert.True(t, *unique.Unique)

	ttl := byName["expires_at_ttl"].Index.Options
	require.NotNil(t, ttl)
	require.NotNil(t, ttl.ExpireAfterSeconds)
	assert.Equal(t, int32(0), *ttl.ExpireAfterSeconds)
}

func TestManagerTargetsManagedCollections(t *testing.T) {
	m := NewManager(nil).
		LoadFromDefinitions(CheckoutIndexes()).
		AddIndex("Other", mongo.IndexModel{Options: options.Index().SetName("x")})

	assert.Equal(t, []string{common.ORDER_DRAFT_COLLECTION, "Other"}, m.targetCollections(nil))
	assert.Equal(t, []string{"Only"}, m.targetCollections([]string{"Only"}))
	assert.Len(t, m.Definitions(), 4)
}

func TestNewManagerDefaults(t *testing.T) {
	m := NewManager(nil)
	assert.True(t, m.options.SkipIfExists)
	assert.True(t, m.options.ContinueOnError)

	custom := &Options{Timeout: 1}
	assert.Same(t, custom, NewManager(nil, custom).options)
}

func TestIndexNameWithoutOptions(t *testing.T) {
	assert.Equal(t, "", indexName(IndexDefinition{}))
}
