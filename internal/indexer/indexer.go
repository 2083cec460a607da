package indexer

import (
	"context"
	"fmt"
	"time"

	"khoomi-api-io/checkout/pkg/util"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func (m *Manager) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, m.options.Timeout)
}

func (m *Manager) Create(ctx context.Context) (*Result, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	result := &Result{
		Failures: []FailureDetail{},
	}

	for _, def := range m.indexes {
		name := indexName(def)
		if m.options.SkipIfExists && name != "" {
			exists, err := m.indexExists(ctx, def.Collection, name)
			if err == nil && exists {
				util.LogInfo("index already exists, skipping", zap.String("collection", def.Collection), zap.String("index", name))
				result.SuccessCount++
				continue
			}
		}

		created, err := m.db.Collection(def.Collection).Indexes().CreateOne(ctx, def.Index)
		if err != nil {
			if mongo.IsDuplicateKeyError(err) {
				util.LogWarning("cannot create unique index over duplicate data", zap.String("collection", def.Collection))
			} else {
				util.LogError("failed to create index", err, zap.String("collection", def.Collection))
			}

			result.FailedCount++
			result.Failures = append(result.Failures, FailureDetail{
				Collection: def.Collection,
				IndexName:  name,
				Error:      err,
			})

			if !m.options.ContinueOnError {
				result.Duration = time.Since(start)
				return result, err
			}
			continue
		}

		util.LogInfo("created index", zap.String("collection", def.Collection), zap.String("index", created))
		result.SuccessCount++
	}

	result.Duration = time.Since(start)

	if result.FailedCount > 0 {
		return result, fmt.Errorf("%d indexes failed to create", result.FailedCount)
	}

	return result, nil
}

// Drop removes every index on the given collections, or on all managed
// collections when none are named.
func (m *Manager) Drop(ctx context.Context, collections ...string) error {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	for _, collName := range m.targetCollections(collections) {
		if _, err := m.db.Collection(collName).Indexes().DropAll(ctx); err != nil {
			if !m.options.ContinueOnError {
				return fmt.Errorf("failed to drop indexes for %s: %w", collName, err)
			}
			util.LogError("failed to drop indexes", err, zap.String("collection", collName))
			continue
		}
		util.LogInfo("dropped all indexes", zap.String("collection", collName))
	}

	return nil
}

func (m *Manager) List(ctx context.Context, collection string) ([]bson.M, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	cursor, err := m.db.Collection(collection).Indexes().List(ctx)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var indexes []bson.M
	if err = cursor.All(ctx, &indexes); err != nil {
		return nil, err
	}

	return indexes, nil
}

func (m *Manager) targetCollections(named []string) []string {
	if len(named) > 0 {
		return named
	}
	seen := make(map[string]bool)
	var out []string
	for _, def := range m.indexes {
		if !seen[def.Collection] {
			seen[def.Collection] = true
			out = append(out, def.Collection)
		}
	}
	return out
}

func (m *Manager) indexExists(ctx context.Context, collection, name string) (bool, error) {
	indexes, err := m.List(ctx, collection)
	if err != nil {
		return false, err
	}

	for _, idx := range indexes {
		if n, ok := idx["name"].(string); ok && n == name {
			return true, nil
		}
	}

	return false, nil
}

func indexName(def IndexDefinition) string {
	if def.Index.Options == nil || def.Index.Options.Name == nil {
		return ""
	}
	return *def.Index.Options.Name
}
