package indexer

import (
	"time"

	"go.mongodb.org/mongo-driver/mongo"
)

type IndexDefinition struct {
	Collection string
	Index      mongo.IndexModel
}

type Manager struct {
	db      *mongo.Database
	indexes []IndexDefinition
	options *Options
}

type Options struct {
	Timeout         time.Duration
	ContinueOnError bool
	SkipIfExists    bool
}

type Result struct {
	SuccessCount int
	FailedCount  int
	Failures     []FailureDetail
	Duration     time.Duration
}

type FailureDetail struct {
	Collection string
	IndexName  string
	Error      error
}

func DefaultOptions() *Options {
	return &Options{
		Timeout:         60 * time.Second,
		ContinueOnError: true,
		SkipIfExists:    true,
	}
}

func NewManager(db *mongo.Database, opts ...*Options) *Manager {
	options := DefaultOptions()
	if len(opts) > 0 && opts[0] != nil {
		options = opts[0]
	}

	return &Manager{
		db:      db,
		indexes: []IndexDefinition{},
		options: options,
	}
}

func (m *Manager) AddIndex(collection string, index mongo.IndexModel) *Manager {
	m.indexes = append(m.indexes, IndexDefinition{
		Collection: collection,
		Index:      index,
	})
	return m
}

func (m *Manager) LoadFromDefinitions(definitions []IndexDefinition) *Manager {
	m.indexes = append(m.indexes, definitions...)
	return m
}

// Definitions returns the indexes queued on the manager.
func (m *Manager) Definitions() []IndexDefinition {
	return m.indexes
}
