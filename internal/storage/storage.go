package storage

import (
	"github.com/IshaanNene/NewsLens/internal/types"
)

// Storage is the interface for article sinks.
type Storage interface {
	// Store persists a batch of articles.
	Store(articles []*types.Article) error

	// Close flushes pending writes and commits the output.
	Close() error

	// Name returns the storage backend identifier.
	Name() string
}
