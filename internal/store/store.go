// Package store provides database access interfaces and implementations.
package store

import (
	"context"
	"errors"

	"github.com/narvanalabs/lnsync/internal/models"
)

// ErrNotFound is returned when a requested node does not exist.
var ErrNotFound = errors.New("resource not found")

// NodeStore defines operations on persisted Lightning nodes.
type NodeStore interface {
	// UpsertBatch inserts the given nodes in a single statement. Rows whose
	// public key already exists get alias, capacity and first_seen overwritten.
	// Rows absent from the batch are left untouched. It returns the number of
	// rows written.
	UpsertBatch(ctx context.Context, nodes []*models.Node) (int64, error)
	// Get retrieves a node by public key.
	Get(ctx context.Context, publicKey string) (*models.Node, error)
	// List retrieves all stored nodes.
	List(ctx context.Context) ([]*models.Node, error)
	// Count returns the number of stored nodes.
	Count(ctx context.Context) (int, error)
}

// Store is the main interface for database operations.
type Store interface {
	// Nodes returns the NodeStore for node operations.
	Nodes() NodeStore

	// Ping verifies the database is reachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
