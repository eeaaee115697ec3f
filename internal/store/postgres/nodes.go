package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/narvanalabs/lnsync/internal/models"
)

// upsertNodesQuery writes a whole batch in one statement. The batch arrives as
// four parallel arrays, so the parameter count stays constant regardless of
// the batch size.
const upsertNodesQuery = `
	INSERT INTO nodes (public_key, alias, capacity, first_seen)
	SELECT batch.public_key, batch.alias, batch.capacity, batch.first_seen
	FROM unnest($1::text[], $2::text[], $3::double precision[], $4::timestamptz[])
		AS batch(public_key, alias, capacity, first_seen)
	ON CONFLICT (public_key) DO UPDATE SET
		alias = EXCLUDED.alias,
		capacity = EXCLUDED.capacity,
		first_seen = EXCLUDED.first_seen`

// NodeStore implements store.NodeStore using PostgreSQL.
type NodeStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// UpsertBatch inserts or refreshes all nodes in a single statement.
// A public key repeated within the batch keeps its last occurrence, since
// PostgreSQL refuses to update the same row twice in one statement.
func (s *NodeStore) UpsertBatch(ctx context.Context, nodes []*models.Node) (int64, error) {
	nodes = dedupeByPublicKey(nodes)
	if len(nodes) == 0 {
		return 0, nil
	}

	publicKeys := make([]string, len(nodes))
	aliases := make([]string, len(nodes))
	capacities := make([]sql.NullFloat64, len(nodes))
	firstSeen := make([]string, len(nodes))

	for i, node := range nodes {
		publicKeys[i] = node.PublicKey
		aliases[i] = node.Alias
		if node.Capacity != nil {
			capacities[i] = sql.NullFloat64{Float64: *node.Capacity, Valid: true}
		}
		firstSeen[i] = node.FirstSeen.UTC().Format(time.RFC3339Nano)
	}

	result, err := s.db.ExecContext(ctx, upsertNodesQuery,
		pq.Array(publicKeys),
		pq.Array(aliases),
		pq.Array(capacities),
		pq.Array(firstSeen),
	)
	if err != nil {
		return 0, newPersistError("upserting nodes", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		// The write itself succeeded; only the counter is unavailable.
		s.logger.Warn("rows affected unavailable after node upsert", "error", err)
		return int64(len(nodes)), nil
	}

	s.logger.Debug("upserted nodes", "batch_size", len(nodes), "rows_affected", affected)
	return affected, nil
}

// Get retrieves a node by public key.
func (s *NodeStore) Get(ctx context.Context, publicKey string) (*models.Node, error) {
	query := `
		SELECT public_key, alias, capacity, first_seen
		FROM nodes
		WHERE public_key = $1`

	var node models.Node
	if err := sqlx.GetContext(ctx, s.db, &node, query, publicKey); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, newPersistError("querying node", err)
	}

	node.FirstSeen = node.FirstSeen.UTC()
	return &node, nil
}

// List retrieves all stored nodes ordered by public key.
func (s *NodeStore) List(ctx context.Context) ([]*models.Node, error) {
	query := `
		SELECT public_key, alias, capacity, first_seen
		FROM nodes
		ORDER BY public_key`

	var nodes []*models.Node
	if err := sqlx.SelectContext(ctx, s.db, &nodes, query); err != nil {
		return nil, newPersistError("listing nodes", err)
	}

	for _, node := range nodes {
		node.FirstSeen = node.FirstSeen.UTC()
	}
	return nodes, nil
}

// Count returns the number of stored nodes.
func (s *NodeStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := sqlx.GetContext(ctx, s.db, &count, "SELECT COUNT(*) FROM nodes"); err != nil {
		return 0, newPersistError("counting nodes", err)
	}
	return count, nil
}

// dedupeByPublicKey drops earlier occurrences of repeated public keys. The
// position of the first occurrence is kept so the batch order stays stable.
func dedupeByPublicKey(nodes []*models.Node) []*models.Node {
	index := make(map[string]int, len(nodes))
	out := make([]*models.Node, 0, len(nodes))
	for _, node := range nodes {
		if node == nil {
			continue
		}
		if i, seen := index[node.PublicKey]; seen {
			out[i] = node
			continue
		}
		index[node.PublicKey] = len(out)
		out = append(out, node)
	}
	return out
}
