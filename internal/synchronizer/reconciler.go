package synchronizer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/narvanalabs/lnsync/internal/mempool"
	"github.com/narvanalabs/lnsync/internal/metrics"
	"github.com/narvanalabs/lnsync/internal/models"
	"github.com/narvanalabs/lnsync/internal/store"
	"github.com/narvanalabs/lnsync/internal/units"
	"github.com/narvanalabs/lnsync/pkg/logger"
)

// Reconciler writes fetched node records into the store.
type Reconciler struct {
	store  store.Store
	logger *slog.Logger
}

// NewReconciler creates a Reconciler backed by s.
func NewReconciler(s store.Store, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		store:  s,
		logger: logger,
	}
}

// Reconcile converts nodes into stored rows and upserts them in one batch.
// An empty slice succeeds without touching the store.
func (r *Reconciler) Reconcile(ctx context.Context, nodes []mempool.Node) error {
	log := (&logger.Logger{Logger: r.logger}).WithContext(ctx)
	if len(nodes) == 0 {
		log.Debug("nothing to reconcile")
		return nil
	}

	rows := make([]*models.Node, 0, len(nodes))
	for i := range nodes {
		rows = append(rows, ToModel(&nodes[i]))
	}

	affected, err := r.store.Nodes().UpsertBatch(ctx, rows)
	if err != nil {
		return fmt.Errorf("upserting %d nodes: %w", len(rows), err)
	}
	metrics.RecordRowsUpserted(affected)

	log.Info("nodes reconciled",
		"received", len(nodes),
		"rows_affected", affected,
	)
	return nil
}

// ToModel maps a source record onto the stored row. Capacity is converted
// from satoshis to BTC and first-seen from epoch seconds to UTC.
func ToModel(n *mempool.Node) *models.Node {
	capacity := units.SatsToBTC(n.Capacity)
	return &models.Node{
		PublicKey: n.PublicKey,
		Alias:     n.Alias,
		Capacity:  &capacity,
		FirstSeen: units.EpochToTime(n.FirstSeen),
	}
}
