package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/narvanalabs/lnsync/internal/models"
	"github.com/narvanalabs/lnsync/internal/store"
	"github.com/narvanalabs/lnsync/internal/store/migrations"
)

// getTestDSN returns the test database connection string.
func getTestDSN() string {
	return os.Getenv("TEST_DATABASE_URL")
}

// setupNodeTestDB opens the test database, applies migrations and empties the
// nodes table.
func setupNodeTestDB(t *testing.T) *PostgresStore {
	t.Helper()

	dsn := getTestDSN()
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping database tests")
	}

	if err := migrations.Up(dsn, testLogger()); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		t.Fatalf("failed to ping database: %v", err)
	}
	if _, err := db.Exec("DELETE FROM nodes"); err != nil {
		db.Close()
		t.Fatalf("failed to clear nodes: %v", err)
	}

	s := NewFromDB(db, testLogger())
	t.Cleanup(func() {
		db.Exec("DELETE FROM nodes")
		s.Close()
	})
	return s
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func capacityPtr(v float64) *float64 {
	return &v
}

func TestUpsertBatch_InsertsNewNode(t *testing.T) {
	s := setupNodeTestDB(t)
	ctx := context.Background()

	node := &models.Node{
		PublicKey: "02b1fe652cfd034d0ad1e1c7b0e4ba4efcb9da4d4a1ae6b87b1f9f6d9f8c45217",
		Alias:     "exampleNode",
		Capacity:  capacityPtr(0.000001),
		FirstSeen: time.Date(2021, time.July, 1, 0, 0, 0, 0, time.UTC),
	}

	affected, err := s.Nodes().UpsertBatch(ctx, []*models.Node{node})
	if err != nil {
		t.Fatalf("UpsertBatch failed: %v", err)
	}
	if affected != 1 {
		t.Errorf("rows affected = %d, want 1", affected)
	}

	got, err := s.Nodes().Get(ctx, node.PublicKey)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Alias != "exampleNode" {
		t.Errorf("Alias = %q, want exampleNode", got.Alias)
	}
	if got.Capacity == nil || *got.Capacity != 0.000001 {
		t.Errorf("Capacity = %v, want 0.000001", got.Capacity)
	}
	if !got.FirstSeen.Equal(node.FirstSeen) || got.FirstSeen.Location() != time.UTC {
		t.Errorf("FirstSeen = %v, want %v", got.FirstSeen, node.FirstSeen)
	}
}

func TestUpsertBatch_UpdatesExistingRowInPlace(t *testing.T) {
	s := setupNodeTestDB(t)
	ctx := context.Background()

	key := "03864ef025fde8fb587d989186ce6a4a186895ee44a926bfc370e2c366597a3f8f"
	first := &models.Node{
		PublicKey: key,
		Alias:     "before",
		Capacity:  capacityPtr(1.5),
		FirstSeen: time.Unix(1514764800, 0).UTC(),
	}
	second := &models.Node{
		PublicKey: key,
		Alias:     "after",
		Capacity:  capacityPtr(2.25),
		FirstSeen: time.Unix(1625097600, 0).UTC(),
	}

	if _, err := s.Nodes().UpsertBatch(ctx, []*models.Node{first}); err != nil {
		t.Fatalf("first UpsertBatch failed: %v", err)
	}
	if _, err := s.Nodes().UpsertBatch(ctx, []*models.Node{second}); err != nil {
		t.Fatalf("second UpsertBatch failed: %v", err)
	}

	count, err := s.Nodes().Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("Count = %d, want 1", count)
	}

	got, err := s.Nodes().Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Alias != "after" {
		t.Errorf("Alias = %q, want after", got.Alias)
	}
	if got.Capacity == nil || *got.Capacity != 2.25 {
		t.Errorf("Capacity = %v, want 2.25", got.Capacity)
	}
	// first_seen follows the source on every sync.
	if !got.FirstSeen.Equal(second.FirstSeen) {
		t.Errorf("FirstSeen = %v, want %v", got.FirstSeen, second.FirstSeen)
	}
}

func TestUpsertBatch_EmptyBatchIsNoop(t *testing.T) {
	s := setupNodeTestDB(t)
	ctx := context.Background()

	seed := &models.Node{PublicKey: "02aa", Alias: "seed", Capacity: capacityPtr(1), FirstSeen: time.Unix(0, 0).UTC()}
	if _, err := s.Nodes().UpsertBatch(ctx, []*models.Node{seed}); err != nil {
		t.Fatalf("seed UpsertBatch failed: %v", err)
	}

	for _, batch := range [][]*models.Node{nil, {}} {
		affected, err := s.Nodes().UpsertBatch(ctx, batch)
		if err != nil {
			t.Fatalf("UpsertBatch(empty) failed: %v", err)
		}
		if affected != 0 {
			t.Errorf("rows affected = %d, want 0", affected)
		}
	}

	nodes, err := s.Nodes().List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(nodes) != 1 || nodes[0].Alias != "seed" {
		t.Errorf("store changed by empty batch: %+v", nodes)
	}
}

func TestUpsertBatch_LeavesAbsentRowsUnchanged(t *testing.T) {
	s := setupNodeTestDB(t)
	ctx := context.Background()

	stale := &models.Node{PublicKey: "02stale", Alias: "stale", Capacity: capacityPtr(3), FirstSeen: time.Unix(1000, 0).UTC()}
	fresh := &models.Node{PublicKey: "02fresh", Alias: "fresh", Capacity: capacityPtr(4), FirstSeen: time.Unix(2000, 0).UTC()}

	if _, err := s.Nodes().UpsertBatch(ctx, []*models.Node{stale, fresh}); err != nil {
		t.Fatalf("UpsertBatch failed: %v", err)
	}

	refreshed := &models.Node{PublicKey: "02fresh", Alias: "fresher", Capacity: capacityPtr(5), FirstSeen: time.Unix(2000, 0).UTC()}
	if _, err := s.Nodes().UpsertBatch(ctx, []*models.Node{refreshed}); err != nil {
		t.Fatalf("UpsertBatch failed: %v", err)
	}

	got, err := s.Nodes().Get(ctx, "02stale")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Alias != "stale" || got.Capacity == nil || *got.Capacity != 3 {
		t.Errorf("absent row modified: %+v", got)
	}
}

func TestUpsertBatch_NullCapacityAndDuplicateKeys(t *testing.T) {
	s := setupNodeTestDB(t)
	ctx := context.Background()

	batch := []*models.Node{
		{PublicKey: "02dup", Alias: "first", Capacity: capacityPtr(1), FirstSeen: time.Unix(10, 0).UTC()},
		{PublicKey: "02null", Alias: "no capacity", FirstSeen: time.Unix(20, 0).UTC()},
		{PublicKey: "02dup", Alias: "last", Capacity: capacityPtr(2), FirstSeen: time.Unix(30, 0).UTC()},
	}

	affected, err := s.Nodes().UpsertBatch(ctx, batch)
	if err != nil {
		t.Fatalf("UpsertBatch failed: %v", err)
	}
	if affected != 2 {
		t.Errorf("rows affected = %d, want 2", affected)
	}

	dup, err := s.Nodes().Get(ctx, "02dup")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if dup.Alias != "last" || dup.Capacity == nil || *dup.Capacity != 2 {
		t.Errorf("duplicate key should keep last occurrence, got %+v", dup)
	}

	null, err := s.Nodes().Get(ctx, "02null")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if null.Capacity != nil {
		t.Errorf("Capacity = %v, want nil", *null.Capacity)
	}
}

func TestGet_NotFound(t *testing.T) {
	s := setupNodeTestDB(t)

	_, err := s.Nodes().Get(context.Background(), "02missing")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}
}

func TestUpsertBatch_ClosedDatabaseReturnsPersistError(t *testing.T) {
	s := setupNodeTestDB(t)
	s.db.Close()

	_, err := s.Nodes().UpsertBatch(context.Background(), []*models.Node{
		{PublicKey: "02aa", Alias: "a", FirstSeen: time.Unix(0, 0).UTC()},
	})

	var persistErr *PersistError
	if !errors.As(err, &persistErr) {
		t.Fatalf("expected *PersistError, got %T: %v", err, err)
	}
	if persistErr.Op != "upserting nodes" {
		t.Errorf("Op = %q, want upserting nodes", persistErr.Op)
	}
}

// genNodeBatch generates batches of nodes with unique public keys.
func genNodeBatch() gopter.Gen {
	return gen.SliceOfN(20, gopter.CombineGens(
		gen.RegexMatch("[a-z]{3,16}"),
		gen.UInt64Range(0, 2_100_000_000_000_000),
		gen.Int64Range(0, 2_000_000_000),
	)).Map(func(rows [][]interface{}) []*models.Node {
		nodes := make([]*models.Node, 0, len(rows))
		for i, row := range rows {
			capacity := float64(row[1].(uint64)) / 100_000_000
			nodes = append(nodes, &models.Node{
				PublicKey: fmt.Sprintf("02%064x", i),
				Alias:     row[0].(string),
				Capacity:  &capacity,
				FirstSeen: time.Unix(row[2].(int64), 0).UTC(),
			})
		}
		return nodes
	})
}

// Applying the same batch twice leaves the store exactly as applying it once.
func TestUpsertBatchIdempotence(t *testing.T) {
	s := setupNodeTestDB(t)

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 25
	properties := gopter.NewProperties(parameters)

	properties.Property("repeated upsert of identical batch is idempotent", prop.ForAll(
		func(batch []*models.Node) bool {
			ctx := context.Background()
			if _, err := s.db.Exec("DELETE FROM nodes"); err != nil {
				t.Logf("Failed to clear nodes: %v", err)
				return false
			}

			if _, err := s.Nodes().UpsertBatch(ctx, batch); err != nil {
				t.Logf("First upsert failed: %v", err)
				return false
			}
			once, err := s.Nodes().List(ctx)
			if err != nil {
				t.Logf("List failed: %v", err)
				return false
			}

			if _, err := s.Nodes().UpsertBatch(ctx, batch); err != nil {
				t.Logf("Second upsert failed: %v", err)
				return false
			}
			twice, err := s.Nodes().List(ctx)
			if err != nil {
				t.Logf("List failed: %v", err)
				return false
			}

			if len(once) != len(batch) || len(twice) != len(once) {
				t.Logf("Row counts differ: batch=%d once=%d twice=%d", len(batch), len(once), len(twice))
				return false
			}
			for i := range once {
				a, b := once[i], twice[i]
				if a.PublicKey != b.PublicKey || a.Alias != b.Alias ||
					*a.Capacity != *b.Capacity || !a.FirstSeen.Equal(b.FirstSeen) {
					t.Logf("Row %d changed: %+v -> %+v", i, a, b)
					return false
				}
			}
			return true
		},
		genNodeBatch(),
	))

	properties.TestingRun(t)
}

func TestDedupeByPublicKey(t *testing.T) {
	a1 := &models.Node{PublicKey: "a", Alias: "a1"}
	b := &models.Node{PublicKey: "b", Alias: "b"}
	a2 := &models.Node{PublicKey: "a", Alias: "a2"}

	got := dedupeByPublicKey([]*models.Node{a1, b, nil, a2})
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0] != a2 || got[1] != b {
		t.Errorf("dedupe = [%s %s], want [a2 b]", got[0].Alias, got[1].Alias)
	}

	if got := dedupeByPublicKey(nil); len(got) != 0 {
		t.Errorf("dedupe(nil) = %v, want empty", got)
	}
}
