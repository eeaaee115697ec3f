// Package cache wraps a store.Store with a short-lived read cache for the
// node read path.
package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/narvanalabs/lnsync/internal/models"
	"github.com/narvanalabs/lnsync/internal/store"
)

// listKey is the cache key holding the full node listing.
const listKey = "nodes:list"

// entry is a cached lookup result.
type entry struct {
	nodes []*models.Node
}

// Store decorates a store.Store. List and Get are served from memory for up
// to ttl; a successful UpsertBatch drops every cached entry.
type Store struct {
	inner  store.Store
	cache  *ttlcache.Cache[string, entry]
	logger *slog.Logger
	nodes  *nodeStore

	// gen is bumped on every invalidation. A read only fills the cache when
	// no invalidation happened while it was querying the inner store.
	mu  sync.Mutex
	gen uint64
}

// New returns a caching decorator around inner. The caller must call Close
// to stop the expiry goroutine.
func New(inner store.Store, ttl time.Duration, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}

	c := ttlcache.New[string, entry](
		ttlcache.WithTTL[string, entry](ttl),
	)
	go c.Start()

	s := &Store{
		inner:  inner,
		cache:  c,
		logger: logger,
	}
	s.nodes = &nodeStore{parent: s}
	return s
}

// Nodes returns the cached NodeStore.
func (s *Store) Nodes() store.NodeStore {
	return s.nodes
}

// Ping delegates to the wrapped store.
func (s *Store) Ping(ctx context.Context) error {
	return s.inner.Ping(ctx)
}

// Close stops the cache and closes the wrapped store.
func (s *Store) Close() error {
	s.cache.Stop()
	s.cache.DeleteAll()
	return s.inner.Close()
}

// Invalidate drops all cached entries.
func (s *Store) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.cache.DeleteAll()
}

func (s *Store) generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// fill stores e under key unless the cache was invalidated after gen was read.
func (s *Store) fill(key string, e entry, gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return
	}
	s.cache.Set(key, e, ttlcache.DefaultTTL)
}

type nodeStore struct {
	parent *Store
}

func (n *nodeStore) UpsertBatch(ctx context.Context, nodes []*models.Node) (int64, error) {
	affected, err := n.parent.inner.Nodes().UpsertBatch(ctx, nodes)
	if err != nil {
		return affected, err
	}
	if affected > 0 {
		n.parent.Invalidate()
		n.parent.logger.Debug("node cache invalidated", "rows", affected)
	}
	return affected, nil
}

func (n *nodeStore) Get(ctx context.Context, publicKey string) (*models.Node, error) {
	key := "nodes:" + publicKey
	if item := n.parent.cache.Get(key, ttlcache.WithDisableTouchOnHit[string, entry]()); item != nil {
		return item.Value().nodes[0], nil
	}

	gen := n.parent.generation()
	node, err := n.parent.inner.Nodes().Get(ctx, publicKey)
	if err != nil {
		return nil, err
	}
	n.parent.fill(key, entry{nodes: []*models.Node{node}}, gen)
	return node, nil
}

func (n *nodeStore) List(ctx context.Context) ([]*models.Node, error) {
	if item := n.parent.cache.Get(listKey, ttlcache.WithDisableTouchOnHit[string, entry]()); item != nil {
		return item.Value().nodes, nil
	}

	gen := n.parent.generation()
	nodes, err := n.parent.inner.Nodes().List(ctx)
	if err != nil {
		return nil, err
	}
	n.parent.fill(listKey, entry{nodes: nodes}, gen)
	return nodes, nil
}

func (n *nodeStore) Count(ctx context.Context) (int, error) {
	return n.parent.inner.Nodes().Count(ctx)
}
