package optimizer

import (
	"sort"
	"sync"

	"github.com/hashicorp/golang-lru/v2/simplelru"

	"costguardian/internal/domain/performance"
	"costguardian/pkg/errors"
)

type historyKey struct {
	userID string
	model  string
}

// recordRing keeps the last n records, oldest overwritten first
type recordRing struct {
	buf  []performance.Record
	next int
	full bool
}

func newRecordRing(size int) *recordRing {
	return &recordRing{buf: make([]performance.Record, size)}
}

func (r *recordRing) add(rec performance.Record) {
	r.buf[r.next] = rec
	r.next = (r.next + 1) % len(r.buf)
	if r.next == 0 {
		r.full = true
	}
}

func (r *recordRing) len() int {
	if r.full {
		return len(r.buf)
	}
	return r.next
}

// records returns the ring contents, oldest first
func (r *recordRing) records() []performance.Record {
	if !r.full {
		return append([]performance.Record(nil), r.buf[:r.next]...)
	}
	out := make([]performance.Record, 0, len(r.buf))
	out = append(out, r.buf[r.next:]...)
	return append(out, r.buf[:r.next]...)
}

// userIndex lists the cached models of a user. complete is set once the
// user's history was loaded from the store and no key has been evicted since.
type userIndex struct {
	models   map[string]struct{}
	complete bool
}

// PerformanceCache is the in-process view of recent model outcomes.
// Per-user rings are bounded in keys (LRU over (user, model)) and in
// records per key. Latency samples are kept per model.
type PerformanceCache struct {
	mu      sync.Mutex
	size    int
	byUser  *simplelru.LRU[historyKey, *recordRing]
	users   map[string]*userIndex
	byModel *simplelru.LRU[string, *recordRing]

	seeding     string // user being seeded, if any
	seedEvicted bool
}

// NewPerformanceCache creates a cache holding up to capacity (user, model)
// keys with size records each
func NewPerformanceCache(capacity, size int) (*PerformanceCache, error) {
	c := &PerformanceCache{
		size:  size,
		users: make(map[string]*userIndex),
	}

	byUser, err := simplelru.NewLRU[historyKey, *recordRing](capacity, c.onEvict)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create performance cache")
	}
	byModel, err := simplelru.NewLRU[string, *recordRing](capacity, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create model latency cache")
	}
	c.byUser = byUser
	c.byModel = byModel
	return c, nil
}

// onEvict runs under mu, from inside byUser.Add
func (c *PerformanceCache) onEvict(key historyKey, _ *recordRing) {
	if key.userID == c.seeding {
		c.seedEvicted = true
	}
	idx, ok := c.users[key.userID]
	if !ok {
		return
	}
	delete(idx.models, key.model)
	idx.complete = false
	if len(idx.models) == 0 {
		delete(c.users, key.userID)
	}
}

func (c *PerformanceCache) add(rec performance.Record) {
	key := historyKey{userID: rec.UserID, model: rec.Model}
	ring, ok := c.byUser.Get(key)
	if !ok {
		ring = newRecordRing(c.size)
		c.byUser.Add(key, ring)
	}
	ring.add(rec)

	idx, ok := c.users[rec.UserID]
	if !ok {
		idx = &userIndex{models: make(map[string]struct{})}
		c.users[rec.UserID] = idx
	}
	idx.models[rec.Model] = struct{}{}
}

// Add records an outcome under its (user, model) key
func (c *PerformanceCache) Add(rec performance.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.add(rec)
}

// Seed replaces the cached history of a user with records read from the
// store, newest first, and marks the user's view complete. An empty
// history is not cached.
func (c *PerformanceCache) Seed(userID string, newestFirst []*performance.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if idx, ok := c.users[userID]; ok {
		for model := range idx.models {
			c.byUser.Remove(historyKey{userID: userID, model: model})
		}
		delete(c.users, userID)
	}
	if len(newestFirst) == 0 {
		return
	}

	c.seeding, c.seedEvicted = userID, false
	for i := len(newestFirst) - 1; i >= 0; i-- {
		c.add(*newestFirst[i])
	}
	evicted := c.seedEvicted
	c.seeding, c.seedEvicted = "", false

	if idx, ok := c.users[userID]; ok && !evicted {
		idx.complete = true
	}
}

// Recent returns up to n of the user's newest records across models,
// newest first. ok is false unless the user's view is complete.
func (c *PerformanceCache) Recent(userID string, n int) ([]performance.Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx, found := c.users[userID]
	if !found || !idx.complete {
		return nil, false
	}

	var out []performance.Record
	for model := range idx.models {
		if ring, ok := c.byUser.Get(historyKey{userID: userID, model: model}); ok {
			out = append(out, ring.records()...)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if len(out) > n {
		out = out[:n]
	}
	return out, true
}

// ModelRecords returns the cached records of a user for a model, oldest first
func (c *PerformanceCache) ModelRecords(userID, model string) []performance.Record {
	c.mu.Lock()
	defer c.mu.Unlock()

	ring, ok := c.byUser.Get(historyKey{userID: userID, model: model})
	if !ok {
		return nil
	}
	return ring.records()
}

// AddLatencySample keeps a measured latency for the model. Failed calls
// and samples without a token count are ignored.
func (c *PerformanceCache) AddLatencySample(rec performance.Record) {
	if !rec.Success || rec.Tokens <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	ring, ok := c.byModel.Get(rec.Model)
	if !ok {
		ring = newRecordRing(c.size)
		c.byModel.Add(rec.Model, ring)
	}
	ring.add(rec)
}

// LatencySamples returns the kept latency samples of a model, oldest first
func (c *PerformanceCache) LatencySamples(model string) []performance.Record {
	c.mu.Lock()
	defer c.mu.Unlock()

	ring, ok := c.byModel.Get(model)
	if !ok {
		return nil
	}
	return ring.records()
}

// Len returns the number of (user, model) keys held
func (c *PerformanceCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.byUser.Len()
}
