// Package cache holds short-lived snapshots of document listings, keyed by
// document type.
package cache

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/dmitrijs2005/invoicekeeper/internal/models"
)

// DefaultTTL is the freshness window of a cached listing.
const DefaultTTL = 30 * time.Second

// Cache is a read-through cache of full per-type listings. Keys are the
// document type only; the backend that produced a listing is not part of the
// key, so a backend switch is visible only once the entry expires or is
// invalidated.
type Cache interface {
	Get(ctx context.Context, t models.DocumentType) ([]models.Document, bool)
	Set(ctx context.Context, t models.DocumentType, docs []models.Document)
	Invalidate(ctx context.Context, t models.DocumentType)
}

type entry struct {
	docs     []models.Document
	storedAt time.Time
}

// Memory is the in-process Cache. Entries are replaced wholesale under a
// mutex; readers get their own copy of the slice.
type Memory struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[models.DocumentType]entry
}

type Option func(*Memory)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Memory) { m.now = now }
}

func NewMemory(ttl time.Duration, opts ...Option) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	m := &Memory{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[models.DocumentType]entry),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) Get(ctx context.Context, t models.DocumentType) ([]models.Document, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[t]
	if !ok {
		return nil, false
	}
	if m.now().Sub(e.storedAt) >= m.ttl {
		delete(m.entries, t)
		return nil, false
	}
	return slices.Clone(e.docs), true
}

func (m *Memory) Set(ctx context.Context, t models.DocumentType, docs []models.Document) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[t] = entry{docs: slices.Clone(docs), storedAt: m.now()}
}

func (m *Memory) Invalidate(ctx context.Context, t models.DocumentType) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, t)
}
