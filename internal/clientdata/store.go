package clientdata

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aristath/screener/internal/domain"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Entry is a decoded cache entry
type Entry struct {
	Key       Key
	Payload   *domain.RawPayload
	FetchedAt time.Time
	SourceID  string
	// FromCache is true when the entry was served without calling the fetcher
	FromCache bool
}

// FetchFunc loads a payload from upstream on a cache miss
type FetchFunc func(ctx context.Context) (*domain.RawPayload, error)

// Option configures a Store
type Option func(*Store)

// WithClock overrides the time source used for TTL checks and fetch stamps
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// Store is the cache in front of the source resolver. Reads only return
// entries younger than their field set's TTL. Concurrent GetOrFetch calls for
// the same key share one upstream fetch.
//
// The store never fails a caller because of its own storage: persistence
// errors are logged and treated as misses. With a nil repository it keeps
// entries in memory for the lifetime of the process.
type Store struct {
	repo  *Repository
	ttls  TTLPolicy
	now   func() time.Time
	group singleflight.Group
	log   zerolog.Logger

	mu     sync.RWMutex
	memory map[Key]Row
}

// NewStore creates a cache store. repo may be nil to run without persistence.
func NewStore(repo *Repository, ttls TTLPolicy, log zerolog.Logger, opts ...Option) *Store {
	if ttls == nil {
		ttls = DefaultTTLs()
	}
	s := &Store{
		repo:   repo,
		ttls:   ttls,
		now:    time.Now,
		log:    log.With().Str("component", "cache_store").Logger(),
		memory: make(map[Key]Row),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Persistent reports whether entries survive a restart
func (s *Store) Persistent() bool {
	return s.repo != nil
}

// TTL returns the freshness window of a field set
func (s *Store) TTL(fs domain.FieldSet) time.Duration {
	return s.ttls.For(fs)
}

// Now returns the store's current time
func (s *Store) Now() time.Time {
	return s.now()
}

// Get returns the entry for key if it exists and is fresh.
func (s *Store) Get(ctx context.Context, key Key) (*Entry, bool) {
	row, ok := s.load(ctx, key)
	if !ok {
		return nil, false
	}

	if s.now().Sub(row.FetchedAt) >= s.ttls.For(key.FieldSet) {
		return nil, false
	}

	payload, err := decodePayload(row.Payload)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key.String()).Msg("Dropping undecodable cache entry")
		s.drop(ctx, key)
		return nil, false
	}

	return &Entry{
		Key:       key,
		Payload:   payload,
		FetchedAt: row.FetchedAt,
		SourceID:  row.SourceID,
		FromCache: true,
	}, true
}

// Put stores payload under key, overwriting any existing entry and stamping
// the current time and the payload's source.
func (s *Store) Put(ctx context.Context, key Key, payload *domain.RawPayload) (*Entry, error) {
	if payload == nil {
		return nil, fmt.Errorf("nil payload for %s", key)
	}

	entry := &Entry{
		Key:       key,
		Payload:   payload,
		FetchedAt: s.now(),
		SourceID:  payload.Source,
	}

	data, err := encodePayload(payload)
	if err != nil {
		return entry, err
	}

	row := Row{Key: key, Payload: data, FetchedAt: entry.FetchedAt, SourceID: entry.SourceID}
	if s.repo == nil {
		s.mu.Lock()
		s.memory[key] = row
		s.mu.Unlock()
		return entry, nil
	}

	if err := s.repo.Upsert(ctx, row); err != nil {
		return entry, err
	}
	return entry, nil
}

// GetOrFetch returns the fresh entry for key or calls fetch, caches its result
// and returns it. Fetch errors are returned unchanged and nothing is cached.
func (s *Store) GetOrFetch(ctx context.Context, key Key, fetch FetchFunc) (*Entry, error) {
	if entry, ok := s.Get(ctx, key); ok {
		return entry, nil
	}

	v, err, _ := s.group.Do(key.String(), func() (interface{}, error) {
		// Another flight may have filled the key while we waited
		if entry, ok := s.Get(ctx, key); ok {
			return entry, nil
		}

		payload, err := fetch(ctx)
		if err != nil {
			return nil, err
		}

		entry, err := s.Put(ctx, key, payload)
		if err != nil {
			s.log.Warn().Err(err).Str("key", key.String()).Msg("Failed to persist cache entry")
		}
		return entry, nil
	})
	if err != nil {
		return nil, err
	}

	shared := *v.(*Entry)
	return &shared, nil
}

// Invalidate removes the entry for key
func (s *Store) Invalidate(ctx context.Context, key Key) {
	s.drop(ctx, key)
}

func (s *Store) load(ctx context.Context, key Key) (Row, bool) {
	if s.repo == nil {
		s.mu.RLock()
		defer s.mu.RUnlock()
		row, ok := s.memory[key]
		return row, ok
	}

	row, err := s.repo.Find(ctx, key)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key.String()).Msg("Cache read failed, treating as miss")
		return Row{}, false
	}
	if row == nil {
		return Row{}, false
	}
	return *row, true
}

func (s *Store) drop(ctx context.Context, key Key) {
	if s.repo == nil {
		s.mu.Lock()
		delete(s.memory, key)
		s.mu.Unlock()
		return
	}
	if err := s.repo.Delete(ctx, key); err != nil {
		s.log.Warn().Err(err).Str("key", key.String()).Msg("Failed to delete cache entry")
	}
}

// Purge removes entries older than their field set's TTL and returns the
// number removed per field set.
func (s *Store) Purge(ctx context.Context) (map[domain.FieldSet]int64, error) {
	now := s.now()
	results := make(map[domain.FieldSet]int64)

	if s.repo == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		for key, row := range s.memory {
			if now.Sub(row.FetchedAt) >= s.ttls.For(key.FieldSet) {
				delete(s.memory, key)
				results[key.FieldSet]++
			}
		}
		return results, nil
	}

	for _, fs := range domain.AllFieldSets {
		deleted, err := s.repo.DeleteFetchedBefore(ctx, fs, now.Add(-s.ttls.For(fs)))
		if err != nil {
			return results, err
		}
		results[fs] = deleted
	}
	return results, nil
}
