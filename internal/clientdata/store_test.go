package clientdata

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aristath/screener/internal/domain"
	testingpkg "github.com/aristath/screener/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestStore(t *testing.T) (*Store, *fakeClock, *Repository) {
	t.Helper()
	db, cleanup := testingpkg.NewTestDB(t, "cache")
	t.Cleanup(cleanup)

	clock := &fakeClock{now: time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)}
	repo := NewRepository(db.Conn())
	return NewStore(repo, DefaultTTLs(), zerolog.Nop(), WithClock(clock.Now)), clock, repo
}

func quarterlyPayload(source string) *domain.RawPayload {
	return &domain.RawPayload{
		Source:   source,
		EntityID: "NSE:ABC",
		FieldSet: domain.FieldSetQuarterly,
		Unit:     "crore",
		Periods: []domain.RawPeriod{
			{Label: "2026-06-30", Values: map[string]string{domain.ValueRevenue: "100"}},
		},
	}
}

var testKey = Key{EntityID: "NSE:ABC", FieldSet: domain.FieldSetQuarterly, PeriodID: "2026Q4"}

func TestStore_GetRespectsTTL(t *testing.T) {
	store, clock, _ := newTestStore(t)
	ctx := context.Background()

	_, ok := store.Get(ctx, testKey)
	assert.False(t, ok, "empty store must miss")

	_, err := store.Put(ctx, testKey, quarterlyPayload("eodhd"))
	require.NoError(t, err)

	clock.Advance(TTLQuarterly - time.Minute)
	entry, ok := store.Get(ctx, testKey)
	require.True(t, ok)
	assert.Equal(t, "eodhd", entry.SourceID)
	assert.True(t, entry.FromCache)
	require.Len(t, entry.Payload.Periods, 1)
	assert.Equal(t, "100", entry.Payload.Periods[0].Values[domain.ValueRevenue])

	clock.Advance(time.Minute)
	_, ok = store.Get(ctx, testKey)
	assert.False(t, ok, "entry at exactly TTL age is stale")
}

func TestStore_PutOverwrites(t *testing.T) {
	store, clock, _ := newTestStore(t)
	ctx := context.Background()

	_, err := store.Put(ctx, testKey, quarterlyPayload("eodhd"))
	require.NoError(t, err)

	clock.Advance(time.Hour)
	_, err = store.Put(ctx, testKey, quarterlyPayload("trendlyne"))
	require.NoError(t, err)

	entry, ok := store.Get(ctx, testKey)
	require.True(t, ok)
	assert.Equal(t, "trendlyne", entry.SourceID)
	assert.True(t, clock.Now().Equal(entry.FetchedAt))
}

func TestStore_GetOrFetch_CoalescesConcurrentCallers(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	var calls int32
	release := make(chan struct{})
	fetch := func(ctx context.Context) (*domain.RawPayload, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return quarterlyPayload("eodhd"), nil
	}

	const callers = 8
	var wg sync.WaitGroup
	results := make([]*Entry, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = store.GetOrFetch(ctx, testKey, fetch)
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "eodhd", results[i].SourceID)
	}
}

func TestStore_GetOrFetch_DistinctKeysFetchIndependently(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	var calls int32
	fetch := func(ctx context.Context) (*domain.RawPayload, error) {
		atomic.AddInt32(&calls, 1)
		return quarterlyPayload("eodhd"), nil
	}

	other := testKey
	other.EntityID = "NSE:XYZ"

	_, err := store.GetOrFetch(ctx, testKey, fetch)
	require.NoError(t, err)
	_, err = store.GetOrFetch(ctx, other, fetch)
	require.NoError(t, err)
	entry, err := store.GetOrFetch(ctx, testKey, fetch)
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.True(t, entry.FromCache)
}

func TestStore_GetOrFetch_ErrorsAreNotCached(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	boom := errors.New("upstream down")
	_, err := store.GetOrFetch(ctx, testKey, func(ctx context.Context) (*domain.RawPayload, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)

	_, ok := store.Get(ctx, testKey)
	assert.False(t, ok)
}

func TestStore_StaleEntryTriggersRefetch(t *testing.T) {
	store, clock, _ := newTestStore(t)
	ctx := context.Background()

	var calls int32
	fetch := func(ctx context.Context) (*domain.RawPayload, error) {
		atomic.AddInt32(&calls, 1)
		return quarterlyPayload("eodhd"), nil
	}

	_, err := store.GetOrFetch(ctx, testKey, fetch)
	require.NoError(t, err)
	clock.Advance(TTLQuarterly)
	entry, err := store.GetOrFetch(ctx, testKey, fetch)
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.False(t, entry.FromCache)
}

func TestStore_UndecodableRowIsDroppedAsMiss(t *testing.T) {
	store, clock, repo := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, Row{
		Key:       testKey,
		Payload:   []byte{0xc1, 0xff, 0x00},
		FetchedAt: clock.Now(),
		SourceID:  "eodhd",
	}))

	_, ok := store.Get(ctx, testKey)
	assert.False(t, ok)

	row, err := repo.Find(ctx, testKey)
	require.NoError(t, err)
	assert.Nil(t, row)
}

func TestStore_WithoutPersistence(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)}
	store := NewStore(nil, nil, zerolog.Nop(), WithClock(clock.Now))
	ctx := context.Background()

	assert.False(t, store.Persistent())

	_, err := store.Put(ctx, testKey, quarterlyPayload("eodhd"))
	require.NoError(t, err)
	_, ok := store.Get(ctx, testKey)
	assert.True(t, ok)

	clock.Advance(TTLQuarterly)
	purged, err := store.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged[domain.FieldSetQuarterly])
}

func TestCleanupJob_RemovesOnlyStaleRows(t *testing.T) {
	store, clock, repo := newTestStore(t)
	ctx := context.Background()

	priceKey := Key{EntityID: "NSE:ABC", FieldSet: domain.FieldSetPrice, PeriodID: "2026-10-16"}
	_, err := store.Put(ctx, priceKey, &domain.RawPayload{Source: "nse", FieldSet: domain.FieldSetPrice})
	require.NoError(t, err)
	_, err = store.Put(ctx, testKey, quarterlyPayload("eodhd"))
	require.NoError(t, err)

	clock.Advance(time.Hour)

	job := NewCleanupJob(store, nil, zerolog.Nop())
	assert.Equal(t, "cache_cleanup", job.Name())
	require.NoError(t, job.Run())

	counts, err := repo.CountByFieldSet(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), counts[domain.FieldSetPrice])
	assert.Equal(t, int64(1), counts[domain.FieldSetQuarterly])
}

type recordingCheckpointer struct {
	modes []string
	err   error
}

func (c *recordingCheckpointer) Name() string { return "cache" }

func (c *recordingCheckpointer) WALCheckpoint(mode string) error {
	c.modes = append(c.modes, mode)
	return c.err
}

func TestCleanupJob_CheckpointsAfterDeleting(t *testing.T) {
	store, clock, _ := newTestStore(t)
	ctx := context.Background()

	priceKey := Key{EntityID: "NSE:ABC", FieldSet: domain.FieldSetPrice, PeriodID: "2026-10-16"}
	_, err := store.Put(ctx, priceKey, &domain.RawPayload{Source: "nse", FieldSet: domain.FieldSetPrice})
	require.NoError(t, err)

	checkpointer := &recordingCheckpointer{}
	job := NewCleanupJob(store, checkpointer, zerolog.Nop())

	// Nothing stale yet, nothing to checkpoint
	require.NoError(t, job.Run())
	assert.Empty(t, checkpointer.modes)

	clock.Advance(time.Hour)
	require.NoError(t, job.Run())
	assert.Equal(t, []string{"TRUNCATE"}, checkpointer.modes)

	// A failed checkpoint does not fail the job
	checkpointer.err = errors.New("database is locked")
	_, err = store.Put(ctx, priceKey, &domain.RawPayload{Source: "nse", FieldSet: domain.FieldSetPrice})
	require.NoError(t, err)
	clock.Advance(time.Hour)
	assert.NoError(t, job.Run())
	assert.Len(t, checkpointer.modes, 2)
}

func TestCleanupJob_TruncatesWAL(t *testing.T) {
	db, cleanup := testingpkg.NewTestDB(t, "cache")
	t.Cleanup(cleanup)

	clock := &fakeClock{now: time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)}
	store := NewStore(NewRepository(db.Conn()), DefaultTTLs(), zerolog.Nop(), WithClock(clock.Now))
	ctx := context.Background()

	priceKey := Key{EntityID: "NSE:ABC", FieldSet: domain.FieldSetPrice, PeriodID: "2026-10-16"}
	_, err := store.Put(ctx, priceKey, &domain.RawPayload{Source: "nse", FieldSet: domain.FieldSetPrice})
	require.NoError(t, err)
	clock.Advance(time.Hour)

	before, err := db.GetStats()
	require.NoError(t, err)

	require.NoError(t, NewCleanupJob(store, db, zerolog.Nop()).Run())

	after, err := db.GetStats()
	require.NoError(t, err)
	assert.LessOrEqual(t, after.WALSizeBytes, before.WALSizeBytes)

	counts, err := NewRepository(db.Conn()).CountByFieldSet(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), counts[domain.FieldSetPrice])
}

func TestTTLPolicy(t *testing.T) {
	policy := DefaultTTLs().Merge(TTLPolicy{domain.FieldSetPrice: time.Minute, domain.FieldSetActions: 0})

	assert.Equal(t, time.Minute, policy.For(domain.FieldSetPrice))
	assert.Equal(t, TTLActions, policy.For(domain.FieldSetActions))
	assert.Equal(t, TTLQuarterly, TTLPolicy{}.For(domain.FieldSetQuarterly))
}

func TestNewKey(t *testing.T) {
	now := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	key := NewKey(domain.Entity{Exchange: "NSE", Symbol: "ABC"}, domain.FieldSetPrice, now)
	assert.Equal(t, "NSE:ABC|price|2026-10-16", key.String())
}

func TestStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client_data.db")
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)}

	db, err := OpenDatabase(path, zerolog.Nop())
	require.NoError(t, err)
	store := NewStore(NewRepository(db.Conn()), DefaultTTLs(), zerolog.Nop(), WithClock(clock.Now))
	_, err = store.Put(ctx, testKey, quarterlyPayload("eodhd"))
	require.NoError(t, err)
	require.NoError(t, db.Close())

	reopened, err := OpenDatabase(path, zerolog.Nop())
	require.NoError(t, err)
	defer reopened.Close()

	clock.Advance(time.Hour)
	restarted := NewStore(NewRepository(reopened.Conn()), DefaultTTLs(), zerolog.Nop(), WithClock(clock.Now))
	entry, ok := restarted.Get(ctx, testKey)
	require.True(t, ok)
	assert.Equal(t, "eodhd", entry.SourceID)
	assert.True(t, entry.FromCache)
	assert.Equal(t, time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC), entry.FetchedAt.UTC())
	require.NotNil(t, entry.Payload)
	require.Len(t, entry.Payload.Periods, 1)
	assert.Equal(t, "100", entry.Payload.Periods[0].Values[domain.ValueRevenue])

	matches, err := filepath.Glob(path + ".corrupt-*")
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestOpenDatabase_RecreatesCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client_data.db")
	require.NoError(t, os.WriteFile(path, []byte("this is not a sqlite database, not even close......"), 0644))

	db, err := OpenDatabase(path, zerolog.Nop())
	require.NoError(t, err)
	defer db.Close()

	store := NewStore(NewRepository(db.Conn()), nil, zerolog.Nop())
	_, err = store.Put(context.Background(), testKey, quarterlyPayload("eodhd"))
	require.NoError(t, err)

	matches, err := filepath.Glob(path + ".corrupt-*")
	require.NoError(t, err)
	assert.NotEmpty(t, matches)
}
