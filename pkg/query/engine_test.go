package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrsignal/temporal-engine/pkg/temporal"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func datePtr(y int, m time.Month, d int) *time.Time {
	t := date(y, m, d)
	return &t
}

func seedSeries(t *testing.T, store temporal.Store, subjectID string, months int) {
	t.Helper()
	sc := temporal.SeriesScope(temporal.SeriesAssignment)
	for i := 0; i < months; i++ {
		start := date(2024, time.Month(i+1), 1)
		var end *time.Time
		if i < months-1 {
			end = datePtr(2024, time.Month(i+2), 1)
		}
		_, err := store.Insert(temporal.NewRecord{
			Tenant:         "acme",
			SubjectID:      subjectID,
			Scope:          sc,
			Payload:        map[string]any{"n": i},
			EffectiveStart: start,
			EffectiveEnd:   end,
		})
		require.NoError(t, err)
	}
}

func TestEngine_ActiveAsOfCaches(t *testing.T) {
	store := temporal.NewMemoryStore(nil)
	seedSeries(t, store, "emp-1", 3)
	e := NewEngine(store, DefaultConfig(), nil)
	sc := temporal.SeriesScope(temporal.SeriesAssignment)

	got, err := e.ActiveAsOf("acme", "emp-1", sc, date(2024, 2, 15))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.EqualValues(t, 1, got.Payload["n"])
	assert.Equal(t, 1, e.cache.Size())

	// Second lookup is served from cache.
	again, err := e.ActiveAsOf("acme", "emp-1", sc, date(2024, 2, 15))
	require.NoError(t, err)
	assert.Equal(t, got.ID, again.ID)

	// A gap answer is not cached.
	gap, err := e.ActiveAsOf("acme", "emp-1", sc, date(2030, 1, 1))
	require.NoError(t, err)
	assert.Nil(t, gap)
	assert.Equal(t, 1, e.cache.Size())
}

func TestEngine_InvalidateSeries(t *testing.T) {
	store := temporal.NewMemoryStore(nil)
	seedSeries(t, store, "emp-1", 2)
	seedSeries(t, store, "emp-2", 2)
	e := NewEngine(store, DefaultConfig(), nil)
	sc := temporal.SeriesScope(temporal.SeriesAssignment)

	_, err := e.ActiveAsOf("acme", "emp-1", sc, date(2024, 1, 15))
	require.NoError(t, err)
	_, err = e.ActiveAsOf("acme", "emp-2", sc, date(2024, 1, 15))
	require.NoError(t, err)
	require.Equal(t, 2, e.cache.Size())

	e.InvalidateSeries(temporal.NewSeriesKey("acme", "emp-1", sc))
	assert.Equal(t, 1, e.cache.Size())
}

func TestEngine_CacheDisabled(t *testing.T) {
	store := temporal.NewMemoryStore(nil)
	seedSeries(t, store, "emp-1", 1)
	e := NewEngine(store, nil, nil)
	sc := temporal.SeriesScope(temporal.SeriesAssignment)

	got, err := e.ActiveAsOf("acme", "emp-1", sc, date(2024, 1, 15))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Nil(t, e.cache)

	// Invalidation on a cacheless engine is a no-op, not a panic.
	e.InvalidateSeries(temporal.NewSeriesKey("acme", "emp-1", sc))
}

func TestEngine_Range(t *testing.T) {
	store := temporal.NewMemoryStore(nil)
	seedSeries(t, store, "emp-1", 6)
	e := NewEngine(store, DefaultConfig(), nil)
	sc := temporal.SeriesScope(temporal.SeriesAssignment)

	page, next, err := e.Range("acme", "emp-1", sc, date(2024, 2, 15), date(2024, 5, 15), 10, "")
	require.NoError(t, err)
	assert.Empty(t, next)
	require.Len(t, page, 4)
	assert.EqualValues(t, 1, page[0].Payload["n"])
	assert.EqualValues(t, 4, page[3].Payload["n"])
}

func TestSeriesIterator_WalkAndResume(t *testing.T) {
	store := temporal.NewMemoryStore(nil)
	seedSeries(t, store, "emp-1", 5)
	e := NewEngine(store, DefaultConfig(), nil)
	sc := temporal.SeriesScope(temporal.SeriesAssignment)

	it := e.Series("acme", "emp-1", sc, 2)

	first, err := it.Next()
	require.NoError(t, err)
	require.Len(t, first, 2)
	require.NotEmpty(t, it.Token())
	require.False(t, it.Done())

	// Resume from the saved token with a fresh iterator, as a restarted
	// process would.
	resumed := e.ResumeSeries("acme", "emp-1", sc, 2, it.Token())
	var rest []temporal.Record
	for {
		page, err := resumed.Next()
		require.NoError(t, err)
		if page == nil {
			break
		}
		rest = append(rest, page...)
	}
	require.True(t, resumed.Done())
	require.Len(t, rest, 3)
	assert.EqualValues(t, 2, rest[0].Payload["n"])
	assert.EqualValues(t, 4, rest[2].Payload["n"])
}
