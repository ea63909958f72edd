package query

import (
	"log/slog"
	"time"

	"github.com/hrsignal/temporal-engine/pkg/scope"
	"github.com/hrsignal/temporal-engine/pkg/temporal"
)

// Engine answers read queries against the temporal store. As-of lookups are
// read-through cached; range and series queries always hit the store because
// their result sets are paginated.
type Engine struct {
	store  temporal.Store
	cache  *LRUCache
	logger *slog.Logger
}

// NewEngine creates an Engine. cfg may be nil to disable caching.
func NewEngine(store temporal.Store, cfg *Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{store: store, logger: logger}
	if cfg != nil && cfg.CacheEnabled {
		e.cache = NewLRUCache(cfg.CacheMaxSize, cfg.CacheTTL)
	}
	return e
}

// Get returns one record by ID, uncached. Returns nil when the ID does not
// exist.
func (e *Engine) Get(recordID string) (*temporal.Record, error) {
	return e.store.Get(recordID)
}

// ActiveAsOf returns the record active at the given instant for a subject and
// scope, or nil when the instant falls in a gap. Answers are cached per
// (series, instant) until the series is next written.
func (e *Engine) ActiveAsOf(tenant, subjectID string, sc scope.Scope, at time.Time) (*temporal.Record, error) {
	key := temporal.NewSeriesKey(tenant, subjectID, sc)

	var cacheKey string
	if e.cache != nil {
		cacheKey = asOfCacheKey(key, at)
		if rec, ok := e.cache.Get(cacheKey); ok {
			return rec, nil
		}
	}

	rec, err := e.store.ActiveAsOf(key, at)
	if err != nil {
		return nil, err
	}
	if e.cache != nil && rec != nil {
		e.cache.Set(cacheKey, rec)
	}
	return rec, nil
}

// Range returns one page of the records whose intervals intersect
// [start, end), ordered by effective start.
func (e *Engine) Range(tenant, subjectID string, sc scope.Scope, start, end time.Time, pageSize int, pageToken string) ([]temporal.Record, string, error) {
	key := temporal.NewSeriesKey(tenant, subjectID, sc)
	return e.store.Intersecting(key, start, end, pageSize, pageToken)
}

// Series returns a restartable iterator over a subject's full series in
// effective-start order.
func (e *Engine) Series(tenant, subjectID string, sc scope.Scope, pageSize int) *SeriesIterator {
	return &SeriesIterator{
		store:    e.store,
		key:      temporal.NewSeriesKey(tenant, subjectID, sc),
		pageSize: pageSize,
	}
}

// ResumeSeries returns a series iterator positioned after a previously
// returned page token, so interrupted walks can pick up where they stopped.
func (e *Engine) ResumeSeries(tenant, subjectID string, sc scope.Scope, pageSize int, pageToken string) *SeriesIterator {
	it := e.Series(tenant, subjectID, sc, pageSize)
	it.token = pageToken
	return it
}

// InvalidateSeries drops every cached as-of answer for one series. The
// validator calls this after each successful write so readers never see a
// superseded answer from cache.
func (e *Engine) InvalidateSeries(key temporal.SeriesKey) {
	if e.cache == nil {
		return
	}
	e.cache.InvalidatePrefix(seriesCacheKey(key) + "|")
}

// SeriesIterator pages through one series. Token returns the resume position
// after any page, making the walk restartable across process boundaries.
type SeriesIterator struct {
	store    temporal.Store
	key      temporal.SeriesKey
	pageSize int
	token    string
	done     bool
}

// Next returns the next page of records. It returns (nil, nil) once the
// series is exhausted.
func (it *SeriesIterator) Next() ([]temporal.Record, error) {
	if it.done {
		return nil, nil
	}
	page, next, err := it.store.SeriesPage(it.key, it.pageSize, it.token)
	if err != nil {
		return nil, err
	}
	it.token = next
	if next == "" {
		it.done = true
	}
	if len(page) == 0 {
		it.done = true
		return nil, nil
	}
	return page, nil
}

// Token returns the current resume position. Empty means either the walk has
// not started or it has finished; check Done to distinguish.
func (it *SeriesIterator) Token() string { return it.token }

// Done reports whether the iterator is exhausted.
func (it *SeriesIterator) Done() bool { return it.done }

func seriesCacheKey(key temporal.SeriesKey) string {
	return key.Tenant + "|" + key.SubjectID + "|" + key.Fingerprint
}

func asOfCacheKey(key temporal.SeriesKey, at time.Time) string {
	return seriesCacheKey(key) + "|" + at.UTC().Format(time.RFC3339Nano)
}
