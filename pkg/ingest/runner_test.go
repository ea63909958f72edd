package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/hrsignal/temporal-engine/pkg/directory"
	"github.com/hrsignal/temporal-engine/pkg/facts"
	"github.com/hrsignal/temporal-engine/pkg/temporal"
	"github.com/hrsignal/temporal-engine/pkg/validator"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newTestRunner(t *testing.T) (*Runner, temporal.Store) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	factStore := facts.NewStore(db)
	require.NoError(t, factStore.AutoMigrate())

	resolver := directory.StaticResolver{
		"emp-1": {SubjectID: "emp-1", Tenant: "acme", ExternalID: "EE1"},
		"emp-2": {SubjectID: "emp-2", Tenant: "acme", ExternalID: "EE2"},
	}
	records := temporal.NewMemoryStore(nil)
	v := validator.New(resolver, records, factStore, nil, nil)
	return NewRunner(v, nil), records
}

func TestRunner_AppliesBatch(t *testing.T) {
	r, records := newTestRunner(t)

	result, err := r.Apply(&Batch{
		Tenant: "acme",
		Changes: []ChangeItem{
			{
				SubjectID:      "emp-1",
				Scope:          temporal.SeriesScope(temporal.SeriesAssignment),
				Payload:        map[string]any{"department": "sales"},
				EffectiveStart: date(2024, 1, 1),
			},
			{
				SubjectID:      "emp-2",
				Scope:          temporal.SeriesScope(temporal.SeriesAssignment),
				Payload:        map[string]any{"department": "support"},
				EffectiveStart: date(2024, 1, 1),
			},
		},
		Facts: []FactItem{
			{SubjectID: "emp-1", Day: date(2024, 1, 2), WorkedMinutes: 480, RegularMinutes: 480},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.RecordsApplied)
	assert.Empty(t, result.RecordFailures)
	assert.Equal(t, 1, result.FactsApplied)
	assert.Empty(t, result.FactFailures)

	key := temporal.NewSeriesKey("acme", "emp-1", temporal.SeriesScope(temporal.SeriesAssignment))
	active, err := records.ActiveAsOf(key, date(2024, 2, 1))
	require.NoError(t, err)
	require.NotNil(t, active)
}

func TestRunner_RejectedItemsDoNotBlockOthers(t *testing.T) {
	r, records := newTestRunner(t)
	sc := temporal.SeriesScope(temporal.SeriesAssignment)

	result, err := r.Apply(&Batch{
		Tenant: "acme",
		Changes: []ChangeItem{
			// Unknown subject: rejected.
			{SubjectID: "emp-404", Scope: sc, EffectiveStart: date(2024, 1, 1)},
			// Fine.
			{SubjectID: "emp-1", Scope: sc, EffectiveStart: date(2024, 1, 1)},
		},
		Facts: []FactItem{
			// Components do not sum: rejected.
			{SubjectID: "emp-1", Day: date(2024, 1, 2), WorkedMinutes: 450, RegularMinutes: 400},
			// Fine.
			{SubjectID: "emp-2", Day: date(2024, 1, 2), WorkedMinutes: 480, RegularMinutes: 480},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.RecordsApplied)
	require.Len(t, result.RecordFailures, 1)
	assert.Equal(t, 0, result.RecordFailures[0].Index)
	assert.Equal(t, "emp-404", result.RecordFailures[0].SubjectID)

	assert.Equal(t, 1, result.FactsApplied)
	require.Len(t, result.FactFailures, 1)
	assert.Equal(t, 0, result.FactFailures[0].Index)

	key := temporal.NewSeriesKey("acme", "emp-1", sc)
	active, err := records.ActiveAsOf(key, date(2024, 2, 1))
	require.NoError(t, err)
	require.NotNil(t, active, "valid item must land despite earlier rejection")
}

func TestWorkerPool_ProcessOne(t *testing.T) {
	r, _ := newTestRunner(t)
	store := newTestStore(t)

	batch := &Batch{
		Tenant: "acme",
		Changes: []ChangeItem{
			{
				SubjectID:      "emp-1",
				Scope:          temporal.SeriesScope(temporal.SeriesEmployment),
				EffectiveStart: date(2024, 1, 1),
			},
		},
	}
	lookup := func(source string) (ChangeSource, bool) {
		if source == "payroll" {
			return &StaticSource{Batch: batch}, true
		}
		return nil, false
	}

	wp := NewWorkerPool(store, r, lookup, nil, DefaultSyncConfig(), nil)

	run := enqueue(t, store, "acme", "payroll", "")
	wp.ProcessOne(context.Background(), 0)

	got, err := store.Get(run.ID)
	require.NoError(t, err)
	assert.Equal(t, RunStateSucceeded, got.State)
	assert.Equal(t, 1, got.RecordsApplied)

	// Unknown source fails the run.
	bad := enqueue(t, store, "acme", "unknown", "")
	for i := 0; i < 4; i++ {
		wp.ProcessOne(context.Background(), 0)
	}
	got, err = store.Get(bad.ID)
	require.NoError(t, err)
	assert.Equal(t, RunStateFailed, got.State)
	assert.Contains(t, got.LastError, "unknown sync source")
}
