package metrics

import (
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
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func datePtr(y int, m time.Month, d int) *time.Time {
	t := date(y, m, d)
	return &t
}

type fixture struct {
	records  *temporal.MemoryStore
	facts    *facts.Store
	subjects *directory.Store
	history  *HistoryStore
	reporter *Reporter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	factStore := facts.NewStore(db)
	require.NoError(t, factStore.AutoMigrate())
	subjects := directory.NewStore(db)
	require.NoError(t, subjects.AutoMigrate())
	history := NewHistoryStore(db)
	require.NoError(t, history.AutoMigrate())

	records := temporal.NewMemoryStore(nil)
	return &fixture{
		records:  records,
		facts:    factStore,
		subjects: subjects,
		history:  history,
		reporter: NewReporter(records, factStore, subjects, history, nil),
	}
}

func (f *fixture) employment(t *testing.T, subjectID string, start time.Time, end *time.Time) {
	t.Helper()
	_, err := f.records.Insert(temporal.NewRecord{
		Tenant:         "acme",
		SubjectID:      subjectID,
		Scope:          temporal.SeriesScope(temporal.SeriesEmployment),
		EffectiveStart: start,
		EffectiveEnd:   end,
	})
	require.NoError(t, err)
}

func (f *fixture) fact(t *testing.T, subjectID string, day time.Time, worked, overtime, absent, scheduled int) {
	t.Helper()
	sched := scheduled
	_, err := f.facts.Replace(&facts.FactRecord{
		Tenant:           "acme",
		SubjectID:        subjectID,
		ExternalID:       "EE-" + subjectID,
		Day:              day,
		WorkedMinutes:    worked,
		RegularMinutes:   worked - overtime,
		OT1Minutes:       overtime,
		ScheduledMinutes: &sched,
		AbsenceMinutes:   absent,
	})
	require.NoError(t, err)
}

func TestReporter_Headcount(t *testing.T) {
	f := newFixture(t)
	f.employment(t, "emp-1", date(2024, 1, 1), nil)
	f.employment(t, "emp-2", date(2024, 2, 1), nil)
	f.employment(t, "emp-3", date(2023, 1, 1), datePtr(2024, 3, 1))

	count, err := f.reporter.HeadcountAsOf("acme", date(2024, 2, 15))
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)

	count, err = f.reporter.HeadcountAsOf("acme", date(2024, 4, 1))
	require.NoError(t, err)
	assert.EqualValues(t, 2, count, "closed employment drops out of headcount")

	count, err = f.reporter.HeadcountAsOf("globex", date(2024, 2, 15))
	require.NoError(t, err)
	assert.EqualValues(t, 0, count)
}

func TestReporter_Turnover(t *testing.T) {
	f := newFixture(t)
	// Four employed at period start, one leaves mid-period.
	f.employment(t, "emp-1", date(2023, 1, 1), nil)
	f.employment(t, "emp-2", date(2023, 1, 1), nil)
	f.employment(t, "emp-3", date(2023, 1, 1), nil)
	f.employment(t, "emp-4", date(2023, 1, 1), datePtr(2024, 2, 1))

	snap, err := f.reporter.Compute("acme", MetricTurnover, date(2024, 1, 1), date(2024, 4, 1))
	require.NoError(t, err)
	// 1 departure over an average headcount of (4+3)/2.
	assert.InDelta(t, 100.0/3.5, snap.Value, 0.001)
	assert.Equal(t, StatusUnknown, snap.Status)
}

func TestReporter_AbsenteeismAndOvertime(t *testing.T) {
	f := newFixture(t)
	f.fact(t, "emp-1", date(2024, 1, 2), 480, 60, 0, 480)
	f.fact(t, "emp-1", date(2024, 1, 3), 0, 0, 480, 480)
	f.fact(t, "emp-2", date(2024, 1, 2), 480, 0, 0, 480)

	snap, err := f.reporter.Compute("acme", MetricAbsenteeism, date(2024, 1, 1), date(2024, 2, 1))
	require.NoError(t, err)
	assert.InDelta(t, 100.0/3, snap.Value, 0.001)

	snap, err = f.reporter.Compute("acme", MetricOvertime, date(2024, 1, 1), date(2024, 2, 1))
	require.NoError(t, err)
	assert.InDelta(t, 6.25, snap.Value, 0.001)
}

func TestReporter_RatesAgainstConfigActiveAtPeriodEnd(t *testing.T) {
	f := newFixture(t)
	f.fact(t, "emp-1", date(2024, 1, 3), 0, 0, 480, 480)
	f.fact(t, "emp-2", date(2024, 1, 2), 480, 0, 0, 480)

	subject, err := f.subjects.Upsert(&directory.SubjectRecord{
		Tenant:     "acme",
		ExternalID: MetricAbsenteeism,
		Kind:       directory.KindMetric,
	})
	require.NoError(t, err)

	// Strict thresholds through January, relaxed from February on.
	sc := temporal.SeriesScope(temporal.SeriesMetricConfig)
	_, err = f.records.Insert(temporal.NewRecord{
		Tenant:    "acme",
		SubjectID: subject.SubjectID,
		Scope:     sc,
		Payload: map[string]any{
			"target_value":     5.0,
			"threshold_yellow": 10.0,
			"threshold_red":    25.0,
		},
		EffectiveStart: date(2023, 1, 1),
		EffectiveEnd:   datePtr(2024, 2, 1),
	})
	require.NoError(t, err)
	_, err = f.records.Insert(temporal.NewRecord{
		Tenant:    "acme",
		SubjectID: subject.SubjectID,
		Scope:     sc,
		Payload: map[string]any{
			"target_value":     30.0,
			"threshold_yellow": 40.0,
			"threshold_red":    60.0,
		},
		EffectiveStart: date(2024, 2, 1),
	})
	require.NoError(t, err)

	// Absenteeism is 50%: red under the January config.
	snap, err := f.reporter.Compute("acme", MetricAbsenteeism, date(2024, 1, 1), date(2024, 1, 31))
	require.NoError(t, err)
	assert.InDelta(t, 50.0, snap.Value, 0.001)
	assert.Equal(t, StatusRed, snap.Status)
	require.NotNil(t, snap.Target)
	assert.Equal(t, 5.0, *snap.Target)

	// Same value judged by the config active at a later period end: yellow.
	snap, err = f.reporter.Compute("acme", MetricAbsenteeism, date(2024, 1, 1), date(2024, 2, 15))
	require.NoError(t, err)
	assert.Equal(t, StatusYellow, snap.Status)
}

func TestReporter_PersistsAndOverwritesHistory(t *testing.T) {
	f := newFixture(t)
	f.employment(t, "emp-1", date(2024, 1, 1), nil)

	_, err := f.reporter.Compute("acme", MetricHeadcount, date(2024, 1, 1), date(2024, 2, 1))
	require.NoError(t, err)

	f.employment(t, "emp-2", date(2024, 1, 15), nil)
	_, err = f.reporter.Compute("acme", MetricHeadcount, date(2024, 1, 1), date(2024, 2, 1))
	require.NoError(t, err)

	history, err := f.history.List("acme", MetricHeadcount, 10)
	require.NoError(t, err)
	require.Len(t, history, 1, "recomputation overwrites, not appends")
	assert.Equal(t, 2.0, history[0].Value)
}

func TestStatusFor(t *testing.T) {
	lower := &Config{ThresholdYellow: 10, ThresholdRed: 25, Orientation: OrientationLower}
	assert.Equal(t, StatusGreen, lower.StatusFor(5))
	assert.Equal(t, StatusYellow, lower.StatusFor(20))
	assert.Equal(t, StatusRed, lower.StatusFor(30))

	higher := &Config{ThresholdYellow: 90, ThresholdRed: 75, Orientation: OrientationHigher}
	assert.Equal(t, StatusGreen, higher.StatusFor(95))
	assert.Equal(t, StatusYellow, higher.StatusFor(80))
	assert.Equal(t, StatusRed, higher.StatusFor(50))

	var none *Config
	assert.Equal(t, StatusUnknown, none.StatusFor(50))
}

func TestConfigFromRecord(t *testing.T) {
	rec := &temporal.Record{
		ID: "r1",
		Payload: temporal.JSONMap{
			"target_value":     5.0,
			"threshold_yellow": 10.0,
			"threshold_red":    25.0,
			"orientation":      "higher",
		},
	}
	cfg, err := ConfigFromRecord(rec)
	require.NoError(t, err)
	assert.Equal(t, OrientationHigher, cfg.Orientation)
	assert.Equal(t, 5.0, cfg.TargetValue)

	rec.Payload["orientation"] = "sideways"
	_, err = ConfigFromRecord(rec)
	assert.Error(t, err)

	delete(rec.Payload, "orientation")
	cfg, err = ConfigFromRecord(rec)
	require.NoError(t, err)
	assert.Equal(t, OrientationLower, cfg.Orientation, "orientation defaults to lower")

	delete(rec.Payload, "threshold_red")
	_, err = ConfigFromRecord(rec)
	assert.Error(t, err)

	cfg, err = ConfigFromRecord(nil)
	require.NoError(t, err)
	assert.Nil(t, cfg)
}
