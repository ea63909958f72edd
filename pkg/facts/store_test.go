package facts

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	store := NewStore(db)
	require.NoError(t, store.AutoMigrate())
	return store
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t.UTC()
}

func intPtr(v int) *int { return &v }

func baseFact(subject, d string) *FactRecord {
	return &FactRecord{
		Tenant:           "acme",
		SubjectID:        subject,
		ExternalID:       "EE1042",
		Day:              day(d),
		WorkedMinutes:    480,
		RegularMinutes:   450,
		OT1Minutes:       30,
		OT2Minutes:       0,
		ScheduledMinutes: intPtr(480),
		AbsenceMinutes:   0,
	}
}

func TestStore_ReplaceSupersedes(t *testing.T) {
	store := newTestStore(t)

	first, err := store.Replace(baseFact("emp-1", "2024-05-06"))
	require.NoError(t, err)

	active, err := store.GetActive("acme", "emp-1", day("2024-05-06"))
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, first.ID, active.ID)

	// A correction replaces the whole fact.
	corrected := baseFact("emp-1", "2024-05-06")
	corrected.WorkedMinutes = 510
	corrected.OT1Minutes = 60
	_, err = store.Replace(corrected)
	require.NoError(t, err)

	active, err = store.GetActive("acme", "emp-1", day("2024-05-06"))
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, corrected.ID, active.ID)
	assert.Equal(t, 510, active.WorkedMinutes)

	// The prior version stays, marked superseded.
	history, err := store.History("acme", "emp-1", day("2024-05-06"))
	require.NoError(t, err)
	require.Len(t, history, 2)
	superseded := 0
	for _, h := range history {
		if !h.Active() {
			superseded++
		}
	}
	assert.Equal(t, 1, superseded)
}

func TestStore_GetActiveScoping(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Replace(baseFact("emp-1", "2024-05-06"))
	require.NoError(t, err)

	got, err := store.GetActive("acme", "emp-1", day("2024-05-07"))
	require.NoError(t, err)
	assert.Nil(t, got, "different day")

	got, err = store.GetActive("globex", "emp-1", day("2024-05-06"))
	require.NoError(t, err)
	assert.Nil(t, got, "different tenant")
}

func TestStore_ListRange(t *testing.T) {
	store := newTestStore(t)

	for _, d := range []string{"2024-05-06", "2024-05-07", "2024-05-08"} {
		_, err := store.Replace(baseFact("emp-1", d))
		require.NoError(t, err)
	}

	records, err := store.ListRange("acme", "emp-1", day("2024-05-06"), day("2024-05-08"))
	require.NoError(t, err)
	require.Len(t, records, 2, "end day is exclusive")
	assert.Equal(t, day("2024-05-06"), records[0].Day.UTC())
	assert.Equal(t, day("2024-05-07"), records[1].Day.UTC())
}

func TestStore_TotalsForPeriod(t *testing.T) {
	store := newTestStore(t)

	f1 := baseFact("emp-1", "2024-05-06")
	f1.AbsenceMinutes = 60
	_, err := store.Replace(f1)
	require.NoError(t, err)

	f2 := baseFact("emp-2", "2024-05-06")
	f2.OT1Minutes = 0
	f2.WorkedMinutes = 450
	_, err = store.Replace(f2)
	require.NoError(t, err)

	// A fact without a schedule contributes worked/overtime but is excluded
	// from the absenteeism denominator.
	f3 := baseFact("emp-3", "2024-05-06")
	f3.ScheduledMinutes = nil
	f3.OT1Minutes = 0
	f3.WorkedMinutes = 450
	f3.AbsenceMinutes = 120
	f3.Unbounded = true
	_, err = store.Replace(f3)
	require.NoError(t, err)

	totals, err := store.TotalsForPeriod("acme", day("2024-05-06"), day("2024-05-07"))
	require.NoError(t, err)
	assert.EqualValues(t, 480+450+450, totals.WorkedMinutes)
	assert.EqualValues(t, 30, totals.OvertimeMinutes)
	assert.EqualValues(t, 60, totals.AbsenceMinutes, "unscheduled absence excluded")
	assert.EqualValues(t, 960, totals.ScheduledMinutes)

	// Superseded versions never contribute.
	correction := baseFact("emp-1", "2024-05-06")
	correction.AbsenceMinutes = 0
	_, err = store.Replace(correction)
	require.NoError(t, err)

	totals, err = store.TotalsForPeriod("acme", day("2024-05-06"), day("2024-05-07"))
	require.NoError(t, err)
	assert.EqualValues(t, 0, totals.AbsenceMinutes)
}
