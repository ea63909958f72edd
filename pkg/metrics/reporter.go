package metrics

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/hrsignal/temporal-engine/pkg/directory"
	"github.com/hrsignal/temporal-engine/pkg/facts"
	"github.com/hrsignal/temporal-engine/pkg/temporal"
)

// SubjectFinder locates the metric subject whose configuration series rates
// a metric. Satisfied by directory.Store.
type SubjectFinder interface {
	FindByExternalID(tenant, externalID string) (*directory.SubjectRecord, error)
}

// Reporter computes metric snapshots from the temporal store and the fact
// store. Values are percentages except headcount, which is a count.
type Reporter struct {
	records  temporal.Store
	facts    *facts.Store
	subjects SubjectFinder
	history  *HistoryStore
	logger   *slog.Logger
}

// NewReporter creates a Reporter. subjects may be nil, in which case every
// snapshot is rated StatusUnknown; history may be nil to skip persistence.
func NewReporter(records temporal.Store, factStore *facts.Store, subjects SubjectFinder, history *HistoryStore, logger *slog.Logger) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reporter{
		records:  records,
		facts:    factStore,
		subjects: subjects,
		history:  history,
		logger:   logger,
	}
}

// HeadcountAsOf counts the employment records active at the given instant.
func (r *Reporter) HeadcountAsOf(tenant string, at time.Time) (int64, error) {
	return r.records.ActiveCount(tenant, employmentFingerprint(), at)
}

// Compute calculates one metric over [start, end), rates it against the
// configuration active at the period's end, and persists the snapshot when a
// history store is attached.
func (r *Reporter) Compute(tenant, metric string, start, end time.Time) (*Snapshot, error) {
	value, err := r.value(tenant, metric, start, end)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		Tenant:      tenant,
		Metric:      metric,
		PeriodStart: start,
		PeriodEnd:   end,
		Value:       value,
		Status:      StatusUnknown,
	}

	cfg, err := r.configFor(tenant, metric, end)
	if err != nil {
		// A malformed configuration must not block reporting the value.
		r.logger.Warn("metric configuration unusable",
			"tenant", tenant, "metric", metric, "error", err)
	} else if cfg != nil {
		snap.Status = cfg.StatusFor(value)
		target := cfg.TargetValue
		snap.Target = &target
	}

	if r.history != nil {
		if _, err := r.history.Upsert(*snap); err != nil {
			return nil, err
		}
	}
	return snap, nil
}

// ComputeAll calculates every known metric for the period.
func (r *Reporter) ComputeAll(tenant string, start, end time.Time) ([]Snapshot, error) {
	out := make([]Snapshot, 0, 4)
	for _, metric := range []string{MetricHeadcount, MetricTurnover, MetricAbsenteeism, MetricOvertime} {
		snap, err := r.Compute(tenant, metric, start, end)
		if err != nil {
			return nil, err
		}
		out = append(out, *snap)
	}
	return out, nil
}

func (r *Reporter) value(tenant, metric string, start, end time.Time) (float64, error) {
	switch metric {
	case MetricHeadcount:
		count, err := r.HeadcountAsOf(tenant, end)
		return float64(count), err

	case MetricTurnover:
		closed, err := r.records.ClosedCount(tenant, employmentFingerprint(), start, end)
		if err != nil {
			return 0, err
		}
		headStart, err := r.HeadcountAsOf(tenant, start)
		if err != nil {
			return 0, err
		}
		headEnd, err := r.HeadcountAsOf(tenant, end)
		if err != nil {
			return 0, err
		}
		avg := float64(headStart+headEnd) / 2
		if avg == 0 {
			return 0, nil
		}
		return float64(closed) / avg * 100, nil

	case MetricAbsenteeism:
		totals, err := r.facts.TotalsForPeriod(tenant, start, end)
		if err != nil {
			return 0, err
		}
		if totals.ScheduledMinutes == 0 {
			return 0, nil
		}
		return float64(totals.AbsenceMinutes) / float64(totals.ScheduledMinutes) * 100, nil

	case MetricOvertime:
		totals, err := r.facts.TotalsForPeriod(tenant, start, end)
		if err != nil {
			return 0, err
		}
		if totals.WorkedMinutes == 0 {
			return 0, nil
		}
		return float64(totals.OvertimeMinutes) / float64(totals.WorkedMinutes) * 100, nil
	}
	return 0, fmt.Errorf("unknown metric: %s", metric)
}

// configFor finds the metric subject and decodes the configuration record
// active at the given instant. Returns nil, nil when the metric has no
// configuration.
func (r *Reporter) configFor(tenant, metric string, at time.Time) (*Config, error) {
	if r.subjects == nil {
		return nil, nil
	}
	subject, err := r.subjects.FindByExternalID(tenant, metric)
	if err != nil {
		return nil, err
	}
	if subject == nil {
		return nil, nil
	}
	key := temporal.NewSeriesKey(tenant, subject.SubjectID,
		temporal.SeriesScope(temporal.SeriesMetricConfig))
	rec, err := r.records.ActiveAsOf(key, at)
	if err != nil {
		return nil, err
	}
	return ConfigFromRecord(rec)
}

func employmentFingerprint() string {
	return temporal.SeriesScope(temporal.SeriesEmployment).Fingerprint()
}
