package temporal

import "github.com/hrsignal/temporal-engine/pkg/scope"

// SeriesDimension is the scope dimension naming the kind of interval series
// a record belongs to. Records of different kinds for the same subject are
// independent series.
const SeriesDimension = "series"

// Well-known series kinds used across the engine.
const (
	// SeriesAssignment tracks an employee's department/title/location.
	SeriesAssignment = "assignment"
	// SeriesEmployment tracks whether an employee is employed at all;
	// headcount and turnover reporting count these records.
	SeriesEmployment = "employment"
	// SeriesSchedule tracks an employee's scheduled minutes per day; the
	// validator bounds absence minutes against the active schedule.
	SeriesSchedule = "schedule"
	// SeriesMetricConfig tracks a metric's target and thresholds.
	SeriesMetricConfig = "metric_config"
)

// SeriesScope returns the scope selecting one well-known series kind.
func SeriesScope(kind string) scope.Scope {
	return scope.Scope{SeriesDimension: kind}
}
