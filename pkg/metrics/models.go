// Package metrics computes the workforce KPIs the dashboard reports:
// headcount, turnover, absenteeism, and overtime. Each metric's target and
// thresholds live as versioned records, so historical snapshots are judged
// against the configuration that was in force at the time.
package metrics

import (
	"fmt"
	"time"

	"github.com/hrsignal/temporal-engine/pkg/temporal"
)

// Metric names.
const (
	MetricHeadcount   = "headcount"
	MetricTurnover    = "turnover"
	MetricAbsenteeism = "absenteeism"
	MetricOvertime    = "overtime"
)

// Orientation says which direction of a metric is good.
type Orientation string

const (
	// OrientationLower marks metrics where lower values are better
	// (turnover, absenteeism, overtime).
	OrientationLower Orientation = "lower"
	// OrientationHigher marks metrics where higher values are better.
	OrientationHigher Orientation = "higher"
)

// Status is the traffic-light rating of a metric value.
type Status string

const (
	StatusGreen   Status = "green"
	StatusYellow  Status = "yellow"
	StatusRed     Status = "red"
	StatusUnknown Status = "unknown"
)

// Config is a metric's target and thresholds, decoded from the payload of
// the metric subject's active configuration record.
type Config struct {
	TargetValue     float64     `json:"target_value"`
	ThresholdYellow float64     `json:"threshold_yellow"`
	ThresholdRed    float64     `json:"threshold_red"`
	Orientation     Orientation `json:"orientation"`
}

// Payload keys of a metric configuration record.
const (
	payloadTarget      = "target_value"
	payloadYellow      = "threshold_yellow"
	payloadRed         = "threshold_red"
	payloadOrientation = "orientation"
)

// ConfigFromRecord decodes a metric configuration from a versioned record's
// payload.
func ConfigFromRecord(rec *temporal.Record) (*Config, error) {
	if rec == nil {
		return nil, nil
	}
	cfg := &Config{Orientation: OrientationLower}
	var ok bool
	if cfg.TargetValue, ok = payloadFloat(rec.Payload, payloadTarget); !ok {
		return nil, fmt.Errorf("record %s: missing %s", rec.ID, payloadTarget)
	}
	if cfg.ThresholdYellow, ok = payloadFloat(rec.Payload, payloadYellow); !ok {
		return nil, fmt.Errorf("record %s: missing %s", rec.ID, payloadYellow)
	}
	if cfg.ThresholdRed, ok = payloadFloat(rec.Payload, payloadRed); !ok {
		return nil, fmt.Errorf("record %s: missing %s", rec.ID, payloadRed)
	}
	if v, present := rec.Payload[payloadOrientation]; present {
		s, isString := v.(string)
		if !isString || (Orientation(s) != OrientationLower && Orientation(s) != OrientationHigher) {
			return nil, fmt.Errorf("record %s: bad orientation %v", rec.ID, v)
		}
		cfg.Orientation = Orientation(s)
	}
	return cfg, nil
}

// StatusFor rates a value against a config. A nil config yields
// StatusUnknown.
func (c *Config) StatusFor(value float64) Status {
	if c == nil {
		return StatusUnknown
	}
	if c.Orientation == OrientationHigher {
		switch {
		case value >= c.ThresholdYellow:
			return StatusGreen
		case value >= c.ThresholdRed:
			return StatusYellow
		default:
			return StatusRed
		}
	}
	switch {
	case value <= c.ThresholdYellow:
		return StatusGreen
	case value <= c.ThresholdRed:
		return StatusYellow
	default:
		return StatusRed
	}
}

// Snapshot is one computed metric value for a period, rated against the
// configuration active at the period's end.
type Snapshot struct {
	Tenant      string    `json:"tenant"`
	Metric      string    `json:"metric"`
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
	Value       float64   `json:"value"`
	Status      Status    `json:"status"`
	Target      *float64  `json:"target,omitempty"`
}

// HistoryRecord is the GORM model for a persisted snapshot. One row per
// (tenant, metric, period); recomputation overwrites in place.
type HistoryRecord struct {
	ID          string    `gorm:"primaryKey;column:id;type:varchar(36)"`
	Tenant      string    `gorm:"column:tenant;uniqueIndex:idx_history_period,priority:1;not null"`
	Metric      string    `gorm:"column:metric;uniqueIndex:idx_history_period,priority:2;not null"`
	PeriodStart time.Time `gorm:"column:period_start;uniqueIndex:idx_history_period,priority:3;not null"`
	PeriodEnd   time.Time `gorm:"column:period_end;uniqueIndex:idx_history_period,priority:4;not null"`
	Value       float64   `gorm:"column:value;not null"`
	Status      Status    `gorm:"column:status;not null;default:unknown"`
	ComputedAt  time.Time `gorm:"column:computed_at;autoUpdateTime"`
}

// TableName returns the GORM table name.
func (HistoryRecord) TableName() string { return "metrics_history" }

func payloadFloat(payload map[string]any, key string) (float64, bool) {
	v, ok := payload[key]
	if !ok {
		return 0, false
	}
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	default:
		return 0, false
	}
}
