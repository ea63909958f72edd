package ingest

import (
	"log/slog"
	"time"

	"github.com/hrsignal/temporal-engine/pkg/scope"
	"github.com/hrsignal/temporal-engine/pkg/validator"
)

// ChangeItem is one upstream state change: a new versioned record for a
// subject's series, applied through the supersession protocol.
type ChangeItem struct {
	SubjectID      string         `json:"subject_id"`
	Scope          scope.Scope    `json:"scope"`
	Payload        map[string]any `json:"payload,omitempty"`
	EffectiveStart time.Time      `json:"effective_start"`
	EffectiveEnd   *time.Time     `json:"effective_end,omitempty"`
}

// FactItem is one subject-day aggregate from upstream.
type FactItem struct {
	SubjectID        string     `json:"subject_id"`
	Day              time.Time  `json:"day"`
	WorkedMinutes    int        `json:"worked_minutes"`
	RegularMinutes   int        `json:"regular_minutes"`
	OT1Minutes       int        `json:"ot1_minutes"`
	OT2Minutes       int        `json:"ot2_minutes"`
	ScheduledMinutes *int       `json:"scheduled_minutes,omitempty"`
	AbsenceCode      string     `json:"absence_code,omitempty"`
	AbsenceMinutes   int        `json:"absence_minutes,omitempty"`
}

// Batch is the unit a source delivers per run.
type Batch struct {
	Tenant  string       `json:"tenant"`
	Changes []ChangeItem `json:"changes,omitempty"`
	Facts   []FactItem   `json:"facts,omitempty"`
}

// Failure records one item the validator rejected. Index is the item's
// position in its batch slice.
type Failure struct {
	Index     int    `json:"index"`
	SubjectID string `json:"subject_id"`
	Error     string `json:"error"`
}

// Result summarizes one applied batch.
type Result struct {
	RecordsApplied int       `json:"records_applied"`
	RecordFailures []Failure `json:"record_failures,omitempty"`
	FactsApplied   int       `json:"facts_applied"`
	FactFailures   []Failure `json:"fact_failures,omitempty"`
}

// Runner applies batches item by item through the validator. Items are
// independent: one rejected item never blocks the rest of the batch, it is
// collected as a Failure instead.
type Runner struct {
	validator *validator.Validator
	logger    *slog.Logger
}

// NewRunner creates a Runner.
func NewRunner(v *validator.Validator, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{validator: v, logger: logger}
}

// Apply pushes every item of the batch through validation and returns the
// per-item outcome. The returned error is reserved for batch-level problems;
// item rejections land in the Result.
func (r *Runner) Apply(batch *Batch) (*Result, error) {
	result := &Result{}

	for i, change := range batch.Changes {
		_, err := r.validator.WriteVersioned(validator.WriteVersionedInput{
			Tenant:         batch.Tenant,
			SubjectID:      change.SubjectID,
			Scope:          change.Scope,
			Payload:        change.Payload,
			EffectiveStart: change.EffectiveStart,
			EffectiveEnd:   change.EffectiveEnd,
		})
		if err != nil {
			r.logger.Warn("change rejected",
				"tenant", batch.Tenant,
				"subject", change.SubjectID,
				"index", i,
				"error", err)
			result.RecordFailures = append(result.RecordFailures, Failure{
				Index:     i,
				SubjectID: change.SubjectID,
				Error:     err.Error(),
			})
			continue
		}
		result.RecordsApplied++
	}

	for i, fact := range batch.Facts {
		_, err := r.validator.WriteFact(validator.WriteFactInput{
			Tenant:           batch.Tenant,
			SubjectID:        fact.SubjectID,
			Day:              fact.Day,
			WorkedMinutes:    fact.WorkedMinutes,
			RegularMinutes:   fact.RegularMinutes,
			OT1Minutes:       fact.OT1Minutes,
			OT2Minutes:       fact.OT2Minutes,
			ScheduledMinutes: fact.ScheduledMinutes,
			AbsenceCode:      fact.AbsenceCode,
			AbsenceMinutes:   fact.AbsenceMinutes,
		})
		if err != nil {
			r.logger.Warn("fact rejected",
				"tenant", batch.Tenant,
				"subject", fact.SubjectID,
				"index", i,
				"error", err)
			result.FactFailures = append(result.FactFailures, Failure{
				Index:     i,
				SubjectID: fact.SubjectID,
				Error:     err.Error(),
			})
			continue
		}
		result.FactsApplied++
	}

	return result, nil
}
