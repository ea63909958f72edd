// Package validator enforces the cross-record invariants the engine
// guarantees at write time: referential match against the subject directory,
// derived identifier propagation, the supersession protocol for versioned
// records, and the arithmetic and bounds rules for daily facts.
//
// Every invariant is an explicit validation step invoked synchronously
// before commit; nothing here relies on a particular storage backend.
package validator

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/hrsignal/temporal-engine/pkg/audit"
	"github.com/hrsignal/temporal-engine/pkg/directory"
	"github.com/hrsignal/temporal-engine/pkg/facts"
	"github.com/hrsignal/temporal-engine/pkg/interval"
	"github.com/hrsignal/temporal-engine/pkg/scope"
	"github.com/hrsignal/temporal-engine/pkg/temporal"
)

// payloadScheduledMinutes is the schedule-record payload key holding the
// day's scheduled minutes.
const payloadScheduledMinutes = "scheduled_minutes"

// Validator sits in front of the temporal store and the fact store. It is
// the only writer; ingestion and the HTTP surface both go through it.
type Validator struct {
	resolver    directory.Resolver
	records     temporal.Store
	facts       *facts.Store
	recorder    *audit.Recorder
	invalidator SeriesInvalidator
	logger      *slog.Logger
}

// SeriesInvalidator is notified after every successful versioned write so
// read-side caches can drop stale as-of answers for the touched series.
type SeriesInvalidator interface {
	InvalidateSeries(key temporal.SeriesKey)
}

// New creates a Validator. recorder may be nil to disable audit.
func New(resolver directory.Resolver, records temporal.Store, factStore *facts.Store, recorder *audit.Recorder, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{
		resolver: resolver,
		records:  records,
		facts:    factStore,
		recorder: recorder,
		logger:   logger,
	}
}

// SetInvalidator attaches a cache invalidator. May be nil.
func (v *Validator) SetInvalidator(inv SeriesInvalidator) { v.invalidator = inv }

func (v *Validator) invalidate(key temporal.SeriesKey) {
	if v.invalidator != nil {
		v.invalidator.InvalidateSeries(key)
	}
}

// WriteVersionedInput describes a new versioned record. Tenant is the
// caller's claim about the subject's tenant; it must match the directory or
// the write fails. An empty Tenant defers entirely to the directory.
type WriteVersionedInput struct {
	Tenant         string
	SubjectID      string
	Scope          scope.Scope
	Payload        map[string]any
	EffectiveStart time.Time
	EffectiveEnd   *time.Time
}

// WriteVersioned validates and persists a versioned record. When the series
// already has an open record, the supersession protocol applies: the open
// record is closed at the new record's effective start and the new record is
// inserted, as one atomic unit. If closing fails the insert is not
// attempted and the series is unchanged.
func (v *Validator) WriteVersioned(in WriteVersionedInput) (*temporal.Record, error) {
	resolved, err := v.resolveSubject(in.SubjectID, in.Tenant)
	if err != nil {
		return nil, err
	}

	iv, err := interval.New(in.EffectiveStart, in.EffectiveEnd)
	if err != nil {
		return nil, err
	}

	key := temporal.NewSeriesKey(resolved.Tenant, in.SubjectID, in.Scope)

	var record *temporal.Record
	var supersededID string
	err = v.records.Transact(key, func(tx temporal.Store) error {
		open, err := tx.OpenRecord(key)
		if err != nil {
			return err
		}
		// Supersede only when the new interval would collide with the open
		// record; a backfilled interval that ends before the open record
		// starts is a plain insert.
		if open != nil && iv.Overlaps(open.Interval()) {
			if err := tx.Close(open.ID, in.EffectiveStart); err != nil {
				return fmt.Errorf("supersede %s: %w", open.ID, err)
			}
			supersededID = open.ID
		}
		record, err = tx.Insert(temporal.NewRecord{
			Tenant:         resolved.Tenant,
			SubjectID:      in.SubjectID,
			Scope:          in.Scope,
			Payload:        in.Payload,
			EffectiveStart: in.EffectiveStart,
			EffectiveEnd:   in.EffectiveEnd,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	v.invalidate(key)

	if supersededID != "" {
		v.recorder.Record(audit.EventRecord{
			Tenant:     resolved.Tenant,
			EventType:  audit.EventRecordSuperseded,
			SubjectID:  in.SubjectID,
			ExternalID: resolved.ExternalID,
			RecordID:   supersededID,
			Details:    audit.JSONDetails{"closedAt": in.EffectiveStart, "successor": record.ID},
		})
	}
	v.recorder.Record(audit.EventRecord{
		Tenant:     resolved.Tenant,
		EventType:  audit.EventRecordCreated,
		SubjectID:  in.SubjectID,
		ExternalID: resolved.ExternalID,
		RecordID:   record.ID,
		Details:    audit.JSONDetails{"effectiveStart": in.EffectiveStart},
	})
	return record, nil
}

// CloseRecord closes an open record explicitly. tenant, when non-empty,
// must match the record's tenant.
func (v *Validator) CloseRecord(recordID string, at time.Time, tenant string) error {
	record, err := v.records.Get(recordID)
	if err != nil {
		return err
	}
	if record == nil {
		return fmt.Errorf("close %s: %w", recordID, temporal.ErrNotFound)
	}
	if tenant != "" && tenant != record.Tenant {
		return fmt.Errorf("record %s belongs to another tenant: %w", recordID, ErrTenantMismatch)
	}

	if err := v.records.Close(recordID, at); err != nil {
		return err
	}
	v.invalidate(record.Key())

	v.recorder.Record(audit.EventRecord{
		Tenant:    record.Tenant,
		EventType: audit.EventRecordClosed,
		SubjectID: record.SubjectID,
		RecordID:  recordID,
		Details:   audit.JSONDetails{"closedAt": at},
	})
	return nil
}

// WriteFactInput describes one subject-day fact.
type WriteFactInput struct {
	Tenant           string
	SubjectID        string
	Day              time.Time
	WorkedMinutes    int
	RegularMinutes   int
	OT1Minutes       int
	OT2Minutes       int
	ScheduledMinutes *int
	AbsenceCode      string
	AbsenceMinutes   int
}

// WriteFact validates and persists a daily fact. Re-ingesting a fact for an
// already-written (subject, day) replaces it atomically through the same
// validation path.
func (v *Validator) WriteFact(in WriteFactInput) (*facts.FactRecord, error) {
	resolved, err := v.resolveSubject(in.SubjectID, in.Tenant)
	if err != nil {
		return nil, err
	}
	if resolved.ExternalID == "" {
		return nil, fmt.Errorf("subject %s: %w", in.SubjectID, ErrMissingIdentifier)
	}

	if err := checkNonNegative(in); err != nil {
		return nil, err
	}

	if sum := in.RegularMinutes + in.OT1Minutes + in.OT2Minutes; sum != in.WorkedMinutes {
		return nil, fmt.Errorf("regular+ot1+ot2=%d, worked=%d: %w",
			sum, in.WorkedMinutes, ErrArithmeticMismatch)
	}

	fact := &facts.FactRecord{
		Tenant:           resolved.Tenant,
		SubjectID:        in.SubjectID,
		ExternalID:       resolved.ExternalID,
		Day:              in.Day,
		WorkedMinutes:    in.WorkedMinutes,
		RegularMinutes:   in.RegularMinutes,
		OT1Minutes:       in.OT1Minutes,
		OT2Minutes:       in.OT2Minutes,
		ScheduledMinutes: in.ScheduledMinutes,
		AbsenceCode:      in.AbsenceCode,
		AbsenceMinutes:   in.AbsenceMinutes,
	}

	// Bound absence against the day's active schedule record. No schedule
	// means the bound is skipped and the fact is flagged, not rejected.
	scheduleKey := temporal.NewSeriesKey(resolved.Tenant, in.SubjectID,
		temporal.SeriesScope(temporal.SeriesSchedule))
	schedule, err := v.records.ActiveAsOf(scheduleKey, in.Day)
	if err != nil {
		return nil, err
	}
	if schedule == nil {
		fact.Unbounded = true
	} else if scheduled, ok := payloadNumber(schedule.Payload, payloadScheduledMinutes); ok {
		if float64(in.AbsenceMinutes) > scheduled {
			return nil, fmt.Errorf("absence=%d scheduled=%.0f: %w",
				in.AbsenceMinutes, scheduled, ErrBoundsViolation)
		}
		if fact.ScheduledMinutes == nil {
			m := int(scheduled)
			fact.ScheduledMinutes = &m
		}
	} else {
		// Schedule record without a scheduled_minutes payload: treat as no
		// usable bound.
		fact.Unbounded = true
	}

	written, err := v.facts.Replace(fact)
	if err != nil {
		return nil, err
	}

	v.recorder.Record(audit.EventRecord{
		Tenant:     resolved.Tenant,
		EventType:  audit.EventFactReplaced,
		SubjectID:  in.SubjectID,
		ExternalID: resolved.ExternalID,
		RecordID:   written.ID,
		Details: audit.JSONDetails{
			"day":       written.Day,
			"worked":    written.WorkedMinutes,
			"unbounded": written.Unbounded,
		},
	})
	return written, nil
}

// resolveSubject confirms the subject exists and that the caller's tenant
// claim (when present) matches the directory.
func (v *Validator) resolveSubject(subjectID, claimedTenant string) (*directory.ResolvedSubject, error) {
	resolved, err := v.resolver.Resolve(subjectID)
	if err != nil {
		return nil, fmt.Errorf("resolve subject %s: %w", subjectID, err)
	}
	if resolved == nil {
		return nil, fmt.Errorf("subject %s: %w", subjectID, ErrSubjectNotFound)
	}
	if claimedTenant != "" && claimedTenant != resolved.Tenant {
		return nil, fmt.Errorf("subject %s: claimed %q: %w",
			subjectID, claimedTenant, ErrTenantMismatch)
	}
	return resolved, nil
}

func checkNonNegative(in WriteFactInput) error {
	fields := map[string]int{
		"worked_minutes":  in.WorkedMinutes,
		"regular_minutes": in.RegularMinutes,
		"ot1_minutes":     in.OT1Minutes,
		"ot2_minutes":     in.OT2Minutes,
		"absence_minutes": in.AbsenceMinutes,
	}
	if in.ScheduledMinutes != nil {
		fields["scheduled_minutes"] = *in.ScheduledMinutes
	}
	for name, v := range fields {
		if v < 0 {
			return fmt.Errorf("%s=%d: %w", name, v, ErrNegativeValue)
		}
	}
	return nil
}

// payloadNumber reads a numeric payload value. JSON round-trips deliver
// float64; the in-memory store preserves the original Go type.
func payloadNumber(payload map[string]any, key string) (float64, bool) {
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
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	default:
		return 0, false
	}
}
