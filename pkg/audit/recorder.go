package audit

import "log/slog"

// Recorder is the write-side facade the validator and ingestion use. A nil
// *Recorder is a no-op, so audit stays optional in library use.
type Recorder struct {
	store  *Store
	logger *slog.Logger
}

// NewRecorder creates a Recorder on the given store.
func NewRecorder(store *Store, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{store: store, logger: logger}
}

// Record appends an event. Audit failures never fail the write they
// describe; they are logged and dropped.
func (r *Recorder) Record(event EventRecord) {
	if r == nil || r.store == nil {
		return
	}
	if err := r.store.Append(&event); err != nil {
		r.logger.Error("failed to append audit event",
			"eventType", event.EventType,
			"tenant", event.Tenant,
			"subjectID", event.SubjectID,
			"error", err)
	}
}
