package service

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hrsignal/temporal-engine/pkg/audit"
	"github.com/hrsignal/temporal-engine/pkg/directory"
	"github.com/hrsignal/temporal-engine/pkg/facts"
	"github.com/hrsignal/temporal-engine/pkg/ingest"
	"github.com/hrsignal/temporal-engine/pkg/scope"
	"github.com/hrsignal/temporal-engine/pkg/temporal"
	"github.com/hrsignal/temporal-engine/pkg/tenancy"
	"github.com/hrsignal/temporal-engine/pkg/validator"
)

// writeRecordRequest is the body of POST /api/v1/records.
type writeRecordRequest struct {
	SubjectID      string         `json:"subjectId"`
	Scope          scope.Scope    `json:"scope"`
	Payload        map[string]any `json:"payload,omitempty"`
	EffectiveStart time.Time      `json:"effectiveStart"`
	EffectiveEnd   *time.Time     `json:"effectiveEnd,omitempty"`
}

// recordResponse is the API shape of a versioned record.
type recordResponse struct {
	ID             string         `json:"id"`
	Tenant         string         `json:"tenant"`
	SubjectID      string         `json:"subjectId"`
	Scope          map[string]any `json:"scope,omitempty"`
	Payload        map[string]any `json:"payload,omitempty"`
	EffectiveStart string         `json:"effectiveStart"`
	EffectiveEnd   string         `json:"effectiveEnd,omitempty"`
	CreatedAt      string         `json:"createdAt"`
}

func recordToResponse(rec *temporal.Record) recordResponse {
	resp := recordResponse{
		ID:             rec.ID,
		Tenant:         rec.Tenant,
		SubjectID:      rec.SubjectID,
		Scope:          rec.ScopeDims,
		Payload:        rec.Payload,
		EffectiveStart: rec.EffectiveStart.Format(time.RFC3339),
		CreatedAt:      rec.CreatedAt.Format(time.RFC3339),
	}
	if rec.EffectiveEnd != nil {
		resp.EffectiveEnd = rec.EffectiveEnd.Format(time.RFC3339)
	}
	return resp
}

// handleWriteRecord handles POST /api/v1/records
func (s *Service) handleWriteRecord(w http.ResponseWriter, r *http.Request) {
	var req writeRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if req.SubjectID == "" {
		writeError(w, http.StatusBadRequest, "missing subjectId")
		return
	}
	if req.EffectiveStart.IsZero() {
		writeError(w, http.StatusBadRequest, "missing effectiveStart")
		return
	}

	tenant, _ := tenancy.TenantFromContext(r.Context())
	rec, err := s.validator.WriteVersioned(validator.WriteVersionedInput{
		Tenant:         tenant,
		SubjectID:      req.SubjectID,
		Scope:          req.Scope,
		Payload:        req.Payload,
		EffectiveStart: req.EffectiveStart,
		EffectiveEnd:   req.EffectiveEnd,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, recordToResponse(rec))
}

// handleGetRecord handles GET /api/v1/records/{recordId}
func (s *Service) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	recordID := chi.URLParam(r, "recordId")
	rec, err := s.engine.Get(recordID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to get record: %v", err))
		return
	}
	tenant, _ := tenancy.TenantFromContext(r.Context())
	if rec == nil || rec.Tenant != tenant {
		writeError(w, http.StatusNotFound, fmt.Sprintf("record %q not found", recordID))
		return
	}
	writeJSON(w, http.StatusOK, recordToResponse(rec))
}

// handleCloseRecord handles POST /api/v1/records/{recordId}:close
func (s *Service) handleCloseRecord(w http.ResponseWriter, r *http.Request) {
	recordID := chi.URLParam(r, "recordId")

	var req struct {
		At time.Time `json:"at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if req.At.IsZero() {
		writeError(w, http.StatusBadRequest, "missing at")
		return
	}

	tenant, _ := tenancy.TenantFromContext(r.Context())
	if err := s.validator.CloseRecord(recordID, req.At, tenant); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "closed",
		"recordId": recordID,
	})
}

// handleActiveAsOf handles GET /api/v1/subjects/{subjectId}/active
// Query params: series or scope (JSON), at (RFC3339 or date).
func (s *Service) handleActiveAsOf(w http.ResponseWriter, r *http.Request) {
	subjectID := chi.URLParam(r, "subjectId")
	sc, err := scopeFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	at, err := timeFromQuery(r, "at", time.Now())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	tenant, _ := tenancy.TenantFromContext(r.Context())
	rec, err := s.engine.ActiveAsOf(tenant, subjectID, sc, at)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound,
			fmt.Sprintf("no record active at %s", at.Format(time.RFC3339)))
		return
	}
	writeJSON(w, http.StatusOK, recordToResponse(rec))
}

// handleSeries handles GET /api/v1/subjects/{subjectId}/records
// Query params: series or scope, start, end (optional range), pageSize, pageToken.
func (s *Service) handleSeries(w http.ResponseWriter, r *http.Request) {
	subjectID := chi.URLParam(r, "subjectId")
	sc, err := scopeFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	pageSize := intFromQuery(r, "pageSize", 0)
	pageToken := r.URL.Query().Get("pageToken")

	tenant, _ := tenancy.TenantFromContext(r.Context())

	var records []temporal.Record
	var nextToken string
	if r.URL.Query().Get("start") != "" || r.URL.Query().Get("end") != "" {
		start, err := timeFromQuery(r, "start", time.Time{})
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		end, err := timeFromQuery(r, "end", time.Now())
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		records, nextToken, err = s.engine.Range(tenant, subjectID, sc, start, end, pageSize, pageToken)
		if err != nil {
			writeDomainError(w, err)
			return
		}
	} else {
		it := s.engine.ResumeSeries(tenant, subjectID, sc, pageSize, pageToken)
		records, err = it.Next()
		if err != nil {
			writeDomainError(w, err)
			return
		}
		if !it.Done() {
			nextToken = it.Token()
		}
	}

	out := make([]recordResponse, len(records))
	for i := range records {
		out[i] = recordToResponse(&records[i])
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"records":       out,
		"nextPageToken": nextToken,
	})
}

// writeFactRequest is the body of POST /api/v1/facts.
type writeFactRequest struct {
	SubjectID        string    `json:"subjectId"`
	Day              time.Time `json:"day"`
	WorkedMinutes    int       `json:"workedMinutes"`
	RegularMinutes   int       `json:"regularMinutes"`
	OT1Minutes       int       `json:"ot1Minutes"`
	OT2Minutes       int       `json:"ot2Minutes"`
	ScheduledMinutes *int      `json:"scheduledMinutes,omitempty"`
	AbsenceCode      string    `json:"absenceCode,omitempty"`
	AbsenceMinutes   int       `json:"absenceMinutes,omitempty"`
}

// factResponse is the API shape of a daily fact.
type factResponse struct {
	ID               string `json:"id"`
	Tenant           string `json:"tenant"`
	SubjectID        string `json:"subjectId"`
	ExternalID       string `json:"externalId"`
	Day              string `json:"day"`
	WorkedMinutes    int    `json:"workedMinutes"`
	RegularMinutes   int    `json:"regularMinutes"`
	OT1Minutes       int    `json:"ot1Minutes"`
	OT2Minutes       int    `json:"ot2Minutes"`
	ScheduledMinutes *int   `json:"scheduledMinutes,omitempty"`
	AbsenceCode      string `json:"absenceCode,omitempty"`
	AbsenceMinutes   int    `json:"absenceMinutes,omitempty"`
	Unbounded        bool   `json:"unbounded,omitempty"`
}

func factToResponse(f *facts.FactRecord) factResponse {
	return factResponse{
		ID:               f.ID,
		Tenant:           f.Tenant,
		SubjectID:        f.SubjectID,
		ExternalID:       f.ExternalID,
		Day:              f.Day.Format("2006-01-02"),
		WorkedMinutes:    f.WorkedMinutes,
		RegularMinutes:   f.RegularMinutes,
		OT1Minutes:       f.OT1Minutes,
		OT2Minutes:       f.OT2Minutes,
		ScheduledMinutes: f.ScheduledMinutes,
		AbsenceCode:      f.AbsenceCode,
		AbsenceMinutes:   f.AbsenceMinutes,
		Unbounded:        f.Unbounded,
	}
}

// handleWriteFact handles POST /api/v1/facts
func (s *Service) handleWriteFact(w http.ResponseWriter, r *http.Request) {
	var req writeFactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if req.SubjectID == "" {
		writeError(w, http.StatusBadRequest, "missing subjectId")
		return
	}
	if req.Day.IsZero() {
		writeError(w, http.StatusBadRequest, "missing day")
		return
	}

	tenant, _ := tenancy.TenantFromContext(r.Context())
	fact, err := s.validator.WriteFact(validator.WriteFactInput{
		Tenant:           tenant,
		SubjectID:        req.SubjectID,
		Day:              req.Day,
		WorkedMinutes:    req.WorkedMinutes,
		RegularMinutes:   req.RegularMinutes,
		OT1Minutes:       req.OT1Minutes,
		OT2Minutes:       req.OT2Minutes,
		ScheduledMinutes: req.ScheduledMinutes,
		AbsenceCode:      req.AbsenceCode,
		AbsenceMinutes:   req.AbsenceMinutes,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, factToResponse(fact))
}

// handleListFacts handles GET /api/v1/subjects/{subjectId}/facts
// Query params: start, end (dates, end exclusive).
func (s *Service) handleListFacts(w http.ResponseWriter, r *http.Request) {
	subjectID := chi.URLParam(r, "subjectId")
	start, err := timeFromQuery(r, "start", time.Time{})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	end, err := timeFromQuery(r, "end", time.Now().AddDate(0, 0, 1))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	tenant, _ := tenancy.TenantFromContext(r.Context())
	records, err := s.facts.ListRange(tenant, subjectID, start, end)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list facts: %v", err))
		return
	}

	out := make([]factResponse, len(records))
	for i := range records {
		out[i] = factToResponse(&records[i])
	}
	writeJSON(w, http.StatusOK, map[string]any{"facts": out})
}

// handleListSubjects handles GET /api/v1/subjects
func (s *Service) handleListSubjects(w http.ResponseWriter, r *http.Request) {
	tenant, _ := tenancy.TenantFromContext(r.Context())
	pageSize := intFromQuery(r, "pageSize", 0)
	records, nextToken, err := s.subjects.List(tenant, pageSize, r.URL.Query().Get("pageToken"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list subjects: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"subjects":      records,
		"nextPageToken": nextToken,
	})
}

// handleUpsertSubject handles POST /api/v1/subjects
func (s *Service) handleUpsertSubject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ExternalID  string `json:"externalId"`
		Kind        string `json:"kind,omitempty"`
		DisplayName string `json:"displayName,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if req.ExternalID == "" {
		writeError(w, http.StatusBadRequest, "missing externalId")
		return
	}

	tenant, _ := tenancy.TenantFromContext(r.Context())
	record, err := s.subjects.Upsert(&directory.SubjectRecord{
		Tenant:      tenant,
		ExternalID:  req.ExternalID,
		Kind:        req.Kind,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to upsert subject: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// handleMetrics handles GET /api/v1/metrics
// Query params: metric (optional), start, end.
func (s *Service) handleMetrics(w http.ResponseWriter, r *http.Request) {
	end, err := timeFromQuery(r, "end", time.Now())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	start, err := timeFromQuery(r, "start", end.AddDate(0, -1, 0))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	tenant, _ := tenancy.TenantFromContext(r.Context())
	if metric := r.URL.Query().Get("metric"); metric != "" {
		snap, err := s.reporter.Compute(tenant, metric, start, end)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, snap)
		return
	}

	snaps, err := s.reporter.ComputeAll(tenant, start, end)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to compute metrics: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"metrics": snaps})
}

// handleMetricHistory handles GET /api/v1/metrics/{metric}/history
func (s *Service) handleMetricHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotFound, "metric history not enabled")
		return
	}
	metric := chi.URLParam(r, "metric")
	tenant, _ := tenancy.TenantFromContext(r.Context())
	records, err := s.history.List(tenant, metric, intFromQuery(r, "limit", 0))
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list history: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": records})
}

// handleEnqueueSync handles POST /api/v1/sync
func (s *Service) handleEnqueueSync(w http.ResponseWriter, r *http.Request) {
	if s.syncs == nil {
		writeError(w, http.StatusNotFound, "sync not enabled")
		return
	}
	var req struct {
		Source         string `json:"source"`
		RequestedBy    string `json:"requestedBy,omitempty"`
		IdempotencyKey string `json:"idempotencyKey,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if req.Source == "" {
		writeError(w, http.StatusBadRequest, "missing source")
		return
	}
	if req.RequestedBy == "" {
		req.RequestedBy = "api"
	}

	tenant, _ := tenancy.TenantFromContext(r.Context())
	run, err := s.syncs.Enqueue(&ingest.SyncRun{
		Tenant:         tenant,
		Source:         req.Source,
		RequestedBy:    req.RequestedBy,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to enqueue sync: %v", err))
		return
	}
	writeJSON(w, http.StatusAccepted, runToResponse(run))
}

// handleListSyncs handles GET /api/v1/sync
func (s *Service) handleListSyncs(w http.ResponseWriter, r *http.Request) {
	if s.syncs == nil {
		writeError(w, http.StatusNotFound, "sync not enabled")
		return
	}
	tenant, _ := tenancy.TenantFromContext(r.Context())
	filter := ingest.RunListFilter{
		Tenant:      tenant,
		Source:      r.URL.Query().Get("source"),
		State:       r.URL.Query().Get("state"),
		RequestedBy: r.URL.Query().Get("requestedBy"),
	}
	runs, nextToken, total, err := s.syncs.List(filter, intFromQuery(r, "pageSize", 0), r.URL.Query().Get("pageToken"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list sync runs: %v", err))
		return
	}

	out := make([]runResponse, len(runs))
	for i := range runs {
		out[i] = runToResponse(&runs[i])
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"runs":          out,
		"nextPageToken": nextToken,
		"totalSize":     total,
	})
}

// handleGetSync handles GET /api/v1/sync/{runId}
func (s *Service) handleGetSync(w http.ResponseWriter, r *http.Request) {
	if s.syncs == nil {
		writeError(w, http.StatusNotFound, "sync not enabled")
		return
	}
	runID := chi.URLParam(r, "runId")
	run, err := s.syncs.Get(runID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to get sync run: %v", err))
		return
	}
	tenant, _ := tenancy.TenantFromContext(r.Context())
	if run == nil || run.Tenant != tenant {
		writeError(w, http.StatusNotFound, fmt.Sprintf("sync run %q not found", runID))
		return
	}
	writeJSON(w, http.StatusOK, runToResponse(run))
}

// handleCancelSync handles POST /api/v1/sync/{runId}:cancel
func (s *Service) handleCancelSync(w http.ResponseWriter, r *http.Request) {
	if s.syncs == nil {
		writeError(w, http.StatusNotFound, "sync not enabled")
		return
	}
	runID := chi.URLParam(r, "runId")
	if err := s.syncs.Cancel(runID); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to cancel sync run: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "canceled",
		"runId":  runID,
	})
}

// handleListAudit handles GET /api/v1/audit
func (s *Service) handleListAudit(w http.ResponseWriter, r *http.Request) {
	if s.auditLog == nil {
		writeError(w, http.StatusNotFound, "audit not enabled")
		return
	}
	tenant, _ := tenancy.TenantFromContext(r.Context())
	filter := audit.ListFilter{
		Tenant:    tenant,
		SubjectID: r.URL.Query().Get("subjectId"),
		EventType: r.URL.Query().Get("eventType"),
	}
	events, nextToken, total, err := s.auditLog.List(filter, intFromQuery(r, "pageSize", 0), r.URL.Query().Get("pageToken"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list audit events: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"events":        events,
		"nextPageToken": nextToken,
		"totalSize":     total,
	})
}

// runResponse is the API shape of a sync run.
type runResponse struct {
	ID             string `json:"id"`
	Tenant         string `json:"tenant"`
	Source         string `json:"source"`
	RequestedBy    string `json:"requestedBy"`
	RequestedAt    string `json:"requestedAt"`
	State          string `json:"state"`
	Message        string `json:"message,omitempty"`
	StartedAt      string `json:"startedAt,omitempty"`
	FinishedAt     string `json:"finishedAt,omitempty"`
	AttemptCount   int    `json:"attemptCount"`
	LastError      string `json:"lastError,omitempty"`
	RecordsApplied int    `json:"recordsApplied,omitempty"`
	RecordsFailed  int    `json:"recordsFailed,omitempty"`
	FactsApplied   int    `json:"factsApplied,omitempty"`
	FactsFailed    int    `json:"factsFailed,omitempty"`
	DurationMs     int64  `json:"durationMs,omitempty"`
}

func runToResponse(run *ingest.SyncRun) runResponse {
	resp := runResponse{
		ID:             run.ID,
		Tenant:         run.Tenant,
		Source:         run.Source,
		RequestedBy:    run.RequestedBy,
		RequestedAt:    run.RequestedAt.Format(time.RFC3339),
		State:          string(run.State),
		Message:        run.Message,
		AttemptCount:   run.AttemptCount,
		LastError:      run.LastError,
		RecordsApplied: run.RecordsApplied,
		RecordsFailed:  run.RecordsFailed,
		FactsApplied:   run.FactsApplied,
		FactsFailed:    run.FactsFailed,
		DurationMs:     run.DurationMs,
	}
	if run.StartedAt != nil {
		resp.StartedAt = run.StartedAt.Format(time.RFC3339)
	}
	if run.FinishedAt != nil {
		resp.FinishedAt = run.FinishedAt.Format(time.RFC3339)
	}
	return resp
}

// scopeFromQuery reads the scope selector: either a well-known series name
// (?series=assignment) or a full scope object (?scope={"series":"..."}).
func scopeFromQuery(r *http.Request) (scope.Scope, error) {
	if raw := r.URL.Query().Get("scope"); raw != "" {
		var sc scope.Scope
		if err := json.Unmarshal([]byte(raw), &sc); err != nil {
			return nil, fmt.Errorf("invalid scope: %v", err)
		}
		return sc, nil
	}
	if series := r.URL.Query().Get("series"); series != "" {
		return temporal.SeriesScope(series), nil
	}
	return nil, fmt.Errorf("missing scope (use ?series= or ?scope=)")
}

// timeFromQuery parses a query timestamp, accepting RFC3339 or a bare date.
func timeFromQuery(r *http.Request, name string, fallback time.Time) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid %s: %q (expected RFC3339 or YYYY-MM-DD)", name, raw)
}

func intFromQuery(r *http.Request, name string, fallback int) int {
	if raw := r.URL.Query().Get(name); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			return v
		}
	}
	return fallback
}
