package main

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
)

// recordView mirrors the API shape of a versioned record.
type recordView struct {
	ID             string         `json:"id"`
	Tenant         string         `json:"tenant"`
	SubjectID      string         `json:"subjectId"`
	Scope          map[string]any `json:"scope"`
	Payload        map[string]any `json:"payload"`
	EffectiveStart string         `json:"effectiveStart"`
	EffectiveEnd   string         `json:"effectiveEnd"`
	CreatedAt      string         `json:"createdAt"`
}

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "Write and query versioned records",
}

var (
	recordSubject string
	recordSeries  string
	recordScope   string
	recordPayload string
	recordStart   string
	recordEnd     string
	recordAt      string

	recordPageSize  int
	recordPageToken string
)

var recordsWriteCmd = &cobra.Command{
	Use:   "write",
	Short: "Write a versioned record, superseding any overlapping open record",
	RunE:  runRecordsWrite,
}

var recordsGetCmd = &cobra.Command{
	Use:   "get <record-id>",
	Short: "Get a record by ID",
	Args:  cobra.ExactArgs(1),
	RunE:  runRecordsGet,
}

var recordsCloseCmd = &cobra.Command{
	Use:   "close <record-id>",
	Short: "Close an open record at an instant",
	Args:  cobra.ExactArgs(1),
	RunE:  runRecordsClose,
}

var recordsActiveCmd = &cobra.Command{
	Use:   "active <subject-id>",
	Short: "Show the record active at an instant",
	Args:  cobra.ExactArgs(1),
	RunE:  runRecordsActive,
}

var recordsListCmd = &cobra.Command{
	Use:   "list <subject-id>",
	Short: "List a subject's records, optionally restricted to a time range",
	Args:  cobra.ExactArgs(1),
	RunE:  runRecordsList,
}

func init() {
	recordsWriteCmd.Flags().StringVar(&recordSubject, "subject", "", "Subject ID (required)")
	recordsWriteCmd.Flags().StringVar(&recordSeries, "series", "", "Well-known series name (assignment, employment, schedule, metric_config)")
	recordsWriteCmd.Flags().StringVar(&recordScope, "scope", "", "Scope as JSON, overrides --series")
	recordsWriteCmd.Flags().StringVar(&recordPayload, "payload", "", "Payload as JSON")
	recordsWriteCmd.Flags().StringVar(&recordStart, "start", "", "Effective start, RFC3339 or YYYY-MM-DD (required)")
	recordsWriteCmd.Flags().StringVar(&recordEnd, "end", "", "Effective end, exclusive; omit for an open record")
	recordsWriteCmd.MarkFlagRequired("subject")
	recordsWriteCmd.MarkFlagRequired("start")

	recordsCloseCmd.Flags().StringVar(&recordAt, "at", "", "Close instant, RFC3339 or YYYY-MM-DD (required)")
	recordsCloseCmd.MarkFlagRequired("at")

	recordsActiveCmd.Flags().StringVar(&recordSeries, "series", "", "Well-known series name")
	recordsActiveCmd.Flags().StringVar(&recordScope, "scope", "", "Scope as JSON, overrides --series")
	recordsActiveCmd.Flags().StringVar(&recordAt, "at", "", "Instant to query, defaults to now")

	recordsListCmd.Flags().StringVar(&recordSeries, "series", "", "Well-known series name")
	recordsListCmd.Flags().StringVar(&recordScope, "scope", "", "Scope as JSON, overrides --series")
	recordsListCmd.Flags().StringVar(&recordStart, "start", "", "Range start, RFC3339 or YYYY-MM-DD")
	recordsListCmd.Flags().StringVar(&recordEnd, "end", "", "Range end, exclusive")
	recordsListCmd.Flags().IntVar(&recordPageSize, "page-size", 0, "Records per page")
	recordsListCmd.Flags().StringVar(&recordPageToken, "page-token", "", "Resume token from a previous page")

	recordsCmd.AddCommand(recordsWriteCmd)
	recordsCmd.AddCommand(recordsGetCmd)
	recordsCmd.AddCommand(recordsCloseCmd)
	recordsCmd.AddCommand(recordsActiveCmd)
	recordsCmd.AddCommand(recordsListCmd)
}

// scopeParams adds the scope selector to a query string.
func scopeParams(q url.Values) error {
	if recordScope != "" {
		q.Set("scope", recordScope)
		return nil
	}
	if recordSeries != "" {
		q.Set("series", recordSeries)
		return nil
	}
	return fmt.Errorf("either --series or --scope is required")
}

func runRecordsWrite(cmd *cobra.Command, args []string) error {
	client := newClient()

	body := map[string]any{
		"subjectId":      recordSubject,
		"effectiveStart": recordStart,
	}
	if recordEnd != "" {
		body["effectiveEnd"] = recordEnd
	}
	if recordScope != "" {
		var sc map[string]any
		if err := json.Unmarshal([]byte(recordScope), &sc); err != nil {
			return fmt.Errorf("invalid --scope: %w", err)
		}
		body["scope"] = sc
	} else if recordSeries != "" {
		body["scope"] = map[string]any{"series": recordSeries}
	} else {
		return fmt.Errorf("either --series or --scope is required")
	}
	if recordPayload != "" {
		var payload map[string]any
		if err := json.Unmarshal([]byte(recordPayload), &payload); err != nil {
			return fmt.Errorf("invalid --payload: %w", err)
		}
		body["payload"] = payload
	}

	var rec recordView
	if err := client.postJSON("/api/v1/records", body, &rec); err != nil {
		return err
	}

	if outputFmt == "json" || outputFmt == "yaml" {
		return printOutput(rec)
	}
	fmt.Printf("Record %s created, effective from %s\n", rec.ID, rec.EffectiveStart)
	return nil
}

func runRecordsGet(cmd *cobra.Command, args []string) error {
	client := newClient()

	var rec recordView
	if err := client.getJSON("/api/v1/records/"+url.PathEscape(args[0]), &rec); err != nil {
		return err
	}
	return printRecord(rec)
}

func runRecordsClose(cmd *cobra.Command, args []string) error {
	client := newClient()

	var resp map[string]string
	body := map[string]string{"at": recordAt}
	if err := client.postJSON("/api/v1/records/"+url.PathEscape(args[0])+":close", body, &resp); err != nil {
		return err
	}

	if outputFmt == "json" || outputFmt == "yaml" {
		return printOutput(resp)
	}
	fmt.Printf("Record %s closed at %s\n", args[0], recordAt)
	return nil
}

func runRecordsActive(cmd *cobra.Command, args []string) error {
	client := newClient()

	q := url.Values{}
	if err := scopeParams(q); err != nil {
		return err
	}
	if recordAt != "" {
		q.Set("at", recordAt)
	}

	var rec recordView
	if err := client.getJSON("/api/v1/subjects/"+url.PathEscape(args[0])+"/active?"+q.Encode(), &rec); err != nil {
		return err
	}
	return printRecord(rec)
}

func runRecordsList(cmd *cobra.Command, args []string) error {
	client := newClient()

	q := url.Values{}
	if err := scopeParams(q); err != nil {
		return err
	}
	if recordStart != "" {
		q.Set("start", recordStart)
	}
	if recordEnd != "" {
		q.Set("end", recordEnd)
	}
	if recordPageSize > 0 {
		q.Set("pageSize", fmt.Sprint(recordPageSize))
	}
	if recordPageToken != "" {
		q.Set("pageToken", recordPageToken)
	}

	var resp struct {
		Records       []recordView `json:"records"`
		NextPageToken string       `json:"nextPageToken"`
	}
	if err := client.getJSON("/api/v1/subjects/"+url.PathEscape(args[0])+"/records?"+q.Encode(), &resp); err != nil {
		return err
	}

	if outputFmt == "json" || outputFmt == "yaml" {
		return printOutput(resp)
	}

	rows := make([][]string, 0, len(resp.Records))
	for _, rec := range resp.Records {
		rows = append(rows, []string{
			rec.ID,
			scopeSummary(rec.Scope),
			rec.EffectiveStart,
			orDash(rec.EffectiveEnd),
			truncate(payloadSummary(rec.Payload), 40),
		})
	}
	printTable([]string{"ID", "Scope", "Start", "End", "Payload"}, rows)
	if resp.NextPageToken != "" {
		fmt.Printf("\nNext page: --page-token %s\n", resp.NextPageToken)
	}
	return nil
}

func printRecord(rec recordView) error {
	if outputFmt == "json" || outputFmt == "yaml" {
		return printOutput(rec)
	}
	printTable([]string{"Field", "Value"}, [][]string{
		{"ID", rec.ID},
		{"Subject", rec.SubjectID},
		{"Scope", scopeSummary(rec.Scope)},
		{"Start", rec.EffectiveStart},
		{"End", orDash(rec.EffectiveEnd)},
		{"Payload", truncate(payloadSummary(rec.Payload), 60)},
		{"Created", rec.CreatedAt},
	})
	return nil
}

func scopeSummary(sc map[string]any) string {
	if series, ok := sc["series"].(string); ok && len(sc) == 1 {
		return series
	}
	return payloadSummary(sc)
}

func payloadSummary(m map[string]any) string {
	if len(m) == 0 {
		return "-"
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "-"
	}
	return string(data)
}
