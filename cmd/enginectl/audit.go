package main

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
)

// eventView mirrors an audit event as the API serializes it.
type eventView struct {
	ID         string         `json:"ID"`
	EventType  string         `json:"EventType"`
	SubjectID  string         `json:"SubjectID"`
	ExternalID string         `json:"ExternalID"`
	RecordID   string         `json:"RecordID"`
	Details    map[string]any `json:"Details"`
	CreatedAt  string         `json:"CreatedAt"`
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Browse the audit trail",
}

var (
	auditSubject   string
	auditEventType string
	auditPageSize  int
)

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List audit events, newest first",
	RunE:  runAuditList,
}

func init() {
	auditListCmd.Flags().StringVar(&auditSubject, "subject", "", "Filter by subject ID")
	auditListCmd.Flags().StringVar(&auditEventType, "event-type", "", "Filter by event type (e.g. record.created)")
	auditListCmd.Flags().IntVar(&auditPageSize, "page-size", 0, "Events per page")

	auditCmd.AddCommand(auditListCmd)
}

func runAuditList(cmd *cobra.Command, args []string) error {
	client := newClient()

	q := url.Values{}
	if auditSubject != "" {
		q.Set("subjectId", auditSubject)
	}
	if auditEventType != "" {
		q.Set("eventType", auditEventType)
	}
	if auditPageSize > 0 {
		q.Set("pageSize", fmt.Sprint(auditPageSize))
	}

	var resp struct {
		Events        []eventView `json:"events"`
		NextPageToken string      `json:"nextPageToken"`
		TotalSize     int         `json:"totalSize"`
	}
	if err := client.getJSON("/api/v1/audit?"+q.Encode(), &resp); err != nil {
		return err
	}

	if outputFmt == "json" || outputFmt == "yaml" {
		return printOutput(resp)
	}

	rows := make([][]string, 0, len(resp.Events))
	for _, ev := range resp.Events {
		rows = append(rows, []string{
			ev.CreatedAt,
			ev.EventType,
			orDash(ev.ExternalID),
			orDash(ev.RecordID),
		})
	}
	printTable([]string{"Time", "Event", "Subject", "Record"}, rows)
	return nil
}
