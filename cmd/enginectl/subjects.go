package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// subjectView mirrors the directory record as the API serializes it.
type subjectView struct {
	SubjectID   string `json:"SubjectID"`
	Tenant      string `json:"Tenant"`
	ExternalID  string `json:"ExternalID"`
	Kind        string `json:"Kind"`
	DisplayName string `json:"DisplayName"`
}

var subjectsCmd = &cobra.Command{
	Use:   "subjects",
	Short: "Manage directory subjects",
}

var subjectsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List subjects in the tenant",
	RunE:  runSubjectsList,
}

var (
	subjectExternalID  string
	subjectKind        string
	subjectDisplayName string
)

var subjectsUpsertCmd = &cobra.Command{
	Use:   "upsert",
	Short: "Create or update a subject by external ID",
	RunE:  runSubjectsUpsert,
}

func init() {
	subjectsUpsertCmd.Flags().StringVar(&subjectExternalID, "external-id", "", "Payroll-side identifier (required)")
	subjectsUpsertCmd.Flags().StringVar(&subjectKind, "kind", "employee", "Subject kind: employee or metric")
	subjectsUpsertCmd.Flags().StringVar(&subjectDisplayName, "display-name", "", "Human-readable name")
	subjectsUpsertCmd.MarkFlagRequired("external-id")

	subjectsCmd.AddCommand(subjectsListCmd)
	subjectsCmd.AddCommand(subjectsUpsertCmd)
}

func runSubjectsList(cmd *cobra.Command, args []string) error {
	client := newClient()

	var resp struct {
		Subjects      []subjectView `json:"subjects"`
		NextPageToken string        `json:"nextPageToken"`
	}
	if err := client.getJSON("/api/v1/subjects", &resp); err != nil {
		return err
	}

	if outputFmt == "json" || outputFmt == "yaml" {
		return printOutput(resp)
	}

	rows := make([][]string, 0, len(resp.Subjects))
	for _, s := range resp.Subjects {
		rows = append(rows, []string{s.SubjectID, s.ExternalID, s.Kind, orDash(s.DisplayName)})
	}
	printTable([]string{"ID", "External ID", "Kind", "Name"}, rows)
	return nil
}

func runSubjectsUpsert(cmd *cobra.Command, args []string) error {
	client := newClient()

	body := map[string]string{
		"externalId":  subjectExternalID,
		"kind":        subjectKind,
		"displayName": subjectDisplayName,
	}
	var subject subjectView
	if err := client.postJSON("/api/v1/subjects", body, &subject); err != nil {
		return err
	}

	if outputFmt == "json" || outputFmt == "yaml" {
		return printOutput(subject)
	}
	fmt.Printf("Subject %s (%s) upserted\n", subject.SubjectID, subject.ExternalID)
	return nil
}
