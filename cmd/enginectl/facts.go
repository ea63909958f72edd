package main

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
)

// factView mirrors the API shape of a daily fact.
type factView struct {
	ID               string `json:"id"`
	SubjectID        string `json:"subjectId"`
	ExternalID       string `json:"externalId"`
	Day              string `json:"day"`
	WorkedMinutes    int    `json:"workedMinutes"`
	RegularMinutes   int    `json:"regularMinutes"`
	OT1Minutes       int    `json:"ot1Minutes"`
	OT2Minutes       int    `json:"ot2Minutes"`
	ScheduledMinutes *int   `json:"scheduledMinutes"`
	AbsenceCode      string `json:"absenceCode"`
	AbsenceMinutes   int    `json:"absenceMinutes"`
	Unbounded        bool   `json:"unbounded"`
}

var factsCmd = &cobra.Command{
	Use:   "facts",
	Short: "Submit and list daily time facts",
}

var (
	factSubject     string
	factDay         string
	factWorked      int
	factRegular     int
	factOT1         int
	factOT2         int
	factScheduled   int
	factAbsenceCode string
	factAbsenceMins int
	factStart       string
	factEnd         string
)

var factsWriteCmd = &cobra.Command{
	Use:   "write",
	Short: "Submit one day of time data for a subject",
	RunE:  runFactsWrite,
}

var factsListCmd = &cobra.Command{
	Use:   "list <subject-id>",
	Short: "List a subject's facts in a date range",
	Args:  cobra.ExactArgs(1),
	RunE:  runFactsList,
}

func init() {
	factsWriteCmd.Flags().StringVar(&factSubject, "subject", "", "Subject ID (required)")
	factsWriteCmd.Flags().StringVar(&factDay, "day", "", "Day, YYYY-MM-DD (required)")
	factsWriteCmd.Flags().IntVar(&factWorked, "worked", 0, "Worked minutes")
	factsWriteCmd.Flags().IntVar(&factRegular, "regular", 0, "Regular minutes")
	factsWriteCmd.Flags().IntVar(&factOT1, "ot1", 0, "Tier 1 overtime minutes")
	factsWriteCmd.Flags().IntVar(&factOT2, "ot2", 0, "Tier 2 overtime minutes")
	factsWriteCmd.Flags().IntVar(&factScheduled, "scheduled", -1, "Scheduled minutes; omit to derive from the schedule series")
	factsWriteCmd.Flags().StringVar(&factAbsenceCode, "absence-code", "", "Absence code")
	factsWriteCmd.Flags().IntVar(&factAbsenceMins, "absence-minutes", 0, "Absence minutes")
	factsWriteCmd.MarkFlagRequired("subject")
	factsWriteCmd.MarkFlagRequired("day")

	factsListCmd.Flags().StringVar(&factStart, "start", "", "Range start, YYYY-MM-DD")
	factsListCmd.Flags().StringVar(&factEnd, "end", "", "Range end, exclusive")

	factsCmd.AddCommand(factsWriteCmd)
	factsCmd.AddCommand(factsListCmd)
}

func runFactsWrite(cmd *cobra.Command, args []string) error {
	client := newClient()

	body := map[string]any{
		"subjectId":      factSubject,
		"day":            factDay + "T00:00:00Z",
		"workedMinutes":  factWorked,
		"regularMinutes": factRegular,
		"ot1Minutes":     factOT1,
		"ot2Minutes":     factOT2,
		"absenceCode":    factAbsenceCode,
		"absenceMinutes": factAbsenceMins,
	}
	if factScheduled >= 0 {
		body["scheduledMinutes"] = factScheduled
	}

	var fact factView
	if err := client.postJSON("/api/v1/facts", body, &fact); err != nil {
		return err
	}

	if outputFmt == "json" || outputFmt == "yaml" {
		return printOutput(fact)
	}
	flagged := ""
	if fact.Unbounded {
		flagged = " (unbounded: no schedule to validate against)"
	}
	fmt.Printf("Fact %s recorded for %s on %s%s\n", fact.ID, fact.ExternalID, fact.Day, flagged)
	return nil
}

func runFactsList(cmd *cobra.Command, args []string) error {
	client := newClient()

	q := url.Values{}
	if factStart != "" {
		q.Set("start", factStart)
	}
	if factEnd != "" {
		q.Set("end", factEnd)
	}

	var resp struct {
		Facts []factView `json:"facts"`
	}
	if err := client.getJSON("/api/v1/subjects/"+url.PathEscape(args[0])+"/facts?"+q.Encode(), &resp); err != nil {
		return err
	}

	if outputFmt == "json" || outputFmt == "yaml" {
		return printOutput(resp)
	}

	rows := make([][]string, 0, len(resp.Facts))
	for _, f := range resp.Facts {
		scheduled := "-"
		if f.ScheduledMinutes != nil {
			scheduled = fmt.Sprint(*f.ScheduledMinutes)
		}
		rows = append(rows, []string{
			f.Day,
			fmt.Sprint(f.WorkedMinutes),
			fmt.Sprint(f.RegularMinutes),
			fmt.Sprint(f.OT1Minutes + f.OT2Minutes),
			scheduled,
			orDash(f.AbsenceCode),
			fmt.Sprint(f.AbsenceMinutes),
		})
	}
	printTable([]string{"Day", "Worked", "Regular", "Overtime", "Scheduled", "Absence", "Abs Min"}, rows)
	return nil
}
