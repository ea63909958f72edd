package main

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
)

// snapshotView mirrors a computed metric snapshot.
type snapshotView struct {
	Metric      string   `json:"metric"`
	PeriodStart string   `json:"period_start"`
	PeriodEnd   string   `json:"period_end"`
	Value       float64  `json:"value"`
	Status      string   `json:"status"`
	Target      *float64 `json:"target"`
}

// historyView mirrors a stored metric snapshot.
type historyView struct {
	Metric      string  `json:"Metric"`
	PeriodStart string  `json:"PeriodStart"`
	PeriodEnd   string  `json:"PeriodEnd"`
	Value       float64 `json:"Value"`
	Status      string  `json:"Status"`
	ComputedAt  string  `json:"ComputedAt"`
}

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Compute KPI snapshots and browse their history",
}

var (
	metricName   string
	metricStart  string
	metricEnd    string
	historyLimit int
)

var metricsComputeCmd = &cobra.Command{
	Use:   "compute",
	Short: "Compute metric snapshots for a period",
	RunE:  runMetricsCompute,
}

var metricsHistoryCmd = &cobra.Command{
	Use:   "history <metric>",
	Short: "List stored snapshots of one metric",
	Args:  cobra.ExactArgs(1),
	RunE:  runMetricsHistory,
}

func init() {
	metricsComputeCmd.Flags().StringVar(&metricName, "metric", "", "Single metric to compute; default is all")
	metricsComputeCmd.Flags().StringVar(&metricStart, "start", "", "Period start, YYYY-MM-DD; default is one month before end")
	metricsComputeCmd.Flags().StringVar(&metricEnd, "end", "", "Period end, exclusive; default is now")

	metricsHistoryCmd.Flags().IntVar(&historyLimit, "limit", 0, "Maximum snapshots to return")

	metricsCmd.AddCommand(metricsComputeCmd)
	metricsCmd.AddCommand(metricsHistoryCmd)
}

func runMetricsCompute(cmd *cobra.Command, args []string) error {
	client := newClient()

	q := url.Values{}
	if metricStart != "" {
		q.Set("start", metricStart)
	}
	if metricEnd != "" {
		q.Set("end", metricEnd)
	}

	var snaps []snapshotView
	if metricName != "" {
		q.Set("metric", metricName)
		var snap snapshotView
		if err := client.getJSON("/api/v1/metrics?"+q.Encode(), &snap); err != nil {
			return err
		}
		snaps = []snapshotView{snap}
	} else {
		var resp struct {
			Metrics []snapshotView `json:"metrics"`
		}
		if err := client.getJSON("/api/v1/metrics?"+q.Encode(), &resp); err != nil {
			return err
		}
		snaps = resp.Metrics
	}

	if outputFmt == "json" || outputFmt == "yaml" {
		return printOutput(snaps)
	}

	rows := make([][]string, 0, len(snaps))
	for _, s := range snaps {
		target := "-"
		if s.Target != nil {
			target = fmt.Sprintf("%.2f", *s.Target)
		}
		rows = append(rows, []string{
			s.Metric,
			fmt.Sprintf("%.2f", s.Value),
			s.Status,
			target,
			s.PeriodStart,
			s.PeriodEnd,
		})
	}
	printTable([]string{"Metric", "Value", "Status", "Target", "From", "To"}, rows)
	return nil
}

func runMetricsHistory(cmd *cobra.Command, args []string) error {
	client := newClient()

	q := url.Values{}
	if historyLimit > 0 {
		q.Set("limit", fmt.Sprint(historyLimit))
	}

	var resp struct {
		History []historyView `json:"history"`
	}
	path := "/api/v1/metrics/" + url.PathEscape(args[0]) + "/history?" + q.Encode()
	if err := client.getJSON(path, &resp); err != nil {
		return err
	}

	if outputFmt == "json" || outputFmt == "yaml" {
		return printOutput(resp)
	}

	rows := make([][]string, 0, len(resp.History))
	for _, h := range resp.History {
		rows = append(rows, []string{
			h.PeriodStart,
			h.PeriodEnd,
			fmt.Sprintf("%.2f", h.Value),
			h.Status,
			h.ComputedAt,
		})
	}
	printTable([]string{"From", "To", "Value", "Status", "Computed"}, rows)
	return nil
}
