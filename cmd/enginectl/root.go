package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	serverURL string
	outputFmt string
	tenant    string
)

var rootCmd = &cobra.Command{
	Use:   "enginectl",
	Short: "CLI for the temporal engine server",
	Long: `enginectl talks to an engine server over its HTTP API.

It writes and queries versioned records, submits daily facts, computes
metric snapshots, and manages sync runs and the audit trail. On a
multi-tenant server, pass --tenant (or set ENGINE_TENANT) to select the
tenant; single-tenant servers ignore it.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "Engine server URL")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "table", "Output format: table, json, yaml")
	rootCmd.PersistentFlags().StringVarP(&tenant, "tenant", "t", "", "Tenant for multi-tenant servers (default: from ENGINE_TENANT env)")

	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(subjectsCmd)
	rootCmd.AddCommand(recordsCmd)
	rootCmd.AddCommand(factsCmd)
	rootCmd.AddCommand(metricsCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(auditCmd)
}

// resolvedTenant returns the effective tenant.
// Priority: --tenant flag > ENGINE_TENANT env var > empty (server default).
func resolvedTenant() string {
	if tenant != "" {
		return tenant
	}
	if t := os.Getenv("ENGINE_TENANT"); t != "" {
		return t
	}
	return ""
}
