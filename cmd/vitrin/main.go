package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/vitrinhq/vitrin/pkg/version"

	"github.com/spf13/cobra"
)

var (
	configPath string

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of vitrin",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("vitrin version %s\n", version.Get())
		},
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the tracking and admin HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}

	cleanupAll bool
	cleanupCmd = &cobra.Command{
		Use:   "cleanup",
		Short: "End stale visitor sessions once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCleanup(cmd.Context(), cmd.OutOrStdout(), cleanupAll)
		},
	}

	reportRange string
	reportJSON  bool
	reportCmd   = &cobra.Command{
		Use:   "report",
		Short: "Print the visitor analytics of a range",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(cmd.Context(), cmd.OutOrStdout(), reportRange, reportJSON)
		},
	}

	rootCmd = &cobra.Command{
		Use:   "vitrin",
		Short: "Visitor presence service",
		Long:  `vitrin tracks who is on the storefront right now, keeps the visit history and serves the admin dashboard`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
		SilenceUsage: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "conf", "vitrin.yaml", "path to configuration file")
	cleanupCmd.Flags().BoolVar(&cleanupAll, "all", false, "end every active session, not only stale ones")
	reportCmd.Flags().StringVar(&reportRange, "range", "24h", "report range: 1h, 6h, 24h or 7d")
	reportCmd.Flags().BoolVar(&reportJSON, "json", false, "print the report as JSON")
	rootCmd.AddCommand(versionCmd, serveCmd, cleanupCmd, reportCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
