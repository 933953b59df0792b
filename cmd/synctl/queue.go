package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect and manage the outgoing sync queue",
}

var queueStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pending/warning/full queue status",
	RunE: func(_ *cobra.Command, _ []string) error {
		status, err := engine.Changelog.QueueStatus(rootCtx)
		if err != nil {
			return err
		}
		return printJSON(status)
	},
}

var queueStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show change-log statistics by entity type and operation",
	RunE: func(_ *cobra.Command, _ []string) error {
		stats, err := engine.Changelog.GetStats(rootCtx)
		if err != nil {
			return err
		}
		return printJSON(stats)
	},
}

var queueFailedCmd = &cobra.Command{
	Use:   "failed",
	Short: "List entries that exhausted their retry budget",
	RunE: func(_ *cobra.Command, _ []string) error {
		entries, err := engine.Changelog.FailedEntries(rootCtx)
		if err != nil {
			return err
		}
		return printJSON(entries)
	},
}

var queueResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset retry_count on failed entries so they are retried",
	RunE: func(_ *cobra.Command, _ []string) error {
		if err := engine.Changelog.ResetRetry(rootCtx, nil); err != nil {
			return err
		}
		fmt.Println("failed entries reset for retry")
		return nil
	},
}

func init() {
	queueCmd.AddCommand(queueStatusCmd, queueStatsCmd, queueFailedCmd, queueResetCmd)
	rootCmd.AddCommand(queueCmd)
}
