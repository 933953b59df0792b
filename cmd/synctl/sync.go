package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/untoldecay/synapse/internal/idgen"
	"github.com/untoldecay/synapse/internal/logging"
	"github.com/untoldecay/synapse/internal/netmonitor"
	"github.com/untoldecay/synapse/internal/syncengine"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Push/pull against the configured sync server",
}

var syncRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a full sync cycle (push then pull) via the orchestrator",
	RunE: func(_ *cobra.Command, _ []string) error {
		if err := ensureSyncConfigured(); err != nil {
			return err
		}
		result := engine.Sync.Sync(rootCtx)
		if result.Skipped {
			fmt.Printf("sync skipped: %s\n", result.SkipReason)
			return nil
		}
		if result.Err != nil {
			return result.Err
		}
		fmt.Printf("push: %d pushed, %d failed\n", result.Push.Pushed, result.Push.Failed)
		fmt.Printf("pull: %d applied, checkpoint=%s\n", result.Pull.Applied, result.Pull.NewCheckpoint)
		return nil
	},
}

func ensureSyncConfigured() error {
	if engine.Sync != nil {
		return nil
	}
	if cfg.SyncBaseURL == "" {
		return errors.New("sync.base_url is not configured")
	}
	deviceStore, err := idgen.NewFileSecureStore(deviceSecretDir())
	if err != nil {
		return err
	}
	tokens := syncengine.NewSecureStoreTokenSource(deviceStore)
	transport := syncengine.NewHTTPTransport(cfg.SyncBaseURL, tokens)
	return engine.WithSync(transport, deviceStore, netmonitor.AlwaysOnline{}, netmonitor.NoopAppState{}, logging.Logger)
}

func init() {
	syncCmd.AddCommand(syncRunCmd)
	rootCmd.AddCommand(syncCmd)
}
