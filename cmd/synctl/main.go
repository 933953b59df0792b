// Command synctl is a CLI shell over the synapse engine: note/
// relation/reflection commands, full-text search, sync run, and
// queue/doctor administrative commands.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/untoldecay/synapse"
	"github.com/untoldecay/synapse/internal/clock"
	"github.com/untoldecay/synapse/internal/config"
	"github.com/untoldecay/synapse/internal/logging"
)

var (
	cfg    *config.Config
	engine *synapse.Engine
	rootCtx = context.Background()
)

var rootCmd = &cobra.Command{
	Use:   "synctl",
	Short: "Manage a local synapse notes database",
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if cmd.Name() == "help" || cmd.Name() == "synctl" {
			return nil
		}
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		cfg = loaded

		logging.Configure(logging.Config{Level: logging.Level(cfg.LogLevel)})

		e, err := synapse.Open(rootCtx, cfg.DatabasePath, synapse.Options{
			Clock:  clock.System{},
			Logger: logging.Logger,
		})
		if err != nil {
			return err
		}
		engine = e
		return nil
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		if engine != nil {
			_ = engine.Close()
		}
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
