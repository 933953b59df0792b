package main

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var doctorForce bool

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Diagnose and repair the local database",
}

var doctorCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Report sync queue health",
	RunE: func(_ *cobra.Command, _ []string) error {
		status, err := engine.Changelog.QueueStatus(rootCtx)
		if err != nil {
			return err
		}
		fmt.Printf("queue: %d pending (warning=%v full=%v)\n", status.Size, status.Warning, status.Full)
		return nil
	},
}

var doctorResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Wipe and re-create the local database (destructive)",
	RunE: func(_ *cobra.Command, _ []string) error {
		if !doctorForce {
			return fmt.Errorf("refusing to reset the database without --force")
		}
		return engine.Reset(rootCtx)
	},
}

var doctorDumpConfigFormat string

var doctorDumpConfigCmd = &cobra.Command{
	Use:   "dump-config",
	Short: "Print the resolved configuration",
	RunE: func(_ *cobra.Command, _ []string) error {
		switch doctorDumpConfigFormat {
		case "yaml":
			enc := yaml.NewEncoder(os.Stdout)
			defer enc.Close()
			return enc.Encode(cfg)
		case "toml":
			return toml.NewEncoder(os.Stdout).Encode(cfg)
		default:
			return fmt.Errorf("unknown format %q (want toml or yaml)", doctorDumpConfigFormat)
		}
	},
}

func init() {
	doctorResetCmd.Flags().BoolVar(&doctorForce, "force", false, "confirm destructive reset")
	doctorDumpConfigCmd.Flags().StringVar(&doctorDumpConfigFormat, "format", "toml", "output format (toml, yaml)")
	doctorCmd.AddCommand(doctorCheckCmd, doctorResetCmd, doctorDumpConfigCmd)
	rootCmd.AddCommand(doctorCmd)
}
