package main

import (
	"github.com/spf13/cobra"
)

var reflectionCmd = &cobra.Command{
	Use:   "reflection",
	Short: "Manage daily reflections",
}

var reflectionCreateCmd = &cobra.Command{
	Use:   "create <date> <content>",
	Short: "Create a reflection for a date (YYYY-MM-DD); fails if one exists",
	Args:  cobra.ExactArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		r, err := engine.Entities.CreateReflection(rootCtx, args[0], args[1])
		if err != nil {
			return err
		}
		return printJSON(r)
	},
}

var reflectionRecentCmd = &cobra.Command{
	Use:   "recent",
	Short: "List the most recent reflections",
	RunE: func(_ *cobra.Command, _ []string) error {
		reflections, err := engine.Entities.RecentReflections(rootCtx, noteLimit)
		if err != nil {
			return err
		}
		return printJSON(reflections)
	},
}

func init() {
	reflectionCmd.AddCommand(reflectionCreateCmd, reflectionRecentCmd)
	rootCmd.AddCommand(reflectionCmd)
}
