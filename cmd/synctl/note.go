package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/untoldecay/synapse"
)

var (
	noteImportance int
	noteSourceURL  string
	noteLimit      int
	searchLimit    int
)

var noteCmd = &cobra.Command{
	Use:   "note",
	Short: "Manage notes",
}

var noteCreateCmd = &cobra.Command{
	Use:   "create <body>",
	Short: "Create a note",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		var sourceURL *string
		if noteSourceURL != "" {
			sourceURL = &noteSourceURL
		}
		n, err := engine.Entities.CreateNote(rootCtx, args[0], noteImportance, sourceURL, nil)
		if err != nil {
			return err
		}
		return printJSON(n)
	},
}

var noteListCmd = &cobra.Command{
	Use:   "list",
	Short: "List notes",
	RunE: func(_ *cobra.Command, _ []string) error {
		notes, err := engine.Entities.ListNotes(rootCtx, synapse.ListFilters{Limit: noteLimit})
		if err != nil {
			return err
		}
		return printJSON(notes)
	},
}

var noteGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Get a note by id",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		n, err := engine.Entities.GetNote(rootCtx, args[0])
		if err != nil {
			return err
		}
		return printJSON(n)
	},
}

var noteDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Soft-delete a note",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		return engine.Entities.DeleteNote(rootCtx, args[0])
	},
}

var noteTodayCmd = &cobra.Command{
	Use:   "today",
	Short: "List notes created today",
	RunE: func(_ *cobra.Command, _ []string) error {
		notes, err := engine.Entities.TodayNotes(rootCtx)
		if err != nil {
			return err
		}
		return printJSON(notes)
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Full-text search notes",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		results, err := engine.Search.Search(rootCtx, args[0], searchLimit)
		if err != nil {
			return err
		}
		if err := engine.Search.SaveHistory(rootCtx, args[0]); err != nil {
			return err
		}
		return printJSON(results)
	},
}

func init() {
	noteCreateCmd.Flags().IntVar(&noteImportance, "importance", synapse.ImportanceMedium, "importance (1-3)")
	noteCreateCmd.Flags().StringVar(&noteSourceURL, "source-url", "", "optional source URL")
	noteListCmd.Flags().IntVar(&noteLimit, "limit", 100, "max rows to return")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 50, "max rows to return")

	noteCmd.AddCommand(noteCreateCmd, noteListCmd, noteGetCmd, noteDeleteCmd, noteTodayCmd)
	rootCmd.AddCommand(noteCmd, searchCmd)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
