package main

import (
	"github.com/spf13/cobra"

	"github.com/untoldecay/synapse"
)

var relationType string

var relationCmd = &cobra.Command{
	Use:   "relation",
	Short: "Manage note relations",
}

var relationCreateCmd = &cobra.Command{
	Use:   "create <from-note-id> <to-note-id>",
	Short: "Create a relation between two notes",
	Args:  cobra.ExactArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		r, err := engine.Entities.CreateRelation(rootCtx, args[0], args[1], synapse.RelationType(relationType), nil, synapse.SourceManual)
		if err != nil {
			return err
		}
		return printJSON(r)
	},
}

var relationListCmd = &cobra.Command{
	Use:   "list <note-id>",
	Short: "List relations touching a note",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		relations, err := engine.Entities.ListRelationsForNote(rootCtx, args[0])
		if err != nil {
			return err
		}
		return printJSON(relations)
	},
}

func init() {
	relationCreateCmd.Flags().StringVar(&relationType, "type", string(synapse.RelationRelated), "relation type")
	relationCmd.AddCommand(relationCreateCmd, relationListCmd)
	rootCmd.AddCommand(relationCmd)
}
