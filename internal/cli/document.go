package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
)

var addCmd = &cobra.Command{
	Use:   "add <file>",
	Short: "Index a single document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("invalid path: %w", err)
		}

		rt, err := buildRuntime()
		if err != nil {
			return err
		}
		defer rt.Close()

		tok := registry.New("")
		defer registry.Release(tok.ID)

		doc, err := rt.indexer.AddDocument(tok, path)
		if err != nil {
			return fmt.Errorf("failed to add document: %w", err)
		}
		fmt.Printf("Added %s (id %s, %d bytes)\n", doc.Title, doc.ID, doc.Size)
		return nil
	},
}

var updateCmd = &cobra.Command{
	Use:   "update <file>",
	Short: "Re-index a document, replacing its stored chunks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("invalid path: %w", err)
		}

		rt, err := buildRuntime()
		if err != nil {
			return err
		}
		defer rt.Close()

		tok := registry.New("")
		defer registry.Release(tok.ID)

		doc, err := rt.indexer.UpdateDocument(tok, path)
		if err != nil {
			return fmt.Errorf("failed to update document: %w", err)
		}
		fmt.Printf("Updated %s (id %s)\n", doc.Title, doc.ID)
		return nil
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove <file>",
	Short: "Remove a document's chunks from the collection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("invalid path: %w", err)
		}

		rt, err := buildRuntime()
		if err != nil {
			return err
		}
		defer rt.Close()

		if err := rt.indexer.RemoveDocument(path); err != nil {
			return fmt.Errorf("failed to remove document: %w", err)
		}
		fmt.Printf("Removed %s\n", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(removeCmd)
}
