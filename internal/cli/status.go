package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show collection stats and collaborator health",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := buildRuntime()
		if err != nil {
			return err
		}
		defer rt.Close()

		fmt.Printf("Collection:      %s\n", rt.collection.Name())
		fmt.Printf("  Path:          %s\n", rt.collection.Path())
		fmt.Printf("  Status:        %s\n", rt.collection.Status())
		fmt.Printf("  Chunks:        %d\n", rt.collection.Count())
		fmt.Printf("  Documents:     %d\n", rt.collection.DocumentCount())
		fmt.Printf("  Embedding:     %s (dimension %d)\n", rt.collection.Model(), rt.collection.Dimension())

		fmt.Printf("Embedding server:  ")
		if rt.embedder.CheckConnection() {
			fmt.Println("ok")
		} else {
			fmt.Println("unreachable")
		}

		fmt.Printf("Generation server: ")
		if rt.generator.CheckConnection() {
			if rt.generator.ModelAvailable(cfg.LLM.Model) {
				fmt.Printf("ok (model %s available)\n", cfg.LLM.Model)
			} else {
				fmt.Printf("ok, but model %s is not installed\n", cfg.LLM.Model)
			}
		} else {
			fmt.Println("unreachable")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
