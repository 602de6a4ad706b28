package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var searchTopK int

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Show raw retrieval results for a query",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")
		topK := searchTopK
		if topK <= 0 {
			topK = cfg.Retrieve.TopK
		}

		rt, err := buildRuntime()
		if err != nil {
			return err
		}
		defer rt.Close()

		tok := registry.New("")
		defer registry.Release(tok.ID)

		results, err := rt.retriever.Retrieve(tok, query, topK, cfg.Retrieve.MinSimilarity)
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}
		if len(results) == 0 {
			fmt.Println("No results.")
			return nil
		}

		for i, r := range results {
			fmt.Printf("%d. %s (chunk %d)  similarity %.3f\n",
				i+1, r.Metadata.Filename, r.Metadata.ChunkIndex, r.Similarity())
			preview := r.Content
			if len([]rune(preview)) > 200 {
				preview = string([]rune(preview)[:200]) + "..."
			}
			fmt.Printf("   %s\n\n", strings.ReplaceAll(preview, "\n", " "))
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().IntVarP(&searchTopK, "top-k", "k", 0, "number of results (default from config)")
	rootCmd.AddCommand(searchCmd)
}
