package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var clearForce bool

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all indexed chunks from the collection",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := buildRuntime()
		if err != nil {
			return err
		}
		defer rt.Close()

		count := rt.collection.Count()
		if !clearForce && count > 0 {
			fmt.Printf("This will remove %d chunk(s) from %q. Continue? [y/N] ", count, rt.collection.Name())
			line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
			if answer := strings.ToLower(strings.TrimSpace(line)); answer != "y" && answer != "yes" {
				fmt.Println("Aborted.")
				return nil
			}
		}

		if err := rt.collection.Clear(); err != nil {
			return fmt.Errorf("failed to clear collection: %w", err)
		}
		if werr := cfg.SetIndexStatus(rt.collection.Status()); werr != nil {
			log.Warn().Err(werr).Msg("failed to write index status back to config")
		}

		fmt.Printf("Collection cleared (%d chunk(s) removed).\n", count)
		return nil
	},
}

func init() {
	clearCmd.Flags().BoolVarP(&clearForce, "force", "f", false, "skip the confirmation prompt")
	rootCmd.AddCommand(clearCmd)
}
