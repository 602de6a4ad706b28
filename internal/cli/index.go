package cli

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"localkb/internal/domain"
	"localkb/internal/task"
)

var indexCmd = &cobra.Command{
	Use:   "index [folders...]",
	Short: "Index document folders into the collection",
	Long: `Index every supported document under the given folders (or the
folders from the config file when none are given). Re-indexing a file that
was indexed before replaces its chunks.

Examples:
  localkb index                # Index the configured folders
  localkb index ./docs ./notes # Index specific folders`,
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	folders := cfg.Documents.Folders
	if len(args) > 0 {
		folders = args
	}
	for _, folder := range folders {
		info, err := os.Stat(folder)
		if err != nil {
			return fmt.Errorf("folder does not exist: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("not a directory: %s", folder)
		}
	}

	rt, err := buildRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	tok := registry.New("")
	defer registry.Release(tok.ID)

	// Ctrl-C cancels the run but keeps already-indexed documents.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		if _, ok := <-sigCh; ok {
			registry.Cancel(tok.ID, "interrupted")
		}
	}()

	fmt.Printf("Scanning %d folder(s)...\n", len(folders))

	var bar *progressbar.ProgressBar
	var barMu sync.Mutex
	onProgress := func(p task.Progress) {
		barMu.Lock()
		defer barMu.Unlock()
		if bar == nil {
			bar = progressbar.NewOptions(p.Total,
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("[cyan]Indexing[reset]"),
				progressbar.OptionOnCompletion(func() {
					fmt.Println()
				}),
			)
		}
		bar.Set(p.Current)
		if p.Message != "" {
			bar.Describe(fmt.Sprintf("[cyan]Indexing[reset] %s", p.Message))
		}
	}

	report, err := rt.indexer.IndexFolders(tok, folders, onProgress)
	if werr := cfg.SetIndexStatus(rt.collection.Status()); werr != nil {
		log.Warn().Err(werr).Msg("failed to write index status back to config")
	}
	if err != nil {
		if domain.IsCancelled(err) {
			fmt.Printf("\nIndexing cancelled. %d document(s) were indexed before the interrupt.\n", report.Indexed)
			return nil
		}
		return fmt.Errorf("indexing failed: %w", err)
	}

	fmt.Printf("\nIndexing complete:\n")
	fmt.Printf("  Files found:   %d\n", report.Files)
	fmt.Printf("  Indexed:       %d\n", report.Indexed)
	fmt.Printf("  Failed:        %d\n", report.Failed)
	fmt.Printf("  Elapsed:       %s\n", report.Duration.Round(10*time.Millisecond))
	fmt.Printf("\nCollection %q now holds %d chunks at %s\n",
		rt.collection.Name(), rt.collection.Count(), rt.collection.Path())
	return nil
}
