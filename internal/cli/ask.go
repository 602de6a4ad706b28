package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"localkb/internal/domain"
	"localkb/internal/task"
)

var askStream bool

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question over the indexed documents",
	Long: `Retrieve the most relevant chunks for the question and generate an
answer grounded in them. When nothing relevant is indexed, the model answers
from general knowledge and says so.

Examples:
  localkb ask "what does the contract say about termination?"
  localkb ask --stream "summarize the meeting notes"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askStream, "stream", false, "stream the answer as it is generated")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := strings.Join(args, " ")

	rt, err := buildRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	tok := registry.New("")
	defer registry.Release(tok.ID)

	if askStream {
		return streamAnswer(rt, tok, question)
	}

	answer, err := rt.engine.Answer(tok, question, nil)
	if err != nil {
		return fmt.Errorf("failed to answer: %w", err)
	}

	fmt.Println(answer.Text)
	printSources(answer.Sources)
	fmt.Printf("\nConfidence: %.2f  Elapsed: %s\n", answer.Confidence, answer.Elapsed.Round(10 * time.Millisecond))
	return nil
}

func streamAnswer(rt *runtime, tok *task.Token, question string) error {
	for event := range rt.engine.AnswerStream(tok, question, nil) {
		switch event.Type {
		case domain.EventSources:
			if len(event.Sources) > 0 {
				fmt.Printf("Answering from %d source(s)...\n\n", len(event.Sources))
			}
		case domain.EventContent:
			fmt.Print(event.Content)
		case domain.EventComplete:
			fmt.Println()
			printSources(event.Answer.Sources)
			fmt.Printf("\nConfidence: %.2f  Elapsed: %s\n",
				event.Answer.Confidence, event.Answer.Elapsed.Round(10 * time.Millisecond))
		case domain.EventError:
			return fmt.Errorf("failed to answer: %w", event.Err)
		}
	}
	return nil
}

func printSources(sources []domain.Source) {
	if len(sources) == 0 {
		return
	}
	fmt.Println("\nSources:")
	for _, s := range sources {
		fmt.Printf("  - %s (chunk %d, distance %.3f)\n", s.Filename, s.ChunkIndex, s.Distance)
	}
}
