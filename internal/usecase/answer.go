package usecase

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"localkb/internal/domain"
	"localkb/internal/port"
	"localkb/internal/task"
)

const (
	// contextBudget caps the total rune length of chunks interpolated into
	// the grounded prompt.
	contextBudget = 4000
	// historyWindow is how many trailing exchanges are carried into the prompt.
	historyWindow = 5
	// previewLength caps the source attribution excerpt.
	previewLength = 100
)

// Engine answers questions over the indexed collection, grounding the
// language model in retrieved chunks when any are relevant.
type Engine struct {
	retriever     *Retriever
	generator     port.Generator
	store         SearchStore
	topK          int
	minSimilarity float64
	options       port.GenerateOptions
	log           zerolog.Logger
}

// NewEngine wires the retrieval and generation halves together.
func NewEngine(retriever *Retriever, generator port.Generator, store SearchStore, topK int, minSimilarity float64, options port.GenerateOptions, log zerolog.Logger) *Engine {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Engine{
		retriever:     retriever,
		generator:     generator,
		store:         store,
		topK:          topK,
		minSimilarity: minSimilarity,
		options:       options,
		log:           log.With().Str("component", "engine").Logger(),
	}
}

// Answer retrieves context for the query and generates a complete response
// in one blocking call.
func (e *Engine) Answer(tok *task.Token, query string, history []domain.Exchange) (*domain.Answer, error) {
	started := time.Now()

	results, err := e.retriever.Retrieve(tok, query, e.topK, e.minSimilarity)
	if err != nil {
		return nil, err
	}

	prompt, contextText := e.buildPrompt(query, history, results)

	text, err := e.generator.Generate(tok, prompt, e.options)
	if err != nil {
		return nil, err
	}

	answer := e.assemble(query, text, contextText, results, started)
	e.log.Info().
		Str("query", query).
		Int("sources", len(answer.Sources)).
		Float64("confidence", answer.Confidence).
		Dur("elapsed", answer.Elapsed).
		Msg("answer generated")
	return answer, nil
}

// AnswerStream answers the query incrementally. The returned channel yields
// a sources event, then content fragments, then a complete event carrying
// the assembled answer; any failure ends the stream with an error event.
// The channel is closed when the stream ends.
func (e *Engine) AnswerStream(tok *task.Token, query string, history []domain.Exchange) <-chan domain.StreamEvent {
	events := make(chan domain.StreamEvent)

	go func() {
		defer close(events)
		started := time.Now()

		results, err := e.retriever.Retrieve(tok, query, e.topK, e.minSimilarity)
		if err != nil {
			events <- domain.StreamEvent{Type: domain.EventError, Err: err}
			return
		}

		events <- domain.StreamEvent{Type: domain.EventSources, Sources: sourcesOf(results)}

		prompt, contextText := e.buildPrompt(query, history, results)

		var full strings.Builder
		err = e.generator.Stream(tok, prompt, e.options, func(fragment string, done bool) error {
			if done {
				return nil
			}
			if tok != nil {
				if err := tok.Check(); err != nil {
					return err
				}
			}
			full.WriteString(fragment)
			events <- domain.StreamEvent{Type: domain.EventContent, Content: fragment}
			return nil
		})
		if err != nil {
			events <- domain.StreamEvent{Type: domain.EventError, Err: err}
			return
		}

		answer := e.assemble(query, full.String(), contextText, results, started)
		events <- domain.StreamEvent{Type: domain.EventComplete, Answer: answer}
	}()

	return events
}

// Health probes each collaborator and reports its state.
func (e *Engine) Health() map[string]any {
	health := map[string]any{
		"collection": map[string]any{
			"ok":     true,
			"chunks": e.store.Count(),
		},
	}

	llm := map[string]any{"ok": false}
	if e.generator.CheckConnection() {
		llm["ok"] = true
		llm["model_available"] = e.generator.ModelAvailable(e.generator.ModelName())
	}
	health["llm"] = llm
	return health
}

// assemble builds the final answer value, scoring confidence from source
// similarity, source count, and answer length.
func (e *Engine) assemble(query, text, contextText string, results []domain.SearchResult, started time.Time) *domain.Answer {
	return &domain.Answer{
		Query:      query,
		Text:       text,
		Sources:    sourcesOf(results),
		Context:    contextText,
		Confidence: confidence(text, results),
		Elapsed:    time.Since(started),
		CreatedAt:  time.Now(),
	}
}

func confidence(text string, results []domain.SearchResult) float64 {
	if len(results) == 0 {
		return 0
	}

	var avg float64
	for _, r := range results {
		avg += r.Similarity()
	}
	avg /= float64(len(results))

	countScore := float64(len(results)) / 3.0
	if countScore > 1 {
		countScore = 1
	}
	lengthScore := float64(utf8.RuneCountInString(text)) / 200.0
	if lengthScore > 1 {
		lengthScore = 1
	}

	score := 0.6*avg + 0.25*countScore + 0.15*lengthScore
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

func sourcesOf(results []domain.SearchResult) []domain.Source {
	sources := make([]domain.Source, 0, len(results))
	for _, r := range results {
		preview := r.Content
		if utf8.RuneCountInString(preview) > previewLength {
			preview = string([]rune(preview)[:previewLength]) + "..."
		}
		sources = append(sources, domain.Source{
			Filename:   r.Metadata.Filename,
			ChunkIndex: r.Metadata.ChunkIndex,
			Distance:   r.Distance,
			Preview:    preview,
		})
	}
	return sources
}

// buildPrompt renders the grounded prompt when chunks were retrieved, or an
// ungrounded one otherwise. It returns the prompt and the interpolated
// context text.
func (e *Engine) buildPrompt(query string, history []domain.Exchange, results []domain.SearchResult) (prompt, contextText string) {
	historyText := renderHistory(history)

	if len(results) == 0 {
		var b strings.Builder
		b.WriteString("You are a helpful assistant. No relevant documents were found in the knowledge base for this question.\n")
		b.WriteString("Answer from general knowledge, and say so explicitly. If you do not know, say you do not know.\n\n")
		if historyText != "" {
			b.WriteString("Conversation so far:\n")
			b.WriteString(historyText)
			b.WriteString("\n")
		}
		b.WriteString("Question: ")
		b.WriteString(query)
		b.WriteString("\nAnswer:")
		return b.String(), ""
	}

	contextText = renderContext(results)

	var b strings.Builder
	b.WriteString("You are a helpful assistant answering questions about the user's documents.\n")
	b.WriteString("Use only the context below to answer. Cite the sources you used.\n")
	b.WriteString("If the context does not contain the answer, say so instead of guessing.\n\n")
	b.WriteString("Context:\n")
	b.WriteString(contextText)
	b.WriteString("\n")
	if historyText != "" {
		b.WriteString("Conversation so far:\n")
		b.WriteString(historyText)
		b.WriteString("\n")
	}
	b.WriteString("Question: ")
	b.WriteString(query)
	b.WriteString("\nAnswer:")
	return b.String(), contextText
}

// renderContext concatenates chunks tagged with their source filename,
// stopping before the total exceeds the budget. At least one chunk is always
// included, truncated if necessary.
func renderContext(results []domain.SearchResult) string {
	var b strings.Builder
	total := 0
	for i, r := range results {
		entry := fmt.Sprintf("[source: %s]\n%s\n", r.Metadata.Filename, r.Content)
		n := utf8.RuneCountInString(entry)
		if total+n > contextBudget {
			if i == 0 {
				b.WriteString(string([]rune(entry)[:contextBudget]))
			}
			break
		}
		b.WriteString(entry)
		total += n
	}
	return b.String()
}

// renderHistory formats the trailing exchanges, oldest first.
func renderHistory(history []domain.Exchange) string {
	if len(history) == 0 {
		return ""
	}
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}
	var b strings.Builder
	for _, ex := range history {
		role := "User"
		if ex.Role == "assistant" {
			role = "Assistant"
		}
		fmt.Fprintf(&b, "%s: %s\n", role, ex.Content)
	}
	return b.String()
}
