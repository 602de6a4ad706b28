// Package cli wires the cobra command tree over the indexing and
// question-answering use cases.
package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"localkb/config"
	"localkb/internal/adapter/chunker"
	"localkb/internal/adapter/embedding"
	"localkb/internal/adapter/llm"
	"localkb/internal/adapter/reader"
	"localkb/internal/adapter/store"
	"localkb/internal/port"
	"localkb/internal/task"
	"localkb/internal/usecase"
)

var (
	cfgFile  string
	cfg      *config.Config
	log      zerolog.Logger
	registry = task.NewRegistry()
)

var rootCmd = &cobra.Command{
	Use:   "localkb",
	Short: "Local knowledge base - index documents and ask questions over them",
	Long: `localkb indexes local documents (PDF, text, markdown, docx) into a
vector collection and answers questions grounded in the retrieved content,
using a local Ollama server for embeddings and generation.

Example usage:
  localkb index ./docs             # Index a folder of documents
  localkb ask "what is chapter 3?" # Ask a question over the index
  localkb search "budget"          # Inspect raw retrieval results`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env is optional; environment still wins for ad-hoc overrides.
		_ = godotenv.Load()

		var err error
		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, err = config.LoadFromDir(".")
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if v := os.Getenv("LOCALKB_BASE_URL"); v != "" {
			cfg.Embedding.BaseURL = v
			cfg.LLM.BaseURL = v
		}

		level, err := zerolog.ParseLevel(strings.ToLower(cfg.Logging.Level))
		if err != nil {
			level = zerolog.InfoLevel
		}
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
			Level(level).
			With().Timestamp().Logger()

		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./localkb.yaml)")
}

// runtime bundles the constructed adapters and use cases shared by the
// commands.
type runtime struct {
	collection *store.Collection
	embedder   *embedding.OllamaEmbedder
	generator  *llm.OllamaGenerator
	reader     *reader.Reader
	indexer    *usecase.Indexer
	retriever  *usecase.Retriever
	engine     *usecase.Engine
}

// buildRuntime constructs the full adapter stack from the loaded config.
// Callers must Close it.
func buildRuntime() (*runtime, error) {
	if err := cfg.EnsureStorageDir(); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	splitter, err := chunker.NewSplitter(cfg.Chunking.Window, cfg.Chunking.Overlap)
	if err != nil {
		return nil, err
	}

	embedder := embedding.NewOllamaEmbedder(cfg.Embedding.Model, cfg.Embedding.BaseURL, log)

	collection, err := store.Open(cfg.StorageDir(), cfg.Store.Collection, embedder, splitter, log)
	if err != nil {
		return nil, err
	}

	generator := llm.NewOllamaGenerator(cfg.LLM.Model, cfg.LLM.BaseURL, log)

	rd := reader.New()
	retriever := usecase.NewRetriever(collection, log)
	engine := usecase.NewEngine(retriever, generator, collection,
		cfg.Retrieve.TopK, cfg.Retrieve.MinSimilarity, generateOptions(), log)
	indexer := usecase.NewIndexer(collection, rd, cfg.Documents.Extensions, log)

	return &runtime{
		collection: collection,
		embedder:   embedder,
		generator:  generator,
		reader:     rd,
		indexer:    indexer,
		retriever:  retriever,
		engine:     engine,
	}, nil
}

func (rt *runtime) Close() {
	if err := rt.collection.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close collection")
	}
}

// generateOptions builds the generation parameters from the loaded config.
// Load starts from DefaultConfig and unmarshals the file over it, so every
// field already carries either the default or the user's explicit value,
// zeros included.
func generateOptions() port.GenerateOptions {
	return port.GenerateOptions{
		Temperature: cfg.LLM.Temperature,
		TopP:        cfg.LLM.TopP,
		TopK:        cfg.LLM.TopK,
		MaxTokens:   cfg.LLM.MaxTokens,
		Stop:        cfg.LLM.Stop,
	}
}
