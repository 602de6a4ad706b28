package port

import "localkb/internal/task"

// GenerateOptions are the model parameters for one generation call.
type GenerateOptions struct {
	Temperature float64
	TopP        float64
	TopK        int
	MaxTokens   int
	Stop        []string
}

// Generator is a language model endpoint for answer generation.
type Generator interface {
	// Generate returns one complete answer for the prompt.
	Generate(tok *task.Token, prompt string, opts GenerateOptions) (string, error)

	// Stream calls fn for each incremental text fragment. The final fragment
	// arrives with done=true. Cancellation is checked between fragments.
	Stream(tok *task.Token, prompt string, opts GenerateOptions, fn func(fragment string, done bool) error) error

	// CheckConnection reports whether the endpoint is reachable.
	CheckConnection() bool

	// ModelAvailable reports whether the named model is installed.
	ModelAvailable(name string) bool

	// ModelName returns the configured generation model.
	ModelName() string
}
