// Package llm implements text generation against a local Ollama server.
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"localkb/internal/domain"
	"localkb/internal/port"
	"localkb/internal/task"
)

const (
	blockingTimeout  = 30 * time.Second
	streamingTimeout = 60 * time.Second

	defaultTemperature = 0.7
	defaultTopP        = 0.9
	defaultTopK        = 40
	defaultMaxTokens   = 2000
)

var defaultStop = []string{"[DONE]", "<|im_end|>"}

// DefaultOptions returns the generation parameters used when the caller
// leaves them unset.
func DefaultOptions() port.GenerateOptions {
	return port.GenerateOptions{
		Temperature: defaultTemperature,
		TopP:        defaultTopP,
		TopK:        defaultTopK,
		MaxTokens:   defaultMaxTokens,
		Stop:        append([]string(nil), defaultStop...),
	}
}

// ValidateOptions rejects generation parameters outside their accepted
// ranges.
func ValidateOptions(opts port.GenerateOptions) error {
	if opts.Temperature < 0 || opts.Temperature > 2 {
		return domain.NewError(domain.CodeInvalidParam,
			fmt.Sprintf("temperature must be in [0.0, 2.0], got %g", opts.Temperature), nil)
	}
	if opts.TopP < 0 || opts.TopP > 1 {
		return domain.NewError(domain.CodeInvalidParam,
			fmt.Sprintf("top_p must be in [0.0, 1.0], got %g", opts.TopP), nil)
	}
	if opts.TopK < 1 || opts.TopK > 100 {
		return domain.NewError(domain.CodeInvalidParam,
			fmt.Sprintf("top_k must be in [1, 100], got %d", opts.TopK), nil)
	}
	if opts.MaxTokens < 1 || opts.MaxTokens > 10000 {
		return domain.NewError(domain.CodeInvalidParam,
			fmt.Sprintf("max_tokens must be in [1, 10000], got %d", opts.MaxTokens), nil)
	}
	return nil
}

// OllamaGenerator talks to Ollama's /api/generate endpoint.
type OllamaGenerator struct {
	model   string
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

// NewOllamaGenerator creates a generator for the given model. baseURL
// defaults to the local Ollama address when empty.
func NewOllamaGenerator(model, baseURL string, log zerolog.Logger) *OllamaGenerator {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &OllamaGenerator{
		model:   model,
		baseURL: baseURL,
		client:  &http.Client{},
		log:     log.With().Str("component", "llm").Str("model", model).Logger(),
	}
}

// ModelName returns the configured generation model.
func (g *OllamaGenerator) ModelName() string { return g.model }

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64  `json:"temperature"`
	TopP        float64  `json:"top_p"`
	TopK        int      `json:"top_k"`
	NumPredict  int      `json:"num_predict"`
	Stop        []string `json:"stop,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Generate produces a complete response in one blocking call.
func (g *OllamaGenerator) Generate(tok *task.Token, prompt string, opts port.GenerateOptions) (string, error) {
	if err := ValidateOptions(opts); err != nil {
		return "", err
	}
	if tok != nil {
		if err := tok.Check(); err != nil {
			return "", err
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), blockingTimeout)
	defer cancel()
	ctx = g.watchToken(ctx, tok)

	resp, err := g.post(ctx, generateRequest{
		Model:  g.model,
		Prompt: prompt,
		Stream: false,
		Options: generateOptions{
			Temperature: opts.Temperature,
			TopP:        opts.TopP,
			TopK:        opts.TopK,
			NumPredict:  opts.MaxTokens,
			Stop:        opts.Stop,
		},
	})
	if err != nil {
		return "", g.classify(tok, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", domain.NewError(domain.CodeLLMUnavailable,
			fmt.Sprintf("generation request failed with status %d", resp.StatusCode),
			map[string]any{"model": g.model})
	}

	var body generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		// A cancellation or deadline can also fire mid-body.
		return "", g.classify(tok, err)
	}
	return body.Response, nil
}

// Stream produces the response incrementally, calling fn for each fragment
// as it arrives and once more with done=true when the stream completes. A
// non-nil error from fn aborts the stream.
func (g *OllamaGenerator) Stream(tok *task.Token, prompt string, opts port.GenerateOptions, fn func(fragment string, done bool) error) error {
	if err := ValidateOptions(opts); err != nil {
		return err
	}
	if tok != nil {
		if err := tok.Check(); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), streamingTimeout)
	defer cancel()
	ctx = g.watchToken(ctx, tok)

	resp, err := g.post(ctx, generateRequest{
		Model:  g.model,
		Prompt: prompt,
		Stream: true,
		Options: generateOptions{
			Temperature: opts.Temperature,
			TopP:        opts.TopP,
			TopK:        opts.TopK,
			NumPredict:  opts.MaxTokens,
			Stop:        opts.Stop,
		},
	})
	if err != nil {
		return g.classify(tok, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.NewError(domain.CodeLLMUnavailable,
			fmt.Sprintf("generation request failed with status %d", resp.StatusCode),
			map[string]any{"model": g.model})
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	completed := false
	for scanner.Scan() {
		if tok != nil {
			if err := tok.Check(); err != nil {
				return err
			}
		}

		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		var event generateResponse
		if err := json.Unmarshal(line, &event); err != nil {
			g.log.Warn().Err(err).Msg("skipping malformed stream line")
			continue
		}

		if event.Response != "" {
			if err := fn(event.Response, false); err != nil {
				return err
			}
		}
		if event.Done {
			completed = true
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return g.classify(tok, err)
	}
	if !completed {
		return domain.NewError(domain.CodeMalformedStream,
			"stream ended without completion marker",
			map[string]any{"model": g.model})
	}

	return fn("", true)
}

// CheckConnection reports whether the Ollama server responds.
func (g *OllamaGenerator) CheckConnection() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// ModelAvailable reports whether the named model is installed on the server.
func (g *OllamaGenerator) ModelAvailable(name string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false
	}

	var body struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false
	}
	for _, m := range body.Models {
		if m.Name == name || m.Name == name+":latest" {
			return true
		}
	}
	return false
}

func (g *OllamaGenerator) post(ctx context.Context, reqBody generateRequest) (*http.Response, error) {
	data, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/api/generate", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return g.client.Do(req)
}

// watchToken cancels ctx when the token is cancelled.
func (g *OllamaGenerator) watchToken(ctx context.Context, tok *task.Token) context.Context {
	if tok == nil {
		return ctx
	}
	wrapped, cancel := context.WithCancel(ctx)
	go func() {
		select {
		case <-tok.Done():
			cancel()
		case <-wrapped.Done():
		}
	}()
	return wrapped
}

// classify maps transport errors onto domain codes: cancellation wins, then
// deadline expiry, then general unavailability.
func (g *OllamaGenerator) classify(tok *task.Token, err error) error {
	if tok != nil && tok.Cancelled() {
		return tok.Check()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.WrapError(domain.CodeLLMTimeout,
			"generation timed out for model "+g.model, err)
	}
	return domain.WrapError(domain.CodeLLMUnavailable,
		"cannot reach language model "+g.model, err)
}
