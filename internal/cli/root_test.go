package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"localkb/config"
)

func TestGenerateOptionsFromConfig(t *testing.T) {
	prev := cfg
	defer func() { cfg = prev }()

	cfg = config.DefaultConfig()
	opts := generateOptions()
	assert.Equal(t, cfg.LLM.Temperature, opts.Temperature)
	assert.Equal(t, cfg.LLM.TopP, opts.TopP)
	assert.Equal(t, cfg.LLM.TopK, opts.TopK)
	assert.Equal(t, cfg.LLM.MaxTokens, opts.MaxTokens)
	assert.Equal(t, cfg.LLM.Stop, opts.Stop)
}

func TestGenerateOptionsHonorsExplicitZeroTemperature(t *testing.T) {
	prev := cfg
	defer func() { cfg = prev }()

	cfg = config.DefaultConfig()
	cfg.LLM.Temperature = 0

	opts := generateOptions()
	assert.Equal(t, float64(0), opts.Temperature,
		"a configured temperature of 0 is valid and must not be replaced by the default")
}
