// Package decoding holds the validated bundle of LLM sampling parameters
// passed to the chat API client (spec.md §3 DecodingConfig, §4.9).
package decoding

import (
	"encoding/json"

	"github.com/mwiater/agon-mcp/internal/agonerr"
)

const (
	defaultModel            = "deepseek-chat"
	defaultTemperature      = 1.0
	defaultTopP             = 1.0
	defaultMaxTokens        = 4096
	defaultFrequencyPenalty = 0.0
	defaultPresencePenalty  = 0.0
)

// Config is a validated bundle of sampling parameters. The zero value is not
// valid on its own — use Default() or a literal with explicit fields, and always
// call Validate before using a Config built by hand.
type Config struct {
	Model            string
	Temperature      float64
	TopP             float64
	MaxTokens        int
	FrequencyPenalty float64
	PresencePenalty  float64
	Stop             []string
	Logprobs         bool
	TopLogprobs      *int
}

// Default returns the spec.md §3 default Config.
func Default() Config {
	return Config{
		Model:            defaultModel,
		Temperature:      defaultTemperature,
		TopP:             defaultTopP,
		MaxTokens:        defaultMaxTokens,
		FrequencyPenalty: defaultFrequencyPenalty,
		PresencePenalty:  defaultPresencePenalty,
	}
}

// Validate checks every field's range per spec.md §3, failing with an
// invalid-argument error on the first violation.
func (c Config) Validate() error {
	if c.Model == "" {
		return agonerr.New(agonerr.InvalidArgument, "model must not be empty", nil)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return agonerr.Newf(agonerr.InvalidArgument, nil, "temperature %v out of range [0,2]", c.Temperature)
	}
	if c.TopP < 0 || c.TopP > 1 {
		return agonerr.Newf(agonerr.InvalidArgument, nil, "top_p %v out of range [0,1]", c.TopP)
	}
	if c.MaxTokens < 1 || c.MaxTokens > 8192 {
		return agonerr.Newf(agonerr.InvalidArgument, nil, "max_tokens %d out of range [1,8192]", c.MaxTokens)
	}
	if c.FrequencyPenalty < -2 || c.FrequencyPenalty > 2 {
		return agonerr.Newf(agonerr.InvalidArgument, nil, "frequency_penalty %v out of range [-2,2]", c.FrequencyPenalty)
	}
	if c.PresencePenalty < -2 || c.PresencePenalty > 2 {
		return agonerr.Newf(agonerr.InvalidArgument, nil, "presence_penalty %v out of range [-2,2]", c.PresencePenalty)
	}
	if c.TopLogprobs != nil && (*c.TopLogprobs < 0 || *c.TopLogprobs > 20) {
		return agonerr.Newf(agonerr.InvalidArgument, nil, "top_logprobs %d out of range [0,20]", *c.TopLogprobs)
	}
	return nil
}

// Override carries the zero-or-more fields to overlay onto a Config via
// CopyWith. A nil pointer field means "leave unchanged".
type Override struct {
	Model            *string
	Temperature      *float64
	TopP             *float64
	MaxTokens        *int
	FrequencyPenalty *float64
	PresencePenalty  *float64
	Stop             []string
	Logprobs         *bool
	TopLogprobs      *int
}

// CopyWith returns a new Config with any non-nil Override fields applied,
// preserving every unspecified field (spec.md §4.9, P8).
func (c Config) CopyWith(o Override) Config {
	next := c
	if o.Model != nil {
		next.Model = *o.Model
	}
	if o.Temperature != nil {
		next.Temperature = *o.Temperature
	}
	if o.TopP != nil {
		next.TopP = *o.TopP
	}
	if o.MaxTokens != nil {
		next.MaxTokens = *o.MaxTokens
	}
	if o.FrequencyPenalty != nil {
		next.FrequencyPenalty = *o.FrequencyPenalty
	}
	if o.PresencePenalty != nil {
		next.PresencePenalty = *o.PresencePenalty
	}
	if o.Stop != nil {
		next.Stop = o.Stop
	}
	if o.Logprobs != nil {
		next.Logprobs = *o.Logprobs
	}
	if o.TopLogprobs != nil {
		next.TopLogprobs = o.TopLogprobs
	}
	return next
}

// wireConfig mirrors Config's snake_case wire form (spec.md §4.9): Stop and
// TopLogprobs are omitted when unset, Logprobs is always emitted.
type wireConfig struct {
	Model            string   `json:"model"`
	Temperature      float64  `json:"temperature"`
	TopP             float64  `json:"top_p"`
	MaxTokens        int      `json:"max_tokens"`
	FrequencyPenalty float64  `json:"frequency_penalty"`
	PresencePenalty  float64  `json:"presence_penalty"`
	Stop             []string `json:"stop,omitempty"`
	Logprobs         bool     `json:"logprobs"`
	TopLogprobs      *int     `json:"top_logprobs,omitempty"`
}

// MarshalJSON implements the snake_case wire form required by spec.md §4.9.
func (c Config) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireConfig{
		Model:            c.Model,
		Temperature:      c.Temperature,
		TopP:             c.TopP,
		MaxTokens:        c.MaxTokens,
		FrequencyPenalty: c.FrequencyPenalty,
		PresencePenalty:  c.PresencePenalty,
		Stop:             c.Stop,
		Logprobs:         c.Logprobs,
		TopLogprobs:      c.TopLogprobs,
	})
}
