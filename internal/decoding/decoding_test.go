package decoding

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/mwiater/agon-mcp/internal/agonerr"
)

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}
}

func TestValidateBoundaries(t *testing.T) {
	top := 20
	c := Config{
		Model:            "deepseek-chat",
		Temperature:      2,
		TopP:             1,
		MaxTokens:        8192,
		FrequencyPenalty: -2,
		PresencePenalty:  2,
		TopLogprobs:      &top,
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("boundary values should validate, got %v", err)
	}

	bad := c
	bad.Temperature = 2.0001
	if err := bad.Validate(); !agonerr.Is(err, agonerr.InvalidArgument) {
		t.Fatalf("expected invalid-argument for temperature just above bound, got %v", err)
	}

	bad = c
	bad.MaxTokens = 8193
	if err := bad.Validate(); !agonerr.Is(err, agonerr.InvalidArgument) {
		t.Fatalf("expected invalid-argument for max_tokens just above bound, got %v", err)
	}

	bad = c
	outOfRange := 21
	bad.TopLogprobs = &outOfRange
	if err := bad.Validate(); !agonerr.Is(err, agonerr.InvalidArgument) {
		t.Fatalf("expected invalid-argument for top_logprobs just above bound, got %v", err)
	}
}

func TestCopyWithPreservesUnspecifiedFields(t *testing.T) {
	base := Default()
	temp := 0.5
	next := base.CopyWith(Override{Temperature: &temp})

	if next.Temperature != 0.5 {
		t.Fatalf("expected temperature overridden to 0.5, got %v", next.Temperature)
	}
	if next.Model != base.Model {
		t.Fatalf("expected model preserved, got %q", next.Model)
	}
	if next.MaxTokens != base.MaxTokens {
		t.Fatalf("expected max_tokens preserved, got %d", next.MaxTokens)
	}
}

func TestMarshalJSONOmitsUnsetOptionalFields(t *testing.T) {
	data, err := json.Marshal(Default())
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	s := string(data)
	if strings.Contains(s, "top_logprobs") {
		t.Fatalf("expected top_logprobs omitted when unset, got %s", s)
	}
	if strings.Contains(s, `"stop"`) {
		t.Fatalf("expected stop omitted when unset, got %s", s)
	}
	if !strings.Contains(s, `"logprobs":false`) {
		t.Fatalf("expected logprobs always emitted, got %s", s)
	}
}
