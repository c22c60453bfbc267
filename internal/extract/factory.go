package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wiboteam/wibo-ai-agent/internal/openai"
)

// NewExtractor builds the extraction strategy for the configured mode.
// "auto" chains the rule pre-filter with the model fallback when a model
// client is available, rules only otherwise.
func NewExtractor(mode string, client *openai.Client, loc *time.Location) (Extractor, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", "auto":
		if client == nil {
			return Chain{NewRuleExtractor(loc)}, nil
		}
		return Chain{NewRuleExtractor(loc), NewModelExtractor(client, loc)}, nil
	case "rules":
		return NewRuleExtractor(loc), nil
	case "model":
		if client == nil {
			return nil, errors.New("EXTRACTOR_MODE=model requires OPENAI_API_KEY")
		}
		return NewModelExtractor(client, loc), nil
	case "mock":
		return Func(func(context.Context, string, time.Time) (Result, error) {
			return Result{}, nil
		}), nil
	default:
		return nil, fmt.Errorf("unsupported extractor mode %q", mode)
	}
}
