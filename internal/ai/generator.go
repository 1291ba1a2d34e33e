// Package ai adapts an external generative model into the performance
// analysis and per-question explanations shown on the results screen.
package ai

import (
	"context"
	"fmt"

	"github.com/stemsi/exstem-mock/internal/config"
)

// Prompt is one request to a text generator.
type Prompt struct {
	Text string
	// JSON asks the generator for a JSON object in the performance analysis shape.
	JSON bool
}

// Generator is the black-box AI collaborator.
type Generator interface {
	Generate(ctx context.Context, p Prompt) (string, error)
}

// NewGenerator builds the configured generator. It returns a nil Generator
// when no API key is configured, which puts the Analyzer in offline mode.
func NewGenerator(ctx context.Context, cfg *config.Config) (Generator, error) {
	if cfg.AIAPIKey == "" {
		return nil, nil
	}

	switch cfg.AIProvider {
	case "gemini", "":
		g, err := NewGeminiGenerator(ctx, cfg.AIAPIKey, cfg.AIModel)
		if err != nil {
			return nil, err
		}
		return g, nil
	case "openai":
		return NewOpenAIGenerator(cfg.AIBaseURL, cfg.AIAPIKey, cfg.AIModel, cfg.AITimeout), nil
	default:
		return nil, fmt.Errorf("unknown AI provider %q", cfg.AIProvider)
	}
}
