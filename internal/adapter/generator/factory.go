package generator

import (
	"context"
	"fmt"

	"github.com/xiaot623/dailymission/internal/config"
	"github.com/xiaot623/dailymission/internal/logger"
)

// New creates the generator selected by cfg.FeedbackMode. supportive is the
// distress check the mock backend uses to pick its supportive templates.
func New(ctx context.Context, cfg *config.Config, supportive func(text string) bool, log *logger.Logger) (Generator, error) {
	switch cfg.FeedbackMode {
	case config.FeedbackModeMock, "":
		log.Info("using mock feedback generator", "delay", cfg.MockFeedbackDelay.String())
		opts := []MockOption{WithDelay(cfg.MockFeedbackDelay)}
		if supportive != nil {
			opts = append(opts, WithSupportiveCheck(supportive))
		}
		m, err := NewMockGenerator(opts...)
		if err != nil {
			return nil, err
		}
		return m, nil
	case config.FeedbackModeDirect:
		log.Info("using direct feedback generator", "base_url", cfg.LLMBaseURL, "model", cfg.LLMModel)
		return NewChatGenerator(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel, cfg.LLMTimeout), nil
	case config.FeedbackModeEdgeFunction:
		log.Info("using edge function feedback generator", "url", cfg.EdgeFunctionURL)
		return NewEdgeFunctionGenerator(cfg.EdgeFunctionURL, cfg.EdgeFunctionKey, cfg.LLMTimeout), nil
	case config.FeedbackModeVertex:
		log.Info("using vertex feedback generator", "project", cfg.GCPProject, "location", cfg.GCPLocation, "model", cfg.VertexModel)
		v, err := NewVertexGenerator(ctx, cfg.GCPProject, cfg.GCPLocation, cfg.VertexModel)
		if err != nil {
			return nil, err
		}
		return v, nil
	default:
		return nil, fmt.Errorf("unknown feedback mode %q", cfg.FeedbackMode)
	}
}
