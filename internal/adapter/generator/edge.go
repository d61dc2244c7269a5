package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// EdgeFunctionGenerator posts the feedback input to a hosted function that
// owns the model call and returns the feedback object.
type EdgeFunctionGenerator struct {
	url        string
	apiKey     string
	httpClient *http.Client
}

// NewEdgeFunctionGenerator creates an edge_function-mode generator.
func NewEdgeFunctionGenerator(url, apiKey string, timeout time.Duration) *EdgeFunctionGenerator {
	return &EdgeFunctionGenerator{
		url:        url,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Ensure EdgeFunctionGenerator implements Generator interface.
var _ Generator = (*EdgeFunctionGenerator)(nil)

func (g *EdgeFunctionGenerator) Name() string { return "edge_function" }

// Generate sends the input as JSON and decodes the reply.
func (g *EdgeFunctionGenerator) Generate(ctx context.Context, in Input) (*Output, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call edge function: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("edge function error [%d]: %s", resp.StatusCode, string(respBody))
	}
	return parseOutput(string(respBody))
}
