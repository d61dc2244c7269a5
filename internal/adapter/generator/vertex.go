package generator

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// VertexGenerator asks Gemini on Vertex AI for the feedback object.
type VertexGenerator struct {
	client    *genai.Client
	modelName string
}

// NewVertexGenerator creates a Vertex AI client for project and location.
func NewVertexGenerator(ctx context.Context, project, location, model string) (*VertexGenerator, error) {
	if project == "" || location == "" {
		return nil, fmt.Errorf("vertex generator needs a project and a location")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  project,
		Location: location,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating Vertex AI client: %w", err)
	}
	return &VertexGenerator{client: client, modelName: model}, nil
}

// Ensure VertexGenerator implements Generator interface.
var _ Generator = (*VertexGenerator)(nil)

func (v *VertexGenerator) Name() string { return "vertex" }

// Generate requests a JSON response and decodes it.
func (v *VertexGenerator) Generate(ctx context.Context, in Input) (*Output, error) {
	temp := float32(0.7)
	topP := float32(0.9)
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(strings.TrimSpace(systemPrompt), genai.RoleUser),
		Temperature:       &temp,
		TopP:              &topP,
		MaxOutputTokens:   int32(1024),
		ResponseMIMEType:  "application/json",
	}
	contents := []*genai.Content{genai.NewContentFromText(buildUserPrompt(in), genai.RoleUser)}

	res, err := v.client.Models.GenerateContent(ctx, v.modelName, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("vertex generate content: %w", err)
	}
	text := res.Text()
	if text == "" {
		return nil, fmt.Errorf("vertex returned empty text")
	}
	return parseOutput(text)
}
