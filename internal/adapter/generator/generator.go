// Package generator provides the interchangeable feedback generator backends.
package generator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xiaot623/dailymission/internal/domain"
)

// Generator produces three-part feedback for a recording.
type Generator interface {
	// Generate returns feedback for one recording. Errors are retryable.
	Generate(ctx context.Context, in Input) (*Output, error)

	// Name identifies the backend in logs and stored feedback.
	Name() string
}

// Input is what a generator sees of the mission and the user's text.
type Input struct {
	MissionText string             `json:"missionText"`
	MissionType domain.MissionType `json:"missionType"`
	MeaningText string             `json:"meaningText"`
	UserText    string             `json:"textContent"`
}

// Output is the empathy, discovery and hint triple.
type Output struct {
	Empathy   string `json:"empathy" yaml:"empathy"`
	Discovery string `json:"discovery" yaml:"discovery"`
	Hint      string `json:"hint" yaml:"hint"`
}

// ErrIncompleteOutput is returned when a backend omits a feedback part.
var ErrIncompleteOutput = errors.New("feedback output is missing a part")

// Validate checks that every part is present.
func (o *Output) Validate() error {
	if o == nil || strings.TrimSpace(o.Empathy) == "" || strings.TrimSpace(o.Discovery) == "" || strings.TrimSpace(o.Hint) == "" {
		return ErrIncompleteOutput
	}
	return nil
}

// parseOutput decodes a JSON feedback object, tolerating markdown code fences
// around it.
func parseOutput(raw string) (*Output, error) {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}
	if start, end := strings.Index(s, "{"), strings.LastIndex(s, "}"); start >= 0 && end > start {
		s = s[start : end+1]
	}
	var out Output
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, fmt.Errorf("decode feedback json: %w", err)
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return &out, nil
}
