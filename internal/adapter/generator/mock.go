package generator

import (
	"context"
	_ "embed"
	"fmt"
	"math/rand/v2"
	"time"
	"unicode/utf8"

	"github.com/xiaot623/dailymission/internal/domain"
	"gopkg.in/yaml.v3"
)

//go:embed templates.yaml
var templateData []byte

type templateSet struct {
	Observe    []Output `yaml:"observe"`
	Explore    []Output `yaml:"explore"`
	Supportive struct {
		Observe []Output `yaml:"observe"`
		Explore []Output `yaml:"explore"`
	} `yaml:"supportive"`
}

// MockGenerator answers from canned templates. It never fails unless ctx is
// done during the artificial delay.
type MockGenerator struct {
	templates  templateSet
	delay      time.Duration
	supportive func(text string) bool
	intn       func(n int) int
}

// MockOption customizes a MockGenerator.
type MockOption func(*MockGenerator)

// WithDelay adds an artificial latency to every call.
func WithDelay(d time.Duration) MockOption {
	return func(m *MockGenerator) { m.delay = d }
}

// WithSupportiveCheck selects the supportive templates when check(text) is true.
func WithSupportiveCheck(check func(text string) bool) MockOption {
	return func(m *MockGenerator) { m.supportive = check }
}

// WithPicker replaces the random index picker.
func WithPicker(intn func(n int) int) MockOption {
	return func(m *MockGenerator) { m.intn = intn }
}

// NewMockGenerator loads the embedded templates.
func NewMockGenerator(opts ...MockOption) (*MockGenerator, error) {
	m := &MockGenerator{
		supportive: func(string) bool { return false },
		intn:       rand.IntN,
	}
	if err := yaml.Unmarshal(templateData, &m.templates); err != nil {
		return nil, fmt.Errorf("parse feedback templates: %w", err)
	}
	if len(m.templates.Observe) == 0 || len(m.templates.Explore) == 0 ||
		len(m.templates.Supportive.Observe) == 0 || len(m.templates.Supportive.Explore) == 0 {
		return nil, fmt.Errorf("feedback templates: every set needs at least one entry")
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Ensure MockGenerator implements Generator interface.
var _ Generator = (*MockGenerator)(nil)

func (m *MockGenerator) Name() string { return "mock" }

// Generate picks a template by mission type, distress and text length.
func (m *MockGenerator) Generate(ctx context.Context, in Input) (*Output, error) {
	if m.delay > 0 {
		timer := time.NewTimer(m.delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	if m.supportive(in.UserText) {
		set := m.templates.Supportive.Observe
		if in.MissionType == domain.MissionTypeExplore {
			set = m.templates.Supportive.Explore
		}
		out := set[m.intn(len(set))]
		return &out, nil
	}

	set := m.templates.Observe
	if in.MissionType == domain.MissionTypeExplore {
		set = m.templates.Explore
	}
	out := set[m.pickIndex(utf8.RuneCountInString(in.UserText), len(set))]
	return &out, nil
}

// pickIndex favours the first templates for short text, the middle ones for
// medium text and any template for long text.
func (m *MockGenerator) pickIndex(textLen, n int) int {
	var idx int
	switch {
	case textLen < 50:
		idx = m.intn(2)
	case textLen < 150:
		idx = 2 + m.intn(2)
	default:
		idx = m.intn(n)
	}
	return idx % n
}
