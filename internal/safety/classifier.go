// Package safety classifies user text into crisis tiers by keyword.
package safety

import (
	"strings"
	"unicode"

	"github.com/xiaot623/dailymission/internal/domain"
)

type compiledTier struct {
	level    domain.CrisisLevel
	action   domain.CrisisAction
	keywords []string // normalized
	original []string
}

// Classifier is immutable after construction and safe for concurrent use.
type Classifier struct {
	tiers     []compiledTier
	baseline  domain.CrisisAction
	helplines []domain.Helpline
}

// NewClassifier compiles rules. Keywords are normalized the same way as input.
func NewClassifier(rules *Rules) *Classifier {
	c := &Classifier{
		baseline:  domain.CrisisActionEmpathyOnly,
		helplines: append([]domain.Helpline(nil), rules.Helplines...),
	}
	for _, t := range rules.sortedTiers() {
		ct := compiledTier{level: t.Level, action: t.Action}
		for _, kw := range t.Keywords {
			n := Normalize(kw)
			if n == "" {
				continue
			}
			ct.keywords = append(ct.keywords, n)
			ct.original = append(ct.original, kw)
		}
		if t.Level == domain.CrisisLevelBaseline {
			c.baseline = t.Action
		}
		c.tiers = append(c.tiers, ct)
	}
	return c
}

// Normalize strips every whitespace rune, including U+FEFF, and lower cases
// the rest.
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if isSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

func isSpace(r rune) bool {
	return unicode.IsSpace(r) || r == '\ufeff'
}

// Classify returns the most severe tier whose keyword occurs in text.
// Text matching nothing is baseline with no keyword.
func (c *Classifier) Classify(text string) domain.CrisisResult {
	normalized := Normalize(text)
	if normalized != "" {
		for _, t := range c.tiers {
			for i, kw := range t.keywords {
				if strings.Contains(normalized, kw) {
					return c.result(t.level, t.action, t.original[i])
				}
			}
		}
	}
	return c.result(domain.CrisisLevelBaseline, c.baseline, "")
}

// HasCritical reports whether text reaches the critical tier.
func (c *Classifier) HasCritical(text string) bool {
	return c.Classify(text).Level == domain.CrisisLevelCritical
}

// Helplines returns a copy of the configured helpline directory.
func (c *Classifier) Helplines() []domain.Helpline {
	return append([]domain.Helpline(nil), c.helplines...)
}

func (c *Classifier) result(level domain.CrisisLevel, action domain.CrisisAction, keyword string) domain.CrisisResult {
	res := domain.CrisisResult{
		Detected:       level == domain.CrisisLevelCritical,
		Level:          level,
		Action:         action,
		MatchedKeyword: keyword,
	}
	if res.Detected {
		res.Helplines = c.Helplines()
	}
	return res
}
