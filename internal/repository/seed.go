package repository

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"github.com/xiaot623/dailymission/internal/domain"
)

//go:embed seed/demo_content.json
var demoContent []byte

// SeedMission is a mission entry of the validated content file.
type SeedMission struct {
	MissionID   string `json:"mission_id"`
	MissionType string `json:"mission_type"`
	MissionText string `json:"mission_text"`
	MeaningText string `json:"meaning_text"`
	SourceDOI   string `json:"source_doi"`
	SourceTitle string `json:"source_title"`
	Category    string `json:"category"`
	SafetyLevel string `json:"safety_level"`
}

// SeedQuestion is a question entry of the validated content file.
type SeedQuestion struct {
	QuestionID   string   `json:"question_id"`
	QuestionText string   `json:"question_text"`
	Options      []string `json:"options"`
	SourceDOI    string   `json:"source_doi"`
	SourceTitle  string   `json:"source_title"`
	Category     string   `json:"category"`
}

// SeedFile is the validated content document.
type SeedFile struct {
	ValidatedContent struct {
		Missions struct {
			Observe []SeedMission `json:"observe"`
			Explore []SeedMission `json:"explore"`
		} `json:"missions"`
		Questions []SeedQuestion `json:"questions"`
	} `json:"validated_content"`
}

// SeedResult counts what a seed run wrote.
type SeedResult struct {
	Missions  int
	Questions int
}

// LoadSeedFile reads a validated content document from disk.
func LoadSeedFile(path string) (*SeedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return ParseSeed(data)
}

// DemoSeed returns the embedded demo catalog.
func DemoSeed() (*SeedFile, error) {
	return ParseSeed(demoContent)
}

// ParseSeed decodes a validated content document.
func ParseSeed(data []byte) (*SeedFile, error) {
	var f SeedFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	return &f, nil
}

// Seed upserts every mission and question of f by catalog key.
func Seed(ctx context.Context, catalog Catalog, f *SeedFile) (SeedResult, error) {
	var res SeedResult
	missions := append(append([]SeedMission{}, f.ValidatedContent.Missions.Observe...), f.ValidatedContent.Missions.Explore...)
	for _, sm := range missions {
		m := &domain.Mission{
			Key:         sm.MissionID,
			Type:        domain.MissionType(sm.MissionType),
			Text:        sm.MissionText,
			MeaningText: sm.MeaningText,
			Category:    sm.Category,
			SourceDOI:   sm.SourceDOI,
			SourceTitle: sm.SourceTitle,
			SafetyLevel: sm.SafetyLevel,
		}
		if m.Key == "" || m.Text == "" {
			return res, fmt.Errorf("seed mission %d: key and text are required", res.Missions)
		}
		if err := catalog.UpsertMission(ctx, m); err != nil {
			return res, fmt.Errorf("seed mission %s: %w", sm.MissionID, err)
		}
		res.Missions++
	}
	for _, sq := range f.ValidatedContent.Questions {
		q := &domain.Question{
			Key:         sq.QuestionID,
			Text:        sq.QuestionText,
			Options:     sq.Options,
			SourceDOI:   sq.SourceDOI,
			SourceTitle: sq.SourceTitle,
			Category:    sq.Category,
		}
		if q.Key == "" || q.Text == "" {
			return res, fmt.Errorf("seed question %d: key and text are required", res.Questions)
		}
		if err := catalog.UpsertQuestion(ctx, q); err != nil {
			return res, fmt.Errorf("seed question %s: %w", sq.QuestionID, err)
		}
		res.Questions++
	}
	return res, nil
}
