package domain

import "time"

// Mission is a catalog entry describing one daily task.
type Mission struct {
	ID          int64       `json:"id"`
	Key         string      `json:"key"`
	Type        MissionType `json:"type"`
	Text        string      `json:"text"`
	MeaningText string      `json:"meaning_text"`
	Category    string      `json:"category"`
	SourceDOI   string      `json:"source_doi,omitempty"`
	SourceTitle string      `json:"source_title,omitempty"`
	SafetyLevel string      `json:"safety_level,omitempty"`
}

// Question is a reflection prompt with a fixed option list.
type Question struct {
	ID          int64    `json:"id"`
	Key         string   `json:"key"`
	Text        string   `json:"text"`
	Options     []string `json:"options"`
	SourceDOI   string   `json:"source_doi,omitempty"`
	SourceTitle string   `json:"source_title,omitempty"`
	Category    string   `json:"category,omitempty"`
}

// HasOption reports whether option is one of the question's choices.
func (q *Question) HasOption(option string) bool {
	for _, o := range q.Options {
		if o == option {
			return true
		}
	}
	return false
}

// Assignment binds one mission to a user for one day.
type Assignment struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Mission     Mission    `json:"mission"`
	Date        Day        `json:"date"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}
