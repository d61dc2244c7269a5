package domain

// Transition is the input evaluated by the flow guard policy.
type Transition struct {
	From                FlowStep      `json:"from"`
	Event               FlowEventType `json:"event"`
	AssignmentPresent   bool          `json:"assignment_present"`
	AssignmentCompleted bool          `json:"assignment_completed"`
	CapturePresent      bool          `json:"capture_present"`
	RecordingSaved      bool          `json:"recording_saved"`
	QuestionLoaded      bool          `json:"question_loaded"`
	OptionSelected      bool          `json:"option_selected"`
	FeedbackLoading     bool          `json:"feedback_loading"`
	FeedbackPresent     bool          `json:"feedback_present"`
}

// Capture is the user's unsaved recording input.
type Capture struct {
	Photo            []byte
	PhotoContentType string
	Text             string
}

// HasContent reports whether the capture carries a photo or non-empty text.
func (c Capture) HasContent() bool {
	return len(c.Photo) > 0 || c.Text != ""
}

// FlowSnapshot is a read-only view of a flow session.
type FlowSnapshot struct {
	SessionID     string              `json:"session_id"`
	UserID        string              `json:"user_id"`
	Step          FlowStep            `json:"step"`
	Loading       bool                `json:"loading"`
	Assignment    *Assignment         `json:"assignment,omitempty"`
	Recording     *Recording          `json:"recording,omitempty"`
	Question      *Question           `json:"question,omitempty"`
	Reflection    *ReflectionResponse `json:"reflection,omitempty"`
	Crisis        *CrisisResult       `json:"crisis,omitempty"`
	Feedback      *FeedbackResult     `json:"feedback,omitempty"`
	DraftText     string              `json:"draft_text,omitempty"`
	HasDraftPhoto bool                `json:"has_draft_photo,omitempty"`
}
