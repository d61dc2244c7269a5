// Package domain defines the core domain models for the daily mission service.
package domain

// MissionType is the kind of daily mission.
type MissionType string

const (
	MissionTypeObserve MissionType = "observe"
	MissionTypeExplore MissionType = "explore"
)

// Valid reports whether t is a known mission type.
func (t MissionType) Valid() bool {
	return t == MissionTypeObserve || t == MissionTypeExplore
}

// Opposite returns the other mission type. Unknown types map to observe.
func (t MissionType) Opposite() MissionType {
	if t == MissionTypeObserve {
		return MissionTypeExplore
	}
	return MissionTypeObserve
}

// CrisisLevel is the safety tier of a piece of user text.
type CrisisLevel int

const (
	CrisisLevelBaseline CrisisLevel = 1
	CrisisLevelElevated CrisisLevel = 2
	CrisisLevelCritical CrisisLevel = 3
)

// CrisisAction is the response the client must take for a crisis level.
type CrisisAction string

const (
	CrisisActionEmpathyOnly      CrisisAction = "empathy_only"
	CrisisActionSuggestSupport   CrisisAction = "suggest_support"
	CrisisActionShowCrisisScreen CrisisAction = "show_crisis_screen"
)

// FlowStep is a state of the record flow.
type FlowStep string

const (
	FlowStepIdle       FlowStep = "idle"
	FlowStepRecording  FlowStep = "recording"
	FlowStepReflection FlowStep = "reflection"
	FlowStepFeedback   FlowStep = "feedback"
	FlowStepCrisis     FlowStep = "crisis"
	FlowStepDone       FlowStep = "done"
)

// FlowEventType is the event that drives a record flow transition.
type FlowEventType string

const (
	FlowEventEnter            FlowEventType = "enter"
	FlowEventStart            FlowEventType = "start"
	FlowEventSubmitCapture    FlowEventType = "submit_capture"
	FlowEventSubmitReflection FlowEventType = "submit_reflection"
	FlowEventFeedbackReady    FlowEventType = "feedback_ready"
	FlowEventCrisisDetected   FlowEventType = "crisis_detected"
	FlowEventRetryFeedback    FlowEventType = "retry_feedback"
	FlowEventAcknowledge      FlowEventType = "acknowledge"
)
