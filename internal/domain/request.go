package domain

// AssignmentResponse is returned for today's assignment.
type AssignmentResponse struct {
	Status     string      `json:"status"` // assigned, empty
	Date       Day         `json:"date"`
	Assignment *Assignment `json:"assignment"`
}

// ReflectionRequest selects a reflection option.
type ReflectionRequest struct {
	Option string `json:"option"`
}

// ClassifyRequest asks for a standalone crisis classification.
type ClassifyRequest struct {
	Text string `json:"text"`
}

// FlowResponse wraps a flow snapshot, optionally with a non-fatal error.
type FlowResponse struct {
	Flow  FlowSnapshot `json:"flow"`
	Error *APIError    `json:"error,omitempty"`
}

// RecordingListResponse lists a user's recording history.
type RecordingListResponse struct {
	Recordings []RecordingEntry `json:"recordings"`
}

// APIError is the error body of every failed request.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
}

// ErrorResponse is the JSON envelope for API errors.
type ErrorResponse struct {
	Error APIError `json:"error"`
}
