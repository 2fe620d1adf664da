package models

import "github.com/google/uuid"

// WebSocket message types
const (
	EventRateLimitWarning = "rate_limit_warning"
	EventDocumentLoaded   = "document_loaded"
	EventDocumentCleared  = "document_cleared"
	EventHistoryCleared   = "history_cleared"
	EventAnswerReady      = "answer_ready"
)

type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type RateLimitWarning struct {
	SessionID   uuid.UUID `json:"session_id"`
	Attempt     int       `json:"attempt"`
	MaxAttempts int       `json:"max_attempts"`
	WaitSeconds int       `json:"wait_seconds"`
	Message     string    `json:"message"`
}

type DocumentLoadedEvent struct {
	SessionID uuid.UUID `json:"session_id"`
	Filename  string    `json:"filename"`
	CharCount int       `json:"char_count"`
}

type AnswerReadyEvent struct {
	SessionID     uuid.UUID `json:"session_id"`
	Outcome       Outcome   `json:"outcome"`
	HistoryLength int       `json:"history_length"`
}

type SessionEvent struct {
	SessionID uuid.UUID `json:"session_id"`
}

// API Error response
type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}
