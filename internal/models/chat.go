package models

// Roles used when replaying history to the model.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// ChatMessage is one role-tagged entry of the conversation sent to the model.
type ChatMessage struct {
	Role    string `json:"role"` // "user" or "model"
	Content string `json:"content"`
}

// Outcome classifies how an exchange ended.
type Outcome string

const (
	OutcomeAnswered    Outcome = "answered"
	OutcomeRateLimited Outcome = "rate_limited"
	OutcomeFailed      Outcome = "failed"
)

// Reply is what the conversation driver hands back for one question.
// Answer always holds displayable text: the model's answer or a notice.
type Reply struct {
	Answer   string   `json:"answer"`
	Outcome  Outcome  `json:"outcome"`
	Attempts int      `json:"attempts"`
	Warnings []string `json:"warnings,omitempty"`
}

// Answered reports whether the reply carries a real model answer.
func (r Reply) Answered() bool {
	return r.Outcome == OutcomeAnswered
}

// AskRequest is the payload sent to the ask endpoint.
type AskRequest struct {
	Question string `json:"question"`
}

// AskResponse is returned by the ask endpoint.
type AskResponse struct {
	Reply
	HistoryLength int `json:"history_length"`
}

type SetCredentialRequest struct {
	APIKey string `json:"api_key"`
}
