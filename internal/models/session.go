package models

import (
	"time"

	"github.com/google/uuid"
)

// Document is the text extracted from one uploaded PDF.
type Document struct {
	Filename      string    `json:"filename"`
	Text          string    `json:"-"`
	CharCount     int       `json:"char_count"`
	PageCount     int       `json:"page_count"`
	TokenEstimate int       `json:"token_estimate"`
	LoadedAt      time.Time `json:"loaded_at"`
}

// Turn is one completed question/answer exchange.
type Turn struct {
	Question string    `json:"question"`
	Answer   string    `json:"answer"`
	AskedAt  time.Time `json:"asked_at"`
}

// Session holds everything a single user interaction needs between
// requests. History is only non-empty while a Document is loaded.
type Session struct {
	ID           uuid.UUID `json:"id"`
	Document     *Document `json:"document"`
	History      []Turn    `json:"history"`
	Credential   string    `json:"-"`
	LastFilename string    `json:"last_filename,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func NewSession() *Session {
	now := time.Now()
	return &Session{
		ID:        uuid.New(),
		History:   []Turn{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NeedsExtraction reports whether an upload named filename has to be
// extracted, i.e. nothing is loaded or a different file was loaded last.
func (s *Session) NeedsExtraction(filename string) bool {
	return s.Document == nil || s.LastFilename != filename
}

// LoadDocument replaces the current document wholesale and resets history.
func (s *Session) LoadDocument(doc Document) {
	s.Document = &doc
	s.LastFilename = doc.Filename
	s.History = []Turn{}
	s.touch()
}

// ClearHistory empties the history and leaves the document in place.
func (s *Session) ClearHistory() {
	s.History = []Turn{}
	s.touch()
}

// ClearDocument drops the document together with its history.
func (s *Session) ClearDocument() {
	s.Document = nil
	s.LastFilename = ""
	s.History = []Turn{}
	s.touch()
}

func (s *Session) AppendTurn(t Turn) {
	s.History = append(s.History, t)
	s.touch()
}

func (s *Session) HasDocument() bool {
	return s.Document != nil
}

func (s *Session) DocumentText() string {
	if s.Document == nil {
		return ""
	}
	return s.Document.Text
}

// Clone returns a deep copy safe to mutate outside the repository.
func (s *Session) Clone() *Session {
	c := *s
	if s.Document != nil {
		doc := *s.Document
		c.Document = &doc
	}
	c.History = make([]Turn, len(s.History))
	copy(c.History, s.History)
	return &c
}

func (s *Session) touch() {
	s.UpdatedAt = time.Now()
}

// SessionView is the public representation returned by the API.
type SessionView struct {
	ID            uuid.UUID `json:"id"`
	Document      *Document `json:"document"`
	History       []Turn    `json:"history"`
	HasCredential bool      `json:"has_credential"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (s *Session) View() SessionView {
	return SessionView{
		ID:            s.ID,
		Document:      s.Document,
		History:       s.History,
		HasCredential: s.Credential != "",
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
	}
}

// DocumentLoadedResponse confirms a successful (or skipped) upload.
type DocumentLoadedResponse struct {
	Document  Document `json:"document"`
	Extracted bool     `json:"extracted"`
	Message   string   `json:"message"`
}
