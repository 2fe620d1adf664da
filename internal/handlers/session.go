package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"studybuddy-backend/internal/models"
	"studybuddy-backend/internal/services"
)

// CredentialHeader lets a client supply its own Gemini key per request.
const CredentialHeader = "X-Gemini-Api-Key"

type sessionRepository interface {
	Create(ctx context.Context) (*models.Session, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error)
	Update(ctx context.Context, s *models.Session) error
	Delete(ctx context.Context, id uuid.UUID) error
	Acquire(ctx context.Context, id uuid.UUID) (func(), error)
}

type eventPublisher interface {
	Publish(ctx context.Context, sessionID uuid.UUID, msg models.WSMessage)
}

type SessionHandler struct {
	sessions       sessionRepository
	study          *services.StudyService
	events         eventPublisher
	maxUploadBytes int64
}

func NewSessionHandler(sessions sessionRepository, study *services.StudyService, events eventPublisher, maxUploadBytes int64) *SessionHandler {
	return &SessionHandler{
		sessions:       sessions,
		study:          study,
		events:         events,
		maxUploadBytes: maxUploadBytes,
	}
}

func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.Create(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	log.Info().Str("session_id", sess.ID.String()).Msg("Session created")
	writeJSON(w, http.StatusCreated, sess.View())
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := parseSessionID(w, r)
	if !ok {
		return
	}

	sess, err := h.sessions.GetByID(r.Context(), sessionID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, sess.View())
}

func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := parseSessionID(w, r)
	if !ok {
		return
	}

	if err := h.sessions.Delete(r.Context(), sessionID); err != nil {
		handleServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SetCredential stores the caller's API key on the session. An empty key
// clears it, falling back to the server default.
func (h *SessionHandler) SetCredential(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := parseSessionID(w, r)
	if !ok {
		return
	}

	var req models.SetCredentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	err := h.mutate(r.Context(), sessionID, func(sess *models.Session) error {
		sess.Credential = strings.TrimSpace(req.APIKey)
		return nil
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// UploadDocument accepts a multipart "file" field. Re-uploading the file
// that is already loaded is a no-op.
func (h *SessionHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := parseSessionID(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR",
			fmt.Sprintf("File is missing or larger than %d MB", h.maxUploadBytes>>20), r))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "File is required", r))
		return
	}
	defer file.Close()

	filename := filepath.Base(header.Filename)
	if !strings.EqualFold(filepath.Ext(filename), ".pdf") {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Only PDF files are supported", r))
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Failed to read uploaded file", r))
		return
	}

	var (
		extracted bool
		doc       models.Document
	)
	err = h.mutate(r.Context(), sessionID, func(sess *models.Session) error {
		var err error
		extracted, err = h.study.LoadDocument(r.Context(), sess, filename, data)
		if err != nil {
			return err
		}
		doc = *sess.Document
		return nil
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	if extracted {
		h.events.Publish(r.Context(), sessionID, models.WSMessage{
			Type: models.EventDocumentLoaded,
			Payload: models.DocumentLoadedEvent{
				SessionID: sessionID,
				Filename:  doc.Filename,
				CharCount: doc.CharCount,
			},
		})
	}

	message := services.NoticeAlreadyLoaded
	if extracted {
		message = services.LoadedNotice(doc.CharCount)
	}

	writeJSON(w, http.StatusOK, models.DocumentLoadedResponse{
		Document:  doc,
		Extracted: extracted,
		Message:   message,
	})
}

func (h *SessionHandler) ClearDocument(w http.ResponseWriter, r *http.Request) {
	h.clear(w, r, models.EventDocumentCleared, (*models.Session).ClearDocument)
}

func (h *SessionHandler) ClearHistory(w http.ResponseWriter, r *http.Request) {
	h.clear(w, r, models.EventHistoryCleared, (*models.Session).ClearHistory)
}

func (h *SessionHandler) clear(w http.ResponseWriter, r *http.Request, event string, apply func(*models.Session)) {
	sessionID, ok := parseSessionID(w, r)
	if !ok {
		return
	}

	var view models.SessionView
	err := h.mutate(r.Context(), sessionID, func(sess *models.Session) error {
		apply(sess)
		view = sess.View()
		return nil
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	h.events.Publish(r.Context(), sessionID, models.WSMessage{
		Type:    event,
		Payload: models.SessionEvent{SessionID: sessionID},
	})

	writeJSON(w, http.StatusOK, view)
}

// Ask runs one question-answer exchange. Rate-limit exhaustion and model
// failures are not HTTP errors: the notice comes back as the answer with
// the outcome set accordingly.
func (h *SessionHandler) Ask(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := parseSessionID(w, r)
	if !ok {
		return
	}

	var req models.AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	requestKey := strings.TrimSpace(r.Header.Get(CredentialHeader))
	warn := func(rw services.RetryWarning) {
		h.events.Publish(context.WithoutCancel(r.Context()), sessionID, models.WSMessage{
			Type: models.EventRateLimitWarning,
			Payload: models.RateLimitWarning{
				SessionID:   sessionID,
				Attempt:     rw.Attempt,
				MaxAttempts: rw.MaxAttempts,
				WaitSeconds: int(rw.Wait / time.Second),
				Message:     rw.Message,
			},
		})
	}

	var reply models.Reply
	var historyLength int
	err := h.mutate(r.Context(), sessionID, func(sess *models.Session) error {
		var err error
		reply, err = h.study.Ask(r.Context(), sess, req.Question, requestKey, warn)
		historyLength = len(sess.History)
		return err
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	h.events.Publish(r.Context(), sessionID, models.WSMessage{
		Type: models.EventAnswerReady,
		Payload: models.AnswerReadyEvent{
			SessionID:     sessionID,
			Outcome:       reply.Outcome,
			HistoryLength: historyLength,
		},
	})

	writeJSON(w, http.StatusOK, models.AskResponse{Reply: reply, HistoryLength: historyLength})
}

// mutate runs fn on a private copy of the session while holding its
// exchange lock and stores the copy if fn succeeds.
func (h *SessionHandler) mutate(ctx context.Context, sessionID uuid.UUID, fn func(*models.Session) error) error {
	release, err := h.sessions.Acquire(ctx, sessionID)
	if err != nil {
		return err
	}
	defer release()

	sess, err := h.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}

	if err := fn(sess); err != nil {
		return err
	}

	return h.sessions.Update(ctx, sess)
}

func parseSessionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	sessionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid session ID", r))
		return uuid.Nil, false
	}
	return sessionID, true
}
