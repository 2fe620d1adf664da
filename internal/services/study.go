package services

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"studybuddy-backend/internal/models"
)

// Extractor turns an uploaded PDF into text.
type Extractor interface {
	ExtractPDF(ctx context.Context, data []byte) (ExtractedDocument, error)
}

// StudyService drives a Session through its lifecycle: load a document,
// ask questions against it, clear. Both the HTTP and terminal shells use it.
type StudyService struct {
	extractor    Extractor
	tokens       *TokenEstimator
	models       *ModelCache
	conversation *ConversationService
	defaultKey   string
}

func NewStudyService(
	extractor Extractor,
	tokens *TokenEstimator,
	modelCache *ModelCache,
	conversation *ConversationService,
	defaultKey string,
) *StudyService {
	return &StudyService{
		extractor:    extractor,
		tokens:       tokens,
		models:       modelCache,
		conversation: conversation,
		defaultKey:   defaultKey,
	}
}

// LoadDocument extracts data into sess unless filename is already loaded.
// It reports whether extraction ran. On any error sess is left untouched.
func (s *StudyService) LoadDocument(ctx context.Context, sess *models.Session, filename string, data []byte) (bool, error) {
	if !sess.NeedsExtraction(filename) {
		return false, nil
	}

	extracted, err := s.extractor.ExtractPDF(ctx, data)
	if err != nil {
		log.Warn().Err(err).Str("session_id", sess.ID.String()).Str("filename", filename).Msg("PDF extraction failed")
		return false, err
	}
	if extracted.Text == "" {
		return false, ErrNoExtractableText
	}

	sess.LoadDocument(models.Document{
		Filename:      filename,
		Text:          extracted.Text,
		CharCount:     extracted.CharCount,
		PageCount:     extracted.PageCount,
		TokenEstimate: s.tokens.Estimate(extracted.Text),
		LoadedAt:      time.Now(),
	})

	log.Info().
		Str("session_id", sess.ID.String()).
		Str("filename", filename).
		Int("pages", extracted.PageCount).
		Int("chars", extracted.CharCount).
		Msg("Document loaded")

	return true, nil
}

// ResolveCredential picks the request credential, then the session's, then
// the server default.
func (s *StudyService) ResolveCredential(sess *models.Session, requestKey string) string {
	switch {
	case requestKey != "":
		return requestKey
	case sess.Credential != "":
		return sess.Credential
	default:
		return s.defaultKey
	}
}

// Ask answers question for sess. Only answered exchanges are appended to
// the history; rate-limit and generation failures come back as notices
// without touching it. Errors are returned for the gating checks only.
func (s *StudyService) Ask(ctx context.Context, sess *models.Session, question, requestKey string, warn WarnFunc) (models.Reply, error) {
	if !sess.HasDocument() {
		return models.Reply{}, ErrNoDocument
	}

	handle, err := s.models.Get(ctx, s.ResolveCredential(sess, requestKey))
	if err != nil {
		return models.Reply{}, err
	}

	reply := s.conversation.Ask(ctx, handle, question, sess.DocumentText(), sess.History, warn)
	if reply.Answered() {
		sess.AppendTurn(models.Turn{
			Question: question,
			Answer:   reply.Answer,
			AskedAt:  time.Now(),
		})
	}

	log.Info().
		Str("session_id", sess.ID.String()).
		Str("outcome", string(reply.Outcome)).
		Int("attempts", reply.Attempts).
		Int("history_length", len(sess.History)).
		Msg("Question processed")

	return reply, nil
}

func (s *StudyService) RetryPolicy() RetryPolicy {
	return s.conversation.Policy()
}
