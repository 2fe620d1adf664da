package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"studybuddy-backend/internal/models"
)

// RetryPolicy bounds the rate-limit retry loop. MaxAttempts counts the
// first call.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Delay: 15 * time.Second}
}

// RetryWarning is surfaced to the user before each rate-limit wait.
type RetryWarning struct {
	Attempt     int
	MaxAttempts int
	Wait        time.Duration
	Message     string
}

// WarnFunc receives warnings while an exchange is in flight. May be nil.
type WarnFunc func(w RetryWarning)

// ConversationService turns a question into a grounded model call.
type ConversationService struct {
	policy RetryPolicy
	sleep  func(ctx context.Context, d time.Duration) error
}

func NewConversationService(policy RetryPolicy) *ConversationService {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &ConversationService{
		policy: policy,
		sleep:  sleepContext,
	}
}

func (s *ConversationService) Policy() RetryPolicy {
	return s.policy
}

// Ask answers question from documentText, replaying history first. It never
// fails: every error is folded into the Reply as a displayable notice.
func (s *ConversationService) Ask(
	ctx context.Context,
	gen Generator,
	question string,
	documentText string,
	history []models.Turn,
	warn WarnFunc,
) models.Reply {
	messages := BuildConversation(history, BuildPrompt(documentText, question))

	reply := models.Reply{}
	for attempt := 1; attempt <= s.policy.MaxAttempts; attempt++ {
		reply.Attempts = attempt

		answer, err := gen.Generate(ctx, messages)
		if err == nil {
			reply.Answer = answer
			reply.Outcome = models.OutcomeAnswered
			return reply
		}

		if !IsRateLimited(err) {
			log.Warn().Err(err).Int("attempt", attempt).Msg("Gemini generation failed")
			genErr := &GenerationError{Err: err}
			reply.Answer = genErr.Notice()
			reply.Outcome = models.OutcomeFailed
			return reply
		}

		log.Warn().Err(err).Int("attempt", attempt).Int("max_attempts", s.policy.MaxAttempts).Msg("Gemini rate limited")
		if attempt == s.policy.MaxAttempts {
			break
		}

		w := RetryWarning{
			Attempt:     attempt,
			MaxAttempts: s.policy.MaxAttempts,
			Wait:        s.policy.Delay,
			Message: fmt.Sprintf(noticeRateLimitWait,
				int(s.policy.Delay/time.Second), attempt, s.policy.MaxAttempts-1),
		}
		reply.Warnings = append(reply.Warnings, w.Message)
		if warn != nil {
			warn(w)
		}

		if err := s.sleep(ctx, s.policy.Delay); err != nil {
			reply.Answer = UnexpectedNotice(err)
			reply.Outcome = models.OutcomeFailed
			return reply
		}
	}

	reply.Answer = NoticeRateLimitExhausted
	reply.Outcome = models.OutcomeRateLimited
	return reply
}

// BuildPrompt embeds the whole document between delimiters, followed by
// the question.
func BuildPrompt(documentText, question string) string {
	var b strings.Builder

	b.WriteString("\nHere is the document you should use to answer questions:\n\n")
	b.WriteString("=== DOCUMENT START ===\n")
	b.WriteString(documentText)
	b.WriteString("\n=== DOCUMENT END ===\n\n")
	b.WriteString("Based ONLY on the document above, please answer this question:\n")
	b.WriteString(question)
	b.WriteString("\n")

	return b.String()
}

// BuildConversation replays history as alternating user/model messages and
// appends prompt as the final user message. The result always has
// 2*len(history)+1 entries.
func BuildConversation(history []models.Turn, prompt string) []models.ChatMessage {
	messages := make([]models.ChatMessage, 0, 2*len(history)+1)
	for _, turn := range history {
		messages = append(messages,
			models.ChatMessage{Role: models.RoleUser, Content: turn.Question},
			models.ChatMessage{Role: models.RoleModel, Content: turn.Answer},
		)
	}
	return append(messages, models.ChatMessage{Role: models.RoleUser, Content: prompt})
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
