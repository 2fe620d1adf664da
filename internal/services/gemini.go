package services

import (
	"context"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"github.com/googleapis/gax-go/v2/apierror"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/blake2b"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"studybuddy-backend/internal/models"
)

const DefaultModelName = "gemini-2.5-flash"

const systemPrompt = `
You are a focused and helpful Study Buddy assistant.
Your job is to answer questions ONLY based on the document content provided to you.
Rules you must always follow:
  - If the answer is in the document, provide a clear and concise answer.
  - If the answer is NOT in the document, say: "I couldn't find that in the document."
  - Never make up information or use outside knowledge.
  - Keep answers student-friendly: clear, simple, and to the point.
`

// Generator runs one generation over an ordered, role-tagged conversation.
// The last message is the new user turn.
type Generator interface {
	Generate(ctx context.Context, messages []models.ChatMessage) (string, error)
}

// ModelHandle is a long-lived, read-only Generator bound to one credential.
type ModelHandle interface {
	Generator
	Close() error
}

// HandleFactory builds a handle for a credential. It must not contact the
// network; a bad credential only surfaces on the first Generate call.
type HandleFactory func(ctx context.Context, apiKey string) (ModelHandle, error)

// GeminiHandle wraps a configured genai client and model.
type GeminiHandle struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGeminiFactory returns a HandleFactory for the given model name.
func NewGeminiFactory(modelName string) HandleFactory {
	if modelName == "" {
		modelName = DefaultModelName
	}
	return func(ctx context.Context, apiKey string) (ModelHandle, error) {
		client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
		if err != nil {
			return nil, errors.Wrap(err, "failed to create Gemini client")
		}

		model := client.GenerativeModel(modelName)
		model.SystemInstruction = genai.NewUserContent(genai.Text(systemPrompt))

		return &GeminiHandle{client: client, model: model}, nil
	}
}

// Generate replays every message but the last as chat history and sends
// the last one as the new user message.
func (h *GeminiHandle) Generate(ctx context.Context, messages []models.ChatMessage) (string, error) {
	if len(messages) == 0 {
		return "", errors.New("no messages to send")
	}

	cs := h.model.StartChat()
	for _, m := range messages[:len(messages)-1] {
		cs.History = append(cs.History, &genai.Content{
			Role:  m.Role,
			Parts: []genai.Part{genai.Text(m.Content)},
		})
	}

	last := messages[len(messages)-1]
	resp, err := cs.SendMessage(ctx, genai.Text(last.Content))
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 {
		return "", errors.New("Gemini returned no candidates")
	}

	for i, cand := range resp.Candidates {
		if cand.FinishReason != genai.FinishReasonStop {
			log.Debug().Int("candidate", i).Str("finish_reason", fmt.Sprint(cand.FinishReason)).Msg("Gemini stopped early")
		}
	}

	return extractText(resp), nil
}

func (h *GeminiHandle) Close() error {
	return h.client.Close()
}

// ModelCache memoizes one handle per distinct credential. Entries are never
// evicted; they live until Close.
type ModelCache struct {
	mu      sync.Mutex
	handles map[string]ModelHandle
	factory HandleFactory
}

func NewModelCache(factory HandleFactory) *ModelCache {
	return &ModelCache{
		handles: make(map[string]ModelHandle),
		factory: factory,
	}
}

// Get returns the handle for apiKey, building it on first use.
func (c *ModelCache) Get(ctx context.Context, apiKey string) (ModelHandle, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrCredentialMissing
	}

	key := Fingerprint(apiKey)

	c.mu.Lock()
	defer c.mu.Unlock()

	if h, ok := c.handles[key]; ok {
		return h, nil
	}

	h, err := c.factory(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	c.handles[key] = h
	log.Info().Str("credential", key[:12]).Msg("Gemini model handle created")

	return h, nil
}

// Len reports how many distinct handles have been built.
func (c *ModelCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.handles)
}

func (c *ModelCache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, h := range c.handles {
		if err := h.Close(); err != nil {
			log.Warn().Err(err).Str("credential", key[:12]).Msg("closing Gemini client")
		}
		delete(c.handles, key)
	}
}

// Fingerprint is a stable, non-reversible identifier for a credential,
// safe to use as a map key or in logs.
func Fingerprint(apiKey string) string {
	sum := blake2b.Sum256([]byte(apiKey))
	return hex.EncodeToString(sum[:])
}

// IsRateLimited reports whether err carries a rate-limit signature: an HTTP
// 429, a gRPC ResourceExhausted status, or "429"/"quota" in its message.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}

	var gErr *googleapi.Error
	if errors.As(err, &gErr) && gErr.Code == http.StatusTooManyRequests {
		return true
	}

	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPCode() == http.StatusTooManyRequests {
			return true
		}
		if st := apiErr.GRPCStatus(); st != nil && st.Code() == codes.ResourceExhausted {
			return true
		}
	}

	if st, ok := status.FromError(err); ok && st.Code() == codes.ResourceExhausted {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") || strings.Contains(msg, "quota")
}

// Helper functions

func extractText(resp *genai.GenerateContentResponse) string {
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					text.WriteString(string(t))
				}
			}
		}
	}
	return text.String()
}
