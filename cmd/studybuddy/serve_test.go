package main

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studybuddy-backend/internal/handlers"
	"studybuddy-backend/internal/models"
	"studybuddy-backend/internal/repository"
	"studybuddy-backend/internal/services"
	"studybuddy-backend/internal/testutil"
)

type quotaHandle struct{}

func (quotaHandle) Generate(ctx context.Context, messages []models.ChatMessage) (string, error) {
	return "", errors.New("Error 429: quota exhausted")
}

func (quotaHandle) Close() error { return nil }

type warnSignal chan struct{}

func (w warnSignal) Publish(ctx context.Context, sessionID uuid.UUID, msg models.WSMessage) {
	if msg.Type == models.EventRateLimitWarning {
		select {
		case w <- struct{}{}:
		default:
		}
	}
}

func TestHTTPServer_ShutdownCancelsRetryWait(t *testing.T) {
	repo := repository.NewSessionRepo(0)
	study := services.NewStudyService(
		services.NewFileExtractService(),
		services.NewTokenEstimator(),
		services.NewModelCache(func(ctx context.Context, apiKey string) (services.ModelHandle, error) {
			return quotaHandle{}, nil
		}),
		services.NewConversationService(services.RetryPolicy{MaxAttempts: 3, Delay: time.Hour}),
		"server-key",
	)

	sess, err := repo.Create(context.Background())
	require.NoError(t, err)
	_, err = study.LoadDocument(context.Background(), sess, "bio.pdf", testutil.BuildPDF("Cells divide"))
	require.NoError(t, err)
	require.NoError(t, repo.Update(context.Background(), sess))

	warned := make(warnSignal, 1)
	h := handlers.NewSessionHandler(repo, study, warned, 1<<20)
	r := chi.NewRouter()
	r.Post("/sessions/{id}/ask", h.Ask)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	server := newHTTPServer(ctx, ln.Addr().String(), r, time.Minute)
	go server.Serve(ln)

	type result struct {
		resp *http.Response
		err  error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := http.Post(
			"http://"+ln.Addr().String()+"/sessions/"+sess.ID.String()+"/ask",
			"application/json",
			strings.NewReader(`{"question":"What divides?"}`),
		)
		done <- result{resp, err}
	}()

	select {
	case <-warned:
	case <-time.After(5 * time.Second):
		t.Fatal("request never reached the retry wait")
	}

	cancel()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	require.NoError(t, server.Shutdown(shutdownCtx))

	res := <-done
	require.NoError(t, res.err)
	defer res.resp.Body.Close()
	assert.Equal(t, http.StatusOK, res.resp.StatusCode)

	var body models.AskResponse
	require.NoError(t, json.NewDecoder(res.resp.Body).Decode(&body))
	assert.Equal(t, models.OutcomeFailed, body.Outcome)
	assert.Equal(t, 0, body.HistoryLength)
}
