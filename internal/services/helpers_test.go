package services

import (
	"context"
	"sync"

	"studybuddy-backend/internal/models"
)

// scriptedGenerator fails the first len(errs) calls with the given errors
// (nil entries succeed) and answers afterwards.
type scriptedGenerator struct {
	mu     sync.Mutex
	errs   []error
	answer string
	calls  int
	seen   [][]models.ChatMessage
	closed bool
}

func (g *scriptedGenerator) Generate(ctx context.Context, messages []models.ChatMessage) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.calls++
	g.seen = append(g.seen, messages)
	if g.calls <= len(g.errs) && g.errs[g.calls-1] != nil {
		return "", g.errs[g.calls-1]
	}
	return g.answer, nil
}

func (g *scriptedGenerator) Close() error {
	g.closed = true
	return nil
}

// countingFactory hands out the same generator and counts constructions.
type countingFactory struct {
	mu    sync.Mutex
	built int
	keys  []string
	gen   *scriptedGenerator
	err   error
}

func (f *countingFactory) build(ctx context.Context, apiKey string) (ModelHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	f.built++
	f.keys = append(f.keys, apiKey)
	if f.gen == nil {
		f.gen = &scriptedGenerator{answer: "ok"}
	}
	return f.gen, nil
}
