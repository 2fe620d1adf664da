package worker

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"studybuddy-backend/internal/services"
)

var ErrPoolStopped = errors.New("extraction pool stopped")

type extractJob struct {
	ctx    context.Context
	data   []byte
	result chan extractResult
}

type extractResult struct {
	doc services.ExtractedDocument
	err error
}

// Pool runs PDF extraction on a fixed number of goroutines so a burst of
// uploads cannot parse an unbounded number of documents at once. It
// satisfies services.Extractor.
type Pool struct {
	extractor   services.Extractor
	jobs        chan extractJob
	workerCount int
	stopChan    chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
}

func NewPool(extractor services.Extractor, workerCount int) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}
	return &Pool{
		extractor:   extractor,
		jobs:        make(chan extractJob),
		workerCount: workerCount,
		stopChan:    make(chan struct{}),
	}
}

func (p *Pool) Start() {
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	log.Info().Int("workers", p.workerCount).Msg("Extraction workers started")
}

// Stop waits for in-flight extractions to finish. Later calls to
// ExtractPDF fail with ErrPoolStopped.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() { close(p.stopChan) })
	p.wg.Wait()
}

// ExtractPDF blocks until a worker is free and has processed data, or
// until ctx is done.
func (p *Pool) ExtractPDF(ctx context.Context, data []byte) (services.ExtractedDocument, error) {
	job := extractJob{ctx: ctx, data: data, result: make(chan extractResult, 1)}

	select {
	case <-ctx.Done():
		return services.ExtractedDocument{}, ctx.Err()
	case <-p.stopChan:
		return services.ExtractedDocument{}, ErrPoolStopped
	case p.jobs <- job:
	}

	// result is buffered, so a worker never blocks on an abandoned job.
	select {
	case <-ctx.Done():
		return services.ExtractedDocument{}, ctx.Err()
	case res := <-job.result:
		return res.doc, res.err
	}
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopChan:
			log.Debug().Int("worker", id).Msg("Extraction worker shutting down")
			return
		case job := <-p.jobs:
			start := time.Now()
			doc, err := p.extractor.ExtractPDF(job.ctx, job.data)
			job.result <- extractResult{doc: doc, err: err}

			log.Debug().
				Int("worker", id).
				Int("bytes", len(job.data)).
				Int("pages", doc.PageCount).
				Dur("took", time.Since(start)).
				Err(err).
				Msg("Extraction job finished")
		}
	}
}
