package worker

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/finledger/api/internal/model"
)

// ErrQueueFull is returned when a dispatch would exceed the pool's backlog.
var ErrQueueFull = errors.New("report queue is full")

// Pool is an in-process dispatcher running jobs on a fixed set of
// goroutines. It bounds concurrent report generation without Redis, for
// single-instance deployments and tests. The pool size is the concurrency
// limit; the queue absorbs bursts.
type Pool struct {
	worker  *ReportWorker
	workers int
	queue   chan jobRef

	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type jobRef struct {
	ownerID string
	jobID   string
}

func NewPool(worker *ReportWorker, workers, queueSize int) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 64
	}
	base, cancel := context.WithCancel(context.Background())
	return &Pool{
		worker:  worker,
		workers: workers,
		queue:   make(chan jobRef, queueSize),
		base:    base,
		cancel:  cancel,
	}
}

// Start launches the worker goroutines.
func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.run()
	}
}

func (p *Pool) run() {
	defer p.wg.Done()
	for {
		select {
		case <-p.base.Done():
			return
		case ref := <-p.queue:
			if err := p.worker.Execute(p.base, ref.ownerID, ref.jobID); err != nil {
				log.Printf("Report job %s finished with error: %v", ref.jobID, err)
			}
		}
	}
}

// Dispatch enqueues without blocking. A full queue is a dispatch failure and
// the caller marks the job Failed.
func (p *Pool) Dispatch(ctx context.Context, job *model.ReportJob) error {
	if err := p.base.Err(); err != nil {
		return err
	}
	select {
	case p.queue <- jobRef{ownerID: job.OwnerID, jobID: job.ID}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Shutdown cancels in-flight jobs, fails everything still queued and waits
// for the workers to stop. Every job the pool accepted ends terminal: jobs
// interrupted mid-run and jobs that never ran both become Failed with a
// cancellation detail.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.cancel()
	p.drainQueue()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		// A Dispatch racing the cancel may have enqueued after the first
		// drain; with the workers stopped a second sweep catches it.
		p.drainQueue()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// drainQueue fails every job still waiting in the backlog. Fail is legal
// from Queued, so jobs that never started also reach a terminal state.
func (p *Pool) drainQueue() {
	for {
		select {
		case ref := <-p.queue:
			p.worker.failJob(ref.ownerID, ref.jobID, "Report generation cancelled")
		default:
			return
		}
	}
}
