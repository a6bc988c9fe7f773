package tickets

import (
	"context"
	"log"
	"sync"

	"callcenter/internal/api"
)

// ThreadResult is the outcome of loading one ticket's chat.
type ThreadResult struct {
	ID     int64
	Thread *Thread
	Error  error
}

// worker is a single worker in the thread-loading pool.
//
// Lifecycle:
//  1. Start: Begin listening on jobs channel
//  2. Process: Fetch the ticket's chat
//  3. Result: Send result to results channel
//  4. Stop: Exit when jobs channel is closed
type worker struct {
	id      int
	jobs    <-chan int64
	results chan<- ThreadResult
	ctx     context.Context
	client  *api.Client
	wg      *sync.WaitGroup
}

// WorkerPool loads ticket chats concurrently.
//
// Errors for one ticket are reported in its result and do not stop the pool.
type WorkerPool struct {
	jobs    chan int64
	results chan ThreadResult
	wg      sync.WaitGroup
}

// NewWorkerPool starts workerCount workers. A count below 1 means 1.
func NewWorkerPool(ctx context.Context, client *api.Client, workerCount int) *WorkerPool {
	if workerCount < 1 {
		workerCount = 1
	}
	log.Printf("  → Creating worker pool with %d workers...\n", workerCount)

	pool := &WorkerPool{
		jobs:    make(chan int64, 100),
		results: make(chan ThreadResult, 100),
	}

	for i := 0; i < workerCount; i++ {
		w := &worker{
			id:      i + 1,
			jobs:    pool.jobs,
			results: pool.results,
			ctx:     ctx,
			client:  client,
			wg:      &pool.wg,
		}
		pool.wg.Add(1)
		go w.start()
	}
	return pool
}

// Submit queues a ticket id. It blocks while the job buffer is full.
func (p *WorkerPool) Submit(id int64) {
	p.jobs <- id
}

// Close stops accepting jobs, waits for the workers and closes Results.
func (p *WorkerPool) Close() {
	close(p.jobs)
	p.wg.Wait()
	close(p.results)
}

// Results returns the results channel.
func (p *WorkerPool) Results() <-chan ThreadResult {
	return p.results
}

func (w *worker) start() {
	defer w.wg.Done()

	for id := range w.jobs {
		if err := w.ctx.Err(); err != nil {
			w.results <- ThreadResult{ID: id, Error: err}
			continue
		}

		thread, err := Timeline(w.ctx, w.client, id)
		if err != nil {
			log.Printf("  [Worker #%d] ✗ Failed to load ticket %d: %v\n", w.id, id, err)
		}
		w.results <- ThreadResult{ID: id, Thread: thread, Error: err}
	}
}

// LoadThreads fetches the chats of ids with workerCount workers and returns
// the results keyed by id.
func LoadThreads(ctx context.Context, client *api.Client, ids []int64, workerCount int) map[int64]ThreadResult {
	pool := NewWorkerPool(ctx, client, workerCount)

	go func() {
		for _, id := range ids {
			pool.Submit(id)
		}
		pool.Close()
	}()

	out := make(map[int64]ThreadResult, len(ids))
	for r := range pool.Results() {
		out[r.ID] = r
	}
	return out
}
