package workers

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/fileforgehq/fileforge/internal/ports"
)

// ErrQueueFull — очередь забита, клиенту отвечаем 503.
var ErrQueueFull = errors.New("job queue is full")

const queueSize = 100

// Pool — N горутин, разбирающих очередь задач.
type Pool struct {
	queue   chan uuid.UUID
	workers int
	runner  ports.JobRunner
	wg      sync.WaitGroup
}

func NewPool(workers int, runner ports.JobRunner) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{
		queue:   make(chan uuid.UUID, queueSize),
		workers: workers,
		runner:  runner,
	}
}

func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func(workerID int) {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case jobID, ok := <-p.queue:
					if !ok {
						return
					}
					if err := p.runner.Execute(ctx, jobID); err != nil {
						log.Printf("[worker %d] job %s: %v", workerID, jobID, err)
					}
				}
			}
		}(i)
	}
}

// Enqueue не блокирует: полная очередь — ErrQueueFull.
func (p *Pool) Enqueue(jobID uuid.UUID) error {
	select {
	case p.queue <- jobID:
		return nil
	default:
		return ErrQueueFull
	}
}

// Wait закрывает очередь и ждёт, пока воркеры доработают хвост.
func (p *Pool) Wait() {
	close(p.queue)
	p.wg.Wait()
}
