package match

import (
	"context"
	"log"
	"sync"
)

// Task asks a worker to advance one match by one agent turn. Duplicate
// delivery is harmless: the lease makes processing idempotent.
type Task struct {
	MatchID string
}

// Queue is the in-process task queue between the orchestrator (sole
// producer) and the worker pool (sole consumer).
type Queue struct {
	tasks chan Task
}

func NewQueue(size int) *Queue {
	return &Queue{tasks: make(chan Task, size)}
}

// Enqueue never blocks the caller. A full queue drops the task with a log
// line; the match stays consistent and the sweeper re-enqueues it once the
// queue has room.
func (q *Queue) Enqueue(matchID string) {
	select {
	case q.tasks <- Task{MatchID: matchID}:
	default:
		log.Printf("Task queue full, dropping agent turn for match %s", matchID)
	}
}

// AgentTurner is the slice of the orchestrator the worker pool needs.
type AgentTurner interface {
	TakeAgentTurn(ctx context.Context, matchID string) (bool, error)
}

// WorkerPool drains the queue with a fixed number of workers. A turn that
// chains into another agent turn is re-enqueued as a fresh task, never
// processed in a loop, so every hop passes the lease gate again.
type WorkerPool struct {
	queue   *Queue
	orch    AgentTurner
	workers int
}

func NewWorkerPool(queue *Queue, orch AgentTurner, workers int) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	return &WorkerPool{queue: queue, orch: orch, workers: workers}
}

// Run blocks until ctx is cancelled and every worker has drained out.
func (p *WorkerPool) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.work(ctx, id)
		}(i)
	}
	wg.Wait()
}

func (p *WorkerPool) work(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			return
		case task := <-p.queue.tasks:
			chain, err := p.orch.TakeAgentTurn(ctx, task.MatchID)
			if err != nil {
				log.Printf("Worker %d: agent turn for match %s: %v", id, task.MatchID, err)
				continue
			}
			if chain {
				p.queue.Enqueue(task.MatchID)
			}
		}
	}
}
