package match

import (
	"context"
	"log"
	"time"

	"gamehub/store"
)

const sweepBatchSize = 100

// Sweeper periodically re-enqueues matches whose active seat is an agent but
// that no worker is processing. Enqueue is lossy and the queue does not
// survive a restart, so without the sweeper an all-agent match could stall
// forever with no user turn to kick it again. Re-enqueuing a match already in
// flight is harmless: the lease gate makes processing idempotent.
type Sweeper struct {
	store    store.Store
	queue    *Queue
	leaseTTL time.Duration
	interval time.Duration
}

func NewSweeper(store store.Store, queue *Queue, leaseTTL, interval time.Duration) *Sweeper {
	return &Sweeper{
		store:    store,
		queue:    queue,
		leaseTTL: leaseTTL,
		interval: interval,
	}
}

// Run sweeps once per interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Sweeper) sweep() {
	staleBefore := time.Now().Add(-s.leaseTTL)
	matchIDs, err := s.store.ListMatchesAwaitingAgent(staleBefore, sweepBatchSize)
	if err != nil {
		log.Printf("Sweep failed: %v", err)
		return
	}
	for _, matchID := range matchIDs {
		log.Printf("Sweeper re-enqueuing stalled agent turn for match %s", matchID)
		s.queue.Enqueue(matchID)
	}
}
