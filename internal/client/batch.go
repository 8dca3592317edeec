package client

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/tapdin/planner/pkg/logger"
)

// Outcome is the result of one submission in a batch.
type Outcome struct {
	Index int
	ID    string
	Err   error
}

// BatchStats summarises a batch.
type BatchStats struct {
	Submitted  int
	Successful int
	Failed     int
}

// SubmitAll sends subs with a pool of workers. Outcomes are returned in
// input order. Submissions not started before ctx ends fail with ctx.Err().
func (c *Client) SubmitAll(ctx context.Context, subs []Submission, workers int) ([]Outcome, BatchStats) {
	if workers <= 0 {
		workers = 1
	}
	if workers > len(subs) {
		workers = len(subs)
	}

	outcomes := make([]Outcome, len(subs))
	for i := range outcomes {
		outcomes[i].Index = i
	}

	var successful, failed int64
	jobs := make(chan int, workers*2)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				id, err := c.Submit(ctx, subs[i])
				outcomes[i].ID, outcomes[i].Err = id, err
				if err != nil {
					atomic.AddInt64(&failed, 1)
					c.logger.Warn(ctx, "submission failed", logger.Int("index", i), logger.Error(err))
					continue
				}
				atomic.AddInt64(&successful, 1)
			}
		}()
	}

	next := 0
feed:
	for ; next < len(subs); next++ {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- next:
		}
	}
	close(jobs)
	wg.Wait()

	for i := next; i < len(subs); i++ {
		outcomes[i].Err = ctx.Err()
	}

	stats := BatchStats{
		Submitted:  next,
		Successful: int(atomic.LoadInt64(&successful)),
		Failed:     int(atomic.LoadInt64(&failed)),
	}
	c.logger.Info(ctx, "batch submission completed",
		logger.Int("submitted", stats.Submitted),
		logger.Int("successful", stats.Successful),
		logger.Int("failed", stats.Failed),
	)
	return outcomes, stats
}
