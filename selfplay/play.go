package selfplay

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/devnull/blitzbot/agent"
	"github.com/devnull/blitzbot/rules"
	"github.com/devnull/blitzbot/store"
	"github.com/google/uuid"
)

// Result is the outcome of one self-play game.
type Result struct {
	Map        string
	SessionID  string
	Ticks      int
	Score      int
	Survived   bool
	Mismatches int
	Elapsed    time.Duration
	Rows       []store.ArchiveTickRow
}

// Play runs ag on m against sim until the agent is caught or maxTicks
// ticks have been played.
func Play(ctx context.Context, m Map, ag *agent.Agent, sim *rules.Simulator, maxTicks int) (Result, error) {
	start := time.Now()
	initial, err := m.State()
	if err != nil {
		return Result{Map: m.Name}, err
	}
	sessionID := uuid.NewString()
	srv := NewServer(sessionID, initial, m.Message.YourCharacter.SpawnPoint, sim, maxTicks)

	out, err := ag.Run(ctx, srv, nil)
	res := Result{
		Map:        m.Name,
		SessionID:  sessionID,
		Ticks:      out.Ticks,
		Score:      out.Score,
		Survived:   srv.State().Alive,
		Mismatches: out.Mismatches,
		Elapsed:    time.Since(start),
		Rows:       srv.Rows(),
	}
	if err != nil {
		return res, fmt.Errorf("map %s: %w", m.Name, err)
	}
	return res, nil
}

// Update reports a finished game to a progress consumer.
type Update struct {
	Worker int
	Result Result
	Err    error
}

// RunAll plays every map once, spread across workers. newAgent builds a
// fresh agent per game. Updates are delivered to onUpdate from the worker
// goroutines; results are returned in map order.
func RunAll(ctx context.Context, maps []Map, workers int, newAgent func() *agent.Agent, sim *rules.Simulator, maxTicks int, onUpdate func(Update)) []Result {
	if workers <= 0 {
		workers = 1
	}
	results := make([]Result, len(maps))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for i := range jobs {
				res, err := Play(ctx, maps[i], newAgent(), sim, maxTicks)
				results[i] = res
				if onUpdate != nil {
					onUpdate(Update{Worker: worker, Result: res, Err: err})
				}
			}
		}(w)
	}

feed:
	for i := range maps {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()
	return results
}
