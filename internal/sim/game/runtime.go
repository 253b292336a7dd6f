package game

import (
	"context"
	"errors"
	"time"

	"stationsim.ai/internal/persistence/snapshot"
	"stationsim.ai/internal/sim/station"
)

type request struct {
	fn   func(g *Game)
	done chan struct{}
}

// Run drives the session at tuning tick_rate_hz with a fixed step. Facade
// calls submitted through Do run between ticks on the same goroutine.
func (g *Game) Run(ctx context.Context) error {
	hz := g.tune.TickRateHz
	if hz <= 0 {
		return errors.New("game: tick rate must be positive")
	}
	ticker := time.NewTicker(time.Second / time.Duration(hz))
	defer ticker.Stop()
	dt := 1 / float64(hz)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-g.stop:
			return nil
		case req := <-g.inbox:
			req.fn(g)
			close(req.done)
		case <-ticker.C:
			g.StepOnce(dt)
		}
	}
}

func (g *Game) Stop() { close(g.stop) }

// Do runs fn on the loop goroutine and waits for it to finish. It is safe to
// call from other goroutines (e.g. websocket handlers). After Handoff the
// call runs on the successor instead.
func (g *Game) Do(ctx context.Context, fn func(g *Game)) error {
	if next := g.next.Load(); next != nil {
		return next.Do(ctx, fn)
	}
	req := request{fn: fn, done: make(chan struct{})}
	select {
	case g.inbox <- req:
	case <-g.retired:
		return g.next.Load().Do(ctx, fn)
	case <-ctx.Done():
		return ctx.Err()
	}
	retired := g.retired
	for {
		select {
		case <-req.done:
			return nil
		case <-retired:
			// req may have landed after Handoff drained the inbox.
			g.forwardQueued(ctx.Done())
			retired = nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Handoff retires a game whose loop has stopped. Requests still queued, and
// every later Do, run on next. next's loop must be running.
func (g *Game) Handoff(ctx context.Context, next *Game) {
	if next == nil || next == g {
		panic("game: handoff needs a different successor")
	}
	g.retireOnce.Do(func() {
		g.next.Store(next)
		close(g.retired)
	})
	g.forwardQueued(ctx.Done())
}

func (g *Game) forwardQueued(cancel <-chan struct{}) {
	next := g.next.Load()
	for {
		select {
		case req := <-g.inbox:
			select {
			case next.inbox <- req:
			case <-cancel:
				return
			}
		default:
			return
		}
	}
}

// StepOnce advances the session by one tick of dt real seconds using the
// same ordering semantics as Run, including the tick log, index and
// snapshot hooks.
func (g *Game) StepOnce(dt float64) station.StepResult {
	res := g.Tick(dt)
	if !g.started {
		return res
	}
	g.tick++
	n := g.tick

	if every(n, g.tune.LogEveryTicks) {
		if g.tickLogger != nil {
			entry := TickLogEntry{
				Tick:      n,
				TimeScale: g.timeScale,
				Stats:     g.stats(),
				Completed: g.completed,
				Commands:  g.applied,
			}
			if err := g.tickLogger.WriteTick(entry); err != nil {
				g.log.Printf("tick log: %v", err)
			}
		}
		g.applied = nil
		g.completed = nil
	}
	if g.indexer != nil && every(n, g.tune.IndexEveryTicks) {
		g.indexer.RecordStats(n, g.stats())
	}
	if g.snapshotSink != nil && every(n, g.tune.SnapshotEveryTicks) {
		g.emitSnapshot()
	}
	return res
}

func (g *Game) emitSnapshot() {
	select {
	case g.snapshotSink <- g.ExportSnapshot():
	default:
		// Drop snapshot if sink is backed up.
	}
}

// RequestSnapshot pushes a snapshot to the sink now.
func (g *Game) RequestSnapshot() (snapshot.Header, error) {
	if g.snapshotSink == nil {
		return snapshot.Header{}, errors.New("snapshot sink not configured")
	}
	s := g.ExportSnapshot()
	select {
	case g.snapshotSink <- s:
		return s.Header, nil
	default:
		return snapshot.Header{}, errors.New("snapshot sink busy")
	}
}

func every(n uint64, k int) bool {
	return k > 0 && n%uint64(k) == 0
}
