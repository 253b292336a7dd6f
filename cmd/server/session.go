package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"stationsim.ai/internal/persistence/indexdb"
	"stationsim.ai/internal/persistence/snapshot"
	"stationsim.ai/internal/sim/catalogs"
	"stationsim.ai/internal/sim/game"
	"stationsim.ai/internal/sim/scene"
	"stationsim.ai/internal/sim/tuning"
)

// session owns the running game and swaps it on hot reload. The scene
// outlives every game built on it.
type session struct {
	stationID string
	engine    scene.Engine
	logger    *log.Logger
	tickLog   game.TickLogger
	index     *indexdb.SQLiteIndex
	snapCh    chan snapshot.SnapshotV1
	onSwap    func(*game.Game)

	mu     sync.Mutex
	g      *game.Game
	cancel context.CancelFunc
	done   chan struct{}
}

func (s *session) newGame(tune tuning.Tuning, cat *catalogs.Catalog) *game.Game {
	g := game.New(game.Config{
		StationID: s.stationID,
		Tuning:    tune,
		Catalog:   cat,
		Engine:    s.engine,
		Logger:    s.logger,
	})
	if s.tickLog != nil {
		g.SetTickLogger(s.tickLog)
	}
	if s.index != nil {
		g.SetIndexer(s.index)
	}
	if s.snapCh != nil {
		g.SetSnapshotSink(s.snapCh)
	}
	return g
}

func (s *session) start(ctx context.Context, g *game.Game) {
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := g.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Printf("game stopped: %v", err)
		}
	}()
	s.mu.Lock()
	s.g, s.cancel, s.done = g, cancel, done
	s.mu.Unlock()
}

func (s *session) current() *game.Game {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.g
}

func (s *session) stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
}

// reload moves the session state into a game built from the new tuning and
// catalog. On failure the old game resumes unchanged.
func (s *session) reload(ctx context.Context, tune tuning.Tuning, cat *catalogs.Catalog) error {
	old := s.current()
	s.stop()

	// A pending preview is not part of the saved state.
	old.CancelBuild()
	b, err := old.SaveState()
	if err != nil {
		s.start(ctx, old)
		return fmt.Errorf("save state: %w", err)
	}
	g := s.newGame(tune, cat)
	if err := g.RestoreState(b); err != nil {
		s.start(ctx, old)
		return fmt.Errorf("restore state: %w", err)
	}
	s.start(ctx, g)
	// Commands queued on the stopped loop, or sent before onSwap, run on g.
	old.Handoff(ctx, g)
	if s.onSwap != nil {
		s.onSwap(g)
	}
	s.logger.Printf("reloaded tick=%d tick_rate_hz=%d", g.CurrentTick(), g.TickRateHz())
	return nil
}

// watchReload reloads tuning and blueprints on SIGHUP.
func watchReload(ctx context.Context, s *session, configDir, tuningPath string, logger *log.Logger) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGHUP)
	defer signal.Stop(ch)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ch:
			tune, err := tuning.Load(tuningPath)
			if err != nil {
				logger.Printf("reload: tuning: %v", err)
				continue
			}
			cat, err := catalogs.Load(configDir)
			if err != nil {
				logger.Printf("reload: catalogs: %v", err)
				continue
			}
			if err := s.reload(ctx, tune, cat); err != nil {
				logger.Printf("reload: %v", err)
			}
		}
	}
}
