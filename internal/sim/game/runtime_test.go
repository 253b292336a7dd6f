package game

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stationsim.ai/internal/persistence/snapshot"
	"stationsim.ai/internal/protocol"
	"stationsim.ai/internal/sim/tuning"
)

type fakeTickLogger struct {
	entries []TickLogEntry
	err     error
}

func (f *fakeTickLogger) WriteTick(e TickLogEntry) error {
	f.entries = append(f.entries, e)
	return f.err
}

type fakeIndexer struct {
	stats       []uint64
	assignments int
}

func (f *fakeIndexer) RecordStats(tick uint64, _ protocol.StationStats) {
	f.stats = append(f.stats, tick)
}

func (f *fakeIndexer) RecordAssignment(uint64, uint32, uint32, bool) { f.assignments++ }

func hookTuning() tuning.Tuning {
	tune := tuning.Defaults()
	tune.LogEveryTicks = 2
	tune.IndexEveryTicks = 3
	tune.SnapshotEveryTicks = 4
	return tune
}

func TestStepOnceHooks(t *testing.T) {
	g, _ := newTestGameWith(t, hookTuning())
	logger := &fakeTickLogger{}
	ix := &fakeIndexer{}
	snaps := make(chan snapshot.SnapshotV1, 8)
	g.SetTickLogger(logger)
	g.SetIndexer(ix)
	g.SetSnapshotSink(snaps)

	// Nothing is recorded before the game starts.
	g.StepOnce(0.05)
	assert.Zero(t, g.CurrentTick())
	assert.Empty(t, logger.entries)

	g.StartGame()
	require.NoError(t, g.OnGUIEvent("set_time_scale 2"))
	for i := 0; i < 12; i++ {
		g.StepOnce(0.05)
	}
	assert.Equal(t, uint64(12), g.CurrentTick())

	require.Len(t, logger.entries, 6)
	assert.Equal(t, uint64(2), logger.entries[0].Tick)
	assert.Equal(t, []string{"set_time_scale 2"}, logger.entries[0].Commands)
	assert.Equal(t, 2.0, logger.entries[0].TimeScale)
	assert.Empty(t, logger.entries[1].Commands)

	assert.Equal(t, []uint64{3, 6, 9, 12}, ix.stats)
	assert.Len(t, snaps, 3)
	s := <-snaps
	assert.Equal(t, uint64(4), s.Header.Tick)
}

func TestStepOnceReportsCompletionsInTickLog(t *testing.T) {
	g, _ := newTestGameWith(t, hookTuning())
	logger := &fakeTickLogger{}
	ix := &fakeIndexer{}
	g.SetTickLogger(logger)
	g.SetIndexer(ix)
	g.StartGame()

	solar := starterModule(t, g).Extensions[0]
	require.NoError(t, g.AssignBuilder(solar.ID, g.Crew()[0].ID))
	assert.Equal(t, 1, ix.assignments)

	var completed []uint32
	for i := 0; i < 400; i++ {
		g.StepOnce(0.05)
	}
	for _, e := range logger.entries {
		completed = append(completed, e.Completed...)
	}
	assert.Equal(t, []uint32{solar.ID}, completed)
}

func TestTickLoggerErrorDoesNotStopTheLoop(t *testing.T) {
	g, _ := newTestGameWith(t, hookTuning())
	logger := &fakeTickLogger{err: errors.New("disk full")}
	g.SetTickLogger(logger)
	g.StartGame()
	for i := 0; i < 4; i++ {
		g.StepOnce(0.05)
	}
	assert.Len(t, logger.entries, 2)
	assert.Equal(t, uint64(4), g.CurrentTick())
}

func TestSnapshotSinkDropsWhenFull(t *testing.T) {
	g, _ := newTestGameWith(t, hookTuning())
	snaps := make(chan snapshot.SnapshotV1, 1)
	g.SetSnapshotSink(snaps)
	g.StartGame()
	for i := 0; i < 12; i++ {
		g.StepOnce(0.05)
	}
	assert.Len(t, snaps, 1)

	_, err := g.RequestSnapshot()
	assert.ErrorContains(t, err, "busy")
	<-snaps
	h, err := g.RequestSnapshot()
	require.NoError(t, err)
	assert.Equal(t, uint64(12), h.Tick)
}

func TestRequestSnapshotWithoutSink(t *testing.T) {
	g, _ := startedGame(t)
	_, err := g.RequestSnapshot()
	assert.Error(t, err)
}

func TestRunServesDoBetweenTicks(t *testing.T) {
	tune := tuning.Defaults()
	tune.TickRateHz = 200
	g, _ := newTestGameWith(t, tune)
	g.StartGame()

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- g.Run(ctx) }()

	assert.Eventually(t, func() bool {
		var tick uint64
		assert.NoError(t, g.Do(ctx, func(g *Game) { tick = g.CurrentTick() }))
		return tick >= 5
	}, 2*time.Second, 10*time.Millisecond)

	var crew int
	require.NoError(t, g.Do(ctx, func(g *Game) { crew = len(g.Crew()) }))
	assert.Equal(t, 2, crew)

	cancel()
	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}

func TestRunStop(t *testing.T) {
	g, _ := newTestGame(t)
	errc := make(chan error, 1)
	go func() { errc <- g.Run(context.Background()) }()
	g.Stop()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not return after stop")
	}
}

func TestDoHonoursContext(t *testing.T) {
	g, _ := newTestGame(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// No loop is running, but the inbox is buffered; the wait still ends.
	err := g.Do(ctx, func(*Game) {})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunRejectsZeroTickRate(t *testing.T) {
	tune := tuning.Defaults()
	tune.TickRateHz = 0
	g, _ := newTestGameWith(t, tune)
	assert.Error(t, g.Run(context.Background()))
}

func TestHandoffForwardsQueuedRequests(t *testing.T) {
	old, _ := startedGame(t)
	next, _ := startedGame(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	errc := make(chan error, 1)
	go func() { errc <- next.Run(ctx) }()

	ran := make(chan *Game, 2)
	queued := make(chan error, 1)
	go func() { queued <- old.Do(ctx, func(g *Game) { ran <- g }) }()
	require.Eventually(t, func() bool { return len(old.inbox) == 1 }, 2*time.Second, time.Millisecond)

	old.Handoff(ctx, next)
	require.NoError(t, <-queued)
	assert.Same(t, next, <-ran)

	// Callers still holding the retired game reach the successor.
	require.NoError(t, old.Do(ctx, func(g *Game) { ran <- g }))
	assert.Same(t, next, <-ran)
	assert.Empty(t, old.inbox)

	cancel()
	assert.ErrorIs(t, <-errc, context.Canceled)
}

func TestHandoffRejectsMissingSuccessor(t *testing.T) {
	g, _ := newTestGame(t)
	assert.Panics(t, func() { g.Handoff(context.Background(), nil) })
	assert.Panics(t, func() { g.Handoff(context.Background(), g) })
}
