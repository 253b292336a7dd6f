package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"stationsim.ai/internal/persistence/indexdb"
	"stationsim.ai/internal/protocol"
	"stationsim.ai/internal/sim/game"
	"stationsim.ai/internal/transport/ws"
)

type gaugeSample struct {
	tick      uint64
	started   bool
	timeScale float64
	modules   int
	crew      int
	building  int
	stats     protocol.StationStats
}

func sampleGame(ctx context.Context, g *game.Game) (gaugeSample, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	var s gaugeSample
	err := g.Do(ctx, func(g *game.Game) {
		s.tick = g.CurrentTick()
		s.started = g.Started()
		s.timeScale = g.TimeScale()
		s.stats = g.StationStats()
		for _, c := range g.Crew() {
			s.crew++
			if c.State != "idle" {
				s.building++
			}
		}
		if st := g.Station(); st != nil {
			s.modules = len(st.Modules())
		}
	})
	return s, err
}

// writeMetrics renders a minimal Prometheus exposition.
func writeMetrics(ctx context.Context, w io.Writer, stationID string, g *game.Game, wst ws.Stats, ist indexdb.QueueStats) {
	if s, err := sampleGame(ctx, g); err == nil {
		started := 0
		if s.started {
			started = 1
		}
		fmt.Fprintf(w, "# HELP stationsim_tick Current simulation tick.\n")
		fmt.Fprintf(w, "# TYPE stationsim_tick gauge\n")
		fmt.Fprintf(w, "stationsim_tick{station=%q} %d\n", stationID, s.tick)

		fmt.Fprintf(w, "# HELP stationsim_started Whether the game is running.\n")
		fmt.Fprintf(w, "# TYPE stationsim_started gauge\n")
		fmt.Fprintf(w, "stationsim_started{station=%q} %d\n", stationID, started)

		fmt.Fprintf(w, "# HELP stationsim_time_scale Simulation speed multiplier.\n")
		fmt.Fprintf(w, "# TYPE stationsim_time_scale gauge\n")
		fmt.Fprintf(w, "stationsim_time_scale{station=%q} %g\n", stationID, s.timeScale)

		fmt.Fprintf(w, "# HELP stationsim_modules Modules in the station.\n")
		fmt.Fprintf(w, "# TYPE stationsim_modules gauge\n")
		fmt.Fprintf(w, "stationsim_modules{station=%q} %d\n", stationID, s.modules)

		fmt.Fprintf(w, "# HELP stationsim_crew Crew members by state.\n")
		fmt.Fprintf(w, "# TYPE stationsim_crew gauge\n")
		fmt.Fprintf(w, "stationsim_crew{station=%q,state=%q} %d\n", stationID, "idle", s.crew-s.building)
		fmt.Fprintf(w, "stationsim_crew{station=%q,state=%q} %d\n", stationID, "building", s.building)

		fmt.Fprintf(w, "# HELP stationsim_efficiency Production efficiency (0..1).\n")
		fmt.Fprintf(w, "# TYPE stationsim_efficiency gauge\n")
		fmt.Fprintf(w, "stationsim_efficiency{station=%q} %.6f\n", stationID, s.stats.Efficiency)

		fmt.Fprintf(w, "# HELP stationsim_stored Stored resources.\n")
		fmt.Fprintf(w, "# TYPE stationsim_stored gauge\n")
		for _, r := range []struct {
			name string
			v    float64
		}{
			{"food", s.stats.Stored.Food},
			{"water", s.stats.Stored.Water},
			{"fuel", s.stats.Stored.Fuel},
			{"materials", s.stats.Stored.Materials},
		} {
			fmt.Fprintf(w, "stationsim_stored{station=%q,resource=%q} %.3f\n", stationID, r.name, r.v)
		}
	}

	fmt.Fprintf(w, "# HELP stationsim_ws_clients Connected websocket clients.\n")
	fmt.Fprintf(w, "# TYPE stationsim_ws_clients gauge\n")
	fmt.Fprintf(w, "stationsim_ws_clients %d\n", wst.Clients)

	fmt.Fprintf(w, "# HELP stationsim_ws_commands_total Commands handled.\n")
	fmt.Fprintf(w, "# TYPE stationsim_ws_commands_total counter\n")
	fmt.Fprintf(w, "stationsim_ws_commands_total %d\n", wst.Commands)
	fmt.Fprintf(w, "stationsim_ws_command_errors_total %d\n", wst.Errors)
	fmt.Fprintf(w, "stationsim_ws_rate_limited_total %d\n", wst.RateLimited)

	fmt.Fprintf(w, "# HELP stationsim_index_queue_depth Index write queue backlog.\n")
	fmt.Fprintf(w, "# TYPE stationsim_index_queue_depth gauge\n")
	fmt.Fprintf(w, "stationsim_index_queue_depth %d\n", ist.QueueDepth)
	fmt.Fprintf(w, "stationsim_index_dropped_total{kind=%q} %d\n", "stats", ist.DropStatsTotal)
	fmt.Fprintf(w, "stationsim_index_dropped_total{kind=%q} %d\n", "assignment", ist.DropAssignmentTotal)
	fmt.Fprintf(w, "stationsim_index_dropped_total{kind=%q} %d\n", "snapshot", ist.DropSnapshotTotal)
}
