package game

import (
	"fmt"

	"stationsim.ai/internal/persistence/snapshot"
	"stationsim.ai/internal/sim/scene"
)

// ExportSnapshot captures the session for a hot reload. Entity references are
// stored as-is; they stay valid as long as the scene itself survives.
func (g *Game) ExportSnapshot() snapshot.SnapshotV1 {
	s := snapshot.SnapshotV1{
		Header: snapshot.Header{
			Version:       snapshot.Version,
			StationID:     g.stationID,
			RunID:         g.runID,
			Tick:          g.tick,
			CatalogDigest: g.catalog.Digest,
		},
		GameStarted: g.started,
		TimeScale:   g.timeScale,
		OrbitAngle:  g.angle,
		RefPoint:    uint32(g.refPoint),
		Camera:      uint32(g.camera),
		HUD:         uint32(g.hud),
		Selected:    g.selected,
	}
	if g.station != nil {
		s.Station = g.station.Export()
	}
	return s
}

// ImportSnapshot replaces the session state. A pending build preview is
// discarded and held input is released.
//
// This must be called only when the loop is stopped or from the loop
// goroutine.
func (g *Game) ImportSnapshot(s snapshot.SnapshotV1) error {
	if s.Header.Version != snapshot.Version {
		return fmt.Errorf("unsupported snapshot version: %d", s.Header.Version)
	}
	if s.Header.CatalogDigest != "" && s.Header.CatalogDigest != g.catalog.Digest {
		return fmt.Errorf("blueprint catalog mismatch: snapshot=%s current=%s", s.Header.CatalogDigest, g.catalog.Digest)
	}
	if s.TimeScale <= 0 || s.TimeScale > g.tune.MaxTimeScale {
		return fmt.Errorf("time scale %v out of range", s.TimeScale)
	}

	st := g.newStation(scene.Entity(s.RefPoint))
	if err := st.Import(s.Station); err != nil {
		return fmt.Errorf("import station: %w", err)
	}

	g.CancelBuild()
	g.input.Reset()
	g.station = st
	g.started = s.GameStarted
	g.timeScale = s.TimeScale
	g.angle = wrapAngle(s.OrbitAngle)
	g.tick = s.Header.Tick
	g.refPoint = scene.Entity(s.RefPoint)
	g.camera = scene.Entity(s.Camera)
	g.hud = scene.Entity(s.HUD)
	g.applied = nil
	g.completed = nil

	if _, ok := st.Module(s.Selected); ok && s.Selected != 0 {
		g.selectModule(s.Selected)
	} else {
		g.deselect()
	}
	return nil
}

// SaveState serializes the session into a flat buffer.
func (g *Game) SaveState() ([]byte, error) {
	return snapshot.Encode(g.ExportSnapshot())
}

// RestoreState is the inverse of SaveState.
func (g *Game) RestoreState(b []byte) error {
	s, err := snapshot.Decode(b)
	if err != nil {
		return err
	}
	return g.ImportSnapshot(s)
}
