package game

import (
	"fmt"

	"stationsim.ai/internal/protocol"
	"stationsim.ai/internal/sim/catalogs"
	"stationsim.ai/internal/sim/scene"
	"stationsim.ai/internal/sim/station"
)

// Facade is what UI scripts and remote clients may call. It exchanges plain
// protocol records only.
type Facade interface {
	StationStats() protocol.StationStats
	Crew() []protocol.CrewMember
	Module(entity uint32) (protocol.Module, bool)
	Blueprints() []protocol.Blueprint
	Signal(name string) error
	AssignBuilder(subjectID, crewID uint32) error
	OnGUIEvent(ev string) error
}

var _ Facade = (*Game)(nil)

func (g *Game) StationStats() protocol.StationStats { return g.stats() }

func (g *Game) Crew() []protocol.CrewMember {
	if g.station == nil {
		return nil
	}
	crew := g.station.Crew()
	out := make([]protocol.CrewMember, 0, len(crew))
	for _, c := range crew {
		out = append(out, protocol.CrewMember{
			ID:      c.ID,
			Name:    c.Name,
			State:   c.State.String(),
			Subject: c.Subject,
		})
	}
	return out
}

// Module returns the module whose root entity is entity.
func (g *Game) Module(entity uint32) (protocol.Module, bool) {
	if g.station == nil {
		return protocol.Module{}, false
	}
	m, ok := g.station.GetModule(scene.Entity(entity))
	if !ok {
		return protocol.Module{}, false
	}
	out := protocol.Module{
		ID:            m.ID,
		Entity:        uint32(m.Entity),
		BuildProgress: m.BuildProgress,
		Extensions:    make([]protocol.Extension, 0, len(m.Extensions)),
	}
	for _, ext := range m.Extensions {
		builder := int64(-1)
		if id, ok := g.station.Builder(ext.ID); ok {
			builder = int64(id)
		}
		out.Extensions = append(out.Extensions, protocol.Extension{
			ID:            ext.ID,
			Entity:        uint32(ext.Entity),
			Type:          g.catalog.Get(ext.Blueprint).ID,
			Builder:       builder,
			BuildProgress: ext.BuildProgress,
		})
	}
	return out, true
}

func (g *Game) Blueprints() []protocol.Blueprint {
	defs := g.catalog.All()
	out := make([]protocol.Blueprint, 0, len(defs))
	for _, d := range defs {
		out = append(out, blueprintRecord(d))
	}
	return out
}

// AssignBuilder puts crew member crewID to work on subjectID. Stale or
// invalid ids are logged and rejected without touching state.
func (g *Game) AssignBuilder(subjectID, crewID uint32) error {
	if g.station == nil {
		return ErrNotStarted
	}
	err := g.station.AssignBuilder(subjectID, crewID)
	if g.indexer != nil {
		g.indexer.RecordAssignment(g.tick, crewID, subjectID, err == nil)
	}
	if err != nil {
		return err
	}
	g.record(fmt.Sprintf("assign crew %d to %d", crewID, subjectID))
	return nil
}

func flow(f catalogs.Flow) protocol.Flow {
	return protocol.Flow{Production: f.Production, Consumption: f.Consumption}
}

func blueprintRecord(d catalogs.BlueprintDef) protocol.Blueprint {
	return protocol.Blueprint{
		ID:           d.ID,
		Label:        d.Label,
		Description:  d.Description,
		Pinned:       d.Pinned(),
		Power:        flow(d.Power),
		Heat:         flow(d.Heat),
		Water:        flow(d.Water),
		Food:         flow(d.Food),
		Air:          flow(d.Air),
		Volume:       d.Volume,
		MaterialCost: d.MaterialCost,
		BuildTime:    d.BuildTime,
	}
}

func resourcesRecord(r station.Resources) protocol.Resources {
	return protocol.Resources{Air: r.Air, Power: r.Power, Heat: r.Heat, Water: r.Water, Food: r.Food, Fuel: r.Fuel}
}

func storageRecord(s station.Storage) protocol.Storage {
	return protocol.Storage{Food: s.Food, Water: s.Water, Fuel: s.Fuel, Materials: s.Materials}
}

func statsRecord(st station.Stats) protocol.StationStats {
	return protocol.StationStats{
		Production:     resourcesRecord(st.Production),
		Consumption:    resourcesRecord(st.Consumption),
		Stored:         storageRecord(st.Stored),
		StorageSpace:   storageRecord(st.StorageSpace),
		Volume:         st.Volume,
		OccupiedVolume: st.OccupiedVolume,
		Efficiency:     st.Efficiency,
	}
}
