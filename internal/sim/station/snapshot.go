package station

import (
	"fmt"
	"math"

	"stationsim.ai/internal/persistence/snapshot"
	"stationsim.ai/internal/sim/catalogs"
	"stationsim.ai/internal/sim/scene"
)

// Export copies the whole station state into its persisted form.
func (s *Station) Export() snapshot.StationV1 {
	out := snapshot.StationV1{
		NextID:  s.nextID,
		Stats:   exportStats(s.stats),
		Crew:    make([]snapshot.CrewMemberV1, 0, len(s.crew)),
		Modules: make([]snapshot.ModuleV1, 0, len(s.modules)),
	}
	for _, c := range s.crew {
		out.Crew = append(out.Crew, snapshot.CrewMemberV1{
			ID:      c.ID,
			Name:    c.Name,
			State:   uint8(c.State),
			Subject: c.Subject,
		})
	}
	for _, m := range s.modules {
		mv := snapshot.ModuleV1{
			ID:            m.ID,
			Entity:        uint32(m.Entity),
			BuildProgress: m.BuildProgress,
			Extensions:    make([]snapshot.ExtensionV1, 0, len(m.Extensions)),
		}
		for _, ext := range m.Extensions {
			mv.Extensions = append(mv.Extensions, snapshot.ExtensionV1{
				ID:            ext.ID,
				Entity:        uint32(ext.Entity),
				BuildProgress: ext.BuildProgress,
				Blueprint:     uint16(ext.Blueprint),
			})
		}
		out.Modules = append(out.Modules, mv)
	}
	return out
}

// Import replaces the station state with snap. Nothing is changed when snap
// is inconsistent.
func (s *Station) Import(snap snapshot.StationV1) error {
	seen := map[uint32]bool{}
	claim := func(kind string, id uint32) error {
		if id == NoSubject || id > snap.NextID {
			return fmt.Errorf("%s id %d out of range (next_id=%d)", kind, id, snap.NextID)
		}
		if seen[id] {
			return fmt.Errorf("duplicate id %d", id)
		}
		seen[id] = true
		return nil
	}

	modules := make([]Module, 0, len(snap.Modules))
	for _, mv := range snap.Modules {
		if err := claim("module", mv.ID); err != nil {
			return err
		}
		if !validProgress(mv.BuildProgress) {
			return fmt.Errorf("module %d: build progress %v out of range", mv.ID, mv.BuildProgress)
		}
		m := Module{ID: mv.ID, Entity: scene.Entity(mv.Entity), BuildProgress: mv.BuildProgress}
		for _, ev := range mv.Extensions {
			if err := claim("extension", ev.ID); err != nil {
				return err
			}
			if !validProgress(ev.BuildProgress) {
				return fmt.Errorf("extension %d: build progress %v out of range", ev.ID, ev.BuildProgress)
			}
			if int(ev.Blueprint) >= s.catalog.Len() {
				return fmt.Errorf("extension %d: unknown blueprint handle %d", ev.ID, ev.Blueprint)
			}
			m.Extensions = append(m.Extensions, Extension{
				ID:            ev.ID,
				Entity:        scene.Entity(ev.Entity),
				BuildProgress: ev.BuildProgress,
				Blueprint:     catalogs.Handle(ev.Blueprint),
			})
		}
		modules = append(modules, m)
	}

	crew := make([]CrewMember, 0, len(snap.Crew))
	for _, cv := range snap.Crew {
		if err := claim("crew", cv.ID); err != nil {
			return err
		}
		c := CrewMember{ID: cv.ID, Name: cv.Name, State: CrewState(cv.State), Subject: cv.Subject}
		switch c.State {
		case CrewIdle:
			if c.Subject != NoSubject {
				return fmt.Errorf("crew %d: idle with subject %d", c.ID, c.Subject)
			}
		case CrewBuilding:
			if c.Subject == NoSubject {
				return fmt.Errorf("crew %d: building without subject", c.ID)
			}
		default:
			return fmt.Errorf("crew %d: bad state %d", c.ID, cv.State)
		}
		crew = append(crew, c)
	}

	s.nextID = snap.NextID
	s.modules = modules
	s.crew = crew
	s.stats = importStats(snap.Stats)
	return nil
}

func validProgress(p float64) bool {
	return !math.IsNaN(p) && p >= 0 && p <= 1
}

func exportResources(r Resources) snapshot.ResourcesV1 {
	return snapshot.ResourcesV1{Air: r.Air, Power: r.Power, Heat: r.Heat, Water: r.Water, Food: r.Food, Fuel: r.Fuel}
}

func importResources(r snapshot.ResourcesV1) Resources {
	return Resources{Air: r.Air, Power: r.Power, Heat: r.Heat, Water: r.Water, Food: r.Food, Fuel: r.Fuel}
}

func exportStats(st Stats) snapshot.StatsV1 {
	return snapshot.StatsV1{
		Production:     exportResources(st.Production),
		Consumption:    exportResources(st.Consumption),
		Stored:         snapshot.StorageV1(st.Stored),
		StorageSpace:   snapshot.StorageV1(st.StorageSpace),
		Volume:         st.Volume,
		OccupiedVolume: st.OccupiedVolume,
		Efficiency:     st.Efficiency,
	}
}

func importStats(st snapshot.StatsV1) Stats {
	return Stats{
		Production:     importResources(st.Production),
		Consumption:    importResources(st.Consumption),
		Stored:         Storage(st.Stored),
		StorageSpace:   Storage(st.StorageSpace),
		Volume:         st.Volume,
		OccupiedVolume: st.OccupiedVolume,
		Efficiency:     st.Efficiency,
	}
}
