package station

import "stationsim.ai/internal/sim/tasks"

// subjectProgress scans modules, then each module's extensions, in
// collection order. The first id match wins.
func (s *Station) subjectProgress(id uint32) (*float64, tasks.Kind, bool) {
	if id == NoSubject {
		return nil, "", false
	}
	for mi := range s.modules {
		m := &s.modules[mi]
		if m.ID == id {
			return &m.BuildProgress, tasks.KindBuildModule, true
		}
		for ei := range m.Extensions {
			if m.Extensions[ei].ID == id {
				return &m.Extensions[ei].BuildProgress, tasks.KindBuildExtension, true
			}
		}
	}
	return nil, "", false
}

// Task describes what a building crew member works on this tick.
func (s *Station) Task(crewID uint32) (tasks.BuildTask, bool) {
	c, ok := s.CrewMember(crewID)
	if !ok || c.State != CrewBuilding {
		return tasks.BuildTask{}, false
	}
	_, kind, ok := s.subjectProgress(c.Subject)
	if !ok {
		return tasks.BuildTask{}, false
	}
	return tasks.BuildTask{Kind: kind, SubjectID: c.Subject, Rate: s.buildRate(kind)}, true
}

func (s *Station) buildRate(kind tasks.Kind) float64 {
	if kind == tasks.KindBuildModule {
		return s.tune.ModuleBuildRate
	}
	return s.tune.ExtensionBuildRate
}

// TickCrew advances every BUILDING crew member's subject by dt seconds of
// work. A member whose subject completes goes back to IDLE with no subject.
// It returns the ids of subjects completed this tick.
func (s *Station) TickCrew(dt float64) []uint32 {
	var completed []uint32
	for ci := range s.crew {
		c := &s.crew[ci]
		if c.State != CrewBuilding {
			continue
		}
		p, kind, ok := s.subjectProgress(c.Subject)
		if !ok {
			s.log.Printf("crew %d: subject %d no longer exists, going idle", c.ID, c.Subject)
			c.State = CrewIdle
			c.Subject = NoSubject
			continue
		}
		if *p >= 1 {
			// Finished by another builder earlier in this tick.
			c.State = CrewIdle
			c.Subject = NoSubject
			continue
		}
		next, done := tasks.Advance(*p, s.buildRate(kind), dt)
		*p = next
		if done {
			completed = append(completed, c.Subject)
			c.State = CrewIdle
			c.Subject = NoSubject
		}
	}
	return completed
}
