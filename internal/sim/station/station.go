package station

import (
	"fmt"
	"io"
	"log"

	"stationsim.ai/internal/sim/catalogs"
	"stationsim.ai/internal/sim/mathx"
	"stationsim.ai/internal/sim/scene"
	"stationsim.ai/internal/sim/tuning"
)

// Station is the aggregate root: the only place modules, extensions and crew
// are created. It is not safe for concurrent use; the owning game loop
// serializes all calls.
type Station struct {
	tune    tuning.Tuning
	catalog *catalogs.Catalog
	scene   scene.Scene
	frame   scene.Entity
	log     *log.Logger

	// nextID feeds the module, extension and crew namespaces. Ids are never
	// reused for the lifetime of the station.
	nextID uint32

	modules []Module
	crew    []CrewMember
	stats   Stats
}

type Config struct {
	Tuning  tuning.Tuning
	Catalog *catalogs.Catalog
	Scene   scene.Scene
	// Frame is the station reference entity new modules are parented to.
	Frame  scene.Entity
	Logger *log.Logger
}

func New(cfg Config) *Station {
	if cfg.Catalog == nil {
		panic("station: nil catalog")
	}
	if cfg.Scene == nil {
		panic("station: nil scene")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Station{
		tune:    cfg.Tuning,
		catalog: cfg.Catalog,
		scene:   cfg.Scene,
		frame:   cfg.Frame,
		log:     logger,
	}
}

func (s *Station) Catalog() *catalogs.Catalog { return s.catalog }
func (s *Station) Frame() scene.Entity        { return s.frame }
func (s *Station) Stats() Stats               { return s.stats }

func (s *Station) newID() uint32 {
	s.nextID++
	if s.nextID == NoSubject {
		panic("station: id space exhausted")
	}
	return s.nextID
}

// AddModule instantiates template and registers a new, unbuilt module at the
// station frame origin. Template failures are fatal.
func (s *Station) AddModule(template string) Module {
	e, err := s.scene.Instantiate(template, mathx.IdentityTransform)
	if err != nil {
		panic(fmt.Sprintf("station: add module: %v", err))
	}
	if s.frame.Valid() {
		s.scene.SetParent(s.frame, e)
	}
	s.scene.SetLocalPosition(e, mathx.Vec3{})

	s.modules = append(s.modules, Module{ID: s.newID(), Entity: e})
	return s.modules[len(s.modules)-1].clone()
}

// AddExtension appends a new, unbuilt extension to the module. When the
// blueprint has a visual it is parented under anchor with an identity local
// transform. Unknown modules or blueprints are fatal.
func (s *Station) AddExtension(moduleID uint32, blueprintID string, anchor scene.Entity) Extension {
	mi := s.moduleIndex(moduleID)
	if mi < 0 {
		panic(fmt.Sprintf("station: add extension: unknown module %d", moduleID))
	}
	h := s.catalog.MustHandle(blueprintID)
	def := s.catalog.Get(h)

	ext := Extension{Blueprint: h}
	if def.Pinned() {
		e, err := s.scene.Instantiate(def.Prefab, mathx.IdentityTransform)
		if err != nil {
			panic(fmt.Sprintf("station: add extension %s: %v", blueprintID, err))
		}
		if anchor.Valid() {
			s.scene.SetParent(anchor, e)
			s.scene.SetLocalTransform(e, mathx.IdentityTransform)
		}
		ext.Entity = e
	}
	ext.ID = s.newID()

	m := &s.modules[mi]
	m.Extensions = append(m.Extensions, ext)
	return ext
}

func (s *Station) AddCrew(name string) CrewMember {
	c := CrewMember{ID: s.newID(), Name: name, State: CrewIdle, Subject: NoSubject}
	s.crew = append(s.crew, c)
	return c
}

// AssignBuilder puts a crew member to work on subjectID. Stale ids coming
// from the UI are logged and leave the station untouched.
func (s *Station) AssignBuilder(subjectID, crewID uint32) error {
	ci := s.crewIndex(crewID)
	if ci < 0 {
		s.log.Printf("assign builder: invalid crew member %d", crewID)
		return fmt.Errorf("assign builder: %w: %d", ErrUnknownCrew, crewID)
	}
	p, _, ok := s.subjectProgress(subjectID)
	if !ok || *p >= 1 {
		s.log.Printf("assign builder: crew %d: invalid subject %d", crewID, subjectID)
		return fmt.Errorf("assign builder: %w: %d", ErrInvalidSubject, subjectID)
	}
	c := &s.crew[ci]
	c.State = CrewBuilding
	c.Subject = subjectID
	return nil
}

// SetBuildProgress overrides progress during scenario setup. Values are
// clamped to [0,1].
func (s *Station) SetBuildProgress(id uint32, progress float64) bool {
	p, _, ok := s.subjectProgress(id)
	if !ok {
		return false
	}
	*p = mathx.Clamp(progress, 0, 1)
	return true
}

// GetModule finds the module whose root entity is e.
func (s *Station) GetModule(e scene.Entity) (Module, bool) {
	for _, m := range s.modules {
		if m.Entity == e {
			return m.clone(), true
		}
	}
	return Module{}, false
}

// ModuleOwning finds the module whose root or one of whose extensions is e.
func (s *Station) ModuleOwning(e scene.Entity) (Module, bool) {
	if !e.Valid() {
		return Module{}, false
	}
	for _, m := range s.modules {
		if m.Entity == e {
			return m.clone(), true
		}
		for _, ext := range m.Extensions {
			if ext.Entity == e {
				return m.clone(), true
			}
		}
	}
	return Module{}, false
}

func (s *Station) Module(id uint32) (Module, bool) {
	if i := s.moduleIndex(id); i >= 0 {
		return s.modules[i].clone(), true
	}
	return Module{}, false
}

func (s *Station) Extension(id uint32) (Extension, bool) {
	for _, m := range s.modules {
		for _, ext := range m.Extensions {
			if ext.ID == id {
				return ext, true
			}
		}
	}
	return Extension{}, false
}

func (s *Station) Modules() []Module {
	out := make([]Module, len(s.modules))
	for i, m := range s.modules {
		out[i] = m.clone()
	}
	return out
}

func (s *Station) Crew() []CrewMember {
	return append([]CrewMember(nil), s.crew...)
}

func (s *Station) CrewMember(id uint32) (CrewMember, bool) {
	if i := s.crewIndex(id); i >= 0 {
		return s.crew[i], true
	}
	return CrewMember{}, false
}

// Builder returns the crew member currently building subjectID.
func (s *Station) Builder(subjectID uint32) (uint32, bool) {
	for _, c := range s.crew {
		if c.State == CrewBuilding && c.Subject == subjectID {
			return c.ID, true
		}
	}
	return 0, false
}

func (s *Station) moduleIndex(id uint32) int {
	for i := range s.modules {
		if s.modules[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Station) crewIndex(id uint32) int {
	for i := range s.crew {
		if s.crew[i].ID == id {
			return i
		}
	}
	return -1
}
