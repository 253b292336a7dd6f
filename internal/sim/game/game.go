// Package game is the session layer around the station model: it owns the
// orbit rig, camera and input state, build previews, selection and GUI
// events, and drives the station simulation from a single loop goroutine.
package game

import (
	"errors"
	"io"
	"log"
	"math"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"stationsim.ai/internal/persistence/snapshot"
	"stationsim.ai/internal/protocol"
	"stationsim.ai/internal/sim/catalogs"
	"stationsim.ai/internal/sim/mathx"
	"stationsim.ai/internal/sim/scene"
	"stationsim.ai/internal/sim/station"
	"stationsim.ai/internal/sim/tuning"
)

var (
	ErrNotStarted       = errors.New("game not started")
	ErrUnknownEvent     = errors.New("unknown gui event")
	ErrUnknownSignal    = errors.New("unknown signal")
	ErrNoSelection      = errors.New("no module selected")
	ErrBuildPending     = errors.New("a build is already pending")
	ErrBadEventArgument = errors.New("bad event argument")
)

type Config struct {
	StationID string
	Tuning    tuning.Tuning
	Catalog   *catalogs.Catalog
	Engine    scene.Engine
	Logger    *log.Logger
}

// TickLogger receives a compact record of simulated ticks. Implemented in
// internal/persistence/log.
type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

// Indexer receives queryable history. Implemented in
// internal/persistence/indexdb.
type Indexer interface {
	RecordStats(tick uint64, stats protocol.StationStats)
	RecordAssignment(tick uint64, crewID, subjectID uint32, accepted bool)
}

type TickLogEntry struct {
	Tick      uint64                `json:"tick"`
	TimeScale float64               `json:"time_scale"`
	Stats     protocol.StationStats `json:"stats"`
	Completed []uint32              `json:"completed,omitempty"`
	Commands  []string              `json:"commands,omitempty"`
}

// Game is a single-threaded session. All state must be accessed only from the
// loop goroutine (Run) or, when no loop runs, from the calling goroutine.
type Game struct {
	stationID string
	runID     string
	tune      tuning.Tuning
	catalog   *catalogs.Catalog
	eng       scene.Engine
	log       *log.Logger

	station *station.Station
	started bool

	timeScale float64
	angle     float64
	tick      uint64

	refPoint scene.Entity
	camera   scene.Entity
	hud      scene.Entity

	// selected is a module id; 0 means nothing is selected.
	selected uint32
	input    InputState
	preview  buildPreview

	// Commands applied since the last tick log entry.
	applied   []string
	completed []uint32

	tickLogger   TickLogger
	indexer      Indexer
	snapshotSink chan<- snapshot.SnapshotV1

	inbox chan request
	stop  chan struct{}

	// Set once by Handoff; Do calls then run on the successor.
	next       atomic.Pointer[Game]
	retired    chan struct{}
	retireOnce sync.Once
}

func New(cfg Config) *Game {
	if cfg.Catalog == nil {
		panic("game: nil catalog")
	}
	if cfg.Engine.Scene == nil {
		panic("game: nil scene")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	id := cfg.StationID
	if id == "" {
		id = "station_1"
	}
	return &Game{
		stationID: id,
		runID:     uuid.NewString(),
		tune:      cfg.Tuning,
		catalog:   cfg.Catalog,
		eng:       cfg.Engine,
		log:       logger,
		timeScale: 1,
		inbox:     make(chan request, 256),
		stop:      make(chan struct{}),
		retired:   make(chan struct{}),
	}
}

func (g *Game) SetTickLogger(l TickLogger) { g.tickLogger = l }
func (g *Game) SetIndexer(ix Indexer)      { g.indexer = ix }

// SetSnapshotSink receives a snapshot every snapshot_every_ticks ticks.
// Writing should happen off the loop goroutine.
func (g *Game) SetSnapshotSink(ch chan<- snapshot.SnapshotV1) { g.snapshotSink = ch }

func (g *Game) StationID() string          { return g.stationID }
func (g *Game) RunID() string              { return g.runID }
func (g *Game) Started() bool              { return g.started }
func (g *Game) TimeScale() float64         { return g.timeScale }
func (g *Game) OrbitAngle() float64        { return g.angle }
func (g *Game) CurrentTick() uint64        { return g.tick }
func (g *Game) Catalog() *catalogs.Catalog { return g.catalog }
func (g *Game) TickRateHz() int            { return g.tune.TickRateHz }

// Station is nil until StartGame or RestoreState.
func (g *Game) Station() *station.Station { return g.station }

// Selected returns the selected module id.
func (g *Game) Selected() (uint32, bool) { return g.selected, g.selected != 0 }

func (g *Game) newStation(frame scene.Entity) *station.Station {
	return station.New(station.Config{
		Tuning:  g.tune,
		Catalog: g.catalog,
		Scene:   g.eng.Scene,
		Frame:   frame,
		Logger:  g.log,
	})
}

func (g *Game) resolveRig() {
	sc := g.eng.Scene
	g.refPoint = sc.FindByName(scene.NoEntity, EntityRefPoint)
	if !g.refPoint.Valid() {
		panic("game: scene has no " + EntityRefPoint)
	}
	g.camera = sc.FindByName(g.refPoint, EntityCamera)
	if !g.camera.Valid() {
		panic("game: reference point has no " + EntityCamera)
	}
	g.hud = sc.FindByName(scene.NoEntity, EntityHUD)
}

// StartGame builds the starter station: one complete module, a solar panel
// waiting to be built on its first extension anchor, life support already
// running, and the starter crew.
func (g *Game) StartGame() {
	if g.started {
		g.log.Printf("start game: already started")
		return
	}
	g.angle = 0.5 * math.Pi
	g.resolveRig()
	g.station = g.newStation(g.refPoint)
	st := g.station

	m := st.AddModule(TemplateModule2)
	g.eng.Scene.SetRotation(m.Entity, starterRotation)
	st.SetBuildProgress(m.ID, 1)

	pin := g.eng.Scene.FindByName(m.Entity, "ext_0")
	solar := st.AddExtension(m.ID, catalogs.SolarPanel, pin)
	st.SetBuildProgress(solar.ID, 0)
	for _, id := range []string{catalogs.AirRecycler, catalogs.Toilet, catalogs.SleepingQuarter} {
		ext := st.AddExtension(m.ID, id, scene.NoEntity)
		st.SetBuildProgress(ext.ID, 1)
	}
	for _, name := range g.tune.StarterCrew {
		st.AddCrew(name)
	}
	s := g.tune.StarterStorage
	st.SetStored(station.Storage{Food: s.Food, Water: s.Water, Fuel: s.Fuel, Materials: s.Materials})
	// Capacities must be known before the first tick reads the stats.
	st.ComputeStats(0)

	g.input.Reset()
	g.selected = 0
	if gui := g.eng.GUI; gui != nil {
		gui.SetVisible(RectHUD, true)
		gui.SetVisible(RectModulePanel, false)
	}
	g.started = true
	g.log.Printf("game started: station=%s run=%s crew=%d", g.stationID, g.runID, len(g.tune.StarterCrew))
}

// StopGame pauses the session. The station is kept so it can still be
// inspected or saved.
func (g *Game) StopGame() {
	if !g.started {
		return
	}
	g.CancelBuild()
	g.started = false
	if gui := g.eng.GUI; gui != nil {
		gui.SetVisible(RectHUD, false)
		gui.SetVisible(RectModulePanel, false)
	}
	g.log.Printf("game stopped at tick %d", g.tick)
}

// Update advances the session by dt simulated seconds: orbit, camera, crew
// work, economy, then the build preview.
func (g *Game) Update(dt float64) station.StepResult {
	if !g.started {
		return station.StepResult{}
	}
	g.updateOrbit(dt)
	g.updateCamera(dt)
	res := g.station.Step(dt)
	g.completed = append(g.completed, res.Completed...)
	if g.preview.active() && g.eng.GUI != nil {
		g.UpdatePreview(g.eng.GUI.CursorPosition())
	}
	return res
}

// Tick advances by dt real seconds scaled by the time multiplier.
func (g *Game) Tick(dt float64) station.StepResult {
	return g.Update(dt * g.timeScale)
}

// SetTimeScale sets the simulation time multiplier, clamped to
// (0, max_time_scale].
func (g *Game) SetTimeScale(f float64) error {
	if !(f > 0) || f > g.tune.MaxTimeScale {
		return ErrBadEventArgument
	}
	g.timeScale = f
	return nil
}

func (g *Game) updateOrbit(dt float64) {
	g.angle = wrapAngle(g.angle + dt*g.tune.OrbitSpeed)
	r := g.tune.OrbitRadius
	sc := g.eng.Scene
	sc.SetPosition(g.refPoint, mathx.Vec3{X: math.Cos(g.angle) * r, Z: math.Sin(g.angle) * r})
	sc.SetRotation(g.refPoint, mathx.AxisAngle(mathx.Up, -g.angle+0.5*math.Pi))
}

func (g *Game) stats() protocol.StationStats {
	if g.station == nil {
		return protocol.StationStats{}
	}
	return statsRecord(g.station.Stats())
}
