package game

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/agnivade/levenshtein"

	"stationsim.ai/internal/sim/mathx"
	"stationsim.ai/internal/sim/scene"
)

// GUI event names. Blueprint builds use "build_" + blueprint id.
const (
	EventBuildModule2 = "build_module_2"
	EventBuildModule3 = "build_module_3"
	EventBuildModule4 = "build_module_4"
	EventSetTimeScale = "set_time_scale"
	EventDeselect     = "deselect"

	buildPrefix = "build_"
)

// Signals accepted by Signal.
const (
	SignalDeselect    = "deselect"
	SignalCancelBuild = "cancel_build"
)

var moduleEvents = map[string]string{
	EventBuildModule2: TemplateModule2,
	EventBuildModule3: TemplateModule3,
	EventBuildModule4: TemplateModule4,
}

// EventNames lists every GUI event name the session understands.
func (g *Game) EventNames() []string {
	names := []string{EventSetTimeScale, EventDeselect}
	for ev := range moduleEvents {
		names = append(names, ev)
	}
	for _, id := range g.catalog.Palette {
		names = append(names, buildPrefix+id)
	}
	sort.Strings(names)
	return names
}

// Suggest returns the known event name closest to ev by edit distance.
func (g *Game) Suggest(ev string) string {
	name, _, _ := strings.Cut(strings.TrimSpace(ev), " ")
	best := ""
	bestDist := -1
	for _, cand := range g.EventNames() {
		d := levenshtein.ComputeDistance(name, cand)
		if bestDist < 0 || d < bestDist {
			best, bestDist = cand, d
		}
	}
	return best
}

// OnGUIEvent handles a GUI event: "build_module_2|3|4", "build_<blueprint>",
// "set_time_scale <f>" or "deselect". Failures leave the session untouched.
func (g *Game) OnGUIEvent(ev string) error {
	fields := strings.Fields(ev)
	if len(fields) == 0 {
		return fmt.Errorf("gui event %q: %w", ev, ErrUnknownEvent)
	}
	name, args := fields[0], fields[1:]

	switch name {
	case EventDeselect:
		g.deselect()
		return nil
	case EventSetTimeScale:
		if len(args) != 1 {
			return fmt.Errorf("%s: want 1 argument: %w", name, ErrBadEventArgument)
		}
		f, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("%s %q: %w", name, args[0], ErrBadEventArgument)
		}
		if err := g.SetTimeScale(f); err != nil {
			return fmt.Errorf("%s %v: %w", name, f, err)
		}
		g.record(ev)
		return nil
	}

	if tpl, ok := moduleEvents[name]; ok {
		if err := g.canBuild(); err != nil {
			return err
		}
		g.BeginBuild(BuildKind{Template: tpl})
		g.record(ev)
		return nil
	}

	if id, ok := strings.CutPrefix(name, buildPrefix); ok {
		h, known := g.catalog.Lookup(id)
		if !known {
			return fmt.Errorf("gui event %q: %w", name, ErrUnknownEvent)
		}
		if err := g.canBuild(); err != nil {
			return err
		}
		def := g.catalog.Get(h)
		if def.Pinned() {
			g.BeginBuild(BuildKind{Template: def.Prefab, Blueprint: id})
			g.record(ev)
			return nil
		}
		if g.selected == 0 {
			g.log.Printf("gui event %s: no module selected", name)
			return fmt.Errorf("%s: %w", name, ErrNoSelection)
		}
		g.station.AddExtension(g.selected, id, scene.NoEntity)
		g.record(fmt.Sprintf("%s on module %d", ev, g.selected))
		return nil
	}

	return fmt.Errorf("gui event %q: %w", name, ErrUnknownEvent)
}

// MustGUIEvent is OnGUIEvent for scripted callers whose event names are
// fixed at compile time; an unknown name is a bug.
func (g *Game) MustGUIEvent(ev string) {
	err := g.OnGUIEvent(ev)
	if errors.Is(err, ErrUnknownEvent) {
		panic(fmt.Sprintf("game: %v", err))
	}
	if err != nil {
		g.log.Printf("gui event %q: %v", ev, err)
	}
}

func (g *Game) canBuild() error {
	if !g.started {
		return ErrNotStarted
	}
	if g.preview.active() {
		return ErrBuildPending
	}
	return nil
}

// Signal is the named command entry point for UI scripts.
func (g *Game) Signal(name string) error {
	switch name {
	case SignalDeselect:
		g.deselect()
	case SignalCancelBuild:
		g.CancelBuild()
	default:
		g.log.Printf("signal %q: unknown", name)
		return fmt.Errorf("signal %q: %w", name, ErrUnknownSignal)
	}
	return nil
}

// OnMouseButton handles a click the GUI did not consume: a pending build is
// committed at the cursor, then whatever module lies under it is selected.
func (g *Game) OnMouseButton(down bool, x, y float64) {
	if !down || !g.started {
		return
	}
	cursor := mathx.Vec2{X: x, Y: y}
	if g.preview.active() {
		g.Commit(cursor)
	}
	if g.eng.Viewport == nil {
		return
	}
	origin, dir := g.eng.Viewport.ScreenRay(g.camera, cursor)
	if e, ok := g.eng.Viewport.CastRay(origin, dir); ok {
		g.selectEntity(e)
	}
}

func (g *Game) selectEntity(e scene.Entity) {
	m, ok := g.station.ModuleOwning(e)
	if !ok {
		return
	}
	g.selectModule(m.ID)
}

func (g *Game) selectModule(id uint32) {
	g.selected = id
	if gui := g.eng.GUI; gui != nil {
		gui.SetVisible(RectModulePanel, true)
		gui.SetText(TextModuleTitle, fmt.Sprintf("Module #%d", id))
	}
}

func (g *Game) deselect() {
	g.selected = 0
	if gui := g.eng.GUI; gui != nil {
		gui.SetVisible(RectModulePanel, false)
	}
}

func (g *Game) record(cmd string) {
	g.applied = append(g.applied, cmd)
}
