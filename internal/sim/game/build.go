package game

import (
	"fmt"

	"stationsim.ai/internal/sim/mathx"
	"stationsim.ai/internal/sim/scene"
	"stationsim.ai/internal/sim/station"
)

// BuildKind selects what a build preview turns into: a module from Template,
// or, when Blueprint is set, a pinned extension of that blueprint.
type BuildKind struct {
	Template  string
	Blueprint string
}

func (k BuildKind) Extension() bool { return k.Blueprint != "" }

func (k BuildKind) family() station.PinFamily {
	if k.Extension() {
		return station.FamilyExtension
	}
	return station.FamilyHatch
}

type buildPreview struct {
	entity scene.Entity
	kind   BuildKind
}

func (p buildPreview) active() bool { return p.entity.Valid() }

// Building reports whether a preview is pending.
func (g *Game) Building() bool { return g.preview.active() }

// PreviewEntity returns the pending preview entity, or NoEntity.
func (g *Game) PreviewEntity() scene.Entity { return g.preview.entity }

// BeginBuild instantiates a preview that follows the cursor until Commit or
// CancelBuild. Only one preview may be pending.
func (g *Game) BeginBuild(kind BuildKind) {
	if g.preview.active() {
		panic("game: begin build while a preview is pending")
	}
	e, err := g.eng.Scene.Instantiate(kind.Template, mathx.IdentityTransform)
	if err != nil {
		panic(fmt.Sprintf("game: build preview %s: %v", kind.Template, err))
	}
	g.preview = buildPreview{entity: e, kind: kind}
}

func (g *Game) CancelBuild() {
	if !g.preview.active() {
		return
	}
	g.eng.Scene.DestroyEntity(g.preview.entity)
	g.preview = buildPreview{}
}

// orbitalPoint projects a screen point onto the orbital plane: the plane
// through the reference point whose normal is the reference frame's forward
// axis.
func (g *Game) orbitalPoint(cursor mathx.Vec2) (mathx.Vec3, bool) {
	if g.eng.Viewport == nil {
		return mathx.Vec3{}, false
	}
	origin, dir := g.eng.Viewport.ScreenRay(g.camera, cursor)
	ref := g.eng.Scene.Transform(g.refPoint)
	n := ref.Rot.Rotate(mathx.Forward)
	t, ok := mathx.RayPlane(origin, dir, ref.Pos, n)
	if !ok {
		return mathx.Vec3{}, false
	}
	return origin.Add(dir.Scale(t)), true
}

// UpdatePreview snaps the preview onto the nearest anchor in range, or lets
// it float on the orbital plane under the cursor.
func (g *Game) UpdatePreview(cursor mathx.Vec2) {
	if !g.preview.active() || g.station == nil {
		return
	}
	p, ok := g.orbitalPoint(cursor)
	if !ok {
		return
	}
	sc := g.eng.Scene
	prev := g.preview.entity
	pin, ok := g.station.FindClosestPin(p, g.tune.PinMaxDistance, g.preview.kind.family())
	if !ok {
		sc.SetPosition(prev, p)
		return
	}
	if g.preview.kind.Extension() {
		tr := station.PinTransform(sc.Transform(pin.Anchor), sc.Transform(prev), sc.Transform(prev))
		sc.SetTransform(prev, tr)
		return
	}
	hatchB := sc.FindByName(prev, AnchorDock)
	tr := station.DockTransform(sc.Transform(pin.Anchor), sc.Transform(hatchB), sc.Transform(prev))
	sc.SetTransform(prev, tr)
}

// Commit discards the preview and, if an anchor of the right family is in
// range of the cursor, creates the real module or extension there. It returns
// the new id.
func (g *Game) Commit(cursor mathx.Vec2) (uint32, bool) {
	if !g.preview.active() {
		return 0, false
	}
	defer g.CancelBuild()
	if g.station == nil {
		return 0, false
	}
	g.UpdatePreview(cursor)

	p, ok := g.orbitalPoint(cursor)
	if !ok {
		return 0, false
	}
	kind := g.preview.kind
	pin, ok := g.station.FindClosestPin(p, g.tune.PinMaxDistance, kind.family())
	if !ok {
		return 0, false
	}

	sc := g.eng.Scene
	if kind.Extension() {
		ext := g.station.AddExtension(pin.ModuleID, kind.Blueprint, pin.Anchor)
		tr := station.PinTransform(sc.Transform(pin.Anchor), sc.Transform(g.preview.entity), sc.Transform(ext.Entity))
		sc.SetTransform(ext.Entity, tr)
		g.record(fmt.Sprintf("build %s on module %d", kind.Blueprint, pin.ModuleID))
		return ext.ID, true
	}
	m := g.station.AddModule(kind.Template)
	hatchB := sc.FindByName(m.Entity, AnchorDock)
	tr := station.DockTransform(sc.Transform(pin.Anchor), sc.Transform(hatchB), sc.Transform(m.Entity))
	sc.SetTransform(m.Entity, tr)
	g.record(fmt.Sprintf("dock %s to module %d", kind.Template, pin.ModuleID))
	return m.ID, true
}
