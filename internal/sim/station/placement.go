package station

import (
	"math"
	"strings"

	"stationsim.ai/internal/sim/mathx"
	"stationsim.ai/internal/sim/scene"
)

// PinFamily selects anchors by entity name prefix.
type PinFamily string

const (
	// FamilyHatch anchors dock modules to modules.
	FamilyHatch PinFamily = "hatch_"
	// FamilyExtension anchors mount pinned extensions.
	FamilyExtension PinFamily = "ext_"
)

// Pin is an anchor entity and the module it belongs to.
type Pin struct {
	ModuleID uint32
	Module   scene.Entity
	Anchor   scene.Entity
}

// FindClosestPin returns the anchor of family nearest to p among the direct
// children of completed modules, if it lies within maxDistance. Ties keep the
// first anchor seen. The range check is strict.
func (s *Station) FindClosestPin(p mathx.Vec3, maxDistance float64, family PinFamily) (Pin, bool) {
	if !(maxDistance > 0) {
		return Pin{}, false
	}
	var best Pin
	bestDist := math.Inf(1)
	for _, m := range s.modules {
		if !m.Complete() {
			continue
		}
		for _, ch := range s.scene.Children(m.Entity) {
			if !strings.HasPrefix(s.scene.Name(ch), string(family)) {
				continue
			}
			d := p.Sub(s.scene.Position(ch)).SquaredLength()
			if d < bestDist {
				bestDist = d
				best = Pin{ModuleID: m.ID, Module: m.Entity, Anchor: ch}
			}
		}
	}
	if best.Anchor.Valid() && bestDist < maxDistance*maxDistance {
		return best, true
	}
	return Pin{}, false
}

var hatchFlip = mathx.AxisAngle(mathx.Up, math.Pi)

// DockTransform places moduleB so that its hatchB meets hatchA face to face.
// Hatches point outward, so hatchA is turned half way round its up axis
// before composing.
func DockTransform(hatchA, hatchB, moduleB mathx.Transform) mathx.Transform {
	hatchA.Rot = hatchA.Rot.Mul(hatchFlip)
	return PinTransform(hatchA, hatchB, moduleB)
}

// PinTransform places moduleB so that its anchor hatchB coincides with
// hatchA, both facing the same way.
func PinTransform(hatchA, hatchB, moduleB mathx.Transform) mathx.Transform {
	rel := hatchB.Inverted().Mul(moduleB)
	res := hatchA.Mul(rel)
	res.Rot = res.Rot.Normalized()
	return res
}
