package game

import (
	"fmt"
	"math"

	"stationsim.ai/internal/sim/mathx"
	"stationsim.ai/internal/sim/scene"
)

// Visual templates.
const (
	TemplateModule2    = "prefabs/module_2.fab"
	TemplateModule3    = "prefabs/module_3.fab"
	TemplateModule4    = "prefabs/module_4.fab"
	TemplateSolarPanel = "prefabs/solar_panel.fab"
	TemplateOrbitRig   = "prefabs/orbit_rig.fab"
)

// Well-known entity and GUI element names.
const (
	EntityRefPoint = "ref_point"
	EntityCamera   = "camera"
	EntityHUD      = "hud"

	AnchorDock = "hatch_0"

	RectHUD         = "hud"
	RectModulePanel = "module_panel"
	TextModuleTitle = "module_title"
)

const (
	moduleRadius  = 3.0
	hatchOffset   = 5.0
	cameraOffset  = 30.0
	extAnchorDist = 3.0
)

// TemplateRegistry is implemented by scenes that accept template layouts,
// such as scene.Memory.
type TemplateRegistry interface {
	RegisterTemplate(name string, root scene.TemplateNode)
}

func hatch(i int, dir mathx.Vec3) scene.TemplateNode {
	// Hatches face outward along their local forward axis.
	return scene.TemplateNode{
		Name:  fmt.Sprintf("hatch_%d", i),
		Local: mathx.Transform{Pos: dir.Scale(hatchOffset), Rot: mathx.Between(mathx.Forward, dir)},
	}
}

func extAnchor(i int, pos mathx.Vec3) scene.TemplateNode {
	return scene.TemplateNode{
		Name:  fmt.Sprintf("ext_%d", i),
		Local: mathx.Transform{Pos: pos, Rot: mathx.Identity},
	}
}

func moduleTemplate(hatches int) scene.TemplateNode {
	dirs := []mathx.Vec3{mathx.Forward, mathx.Forward.Neg(), mathx.Right, mathx.Right.Neg()}
	root := scene.TemplateNode{Name: fmt.Sprintf("module_%d", hatches), Local: mathx.IdentityTransform, Radius: moduleRadius}
	for i := 0; i < hatches; i++ {
		root.Children = append(root.Children, hatch(i, dirs[i]))
	}
	root.Children = append(root.Children,
		extAnchor(0, mathx.Vec3{X: extAnchorDist}),
		extAnchor(1, mathx.Vec3{Y: extAnchorDist}),
	)
	return root
}

// Templates returns the layouts of every visual template the session
// instantiates.
func Templates() map[string]scene.TemplateNode {
	return map[string]scene.TemplateNode{
		TemplateModule2: moduleTemplate(2),
		TemplateModule3: moduleTemplate(3),
		TemplateModule4: moduleTemplate(4),
		TemplateSolarPanel: {
			Name:   "solar_panel",
			Local:  mathx.IdentityTransform,
			Radius: 1.5,
		},
		TemplateOrbitRig: {
			Name:  EntityRefPoint,
			Local: mathx.IdentityTransform,
			Children: []scene.TemplateNode{{
				Name:  EntityCamera,
				Local: mathx.Transform{Pos: mathx.Vec3{Z: cameraOffset}, Rot: mathx.Identity},
			}},
		},
	}
}

func RegisterTemplates(r TemplateRegistry) {
	for name, root := range Templates() {
		r.RegisterTemplate(name, root)
	}
}

// SetupScene creates the reference point, its camera and the HUD root unless
// the scene already has them.
func SetupScene(sc scene.Scene) error {
	if !sc.FindByName(scene.NoEntity, EntityRefPoint).Valid() {
		if _, err := sc.Instantiate(TemplateOrbitRig, mathx.IdentityTransform); err != nil {
			return fmt.Errorf("setup scene: %w", err)
		}
	}
	if !sc.FindByName(scene.NoEntity, EntityHUD).Valid() {
		sc.CreateEntity(EntityHUD)
	}
	return nil
}

var starterRotation = mathx.Between(mathx.Up, mathx.Forward)

func wrapAngle(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	return a
}
