// Package scene declares the engine collaborators the station simulation
// consumes (entity graph, viewport, GUI, input) and ships an in-memory
// implementation used by the headless server and by tests.
package scene

import "stationsim.ai/internal/sim/mathx"

// Entity is an engine entity reference. The zero value is NoEntity.
type Entity uint32

const NoEntity Entity = 0

func (e Entity) Valid() bool { return e != NoEntity }

// Scene is the entity/scene-graph collaborator. Transform and Position are
// world space; the Local variants are relative to the parent.
type Scene interface {
	CreateEntity(name string) Entity
	DestroyEntity(e Entity)
	// Instantiate creates a pre-authored visual template at tr and returns its
	// root entity.
	Instantiate(template string, tr mathx.Transform) (Entity, error)

	Parent(e Entity) Entity
	// SetParent reparents child, keeping its world transform.
	SetParent(parent, child Entity)

	Transform(e Entity) mathx.Transform
	SetTransform(e Entity, tr mathx.Transform)
	LocalTransform(e Entity) mathx.Transform
	SetLocalTransform(e Entity, tr mathx.Transform)
	Position(e Entity) mathx.Vec3
	SetPosition(e Entity, p mathx.Vec3)
	SetLocalPosition(e Entity, p mathx.Vec3)
	Rotation(e Entity) mathx.Quat
	SetRotation(e Entity, q mathx.Quat)

	Name(e Entity) string
	// FindByName returns the direct child of parent called name. A NoEntity
	// parent searches root entities.
	FindByName(parent Entity, name string) Entity
	Children(e Entity) []Entity
}

// Viewport converts screen points to rays and casts them against visible
// geometry.
type Viewport interface {
	ScreenRay(camera Entity, screen mathx.Vec2) (origin, dir mathx.Vec3)
	CastRay(origin, dir mathx.Vec3) (Entity, bool)
}

type GUI interface {
	SetVisible(rect string, visible bool)
	SetText(element, text string)
	CursorPosition() mathx.Vec2
}

type EventType uint8

const (
	EventButton EventType = iota + 1
	EventAxis
)

type Device uint8

const (
	DeviceKeyboard Device = iota + 1
	DeviceMouse
)

// Key ids used by the camera controller. Keyboard letters use their ASCII
// upper-case code.
const (
	MouseLeftBtn  uint32 = 0
	MouseRightBtn uint32 = 1
	KeyShift      uint32 = 0x10
	KeyA          uint32 = 'A'
	KeyD          uint32 = 'D'
	KeyS          uint32 = 'S'
	KeyW          uint32 = 'W'
)

type InputEvent struct {
	Type   EventType
	Device Device
	KeyID  uint32
	Down   bool
	AxisX  float64
	AxisY  float64
}

// Input returns the events queued since the previous call.
type Input interface {
	Events() []InputEvent
}

// Engine bundles the collaborators a game session needs.
type Engine struct {
	Scene    Scene
	Viewport Viewport
	GUI      GUI
	Input    Input
}
