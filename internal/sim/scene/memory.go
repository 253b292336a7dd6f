package scene

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"stationsim.ai/internal/sim/mathx"
)

// TemplateNode is one named entity of a template, relative to its parent.
type TemplateNode struct {
	Name     string
	Local    mathx.Transform
	Radius   float64 // pick radius for CastRay, 0 = not pickable
	Children []TemplateNode
}

type node struct {
	name     string
	parent   Entity
	children []Entity
	local    mathx.Transform
	radius   float64
}

// Memory is a single-threaded in-memory scene graph implementing Scene,
// Viewport, GUI and Input.
type Memory struct {
	next      Entity
	nodes     map[Entity]*node
	roots     []Entity
	templates map[string]TemplateNode

	// Viewport parameters: a pinhole camera looking down its local -Z.
	Width, Height float64
	Focal         float64

	Cursor  mathx.Vec2
	visible map[string]bool
	text    map[string]string
	events  []InputEvent
}

func NewMemory() *Memory {
	return &Memory{
		nodes:     map[Entity]*node{},
		templates: map[string]TemplateNode{},
		Width:     1280,
		Height:    720,
		Focal:     900,
		visible:   map[string]bool{},
		text:      map[string]string{},
	}
}

func (m *Memory) Engine() Engine {
	return Engine{Scene: m, Viewport: m, GUI: m, Input: m}
}

func (m *Memory) RegisterTemplate(name string, root TemplateNode) {
	m.templates[name] = root
}

func (m *Memory) Templates() []string {
	out := make([]string, 0, len(m.templates))
	for k := range m.templates {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (m *Memory) get(e Entity) *node {
	n := m.nodes[e]
	if n == nil {
		panic(fmt.Sprintf("scene: unknown entity %d", e))
	}
	return n
}

func (m *Memory) Exists(e Entity) bool {
	_, ok := m.nodes[e]
	return ok
}

func (m *Memory) Len() int { return len(m.nodes) }

func (m *Memory) CreateEntity(name string) Entity {
	m.next++
	e := m.next
	m.nodes[e] = &node{name: name, local: mathx.IdentityTransform}
	m.roots = append(m.roots, e)
	return e
}

func (m *Memory) DestroyEntity(e Entity) {
	n := m.get(e)
	for _, ch := range append([]Entity(nil), n.children...) {
		m.DestroyEntity(ch)
	}
	m.detach(e)
	delete(m.nodes, e)
}

func (m *Memory) Instantiate(template string, tr mathx.Transform) (Entity, error) {
	tpl, ok := m.templates[template]
	if !ok {
		return NoEntity, fmt.Errorf("scene: unknown template %q", template)
	}
	root := m.spawn(tpl, NoEntity)
	m.get(root).local = tr
	return root, nil
}

func (m *Memory) spawn(tn TemplateNode, parent Entity) Entity {
	e := m.CreateEntity(tn.Name)
	n := m.get(e)
	n.local = tn.Local
	n.radius = tn.Radius
	if parent.Valid() {
		m.detach(e)
		n.parent = parent
		p := m.get(parent)
		p.children = append(p.children, e)
	}
	for _, ch := range tn.Children {
		m.spawn(ch, e)
	}
	return e
}

func (m *Memory) detach(e Entity) {
	n := m.get(e)
	if n.parent.Valid() {
		p := m.get(n.parent)
		p.children = remove(p.children, e)
		n.parent = NoEntity
		return
	}
	m.roots = remove(m.roots, e)
}

func remove(in []Entity, e Entity) []Entity {
	for i, x := range in {
		if x == e {
			return append(in[:i], in[i+1:]...)
		}
	}
	return in
}

func (m *Memory) Parent(e Entity) Entity { return m.get(e).parent }

func (m *Memory) SetParent(parent, child Entity) {
	world := m.Transform(child)
	m.detach(child)
	n := m.get(child)
	if parent.Valid() {
		n.parent = parent
		p := m.get(parent)
		p.children = append(p.children, child)
	} else {
		m.roots = append(m.roots, child)
	}
	m.SetTransform(child, world)
}

func (m *Memory) Transform(e Entity) mathx.Transform {
	n := m.get(e)
	if !n.parent.Valid() {
		return n.local
	}
	return m.Transform(n.parent).Mul(n.local)
}

func (m *Memory) SetTransform(e Entity, tr mathx.Transform) {
	n := m.get(e)
	if !n.parent.Valid() {
		n.local = tr
		return
	}
	n.local = m.Transform(n.parent).Inverted().Mul(tr)
}

func (m *Memory) LocalTransform(e Entity) mathx.Transform { return m.get(e).local }

func (m *Memory) SetLocalTransform(e Entity, tr mathx.Transform) { m.get(e).local = tr }

func (m *Memory) Position(e Entity) mathx.Vec3 { return m.Transform(e).Pos }

func (m *Memory) SetPosition(e Entity, p mathx.Vec3) {
	tr := m.Transform(e)
	tr.Pos = p
	m.SetTransform(e, tr)
}

func (m *Memory) SetLocalPosition(e Entity, p mathx.Vec3) { m.get(e).local.Pos = p }

func (m *Memory) Rotation(e Entity) mathx.Quat { return m.Transform(e).Rot }

func (m *Memory) SetRotation(e Entity, q mathx.Quat) {
	tr := m.Transform(e)
	tr.Rot = q
	m.SetTransform(e, tr)
}

func (m *Memory) Name(e Entity) string { return m.get(e).name }

func (m *Memory) FindByName(parent Entity, name string) Entity {
	list := m.roots
	if parent.Valid() {
		list = m.get(parent).children
	}
	for _, e := range list {
		if m.nodes[e].name == name {
			return e
		}
	}
	return NoEntity
}

func (m *Memory) Children(e Entity) []Entity {
	return append([]Entity(nil), m.get(e).children...)
}

// FindPath resolves a slash separated name path from the roots, e.g.
// "ref_point/camera".
func (m *Memory) FindPath(path string) Entity {
	e := NoEntity
	for _, part := range strings.Split(path, "/") {
		e = m.FindByName(e, part)
		if !e.Valid() {
			return NoEntity
		}
	}
	return e
}

func (m *Memory) ScreenRay(camera Entity, screen mathx.Vec2) (origin, dir mathx.Vec3) {
	tr := m.Transform(camera)
	local := mathx.Vec3{
		X: (screen.X - m.Width/2) / m.Focal,
		Y: -(screen.Y - m.Height/2) / m.Focal,
		Z: -1,
	}
	return tr.Pos, tr.Rot.Rotate(local).Normalized()
}

// CastRay returns the nearest pickable entity whose pick sphere the ray
// crosses.
func (m *Memory) CastRay(origin, dir mathx.Vec3) (Entity, bool) {
	dir = dir.Normalized()
	best := NoEntity
	bestT := math.Inf(1)
	ids := make([]Entity, 0, len(m.nodes))
	for e := range m.nodes {
		ids = append(ids, e)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, e := range ids {
		n := m.nodes[e]
		if n.radius <= 0 {
			continue
		}
		oc := m.Position(e).Sub(origin)
		t := oc.Dot(dir)
		if t < 0 {
			continue
		}
		if oc.SquaredLength()-t*t > n.radius*n.radius {
			continue
		}
		if t < bestT {
			bestT = t
			best = e
		}
	}
	return best, best.Valid()
}

func (m *Memory) SetVisible(rect string, visible bool) { m.visible[rect] = visible }
func (m *Memory) Visible(rect string) bool             { return m.visible[rect] }
func (m *Memory) SetText(element, text string)         { m.text[element] = text }
func (m *Memory) Text(element string) string           { return m.text[element] }
func (m *Memory) CursorPosition() mathx.Vec2           { return m.Cursor }

func (m *Memory) Push(ev ...InputEvent) { m.events = append(m.events, ev...) }

func (m *Memory) Events() []InputEvent {
	out := m.events
	m.events = nil
	return out
}
