package game

import (
	"stationsim.ai/internal/sim/mathx"
	"stationsim.ai/internal/sim/scene"
)

// InputState tracks held buttons between frames for the camera controller.
type InputState struct {
	Look     bool // right mouse button held
	Forward  bool
	Backward bool
	Left     bool
	Right    bool
	Fast     bool
}

func (s *InputState) Reset() { *s = InputState{} }

// Apply records a button transition. It reports whether the event was a
// button the controller tracks.
func (s *InputState) Apply(ev scene.InputEvent) bool {
	if ev.Type != scene.EventButton {
		return false
	}
	if ev.Device == scene.DeviceMouse {
		if ev.KeyID == scene.MouseRightBtn {
			s.Look = ev.Down
			return true
		}
		return false
	}
	switch ev.KeyID {
	case scene.KeyW:
		s.Forward = ev.Down
	case scene.KeyS:
		s.Backward = ev.Down
	case scene.KeyA:
		s.Left = ev.Down
	case scene.KeyD:
		s.Right = ev.Down
	case scene.KeyShift:
		s.Fast = ev.Down
	default:
		return false
	}
	return true
}

// Move returns the camera-local move direction; forward is -Z.
func (s InputState) Move() mathx.Vec3 {
	var v mathx.Vec3
	if s.Forward {
		v = v.Add(mathx.Vec3{Z: -1})
	}
	if s.Backward {
		v = v.Add(mathx.Vec3{Z: 1})
	}
	if s.Left {
		v = v.Add(mathx.Vec3{X: -1})
	}
	if s.Right {
		v = v.Add(mathx.Vec3{X: 1})
	}
	return v
}

// Input returns the held-button state; it is not persisted.
func (g *Game) Input() InputState { return g.input }

func (g *Game) updateCamera(dt float64) {
	if g.eng.Input == nil {
		return
	}
	sc := g.eng.Scene
	cam := g.tune.Camera
	rot := sc.Rotation(g.camera)

	for _, ev := range g.eng.Input.Events() {
		if g.input.Apply(ev) {
			continue
		}
		if ev.Type != scene.EventAxis || !g.input.Look {
			continue
		}
		up := rot.Rotate(mathx.Up)
		side := rot.Rotate(mathx.Right)
		yaw := mathx.AxisAngle(up, -ev.AxisX*cam.LookSensitivity)
		pitch := mathx.AxisAngle(side, -ev.AxisY*cam.LookSensitivity)
		rot = pitch.Mul(yaw).Mul(rot).Normalized()
		sc.SetRotation(g.camera, rot)
	}

	move := g.input.Move()
	if move.SquaredLength() <= 0.1 {
		return
	}
	speed := cam.MoveSpeed
	if g.input.Fast {
		speed = cam.FastMoveSpeed
	}
	p := sc.Position(g.camera).Add(rot.Rotate(move).Scale(dt * speed))
	sc.SetPosition(g.camera, p)
}
