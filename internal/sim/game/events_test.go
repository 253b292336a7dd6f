package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stationsim.ai/internal/sim/catalogs"
	"stationsim.ai/internal/sim/mathx"
	"stationsim.ai/internal/sim/scene"
	"stationsim.ai/internal/sim/tuning"
)

func testTuningStaticOrbit() tuning.Tuning {
	tune := tuning.Defaults()
	tune.OrbitSpeed = 0
	return tune
}

func TestClickSelectsModule(t *testing.T) {
	g, mem := startedGame(t)
	starter := starterModule(t, g)

	g.OnMouseButton(true, mem.Width/2, mem.Height/2)
	id, ok := g.Selected()
	require.True(t, ok)
	assert.Equal(t, starter.ID, id)
	assert.True(t, mem.Visible(RectModulePanel))
	assert.Equal(t, "Module #1", mem.Text(TextModuleTitle))

	require.NoError(t, g.OnGUIEvent(EventDeselect))
	_, ok = g.Selected()
	assert.False(t, ok)
	assert.False(t, mem.Visible(RectModulePanel))
}

func TestClickOnEmptySpaceKeepsSelection(t *testing.T) {
	g, mem := startedGame(t)
	g.OnMouseButton(true, mem.Width/2, mem.Height/2)
	g.OnMouseButton(true, 0, 0)
	_, ok := g.Selected()
	assert.True(t, ok)
}

func TestBuildAbstractExtensionOnSelectedModule(t *testing.T) {
	g, mem := startedGame(t)
	starter := starterModule(t, g)

	assert.ErrorIs(t, g.OnGUIEvent("build_hydroponics"), ErrNoSelection)
	m, _ := g.Station().Module(starter.ID)
	assert.Len(t, m.Extensions, 4)

	g.OnMouseButton(true, mem.Width/2, mem.Height/2)
	require.NoError(t, g.OnGUIEvent("build_hydroponics"))
	assert.False(t, g.Building())

	m, _ = g.Station().Module(starter.ID)
	require.Len(t, m.Extensions, 5)
	ext := m.Extensions[4]
	assert.Equal(t, catalogs.Hydroponics, g.Catalog().Get(ext.Blueprint).ID)
	assert.False(t, ext.Entity.Valid())
	assert.Equal(t, 0.0, ext.BuildProgress)
}

func TestUnknownEvents(t *testing.T) {
	g, _ := startedGame(t)
	for _, ev := range []string{"", "   ", "build_warp_core", "launch"} {
		assert.ErrorIs(t, g.OnGUIEvent(ev), ErrUnknownEvent, ev)
	}
	assert.Panics(t, func() { g.MustGUIEvent("build_warp_core") })
	assert.NotPanics(t, func() { g.MustGUIEvent("build_toilet") }, "no selection is only logged")
}

func TestSuggest(t *testing.T) {
	g, _ := newTestGame(t)
	assert.Equal(t, "build_toilet", g.Suggest("build_toilett"))
	assert.Equal(t, EventDeselect, g.Suggest("deselec"))
	assert.Equal(t, EventSetTimeScale, g.Suggest("set_timescale 3"))
	assert.Equal(t, EventBuildModule3, g.Suggest("build_module3"))
}

func TestEventNames(t *testing.T) {
	g, _ := newTestGame(t)
	names := g.EventNames()
	assert.Len(t, names, 3+2+6)
	assert.Contains(t, names, "build_solar_panel")
	assert.Contains(t, names, EventBuildModule4)
	assert.IsIncreasing(t, names)
}

func TestSignal(t *testing.T) {
	g, mem := startedGame(t)
	g.OnMouseButton(true, mem.Width/2, mem.Height/2)
	require.NoError(t, g.Signal(SignalDeselect))
	_, ok := g.Selected()
	assert.False(t, ok)

	assert.ErrorIs(t, g.Signal("self_destruct"), ErrUnknownSignal)
}

func TestInputStateApply(t *testing.T) {
	var s InputState
	press := func(dev scene.Device, key uint32, down bool) bool {
		return s.Apply(scene.InputEvent{Type: scene.EventButton, Device: dev, KeyID: key, Down: down})
	}
	assert.True(t, press(scene.DeviceKeyboard, scene.KeyW, true))
	assert.True(t, press(scene.DeviceKeyboard, scene.KeyD, true))
	assert.True(t, press(scene.DeviceMouse, scene.MouseRightBtn, true))
	assert.False(t, press(scene.DeviceMouse, scene.MouseLeftBtn, true))
	assert.False(t, press(scene.DeviceKeyboard, 'Q', true))
	assert.False(t, s.Apply(scene.InputEvent{Type: scene.EventAxis, Device: scene.DeviceMouse, AxisX: 3}))

	assert.Equal(t, InputState{Look: true, Forward: true, Right: true}, s)
	assert.Equal(t, mathx.Vec3{X: 1, Z: -1}, s.Move())

	assert.True(t, press(scene.DeviceKeyboard, scene.KeyW, false))
	assert.Equal(t, mathx.Vec3{X: 1}, s.Move())

	s.Reset()
	assert.Equal(t, InputState{}, s)
}

func TestCameraMovesWithHeldKeys(t *testing.T) {
	tune := testTuningStaticOrbit()
	g, mem := newTestGameWith(t, tune)
	g.StartGame()
	cam := mem.FindPath("ref_point/camera")

	g.Update(0)
	p0 := mem.Position(cam)

	mem.Push(scene.InputEvent{Type: scene.EventButton, Device: scene.DeviceKeyboard, KeyID: scene.KeyW, Down: true})
	g.Update(1)
	p1 := mem.Position(cam)
	assertVec(t, p0.Add(mathx.Vec3{Z: -tune.Camera.MoveSpeed}), p1)

	// Held keys persist across frames without new events.
	mem.Push(scene.InputEvent{Type: scene.EventButton, Device: scene.DeviceKeyboard, KeyID: scene.KeyShift, Down: true})
	g.Update(1)
	p2 := mem.Position(cam)
	assertVec(t, p1.Add(mathx.Vec3{Z: -tune.Camera.FastMoveSpeed}), p2)

	mem.Push(scene.InputEvent{Type: scene.EventButton, Device: scene.DeviceKeyboard, KeyID: scene.KeyW, Down: false})
	g.Update(1)
	assertVec(t, p2, mem.Position(cam))
}

func TestCameraLooksWhileRightButtonHeld(t *testing.T) {
	tune := testTuningStaticOrbit()
	g, mem := newTestGameWith(t, tune)
	g.StartGame()
	cam := mem.FindPath("ref_point/camera")
	g.Update(0)

	mem.Push(scene.InputEvent{Type: scene.EventAxis, Device: scene.DeviceMouse, AxisX: 100})
	g.Update(0)
	assertVec(t, mathx.Forward, mem.Rotation(cam).Rotate(mathx.Forward))

	mem.Push(
		scene.InputEvent{Type: scene.EventButton, Device: scene.DeviceMouse, KeyID: scene.MouseRightBtn, Down: true},
		scene.InputEvent{Type: scene.EventAxis, Device: scene.DeviceMouse, AxisX: 100},
	)
	g.Update(0)
	yaw := mathx.AxisAngle(mathx.Up, -100*tune.Camera.LookSensitivity)
	assertVec(t, yaw.Rotate(mathx.Forward), mem.Rotation(cam).Rotate(mathx.Forward))
	assert.True(t, g.Input().Look)
	assert.InDelta(t, 1, mem.Rotation(cam).Rotate(mathx.Up).Y, 1e-9)
}
