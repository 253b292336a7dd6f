package station

import (
	"bytes"
	"errors"
	"log"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stationsim.ai/internal/sim/catalogs"
	"stationsim.ai/internal/sim/mathx"
	"stationsim.ai/internal/sim/scene"
	"stationsim.ai/internal/sim/tuning"
)

const testModule = "module"

func registerTemplates(mem *scene.Memory) {
	mem.RegisterTemplate(testModule, scene.TemplateNode{
		Name:   "module",
		Local:  mathx.IdentityTransform,
		Radius: 2,
		Children: []scene.TemplateNode{
			{Name: "hatch_0", Local: mathx.Transform{Pos: mathx.Vec3{Z: 5}, Rot: mathx.Identity}},
			{Name: "hatch_1", Local: mathx.Transform{Pos: mathx.Vec3{Z: -5}, Rot: mathx.AxisAngle(mathx.Up, math.Pi)}},
			{Name: "ext_0", Local: mathx.Transform{Pos: mathx.Vec3{X: 3}, Rot: mathx.Identity}},
		},
	})
	mem.RegisterTemplate("prefabs/solar_panel.fab", scene.TemplateNode{
		Name:   "solar_panel",
		Local:  mathx.IdentityTransform,
		Radius: 1,
	})
}

func newTestStationWith(t *testing.T, cat *catalogs.Catalog) (*Station, *scene.Memory) {
	t.Helper()
	st, mem, _ := newLoggedStation(t, cat)
	return st, mem
}

// newLoggedStation captures the station log for assertions.
func newLoggedStation(t *testing.T, cat *catalogs.Catalog) (*Station, *scene.Memory, *bytes.Buffer) {
	t.Helper()
	mem := scene.NewMemory()
	registerTemplates(mem)
	frame := mem.CreateEntity("station")
	var buf bytes.Buffer
	st := New(Config{
		Tuning:  tuning.Defaults(),
		Catalog: cat,
		Scene:   mem,
		Frame:   frame,
		Logger:  log.New(&buf, "", 0),
	})
	return st, mem, &buf
}

func newTestStation(t *testing.T) (*Station, *scene.Memory) {
	return newTestStationWith(t, catalogs.Default())
}

func completeModule(t *testing.T, st *Station) Module {
	t.Helper()
	m := st.AddModule(testModule)
	require.True(t, st.SetBuildProgress(m.ID, 1))
	m, _ = st.Module(m.ID)
	return m
}

func addBuiltExtension(t *testing.T, st *Station, moduleID uint32, blueprint string) Extension {
	t.Helper()
	ext := st.AddExtension(moduleID, blueprint, scene.NoEntity)
	require.True(t, st.SetBuildProgress(ext.ID, 1))
	ext, _ = st.Extension(ext.ID)
	return ext
}

func TestNewPanicsWithoutCollaborators(t *testing.T) {
	assert.Panics(t, func() { New(Config{Scene: scene.NewMemory()}) })
	assert.Panics(t, func() { New(Config{Catalog: catalogs.Default()}) })
}

func TestAddModuleParentsToFrame(t *testing.T) {
	st, mem := newTestStation(t)
	m := st.AddModule(testModule)

	assert.Equal(t, 0.0, m.BuildProgress)
	assert.False(t, m.Complete())
	assert.Equal(t, st.Frame(), mem.Parent(m.Entity))
	assert.Equal(t, mathx.Vec3{}, mem.LocalTransform(m.Entity).Pos)

	got, ok := st.GetModule(m.Entity)
	require.True(t, ok)
	assert.Equal(t, m.ID, got.ID)
}

func TestAddModuleUnknownTemplatePanics(t *testing.T) {
	st, _ := newTestStation(t)
	assert.Panics(t, func() { st.AddModule("prefabs/nope.fab") })
}

func TestIDsAreUniqueAcrossKinds(t *testing.T) {
	st, _ := newTestStation(t)
	m := st.AddModule(testModule)
	ext := st.AddExtension(m.ID, catalogs.Toilet, scene.NoEntity)
	c := st.AddCrew("Ada")
	m2 := st.AddModule(testModule)

	ids := map[uint32]bool{m.ID: true, ext.ID: true, c.ID: true, m2.ID: true}
	assert.Len(t, ids, 4)
	assert.NotContains(t, ids, NoSubject)
}

func TestAddExtensionPinnedAndAbstract(t *testing.T) {
	st, mem := newTestStation(t)
	m := completeModule(t, st)
	anchor := mem.FindByName(m.Entity, "ext_0")
	require.True(t, anchor.Valid())

	solar := st.AddExtension(m.ID, catalogs.SolarPanel, anchor)
	require.True(t, solar.Entity.Valid())
	assert.Equal(t, anchor, mem.Parent(solar.Entity))
	assert.Equal(t, mathx.IdentityTransform, mem.LocalTransform(solar.Entity))
	assert.Equal(t, "solar_panel", mem.Name(solar.Entity))

	toilet := st.AddExtension(m.ID, catalogs.Toilet, scene.NoEntity)
	assert.False(t, toilet.Entity.Valid())

	got, _ := st.Module(m.ID)
	require.Len(t, got.Extensions, 2)
	assert.Equal(t, solar.ID, got.Extensions[0].ID)
	assert.Equal(t, toilet.ID, got.Extensions[1].ID)
	assert.Equal(t, catalogs.Toilet, st.Catalog().Get(got.Extensions[1].Blueprint).ID)

	owner, ok := st.ModuleOwning(solar.Entity)
	require.True(t, ok)
	assert.Equal(t, m.ID, owner.ID)
	_, ok = st.ModuleOwning(scene.NoEntity)
	assert.False(t, ok)
}

func TestAddExtensionPanicsOnUnknownInputs(t *testing.T) {
	st, _ := newTestStation(t)
	m := st.AddModule(testModule)
	assert.Panics(t, func() { st.AddExtension(m.ID+100, catalogs.Toilet, scene.NoEntity) })
	assert.Panics(t, func() { st.AddExtension(m.ID, "warp_core", scene.NoEntity) })
}

func TestReturnedModulesAreCopies(t *testing.T) {
	st, _ := newTestStation(t)
	m := st.AddModule(testModule)
	st.AddExtension(m.ID, catalogs.Toilet, scene.NoEntity)

	mods := st.Modules()
	mods[0].BuildProgress = 1
	mods[0].Extensions[0].BuildProgress = 1

	got, _ := st.Module(m.ID)
	assert.Equal(t, 0.0, got.BuildProgress)
	assert.Equal(t, 0.0, got.Extensions[0].BuildProgress)
}

func TestAssignBuilder(t *testing.T) {
	st, _ := newTestStation(t)
	m := completeModule(t, st)
	ext := st.AddExtension(m.ID, catalogs.Toilet, scene.NoEntity)
	c := st.AddCrew("Ada")

	require.NoError(t, st.AssignBuilder(ext.ID, c.ID))
	got, _ := st.CrewMember(c.ID)
	assert.Equal(t, CrewBuilding, got.State)
	assert.Equal(t, ext.ID, got.Subject)

	builder, ok := st.Builder(ext.ID)
	require.True(t, ok)
	assert.Equal(t, c.ID, builder)

	task, ok := st.Task(c.ID)
	require.True(t, ok)
	assert.Equal(t, ext.ID, task.SubjectID)
	assert.Equal(t, tuning.Defaults().ExtensionBuildRate, task.Rate)
}

func TestAssignBuilderRejectsBadInput(t *testing.T) {
	st, _, logs := newLoggedStation(t, catalogs.Default())
	m := completeModule(t, st)
	c := st.AddCrew("Ada")

	err := st.AssignBuilder(m.ID, c.ID+50)
	assert.True(t, errors.Is(err, ErrUnknownCrew))
	assert.Contains(t, logs.String(), "invalid crew member")
	logs.Reset()

	err = st.AssignBuilder(m.ID, c.ID)
	assert.ErrorIs(t, err, ErrInvalidSubject, "complete module")

	err = st.AssignBuilder(NoSubject, c.ID)
	assert.ErrorIs(t, err, ErrInvalidSubject)

	err = st.AssignBuilder(9999, c.ID)
	assert.ErrorIs(t, err, ErrInvalidSubject)
	assert.Contains(t, logs.String(), "invalid subject 9999")

	got, _ := st.CrewMember(c.ID)
	assert.Equal(t, CrewIdle, got.State)
	assert.Equal(t, NoSubject, got.Subject)
}

func TestSetBuildProgressClamps(t *testing.T) {
	st, _ := newTestStation(t)
	m := st.AddModule(testModule)

	require.True(t, st.SetBuildProgress(m.ID, 2))
	got, _ := st.Module(m.ID)
	assert.Equal(t, 1.0, got.BuildProgress)

	require.True(t, st.SetBuildProgress(m.ID, -1))
	got, _ = st.Module(m.ID)
	assert.Equal(t, 0.0, got.BuildProgress)

	assert.False(t, st.SetBuildProgress(12345, 0.5))
}

func TestCrewStateString(t *testing.T) {
	assert.Equal(t, "idle", CrewIdle.String())
	assert.Equal(t, "building", CrewBuilding.String())
	assert.Equal(t, "unknown", CrewState(9).String())
}
