package catalogs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalogHandlesAreSortedAndStable(t *testing.T) {
	c := Default()
	require.Equal(t, 6, c.Len())
	for i, id := range c.Palette {
		h, ok := c.Lookup(id)
		require.True(t, ok)
		assert.Equal(t, Handle(i), h)
		assert.Equal(t, id, c.Get(h).ID)
	}
	assert.Equal(t, Default().Digest, c.Digest)
}

func TestMustHandlePanicsOnUnknown(t *testing.T) {
	c := Default()
	assert.Panics(t, func() { c.MustHandle("warp_core") })
	assert.Panics(t, func() { c.Get(Handle(c.Len())) })
	assert.NotPanics(t, func() { c.MustHandle(SolarPanel) })
}

func TestSolarPanelIsTheOnlyPinnedBlueprint(t *testing.T) {
	c := Default()
	for _, d := range c.All() {
		assert.Equal(t, d.ID == SolarPanel, d.Pinned(), d.ID)
	}
}

func TestLoadFallsBackToDefault(t *testing.T) {
	c, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, Default().Palette, c.Palette)
}

func TestLoadRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	write := func(body string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "blueprints.json"), []byte(body), 0o644))
	}

	write(`[{"id":"a","label":"A","power":{"production":-1}}]`)
	_, err := Load(dir)
	assert.Error(t, err)

	write(`[{"id":"a","label":"A"},{"id":"a","label":"B"}]`)
	_, err = Load(dir)
	assert.ErrorContains(t, err, "duplicate")

	write(`[{"id":"","label":"A"}]`)
	_, err = Load(dir)
	assert.Error(t, err)

	write(`[{"id":"b","label":"B"},{"id":"a","label":"A","volume":3}]`)
	c, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, c.Palette)
	assert.Equal(t, 3.0, c.Get(c.MustHandle("a")).Volume)
	assert.Len(t, c.Digest, 64)
}

func TestShippedBlueprintsMatchDefaults(t *testing.T) {
	c, err := Load(filepath.Join("..", "..", "..", "configs"))
	require.NoError(t, err)
	assert.Equal(t, Default().All(), c.All())
	assert.Equal(t, Default().Digest, c.Digest)
}

func TestDigestIgnoresFileLayout(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blueprints.json")
	compact := `[{"id":"b","label":"B"},{"id":"a","label":"A","volume":3}]`
	require.NoError(t, os.WriteFile(path, []byte(compact), 0o644))
	c1, err := Load(dir)
	require.NoError(t, err)

	spaced := "[\n  {\"id\": \"a\", \"label\": \"A\", \"volume\": 3},\n  {\"id\": \"b\", \"label\": \"B\"}\n]\n\n"
	require.NoError(t, os.WriteFile(path, []byte(spaced), 0o644))
	c2, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, c1.Digest, c2.Digest)

	c3, err := New([]BlueprintDef{{ID: "a", Label: "A", Volume: 3}, {ID: "b", Label: "B"}})
	require.NoError(t, err)
	assert.Equal(t, c1.Digest, c3.Digest)
}
