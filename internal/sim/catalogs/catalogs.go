package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/go-playground/validator/v10"
)

// Handle is the stable reference to a blueprint used by extensions and
// snapshots instead of copying the definition.
type Handle uint16

// Flow is a per-resource production/consumption pair, per simulated second.
type Flow struct {
	Production  float64 `json:"production,omitempty" validate:"gte=0"`
	Consumption float64 `json:"consumption,omitempty" validate:"gte=0"`
}

type BlueprintDef struct {
	ID          string `json:"id" validate:"required"`
	Label       string `json:"label" validate:"required"`
	Description string `json:"description"`
	// Prefab is the visual template instantiated for the extension; empty
	// for purely abstract sub-systems.
	Prefab string `json:"prefab,omitempty"`

	Power Flow `json:"power"`
	Heat  Flow `json:"heat"`
	Water Flow `json:"water"`
	Food  Flow `json:"food"`
	Air   Flow `json:"air"`

	Volume       float64 `json:"volume" validate:"gte=0"`
	MaterialCost float64 `json:"material_cost" validate:"gte=0"`
	BuildTime    float64 `json:"build_time" validate:"gte=0"`
}

// Pinned reports whether the blueprint mounts on an ext_ anchor.
func (d BlueprintDef) Pinned() bool { return d.Prefab != "" }

// Catalog is the closed, immutable set of buildable extension types.
type Catalog struct {
	Palette []string
	Index   map[string]Handle
	Defs    []BlueprintDef
	Digest  string
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Load reads <configDir>/blueprints.json. A missing file yields the built-in
// catalog.
func Load(configDir string) (*Catalog, error) {
	path := filepath.Join(configDir, "blueprints.json")
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	var defs []BlueprintDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return nil, fmt.Errorf("blueprints.json: %w", err)
	}
	c, err := New(defs)
	if err != nil {
		return nil, fmt.Errorf("blueprints.json: %w", err)
	}
	return c, nil
}

// New builds a catalog from in-memory definitions. The digest covers the
// canonical encoding of the sorted definitions, not any source file layout.
func New(defs []BlueprintDef) (*Catalog, error) {
	c, err := build(defs)
	if err != nil {
		return nil, err
	}
	b, _ := json.Marshal(c.Defs)
	c.Digest = sha256Hex(b)
	return c, nil
}

func build(defs []BlueprintDef) (*Catalog, error) {
	v := validator.New()
	byID := make(map[string]BlueprintDef, len(defs))
	for _, d := range defs {
		if err := v.Struct(d); err != nil {
			return nil, fmt.Errorf("blueprint %q: %w", d.ID, err)
		}
		if _, dup := byID[d.ID]; dup {
			return nil, fmt.Errorf("duplicate blueprint %q", d.ID)
		}
		byID[d.ID] = d
	}
	if len(byID) > int(^Handle(0)) {
		return nil, fmt.Errorf("too many blueprints: %d", len(byID))
	}

	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	c := &Catalog{
		Palette: ids,
		Index:   make(map[string]Handle, len(ids)),
		Defs:    make([]BlueprintDef, len(ids)),
	}
	for i, id := range ids {
		c.Index[id] = Handle(i)
		c.Defs[i] = byID[id]
	}
	return c, nil
}

func (c *Catalog) Lookup(id string) (Handle, bool) {
	h, ok := c.Index[id]
	return h, ok
}

// MustHandle resolves id or panics: the catalog is closed, so an unknown id
// is a caller bug.
func (c *Catalog) MustHandle(id string) Handle {
	h, ok := c.Index[id]
	if !ok {
		panic(fmt.Sprintf("catalogs: unknown blueprint %q", id))
	}
	return h
}

func (c *Catalog) Get(h Handle) BlueprintDef {
	if int(h) >= len(c.Defs) {
		panic(fmt.Sprintf("catalogs: blueprint handle %d out of range", h))
	}
	return c.Defs[h]
}

// All returns the definitions in handle order.
func (c *Catalog) All() []BlueprintDef {
	out := make([]BlueprintDef, len(c.Defs))
	copy(out, c.Defs)
	return out
}

func (c *Catalog) Len() int { return len(c.Defs) }
