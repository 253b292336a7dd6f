package station

import (
	"errors"

	"stationsim.ai/internal/sim/catalogs"
	"stationsim.ai/internal/sim/scene"
)

// NoSubject marks an idle crew member.
const NoSubject uint32 = 0xFFFFFFFF

var (
	ErrUnknownCrew    = errors.New("unknown crew member")
	ErrInvalidSubject = errors.New("subject is not an incomplete module or extension")
)

type CrewState uint8

const (
	CrewIdle CrewState = iota
	CrewBuilding
)

func (s CrewState) String() string {
	switch s {
	case CrewIdle:
		return "idle"
	case CrewBuilding:
		return "building"
	default:
		return "unknown"
	}
}

type CrewMember struct {
	ID      uint32
	Name    string
	State   CrewState
	Subject uint32
}

// Extension is a sub-system mounted in a module. Entity is NoEntity for
// purely abstract sub-systems.
type Extension struct {
	ID            uint32
	Entity        scene.Entity
	BuildProgress float64
	Blueprint     catalogs.Handle
}

func (e Extension) Complete() bool { return e.BuildProgress >= 1 }

// Module owns its extensions; slice order is attachment order.
type Module struct {
	ID            uint32
	Entity        scene.Entity
	Extensions    []Extension
	BuildProgress float64
}

func (m Module) Complete() bool { return m.BuildProgress >= 1 }

func (m Module) clone() Module {
	m.Extensions = append([]Extension(nil), m.Extensions...)
	return m
}

// Resources is one instantaneous rate per resource.
type Resources struct {
	Air   float64
	Power float64
	Heat  float64
	Water float64
	Food  float64
	Fuel  float64
}

type Storage struct {
	Food      float64
	Water     float64
	Fuel      float64
	Materials float64
}

// Stats is recomputed every tick from the station state; only Stored carries
// over between ticks.
type Stats struct {
	Production     Resources
	Consumption    Resources
	Stored         Storage
	StorageSpace   Storage
	Volume         float64
	OccupiedVolume float64
	Efficiency     float64
}
