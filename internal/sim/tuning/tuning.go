package tuning

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Tuning struct {
	TickRateHz int `yaml:"tick_rate_hz" json:"tick_rate_hz" validate:"gt=0,lte=240"`

	// Build rates are progress fractions per simulated second.
	ModuleBuildRate    float64 `yaml:"module_build_rate" json:"module_build_rate" validate:"gt=0"`
	ExtensionBuildRate float64 `yaml:"extension_build_rate" json:"extension_build_rate" validate:"gt=0"`

	Module ModuleBaseline `yaml:"module" json:"module"`
	Crew   CrewBaseline   `yaml:"crew" json:"crew"`

	PinMaxDistance float64 `yaml:"pin_max_distance" json:"pin_max_distance" validate:"gt=0"`

	// Orbit of the station reference point around the planet centre.
	OrbitRadius float64 `yaml:"orbit_radius" json:"orbit_radius" validate:"gt=0"`
	OrbitSpeed  float64 `yaml:"orbit_speed" json:"orbit_speed" validate:"gte=0"`

	Camera CameraTuning `yaml:"camera" json:"camera"`

	MaxTimeScale float64 `yaml:"max_time_scale" json:"max_time_scale" validate:"gte=1"`

	StarterCrew    []string `yaml:"starter_crew" json:"starter_crew" validate:"dive,required"`
	StarterStorage Storage  `yaml:"starter_storage" json:"starter_storage"`

	SnapshotCompression string `yaml:"snapshot_compression" json:"snapshot_compression" validate:"oneof=zstd lz4"`
	LogEveryTicks       int    `yaml:"log_every_ticks" json:"log_every_ticks" validate:"gte=0"`
	IndexEveryTicks     int    `yaml:"index_every_ticks" json:"index_every_ticks" validate:"gte=0"`
	SnapshotEveryTicks  int    `yaml:"snapshot_every_ticks" json:"snapshot_every_ticks" validate:"gte=0"`

	RateLimits RateLimits `yaml:"rate_limits" json:"rate_limits"`
}

// ModuleBaseline holds the fixed per-module contributions of a completed
// module.
type ModuleBaseline struct {
	Volume          float64 `yaml:"volume" json:"volume" validate:"gte=0"`
	HeatEmission    float64 `yaml:"heat_emission" json:"heat_emission" validate:"gte=0"`
	HeatProduction  float64 `yaml:"heat_production" json:"heat_production" validate:"gte=0"`
	PowerUse        float64 `yaml:"power_consumption" json:"power_consumption" validate:"gte=0"`
	FuelConsumption float64 `yaml:"fuel_consumption" json:"fuel_consumption" validate:"gte=0"`
	Storage         Storage `yaml:"storage" json:"storage"`
}

type CrewBaseline struct {
	HeatProduction   float64 `yaml:"heat_production" json:"heat_production" validate:"gte=0"`
	AirConsumption   float64 `yaml:"air_consumption" json:"air_consumption" validate:"gte=0"`
	WaterConsumption float64 `yaml:"water_consumption" json:"water_consumption" validate:"gte=0"`
	FoodConsumption  float64 `yaml:"food_consumption" json:"food_consumption" validate:"gte=0"`
}

type Storage struct {
	Food      float64 `yaml:"food" json:"food" validate:"gte=0"`
	Water     float64 `yaml:"water" json:"water" validate:"gte=0"`
	Fuel      float64 `yaml:"fuel" json:"fuel" validate:"gte=0"`
	Materials float64 `yaml:"materials" json:"materials" validate:"gte=0"`
}

type CameraTuning struct {
	LookSensitivity float64 `yaml:"look_sensitivity" json:"look_sensitivity" validate:"gt=0"`
	MoveSpeed       float64 `yaml:"move_speed" json:"move_speed" validate:"gt=0"`
	FastMoveSpeed   float64 `yaml:"fast_move_speed" json:"fast_move_speed" validate:"gt=0"`
}

type RateLimits struct {
	CommandsPerSecond float64 `yaml:"commands_per_second" json:"commands_per_second" validate:"gt=0"`
	CommandBurst      int     `yaml:"command_burst" json:"command_burst" validate:"gt=0"`
}

func Defaults() Tuning {
	return Tuning{
		TickRateHz:         20,
		ModuleBuildRate:    0.05,
		ExtensionBuildRate: 0.1,
		Module: ModuleBaseline{
			Volume:          40,
			HeatEmission:    10,
			HeatProduction:  5,
			PowerUse:        7,
			FuelConsumption: 0.01,
			Storage: Storage{
				Food:      200000,
				Water:     400,
				Fuel:      500,
				Materials: 1000,
			},
		},
		Crew: CrewBaseline{
			HeatProduction:   100,
			AirConsumption:   450,
			WaterConsumption: 4.5,
			FoodConsumption:  2700,
		},
		PinMaxDistance: 5,
		OrbitRadius:    6378e3 + 400e3,
		OrbitSpeed:     0.2,
		Camera: CameraTuning{
			LookSensitivity: 0.003,
			MoveSpeed:       10,
			FastMoveSpeed:   100,
		},
		MaxTimeScale:        100,
		StarterCrew:         []string{"Valentina Ortiz", "Kenji Mori"},
		StarterStorage:      Storage{Food: 100000, Water: 200, Fuel: 250, Materials: 500},
		SnapshotCompression: "zstd",
		LogEveryTicks:       20,
		IndexEveryTicks:     100,
		SnapshotEveryTicks:  1200,
		RateLimits: RateLimits{
			CommandsPerSecond: 20,
			CommandBurst:      40,
		},
	}
}

// Load reads a tuning file over the defaults, so a partial file only
// overrides the keys it names.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	return validator.New().Struct(t)
}
