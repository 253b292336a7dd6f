package catalogs

// Built-in blueprint ids.
const (
	SolarPanel      = "solar_panel"
	AirRecycler     = "air_recycler"
	WaterRecycler   = "water_recycler"
	Toilet          = "toilet"
	SleepingQuarter = "sleeping_quarter"
	Hydroponics     = "hydroponics"
)

// DefaultDefs are the gameplay constants shipped with the game.
func DefaultDefs() []BlueprintDef {
	return []BlueprintDef{
		{
			ID:           SolarPanel,
			Label:        "Solar panel",
			Description:  "Photovoltaic array mounted on an external pin. 120 kW average, 240 kW peak in full sun.",
			Prefab:       "prefabs/solar_panel.fab",
			Power:        Flow{Production: 120},
			MaterialCost: 40,
			BuildTime:    10,
		},
		{
			ID:           AirRecycler,
			Label:        "Air recycler",
			Description:  "Scrubs CO2 and regenerates breathable air.",
			Power:        Flow{Consumption: 30},
			Heat:         Flow{Production: 20},
			Air:          Flow{Production: 2000},
			Volume:       2,
			MaterialCost: 25,
			BuildTime:    10,
		},
		{
			ID:           WaterRecycler,
			Label:        "Water recycler",
			Description:  "Reclaims potable water from humidity and waste.",
			Power:        Flow{Consumption: 25},
			Heat:         Flow{Production: 15},
			Water:        Flow{Production: 10},
			Volume:       2,
			MaterialCost: 25,
			BuildTime:    10,
		},
		{
			ID:           Toilet,
			Label:        "Toilet",
			Description:  "Zero-g waste collection.",
			Power:        Flow{Consumption: 2},
			Heat:         Flow{Production: 1},
			Water:        Flow{Consumption: 0.5},
			Volume:       1,
			MaterialCost: 10,
			BuildTime:    5,
		},
		{
			ID:           SleepingQuarter,
			Label:        "Sleeping quarter",
			Description:  "Private crew berth.",
			Power:        Flow{Consumption: 1},
			Heat:         Flow{Production: 2},
			Volume:       4,
			MaterialCost: 15,
			BuildTime:    5,
		},
		{
			ID:           Hydroponics,
			Label:        "Hydroponics",
			Description:  "Grows food under artificial light.",
			Power:        Flow{Consumption: 40},
			Heat:         Flow{Production: 10},
			Air:          Flow{Production: 100},
			Water:        Flow{Consumption: 2},
			Food:         Flow{Production: 20000},
			Volume:       6,
			MaterialCost: 60,
			BuildTime:    20,
		},
	}
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := New(DefaultDefs())
	if err != nil {
		panic("catalogs: invalid built-in blueprints: " + err.Error())
	}
	return c
}
