package station

import (
	"math"

	"stationsim.ai/internal/sim/mathx"
)

// ComputeStats rebuilds the instantaneous economy from the current state and
// integrates storage over dt. The power pass must run first: its efficiency
// scales every extension in the resource pass.
func (s *Station) ComputeStats(dt float64) Stats {
	st := &s.stats
	st.Production = Resources{}
	st.Consumption = Resources{}
	st.StorageSpace = Storage{}
	st.Volume = 0
	st.OccupiedVolume = 0

	base := s.tune.Module
	crew := s.tune.Crew

	// Power pass.
	for _, m := range s.modules {
		if !m.Complete() {
			continue
		}
		st.Consumption.Power += base.PowerUse
		for _, ext := range m.Extensions {
			if !ext.Complete() {
				continue
			}
			def := s.catalog.Get(ext.Blueprint)
			st.Production.Power += def.Power.Production
			st.Consumption.Power += def.Power.Consumption
		}
	}
	st.Efficiency = efficiency(st.Production.Power, st.Consumption.Power)
	eff := st.Efficiency

	// Resource pass.
	for _, m := range s.modules {
		if !m.Complete() {
			continue
		}
		st.Volume += base.Volume
		st.Consumption.Heat += base.HeatEmission
		st.Production.Heat += base.HeatProduction
		st.Consumption.Fuel += base.FuelConsumption
		st.StorageSpace.Food += base.Storage.Food
		st.StorageSpace.Water += base.Storage.Water
		st.StorageSpace.Fuel += base.Storage.Fuel
		st.StorageSpace.Materials += base.Storage.Materials

		for _, ext := range m.Extensions {
			if !ext.Complete() {
				continue
			}
			def := s.catalog.Get(ext.Blueprint)
			st.OccupiedVolume += def.Volume
			st.Production.Air += def.Air.Production * eff
			st.Consumption.Air += def.Air.Consumption * eff
			st.Production.Food += def.Food.Production * eff
			st.Consumption.Food += def.Food.Consumption * eff
			st.Production.Heat += def.Heat.Production * eff
			st.Consumption.Heat += def.Heat.Consumption * eff
			st.Production.Water += def.Water.Production * eff
			st.Consumption.Water += def.Water.Consumption * eff
		}
	}
	for range s.crew {
		st.Production.Heat += crew.HeatProduction
		st.Consumption.Air += crew.AirConsumption
		st.Consumption.Water += crew.WaterConsumption
		st.Consumption.Food += crew.FoodConsumption
	}

	// Storage integration. Materials are only spent by construction.
	st.Stored.Water += dt * (st.Production.Water - st.Consumption.Water)
	st.Stored.Food += dt * (st.Production.Food - st.Consumption.Food)
	st.Stored.Fuel -= dt * st.Consumption.Fuel
	st.Stored = clampStorage(st.Stored, st.StorageSpace)

	return *st
}

// efficiency is produced/consumed clamped to [0,1]. With no consumption the
// station is fully efficient only if it produces anything at all.
func efficiency(produced, consumed float64) float64 {
	var e float64
	switch {
	case consumed > 0:
		e = produced / consumed
	case produced > 0:
		e = 1
	default:
		e = 0
	}
	if math.IsNaN(e) {
		return 0
	}
	return mathx.Clamp(e, 0, 1)
}

func clampStorage(v, space Storage) Storage {
	return Storage{
		Food:      clampStored(v.Food, space.Food),
		Water:     clampStored(v.Water, space.Water),
		Fuel:      clampStored(v.Fuel, space.Fuel),
		Materials: clampStored(v.Materials, space.Materials),
	}
}

func clampStored(v, space float64) float64 {
	if math.IsNaN(v) || space <= 0 {
		return 0
	}
	return mathx.Clamp(v, 0, space)
}

// SetStored seeds storage levels; they are clamped on the next ComputeStats.
func (s *Station) SetStored(v Storage) { s.stats.Stored = v }
