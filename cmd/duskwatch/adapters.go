package main

import (
	"github.com/pkarpov/duskwatch/internal/night"
	"github.com/pkarpov/duskwatch/internal/plan"
	"github.com/pkarpov/duskwatch/internal/unit"
)

// factoryAdapter narrows *unit.Factory to the scheduler's UnitFactory
// contract.
type factoryAdapter struct {
	factory *unit.Factory
}

func (a *factoryAdapter) Spawn(unitType string, point plan.SpawnPoint, speedMult, healthMult float64) (night.Unit, error) {
	u, err := a.factory.Spawn(unitType, point, speedMult, healthMult)
	if err != nil {
		return nil, err
	}
	return u, nil
}
