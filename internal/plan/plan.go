package plan

import (
	"errors"
	"fmt"
)

// NightsPerWeek is the fixed number of defense nights in a week,
// one per in-game day.
const NightsPerWeek = 5

// SpawnPoint is a named world position units can appear at.
type SpawnPoint struct {
	Name string  `yaml:"name"`
	X    float64 `yaml:"x"`
	Y    float64 `yaml:"y"`
	Z    float64 `yaml:"z"`
}

// Wave defines one timed batch of units within a night.
// Immutable once the plan is loaded.
type Wave struct {
	Name             string       `yaml:"name"`
	UnitCount        int          `yaml:"unit_count"`
	SpawnInterval    float64      `yaml:"spawn_interval"` // seconds between spawns
	StartOffset      float64      `yaml:"start_offset"`   // seconds from night start
	UnitTypes        []string     `yaml:"unit_types"`
	SpeedMultiplier  float64      `yaml:"speed_multiplier"`
	HealthMultiplier float64      `yaml:"health_multiplier"`
	SpawnPoints      []SpawnPoint `yaml:"spawn_points"`
}

// Night is one scheduled defense encounter.
type Night struct {
	Name  string `yaml:"name"`
	Waves []Wave `yaml:"waves"`
}

// TotalUnits returns the sum of unit counts over all waves.
func (n *Night) TotalUnits() int {
	total := 0
	for _, w := range n.Waves {
		total += w.UnitCount
	}
	return total
}

// Week is a fixed sequence of exactly NightsPerWeek nights.
type Week struct {
	Nights []Night `yaml:"nights"`
}

// Plan is the full Week → Night → Wave spawn hierarchy.
// Read-only at runtime; there are no concurrent writers.
type Plan struct {
	Weeks []Week `yaml:"weeks"`
}

// ErrDayOutOfPlan is returned when a day number resolves past the last
// configured week. Callers treat it as a configuration error: the night
// simply does not run.
var ErrDayOutOfPlan = errors.New("day is outside the spawn plan")

// ResolveNight maps a 1-based absolute day number onto (week, night)
// indices. The mapping is pure: the same day always resolves to the
// same indices.
func (p *Plan) ResolveNight(day int) (week, night int, err error) {
	if day < 1 {
		return 0, 0, fmt.Errorf("resolving night for day %d: day must be >= 1", day)
	}
	week = (day - 1) / NightsPerWeek
	night = (day - 1) % NightsPerWeek
	if week >= len(p.Weeks) {
		return week, night, fmt.Errorf("resolving night for day %d: week %d of %d: %w",
			day, week, len(p.Weeks), ErrDayOutOfPlan)
	}
	return week, night, nil
}

// NightFor resolves and returns the night definition for a day.
func (p *Plan) NightFor(day int) (*Night, error) {
	week, night, err := p.ResolveNight(day)
	if err != nil {
		return nil, err
	}
	return &p.Weeks[week].Nights[night], nil
}

// NightAt returns the night at explicit indices, or nil when out of bounds.
func (p *Plan) NightAt(week, night int) *Night {
	if week < 0 || week >= len(p.Weeks) {
		return nil
	}
	if night < 0 || night >= len(p.Weeks[week].Nights) {
		return nil
	}
	return &p.Weeks[week].Nights[night]
}

// Validate checks every wave definition and aggregates all violations,
// so a broken plan is reported in full on startup instead of failing one
// night at a time.
func (p *Plan) Validate() error {
	var errs []error

	if len(p.Weeks) == 0 {
		errs = append(errs, errors.New("plan has no weeks"))
	}

	for wi, week := range p.Weeks {
		if len(week.Nights) != NightsPerWeek {
			errs = append(errs, fmt.Errorf("week %d: has %d nights, want %d",
				wi, len(week.Nights), NightsPerWeek))
		}
		for ni, night := range week.Nights {
			for vi, wave := range night.Waves {
				errs = append(errs, validateWave(wi, ni, vi, &wave)...)
			}
		}
	}

	return errors.Join(errs...)
}

func validateWave(week, night, idx int, w *Wave) []error {
	var errs []error
	at := func(field, format string, args ...any) error {
		return fmt.Errorf("week %d night %d wave %d (%s): %s %s",
			week, night, idx, w.Name, field, fmt.Sprintf(format, args...))
	}

	if w.UnitCount <= 0 {
		errs = append(errs, at("unit_count", "%d, must be > 0", w.UnitCount))
	}
	if w.SpawnInterval <= 0 {
		errs = append(errs, at("spawn_interval", "%g, must be > 0", w.SpawnInterval))
	}
	if w.StartOffset < 0 {
		errs = append(errs, at("start_offset", "%g, must be >= 0", w.StartOffset))
	}
	if len(w.UnitTypes) == 0 {
		errs = append(errs, at("unit_types", "empty, wave would abort at runtime"))
	}
	if w.SpeedMultiplier <= 0 {
		errs = append(errs, at("speed_multiplier", "%g, must be > 0", w.SpeedMultiplier))
	}
	if w.HealthMultiplier <= 0 {
		errs = append(errs, at("health_multiplier", "%g, must be > 0", w.HealthMultiplier))
	}
	if len(w.SpawnPoints) == 0 {
		errs = append(errs, at("spawn_points", "empty, wave would abort at runtime"))
	}
	return errs
}

// UnitTypes returns the deduplicated set of unit type names referenced
// anywhere in the plan. Used at startup to cross-check the plan against
// the configured unit roster.
func (p *Plan) UnitTypes() []string {
	seen := make(map[string]struct{})
	var types []string
	for _, week := range p.Weeks {
		for _, night := range week.Nights {
			for _, wave := range night.Waves {
				for _, t := range wave.UnitTypes {
					if _, ok := seen[t]; ok {
						continue
					}
					seen[t] = struct{}{}
					types = append(types, t)
				}
			}
		}
	}
	return types
}
