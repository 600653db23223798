package plan

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads and validates a spawn plan from a YAML file.
// The plan is loaded once at startup and never mutated afterwards.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading spawn plan %s: %w", path, err)
	}

	var p Plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing spawn plan %s: %w", path, err)
	}

	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid spawn plan %s: %w", path, err)
	}

	nights := 0
	units := 0
	for _, week := range p.Weeks {
		for _, night := range week.Nights {
			nights++
			units += night.TotalUnits()
		}
	}
	slog.Info("spawn plan loaded",
		"path", path,
		"weeks", len(p.Weeks),
		"nights", nights,
		"totalUnits", units)

	return &p, nil
}
