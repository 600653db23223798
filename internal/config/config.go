package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the duskwatch server.
type Config struct {
	LogLevel string `yaml:"log_level"` // debug, info, warn, error

	Clock    ClockConfig    `yaml:"clock"`
	Night    NightConfig    `yaml:"night"`
	Units    UnitsConfig    `yaml:"units"`
	Database DatabaseConfig `yaml:"database"`
	API      APIConfig      `yaml:"api"`
}

// ClockConfig configures the day/night cycle.
type ClockConfig struct {
	DayLengthSeconds float64 `yaml:"day_length_seconds"` // real seconds per in-game day at 1x
	StartDay         int     `yaml:"start_day"`
	StartTimeOfDay   float64 `yaml:"start_time_of_day"` // [0,1)
	SpeedMultiplier  float64 `yaml:"speed_multiplier"`
}

// NightConfig configures the spawn scheduler.
type NightConfig struct {
	PlanPath           string  `yaml:"plan_path"`
	StartThreshold     float64 `yaml:"start_threshold"`         // dusk, fraction of day cycle
	PostClearTimeOfDay float64 `yaml:"post_clear_time_of_day"`  // where the clock jumps after a clear
	ObjectiveID        string  `yaml:"objective_id"`
	TickIntervalMS     int     `yaml:"tick_interval_ms"`
	PollIntervalMS     int     `yaml:"poll_interval_ms"`
}

// UnitsConfig is the unit roster: base stats per spawnable type.
type UnitsConfig map[string]UnitTypeConfig

// UnitTypeConfig holds base stats for one unit type.
type UnitTypeConfig struct {
	Health float64 `yaml:"health"`
	Speed  float64 `yaml:"speed"`
}

// DatabaseConfig holds PostgreSQL connection parameters. Disabled by
// default: the scheduler runs fine without persistence.
type DatabaseConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// APIConfig configures the localhost debug overlay.
type APIConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ListenAddr string `yaml:"listen_addr"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		LogLevel: "info",
		Clock: ClockConfig{
			DayLengthSeconds: 1200,
			StartDay:         1,
			StartTimeOfDay:   0.25,
			SpeedMultiplier:  1,
		},
		Night: NightConfig{
			PlanPath:           "config/plan.yaml",
			StartThreshold:     0.868,
			PostClearTimeOfDay: 0.995,
			ObjectiveID:        "zombie_defense",
			TickIntervalMS:     100,
			PollIntervalMS:     500,
		},
		Units: UnitsConfig{
			"walker": {Health: 100, Speed: 1.0},
			"runner": {Health: 60, Speed: 2.2},
			"brute":  {Health: 400, Speed: 0.7},
		},
		Database: DatabaseConfig{
			Enabled:  false,
			Host:     "127.0.0.1",
			Port:     5432,
			User:     "duskwatch",
			Password: "duskwatch",
			DBName:   "duskwatch",
			SSLMode:  "disable",
		},
		API: APIConfig{
			Enabled:    true,
			ListenAddr: "127.0.0.1:6460",
		},
	}
}

// Load loads server config from a YAML file.
// If the file doesn't exist, returns defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}
