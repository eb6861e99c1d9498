package assist

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// ErrInvalidConfiguration is returned when a run configuration is
// missing a required constant or flag.
var ErrInvalidConfiguration = errors.New("invalid configuration")

// DefaultSmallBodyFile is the asteroid SPK file used when neither the
// environment nor the config file names one.
const DefaultSmallBodyFile = "sb441-n16.bsp"

// Config is the immutable per-run configuration of a simulation.
type Config struct {
	G  float64 // gravitational constant, au^3 Msun^-1 day^-2
	C  float64 // speed of light, au/day
	C2 float64 // c^2, derived in Validate

	Geocentric      bool    // geocentric equations of motion
	Epsilon         float64 // integrator tolerance
	InitialDt       float64 // suggested first step, days
	MinDt           float64 // smallest step the controller may take, days
	ExactFinishTime bool    // truncate the last step onto the target time

	NonGravActive bool // apply the A1/A2/A3 acceleration
	UseEIH        bool // EIH relativistic treatment instead of Damour–Deruelle

	PlanetPath    string // DE kernel path
	SmallBodyPath string // asteroid SPK path
}

// DefaultConfig returns the configuration the C driver hard-wires:
// DE441 constants, a default epsilon of 1e-9 that the caller may
// override, a 1-day first step, a 1e-2 day step floor and exact finish
// times.
func DefaultConfig() Config {
	return Config{
		G:               GravitationalConstant,
		C:               SpeedOfLight,
		Epsilon:         1e-9,
		InitialDt:       1.0,
		MinDt:           1e-2,
		ExactFinishTime: true,
		SmallBodyPath:   DefaultSmallBodyFile,
	}
}

// Validate checks the configuration and derives C2. It must be called
// (directly or through NewSimulation) before the config is used.
func (c *Config) Validate() error {
	if c.C <= 0 {
		return fmt.Errorf("%w: speed of light not set", ErrInvalidConfiguration)
	}
	if c.Epsilon <= 0 {
		return fmt.Errorf("%w: tolerance must be positive", ErrInvalidConfiguration)
	}
	if c.MinDt <= 0 {
		return fmt.Errorf("%w: minimum step must be positive", ErrInvalidConfiguration)
	}
	c.C2 = c.C * c.C
	return nil
}

// LoadConfig resolves the ephemeris file paths on top of DefaultConfig.
// Order of precedence: environment (JPL_PLANET_EPHEM, JPL_SB_EPHEM),
// then an assist.toml in the directory named by ASSIST_CONFIG, then
// the built-in defaults.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()

	if dir := os.Getenv("ASSIST_CONFIG"); dir != "" {
		v := viper.New()
		v.SetConfigName("assist")
		v.AddConfigPath(dir)
		if err := v.ReadInConfig(); err != nil {
			return cfg, fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
		}
		if p := v.GetString("ephemeris.planets"); p != "" {
			cfg.PlanetPath = p
		}
		if p := v.GetString("ephemeris.smallbodies"); p != "" {
			cfg.SmallBodyPath = p
		}
		if v.IsSet("integrator.epsilon") {
			cfg.Epsilon = v.GetFloat64("integrator.epsilon")
		}
		if v.IsSet("integrator.min_dt") {
			cfg.MinDt = v.GetFloat64("integrator.min_dt")
		}
	}

	if p := os.Getenv("JPL_PLANET_EPHEM"); p != "" {
		cfg.PlanetPath = p
	}
	if p := os.Getenv("JPL_SB_EPHEM"); p != "" {
		cfg.SmallBodyPath = p
	}
	return cfg, cfg.Validate()
}
