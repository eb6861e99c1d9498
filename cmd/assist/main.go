package main

import (
	"fmt"
	"math"
	"os"

	kitlog "github.com/go-kit/kit/log"
	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Smithsonian/assist"
)

// scenario is the YAML run description consumed by `assist run`.
type scenario struct {
	TStart     float64 `yaml:"tstart"` // TDB Julian date
	TEnd       float64 `yaml:"tend"`
	Epsilon    float64 `yaml:"epsilon"`
	InitialDt  float64 `yaml:"initial_dt"`
	Geocentric bool    `yaml:"geocentric"`
	MaxSteps   int     `yaml:"max_steps"`

	Particles []struct {
		State   [6]float64 `yaml:"state"`
		NonGrav [3]float64 `yaml:"nongrav"`
	} `yaml:"particles"`

	Variationals []struct {
		Parent int        `yaml:"parent"`
		State  [6]float64 `yaml:"state"`
	} `yaml:"variationals"`
}

func main() {
	logger := kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(os.Stderr))
	logger = kitlog.With(logger, "subsys", "cli")

	var plot bool
	var csvPath string

	root := &cobra.Command{
		Use:   "assist",
		Short: "Ephemeris-quality test particle integrations",
	}

	run := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Integrate the particles of a YAML scenario",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := loadScenario(args[0])
			if err != nil {
				return err
			}
			return runScenario(logger, sc, plot, csvPath)
		},
	}
	run.Flags().BoolVar(&plot, "plot", false, "plot the radius of particle 0 from the integration origin")
	run.Flags().StringVar(&csvPath, "csv", "", "write the dense output to a CSV file")
	root.AddCommand(run)

	bodies := &cobra.Command{
		Use:   "bodies",
		Short: "List the perturbers of the force model",
		Run: func(cmd *cobra.Command, args []string) {
			for i := 0; i < assist.NTot; i++ {
				fmt.Printf("%2d  %s\n", i, assist.BodyName(i))
			}
		},
	}
	root.AddCommand(bodies)

	if err := root.Execute(); err != nil {
		logger.Log("level", "critical", "err", err)
		os.Exit(1)
	}
}

func loadScenario(path string) (*scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	sc := &scenario{Epsilon: 1e-9, InitialDt: 1, MaxSteps: 4096}
	if err := yaml.Unmarshal(raw, sc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if len(sc.Particles) == 0 {
		return nil, fmt.Errorf("scenario %s holds no particles", path)
	}
	return sc, nil
}

func runScenario(logger kitlog.Logger, sc *scenario, plot bool, csvPath string) error {
	cfg, err := assist.LoadConfig()
	if err != nil {
		return err
	}
	cfg.Epsilon = sc.Epsilon
	cfg.InitialDt = sc.InitialDt
	cfg.Geocentric = sc.Geocentric
	for _, p := range sc.Particles {
		if p.NonGrav != [3]float64{} {
			cfg.NonGravActive = true
		}
	}

	planets, err := assist.NewJPLPlanetSource(cfg.PlanetPath)
	if err != nil {
		return err
	}
	defer planets.Close()
	smalls, err := assist.NewSPKSource(cfg.SmallBodyPath, planets.AUKilometres())
	if err != nil {
		return err
	}
	defer smalls.Close()
	logger.Log("level", "info", "kernel", planets.KernelName(), "cau", planets.AUKilometres())

	sim, err := assist.NewSimulation(cfg, planets, smalls)
	if err != nil {
		return err
	}
	instate := make([]float64, 0, 6*len(sc.Particles))
	for _, p := range sc.Particles {
		instate = append(instate, p.State[:]...)
	}
	if err := sim.AddParticles(instate); err != nil {
		return err
	}
	for i, p := range sc.Particles {
		if p.NonGrav != [3]float64{} {
			if err := sim.SetNonGrav(i, p.NonGrav[0], p.NonGrav[1], p.NonGrav[2]); err != nil {
				return err
			}
		}
	}
	var invar []float64
	var parents []int
	for _, v := range sc.Variationals {
		invar = append(invar, v.State[:]...)
		parents = append(parents, v.Parent)
	}
	if err := sim.AddVariationals(invar, parents); err != nil {
		return err
	}

	nAll := len(sc.Particles) + len(sc.Variationals)
	nSub := 10
	rows := sc.MaxSteps*nSub + 1
	times := make([]float64, rows)
	states := make([]float64, rows*6*nAll)
	sim.AttachOutput(times, states, nil)

	status, nOut := sim.IntegrateUntil(sc.TStart, sc.TEnd)
	samples := nOut*nSub + 1
	logger.Log("level", "notice", "status", status.String(), "steps", nOut, "samples", samples)
	for _, w := range sim.Warnings() {
		logger.Log("level", "warning", "message", w)
	}

	if csvPath != "" {
		if err := writeCSV(csvPath, times[:samples], states, nAll); err != nil {
			return err
		}
		logger.Log("level", "info", "csv", csvPath)
	}

	if plot {
		radii := make([]float64, samples)
		for r := 0; r < samples; r++ {
			off := r * 6 * nAll
			radii[r] = math.Sqrt(states[off]*states[off] + states[off+1]*states[off+1] + states[off+2]*states[off+2])
		}
		fmt.Println(asciigraph.Plot(radii, asciigraph.Height(12),
			asciigraph.Caption("radius of particle 0 from the integration origin (au)")))
	}

	if status != assist.StatusOK {
		return fmt.Errorf("integration ended with status %s", status)
	}
	return nil
}

func writeCSV(path string, times []float64, states []float64, nAll int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	for r, t := range times {
		fmt.Fprintf(f, "%.9f", t)
		off := r * 6 * nAll
		for c := 0; c < 6*nAll; c++ {
			fmt.Fprintf(f, ",%.16e", states[off+c])
		}
		fmt.Fprintln(f)
	}
	return nil
}
