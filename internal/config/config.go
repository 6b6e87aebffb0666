package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/radsim/internal/controller"
	"github.com/san-kum/radsim/internal/convergence"
	"github.com/san-kum/radsim/internal/model"
	"github.com/san-kum/radsim/internal/montecarlo"
	"github.com/san-kum/radsim/internal/physics"
	"github.com/san-kum/radsim/internal/transport"
)

const (
	DefaultIterations    = 20
	DefaultPackets       = 40000
	DefaultHold          = 3
	DefaultDamping       = 0.5
	DefaultThreshold     = 0.05
	DefaultLogSampling   = 5
	DefaultShells        = 20
	DefaultTimeExplosion = 13.0 // days
	DefaultLuminosity    = 1.0e43

	secondsPerDay = 86400.0
	cmPerKm       = 1e5
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("config: invalid configuration")

type Config struct {
	MonteCarlo MonteCarloConfig `yaml:"montecarlo"`
	Supernova  SupernovaConfig  `yaml:"supernova"`
	Structure  StructureConfig  `yaml:"structure"`
	Spectrum   SpectrumConfig   `yaml:"spectrum"`
	Solver     SolverConfig     `yaml:"solver"`
	Output     OutputConfig     `yaml:"output"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type MonteCarloConfig struct {
	Iterations         int               `yaml:"iterations"`
	NoOfPackets        int               `yaml:"no_of_packets"`
	LastNoOfPackets    int               `yaml:"last_no_of_packets"`
	NoOfVirtualPackets int               `yaml:"no_of_virtual_packets"`
	NThreads           int               `yaml:"nthreads"`
	Seed               int64             `yaml:"seed"`
	LogSampling        int               `yaml:"log_sampling"`
	Convergence        ConvergenceConfig `yaml:"convergence_strategy"`
}

// ConvergenceConfig holds the strategy. Per-quantity values left unset
// inherit DampingConstant and Threshold.
type ConvergenceConfig struct {
	Type             string         `yaml:"type"`
	DampingConstant  float64        `yaml:"damping_constant"`
	Threshold        float64        `yaml:"threshold"`
	HoldIterations   int            `yaml:"hold_iterations"`
	LockTInnerCycles int            `yaml:"lock_t_inner_cycles"`
	TRad             QuantityConfig `yaml:"t_rad"`
	W                QuantityConfig `yaml:"w"`
	TInner           QuantityConfig `yaml:"t_inner"`
}

// QuantityConfig overrides the shared settings for one quantity. A nil
// field is unset; an explicit 0 is kept (damping 0 freezes the quantity).
type QuantityConfig struct {
	DampingConstant *float64 `yaml:"damping_constant,omitempty"`
	Threshold       *float64 `yaml:"threshold,omitempty"`
}

// Float returns a pointer to v, for filling QuantityConfig.
func Float(v float64) *float64 { return &v }

func (q QuantityConfig) params(damping, threshold float64) convergence.Params {
	p := convergence.Params{DampingConstant: damping, Threshold: threshold}
	if q.DampingConstant != nil {
		p.DampingConstant = *q.DampingConstant
	}
	if q.Threshold != nil {
		p.Threshold = *q.Threshold
	}
	return p
}

type SupernovaConfig struct {
	LuminosityRequested float64 `yaml:"luminosity_requested"` // erg/s
	LuminosityNuStart   float64 `yaml:"luminosity_nu_start"`  // Hz
	LuminosityNuEnd     float64 `yaml:"luminosity_nu_end"`    // Hz
	TimeExplosion       float64 `yaml:"time_explosion"`       // days
	Distance            float64 `yaml:"distance"`             // cm, 0 disables flux
}

type StructureConfig struct {
	VInnerBoundary float64 `yaml:"v_inner_boundary"` // km/s
	VOuterBoundary float64 `yaml:"v_outer_boundary"` // km/s
	Shells         int     `yaml:"shells"`
	TInner         float64 `yaml:"t_inner"` // K, 0 derives it from the luminosity
}

type SpectrumConfig struct {
	Start float64 `yaml:"start"` // Angstrom
	Stop  float64 `yaml:"stop"`  // Angstrom
	Bins  int     `yaml:"num"`
}

type SolverConfig struct {
	Name string `yaml:"name"`

	// Tau is the radial grey optical depth of the ejecta, spread evenly
	// over the shells.
	Tau       float64 `yaml:"tau"`
	Albedo    float64 `yaml:"albedo"`
	BlockSize int     `yaml:"block_size"`
}

type OutputConfig struct {
	Backend  string `yaml:"backend"` // dir, sqlite or none
	Path     string `yaml:"path"`
	Mode     string `yaml:"mode"` // full or input
	LastOnly bool   `yaml:"last_only"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

func DefaultConfig() *Config {
	return &Config{
		MonteCarlo: MonteCarloConfig{
			Iterations:  DefaultIterations,
			NoOfPackets: DefaultPackets,
			NThreads:    1,
			Seed:        23111963,
			LogSampling: DefaultLogSampling,
			Convergence: ConvergenceConfig{
				Type:             string(convergence.KindSpecific),
				DampingConstant:  DefaultDamping,
				Threshold:        DefaultThreshold,
				HoldIterations:   DefaultHold,
				LockTInnerCycles: 1,
				TInner:           QuantityConfig{DampingConstant: Float(1)},
			},
		},
		Supernova: SupernovaConfig{
			LuminosityRequested: DefaultLuminosity,
			LuminosityNuStart:   0,
			LuminosityNuEnd:     1e20,
			TimeExplosion:       DefaultTimeExplosion,
		},
		Structure: StructureConfig{
			VInnerBoundary: 11000,
			VOuterBoundary: 20000,
			Shells:         DefaultShells,
		},
		Spectrum: SpectrumConfig{Start: 500, Stop: 20000, Bins: 1000},
		Solver:   SolverConfig{Name: "grey", Tau: 1, Albedo: 0.5, BlockSize: montecarlo.DefaultBlockSize},
		Output:   OutputConfig{Backend: "dir", Path: "./runs", Mode: "full", LastOnly: true},
		Logging:  LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load reads path on top of the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks settings the controller and solver cannot work with. The
// strategy type is not checked here; an unknown type fails on the first
// iteration.
func (c *Config) Validate() error {
	mc := c.MonteCarlo
	switch {
	case mc.Iterations < 1:
		return fmt.Errorf("%w: montecarlo.iterations must be at least 1", ErrInvalid)
	case mc.NoOfPackets < 1:
		return fmt.Errorf("%w: montecarlo.no_of_packets must be positive", ErrInvalid)
	case mc.LastNoOfPackets < 0 || mc.NoOfVirtualPackets < 0:
		return fmt.Errorf("%w: packet counts must be non-negative", ErrInvalid)
	case mc.NThreads < 1:
		return fmt.Errorf("%w: montecarlo.nthreads must be at least 1", ErrInvalid)
	case mc.Convergence.HoldIterations < 0:
		return fmt.Errorf("%w: hold_iterations must be non-negative", ErrInvalid)
	}

	sn := c.Supernova
	if sn.LuminosityRequested <= 0 {
		return fmt.Errorf("%w: supernova.luminosity_requested must be positive", ErrInvalid)
	}
	if sn.LuminosityNuEnd <= sn.LuminosityNuStart {
		return fmt.Errorf("%w: luminosity band [%g, %g] is empty", ErrInvalid, sn.LuminosityNuStart, sn.LuminosityNuEnd)
	}
	if sn.TimeExplosion <= 0 {
		return fmt.Errorf("%w: supernova.time_explosion must be positive", ErrInvalid)
	}

	st := c.Structure
	if st.Shells < 1 || st.VInnerBoundary <= 0 || st.VOuterBoundary <= st.VInnerBoundary {
		return fmt.Errorf("%w: structure needs shells and v_inner < v_outer", ErrInvalid)
	}
	if c.Spectrum.Bins > 0 && (c.Spectrum.Start <= 0 || c.Spectrum.Stop <= c.Spectrum.Start) {
		return fmt.Errorf("%w: spectrum range [%g, %g]", ErrInvalid, c.Spectrum.Start, c.Spectrum.Stop)
	}
	if c.Solver.Tau < 0 || c.Solver.Albedo < 0 || c.Solver.Albedo > 1 {
		return fmt.Errorf("%w: solver needs tau >= 0 and albedo in [0, 1]", ErrInvalid)
	}

	switch c.Output.Backend {
	case "dir", "sqlite", "none", "":
	default:
		return fmt.Errorf("%w: unknown output backend %q", ErrInvalid, c.Output.Backend)
	}
	return nil
}

// Strategy builds the convergence strategy, filling unset per-quantity
// values from the shared damping constant and threshold.
func (c *Config) Strategy() convergence.Strategy {
	cc := c.MonteCarlo.Convergence
	return convergence.New(cc.Type,
		cc.TRad.params(cc.DampingConstant, cc.Threshold),
		cc.W.params(cc.DampingConstant, cc.Threshold),
		cc.TInner.params(cc.DampingConstant, cc.Threshold))
}

func (c *Config) Band() transport.Band {
	return transport.Band{NuStart: c.Supernova.LuminosityNuStart, NuEnd: c.Supernova.LuminosityNuEnd}
}

// SpectrumEdges returns frequency bin edges covering the configured
// wavelength range, or nil when no spectrum is requested.
func (c *Config) SpectrumEdges() []float64 {
	s := c.Spectrum
	if s.Bins < 1 {
		return nil
	}
	nuLo := physics.C * physics.AngstromPerCm / s.Stop
	nuHi := physics.C * physics.AngstromPerCm / s.Start
	return transport.LinearEdges(nuLo, nuHi, s.Bins)
}

func (c *Config) ControllerConfig() controller.Config {
	mc := c.MonteCarlo
	return controller.Config{
		Iterations:          mc.Iterations,
		HoldIterations:      mc.Convergence.HoldIterations,
		LockTInnerCycles:    mc.Convergence.LockTInnerCycles,
		Packets:             mc.NoOfPackets,
		LastPackets:         mc.LastNoOfPackets,
		VirtualPackets:      mc.NoOfVirtualPackets,
		LuminosityRequested: c.Supernova.LuminosityRequested,
		Band:                c.Band(),
		SpectrumEdges:       c.SpectrumEdges(),
		Distance:            c.Supernova.Distance,
		LogSampling:         mc.LogSampling,
		PersistMode:         c.Output.Mode,
		PersistLastOnly:     c.Output.LastOnly,
	}
}

func (c *Config) Geometry() (*model.Geometry, error) {
	st := c.Structure
	return model.NewGeometry(st.VInnerBoundary*cmPerKm, st.VOuterBoundary*cmPerKm, st.Shells,
		c.Supernova.TimeExplosion*secondsPerDay)
}

// Model builds the initial shell model.
func (c *Config) Model() (*model.Radial1D, error) {
	g, err := c.Geometry()
	if err != nil {
		return nil, err
	}
	return model.NewRadial1D(g, c.Supernova.LuminosityRequested, c.Structure.TInner)
}

// SolverConfig builds the reference solver settings for geom.
func (c *Config) SolverConfig(geom *model.Geometry) montecarlo.Config {
	rIn, rOut := geom.RInner(), geom.ROuter()
	width := rOut[len(rOut)-1] - rIn[0]
	opacity := make([]float64, len(rIn))
	for i := range opacity {
		opacity[i] = c.Solver.Tau / width
	}
	return montecarlo.Config{
		RInner:        rIn,
		ROuter:        rOut,
		Opacity:       opacity,
		Albedo:        c.Solver.Albedo,
		Seed:          c.MonteCarlo.Seed,
		BlockSize:     c.Solver.BlockSize,
		SpectrumEdges: c.SpectrumEdges(),
	}
}
