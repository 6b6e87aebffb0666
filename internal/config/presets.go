package config

import "sort"

// Preset overrides the run length and convergence settings of the
// defaults.
type Preset struct {
	Description string
	Iterations  int
	Packets     int
	LastPackets int
	Convergence ConvergenceConfig
}

var Presets = map[string]Preset{
	"fast": {
		Description: "few packets, loose thresholds, for smoke tests",
		Iterations:  10, Packets: 5000, LastPackets: 20000,
		Convergence: ConvergenceConfig{
			Type: "specific", DampingConstant: 0.7, Threshold: 0.1,
			HoldIterations: 1, LockTInnerCycles: 1,
		},
	},
	"default": {
		Description: "balanced settings",
		Iterations:  DefaultIterations, Packets: DefaultPackets,
		Convergence: ConvergenceConfig{
			Type: "specific", DampingConstant: DefaultDamping, Threshold: DefaultThreshold,
			HoldIterations: DefaultHold, LockTInnerCycles: 1,
		},
	},
	"strict": {
		Description: "tight thresholds, long hold",
		Iterations:  40, Packets: 100000, LastPackets: 400000,
		Convergence: ConvergenceConfig{
			Type: "specific", DampingConstant: 0.3, Threshold: 0.02,
			HoldIterations: 5, LockTInnerCycles: 2,
		},
	},
	"damped": {
		Description: "damped updates only, runs every requested iteration",
		Iterations:  DefaultIterations, Packets: DefaultPackets,
		Convergence: ConvergenceConfig{
			Type: "damped", DampingConstant: DefaultDamping, Threshold: DefaultThreshold,
			LockTInnerCycles: 1,
		},
	},
}

// GetPreset returns the defaults with preset name applied, or nil.
func GetPreset(name string) *Config {
	p, ok := Presets[name]
	if !ok {
		return nil
	}
	cfg := DefaultConfig()
	p.Apply(cfg)
	return cfg
}

// Apply writes the preset into cfg.
func (p Preset) Apply(cfg *Config) {
	cfg.MonteCarlo.Iterations = p.Iterations
	cfg.MonteCarlo.NoOfPackets = p.Packets
	cfg.MonteCarlo.LastNoOfPackets = p.LastPackets
	conv := p.Convergence
	conv.TInner = cfg.MonteCarlo.Convergence.TInner
	cfg.MonteCarlo.Convergence = conv
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
