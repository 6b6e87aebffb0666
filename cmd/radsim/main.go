package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/san-kum/radsim/internal/config"
)

var (
	dataDir   string
	backend   string
	logLevel  string
	logFormat string

	configFile  string
	preset      string
	runName     string
	iterations  int
	packets     int
	lastPackets int
	virtual     int
	threads     int
	seed        int64
	shells      int
	tInner      float64
	strategy    string
	hold        int
	damping     float64
	threshold   float64
	lockCycles  int
	persistMode string
	everyIter   bool

	outFile     string
	tunePoints  int
	tuneLo      float64
	tuneHi      float64
	tuneMetric  string
	historyPlot bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "radsim",
		Short:         "radiative transfer convergence runner",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", "./runs", "data directory")
	rootCmd.PersistentFlags().StringVar(&backend, "backend", "dir", "storage backend (dir, sqlite, none)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run a simulation until it converges",
		Args:  cobra.NoArgs,
		RunE:  runSimulation,
	}
	addRunFlags(runCmd)

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "run a simulation with a live convergence view",
		Args:  cobra.NoArgs,
		RunE:  runLive,
	}
	addRunFlags(liveCmd)

	tuneCmd := &cobra.Command{
		Use:   "tune",
		Short: "grid search damping constants for the fastest convergence",
		Args:  cobra.NoArgs,
		RunE:  runTune,
	}
	addRunFlags(tuneCmd)
	tuneCmd.Flags().IntVar(&tunePoints, "points", 4, "grid points per damping constant")
	tuneCmd.Flags().Float64Var(&tuneLo, "min", 0.2, "smallest damping constant")
	tuneCmd.Flags().Float64Var(&tuneHi, "max", 0.9, "largest damping constant")
	tuneCmd.Flags().StringVar(&tuneMetric, "metric", "", "score by this metric instead of iterations to converge")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	showCmd := &cobra.Command{
		Use:   "show [run_id]",
		Short: "show a run summary and its t_inner history",
		Args:  cobra.ExactArgs(1),
		RunE:  showRun,
	}
	showCmd.Flags().StringVarP(&outFile, "output", "o", "", "also render the history plot to this file")

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export a run and its snapshots as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}
	exportJSONCmd.Flags().StringVarP(&outFile, "output", "o", "-", "output file (- for stdout)")

	spectrumCmd := &cobra.Command{
		Use:   "spectrum [run_id]",
		Short: "render the final spectrum of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotSpectrum,
	}
	spectrumCmd.Flags().StringVarP(&outFile, "output", "o", "spectrum.png", "output file (png, svg, pdf)")
	spectrumCmd.Flags().BoolVar(&historyPlot, "history", false, "plot the temperature history instead")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list convergence presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range config.ListPresets() {
				p := config.Presets[name]
				fmt.Printf("  %-10s %s (%d iterations, %s)\n", name, p.Description, p.Iterations, p.Convergence.Type)
			}
			return nil
		},
	}

	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "write the default configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.DefaultConfig()
			if preset != "" {
				if cfg = config.GetPreset(preset); cfg == nil {
					return fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
				}
			}
			if err := config.Save(args[0], cfg); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", args[0])
			return nil
		},
	}
	initCmd.Flags().StringVar(&preset, "preset", "", "start from a preset")

	rootCmd.AddCommand(runCmd, liveCmd, tuneCmd, listCmd, showCmd, exportJSONCmd, spectrumCmd, presetsCmd, initCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addRunFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&configFile, "config", "", "config file path (yaml)")
	f.StringVar(&preset, "preset", "", "use preset configuration")
	f.StringVar(&runName, "name", "", "run name")
	f.IntVar(&iterations, "iterations", config.DefaultIterations, "maximum iterations")
	f.IntVar(&packets, "packets", config.DefaultPackets, "packets per iteration")
	f.IntVar(&lastPackets, "last-packets", 0, "packets for the final run (0 reuses --packets)")
	f.IntVar(&virtual, "virtual", 0, "virtual packets per interaction in the final run")
	f.IntVar(&threads, "threads", 0, "transport threads (0 uses every cpu)")
	f.Int64Var(&seed, "seed", 23111963, "random seed")
	f.IntVar(&shells, "shells", config.DefaultShells, "number of shells")
	f.Float64Var(&tInner, "t-inner", 0, "initial inner boundary temperature (0 derives it)")
	f.StringVar(&strategy, "strategy", "specific", "convergence strategy (damped, specific)")
	f.IntVar(&hold, "hold", config.DefaultHold, "iterations to hold after convergence")
	f.Float64Var(&damping, "damping", config.DefaultDamping, "damping constant")
	f.Float64Var(&threshold, "threshold", config.DefaultThreshold, "convergence threshold")
	f.IntVar(&lockCycles, "lock-t-inner-cycles", 1, "update t_inner every n iterations")
	f.StringVar(&persistMode, "mode", "full", "snapshot mode (full, input)")
	f.BoolVar(&everyIter, "every-iteration", false, "persist every iteration instead of the final model only")
}
