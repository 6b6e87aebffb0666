package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"sort"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/san-kum/radsim/internal/config"
	"github.com/san-kum/radsim/internal/controller"
	"github.com/san-kum/radsim/internal/experiment"
	"github.com/san-kum/radsim/internal/logging"
	"github.com/san-kum/radsim/internal/optim"
	"github.com/san-kum/radsim/internal/viz"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00ffff"))
	okStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00ff88"))
	warnStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#ffaa00"))
)

// buildConfig layers defaults, preset, config file and explicitly set flags.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()

	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}

	// config file overrides preset
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	mc := &cfg.MonteCarlo
	if flags.Changed("iterations") {
		mc.Iterations = iterations
	}
	if flags.Changed("packets") {
		mc.NoOfPackets = packets
	}
	if flags.Changed("last-packets") {
		mc.LastNoOfPackets = lastPackets
	}
	if flags.Changed("virtual") {
		mc.NoOfVirtualPackets = virtual
	}
	if flags.Changed("threads") {
		mc.NThreads = threads
		if threads == 0 {
			mc.NThreads = runtime.NumCPU()
		}
	}
	if flags.Changed("seed") {
		mc.Seed = seed
	}
	if flags.Changed("strategy") {
		mc.Convergence.Type = strategy
	}
	if flags.Changed("hold") {
		mc.Convergence.HoldIterations = hold
	}
	if flags.Changed("damping") {
		mc.Convergence.DampingConstant = damping
	}
	if flags.Changed("threshold") {
		mc.Convergence.Threshold = threshold
	}
	if flags.Changed("lock-t-inner-cycles") {
		mc.Convergence.LockTInnerCycles = lockCycles
	}
	if flags.Changed("shells") {
		cfg.Structure.Shells = shells
	}
	if flags.Changed("t-inner") {
		cfg.Structure.TInner = tInner
	}

	out := &cfg.Output
	if flags.Changed("data") || configFile == "" {
		out.Path = dataDir
	}
	if flags.Changed("backend") || configFile == "" {
		out.Backend = backend
	}
	if flags.Changed("mode") {
		out.Mode = persistMode
	}
	if flags.Changed("every-iteration") {
		out.LastOnly = !everyIter
	}
	if flags.Changed("log-level") || configFile == "" {
		cfg.Logging.Level = logLevel
	}
	if flags.Changed("log-format") || configFile == "" {
		cfg.Logging.Format = logFormat
	}

	return cfg, cfg.Validate()
}

func newLogger(cfg *config.Config, w io.Writer) *logging.Logger {
	if cfg.Logging.Format == "json" {
		return logging.NewJSON(cfg.Logging.Level, w)
	}
	return logging.New(cfg.Logging.Level, w)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	exp := experiment.New(cfg, runName, newLogger(cfg, os.Stderr))
	if err := exp.Setup(experiment.NewRegistry()); err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	fmt.Printf("running %d shells, up to %d iterations of %d packets...\n",
		cfg.Structure.Shells, cfg.MonteCarlo.Iterations, cfg.MonteCarlo.NoOfPackets)

	summary, err := exp.Run(ctx)
	if err != nil {
		return err
	}

	printSummary(summary, cfg.Output.Backend != "none")
	return nil
}

func printSummary(s *controller.Summary, stored bool) {
	fmt.Println(headerStyle.Render("summary"))
	status := warnStyle.Render("not converged")
	if s.Converged {
		status = okStyle.Render("converged")
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "  status\t%s\n", status)
	if stored {
		fmt.Fprintf(w, "  run id\t%s\n", s.RunID)
	}
	fmt.Fprintf(w, "  iterations\t%d / %d\n", s.IterationsExecuted, s.IterationsMaxRequested)
	fmt.Fprintf(w, "  final packets\t%d (virtual %d)\n", s.Packets, s.VirtualPackets)
	fmt.Fprintf(w, "  t_inner\t%.1f K\n", s.FinalState.TInner)
	if s.NoEscapeRuns > 0 {
		fmt.Fprintf(w, "  no-escape runs\t%d\n", s.NoEscapeRuns)
	}
	fmt.Fprintf(w, "  elapsed\t%v\n", s.Elapsed.Round(time.Millisecond))
	w.Flush()

	if len(s.Metrics) == 0 {
		return
	}
	names := make([]string, 0, len(s.Metrics))
	for name := range s.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Println("\n" + headerStyle.Render("metrics"))
	for _, name := range names {
		fmt.Printf("  %s: %.6g\n", name, s.Metrics[name])
	}
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	// the terminal belongs to the view; logs would tear it
	exp := experiment.New(cfg, runName, logging.Discard())
	if err := exp.Setup(experiment.NewRegistry()); err != nil {
		return err
	}

	feed := viz.NewFeed(cfg.MonteCarlo.Iterations + 1)
	exp.Controller().AddObserver(feed)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		summary, err := exp.Run(ctx)
		feed.Finish(summary, err)
	}()

	title := fmt.Sprintf("radsim %s", shortID(exp.RunID()))
	m := viz.NewModel(feed, title, cfg.MonteCarlo.Iterations, cfg.MonteCarlo.LogSampling)
	p := tea.NewProgram(m, tea.WithAltScreen())
	final, err := p.Run()
	feed.Stop()
	cancel()
	wg.Wait()
	if err != nil {
		return err
	}

	vm, ok := final.(viz.Model)
	if !ok {
		return nil
	}
	summary, runErr := vm.Result()
	if runErr != nil {
		return runErr
	}
	if summary != nil {
		printSummary(summary, cfg.Output.Backend != "none")
	}
	return nil
}

func runTune(cmd *cobra.Command, args []string) error {
	base, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	if tunePoints < 1 || tuneLo <= 0 || tuneHi > 1 || tuneHi < tuneLo {
		return fmt.Errorf("invalid grid: %d points in [%g, %g]", tunePoints, tuneLo, tuneHi)
	}

	ctx, cancel := signalContext()
	defer cancel()

	grid := optim.Linspace(tuneLo, tuneHi, tunePoints)
	search := optim.NewGridSearch(
		[]string{"plasma_damping", "t_inner_damping"},
		[][]float64{grid, grid},
	)

	trial := func(ctx context.Context, params map[string]float64) (*controller.Summary, error) {
		cfg := *base
		cfg.Output.Backend = "none"
		conv := &cfg.MonteCarlo.Convergence
		conv.TRad.DampingConstant = config.Float(params["plasma_damping"])
		conv.W.DampingConstant = config.Float(params["plasma_damping"])
		conv.TInner.DampingConstant = config.Float(params["t_inner_damping"])

		exp := experiment.New(&cfg, "tune", logging.Discard())
		if err := exp.Setup(experiment.NewRegistry()); err != nil {
			return nil, err
		}
		return exp.Run(ctx)
	}

	objective := optim.IterationsToConverge
	if tuneMetric != "" {
		objective = optim.MetricObjective(tuneMetric)
	}

	fmt.Printf("searching %d damping combinations...\n", tunePoints*tunePoints)
	best, results, err := search.Search(ctx, trial, objective)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PLASMA\tT_INNER\tSCORE\tITER\tCONVERGED")
	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(w, "%.3f\t%.3f\t-\t-\t%s\n", r.Params["plasma_damping"], r.Params["t_inner_damping"],
				strings.SplitN(r.Err.Error(), "\n", 2)[0])
			continue
		}
		fmt.Fprintf(w, "%.3f\t%.3f\t%.4g\t%d\t%v\n",
			r.Params["plasma_damping"], r.Params["t_inner_damping"],
			r.Score, r.Summary.IterationsExecuted, r.Summary.Converged)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Printf("\nbest: plasma damping %.3f, t_inner damping %.3f (score %.4g)\n",
		best.Params["plasma_damping"], best.Params["t_inner_damping"], best.Score)
	return nil
}
