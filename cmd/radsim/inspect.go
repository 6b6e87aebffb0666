package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/radsim/internal/export"
	"github.com/san-kum/radsim/internal/snapshot"
	"github.com/san-kum/radsim/internal/storage"
)

func openStore() (snapshot.Store, error) {
	if backend == "none" {
		return nil, fmt.Errorf("backend none keeps no runs")
	}
	return storage.Open(backend, dataDir)
}

// loadRun accepts a full run id or a unique prefix of one.
func loadRun(ctx context.Context, st snapshot.Store, id string) (*snapshot.Run, []snapshot.Snapshot, error) {
	run, err := st.LoadRun(ctx, id)
	if err != nil {
		runs, listErr := st.ListRuns(ctx)
		if listErr != nil {
			return nil, nil, err
		}
		var match *snapshot.Run
		for i := range runs {
			if strings.HasPrefix(runs[i].ID, id) {
				if match != nil {
					return nil, nil, fmt.Errorf("run id %q is ambiguous", id)
				}
				match = &runs[i]
			}
		}
		if match == nil {
			return nil, nil, err
		}
		run = match
	}

	snaps, err := st.LoadSnapshots(ctx, run.ID)
	if err != nil {
		return nil, nil, err
	}
	return run, snaps, nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	runs, err := st.ListRuns(cmd.Context())
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.After(runs[j].Timestamp) })

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTIME\tSHELLS\tITER\tCONVERGED\tSTRATEGY\tT_INNER")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d/%d\t%v\t%s\t%.1f\n",
			shortID(run.ID),
			run.Name,
			run.Timestamp.Local().Format("2006-01-02 15:04:05"),
			run.Shells,
			run.Executed,
			run.Requested,
			run.Converged,
			run.Strategy,
			run.FinalTInner,
		)
	}

	return w.Flush()
}

func showRun(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	run, snaps, err := loadRun(cmd.Context(), st, args[0])
	if err != nil {
		return err
	}

	fmt.Printf("run: %s (%s)\n", run.ID, run.Name)
	fmt.Printf("started: %s\n", run.Timestamp.Local().Format("2006-01-02 15:04:05"))
	fmt.Printf("iterations: %d / %d, converged: %v\n", run.Executed, run.Requested, run.Converged)
	fmt.Printf("final packets: %d (virtual %d)\n", run.Packets, run.Virtual)
	fmt.Printf("elapsed: %.2fs\n", run.ElapsedSec)
	fmt.Printf("snapshots: %d\n\n", len(snaps))

	hist := export.History(snaps)
	if len(hist) > 1 {
		tInner := make([]float64, len(hist))
		tRad := make([]float64, len(hist))
		for i, h := range hist {
			tInner[i] = h.TInner
			tRad[i] = h.MeanTRad
		}
		fmt.Println(asciigraph.Plot(tInner,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption("t_inner [K] per stored iteration"),
		))
		fmt.Println()
		fmt.Println(asciigraph.Plot(tRad,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption("mean t_rad [K] per stored iteration"),
		))
		fmt.Println()
	} else {
		fmt.Println("fewer than two stored iterations; run with --every-iteration for a history")
	}

	if len(run.Metrics) > 0 {
		names := make([]string, 0, len(run.Metrics))
		for name := range run.Metrics {
			names = append(names, name)
		}
		sort.Strings(names)
		fmt.Println("metrics:")
		for _, name := range names {
			fmt.Printf("  %s: %.6g\n", name, run.Metrics[name])
		}
	}

	if outFile == "" {
		return nil
	}
	p, err := export.HistoryPlot(snaps, "convergence of "+shortID(run.ID))
	if err != nil {
		return err
	}
	if err := export.Save(p, outFile); err != nil {
		return err
	}
	fmt.Printf("\nwrote %s\n", outFile)
	return nil
}

func exportJSON(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	run, snaps, err := loadRun(cmd.Context(), st, args[0])
	if err != nil {
		return err
	}
	return export.JSON(outFile, *run, snaps)
}

func plotSpectrum(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	run, snaps, err := loadRun(cmd.Context(), st, args[0])
	if err != nil {
		return err
	}

	title := fmt.Sprintf("%s (%s)", run.Name, shortID(run.ID))
	if historyPlot {
		p, err := export.HistoryPlot(snaps, title)
		if err != nil {
			return err
		}
		if err := export.Save(p, outFile); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", outFile)
		return nil
	}

	spectra, err := export.LastSpectra(snaps)
	if err != nil {
		return fmt.Errorf("run %s has no stored spectrum (needs a full final snapshot): %w", shortID(run.ID), err)
	}
	p, err := export.SpectrumPlot(spectra, title)
	if err != nil {
		return err
	}
	if err := export.Save(p, outFile); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", outFile)
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
