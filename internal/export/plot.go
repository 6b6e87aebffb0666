package export

import (
	"errors"
	"image/color"
	"io"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/san-kum/radsim/internal/snapshot"
	"github.com/san-kum/radsim/internal/transport"
)

// ErrNoData is returned when there is nothing to plot.
var ErrNoData = errors.New("export: nothing to plot")

var (
	emittedColor    = color.RGBA{R: 0x00, G: 0x66, B: 0xcc, A: 0xff}
	reabsorbedColor = color.RGBA{R: 0xcc, G: 0x33, B: 0x33, A: 0xff}
	virtualColor    = color.RGBA{R: 0x22, G: 0x99, B: 0x44, A: 0xff}
)

const (
	DefaultWidth  = 8 * vg.Inch
	DefaultHeight = 5 * vg.Inch
)

// SpectrumPlot draws the luminosity density per Angstrom against
// wavelength.
func SpectrumPlot(spectra *transport.Spectra, title string) (*plot.Plot, error) {
	if spectra == nil || spectra.Emitted == nil {
		return nil, ErrNoData
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Wavelength [Å]"
	p.Y.Label.Text = "L_λ [erg/s/Å]"

	series := []struct {
		name  string
		spec  *transport.Spectrum
		color color.Color
	}{
		{"emitted", spectra.Emitted, emittedColor},
		{"reabsorbed", spectra.Reabsorbed, reabsorbedColor},
		{"virtual", spectra.Virtual, virtualColor},
	}
	for _, s := range series {
		if s.spec == nil {
			continue
		}
		line, err := plotter.NewLine(spectrumXYs(s.spec))
		if err != nil {
			return nil, err
		}
		line.Color = s.color
		p.Add(line)
		p.Legend.Add(s.name, line)
	}
	p.Legend.Top = true
	return p, nil
}

// spectrumXYs converts per-frequency-bin values to wavelength points.
func spectrumXYs(s *transport.Spectrum) plotter.XYs {
	lambda := s.Wavelength()
	pts := make(plotter.XYs, len(s.LuminosityDensityLambda))
	for i := range pts {
		pts[i].X = lambda[i]
		pts[i].Y = s.LuminosityDensityLambda[i]
	}
	return pts
}

// HistoryPlot draws t_inner and the mean radiation temperature over the
// stored iterations.
func HistoryPlot(snaps []snapshot.Snapshot, title string) (*plot.Plot, error) {
	hist := History(snaps)
	if len(hist) == 0 {
		return nil, ErrNoData
	}

	tInner := make(plotter.XYs, len(hist))
	tRad := make(plotter.XYs, len(hist))
	for i, h := range hist {
		tInner[i].X, tInner[i].Y = float64(h.Iteration), h.TInner
		tRad[i].X, tRad[i].Y = float64(h.Iteration), h.MeanTRad
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Iteration"
	p.Y.Label.Text = "Temperature [K]"

	for _, s := range []struct {
		name  string
		xys   plotter.XYs
		color color.Color
	}{
		{"t_inner", tInner, emittedColor},
		{"mean t_rad", tRad, reabsorbedColor},
	} {
		line, points, err := plotter.NewLinePoints(s.xys)
		if err != nil {
			return nil, err
		}
		line.Color = s.color
		points.Color = s.color
		p.Add(line, points)
		p.Legend.Add(s.name, line, points)
	}
	return p, nil
}

// Save writes p to path; the format follows the extension (png, svg, pdf).
func Save(p *plot.Plot, path string) error {
	return p.Save(DefaultWidth, DefaultHeight, path)
}

// Write renders p in format ("png", "svg", ...) to w.
func Write(p *plot.Plot, w io.Writer, format string) error {
	wt, err := p.WriterTo(DefaultWidth, DefaultHeight, format)
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}

// FormatOf returns the plot format implied by path, defaulting to png.
func FormatOf(path string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if ext == "" {
		return "png"
	}
	return ext
}

// SpectraFromSnapshot rebuilds the terminal spectra stored in a full
// snapshot of the final model.
func SpectraFromSnapshot(snap snapshot.Snapshot) (*transport.Spectra, error) {
	edges := snap.Arrays["spectrum_edges"]
	if len(edges) < 2 {
		return nil, ErrNoData
	}
	distance := snap.Scalars["distance"]

	build := func(key string) (*transport.Spectrum, error) {
		lum, ok := snap.Arrays[key]
		if !ok {
			return nil, nil
		}
		return transport.NewSpectrum(edges, lum, distance)
	}

	out := &transport.Spectra{}
	var err error
	if out.Emitted, err = build("spectrum_luminosity"); err != nil {
		return nil, err
	}
	if out.Emitted == nil {
		return nil, ErrNoData
	}
	if out.Reabsorbed, err = build("spectrum_reabsorbed_luminosity"); err != nil {
		return nil, err
	}
	if out.Virtual, err = build("spectrum_virtual_luminosity"); err != nil {
		return nil, err
	}
	return out, nil
}

// LastSpectra returns the spectra of the latest snapshot that carries them.
func LastSpectra(snaps []snapshot.Snapshot) (*transport.Spectra, error) {
	for i := len(snaps) - 1; i >= 0; i-- {
		if _, ok := snaps[i].Arrays["spectrum_edges"]; ok {
			return SpectraFromSnapshot(snaps[i])
		}
	}
	return nil, ErrNoData
}
