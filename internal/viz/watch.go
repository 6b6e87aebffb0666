package viz

import (
	"fmt"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/radsim/internal/budget"
	"github.com/san-kum/radsim/internal/controller"
)

// IterationMsg carries one completed iteration.
type IterationMsg controller.IterationReport

// DoneMsg ends the run.
type DoneMsg struct {
	Summary *controller.Summary
	Err     error
}

// Feed bridges the controller and a Bubble Tea program.
type Feed struct {
	reports chan controller.IterationReport
	done    chan DoneMsg
	stop    chan struct{}
	once    sync.Once
}

var _ controller.Observer = (*Feed)(nil)

func NewFeed(buffer int) *Feed {
	return &Feed{
		reports: make(chan controller.IterationReport, buffer),
		done:    make(chan DoneMsg, 1),
		stop:    make(chan struct{}),
	}
}

// OnIteration blocks while the buffer is full, until Stop is called. After
// Stop reports are dropped.
func (f *Feed) OnIteration(r controller.IterationReport) {
	select {
	case <-f.stop:
		return
	default:
	}
	select {
	case f.reports <- r:
	case <-f.stop:
	}
}

// Stop tells the feed nobody reads it anymore. Safe to call more than once.
func (f *Feed) Stop() {
	f.once.Do(func() { close(f.stop) })
}

// Finish reports the outcome and closes the feed. It must be called once,
// after the last OnIteration.
func (f *Feed) Finish(s *controller.Summary, err error) {
	close(f.reports)
	f.done <- DoneMsg{Summary: s, Err: err}
}

func (f *Feed) next() tea.Cmd {
	return func() tea.Msg {
		r, ok := <-f.reports
		if !ok {
			return <-f.done
		}
		return IterationMsg(r)
	}
}

type Model struct {
	feed       *Feed
	title      string
	maxIter    int
	last       *controller.IterationReport
	tInner     []float64
	deviation  []float64
	luminosity []float64
	done       *DoneMsg
	showShells bool
	showHelp   bool
	sampling   int
}

func NewModel(feed *Feed, title string, maxIterations, logSampling int) Model {
	if logSampling < 1 {
		logSampling = 1
	}
	return Model{
		feed:     feed,
		title:    title,
		maxIter:  maxIterations,
		sampling: logSampling,
	}
}

func (m Model) Init() tea.Cmd {
	if m.feed == nil {
		return nil
	}
	return m.feed.next()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "s":
			m.showShells = !m.showShells
		case "?":
			m.showHelp = !m.showHelp
		}
	case IterationMsg:
		r := controller.IterationReport(msg)
		m.last = &r
		m.tInner = append(m.tInner, r.Next.TInner)
		m.deviation = append(m.deviation, max(r.Deviation.MaxTRad, r.Deviation.MaxW))
		if r.RequestedLuminosity > 0 {
			m.luminosity = append(m.luminosity, r.EmittedLuminosity/r.RequestedLuminosity)
		}
		if m.feed != nil {
			return m, m.feed.next()
		}
	case DoneMsg:
		m.done = &msg
	}
	return m, nil
}

// Result is the outcome once the run finished; both are nil before that.
func (m Model) Result() (*controller.Summary, error) {
	if m.done == nil {
		return nil, nil
	}
	return m.done.Summary, m.done.Err
}

func (m Model) status() string {
	switch {
	case m.done != nil && m.done.Err != nil:
		return StatusFailed.Render("FAILED: " + m.done.Err.Error())
	case m.done != nil && m.done.Summary != nil && m.done.Summary.Converged:
		return StatusRunning.Render("DONE (converged)")
	case m.done != nil:
		return StatusHold.Render("DONE (not converged)")
	case m.last == nil:
		return StatusRunning.Render("STARTING")
	case m.last.Mode == budget.ModeHold:
		return StatusHold.Render(fmt.Sprintf("HOLD (%d left)", m.last.Remaining))
	default:
		return StatusRunning.Render("RUNNING")
	}
}

func (m Model) View() string {
	var s strings.Builder
	s.WriteString(titleStyle.Render(strings.ToUpper(m.title)) + "\n")
	s.WriteString(m.status() + "\n\n")

	executed := 0
	if m.last != nil {
		executed = m.last.Iteration
	}
	if m.done != nil && m.done.Summary != nil {
		executed = m.done.Summary.IterationsExecuted
	}
	frac := 0.0
	if m.maxIter > 0 {
		frac = float64(executed) / float64(m.maxIter)
	}
	s.WriteString(labelStyle.Render("Iteration") +
		valueStyle.Render(fmt.Sprintf("%d / %d ", executed, m.maxIter)) + ProgressBar(frac, 20) + "\n")

	if m.last != nil {
		r := m.last
		s.WriteString(labelStyle.Render("L emitted") + valueStyle.Render(fmt.Sprintf("%.4e erg/s", r.EmittedLuminosity)) + "\n")
		s.WriteString(labelStyle.Render("L reabsorbed") + valueStyle.Render(fmt.Sprintf("%.4e erg/s", r.ReabsorbedLuminosity)) + "\n")
		s.WriteString(labelStyle.Render("L requested") + valueStyle.Render(fmt.Sprintf("%.4e erg/s", r.RequestedLuminosity)) + "\n")
		s.WriteString(labelStyle.Render("t_inner") + valueStyle.Render(fmt.Sprintf("%.1f -> %.1f K", r.Current.TInner, r.Next.TInner)) + "\n")
		s.WriteString(labelStyle.Render("Converged") + valueStyle.Render(fmt.Sprintf("t_rad %.0f%%  w %.0f%%",
			100*r.Deviation.TRadFraction, 100*r.Deviation.WFraction)) + "\n")
		if r.NoEscape {
			s.WriteString(StatusFailed.Render("no packet escaped") + "\n")
		}
	}

	if len(m.tInner) > 1 {
		chart := asciigraph.Plot(m.tInner, asciigraph.Height(6), asciigraph.Width(40), asciigraph.Caption("t_inner [K]"))
		s.WriteString(graphStyle.Render(chart) + "\n")
	}
	s.WriteString(labelStyle.Render("Max deviation") + Sparkline(m.deviation, 30) + "\n")
	s.WriteString(labelStyle.Render("L ratio") + Sparkline(m.luminosity, 30) + "\n")

	if m.showShells && m.last != nil {
		s.WriteString("\n" + m.shellTable())
	}
	if m.showHelp {
		s.WriteString(helpStyle.Render("\nS: shell table  ?: help  Q: quit"))
	} else {
		s.WriteString(helpStyle.Render("\nS:Shells ?:Help Q:Quit"))
	}
	return lipgloss.JoinVertical(lipgloss.Left, panelStyle.Render(s.String()))
}

func (m Model) shellTable() string {
	r := m.last
	var sb strings.Builder
	fmt.Fprintf(&sb, "%5s %10s %10s %8s %8s\n", "shell", "t_rad", "next", "w", "next")
	for _, i := range r.Current.Sample(m.sampling) {
		fmt.Fprintf(&sb, "%5d %10.1f %10.1f %8.4f %8.4f\n",
			i, r.Current.TRad[i], r.Next.TRad[i], r.Current.W[i], r.Next.W[i])
	}
	return sb.String()
}
