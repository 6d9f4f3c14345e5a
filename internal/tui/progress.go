package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/ringbody/internal/metrics"
	"github.com/san-kum/ringbody/internal/physics"
	"github.com/san-kum/ringbody/internal/viz"
)

const (
	barWidth   = 40
	sparkWidth = 40
	tickRate   = time.Second / 10
)

var (
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true).MarginBottom(1)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(12)
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
)

type TickMsg time.Time

// IterationMsg reports one recorded iteration.
type IterationMsg struct {
	Iteration     int
	KineticEnergy float64
	NonFinite     int
}

// DoneMsg ends the view once the run returns.
type DoneMsg struct {
	Err error
}

// Progress is a bubbletea model that follows a run iteration by iteration.
type Progress struct {
	title     string
	total     int
	iteration int
	energy    []float64
	nonfinite int
	start     time.Time
	now       time.Time
	done      bool
	err       error
	cancel    func()
}

// NewProgress builds the view for a run of total iterations. cancel is
// called when the user quits before the run finishes.
func NewProgress(title string, total int, cancel func()) Progress {
	now := time.Now()
	return Progress{
		title:  title,
		total:  total,
		start:  now,
		now:    now,
		cancel: cancel,
	}
}

func tick() tea.Cmd {
	return tea.Tick(tickRate, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Progress) Init() tea.Cmd {
	return tick()
}

func (m Progress) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if !m.done && m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}
	case IterationMsg:
		m.iteration = msg.Iteration
		m.nonfinite = msg.NonFinite
		m.energy = append(m.energy, msg.KineticEnergy)
	case DoneMsg:
		m.done = true
		m.err = msg.Err
		m.now = time.Now()
		return m, tea.Quit
	case TickMsg:
		if m.done {
			return m, nil
		}
		m.now = time.Time(msg)
		return m, tick()
	}
	return m, nil
}

func (m Progress) View() string {
	var s strings.Builder
	s.WriteString(headerStyle.Render(strings.ToUpper(m.title)) + "\n")

	status := viz.StatusRunning.Render("RUNNING")
	switch {
	case m.err != nil:
		status = viz.StatusFailed.Render("FAILED: " + m.err.Error())
	case m.done:
		status = viz.StatusRunning.Render("DONE")
	}
	s.WriteString(status + "\n\n")

	percent := 1.0
	if m.total > 0 {
		percent = float64(m.iteration) / float64(m.total)
	}
	s.WriteString(viz.ProgressBar(percent, barWidth) + fmt.Sprintf(" %d/%d\n\n", m.iteration, m.total))

	s.WriteString(labelStyle.Render("Elapsed") + valueStyle.Render(m.now.Sub(m.start).Round(time.Millisecond).String()) + "\n")
	if n := len(m.energy); n > 0 {
		s.WriteString(labelStyle.Render("Kinetic") + valueStyle.Render(viz.FormatValue(m.energy[n-1])) + "\n")
		s.WriteString(labelStyle.Render("") + viz.SparklineChart(m.energy, sparkWidth) + "\n")
	}
	s.WriteString(labelStyle.Render("Non-finite") + valueStyle.Render(fmt.Sprint(m.nonfinite)) + "\n")

	s.WriteString("\n" + viz.KeyHint.Render("q: abort"))
	return s.String()
}

// Sender is satisfied by *tea.Program.
type Sender interface {
	Send(msg tea.Msg)
}

// Observer forwards recorded iterations to a running Progress view.
type Observer struct {
	out       Sender
	kinetic   *metrics.KineticEnergy
	nonfinite *metrics.NonFinite
}

func NewObserver(out Sender) *Observer {
	return &Observer{
		out:       out,
		kinetic:   metrics.NewKineticEnergy(),
		nonfinite: metrics.NewNonFinite(),
	}
}

func (o *Observer) OnIteration(iteration int, particles []physics.Particle) {
	o.kinetic.Observe(iteration, particles)
	o.nonfinite.Observe(iteration, particles)
	o.out.Send(IterationMsg{
		Iteration:     iteration,
		KineticEnergy: o.kinetic.Value(),
		NonFinite:     int(o.nonfinite.Value()),
	})
}
