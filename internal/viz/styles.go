package viz

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	GlassPanel = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444466")).
			Padding(1, 2)

	GradientTitle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00ffff"))

	Subtle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#666688"))

	StatusRunning = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00ff88"))

	StatusFailed = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ff4444"))

	MetricValue = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00ccff")).
			Bold(true)

	MetricLabel = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888899")).
			Width(16)

	KeyHint = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#666688")).
		Italic(true)

	SparkHigh = lipgloss.NewStyle().Foreground(lipgloss.Color("#00ff88"))
	SparkMid  = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffcc00"))
	SparkLow  = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff4444"))
)

// Field is one labelled line of a summary panel.
type Field struct {
	Label string
	Value string
}

// Summary renders a titled panel of fields followed by metrics sorted by
// name.
func Summary(title string, fields []Field, metrics map[string]float64) string {
	var s strings.Builder
	s.WriteString(GradientTitle.Render(title) + "\n\n")
	for _, f := range fields {
		s.WriteString(MetricLabel.Render(f.Label) + MetricValue.Render(f.Value) + "\n")
	}

	if len(metrics) > 0 {
		names := make([]string, 0, len(metrics))
		for name := range metrics {
			names = append(names, name)
		}
		sort.Strings(names)

		s.WriteString("\n" + Subtle.Render("metrics") + "\n")
		for _, name := range names {
			s.WriteString(MetricLabel.Render(name) + MetricValue.Render(FormatValue(metrics[name])) + "\n")
		}
	}

	return GlassPanel.Render(strings.TrimRight(s.String(), "\n"))
}

func FormatValue(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return StatusFailed.Render(fmt.Sprint(v))
	}
	return fmt.Sprintf("%.6g", v)
}

// ProgressBar renders a bar filled to percent of width.
func ProgressBar(percent float64, width int) string {
	filled := int(percent * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}

	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)

	if percent > 0.8 {
		return SparkHigh.Render(bar)
	} else if percent > 0.4 {
		return SparkMid.Render(bar)
	}
	return SparkLow.Render(bar)
}

// SparklineChart renders the last width values as a one-line chart.
// Non-finite values are drawn as gaps.
func SparklineChart(values []float64, width int) string {
	if len(values) > width {
		values = values[len(values)-width:]
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if math.IsInf(lo, 1) {
		return strings.Repeat("─", width)
	}

	rng := hi - lo
	if rng == 0 {
		rng = 1
	}

	chars := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}
	var result strings.Builder
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			result.WriteString(" ")
			continue
		}
		norm := (v - lo) / rng
		c := string(chars[int(norm*float64(len(chars)-1))])
		if norm > 0.7 {
			result.WriteString(SparkHigh.Render(c))
		} else if norm > 0.3 {
			result.WriteString(SparkMid.Render(c))
		} else {
			result.WriteString(SparkLow.Render(c))
		}
	}
	return result.String()
}

func Separator(width int) string {
	mid := width / 2
	left := strings.Repeat("─", mid-3)
	right := strings.Repeat("─", width-mid-3)
	return Subtle.Render(left + " ◆ " + right)
}
