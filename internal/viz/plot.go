package viz

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/guptarohit/asciigraph"
)

const (
	PlotHeight = 10
	PlotWidth  = 80
)

// PlotSeries draws one chart per metric, in name order. Series with fewer
// than two finite samples are listed as skipped.
func PlotSeries(series map[string][]float64) string {
	names := make([]string, 0, len(series))
	for name := range series {
		names = append(names, name)
	}
	sort.Strings(names)

	var out strings.Builder
	for _, name := range names {
		data, ok := plottable(series[name])
		if !ok {
			out.WriteString(Subtle.Render(fmt.Sprintf("%s: not enough finite samples", name)) + "\n\n")
			continue
		}
		graph := asciigraph.Plot(data,
			asciigraph.Height(PlotHeight),
			asciigraph.Width(PlotWidth),
			asciigraph.Caption(name+" vs iteration"),
		)
		out.WriteString(graph + "\n\n")
	}
	return out.String()
}

// plottable replaces infinities with NaN, which asciigraph leaves blank.
func plottable(values []float64) ([]float64, bool) {
	data := make([]float64, len(values))
	finite := 0
	for i, v := range values {
		if math.IsInf(v, 0) {
			v = math.NaN()
		}
		if !math.IsNaN(v) {
			finite++
		}
		data[i] = v
	}
	return data, finite >= 2
}
