package export

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/san-kum/ringbody/internal/storage"
)

type point struct{ X, Y float64 }

// StatesToSVG draws the x/y projection of every particle's recorded
// trajectory, with a dot at its last finite position. Non-finite samples are
// dropped.
func StatesToSVG(states []storage.StateRecord, width, height int) string {
	tracks := make(map[int][]point)
	for _, s := range states {
		if !finite(s.PX) || !finite(s.PY) {
			continue
		}
		tracks[s.ID] = append(tracks[s.ID], point{s.PX, s.PY})
	}

	ids := make([]int, 0, len(tracks))
	minX, maxX := math.Inf(1), math.Inf(-1)
	minY, maxY := math.Inf(1), math.Inf(-1)
	for id, pts := range tracks {
		ids = append(ids, id)
		for _, p := range pts {
			minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
			minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
		}
	}
	sort.Ints(ids)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`, width, height, width, height))

	if len(ids) == 0 {
		sb.WriteString("</svg>")
		return sb.String()
	}

	// Add padding
	rangeX := maxX - minX
	rangeY := maxY - minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	minX -= rangeX * 0.1
	minY -= rangeY * 0.1
	rangeX *= 1.2
	rangeY *= 1.2

	project := func(p point) (float64, float64) {
		x := (p.X - minX) / rangeX * float64(width)
		y := float64(height) - (p.Y-minY)/rangeY*float64(height)
		return x, y
	}

	sb.WriteString(`<g fill="none" stroke="#00ccff" stroke-width="1">` + "\n")
	for _, id := range ids {
		pts := tracks[id]
		if len(pts) < 2 {
			continue
		}
		sb.WriteString(fmt.Sprintf(`<path id="p%d" d="M`, id))
		for i, p := range pts {
			x, y := project(p)
			if i == 0 {
				sb.WriteString(fmt.Sprintf("%.1f,%.1f", x, y))
			} else {
				sb.WriteString(fmt.Sprintf(" L%.1f,%.1f", x, y))
			}
		}
		sb.WriteString(`"/>` + "\n")
	}
	sb.WriteString("</g>\n")

	sb.WriteString(`<g fill="#00ff88">` + "\n")
	for _, id := range ids {
		pts := tracks[id]
		x, y := project(pts[len(pts)-1])
		sb.WriteString(fmt.Sprintf(`<circle cx="%.1f" cy="%.1f" r="2"/>`+"\n", x, y))
	}
	sb.WriteString("</g>\n</svg>")
	return sb.String()
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
