package storage

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/san-kum/ringbody/internal/physics"
)

// FormatPositions renders "px,py,pz," for each particle on one line.
// Velocity, mass and radius are not written.
func FormatPositions(particles []physics.Particle) string {
	var b strings.Builder
	for _, p := range particles {
		for _, v := range []float64{p.Position.X, p.Position.Y, p.Position.Z} {
			b.WriteString(strconv.FormatFloat(v, 'f', -1, 64))
			b.WriteByte(',')
		}
	}
	return b.String()
}

func WritePositions(path string, particles []physics.Particle) error {
	if err := os.WriteFile(path, []byte(FormatPositions(particles)+"\n"), 0644); err != nil {
		return fmt.Errorf("write positions: %w", err)
	}
	return nil
}
