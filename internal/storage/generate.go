package storage

import (
	"fmt"
	"io"
	"math/rand"
	"os"

	"github.com/gocarina/gocsv"
)

// Generate writes a header and rows of uniformly random particles:
// positions in [0,10000), velocities in [0,1000), mass in [1000,10000)
// and radius in [10,10000).
func Generate(w io.Writer, rows int, seed int64) error {
	if rows < 0 {
		return fmt.Errorf("rows must be non-negative, got %d", rows)
	}
	rng := rand.New(rand.NewSource(seed))

	out := make([]particleRow, rows)
	for i := range out {
		out[i] = particleRow{
			PX:     rng.Float64() * 10_000,
			PY:     rng.Float64() * 10_000,
			PZ:     rng.Float64() * 10_000,
			VX:     rng.Float64() * 1000,
			VY:     rng.Float64() * 1000,
			VZ:     rng.Float64() * 1000,
			Mass:   uniform(rng, 1000, 10_000),
			Radius: uniform(rng, 10, 10_000),
		}
	}
	return gocsv.Marshal(out, w)
}

func GenerateFile(path string, rows int, seed int64) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	if err := Generate(f, rows, seed); err != nil {
		return fmt.Errorf("generate %s: %w", path, err)
	}
	return f.Close()
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}
