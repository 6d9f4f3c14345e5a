package physics

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Vec3 is the vector type shared by every particle field. Addition and
// subtraction come from r3.Add and r3.Sub.
type Vec3 = r3.Vec

// Distance returns sqrt(a·b + eps²). It is the square root of the dot product
// of the two position vectors, not the length of their difference.
func Distance(a, b Vec3, eps float64) float64 {
	return math.Sqrt(r3.Dot(a, b) + eps*eps)
}

// Separation returns |b - a| softened by eps.
func Separation(a, b Vec3, eps float64) float64 {
	d := r3.Sub(b, a)
	return math.Sqrt(r3.Dot(d, d) + eps*eps)
}

func IsFinite(v Vec3) bool {
	for _, c := range [3]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}
