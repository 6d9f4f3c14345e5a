// Package physics provides the particle model and pairwise force laws used by
// the ring engine.
//
//   - [Particle]: a body with position, velocity, mass, radius and a pending
//     velocity change accumulated over one ring rotation
//   - [Gravity]: Newtonian attraction measured with [Distance]
//   - [EuclideanGravity]: the same law measured with |Δposition|
//
// Vectors are gonum [r3.Vec] values and are never mutated in place.
//
// # Zero separation
//
// No softening is applied by default. Two distinct particles whose distance
// evaluates to zero produce an infinite or NaN contribution, which is carried
// into subsequent state unchanged.
package physics
