// Package dynamo provides the core primitives of the catch-up particle
// simulator.
//
// The package defines the shared vocabulary used by every other package:
//
//   - [State]: the N particle values of one trajectory
//   - [Params]: immutable, validated simulation parameters
//   - [System]: drift and volatility of the per-particle SDE
//   - [Stepper]: one stochastic integration step
//   - [Source]: a seeded stream of uniforms, normals and exponentials
//   - [Observer]: callback invoked once per save time
//   - [MomentRecord], [MomentLog], [Result]: simulation output
//
// # Thread Safety
//
// Params is read-only once validated and may be shared between goroutines.
// State, Source and Observer instances belong to exactly one trajectory and
// must never be shared across goroutines.
package dynamo
