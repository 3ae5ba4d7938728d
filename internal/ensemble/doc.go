// Package ensemble runs many independent trajectories of one parameter set
// and reduces them into per-save-time statistics.
//
// Trajectory i draws from a stream seeded by stochastic.SeedFor(seed, i,
// attempt), so results do not depend on how many workers execute them or in
// which order. A failing trajectory never affects the others: its error is
// kept on its [Outcome] and reported next to the successful runs.
//
// # Variance
//
// [Reduce] reports the Bessel-corrected sample variance across trajectories.
// With a single successful trajectory the variance is 0.
package ensemble
