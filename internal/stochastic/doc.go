// Package stochastic supplies the random streams and initial-condition
// distributions used by the simulator.
//
// Every trajectory owns one [Stream] seeded through [SeedFor], so an
// ensemble is reproducible no matter how its trajectories are scheduled.
package stochastic
