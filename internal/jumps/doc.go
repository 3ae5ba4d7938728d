// Package jumps implements the catch-up jump process: the state-dependent
// intensity of every particle, the jump effect, and a thinning scheduler
// that samples jump times while the diffusion keeps moving the state.
//
// # Thinning bound
//
// Particle i jumps at rate rho * (x[i] - max)^2 / (max - min). Each term is
// at most rho * (max - min) and the leading particle contributes nothing, so
// the total rate never exceeds rho * (N-1) * (max - min). Drift is shared by
// all particles and cannot change the range; only the Brownian parts can. Over
// a lookahead window L the scheduler widens the current range by
// 2 * c * sigma * sqrt(L), c being the safety factor, and uses
//
//	B = rho * (N-1) * (range + 2*c*sigma*sqrt(L))
//
// With sigma = 0 the bound is exact. With sigma > 0 the realized total rate
// exceeds B only if some particle moves more than c standard deviations
// within one window; such events are accepted with probability 1 and counted
// in [Stats.BoundViolations].
package jumps
