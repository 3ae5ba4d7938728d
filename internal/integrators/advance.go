package integrators

import (
	"context"
	"math"

	"github.com/san-kum/jumpsim/internal/dynamo"
)

// ctxCheckSteps is how many steps AdvanceContext takes between context checks.
const ctxCheckSteps = 4096

// Advance integrates x in place from t to t+h using equal steps no longer
// than maxDt. Any h is allowed, so integration can stop at an arbitrary
// jump or save time and resume from there.
func Advance(st dynamo.Stepper, sys dynamo.System, x dynamo.State, t, h, maxDt float64, r dynamo.Source) int {
	n, _ := AdvanceContext(context.Background(), st, sys, x, t, h, maxDt, r)
	return n
}

// AdvanceContext is Advance with a context checked every few thousand
// steps. On cancellation it returns the steps taken and ctx.Err(); x is left
// part way through the horizon.
func AdvanceContext(ctx context.Context, st dynamo.Stepper, sys dynamo.System, x dynamo.State, t, h, maxDt float64, r dynamo.Source) (int, error) {
	if h <= 0 {
		return 0, nil
	}
	steps := int(math.Ceil(h / maxDt))
	if steps < 1 {
		steps = 1
	}
	dt := h / float64(steps)
	for i := 0; i < steps; i++ {
		if i > 0 && i%ctxCheckSteps == 0 {
			if err := ctx.Err(); err != nil {
				return i, err
			}
		}
		st.Step(sys, x, t+float64(i)*dt, dt, r)
	}
	return steps, nil
}
