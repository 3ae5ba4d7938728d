package experiment

import (
	"fmt"
	"sort"

	"github.com/san-kum/jumpsim/internal/dynamo"
	"github.com/san-kum/jumpsim/internal/integrators"
)

// Registry maps algorithm names to stepper constructors. Steppers keep
// scratch buffers, so every trajectory gets a new one.
type Registry struct {
	steppers map[string]func() dynamo.Stepper
}

func NewRegistry() *Registry {
	r := &Registry{
		steppers: make(map[string]func() dynamo.Stepper),
	}

	r.steppers["euler_maruyama"] = func() dynamo.Stepper { return integrators.NewEulerMaruyama() }
	r.steppers["em"] = r.steppers["euler_maruyama"]
	r.steppers["heun"] = func() dynamo.Stepper { return integrators.NewHeun() }

	return r
}

func (r *Registry) GetStepper(name string) (dynamo.Stepper, error) {
	fn, ok := r.steppers[name]
	if !ok {
		return nil, fmt.Errorf("unknown algorithm: %s (available: %v)", name, r.ListSteppers())
	}
	return fn(), nil
}

func (r *Registry) ListSteppers() []string {
	names := make([]string, 0, len(r.steppers))
	for name := range r.steppers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
