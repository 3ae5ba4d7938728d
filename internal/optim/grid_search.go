// Package optim sweeps configuration parameters over a grid and scores each
// point by an ensemble statistic.
package optim

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/san-kum/jumpsim/internal/config"
	"github.com/san-kum/jumpsim/internal/ensemble"
	"github.com/san-kum/jumpsim/internal/experiment"
)

// Point is one evaluated grid point.
type Point struct {
	Params map[string]float64
	Value  float64
	Err    error
}

type GridSearch struct {
	paramNames []string
	ranges     [][]float64
	// Maximize selects the largest score as best instead of the smallest.
	Maximize bool
}

func NewGridSearch(params []string, ranges [][]float64) *GridSearch {
	return &GridSearch{paramNames: params, ranges: ranges}
}

// Apply sets the configuration field named by its YAML key.
func Apply(cfg *config.Config, name string, v float64) error {
	switch name {
	case "mu":
		cfg.Mu = v
	case "sigma":
		cfg.Sigma = v
	case "rho_max":
		cfg.RhoMax = v
	case "particles":
		if v != math.Trunc(v) {
			return fmt.Errorf("particles must be an integer, got %g", v)
		}
		cfg.Particles = int(v)
	case "dt":
		cfg.Dt = v
	case "lookahead":
		cfg.Lookahead = v
	case "bound_safety":
		cfg.BoundSafety = v
	default:
		return fmt.Errorf("unknown sweep parameter: %s", name)
	}
	return nil
}

// Search runs one ensemble per grid point on a copy of base and scores it
// by the mean of channel at the last save time. Points whose configuration
// is invalid or whose ensemble has no successful trajectory are returned
// with Err set and never chosen as best.
func (g *GridSearch) Search(
	ctx context.Context,
	base *config.Config,
	channel string,
	logger *slog.Logger,
) ([]Point, *Point, error) {
	if len(g.paramNames) != len(g.ranges) {
		return nil, nil, fmt.Errorf("%d parameters but %d ranges", len(g.paramNames), len(g.ranges))
	}
	for _, name := range g.paramNames {
		if err := Apply(config.DefaultConfig(), name, 1); err != nil {
			return nil, nil, err
		}
	}

	var points []Point
	err := g.searchRecursive(ctx, 0, make(map[string]float64), func(params map[string]float64) {
		p := g.evaluate(ctx, base, params, channel, logger)
		points = append(points, p)
	})
	if err != nil {
		return points, nil, err
	}

	var best *Point
	for i := range points {
		p := &points[i]
		if p.Err != nil {
			continue
		}
		if best == nil || (g.Maximize && p.Value > best.Value) || (!g.Maximize && p.Value < best.Value) {
			best = p
		}
	}
	return points, best, nil
}

func (g *GridSearch) evaluate(ctx context.Context, base *config.Config, params map[string]float64, channel string, logger *slog.Logger) Point {
	pt := Point{Params: params, Value: math.NaN()}

	cfg := *base
	for name, v := range params {
		if err := Apply(&cfg, name, v); err != nil {
			pt.Err = err
			return pt
		}
	}

	exp, err := experiment.FromConfig(&cfg, logger)
	if err != nil {
		pt.Err = err
		return pt
	}
	rep, err := exp.Run(ctx)
	if err != nil {
		pt.Err = err
		return pt
	}
	summary, err := ensemble.Reduce(rep)
	if err != nil {
		pt.Err = err
		return pt
	}

	c := summary.Channel(channel)
	if c < 0 {
		pt.Err = fmt.Errorf("unknown channel %q", channel)
		return pt
	}
	pt.Value = summary.Mean[c][len(summary.Times)-1]
	return pt
}

func (g *GridSearch) searchRecursive(
	ctx context.Context,
	depth int,
	current map[string]float64,
	visit func(map[string]float64),
) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if depth == len(g.paramNames) {
		visit(current)
		return nil
	}

	paramName := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		newParams := make(map[string]float64)
		for k, v := range current {
			newParams[k] = v
		}
		newParams[paramName] = val

		if err := g.searchRecursive(ctx, depth+1, newParams, visit); err != nil {
			return err
		}
	}
	return nil
}
