// Package workflow implements the DAG-structured pipeline engine: step graph
// validation, layered scheduling, per-step rate limiting, and retry with
// jittered backoff.
package workflow

import (
	"fmt"
	"sort"
)

// StepSpec declares a single pipeline step.
type StepSpec struct {
	Name           string   `yaml:"-"`
	Kind           string   `yaml:"kind"`
	DependsOn      []string `yaml:"depends_on"`
	Retries        int      `yaml:"retries"`
	RateLimitRPS   float64  `yaml:"rate_limit_rps"`
	RateLimitBurst int      `yaml:"rate_limit_burst"`
	MaxConcurrency int      `yaml:"max_concurrency"`
}

// Graph is a validated set of steps keyed by name.
type Graph struct {
	steps map[string]*StepSpec
}

// NewGraph builds a graph from the given steps. Call Validate before use.
func NewGraph(steps map[string]*StepSpec) *Graph {
	return &Graph{steps: steps}
}

// Steps returns the underlying step map.
func (g *Graph) Steps() map[string]*StepSpec {
	return g.steps
}

// Step returns the spec for name, or nil if absent.
func (g *Graph) Step(name string) *StepSpec {
	return g.steps[name]
}

// Validate checks that every dependency references an existing step and that
// the graph is acyclic (depth-first traversal with visiting/visited marks).
func (g *Graph) Validate() error {
	for name, spec := range g.steps {
		for _, dep := range spec.DependsOn {
			if _, ok := g.steps[dep]; !ok {
				return fmt.Errorf("%w: %s -> %s", ErrUnknownDependency, name, dep)
			}
		}
	}

	const (
		unvisited = iota
		visiting
		visited
	)
	state := make(map[string]int, len(g.steps))

	var dfs func(name string) error
	dfs = func(name string) error {
		switch state[name] {
		case visiting:
			return fmt.Errorf("%w: at step %s", ErrCycleDetected, name)
		case visited:
			return nil
		}
		state[name] = visiting
		for _, dep := range g.steps[name].DependsOn {
			if err := dfs(dep); err != nil {
				return err
			}
		}
		state[name] = visited
		return nil
	}

	for _, name := range g.sortedNames() {
		if err := dfs(name); err != nil {
			return err
		}
	}
	return nil
}

// TopologicalLayers groups steps into executable layers: layer 0 holds all
// steps with no dependencies, layer k+1 every step whose dependencies all lie
// in layers 0..k. Step order within a layer is lexicographic so runs and
// tests are reproducible.
func (g *Graph) TopologicalLayers() ([][]string, error) {
	remaining := make(map[string]map[string]struct{}, len(g.steps))
	for name, spec := range g.steps {
		deps := make(map[string]struct{}, len(spec.DependsOn))
		for _, d := range spec.DependsOn {
			deps[d] = struct{}{}
		}
		remaining[name] = deps
	}

	placed := make(map[string]struct{}, len(g.steps))
	var layers [][]string

	for len(placed) < len(g.steps) {
		var layer []string
		for name, deps := range remaining {
			if _, done := placed[name]; done {
				continue
			}
			if len(deps) == 0 {
				layer = append(layer, name)
			}
		}
		if len(layer) == 0 {
			return nil, fmt.Errorf("%w: placed %d of %d", ErrCycleOrMissing, len(placed), len(g.steps))
		}
		sort.Strings(layer)
		layers = append(layers, layer)

		for _, name := range layer {
			placed[name] = struct{}{}
			for _, deps := range remaining {
				delete(deps, name)
			}
		}
	}

	return layers, nil
}

func (g *Graph) sortedNames() []string {
	names := make([]string, 0, len(g.steps))
	for name := range g.steps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
