// SPDX-License-Identifier: MPL-2.0

package resolve

import (
	"errors"
	"log/slog"

	"github.com/zephyr-sh/zephyr/internal/dag"
	"github.com/zephyr-sh/zephyr/pkg/zephyrmod"
)

type (
	// Option configures a Resolver.
	Option func(*Resolver)

	// Resolver computes module load order.
	// A Resolver without a cache is stateless and safe for concurrent use; with a
	// cache it is as safe as the cache, which serializes access internally.
	Resolver struct {
		cache  *Cache
		logger *slog.Logger
	}
)

// WithCache attaches a result cache. The same cache may be shared between resolvers.
func WithCache(c *Cache) Option {
	return func(r *Resolver) { r.cache = c }
}

// WithLogger sets the logger used for cache diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// New creates a Resolver.
func New(opts ...Option) *Resolver {
	r := &Resolver{logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns modules in load order. The input slice order is the
// discovery order used to break priority ties; the input is not modified.
//
// Errors are *InvalidModuleError, *MissingDependencyError or
// *CircularDependencyError.
func (r *Resolver) Resolve(modules []*zephyrmod.Module) ([]*zephyrmod.Module, error) {
	byName, err := indexModules(modules)
	if err != nil {
		return nil, err
	}
	if len(modules) == 0 {
		return nil, nil
	}

	var key uint64
	if r.cache != nil {
		key = cacheKey(modules)
		if order, ok := r.cache.lookup(key, len(modules)); ok {
			r.logger.Debug("resolver cache hit", "modules", len(modules))
			return reorder(order, byName), nil
		}
	}

	g := dag.New()
	for _, m := range modules {
		g.AddWeightedNode(m.Name, m.Priority)
	}
	for _, m := range modules {
		for _, dep := range m.Required {
			if _, ok := byName[dep]; !ok {
				return nil, &MissingDependencyError{Module: m.Name, Missing: dep}
			}
			g.AddEdge(dep, m.Name)
		}
	}

	order, err := g.TopologicalSort()
	if err != nil {
		var cycleErr *dag.CycleError
		if errors.As(err, &cycleErr) {
			return nil, &CircularDependencyError{Members: cycleErr.Cycle}
		}
		return nil, err
	}

	if r.cache != nil {
		r.cache.store(key, order)
	}
	return reorder(order, byName), nil
}

func indexModules(modules []*zephyrmod.Module) (map[string]*zephyrmod.Module, error) {
	byName := make(map[string]*zephyrmod.Module, len(modules))
	for i, m := range modules {
		if m == nil {
			return nil, &InvalidModuleError{Reason: ReasonNilModule, Index: i}
		}
		if m.Name == "" {
			return nil, &InvalidModuleError{Reason: ReasonEmptyName, Index: i}
		}
		if _, dup := byName[m.Name]; dup {
			return nil, &InvalidModuleError{Reason: ReasonDuplicateName, Module: m.Name, Index: i}
		}
		byName[m.Name] = m
	}
	return byName, nil
}

func reorder(order []string, byName map[string]*zephyrmod.Module) []*zephyrmod.Module {
	out := make([]*zephyrmod.Module, 0, len(order))
	for _, name := range order {
		out = append(out, byName[name])
	}
	return out
}
