// SPDX-License-Identifier: MPL-2.0

package resolve

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"sync"
	"testing"

	"github.com/zephyr-sh/zephyr/pkg/zephyrmod"
)

func mod(name string, priority int, required ...string) *zephyrmod.Module {
	return &zephyrmod.Module{Name: name, Version: "1.0.0", Priority: priority, Required: required}
}

func names(modules []*zephyrmod.Module) []string {
	out := make([]string, len(modules))
	for i, m := range modules {
		out[i] = m.Name
	}
	return out
}

func TestResolve_Empty(t *testing.T) {
	t.Parallel()

	got, err := New().Resolve(nil)
	if err != nil || len(got) != 0 {
		t.Errorf("Resolve(nil) = %v, %v", got, err)
	}
}

func TestResolve_DependenciesFirst(t *testing.T) {
	t.Parallel()

	modules := []*zephyrmod.Module{
		mod("prompt", 10, "colors", "core"),
		mod("colors", 100, "core"),
		mod("core", 100),
	}

	got, err := New().Resolve(modules)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if want := []string{"core", "colors", "prompt"}; !slices.Equal(names(got), want) {
		t.Errorf("order = %v, want %v", names(got), want)
	}
}

func TestResolve_PriorityTieBreak(t *testing.T) {
	t.Parallel()

	modules := []*zephyrmod.Module{
		mod("zeta", 100),
		mod("alpha", 50),
		mod("mid", 100),
		mod("early", 1),
	}

	got, err := New().Resolve(modules)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	// equal priorities keep discovery order: zeta before mid
	if want := []string{"early", "alpha", "zeta", "mid"}; !slices.Equal(names(got), want) {
		t.Errorf("order = %v, want %v", names(got), want)
	}
}

func TestResolve_PriorityWithinWave(t *testing.T) {
	t.Parallel()

	// After base loads, heavy and light both become ready; light must come first
	// even though standalone (priority 50) was already waiting in the queue.
	modules := []*zephyrmod.Module{
		mod("base", 10),
		mod("heavy", 90, "base"),
		mod("light", 20, "base"),
		mod("standalone", 50),
	}

	got, err := New().Resolve(modules)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if want := []string{"base", "light", "standalone", "heavy"}; !slices.Equal(names(got), want) {
		t.Errorf("order = %v, want %v", names(got), want)
	}
}

func TestResolve_OptionalImposesNoEdge(t *testing.T) {
	t.Parallel()

	a := mod("a", 10)
	a.Optional = []string{"b", "not-installed"}
	modules := []*zephyrmod.Module{a, mod("b", 20)}

	got, err := New().Resolve(modules)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if want := []string{"a", "b"}; !slices.Equal(names(got), want) {
		t.Errorf("order = %v, want %v", names(got), want)
	}
}

func TestResolve_Cycle(t *testing.T) {
	t.Parallel()

	modules := []*zephyrmod.Module{
		mod("a", 100, "b"),
		mod("b", 100, "a"),
		mod("c", 100, "a"),
		mod("free", 100),
	}

	_, err := New().Resolve(modules)
	var cycleErr *CircularDependencyError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("expected *CircularDependencyError, got %v", err)
	}
	if want := []string{"a", "b", "c"}; !slices.Equal(cycleErr.Members, want) {
		t.Errorf("Members = %v, want %v", cycleErr.Members, want)
	}
	if !errors.Is(err, ErrCircularDependency) {
		t.Error("expected errors.Is(err, ErrCircularDependency)")
	}
}

func TestResolve_SelfCycle(t *testing.T) {
	t.Parallel()

	_, err := New().Resolve([]*zephyrmod.Module{mod("loop", 100, "loop")})
	if !errors.Is(err, ErrCircularDependency) {
		t.Errorf("expected ErrCircularDependency, got %v", err)
	}
}

func TestResolve_MissingDependency(t *testing.T) {
	t.Parallel()

	modules := []*zephyrmod.Module{
		mod("ok", 100),
		mod("needs", 100, "ok", "ghost", "phantom"),
		mod("also", 100, "phantom"),
	}

	_, err := New().Resolve(modules)
	var missErr *MissingDependencyError
	if !errors.As(err, &missErr) {
		t.Fatalf("expected *MissingDependencyError, got %v", err)
	}
	if missErr.Module != "needs" || missErr.Missing != "ghost" {
		t.Errorf("got %+v, want needs -> ghost", missErr)
	}
	if !errors.Is(err, ErrMissingDependency) {
		t.Error("expected errors.Is(err, ErrMissingDependency)")
	}
}

func TestResolve_InvalidInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		modules []*zephyrmod.Module
		reason  InvalidReason
	}{
		{"empty name", []*zephyrmod.Module{mod("a", 1), mod("", 1)}, ReasonEmptyName},
		{"duplicate", []*zephyrmod.Module{mod("a", 1), mod("a", 2)}, ReasonDuplicateName},
		{"nil", []*zephyrmod.Module{nil}, ReasonNilModule},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := New().Resolve(tt.modules)
			var invErr *InvalidModuleError
			if !errors.As(err, &invErr) {
				t.Fatalf("expected *InvalidModuleError, got %v", err)
			}
			if invErr.Reason != tt.reason {
				t.Errorf("Reason = %v, want %v", invErr.Reason, tt.reason)
			}
			if !errors.Is(err, ErrInvalidModule) {
				t.Error("expected errors.Is(err, ErrInvalidModule)")
			}
		})
	}
}

// TestResolve_RandomDAGs checks that every output is a permutation of the
// input in which each module follows all of its required dependencies.
func TestResolve_RandomDAGs(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(1, 2))
	for iter := range 200 {
		n := 1 + rng.IntN(15)
		modules := make([]*zephyrmod.Module, n)
		for i := range n {
			var req []string
			// only depend on lower indexes, which keeps the graph acyclic
			for j := range i {
				if rng.IntN(4) == 0 {
					req = append(req, fmt.Sprintf("m%d", j))
				}
			}
			modules[i] = mod(fmt.Sprintf("m%d", i), rng.IntN(5)*10, req...)
		}
		rng.Shuffle(n, func(i, j int) { modules[i], modules[j] = modules[j], modules[i] })

		got, err := New().Resolve(modules)
		if err != nil {
			t.Fatalf("iteration %d: Resolve() error = %v", iter, err)
		}
		if len(got) != n {
			t.Fatalf("iteration %d: got %d modules, want %d", iter, len(got), n)
		}
		pos := make(map[string]int, n)
		for i, m := range got {
			if _, dup := pos[m.Name]; dup {
				t.Fatalf("iteration %d: %s appears twice", iter, m.Name)
			}
			pos[m.Name] = i
		}
		for _, m := range got {
			for _, dep := range m.Required {
				if pos[dep] >= pos[m.Name] {
					t.Fatalf("iteration %d: %s loads before its dependency %s", iter, m.Name, dep)
				}
			}
		}
		checkReadyOrder(t, iter, modules, got)
	}
}

// checkReadyOrder asserts that each emitted module is the lowest
// (priority, discovery index) among the modules ready at that step.
func checkReadyOrder(t *testing.T, iter int, input, got []*zephyrmod.Module) {
	t.Helper()

	index := make(map[string]int, len(input))
	for i, m := range input {
		index[m.Name] = i
	}
	less := func(a, b *zephyrmod.Module) bool {
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		return index[a.Name] < index[b.Name]
	}

	emitted := make(map[string]bool, len(input))
	ready := func(m *zephyrmod.Module) bool {
		for _, dep := range m.Required {
			if !emitted[dep] {
				return false
			}
		}
		return true
	}
	for step, m := range got {
		for _, c := range input {
			if c == m || emitted[c.Name] || !ready(c) {
				continue
			}
			if less(c, m) {
				t.Fatalf("iteration %d step %d: emitted %s (priority %d) while %s (priority %d) was ready",
					iter, step, m.Name, m.Priority, c.Name, c.Priority)
			}
		}
		emitted[m.Name] = true
	}
}

func TestResolve_DoesNotMutateInput(t *testing.T) {
	t.Parallel()

	modules := []*zephyrmod.Module{mod("b", 100, "a"), mod("a", 100)}
	if _, err := New().Resolve(modules); err != nil {
		t.Fatal(err)
	}
	if want := []string{"b", "a"}; !slices.Equal(names(modules), want) {
		t.Errorf("input reordered to %v", names(modules))
	}
}

func TestResolve_CacheHitReturnsCurrentRecords(t *testing.T) {
	t.Parallel()

	cache := NewCache()
	r := New(WithCache(cache))

	first := []*zephyrmod.Module{mod("b", 100, "a"), mod("a", 100)}
	if _, err := r.Resolve(first); err != nil {
		t.Fatal(err)
	}

	second := []*zephyrmod.Module{mod("b", 100, "a"), mod("a", 100)}
	second[0].Description = "fresh"
	got, err := r.Resolve(second)
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"a", "b"}; !slices.Equal(names(got), want) {
		t.Fatalf("order = %v, want %v", names(got), want)
	}
	if got[1] != second[0] || got[1].Description != "fresh" {
		t.Error("cache hit returned stale module records")
	}
}

func TestResolve_CacheMissOnChange(t *testing.T) {
	t.Parallel()

	cache := NewCache()
	r := New(WithCache(cache))

	if _, err := r.Resolve([]*zephyrmod.Module{mod("a", 10), mod("b", 20)}); err != nil {
		t.Fatal(err)
	}

	// Same count, different priority: the key changes.
	got, err := r.Resolve([]*zephyrmod.Module{mod("a", 30), mod("b", 20)})
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"b", "a"}; !slices.Equal(names(got), want) {
		t.Errorf("order = %v, want %v", names(got), want)
	}

	// Different count.
	got, err = r.Resolve([]*zephyrmod.Module{mod("a", 30), mod("b", 20), mod("c", 1)})
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"c", "b", "a"}; !slices.Equal(names(got), want) {
		t.Errorf("order = %v, want %v", names(got), want)
	}

	cache.Clear()
	if _, ok := cache.lookup(cacheKey([]*zephyrmod.Module{mod("a", 30), mod("b", 20), mod("c", 1)}), 3); ok {
		t.Error("Clear() left an entry behind")
	}
}

func TestResolve_CacheConcurrent(t *testing.T) {
	t.Parallel()

	r := New(WithCache(NewCache()))
	sets := [][]*zephyrmod.Module{
		{mod("b", 100, "a"), mod("a", 100)},
		{mod("x", 1), mod("y", 2), mod("z", 3)},
	}

	var wg sync.WaitGroup
	for i := range 16 {
		wg.Go(func() {
			set := sets[i%len(sets)]
			got, err := r.Resolve(set)
			if err != nil {
				t.Errorf("Resolve() error = %v", err)
				return
			}
			if len(got) != len(set) {
				t.Errorf("got %d modules, want %d", len(got), len(set))
			}
		})
	}
	wg.Wait()
}

func TestCacheKey_FieldBoundaries(t *testing.T) {
	t.Parallel()

	a := []*zephyrmod.Module{{Name: "ab", Required: []string{"c"}}}
	b := []*zephyrmod.Module{{Name: "a", Required: []string{"bc"}}}
	if cacheKey(a) == cacheKey(b) {
		t.Error("distinct module sets hashed to the same key")
	}
}
