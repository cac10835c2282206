// SPDX-License-Identifier: MPL-2.0

package resolve

import (
	"maps"
	"slices"

	"github.com/zephyr-sh/zephyr/pkg/zephyrmod"
)

// ReverseIndex maps a module name to the sorted names of the modules that list
// it as a required or optional dependency.
type ReverseIndex map[string][]string

// BuildReverseIndex builds the reverse-dependency index for modules.
// Every name referenced as a dependency is a key, even when it is not itself
// part of modules; every module in the input is a key too.
func BuildReverseIndex(modules []*zephyrmod.Module) ReverseIndex {
	sets := make(map[string]map[string]struct{})
	ensure := func(name string) map[string]struct{} {
		s, ok := sets[name]
		if !ok {
			s = make(map[string]struct{})
			sets[name] = s
		}
		return s
	}

	for _, m := range modules {
		if m == nil {
			continue
		}
		ensure(m.Name)
		for _, dep := range m.Required {
			ensure(dep)[m.Name] = struct{}{}
		}
		for _, dep := range m.Optional {
			ensure(dep)[m.Name] = struct{}{}
		}
	}

	idx := make(ReverseIndex, len(sets))
	for name, s := range sets {
		idx[name] = slices.Sorted(maps.Keys(s))
	}
	return idx
}

// DependentsOf returns the modules that depend on name. The boolean is false
// when there are none.
func (idx ReverseIndex) DependentsOf(name string) ([]string, bool) {
	deps := idx[name]
	if len(deps) == 0 {
		return nil, false
	}
	return slices.Clone(deps), true
}
