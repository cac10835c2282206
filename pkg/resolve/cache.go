// SPDX-License-Identifier: MPL-2.0

package resolve

import (
	"slices"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/zephyr-sh/zephyr/pkg/zephyrmod"
)

// Cache remembers the last resolved order for a module set.
//
// An entry is reused only when both the content key and the module count
// match. The key covers name, version, priority and dependency lists; nothing
// else about a module (files, platform, settings) invalidates it.
type Cache struct {
	mu    sync.Mutex
	valid bool
	key   uint64
	count int
	order []string
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{}
}

// Clear discards the cached entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.valid = false
	c.key = 0
	c.count = 0
	c.order = nil
}

func (c *Cache) lookup(key uint64, count int) ([]string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.valid || c.count != count || c.key != key {
		return nil, false
	}
	return slices.Clone(c.order), true
}

func (c *Cache) store(key uint64, order []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.valid = true
	c.key = key
	c.count = len(order)
	c.order = slices.Clone(order)
}

// cacheKey hashes a length-prefixed serialization of every module in input
// order, so that field boundaries cannot collide.
func cacheKey(modules []*zephyrmod.Module) uint64 {
	d := xxhash.New()
	field := func(s string) {
		_, _ = d.WriteString(strconv.Itoa(len(s)))
		_, _ = d.WriteString(":")
		_, _ = d.WriteString(s)
	}
	list := func(items []string) {
		field(strconv.Itoa(len(items)))
		for _, s := range items {
			field(s)
		}
	}
	for _, m := range modules {
		field(m.Name)
		field(m.Version)
		field(strconv.Itoa(m.Priority))
		list(m.Required)
		list(m.Optional)
	}
	return d.Sum64()
}
