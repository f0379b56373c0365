// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package state

import (
	"sort"

	"github.com/hashicorp/go-set/v2"
)

// nameSet is a thin wrapper around go-set/v2.Set[string], generalizing the
// teacher's virt/idset package (numeric core/NUMA IDs) to the string
// resource names diffed throughout romulus.
type nameSet struct {
	items *set.Set[string]
}

func newNameSet(names ...string) nameSet {
	s := set.New[string](len(names))
	for _, n := range names {
		s.Insert(n)
	}
	return nameSet{items: s}
}

func (s nameSet) sorted() []string {
	out := s.items.Slice()
	sort.Strings(out)
	return out
}

func (s nameSet) contains(name string) bool {
	return s.items.Contains(name)
}

// difference returns the names present in a but not in b, sorted.
func difference(a, b nameSet) []string {
	return newNameSet(a.items.Difference(b.items).Slice()...).sorted()
}

// intersection returns the names present in both a and b, sorted.
func intersection(a, b nameSet) []string {
	return newNameSet(a.items.Intersect(b.items).Slice()...).sorted()
}
