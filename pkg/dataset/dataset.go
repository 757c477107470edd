// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package dataset

import "slices"

// 🗂️ Dataset is a set of elements with unique tags, kept in ascending tag order
type Dataset struct {
	elems []Element
}

// 🏭 New creates a dataset from elems. A later element replaces an earlier one with the same tag.
func New(elems ...Element) *Dataset {
	ds := &Dataset{elems: make([]Element, 0, len(elems))}
	for _, e := range elems {
		ds.Set(e)
	}
	return ds
}

func (ds *Dataset) search(tag Tag) (int, bool) {
	return slices.BinarySearchFunc(ds.elems, tag, func(e Element, t Tag) int {
		switch {
		case e.Tag() == t:
			return 0
		case e.Tag().Less(t):
			return -1
		default:
			return 1
		}
	})
}

// Set inserts e, replacing any element with the same tag
func (ds *Dataset) Set(e Element) {
	if e == nil {
		return
	}
	i, found := ds.search(e.Tag())
	if found {
		ds.elems[i] = e
		return
	}
	ds.elems = slices.Insert(ds.elems, i, e)
}

// Get returns the element with the given tag
func (ds *Dataset) Get(tag Tag) (Element, bool) {
	if ds == nil {
		return nil, false
	}
	i, found := ds.search(tag)
	if !found {
		return nil, false
	}
	return ds.elems[i], true
}

// Remove deletes the element with the given tag, reporting whether it was present
func (ds *Dataset) Remove(tag Tag) bool {
	if ds == nil {
		return false
	}
	i, found := ds.search(tag)
	if !found {
		return false
	}
	ds.elems = slices.Delete(ds.elems, i, i+1)
	return true
}

// Len returns the number of top-level elements
func (ds *Dataset) Len() int {
	if ds == nil {
		return 0
	}
	return len(ds.elems)
}

// Elements returns the top-level elements in tag order
func (ds *Dataset) Elements() []Element {
	if ds == nil {
		return nil
	}
	return slices.Clone(ds.elems)
}

// Tags returns the top-level tags in order
func (ds *Dataset) Tags() []Tag {
	tags := make([]Tag, 0, ds.Len())
	for _, e := range ds.Elements() {
		tags = append(tags, e.Tag())
	}
	return tags
}

// 🚶 WalkFunc is called for every element; path holds the tags of the enclosing sequences
type WalkFunc func(path []Tag, e Element)

// Walk visits every element depth-first, descending into sequence items
func (ds *Dataset) Walk(fn WalkFunc) {
	ds.walk(nil, fn)
}

func (ds *Dataset) walk(path []Tag, fn WalkFunc) {
	for _, e := range ds.Elements() {
		fn(path, e)
		seq, ok := e.(*Sequence)
		if !ok {
			continue
		}
		inner := append(slices.Clone(path), seq.Tag())
		for _, item := range seq.Items {
			if item == nil {
				continue
			}
			item.Dataset.walk(inner, fn)
		}
	}
}

// Count returns the number of elements at every depth
func (ds *Dataset) Count() int {
	n := 0
	ds.Walk(func([]Tag, Element) { n++ })
	return n
}
