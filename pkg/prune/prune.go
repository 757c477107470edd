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

/*
Package prune removes matching elements from a dataset tree.

	root ─┬─ (0008,0018) UI        kept
	      ├─ (0009,0010) LO        removed (match)
	      └─ (300a,00b0) SQ        kept, items pruned
	             └─ item ─┬─ (300a,00b6) CS   removed (match)
	                      └─ ...

A matching element is dropped whole: a matching sequence takes its items with it and is
not descended into. A sequence that does not match is kept even when every item ends up
empty.
*/
package prune

import (
	"slices"

	"github.com/walteh/dcmrmel/pkg/dataset"
)

// 🎯 Matcher decides whether an element is removed
type Matcher interface {
	Matches(e dataset.Element) bool
}

// Observer is told about every removed element. path holds the enclosing sequence tags.
type Observer func(path []dataset.Tag, e dataset.Element)

type options struct {
	observer Observer
}

// Option configures Prune
type Option func(*options)

// WithObserver reports each removed element to fn
func WithObserver(fn Observer) Option {
	return func(o *options) {
		o.observer = fn
	}
}

// ✂️ Prune returns a copy of ds without the elements m matches, at every depth, and the
// number of elements removed. ds itself is not modified.
func Prune(ds *dataset.Dataset, m Matcher, opts ...Option) (*dataset.Dataset, int) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	return pruneLevel(ds, m, nil, o)
}

func pruneLevel(ds *dataset.Dataset, m Matcher, path []dataset.Tag, o *options) (*dataset.Dataset, int) {
	out := dataset.New()
	removed := 0

	for _, e := range ds.Elements() {
		if m.Matches(e) {
			removed++
			if o.observer != nil {
				o.observer(slices.Clip(path), e)
			}
			continue
		}

		seq, ok := e.(*dataset.Sequence)
		if !ok {
			out.Set(e)
			continue
		}

		kept, n := pruneSequence(seq, m, path, o)
		removed += n
		out.Set(kept)
	}

	return out, removed
}

func pruneSequence(seq *dataset.Sequence, m Matcher, path []dataset.Tag, o *options) (*dataset.Sequence, int) {
	inner := append(slices.Clone(path), seq.Tag())
	out := dataset.NewSequence(seq.Tag())
	out.UndefinedLength = seq.UndefinedLength
	out.Items = make([]*dataset.Item, 0, len(seq.Items))

	removed := 0
	for _, item := range seq.Items {
		if item == nil {
			continue
		}
		pruned, n := pruneLevel(item.Dataset, m, inner, o)
		removed += n
		out.Items = append(out.Items, &dataset.Item{Dataset: pruned, UndefinedLength: item.UndefinedLength})
	}

	return out, removed
}
