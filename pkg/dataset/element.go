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

// 📦 Element is one entry of a Dataset: either a *Scalar or a *Sequence
type Element interface {
	Tag() Tag
	VR() VR
	element()
}

// Scalar is a non-sequence element. Payload is opaque to everything but the codec.
type Scalar struct {
	tag     Tag
	vr      VR
	Payload any
}

// NewScalar creates a scalar element
func NewScalar(tag Tag, vr VR, payload any) *Scalar {
	return &Scalar{tag: tag, vr: vr, Payload: payload}
}

func (s *Scalar) Tag() Tag { return s.tag }
func (s *Scalar) VR() VR   { return s.vr }
func (s *Scalar) element() {}

// 🪆 Sequence is an SQ element holding an ordered list of items
type Sequence struct {
	tag             Tag
	Items           []*Item
	UndefinedLength bool
}

// NewSequence creates a sequence element
func NewSequence(tag Tag, items ...*Item) *Sequence {
	return &Sequence{tag: tag, Items: items}
}

func (s *Sequence) Tag() Tag { return s.tag }
func (s *Sequence) VR() VR   { return VRSQ }
func (s *Sequence) element() {}

// Item is one nested dataset inside a sequence
type Item struct {
	Dataset         *Dataset
	UndefinedLength bool
}

// NewItem wraps the given elements in an item
func NewItem(elems ...Element) *Item {
	return &Item{Dataset: New(elems...)}
}
