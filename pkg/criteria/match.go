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

package criteria

import "github.com/walteh/dcmrmel/pkg/dataset"

// Reason names the rule an element matched
type Reason int

const (
	ReasonNone Reason = iota
	ReasonVR
	ReasonGroup
	ReasonTag
	ReasonPrivate
)

func (r Reason) String() string {
	switch r {
	case ReasonVR:
		return "vr"
	case ReasonGroup:
		return "group"
	case ReasonTag:
		return "tag"
	case ReasonPrivate:
		return "private"
	default:
		return "none"
	}
}

// Reason returns the first rule e satisfies, or ReasonNone
func (s *Set) Reason(e dataset.Element) Reason {
	if s == nil || e == nil {
		return ReasonNone
	}
	tag := e.Tag()
	if _, ok := s.vrs[e.VR()]; ok {
		return ReasonVR
	}
	if _, ok := s.groups[tag.Group]; ok {
		return ReasonGroup
	}
	if _, ok := s.tags[tag]; ok {
		return ReasonTag
	}
	if s.removePrivate && tag.IsPrivate() {
		return ReasonPrivate
	}
	return ReasonNone
}

// ✂️ Matches reports whether e should be removed
func (s *Set) Matches(e dataset.Element) bool {
	return s.Reason(e) != ReasonNone
}
