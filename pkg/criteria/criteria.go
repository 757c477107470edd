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

import (
	"fmt"
	"slices"
	"strings"

	"github.com/walteh/dcmrmel/pkg/dataset"
	"gitlab.com/tozd/go/errors"
)

// 🔎 Resolver converts identifiers into tags and groups
type Resolver interface {
	Resolve(identifier string) (dataset.Tag, error)
	ResolveGroup(identifier string) (uint16, error)
}

// InvalidVRError is returned for a VR code outside the standard set
type InvalidVRError struct {
	VR string
}

func (e *InvalidVRError) Error() string {
	return fmt.Sprintf("invalid value representation %q", e.VR)
}

// 📥 Input holds the raw removal rules as the user typed them
type Input struct {
	VRs           []string
	Groups        []string
	Tags          []string
	RemovePrivate bool
}

// 🎯 Set is the normalized, immutable form of the removal rules
type Set struct {
	vrs           map[dataset.VR]struct{}
	groups        map[uint16]struct{}
	tags          map[dataset.Tag]struct{}
	removePrivate bool
}

// 🏗️ Build validates in and resolves every group and tag. It is the only place
// criteria can fail.
func Build(r Resolver, in Input) (*Set, error) {
	s := &Set{
		vrs:           make(map[dataset.VR]struct{}, len(in.VRs)),
		groups:        make(map[uint16]struct{}, len(in.Groups)),
		tags:          make(map[dataset.Tag]struct{}, len(in.Tags)),
		removePrivate: in.RemovePrivate,
	}

	for _, raw := range in.VRs {
		vr, ok := dataset.ParseVR(raw)
		if !ok {
			return nil, errors.WithStack(&InvalidVRError{VR: raw})
		}
		s.vrs[vr] = struct{}{}
	}

	if (len(in.Groups) > 0 || len(in.Tags) > 0) && r == nil {
		return nil, errors.New("resolver is required for group and tag rules")
	}

	for _, raw := range in.Groups {
		g, err := r.ResolveGroup(raw)
		if err != nil {
			return nil, errors.Errorf("resolving group: %w", err)
		}
		s.groups[g] = struct{}{}
	}

	for _, raw := range in.Tags {
		tag, err := r.Resolve(raw)
		if err != nil {
			return nil, errors.Errorf("resolving tag: %w", err)
		}
		s.tags[tag] = struct{}{}
	}

	return s, nil
}

// Empty returns a set that matches nothing
func Empty() *Set {
	return &Set{}
}

// IsEmpty reports whether the set can never match
func (s *Set) IsEmpty() bool {
	return len(s.vrs) == 0 && len(s.groups) == 0 && len(s.tags) == 0 && !s.removePrivate
}

// RemovePrivate reports whether odd groups are removed
func (s *Set) RemovePrivate() bool {
	return s.removePrivate
}

// VRs returns the VR codes in lexical order
func (s *Set) VRs() []dataset.VR {
	out := make([]dataset.VR, 0, len(s.vrs))
	for vr := range s.vrs {
		out = append(out, vr)
	}
	slices.Sort(out)
	return out
}

// Groups returns the group numbers in ascending order
func (s *Set) Groups() []uint16 {
	out := make([]uint16, 0, len(s.groups))
	for g := range s.groups {
		out = append(out, g)
	}
	slices.Sort(out)
	return out
}

// Tags returns the tags in ascending order
func (s *Set) Tags() []dataset.Tag {
	out := make([]dataset.Tag, 0, len(s.tags))
	for t := range s.tags {
		out = append(out, t)
	}
	slices.SortFunc(out, func(a, b dataset.Tag) int {
		switch {
		case a == b:
			return 0
		case a.Less(b):
			return -1
		default:
			return 1
		}
	})
	return out
}

// String summarizes the rules for logs
func (s *Set) String() string {
	var parts []string
	if vrs := s.VRs(); len(vrs) > 0 {
		strs := make([]string, len(vrs))
		for i, vr := range vrs {
			strs[i] = string(vr)
		}
		parts = append(parts, "vr="+strings.Join(strs, ","))
	}
	if groups := s.Groups(); len(groups) > 0 {
		strs := make([]string, len(groups))
		for i, g := range groups {
			strs[i] = fmt.Sprintf("0x%04x", g)
		}
		parts = append(parts, "group="+strings.Join(strs, ","))
	}
	if tags := s.Tags(); len(tags) > 0 {
		strs := make([]string, len(tags))
		for i, t := range tags {
			strs[i] = t.String()
		}
		parts = append(parts, "tag="+strings.Join(strs, ","))
	}
	if s.removePrivate {
		parts = append(parts, "private")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, " ")
}
