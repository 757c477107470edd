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

// Package dictionary exposes the standard DICOM data dictionary shipped with
// github.com/gradienthealth/dicom.
package dictionary

import (
	"github.com/gradienthealth/dicom/dicomtag"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/walteh/dcmrmel/pkg/dataset"
	"gitlab.com/tozd/go/errors"
)

// DefaultCacheSize bounds the number of memoised lookups
const DefaultCacheSize = 512

type lookup struct {
	tag dataset.Tag
	ok  bool
}

// 📖 Standard resolves keywords against the standard dictionary
type Standard struct {
	keywords *lru.Cache[string, lookup]
	names    *lru.Cache[dataset.Tag, string]
}

// 🏭 NewStandard creates a dictionary with lookup caches of the given size
func NewStandard(size int) (*Standard, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	keywords, err := lru.New[string, lookup](size)
	if err != nil {
		return nil, errors.Errorf("creating keyword cache: %w", err)
	}
	names, err := lru.New[dataset.Tag, string](size)
	if err != nil {
		return nil, errors.Errorf("creating name cache: %w", err)
	}
	return &Standard{keywords: keywords, names: names}, nil
}

// LookupKeyword returns the tag registered for keyword, e.g. PatientName
func (s *Standard) LookupKeyword(keyword string) (dataset.Tag, bool) {
	if hit, ok := s.keywords.Get(keyword); ok {
		return hit.tag, hit.ok
	}

	var res lookup
	if info, err := dicomtag.FindByName(keyword); err == nil {
		res = lookup{tag: dataset.Tag{Group: info.Tag.Group, Element: info.Tag.Element}, ok: true}
	}
	s.keywords.Add(keyword, res)

	return res.tag, res.ok
}

// Describe returns the keyword of a tag, or "" when the tag is not in the dictionary
func (s *Standard) Describe(tag dataset.Tag) string {
	if name, ok := s.names.Get(tag); ok {
		return name
	}

	var name string
	if info, err := dicomtag.Find(dicomtag.Tag{Group: tag.Group, Element: tag.Element}); err == nil {
		name = info.Name
	}
	s.names.Add(tag, name)

	return name
}
