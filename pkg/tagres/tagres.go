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

// Package tagres turns user-supplied identifiers into canonical tags and group numbers.
//
// Accepted tag forms:
//
//	PatientName      dictionary keyword
//	0x00100010       combined group and element, hexadecimal
//	00100010         same, without prefix
//	(0010,0010)      paired form
//	0010,0010        paired form without parentheses
//
// Groups are hexadecimal by default (0x0009 and 0009 are the same group); a 0d prefix
// selects decimal.
package tagres

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/walteh/dcmrmel/pkg/dataset"
	"gitlab.com/tozd/go/errors"
)

// 📖 Dictionary maps standard keywords to tags
type Dictionary interface {
	LookupKeyword(keyword string) (dataset.Tag, bool)
}

// UnresolvedTagError is returned when an identifier is neither a keyword nor a tag literal
type UnresolvedTagError struct {
	Identifier string
}

func (e *UnresolvedTagError) Error() string {
	return fmt.Sprintf("unresolved tag %q: not a dictionary keyword or a group+element literal", e.Identifier)
}

// InvalidGroupError is returned for malformed or out-of-range group numbers
type InvalidGroupError struct {
	Identifier string
	Reason     string
}

func (e *InvalidGroupError) Error() string {
	return fmt.Sprintf("invalid group %q: %s", e.Identifier, e.Reason)
}

// 🔎 Resolver resolves identifiers against an injected dictionary
type Resolver struct {
	dict Dictionary
}

// 🏭 New creates a resolver. A nil dictionary resolves numeric literals only.
func New(dict Dictionary) *Resolver {
	return &Resolver{dict: dict}
}

// Resolve converts a keyword or numeric literal into a tag
func (r *Resolver) Resolve(identifier string) (dataset.Tag, error) {
	id := strings.TrimSpace(identifier)
	if id == "" {
		return dataset.Tag{}, errors.WithStack(&UnresolvedTagError{Identifier: identifier})
	}

	if r.dict != nil {
		if tag, ok := r.dict.LookupKeyword(id); ok {
			return tag, nil
		}
	}

	if tag, ok := parsePair(id); ok {
		return tag, nil
	}

	if tag, ok := parseCombined(id); ok {
		return tag, nil
	}

	return dataset.Tag{}, errors.WithStack(&UnresolvedTagError{Identifier: identifier})
}

// ResolveGroup converts a group literal into a group number
func (r *Resolver) ResolveGroup(identifier string) (uint16, error) {
	id := strings.TrimSpace(identifier)
	if id == "" {
		return 0, errors.WithStack(&InvalidGroupError{Identifier: identifier, Reason: "empty"})
	}

	base := 16
	digits := id
	switch {
	case hasPrefixFold(id, "0x"):
		digits = id[2:]
	case hasPrefixFold(id, "0d"):
		digits = id[2:]
		base = 10
	}
	if digits == "" {
		return 0, errors.WithStack(&InvalidGroupError{Identifier: identifier, Reason: "no digits"})
	}

	v, err := strconv.ParseUint(digits, base, 64)
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) && errors.Is(numErr.Err, strconv.ErrRange) {
			return 0, errors.WithStack(&InvalidGroupError{Identifier: identifier, Reason: "exceeds 0xFFFF"})
		}
		return 0, errors.WithStack(&InvalidGroupError{Identifier: identifier, Reason: fmt.Sprintf("not a base-%d number", base)})
	}
	if v > 0xFFFF {
		return 0, errors.WithStack(&InvalidGroupError{Identifier: identifier, Reason: "exceeds 0xFFFF"})
	}

	return uint16(v), nil
}

// parseCombined accepts 0xGGGGEEEE or GGGGEEEE
func parseCombined(id string) (dataset.Tag, bool) {
	digits := id
	if hasPrefixFold(digits, "0x") {
		digits = digits[2:]
	}
	if len(digits) == 0 || len(digits) > 8 || !isHex(digits) {
		return dataset.Tag{}, false
	}
	v, err := strconv.ParseUint(digits, 16, 32)
	if err != nil {
		return dataset.Tag{}, false
	}
	return dataset.TagFromUint32(uint32(v)), true
}

// parsePair accepts (GGGG,EEEE) or GGGG,EEEE
func parsePair(id string) (dataset.Tag, bool) {
	if strings.HasPrefix(id, "(") != strings.HasSuffix(id, ")") {
		return dataset.Tag{}, false
	}
	parts := strings.Split(strings.Trim(id, "()"), ",")
	if len(parts) != 2 {
		return dataset.Tag{}, false
	}

	var halves [2]uint16
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if hasPrefixFold(p, "0x") {
			p = p[2:]
		}
		if len(p) == 0 || len(p) > 4 || !isHex(p) {
			return dataset.Tag{}, false
		}
		v, err := strconv.ParseUint(p, 16, 16)
		if err != nil {
			return dataset.Tag{}, false
		}
		halves[i] = uint16(v)
	}

	return dataset.Tag{Group: halves[0], Element: halves[1]}, true
}

func isHex(s string) bool {
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
