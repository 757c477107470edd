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

package criteria_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/dcmrmel/pkg/criteria"
	"github.com/walteh/dcmrmel/pkg/dataset"
	"github.com/walteh/dcmrmel/pkg/tagres"
	"gitlab.com/tozd/go/errors"
)

type fakeDictionary map[string]dataset.Tag

func (f fakeDictionary) LookupKeyword(keyword string) (dataset.Tag, bool) {
	tag, ok := f[keyword]
	return tag, ok
}

func resolver() *tagres.Resolver {
	return tagres.New(fakeDictionary{
		"PatientName":    {Group: 0x0010, Element: 0x0010},
		"RepetitionTime": {Group: 0x0018, Element: 0x0080},
	})
}

func scalar(group, elem uint16, vr dataset.VR) dataset.Element {
	return dataset.NewScalar(dataset.Tag{Group: group, Element: elem}, vr, nil)
}

func TestBuild(t *testing.T) {
	set, err := criteria.Build(resolver(), criteria.Input{
		VRs:           []string{"cs", "UI", "CS"},
		Groups:        []string{"0x0009", "07a1"},
		Tags:          []string{"PatientName", "0x00180080", "(0008,0018)"},
		RemovePrivate: true,
	})
	require.NoError(t, err)

	assert.Equal(t, []dataset.VR{dataset.VRCS, dataset.VRUI}, set.VRs(), "vrs should be normalized and deduplicated")
	assert.Equal(t, []uint16{0x0009, 0x07a1}, set.Groups())
	assert.Equal(t, []dataset.Tag{
		{Group: 0x0008, Element: 0x0018},
		{Group: 0x0010, Element: 0x0010},
		{Group: 0x0018, Element: 0x0080},
	}, set.Tags())
	assert.True(t, set.RemovePrivate())
	assert.False(t, set.IsEmpty())
	assert.Equal(t, "vr=CS,UI group=0x0009,0x07a1 tag=(0008,0018),(0010,0010),(0018,0080) private", set.String())
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name  string
		input criteria.Input
		check func(t *testing.T, err error)
	}{
		{
			name:  "invalid_vr",
			input: criteria.Input{VRs: []string{"CS", "QQ"}},
			check: func(t *testing.T, err error) {
				var target *criteria.InvalidVRError
				require.True(t, errors.As(err, &target))
				assert.Equal(t, "QQ", target.VR)
			},
		},
		{
			name:  "invalid_group",
			input: criteria.Input{Groups: []string{"0x1FFFF"}},
			check: func(t *testing.T, err error) {
				var target *tagres.InvalidGroupError
				require.True(t, errors.As(err, &target))
			},
		},
		{
			name:  "unknown_keyword",
			input: criteria.Input{Tags: []string{"PatientNmae"}},
			check: func(t *testing.T, err error) {
				var target *tagres.UnresolvedTagError
				require.True(t, errors.As(err, &target))
				assert.Equal(t, "PatientNmae", target.Identifier)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set, err := criteria.Build(resolver(), tt.input)
			require.Error(t, err)
			assert.Nil(t, set)
			tt.check(t, err)
		})
	}
}

func TestBuildEmpty(t *testing.T) {
	set, err := criteria.Build(nil, criteria.Input{})
	require.NoError(t, err)
	assert.True(t, set.IsEmpty())
	assert.Equal(t, "none", set.String())
	assert.False(t, set.Matches(scalar(0x0009, 0x0010, dataset.VRLO)))
	assert.True(t, criteria.Empty().IsEmpty())
}

func TestMatches(t *testing.T) {
	set, err := criteria.Build(resolver(), criteria.Input{
		VRs:    []string{"CS"},
		Groups: []string{"0x07a1"},
		Tags:   []string{"PatientName"},
	})
	require.NoError(t, err)

	tests := []struct {
		name string
		elem dataset.Element
		want criteria.Reason
	}{
		{name: "by_vr", elem: scalar(0x300a, 0x00b6, dataset.VRCS), want: criteria.ReasonVR},
		{name: "by_group", elem: scalar(0x07a1, 0x0010, dataset.VRLO), want: criteria.ReasonGroup},
		{name: "by_tag", elem: scalar(0x0010, 0x0010, dataset.VRPN), want: criteria.ReasonTag},
		{name: "odd_group_without_private_flag", elem: scalar(0x0009, 0x0010, dataset.VRLO), want: criteria.ReasonNone},
		{name: "no_match", elem: scalar(0x0008, 0x0018, dataset.VRUI), want: criteria.ReasonNone},
		{name: "nonstandard_vr", elem: scalar(0x0008, 0x0020, dataset.VR("xs")), want: criteria.ReasonNone},
		{name: "sequence_by_group", elem: dataset.NewSequence(dataset.Tag{Group: 0x07a1, Element: 0x1000}), want: criteria.ReasonGroup},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, set.Reason(tt.elem))
			assert.Equal(t, tt.want != criteria.ReasonNone, set.Matches(tt.elem))
		})
	}
}

func TestMatchesPrivate(t *testing.T) {
	set, err := criteria.Build(nil, criteria.Input{RemovePrivate: true})
	require.NoError(t, err)

	assert.False(t, set.Matches(scalar(0x0008, 0x0018, dataset.VRUI)), "even group should be kept")
	assert.True(t, set.Matches(scalar(0x0009, 0x0010, dataset.VRLO)), "odd group should be removed")
	assert.True(t, set.Matches(scalar(0x0009, 0x1001, dataset.VRUN)), "odd group should be removed regardless of vr")
	assert.Equal(t, criteria.ReasonPrivate, set.Reason(scalar(0x0029, 0x0010, dataset.VRLO)))
}

func TestReasonString(t *testing.T) {
	assert.Equal(t, "vr", criteria.ReasonVR.String())
	assert.Equal(t, "group", criteria.ReasonGroup.String())
	assert.Equal(t, "tag", criteria.ReasonTag.String())
	assert.Equal(t, "private", criteria.ReasonPrivate.String())
	assert.Equal(t, "none", criteria.ReasonNone.String())
}
