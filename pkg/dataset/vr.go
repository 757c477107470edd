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

import "strings"

// 🧬 VR is a DICOM value representation code
type VR string

const (
	VRAE VR = "AE"
	VRAS VR = "AS"
	VRAT VR = "AT"
	VRCS VR = "CS"
	VRDA VR = "DA"
	VRDS VR = "DS"
	VRDT VR = "DT"
	VRFD VR = "FD"
	VRFL VR = "FL"
	VRIS VR = "IS"
	VRLO VR = "LO"
	VRLT VR = "LT"
	VROB VR = "OB"
	VROD VR = "OD"
	VROF VR = "OF"
	VROL VR = "OL"
	VROV VR = "OV"
	VROW VR = "OW"
	VRPN VR = "PN"
	VRSH VR = "SH"
	VRSL VR = "SL"
	VRSQ VR = "SQ"
	VRSS VR = "SS"
	VRST VR = "ST"
	VRSV VR = "SV"
	VRTM VR = "TM"
	VRUC VR = "UC"
	VRUI VR = "UI"
	VRUL VR = "UL"
	VRUN VR = "UN"
	VRUR VR = "UR"
	VRUS VR = "US"
	VRUT VR = "UT"
	VRUV VR = "UV"
)

var knownVRs = map[VR]struct{}{
	VRAE: {}, VRAS: {}, VRAT: {}, VRCS: {}, VRDA: {}, VRDS: {}, VRDT: {}, VRFD: {},
	VRFL: {}, VRIS: {}, VRLO: {}, VRLT: {}, VROB: {}, VROD: {}, VROF: {}, VROL: {},
	VROV: {}, VROW: {}, VRPN: {}, VRSH: {}, VRSL: {}, VRSQ: {}, VRSS: {}, VRST: {},
	VRSV: {}, VRTM: {}, VRUC: {}, VRUI: {}, VRUL: {}, VRUN: {}, VRUR: {}, VRUS: {},
	VRUT: {}, VRUV: {},
}

// Valid reports whether the VR is one of the standard codes
func (v VR) Valid() bool {
	_, ok := knownVRs[v]
	return ok
}

func (v VR) String() string {
	return string(v)
}

// 🔍 ParseVR normalizes s and checks it against the standard codes
func ParseVR(s string) (VR, bool) {
	v := VR(strings.ToUpper(strings.TrimSpace(s)))
	return v, v.Valid()
}
