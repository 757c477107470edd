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

// Package config loads removal profiles.
//
// 🎯 Purpose:
// - Lets a repeated removal job live in a file instead of a long command line
// - Reads the same settings from DCMRMEL_* environment variables or a dotenv file
// - Layers the sources so explicit flags always win
//
// 🔄 Flow:
// 1. Load parses a profile (.yaml, .yml, .hcl or .json) through the registered parsers
// 2. LoadEnv reads DCMRMEL_* values from the process and an optional dotenv file
// 3. Merge layers profile < env < flags
// 4. Validate normalizes lists and rejects impossible values
//
// 🔍 Example profile (YAML):
//
//	rm_vr: [PN, DA]
//	rm_group: ["0x0009"]
//	rm_tag:
//	  - PatientName
//	  - (0010,0020)
//	rm_private: true
//	backup_dir: /var/backups/dicom
//	jobs: 4
//	exclude:
//	  - "**/scratch/**"
//
// The same profile in HCL:
//
//	rm_vr      = ["PN", "DA"]
//	rm_tag     = ["PatientName", "(0010,0020)"]
//	rm_private = true
//	jobs       = 4
//
// 📝 List values given as a single string (env vars, flags) are split on commas by SplitList.
// Tag lists go through SplitTags instead, which ignores commas inside parentheses, so
// "(0008,0018),PatientName" yields two entries, and rejoins two bare four digit hex tokens in a
// row, so "0008,0018" stays one tag. Groups never get rejoined: "0009,0011" is two groups.
package config
