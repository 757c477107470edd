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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv(t *testing.T) {
	tests := []struct {
		name        string
		vars        map[string]string
		errContains string
		check       func(t *testing.T, cfg *Config)
	}{
		{
			name: "all_keys",
			vars: map[string]string{
				"DCMRMEL_RM_VR":         "PN,DA",
				"DCMRMEL_RM_GROUP":      "0x0009,07a1",
				"DCMRMEL_RM_TAG":        "(0010,0010),PatientID",
				"DCMRMEL_RM_PRIVATE":    "true",
				"DCMRMEL_NO_BACKUP":     "1",
				"DCMRMEL_BACKUP_SUFFIX": ".orig",
				"DCMRMEL_BACKUP_DIR":    "/tmp/bk",
				"DCMRMEL_JOBS":          "3",
				"DCMRMEL_INCLUDE":       "**/*.dcm",
				"DCMRMEL_EXCLUDE":       "**/*.bak,tmp/**",
				"HOME":                  "/root",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, []string{"PN", "DA"}, cfg.RemoveVRs)
				assert.Equal(t, []string{"0x0009", "07a1"}, cfg.RemoveGroups)
				assert.Equal(t, []string{"(0010,0010)", "PatientID"}, cfg.RemoveTags)
				assert.True(t, cfg.Private())
				assert.False(t, cfg.Backup())
				assert.Equal(t, ".orig", cfg.BackupSuffix)
				assert.Equal(t, "/tmp/bk", cfg.BackupDir)
				assert.Equal(t, 3, cfg.Jobs)
				assert.Equal(t, []string{"**/*.dcm"}, cfg.Include)
				assert.Equal(t, []string{"**/*.bak", "tmp/**"}, cfg.Exclude)
			},
		},
		{
			name: "blank_values_are_unset",
			vars: map[string]string{"DCMRMEL_RM_VR": "  ", "DCMRMEL_RM_PRIVATE": ""},
			check: func(t *testing.T, cfg *Config) {
				assert.Nil(t, cfg.RemoveVRs)
				assert.Nil(t, cfg.RemovePrivate)
			},
		},
		{
			name:        "bad_bool",
			vars:        map[string]string{"DCMRMEL_RM_PRIVATE": "maybe"},
			errContains: "parsing DCMRMEL_RM_PRIVATE",
		},
		{
			name:        "bad_jobs",
			vars:        map[string]string{"DCMRMEL_JOBS": "four"},
			errContains: "parsing DCMRMEL_JOBS",
		},
		{
			name:        "unknown_key",
			vars:        map[string]string{"DCMRMEL_DRY_RUN": "true"},
			errContains: "unknown environment variable DCMRMEL_DRY_RUN",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := FromEnv(tt.vars)
			if tt.errContains != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := `# removal defaults
DCMRMEL_RM_TAG="PatientName,(0010,0020)"
DCMRMEL_JOBS=2
OTHER_SETTING=ignored
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	t.Setenv("DCMRMEL_JOBS", "6")

	cfg, err := LoadEnv(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"PatientName", "(0010,0020)"}, cfg.RemoveTags)
	assert.Equal(t, 6, cfg.Jobs, "process environment should win over the file")
}

func TestLoadEnvMissingFile(t *testing.T) {
	_, err := LoadEnv(filepath.Join(t.TempDir(), "missing.env"))
	assert.ErrorContains(t, err, "reading env file")
}
