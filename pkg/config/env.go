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
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gitlab.com/tozd/go/errors"
)

// EnvPrefix marks the environment variables read by LoadEnv
const EnvPrefix = "DCMRMEL_"

// 🌱 LoadEnv reads DCMRMEL_* settings from the process environment and, if path is set,
// a dotenv file. Process variables win over the file, as with godotenv.Load.
func LoadEnv(path string) (*Config, error) {
	vars := map[string]string{}

	if path != "" {
		fileVars, err := godotenv.Read(path)
		if err != nil {
			return nil, errors.Errorf("reading env file: %w", err)
		}
		for k, v := range fileVars {
			if strings.HasPrefix(k, EnvPrefix) {
				vars[k] = v
			}
		}
	}

	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if ok && strings.HasPrefix(k, EnvPrefix) {
			vars[k] = v
		}
	}

	cfg, err := FromEnv(vars)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Errorf("validating env config: %w", err)
	}
	return cfg, nil
}

// FromEnv builds a layer from DCMRMEL_* variables. Unknown DCMRMEL_* keys are an error.
func FromEnv(vars map[string]string) (*Config, error) {
	cfg := &Config{}
	for k, v := range vars {
		if !strings.HasPrefix(k, EnvPrefix) {
			continue
		}
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}

		switch strings.TrimPrefix(k, EnvPrefix) {
		case "RM_VR":
			cfg.RemoveVRs = SplitList(v)
		case "RM_GROUP":
			cfg.RemoveGroups = SplitList(v)
		case "RM_TAG":
			cfg.RemoveTags = SplitTags(v)
		case "RM_PRIVATE":
			b, err := strconv.ParseBool(v)
			if err != nil {
				return nil, errors.Errorf("parsing %s: %w", k, err)
			}
			cfg.RemovePrivate = &b
		case "NO_BACKUP":
			b, err := strconv.ParseBool(v)
			if err != nil {
				return nil, errors.Errorf("parsing %s: %w", k, err)
			}
			cfg.NoBackup = &b
		case "BACKUP_SUFFIX":
			cfg.BackupSuffix = v
		case "BACKUP_DIR":
			cfg.BackupDir = v
		case "JOBS":
			n, err := strconv.Atoi(v)
			if err != nil {
				return nil, errors.Errorf("parsing %s: %w", k, err)
			}
			cfg.Jobs = n
		case "INCLUDE":
			cfg.Include = SplitList(v)
		case "EXCLUDE":
			cfg.Exclude = SplitList(v)
		default:
			return nil, errors.Errorf("unknown environment variable %s", k)
		}
	}
	return cfg, nil
}
