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
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/walteh/dcmrmel/pkg/criteria"
	"gitlab.com/tozd/go/errors"
)

// 🔌 Parser is the interface for config parsers
type Parser interface {
	// 📝 Parse parses the config from bytes
	Parse(ctx context.Context, data []byte) (*Config, error)

	// 🔍 CanParse checks if this parser can handle the given file
	CanParse(filename string) bool
}

var (
	// 🗺️ parsers is a list of available parsers
	parsers []Parser
)

// 📝 Register registers a parser
func Register(p Parser) {
	parsers = append(parsers, p)
}

// 🎯 GetParser returns a parser that can handle the given file
func GetParser(filename string) Parser {
	for _, p := range parsers {
		if p.CanParse(filename) {
			return p
		}
	}
	return nil
}

// 📚 Config is one layer of settings. Zero values mean "not set" so layers can be merged.
type Config struct {
	RemoveVRs     []string `json:"rm_vr,omitempty" yaml:"rm_vr,omitempty" hcl:"rm_vr,optional"`
	RemoveGroups  []string `json:"rm_group,omitempty" yaml:"rm_group,omitempty" hcl:"rm_group,optional"`
	RemoveTags    []string `json:"rm_tag,omitempty" yaml:"rm_tag,omitempty" hcl:"rm_tag,optional"`
	RemovePrivate *bool    `json:"rm_private,omitempty" yaml:"rm_private,omitempty" hcl:"rm_private,optional"`
	NoBackup      *bool    `json:"no_backup,omitempty" yaml:"no_backup,omitempty" hcl:"no_backup,optional"`
	BackupSuffix  string   `json:"backup_suffix,omitempty" yaml:"backup_suffix,omitempty" hcl:"backup_suffix,optional"`
	BackupDir     string   `json:"backup_dir,omitempty" yaml:"backup_dir,omitempty" hcl:"backup_dir,optional"`
	Jobs          int      `json:"jobs,omitempty" yaml:"jobs,omitempty" hcl:"jobs,optional"`
	Include       []string `json:"include,omitempty" yaml:"include,omitempty" hcl:"include,optional"`
	Exclude       []string `json:"exclude,omitempty" yaml:"exclude,omitempty" hcl:"exclude,optional"`
}

// 🎯 Load loads the configuration from a file
func Load(ctx context.Context, path string) (*Config, error) {
	logger := zerolog.Ctx(ctx)
	logger.Debug().Str("path", path).Msg("loading configuration")

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Errorf("reading config file: %w", err)
	}

	p := GetParser(path)
	if p == nil {
		return nil, errors.Errorf("no parser found for file: %s", path)
	}

	cfg, err := p.Parse(ctx, data)
	if err != nil {
		return nil, errors.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// 🔍 Validate normalizes list entries and rejects impossible values
func (cfg *Config) Validate() error {
	if cfg.Jobs < 0 {
		return errors.Errorf("jobs must not be negative, got %d", cfg.Jobs)
	}
	if strings.ContainsAny(cfg.BackupSuffix, `/\`) {
		return errors.Errorf("backup_suffix %q must not contain a path separator", cfg.BackupSuffix)
	}

	cfg.RemoveVRs = normalize(cfg.RemoveVRs)
	cfg.RemoveGroups = normalize(cfg.RemoveGroups)
	cfg.RemoveTags = normalize(cfg.RemoveTags)
	cfg.Include = normalize(cfg.Include)
	cfg.Exclude = normalize(cfg.Exclude)

	if cfg.BackupDir != "" {
		cfg.BackupDir = filepath.Clean(cfg.BackupDir)
	}

	return nil
}

func normalize(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// 🔀 Merge layers configs in order; a set field in a later layer wins
func Merge(layers ...*Config) *Config {
	out := &Config{}
	for _, l := range layers {
		if l == nil {
			continue
		}
		if l.RemoveVRs != nil {
			out.RemoveVRs = l.RemoveVRs
		}
		if l.RemoveGroups != nil {
			out.RemoveGroups = l.RemoveGroups
		}
		if l.RemoveTags != nil {
			out.RemoveTags = l.RemoveTags
		}
		if l.RemovePrivate != nil {
			out.RemovePrivate = l.RemovePrivate
		}
		if l.NoBackup != nil {
			out.NoBackup = l.NoBackup
		}
		if l.BackupSuffix != "" {
			out.BackupSuffix = l.BackupSuffix
		}
		if l.BackupDir != "" {
			out.BackupDir = l.BackupDir
		}
		if l.Jobs != 0 {
			out.Jobs = l.Jobs
		}
		if l.Include != nil {
			out.Include = l.Include
		}
		if l.Exclude != nil {
			out.Exclude = l.Exclude
		}
	}
	return out
}

// Backup reports whether originals are copied before rewriting. Defaults to true.
func (cfg *Config) Backup() bool {
	return cfg.NoBackup == nil || !*cfg.NoBackup
}

// Private reports whether private groups are removed
func (cfg *Config) Private() bool {
	return cfg.RemovePrivate != nil && *cfg.RemovePrivate
}

// 🎯 CriteriaInput returns the raw removal criteria
func (cfg *Config) CriteriaInput() criteria.Input {
	return criteria.Input{
		VRs:           cfg.RemoveVRs,
		Groups:        cfg.RemoveGroups,
		Tags:          cfg.RemoveTags,
		RemovePrivate: cfg.Private(),
	}
}

// 📝 String returns a string representation of the config
func (cfg *Config) String() string {
	return fmt.Sprintf("vr=%v group=%v tag=%v private=%t backup=%t jobs=%d",
		cfg.RemoveVRs, cfg.RemoveGroups, cfg.RemoveTags, cfg.Private(), cfg.Backup(), cfg.Jobs)
}

// Bool returns a pointer to b, for building layers in code
func Bool(b bool) *bool {
	return &b
}

// ✂️ SplitList splits a comma separated list of VRs, groups or globs
func SplitList(s string) []string {
	return splitList(s, false)
}

// ✂️ SplitTags splits a comma separated list of tags, keeping "(gggg,eeee)" and "gggg,eeee" whole
func SplitTags(s string) []string {
	return splitList(s, true)
}

func splitList(s string, tags bool) []string {
	var (
		parts []string
		depth int
		start int
	)
	for i, r := range s {
		switch r {
		case '(':
			if tags {
				depth++
			}
		case ')':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, s[start:])

	out := make([]string, 0, len(parts))
	for i := 0; i < len(parts); i++ {
		p := strings.TrimSpace(parts[i])
		if tags && i+1 < len(parts) && isHex4(p) && isHex4(strings.TrimSpace(parts[i+1])) {
			p = p + "," + strings.TrimSpace(parts[i+1])
			i++
		}
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func isHex4(s string) bool {
	if len(s) != 4 {
		return false
	}
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
