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

// Package discover finds DICOM files under a path.
package discover

import (
	"bytes"
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

const (
	preambleLen = 128
	magic       = "DICM"
)

// DefaultExclude skips backups written by a previous run
var DefaultExclude = []string{"**/*.bak"}

var (
	// ErrNotFileOrDir is returned when the root is neither a regular file nor a directory
	ErrNotFileOrDir = errors.Base("not a file or directory")
	// ErrNoDICOMFiles is returned when nothing under the root sniffs as DICOM
	ErrNoDICOMFiles = errors.Base("no valid DICOM files found")
)

// 🔧 Options filters the walk
type Options struct {
	// Include patterns (doublestar, relative to the root). Empty means everything.
	Include []string
	// Exclude patterns (doublestar, relative to the root)
	Exclude []string
}

// 🔍 IsDICOM reports whether the file has the DICM magic after the 128 byte preamble
func IsDICOM(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, errors.Errorf("opening file: %w", err)
	}
	defer f.Close()

	header := make([]byte, preambleLen+len(magic))
	if _, err := io.ReadFull(f, header); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return false, nil
		}
		return false, errors.Errorf("reading header: %w", err)
	}

	return bytes.Equal(header[preambleLen:], []byte(magic)), nil
}

// 📂 Find returns the DICOM files at root, sorted. A file root is returned as is if it
// sniffs as DICOM; a directory root is walked recursively.
func Find(ctx context.Context, root string, opts Options) ([]string, error) {
	logger := zerolog.Ctx(ctx)

	info, err := os.Stat(root)
	if err != nil {
		return nil, errors.Errorf("%s: %w", root, ErrNotFileOrDir)
	}

	var paths []string
	switch {
	case info.Mode().IsRegular():
		ok, err := IsDICOM(root)
		if err != nil {
			return nil, errors.Errorf("sniffing %s: %w", root, err)
		}
		if ok {
			paths = append(paths, root)
		}
	case info.IsDir():
		paths, err = walk(ctx, root, opts)
		if err != nil {
			return nil, err
		}
	default:
		return nil, errors.Errorf("%s: %w", root, ErrNotFileOrDir)
	}

	if len(paths) == 0 {
		return nil, errors.WithStack(ErrNoDICOMFiles)
	}

	logger.Debug().Str("root", root).Int("files", len(paths)).Msg("discovered dicom files")
	return paths, nil
}

func walk(ctx context.Context, root string, opts Options) ([]string, error) {
	logger := zerolog.Ctx(ctx)

	for _, p := range append(slices.Clone(opts.Include), opts.Exclude...) {
		if !doublestar.ValidatePattern(p) {
			return nil, errors.Errorf("invalid pattern %q", p)
		}
	}

	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.Debug().Err(err).Str("path", path).Msg("skipping unreadable entry")
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return errors.Errorf("relativizing %s: %w", path, err)
		}
		rel = filepath.ToSlash(rel)

		if !selected(rel, opts) {
			return nil
		}

		ok, err := IsDICOM(path)
		if err != nil {
			logger.Debug().Err(err).Str("path", path).Msg("skipping unreadable file")
			return nil
		}
		if ok {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Errorf("walking %s: %w", root, err)
	}

	slices.Sort(paths)
	return paths, nil
}

func selected(rel string, opts Options) bool {
	for _, p := range opts.Exclude {
		if doublestar.MatchUnvalidated(p, rel) {
			return false
		}
	}
	if len(opts.Include) == 0 {
		return true
	}
	for _, p := range opts.Include {
		if doublestar.MatchUnvalidated(p, rel) {
			return true
		}
	}
	return false
}
