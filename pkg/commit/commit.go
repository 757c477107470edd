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

/*
Package commit applies the removal rules to one file on disk.

	decode ──► directory? ──► prune ──► removed == 0? ──► backup ──► encode to temp ──► rename
	              │ yes                    │ yes
	              ▼                        ▼
	           skipped                untouched

A requested backup is a precondition for any write: if it cannot be made the file is left
alone. Files with nothing to remove get no backup. The original is only ever replaced by a rename of a fully written, synced temp file.
*/
package commit

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/walteh/dcmrmel/pkg/codec"
	"github.com/walteh/dcmrmel/pkg/criteria"
	"github.com/walteh/dcmrmel/pkg/dataset"
	"github.com/walteh/dcmrmel/pkg/prune"
	"gitlab.com/tozd/go/errors"
)

// DefaultBackupSuffix is appended to the original file name
const DefaultBackupSuffix = ".bak"

// 🧰 Codec reads and writes DICOM files
type Codec interface {
	Decode(r io.Reader, size int64) (*codec.File, error)
	Encode(w io.Writer, f *codec.File) error
}

// BackupError is returned when a requested backup could not be written
type BackupError struct {
	Path       string
	BackupPath string
	Err        error
}

func (e *BackupError) Error() string {
	return fmt.Sprintf("backing up %s to %s: %v", e.Path, e.BackupPath, e.Err)
}

func (e *BackupError) Unwrap() error {
	return e.Err
}

// WriteError is returned when the pruned file could not replace the original
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("writing %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// 🔧 Options configures a Coordinator
type Options struct {
	Codec   Codec
	Matcher prune.Matcher
	// Backup copies the original before anything is written
	Backup bool
	// BackupSuffix defaults to DefaultBackupSuffix
	BackupSuffix string
	// BackupDir places backups in one directory instead of next to each original
	BackupDir string
}

// 📊 Result describes what happened to one file
type Result struct {
	Path       string
	Removed    int
	Backup     bool
	BackupPath string
	Skipped    bool
	SkipReason string
}

// Modified reports whether the file on disk was rewritten
func (r *Result) Modified() bool {
	return r != nil && !r.Skipped && r.Removed > 0
}

// explainer is implemented by matchers that can say which rule matched
type explainer interface {
	Reason(e dataset.Element) criteria.Reason
}

// 🎬 Coordinator runs backup, prune and commit for single files
type Coordinator struct {
	opts Options
}

// 🏭 New creates a coordinator
func New(opts Options) (*Coordinator, error) {
	if opts.Codec == nil {
		return nil, errors.New("codec is required")
	}
	if opts.Matcher == nil {
		return nil, errors.New("matcher is required")
	}
	if opts.BackupSuffix == "" {
		opts.BackupSuffix = DefaultBackupSuffix
	}
	return &Coordinator{opts: opts}, nil
}

// BackupPath returns where the backup of path is written
func (c *Coordinator) BackupPath(path string) string {
	name := filepath.Base(path) + c.opts.BackupSuffix
	if c.opts.BackupDir != "" {
		return filepath.Join(c.opts.BackupDir, name)
	}
	return filepath.Join(filepath.Dir(path), name)
}

// 🏃 Process prunes the file at path in place
func (c *Coordinator) Process(ctx context.Context, path string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Errorf("processing %s: %w", path, err)
	}

	logger := zerolog.Ctx(ctx).With().Str("file", path).Logger()
	res := &Result{Path: path}

	f, info, err := c.decode(path)
	if err != nil {
		return nil, err
	}

	if f.Meta.IsDirectory() {
		res.Skipped = true
		res.SkipReason = "media storage directory"
		logger.Debug().Msg("skipping DICOMDIR")
		return res, nil
	}

	ex, _ := c.opts.Matcher.(explainer)
	pruned, removed := prune.Prune(f.Dataset, c.opts.Matcher, prune.WithObserver(func(p []dataset.Tag, e dataset.Element) {
		ev := logger.Trace().
			Stringer("tag", e.Tag()).
			Str("vr", string(e.VR())).
			Interface("path", p)
		if ex != nil {
			ev = ev.Stringer("reason", ex.Reason(e))
		}
		ev.Msg("removing element")
	}))
	res.Removed = removed

	if removed == 0 {
		logger.Debug().Msg("no matching elements, leaving file untouched")
		return res, nil
	}

	// the pruner works on a copy, so the file is still the original here
	if c.opts.Backup {
		res.BackupPath = c.BackupPath(path)
		if err := copyFile(path, res.BackupPath); err != nil {
			return nil, errors.WithStack(&BackupError{Path: path, BackupPath: res.BackupPath, Err: err})
		}
		res.Backup = true
		logger.Debug().Str("backup", res.BackupPath).Msg("backup written")
	}

	out := &codec.File{Meta: f.Meta, Dataset: pruned}
	err = writeFileAtomic(path, info.Mode().Perm(), func(w io.Writer) error {
		return c.opts.Codec.Encode(w, out)
	})
	if err != nil {
		return nil, errors.WithStack(&WriteError{Path: path, Err: err})
	}

	logger.Debug().Int("removed", removed).Msg("file rewritten")
	return res, nil
}

func (c *Coordinator) decode(path string) (*codec.File, os.FileInfo, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.WithStack(&codec.DecodeError{Err: err})
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, nil, errors.WithStack(&codec.DecodeError{Err: err})
	}

	f, err := c.opts.Codec.Decode(file, info.Size())
	if err != nil {
		var decodeErr *codec.DecodeError
		if errors.As(err, &decodeErr) {
			return nil, nil, err
		}
		return nil, nil, errors.WithStack(&codec.DecodeError{Err: err})
	}

	return f, info, nil
}
