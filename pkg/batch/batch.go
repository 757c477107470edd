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

// Package batch runs a processor over many files. A failure on one file never stops the
// others; every outcome is collected into a Summary.
package batch

import (
	"context"
	"runtime"
	"sync"

	"github.com/rs/zerolog"
	"github.com/walteh/dcmrmel/pkg/commit"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/errgroup"
)

// 🏃 Processor handles a single file
type Processor interface {
	Process(ctx context.Context, path string) (*commit.Result, error)
}

// 📄 FileResult is the outcome for one path. Exactly one of Result and Err is set.
type FileResult struct {
	Path   string
	Result *commit.Result
	Err    error
}

// 📊 Summary aggregates a run
type Summary struct {
	// Results are in input order
	Results []FileResult

	Processed int
	Modified  int
	Skipped   int
	Failed    int
	Removed   int
	Backups   int
}

// Failures returns the failed results in input order
func (s *Summary) Failures() []FileResult {
	var out []FileResult
	for _, r := range s.Results {
		if r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}

// Err joins every per-file error, nil if all files succeeded
func (s *Summary) Err() error {
	var errs []error
	for _, r := range s.Failures() {
		errs = append(errs, r.Err)
	}
	return errors.Join(errs...)
}

func (s *Summary) add(r FileResult) {
	s.Processed++
	if r.Err != nil {
		s.Failed++
		return
	}
	switch {
	case r.Result.Skipped:
		s.Skipped++
	case r.Result.Modified():
		s.Modified++
	}
	s.Removed += r.Result.Removed
	if r.Result.Backup {
		s.Backups++
	}
}

// ProgressFunc is called once per finished file, serialized
type ProgressFunc func(done, total int, r FileResult)

// 🔧 Option configures a Runner
type Option func(*Runner)

// WithConcurrency bounds the number of files processed at once. Values below 1 are ignored.
func WithConcurrency(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithProgress registers a progress callback
func WithProgress(fn ProgressFunc) Option {
	return func(r *Runner) {
		r.progress = fn
	}
}

// 🎬 Runner fans files out to a Processor
type Runner struct {
	proc        Processor
	concurrency int
	progress    ProgressFunc
}

// 🏭 NewRunner creates a runner. Concurrency defaults to the number of CPUs.
func NewRunner(p Processor, opts ...Option) *Runner {
	r := &Runner{
		proc:        p,
		concurrency: runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// 🏃 Run processes every path. Paths not yet started when ctx is cancelled are recorded
// as failed with the context error.
func (r *Runner) Run(ctx context.Context, paths []string) *Summary {
	logger := zerolog.Ctx(ctx)
	results := make([]FileResult, len(paths))

	var (
		mu   sync.Mutex
		done int
	)
	report := func(i int, fr FileResult) {
		results[i] = fr
		mu.Lock()
		defer mu.Unlock()
		done++
		if r.progress != nil {
			r.progress(done, len(paths), fr)
		}
	}

	var g errgroup.Group
	g.SetLimit(r.concurrency)

	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			report(i, FileResult{Path: path, Err: errors.Errorf("processing %s: %w", path, err)})
			continue
		}
		g.Go(func() error {
			res, err := r.proc.Process(ctx, path)
			if err != nil {
				logger.Debug().Err(err).Str("file", path).Msg("file failed")
				report(i, FileResult{Path: path, Err: err})
				return nil
			}
			if res == nil {
				res = &commit.Result{Path: path}
			}
			report(i, FileResult{Path: path, Result: res})
			return nil
		})
	}
	_ = g.Wait()

	s := &Summary{Results: results}
	for _, fr := range results {
		s.add(fr)
	}

	logger.Debug().
		Int("processed", s.Processed).
		Int("modified", s.Modified).
		Int("skipped", s.Skipped).
		Int("failed", s.Failed).
		Int("removed", s.Removed).
		Msg("batch complete")

	return s
}
