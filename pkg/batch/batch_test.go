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

package batch

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/walteh/dcmrmel/pkg/commit"
	"gitlab.com/tozd/go/errors"
)

// 🔧 MockProcessor is a mock implementation of Processor
type MockProcessor struct {
	mock.Mock
}

func (m *MockProcessor) Process(ctx context.Context, path string) (*commit.Result, error) {
	args := m.Called(ctx, path)
	res, _ := args.Get(0).(*commit.Result)
	return res, args.Error(1)
}

func testContext(t *testing.T) context.Context {
	logger := zerolog.New(zerolog.NewTestWriter(t))
	return logger.WithContext(context.Background())
}

func TestRun(t *testing.T) {
	proc := &MockProcessor{}
	proc.On("Process", mock.Anything, "a.dcm").Return(&commit.Result{Path: "a.dcm", Removed: 3, Backup: true, BackupPath: "a.dcm.bak"}, nil)
	proc.On("Process", mock.Anything, "b.dcm").Return(nil, errors.New("corrupt"))
	proc.On("Process", mock.Anything, "c.dcm").Return(&commit.Result{Path: "c.dcm"}, nil)
	proc.On("Process", mock.Anything, "d.dcm").Return(&commit.Result{Path: "d.dcm", Skipped: true, SkipReason: "media storage directory"}, nil)
	proc.On("Process", mock.Anything, "e.dcm").Return(&commit.Result{Path: "e.dcm", Removed: 1}, nil)

	paths := []string{"a.dcm", "b.dcm", "c.dcm", "d.dcm", "e.dcm"}

	var calls []int
	s := NewRunner(proc, WithConcurrency(2), WithProgress(func(done, total int, r FileResult) {
		assert.Equal(t, len(paths), total)
		calls = append(calls, done)
	})).Run(testContext(t), paths)

	proc.AssertExpectations(t)

	require.Len(t, s.Results, len(paths))
	for i, p := range paths {
		assert.Equal(t, p, s.Results[i].Path, "results should keep input order")
	}

	assert.Equal(t, 5, s.Processed)
	assert.Equal(t, 2, s.Modified)
	assert.Equal(t, 1, s.Skipped)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 4, s.Removed)
	assert.Equal(t, 1, s.Backups)

	assert.ElementsMatch(t, []int{1, 2, 3, 4, 5}, calls)

	failures := s.Failures()
	require.Len(t, failures, 1)
	assert.Equal(t, "b.dcm", failures[0].Path)
	assert.ErrorContains(t, s.Err(), "corrupt")
}

func TestRunAllSucceed(t *testing.T) {
	proc := &MockProcessor{}
	proc.On("Process", mock.Anything, mock.Anything).Return(&commit.Result{}, nil)

	s := NewRunner(proc).Run(testContext(t), []string{"a", "b", "c"})
	assert.Equal(t, 3, s.Processed)
	assert.Equal(t, 0, s.Failed)
	assert.NoError(t, s.Err())
	assert.Empty(t, s.Failures())
}

func TestRunEmpty(t *testing.T) {
	proc := &MockProcessor{}
	s := NewRunner(proc).Run(testContext(t), nil)
	assert.Equal(t, 0, s.Processed)
	assert.NoError(t, s.Err())
	proc.AssertNotCalled(t, "Process", mock.Anything, mock.Anything)
}

// limitProcessor records the peak number of concurrent calls
type limitProcessor struct {
	active atomic.Int32
	peak   atomic.Int32
}

func (p *limitProcessor) Process(ctx context.Context, path string) (*commit.Result, error) {
	n := p.active.Add(1)
	defer p.active.Add(-1)
	for {
		old := p.peak.Load()
		if n <= old || p.peak.CompareAndSwap(old, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	return &commit.Result{Path: path}, nil
}

func TestRunConcurrencyLimit(t *testing.T) {
	proc := &limitProcessor{}
	paths := make([]string, 20)
	for i := range paths {
		paths[i] = "file"
	}

	s := NewRunner(proc, WithConcurrency(3)).Run(testContext(t), paths)
	assert.Equal(t, 20, s.Processed)
	assert.LessOrEqual(t, proc.peak.Load(), int32(3))
	assert.GreaterOrEqual(t, proc.peak.Load(), int32(1))
}

// cancelProcessor cancels the run after the first file
type cancelProcessor struct {
	once   sync.Once
	cancel context.CancelFunc
}

func (p *cancelProcessor) Process(ctx context.Context, path string) (*commit.Result, error) {
	p.once.Do(p.cancel)
	return &commit.Result{Path: path}, nil
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(testContext(t))
	defer cancel()

	proc := &cancelProcessor{cancel: cancel}
	s := NewRunner(proc, WithConcurrency(1)).Run(ctx, []string{"a", "b", "c"})

	require.Len(t, s.Results, 3)
	assert.NoError(t, s.Results[0].Err)
	assert.Equal(t, 3, s.Processed)
	assert.GreaterOrEqual(t, s.Failed, 1, "files not started after cancellation should fail")
	assert.True(t, errors.Is(s.Err(), context.Canceled))
}

func TestWithConcurrencyIgnoresInvalid(t *testing.T) {
	r := NewRunner(&MockProcessor{}, WithConcurrency(0))
	assert.Positive(t, r.concurrency)

	r = NewRunner(&MockProcessor{}, WithConcurrency(4))
	assert.Equal(t, 4, r.concurrency)
}
