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

package commit_test

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gradienthealth/dicom"
	"github.com/gradienthealth/dicom/dicomtag"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/dcmrmel/pkg/codec"
	"github.com/walteh/dcmrmel/pkg/commit"
	"github.com/walteh/dcmrmel/pkg/criteria"
	"github.com/walteh/dcmrmel/pkg/dataset"
	"gitlab.com/tozd/go/errors"
)

// lineCodec stores one "gggg,eeee VR" element per line. A first line of DICOMDIR marks
// a media storage directory.
type lineCodec struct {
	failEncode bool
}

func (c *lineCodec) Decode(r io.Reader, size int64) (*codec.File, error) {
	f := &codec.File{Dataset: dataset.New()}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if line == "DICOMDIR" {
			f.Meta = codec.NewFileMeta([]*dicom.Element{{
				Tag:   dicomtag.MediaStorageSOPClassUID,
				VR:    "UI",
				Value: []interface{}{codec.MediaStorageDirectoryStorage},
			}})
			continue
		}
		var g, e uint16
		var vr string
		if _, err := fmt.Sscanf(line, "%04x,%04x %s", &g, &e, &vr); err != nil {
			return nil, errors.Errorf("bad line %q: %w", line, err)
		}
		f.Dataset.Set(dataset.NewScalar(dataset.Tag{Group: g, Element: e}, dataset.VR(vr), nil))
	}
	return f, sc.Err()
}

func (c *lineCodec) Encode(w io.Writer, f *codec.File) error {
	for _, e := range f.Dataset.Elements() {
		if _, err := fmt.Fprintf(w, "%04x,%04x %s\n", e.Tag().Group, e.Tag().Element, e.VR()); err != nil {
			return err
		}
		if c.failEncode {
			return errors.New("disk full")
		}
	}
	return nil
}

const original = "0008,0018 UI\n0009,0010 LO\n0010,0010 PN\n"

func setup(t *testing.T, content string) (context.Context, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "test_1.dcm")
	require.NoError(t, os.WriteFile(path, []byte(content), 0640))

	logger := zerolog.New(zerolog.NewTestWriter(t)).Level(zerolog.TraceLevel)
	return logger.WithContext(context.Background()), path
}

func privateSet(t *testing.T) *criteria.Set {
	t.Helper()
	set, err := criteria.Build(nil, criteria.Input{RemovePrivate: true})
	require.NoError(t, err)
	return set
}

func newCoordinator(t *testing.T, opts commit.Options) *commit.Coordinator {
	t.Helper()
	if opts.Codec == nil {
		opts.Codec = &lineCodec{}
	}
	if opts.Matcher == nil {
		opts.Matcher = privateSet(t)
	}
	c, err := commit.New(opts)
	require.NoError(t, err)
	return c
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestProcessWithBackup(t *testing.T) {
	ctx, path := setup(t, original)
	c := newCoordinator(t, commit.Options{Backup: true})

	res, err := c.Process(ctx, path)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Removed)
	assert.True(t, res.Backup)
	assert.True(t, res.Modified())
	assert.Equal(t, path+".bak", res.BackupPath)
	assert.Equal(t, original, readFile(t, res.BackupPath), "backup should hold the original bytes")
	assert.Equal(t, "0008,0018 UI\n0010,0010 PN\n", readFile(t, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0640), info.Mode().Perm(), "file mode should be preserved")
	assert.ElementsMatch(t, []string{"test_1.dcm", "test_1.dcm.bak"}, dirEntries(t, filepath.Dir(path)))
}

func TestProcessWithoutBackup(t *testing.T) {
	ctx, path := setup(t, original)
	c := newCoordinator(t, commit.Options{})

	res, err := c.Process(ctx, path)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Removed)
	assert.False(t, res.Backup)
	assert.Empty(t, res.BackupPath)
	assert.Equal(t, []string{"test_1.dcm"}, dirEntries(t, filepath.Dir(path)))
}

func TestProcessBackupDir(t *testing.T) {
	ctx, path := setup(t, original)
	backupDir := filepath.Join(t.TempDir(), "backups")
	c := newCoordinator(t, commit.Options{Backup: true, BackupDir: backupDir, BackupSuffix: ".orig"})

	res, err := c.Process(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(backupDir, "test_1.dcm.orig"), res.BackupPath)
	assert.Equal(t, original, readFile(t, res.BackupPath))
}

func TestProcessNoMatchesLeavesFileUntouched(t *testing.T) {
	content := "0008,0018 UI\n0010,0010 PN\n"
	ctx, path := setup(t, content)
	before, err := os.Stat(path)
	require.NoError(t, err)

	c := newCoordinator(t, commit.Options{Matcher: criteria.Empty(), Backup: true})
	res, err := c.Process(ctx, path)
	require.NoError(t, err)

	assert.Equal(t, 0, res.Removed)
	assert.False(t, res.Modified())
	assert.False(t, res.Backup)
	assert.Empty(t, res.BackupPath)
	assert.Equal(t, content, readFile(t, path))
	assert.Equal(t, []string{"test_1.dcm"}, dirEntries(t, filepath.Dir(path)), "nothing removed, no backup")

	after, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, before.ModTime(), after.ModTime(), "file should not be rewritten")
}

func TestProcessSkipsDirectory(t *testing.T) {
	content := "DICOMDIR\n0009,0010 LO\n"
	ctx, path := setup(t, content)
	c := newCoordinator(t, commit.Options{Backup: true})

	res, err := c.Process(ctx, path)
	require.NoError(t, err)

	assert.True(t, res.Skipped)
	assert.Equal(t, "media storage directory", res.SkipReason)
	assert.Equal(t, content, readFile(t, path))
	assert.Equal(t, []string{"test_1.dcm"}, dirEntries(t, filepath.Dir(path)), "no backup for skipped files")
}

func TestProcessErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		opts    func(t *testing.T, dir string) commit.Options
		check   func(t *testing.T, err error)
	}{
		{
			name:    "decode_error",
			content: "garbage\n",
			opts:    func(t *testing.T, dir string) commit.Options { return commit.Options{Backup: true} },
			check: func(t *testing.T, err error) {
				var target *codec.DecodeError
				assert.True(t, errors.As(err, &target))
			},
		},
		{
			name:    "backup_error",
			content: original,
			opts: func(t *testing.T, dir string) commit.Options {
				blocker := filepath.Join(dir, "blocker")
				require.NoError(t, os.WriteFile(blocker, nil, 0644))
				return commit.Options{Backup: true, BackupDir: filepath.Join(blocker, "nested")}
			},
			check: func(t *testing.T, err error) {
				var target *commit.BackupError
				assert.True(t, errors.As(err, &target))
			},
		},
		{
			name:    "write_error",
			content: original,
			opts: func(t *testing.T, dir string) commit.Options {
				return commit.Options{Codec: &lineCodec{failEncode: true}}
			},
			check: func(t *testing.T, err error) {
				var target *commit.WriteError
				require.True(t, errors.As(err, &target))
				assert.ErrorContains(t, err, "disk full")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, path := setup(t, tt.content)
			dir := filepath.Dir(path)
			c := newCoordinator(t, tt.opts(t, dir))

			res, err := c.Process(ctx, path)
			require.Error(t, err)
			assert.Nil(t, res)
			tt.check(t, err)

			assert.Equal(t, tt.content, readFile(t, path), "original should be untouched")
			for _, name := range dirEntries(t, dir) {
				assert.False(t, strings.HasSuffix(name, ".tmp"), "temp file %s should be cleaned up", name)
			}
		})
	}
}

func TestProcessCancelled(t *testing.T) {
	ctx, path := setup(t, original)
	ctx, cancel := context.WithCancel(ctx)
	cancel()

	c := newCoordinator(t, commit.Options{Backup: true})
	_, err := c.Process(ctx, path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, original, readFile(t, path))
}

func TestProcessSampleFile(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("..", "codec", "testdata", "xa_multiframe_header.dcm"))
	require.NoError(t, err)
	ctx, path := setup(t, string(data))

	set, err := criteria.Build(nil, criteria.Input{VRs: []string{"PN"}, RemovePrivate: true})
	require.NoError(t, err)
	c := newCoordinator(t, commit.Options{Codec: codec.New(), Matcher: set, Backup: true})

	res, err := c.Process(ctx, path)
	require.NoError(t, err)
	assert.Greater(t, res.Removed, 0)
	assert.True(t, res.Modified())
	assert.Equal(t, string(data), readFile(t, res.BackupPath))

	pruned := readFile(t, path)
	res, err = c.Process(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Removed, "a second run should find nothing left to remove")
	assert.Equal(t, pruned, readFile(t, path))
	assert.Equal(t, string(data), readFile(t, path+".bak"), "backup should still hold the original")
}

func TestNewValidation(t *testing.T) {
	_, err := commit.New(commit.Options{Matcher: criteria.Empty()})
	assert.ErrorContains(t, err, "codec is required")

	_, err = commit.New(commit.Options{Codec: &lineCodec{}})
	assert.ErrorContains(t, err, "matcher is required")
}
