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

package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/pterm/pterm"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/walteh/dcmrmel/pkg/batch"
	"github.com/walteh/dcmrmel/pkg/codec"
	"github.com/walteh/dcmrmel/pkg/commit"
	"github.com/walteh/dcmrmel/pkg/config"
	"github.com/walteh/dcmrmel/pkg/criteria"
	"github.com/walteh/dcmrmel/pkg/dictionary"
	"github.com/walteh/dcmrmel/pkg/discover"
	"github.com/walteh/dcmrmel/pkg/log"
	"github.com/walteh/dcmrmel/pkg/tagres"
	"gitlab.com/tozd/go/errors"
)

// errFilesFailed is returned after the summary when at least one file failed. Each failure
// has already been reported on its own line.
var errFilesFailed = errors.Base("one or more files failed")

// rootFlags holds the raw command line values
type rootFlags struct {
	configFile   string
	envFile      string
	debug        bool
	rmVR         []string
	rmGroup      []string
	rmTag        []string
	rmPrivate    bool
	noBackup     bool
	backupSuffix string
	backupDir    string
	jobs         int
	include      []string
	exclude      []string
}

// run executes the command line and returns the process exit code
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)

	if err := cmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errFilesFailed) {
			fmt.Fprintf(stderr, "❌ %s\n", color.New(color.FgRed).Sprint(err.Error()))
		}
		return 1
	}
	return 0
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:   "dcmrmel [flags] FILE|DIR",
		Short: "Remove elements from DICOM files",
		Long: `dcmrmel removes elements from a DICOM file, or from every DICOM file under a
directory, and rewrites each file in place.

Elements are selected by value representation, group number, tag or private group. An
element that matches is removed together with everything nested inside it. Originals are
copied to <file>.bak first unless --no-backup is given.`,
		Example: `  dcmrmel scans/ --rm-private
  dcmrmel scan.dcm --rm-tag PatientName --rm-tag "(0010,0020)"
  dcmrmel scans/ --rm-vr PN,DA --rm-group 0x0009 --backup-dir /tmp/originals
  dcmrmel scans/ -c profile.yaml -j 8`,
		Args:          cobra.MaximumNArgs(1),
		Version:       GetVersionInfo().Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			return execute(cmd.Context(), cmd, flags, args[0], stdout, stderr)
		},
	}

	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetVersionTemplate(FormatVersion())

	f := cmd.Flags()
	f.StringArrayVar(&flags.rmVR, "rm-vr", nil, "value representations to remove (e.g. PN,DA or repeat the flag)")
	f.StringArrayVar(&flags.rmGroup, "rm-group", nil, "groups to remove: hex (0x0009, 0009) or decimal with 0d (0d9)")
	f.StringArrayVar(&flags.rmTag, "rm-tag", nil, "tags to remove: keyword (PatientName), (gggg,eeee), gggg,eeee or 0xggggeeee")
	f.BoolVar(&flags.rmPrivate, "rm-private", false, "remove all elements in odd (private) groups")
	f.BoolVar(&flags.noBackup, "no-backup", false, "don't back up files before removing elements (DANGEROUS)")
	f.StringVar(&flags.backupSuffix, "backup-suffix", commit.DefaultBackupSuffix, "suffix appended to backup file names")
	f.StringVar(&flags.backupDir, "backup-dir", "", "write backups to this directory instead of next to each file")
	f.IntVarP(&flags.jobs, "jobs", "j", 0, "files processed concurrently (default number of CPUs)")
	f.StringArrayVar(&flags.include, "include", nil, "only process files matching these glob patterns (relative to DIR)")
	f.StringArrayVar(&flags.exclude, "exclude", nil, "skip files matching these glob patterns (relative to DIR)")
	f.StringVarP(&flags.configFile, "config", "c", "", "removal profile (.yaml, .yml, .hcl or .json)")
	f.StringVar(&flags.envFile, "env-file", "", "dotenv file with DCMRMEL_* settings")
	f.BoolVarP(&flags.debug, "debug", "d", false, "enable debug logging")

	return cmd
}

// layer returns the settings given explicitly on the command line
func (f *rootFlags) layer(cmd *cobra.Command) *config.Config {
	changed := cmd.Flags().Changed
	split := func(values []string, splitter func(string) []string) []string {
		out := []string{}
		for _, v := range values {
			out = append(out, splitter(v)...)
		}
		return out
	}

	cfg := &config.Config{}
	if changed("rm-vr") {
		cfg.RemoveVRs = split(f.rmVR, config.SplitList)
	}
	if changed("rm-group") {
		cfg.RemoveGroups = split(f.rmGroup, config.SplitList)
	}
	if changed("rm-tag") {
		cfg.RemoveTags = split(f.rmTag, config.SplitTags)
	}
	if changed("rm-private") {
		cfg.RemovePrivate = config.Bool(f.rmPrivate)
	}
	if changed("no-backup") {
		cfg.NoBackup = config.Bool(f.noBackup)
	}
	if changed("backup-suffix") {
		cfg.BackupSuffix = f.backupSuffix
	}
	if changed("backup-dir") {
		cfg.BackupDir = f.backupDir
	}
	if changed("jobs") {
		cfg.Jobs = f.jobs
	}
	if changed("include") {
		cfg.Include = split(f.include, config.SplitList)
	}
	if changed("exclude") {
		cfg.Exclude = split(f.exclude, config.SplitList)
	}
	return cfg
}

func loadConfig(ctx context.Context, cmd *cobra.Command, flags *rootFlags) (*config.Config, error) {
	var profile *config.Config
	if flags.configFile != "" {
		var err error
		profile, err = config.Load(ctx, flags.configFile)
		if err != nil {
			return nil, errors.Errorf("loading profile: %w", err)
		}
	}

	env, err := config.LoadEnv(flags.envFile)
	if err != nil {
		return nil, errors.Errorf("loading environment: %w", err)
	}

	cfg := config.Merge(profile, env, flags.layer(cmd))
	if err := cfg.Validate(); err != nil {
		return nil, errors.Errorf("validating settings: %w", err)
	}

	zerolog.Ctx(ctx).Debug().Stringer("config", cfg).Msg("settings resolved")
	return cfg, nil
}

func execute(ctx context.Context, cmd *cobra.Command, flags *rootFlags, root string, stdout, stderr io.Writer) error {
	level := zerolog.WarnLevel
	if flags.debug {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: stderr}).Level(level).With().Timestamp().Logger()
	ctx = logger.WithContext(ctx)
	ui := log.New(stdout, stderr, level)
	ctx = log.NewContext(ctx, ui)

	cfg, err := loadConfig(ctx, cmd, flags)
	if err != nil {
		return err
	}

	// criteria are resolved before any file is looked at
	set, err := buildCriteria(ctx, cfg)
	if err != nil {
		return err
	}

	suffix := cfg.BackupSuffix
	if suffix == "" {
		suffix = commit.DefaultBackupSuffix
	}
	exclude := append([]string{}, discover.DefaultExclude...)
	if suffix != commit.DefaultBackupSuffix {
		exclude = append(exclude, "**/*"+suffix)
	}
	exclude = append(exclude, cfg.Exclude...)

	paths, err := discover.Find(ctx, root, discover.Options{Include: cfg.Include, Exclude: exclude})
	if err != nil {
		return errors.Errorf("finding DICOM files: %w", err)
	}

	coordinator, err := commit.New(commit.Options{
		Codec:        codec.New(),
		Matcher:      set,
		Backup:       cfg.Backup(),
		BackupSuffix: cfg.BackupSuffix,
		BackupDir:    cfg.BackupDir,
	})
	if err != nil {
		return errors.Errorf("creating coordinator: %w", err)
	}

	ui.Header(fmt.Sprintf("removing elements from %d files", len(paths)))
	if set.IsEmpty() {
		ui.Warning("no removal criteria given, files will be left untouched")
	} else {
		ui.Infof("removing %s", set)
	}
	if !cfg.Backup() {
		ui.Warning("backups disabled")
	}

	progress, stop := newProgress(stderr, len(paths))
	summary := batch.NewRunner(coordinator,
		batch.WithConcurrency(cfg.Jobs),
		batch.WithProgress(progress),
	).Run(ctx, paths)
	stop()

	for _, r := range summary.Results {
		ui.LogFileOperation(ctx, fileOperation(r))
	}
	ui.LogTotals(ctx, log.Totals{
		Processed: summary.Processed,
		Modified:  summary.Modified,
		Skipped:   summary.Skipped,
		Failed:    summary.Failed,
		Removed:   summary.Removed,
		Backups:   summary.Backups,
	})

	if summary.Failed > 0 {
		return errors.WithStack(errFilesFailed)
	}
	return nil
}

func buildCriteria(ctx context.Context, cfg *config.Config) (*criteria.Set, error) {
	dict, err := dictionary.NewStandard(0)
	if err != nil {
		return nil, errors.Errorf("creating dictionary: %w", err)
	}

	set, err := criteria.Build(tagres.New(dict), cfg.CriteriaInput())
	if err != nil {
		return nil, errors.Errorf("building criteria: %w", err)
	}

	logger := zerolog.Ctx(ctx)
	for _, t := range set.Tags() {
		logger.Debug().Stringer("tag", t).Str("name", dict.Describe(t)).Msg("removing tag")
	}
	return set, nil
}

func fileOperation(r batch.FileResult) log.FileOperation {
	op := log.FileOperation{Path: r.Path, Err: r.Err}
	if r.Result != nil {
		op.Removed = r.Result.Removed
		op.BackupPath = r.Result.BackupPath
		op.Skipped = r.Result.Skipped
		op.SkipReason = r.Result.SkipReason
	}
	return op
}

// newProgress starts a progress bar when w is a terminal
func newProgress(w io.Writer, total int) (batch.ProgressFunc, func()) {
	noop := func(int, int, batch.FileResult) {}
	f, ok := w.(*os.File)
	if !ok || total == 0 || !isatty.IsTerminal(f.Fd()) {
		return noop, func() {}
	}

	bar, err := pterm.DefaultProgressbar.
		WithTotal(total).
		WithTitle("removing elements").
		WithWriter(w).
		WithRemoveWhenDone(true).
		Start()
	if err != nil {
		return noop, func() {}
	}

	return func(int, int, batch.FileResult) {
			bar.Increment()
		}, func() {
			_, _ = bar.Stop()
		}
}
