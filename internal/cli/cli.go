/*
** Copyright (C) 2025 The MultiDelphi Authors
**
** This file is part of the MultiDelphi language project.
**
**
** GNU Lesser General Public License Usage
** This file may be used under the terms of the GNU Lesser
** General Public License version 2.1 or version 3 as published by the Free
** Software Foundation and appearing in the file LICENSE.LGPLv21 and
** LICENSE.LGPLv3 included in the packaging of this file. Please review the
** following information to ensure the GNU Lesser General Public License
** requirements will be met: https://www.gnu.org/licenses/lgpl.html and
** http://www.gnu.org/licenses/old-licenses/lgpl-2.1.html.
 */

// Package cli holds what the command line tools under Tests share: flags,
// configuration, source file discovery, styled output and watch mode.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	de "github.com/chuacw/multidelphi/Delphi"
)

// ErrFailed is returned by a command when at least one file failed; the
// files already reported why
var ErrFailed = errors.New("one or more files failed")

// Options are the flags every tool accepts
type Options struct {
	ConfigFile string
	Verbosity  string
	Watch      bool
}

func (o *Options) Register(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&o.ConfigFile, "config", "", "configuration file (.toml, .yaml)")
	cmd.PersistentFlags().StringVarP(&o.Verbosity, "verbosity", "v", "", "log level: debug, info, warn, error")
	cmd.PersistentFlags().BoolVarP(&o.Watch, "watch", "w", false, "run again whenever a source file changes")
}

// Config loads the configuration file, if any, and installs a logger on
// stderr which tags every record with the id of this run
func (o *Options) Config() (*de.Config, error) {
	cfg := de.DefaultConfig()
	if o.ConfigFile != "" {
		var err error
		if cfg, err = de.LoadConfig(o.ConfigFile); err != nil {
			return nil, err
		}
	}
	if o.Verbosity != "" {
		cfg.Verbosity = o.Verbosity
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	cfg.NewLogger(os.Stderr)
	cfg.Logger = cfg.Logger.With(slog.String("session", uuid.New().String()))
	return cfg, nil
}

// Sources expands args into source files. A directory contributes the
// files with one of the configured extensions; missing paths are skipped.
func Sources(cfg *de.Config, args []string) []string {
	log := cfg.Log("cli")
	var files []string
	for _, a := range args {
		info, err := os.Stat(a)
		if err != nil {
			log.Warn("skipped", slog.String("path", a), slog.String("err", err.Error()))
			continue
		}
		if !info.IsDir() {
			files = append(files, a)
			continue
		}
		entries, err := os.ReadDir(a)
		if err != nil {
			log.Warn("scan", slog.String("dir", a), slog.String("err", err.Error()))
			continue
		}
		for _, e := range entries {
			if !e.IsDir() && cfg.IsSourceFile(e.Name()) {
				files = append(files, filepath.Join(a, e.Name()))
			}
		}
	}
	return files
}

var (
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")).Bold(true)
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)
	headerStyle = lipgloss.NewStyle().Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
)

func OK(s string) string     { return okStyle.Render(s) }
func Failed(s string) string { return failStyle.Render(s) }
func Header(s string) string { return headerStyle.Render(s) }
func Muted(s string) string  { return mutedStyle.Render(s) }

// Summary is the closing line of a run
func Summary(success, failed int) string {
	line := fmt.Sprintf("Summary: %d succeeded, %d failed", success, failed)
	if failed > 0 {
		return Failed(line)
	}
	return OK(line)
}

// PrintErrors lists at most max errors, numbered
func PrintErrors(w io.Writer, errs []*de.BindError, max int) {
	for i, e := range errs {
		if i == max {
			fmt.Fprintln(w, Muted(fmt.Sprintf("    ... %d more", len(errs)-max)))
			return
		}
		fmt.Fprintf(w, "    %2d) %v\n", i+1, e)
	}
}

// Watch calls run, then calls it again after any of files was written,
// until ctx is done. The directories are watched since editors often
// replace a file instead of writing it.
func Watch(ctx context.Context, log *slog.Logger, files []string, run func()) error {
	run()
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	targets := make(map[string]bool)
	dirs := make(map[string]bool)
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return err
		}
		dir := filepath.Dir(abs)
		if !dirs[dir] {
			if err := w.Add(dir); err != nil {
				return fmt.Errorf("watch %s: %w", dir, err)
			}
			dirs[dir] = true
		}
		targets[abs] = true
	}
	log.Info("watching", slog.Int("files", len(files)))

	// one save usually comes as a burst of events
	var settle <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 || !targets[ev.Name] {
				continue
			}
			log.Debug("changed", slog.String("file", ev.Name))
			settle = time.After(100 * time.Millisecond)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("watch", slog.String("err", err.Error()))
		case <-settle:
			settle = nil
			run()
		}
	}
}

// Main executes cmd until it returns or the process is interrupted and
// exits with status 1 on failure
func Main(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	err := cmd.ExecuteContext(ctx)
	stop()
	if err == nil {
		return
	}
	if !errors.Is(err, ErrFailed) {
		fmt.Fprintln(os.Stderr, Failed("Error:"), err)
	}
	os.Exit(1)
}
