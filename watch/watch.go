// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package watch turns filesystem changes to a shader template into
// reload events. It watches the template's directory rather than the
// file itself so editors that save by rename-and-replace keep working.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/gogpu/codeskew/shader"
)

// DefaultDebounce is how long a burst of change events has to settle
// before the template is re-read.
const DefaultDebounce = 100 * time.Millisecond

// Watcher observes one shader template on disk and reports its fresh
// contents after each burst of changes.
type Watcher struct {
	path     string
	debounce time.Duration
	fw       *fsnotify.Watcher
}

// New starts watching the template at path.
func New(path string) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	return &Watcher{path: abs, debounce: DefaultDebounce, fw: fw}, nil
}

// SetDebounce overrides the settle interval. Non-positive restores the
// default. Call before Run.
func (w *Watcher) SetDebounce(d time.Duration) {
	if d <= 0 {
		d = DefaultDebounce
	}
	w.debounce = d
}

// Run blocks, invoking reload with the re-read template after each
// settled burst of changes. It returns when the context ends or the
// watcher is closed.
func (w *Watcher) Run(ctx context.Context, reload func(shader.SourceUnit)) error {
	var timer *time.Timer
	var settle <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-w.fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				settle = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}

		case err, ok := <-w.fw.Errors:
			if !ok {
				return nil
			}
			slogger().Warn("watch error", "path", w.path, "err", err)

		case <-settle:
			timer = nil
			settle = nil
			unit, err := w.read()
			if err != nil {
				// The file may be mid-replace; the next event retries.
				slogger().Warn("template unreadable after change", "path", w.path, "err", err)
				continue
			}
			reload(unit)
		}
	}
}

// Close stops the watcher. A concurrent Run returns.
func (w *Watcher) Close() error {
	return w.fw.Close()
}

func (w *Watcher) read() (shader.SourceUnit, error) {
	b, err := os.ReadFile(w.path)
	if err != nil {
		return shader.SourceUnit{}, err
	}
	return shader.SourceUnit{Path: filepath.Base(w.path), Text: string(b)}, nil
}
