package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/function61/gokit/logex"
	"github.com/function61/lovebeat/pkg/lbstate"
)

const labelsFileDebounce = 250 * time.Millisecond

func importLabelsFile(ctx context.Context, app *lbstate.App, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if _, err := app.ImportLabels(ctx, file); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	return nil
}

// calls reload (debounced) whenever the file at path is written or replaced. we watch
// the directory, because editors and config management save by renaming over the file.
func watchLabelsFile(ctx context.Context, path string, reload func() error, logger *log.Logger) error {
	logl := logex.Levels(logger)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsnotify: %w", err)
	}
	defer watcher.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	target := filepath.Base(abs)

	var debounce <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if filepath.Base(ev.Name) != target {
				continue
			}

			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				debounce = time.After(labelsFileDebounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			logl.Error.Printf("fsnotify: %v", err)
		case <-debounce:
			debounce = nil

			if err := reload(); err != nil {
				logl.Error.Printf("reload %s: %v", path, err)
			} else {
				logl.Info.Printf("reloaded %s", path)
			}
		}
	}
}
