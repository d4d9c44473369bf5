package commands

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/stencilbuild/stencil/internal/build"
	"github.com/stencilbuild/stencil/internal/config"
)

// debounceWindow batches filesystem events; editors commonly emit several
// writes per save.
const debounceWindow = 200 * time.Millisecond

// NewWatchCommand creates the watch command.
func NewWatchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Build, then rebuild templates as they change",
		Long: `Watch performs a full build, then watches the templates directory and
incrementally rebuilds a changed template together with every template
that references it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := ConfigFrom(cmd.Context())
			logger := LoggerFrom(cmd.Context())

			builder := build.New(cfg, logger)
			if _, err := builder.Run(cmd.Context()); err != nil {
				return err
			}

			watcher, err := fsnotify.NewWatcher()
			if err != nil {
				return err
			}
			defer func() { _ = watcher.Close() }()

			if err := watchRecursive(watcher, cfg.TemplatesDir); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Watching %s\n", cfg.TemplatesDir)
			return watchLoop(cmd.Context(), cfg, builder, watcher, logger)
		},
	}
}

func watchLoop(ctx context.Context, cfg *config.Config, builder *build.Builder, watcher *fsnotify.Watcher, logger *slog.Logger) error {
	var (
		timer   *time.Timer
		timerC  <-chan time.Time
		pending = make(map[string]bool)
	)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher error", "err", err)

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					_ = watchRecursive(watcher, ev.Name)
					continue
				}
			}
			if !cfg.IsTemplate(ev.Name) {
				continue
			}
			if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Remove) && !ev.Op.Has(fsnotify.Rename) {
				continue
			}

			pending[ev.Name] = true
			if timer == nil {
				timer = time.NewTimer(debounceWindow)
			} else {
				timer.Reset(debounceWindow)
			}
			timerC = timer.C

		case <-timerC:
			timerC = nil
			changed := pending
			pending = make(map[string]bool)
			rebuild(ctx, cfg, builder, changed, logger)
		}
	}
}

// rebuild processes a debounced batch: each changed template plus every
// template the reference graph says depends on it. Failures are logged,
// not fatal; the watch session survives broken intermediate states.
func rebuild(ctx context.Context, cfg *config.Config, builder *build.Builder, changed map[string]bool, logger *slog.Logger) {
	targets := make(map[string]bool)

	var names []string
	for path := range changed {
		rel, err := filepath.Rel(cfg.TemplatesDir, path)
		if err != nil {
			continue
		}
		name := filepath.ToSlash(rel)
		if _, err := os.Stat(path); err != nil {
			builder.Graph().Remove(name)
			continue
		}
		// New files are not in the graph yet; build them regardless.
		targets[name] = true
		names = append(names, name)
	}

	for _, name := range builder.Graph().Affected(names) {
		targets[name] = true
	}

	for name := range targets {
		path := filepath.Join(cfg.TemplatesDir, filepath.FromSlash(name))
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if _, err := builder.BuildFile(ctx, path); err != nil {
			logger.Warn("rebuild failed", "template", name, "err", err)
			continue
		}
		logger.Info("rebuilt", "template", name)
	}
}

// watchRecursive adds dir and every subdirectory to the watcher.
func watchRecursive(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
}
