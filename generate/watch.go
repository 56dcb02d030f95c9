package generate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"tplgen/state"
	"tplgen/utils/watcher"
)

// watch regenerates changed templates until context is canceled. Only
// directories and plain template files could be watched.
func watch(ctx context.Context, src, dst string, log *zap.Logger) error {
	env := state.EnvFromContext(ctx)

	fi, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("unable to watch source: %w", err)
	}
	isDir := fi.IsDir()
	if !isDir {
		if isArchive, _ := isArchiveFile(src); isArchive {
			return errors.New("archives cannot be watched")
		}
	}

	cfg := watcher.DefaultConfig(src)
	cfg.Log = log.Named("watcher")
	if isDir {
		exts := env.Cfg.Generator.Extensions
		cfg.Match = func(name string) bool {
			return hasTemplateExt(name, exts)
		}
	} else {
		cfg.Match = func(name string) bool {
			return filepath.Clean(name) == src
		}
	}

	w, err := watcher.New(cfg)
	if err != nil {
		return err
	}
	defer w.Stop()

	changes, err := w.Start()
	if err != nil {
		return err
	}

	log.Info("Watching for changes", zap.String("source", src))
	for {
		select {
		case <-ctx.Done():
			log.Info("Watching stopped")
			return nil
		case names := <-changes:
			for _, name := range names {
				if ctx.Err() != nil {
					break
				}
				// failures are logged by processFile
				_ = regenerate(ctx, src, name, dst, isDir, log)
			}
		}
	}
}

func regenerate(ctx context.Context, root, name, dst string, isDir bool, log *zap.Logger) error {
	fi, err := os.Stat(name)
	if err != nil || !fi.Mode().IsRegular() {
		log.Debug("Skipping vanished file", zap.String("file", name))
		return nil
	}

	header, err := readFileHeader(name)
	if err != nil {
		log.Warn("Skipping file", zap.String("file", name), zap.Error(err))
		return err
	}
	ok, enc := classifyTemplate(header)
	if !ok {
		log.Debug("Skipping file, not recognized as template", zap.String("file", name))
		return nil
	}

	src := filepath.Base(name)
	if isDir {
		if src, err = filepath.Rel(root, name); err != nil {
			return err
		}
	}
	return processFile(ctx, name, src, dst, enc, log)
}
