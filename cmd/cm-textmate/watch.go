package main

import (
	"context"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
	textmate "github.com/vportella/cm-textmate"
	"github.com/vportella/cm-textmate/logger"
	"go.uber.org/zap"
)

// watchDebounce coalesces the burst of events editors emit per save.
const watchDebounce = 200 * time.Millisecond

// watchGrammars re-registers a grammar and re-renders whenever one of the
// watched files changes.  Watcher failures are retried with backoff; the
// function returns when ctx is cancelled or the watcher cannot be
// re-established.
func watchGrammars(ctx context.Context, reg *textmate.Registry, paths map[string]string, render func() error) error {
	ctx = logger.With(ctx, zap.String("component", "grammar-watcher"))
	log := logger.L(ctx)
	bo := backoff{min: 100 * time.Millisecond, max: 10 * time.Second}
	for {
		start := time.Now()
		err := watchOnce(ctx, reg, paths, render)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// A watcher that survived a while earns a fresh backoff.
		if time.Since(start) > bo.max {
			bo.reset()
		}
		delay := bo.next()
		log.Warn("grammar watcher failed, restarting",
			zap.Error(err), zap.Duration("in", delay))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

func watchOnce(ctx context.Context, reg *textmate.Registry, paths map[string]string, render func() error) error {
	log := logger.L(ctx)
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	for path := range paths {
		if err := w.Add(path); err != nil {
			return err
		}
	}
	log.Info("watching grammar files", zap.Int("count", len(paths)))

	timer := time.NewTimer(watchDebounce)
	timer.Stop()
	dirty := make(map[string]bool)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if _, watched := paths[ev.Name]; !watched {
				continue
			}
			dirty[ev.Name] = true
			timer.Reset(watchDebounce)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			return err

		case <-timer.C:
			for path := range dirty {
				raw, err := os.ReadFile(path)
				if err != nil {
					log.Warn("reload grammar", zap.String("path", path), zap.Error(err))
					continue
				}
				scope := paths[path]
				reg.AddGrammar(scope, raw)
				log.Info("grammar reloaded", zap.String("scope", scope))
			}
			clear(dirty)
			reg.InvalidateEngine()
			if err := render(); err != nil {
				log.Warn("re-render", zap.Error(err))
			}
		}
	}
}
