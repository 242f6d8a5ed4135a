package importer

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/lapsight/lapsight/internal/storage"
)

// settleDelay gives loggers time to finish writing a lap file before the
// importer reads it. Each new write event restarts the countdown.
const settleDelay = 250 * time.Millisecond

// Watch imports lap CSV files as they appear in dir until ctx ends. Files
// that fail to import are logged and left in place; each path is imported
// at most once per watch session.
func Watch(ctx context.Context, store storage.TraceStore, dir string, opts Options) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	ready := make(chan string, 16)
	timers := make(map[string]*time.Timer)
	imported := make(map[string]bool)

	log.Printf("watching %s for lap files", dir)
	for {
		select {
		case <-ctx.Done():
			for _, timer := range timers {
				timer.Stop()
			}
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) {
				continue
			}
			if !strings.EqualFold(filepath.Ext(event.Name), ".csv") {
				continue
			}
			name := event.Name
			if timer, exists := timers[name]; exists {
				timer.Reset(settleDelay)
				continue
			}
			timers[name] = time.AfterFunc(settleDelay, func() {
				select {
				case ready <- name:
				case <-ctx.Done():
				}
			})
		case name := <-ready:
			delete(timers, name)
			if imported[name] {
				continue
			}
			lap, err := ImportFile(ctx, store, name, opts)
			if err != nil {
				log.Printf("import %s: %v", name, err)
				continue
			}
			imported[name] = true
			log.Printf("imported lap %s from %s (%d samples)", lap.ID, filepath.Base(name), lap.SampleCount)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("watch error: %v", err)
		}
	}
}
