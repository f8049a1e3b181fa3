package material

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/gogpu/framegraph/internal/config"
	"github.com/gogpu/framegraph/internal/logging"
)

// DefaultDebounce is how long the watcher waits after the last write
// before reparsing.
const DefaultDebounce = 200 * time.Millisecond

// Watcher reparses a material configuration file when it changes and
// hands valid configs to the render goroutine over Configs. Invalid
// files are logged and skipped; the previous config stays in effect.
type Watcher struct {
	path     string
	format   config.Format
	debounce time.Duration
	watcher  *fsnotify.Watcher
	configs  chan *Config
	done     chan struct{}
}

// Watch starts watching path until ctx is canceled. The parent directory
// is watched so editors that replace the file by rename are followed.
func Watch(ctx context.Context, path string, debounce time.Duration) (*Watcher, error) {
	format, err := config.FormatOf(path)
	if err != nil {
		return nil, fmt.Errorf("material: watch: %w", err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("material: watch: %w", err)
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("material: watch %s: %w", path, err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	w := &Watcher{
		path:     filepath.Clean(path),
		format:   format,
		debounce: debounce,
		watcher:  fw,
		configs:  make(chan *Config, 1),
		done:     make(chan struct{}),
	}
	go w.run(ctx)
	logging.L().Info("material: watching config", "path", path)
	return w, nil
}

// Configs delivers reparsed configurations. Only the newest pending one
// is kept.
func (w *Watcher) Configs() <-chan *Config { return w.configs }

// Done is closed once the watcher stopped.
func (w *Watcher) Done() <-chan struct{} { return w.done }

func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)
	defer w.watcher.Close()

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.L().Warn("material: watcher error", "path", w.path, "err", err)

		case <-fire:
			fire = nil
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	data, err := os.ReadFile(w.path)
	if err != nil {
		logging.L().Warn("material: reload", "path", w.path, "err", err)
		return
	}
	c, err := ParseConfig(data, w.format)
	if err != nil {
		logging.L().Warn("material: dropped invalid config", "path", w.path, "err", err)
		return
	}
	// Replace an unconsumed config with the newer one.
	select {
	case <-w.configs:
	default:
	}
	w.configs <- c
	logging.L().Debug("material: config reloaded", "path", w.path, "materials", len(c.Materials))
}
