package schema

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDelay debounces bursts of file events (editors often write a file
// several times in quick succession).
var reloadDelay = 300 * time.Millisecond

// Catalog holds the schemas defined by the files in one directory, keyed by
// schema id.
type Catalog struct {
	dir string

	mu      sync.RWMutex
	schemas map[string]*Schema
	files   map[string]string // schema id -> file it was loaded from
}

// NewCatalog loads every .csv, .yaml and .yml definition in dir.
func NewCatalog(dir string) (*Catalog, error) {
	c := &Catalog{dir: dir}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// Dir returns the catalog directory.
func (c *Catalog) Dir() string { return c.dir }

// Reload re-reads the directory. On error the previously loaded schemas are
// kept.
func (c *Catalog) Reload() error {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return fmt.Errorf("reading schema directory %s: %w", c.dir, err)
	}

	schemas := make(map[string]*Schema)
	files := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(c.dir, entry.Name())
		if _, _, err := KindFromPath(path); err != nil {
			continue
		}

		s, err := LoadFile(path, "")
		if err != nil {
			return err
		}
		if prev, dup := files[s.ID()]; dup {
			return fmt.Errorf("schema :%s is defined in both %s and %s", s.ID(), prev, path)
		}
		schemas[s.ID()] = s
		files[s.ID()] = path
	}

	c.mu.Lock()
	c.schemas = schemas
	c.files = files
	c.mu.Unlock()
	return nil
}

// Get returns a schema by id.
func (c *Catalog) Get(id string) (*Schema, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s, ok := c.schemas[id]
	return s, ok
}

// All returns every schema, sorted by id.
func (c *Catalog) All() []*Schema {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]*Schema, 0, len(c.schemas))
	for _, s := range c.schemas {
		result = append(result, s)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID() < result[j].ID()
	})
	return result
}

// Len returns the number of schemas.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.schemas)
}

// Watch reloads the catalog whenever a definition file in the directory
// changes, until ctx is cancelled. Reload failures are logged and the
// previous schemas stay in effect.
func (c *Catalog) Watch(ctx context.Context, logger *slog.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("schema watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(c.dir); err != nil {
		return fmt.Errorf("schema watcher: watch %s: %w", c.dir, err)
	}
	logger.Info("watching schema directory", "dir", c.dir)

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if _, _, err := KindFromPath(event.Name); err != nil {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			name := event.Name
			timer = time.AfterFunc(reloadDelay, func() {
				if err := c.Reload(); err != nil {
					logger.Error("schema reload failed", "file", name, "error", err)
					return
				}
				logger.Info("schemas reloaded", "file", name, "count", c.Len())
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("schema watcher error", "error", err)
		}
	}
}
