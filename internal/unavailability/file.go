package unavailability

import (
	"context"
	"fmt"
	"os"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"
)

// fileContents is the on-disk layout:
//
//	dates:
//	  - 2024-08-15
//	  - 2024-12-25
type fileContents struct {
	Dates []string `yaml:"dates"`
}

// FileFeed reads closed dates from a YAML file and reloads it when its
// modification time changes.
type FileFeed struct {
	path  string
	group singleflight.Group

	mu      sync.RWMutex
	dates   []string
	modTime time.Time
	loaded  bool
}

// NewFileFeed returns a feed over path. The file is read lazily.
func NewFileFeed(path string) *FileFeed {
	return &FileFeed{path: path}
}

// ListAll returns the dates listed in the file.
func (f *FileFeed) ListAll(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := os.Stat(f.path)
	if err != nil {
		return nil, fmt.Errorf("stat closed dates file: %w", err)
	}

	f.mu.RLock()
	current := f.loaded && info.ModTime().Equal(f.modTime)
	dates := f.dates
	f.mu.RUnlock()
	if current {
		return slices.Clone(dates), nil
	}

	v, err, _ := f.group.Do(f.path, func() (any, error) {
		return f.reload()
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(v.([]string)), nil
}

func (f *FileFeed) reload() ([]string, error) {
	info, err := os.Stat(f.path)
	if err != nil {
		return nil, fmt.Errorf("stat closed dates file: %w", err)
	}
	raw, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("read closed dates file: %w", err)
	}

	var contents fileContents
	if err := yaml.Unmarshal(raw, &contents); err != nil {
		return nil, fmt.Errorf("parse closed dates file %s: %w", f.path, err)
	}
	for _, d := range contents.Dates {
		if _, err := time.Parse("2006-01-02", d); err != nil {
			return nil, fmt.Errorf("parse closed dates file %s: invalid date %q", f.path, d)
		}
	}
	if contents.Dates == nil {
		contents.Dates = []string{}
	}

	f.mu.Lock()
	f.dates = contents.Dates
	f.modTime = info.ModTime()
	f.loaded = true
	f.mu.Unlock()
	return contents.Dates, nil
}
