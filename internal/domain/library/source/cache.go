package source

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"storyreel/internal/domain/library"

	"github.com/gosimple/slug"
	"github.com/sirupsen/logrus"
)

// Lister fetches one page of the story index
type Lister interface {
	ListStories(ctx context.Context, q library.Query) (*library.Index, error)
}

// IndexCache keeps fetched index pages on disk so listings work offline
type IndexCache struct {
	next     Lister
	cacheDir string
	maxAge   time.Duration
	now      func() time.Time
}

// cachedIndex is the on-disk form of one index page
type cachedIndex struct {
	Index       library.Index `json:"index"`
	Query       string        `json:"query"`
	LastUpdated time.Time     `json:"last_updated"`
}

// NewIndexCache wraps next with a file cache under cacheDir. Entries younger
// than maxAge are served without a request; older ones are only used when the
// request fails.
func NewIndexCache(next Lister, cacheDir string, maxAge time.Duration) *IndexCache {
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		logrus.WithError(err).Warn("Failed to create cache directory")
	}

	return &IndexCache{
		next:     next,
		cacheDir: cacheDir,
		maxAge:   maxAge,
		now:      time.Now,
	}
}

// ListStories returns the index page for q, from cache when fresh
func (c *IndexCache) ListStories(ctx context.Context, q library.Query) (*library.Index, error) {
	file := c.file(q)

	if cached, err := c.load(file); err == nil && c.now().Sub(cached.LastUpdated) < c.maxAge {
		logrus.WithField("file", file).Debug("Loading story index from cache")
		return &cached.Index, nil
	}

	index, err := c.next.ListStories(ctx, q)
	if err != nil {
		cached, cacheErr := c.load(file)
		if cacheErr != nil {
			return nil, err
		}
		logrus.WithError(err).WithFields(logrus.Fields{
			"file":         file,
			"last_updated": cached.LastUpdated.Format(time.RFC3339),
		}).Warn("Index fetch failed, using stale cache")
		return &cached.Index, nil
	}

	if err := c.save(file, q, index); err != nil {
		logrus.WithError(err).Warn("Failed to save index to cache")
	}
	return index, nil
}

// Clear removes every cached index page
func (c *IndexCache) Clear() error {
	matches, err := filepath.Glob(filepath.Join(c.cacheDir, "index_*.json"))
	if err != nil {
		return err
	}
	for _, m := range matches {
		if err := os.Remove(m); err != nil {
			return fmt.Errorf("failed to remove %s: %w", m, err)
		}
	}
	return nil
}

func (c *IndexCache) file(q library.Query) string {
	key := slug.Make(q.Values().Encode())
	if key == "" {
		key = "all"
	}
	return filepath.Join(c.cacheDir, "index_"+key+".json")
}

func (c *IndexCache) load(file string) (*cachedIndex, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache file: %w", err)
	}
	defer f.Close()

	var cached cachedIndex
	if err := json.NewDecoder(f).Decode(&cached); err != nil {
		return nil, fmt.Errorf("failed to decode cache file: %w", err)
	}
	return &cached, nil
}

func (c *IndexCache) save(file string, q library.Query, index *library.Index) error {
	cached := cachedIndex{
		Index:       *index,
		Query:       q.Values().Encode(),
		LastUpdated: c.now(),
	}

	f, err := os.Create(file)
	if err != nil {
		return fmt.Errorf("failed to create cache file: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(cached); err != nil {
		return fmt.Errorf("failed to encode cache data: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"stories": len(index.Stories),
		"file":    file,
	}).Debug("Saved story index to cache")
	return nil
}
