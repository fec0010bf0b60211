package tts

import (
	"context"
	"crypto/md5"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

const cacheExt = ".pcm"

// CachingSynthesizer stores every successful synthesis on disk, keyed by
// engine, voice, seed and text. A re-run of an interrupted job replays
// finished chunks from disk and only calls the service for the rest.
type CachingSynthesizer struct {
	inner        Synthesizer
	cacheRootDir string
}

func NewCachingSynthesizer(inner Synthesizer, cacheDir string) *CachingSynthesizer {
	return &CachingSynthesizer{inner: inner, cacheRootDir: cacheDir}
}

func (c *CachingSynthesizer) Name() string {
	return c.inner.Name()
}

func (c *CachingSynthesizer) SupportsStylePrompts() bool {
	return SupportsStylePrompts(c.inner)
}

func (c *CachingSynthesizer) Voices(ctx context.Context) ([]string, error) {
	if vl, ok := c.inner.(VoiceLister); ok {
		return vl.Voices(ctx)
	}
	return nil, fmt.Errorf("engine %s cannot list voices", c.inner.Name())
}

// Unwrap returns the backend behind the cache.
func (c *CachingSynthesizer) Unwrap() Synthesizer {
	return c.inner
}

// engineDirectory is the per-engine cache directory
func (c *CachingSynthesizer) engineDirectory() string {
	return filepath.Join(c.cacheRootDir, sanitizeName(c.inner.Name()))
}

func (c *CachingSynthesizer) chunkPath(req Request) string {
	seed := "none"
	if req.Seed != nil {
		seed = fmt.Sprintf("%d", *req.Seed)
	}
	key := md5Sum(strings.Join([]string{c.inner.Name(), req.Voice, seed, req.Text}, "|"))
	return filepath.Join(c.engineDirectory(), key+cacheExt)
}

func (c *CachingSynthesizer) Synthesize(ctx context.Context, req Request) ([]byte, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, nil
	}

	path := c.chunkPath(req)
	if data, err := os.ReadFile(path); err == nil && len(data) > 0 {
		logrus.WithFields(logrus.Fields{
			"voice": req.Voice,
			"file":  filepath.Base(path),
		}).Debug("using cached audio")
		return data, nil
	}

	data, err := c.inner.Synthesize(ctx, req)
	if err != nil || len(data) == 0 {
		return data, err
	}

	if err := c.store(path, data); err != nil {
		// A cache write failure must not lose audio the service already produced.
		logrus.WithError(err).WithField("file", path).Warn("failed to cache audio")
	}
	return data, nil
}

func (c *CachingSynthesizer) store(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// CacheStats summarises the on-disk cache.
type CacheStats struct {
	Directory   string
	CachedFiles int64
	TotalBytes  int64
	// Engines counts cached chunks per engine directory.
	Engines map[string]int64
}

func (s CacheStats) TotalSizeMB() float64 {
	return float64(s.TotalBytes) / (1024 * 1024)
}

// Stats walks the whole cache tree, not only the current engine.
func (c *CachingSynthesizer) Stats() (CacheStats, error) {
	stats := CacheStats{Directory: c.cacheRootDir, Engines: map[string]int64{}}

	err := filepath.Walk(c.cacheRootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Continue walking despite errors
		}
		if info.IsDir() || !strings.HasSuffix(info.Name(), cacheExt) {
			return nil
		}
		stats.CachedFiles++
		stats.TotalBytes += info.Size()
		if rel, err := filepath.Rel(c.cacheRootDir, filepath.Dir(path)); err == nil {
			stats.Engines[rel]++
		}
		return nil
	})
	if os.IsNotExist(err) {
		return stats, nil
	}
	return stats, err
}

// Clear removes all cached files
func (c *CachingSynthesizer) Clear() error {
	return os.RemoveAll(c.cacheRootDir)
}

// ClearEngine removes cached files for the current engine only.
func (c *CachingSynthesizer) ClearEngine() error {
	return os.RemoveAll(c.engineDirectory())
}

func md5Sum(s string) string {
	h := md5.New()
	io.WriteString(h, s)
	return fmt.Sprintf("%x", h.Sum(nil))
}

func sanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, name)
}
