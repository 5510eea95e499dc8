// Package prompts loads the instruction prompts that steer reply rewrites.
// Prompts are cached with a TTL and served stale while a background fetch
// refreshes them; a fixed fallback is returned when nothing can be loaded.
package prompts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ErrNotFound is returned by fetchers for prompts that do not exist.
var ErrNotFound = errors.New("prompt not found")

// DefaultFallback is served when a prompt cannot be loaded and nothing is cached.
const DefaultFallback = "Instruction prompt could not be loaded."

const (
	defaultLabel    = "general"
	defaultTTL      = time.Hour
	defaultStaleTTL = 6 * time.Hour
	defaultTimeout  = 5 * time.Second
	defaultSize     = 64
)

// Fetcher retrieves the raw contents of a prompt file.
type Fetcher interface {
	Fetch(ctx context.Context, file string) (string, error)
}

// Config tunes the loader cache.
type Config struct {
	// TTL is how long a prompt is served without revalidation.
	TTL time.Duration `mapstructure:"ttl"`
	// StaleTTL is the age up to which a prompt is still served while it is
	// refreshed in the background.
	StaleTTL time.Duration `mapstructure:"stale-ttl"`
	// Timeout bounds a single fetch.
	Timeout time.Duration `mapstructure:"timeout"`
	// Size bounds the number of cached prompts.
	Size     int    `mapstructure:"size"`
	Fallback string `mapstructure:"fallback"`
}

type entry struct {
	text      string
	fetchedAt time.Time
}

// Loader is a process-scoped prompt cache. It is safe for concurrent use.
type Loader struct {
	fetcher Fetcher
	cfg     Config
	cache   *lru.Cache[string, entry]
	group   singleflight.Group
	logger  *zap.Logger
	now     func() time.Time

	mu         sync.Mutex
	refreshing map[string]bool
	closed     bool
	wg         sync.WaitGroup
}

// NewLoader returns a loader reading through fetcher.
func NewLoader(fetcher Fetcher, cfg Config, logger *zap.Logger) (*Loader, error) {
	if fetcher == nil {
		return nil, errors.New("prompt fetcher is required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultTTL
	}
	if cfg.StaleTTL < cfg.TTL {
		cfg.StaleTTL = max(defaultStaleTTL, cfg.TTL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Size <= 0 {
		cfg.Size = defaultSize
	}
	if strings.TrimSpace(cfg.Fallback) == "" {
		cfg.Fallback = DefaultFallback
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cache, err := lru.New[string, entry](cfg.Size)
	if err != nil {
		return nil, fmt.Errorf("create prompt cache: %w", err)
	}

	return &Loader{
		fetcher:    fetcher,
		cfg:        cfg,
		cache:      cache,
		logger:     logger,
		now:        time.Now,
		refreshing: make(map[string]bool),
	}, nil
}

// FileName maps a label such as "hiring" to its prompt file "hiring.md".
func FileName(label string) string {
	label = strings.ToLower(strings.TrimSpace(label))
	label = strings.TrimSuffix(label, ".md")

	var b strings.Builder
	for _, r := range label {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ' || r == '.' || r == '/':
			b.WriteRune('_')
		}
	}
	name := strings.Trim(b.String(), "_")
	if name == "" {
		name = defaultLabel
	}
	return name + ".md"
}

// Get returns the prompt for label. It never fails: on errors it serves the
// last cached copy or the fallback text.
func (l *Loader) Get(ctx context.Context, label string) string {
	file := FileName(label)

	cached, ok := l.cache.Get(file)
	if ok {
		age := l.now().Sub(cached.fetchedAt)
		switch {
		case age < l.cfg.TTL:
			return cached.text
		case age < l.cfg.StaleTTL:
			l.revalidate(file)
			return cached.text
		}
	}

	text, err := l.load(ctx, file)
	if err != nil {
		l.logger.Warn("prompt fetch failed", zap.String("file", file), zap.Error(err))
		if ok {
			return cached.text
		}
		return l.cfg.Fallback
	}
	return text
}

// Invalidate drops the cached prompt for label.
func (l *Loader) Invalidate(label string) {
	l.cache.Remove(FileName(label))
}

// Warm loads labels synchronously and reports "ok" or the error per label.
func (l *Loader) Warm(ctx context.Context, labels []string) map[string]string {
	report := make(map[string]string, len(labels))
	for _, label := range labels {
		if _, err := l.load(ctx, FileName(label)); err != nil {
			report[label] = err.Error()
			continue
		}
		report[label] = "ok"
	}
	return report
}

// Close stops scheduling background refreshes and waits for running ones.
func (l *Loader) Close() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()

	l.wg.Wait()
}

// load fetches file once for all concurrent callers and caches the result.
func (l *Loader) load(ctx context.Context, file string) (string, error) {
	v, err, _ := l.group.Do(file, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.cfg.Timeout)
		defer cancel()

		text, err := l.fetcher.Fetch(fetchCtx, file)
		if err != nil {
			return "", err
		}
		l.cache.Add(file, entry{text: text, fetchedAt: l.now()})
		return text, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (l *Loader) revalidate(file string) {
	l.mu.Lock()
	if l.closed || l.refreshing[file] {
		l.mu.Unlock()
		return
	}
	l.refreshing[file] = true
	l.wg.Add(1)
	l.mu.Unlock()

	go func() {
		defer l.wg.Done()
		defer func() {
			l.mu.Lock()
			delete(l.refreshing, file)
			l.mu.Unlock()
		}()

		if _, err := l.load(context.Background(), file); err != nil {
			l.logger.Warn("prompt revalidation failed", zap.String("file", file), zap.Error(err))
		}
	}()
}
