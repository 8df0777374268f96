package views

import (
	"log/slog"
	"time"
)

const (
	// DefaultCacheTTL is used when caching is enabled without a positive TTL.
	DefaultCacheTTL = time.Hour
	// DefaultMaxIncludeDepth bounds nested includes.
	DefaultMaxIncludeDepth = 64
)

type settings struct {
	renderer        Renderer
	store           CacheStore
	logger          *slog.Logger
	now             func() time.Time
	maxIncludeDepth int
}

// Option configures a Factory.
type Option func(*settings)

// WithCacheStore sets the store used by cached views.
func WithCacheStore(store CacheStore) Option {
	return func(s *settings) {
		s.store = store
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock replaces time.Now for cache expiry.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		if now != nil {
			s.now = now
		}
	}
}

// WithMaxIncludeDepth bounds how deeply includes may nest.
func WithMaxIncludeDepth(depth int) Option {
	return func(s *settings) {
		if depth > 0 {
			s.maxIncludeDepth = depth
		}
	}
}

// Factory creates views that share a renderer, a cache store and a logger.
type Factory struct {
	set *settings
}

// NewFactory creates a factory rendering templates from r.
func NewFactory(r Renderer, opts ...Option) *Factory {
	set := &settings{
		renderer:        r,
		logger:          slog.New(slog.DiscardHandler),
		now:             time.Now,
		maxIncludeDepth: DefaultMaxIncludeDepth,
	}
	for _, opt := range opts {
		opt(set)
	}
	return &Factory{set: set}
}

// View returns an uncached view for path.
func (f *Factory) View(path string) *View {
	return &View{set: f.set, path: normalizeName(path)}
}

// Render composes path with data, bypassing any cache.
func (f *Factory) Render(path string, data Data) (string, error) {
	return newComposer(f.set, path, data, nil, nil, 0).render()
}

// RenderView renders path from the templates under rootDir.
func RenderView(rootDir, path string, data Data) (string, error) {
	engine := NewEngine(rootDir)
	if err := engine.Load(); err != nil {
		return "", err
	}
	return NewFactory(engine).Render(path, data)
}

// RenderCachedView renders path from rootDir through a file cache in cacheDir.
// cacheKey replaces the path as the cache key when not empty.
func RenderCachedView(rootDir, cacheDir, path string, data Data, ttl time.Duration, cacheKey string) (string, error) {
	engine := NewEngine(rootDir)
	if err := engine.Load(); err != nil {
		return "", err
	}
	factory := NewFactory(engine, WithCacheStore(NewFileStore(cacheDir)))
	return factory.View(path).Cache(ttl, cacheKey).Render(data)
}
