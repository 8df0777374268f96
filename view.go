package views

import (
	"fmt"
	"time"
)

// View renders one path, optionally through the factory's cache store.
type View struct {
	set      *settings
	path     string
	cache    bool
	cacheTTL time.Duration
	cacheKey string
}

// Path returns the normalized view path.
func (v *View) Path() string {
	return v.path
}

// Cache enables caching for ttl. An optional key replaces the path as the
// cache key. A non-positive ttl falls back to DefaultCacheTTL.
func (v *View) Cache(ttl time.Duration, key ...string) *View {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	v.cache = true
	v.cacheTTL = ttl
	v.cacheKey = ""
	if len(key) > 0 {
		v.cacheKey = key[0]
	}
	return v
}

// Render returns the composed view. With caching enabled an unexpired entry
// is returned as stored, whatever data is passed.
func (v *View) Render(data Data) (string, error) {
	if !v.cache {
		return v.compose(data)
	}
	if v.set.store == nil {
		return "", &ViewError{Path: v.path, Err: ErrNoCacheStore}
	}

	key := v.cacheKey
	if key == "" {
		key = v.path
	}
	entry, found, err := v.set.store.Get(key)
	if err != nil {
		return "", fmt.Errorf("read cache %q: %w", key, err)
	}
	if found && v.set.now().Before(entry.Expires) {
		v.set.logger.Debug("view cache hit", "path", v.path, "key", key, "expires", entry.Expires)
		return entry.Content, nil
	}

	content, err := v.compose(data)
	if err != nil {
		return "", err
	}
	entry = Entry{Content: content, Expires: v.set.now().Add(v.cacheTTL)}
	if err := v.set.store.Put(key, entry); err != nil {
		return "", fmt.Errorf("write cache %q: %w", key, err)
	}
	v.set.logger.Debug("view cached", "path", v.path, "key", key, "expires", entry.Expires)
	return content, nil
}

func (v *View) compose(data Data) (string, error) {
	return newComposer(v.set, v.path, data, nil, nil, 0).render()
}
