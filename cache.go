package views

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
	"github.com/zeebo/blake3"
)

// Entry is a rendered view and the instant it stops being valid.
type Entry struct {
	Content string
	Expires time.Time
}

// CacheStore persists rendered views. Implementations used from several
// goroutines must be safe for concurrent use.
type CacheStore interface {
	// Get returns the entry for key. found is false when there is none.
	Get(key string) (entry Entry, found bool, err error)
	// Put stores entry under key, replacing any previous entry.
	Put(key string, entry Entry) error
}

// MemoryStore keeps entries in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: map[string]Entry{}}
}

func (s *MemoryStore) Get(key string) (Entry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[key]
	return entry, ok, nil
}

func (s *MemoryStore) Put(key string, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry
	return nil
}

const (
	contentExt = ".html"
	infoExt    = ".cache"

	compressionZstd = "zstd"
)

// cacheInfo is the metadata file written next to each cached view.
type cacheInfo struct {
	Expires     time.Time `msgpack:"expires"`
	Compression string    `msgpack:"compression,omitempty"`
}

// FileStore keeps each entry as two files in a directory: the content
// (<key>.html) and its msgpack encoded metadata (<key>.cache).
type FileStore struct {
	dir      string
	compress bool
	hashKeys bool
}

// FileStoreOption configures a FileStore.
type FileStoreOption func(*FileStore)

// WithCompression stores content zstd compressed.
func WithCompression() FileStoreOption {
	return func(s *FileStore) {
		s.compress = true
	}
}

// WithHashedKeys names files after the BLAKE3 digest of the key instead of the key itself.
func WithHashedKeys() FileStoreOption {
	return func(s *FileStore) {
		s.hashKeys = true
	}
}

// NewFileStore creates a store rooted at dir. The directory is created on first write.
func NewFileStore(dir string, opts ...FileStoreOption) *FileStore {
	s := &FileStore{dir: strings.TrimRight(dir, `/\`)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dir returns the root directory of the store.
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) filename(key, ext string) (string, error) {
	name := strings.Trim(key, `/\`)
	if s.hashKeys {
		sum := blake3.Sum256([]byte(key))
		name = hex.EncodeToString(sum[:])
	}
	if name == "" || !filepath.IsLocal(filepath.FromSlash(name)) {
		return "", fmt.Errorf("invalid cache key %q", key)
	}
	return filepath.Join(s.dir, filepath.FromSlash(name)+ext), nil
}

func (s *FileStore) Get(key string) (Entry, bool, error) {
	infoFile, err := s.filename(key, infoExt)
	if err != nil {
		return Entry{}, false, err
	}
	contentFile, err := s.filename(key, contentExt)
	if err != nil {
		return Entry{}, false, err
	}

	rawInfo, err := os.ReadFile(infoFile)
	if errors.Is(err, fs.ErrNotExist) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	var info cacheInfo
	if err := msgpack.Unmarshal(rawInfo, &info); err != nil {
		return Entry{}, false, fmt.Errorf("decode %s: %w", infoFile, err)
	}

	content, err := os.ReadFile(contentFile)
	if errors.Is(err, fs.ErrNotExist) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	switch info.Compression {
	case "":
	case compressionZstd:
		content, err = zstdDecoder.DecodeAll(content, nil)
		if err != nil {
			return Entry{}, false, fmt.Errorf("zstd decompress %s: %w", contentFile, err)
		}
	default:
		return Entry{}, false, fmt.Errorf("%s: unknown compression %q", infoFile, info.Compression)
	}

	return Entry{Content: string(content), Expires: info.Expires}, true, nil
}

func (s *FileStore) Put(key string, entry Entry) error {
	infoFile, err := s.filename(key, infoExt)
	if err != nil {
		return err
	}
	contentFile, err := s.filename(key, contentExt)
	if err != nil {
		return err
	}

	content := []byte(entry.Content)
	info := cacheInfo{Expires: entry.Expires}
	if s.compress {
		content = zstdEncoder.EncodeAll(content, nil)
		info.Compression = compressionZstd
	}
	rawInfo, err := msgpack.Marshal(&info)
	if err != nil {
		return fmt.Errorf("encode cache info: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(contentFile), 0o755); err != nil {
		return err
	}
	if err := writeFileAtomic(contentFile, content); err != nil {
		return err
	}
	return writeFileAtomic(infoFile, rawInfo)
}

// writeFileAtomic replaces name so that readers see either the old or the new content.
func writeFileAtomic(name string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(name), ".tmp-"+filepath.Base(name)+"-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), name)
}

// zstdEncoder and zstdDecoder are safe for concurrent use and shared by all stores.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("views: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("views: zstd decoder initialization failed: " + err.Error())
	}
}
