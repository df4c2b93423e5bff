package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// FileStore is a Store backed by the local filesystem, one JSON
// document per key under a root directory. Key characters that are not
// filesystem-safe are escaped, so keys like "migration:1234" map to
// stable file names.
type FileStore struct {
	root string
}

// NewFileStore creates a FileStore rooted at dir, creating it if
// necessary.
func NewFileStore(dir string) (*FileStore, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve root path: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create root directory: %w", err)
	}
	return &FileStore{root: abs}, nil
}

// Root returns the absolute root directory.
func (f *FileStore) Root() string { return f.root }

// resolve maps a key to an absolute file path, ensuring the result
// stays within the root directory.
func (f *FileStore) resolve(key string) (string, error) {
	name := encodeKey(key) + ".json"
	abs := filepath.Join(f.root, name)
	// Prevent path traversal
	if !strings.HasPrefix(abs, f.root) {
		return "", fmt.Errorf("key %q escapes storage root", key)
	}
	return abs, nil
}

func (f *FileStore) Put(_ context.Context, key string, value []byte) error {
	abs, err := f.resolve(key)
	if err != nil {
		return err
	}

	// Write to a temp file then rename so readers never observe a
	// partially written document.
	tmp, err := os.CreateTemp(f.root, ".put-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

func (f *FileStore) Get(_ context.Context, key string) ([]byte, error) {
	abs, err := f.resolve(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("read document: %w", err)
	}
	return data, nil
}

func (f *FileStore) Delete(_ context.Context, key string) error {
	abs, err := f.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil {
		if os.IsNotExist(err) {
			return ErrKeyNotFound
		}
		return fmt.Errorf("remove document: %w", err)
	}
	return nil
}

func (f *FileStore) List(_ context.Context, prefix string) ([]KV, error) {
	entries, err := os.ReadDir(f.root)
	if err != nil {
		return nil, fmt.Errorf("read root directory: %w", err)
	}

	var result []KV
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		key := decodeKey(strings.TrimSuffix(name, ".json"))
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(f.root, name))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		result = append(result, KV{Key: key, Value: data})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	return result, nil
}

// encodeKey makes a key filesystem-safe. Path separators and the
// escape character itself are percent-encoded.
func encodeKey(key string) string {
	var b strings.Builder
	for i := 0; i < len(key); i++ {
		c := key[i]
		switch c {
		case '/', '\\', '%', '.':
			fmt.Fprintf(&b, "%%%02X", c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func decodeKey(name string) string {
	var b strings.Builder
	for i := 0; i < len(name); i++ {
		if name[i] == '%' && i+2 < len(name) {
			if c, err := strconv.ParseUint(name[i+1:i+3], 16, 8); err == nil {
				b.WriteByte(byte(c))
				i += 2
				continue
			}
		}
		b.WriteByte(name[i])
	}
	return b.String()
}
