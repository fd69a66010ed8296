package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Filesystem serves a local directory as an upload store. Keys are
// slash-separated paths relative to the root and URLs are file:// URLs.
type Filesystem struct {
	root   string
	prefix string

	mu    sync.Mutex
	after string // last key returned; empty restarts from the beginning
}

// NewFilesystem creates a provider rooted at dir. Only keys starting with
// prefix are listed.
func NewFilesystem(dir, prefix string) (*Filesystem, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", abs, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", abs)
	}
	return &Filesystem{root: abs, prefix: prefix}, nil
}

func (f *Filesystem) Name() string { return "filesystem" }

type fileEntry struct {
	key  string
	path string
	d    fs.DirEntry
}

// List returns the next page in key order, resuming after the last key
// of the previous call. A short page means the end was reached and the
// next call starts over.
func (f *Filesystem) List(ctx context.Context, limit int) ([]Object, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}

	entries, err := f.walk(ctx)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", f.root, err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	start := sort.Search(len(entries), func(i int) bool { return entries[i].key > f.after })
	objects := make([]Object, 0, limit)
	for _, e := range entries[start:] {
		if len(objects) >= limit {
			break
		}
		info, err := e.d.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("list %s: %w", f.root, err)
		}
		objects = append(objects, Object{
			Key:    e.key,
			URL:    (&url.URL{Scheme: "file", Path: filepath.ToSlash(e.path)}).String(),
			Format: strings.TrimPrefix(filepath.Ext(e.path), "."),
			Size:   info.Size(),
		})
	}

	if len(objects) < limit {
		f.after = ""
	} else {
		f.after = objects[len(objects)-1].Key
	}
	return objects, nil
}

// walk collects every listable file under the root, sorted by key.
// WalkDir order is not key order ("a.txt" sorts before "a/x").
func (f *Filesystem) walk(ctx context.Context) ([]fileEntry, error) {
	var entries []fileEntry
	err := filepath.WalkDir(f.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			if p != f.root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || strings.HasPrefix(d.Name(), ".") {
			return nil
		}

		rel, err := filepath.Rel(f.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if f.prefix != "" && !strings.HasPrefix(key, f.prefix) {
			return nil
		}
		entries = append(entries, fileEntry{key: key, path: p, d: d})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].key < entries[j].key })
	return entries, nil
}

// Open opens the file behind obj. Keys escaping the root are rejected.
func (f *Filesystem) Open(ctx context.Context, obj Object) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p := filepath.Join(f.root, filepath.FromSlash(obj.Key))
	if rel, err := filepath.Rel(f.root, p); err != nil || strings.HasPrefix(rel, "..") {
		return nil, fmt.Errorf("key %q escapes root", obj.Key)
	}

	file, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, obj.Key)
		}
		return nil, err
	}
	return file, nil
}
