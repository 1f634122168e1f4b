//go:build !tinygo

package nvs

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

// File is a Store persisted as one JSON document, rewritten through a
// temp file + rename so a crash never leaves a half-written namespace.
type File struct {
	mu   sync.Mutex
	path string
	data map[string]map[string]string
}

// OpenFile loads path if it exists; a missing file is an empty store.
func OpenFile(path string) (*File, error) {
	f := &File{path: path, data: map[string]map[string]string{}}
	raw, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		return f, nil
	case err != nil:
		return nil, err
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &f.data); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func (f *File) Get(ns, key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[ns][key]
	return v, ok
}

func (f *File) Put(ns, key, val string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	bucket := f.data[ns]
	if bucket == nil {
		bucket = map[string]string{}
		f.data[ns] = bucket
	}
	prev, had := bucket[key]
	bucket[key] = val
	if err := f.flushLocked(); err != nil {
		if had {
			bucket[key] = prev
		} else {
			delete(bucket, key)
		}
		return err
	}
	return nil
}

func (f *File) Clear(ns string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	prev, had := f.data[ns]
	delete(f.data, ns)
	if err := f.flushLocked(); err != nil {
		if had {
			f.data[ns] = prev
		}
		return err
	}
	return nil
}

func (f *File) flushLocked() error {
	raw, err := json.Marshal(f.data)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}
