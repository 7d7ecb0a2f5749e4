// Package resource supplies raw script content to the bridge.
//
// A [Loader] maps a slash-separated resource path such as "Lua/Game.lua" to
// bytes. Loads are synchronous and bounded; an absent resource is reported
// with [ErrNotFound] rather than a panic, so callers can degrade to a
// module-not-found condition.
//
// Implementations:
//   - [Dir] reads from a directory tree on disk
//   - [Memory] holds content in a map, for tests and embedded scripts
//   - [Bundle] reads hot-patchable content from a SQLite file
//   - [Chain] layers several loaders, first match wins
package resource

import (
	"errors"
	"path"
	"strings"
)

// ErrNotFound is returned when a resource does not exist.
var ErrNotFound = errors.New("resource not found")

// Loader loads resource content by path.
type Loader interface {
	SyncLoad(path string) ([]byte, error)
}

// ModulePath builds the resource path for a script module: <root>/<name>.lua.
// It reports false when the name resolves outside root.
func ModulePath(root, name string) (string, bool) {
	p := path.Join(root, strings.ReplaceAll(name, "\\", "/")+".lua")
	if _, ok := Clean(p); !ok {
		return p, false
	}
	if r := path.Clean(root); r != "." && !strings.HasPrefix(p, r+"/") {
		return p, false
	}
	return p, true
}

// Clean normalizes a resource path to a slash-separated path relative to the
// resource root. It reports false for empty paths and paths that escape the root.
func Clean(p string) (string, bool) {
	p = strings.ReplaceAll(p, "\\", "/")
	rel := path.Clean(strings.TrimLeft(p, "/"))
	if rel == "." || rel == ".." || strings.HasPrefix(rel, "../") {
		return "", false
	}
	return rel, true
}

type chain []Loader

// Chain returns a Loader that consults each loader in order and returns the
// first content found. Errors other than ErrNotFound stop the search.
func Chain(loaders ...Loader) Loader {
	return chain(loaders)
}

func (c chain) SyncLoad(p string) ([]byte, error) {
	for _, l := range c {
		data, err := l.SyncLoad(p)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	return nil, ErrNotFound
}
