// Package domain contains pure domain models for the annotation and
// evaluation repository index. Entities are built once by the application
// loaders and are never mutated afterwards; a reload replaces them wholesale.
package domain

import (
	"path"
	"slices"
	"strings"
)

// Node carries the identity shared by every indexed file-system entity.
// Path is slash-separated and relative to the root of the repository the
// entity was loaded from.
type Node struct {
	// Name is the base name of the file or directory.
	Name string `json:"name"`
	// Stem is Name without its final extension.
	Stem string `json:"stem"`
	// Path locates the entity inside its repository root.
	Path string `json:"path"`
}

// NewNode creates a Node for the slash-separated repository path p.
func NewNode(p string) Node {
	name := path.Base(p)
	return Node{Name: name, Stem: Stem(name), Path: p}
}

// Stem strips the final extension from a file name. A name that consists
// only of an extension, such as ".gitignore", is returned unchanged.
func Stem(name string) string {
	ext := path.Ext(name)
	if ext == "" || ext == name {
		return name
	}
	return strings.TrimSuffix(name, ext)
}

// sortedKeys returns the keys of m in ascending order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
