package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrRootNotFound is returned when no ancestor directory carries the project markers
var ErrRootNotFound = errors.New("could not find project root")

// DefaultMarkers identify a research project root
var DefaultMarkers = []string{"src", "manuscript_quarto"}

// Resolver locates the project root directory
type Resolver interface {
	Root() (string, error)
}

// StaticResolver returns a fixed, already-known root
type StaticResolver string

// Root returns the configured path as an absolute path
func (s StaticResolver) Root() (string, error) {
	if s == "" {
		return "", fmt.Errorf("%w: empty root", ErrRootNotFound)
	}
	return filepath.Abs(string(s))
}

// MarkerResolver walks up from Start until a directory contains every marker subdirectory
type MarkerResolver struct {
	Start   string
	Markers []string
}

// NewMarkerResolver creates a resolver that starts at start with the default markers
func NewMarkerResolver(start string) *MarkerResolver {
	return &MarkerResolver{Start: start, Markers: DefaultMarkers}
}

// Root walks parent directories up to the filesystem root
func (m *MarkerResolver) Root() (string, error) {
	dir, err := filepath.Abs(m.Start)
	if err != nil {
		return "", fmt.Errorf("resolve start dir: %w", err)
	}

	for {
		if hasAll(dir, m.Markers) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%w: no ancestor of %s contains %v", ErrRootNotFound, m.Start, m.Markers)
		}
		dir = parent
	}
}

func hasAll(dir string, markers []string) bool {
	for _, marker := range markers {
		info, err := os.Stat(filepath.Join(dir, marker))
		if err != nil || !info.IsDir() {
			return false
		}
	}
	return true
}

// Resolve picks the explicit root when set, otherwise walks up from the working directory
func Resolve(explicit string) (string, error) {
	if explicit != "" {
		return StaticResolver(explicit).Root()
	}

	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working dir: %w", err)
	}
	return NewMarkerResolver(wd).Root()
}
