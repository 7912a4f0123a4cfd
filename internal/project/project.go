package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"
)

// Common errors.
var (
	ErrRootNotFound   = errors.New("project root not found")
	ErrEmptyStartPath = errors.New("start path cannot be empty")
)

// Markers are the files whose presence marks a project root.
var Markers = []string{"go.mod"}

// FindRoot returns the project root enclosing start.
func FindRoot(start string) (string, error) {
	if start == "" {
		return "", ErrEmptyStartPath
	}
	abs, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", start, err)
	}

	if root, ok := findMarker(abs, Markers); ok {
		return root, nil
	}

	root, err := gitRoot(abs)
	if err != nil {
		return "", fmt.Errorf("%w from %s: %v", ErrRootNotFound, abs, err)
	}
	return root, nil
}

// findMarker walks up from dir to the first directory holding one of
// markers.
func findMarker(dir string, markers []string) (string, bool) {
	for {
		for _, m := range markers {
			if info, err := os.Stat(filepath.Join(dir, m)); err == nil && !info.IsDir() {
				return dir, true
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// gitRoot returns the work tree root of the repository enclosing dir.
func gitRoot(dir string) (string, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "", err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return "", err
	}
	return wt.Filesystem.Root(), nil
}
