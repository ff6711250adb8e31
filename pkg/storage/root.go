// Package storage locates and writes workflow files under a storage root laid
// out as one level of category subdirectories. Resolution proves containment:
// no path it returns ever escapes the canonicalized root, whatever symbolic
// links a subdirectory holds.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Root is a canonicalized storage root directory.
type Root struct {
	path string
}

// NewRoot canonicalizes the given directory, creating it if needed.
func NewRoot(path string) (*Root, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root %s: %w", path, err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage root %s: %w", path, err)
	}

	canonical, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize storage root %s: %w", abs, err)
	}

	return &Root{path: canonical}, nil
}

// Path returns the canonical root directory.
func (r *Root) Path() string {
	return r.path
}

// Resolve locates filename under the root's category subdirectories. The
// filename must already have passed security.ValidFilename; Resolve trusts
// only containment. First match in directory-listing order wins. A candidate
// whose canonical form escapes the root returns ErrForbidden immediately,
// without scanning further subdirectories for that name.
//
// The check-then-use sequence races against concurrent writers; the returned
// path is valid at check time, not a transactional guarantee.
func (r *Root) Resolve(filename string) (string, error) {
	entries, err := os.ReadDir(r.path)
	if err != nil {
		return "", fmt.Errorf("failed to list storage root: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		candidate := filepath.Join(r.path, entry.Name(), filename)

		info, err := os.Stat(candidate)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}

		canonical, err := filepath.EvalSymlinks(candidate)
		if err != nil {
			continue
		}

		if !r.contains(canonical) {
			return "", fmt.Errorf("%w: %s", ErrForbidden, filename)
		}

		return canonical, nil
	}

	return "", fmt.Errorf("%w: %s", ErrNotFound, filename)
}

// Save writes a workflow document under the given category subdirectory and
// returns the written path. The category is expected to come from the
// classifier and the filename from the guard or the upload sanitizer.
func (r *Root) Save(category, filename string, data []byte) (string, error) {
	dir := filepath.Join(r.path, category)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create category directory %s: %w", category, err)
	}

	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write workflow file %s: %w", filename, err)
	}

	return path, nil
}

// Remove resolves filename and deletes the underlying file.
func (r *Root) Remove(filename string) error {
	path, err := r.Resolve(filename)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to remove workflow file %s: %w", filename, err)
	}

	return nil
}

// Categories lists the category subdirectories in directory-listing order.
func (r *Root) Categories() ([]string, error) {
	entries, err := os.ReadDir(r.path)
	if err != nil {
		return nil, fmt.Errorf("failed to list storage root: %w", err)
	}

	categories := make([]string, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() {
			categories = append(categories, entry.Name())
		}
	}

	return categories, nil
}

// File is one workflow file found while walking the root.
type File struct {
	Category string
	Filename string
	Path     string
}

// Files lists every .json workflow file, one category level deep.
func (r *Root) Files() ([]File, error) {
	categories, err := r.Categories()
	if err != nil {
		return nil, err
	}

	files := make([]File, 0)

	for _, category := range categories {
		entries, err := os.ReadDir(filepath.Join(r.path, category))
		if err != nil {
			return nil, fmt.Errorf("failed to list category %s: %w", category, err)
		}

		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
				continue
			}

			files = append(files, File{
				Category: category,
				Filename: entry.Name(),
				Path:     filepath.Join(r.path, category, entry.Name()),
			})
		}
	}

	return files, nil
}

func (r *Root) contains(canonical string) bool {
	rel, err := filepath.Rel(r.path, canonical)
	if err != nil {
		return false
	}

	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
