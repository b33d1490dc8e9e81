package fs

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"docqa/internal/port"
)

// Walker expands command-line paths, directories and ** globs into document files.
type Walker struct {
	includes []string
	excludes []string
}

func NewWalker(includes, excludes []string) *Walker {
	if len(includes) == 0 {
		includes = []string{"**/*"}
	}
	return &Walker{
		includes: includes,
		excludes: excludes,
	}
}

// Expand resolves each argument. Explicit files are taken as-is unless
// excluded; directories are walked with the include patterns; anything
// else is treated as a glob.
func (w *Walker) Expand(patterns []string) ([]port.FileInfo, error) {
	seen := make(map[string]bool)
	var files []port.FileInfo

	add := func(path string, info os.FileInfo) {
		abs, err := filepath.Abs(path)
		if err != nil || seen[abs] {
			return
		}
		seen[abs] = true
		files = append(files, port.FileInfo{
			Path:    abs,
			ModTime: info.ModTime().Unix(),
			Size:    info.Size(),
		})
	}

	for _, pattern := range patterns {
		info, err := os.Stat(pattern)
		switch {
		case err == nil && info.IsDir():
			found, err := w.Walk(pattern)
			if err != nil {
				return nil, err
			}
			for _, f := range found {
				if !seen[f.Path] {
					seen[f.Path] = true
					files = append(files, f)
				}
			}
		case err == nil:
			if !w.shouldExclude(filepath.ToSlash(pattern)) {
				add(pattern, info)
			}
		default:
			matches, gerr := doublestar.FilepathGlob(pattern)
			if gerr != nil {
				return nil, fmt.Errorf("bad pattern %q: %w", pattern, gerr)
			}
			if len(matches) == 0 {
				return nil, fmt.Errorf("no files match %q", pattern)
			}
			for _, m := range matches {
				mi, err := os.Stat(m)
				if err != nil || mi.IsDir() || w.shouldExclude(filepath.ToSlash(m)) {
					continue
				}
				add(m, mi)
			}
		}
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// Walk returns every file under root matching the include patterns.
func (w *Walker) Walk(root string) ([]port.FileInfo, error) {
	var files []port.FileInfo

	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		relPath = filepath.ToSlash(relPath)

		if info.IsDir() {
			if relPath != "." && w.shouldExclude(relPath+"/") {
				return filepath.SkipDir
			}
			return nil
		}

		if w.shouldInclude(relPath) && !w.shouldExclude(relPath) {
			files = append(files, port.FileInfo{
				Path:    path,
				ModTime: info.ModTime().Unix(),
				Size:    info.Size(),
			})
		}

		return nil
	})

	return files, err
}

func (w *Walker) shouldInclude(path string) bool {
	for _, pattern := range w.includes {
		matched, err := doublestar.Match(pattern, path)
		if err == nil && matched {
			return true
		}
	}
	return false
}

func (w *Walker) shouldExclude(path string) bool {
	for _, pattern := range w.excludes {
		matched, err := doublestar.Match(pattern, path)
		if err == nil && matched {
			return true
		}
	}
	return false
}
