// Package prompts discovers prompt files on disk for the session picker.
package prompts

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// File is one discovered prompt file.
type File struct {
	Path    string // absolute path
	RelPath string // path relative to the search root
	ModTime time.Time
	Size    int64
}

// Name returns the file name without its extension, used as the default
// session name.
func (f File) Name() string {
	base := filepath.Base(f.RelPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Discover walks root and returns files matching any of the include glob
// patterns, newest first. Hidden directories are skipped.
func Discover(root string, include []string) ([]File, error) {
	rootFS := os.DirFS(root)

	seen := map[string]bool{}
	var files []File

	for _, pattern := range include {
		matches, err := doublestar.Glob(rootFS, pattern)
		if err != nil {
			return nil, fmt.Errorf("glob %q: %w", pattern, err)
		}

		for _, rel := range matches {
			if seen[rel] || inHiddenDir(rel) {
				continue
			}
			seen[rel] = true

			info, err := fs.Stat(rootFS, rel)
			if err != nil || info.IsDir() {
				continue
			}

			files = append(files, File{
				Path:    filepath.Join(root, rel),
				RelPath: rel,
				ModTime: info.ModTime(),
				Size:    info.Size(),
			})
		}
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].ModTime.After(files[j].ModTime)
	})

	return files, nil
}

// Load reads a prompt file and normalizes line endings.
func Load(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read prompt file: %w", err)
	}
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	return strings.TrimRight(text, "\n"), nil
}

func inHiddenDir(rel string) bool {
	for part := range strings.SplitSeq(rel, "/") {
		if strings.HasPrefix(part, ".") && part != "." {
			return true
		}
	}
	return false
}
