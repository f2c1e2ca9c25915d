// Package discover expands command-line paths into source files.
package discover

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
	"github.com/spf13/afero"
)

const SourceExt = ".ts"

var skipDirs = map[string]struct{}{
	"node_modules": {},
	"dist":         {},
	"build":        {},
}

// Sources returns the source files named by paths. Files are taken as given;
// directories are walked recursively, skipping hidden and vendored
// directories and anything matched by the ignore file at root/ignoreFile.
// The result has no duplicates and keeps the order of paths, with the files
// of each directory sorted.
func Sources(fsys afero.Fs, root, ignoreFile string, paths []string) ([]string, error) {
	gi, err := loadIgnore(fsys, root, ignoreFile)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var results []string
	add := func(path string) {
		path = filepath.Clean(path)
		if !seen[path] {
			seen[path] = true
			results = append(results, path)
		}
	}
	for _, p := range paths {
		info, err := fsys.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", p, err)
		}
		if !info.IsDir() {
			add(p)
			continue
		}
		found, err := walk(fsys, root, p, gi)
		if err != nil {
			return nil, err
		}
		for _, f := range found {
			add(f)
		}
	}
	return results, nil
}

func walk(fsys afero.Fs, root, dir string, gi *ignore.GitIgnore) ([]string, error) {
	var found []string
	err := afero.Walk(fsys, dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		name := info.Name()
		ignored := gi != nil && gi.MatchesPath(relSlash(root, path))
		if info.IsDir() {
			if path == dir {
				return nil
			}
			if _, skip := skipDirs[name]; skip || strings.HasPrefix(name, ".") || ignored {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") || ignored || filepath.Ext(name) != SourceExt {
			return nil
		}
		found = append(found, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	sort.Strings(found)
	return found, nil
}

func relSlash(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

func loadIgnore(fsys afero.Fs, root, ignoreFile string) (*ignore.GitIgnore, error) {
	if ignoreFile == "" {
		return nil, nil
	}
	data, err := afero.ReadFile(fsys, filepath.Join(root, ignoreFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read ignore file: %w", err)
	}
	return ignore.CompileIgnoreLines(strings.Split(string(data), "\n")...), nil
}
