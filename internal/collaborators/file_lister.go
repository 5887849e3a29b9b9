package collaborators

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalFileLister implements FileLister against a path already materialized
// on local disk — a cloned repo checkout or an extracted upload.
type LocalFileLister struct {
	maxFileBytes int64
	skipDirs     map[string]struct{}
}

// NewLocalFileLister builds a lister that skips VCS/dependency directories
// and ignores any file over maxFileBytes (0 disables the size ceiling).
func NewLocalFileLister(maxFileBytes int64) *LocalFileLister {
	return &LocalFileLister{
		maxFileBytes: maxFileBytes,
		skipDirs: map[string]struct{}{
			".git":         {},
			"node_modules": {},
			"vendor":       {},
			".venv":        {},
			"__pycache__":  {},
		},
	}
}

// List walks repoPath and returns every regular file under it, skipping
// known non-source directories and anything over the configured size cap.
func (l *LocalFileLister) List(ctx context.Context, repoPath string) ([]SourceFile, error) {
	root, err := filepath.Abs(repoPath)
	if err != nil {
		return nil, fmt.Errorf("collaborators: resolve repo path: %w", err)
	}

	var files []SourceFile
	err = filepath.WalkDir(root, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if _, skip := l.skipDirs[d.Name()]; skip && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if l.maxFileBytes > 0 && info.Size() > l.maxFileBytes {
			return nil
		}
		files = append(files, SourceFile{Path: path, Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("collaborators: walk %s: %w", root, err)
	}
	return files, nil
}

// Open reads the absolute path a prior List call produced; the core never
// constructs filesystem paths itself, it only round-trips what List gave it.
func (l *LocalFileLister) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if strings.Contains(path, "..") {
		return nil, fmt.Errorf("collaborators: refusing path with parent traversal: %s", path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("collaborators: open %s: %w", path, err)
	}
	return f, nil
}

var _ FileLister = (*LocalFileLister)(nil)
