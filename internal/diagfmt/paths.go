package diagfmt

import (
	"path/filepath"
	"strings"

	"gqlembed/internal/source"
)

func formatPath(f *source.File, fs *source.FileSet, mode PathMode) string {
	switch mode {
	case PathModeAbsolute:
		return f.Path
	case PathModeBasename:
		return filepath.Base(f.Path)
	case PathModeRelative:
		return f.RelPath(fs.BaseDir())
	}
	if fs.BaseDir() == "" {
		return f.Path
	}
	rel := f.RelPath(fs.BaseDir())
	if strings.HasPrefix(rel, "../") || rel == ".." {
		return f.Path
	}
	return rel
}
