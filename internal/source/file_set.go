package source

import (
	"fmt"
	"os"
	"path/filepath"

	"fortio.org/safecast"
	"github.com/zeebo/xxh3"
)

// FileSet manages the host source units of one analysis scope.
// Every Add of an already known path produces a new FileID with a bumped version;
// older versions stay addressable so spans computed against them remain resolvable.
// FileSet is not safe for concurrent mutation; readers may share it once loading is done.
type FileSet struct {
	files   []File
	index   map[string]FileID // path -> latest id
	baseDir string            // базовая директория для относительных путей
}

// NewFileSet creates a new empty FileSet.
func NewFileSet() *FileSet {
	return NewFileSetWithBase("")
}

// NewFileSetWithBase создаёт FileSet с заданной базовой директорией.
func NewFileSetWithBase(baseDir string) *FileSet {
	return &FileSet{
		files:   make([]File, 0),
		index:   make(map[string]FileID),
		baseDir: baseDir,
	}
}

// BaseDir возвращает текущую базовую директорию.
func (fileSet *FileSet) BaseDir() string {
	if fileSet.baseDir == "" {
		if wd, err := os.Getwd(); err == nil {
			return wd
		}
	}
	return fileSet.baseDir
}

// Add stores content under path and returns a new FileID. The version is one more
// than the previous version recorded for the same path, or 1 for a new path.
func (fileSet *FileSet) Add(path string, content []byte, flags FileFlags) FileID {
	normalizedPath := normalizePath(path)
	var version int64 = 1
	if prev, ok := fileSet.index[normalizedPath]; ok {
		version = fileSet.files[prev].Version + 1
	}
	return fileSet.add(normalizedPath, content, flags, version)
}

// AddVersion stores content under path with an explicit version supplied by the
// editor host. The version must grow monotonically per path.
func (fileSet *FileSet) AddVersion(path string, content []byte, version int64) (FileID, error) {
	normalizedPath := normalizePath(path)
	if prev, ok := fileSet.index[normalizedPath]; ok && fileSet.files[prev].Version >= version {
		return 0, fmt.Errorf("%s: version %d is not newer than %d", path, version, fileSet.files[prev].Version)
	}
	return fileSet.add(normalizedPath, content, FileVirtual, version), nil
}

func (fileSet *FileSet) add(path string, content []byte, flags FileFlags, version int64) FileID {
	lenFiles, err := safecast.Conv[uint32](len(fileSet.files))
	if err != nil {
		panic(fmt.Errorf("len files overflow: %w", err))
	}
	id := FileID(lenFiles)
	fileSet.files = append(fileSet.files, File{
		ID:      id,
		Path:    path,
		Content: content,
		LineIdx: buildLineIndex(content),
		Hash:    xxh3.Hash(content),
		Version: version,
		Flags:   flags,
	})
	// Всегда обновляем индекс на последнюю версию файла
	fileSet.index[path] = id
	return id
}

// Load reads a file from disk, normalizes CRLF/BOM, and calls Add.
func (fileSet *FileSet) Load(path string) (FileID, error) {
	// #nosec G304 -- path is provided by the caller
	content, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}

	content, hadBOM := removeBOM(content)
	content, hadCRLF := normalizeCRLF(content)

	flags := FileFlags(0)
	if hadBOM {
		flags |= FileHadBOM
	}
	if hadCRLF {
		flags |= FileNormalizedCRLF
	}
	return fileSet.Add(path, content, flags), nil
}

// AddVirtual adds a virtual file (editor buffer, test, or generated) with the FileVirtual flag.
func (fileSet *FileSet) AddVirtual(name string, content []byte) FileID {
	return fileSet.Add(name, content, FileVirtual)
}

// Get returns the file metadata for the given ID.
func (fileSet *FileSet) Get(id FileID) *File {
	return &fileSet.files[id]
}

// HasFile reports whether id was issued by this FileSet.
func (fileSet *FileSet) HasFile(id FileID) bool {
	return int(id) < len(fileSet.files)
}

// Resolve converts a span into line and column positions.
func (fileSet *FileSet) Resolve(span Span) (start, end LineCol) {
	f := fileSet.files[span.File]
	return toLineCol(f.LineIdx, span.Start), toLineCol(f.LineIdx, span.End)
}

// Position converts a byte offset of a file into a line/column pair.
func (f *File) Position(off uint32) LineCol {
	return toLineCol(f.LineIdx, off)
}

// Offset converts a 1-based line/column pair into a byte offset, clamped to the content.
func (f *File) Offset(pos LineCol) uint32 {
	return toOffset(f.LineIdx, uint32(len(f.Content)), pos)
}

// GetLine возвращает строку с заданным номером (1-based) из файла.
// Если строка не существует, возвращает пустую строку.
func (f *File) GetLine(lineNum uint32) string {
	if lineNum == 0 {
		return ""
	}
	lenLineIdx, err := safecast.Conv[uint32](len(f.LineIdx))
	if err != nil {
		panic(fmt.Errorf("line index length overflow: %w", err))
	}
	lenContent, err := safecast.Conv[uint32](len(f.Content))
	if err != nil {
		panic(fmt.Errorf("content length overflow: %w", err))
	}

	var start, end uint32
	switch {
	case lineNum == 1:
		start = 0
	case (lineNum - 2) < lenLineIdx:
		start = f.LineIdx[lineNum-2] + 1
	default:
		return ""
	}
	if (lineNum - 1) < lenLineIdx {
		end = f.LineIdx[lineNum-1]
	} else {
		end = lenContent
	}
	if start >= lenContent {
		return ""
	}
	return string(f.Content[start:end])
}

// RelPath returns the file path relative to baseDir, falling back to the stored path.
func (f *File) RelPath(baseDir string) string {
	if baseDir == "" {
		return f.Path
	}
	rel, err := filepath.Rel(baseDir, filepath.FromSlash(f.Path))
	if err != nil {
		return f.Path
	}
	return filepath.ToSlash(rel)
}
