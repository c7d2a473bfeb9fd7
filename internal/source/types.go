package source

type (
	// FileID uniquely identifies one version of a source unit within a FileSet.
	FileID uint32
	// FileFlags encodes metadata about a source file.
	FileFlags uint8 // метаданные
)

const (
	// FileVirtual indicates the file was added from memory (editor buffer, test, stdin).
	FileVirtual FileFlags = 1 << iota // добавлен не с диска
	FileHadBOM
	FileNormalizedCRLF
)

// File captures metadata and content for a single version of a host source unit.
// Files are never mutated after Add; an edit produces a new File with Version+1.
type File struct {
	ID      FileID
	Path    string
	Content []byte
	LineIdx []uint32
	Hash    uint64
	Version int64
	Flags   FileFlags
}

// LineCol represents a human-readable position in a source file.
type LineCol struct {
	Line uint32 // 1-based
	Col  uint32 // 1-based, in bytes
}

// NoFile marks a span that is not attached to any host file (project-level findings).
const NoFile FileID = ^FileID(0)
