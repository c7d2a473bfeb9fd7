package source

import (
	"path/filepath"
	"slices"
	"sort"
)

// normalizeCRLF заменяет все \r\n на \n, не трогая одиночные \r.
// Возвращает новый слайс и флаг: были ли замены (true, если хотя бы одна).
func normalizeCRLF(content []byte) ([]byte, bool) {
	// Быстрый путь: если нет \r, возвращаем как есть.
	if !slices.Contains(content, '\r') {
		return content, false
	}

	out := make([]byte, 0, len(content))
	changed := false

	i := 0
	for i < len(content) {
		if content[i] == '\r' && i+1 < len(content) && content[i+1] == '\n' {
			out = append(out, '\n')
			i += 2
			changed = true
		} else {
			out = append(out, content[i])
			i++
		}
	}
	return out, changed
}

func removeBOM(content []byte) ([]byte, bool) {
	if len(content) < 3 {
		return content, false
	}
	if content[0] == 0xEF && content[1] == 0xBB && content[2] == 0xBF {
		return content[3:], true
	}
	return content, false
}

func buildLineIndex(content []byte) []uint32 {
	out := make([]uint32, 0, 64)
	for i, b := range content {
		if b == '\n' {
			out = append(out, uint32(i))
		}
	}
	return out
}

func toLineCol(lineIdx []uint32, off uint32) LineCol {
	// бинпоиск: находим количество переводов строки строго до off
	line := sort.Search(len(lineIdx), func(i int) bool { return lineIdx[i] >= off })
	var startOff uint32
	if line > 0 {
		startOff = lineIdx[line-1] + 1
	}
	return LineCol{Line: uint32(line + 1), Col: off - startOff + 1}
}

func toOffset(lineIdx []uint32, size uint32, pos LineCol) uint32 {
	if pos.Line == 0 {
		return 0
	}
	var start uint32
	if pos.Line > 1 {
		if int(pos.Line-2) >= len(lineIdx) {
			return size
		}
		start = lineIdx[pos.Line-2] + 1
	}
	end := size
	if int(pos.Line-1) < len(lineIdx) {
		end = lineIdx[pos.Line-1]
	}
	col := pos.Col
	if col == 0 {
		col = 1
	}
	off := start + col - 1
	if off > end {
		off = end
	}
	return off
}

// NormalizePath returns the form under which FileSet indexes paths.
func NormalizePath(p string) string {
	return normalizePath(p)
}

func normalizePath(p string) string {
	// единый вид в кроссплатформенных дифах
	return filepath.ToSlash(filepath.Clean(p))
}
