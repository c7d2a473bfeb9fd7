package tsserver

import "unicode/utf8"

// byteOffset converts a 1-based line and UTF-16 column into a byte offset,
// clamped to the text.
func byteOffset(text []byte, loc Location) uint32 {
	line := 1
	i := 0
	for i < len(text) && line < loc.Line {
		if text[i] == '\n' {
			line++
		}
		i++
	}
	if line < loc.Line {
		return clampLen(len(text))
	}
	units := 0
	for i < len(text) && units < loc.Offset-1 {
		if text[i] == '\n' {
			break
		}
		r, size := utf8.DecodeRune(text[i:])
		need := 1
		if r > 0xFFFF {
			need = 2
		}
		if units+need > loc.Offset-1 {
			break
		}
		units += need
		i += size
	}
	return clampLen(i)
}

// location converts a byte offset back to a 1-based line and UTF-16 column.
func location(text []byte, off uint32) Location {
	if int(off) > len(text) {
		off = clampLen(len(text))
	}
	loc := Location{Line: 1, Offset: 1}
	for i := 0; i < int(off); {
		if text[i] == '\n' {
			loc.Line++
			loc.Offset = 1
			i++
			continue
		}
		r, size := utf8.DecodeRune(text[i:])
		if r > 0xFFFF {
			loc.Offset += 2
		} else {
			loc.Offset++
		}
		i += size
	}
	return loc
}

func clampLen(n int) uint32 {
	// #nosec G115 -- editor buffers are far below 4GiB
	return uint32(n)
}
