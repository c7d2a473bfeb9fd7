// Package posmap translates offsets between host source text and the decoded
// text of one embedded template literal.
//
// A Table is built once per (span, unit version) by walking the raw literal:
// plain characters map 1:1, escape sequences collapse to their decoded bytes
// and interpolation holes collapse to a zero-width point in the embedded text.
package posmap

import (
	"sort"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// HoleRange is the raw range of one `${...}` substitution, relative to the
// start of the literal content.
type HoleRange struct {
	Start int
	End   int
}

type segKind uint8

const (
	segText segKind = iota
	segEscape
	segHole
)

type segment struct {
	rawStart, rawEnd int
	embStart, embEnd int
	kind             segKind
}

// Table is the raw-to-decoded correspondence of one literal.
type Table struct {
	base   uint32
	rawLen int
	embLen int
	segs   []segment
}

// Decode walks raw once and returns the decoded embedded text, the embedded
// offset of every hole (in order) and the correspondence table.
// base is the host offset of raw[0].
func Decode(base uint32, raw string, holes []HoleRange) (string, []int, *Table) {
	t := &Table{base: base, rawLen: len(raw)}
	var out strings.Builder
	out.Grow(len(raw))
	holeOffsets := make([]int, 0, len(holes))

	textStart := -1
	flushText := func(end int) {
		if textStart < 0 {
			return
		}
		emb := out.Len()
		out.WriteString(raw[textStart:end])
		t.segs = append(t.segs, segment{rawStart: textStart, rawEnd: end, embStart: emb, embEnd: out.Len(), kind: segText})
		textStart = -1
	}

	hi := 0
	for i := 0; i < len(raw); {
		if hi < len(holes) && i == holes[hi].Start {
			flushText(i)
			emb := out.Len()
			t.segs = append(t.segs, segment{rawStart: i, rawEnd: holes[hi].End, embStart: emb, embEnd: emb, kind: segHole})
			holeOffsets = append(holeOffsets, emb)
			i = holes[hi].End
			hi++
			continue
		}
		if raw[i] != '\\' || i+1 >= len(raw) {
			if textStart < 0 {
				textStart = i
			}
			i++
			continue
		}
		decoded, n, ok := decodeEscape(raw[i:])
		if !ok {
			// невалидная последовательность остаётся как есть
			if textStart < 0 {
				textStart = i
			}
			i += 2
			continue
		}
		flushText(i)
		emb := out.Len()
		out.WriteString(decoded)
		t.segs = append(t.segs, segment{rawStart: i, rawEnd: i + n, embStart: emb, embEnd: out.Len(), kind: segEscape})
		i += n
	}
	flushText(len(raw))
	t.embLen = out.Len()
	return out.String(), holeOffsets, t
}

// decodeEscape decodes the escape sequence at the start of s (s[0] == '\\').
// It returns the decoded text and the number of raw bytes consumed.
func decodeEscape(s string) (string, int, bool) {
	switch c := s[1]; c {
	case 'n':
		return "\n", 2, true
	case 'r':
		return "\r", 2, true
	case 't':
		return "\t", 2, true
	case 'b':
		return "\b", 2, true
	case 'f':
		return "\f", 2, true
	case 'v':
		return "\v", 2, true
	case '0':
		if len(s) > 2 && s[2] >= '0' && s[2] <= '9' {
			return "", 0, false
		}
		return "\x00", 2, true
	case '\n':
		return "", 2, true
	case '\r':
		if len(s) > 2 && s[2] == '\n' {
			return "", 3, true
		}
		return "", 2, true
	case 'x':
		if len(s) < 4 {
			return "", 0, false
		}
		v, ok := parseHex(s[2:4])
		if !ok {
			return "", 0, false
		}
		return string(rune(v)), 4, true
	case 'u':
		r, n, ok := decodeUnicode(s)
		if !ok {
			return "", 0, false
		}
		if utf16.IsSurrogate(r) {
			// пара суррогатов даёт один символ
			if r2, n2, ok2 := decodeUnicode(s[n:]); ok2 && len(s) > n && s[n] == '\\' {
				if combined := utf16.DecodeRune(r, r2); combined != utf8.RuneError {
					return string(combined), n + n2, true
				}
			}
			return string(utf8.RuneError), n, true
		}
		return string(r), n, true
	default:
		r, size := utf8.DecodeRuneInString(s[1:])
		if r == '\u2028' || r == '\u2029' {
			return "", 1 + size, true
		}
		return s[1 : 1+size], 1 + size, true
	}
}

func decodeUnicode(s string) (rune, int, bool) {
	if len(s) < 3 || s[0] != '\\' || s[1] != 'u' {
		return 0, 0, false
	}
	if s[2] == '{' {
		end := strings.IndexByte(s, '}')
		if end < 4 || end > 9 {
			return 0, 0, false
		}
		v, ok := parseHex(s[3:end])
		if !ok || v > utf8.MaxRune {
			return 0, 0, false
		}
		return rune(v), end + 1, true
	}
	if len(s) < 6 {
		return 0, 0, false
	}
	v, ok := parseHex(s[2:6])
	if !ok {
		return 0, 0, false
	}
	return rune(v), 6, true
}

func parseHex(s string) (uint32, bool) {
	var v uint32
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
			v = v<<4 | uint32(c-'0')
		case c >= 'a' && c <= 'f':
			v = v<<4 | uint32(c-'a'+10)
		case c >= 'A' && c <= 'F':
			v = v<<4 | uint32(c-'A'+10)
		default:
			return 0, false
		}
	}
	return v, true
}

// Base returns the host offset of the first raw byte.
func (t *Table) Base() uint32 { return t.base }

// Len returns the decoded length.
func (t *Table) Len() int { return t.embLen }

// ToEmbedded maps a host offset to an embedded offset. It fails outside the
// literal and strictly inside an interpolation hole.
func (t *Table) ToEmbedded(hostOff uint32) (int, bool) {
	if hostOff < t.base {
		return 0, false
	}
	r := int(hostOff - t.base)
	if r > t.rawLen {
		return 0, false
	}
	if r == t.rawLen {
		return t.embLen, true
	}
	i := sort.Search(len(t.segs), func(i int) bool { return t.segs[i].rawEnd > r })
	if i == len(t.segs) {
		return t.embLen, true
	}
	seg := t.segs[i]
	switch seg.kind {
	case segText:
		return seg.embStart + (r - seg.rawStart), true
	case segHole:
		if r == seg.rawStart {
			return seg.embStart, true
		}
		return 0, false
	default:
		return seg.embStart, true
	}
}

// ToHost maps an embedded offset back to a host offset.
func (t *Table) ToHost(embOff int) (uint32, bool) {
	if embOff < 0 || embOff > t.embLen {
		return 0, false
	}
	if embOff == t.embLen {
		return t.base + uint32(t.rawLen), true // #nosec G115 -- literal length fits the host file
	}
	i := sort.Search(len(t.segs), func(i int) bool { return t.segs[i].embEnd > embOff })
	if i == len(t.segs) {
		return t.base + uint32(t.rawLen), true // #nosec G115
	}
	seg := t.segs[i]
	if seg.kind == segText {
		return t.base + uint32(seg.rawStart+(embOff-seg.embStart)), true // #nosec G115
	}
	return t.base + uint32(seg.rawStart), true // #nosec G115
}
