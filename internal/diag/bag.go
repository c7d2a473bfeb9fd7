package diag

import (
	"math"
	"sort"

	"fortio.org/safecast"
)

type Bag struct {
	items []Diagnostic
	max   uint16
}

// NewBag создаёт Bag с лимитом max; max <= 0 означает «без лимита».
func NewBag(max int) *Bag {
	limit, err := safecast.Conv[uint16](max)
	if err != nil || max <= 0 {
		limit = math.MaxUint16
	}
	return &Bag{
		items: make([]Diagnostic, 0, 8),
		max:   limit,
	}
}

// Add добавляет диагностику, учитывая лимит.
// Возвращает false, если диагностика не добавлена (достигнут лимит).
func (b *Bag) Add(d Diagnostic) bool {
	if len(b.items) >= int(b.max) {
		return false
	}
	b.items = append(b.items, d)
	return true
}

// HasErrors возвращает true, если есть хотя бы одна диагностика с Severity >= Error
func (b *Bag) HasErrors() bool {
	return HasErrors(b.items)
}

// длина
func (b *Bag) Len() int {
	return len(b.items)
}

// Items возвращает read-only slice диагностик.
// ВАЖНО: не модифицируйте возвращаемый срез! (он указывает на внутренний массив Bag)
func (b *Bag) Items() []Diagnostic {
	return b.items
}

// Sort сортирует диагностики по: file, start, end, severity (desc), code (asc)
// для стабильного и детерминированного порядка вывода.
func (b *Bag) Sort() {
	SortDiagnostics(b.items)
}

// Dedup drops diagnostics sharing location and message, keeping the first one.
func (b *Bag) Dedup() {
	b.items = Dedup(b.items)
}

// SortDiagnostics orders diagnostics by file, position, severity (desc) and code.
func SortDiagnostics(items []Diagnostic) {
	sort.SliceStable(items, func(i, j int) bool {
		di, dj := items[i], items[j]
		// сначала по файлу
		if di.Primary.File != dj.Primary.File {
			return di.Primary.File < dj.Primary.File
		}
		// затем по старту
		if di.Primary.Start != dj.Primary.Start {
			return di.Primary.Start < dj.Primary.Start
		}
		// затем по концу
		if di.Primary.End != dj.Primary.End {
			return di.Primary.End < dj.Primary.End
		}
		if di.Severity != dj.Severity {
			return di.Severity > dj.Severity
		}
		if di.Code != dj.Code {
			return di.Code < dj.Code
		}
		return di.Message < dj.Message
	})
}

type locationKey struct {
	span     [3]uint32
	embedded [2]uint32
	msg      string
}

// Dedup returns items without entries repeating an earlier (location, message) pair.
func Dedup(items []Diagnostic) []Diagnostic {
	seen := make(map[locationKey]struct{}, len(items))
	out := items[:0:0]
	for _, d := range items {
		key := locationKey{
			span:     [3]uint32{uint32(d.Primary.File), d.Primary.Start, d.Primary.End},
			embedded: [2]uint32{d.Embedded.Line, d.Embedded.Col},
			msg:      d.Message,
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, d)
	}
	return out
}

// HasErrors reports whether at least one diagnostic has error severity.
func HasErrors(items []Diagnostic) bool {
	for i := range items {
		if items[i].Severity >= SevError {
			return true
		}
	}
	return false
}
