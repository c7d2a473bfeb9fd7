// Package fuzztests houses Go fuzz harnesses for the document pipeline
// (host parse -> extraction -> composition) and the position maps. The goal
// is to catch panics, hangs and broken offset invariants on arbitrary input.
//
// Назначение: прогонять произвольные байты через FileSet, tree-sitter,
// extract, posmap и compose.
//
// Не делает: запись файлов, загрузку схемы, запуск CLI.
package fuzztests
