// Package schema acquires a GraphQL schema from a local file or a remote
// introspection endpoint and publishes it as an immutable Snapshot.
package schema

import (
	"time"

	"github.com/vektah/gqlparser/v2/ast"
)

type Source uint8

const (
	SourceLocal Source = iota
	SourceRemote
)

func (s Source) String() string {
	if s == SourceRemote {
		return "remote"
	}
	return "local"
}

// Snapshot is a consistent, read-only schema. It is replaced wholesale on
// refresh and never mutated after publication.
type Snapshot struct {
	Schema   *ast.Schema
	Source   Source
	Origin   string // путь или URL
	LoadedAt time.Time
	// Digest identifies the schema text; equal digests mean equal schemas.
	Digest uint64
}

// Type returns the named definition or nil.
func (s *Snapshot) Type(name string) *ast.Definition {
	if s == nil || s.Schema == nil {
		return nil
	}
	return s.Schema.Types[name]
}

// Field returns a field of an object, interface or input type, including
// the __typename meta field.
func (s *Snapshot) Field(typeName, fieldName string) *ast.FieldDefinition {
	def := s.Type(typeName)
	if def == nil {
		return nil
	}
	if fieldName == "__typename" {
		return &ast.FieldDefinition{Name: "__typename", Type: ast.NonNullNamedType("String", nil)}
	}
	return def.Fields.ForName(fieldName)
}

// RootType returns the root definition of an operation kind.
func (s *Snapshot) RootType(op ast.Operation) *ast.Definition {
	if s == nil || s.Schema == nil {
		return nil
	}
	switch op {
	case ast.Mutation:
		return s.Schema.Mutation
	case ast.Subscription:
		return s.Schema.Subscription
	default:
		return s.Schema.Query
	}
}

// PossibleTypes returns concrete types of an abstract definition, sorted by name.
func (s *Snapshot) PossibleTypes(def *ast.Definition) []*ast.Definition {
	if s == nil || s.Schema == nil || def == nil {
		return nil
	}
	if !def.IsAbstractType() {
		return []*ast.Definition{def}
	}
	return sortedDefs(s.Schema.GetPossibleTypes(def))
}
