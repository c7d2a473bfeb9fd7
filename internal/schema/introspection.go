package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
)

// IntrospectionQuery is the standard full introspection request.
const IntrospectionQuery = `
query IntrospectionQuery {
  __schema {
    queryType { name }
    mutationType { name }
    subscriptionType { name }
    types {
      ...FullType
    }
    directives {
      name
      description
      locations
      isRepeatable
      args {
        ...InputValue
      }
    }
  }
}
fragment FullType on __Type {
  kind
  name
  description
  fields(includeDeprecated: true) {
    name
    description
    args {
      ...InputValue
    }
    type {
      ...TypeRef
    }
    isDeprecated
    deprecationReason
  }
  inputFields {
    ...InputValue
  }
  interfaces {
    ...TypeRef
  }
  enumValues(includeDeprecated: true) {
    name
    description
    isDeprecated
    deprecationReason
  }
  possibleTypes {
    ...TypeRef
  }
}
fragment InputValue on __InputValue {
  name
  description
  type { ...TypeRef }
  defaultValue
}
fragment TypeRef on __Type {
  kind
  name
  ofType {
    kind
    name
    ofType {
      kind
      name
      ofType {
        kind
        name
        ofType {
          kind
          name
          ofType {
            kind
            name
            ofType {
              kind
              name
              ofType {
                kind
                name
              }
            }
          }
        }
      }
    }
  }
}`

// IntrospectionResponse is the JSON body returned for IntrospectionQuery.
// Files produced by common tooling omit the "data" envelope; both shapes decode.
type IntrospectionResponse struct {
	Data   *IntrospectionData   `json:"data"`
	Schema *IntrospectionSchema `json:"__schema"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

type IntrospectionData struct {
	Schema *IntrospectionSchema `json:"__schema"`
}

type IntrospectionSchema struct {
	QueryType        *TypeRef    `json:"queryType"`
	MutationType     *TypeRef    `json:"mutationType"`
	SubscriptionType *TypeRef    `json:"subscriptionType"`
	Types            []FullType  `json:"types"`
	Directives       []Directive `json:"directives"`
}

// FullType represents a complete GraphQL type with all its metadata
type FullType struct {
	Kind          string       `json:"kind"`
	Name          string       `json:"name"`
	Description   *string      `json:"description"`
	Fields        []Field      `json:"fields"`
	InputFields   []InputValue `json:"inputFields"`
	Interfaces    []TypeRef    `json:"interfaces"`
	EnumValues    []EnumValue  `json:"enumValues"`
	PossibleTypes []TypeRef    `json:"possibleTypes"`
}

type Field struct {
	Name              string       `json:"name"`
	Description       *string      `json:"description"`
	Args              []InputValue `json:"args"`
	Type              TypeRef      `json:"type"`
	IsDeprecated      bool         `json:"isDeprecated"`
	DeprecationReason *string      `json:"deprecationReason"`
}

type InputValue struct {
	Name         string  `json:"name"`
	Description  *string `json:"description"`
	Type         TypeRef `json:"type"`
	DefaultValue *string `json:"defaultValue"`
}

// TypeRef represents a reference to a GraphQL type (with support for nested types)
type TypeRef struct {
	Kind   string   `json:"kind"`
	Name   *string  `json:"name"`
	OfType *TypeRef `json:"ofType"`
}

type EnumValue struct {
	Name              string  `json:"name"`
	Description       *string `json:"description"`
	IsDeprecated      bool    `json:"isDeprecated"`
	DeprecationReason *string `json:"deprecationReason"`
}

type Directive struct {
	Name         string       `json:"name"`
	Description  *string      `json:"description"`
	Locations    []string     `json:"locations"`
	IsRepeatable bool         `json:"isRepeatable"`
	Args         []InputValue `json:"args"`
}

// DecodeIntrospection parses an introspection JSON body.
func DecodeIntrospection(body []byte) (*IntrospectionSchema, error) {
	var resp IntrospectionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode introspection: %w", err)
	}
	if len(resp.Errors) > 0 {
		msgs := make([]string, 0, len(resp.Errors))
		for _, e := range resp.Errors {
			msgs = append(msgs, e.Message)
		}
		return nil, fmt.Errorf("introspection returned errors: %s", strings.Join(msgs, "; "))
	}
	switch {
	case resp.Data != nil && resp.Data.Schema != nil:
		return resp.Data.Schema, nil
	case resp.Schema != nil:
		return resp.Schema, nil
	}
	return nil, errors.New("introspection response has no __schema")
}

// builtins are the names the gqlparser prelude already defines.
var builtins = func() map[string]bool {
	out := make(map[string]bool)
	prelude, err := gqlparser.LoadSchema()
	if err != nil {
		return out
	}
	for name := range prelude.Types {
		out[name] = true
	}
	for name := range prelude.Directives {
		out["@"+name] = true
	}
	return out
}()

// SDL renders an introspection schema as schema definition language,
// skipping introspection types and prelude built-ins.
func (s *IntrospectionSchema) SDL() string {
	var b strings.Builder
	var roots strings.Builder
	if s.QueryType != nil && s.QueryType.Name != nil {
		fmt.Fprintf(&roots, "  query: %s\n", *s.QueryType.Name)
	}
	if s.MutationType != nil && s.MutationType.Name != nil {
		fmt.Fprintf(&roots, "  mutation: %s\n", *s.MutationType.Name)
	}
	if s.SubscriptionType != nil && s.SubscriptionType.Name != nil {
		fmt.Fprintf(&roots, "  subscription: %s\n", *s.SubscriptionType.Name)
	}
	if roots.Len() > 0 {
		b.WriteString("schema {\n")
		b.WriteString(roots.String())
		b.WriteString("}\n")
	}

	types := append([]FullType(nil), s.Types...)
	sort.Slice(types, func(i, j int) bool { return types[i].Name < types[j].Name })
	for _, t := range types {
		if strings.HasPrefix(t.Name, "__") || builtins[t.Name] {
			continue
		}
		b.WriteByte('\n')
		writeType(&b, t)
	}

	dirs := append([]Directive(nil), s.Directives...)
	sort.Slice(dirs, func(i, j int) bool { return dirs[i].Name < dirs[j].Name })
	for _, d := range dirs {
		if builtins["@"+d.Name] {
			continue
		}
		b.WriteByte('\n')
		writeDescription(&b, d.Description, "")
		fmt.Fprintf(&b, "directive @%s%s", d.Name, argsSDL(d.Args))
		if d.IsRepeatable {
			b.WriteString(" repeatable")
		}
		fmt.Fprintf(&b, " on %s\n", strings.Join(d.Locations, " | "))
	}
	return b.String()
}

func writeType(b *strings.Builder, t FullType) {
	writeDescription(b, t.Description, "")
	switch t.Kind {
	case "SCALAR":
		fmt.Fprintf(b, "scalar %s\n", t.Name)
	case "OBJECT", "INTERFACE":
		kw := "type"
		if t.Kind == "INTERFACE" {
			kw = "interface"
		}
		fmt.Fprintf(b, "%s %s", kw, t.Name)
		if len(t.Interfaces) > 0 {
			names := make([]string, 0, len(t.Interfaces))
			for _, i := range t.Interfaces {
				names = append(names, i.String())
			}
			fmt.Fprintf(b, " implements %s", strings.Join(names, " & "))
		}
		b.WriteString(" {\n")
		for _, f := range t.Fields {
			writeDescription(b, f.Description, "  ")
			fmt.Fprintf(b, "  %s%s: %s%s\n", f.Name, argsSDL(f.Args), f.Type.String(), deprecated(f.IsDeprecated, f.DeprecationReason))
		}
		b.WriteString("}\n")
	case "UNION":
		names := make([]string, 0, len(t.PossibleTypes))
		for _, p := range t.PossibleTypes {
			names = append(names, p.String())
		}
		fmt.Fprintf(b, "union %s = %s\n", t.Name, strings.Join(names, " | "))
	case "ENUM":
		fmt.Fprintf(b, "enum %s {\n", t.Name)
		for _, v := range t.EnumValues {
			writeDescription(b, v.Description, "  ")
			fmt.Fprintf(b, "  %s%s\n", v.Name, deprecated(v.IsDeprecated, v.DeprecationReason))
		}
		b.WriteString("}\n")
	case "INPUT_OBJECT":
		fmt.Fprintf(b, "input %s {\n", t.Name)
		for _, f := range t.InputFields {
			writeDescription(b, f.Description, "  ")
			fmt.Fprintf(b, "  %s\n", inputValueSDL(f))
		}
		b.WriteString("}\n")
	}
}

func argsSDL(args []InputValue) string {
	if len(args) == 0 {
		return ""
	}
	parts := make([]string, 0, len(args))
	for _, a := range args {
		parts = append(parts, inputValueSDL(a))
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func inputValueSDL(v InputValue) string {
	s := v.Name + ": " + v.Type.String()
	if v.DefaultValue != nil {
		s += " = " + *v.DefaultValue
	}
	return s
}

func deprecated(is bool, reason *string) string {
	if !is {
		return ""
	}
	if reason == nil || *reason == "" {
		return " @deprecated"
	}
	return fmt.Sprintf(" @deprecated(reason: %s)", quote(*reason))
}

func writeDescription(b *strings.Builder, desc *string, indent string) {
	if desc == nil || *desc == "" {
		return
	}
	fmt.Fprintf(b, "%s%s\n", indent, quote(*desc))
}

func quote(s string) string {
	data, _ := json.Marshal(s)
	return string(data)
}

// String renders the reference in SDL type syntax, e.g. [String!]!.
func (t TypeRef) String() string {
	switch t.Kind {
	case "NON_NULL":
		if t.OfType == nil {
			return "Unknown!"
		}
		return t.OfType.String() + "!"
	case "LIST":
		if t.OfType == nil {
			return "[Unknown]"
		}
		return "[" + t.OfType.String() + "]"
	}
	if t.Name == nil {
		return "Unknown"
	}
	return *t.Name
}

// LoadIntrospection builds a gqlparser schema from an introspection body.
func LoadIntrospection(name string, body []byte) (*ast.Schema, string, error) {
	is, err := DecodeIntrospection(body)
	if err != nil {
		return nil, "", err
	}
	sdl := is.SDL()
	s, err := gqlparser.LoadSchema(&ast.Source{Name: name, Input: sdl})
	if err != nil {
		return nil, "", fmt.Errorf("build schema from introspection: %w", err)
	}
	return s, sdl, nil
}

func sortedDefs(defs []*ast.Definition) []*ast.Definition {
	out := append([]*ast.Definition(nil), defs...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
