// Package schema turns a user-supplied field declaration into the flat list
// of typed field descriptors the validation loop works against.
package schema

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/manikumarthati/extractionWithValidation/internal/common"
)

// FieldType is the per-field type tag recognized in declarations.
type FieldType string

const (
	TypeString        FieldType = "string"
	TypeNumber        FieldType = "number"
	TypeBoolean       FieldType = "boolean"
	TypeObject        FieldType = "object"
	TypeArrayOfObject FieldType = "array-of-object"
)

// Field is a leaf or composite field descriptor. Immutable once loaded.
type Field struct {
	Path        string    `json:"path"`
	Type        FieldType `json:"declared_type"`
	ParentTable string    `json:"parent_table,omitempty"`
}

// Schema holds the flattened declaration in declaration order.
type Schema struct {
	Fields []Field
	byPath map[string]Field
}

// Declarations are nested maps: a leaf maps a field name to a type tag
// ("string" | "number" | "boolean"); a table maps a name to {items: {col: tag}};
// anything else nests as an object. YAML and JSON are both accepted.
//
// Load validates the raw declaration against the meta-schema before
// flattening, so malformed declarations fail loudly instead of producing a
// half-usable field list.
func Load(raw []byte) (*Schema, error) {
	if err := validateDeclaration(raw); err != nil {
		return nil, common.NewAppError("SCHEMA_ERROR", "invalid schema declaration", err)
	}

	var ms yaml.MapSlice
	if err := yaml.UnmarshalWithOptions(raw, &ms, yaml.UseOrderedMap()); err != nil {
		return nil, common.NewAppError("SCHEMA_ERROR", "decode schema declaration", err)
	}

	s := &Schema{byPath: make(map[string]Field)}
	if err := s.flatten(ms, "", ""); err != nil {
		return nil, err
	}
	if len(s.Fields) == 0 {
		return nil, common.NewAppError("SCHEMA_ERROR", "schema declaration has no fields", common.ErrInvalidInput)
	}
	return s, nil
}

func (s *Schema) flatten(ms yaml.MapSlice, prefix, parentTable string) error {
	for _, item := range ms {
		name, ok := item.Key.(string)
		if !ok {
			return common.NewAppError("SCHEMA_ERROR", fmt.Sprintf("non-string field name %v", item.Key), common.ErrInvalidInput)
		}
		path := name
		if prefix != "" {
			path = prefix + "." + name
		}

		switch v := item.Value.(type) {
		case string:
			ft, err := parseTypeTag(v)
			if err != nil {
				return common.NewAppError("SCHEMA_ERROR", fmt.Sprintf("field %q: %v", path, err), common.ErrInvalidInput)
			}
			s.add(Field{Path: path, Type: ft, ParentTable: parentTable})
		case yaml.MapSlice:
			if items, isTable := tableItems(v); isTable {
				s.add(Field{Path: path, Type: TypeArrayOfObject, ParentTable: parentTable})
				if err := s.flatten(items, path, path); err != nil {
					return err
				}
			} else {
				s.add(Field{Path: path, Type: TypeObject, ParentTable: parentTable})
				if err := s.flatten(v, path, parentTable); err != nil {
					return err
				}
			}
		default:
			return common.NewAppError("SCHEMA_ERROR", fmt.Sprintf("field %q: unsupported declaration value %T", path, item.Value), common.ErrInvalidInput)
		}
	}
	return nil
}

func (s *Schema) add(f Field) {
	s.Fields = append(s.Fields, f)
	s.byPath[f.Path] = f
}

// tableItems unwraps a {items: {...}, type?: array-of-object} declaration.
func tableItems(ms yaml.MapSlice) (yaml.MapSlice, bool) {
	for _, item := range ms {
		if k, ok := item.Key.(string); ok && k == "items" {
			if inner, ok := item.Value.(yaml.MapSlice); ok {
				return inner, true
			}
		}
	}
	return nil, false
}

func parseTypeTag(tag string) (FieldType, error) {
	switch FieldType(strings.TrimSpace(tag)) {
	case TypeString:
		return TypeString, nil
	case TypeNumber:
		return TypeNumber, nil
	case TypeBoolean:
		return TypeBoolean, nil
	default:
		return "", fmt.Errorf("unknown type tag %q", tag)
	}
}

var indexRe = regexp.MustCompile(`\[\d+\]`)

// NormalizePath strips array indexes so "taxes[2].rate" resolves to the
// declared field "taxes.rate".
func NormalizePath(p string) string {
	return indexRe.ReplaceAllString(p, "")
}

// Lookup resolves a possibly array-indexed path to its declared field.
func (s *Schema) Lookup(path string) (Field, bool) {
	f, ok := s.byPath[NormalizePath(path)]
	return f, ok
}

// Tables returns the array-of-object fields in declaration order.
func (s *Schema) Tables() []Field {
	var out []Field
	for _, f := range s.Fields {
		if f.Type == TypeArrayOfObject {
			out = append(out, f)
		}
	}
	return out
}

// Columns returns a table's member fields in declaration order.
func (s *Schema) Columns(tablePath string) []Field {
	var out []Field
	for _, f := range s.Fields {
		if f.ParentTable == tablePath && f.Path != tablePath {
			out = append(out, f)
		}
	}
	return out
}

// Scalars returns the non-table, non-object leaf fields in declaration order.
func (s *Schema) Scalars() []Field {
	var out []Field
	for _, f := range s.Fields {
		if f.ParentTable == "" && (f.Type == TypeString || f.Type == TypeNumber || f.Type == TypeBoolean) {
			out = append(out, f)
		}
	}
	return out
}
