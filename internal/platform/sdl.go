package platform

import (
	"strings"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/formatter"
)

// TypeSDL renders the named type as GraphQL SDL, as served by introspection.
// The second return is false when the type is not in the snapshot.
func (s *Snapshot) TypeSDL(name string) (string, bool) {
	t, ok := s.Types[name]
	if !ok {
		return "", false
	}

	doc := &ast.SchemaDocument{Definitions: ast.DefinitionList{definitionAST(t)}}
	var buf strings.Builder
	formatter.NewFormatter(&buf).FormatSchemaDocument(doc)
	return strings.TrimSpace(buf.String()), true
}

func definitionAST(t *TypeDef) *ast.Definition {
	def := &ast.Definition{
		Kind:        definitionKind(t.Kind),
		Name:        t.Name,
		Description: t.Description,
	}
	for _, iface := range t.Interfaces {
		def.Interfaces = append(def.Interfaces, iface.Unwrap())
	}
	for _, possible := range t.PossibleTypes {
		def.Types = append(def.Types, possible.Unwrap())
	}
	for i := range t.Fields {
		f := &t.Fields[i]
		fieldDef := &ast.FieldDefinition{
			Name:        f.Name,
			Description: f.Description,
			Type:        typeAST(f.Type),
		}
		for j := range f.Args {
			a := &f.Args[j]
			fieldDef.Arguments = append(fieldDef.Arguments, &ast.ArgumentDefinition{
				Name:        a.Name,
				Description: a.Description,
				Type:        typeAST(a.Type),
			})
		}
		def.Fields = append(def.Fields, fieldDef)
	}
	for i := range t.InputFields {
		f := &t.InputFields[i]
		def.Fields = append(def.Fields, &ast.FieldDefinition{
			Name:        f.Name,
			Description: f.Description,
			Type:        typeAST(f.Type),
		})
	}
	for _, v := range t.EnumValues {
		def.EnumValues = append(def.EnumValues, &ast.EnumValueDefinition{
			Name:        v.Name,
			Description: v.Description,
		})
	}
	return def
}

func definitionKind(kind string) ast.DefinitionKind {
	switch kind {
	case "OBJECT":
		return ast.Object
	case "INTERFACE":
		return ast.Interface
	case "UNION":
		return ast.Union
	case "ENUM":
		return ast.Enum
	case "INPUT_OBJECT":
		return ast.InputObject
	default:
		return ast.Scalar
	}
}

func typeAST(r *TypeRef) *ast.Type {
	if r == nil {
		return nil
	}
	switch r.Kind {
	case "NON_NULL":
		inner := typeAST(r.OfType)
		inner.NonNull = true
		return inner
	case "LIST":
		return ast.ListType(typeAST(r.OfType), nil)
	default:
		return ast.NamedType(r.Name, nil)
	}
}
