package merger

import (
	"github.com/vektah/gqlparser/v2/ast"
)

// renameFunc maps a referenced type name to its name in the merged schema
type renameFunc func(string) string

func copyType(t *ast.Type, rename renameFunc) *ast.Type {
	if t == nil {
		return nil
	}

	res := &ast.Type{
		NonNull:  t.NonNull,
		Position: t.Position,
	}
	if t.Elem != nil {
		res.Elem = copyType(t.Elem, rename)
	} else {
		res.NamedType = rename(t.NamedType)
	}

	return res
}

func copyArguments(args ast.ArgumentDefinitionList, rename renameFunc) ast.ArgumentDefinitionList {
	if args == nil {
		return nil
	}

	res := make(ast.ArgumentDefinitionList, 0, len(args))
	for _, a := range args {
		res = append(res, &ast.ArgumentDefinition{
			Description:  a.Description,
			Name:         a.Name,
			DefaultValue: a.DefaultValue,
			Type:         copyType(a.Type, rename),
			Directives:   a.Directives,
			Position:     a.Position,
		})
	}

	return res
}

func copyFields(fields ast.FieldList, rename renameFunc) ast.FieldList {
	if fields == nil {
		return nil
	}

	res := make(ast.FieldList, 0, len(fields))
	for _, f := range fields {
		res = append(res, &ast.FieldDefinition{
			Description:  f.Description,
			Name:         f.Name,
			Arguments:    copyArguments(f.Arguments, rename),
			DefaultValue: f.DefaultValue,
			Type:         copyType(f.Type, rename),
			Directives:   f.Directives,
			Position:     f.Position,
		})
	}

	return res
}

func copyEnumValues(values ast.EnumValueList) ast.EnumValueList {
	if values == nil {
		return nil
	}

	res := make(ast.EnumValueList, 0, len(values))
	for _, v := range values {
		cpy := *v
		res = append(res, &cpy)
	}

	return res
}

// copyDefinition returns a deep enough copy of def which can be mutated by merge
func copyDefinition(def *ast.Definition, rename renameFunc) *ast.Definition {
	types := make([]string, 0, len(def.Types))
	for _, t := range def.Types {
		types = append(types, rename(t))
	}

	return &ast.Definition{
		Kind:        def.Kind,
		Description: def.Description,
		Name:        rename(def.Name),
		Directives:  def.Directives,
		Interfaces:  append([]string(nil), def.Interfaces...),
		Fields:      copyFields(def.Fields, rename),
		Types:       types,
		EnumValues:  copyEnumValues(def.EnumValues),
		Position:    def.Position,
	}
}

func copyDirectiveDefinition(d *ast.DirectiveDefinition, rename renameFunc) *ast.DirectiveDefinition {
	pos := d.Position
	if pos == nil || pos.Src == nil {
		// formatter reads Position.Src
		pos = &ast.Position{Src: &ast.Source{}}
	}

	return &ast.DirectiveDefinition{
		Description:  d.Description,
		Name:         d.Name,
		Arguments:    copyArguments(d.Arguments, rename),
		Locations:    append([]ast.DirectiveLocation(nil), d.Locations...),
		IsRepeatable: d.IsRepeatable,
		Position:     pos,
	}
}
