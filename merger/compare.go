package merger

import (
	"fmt"

	"github.com/buildbuildio/mosaic/common"

	"github.com/samber/lo"
	"github.com/vektah/gqlparser/v2/ast"
)

func valueString(v *ast.Value) string {
	if v == nil {
		return ""
	}
	return v.String()
}

func sameStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	left, right := lo.Uniq(a), lo.Uniq(b)
	if len(left) != len(right) {
		return false
	}
	return len(lo.Intersect(left, right)) == len(left)
}

// compareArguments returns reason of mismatch or empty string
func compareArguments(a, b ast.ArgumentDefinitionList) string {
	if len(a) != len(b) {
		return "arguments differ"
	}

	for _, arg := range a {
		other := b.ForName(arg.Name)
		if other == nil {
			return fmt.Sprintf("argument %s is not declared everywhere", arg.Name)
		}
		if arg.Type.String() != other.Type.String() {
			return fmt.Sprintf("argument %s has types %s and %s", arg.Name, arg.Type.String(), other.Type.String())
		}
		if valueString(arg.DefaultValue) != valueString(other.DefaultValue) {
			return fmt.Sprintf("argument %s has different default values", arg.Name)
		}
	}

	return ""
}

func userFields(fields ast.FieldList) ast.FieldList {
	return lo.Filter(fields, func(f *ast.FieldDefinition, _ int) bool {
		return !common.IsBuiltinName(f.Name)
	})
}

// compareDefinitions returns reason why a and b can't be unified or empty string
func compareDefinitions(a, b *ast.Definition) string {
	if a.Kind != b.Kind {
		return fmt.Sprintf("declared as %s and %s", a.Kind, b.Kind)
	}

	aFields, bFields := userFields(a.Fields), userFields(b.Fields)
	if len(aFields) != len(bFields) {
		return "fields differ"
	}

	for _, f := range aFields {
		other := bFields.ForName(f.Name)
		if other == nil {
			return fmt.Sprintf("field %s is not declared everywhere", f.Name)
		}
		if f.Type.String() != other.Type.String() {
			return fmt.Sprintf("field %s has types %s and %s", f.Name, f.Type.String(), other.Type.String())
		}
		if valueString(f.DefaultValue) != valueString(other.DefaultValue) {
			return fmt.Sprintf("field %s has different default values", f.Name)
		}
		if reason := compareArguments(f.Arguments, other.Arguments); reason != "" {
			return fmt.Sprintf("field %s: %s", f.Name, reason)
		}
	}

	enumNames := func(values ast.EnumValueList) []string {
		return lo.Map(values, func(v *ast.EnumValueDefinition, _ int) string { return v.Name })
	}

	if !sameStrings(enumNames(a.EnumValues), enumNames(b.EnumValues)) {
		return "enum values differ"
	}

	if !sameStrings(a.Types, b.Types) {
		return "union members differ"
	}

	if !sameStrings(a.Interfaces, b.Interfaces) {
		return "implemented interfaces differ"
	}

	return ""
}
