package introspection

import (
	"sort"
	"strings"

	"github.com/buildbuildio/mosaic/common"

	"github.com/vektah/gqlparser/v2/ast"
)

// Resolver answers __schema and __type root fields against a schema
// the gateway owns, f.e. the merged one.
type Resolver struct {
	Schema    *ast.Schema
	Variables map[string]interface{}
}

// IsIntrospectionField reports whether the root field is answered by Resolver
func IsIntrospectionField(name string) bool {
	return name == common.SchemaFieldName || name == common.TypeFieldName
}

// Resolve returns result for every __schema and __type field of selectionSet keyed by alias.
// Other fields are ignored.
func (ir *Resolver) Resolve(selectionSet ast.SelectionSet) map[string]interface{} {
	result := make(map[string]interface{})
	for _, f := range common.SelectionSetToFields(selectionSet, nil) {
		if !common.ShouldInclude(f.Directives, ir.Variables) {
			continue
		}
		switch f.Name {
		case common.TypeFieldName:
			name, _ := f.ArgumentMap(ir.Variables)["name"].(string)
			result[f.Alias] = ir.resolveType(&ast.Type{NamedType: name}, f.SelectionSet)
		case common.SchemaFieldName:
			result[f.Alias] = ir.resolveSchema(f.SelectionSet)
		}
	}

	return result
}

func (ir *Resolver) rootType(def *ast.Definition, selectionSet ast.SelectionSet) interface{} {
	if def == nil {
		return nil
	}
	return ir.resolveType(&ast.Type{NamedType: def.Name}, selectionSet)
}

func (ir *Resolver) resolveSchema(selectionSet ast.SelectionSet) map[string]interface{} {
	schema := ir.Schema
	result := make(map[string]interface{})

	for _, f := range common.SelectionSetToFields(selectionSet, nil) {
		switch f.Name {
		case common.TypenameFieldName:
			result[f.Alias] = "__Schema"
		case "description":
			result[f.Alias] = nil
		case "types":
			types := []map[string]interface{}{}
			for _, t := range schema.Types {
				types = append(types, ir.resolveType(&ast.Type{NamedType: t.Name}, f.SelectionSet))
			}
			sortPayload(types)
			result[f.Alias] = types
		case "queryType":
			result[f.Alias] = ir.rootType(schema.Query, f.SelectionSet)
		case "mutationType":
			result[f.Alias] = ir.rootType(schema.Mutation, f.SelectionSet)
		case "subscriptionType":
			result[f.Alias] = ir.rootType(schema.Subscription, f.SelectionSet)
		case "directives":
			directives := []map[string]interface{}{}
			for _, d := range schema.Directives {
				directives = append(directives, ir.resolveDirective(d, f.SelectionSet))
			}
			sortPayload(directives)
			result[f.Alias] = directives
		}
	}

	return result
}

func (ir *Resolver) resolveType(typ *ast.Type, selectionSet ast.SelectionSet) map[string]interface{} {
	if typ == nil {
		return nil
	}

	schema := ir.Schema

	result := make(map[string]interface{})

	// If the type is NON_NULL or LIST then use that first (in that order), then
	// recursively call in "ofType"

	if typ.NonNull {
		for _, f := range common.SelectionSetToFields(selectionSet, nil) {
			switch f.Name {
			case common.TypenameFieldName:
				result[f.Alias] = "__Type"
			case "kind":
				result[f.Alias] = "NON_NULL"
			case "ofType":
				result[f.Alias] = ir.resolveType(&ast.Type{
					NamedType: typ.NamedType,
					Elem:      typ.Elem,
					NonNull:   false,
				}, f.SelectionSet)
			default:
				result[f.Alias] = nil
			}
		}
		return result
	}

	if typ.Elem != nil {
		for _, f := range common.SelectionSetToFields(selectionSet, nil) {
			switch f.Name {
			case common.TypenameFieldName:
				result[f.Alias] = "__Type"
			case "kind":
				result[f.Alias] = "LIST"
			case "ofType":
				result[f.Alias] = ir.resolveType(typ.Elem, f.SelectionSet)
			default:
				result[f.Alias] = nil
			}
		}
		return result
	}

	namedType, ok := schema.Types[typ.NamedType]
	if !ok {
		return nil
	}

	for _, f := range common.SelectionSetToFields(selectionSet, nil) {
		switch f.Name {
		case common.TypenameFieldName:
			result[f.Alias] = "__Type"
		case "kind":
			result[f.Alias] = namedType.Kind
		case "name":
			result[f.Alias] = namedType.Name
		case "fields":
			if namedType.Kind != ast.Object && namedType.Kind != ast.Interface {
				result[f.Alias] = nil
				continue
			}
			includeDeprecated := false
			if deprecatedArg := f.Arguments.ForName("includeDeprecated"); deprecatedArg != nil {
				v, err := deprecatedArg.Value.Value(ir.Variables)
				if err == nil {
					includeDeprecated, _ = v.(bool)
				}
			}

			fields := []map[string]interface{}{}
			for _, fi := range namedType.Fields {
				if common.IsBuiltinName(fi.Name) {
					continue
				}
				if !includeDeprecated {
					if deprecated, _ := hasDeprecatedDirective(fi.Directives); deprecated {
						continue
					}
				}
				fields = append(fields, ir.resolveField(fi, f.SelectionSet))
			}
			result[f.Alias] = fields
		case "description":
			result[f.Alias] = namedType.Description
		case "interfaces":
			if namedType.Kind != ast.Object && namedType.Kind != ast.Interface {
				result[f.Alias] = nil
				continue
			}
			interfaces := []map[string]interface{}{}
			for _, i := range namedType.Interfaces {
				interfaces = append(interfaces, ir.resolveType(&ast.Type{NamedType: i}, f.SelectionSet))
			}
			result[f.Alias] = interfaces
		case "possibleTypes":
			if namedType.Kind != ast.Union && namedType.Kind != ast.Interface {
				result[f.Alias] = nil
				continue
			}
			types := []map[string]interface{}{}
			for _, t := range schema.GetPossibleTypes(namedType) {
				types = append(types, ir.resolveType(&ast.Type{NamedType: t.Name}, f.SelectionSet))
			}
			sortPayload(types)
			result[f.Alias] = types
		case "enumValues":
			if namedType.Kind != ast.Enum {
				result[f.Alias] = nil
				continue
			}
			includeDeprecated := false
			if deprecatedArg := f.Arguments.ForName("includeDeprecated"); deprecatedArg != nil {
				v, err := deprecatedArg.Value.Value(ir.Variables)
				if err == nil {
					includeDeprecated, _ = v.(bool)
				}
			}

			enums := []map[string]interface{}{}
			for _, e := range namedType.EnumValues {
				if !includeDeprecated {
					if deprecated, _ := hasDeprecatedDirective(e.Directives); deprecated {
						continue
					}
				}
				enums = append(enums, resolveEnumValue(e, f.SelectionSet))
			}
			result[f.Alias] = enums
		case "inputFields":
			if namedType.Kind != ast.InputObject {
				result[f.Alias] = nil
				continue
			}
			inputFields := []map[string]interface{}{}
			for _, fi := range namedType.Fields {
				// call resolveField instead of resolveInputValue because it has
				// the right type and is a superset of it
				inputFields = append(inputFields, ir.resolveField(fi, f.SelectionSet))
			}
			result[f.Alias] = inputFields
		default:
			result[f.Alias] = nil
		}
	}

	return result
}

func (ir *Resolver) resolveField(field *ast.FieldDefinition, selectionSet ast.SelectionSet) map[string]interface{} {
	result := make(map[string]interface{})

	deprecated, deprecatedReason := hasDeprecatedDirective(field.Directives)

	for _, f := range common.SelectionSetToFields(selectionSet, nil) {
		switch f.Name {
		case common.TypenameFieldName:
			result[f.Alias] = "__Field"
		case "name":
			result[f.Alias] = field.Name
		case "description":
			result[f.Alias] = field.Description
		case "args":
			args := []map[string]interface{}{}
			for _, arg := range field.Arguments {
				args = append(args, ir.resolveInputValue(arg, f.SelectionSet))
			}
			result[f.Alias] = args
		case "type":
			result[f.Alias] = ir.resolveType(field.Type, f.SelectionSet)
		case "defaultValue":
			if field.DefaultValue != nil {
				result[f.Alias] = field.DefaultValue.String()
			} else {
				result[f.Alias] = nil
			}
		case "isDeprecated":
			result[f.Alias] = deprecated
		case "deprecationReason":
			result[f.Alias] = deprecatedReason
		}
	}

	return result
}

func (ir *Resolver) resolveDirective(directive *ast.DirectiveDefinition, selectionSet ast.SelectionSet) map[string]interface{} {
	result := make(map[string]interface{})

	for _, f := range common.SelectionSetToFields(selectionSet, nil) {
		switch f.Name {
		case common.TypenameFieldName:
			result[f.Alias] = "__Directive"
		case "name":
			result[f.Alias] = directive.Name
		case "description":
			result[f.Alias] = directive.Description
		case "locations":
			result[f.Alias] = directive.Locations
		case "isRepeatable":
			result[f.Alias] = directive.IsRepeatable
		case "args":
			args := []map[string]interface{}{}
			for _, arg := range directive.Arguments {
				args = append(args, ir.resolveInputValue(arg, f.SelectionSet))
			}
			result[f.Alias] = args
		}
	}

	return result
}

func hasDeprecatedDirective(directives ast.DirectiveList) (bool, *string) {
	for _, d := range directives {
		if d.Name == "deprecated" {
			var reason string
			reasonArg := d.Arguments.ForName("reason")
			if reasonArg != nil {
				reason = reasonArg.Value.Raw
			}
			return true, &reason
		}
	}

	return false, nil
}

func (ir *Resolver) resolveInputValue(arg *ast.ArgumentDefinition, selectionSet ast.SelectionSet) map[string]interface{} {
	result := make(map[string]interface{})

	for _, f := range common.SelectionSetToFields(selectionSet, nil) {
		switch f.Name {
		case common.TypenameFieldName:
			result[f.Alias] = "__InputValue"
		case "name":
			result[f.Alias] = arg.Name
		case "description":
			result[f.Alias] = arg.Description
		case "type":
			result[f.Alias] = ir.resolveType(arg.Type, f.SelectionSet)
		case "defaultValue":
			if arg.DefaultValue != nil {
				result[f.Alias] = arg.DefaultValue.String()
			} else {
				result[f.Alias] = nil
			}
		}
	}

	return result
}

func resolveEnumValue(enum *ast.EnumValueDefinition, selectionSet ast.SelectionSet) map[string]interface{} {
	result := make(map[string]interface{})

	deprecated, deprecatedReason := hasDeprecatedDirective(enum.Directives)

	for _, f := range common.SelectionSetToFields(selectionSet, nil) {
		switch f.Name {
		case common.TypenameFieldName:
			result[f.Alias] = "__EnumValue"
		case "name":
			result[f.Alias] = enum.Name
		case "description":
			result[f.Alias] = enum.Description
		case "isDeprecated":
			result[f.Alias] = deprecated
		case "deprecationReason":
			result[f.Alias] = deprecatedReason
		}
	}

	return result
}

func sortPayload(payload []map[string]interface{}) {
	sort.SliceStable(payload, func(i, j int) bool {
		left, lok := payload[i]["name"].(string)
		right, rok := payload[j]["name"].(string)
		if !lok || !rok {
			return false
		}
		return strings.Compare(left, right) < 0
	})

}
