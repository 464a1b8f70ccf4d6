package introspection

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/buildbuildio/mosaic/common"
	"github.com/buildbuildio/mosaic/gqlerrors"
	"github.com/buildbuildio/mosaic/queryer"
	"github.com/buildbuildio/mosaic/requests"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/formatter"
	"github.com/vektah/gqlparser/v2/parser"
)

var introspectionQueryName = "IntrospectionQuery"

// Introspect runs the standard introspection query against the service behind q
// and rebuilds its schema. Every failure is reported as *gqlerrors.IntrospectionError.
func Introspect(ctx context.Context, q queryer.Queryer) (*ast.Schema, error) {
	schema, err := introspect(ctx, q)
	if err != nil {
		var ierr *gqlerrors.IntrospectionError
		if errors.As(err, &ierr) {
			return nil, err
		}
		return nil, &gqlerrors.IntrospectionError{Endpoint: q.URL(), Err: err}
	}
	return schema, nil
}

func introspect(ctx context.Context, q queryer.Queryer) (*ast.Schema, error) {
	resp, err := q.Query(ctx, []*requests.Request{{
		Query:         introspectionQuery,
		OperationName: &introspectionQueryName,
	}})
	if err != nil {
		return nil, err
	}

	res, err := parseQueryerResponse(resp)
	if err != nil {
		return nil, err
	}

	remoteSchema := res.Schema

	if remoteSchema == nil || remoteSchema.QueryType.Name == "" {
		return nil, errors.New("could not find the root query")
	}

	schema := &ast.Schema{
		Types:         map[string]*ast.Definition{},
		Directives:    map[string]*ast.DirectiveDefinition{},
		PossibleTypes: map[string][]*ast.Definition{},
		Implements:    map[string][]*ast.Definition{},
	}

	for _, remoteType := range remoteSchema.Types {
		// convert turn the API payload into a schema type
		schemaType := parseType(remoteType)
		if schemaType == nil {
			continue
		}

		// check if this type is the QueryType
		if remoteType.Name == remoteSchema.QueryType.Name {
			schema.Query = schemaType
		} else if remoteSchema.MutationType != nil && schemaType.Name == remoteSchema.MutationType.Name {
			schema.Mutation = schemaType
		} else if remoteSchema.SubscriptionType != nil && schemaType.Name == remoteSchema.SubscriptionType.Name {
			schema.Subscription = schemaType
		}

		// register the type with the schema
		schema.Types[schemaType.Name] = schemaType

		// make sure we record that a type implements itself
		schema.AddImplements(remoteType.Name, schemaType)
	}

	if schema.Query == nil {
		return nil, fmt.Errorf("root query type %s is not declared", remoteSchema.QueryType.Name)
	}

	for _, remoteType := range remoteSchema.Types {
		schemaType := schema.Types[remoteType.Name]
		if schemaType == nil {
			continue
		}

		// each union value needs to be added to the list
		for _, possibleType := range remoteType.PossibleTypes {
			if possibleType.Name == "" {
				return nil, errors.New("could not find type's name")
			}

			if schemaType.Kind == ast.Union {
				schemaType.Types = append(schemaType.Types, possibleType.Name)
			}

			possibleTypeDef, ok := schema.Types[possibleType.Name]
			if !ok {
				return nil, fmt.Errorf("could not find type definition for %s", possibleType.Name)
			}

			schema.AddPossibleType(remoteType.Name, possibleTypeDef)
			schema.AddImplements(possibleType.Name, schemaType)
		}

		// each interface value needs to be added to the list
		for _, iface := range remoteType.Interfaces {
			if iface.Name == "" {
				return nil, errors.New("could not find type's name")
			}

			schemaType.Interfaces = append(schemaType.Interfaces, iface.Name)

			ifaceDef, ok := schema.Types[iface.Name]
			if !ok {
				return nil, fmt.Errorf("could not find type definition for interface %s", iface.Name)
			}

			schema.AddPossibleType(ifaceDef.Name, schemaType)
			schema.AddImplements(schemaType.Name, ifaceDef)
		}
	}

	for _, directive := range remoteSchema.Directives {
		if directive.Name == "" {
			return nil, errors.New("could not find directive's name")
		}
		// builtin, gqlparser declares them itself
		if common.IsBuiltinDirective(directive.Name) {
			continue
		}

		var locations []ast.DirectiveLocation
		for _, value := range directive.Locations {
			locations = append(locations, ast.DirectiveLocation(value))
		}

		schema.Directives[directive.Name] = &ast.DirectiveDefinition{
			// formatter reads Position.Src
			Position:    &ast.Position{Src: &ast.Source{}},
			Name:        directive.Name,
			Description: directive.Description,
			Arguments:   parseArgList(directive.Args),
			Locations:   locations,
		}
	}

	schemaStr := formatSchema(schema)

	formattedSchema, gerr := gqlparser.LoadSchema(&ast.Source{Name: q.URL(), Input: schemaStr})
	if gerr != nil {
		return nil, gerr
	}

	return formattedSchema, nil
}

func formatSchema(schema *ast.Schema) string {
	buf := bytes.NewBufferString("")
	f := formatter.NewFormatter(buf)
	f.FormatSchema(schema)
	return buf.String()
}

func parseType(remoteType typePayload) *ast.Definition {
	// skip builtin stuff, it'll be lately added by gqlparser
	if common.IsBuiltinScalar(remoteType.Name) || common.IsBuiltinName(remoteType.Name) {
		return nil
	}

	definition := &ast.Definition{
		Name:        remoteType.Name,
		Description: remoteType.Description,
	}

	switch remoteType.Kind {
	case "OBJECT":
		definition.Kind = ast.Object
	case "SCALAR":
		definition.Kind = ast.Scalar
	case "INTERFACE":
		definition.Kind = ast.Interface
	case "UNION":
		definition.Kind = ast.Union
	case "INPUT_OBJECT":
		definition.Kind = ast.InputObject
	case "ENUM":
		definition.Kind = ast.Enum

		for _, value := range remoteType.EnumValues {
			definition.EnumValues = append(definition.EnumValues, &ast.EnumValueDefinition{
				Name:        value.Name,
				Description: value.Description,
				Directives:  deprecatedDirective(value.IsDeprecated, value.DeprecationReason),
			})
		}
	}

	// build up a list of fields associated with the type
	var fields ast.FieldList

	for _, field := range remoteType.Fields {
		// add the field to the list
		fields = append(fields, &ast.FieldDefinition{
			Name:        field.Name,
			Type:        parseTypeRef(&field.Type),
			Description: field.Description,
			Arguments:   parseArgList(field.Args),
			Directives:  deprecatedDirective(field.IsDeprecated, field.DeprecationReason),
		})
	}

	for _, field := range remoteType.InputFields {
		// add the field to the list
		fields = append(fields, parseInputField(field))
	}

	definition.Fields = fields

	return definition
}

func deprecatedDirective(deprecated bool, reason string) ast.DirectiveList {
	if !deprecated {
		return nil
	}

	d := &ast.Directive{Name: "deprecated"}
	if reason != "" {
		d.Arguments = ast.ArgumentList{{
			Name:  "reason",
			Value: &ast.Value{Kind: ast.StringValue, Raw: reason},
		}}
	}

	return ast.DirectiveList{d}
}

func parseInputField(field inputValuePayload) *ast.FieldDefinition {
	fd := &ast.FieldDefinition{
		Name:        field.Name,
		Type:        parseTypeRef(&field.Type),
		Description: field.Description,
	}
	fd.DefaultValue = parseDefaultValue(fd.Type, field.DefaultValue)

	return fd
}

// parseDefaultLiteral parses graphql value literal of type typ
func parseDefaultLiteral(typ *ast.Type, literal string) *ast.Value {
	doc, err := parser.ParseSchema(&ast.Source{
		Input: fmt.Sprintf("input DefaultValue { value: %s = %s }", typ.String(), literal),
	})
	if err != nil || doc == nil || len(doc.Definitions) != 1 || len(doc.Definitions[0].Fields) != 1 {
		return nil
	}

	return doc.Definitions[0].Fields[0].DefaultValue
}

// parseDefaultValue accepts both graphql literals (as introspection defines
// defaultValue) and plain json values some services return.
func parseDefaultValue(typ *ast.Type, defaultValue interface{}) *ast.Value {
	if defaultValue == nil {
		return nil
	}

	if literal, ok := defaultValue.(string); ok {
		named := typ.Name()
		isStringLike := named == "String" || named == "ID"
		if !isStringLike || strings.HasPrefix(literal, `"`) || strings.HasPrefix(literal, "[") {
			if v := parseDefaultLiteral(typ, literal); v != nil {
				return v
			}
		}
	}

	bRaw, err := json.Marshal(defaultValue)
	if err != nil {
		return nil
	}

	var vKind ast.ValueKind

	switch typ.Name() {
	case "Int":
		vKind = ast.IntValue
	case "Float":
		vKind = ast.FloatValue
	case "Boolean":
		vKind = ast.BooleanValue
	default:
		vKind = ast.StringValue
	}

	if typ.Elem != nil {
		arr, ok := defaultValue.([]interface{})
		if !ok {
			return nil
		}

		var children ast.ChildValueList

		for _, el := range arr {
			elRaw, err := json.Marshal(el)
			if err != nil {
				return nil
			}
			if vKind == ast.StringValue && len(elRaw) > 2 {
				// stash additional "" after json marshalling
				elRaw = elRaw[1 : len(elRaw)-1]
			}

			children = append(children, &ast.ChildValue{
				Value: &ast.Value{
					Position: &ast.Position{},
					Raw:      string(elRaw),
					Kind:     vKind,
				},
			})
		}

		return &ast.Value{
			Position: &ast.Position{},
			Kind:     ast.ListValue,
			Children: children,
		}
	}

	if vKind == ast.StringValue && len(bRaw) > 2 {
		// stash additional "" after json marshalling
		bRaw = bRaw[1 : len(bRaw)-1]
	}

	return &ast.Value{
		Position: &ast.Position{},
		Raw:      string(bRaw),
		Kind:     vKind,
	}
}

func parseArgList(args []inputValuePayload) ast.ArgumentDefinitionList {
	result := ast.ArgumentDefinitionList{}

	// we need to add each argument to the field
	for _, argument := range args {
		typ := parseTypeRef(&argument.Type)
		result = append(result, &ast.ArgumentDefinition{
			Name:         argument.Name,
			Description:  argument.Description,
			Type:         typ,
			DefaultValue: parseDefaultValue(typ, argument.DefaultValue),
		})
	}

	return result
}

// parseTypeRef unwraps NON_NULL and LIST wrappers down to the named type
func parseTypeRef(ref *typeRefPayload) *ast.Type {
	switch ref.Kind {
	case "NON_NULL":
		if ref.OfType == nil {
			return ast.NonNullNamedType(ref.Name, &ast.Position{})
		}
		t := parseTypeRef(ref.OfType)
		t.NonNull = true
		return t
	case "LIST":
		if ref.OfType == nil {
			return ast.ListType(ast.NamedType(ref.Name, &ast.Position{}), &ast.Position{})
		}
		return ast.ListType(parseTypeRef(ref.OfType), &ast.Position{})
	default:
		return ast.NamedType(ref.Name, &ast.Position{})
	}
}

func parseQueryerResponse(resp []*requests.Response) (*introspectionResult, error) {
	if len(resp) != 1 {
		return nil, errors.New("wrong response length")
	}

	if len(resp[0].Errors) > 0 {
		return nil, resp[0].Errors
	}

	tmp, err := json.Marshal(resp[0].Data)
	if err != nil {
		return nil, err
	}

	var qRes *introspectionResult
	if err := json.Unmarshal(tmp, &qRes); err != nil {
		return nil, err
	}

	if qRes == nil {
		return nil, errors.New("introspection response has no data")
	}

	return qRes, nil
}

var introspectionQuery = fmt.Sprintf(`
query %s {
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
}
`, introspectionQueryName)
