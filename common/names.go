package common

import (
	"strings"

	"github.com/vektah/gqlparser/v2/parser"
	"github.com/vektah/gqlparser/v2/validator"
)

const (
	QueryObjectName        = "Query"
	MutationObjectName     = "Mutation"
	SubscriptionObjectName = "Subscription"

	TypenameFieldName = "__typename"
	SchemaFieldName   = "__schema"
	TypeFieldName     = "__type"

	// InternalServiceName is the owner of fields resolved by the gateway itself,
	// f.e. introspection of merged schema
	InternalServiceName = "__internal__"
)

// IsBuiltinName reports whether name is reserved by graphql introspection
func IsBuiltinName(name string) bool {
	return strings.HasPrefix(name, "__")
}

// IsBuiltinScalar reports whether typename is one of scalars every schema has
func IsBuiltinScalar(typename string) bool {
	switch typename {
	case "ID", "Int", "Float", "String", "Boolean":
		return true
	}
	return false
}

var builtinDirectives = func() map[string]struct{} {
	res := map[string]struct{}{
		"skip":        {},
		"include":     {},
		"deprecated":  {},
		"specifiedBy": {},
	}

	// prelude of newer gqlparser versions declares more of them
	doc, _ := parser.ParseSchema(validator.Prelude)
	if doc != nil {
		for _, d := range doc.Directives {
			res[d.Name] = struct{}{}
		}
	}

	return res
}()

// IsBuiltinDirective reports whether directive is declared by gqlparser itself
func IsBuiltinDirective(name string) bool {
	_, ok := builtinDirectives[name]
	return ok
}
