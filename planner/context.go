package planner

import (
	"fmt"

	"github.com/buildbuildio/mosaic/common"
	"github.com/buildbuildio/mosaic/merger"
	"github.com/buildbuildio/mosaic/requests"

	"github.com/vektah/gqlparser/v2/ast"
)

// PlanningContext contains the necessary information used to plan a query.
type PlanningContext struct {
	Operation *ast.OperationDefinition
	Request   *requests.Request
	Schema    *ast.Schema
	Owners    merger.OwnerMap
}

// Variables returns request variables or nil when planning without request
func (pc *PlanningContext) Variables() map[string]interface{} {
	if pc.Request == nil {
		return nil
	}
	return pc.Request.Variables
}

// GetOwner returns name of the schema resolving fieldname of typename.
// Introspection fields belong to the gateway itself.
func (pc *PlanningContext) GetOwner(typename, fieldname string) (string, error) {
	if common.IsBuiltinName(fieldname) {
		return common.InternalServiceName, nil
	}

	owner, ok := pc.Owners.Owner(typename, fieldname)
	if !ok {
		return "", fmt.Errorf("could not find owner for field %s of type %s", fieldname, typename)
	}

	return owner, nil
}

// RootDefinition returns root type definition for the operation kind
func (pc *PlanningContext) RootDefinition() (*ast.Definition, error) {
	var def *ast.Definition
	switch pc.Operation.Operation {
	case ast.Mutation:
		def = pc.Schema.Mutation
	case ast.Subscription:
		def = pc.Schema.Subscription
	default:
		def = pc.Schema.Query
	}

	if def == nil {
		return nil, fmt.Errorf("schema does not support %s operations", pc.Operation.Operation)
	}

	return def, nil
}
