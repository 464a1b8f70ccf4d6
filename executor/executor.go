package executor

import (
	"context"

	"github.com/buildbuildio/mosaic/executable"
	"github.com/buildbuildio/mosaic/planner"
	"github.com/buildbuildio/mosaic/requests"

	"github.com/sirupsen/logrus"
	"github.com/vektah/gqlparser/v2/ast"
)

type ExecutionContext struct {
	QueryPlan *planner.QueryPlan
	Request   *requests.Request
	// Schema is the merged schema, used to answer introspection and to
	// check nullability of root fields
	Schema  *ast.Schema
	Schemas map[string]executable.Schema
	Logger  logrus.FieldLogger
}

type Executor interface {
	// Execute returns data of the operation. Error is a gqlerrors.ErrorList
	// and doesn't mean data is empty.
	Execute(context.Context, *ExecutionContext) (map[string]interface{}, error)
}
