package planner

import (
	"encoding/json"

	"github.com/buildbuildio/mosaic/common"
	"github.com/buildbuildio/mosaic/format"

	"github.com/samber/lo"
	"github.com/vektah/gqlparser/v2/ast"
)

type Planner interface {
	Plan(*PlanningContext) (*QueryPlan, error)
}

// QueryPlan lists root field groups of an operation, one per owning schema
type QueryPlan struct {
	Operation ast.Operation
	// ParentType is the merged root type name, f.e. Query
	ParentType string
	Steps      []*QueryPlanStep
}

// Fields returns root fields of every step in plan order
func (qp *QueryPlan) Fields() []*ast.Field {
	var res []*ast.Field
	for _, s := range qp.Steps {
		res = append(res, s.Fields...)
	}
	return res
}

// QueryPlanStep is a group of root fields sent to a single schema in one request
type QueryPlanStep struct {
	Owner     string
	Fields    []*ast.Field
	Operation *format.Operation
}

// IsInternal reports whether the gateway resolves step itself
func (s *QueryPlanStep) IsInternal() bool {
	return s.Owner == common.InternalServiceName
}

// ResponseKeys returns keys under which step fields appear in response data
func (s *QueryPlanStep) ResponseKeys() []string {
	return lo.Uniq(lo.Map(s.Fields, func(f *ast.Field, _ int) string {
		return ResponseKey(f)
	}))
}

// MarshalJSON marshals the step the JSON
func (s *QueryPlanStep) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Owner        string
		SelectionSet string
		Variables    []string
	}{
		Owner:        s.Owner,
		SelectionSet: format.DebugFormatSelectionSet(s.Operation.SelectionSet),
		Variables: lo.Map(s.Operation.VariablesInUse(), func(def *ast.VariableDefinition, _ int) string {
			return def.Variable
		}),
	})
}

// ResponseKey returns alias of the field or its name if there's no alias
func ResponseKey(f *ast.Field) string {
	if f.Alias != "" {
		return f.Alias
	}
	return f.Name
}
