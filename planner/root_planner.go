package planner

import (
	"fmt"

	"github.com/buildbuildio/mosaic/common"
	"github.com/buildbuildio/mosaic/format"

	"github.com/vektah/gqlparser/v2/ast"
)

// RootPlanner groups root fields of an operation by the schema owning them.
// Nested selections are sent to the owner as they are, as every field reachable
// from a root field belongs to the same schema.
type RootPlanner struct{}

func (RootPlanner) Plan(ctx *PlanningContext) (*QueryPlan, error) {
	rootDef, err := ctx.RootDefinition()
	if err != nil {
		return nil, err
	}

	fields, err := rootFields(ctx, ctx.Operation.SelectionSet)
	if err != nil {
		return nil, err
	}

	plan := &QueryPlan{
		Operation:  ctx.Operation.Operation,
		ParentType: rootDef.Name,
	}

	// mutations must run in document order, so only consecutive fields of
	// one owner share a step
	serial := ctx.Operation.Operation == ast.Mutation

	stepByOwner := make(map[string]*QueryPlanStep)
	var last *QueryPlanStep
	for _, f := range fields {
		owner, err := ctx.GetOwner(rootDef.Name, f.Name)
		if err != nil {
			return nil, err
		}

		var step *QueryPlanStep
		if serial {
			if last != nil && last.Owner == owner {
				step = last
			}
		} else {
			step = stepByOwner[owner]
		}

		if step == nil {
			step = &QueryPlanStep{Owner: owner}
			stepByOwner[owner] = step
			plan.Steps = append(plan.Steps, step)
		}

		step.Fields = append(step.Fields, f)
		last = step
	}

	for _, step := range plan.Steps {
		selectionSet := make(ast.SelectionSet, len(step.Fields))
		for i, f := range step.Fields {
			selectionSet[i] = f
		}

		step.Operation = &format.Operation{
			Type:                ctx.Operation.Operation,
			Name:                ctx.Operation.Name,
			VariableDefinitions: ctx.Operation.VariableDefinitions,
			SelectionSet:        selectionSet,
		}
	}

	return plan, nil
}

// rootFields flattens fragments of root selection set. @skip and @include on
// root fields and fragments are evaluated here, so excluded fields never reach owners.
func rootFields(ctx *PlanningContext, selectionSet ast.SelectionSet) ([]*ast.Field, error) {
	var res []*ast.Field
	for _, selection := range selectionSet {
		switch s := selection.(type) {
		case *ast.Field:
			if !common.ShouldInclude(s.Directives, ctx.Variables()) {
				continue
			}
			res = append(res, s)
		case *ast.InlineFragment:
			if !common.ShouldInclude(s.Directives, ctx.Variables()) {
				continue
			}
			fields, err := rootFields(ctx, s.SelectionSet)
			if err != nil {
				return nil, err
			}
			res = append(res, fields...)
		case *ast.FragmentSpread:
			if !common.ShouldInclude(s.Directives, ctx.Variables()) {
				continue
			}
			if s.Definition == nil {
				return nil, fmt.Errorf("fragment %s has no definition", s.Name)
			}
			fields, err := rootFields(ctx, s.Definition.SelectionSet)
			if err != nil {
				return nil, err
			}
			res = append(res, fields...)
		}
	}

	return res, nil
}
