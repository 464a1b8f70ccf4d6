package executor

import (
	"context"
	"fmt"

	"github.com/buildbuildio/mosaic/common"
	"github.com/buildbuildio/mosaic/executable"
	"github.com/buildbuildio/mosaic/gqlerrors"
	"github.com/buildbuildio/mosaic/introspection"
	"github.com/buildbuildio/mosaic/planner"
	"github.com/buildbuildio/mosaic/requests"
	"github.com/buildbuildio/mosaic/tracing"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/vektah/gqlparser/v2/ast"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// RootExecutor sends every step of the plan to the schema owning it and
// stitches results together. Query steps run concurrently, mutation steps
// one after another in plan order.
type RootExecutor func(context.Context, *ExecutionContext) (map[string]interface{}, error)

type stepResult struct {
	index int
	resp  *requests.Response
	err   error
}

// Execute returns the result of the query plan
func (RootExecutor) Execute(ctx context.Context, ectx *ExecutionContext) (map[string]interface{}, error) {
	steps := ectx.QueryPlan.Steps

	var results []*stepResult
	if ectx.QueryPlan.Operation == ast.Mutation {
		for i := range steps {
			results = append(results, runStep(ctx, ectx, i))
		}
	} else {
		results, _ = common.AsyncMapReduce(
			lo.Range(len(steps)),
			make([]*stepResult, len(steps)),
			func(index int) (*stepResult, error) {
				return runStep(ctx, ectx, index), nil
			},
			func(acc []*stepResult, value *stepResult) []*stepResult {
				acc[value.index] = value
				return acc
			},
		)
	}

	data := make(map[string]interface{})
	var errs gqlerrors.ErrorList

	for i, res := range results {
		step := steps[i]
		keys := step.ResponseKeys()

		if res.err != nil {
			logger(ectx).WithError(res.err).WithField("owner", step.Owner).Debug("step failed")
			for _, key := range keys {
				data[key] = nil
				for _, err := range gqlerrors.FormatError(res.err) {
					errs = append(errs, err.WithPath(key))
				}
			}
			continue
		}

		errs = append(errs, res.resp.Errors...)
		for _, key := range keys {
			data[key] = res.resp.Data[key]
		}
	}

	if nullsData(ectx, data) {
		data = nil
	}

	if len(errs) == 0 {
		return data, nil
	}

	return data, errs
}

func runStep(ctx context.Context, ectx *ExecutionContext, index int) *stepResult {
	step := ectx.QueryPlan.Steps[index]
	res := &stepResult{index: index}

	if step.IsInternal() {
		res.resp = resolveInternal(ectx, step)
		return res
	}

	schema, ok := ectx.Schemas[step.Owner]
	if !ok {
		res.err = fmt.Errorf("no schema registered as %s", step.Owner)
		return res
	}

	ctx, span := tracing.StartSpan(ctx, "mosaic.step", attribute.String("mosaic.owner", step.Owner))
	defer span.End()

	resp, err := schema.Execute(ctx, executable.NewRequest(step.Operation, variables(ectx)))
	if err == nil && resp == nil {
		err = fmt.Errorf("%s returned no response", step.Owner)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	res.resp, res.err = resp, err
	return res
}

// resolveInternal answers introspection of the merged schema and root __typename
func resolveInternal(ectx *ExecutionContext, step *planner.QueryPlanStep) *requests.Response {
	ir := &introspection.Resolver{
		Schema:    ectx.Schema,
		Variables: variables(ectx),
	}

	data := ir.Resolve(step.Operation.SelectionSet)
	for _, f := range step.Fields {
		if f.Name == common.TypenameFieldName {
			data[planner.ResponseKey(f)] = ectx.QueryPlan.ParentType
		}
	}

	return &requests.Response{Data: data}
}

// nullsData reports whether a non-null root field is null, in which case
// null propagates to the whole data
func nullsData(ectx *ExecutionContext, data map[string]interface{}) bool {
	root := ectx.Schema.Types[ectx.QueryPlan.ParentType]
	if root == nil {
		return false
	}

	for _, f := range ectx.QueryPlan.Fields() {
		def := root.Fields.ForName(f.Name)
		if def == nil || !def.Type.NonNull {
			continue
		}
		if data[planner.ResponseKey(f)] == nil {
			return true
		}
	}

	return false
}

func variables(ectx *ExecutionContext) map[string]interface{} {
	if ectx.Request == nil {
		return nil
	}
	return ectx.Request.Variables
}

func logger(ectx *ExecutionContext) logrus.FieldLogger {
	if ectx.Logger == nil {
		return logrus.StandardLogger()
	}
	return ectx.Logger
}
