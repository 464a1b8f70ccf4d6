package local

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/buildbuildio/mosaic/common"
	"github.com/buildbuildio/mosaic/gqlerrors"

	"github.com/graphql-go/graphql"
	"github.com/sirupsen/logrus"
	"github.com/vektah/gqlparser/v2/ast"
)

// builder turns a parsed schema into a graphql-go one, binding every object
// field to its resolver from the table
type builder struct {
	schema    *ast.Schema
	resolvers resolverTable
	logger    logrus.FieldLogger

	types map[string]graphql.Type
	errs  []error
}

func buildExecutable(schema *ast.Schema, resolvers resolverTable, logger logrus.FieldLogger) (graphql.Schema, error) {
	b := &builder{
		schema:    schema,
		resolvers: resolvers,
		logger:    logger,
		types:     make(map[string]graphql.Type),
	}

	conf := graphql.SchemaConfig{Query: b.object(schema.Query)}
	if schema.Mutation != nil {
		conf.Mutation = b.object(schema.Mutation)
	}
	if schema.Subscription != nil {
		conf.Subscription = b.object(schema.Subscription)
	}

	// field thunks run inside NewSchema, so b.errs is complete only after it
	res, err := graphql.NewSchema(conf)
	if len(b.errs) > 0 {
		return res, errors.Join(b.errs...)
	}

	return res, err
}

func (b *builder) object(def *ast.Definition) *graphql.Object {
	if t, ok := b.types[def.Name].(*graphql.Object); ok {
		return t
	}

	obj := graphql.NewObject(graphql.ObjectConfig{
		Name:        def.Name,
		Description: def.Description,
		Fields: graphql.FieldsThunk(func() graphql.Fields {
			return b.fields(def)
		}),
	})
	b.types[def.Name] = obj

	return obj
}

func (b *builder) fields(def *ast.Definition) graphql.Fields {
	res := graphql.Fields{}

	for _, f := range def.Fields {
		if common.IsBuiltinName(f.Name) {
			continue
		}

		coordinate := Coordinate{Type: def.Name, Field: f.Name}

		typ, err := b.typeOf(f.Type)
		if err != nil {
			b.errs = append(b.errs, fmt.Errorf("%s: %w", coordinate, err))
			continue
		}
		out, ok := typ.(graphql.Output)
		if !ok {
			b.errs = append(b.errs, fmt.Errorf("%s: %s is not an output type", coordinate, f.Type.Name()))
			continue
		}

		fn, ok := b.resolvers[coordinate]
		if !ok {
			b.errs = append(b.errs, fmt.Errorf("no resolver for %s", coordinate))
			continue
		}

		res[f.Name] = &graphql.Field{
			Name:              f.Name,
			Description:       f.Description,
			Type:              out,
			Args:              b.arguments(coordinate, f.Arguments),
			Resolve:           b.resolve(coordinate, fn),
			DeprecationReason: deprecationReason(f),
		}
	}

	return res
}

func (b *builder) arguments(coordinate Coordinate, defs ast.ArgumentDefinitionList) graphql.FieldConfigArgument {
	if len(defs) == 0 {
		return nil
	}

	res := graphql.FieldConfigArgument{}
	for _, arg := range defs {
		typ, err := b.typeOf(arg.Type)
		if err != nil {
			b.errs = append(b.errs, fmt.Errorf("%s(%s): %w", coordinate, arg.Name, err))
			continue
		}
		in, ok := typ.(graphql.Input)
		if !ok {
			b.errs = append(b.errs, fmt.Errorf("%s(%s): %s is not an input type", coordinate, arg.Name, arg.Type.Name()))
			continue
		}

		conf := &graphql.ArgumentConfig{
			Type:        in,
			Description: arg.Description,
		}
		if arg.DefaultValue != nil {
			v, err := arg.DefaultValue.Value(nil)
			if err != nil {
				b.errs = append(b.errs, fmt.Errorf("%s(%s): %w", coordinate, arg.Name, err))
				continue
			}
			conf.DefaultValue = v
		}
		res[arg.Name] = conf
	}

	return res
}

func (b *builder) typeOf(t *ast.Type) (graphql.Type, error) {
	var (
		res graphql.Type
		err error
	)
	if t.Elem != nil {
		var elem graphql.Type
		if elem, err = b.typeOf(t.Elem); err != nil {
			return nil, err
		}
		res = graphql.NewList(elem)
	} else if res, err = b.named(t.NamedType); err != nil {
		return nil, err
	}

	if t.NonNull {
		return graphql.NewNonNull(res), nil
	}

	return res, nil
}

func (b *builder) named(name string) (graphql.Type, error) {
	switch name {
	case "Int":
		return graphql.Int, nil
	case "Float":
		return graphql.Float, nil
	case "String":
		return graphql.String, nil
	case "Boolean":
		return graphql.Boolean, nil
	case "ID":
		return graphql.ID, nil
	}

	if t, ok := b.types[name]; ok {
		return t, nil
	}

	def := b.schema.Types[name]
	if def == nil {
		return nil, fmt.Errorf("unknown type %s", name)
	}

	switch def.Kind {
	case ast.Object:
		return b.object(def), nil
	case ast.Enum:
		values := graphql.EnumValueConfigMap{}
		for _, v := range def.EnumValues {
			values[v.Name] = &graphql.EnumValueConfig{
				Value:       v.Name,
				Description: v.Description,
			}
		}
		enum := graphql.NewEnum(graphql.EnumConfig{
			Name:        def.Name,
			Description: def.Description,
			Values:      values,
		})
		b.types[name] = enum
		return enum, nil
	default:
		return nil, fmt.Errorf("%s %s is not supported by local schema", strings.ToLower(string(def.Kind)), name)
	}
}

func (b *builder) resolve(coordinate Coordinate, fn ResolverFunc) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		res, err := fn(p.Context, ResolveParams{
			Source: p.Source,
			Args:   p.Args,
		})
		if err != nil {
			b.logger.WithError(err).WithField("field", coordinate.String()).Debug("resolver failed")
			if errs, ok := p.Context.Value(fieldErrorsKey{}).(*fieldErrors); ok && p.Info.Path != nil {
				errs.add(p.Info.Path.AsArray(), err)
			}
			return nil, err
		}
		return res, nil
	}
}

func deprecationReason(f *ast.FieldDefinition) string {
	d := f.Directives.ForName("deprecated")
	if d == nil {
		return ""
	}
	if arg := d.Arguments.ForName("reason"); arg != nil && arg.Value != nil {
		return arg.Value.Raw
	}
	return "No longer supported"
}

type fieldErrorsKey struct{}

// fieldErrors keeps resolver errors of one execution by response path, so
// their codes survive graphql-go's error formatting
type fieldErrors struct {
	mu     sync.Mutex
	byPath map[string]error
}

func newFieldErrors() *fieldErrors {
	return &fieldErrors{byPath: make(map[string]error)}
}

func (e *fieldErrors) add(path []interface{}, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.byPath[fmt.Sprint(path)] = err
}

func (e *fieldErrors) get(path []interface{}) (error, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	err, ok := e.byPath[fmt.Sprint(path)]
	return err, ok
}

func (e *fieldErrors) withContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, fieldErrorsKey{}, e)
}

// format converts an error reported by graphql-go into ours. Resolver errors
// keep their code, the rest are validation errors when nothing was executed
// and UndefinedError otherwise.
func (e *fieldErrors) format(message string, path []interface{}, locations []gqlerrors.Location, executed bool) gqlerrors.ErrorList {
	if len(path) > 0 {
		if err, ok := e.get(path); ok {
			res := gqlerrors.FormatError(err)
			for i, gerr := range res {
				res[i] = gerr.WithPath(path...)
				res[i].Locations = locations
			}
			return res
		}
	}

	code := gqlerrors.UndefinedError
	if !executed && len(path) == 0 {
		code = gqlerrors.ValidationFailedError
	}

	gerr := gqlerrors.NewError(code, errors.New(message))
	gerr.Path = path
	gerr.Locations = locations

	return gqlerrors.ErrorList{gerr}
}
