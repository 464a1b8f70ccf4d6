package merger

import (
	"errors"
	"fmt"
	"sort"

	"github.com/buildbuildio/mosaic/common"
	"github.com/buildbuildio/mosaic/executable"
	"github.com/buildbuildio/mosaic/gqlerrors"

	"github.com/samber/lo"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
)

type MergeResult struct {
	Schema *ast.Schema
	// Owners binds every root field to the name of the schema resolving it
	Owners OwnerMap
	// Schemas holds merged inputs by name
	Schemas map[string]executable.Schema
}

// Merger is an interface for structs that are capable of taking a list of schemas and returning something that resembles
// a "merge" of those schemas.
type Merger interface {
	Merge([]executable.Schema) (*MergeResult, error)
}

// MergerFunc unions root types field by field and unifies the rest of
// same named types when they're structurally identical.
type MergerFunc func([]executable.Schema) (*MergeResult, error)

func (m MergerFunc) Merge(inputs []executable.Schema) (*MergeResult, error) {
	return m(inputs)
}

// Merge is the default MergerFunc
var Merge MergerFunc = merge

type mergeState struct {
	types      map[string]*ast.Definition
	directives map[string]*ast.DirectiveDefinition
	// declaredBy lists schema names declaring a type or a directive
	declaredBy          map[string][]string
	directiveDeclaredBy map[string][]string
	owners              OwnerMap
}

func merge(inputs []executable.Schema) (*MergeResult, error) {
	if len(inputs) == 0 {
		return nil, errors.New("no schemas to merge")
	}

	state := &mergeState{
		types:               make(map[string]*ast.Definition),
		directives:          make(map[string]*ast.DirectiveDefinition),
		declaredBy:          make(map[string][]string),
		directiveDeclaredBy: make(map[string][]string),
		owners:              make(OwnerMap),
	}

	schemas := make(map[string]executable.Schema, len(inputs))

	for _, input := range inputs {
		if input.Schema() == nil {
			return nil, fmt.Errorf("schema %s is empty", input.Name())
		}
		if err := state.mergeSchema(input.Name(), input.Schema()); err != nil {
			return nil, err
		}
		schemas[input.Name()] = input
	}

	query, ok := state.types[common.QueryObjectName]
	if !ok || len(query.Fields) == 0 {
		return nil, errors.New("merged schema has no query fields")
	}

	schema := &ast.Schema{
		Types:      state.types,
		Directives: state.directives,
		Query:      query,
	}
	schema.Mutation = state.types[common.MutationObjectName]
	schema.Subscription = state.types[common.SubscriptionObjectName]

	// revalidate merged document
	merged, err := gqlparser.LoadSchema(&ast.Source{Name: "merged", Input: Print(schema)})
	if err != nil {
		return nil, err
	}

	return &MergeResult{
		Schema:  merged,
		Owners:  state.owners,
		Schemas: schemas,
	}, nil
}

// rootNames maps input root type names to canonical ones
func rootNames(schema *ast.Schema) map[string]string {
	res := make(map[string]string)
	if schema.Query != nil {
		res[schema.Query.Name] = common.QueryObjectName
	}
	if schema.Mutation != nil {
		res[schema.Mutation.Name] = common.MutationObjectName
	}
	if schema.Subscription != nil {
		res[schema.Subscription.Name] = common.SubscriptionObjectName
	}
	return res
}

func (s *mergeState) mergeSchema(name string, schema *ast.Schema) error {
	roots := rootNames(schema)
	rename := func(typename string) string {
		if canonical, ok := roots[typename]; ok {
			return canonical
		}
		return typename
	}

	// iterate in stable order so diagnostics don't depend on map ordering
	typeNames := lo.Keys(schema.Types)
	sort.Strings(typeNames)

	if err := checkRootReferences(name, schema, typeNames, roots); err != nil {
		return err
	}

	for _, typename := range typeNames {
		def := schema.Types[typename]
		if def.BuiltIn || common.IsBuiltinName(def.Name) {
			continue
		}

		def = copyDefinition(def, rename)

		if _, isRoot := roots[typename]; isRoot {
			if err := s.mergeRoot(name, def); err != nil {
				return err
			}
			continue
		}

		if err := s.mergeType(name, def); err != nil {
			return err
		}
	}

	directiveNames := lo.Keys(schema.Directives)
	sort.Strings(directiveNames)

	for _, directiveName := range directiveNames {
		d := schema.Directives[directiveName]
		if common.IsBuiltinDirective(d.Name) || (d.Position != nil && d.Position.Src != nil && d.Position.Src.BuiltIn) {
			continue
		}

		if err := s.mergeDirective(name, copyDirectiveDefinition(d, rename)); err != nil {
			return err
		}
	}

	return nil
}

// checkRootReferences rejects fields returning a root type. The merged root
// holds fields of every schema, so a selection below such a field could not be
// answered by its owner alone.
func checkRootReferences(owner string, schema *ast.Schema, typeNames []string, roots map[string]string) error {
	for _, typename := range typeNames {
		def := schema.Types[typename]
		if def.BuiltIn || common.IsBuiltinName(def.Name) {
			continue
		}
		if def.Kind != ast.Object && def.Kind != ast.Interface {
			continue
		}

		for _, f := range def.Fields {
			if common.IsBuiltinName(f.Name) {
				continue
			}
			if canonical, ok := roots[f.Type.Name()]; ok {
				typename := def.Name
				if root, isRoot := roots[def.Name]; isRoot {
					typename = root
				}
				return &gqlerrors.SchemaConflictError{
					TypeName:  typename,
					FieldName: f.Name,
					Owners:    []string{owner},
					Reason:    fmt.Sprintf("field returns root type %s, which is shared by every schema", canonical),
				}
			}
		}
	}
	return nil
}

func (s *mergeState) mergeRoot(owner string, def *ast.Definition) error {
	existing, ok := s.types[def.Name]
	if !ok {
		existing = &ast.Definition{
			Kind:        ast.Object,
			Name:        def.Name,
			Description: def.Description,
		}
		s.types[def.Name] = existing
	}

	if existing.Description == "" {
		existing.Description = def.Description
	}

	for _, f := range def.Fields {
		if common.IsBuiltinName(f.Name) {
			continue
		}

		if current, ok := s.owners.Owner(def.Name, f.Name); ok {
			return &gqlerrors.SchemaConflictError{
				TypeName:  def.Name,
				FieldName: f.Name,
				Owners:    []string{current, owner},
				Reason:    "root field is declared by more than one schema",
			}
		}

		existing.Fields = append(existing.Fields, f)
		s.owners.Set(def.Name, f.Name, owner)
	}

	return nil
}

func (s *mergeState) mergeType(owner string, def *ast.Definition) error {
	existing, ok := s.types[def.Name]
	if !ok {
		s.types[def.Name] = def
		s.declaredBy[def.Name] = []string{owner}
		return nil
	}

	if reason := compareDefinitions(existing, def); reason != "" {
		return &gqlerrors.SchemaConflictError{
			TypeName: def.Name,
			Owners:   append(lo.Uniq(s.declaredBy[def.Name]), owner),
			Reason:   reason,
		}
	}

	mergeDescriptions(existing, def)
	s.declaredBy[def.Name] = append(s.declaredBy[def.Name], owner)

	return nil
}

func (s *mergeState) mergeDirective(owner string, d *ast.DirectiveDefinition) error {
	existing, ok := s.directives[d.Name]
	if !ok {
		s.directives[d.Name] = d
		s.directiveDeclaredBy[d.Name] = []string{owner}
		return nil
	}

	if reason := compareArguments(existing.Arguments, d.Arguments); reason != "" {
		return &gqlerrors.SchemaConflictError{
			TypeName: "@" + d.Name,
			Owners:   append(lo.Uniq(s.directiveDeclaredBy[d.Name]), owner),
			Reason:   reason,
		}
	}

	for _, loc := range d.Locations {
		if !lo.Contains(existing.Locations, loc) {
			existing.Locations = append(existing.Locations, loc)
		}
	}
	existing.IsRepeatable = existing.IsRepeatable || d.IsRepeatable
	if existing.Description == "" {
		existing.Description = d.Description
	}
	s.directiveDeclaredBy[d.Name] = append(s.directiveDeclaredBy[d.Name], owner)

	return nil
}

func mergeDescriptions(dst, src *ast.Definition) {
	if dst.Description == "" {
		dst.Description = src.Description
	}

	for _, f := range dst.Fields {
		if f.Description != "" {
			continue
		}
		if other := src.Fields.ForName(f.Name); other != nil {
			f.Description = other.Description
		}
	}

	for _, v := range dst.EnumValues {
		if v.Description != "" {
			continue
		}
		if other := src.EnumValues.ForName(v.Name); other != nil {
			v.Description = other.Description
		}
	}
}
