package format

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"
)

// Formatter prints selection sets as a graphql document which can be sent to
// the owning service as is.
type Formatter interface {
	FormatSelectionSet(sets ast.SelectionSet)
}

func NewFormatter(w io.Writer) Formatter {
	return &formatter{
		indent: "\t",
		writer: w,
	}
}

type formatter struct {
	writer io.Writer

	indent     string
	indentSize int

	padNext  bool
	lineHead bool
}

func (f *formatter) writeString(s string) {
	_, _ = f.writer.Write([]byte(s))
}

func (f *formatter) writeIndent() *formatter {
	if f.lineHead {
		f.writeString(strings.Repeat(f.indent, f.indentSize))
	}
	f.lineHead = false
	f.padNext = false

	return f
}

func (f *formatter) WriteNewline() *formatter {
	f.writeString("\n")
	f.lineHead = true
	f.padNext = false

	return f
}

func (f *formatter) WriteWord(word string) *formatter {
	if f.lineHead {
		f.writeIndent()
	}
	if f.padNext {
		f.writeString(" ")
	}
	f.writeString(strings.TrimSpace(word))
	f.padNext = true

	return f
}

func (f *formatter) WriteString(s string) *formatter {
	if f.lineHead {
		f.writeIndent()
	}
	if f.padNext {
		f.writeString(" ")
	}
	f.writeString(s)
	f.padNext = false

	return f
}

func (f *formatter) IncrementIndent() {
	f.indentSize++
}

func (f *formatter) DecrementIndent() {
	f.indentSize--
}

func (f *formatter) NoPadding() *formatter {
	f.padNext = false

	return f
}

func (f *formatter) NeedPadding() *formatter {
	f.padNext = true

	return f
}

func (f *formatter) FormatDirectiveList(lists ast.DirectiveList) {
	for _, dir := range lists {
		f.FormatDirective(dir)
	}
}

func (f *formatter) FormatDirective(dir *ast.Directive) {
	f.WriteString("@").NoPadding().WriteWord(dir.Name)
	f.FormatArgumentList(dir.Arguments)
}

func (f *formatter) FormatArgumentList(lists ast.ArgumentList) {
	if len(lists) == 0 {
		return
	}
	f.NoPadding().WriteString("(")
	for idx, arg := range lists {
		f.FormatArgument(arg)

		if idx != len(lists)-1 {
			f.NoPadding().WriteWord(",")
		}
	}
	f.WriteString(")").NeedPadding()
}

func (f *formatter) FormatArgument(arg *ast.Argument) {
	f.WriteWord(arg.Name).NoPadding().WriteString(":").NeedPadding()
	f.WriteString(arg.Value.String())
}

func (f *formatter) FormatVariableDefinitionList(lists ast.VariableDefinitionList) {
	if len(lists) == 0 {
		return
	}
	f.WriteString("(")
	for idx, def := range lists {
		f.WriteWord("$" + def.Variable).NoPadding().WriteString(":").NeedPadding()
		f.WriteString(def.Type.String())
		if def.DefaultValue != nil {
			f.NeedPadding().WriteString("=").NeedPadding().WriteString(def.DefaultValue.String())
		}

		if idx != len(lists)-1 {
			f.NoPadding().WriteWord(",")
		}
	}
	f.WriteString(")").NeedPadding()
}

func (f *formatter) FormatSelectionSet(sets ast.SelectionSet) {
	if len(sets) == 0 {
		return
	}

	f.WriteString("{").WriteNewline()
	f.IncrementIndent()

	for _, sel := range sets {
		f.FormatSelection(sel)
	}

	f.DecrementIndent()
	f.WriteString("}")
}

func (f *formatter) FormatSelection(selection ast.Selection) {
	switch v := selection.(type) {
	case *ast.Field:
		f.FormatField(v)

	case *ast.FragmentSpread:
		f.FormatFragmentSpread(v)

	case *ast.InlineFragment:
		f.FormatInlineFragment(v)

	default:
		panic(fmt.Errorf("unknown Selection type: %T", selection))
	}

	f.WriteNewline()
}

func (f *formatter) FormatField(field *ast.Field) {
	if field.Alias != "" && field.Alias != field.Name {
		f.WriteWord(field.Alias).NoPadding().WriteString(":").NeedPadding()
	}
	f.WriteWord(field.Name)

	if len(field.Arguments) != 0 {
		f.NoPadding()
		f.FormatArgumentList(field.Arguments)
		f.NeedPadding()
	}

	f.FormatDirectiveList(field.Directives)

	f.FormatSelectionSet(field.SelectionSet)
}

// FormatFragmentSpread inlines fragment definition, so document stays self-contained
func (f *formatter) FormatFragmentSpread(spread *ast.FragmentSpread) {
	f.WriteWord("...")
	if spread.Definition == nil {
		panic(fmt.Errorf("fragment %s has no definition", spread.Name))
	}
	if spread.Definition.TypeCondition != "" {
		f.WriteWord("on").WriteWord(spread.Definition.TypeCondition)
	}

	f.FormatDirectiveList(spread.Directives)

	f.FormatSelectionSet(spread.Definition.SelectionSet)
}

func (f *formatter) FormatInlineFragment(inline *ast.InlineFragment) {
	f.WriteWord("...")
	if inline.TypeCondition != "" {
		f.WriteWord("on").WriteWord(inline.TypeCondition)
	}

	f.FormatDirectiveList(inline.Directives)

	f.FormatSelectionSet(inline.SelectionSet)
}

// Operation describes a standalone document built out of a part of original operation
type Operation struct {
	Type                ast.Operation
	Name                string
	VariableDefinitions ast.VariableDefinitionList
	SelectionSet        ast.SelectionSet
}

// VariablesInUse returns variable definitions referenced by the selection set
func (op *Operation) VariablesInUse() ast.VariableDefinitionList {
	used := make(map[string]struct{})
	walkVariables(op.SelectionSet, used)

	var defs ast.VariableDefinitionList
	for _, def := range op.VariableDefinitions {
		if _, ok := used[def.Variable]; ok {
			defs = append(defs, def)
		}
	}

	return defs
}

// FormatOperation renders op keeping only variable definitions which are referenced
// in its selection set.
func FormatOperation(op *Operation) string {
	defs := op.VariablesInUse()

	buf := bytes.NewBufferString("")
	f := &formatter{indent: "\t", writer: buf}

	opType := op.Type
	if opType == "" {
		opType = ast.Query
	}

	if opType != ast.Query || op.Name != "" || len(defs) != 0 {
		f.WriteWord(string(opType))
		if op.Name != "" {
			f.WriteWord(op.Name).NoPadding()
		}
		f.FormatVariableDefinitionList(defs)
		f.NeedPadding()
	}

	f.FormatSelectionSet(op.SelectionSet)

	return buf.String()
}

// DebugFormatSelectionSet returns single line representation of selection set
func DebugFormatSelectionSet(s ast.SelectionSet) string {
	return compact(FormatOperation(&Operation{SelectionSet: s}))
}

var space = regexp.MustCompile(`\s+`)

func compact(v string) string {
	v = strings.ReplaceAll(v, "\t", " ")
	v = strings.ReplaceAll(v, "\n", " ")
	return strings.TrimSpace(space.ReplaceAllString(v, " "))
}

func walkVariables(s ast.SelectionSet, acc map[string]struct{}) {
	for _, sel := range s {
		switch sel := sel.(type) {
		case *ast.Field:
			for _, a := range sel.Arguments {
				walkValue(a.Value, acc)
			}
			walkDirectives(sel.Directives, acc)
			walkVariables(sel.SelectionSet, acc)
		case *ast.InlineFragment:
			walkDirectives(sel.Directives, acc)
			walkVariables(sel.SelectionSet, acc)
		case *ast.FragmentSpread:
			walkDirectives(sel.Directives, acc)
			if sel.Definition != nil {
				walkVariables(sel.Definition.SelectionSet, acc)
			}
		}
	}
}

func walkDirectives(directives ast.DirectiveList, acc map[string]struct{}) {
	for _, d := range directives {
		for _, a := range d.Arguments {
			walkValue(a.Value, acc)
		}
	}
}

func walkValue(v *ast.Value, acc map[string]struct{}) {
	if v == nil {
		return
	}
	if v.Kind == ast.Variable {
		acc[v.Raw] = struct{}{}
		return
	}
	for _, child := range v.Children {
		walkValue(child.Value, acc)
	}
}
