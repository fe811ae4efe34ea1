package gql

import (
	"errors"
	"fmt"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
)

// ErrInvalidDocument is returned when a query document uses constructs the
// REST executor cannot run
var ErrInvalidDocument = errors.New("invalid query document")

const (
	directiveRest   = "rest"
	directiveExport = "export"

	defaultMethod = "GET"
)

// Document is a parsed query document
type Document struct {
	source     string
	operations []*Operation
}

// Operation is one named query in a document
type Operation struct {
	Name      string
	Variables []string
	Fields    []*Field
}

// Field is a node of the descriptor tree. Fields carrying a Rest directive
// issue one HTTP call per parent object; plain fields select from the
// parent's JSON.
type Field struct {
	Name       string
	Alias      string
	Arguments  ast.ArgumentList
	Rest       *RestDirective
	ExportAs   string
	Selections []*Field
}

// RestDirective describes the @rest(type:, path:, method:) directive
type RestDirective struct {
	Type   string
	Method string
	Path   *Template
}

// Parse parses a query document and converts every operation into a
// descriptor tree
func Parse(src string) (*Document, error) {
	qd, err := parser.ParseQuery(&ast.Source{Name: "query", Input: src})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if len(qd.Fragments) > 0 {
		return nil, fmt.Errorf("%w: fragments are not supported", ErrInvalidDocument)
	}

	doc := &Document{source: src}
	for _, def := range qd.Operations {
		if def.Operation != ast.Query {
			return nil, fmt.Errorf("%w: %s operations are not supported", ErrInvalidDocument, def.Operation)
		}
		op := &Operation{Name: def.Name}
		for _, v := range def.VariableDefinitions {
			op.Variables = append(op.Variables, v.Variable)
		}
		op.Fields, err = convertSelections(def.SelectionSet)
		if err != nil {
			return nil, err
		}
		for _, f := range op.Fields {
			if f.Rest == nil {
				return nil, fmt.Errorf("%w: root field %q has no @rest directive", ErrInvalidDocument, f.ResultKey())
			}
		}
		doc.operations = append(doc.operations, op)
	}
	if len(doc.operations) == 0 {
		return nil, fmt.Errorf("%w: no operations", ErrInvalidDocument)
	}
	return doc, nil
}

// MustParse is like Parse but panics on error. It is meant for documents
// declared as package variables.
func MustParse(src string) *Document {
	doc, err := Parse(src)
	if err != nil {
		panic(err)
	}
	return doc
}

// Source returns the original document text
func (d *Document) Source() string {
	return d.source
}

// Operations returns the operations in declaration order
func (d *Document) Operations() []*Operation {
	return d.operations
}

// Operation looks up an operation by name. An empty name selects the only
// operation of a single-operation document.
func (d *Document) Operation(name string) (*Operation, error) {
	if name == "" {
		if len(d.operations) == 1 {
			return d.operations[0], nil
		}
		return nil, fmt.Errorf("%w: operation name required for a document with %d operations", ErrInvalidDocument, len(d.operations))
	}
	for _, op := range d.operations {
		if op.Name == name {
			return op, nil
		}
	}
	return nil, fmt.Errorf("%w: operation %q not found", ErrInvalidDocument, name)
}

// ResultKey is the key the field's value is stored under in the result
func (f *Field) ResultKey() string {
	if f.Alias != "" {
		return f.Alias
	}
	return f.Name
}

// Args resolves the field arguments against the operation variables
func (f *Field) Args(vars map[string]any) (map[string]any, error) {
	args := make(map[string]any, len(f.Arguments))
	for _, arg := range f.Arguments {
		v, err := arg.Value.Value(vars)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve argument %s on %s: %w", arg.Name, f.Name, err)
		}
		args[arg.Name] = v
	}
	return args, nil
}

func convertSelections(set ast.SelectionSet) ([]*Field, error) {
	fields := make([]*Field, 0, len(set))
	for _, sel := range set {
		af, ok := sel.(*ast.Field)
		if !ok {
			return nil, fmt.Errorf("%w: only plain field selections are supported", ErrInvalidDocument)
		}
		f, err := convertField(af)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return fields, nil
}

func convertField(af *ast.Field) (*Field, error) {
	f := &Field{
		Name:      af.Name,
		Arguments: af.Arguments,
	}
	if af.Alias != "" && af.Alias != af.Name {
		f.Alias = af.Alias
	}

	if d := af.Directives.ForName(directiveRest); d != nil {
		rest, err := convertRest(af.Name, d)
		if err != nil {
			return nil, err
		}
		f.Rest = rest
	}

	if d := af.Directives.ForName(directiveExport); d != nil {
		as, err := stringArg(d, "as")
		if err != nil {
			return nil, fmt.Errorf("%w: @export on %s: %v", ErrInvalidDocument, af.Name, err)
		}
		if as == "" {
			as = af.Name
		}
		f.ExportAs = as
	}

	children, err := convertSelections(af.SelectionSet)
	if err != nil {
		return nil, err
	}
	f.Selections = children
	return f, nil
}

func convertRest(field string, d *ast.Directive) (*RestDirective, error) {
	path, err := stringArg(d, "path")
	if err != nil {
		return nil, fmt.Errorf("%w: @rest on %s: %v", ErrInvalidDocument, field, err)
	}
	if path == "" {
		return nil, fmt.Errorf("%w: @rest on %s: path is required", ErrInvalidDocument, field)
	}
	tmpl, err := ParseTemplate(path)
	if err != nil {
		return nil, fmt.Errorf("@rest on %s: %w", field, err)
	}

	typ, err := stringArg(d, "type")
	if err != nil {
		return nil, fmt.Errorf("%w: @rest on %s: %v", ErrInvalidDocument, field, err)
	}
	method, err := stringArg(d, "method")
	if err != nil {
		return nil, fmt.Errorf("%w: @rest on %s: %v", ErrInvalidDocument, field, err)
	}
	if method == "" {
		method = defaultMethod
	}

	return &RestDirective{Type: typ, Method: method, Path: tmpl}, nil
}

// stringArg returns a literal string argument of a directive, or "" when it
// is absent
func stringArg(d *ast.Directive, name string) (string, error) {
	arg := d.Arguments.ForName(name)
	if arg == nil || arg.Value == nil {
		return "", nil
	}
	if arg.Value.Kind != ast.StringValue && arg.Value.Kind != ast.BlockValue {
		return "", fmt.Errorf("argument %s must be a string literal", name)
	}
	return arg.Value.Raw, nil
}
