// Package signature extracts endpoint descriptors from Go source.
//
// Only package-scope functions without a receiver are collected. Parameter
// defaults are declared in the function's doc comment:
//
//	// Add sums two integers.
//	//
//	//endpoint:default b=5
//	func Add(a, b int) int { return a + b }
//
// Directives are stripped from the extracted documentation.
package signature

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/format"
	"go/parser"
	"go/token"
	"strings"

	"github.com/ibrahimsaleem/Swaggermcp/pkg/apperr"
)

// DefaultDirective marks a parameter default in a doc comment.
const DefaultDirective = "//endpoint:default"

// NullLiteral replaces a default that cannot be rendered.
const NullLiteral = "nil"

// Function describes one top-level function.
type Function struct {
	Name          string            `json:"name" yaml:"name"`
	Parameters    []string          `json:"parameters" yaml:"parameters"`
	Defaults      map[string]string `json:"defaults,omitempty" yaml:"defaults,omitempty"`
	TypeHints     map[string]string `json:"type_hints,omitempty" yaml:"type_hints,omitempty"`
	Documentation string            `json:"documentation,omitempty" yaml:"documentation,omitempty"`
	Variadic      bool              `json:"variadic,omitempty" yaml:"variadic,omitempty"`
}

// Required reports whether param has no default.
func (f Function) Required(param string) bool {
	_, ok := f.Defaults[param]
	return !ok
}

// Normalize returns source with a package clause. Sources that start
// directly with declarations get "package main;" prepended on the first line
// so reported positions keep their line numbers.
func Normalize(source string) string {
	fset := token.NewFileSet()
	if _, err := parser.ParseFile(fset, "", source, parser.PackageClauseOnly); err == nil {
		return source
	}
	return "package main;" + source
}

// Parse parses normalized source and returns the file set and syntax tree.
func Parse(filename, source string) (*token.FileSet, *ast.File, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, filename, Normalize(source), parser.ParseComments)
	if err != nil {
		return nil, nil, apperr.New(apperr.CodeParseError, err.Error()).
			WithCause(err).
			WithContext("file", filename)
	}
	return fset, file, nil
}

// Extract returns the descriptors of every exposable top-level function in
// declaration order. A source without functions yields an empty slice.
func Extract(source string) ([]Function, error) {
	fset, file, err := Parse("source.go", source)
	if err != nil {
		return nil, err
	}

	fns := []Function{}
	for _, decl := range file.Decls {
		fd, ok := decl.(*ast.FuncDecl)
		if !ok || !Exposable(fd) {
			continue
		}
		fn, err := describe(fset, fd)
		if err != nil {
			return nil, err
		}
		fns = append(fns, fn)
	}
	return fns, nil
}

// Exposable reports whether fd can back an endpoint.
func Exposable(fd *ast.FuncDecl) bool {
	if fd.Recv != nil || fd.Body == nil {
		return false
	}
	if fd.Type.TypeParams != nil && len(fd.Type.TypeParams.List) > 0 {
		return false
	}
	switch fd.Name.Name {
	case "main", "init", "_":
		return false
	}
	return true
}

func describe(fset *token.FileSet, fd *ast.FuncDecl) (Function, error) {
	fn := Function{
		Name:       fd.Name.Name,
		Parameters: []string{},
		Defaults:   map[string]string{},
		TypeHints:  map[string]string{},
	}
	if fd.Doc != nil {
		fn.Documentation = strings.TrimSpace(fd.Doc.Text())
	}

	position := 0
	for _, field := range fd.Type.Params.List {
		hint := render(fset, field.Type)
		if ell, ok := field.Type.(*ast.Ellipsis); ok {
			fn.Variadic = true
			if elem := render(fset, ell.Elt); elem != "" {
				hint = "..." + elem
			}
		}

		names := field.Names
		if len(names) == 0 {
			names = []*ast.Ident{nil}
		}
		for _, ident := range names {
			name := fmt.Sprintf("arg%d", position)
			if ident != nil && ident.Name != "_" {
				name = ident.Name
			}
			position++

			fn.Parameters = append(fn.Parameters, name)
			if hint != "" {
				fn.TypeHints[name] = hint
			}
		}
	}

	for param, literal := range directives(fset, fd.Doc) {
		if contains(fn.Parameters, param) {
			fn.Defaults[param] = literal
		}
	}

	seenDefault := ""
	for _, param := range fn.Parameters {
		if _, ok := fn.Defaults[param]; ok {
			seenDefault = param
			continue
		}
		if seenDefault != "" {
			return Function{}, apperr.Newf(apperr.CodeParseError,
				"%s: non-default parameter %s follows default parameter %s",
				fset.Position(fd.Pos()), param, seenDefault).
				WithContext("function", fn.Name).
				WithSuggestion("Declare defaults only for trailing parameters")
		}
	}

	return fn, nil
}

// directives collects "//endpoint:default name=expr" lines from a doc comment.
func directives(fset *token.FileSet, doc *ast.CommentGroup) map[string]string {
	out := map[string]string{}
	if doc == nil {
		return out
	}
	for _, c := range doc.List {
		rest, ok := strings.CutPrefix(c.Text, DefaultDirective)
		if !ok || (rest != "" && rest[0] != ' ' && rest[0] != '\t') {
			continue
		}
		name, expr, ok := strings.Cut(strings.TrimSpace(rest), "=")
		if !ok {
			continue
		}
		out[strings.TrimSpace(name)] = literal(strings.TrimSpace(expr))
	}
	return out
}

// literal renders a default expression in canonical form, or NullLiteral.
func literal(expr string) string {
	if expr == "" {
		return NullLiteral
	}
	fset := token.NewFileSet()
	node, err := parser.ParseExprFrom(fset, "", expr, 0)
	if err != nil {
		return NullLiteral
	}
	if out := render(fset, node); out != "" {
		return out
	}
	return NullLiteral
}

func render(fset *token.FileSet, node ast.Node) string {
	var buf bytes.Buffer
	if err := format.Node(&buf, fset, node); err != nil {
		return ""
	}
	return buf.String()
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
