// Package synth turns extracted function descriptors into a single-file Go
// HTTP service exposing one GET endpoint per function.
package synth

import (
	_ "embed"
	"go/ast"
	"go/parser"
	"go/token"
	"sort"
	"strings"
	"sync"

	"github.com/ibrahimsaleem/Swaggermcp/pkg/apperr"
	"github.com/ibrahimsaleem/Swaggermcp/pkg/signature"
)

//go:embed runtime/runtime.go
var runtimeSource string

// DefaultTitle is used when no title is given.
const DefaultTitle = "Generated API"

// Module is a synthesized service document and the paths it serves.
type Module struct {
	Document string
	Paths    []string
}

// parts is a Go file split around its import block.
type parts struct {
	imports string
	body    string
	names   []string
}

var runtimeParts = sync.OnceValues(func() (parts, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "runtime.go", runtimeSource, parser.ParseComments)
	if err != nil {
		return parts{}, err
	}
	return split(fset, file, runtimeSource), nil
})

// handlerLocals are identifiers declared inside generated handlers.
var handlerLocals = []string{"_w", "_r", "_query", "_missing", "_result", "_err"}

// Synthesize builds the service document for fns declared in source. The
// output is byte-identical for identical inputs.
func Synthesize(source string, fns []signature.Function, title string) (*Module, error) {
	title = strings.Join(strings.Fields(title), " ")
	if title == "" {
		title = DefaultTitle
	}

	rt, err := runtimeParts()
	if err != nil {
		return nil, apperr.New(apperr.CodeSynthesisError, "embedded runtime does not parse").WithCause(err)
	}

	source = signature.Normalize(source)
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "source.go", source, parser.ParseComments)
	if err != nil {
		return nil, apperr.New(apperr.CodeSynthesisError, "source does not parse").WithCause(err)
	}
	user := split(fset, file, source)

	if err := checkReserved(user.names, rt.names); err != nil {
		return nil, err
	}
	if renamed, ok := renameMain(fset, file, source); ok {
		source = renamed
		if file, err = parser.ParseFile(fset, "source.go", source, parser.ParseComments); err != nil {
			return nil, apperr.New(apperr.CodeSynthesisError, "renamed source does not parse").WithCause(err)
		}
		user = split(fset, file, source)
	}
	if err := checkDescriptors(file, fns); err != nil {
		return nil, err
	}

	endpoints := make([]endpoint, 0, len(fns))
	paths := make([]string, 0, len(fns))
	for _, fn := range fns {
		ep := newEndpoint(fn)
		endpoints = append(endpoints, ep)
		paths = append(paths, ep.Path)
	}

	var b strings.Builder
	if err := headerTemplate.Execute(&b, headerData{Title: title, Endpoints: endpoints}); err != nil {
		return nil, apperr.New(apperr.CodeSynthesisError, "render header").WithCause(err)
	}
	b.WriteString(strings.TrimSpace(rt.imports))
	b.WriteString("\n")
	if imports := strings.TrimSpace(user.imports); imports != "" {
		b.WriteString("\n")
		b.WriteString(imports)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(strings.TrimSpace(rt.body))
	b.WriteString("\n\n// Uploaded source.\n\n")
	if body := strings.TrimSpace(user.body); body != "" {
		b.WriteString(body)
		b.WriteString("\n\n")
	}
	if err := endpointsTemplate.Execute(&b, headerData{Title: title, Endpoints: endpoints}); err != nil {
		return nil, apperr.New(apperr.CodeSynthesisError, "render endpoints").WithCause(err)
	}

	doc := b.String()
	if _, err := parser.ParseFile(token.NewFileSet(), "main.go", doc, 0); err != nil {
		return nil, apperr.New(apperr.CodeSynthesisError, "synthesized document does not parse").
			WithCause(err).
			WithContext("title", title)
	}

	return &Module{Document: doc, Paths: paths}, nil
}

// Placeholder returns a service with no endpoints, served before the first upload.
func Placeholder(title string) (*Module, error) {
	return Synthesize("", nil, title)
}

// split separates a parsed file into its import block and the remaining
// declarations. The package clause and anything before it are dropped.
func split(fset *token.FileSet, file *ast.File, src string) parts {
	offset := func(p token.Pos) int { return fset.Position(p).Offset }

	start := offset(file.Name.End())
	importsEnd := start
	var names []string
	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.GenDecl:
			if d.Tok == token.IMPORT {
				importsEnd = offset(d.End())
				continue
			}
			for _, spec := range d.Specs {
				switch s := spec.(type) {
				case *ast.ValueSpec:
					for _, n := range s.Names {
						names = append(names, n.Name)
					}
				case *ast.TypeSpec:
					names = append(names, s.Name.Name)
				}
			}
		case *ast.FuncDecl:
			if d.Recv == nil && d.Name.Name != "init" {
				names = append(names, d.Name.Name)
			}
		}
	}

	imports := strings.TrimPrefix(strings.TrimLeft(src[start:importsEnd], " \t"), ";")
	body := src[importsEnd:]
	if importsEnd == start {
		imports = ""
		body = strings.TrimPrefix(strings.TrimLeft(body, " \t"), ";")
	}
	sort.Strings(names)
	return parts{imports: imports, body: body, names: names}
}

// uploadedMain replaces a package-level main in uploaded source so the
// generated entry point is the only one.
const uploadedMain = "_uploadedMain"

// renameMain rewrites the declaration of a package-level main and every
// reference resolving to it. It reports false when there is nothing to rename.
func renameMain(fset *token.FileSet, file *ast.File, src string) (string, bool) {
	target := file.Scope.Lookup("main")
	if target == nil {
		return src, false
	}

	var offsets []int
	ast.Inspect(file, func(n ast.Node) bool {
		if id, ok := n.(*ast.Ident); ok && id.Name == "main" && id.Obj == target {
			offsets = append(offsets, fset.Position(id.Pos()).Offset)
		}
		return true
	})
	if len(offsets) == 0 {
		return src, false
	}
	sort.Ints(offsets)

	var b strings.Builder
	last := 0
	for _, off := range offsets {
		b.WriteString(src[last:off])
		b.WriteString(uploadedMain)
		last = off + len("main")
	}
	b.WriteString(src[last:])
	return b.String(), true
}

func checkReserved(userNames, runtimeNames []string) error {
	reserved := map[string]bool{uploadedMain: true}
	for _, n := range runtimeNames {
		reserved[n] = true
	}
	for _, n := range handlerLocals {
		reserved[n] = true
	}

	for _, n := range userNames {
		if n == "main" {
			continue
		}
		if reserved[n] || strings.HasPrefix(n, "_endpoint_") || strings.HasPrefix(n, "_arg") {
			return apperr.Newf(apperr.CodeInvalidUpload, "top-level identifier %q is reserved by the generated service", n).
				WithContext("identifier", n).
				WithSuggestion("Rename the declaration; app and the _synth helpers are provided by the generated service")
		}
	}
	return nil
}

func checkDescriptors(file *ast.File, fns []signature.Function) error {
	declared := map[string]bool{}
	for _, decl := range file.Decls {
		if fd, ok := decl.(*ast.FuncDecl); ok && signature.Exposable(fd) {
			declared[fd.Name.Name] = true
		}
	}

	seen := map[string]bool{}
	for _, fn := range fns {
		if !declared[fn.Name] {
			return apperr.Newf(apperr.CodeSynthesisError, "descriptor %q has no matching top-level function", fn.Name)
		}
		if seen[fn.Name] {
			return apperr.Newf(apperr.CodeSynthesisError, "duplicate descriptor %q", fn.Name)
		}
		seen[fn.Name] = true
	}
	return nil
}
