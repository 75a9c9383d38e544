package synth

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/ibrahimsaleem/Swaggermcp/pkg/signature"
)

type endpoint struct {
	Name        string
	Path        string
	Description string
	Variadic    bool
	Args        []arg
}

type arg struct {
	Var      string
	Name     string
	Type     string
	Default  string
	Required bool
}

func newEndpoint(fn signature.Function) endpoint {
	ep := endpoint{
		Name:        fn.Name,
		Path:        "/" + fn.Name,
		Description: fn.Documentation,
		Variadic:    fn.Variadic,
	}
	for i, p := range fn.Parameters {
		ep.Args = append(ep.Args, arg{
			Var:      fmt.Sprintf("_arg%d", i),
			Name:     p,
			Type:     fn.TypeHints[p],
			Default:  fn.Defaults[p],
			Required: fn.Required(p),
		})
	}
	return ep
}

// RequiredNames lists the parameters a caller must supply.
func (e endpoint) RequiredNames() []string {
	var names []string
	for _, a := range e.Args {
		if a.Required {
			names = append(names, a.Name)
		}
	}
	return names
}

type headerData struct {
	Title     string
	Endpoints []endpoint
}

func (h headerData) FunctionList() string {
	if len(h.Endpoints) == 0 {
		return "(none)"
	}
	names := make([]string, len(h.Endpoints))
	for i, ep := range h.Endpoints {
		names[i] = ep.Name
	}
	return strings.Join(names, ", ")
}

var funcs = template.FuncMap{
	"quote": func(s string) string { return fmt.Sprintf("%q", s) },
}

var headerTemplate = template.Must(template.New("header").Funcs(funcs).Parse(
	`// Code generated by swaggermcp. DO NOT EDIT.
//
// Service: {{.Title}}
// Endpoints: {{.FunctionList}}
//
// This file is regenerated on every upload and each upload replaces the
// entire file. Manual edits are lost.
//
// Security note: the uploaded source below runs verbatim inside this
// process with the privileges the supervisor grants it.

package main

`))

var endpointsTemplate = template.Must(template.New("endpoints").Funcs(funcs).Parse(
	`// Generated endpoints.
{{range .Endpoints}}
// _endpoint_{{.Name}} serves GET {{.Path}}.
func _endpoint_{{.Name}}(_w _synthhttp.ResponseWriter, _r *_synthhttp.Request) {
{{- if .Args}}
	_query := _r.URL.Query()
{{- end}}
{{- with .RequiredNames}}
	if _missing := _synthMissing(_query{{range .}}, {{quote .}}{{end}}); len(_missing) > 0 {
		_synthUnprocessable(_w, _missing)
		return
	}
{{- end}}
{{- range .Args}}
{{- if .Required}}
	{{.Var}} := _synthCoerced({{quote .Name}}, _query.Get({{quote .Name}}))
{{- else}}
	var {{.Var}} _synthArg
	if _query.Has({{quote .Name}}) {
		{{.Var}} = _synthCoerced({{quote .Name}}, _query.Get({{quote .Name}}))
	}
{{- end}}
{{- end}}
	_result, _err := _synthInvoke({{.Name}}, {{.Variadic}}{{range .Args}}, {{.Var}}{{end}})
	_synthRespond(_w, _result, _err)
}
{{end}}
func init() {
	_synthTitle = {{quote .Title}}
{{- range .Endpoints}}
	_synthRegister(_synthEndpoint{
		Path:        {{quote .Path}},
		Name:        {{quote .Name}},
		Description: {{quote .Description}},
		Params: []_synthParam{
{{- range .Args}}
			{Name: {{quote .Name}}, Type: {{quote .Type}}, Default: {{quote .Default}}, Required: {{.Required}}},
{{- end}}
		},
	}, _endpoint_{{.Name}})
{{- end}}
}
`))
