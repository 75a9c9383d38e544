// Service runtime spliced into every synthesized document. Built on its own it
// is the placeholder service: docs and an empty OpenAPI description.
package main

import (
	_synthcontext "context"
	_synthjson "encoding/json"
	_synthflag "flag"
	_synthfmt "fmt"
	_synthhtml "html"
	_synthlog "log"
	_synthmath "math"
	_synthnet "net"
	_synthhttp "net/http"
	_synthos "os"
	_synthsignal "os/signal"
	_synthreflect "reflect"
	_synthstrconv "strconv"
	_synthstrings "strings"
	_synthsyscall "syscall"
	_synthtime "time"
)

// app is the handler the service binds. Every endpoint hangs off it.
var app = _synthhttp.NewServeMux()

var _synthTitle = "Generated API"

type _synthParam struct {
	Name     string
	Type     string
	Default  string
	Required bool
}

type _synthEndpoint struct {
	Path        string
	Name        string
	Description string
	Params      []_synthParam
}

var _synthEndpoints []_synthEndpoint

func init() {
	app.HandleFunc("GET /docs", _synthDocs)
	app.HandleFunc("GET /openapi.json", _synthOpenAPI)
}

// _synthRegister mounts a generated handler and records it for /openapi.json.
func _synthRegister(ep _synthEndpoint, h _synthhttp.HandlerFunc) {
	_synthEndpoints = append(_synthEndpoints, ep)
	app.HandleFunc("GET "+ep.Path, h)
}

// _coerceParam converts a query value, trying integer, float, boolean and
// JSON in that order before falling back to the string itself.
func _coerceParam(value string) any {
	if i, err := _synthstrconv.Atoi(value); err == nil {
		return i
	}
	if f, err := _synthstrconv.ParseFloat(value, 64); err == nil {
		return f
	}
	switch _synthstrings.ToLower(value) {
	case "true":
		return true
	case "false":
		return false
	}
	var v any
	if err := _synthjson.Unmarshal([]byte(value), &v); err == nil {
		return v
	}
	return value
}

// _synthArg is one handler input. An unset optional parameter is the zero _synthArg.
type _synthArg struct {
	Name  string
	Raw   string
	Value any
	Set   bool
}

func _synthCoerced(name, raw string) _synthArg {
	return _synthArg{Name: name, Raw: raw, Value: _coerceParam(raw), Set: true}
}

// _synthMissing returns the required names absent from the query.
func _synthMissing(query map[string][]string, names ...string) []string {
	var missing []string
	for _, name := range names {
		if _, ok := query[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

func _synthUnprocessable(w _synthhttp.ResponseWriter, missing []string) {
	detail := make([]map[string]any, 0, len(missing))
	for _, name := range missing {
		detail = append(detail, map[string]any{
			"type":  "missing",
			"loc":   []string{"query", name},
			"msg":   "Field required",
			"input": nil,
		})
	}
	_synthWriteJSON(w, _synthhttp.StatusUnprocessableEntity, map[string]any{"detail": detail})
}

// _synthInvoke calls fn with the converted arguments. Panics and a non-nil
// trailing error become the returned error.
func _synthInvoke(fn any, variadic bool, args ..._synthArg) (result any, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = _synthfmt.Errorf("%v", p)
		}
	}()

	fv := _synthreflect.ValueOf(fn)
	ft := fv.Type()
	if len(args) != ft.NumIn() {
		return nil, _synthfmt.Errorf("expected %d arguments, got %d", ft.NumIn(), len(args))
	}

	in := make([]_synthreflect.Value, len(args))
	for i, arg := range args {
		v, cerr := _synthConvert(arg, ft.In(i))
		if cerr != nil {
			return nil, _synthfmt.Errorf("parameter %s: %v", arg.Name, cerr)
		}
		in[i] = v
	}

	var out []_synthreflect.Value
	if variadic {
		out = fv.CallSlice(in)
	} else {
		out = fv.Call(in)
	}
	return _synthResult(ft, out)
}

func _synthConvert(arg _synthArg, t _synthreflect.Type) (_synthreflect.Value, error) {
	if !arg.Set {
		return _synthreflect.Zero(t), nil
	}
	return _synthConvertValue(arg.Raw, arg.Value, t)
}

func _synthConvertValue(raw string, v any, t _synthreflect.Type) (_synthreflect.Value, error) {
	switch t.Kind() {
	case _synthreflect.String:
		return _synthreflect.ValueOf(raw).Convert(t), nil
	case _synthreflect.Pointer:
		elem, err := _synthConvertValue(raw, v, t.Elem())
		if err != nil {
			return _synthreflect.Value{}, err
		}
		p := _synthreflect.New(t.Elem())
		p.Elem().Set(elem)
		return p, nil
	}

	if v != nil {
		vv := _synthreflect.ValueOf(v)
		if vv.Type().AssignableTo(t) {
			out := _synthreflect.New(t).Elem()
			out.Set(vv)
			return out, nil
		}
	}

	switch n := v.(type) {
	case int:
		switch {
		case t.Kind() >= _synthreflect.Int && t.Kind() <= _synthreflect.Int64:
			if _synthreflect.Zero(t).OverflowInt(int64(n)) {
				return _synthreflect.Value{}, _synthfmt.Errorf("%d overflows %s", n, t)
			}
			return _synthreflect.ValueOf(n).Convert(t), nil
		case t.Kind() >= _synthreflect.Uint && t.Kind() <= _synthreflect.Uintptr:
			if n < 0 || _synthreflect.Zero(t).OverflowUint(uint64(n)) {
				return _synthreflect.Value{}, _synthfmt.Errorf("%d overflows %s", n, t)
			}
			return _synthreflect.ValueOf(n).Convert(t), nil
		case t.Kind() == _synthreflect.Float32 || t.Kind() == _synthreflect.Float64:
			if _synthreflect.Zero(t).OverflowFloat(float64(n)) {
				return _synthreflect.Value{}, _synthfmt.Errorf("%d overflows %s", n, t)
			}
			return _synthreflect.ValueOf(n).Convert(t), nil
		}
	case float64:
		switch {
		case t.Kind() == _synthreflect.Float32 || t.Kind() == _synthreflect.Float64:
			if _synthreflect.Zero(t).OverflowFloat(n) {
				return _synthreflect.Value{}, _synthfmt.Errorf("%v overflows %s", n, t)
			}
			return _synthreflect.ValueOf(n).Convert(t), nil
		case t.Kind() >= _synthreflect.Int && t.Kind() <= _synthreflect.Int64:
			// int64(n) is only defined for n in [-2^63, 2^63)
			if n != _synthmath.Trunc(n) || n < -0x1p63 || n >= 0x1p63 || _synthreflect.Zero(t).OverflowInt(int64(n)) {
				return _synthreflect.Value{}, _synthfmt.Errorf("cannot use %v as %s", n, t)
			}
			return _synthreflect.ValueOf(int64(n)).Convert(t), nil
		}
	case bool:
		if t.Kind() == _synthreflect.Bool {
			return _synthreflect.ValueOf(n).Convert(t), nil
		}
	}

	if t.Kind() == _synthreflect.Slice || t.Kind() == _synthreflect.Array {
		if _, isList := v.([]any); !isList && v != nil {
			v = []any{v}
		}
	}

	data, err := _synthjson.Marshal(v)
	if err != nil {
		return _synthreflect.Value{}, _synthfmt.Errorf("cannot use %q as %s: %v", raw, t, err)
	}
	ptr := _synthreflect.New(t)
	if err := _synthjson.Unmarshal(data, ptr.Interface()); err != nil {
		return _synthreflect.Value{}, _synthfmt.Errorf("cannot use %q as %s", raw, t)
	}
	return ptr.Elem(), nil
}

var _synthErrorType = _synthreflect.TypeOf((*error)(nil)).Elem()

// _synthResult folds call outputs: a trailing error is split off, one value is
// returned as is, several are returned as a list.
func _synthResult(ft _synthreflect.Type, out []_synthreflect.Value) (any, error) {
	if n := len(out); n > 0 && ft.Out(n-1) == _synthErrorType {
		if e := out[n-1]; !e.IsNil() {
			return nil, e.Interface().(error)
		}
		out = out[:n-1]
	}

	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		return out[0].Interface(), nil
	}
	values := make([]any, len(out))
	for i, v := range out {
		values[i] = v.Interface()
	}
	return values, nil
}

// _synthRespond writes the call outcome. Failures are reported in the payload
// with a 200 status; callers must inspect the body.
func _synthRespond(w _synthhttp.ResponseWriter, result any, err error) {
	if err != nil {
		_synthWriteJSON(w, _synthhttp.StatusOK, map[string]any{"error": err.Error()})
		return
	}
	_synthWriteJSON(w, _synthhttp.StatusOK, map[string]any{"result": result})
}

func _synthWriteJSON(w _synthhttp.ResponseWriter, status int, payload any) {
	body, err := _synthjson.Marshal(payload)
	if err != nil {
		body, _ = _synthjson.Marshal(map[string]any{"error": err.Error()})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func _synthOpenAPIDocument() map[string]any {
	paths := make(map[string]any, len(_synthEndpoints))
	for _, ep := range _synthEndpoints {
		params := make([]map[string]any, 0, len(ep.Params))
		for _, p := range ep.Params {
			description := "Go type: " + p.Type
			if p.Type == "" {
				description = "untyped"
			}
			if !p.Required {
				description += "; declared default: " + p.Default
			}
			params = append(params, map[string]any{
				"name":        p.Name,
				"in":          "query",
				"required":    p.Required,
				"description": description,
				"schema":      map[string]any{"type": "string", "title": p.Name},
			})
		}
		paths[ep.Path] = map[string]any{
			"get": map[string]any{
				"summary":     ep.Name,
				"description": ep.Description,
				"operationId": ep.Name + "_endpoint",
				"parameters":  params,
				"responses": map[string]any{
					"200": map[string]any{"description": "Successful Response"},
					"422": map[string]any{"description": "Validation Error"},
				},
			},
		}
	}
	return map[string]any{
		"openapi": "3.1.0",
		"info":    map[string]any{"title": _synthTitle, "version": "0.1.0"},
		"paths":   paths,
	}
}

func _synthOpenAPI(w _synthhttp.ResponseWriter, _ *_synthhttp.Request) {
	_synthWriteJSON(w, _synthhttp.StatusOK, _synthOpenAPIDocument())
}

const _synthDocsPage = `<!DOCTYPE html>
<html>
<head>
<link type="text/css" rel="stylesheet" href="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui.css">
<title>%s - Swagger UI</title>
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
<script>
SwaggerUIBundle({url: '/openapi.json', dom_id: '#swagger-ui'})
</script>
</body>
</html>
`

func _synthDocs(w _synthhttp.ResponseWriter, _ *_synthhttp.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(_synthhttp.StatusOK)
	_, _ = _synthfmt.Fprintf(w, _synthDocsPage, _synthhtml.EscapeString(_synthTitle))
}

func main() {
	host := _synthflag.String("host", "127.0.0.1", "address to bind")
	port := _synthflag.Int("port", 8001, "port to bind")
	_synthflag.Parse()

	srv := &_synthhttp.Server{
		Addr:              _synthnet.JoinHostPort(*host, _synthstrconv.Itoa(*port)),
		Handler:           app,
		ReadHeaderTimeout: 10 * _synthtime.Second,
	}

	ctx, stop := _synthsignal.NotifyContext(_synthcontext.Background(), _synthos.Interrupt, _synthsyscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	_synthlog.Printf("%s serving %d endpoints on http://%s", _synthTitle, len(_synthEndpoints), srv.Addr)

	select {
	case err := <-errCh:
		if err != nil && err != _synthhttp.ErrServerClosed {
			_synthlog.Printf("serve: %v", err)
			stop()
			_synthos.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := _synthcontext.WithTimeout(_synthcontext.Background(), 5*_synthtime.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			_synthlog.Printf("shutdown: %v", err)
		}
	}
}
