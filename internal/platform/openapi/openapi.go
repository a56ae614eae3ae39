// Package openapi serves an OpenAPI 3.0 document for the routes registered
// on an echo instance. Paths come from the router; summaries, bodies and
// schemas come from the Operation and Schema descriptions added by the
// server.
package openapi

import (
	"net/http"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carepulse/carepulse/internal/platform/apperr"
)

// ErrorSchema is the component every error response refers to.
const ErrorSchema = "Error"

// Param documents a query parameter.
type Param struct {
	Name        string
	Type        string // string, integer, boolean; defaults to string
	Format      string
	Enum        []string
	Description string
}

// Operation describes one method and path.
type Operation struct {
	Summary  string
	Tag      string
	Request  string // schema name of the JSON body
	Upload   bool   // the body may also be multipart/form-data
	Response string // schema name of the success body
	Status   int    // success status, 200 when zero
	Query    []Param
	// Path overrides the uuid schema assumed for path parameters.
	Path []Param
	// Public lifts the bearer requirement from a route under the secured
	// prefix.
	Public bool
}

// Generator builds the document.
type Generator struct {
	title         string
	version       string
	baseURL       string
	pathPrefix    string
	securedPrefix string

	ops     map[string]Operation
	schemas map[string]reflect.Type
	names   map[reflect.Type]string
}

// NewGenerator documents routes under pathPrefix. Routes under securedPrefix
// require a bearer token.
func NewGenerator(title, version, baseURL, pathPrefix, securedPrefix string) *Generator {
	return &Generator{
		title:         title,
		version:       version,
		baseURL:       baseURL,
		pathPrefix:    pathPrefix,
		securedPrefix: securedPrefix,
		ops:           make(map[string]Operation),
		schemas:       make(map[string]reflect.Type),
		names:         make(map[reflect.Type]string),
	}
}

// Describe attaches op to an echo route, e.g. ("GET", "/api/v1/users/:id").
func (g *Generator) Describe(method, path string, op Operation) *Generator {
	g.ops[method+" "+path] = op
	return g
}

// Schema registers the JSON shape of v as a component. Fields of a
// registered type elsewhere become references to it.
func (g *Generator) Schema(name string, v interface{}) *Generator {
	t := indirect(reflect.TypeOf(v))
	g.schemas[name] = t
	if t.Name() != "" {
		g.names[t] = name
	}
	return g
}

// GenerateSpec produces the OpenAPI 3.0 document for routes.
func (g *Generator) GenerateSpec(routes []*echo.Route) map[string]interface{} {
	sorted := make([]*echo.Route, 0, len(routes))
	for _, r := range routes {
		if !strings.HasPrefix(r.Path, g.pathPrefix) || r.Method == echo.RouteNotFound {
			continue
		}
		sorted = append(sorted, r)
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Path != sorted[j].Path {
			return sorted[i].Path < sorted[j].Path
		}
		return sorted[i].Method < sorted[j].Method
	})

	paths := make(map[string]interface{})
	for _, r := range sorted {
		path, params := templatePath(r.Path)
		item, _ := paths[path].(map[string]interface{})
		if item == nil {
			item = make(map[string]interface{})
			paths[path] = item
		}
		item[strings.ToLower(r.Method)] = g.buildOperation(r, params)
	}

	schemas := map[string]interface{}{
		ErrorSchema: g.schemaOf(reflect.TypeOf(apperr.ErrorBody{}), true),
	}
	for name, t := range g.schemas {
		schemas[name] = g.schemaOf(t, true)
	}

	return map[string]interface{}{
		"openapi": "3.0.3",
		"info": map[string]interface{}{
			"title":   g.title,
			"version": g.version,
		},
		"servers": []map[string]string{
			{"url": g.baseURL},
		},
		"paths": paths,
		"components": map[string]interface{}{
			"schemas": schemas,
			"securitySchemes": map[string]interface{}{
				"bearerAuth": map[string]string{"type": "http", "scheme": "bearer", "bearerFormat": "JWT"},
			},
		},
	}
}

func (g *Generator) buildOperation(r *echo.Route, pathParams []string) map[string]interface{} {
	op, described := g.ops[r.Method+" "+r.Path]
	if !described {
		op.Summary = r.Method + " " + r.Path
	}
	if op.Tag == "" {
		op.Tag = tagFor(strings.TrimPrefix(r.Path, g.pathPrefix))
	}

	out := map[string]interface{}{
		"summary":     op.Summary,
		"operationId": operationID(r.Method, r.Path),
		"tags":        []string{op.Tag},
	}

	var params []map[string]interface{}
	for _, name := range pathParams {
		p := Param{Name: name, Format: "uuid"}
		for _, override := range op.Path {
			if override.Name == name {
				p = override
			}
		}
		param := queryParam(p)
		param["in"] = "path"
		param["required"] = true
		params = append(params, param)
	}
	for _, q := range op.Query {
		params = append(params, queryParam(q))
	}
	if len(params) > 0 {
		out["parameters"] = params
	}

	if op.Request != "" {
		content := map[string]interface{}{
			echo.MIMEApplicationJSON: map[string]interface{}{"schema": ref(op.Request)},
		}
		if op.Upload {
			content[echo.MIMEMultipartForm] = map[string]interface{}{
				"schema": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"data":                   map[string]string{"type": "string", "description": "JSON encoded " + op.Request},
						"identificationDocument": map[string]string{"type": "string", "format": "binary"},
					},
					"required": []string{"data"},
				},
			}
		}
		out["requestBody"] = map[string]interface{}{"required": true, "content": content}
	}

	status := op.Status
	if status == 0 {
		status = http.StatusOK
	}
	responses := map[string]interface{}{}
	success := map[string]interface{}{"description": http.StatusText(status)}
	if op.Response != "" {
		success["content"] = map[string]interface{}{
			echo.MIMEApplicationJSON: map[string]interface{}{"schema": ref(op.Response)},
		}
	}
	responses[strconv.Itoa(status)] = success

	if op.Request != "" || len(op.Query) > 0 {
		responses["422"] = errorResponse("Validation failed")
	}
	if len(pathParams) > 0 {
		responses["404"] = errorResponse("Not found")
	}
	if g.secured(r.Path) && !op.Public {
		responses["401"] = errorResponse("Missing or invalid admin session")
		out["security"] = []map[string][]string{{"bearerAuth": {}}}
	}
	out["responses"] = responses
	return out
}

func (g *Generator) secured(path string) bool {
	return g.securedPrefix != "" && strings.HasPrefix(path, g.securedPrefix)
}

// schemaOf maps a Go type to a schema. Named registered types become
// references unless top is set.
func (g *Generator) schemaOf(t reflect.Type, top bool) map[string]interface{} {
	t = indirect(t)
	if name, ok := g.names[t]; ok && !top {
		return ref(name)
	}

	switch t {
	case reflect.TypeOf(time.Time{}):
		return map[string]interface{}{"type": "string", "format": "date-time"}
	case reflect.TypeOf(uuid.UUID{}):
		return map[string]interface{}{"type": "string", "format": "uuid"}
	}

	switch t.Kind() {
	case reflect.String:
		return map[string]interface{}{"type": "string"}
	case reflect.Bool:
		return map[string]interface{}{"type": "boolean"}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return map[string]interface{}{"type": "integer"}
	case reflect.Float32, reflect.Float64:
		return map[string]interface{}{"type": "number"}
	case reflect.Slice, reflect.Array:
		return map[string]interface{}{"type": "array", "items": g.schemaOf(t.Elem(), false)}
	case reflect.Map:
		return map[string]interface{}{"type": "object", "additionalProperties": g.schemaOf(t.Elem(), false)}
	case reflect.Struct:
		props := make(map[string]interface{})
		var required []string
		g.collectFields(t, props, &required)
		out := map[string]interface{}{"type": "object", "properties": props}
		if len(required) > 0 {
			sort.Strings(required)
			out["required"] = required
		}
		return out
	default:
		return map[string]interface{}{}
	}
}

// collectFields walks exported fields, flattening untagged embedded structs
// the way encoding/json does.
func (g *Generator) collectFields(t reflect.Type, props map[string]interface{}, required *[]string) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := f.Tag.Get("json")
		if tag == "-" {
			continue
		}
		name, opts, _ := strings.Cut(tag, ",")
		if f.Anonymous && name == "" && indirect(f.Type).Kind() == reflect.Struct {
			g.collectFields(indirect(f.Type), props, required)
			continue
		}
		if !f.IsExported() {
			continue
		}
		if name == "" {
			name = f.Name
		}

		schema := g.schemaOf(f.Type, false)
		rules := f.Tag.Get("validate")
		if _, isRef := schema["$ref"]; !isRef {
			applyRules(schema, rules)
		}
		props[name] = schema

		optional := f.Type.Kind() == reflect.Ptr || strings.Contains(opts, "omitempty")
		if hasRule(rules, "required") || (rules == "" && !optional) {
			*required = append(*required, name)
		}
	}
}

// applyRules carries the validator tags that have an OpenAPI counterpart.
func applyRules(schema map[string]interface{}, rules string) {
	for _, rule := range strings.Split(rules, ",") {
		key, val, _ := strings.Cut(rule, "=")
		switch key {
		case "min", "max":
			n, err := strconv.Atoi(val)
			if err != nil || schema["type"] != "string" {
				continue
			}
			schema[key+"Length"] = n
		case "oneof":
			schema["enum"] = strings.Fields(val)
		case "eq":
			if schema["type"] == "boolean" && val == "true" {
				schema["enum"] = []bool{true}
			}
		case "email_addr":
			schema["format"] = "email"
		case "date":
			schema["format"] = "date"
		case "timestamp":
			schema["format"] = "date-time"
		case "uuid":
			schema["format"] = "uuid"
		}
	}
}

func hasRule(rules, name string) bool {
	for _, rule := range strings.Split(rules, ",") {
		if rule == name {
			return true
		}
	}
	return false
}

func indirect(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}

func ref(name string) map[string]interface{} {
	return map[string]interface{}{"$ref": "#/components/schemas/" + name}
}

func errorResponse(description string) map[string]interface{} {
	return map[string]interface{}{
		"description": description,
		"content": map[string]interface{}{
			echo.MIMEApplicationJSON: map[string]interface{}{"schema": ref(ErrorSchema)},
		},
	}
}

func queryParam(q Param) map[string]interface{} {
	schema := map[string]interface{}{"type": "string"}
	if q.Type != "" {
		schema["type"] = q.Type
	}
	if q.Format != "" {
		schema["format"] = q.Format
	}
	if len(q.Enum) > 0 {
		schema["enum"] = q.Enum
	}
	p := map[string]interface{}{"name": q.Name, "in": "query", "schema": schema}
	if q.Description != "" {
		p["description"] = q.Description
	}
	return p
}

// templatePath turns "/users/:id" into "/users/{id}" and returns the
// parameter names.
func templatePath(path string) (string, []string) {
	segs := strings.Split(path, "/")
	var params []string
	for i, s := range segs {
		if strings.HasPrefix(s, ":") {
			params = append(params, s[1:])
			segs[i] = "{" + s[1:] + "}"
		}
	}
	return strings.Join(segs, "/"), params
}

// tagFor groups a route by its first path segment, or the second one under
// /admin.
func tagFor(rel string) string {
	segs := strings.Split(strings.Trim(rel, "/"), "/")
	if len(segs) > 1 && segs[0] == "admin" && !strings.HasPrefix(segs[1], ":") {
		return segs[1]
	}
	return segs[0]
}

func operationID(method, path string) string {
	var b strings.Builder
	b.WriteString(strings.ToLower(method))
	for _, s := range strings.Split(path, "/") {
		s = strings.TrimPrefix(s, ":")
		if s == "" {
			continue
		}
		b.WriteString(strings.ToUpper(s[:1]))
		b.WriteString(s[1:])
	}
	return b.String()
}

const swaggerUIHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>CarePulse API</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    SwaggerUIBundle({ url: "openapi.json", dom_id: "#swagger-ui" })
  </script>
</body>
</html>`

// RegisterRoutes mounts the document and a Swagger UI page on g. The
// document is built from e's routes at request time.
func (g *Generator) RegisterRoutes(e *echo.Echo, group *echo.Group) {
	group.GET("/openapi.json", func(c echo.Context) error {
		return c.JSON(http.StatusOK, g.GenerateSpec(e.Routes()))
	})
	group.GET("/docs", func(c echo.Context) error {
		return c.HTML(http.StatusOK, swaggerUIHTML)
	})
}
