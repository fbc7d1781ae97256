package openapi

import (
	"sort"
	"strings"
	"unicode"

	"github.com/integrationos/gateway/internal/app/domain"
)

const openAPIVersion = "3.0.3"

type document struct {
	OpenAPI    string               `json:"openapi" yaml:"openapi"`
	Info       info                 `json:"info" yaml:"info"`
	Paths      map[string]*pathItem `json:"paths" yaml:"paths"`
	Components components           `json:"components" yaml:"components"`
}

type info struct {
	Title   string `json:"title" yaml:"title"`
	Version string `json:"version" yaml:"version"`
}

type components struct {
	Schemas         map[string]*schema        `json:"schemas" yaml:"schemas"`
	SecuritySchemes map[string]securityScheme `json:"securitySchemes" yaml:"securitySchemes"`
}

type securityScheme struct {
	Type string `json:"type" yaml:"type"`
	In   string `json:"in" yaml:"in"`
	Name string `json:"name" yaml:"name"`
}

type schema struct {
	Ref         string             `json:"$ref,omitempty" yaml:"$ref,omitempty"`
	Type        string             `json:"type,omitempty" yaml:"type,omitempty"`
	Format      string             `json:"format,omitempty" yaml:"format,omitempty"`
	Description string             `json:"description,omitempty" yaml:"description,omitempty"`
	Enum        []string           `json:"enum,omitempty" yaml:"enum,omitempty"`
	Items       *schema            `json:"items,omitempty" yaml:"items,omitempty"`
	Properties  map[string]*schema `json:"properties,omitempty" yaml:"properties,omitempty"`
	Required    []string           `json:"required,omitempty" yaml:"required,omitempty"`
}

type pathItem struct {
	Get    *operation `json:"get,omitempty" yaml:"get,omitempty"`
	Post   *operation `json:"post,omitempty" yaml:"post,omitempty"`
	Patch  *operation `json:"patch,omitempty" yaml:"patch,omitempty"`
	Delete *operation `json:"delete,omitempty" yaml:"delete,omitempty"`
}

type operation struct {
	OperationID string                `json:"operationId" yaml:"operationId"`
	Summary     string                `json:"summary" yaml:"summary"`
	Tags        []string              `json:"tags" yaml:"tags"`
	Parameters  []parameter           `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	RequestBody *body                 `json:"requestBody,omitempty" yaml:"requestBody,omitempty"`
	Responses   map[string]response   `json:"responses" yaml:"responses"`
	Security    []map[string][]string `json:"security" yaml:"security"`
}

type parameter struct {
	Name     string  `json:"name" yaml:"name"`
	In       string  `json:"in" yaml:"in"`
	Required bool    `json:"required" yaml:"required"`
	Schema   *schema `json:"schema" yaml:"schema"`
}

type body struct {
	Required bool                 `json:"required" yaml:"required"`
	Content  map[string]mediaType `json:"content" yaml:"content"`
}

type response struct {
	Description string               `json:"description" yaml:"description"`
	Content     map[string]mediaType `json:"content,omitempty" yaml:"content,omitempty"`
}

type mediaType struct {
	Schema *schema `json:"schema" yaml:"schema"`
}

func build(version string, models []domain.CommonModel, enums []domain.CommonEnum) document {
	doc := document{
		OpenAPI: openAPIVersion,
		Info:    info{Title: "IntegrationOS Unified API", Version: version},
		Paths:   make(map[string]*pathItem, len(models)*2),
		Components: components{
			Schemas: make(map[string]*schema, len(models)+len(enums)),
			SecuritySchemes: map[string]securityScheme{
				"secret": {Type: "apiKey", In: "header", Name: "X-IntegrationOS-Secret"},
			},
		},
	}

	for _, enum := range enums {
		options := append([]string(nil), enum.Options...)
		sort.Strings(options)
		doc.Components.Schemas[enum.Name] = &schema{Type: "string", Enum: options}
	}

	sorted := append([]domain.CommonModel(nil), models...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	for _, model := range sorted {
		doc.Components.Schemas[model.Name] = modelSchema(model)
		addModelPaths(doc.Paths, model)
	}
	return doc
}

func modelSchema(model domain.CommonModel) *schema {
	out := &schema{Type: "object", Properties: make(map[string]*schema, len(model.Fields))}
	for _, field := range model.Fields {
		prop := fieldSchema(field)
		if field.Array {
			prop = &schema{Type: "array", Items: prop, Description: prop.Description}
			prop.Items.Description = ""
		}
		out.Properties[field.Name] = prop
		if field.Required {
			out.Required = append(out.Required, field.Name)
		}
	}
	sort.Strings(out.Required)
	return out
}

func fieldSchema(field domain.CommonField) *schema {
	switch {
	case field.EnumRef != "":
		return &schema{Ref: ref(field.EnumRef)}
	case field.ModelRef != "":
		return &schema{Ref: ref(field.ModelRef)}
	}

	out := &schema{Description: field.Description}
	switch strings.ToLower(strings.TrimSpace(field.Datatype)) {
	case "number", "float", "double":
		out.Type = "number"
	case "integer", "int":
		out.Type = "integer"
	case "boolean", "bool":
		out.Type = "boolean"
	case "date", "datetime":
		out.Type = "string"
		out.Format = "date-time"
	case "object", "unknown":
		out.Type = "object"
	default:
		out.Type = "string"
	}
	return out
}

func addModelPaths(paths map[string]*pathItem, model domain.CommonModel) {
	resource := "/v1/unified/" + pluralPath(model.Name)
	tags := []string{model.Name}
	item := ref(model.Name)
	secured := []map[string][]string{{"secret": {}}}
	connection := parameter{Name: "X-IntegrationOS-Connection-Key", In: "header", Required: true, Schema: &schema{Type: "string"}}
	id := parameter{Name: "id", In: "path", Required: true, Schema: &schema{Type: "string"}}
	okResponse := func(s *schema) map[string]response {
		return map[string]response{"200": {Description: "OK", Content: map[string]mediaType{"application/json": {Schema: s}}}}
	}
	payload := &body{Required: true, Content: map[string]mediaType{"application/json": {Schema: &schema{Ref: item}}}}

	paths[resource] = &pathItem{
		Get: &operation{
			OperationID: "list" + model.Name, Summary: "List " + model.Name, Tags: tags,
			Parameters: []parameter{connection}, Responses: okResponse(&schema{Type: "array", Items: &schema{Ref: item}}), Security: secured,
		},
		Post: &operation{
			OperationID: "create" + model.Name, Summary: "Create " + model.Name, Tags: tags,
			Parameters: []parameter{connection}, RequestBody: payload, Responses: okResponse(&schema{Ref: item}), Security: secured,
		},
	}
	paths[resource+"/{id}"] = &pathItem{
		Get: &operation{
			OperationID: "get" + model.Name, Summary: "Get " + model.Name, Tags: tags,
			Parameters: []parameter{connection, id}, Responses: okResponse(&schema{Ref: item}), Security: secured,
		},
		Patch: &operation{
			OperationID: "update" + model.Name, Summary: "Update " + model.Name, Tags: tags,
			Parameters: []parameter{connection, id}, RequestBody: payload, Responses: okResponse(&schema{Ref: item}), Security: secured,
		},
		Delete: &operation{
			OperationID: "delete" + model.Name, Summary: "Delete " + model.Name, Tags: tags,
			Parameters: []parameter{connection, id}, Responses: okResponse(&schema{Ref: item}), Security: secured,
		},
	}
}

func ref(name string) string {
	return "#/components/schemas/" + name
}

// pluralPath turns "PhoneNumber" into "phone-numbers".
func pluralPath(name string) string {
	var b strings.Builder
	for i, r := range name {
		if unicode.IsUpper(r) && i > 0 {
			b.WriteByte('-')
		}
		b.WriteRune(unicode.ToLower(r))
	}
	out := b.String()
	switch {
	case strings.HasSuffix(out, "ss"), strings.HasSuffix(out, "x"):
		return out + "es"
	case strings.HasSuffix(out, "s"):
		return out
	case strings.HasSuffix(out, "y") && len(out) > 1 && !strings.ContainsRune("aeiou", rune(out[len(out)-2])):
		return out[:len(out)-1] + "ies"
	default:
		return out + "s"
	}
}
