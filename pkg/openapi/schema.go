package openapi

const mediaJSON = "application/json"

type Operation struct {
	Summary     string            `json:"summary,omitempty"`
	Description string            `json:"description,omitempty"`
	Tags        []string          `json:"tags,omitempty"`
	Parameters  []*Parameter      `json:"parameters,omitempty"`
	RequestBody *RequestBody      `json:"requestBody,omitempty"`
	Responses   map[int]*Response `json:"responses"`
}

type Parameter struct {
	Name        string  `json:"name"`
	In          string  `json:"in"`
	Required    bool    `json:"required,omitempty"`
	Description string  `json:"description,omitempty"`
	Schema      *Schema `json:"schema"`
}

type RequestBody struct {
	Description string                `json:"description,omitempty"`
	Required    bool                  `json:"required,omitempty"`
	Content     map[string]*MediaType `json:"content"`
}

// Response is either inline or a $ref to a shared component response.
type Response struct {
	Description string                `json:"description,omitempty"`
	Content     map[string]*MediaType `json:"content,omitempty"`
	Ref         string                `json:"$ref,omitempty"`
}

type MediaType struct {
	Schema *Schema `json:"schema,omitempty"`
}

// Schema is the subset of JSON Schema the API documents use.
type Schema struct {
	Type        string             `json:"type,omitempty"`
	Format      string             `json:"format,omitempty"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Required    []string           `json:"required,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Ref         string             `json:"$ref,omitempty"`
	Example     any                `json:"example,omitempty"`
	Default     any                `json:"default,omitempty"`
	Enum        []any              `json:"enum,omitempty"`
	Minimum     *float64           `json:"minimum,omitempty"`
	Maximum     *float64           `json:"maximum,omitempty"`
	MinLength   *int               `json:"minLength,omitempty"`
	MaxLength   *int               `json:"maxLength,omitempty"`
	Pattern     string             `json:"pattern,omitempty"`
}

type SecurityScheme struct {
	Type         string `json:"type"`
	Scheme       string `json:"scheme,omitempty"`
	BearerFormat string `json:"bearerFormat,omitempty"`
}

func SchemaRef(name string) *Schema {
	return &Schema{Ref: "#/components/schemas/" + name}
}

func ResponseRef(name string) *Response {
	return &Response{Ref: "#/components/responses/" + name}
}

func jsonContent(schemaName string) map[string]*MediaType {
	return map[string]*MediaType{mediaJSON: {Schema: SchemaRef(schemaName)}}
}

func RequestBodyJSON(schemaName string, required bool) *RequestBody {
	return &RequestBody{Required: required, Content: jsonContent(schemaName)}
}

func ResponseJSON(description, schemaName string) *Response {
	return &Response{Description: description, Content: jsonContent(schemaName)}
}

// PathParam is always a required UUID; every path key in the API is one.
func PathParam(name, description string) *Parameter {
	return &Parameter{
		Name:        name,
		In:          "path",
		Required:    true,
		Description: description,
		Schema:      &Schema{Type: "string", Format: "uuid"},
	}
}

func QueryParam(name, typ, description string, required bool) *Parameter {
	return &Parameter{
		Name:        name,
		In:          "query",
		Required:    required,
		Description: description,
		Schema:      &Schema{Type: typ},
	}
}

// PageOf mirrors pagination.PageResult for the named item schema.
func PageOf(item string) *Schema {
	return &Schema{
		Type: "object",
		Properties: map[string]*Schema{
			"data":        {Type: "array", Items: SchemaRef(item)},
			"total":       {Type: "integer"},
			"page":        {Type: "integer"},
			"page_size":   {Type: "integer"},
			"total_pages": {Type: "integer"},
			"has_next":    {Type: "boolean"},
		},
	}
}
