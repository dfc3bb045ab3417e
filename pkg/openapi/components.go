package openapi

import (
	"maps"
	"net/http"
)

var errorResponseNames = map[int]string{
	http.StatusBadRequest:            "BadRequest",
	http.StatusUnauthorized:          "Unauthorized",
	http.StatusForbidden:             "Forbidden",
	http.StatusNotFound:              "NotFound",
	http.StatusConflict:              "Conflict",
	http.StatusRequestEntityTooLarge: "TooLarge",
	http.StatusUnprocessableEntity:   "Unprocessable",
	http.StatusServiceUnavailable:    "Unavailable",
}

var errorDescriptions = map[string]string{
	"BadRequest":    "Invalid request",
	"Unauthorized":  "Missing or invalid bearer token",
	"TooLarge":      "Upload exceeds the configured size limit",
	"Forbidden":     "Caller may not act on this resource",
	"NotFound":      "Resource not found",
	"Conflict":      "Transition rejected by the current resource state",
	"Unprocessable": "Location could not be resolved to a jurisdiction",
	"Unavailable":   "A downstream collaborator did not respond",
}

// Components holds the schemas and responses operations refer to by name.
type Components struct {
	Schemas         map[string]*Schema         `json:"schemas,omitempty"`
	Responses       map[string]*Response       `json:"responses,omitempty"`
	SecuritySchemes map[string]*SecurityScheme `json:"securitySchemes,omitempty"`
}

// NewComponents seeds the Error and PageRequest schemas and one shared
// response per error status the API returns.
func NewComponents() *Components {
	c := &Components{
		Schemas: map[string]*Schema{
			"PageRequest": {
				Type: "object",
				Properties: map[string]*Schema{
					"page":      {Type: "integer", Description: "Page number (1-indexed)", Example: 1},
					"page_size": {Type: "integer", Description: "Results per page", Example: 20},
					"search":    {Type: "string", Description: "Search query"},
					"sort":      {Type: "string", Description: "Comma-separated sort fields. Prefix with - for descending. Example: Score,-CreatedAt"},
				},
			},
			"Error": {
				Type: "object",
				Properties: map[string]*Schema{
					"error": {Type: "string", Description: "Error message"},
				},
			},
		},
		Responses: make(map[string]*Response, len(errorDescriptions)),
	}

	for name, desc := range errorDescriptions {
		c.Responses[name] = ResponseJSON(desc, "Error")
	}

	return c
}

func (c *Components) AddSchemas(schemas map[string]*Schema) {
	maps.Copy(c.Schemas, schemas)
}

func (c *Components) AddResponses(responses map[string]*Response) {
	maps.Copy(c.Responses, responses)
}

// ErrorResponses maps each code to its shared response. Codes without a
// shared response are skipped.
func ErrorResponses(codes ...int) map[int]*Response {
	responses := make(map[int]*Response, len(codes))
	return WithErrors(responses, codes...)
}

// WithErrors adds the shared error responses for codes to responses.
func WithErrors(responses map[int]*Response, codes ...int) map[int]*Response {
	for _, code := range codes {
		if name, ok := errorResponseNames[code]; ok {
			responses[code] = ResponseRef(name)
		}
	}
	return responses
}
