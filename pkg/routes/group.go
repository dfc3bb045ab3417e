// Package routes declares route groups that register on a ServeMux and
// describe themselves in an OpenAPI document.
package routes

import (
	"net/http"
	"strings"

	"github.com/JaimeStill/civic/pkg/openapi"
)

// Group organizes routes under a common prefix with shared tags.
// Children inherit the parent's prefix and, when they declare none, its tags.
type Group struct {
	Prefix   string
	Tags     []string
	Routes   []Route
	Children []Group
	Schemas  map[string]*openapi.Schema
}

// Register adds all routes from the given groups to the mux.
func Register(mux *http.ServeMux, groups ...Group) {
	for _, group := range groups {
		registerGroup(mux, "", group)
	}
}

// Describe adds every documented route and group schema to spec.
// basePath is prepended to each path (e.g. "/api").
func Describe(spec *openapi.Spec, basePath string, groups ...Group) {
	for _, group := range groups {
		describeGroup(spec, basePath, nil, group)
	}
}

func registerGroup(mux *http.ServeMux, parentPrefix string, group Group) {
	fullPrefix := parentPrefix + group.Prefix
	for _, route := range group.Routes {
		pattern := route.Method + " " + fullPrefix + route.Pattern
		mux.HandleFunc(pattern, route.Handler)
	}
	for _, child := range group.Children {
		registerGroup(mux, fullPrefix, child)
	}
}

func describeGroup(spec *openapi.Spec, parentPrefix string, parentTags []string, group Group) {
	fullPrefix := parentPrefix + group.Prefix
	tags := group.Tags
	if len(tags) == 0 {
		tags = parentTags
	}

	spec.Components.AddSchemas(group.Schemas)

	for _, route := range group.Routes {
		if route.OpenAPI == nil {
			continue
		}
		op := *route.OpenAPI
		if len(op.Tags) == 0 {
			op.Tags = tags
		}
		spec.AddOperation(openAPIPath(fullPrefix+route.Pattern), route.Method, &op)
	}

	for _, child := range group.Children {
		describeGroup(spec, fullPrefix, tags, child)
	}
}

// openAPIPath converts ServeMux wildcards ({key...}) to OpenAPI parameters ({key}).
func openAPIPath(pattern string) string {
	if pattern == "" {
		return "/"
	}
	return strings.ReplaceAll(pattern, "...}", "}")
}
