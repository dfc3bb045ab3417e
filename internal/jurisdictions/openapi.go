package jurisdictions

import (
	"net/http"

	"github.com/JaimeStill/civic/pkg/openapi"
)

var schemas = map[string]*openapi.Schema{
	"Bounds": {
		Type: "object",
		Properties: map[string]*openapi.Schema{
			"north": {Type: "number"},
			"south": {Type: "number"},
			"east":  {Type: "number"},
			"west":  {Type: "number"},
		},
		Required: []string{"north", "south", "east", "west"},
	},
	"Jurisdiction": {
		Type: "object",
		Properties: map[string]*openapi.Schema{
			"id":               {Type: "string", Format: "uuid"},
			"name":             {Type: "string"},
			"type":             {Type: "string", Enum: typeEnum()},
			"state":            {Type: "string"},
			"district":         {Type: "string"},
			"city":             {Type: "string"},
			"bounds":           openapi.SchemaRef("Bounds"),
			"score":            {Type: "integer"},
			"issues_received":  {Type: "integer"},
			"issues_resolved":  {Type: "integer"},
			"ledger_suspended": {Type: "boolean"},
		},
	},
	"JurisdictionPage": openapi.PageOf("Jurisdiction"),
	"CreateJurisdiction": {
		Type: "object",
		Properties: map[string]*openapi.Schema{
			"name":     {Type: "string"},
			"type":     {Type: "string", Enum: typeEnum()},
			"state":    {Type: "string"},
			"district": {Type: "string"},
			"city":     {Type: "string"},
			"bounds":   openapi.SchemaRef("Bounds"),
		},
		Required: []string{"name", "type", "state"},
	},
	"JurisdictionStats": {
		Type: "object",
		Properties: map[string]*openapi.Schema{
			"jurisdiction_id":      {Type: "string", Format: "uuid"},
			"score":                {Type: "integer"},
			"rank":                 {Type: "integer", Description: "Absent while the ledger is suspended"},
			"resolution_rate":      {Type: "number", Description: "Resolved over received, percent"},
			"avg_resolution_hours": {Type: "number"},
			"issues_by_type":       {Type: "object"},
			"monthly_trend":        {Type: "array", Items: &openapi.Schema{Type: "object"}},
		},
	},
}

var ops = struct {
	list, search, find, create, stats *openapi.Operation
}{
	list: &openapi.Operation{
		Summary: "List jurisdictions",
		Parameters: []*openapi.Parameter{
			openapi.QueryParam("page", "integer", "Page number", false),
			openapi.QueryParam("page_size", "integer", "Results per page", false),
			openapi.QueryParam("search", "string", "Matches name, district, or city", false),
			openapi.QueryParam("state", "string", "Exact state", false),
			openapi.QueryParam("type", "string", "Jurisdiction type", false),
		},
		Responses: map[int]*openapi.Response{
			http.StatusOK: openapi.ResponseJSON("Page of jurisdictions", "JurisdictionPage"),
		},
	},
	search: &openapi.Operation{
		Summary:     "Search jurisdictions",
		RequestBody: openapi.RequestBodyJSON("PageRequest", true),
		Responses: openapi.WithErrors(map[int]*openapi.Response{
			http.StatusOK: openapi.ResponseJSON("Page of jurisdictions", "JurisdictionPage"),
		}, http.StatusBadRequest),
	},
	find: &openapi.Operation{
		Summary:    "Get a jurisdiction",
		Parameters: []*openapi.Parameter{openapi.PathParam("id", "Jurisdiction ID")},
		Responses: openapi.WithErrors(map[int]*openapi.Response{
			http.StatusOK: openapi.ResponseJSON("Jurisdiction", "Jurisdiction"),
		}, http.StatusBadRequest, http.StatusNotFound),
	},
	create: &openapi.Operation{
		Summary:     "Provision a jurisdiction",
		Description: "Requires the admin role. New jurisdictions start at the configured base score.",
		RequestBody: openapi.RequestBodyJSON("CreateJurisdiction", true),
		Responses: openapi.WithErrors(map[int]*openapi.Response{
			http.StatusCreated: openapi.ResponseJSON("Created jurisdiction", "Jurisdiction"),
		}, http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusConflict),
	},
	stats: &openapi.Operation{
		Summary:    "Jurisdiction accountability stats",
		Parameters: []*openapi.Parameter{openapi.PathParam("id", "Jurisdiction ID")},
		Responses: openapi.WithErrors(map[int]*openapi.Response{
			http.StatusOK: openapi.ResponseJSON("Stats", "JurisdictionStats"),
		}, http.StatusBadRequest, http.StatusNotFound),
	},
}

func typeEnum() []any {
	out := make([]any, len(Types))
	for i, t := range Types {
		out[i] = string(t)
	}
	return out
}
