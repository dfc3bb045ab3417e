package ledger

import (
	"net/http"

	"github.com/JaimeStill/civic/pkg/openapi"
)

var schemas = map[string]*openapi.Schema{
	"ScoreEvent": {
		Type: "object",
		Properties: map[string]*openapi.Schema{
			"id":              {Type: "string", Format: "uuid"},
			"jurisdiction_id": {Type: "string", Format: "uuid"},
			"delta":           {Type: "integer"},
			"reason":          {Type: "string", Enum: reasonEnum()},
			"issue_id":        {Type: "string", Format: "uuid"},
			"response_id":     {Type: "string", Format: "uuid"},
			"idempotency_key": {Type: "string"},
			"created_at":      {Type: "string", Format: "date-time"},
		},
	},
	"ScoreEventPage": openapi.PageOf("ScoreEvent"),
	"Adjustment": {
		Type: "object",
		Properties: map[string]*openapi.Schema{
			"jurisdiction_id": {Type: "string", Format: "uuid"},
			"delta":           {Type: "integer"},
			"idempotency_key": {Type: "string"},
		},
		Required: []string{"jurisdiction_id", "delta", "idempotency_key"},
	},
	"Reconciliation": {
		Type: "object",
		Properties: map[string]*openapi.Schema{
			"jurisdiction_id": {Type: "string", Format: "uuid"},
			"cached":          {Type: "integer"},
			"recomputed":      {Type: "integer", Description: "Base score plus the sum of all events"},
			"consistent":      {Type: "boolean"},
			"suspended":       {Type: "boolean"},
		},
	},
	"Score": {
		Type: "object",
		Properties: map[string]*openapi.Schema{
			"jurisdiction_id": {Type: "string", Format: "uuid"},
			"score":           {Type: "integer"},
		},
	},
	"LeaderboardEntry": {
		Type: "object",
		Properties: map[string]*openapi.Schema{
			"rank":            {Type: "integer"},
			"jurisdiction_id": {Type: "string", Format: "uuid"},
			"name":            {Type: "string"},
			"type":            {Type: "string"},
			"state":           {Type: "string"},
			"score":           {Type: "integer"},
			"issues_received": {Type: "integer"},
			"issues_resolved": {Type: "integer"},
			"resolution_rate": {Type: "number"},
		},
	},
	"LeaderboardPage": openapi.PageOf("LeaderboardEntry"),
}

var idParam = openapi.PathParam("id", "Jurisdiction ID")

var ops = struct {
	leaderboard, events, score, adjust, reconcile, reconcileAll, repair *openapi.Operation
}{
	leaderboard: &openapi.Operation{
		Summary:     "Rank jurisdictions by score",
		Description: "Score descending, ties by jurisdiction id. Suspended jurisdictions are excluded.",
		Parameters: []*openapi.Parameter{
			openapi.QueryParam("page", "integer", "Page number", false),
			openapi.QueryParam("page_size", "integer", "Results per page", false),
			openapi.QueryParam("state", "string", "Exact state", false),
			openapi.QueryParam("type", "string", "Jurisdiction type", false),
		},
		Responses: map[int]*openapi.Response{
			http.StatusOK: openapi.ResponseJSON("Leaderboard page", "LeaderboardPage"),
		},
	},
	events: &openapi.Operation{
		Summary: "List score events for a jurisdiction",
		Parameters: []*openapi.Parameter{
			idParam,
			openapi.QueryParam("page", "integer", "Page number", false),
			openapi.QueryParam("page_size", "integer", "Results per page", false),
		},
		Responses: openapi.WithErrors(map[int]*openapi.Response{
			http.StatusOK: openapi.ResponseJSON("Newest first", "ScoreEventPage"),
		}, http.StatusBadRequest, http.StatusNotFound),
	},
	score: &openapi.Operation{
		Summary:    "Cached score",
		Parameters: []*openapi.Parameter{idParam},
		Responses: openapi.WithErrors(map[int]*openapi.Response{
			http.StatusOK: openapi.ResponseJSON("Score", "Score"),
		}, http.StatusBadRequest, http.StatusNotFound),
	},
	adjust: &openapi.Operation{
		Summary:     "Post a manual adjustment",
		Description: "Requires the admin role. Reposting an idempotency key returns 204.",
		RequestBody: openapi.RequestBodyJSON("Adjustment", true),
		Responses: openapi.WithErrors(map[int]*openapi.Response{
			http.StatusCreated:   openapi.ResponseJSON("Posted event", "ScoreEvent"),
			http.StatusNoContent: {Description: "Already posted"},
		}, http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound),
	},
	reconcile: &openapi.Operation{
		Summary:     "Reconcile one jurisdiction",
		Description: "Requires the admin role. A mismatch suspends the jurisdiction from ranking.",
		Parameters:  []*openapi.Parameter{idParam},
		Responses: openapi.WithErrors(map[int]*openapi.Response{
			http.StatusOK:       openapi.ResponseJSON("Consistent", "Reconciliation"),
			http.StatusConflict: openapi.ResponseJSON("Inconsistent", "Reconciliation"),
		}, http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound),
	},
	reconcileAll: &openapi.Operation{
		Summary:     "Reconcile every jurisdiction",
		Description: "Requires the admin role.",
		Responses: openapi.WithErrors(map[int]*openapi.Response{
			http.StatusOK: {
				Description: "One reconciliation per jurisdiction",
				Content: map[string]*openapi.MediaType{
					"application/json": {Schema: &openapi.Schema{Type: "array", Items: openapi.SchemaRef("Reconciliation")}},
				},
			},
		}, http.StatusUnauthorized, http.StatusForbidden),
	},
	repair: &openapi.Operation{
		Summary:     "Repair a jurisdiction's cached score",
		Description: "Requires the admin role. Sets the cached score to the recomputed one and restores ranking.",
		Parameters:  []*openapi.Parameter{idParam},
		Responses: openapi.WithErrors(map[int]*openapi.Response{
			http.StatusOK: openapi.ResponseJSON("Repaired", "Reconciliation"),
		}, http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound),
	},
}

func reasonEnum() []any {
	out := make([]any, len(Reasons))
	for i, r := range Reasons {
		out[i] = string(r)
	}
	return out
}
