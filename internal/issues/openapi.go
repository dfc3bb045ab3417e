package issues

import (
	"net/http"

	"github.com/JaimeStill/civic/pkg/openapi"
)

var schemas = map[string]*openapi.Schema{
	"Address": {
		Type: "object",
		Properties: map[string]*openapi.Schema{
			"district":          {Type: "string"},
			"state":             {Type: "string"},
			"city":              {Type: "string"},
			"formatted_address": {Type: "string"},
		},
	},
	"Outcome": {
		Type: "object",
		Properties: map[string]*openapi.Schema{
			"similarity_score": {Type: "number", Minimum: ptr(0), Maximum: ptr(1)},
			"confidence":       {Type: "number", Minimum: ptr(0), Maximum: ptr(1)},
			"model_version":    {Type: "string"},
		},
		Required: []string{"similarity_score", "confidence"},
	},
	"Response": {
		Type: "object",
		Properties: map[string]*openapi.Schema{
			"id":                  {Type: "string", Format: "uuid"},
			"issue_id":            {Type: "string", Format: "uuid"},
			"jurisdiction_id":     {Type: "string", Format: "uuid"},
			"note":                {Type: "string"},
			"image_key":           {Type: "string"},
			"image_url":           {Type: "string"},
			"verification_status": {Type: "string", Enum: enum(VerificationPending, VerificationVerified, VerificationNeedsReview)},
			"outcome":             openapi.SchemaRef("Outcome"),
			"points_awarded":      {Type: "integer"},
			"created_at":          {Type: "string", Format: "date-time"},
			"verified_at":         {Type: "string", Format: "date-time"},
		},
	},
	"Issue": {
		Type: "object",
		Properties: map[string]*openapi.Schema{
			"id":               {Type: "string", Format: "uuid"},
			"latitude":         {Type: "number"},
			"longitude":        {Type: "number"},
			"address":          openapi.SchemaRef("Address"),
			"jurisdiction_id":  {Type: "string", Format: "uuid"},
			"match_type":       {Type: "string", Enum: []any{"BOUNDS", "DISTRICT", "STATE", "FALLBACK"}},
			"match_confidence": {Type: "number"},
			"issue_type":       {Type: "string", Enum: enum(IssueTypes...)},
			"type_confidence":  {Type: "number"},
			"classifier_model": {Type: "string"},
			"description":      {Type: "string"},
			"image_key":        {Type: "string"},
			"image_url":        {Type: "string"},
			"status":           {Type: "string", Enum: enum(Statuses...)},
			"needs_follow_up":  {Type: "boolean", Description: "Verification failed and needs manual follow-up"},
			"created_at":       {Type: "string", Format: "date-time"},
			"updated_at":       {Type: "string", Format: "date-time"},
			"resolved_at":      {Type: "string", Format: "date-time"},
			"responses":        {Type: "array", Items: openapi.SchemaRef("Response")},
		},
	},
	"IssuePage": openapi.PageOf("Issue"),
	"IssueSearch": {
		Type: "object",
		Properties: map[string]*openapi.Schema{
			"page":            {Type: "integer"},
			"page_size":       {Type: "integer"},
			"search":          {Type: "string"},
			"status":          {Type: "string", Enum: enum(Statuses...)},
			"jurisdiction_id": {Type: "string", Format: "uuid"},
			"issue_type":      {Type: "string", Enum: enum(IssueTypes...)},
			"match_type":      {Type: "string"},
			"needs_follow_up": {Type: "boolean"},
			"bounds": {
				Type: "object",
				Properties: map[string]*openapi.Schema{
					"north": {Type: "number"},
					"south": {Type: "number"},
					"east":  {Type: "number"},
					"west":  {Type: "number"},
				},
			},
		},
	},
	"IssueUpload": {
		Type: "object",
		Properties: map[string]*openapi.Schema{
			"image":       {Type: "string", Format: "binary"},
			"latitude":    {Type: "number"},
			"longitude":   {Type: "number"},
			"description": {Type: "string"},
		},
		Required: []string{"image", "latitude", "longitude"},
	},
	"ResponseUpload": {
		Type: "object",
		Properties: map[string]*openapi.Schema{
			"image":           {Type: "string", Format: "binary"},
			"note":            {Type: "string"},
			"jurisdiction_id": {Type: "string", Format: "uuid", Description: "Admin only; defaults to the token's jurisdiction claim"},
		},
		Required: []string{"image", "note"},
	},
}

var idParam = openapi.PathParam("id", "Issue ID")

var responseIDParam = openapi.PathParam("id", "Response ID")

var ops = struct {
	list, search, find, create, submit, dispute, outcome, verify *openapi.Operation
}{
	list: &openapi.Operation{
		Summary:     "List issues",
		Description: "The north, south, east, and west parameters select a map rectangle and apply only together.",
		Parameters: []*openapi.Parameter{
			openapi.QueryParam("page", "integer", "Page number", false),
			openapi.QueryParam("page_size", "integer", "Results per page", false),
			openapi.QueryParam("search", "string", "Search description and address", false),
			openapi.QueryParam("sort", "string", "Comma-separated sort fields", false),
			openapi.QueryParam("status", "string", "Lifecycle status", false),
			openapi.QueryParam("jurisdiction_id", "string", "Assigned jurisdiction", false),
			openapi.QueryParam("issue_type", "string", "Issue type", false),
			openapi.QueryParam("match_type", "string", "Resolver match tier", false),
			openapi.QueryParam("needs_follow_up", "boolean", "Verification follow-up flag", false),
			openapi.QueryParam("north", "number", "Northern latitude", false),
			openapi.QueryParam("south", "number", "Southern latitude", false),
			openapi.QueryParam("east", "number", "Eastern longitude", false),
			openapi.QueryParam("west", "number", "Western longitude", false),
		},
		Responses: openapi.WithErrors(map[int]*openapi.Response{
			http.StatusOK: openapi.ResponseJSON("Paginated issues", "IssuePage"),
		}, http.StatusInternalServerError),
	},
	search: &openapi.Operation{
		Summary:     "Search issues",
		RequestBody: openapi.RequestBodyJSON("IssueSearch", true),
		Responses: openapi.WithErrors(map[int]*openapi.Response{
			http.StatusOK: openapi.ResponseJSON("Paginated issues", "IssuePage"),
		}, http.StatusBadRequest),
	},
	find: &openapi.Operation{
		Summary:    "Find an issue with its responses",
		Parameters: []*openapi.Parameter{idParam},
		Responses: openapi.WithErrors(map[int]*openapi.Response{
			http.StatusOK: openapi.ResponseJSON("Issue", "Issue"),
		}, http.StatusBadRequest, http.StatusNotFound),
	},
	create: &openapi.Operation{
		Summary:     "Report an issue",
		Description: "Classification and geocoding failures do not block intake. A FALLBACK match_type marks a low-confidence assignment.",
		RequestBody: multipart("IssueUpload"),
		Responses: openapi.WithErrors(map[int]*openapi.Response{
			http.StatusCreated: openapi.ResponseJSON("Created issue", "Issue"),
		}, http.StatusBadRequest, http.StatusRequestEntityTooLarge, http.StatusUnprocessableEntity, http.StatusServiceUnavailable),
	},
	submit: &openapi.Operation{
		Summary:     "Submit a resolution response",
		Description: "Requires the jurisdiction or admin role. Verification runs after submission; if it fails the response stays PENDING and the issue is flagged for follow-up.",
		Parameters:  []*openapi.Parameter{idParam},
		RequestBody: multipart("ResponseUpload"),
		Responses: openapi.WithErrors(map[int]*openapi.Response{
			http.StatusCreated: openapi.ResponseJSON("Submitted response", "Response"),
		}, http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound, http.StatusConflict),
	},
	dispute: &openapi.Operation{
		Summary:     "Dispute a verified or reviewed issue",
		Description: "Requires the admin role. A disputed issue accepts a new response.",
		Parameters:  []*openapi.Parameter{idParam},
		Responses: openapi.WithErrors(map[int]*openapi.Response{
			http.StatusOK: openapi.ResponseJSON("Disputed issue", "Issue"),
		}, http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound, http.StatusConflict),
	},
	outcome: &openapi.Operation{
		Summary:     "Record a verification outcome",
		Description: "Requires the verifier or admin role. Recording the same outcome twice is a no-op.",
		Parameters:  []*openapi.Parameter{responseIDParam},
		RequestBody: openapi.RequestBodyJSON("Outcome", true),
		Responses: openapi.WithErrors(map[int]*openapi.Response{
			http.StatusOK: openapi.ResponseJSON("Recorded response", "Response"),
		}, http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound, http.StatusConflict),
	},
	verify: &openapi.Operation{
		Summary:     "Retry verification for a pending response",
		Description: "Requires the verifier or admin role.",
		Parameters:  []*openapi.Parameter{responseIDParam},
		Responses: openapi.WithErrors(map[int]*openapi.Response{
			http.StatusOK: openapi.ResponseJSON("Response", "Response"),
		}, http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound, http.StatusServiceUnavailable),
	},
}

func multipart(schema string) *openapi.RequestBody {
	return &openapi.RequestBody{
		Required: true,
		Content: map[string]*openapi.MediaType{
			"multipart/form-data": {Schema: openapi.SchemaRef(schema)},
		},
	}
}

func enum[T ~string](values ...T) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}

func ptr(v float64) *float64 {
	return &v
}
