package issues

import (
	"database/sql"
	"net/url"
	"strconv"

	"github.com/google/uuid"

	"github.com/JaimeStill/civic/internal/jurisdictions"
	"github.com/JaimeStill/civic/internal/resolver"
	"github.com/JaimeStill/civic/pkg/query"
	"github.com/JaimeStill/civic/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "issues", "i").
	Project("id", "ID").
	Project("latitude", "Latitude").
	Project("longitude", "Longitude").
	Project("address_district", "District").
	Project("address_state", "State").
	Project("address_city", "City").
	Project("formatted_address", "FormattedAddress").
	Project("jurisdiction_id", "JurisdictionID").
	Project("match_type", "MatchType").
	Project("match_confidence", "MatchConfidence").
	Project("issue_type", "IssueType").
	Project("type_confidence", "TypeConfidence").
	Project("classifier_model", "ClassifierModel").
	Project("description", "Description").
	Project("image_key", "ImageKey").
	Project("status", "Status").
	Project("needs_follow_up", "NeedsFollowUp").
	Project("created_at", "CreatedAt").
	Project("updated_at", "UpdatedAt").
	Project("resolved_at", "ResolvedAt")

var responseProjection = query.
	NewProjectionMap("public", "responses", "r").
	Project("id", "ID").
	Project("issue_id", "IssueID").
	Project("jurisdiction_id", "JurisdictionID").
	Project("note", "Note").
	Project("image_key", "ImageKey").
	Project("verification_status", "Status").
	Project("similarity_score", "SimilarityScore").
	Project("confidence", "Confidence").
	Project("model_version", "ModelVersion").
	Project("points_awarded", "PointsAwarded").
	Project("created_at", "CreatedAt").
	Project("verified_at", "VerifiedAt")

var defaultSort = query.SortField{Field: "CreatedAt", Descending: true}

// Filters narrows issue listings. Bounds selects issues whose coordinate
// lies inside the rectangle, for map views.
type Filters struct {
	Status         *Status               `json:"status,omitempty"`
	JurisdictionID *uuid.UUID            `json:"jurisdiction_id,omitempty"`
	IssueType      *IssueType            `json:"issue_type,omitempty"`
	MatchType      *resolver.MatchType   `json:"match_type,omitempty"`
	NeedsFollowUp  *bool                 `json:"needs_follow_up,omitempty"`
	Bounds         *jurisdictions.Bounds `json:"bounds,omitempty"`
}

func (f Filters) Apply(b *query.Builder) *query.Builder {
	b.
		WhereEquals("Status", stringPtr(f.Status)).
		WhereEquals("JurisdictionID", f.JurisdictionID).
		WhereEquals("IssueType", stringPtr(f.IssueType)).
		WhereEquals("MatchType", stringPtr(f.MatchType)).
		WhereEquals("NeedsFollowUp", f.NeedsFollowUp)

	if f.Bounds != nil {
		b.
			WhereBetween("Latitude", f.Bounds.South, f.Bounds.North).
			WhereBetween("Longitude", f.Bounds.West, f.Bounds.East)
	}
	return b
}

// Matches applies the same predicate in memory.
func (f Filters) Matches(i *Issue) bool {
	if f.Status != nil && i.Status != *f.Status {
		return false
	}
	if f.JurisdictionID != nil && i.JurisdictionID != *f.JurisdictionID {
		return false
	}
	if f.IssueType != nil && i.IssueType != *f.IssueType {
		return false
	}
	if f.MatchType != nil && i.MatchType != *f.MatchType {
		return false
	}
	if f.NeedsFollowUp != nil && i.NeedsFollowUp != *f.NeedsFollowUp {
		return false
	}
	if f.Bounds != nil && !f.Bounds.Contains(i.Latitude, i.Longitude) {
		return false
	}
	return true
}

// FiltersFromQuery reads status, jurisdiction_id, issue_type, match_type,
// needs_follow_up, and the north/south/east/west map rectangle. The
// rectangle applies only when all four edges parse.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if s := values.Get("status"); s != "" {
		status := Status(s)
		f.Status = &status
	}

	if j := values.Get("jurisdiction_id"); j != "" {
		if id, err := uuid.Parse(j); err == nil {
			f.JurisdictionID = &id
		}
	}

	if t := values.Get("issue_type"); t != "" {
		typ := IssueType(t)
		f.IssueType = &typ
	}

	if m := values.Get("match_type"); m != "" {
		mt := resolver.MatchType(m)
		f.MatchType = &mt
	}

	if v := values.Get("needs_follow_up"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			f.NeedsFollowUp = &b
		}
	}

	f.Bounds = boundsFromQuery(values)
	return f
}

func boundsFromQuery(values url.Values) *jurisdictions.Bounds {
	var edges [4]float64
	for i, name := range []string{"north", "south", "east", "west"} {
		v, err := strconv.ParseFloat(values.Get(name), 64)
		if err != nil {
			return nil
		}
		edges[i] = v
	}
	return &jurisdictions.Bounds{North: edges[0], South: edges[1], East: edges[2], West: edges[3]}
}

func stringPtr[T ~string](v *T) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

func scanIssue(s repository.Scanner) (Issue, error) {
	var (
		i                              Issue
		district, state, city, address sql.NullString
		typeConfidence                 sql.NullFloat64
		classifierModel                sql.NullString
		resolvedAt                     sql.NullTime
	)
	err := s.Scan(
		&i.ID,
		&i.Latitude,
		&i.Longitude,
		&district,
		&state,
		&city,
		&address,
		&i.JurisdictionID,
		&i.MatchType,
		&i.MatchConfidence,
		&i.IssueType,
		&typeConfidence,
		&classifierModel,
		&i.Description,
		&i.ImageKey,
		&i.Status,
		&i.NeedsFollowUp,
		&i.CreatedAt,
		&i.UpdatedAt,
		&resolvedAt,
	)
	if err != nil {
		return i, err
	}

	addr := &resolver.Address{
		District:         district.String,
		State:            state.String,
		City:             city.String,
		FormattedAddress: address.String,
	}
	if !addr.Empty() {
		i.Address = addr
	}
	if typeConfidence.Valid {
		i.TypeConfidence = &typeConfidence.Float64
	}
	i.ClassifierModel = classifierModel.String
	if resolvedAt.Valid {
		i.ResolvedAt = &resolvedAt.Time
	}
	return i, nil
}

func scanResponse(s repository.Scanner) (Response, error) {
	var (
		r                      Response
		similarity, confidence sql.NullFloat64
		modelVersion           sql.NullString
		verifiedAt             sql.NullTime
	)
	err := s.Scan(
		&r.ID,
		&r.IssueID,
		&r.JurisdictionID,
		&r.Note,
		&r.ImageKey,
		&r.Status,
		&similarity,
		&confidence,
		&modelVersion,
		&r.PointsAwarded,
		&r.CreatedAt,
		&verifiedAt,
	)
	if err != nil {
		return r, err
	}

	if confidence.Valid {
		r.Outcome = &Outcome{
			SimilarityScore: similarity.Float64,
			Confidence:      confidence.Float64,
			ModelVersion:    modelVersion.String,
		}
	}
	if verifiedAt.Valid {
		r.VerifiedAt = &verifiedAt.Time
	}
	return r, nil
}
