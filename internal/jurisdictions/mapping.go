package jurisdictions

import (
	"database/sql"
	"net/url"

	"github.com/JaimeStill/civic/pkg/query"
	"github.com/JaimeStill/civic/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "jurisdictions", "j").
	Project("id", "ID").
	Project("name", "Name").
	Project("type", "Type").
	Project("state", "State").
	Project("district", "District").
	Project("city", "City").
	Project("bound_north", "BoundNorth").
	Project("bound_south", "BoundSouth").
	Project("bound_east", "BoundEast").
	Project("bound_west", "BoundWest").
	Project("score", "Score").
	Project("issues_received", "IssuesReceived").
	Project("issues_resolved", "IssuesResolved").
	Project("open_count", "OpenCount").
	Project("responded_count", "RespondedCount").
	Project("verified_count", "VerifiedCount").
	Project("review_count", "ReviewCount").
	Project("disputed_count", "DisputedCount").
	Project("ledger_suspended", "LedgerSuspended").
	Project("created_at", "CreatedAt").
	Project("updated_at", "UpdatedAt")

var defaultSort = query.SortField{Field: "Name"}

// rankedSort is the leaderboard order: score descending, id ascending.
var rankedSort = []query.SortField{
	{Field: "Score", Descending: true},
	{Field: "ID"},
}

// Filters narrows catalog and leaderboard queries. State and Type match
// exactly; Name and District match case-insensitively by substring.
type Filters struct {
	Name     *string `json:"name,omitempty"`
	Type     *Type   `json:"type,omitempty"`
	State    *string `json:"state,omitempty"`
	District *string `json:"district,omitempty"`
}

func (f Filters) Apply(b *query.Builder) *query.Builder {
	var typ *string
	if f.Type != nil {
		s := string(*f.Type)
		typ = &s
	}
	return b.
		WhereContains("Name", f.Name).
		WhereEquals("Type", typ).
		WhereEquals("State", f.State).
		WhereContains("District", f.District)
}

// Matches applies the same predicate in memory.
func (f Filters) Matches(j *Jurisdiction) bool {
	if f.Name != nil && *f.Name != "" && !containsFold(j.Name, *f.Name) {
		return false
	}
	if f.Type != nil && j.Type != *f.Type {
		return false
	}
	if f.State != nil && j.State != *f.State {
		return false
	}
	if f.District != nil && *f.District != "" && !containsFold(j.District, *f.District) {
		return false
	}
	return true
}

func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if n := values.Get("name"); n != "" {
		f.Name = &n
	}

	if t := values.Get("type"); t != "" {
		typ := Type(t)
		f.Type = &typ
	}

	if s := values.Get("state"); s != "" {
		f.State = &s
	}

	if d := values.Get("district"); d != "" {
		f.District = &d
	}

	return f
}

func scanJurisdiction(s repository.Scanner) (Jurisdiction, error) {
	var (
		j                        Jurisdiction
		district, city           sql.NullString
		north, south, east, west sql.NullFloat64
	)
	err := s.Scan(
		&j.ID,
		&j.Name,
		&j.Type,
		&j.State,
		&district,
		&city,
		&north,
		&south,
		&east,
		&west,
		&j.Score,
		&j.IssuesReceived,
		&j.IssuesResolved,
		&j.OpenCount,
		&j.RespondedCount,
		&j.VerifiedCount,
		&j.ReviewCount,
		&j.DisputedCount,
		&j.LedgerSuspended,
		&j.CreatedAt,
		&j.UpdatedAt,
	)
	if err != nil {
		return j, err
	}

	j.District = district.String
	j.City = city.String
	if north.Valid && south.Valid && east.Valid && west.Valid {
		j.Bounds = &Bounds{
			North: north.Float64,
			South: south.Float64,
			East:  east.Float64,
			West:  west.Float64,
		}
	}
	return j, nil
}
