package query_test

import (
	"testing"

	"github.com/JaimeStill/civic/pkg/query"
)

func testProjection() *query.ProjectionMap {
	return query.NewProjectionMap("public", "issues", "i").
		Project("id", "id").
		Project("description", "description").
		Project("created_at", "createdAt")
}

func ptr(s string) *string { return &s }

func TestProjectionMapTable(t *testing.T) {
	p := testProjection()
	got := p.Table()
	want := "public.issues i"
	if got != want {
		t.Errorf("Table() = %q, want %q", got, want)
	}
}

func TestProjectionMapAlias(t *testing.T) {
	p := testProjection()
	if got := p.Alias(); got != "i" {
		t.Errorf("Alias() = %q, want %q", got, "i")
	}
}

func TestProjectionMapColumns(t *testing.T) {
	p := testProjection()
	got := p.Columns()
	want := "i.id, i.description, i.created_at"
	if got != want {
		t.Errorf("Columns() = %q, want %q", got, want)
	}
}

func TestProjectionMapColumnList(t *testing.T) {
	p := testProjection()
	got := p.ColumnList()
	if len(got) != 3 {
		t.Fatalf("ColumnList() length = %d, want 3", len(got))
	}
	want := []string{"i.id", "i.description", "i.created_at"}
	for i, col := range got {
		if col != want[i] {
			t.Errorf("ColumnList()[%d] = %q, want %q", i, col, want[i])
		}
	}
}

func TestProjectionMapColumnLookup(t *testing.T) {
	p := testProjection()

	tests := []struct {
		name     string
		viewName string
		want     string
	}{
		{"mapped field", "description", "i.description"},
		{"mapped camel", "createdAt", "i.created_at"},
		{"unmapped passthrough", "unknown", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.Column(tt.viewName); got != tt.want {
				t.Errorf("Column(%q) = %q, want %q", tt.viewName, got, tt.want)
			}
		})
	}
}

func TestParseSortFields(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []query.SortField
	}{
		{
			name:  "empty string",
			input: "",
			want:  nil,
		},
		{
			name:  "single ascending",
			input: "name",
			want:  []query.SortField{{Field: "name", Descending: false}},
		},
		{
			name:  "single descending",
			input: "-createdAt",
			want:  []query.SortField{{Field: "createdAt", Descending: true}},
		},
		{
			name:  "multiple mixed",
			input: "name,-createdAt",
			want: []query.SortField{
				{Field: "name", Descending: false},
				{Field: "createdAt", Descending: true},
			},
		},
		{
			name:  "with spaces",
			input: " name , -createdAt ",
			want: []query.SortField{
				{Field: "name", Descending: false},
				{Field: "createdAt", Descending: true},
			},
		},
		{
			name:  "empty parts skipped",
			input: "name,,createdAt",
			want: []query.SortField{
				{Field: "name", Descending: false},
				{Field: "createdAt", Descending: false},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := query.ParseSortFields(tt.input)
			if tt.want == nil {
				if got != nil {
					t.Errorf("ParseSortFields(%q) = %v, want nil", tt.input, got)
				}
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ParseSortFields(%q) length = %d, want %d", tt.input, len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("ParseSortFields(%q)[%d] = %v, want %v", tt.input, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestBuilderBuild(t *testing.T) {
	p := testProjection()
	b := query.NewBuilder(p)
	sql, args := b.Build()

	wantSQL := "SELECT i.id, i.description, i.created_at FROM public.issues i"
	if sql != wantSQL {
		t.Errorf("Build() sql = %q, want %q", sql, wantSQL)
	}
	if len(args) != 0 {
		t.Errorf("Build() args = %v, want empty", args)
	}
}

func TestBuilderBuildCount(t *testing.T) {
	p := testProjection()
	b := query.NewBuilder(p)
	sql, args := b.BuildCount()

	wantSQL := "SELECT COUNT(*) FROM public.issues i"
	if sql != wantSQL {
		t.Errorf("BuildCount() sql = %q, want %q", sql, wantSQL)
	}
	if len(args) != 0 {
		t.Errorf("BuildCount() args = %v, want empty", args)
	}
}

func TestBuilderBuildPage(t *testing.T) {
	p := testProjection()
	b := query.NewBuilder(p, query.SortField{Field: "createdAt", Descending: true})
	sql, args := b.BuildPage(2, 10)

	wantSQL := "SELECT i.id, i.description, i.created_at FROM public.issues i ORDER BY i.created_at DESC LIMIT 10 OFFSET 10"
	if sql != wantSQL {
		t.Errorf("BuildPage() sql = %q, want %q", sql, wantSQL)
	}
	if len(args) != 0 {
		t.Errorf("BuildPage() args = %v, want empty", args)
	}
}

func TestBuilderBuildSingle(t *testing.T) {
	p := testProjection()
	b := query.NewBuilder(p)
	sql, args := b.BuildSingle("id", "abc-123")

	wantSQL := "SELECT i.id, i.description, i.created_at FROM public.issues i WHERE i.id = $1"
	if sql != wantSQL {
		t.Errorf("BuildSingle() sql = %q, want %q", sql, wantSQL)
	}
	if len(args) != 1 || args[0] != "abc-123" {
		t.Errorf("BuildSingle() args = %v, want [abc-123]", args)
	}
}

func TestBuilderBuildSingleForUpdate(t *testing.T) {
	p := testProjection()
	sql, args := query.NewBuilder(p).BuildSingleForUpdate("id", "abc-123")

	wantSQL := "SELECT i.id, i.description, i.created_at FROM public.issues i WHERE i.id = $1 FOR UPDATE OF i"
	if sql != wantSQL {
		t.Errorf("BuildSingleForUpdate() sql = %q, want %q", sql, wantSQL)
	}
	if len(args) != 1 || args[0] != "abc-123" {
		t.Errorf("BuildSingleForUpdate() args = %v, want [abc-123]", args)
	}
}

func TestBuilderWhereEquals(t *testing.T) {
	p := testProjection()
	b := query.NewBuilder(p)
	b.WhereEquals("description", "pothole")
	sql, args := b.Build()

	wantSQL := "SELECT i.id, i.description, i.created_at FROM public.issues i WHERE i.description = $1"
	if sql != wantSQL {
		t.Errorf("sql = %q, want %q", sql, wantSQL)
	}
	if len(args) != 1 || args[0] != "pothole" {
		t.Errorf("args = %v, want [pothole]", args)
	}
}

func TestBuilderWhereEqualsNilSkipped(t *testing.T) {
	p := testProjection()
	b := query.NewBuilder(p)
	b.WhereEquals("description", nil)
	sql, args := b.Build()

	wantSQL := "SELECT i.id, i.description, i.created_at FROM public.issues i"
	if sql != wantSQL {
		t.Errorf("sql = %q, want %q", sql, wantSQL)
	}
	if len(args) != 0 {
		t.Errorf("args = %v, want empty", args)
	}
}

func TestBuilderWhereContains(t *testing.T) {
	p := testProjection()
	b := query.NewBuilder(p)
	b.WhereContains("description", ptr("test"))
	sql, args := b.Build()

	wantSQL := "SELECT i.id, i.description, i.created_at FROM public.issues i WHERE i.description ILIKE $1"
	if sql != wantSQL {
		t.Errorf("sql = %q, want %q", sql, wantSQL)
	}
	if len(args) != 1 || args[0] != "%test%" {
		t.Errorf("args = %v, want [%%test%%]", args)
	}
}

func TestBuilderWhereContainsNilSkipped(t *testing.T) {
	p := testProjection()
	b := query.NewBuilder(p)
	b.WhereContains("description", nil)
	_, args := b.Build()

	if len(args) != 0 {
		t.Errorf("args = %v, want empty", args)
	}
}

func TestBuilderWhereContainsEmptySkipped(t *testing.T) {
	p := testProjection()
	b := query.NewBuilder(p)
	b.WhereContains("description", ptr(""))
	_, args := b.Build()

	if len(args) != 0 {
		t.Errorf("args = %v, want empty", args)
	}
}

func TestBuilderWhereSearch(t *testing.T) {
	p := testProjection()
	b := query.NewBuilder(p)
	b.WhereSearch(ptr("test"), "description", "id")
	sql, args := b.Build()

	wantSQL := "SELECT i.id, i.description, i.created_at FROM public.issues i WHERE (i.description ILIKE $1 OR i.id ILIKE $2)"
	if sql != wantSQL {
		t.Errorf("sql = %q, want %q", sql, wantSQL)
	}
	if len(args) != 2 || args[0] != "%test%" || args[1] != "%test%" {
		t.Errorf("args = %v, want [%%test%% %%test%%]", args)
	}
}

func TestBuilderWhereSearchNilSkipped(t *testing.T) {
	p := testProjection()
	b := query.NewBuilder(p)
	b.WhereSearch(nil, "description")
	_, args := b.Build()

	if len(args) != 0 {
		t.Errorf("args = %v, want empty", args)
	}
}

func TestBuilderMultipleConditions(t *testing.T) {
	p := testProjection()
	b := query.NewBuilder(p)
	b.WhereEquals("description", "pothole")
	b.WhereContains("id", ptr("abc"))
	sql, args := b.Build()

	wantSQL := "SELECT i.id, i.description, i.created_at FROM public.issues i WHERE i.description = $1 AND i.id ILIKE $2"
	if sql != wantSQL {
		t.Errorf("sql = %q, want %q", sql, wantSQL)
	}
	if len(args) != 2 {
		t.Errorf("args length = %d, want 2", len(args))
	}
	if args[0] != "pothole" {
		t.Errorf("args[0] = %v, want pothole", args[0])
	}
	if args[1] != "%abc%" {
		t.Errorf("args[1] = %v, want %%abc%%", args[1])
	}
}

func TestBuilderOrderByFields(t *testing.T) {
	p := testProjection()
	b := query.NewBuilder(p, query.SortField{Field: "id", Descending: false})
	b.OrderByFields([]query.SortField{
		{Field: "createdAt", Descending: true},
		{Field: "description", Descending: false},
	})
	sql, _ := b.Build()

	wantSQL := "SELECT i.id, i.description, i.created_at FROM public.issues i ORDER BY i.created_at DESC, i.description ASC"
	if sql != wantSQL {
		t.Errorf("sql = %q, want %q", sql, wantSQL)
	}
}

func TestBuilderDefaultSort(t *testing.T) {
	p := testProjection()
	b := query.NewBuilder(p, query.SortField{Field: "createdAt", Descending: true})
	sql, _ := b.Build()

	wantSQL := "SELECT i.id, i.description, i.created_at FROM public.issues i ORDER BY i.created_at DESC"
	if sql != wantSQL {
		t.Errorf("sql = %q, want %q", sql, wantSQL)
	}
}

func TestBuilderBuildCountWithConditions(t *testing.T) {
	p := testProjection()
	b := query.NewBuilder(p)
	b.WhereEquals("description", "pothole")
	sql, args := b.BuildCount()

	wantSQL := "SELECT COUNT(*) FROM public.issues i WHERE i.description = $1"
	if sql != wantSQL {
		t.Errorf("sql = %q, want %q", sql, wantSQL)
	}
	if len(args) != 1 || args[0] != "pothole" {
		t.Errorf("args = %v, want [pothole]", args)
	}
}

func TestBuilderBuildPageWithConditions(t *testing.T) {
	p := testProjection()
	b := query.NewBuilder(p, query.SortField{Field: "id"})
	b.WhereContains("description", ptr("report"))
	sql, args := b.BuildPage(3, 25)

	wantSQL := "SELECT i.id, i.description, i.created_at FROM public.issues i WHERE i.description ILIKE $1 ORDER BY i.id ASC LIMIT 25 OFFSET 50"
	if sql != wantSQL {
		t.Errorf("sql = %q, want %q", sql, wantSQL)
	}
	if len(args) != 1 || args[0] != "%report%" {
		t.Errorf("args = %v, want [%%report%%]", args)
	}
}

func TestProjectionMapJoin(t *testing.T) {
	p := query.NewProjectionMap("public", "issues", "i").
		Project("id", "ID").
		Join("public", "jurisdictions", "j", "JOIN", "j.id = i.jurisdiction_id").
		Project("name", "JurisdictionName")

	wantFrom := "public.issues i JOIN public.jurisdictions j ON j.id = i.jurisdiction_id"
	if got := p.From(); got != wantFrom {
		t.Errorf("From() = %q, want %q", got, wantFrom)
	}
	if got := p.Column("JurisdictionName"); got != "j.name" {
		t.Errorf("Column(JurisdictionName) = %q, want j.name", got)
	}
	if got := p.Table(); got != "public.issues i" {
		t.Errorf("Table() = %q, want base table only", got)
	}

	sql, _ := query.NewBuilder(p).BuildSingle("ID", "x")
	wantSQL := "SELECT i.id, j.name FROM " + wantFrom + " WHERE i.id = $1"
	if sql != wantSQL {
		t.Errorf("BuildSingle() sql = %q, want %q", sql, wantSQL)
	}
}

func TestBuilderWhereBetween(t *testing.T) {
	p := query.NewProjectionMap("public", "issues", "i").
		Project("latitude", "Latitude").
		Project("longitude", "Longitude")

	south, north := 10.0, 20.0
	west, east := 70.0, 80.0

	sql, args := query.NewBuilder(p).
		WhereBetween("Latitude", &south, &north).
		WhereBetween("Longitude", &west, &east).
		Build()

	wantSQL := "SELECT i.latitude, i.longitude FROM public.issues i WHERE i.latitude BETWEEN $1 AND $2 AND i.longitude BETWEEN $3 AND $4"
	if sql != wantSQL {
		t.Errorf("Build() sql = %q, want %q", sql, wantSQL)
	}
	if len(args) != 4 {
		t.Errorf("args = %v, want 4 values", args)
	}
}

func TestBuilderWhereBetweenMissingBoundSkipped(t *testing.T) {
	p := query.NewProjectionMap("public", "issues", "i").Project("latitude", "Latitude")

	low := 10.0
	var high *float64
	sql, args := query.NewBuilder(p).WhereBetween("Latitude", &low, high).Build()

	if sql != "SELECT i.latitude FROM public.issues i" {
		t.Errorf("Build() sql = %q", sql)
	}
	if len(args) != 0 {
		t.Errorf("args = %v, want none", args)
	}
}

func TestBuilderOrderByFieldsDropsUnprojected(t *testing.T) {
	p := testProjection()
	b := query.NewBuilder(p, query.SortField{Field: "createdAt", Descending: true})
	b.OrderByFields([]query.SortField{
		{Field: "id; DROP TABLE issues", Descending: false},
	})
	sql, _ := b.Build()

	wantSQL := "SELECT i.id, i.description, i.created_at FROM public.issues i ORDER BY i.created_at DESC"
	if sql != wantSQL {
		t.Errorf("sql = %q, want %q", sql, wantSQL)
	}
}

func TestBuilderWhereContainsEscapesWildcards(t *testing.T) {
	_, args := query.NewBuilder(testProjection()).
		WhereContains("description", ptr(`50%_off\`)).
		Build()

	want := `%50\%\_off\\%`
	if len(args) != 1 || args[0] != want {
		t.Errorf("args = %v, want [%s]", args, want)
	}
}

func TestBuilderWhereSearchTrimsAndSkipsBlank(t *testing.T) {
	_, args := query.NewBuilder(testProjection()).WhereSearch(ptr("   "), "description").Build()
	if len(args) != 0 {
		t.Errorf("blank search args = %v, want empty", args)
	}

	_, args = query.NewBuilder(testProjection()).WhereSearch(ptr(" drain "), "description").Build()
	if len(args) != 1 || args[0] != "%drain%" {
		t.Errorf("args = %v, want [%%drain%%]", args)
	}
}

func TestBuilderPlaceholdersRestartPerStatement(t *testing.T) {
	b := query.NewBuilder(testProjection()).
		WhereEquals("description", "pothole").
		WhereContains("id", ptr("abc"))

	count, countArgs := b.BuildCount()
	page, pageArgs := b.BuildPage(1, 10)

	if count != "SELECT COUNT(*) FROM public.issues i WHERE i.description = $1 AND i.id ILIKE $2" {
		t.Errorf("count sql = %q", count)
	}
	if page != "SELECT i.id, i.description, i.created_at FROM public.issues i WHERE i.description = $1 AND i.id ILIKE $2 LIMIT 10 OFFSET 0" {
		t.Errorf("page sql = %q", page)
	}
	if len(countArgs) != 2 || len(pageArgs) != 2 {
		t.Errorf("args = %v / %v, want two each", countArgs, pageArgs)
	}
}
