package segmentation

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestCompileOrgScopeOnly(t *testing.T) {
	q := Compile(Filters{}, "org-1")

	assert.Equal(t, "SELECT COUNT(*) FROM subscribers s WHERE s.organization_id = $1", q.CountSQL)
	if diff := cmp.Diff([]interface{}{"org-1"}, q.CountArgs); diff != "" {
		t.Fatalf("count args mismatch (-want +got):\n%s", diff)
	}
	assert.NotContains(t, q.SQL, "LIMIT")
	assert.NotContains(t, q.SQL, "OFFSET")
}

func TestCompileBindsFieldNames(t *testing.T) {
	f := Filters{CustomFields: []FieldFilter{
		{Field: "age'; DROP TABLE subscribers; --", Op: Gt(18)},
	}}
	q := Compile(f, "org-1")

	assert.NotContains(t, q.SQL, "DROP TABLE")
	assert.Contains(t, q.CountSQL, "(s.custom_fields ->> $2)")
	assert.Contains(t, q.CountSQL, "CAST(TRIM((s.custom_fields ->> $2)) AS BIGINT) END) > $3")
	want := []interface{}{"org-1", "age'; DROP TABLE subscribers; --", int64(18)}
	if diff := cmp.Diff(want, q.CountArgs); diff != "" {
		t.Fatalf("args mismatch (-want +got):\n%s", diff)
	}
}

func TestCompileBoundsNumericCast(t *testing.T) {
	q := Compile(Filters{CustomFields: []FieldFilter{{Field: "age", Op: Gt(1)}}}, "org-1")
	assert.Contains(t, q.CountSQL, "~ '^\\s*-?[0-9]{1,18}\\s*$' THEN CAST(")
	assert.NotContains(t, q.CountSQL, "[0-9]+")
}

func TestCompileAllPredicates(t *testing.T) {
	after := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	before := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	active := true
	f := Filters{
		CustomFields: []FieldFilter{
			{Field: "city", Op: Contains("50%_off")},
			{Field: "plan", Op: Eq("pro")},
			{Field: "score", Op: Lt(10)},
		},
		EmailDomain:   "example.com",
		CreatedAfter:  &after,
		CreatedBefore: &before,
		IsActive:      &active,
		Limit:         25,
		Offset:        50,
	}
	q := Compile(f, "org-9")

	wantWhere := strings.Join([]string{
		"s.organization_id = $1",
		"(s.custom_fields ->> $2) ILIKE $3",
		"(s.custom_fields ->> $4) = $5",
		"(CASE WHEN (s.custom_fields ->> $6) ~ '^\\s*-?[0-9]{1,18}\\s*$' THEN CAST(TRIM((s.custom_fields ->> $6)) AS BIGINT) END) < $7",
		"s.email LIKE $8",
		"s.created_at >= $9",
		"s.created_at <= $10",
		"s.is_active = $11",
	}, " AND ")
	assert.Equal(t, "SELECT COUNT(*) FROM subscribers s WHERE "+wantWhere, q.CountSQL)
	assert.True(t, strings.HasSuffix(q.SQL, "ORDER BY s.created_at ASC, s.id ASC LIMIT $12 OFFSET $13"), q.SQL)

	wantArgs := []interface{}{
		"org-9", "city", `%50\%\_off%`, "plan", "pro", "score", int64(10),
		"%@example.com", after, before, true,
	}
	if diff := cmp.Diff(wantArgs, q.CountArgs); diff != "" {
		t.Fatalf("count args mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(append(wantArgs, 25, 50), q.Args); diff != "" {
		t.Fatalf("page args mismatch (-want +got):\n%s", diff)
	}
}

func TestCompileMoreClausesAddPredicates(t *testing.T) {
	base := Filters{CustomFields: []FieldFilter{{Field: "a", Op: Eq("1")}}}
	more := Filters{CustomFields: []FieldFilter{{Field: "a", Op: Eq("1")}, {Field: "b", Op: Eq("2")}}}

	qBase := Compile(base, "org")
	qMore := Compile(more, "org")
	assert.True(t, strings.HasPrefix(qMore.CountSQL, qBase.CountSQL+" AND "))
}
