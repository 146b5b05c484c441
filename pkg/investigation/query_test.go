package investigation

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vehicle-quality/acd-registry/pkg/audit"
	"github.com/vehicle-quality/acd-registry/pkg/authz"
)

func day(n int) func() time.Time {
	return func() time.Time { return time.Date(2026, 3, n, 12, 0, 0, 0, time.UTC) }
}

// seedQueryFixtures creates three projects on consecutive days.
func seedQueryFixtures(t *testing.T, svc *Service) {
	t.Helper()
	ctx := context.Background()
	one, two := 1, 2

	_, err := svc.WithNow(day(1)).CreateProject(ctx, authz.RoleQuality, CreateProjectInput{
		Title: "HV battery contactor weld, MG4 UK", SymptomCode: "NS-01", Market: "UK", Model: "MG4",
		VIN: "LSJWH4090PN100001", PartNo: "12345678", Severity: &one,
	})
	require.NoError(t, err)
	_, err = svc.WithNow(day(2)).CreateProject(ctx, authz.RoleTAC, CreateProjectInput{
		Title: "ICE misfire – HS 1.5T APAC", SymptomCode: "MI-03", Market: "Australia", Model: "HS",
		VIN: "LSJWH4097PN065724", PartNo: "87654321", Severity: &two,
	})
	require.NoError(t, err)
	_, err = svc.WithNow(day(2)).UpdateStatus(ctx, authz.RoleTAC, "ACD000002", StatusActive)
	require.NoError(t, err)
	_, err = svc.WithNow(day(3)).CreateProject(ctx, authz.RoleTAC, CreateProjectInput{
		Title: `Door seal "whistle" at speed`, SymptomCode: "NV-07", Market: "UK", Model: "ZS",
	})
	require.NoError(t, err)
}

func projectIDs(ps []*Project) []string {
	ids := make([]string, len(ps))
	for i, p := range ps {
		ids[i] = p.ProjectID
	}
	return ids
}

func TestListProjects_Filters(t *testing.T) {
	svc, _ := newTestService(t)
	seedQueryFixtures(t, svc)
	ctx := context.Background()

	tests := []struct {
		name   string
		filter ProjectFilter
		want   []string
	}{
		{"all newest first", ProjectFilter{}, []string{"ACD000003", "ACD000002", "ACD000001"}},
		{"status", ProjectFilter{Status: "Active"}, []string{"ACD000002"}},
		{"market", ProjectFilter{Market: "UK"}, []string{"ACD000003", "ACD000001"}},
		{"model", ProjectFilter{Model: "HS"}, []string{"ACD000002"}},
		{"market is exact", ProjectFilter{Market: "uk"}, []string{}},
		{"query title case-insensitive", ProjectFilter{Query: "mg4"}, []string{"ACD000001"}},
		{"query vin", ProjectFilter{Query: "pn065724"}, []string{"ACD000002"}},
		{"query part no", ProjectFilter{Query: "1234"}, []string{"ACD000001"}},
		{"query id", ProjectFilter{Query: "acd000003"}, []string{"ACD000003"}},
		{"query combined with market", ProjectFilter{Query: "lsjwh", Market: "UK"}, []string{"ACD000001"}},
		{"no match", ProjectFilter{Query: "nothing"}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.ListProjects(ctx, authz.RoleRM, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, projectIDs(got))
		})
	}
}

func TestListProjects_IncludesSources(t *testing.T) {
	svc, _ := newTestService(t)
	seedQueryFixtures(t, svc)
	ctx := context.Background()

	_, err := svc.BindSource(ctx, authz.RoleTAC, BindInput{SourceID: "S22334", SourceType: "SSNW", ProjectID: "ACD000002"})
	require.NoError(t, err)

	got, err := svc.ListProjects(ctx, authz.RoleRM, ProjectFilter{Model: "HS"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, []SourceRef{{SourceID: "S22334", SourceType: "SSNW"}}, got[0].Sources)
}

func TestExportCSV_Golden(t *testing.T) {
	svc, _ := newTestService(t)
	seedQueryFixtures(t, svc)

	var buf bytes.Buffer
	require.NoError(t, svc.ExportCSV(context.Background(), authz.RoleQuality, ProjectFilter{}, &buf))

	g := goldie.New(t)
	g.Assert(t, "export", buf.Bytes())
}

func TestExportCSV_Forbidden(t *testing.T) {
	svc, _ := newTestService(t)
	for _, role := range []authz.Role{authz.RoleRM, authz.RoleTAC} {
		var buf bytes.Buffer
		err := svc.ExportCSV(context.Background(), role, ProjectFilter{}, &buf)
		var ae *authz.AuthorizationError
		require.ErrorAs(t, err, &ae)
		assert.Zero(t, buf.Len())
	}
}

func TestExportCSV_HeaderOnlyWhenEmpty(t *testing.T) {
	svc, _ := newTestService(t)
	var buf bytes.Buffer
	require.NoError(t, svc.ExportCSV(context.Background(), authz.RoleAdmin, ProjectFilter{}, &buf))
	assert.Equal(t, "project_id,title,market,model,status,severity,created_at,vin,part_no\n", buf.String())
}

func TestProjectAudit_NewestFirstProjectEventsOnly(t *testing.T) {
	svc, _ := newTestService(t)
	seedQueryFixtures(t, svc)
	ctx := context.Background()

	_, err := svc.WithNow(day(4)).BindSource(ctx, authz.RoleTAC, BindInput{SourceID: "W66789", SourceType: "Warranty", ProjectID: "ACD000002"})
	require.NoError(t, err)

	events, err := svc.ProjectAudit(ctx, authz.RoleRM, "ACD000002")
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, string(audit.ActionBindSource), events[0].Action)
	assert.Equal(t, string(audit.ActionUpdateStatus), events[1].Action)
	assert.Equal(t, string(audit.ActionCreate), events[2].Action)
	for _, e := range events {
		assert.Equal(t, string(audit.EntityProject), e.EntityType)
	}

	none, err := svc.ProjectAudit(ctx, authz.RoleRM, "ACD000404")
	require.NoError(t, err)
	assert.Empty(t, none)
}
