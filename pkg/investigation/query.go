package investigation

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/vehicle-quality/acd-registry/pkg/audit"
	"github.com/vehicle-quality/acd-registry/pkg/authz"
)

// ExportHeader is the fixed column order of the CSV export.
var ExportHeader = []string{
	"project_id", "title", "market", "model", "status",
	"severity", "created_at", "vin", "part_no",
}

// ListProjects returns projects matching filter, newest-created first.
func (s *Service) ListProjects(ctx context.Context, actor authz.Role, filter ProjectFilter) ([]*Project, error) {
	if err := s.policy.Authorize(actor, authz.OpListProjects); err != nil {
		return nil, err
	}
	return s.listProjects(ctx, filter)
}

func (s *Service) listProjects(ctx context.Context, filter ProjectFilter) ([]*Project, error) {
	records, err := s.projects.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ProjectID
	}
	links, err := s.ledger.ListByProjects(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]*Project, len(records))
	for i := range records {
		out[i] = s.toProject(&records[i], links[records[i].ProjectID])
	}
	return out, nil
}

// ExportCSV writes matching projects to w as RFC 4180 CSV with ExportHeader
// as the first row.
func (s *Service) ExportCSV(ctx context.Context, actor authz.Role, filter ProjectFilter, w io.Writer) error {
	if err := s.policy.Authorize(actor, authz.OpExport); err != nil {
		return err
	}
	projects, err := s.listProjects(ctx, filter)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(ExportHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, p := range projects {
		row := []string{
			p.ProjectID,
			p.Title,
			p.Market,
			p.Model,
			string(p.Status),
			strconv.Itoa(p.Severity),
			p.CreatedAt,
			p.VIN,
			p.PartNo,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row %s: %w", p.ProjectID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ProjectAudit returns the Project audit events for projectID, newest first.
// An unknown project yields an empty list.
func (s *Service) ProjectAudit(ctx context.Context, actor authz.Role, projectID string) ([]audit.EventRecord, error) {
	if err := s.policy.Authorize(actor, authz.OpReadAudit); err != nil {
		return nil, err
	}
	return s.audit.ListByEntity(ctx, audit.EntityProject, projectID)
}
