package investigation

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/vehicle-quality/acd-registry/pkg/audit"
	"github.com/vehicle-quality/acd-registry/pkg/authz"
)

// BindSource attaches a source record to a project.
//
// The ledger bind, the coverage increment and both audit events (SourceLink
// BIN, then Project BIN_SOURCE) commit in one transaction. A source owned by
// another project yields a *ConflictError naming the owner and writes nothing.
func (s *Service) BindSource(ctx context.Context, actor authz.Role, in BindInput) (*BindResult, error) {
	if err := s.policy.Authorize(actor, authz.OpBindSource); err != nil {
		return nil, err
	}
	var missing []string
	if in.SourceID == "" {
		missing = append(missing, "source_id")
	}
	if in.SourceType == "" {
		missing = append(missing, "source_type")
	}
	if in.ProjectID == "" {
		missing = append(missing, "project_id")
	}
	if len(missing) > 0 {
		return nil, missingFields(missing)
	}

	now := s.clock()
	var result *BindResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		projects := s.projects.WithTx(tx)
		ledger := s.ledger.WithTx(tx)
		recorder := s.audit.WithTx(tx)

		target, err := projects.GetForUpdate(ctx, in.ProjectID)
		if err != nil {
			return err
		}
		if target == nil {
			return projectNotFound(in.ProjectID)
		}
		links, err := ledger.ListByProject(ctx, target.ProjectID)
		if err != nil {
			return err
		}
		before := snapshot(s.toProject(target, links))

		res, err := ledger.Bind(ctx, in.SourceID, in.SourceType, target.ProjectID, string(actor), now)
		if err != nil {
			return err
		}
		if res.Outcome == OutcomeConflict {
			return sourceConflict(in.SourceID, in.SourceType, res.Link.OwnerProjectID)
		}

		if err := projects.IncrementCoverage(ctx, target.ProjectID, CoverageStep, now); err != nil {
			return err
		}
		updated, err := projects.Get(ctx, target.ProjectID)
		if err != nil {
			return err
		}
		if res.Outcome == OutcomeCreated {
			links = append(links, res.Link)
		}
		view := s.toProject(updated, links)

		linkBefore := map[string]any{}
		if res.Previous != nil {
			linkBefore = linkSnapshot(*res.Previous)
		}
		if _, err := recorder.Record(ctx, audit.Entry{
			EntityType: audit.EntitySourceLink,
			EntityID:   res.Link.Key(),
			ActorRole:  string(actor),
			Action:     audit.ActionBind,
			Before:     linkBefore,
			After:      linkSnapshot(res.Link),
			Timestamp:  now,
		}); err != nil {
			return err
		}
		if _, err := recorder.Record(ctx, audit.Entry{
			EntityType: audit.EntityProject,
			EntityID:   target.ProjectID,
			ActorRole:  string(actor),
			Action:     audit.ActionBindSource,
			Before:     before,
			After:      snapshot(view),
			Timestamp:  now,
		}); err != nil {
			return err
		}

		result = &BindResult{Project: view, Outcome: res.Outcome}
		return nil
	})
	if err != nil {
		var conflict *ConflictError
		if errors.As(err, &conflict) {
			s.logger.Info("source bind rejected",
				"source", SourceKey(in.SourceType, in.SourceID),
				"target", in.ProjectID,
				"owner", conflict.ExistingProjectID,
				"actor", actor)
		}
		return nil, err
	}

	s.committed()
	s.logger.Info("source bound",
		"source", SourceKey(in.SourceType, in.SourceID),
		"project_id", in.ProjectID,
		"outcome", result.Outcome,
		"actor", actor)
	return result, nil
}

func linkSnapshot(r SourceLinkRecord) map[string]any {
	return map[string]any{
		"source_id":   r.SourceID,
		"source_type": r.SourceType,
		"project_id":  r.OwnerProjectID,
		"linked_by":   r.LinkedBy,
		"linked_at":   r.LinkedAt.UTC().Format(time.RFC3339Nano),
	}
}
