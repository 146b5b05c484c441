package investigation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"gorm.io/gorm"

	"github.com/vehicle-quality/acd-registry/pkg/audit"
	"github.com/vehicle-quality/acd-registry/pkg/authz"
)

const defaultIDRetries = 5

// Service orchestrates the project lifecycle, source binding and audit trail.
// All methods are safe for concurrent use.
type Service struct {
	db       *gorm.DB
	projects *ProjectStore
	ledger   *Ledger
	audit    *audit.Recorder
	policy   *authz.Policy
	machine  *StatusMachine
	logger   *slog.Logger
	now      func() time.Time
	onCommit []func()
	retries  int
}

// Option configures a Service.
type Option func(*Service)

// WithClock sets the clock used for timestamps and age_days.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithPolicy replaces the default role allow-lists.
func WithPolicy(p *authz.Policy) Option {
	return func(s *Service) { s.policy = p }
}

// WithStrictTransitions enforces DefaultTransitions on status changes.
func WithStrictTransitions(strict bool) Option {
	return func(s *Service) { s.machine = NewStatusMachine(strict) }
}

// WithCommitHook registers fn to run after every committed mutation.
func WithCommitHook(fn func()) Option {
	return func(s *Service) { s.onCommit = append(s.onCommit, fn) }
}

// WithIDRetries bounds how often project creation retries after an
// identifier collision with another writer.
func WithIDRetries(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.retries = n
		}
	}
}

// NewService creates a Service over db.
func NewService(db *gorm.DB, opts ...Option) *Service {
	s := &Service{
		db:       db,
		projects: NewProjectStore(db),
		ledger:   NewLedger(db),
		audit:    audit.NewRecorder(db),
		policy:   authz.DefaultPolicy(),
		machine:  NewStatusMachine(false),
		logger:   slog.Default(),
		now:      func() time.Time { return time.Now().UTC() },
		retries:  defaultIDRetries,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.audit = s.audit.WithClock(s.now)
	s.logger = s.logger.With("component", "investigation")
	return s
}

// WithNow returns a copy of the service that uses now as its clock. The copy
// shares stores, hooks and the identifier allocation lock with s.
func (s *Service) WithNow(now func() time.Time) *Service {
	cp := *s
	cp.now = now
	cp.audit = s.audit.WithClock(now)
	return &cp
}

// AutoMigrate creates or updates every table the service uses.
func (s *Service) AutoMigrate() error {
	if err := s.projects.AutoMigrate(); err != nil {
		return err
	}
	if err := s.ledger.AutoMigrate(); err != nil {
		return err
	}
	return s.audit.AutoMigrate()
}

// Recorder exposes the audit recorder for read-only consumers.
func (s *Service) Recorder() *audit.Recorder { return s.audit }

// Ledger exposes the source ledger.
func (s *Service) Ledger() *Ledger { return s.ledger }

// Empty reports whether no project has been created yet.
func (s *Service) Empty(ctx context.Context) (bool, error) {
	n, err := s.projects.Count(ctx)
	if err != nil {
		return false, err
	}
	return n == 0, nil
}

func (s *Service) clock() time.Time { return s.now().UTC() }

func (s *Service) committed() {
	for _, fn := range s.onCommit {
		fn()
	}
}

// CreateProject validates input, allocates the next identifier and stores the
// project in Ready status together with its CREATE audit event. An inline
// source that another project already owns fails the whole create.
func (s *Service) CreateProject(ctx context.Context, actor authz.Role, in CreateProjectInput) (*Project, error) {
	if err := s.policy.Authorize(actor, authz.OpCreateProject); err != nil {
		return nil, err
	}
	if err := validateCreate(in); err != nil {
		return nil, err
	}

	unlock := s.projects.LockAllocation()
	defer unlock()

	var (
		view *Project
		err  error
	)
	for attempt := 1; attempt <= s.retries; attempt++ {
		view, err = s.createOnce(ctx, actor, in)
		if err == nil || !isDuplicateKey(err) {
			break
		}
		s.logger.Warn("project identifier collision, retrying", "attempt", attempt, "error", err)
	}
	if err != nil {
		return nil, err
	}

	s.committed()
	s.logger.Info("project created", "project_id", view.ProjectID, "actor", actor)
	return view, nil
}

func (s *Service) createOnce(ctx context.Context, actor authz.Role, in CreateProjectInput) (*Project, error) {
	now := s.clock()
	var view *Project
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		projects := s.projects.WithTx(tx)
		ledger := s.ledger.WithTx(tx)

		seq, err := projects.NextSeq(ctx)
		if err != nil {
			return err
		}
		severity := DefaultSeverity
		if in.Severity != nil {
			severity = *in.Severity
		}
		record := &ProjectRecord{
			Seq:         seq,
			ProjectID:   FormatProjectID(seq),
			Title:       strings.TrimSpace(in.Title),
			Description: in.Description,
			Market:      strings.TrimSpace(in.Market),
			Region:      in.Region,
			Model:       strings.TrimSpace(in.Model),
			Platform:    in.Platform,
			PartNo:      in.PartNo,
			VIN:         in.VIN,
			SymptomCode: strings.TrimSpace(in.SymptomCode),
			Severity:    severity,
			Status:      string(StatusReady),
			Labels:      dedupeLabels(in.Labels),
			CreatedBy:   string(actor),
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if in.SourceID != "" {
			record.CoverageRatio = CoverageBaseline
		}
		if err := projects.Insert(ctx, record); err != nil {
			return err
		}

		var links []SourceLinkRecord
		if in.SourceID != "" {
			res, err := ledger.Bind(ctx, in.SourceID, in.SourceType, record.ProjectID, string(actor), now)
			if err != nil {
				return err
			}
			if res.Outcome == OutcomeConflict {
				return sourceConflict(in.SourceID, in.SourceType, res.Link.OwnerProjectID)
			}
			links = append(links, res.Link)
		}

		view = s.toProject(record, links)
		_, err = s.audit.WithTx(tx).Record(ctx, audit.Entry{
			EntityType: audit.EntityProject,
			EntityID:   record.ProjectID,
			ActorRole:  string(actor),
			Action:     audit.ActionCreate,
			Before:     map[string]any{},
			After:      snapshot(view),
			Timestamp:  now,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

func validateCreate(in CreateProjectInput) error {
	var missing []string
	for _, f := range []struct{ name, value string }{
		{"title", in.Title},
		{"symptom_code", in.SymptomCode},
		{"market", in.Market},
		{"model", in.Model},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if (in.SourceID == "") != (in.SourceType == "") {
		if in.SourceID == "" {
			missing = append(missing, "source_id")
		} else {
			missing = append(missing, "source_type")
		}
	}
	if len(missing) > 0 {
		return missingFields(missing)
	}
	return nil
}

// dedupeLabels trims labels and drops blanks and repeats, keeping first-seen order.
func dedupeLabels(labels []string) JSONStringSlice {
	seen := mapset.NewThreadUnsafeSet[string]()
	out := JSONStringSlice{}
	for _, l := range labels {
		l = strings.TrimSpace(l)
		if l == "" || !seen.Add(l) {
			continue
		}
		out = append(out, l)
	}
	return out
}

// GetProject returns one project with its sources.
func (s *Service) GetProject(ctx context.Context, actor authz.Role, projectID string) (*Project, error) {
	if err := s.policy.Authorize(actor, authz.OpReadProject); err != nil {
		return nil, err
	}
	record, err := s.projects.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, projectNotFound(projectID)
	}
	links, err := s.ledger.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return s.toProject(record, links), nil
}

// UpdateStatus sets a project's status and records one UPDATE_STATUS event.
func (s *Service) UpdateStatus(ctx context.Context, actor authz.Role, projectID string, status Status) (*Project, error) {
	if err := s.policy.Authorize(actor, authz.OpUpdateStatus); err != nil {
		return nil, err
	}
	if status == "" {
		return nil, missingFields([]string{"status"})
	}
	if !status.Valid() {
		return nil, invalidField("status", fmt.Sprintf("invalid status %q", status))
	}

	now := s.clock()
	var view *Project
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		projects := s.projects.WithTx(tx)
		ledger := s.ledger.WithTx(tx)

		record, err := projects.GetForUpdate(ctx, projectID)
		if err != nil {
			return err
		}
		if record == nil {
			return projectNotFound(projectID)
		}
		if err := s.machine.ValidateTransition(Status(record.Status), status); err != nil {
			return err
		}
		links, err := ledger.ListByProject(ctx, projectID)
		if err != nil {
			return err
		}
		before := snapshot(s.toProject(record, links))

		if err := projects.SetStatus(ctx, projectID, status, now); err != nil {
			return err
		}
		record.Status = string(status)
		record.UpdatedAt = now
		view = s.toProject(record, links)

		_, err = s.audit.WithTx(tx).Record(ctx, audit.Entry{
			EntityType: audit.EntityProject,
			EntityID:   projectID,
			ActorRole:  string(actor),
			Action:     audit.ActionUpdateStatus,
			Before:     before,
			After:      snapshot(view),
			Timestamp:  now,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.committed()
	s.logger.Info("project status updated", "project_id", projectID, "status", status, "actor", actor)
	return view, nil
}

// LookupSource returns the current owner of a source.
func (s *Service) LookupSource(ctx context.Context, actor authz.Role, sourceType, sourceID string) (*SourceLink, error) {
	if err := s.policy.Authorize(actor, authz.OpLookupSource); err != nil {
		return nil, err
	}
	record, err := s.ledger.Lookup(ctx, sourceID, sourceType)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, &NotFoundError{Code: CodeNotFound, Resource: "source", ID: SourceKey(sourceType, sourceID)}
	}
	return toSourceLink(*record), nil
}

func toSourceLink(r SourceLinkRecord) *SourceLink {
	return &SourceLink{
		SourceID:       r.SourceID,
		SourceType:     r.SourceType,
		OwnerProjectID: r.OwnerProjectID,
		LinkedBy:       r.LinkedBy,
		LinkedAt:       r.LinkedAt.UTC(),
	}
}

func (s *Service) toProject(r *ProjectRecord, links []SourceLinkRecord) *Project {
	labels := []string(r.Labels)
	if labels == nil {
		labels = []string{}
	}
	sources := make([]SourceRef, 0, len(links))
	for _, l := range links {
		sources = append(sources, SourceRef{SourceID: l.SourceID, SourceType: l.SourceType})
	}
	created := r.CreatedAt.UTC()
	return &Project{
		ProjectID:     r.ProjectID,
		Title:         r.Title,
		Description:   r.Description,
		Market:        r.Market,
		Region:        r.Region,
		Model:         r.Model,
		Platform:      r.Platform,
		PartNo:        r.PartNo,
		VIN:           r.VIN,
		SymptomCode:   r.SymptomCode,
		Severity:      r.Severity,
		Status:        Status(r.Status),
		Labels:        labels,
		CreatedBy:     r.CreatedBy,
		CreatedAt:     created.Format(time.DateOnly),
		UpdatedAt:     r.UpdatedAt.UTC(),
		AgeDays:       ageDays(created, s.clock()),
		CoverageRatio: r.CoverageRatio,
		Sources:       sources,
	}
}

// ageDays counts calendar days between created and now in UTC.
func ageDays(created, now time.Time) int {
	c := time.Date(created.Year(), created.Month(), created.Day(), 0, 0, 0, 0, time.UTC)
	n := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return int(n.Sub(c).Hours() / 24)
}

// snapshot captures p as a JSON object for the audit log. age_days is left out
// because it depends on when the snapshot is read, not on the project state.
func snapshot(p *Project) map[string]any {
	b, err := json.Marshal(p)
	if err != nil {
		return map[string]any{"project_id": p.ProjectID}
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return map[string]any{"project_id": p.ProjectID}
	}
	delete(m, "age_days")
	return m
}
