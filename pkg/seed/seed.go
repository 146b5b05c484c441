// Package seed loads the demo investigation projects. Every write goes
// through the investigation service so the seeded history is audited like
// any other.
package seed

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vehicle-quality/acd-registry/pkg/authz"
	"github.com/vehicle-quality/acd-registry/pkg/investigation"
)

//go:embed seed.yaml
var defaultDataset []byte

// Actor is the role the seeded writes are attributed to.
const Actor = authz.RoleAdmin

// Dataset is the YAML document of projects to seed.
type Dataset struct {
	Projects []Project `yaml:"projects"`
}

// Project is one seeded project. Status is reached through the lifecycle
// after creation, and CreatedAt (YYYY-MM-DD) becomes the clock for every write
// made on its behalf.
type Project struct {
	Title       string               `yaml:"title"`
	Description string               `yaml:"description"`
	Market      string               `yaml:"market"`
	Region      string               `yaml:"region"`
	Model       string               `yaml:"model"`
	Platform    string               `yaml:"platform"`
	PartNo      string               `yaml:"part_no"`
	VIN         string               `yaml:"vin"`
	SymptomCode string               `yaml:"symptom_code"`
	Severity    int                  `yaml:"severity"`
	Status      investigation.Status `yaml:"status"`
	Labels      []string             `yaml:"labels"`
	CreatedAt   string               `yaml:"created_at"`
	Sources     []Source             `yaml:"sources"`
}

// Source is a source record bound to a seeded project.
type Source struct {
	SourceID   string `yaml:"source_id"`
	SourceType string `yaml:"source_type"`
}

// statusPath lists the moves that take a new project from Ready to target
// along the lifecycle graph, so seeding also works with strict transitions.
func statusPath(target investigation.Status) []investigation.Status {
	switch target {
	case "", investigation.StatusReady:
		return nil
	case investigation.StatusContainment:
		return []investigation.Status{investigation.StatusActive, investigation.StatusContainment}
	default:
		return []investigation.Status{target}
	}
}

// Default returns the embedded dataset.
func Default() (*Dataset, error) {
	return Parse(defaultDataset)
}

// Parse decodes a YAML dataset.
func Parse(data []byte) (*Dataset, error) {
	var ds Dataset
	if err := yaml.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("parse seed dataset: %w", err)
	}
	for i, p := range ds.Projects {
		if _, err := time.Parse(time.DateOnly, p.CreatedAt); err != nil {
			return nil, fmt.Errorf("seed project %d: created_at: %w", i, err)
		}
		if p.Status != "" && !p.Status.Valid() {
			return nil, fmt.Errorf("seed project %d: unknown status %q", i, p.Status)
		}
	}
	return &ds, nil
}

// Load writes ds into svc when the database holds no projects and reports
// how many projects it created. A populated database is left untouched.
func Load(ctx context.Context, svc *investigation.Service, ds *Dataset, logger *slog.Logger) (int, error) {
	empty, err := svc.Empty(ctx)
	if err != nil {
		return 0, fmt.Errorf("check for existing projects: %w", err)
	}
	if !empty {
		logger.Info("database already populated, skipping seed")
		return 0, nil
	}

	for i, p := range ds.Projects {
		created, _ := time.Parse(time.DateOnly, p.CreatedAt)
		at := svc.WithNow(func() time.Time { return created })

		sev := p.Severity
		in := investigation.CreateProjectInput{
			Title:       p.Title,
			Description: p.Description,
			Market:      p.Market,
			Region:      p.Region,
			Model:       p.Model,
			Platform:    p.Platform,
			PartNo:      p.PartNo,
			VIN:         p.VIN,
			SymptomCode: p.SymptomCode,
			Severity:    &sev,
			Labels:      p.Labels,
		}
		if len(p.Sources) > 0 {
			in.SourceID = p.Sources[0].SourceID
			in.SourceType = p.Sources[0].SourceType
		}

		project, err := at.CreateProject(ctx, Actor, in)
		if err != nil {
			return i, fmt.Errorf("seed project %q: %w", p.Title, err)
		}

		for _, src := range p.Sources[min(1, len(p.Sources)):] {
			_, err := at.BindSource(ctx, Actor, investigation.BindInput{
				SourceID:   src.SourceID,
				SourceType: src.SourceType,
				ProjectID:  project.ProjectID,
			})
			if err != nil {
				return i, fmt.Errorf("seed project %s: bind %s:%s: %w",
					project.ProjectID, src.SourceType, src.SourceID, err)
			}
		}

		for _, st := range statusPath(p.Status) {
			if _, err := at.UpdateStatus(ctx, Actor, project.ProjectID, st); err != nil {
				return i, fmt.Errorf("seed project %s: status %s: %w", project.ProjectID, st, err)
			}
		}

		logger.Info("seeded project", "project_id", project.ProjectID, "sources", len(p.Sources))
	}
	return len(ds.Projects), nil
}
