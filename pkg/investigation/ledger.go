package investigation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Ledger is the single source of truth for which project owns a source record.
type Ledger struct {
	db *gorm.DB
}

// NewLedger creates a new Ledger.
func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// WithTx returns a ledger bound to tx.
func (l *Ledger) WithTx(tx *gorm.DB) *Ledger {
	return &Ledger{db: tx}
}

// AutoMigrate creates or updates the source_links table.
func (l *Ledger) AutoMigrate() error {
	if err := l.db.AutoMigrate(&SourceLinkRecord{}); err != nil {
		return fmt.Errorf("auto-migrate source_links: %w", err)
	}
	return nil
}

// Lookup returns the current link for a source.
// Returns nil, nil if the source is unowned.
func (l *Ledger) Lookup(ctx context.Context, sourceID, sourceType string) (*SourceLinkRecord, error) {
	return lookupLink(l.db.WithContext(ctx), sourceID, sourceType)
}

func lookupLink(db *gorm.DB, sourceID, sourceType string) (*SourceLinkRecord, error) {
	var record SourceLinkRecord
	err := db.Where("source_id = ? AND source_type = ?", sourceID, sourceType).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("lookup source link: %w", err)
	}
	return &record, nil
}

// latest makes the next read see the newest committed row rather than the
// transaction snapshot. SQLite has a single writer and no locking reads.
func latest(tx *gorm.DB) *gorm.DB {
	return lockingRead(tx, clause.LockingStrengthShare)
}

// lockingRead adds a row lock of the given strength on engines that have one.
func lockingRead(tx *gorm.DB, strength string) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: strength})
}

// LedgerResult describes what Bind did.
type LedgerResult struct {
	Outcome BindOutcome
	// Link is the link after the bind; on conflict it names the current owner.
	Link SourceLinkRecord
	// Previous holds the provenance replaced by a reaffirm.
	Previous *SourceLinkRecord
}

// Bind attaches a source to target. An unowned source is linked (Created), a
// source already owned by target has its provenance refreshed (Reaffirmed),
// and a source owned elsewhere is left untouched (Conflict).
//
// The insert relies on the unique (source_id, source_type) index: when a
// concurrent binder wins the race the insert affects no rows and the winner is
// re-read. Bind runs in its own transaction, or a savepoint when l is bound to one.
func (l *Ledger) Bind(ctx context.Context, sourceID, sourceType, target, actor string, at time.Time) (*LedgerResult, error) {
	var result *LedgerResult
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := lookupLink(tx, sourceID, sourceType)
		if err != nil {
			return err
		}

		if existing == nil {
			record := &SourceLinkRecord{
				SourceID:       sourceID,
				SourceType:     sourceType,
				OwnerProjectID: target,
				LinkedBy:       actor,
				LinkedAt:       at,
			}
			res := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "source_id"}, {Name: "source_type"}},
				DoNothing: true,
			}).Create(record)
			if res.Error != nil {
				return fmt.Errorf("insert source link: %w", res.Error)
			}
			if res.RowsAffected == 1 {
				result = &LedgerResult{Outcome: OutcomeCreated, Link: *record}
				return nil
			}
			// Lost the race; resolve against the committed owner.
			existing, err = lookupLink(latest(tx), sourceID, sourceType)
			if err != nil {
				return err
			}
			if existing == nil {
				return fmt.Errorf("source link %s conflicted but is not readable", SourceKey(sourceType, sourceID))
			}
		}

		if existing.OwnerProjectID != target {
			result = &LedgerResult{Outcome: OutcomeConflict, Link: *existing}
			return nil
		}

		previous := *existing
		err = tx.Model(&SourceLinkRecord{}).
			Where("id = ?", existing.ID).
			Updates(map[string]any{"linked_by": actor, "linked_at": at}).Error
		if err != nil {
			return fmt.Errorf("reaffirm source link: %w", err)
		}
		existing.LinkedBy = actor
		existing.LinkedAt = at
		result = &LedgerResult{Outcome: OutcomeReaffirmed, Link: *existing, Previous: &previous}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ListByProject returns the links owned by a project in link order.
func (l *Ledger) ListByProject(ctx context.Context, projectID string) ([]SourceLinkRecord, error) {
	var records []SourceLinkRecord
	err := l.db.WithContext(ctx).
		Where("owner_project_id = ?", projectID).
		Order("id ASC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("list source links: %w", err)
	}
	return records, nil
}

// ListByProjects returns the links owned by each of projectIDs, keyed by owner.
func (l *Ledger) ListByProjects(ctx context.Context, projectIDs []string) (map[string][]SourceLinkRecord, error) {
	out := make(map[string][]SourceLinkRecord, len(projectIDs))
	if len(projectIDs) == 0 {
		return out, nil
	}
	var records []SourceLinkRecord
	err := l.db.WithContext(ctx).
		Where("owner_project_id IN ?", projectIDs).
		Order("id ASC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("list source links: %w", err)
	}
	for _, r := range records {
		out[r.OwnerProjectID] = append(out[r.OwnerProjectID], r)
	}
	return out, nil
}
