package investigation

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestLedger_BindOutcomes(t *testing.T) {
	db := newTestDB(t)
	ledger := NewLedger(db)
	require.NoError(t, ledger.AutoMigrate())
	ctx := context.Background()

	got, err := ledger.Lookup(ctx, "S1", "SSNW")
	require.NoError(t, err)
	assert.Nil(t, got)

	res, err := ledger.Bind(ctx, "S1", "SSNW", "ACD000001", "TAC", testEpoch)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, res.Outcome)
	assert.Nil(t, res.Previous)

	res, err = ledger.Bind(ctx, "S1", "SSNW", "ACD000001", "Admin", testEpoch.Add(1))
	require.NoError(t, err)
	assert.Equal(t, OutcomeReaffirmed, res.Outcome)
	require.NotNil(t, res.Previous)
	assert.Equal(t, "TAC", res.Previous.LinkedBy)
	assert.Equal(t, "Admin", res.Link.LinkedBy)

	res, err = ledger.Bind(ctx, "S1", "SSNW", "ACD000002", "Quality", testEpoch.Add(2))
	require.NoError(t, err)
	assert.Equal(t, OutcomeConflict, res.Outcome)
	assert.Equal(t, "ACD000001", res.Link.OwnerProjectID)

	got, err = ledger.Lookup(ctx, "S1", "SSNW")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "ACD000001", got.OwnerProjectID)
	assert.Equal(t, "Admin", got.LinkedBy)
}

func TestLedger_UniqueIndexRejectsDuplicateInsert(t *testing.T) {
	db := newTestDB(t)
	ledger := NewLedger(db)
	require.NoError(t, ledger.AutoMigrate())

	require.NoError(t, db.Create(&SourceLinkRecord{SourceID: "S1", SourceType: "SSNW", OwnerProjectID: "ACD000001", LinkedAt: testEpoch}).Error)
	err := db.Create(&SourceLinkRecord{SourceID: "S1", SourceType: "SSNW", OwnerProjectID: "ACD000002", LinkedAt: testEpoch}).Error
	require.Error(t, err)
	assert.True(t, isDuplicateKey(err))
}

func TestLedger_ListByProjects(t *testing.T) {
	db := newTestDB(t)
	ledger := NewLedger(db)
	require.NoError(t, ledger.AutoMigrate())
	ctx := context.Background()

	for _, b := range []struct{ id, typ, owner string }{
		{"S1", "SSNW", "ACD000001"},
		{"W1", "Warranty", "ACD000001"},
		{"S2", "SSNW", "ACD000002"},
	} {
		_, err := ledger.Bind(ctx, b.id, b.typ, b.owner, "TAC", testEpoch)
		require.NoError(t, err)
	}

	byOwner, err := ledger.ListByProjects(ctx, []string{"ACD000001", "ACD000002", "ACD000003"})
	require.NoError(t, err)
	assert.Len(t, byOwner["ACD000001"], 2)
	assert.Equal(t, "S1", byOwner["ACD000001"][0].SourceID)
	assert.Len(t, byOwner["ACD000002"], 1)
	assert.Empty(t, byOwner["ACD000003"])

	empty, err := ledger.ListByProjects(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestStatusMachine(t *testing.T) {
	permissive := NewStatusMachine(false)
	assert.NoError(t, permissive.ValidateTransition(StatusClosed, StatusReady))
	assert.Error(t, permissive.ValidateTransition(StatusReady, "Bogus"))
	assert.Len(t, permissive.AllowedTransitions(StatusReady), 3)

	strict := NewStatusMachine(true)
	assert.NoError(t, strict.ValidateTransition(StatusReady, StatusActive))
	assert.NoError(t, strict.ValidateTransition(StatusActive, StatusActive))
	var te *TransitionError
	require.ErrorAs(t, strict.ValidateTransition(StatusReady, StatusContainment), &te)
	assert.Equal(t, []Status{StatusActive, StatusClosed}, te.Allowed)
	assert.Equal(t, []Status{StatusActive}, strict.AllowedTransitions(StatusClosed))
}

func TestFormatProjectID(t *testing.T) {
	assert.Equal(t, "ACD000001", FormatProjectID(1))
	assert.Equal(t, "ACD123456", FormatProjectID(123456))
	assert.Equal(t, "ACD1234567", FormatProjectID(1234567))
}

// A concurrent binder that inserts the link between our lookup and our insert
// makes the insert a no-op; Bind must resolve against the row it lost to.
func TestLedger_BindLosesInsertRace(t *testing.T) {
	tests := []struct {
		name        string
		winnerOwner string
		want        BindOutcome
	}{
		{"winner owns another project", "ACD000009", OutcomeConflict},
		{"winner bound the same project", "ACD000001", OutcomeReaffirmed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := newTestDB(t)
			ledger := NewLedger(db)
			require.NoError(t, ledger.AutoMigrate())

			var raced atomic.Bool
			require.NoError(t, db.Callback().Create().Before("gorm:create").Register("test:race_link", func(tx *gorm.DB) {
				if tx.Statement.Table != "source_links" || !raced.CompareAndSwap(false, true) {
					return
				}
				err := tx.Session(&gorm.Session{NewDB: true}).Exec(
					"INSERT INTO source_links (source_id, source_type, owner_project_id, linked_by, linked_at) VALUES (?, ?, ?, ?, ?)",
					"S1", "SSNW", tt.winnerOwner, "Quality", testEpoch,
				).Error
				require.NoError(t, err)
			}))

			res, err := ledger.Bind(context.Background(), "S1", "SSNW", "ACD000001", "TAC", testEpoch.Add(1))
			require.NoError(t, err)
			require.True(t, raced.Load(), "competing insert did not run")
			assert.Equal(t, tt.want, res.Outcome)

			var links []SourceLinkRecord
			require.NoError(t, db.Find(&links).Error)
			require.Len(t, links, 1)
			assert.Equal(t, tt.winnerOwner, links[0].OwnerProjectID)

			if tt.want == OutcomeConflict {
				assert.Equal(t, tt.winnerOwner, res.Link.OwnerProjectID)
				assert.Equal(t, "Quality", links[0].LinkedBy)
				return
			}
			require.NotNil(t, res.Previous)
			assert.Equal(t, "Quality", res.Previous.LinkedBy)
			assert.Equal(t, "TAC", links[0].LinkedBy)
		})
	}
}

func TestProjectStore_GetForUpdate(t *testing.T) {
	db := newTestDB(t)
	store := NewProjectStore(db)
	require.NoError(t, store.AutoMigrate())
	ctx := context.Background()
	require.NoError(t, store.Insert(ctx, &ProjectRecord{
		Seq: 1, ProjectID: FormatProjectID(1), Title: "T", Market: "UK", Model: "ZS",
		SymptomCode: "S", Severity: 3, Status: string(StatusReady), CreatedAt: testEpoch, UpdatedAt: testEpoch,
	}))

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		got, err := store.WithTx(tx).GetForUpdate(ctx, "ACD000001")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "T", got.Title)

		missing, err := store.WithTx(tx).GetForUpdate(ctx, "ACD000404")
		require.NoError(t, err)
		assert.Nil(t, missing)
		return nil
	}))
}
