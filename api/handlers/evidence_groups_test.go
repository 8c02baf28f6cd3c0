package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/verilens/evidence-api/api/handlers"
	"github.com/verilens/evidence-api/databases"
	"github.com/verilens/evidence-api/databases/mocks"
	"github.com/verilens/evidence-api/models"
)

func evidenceFixture(id, fileName, caseID, caseNumber, status, verdict string) models.Evidence {
	return models.Evidence{
		ID: id,
		Details: models.EvidenceDetails{
			OwnerID:    "user-1",
			FileName:   fileName,
			CaseID:     caseID,
			CaseNumber: caseNumber,
			Status:     status,
			Verdict:    verdict,
		},
	}
}

func TestFilterEvidence(t *testing.T) {
	records := []models.Evidence{
		evidenceFixture("ev-1", "scene.png", "c1", "CASE-001", models.StatusComplete, models.VerdictAuthentic),
		evidenceFixture("ev-2", "receipt.jpg", "c1", "CASE-001", models.StatusComplete, models.VerdictTampered),
		evidenceFixture("ev-3", "doorway.png", "", "", models.StatusPending, ""),
	}

	t.Run("no filters returns everything", func(t *testing.T) {
		got := handlers.FilterEvidence(records, handlers.EvidenceFilters{})
		assert.Len(t, got, 3)
	})

	t.Run("status filter", func(t *testing.T) {
		got := handlers.FilterEvidence(records, handlers.EvidenceFilters{Status: models.StatusPending})
		assert.Len(t, got, 1)
		assert.Equal(t, "ev-3", got[0].ID)
	})

	t.Run("verdict filter", func(t *testing.T) {
		got := handlers.FilterEvidence(records, handlers.EvidenceFilters{Verdict: models.VerdictTampered})
		assert.Len(t, got, 1)
		assert.Equal(t, "ev-2", got[0].ID)
	})

	t.Run("search is case-insensitive over name and case fields", func(t *testing.T) {
		got := handlers.FilterEvidence(records, handlers.EvidenceFilters{Search: "SCENE"})
		assert.Len(t, got, 1)
		assert.Equal(t, "ev-1", got[0].ID)

		got = handlers.FilterEvidence(records, handlers.EvidenceFilters{Search: "case-001"})
		assert.Len(t, got, 2)
	})

	t.Run("filters combine", func(t *testing.T) {
		got := handlers.FilterEvidence(records, handlers.EvidenceFilters{
			Search: "case-001", Verdict: models.VerdictAuthentic,
		})
		assert.Len(t, got, 1)
		assert.Equal(t, "ev-1", got[0].ID)
	})

	t.Run("no match yields empty non-nil slice", func(t *testing.T) {
		got := handlers.FilterEvidence(records, handlers.EvidenceFilters{Search: "nope"})
		assert.NotNil(t, got)
		assert.Len(t, got, 0)
	})
}

func TestGroupEvidence(t *testing.T) {
	records := []models.Evidence{
		evidenceFixture("ev-1", "scene.png", "c1", "CASE-001", models.StatusComplete, models.VerdictAuthentic),
		evidenceFixture("ev-2", "loose.png", "", "", models.StatusPending, ""),
		evidenceFixture("ev-3", "receipt.jpg", "c2", "CASE-002", models.StatusPending, ""),
		evidenceFixture("ev-4", "closeup.png", "c1", "CASE-001", models.StatusComplete, models.VerdictTampered),
	}

	groups := handlers.GroupEvidence(records)

	// two cases plus the uncategorized bucket
	assert.Len(t, groups, 3)

	// groups keep first-appearance order, uncategorized last
	assert.Equal(t, "c1", groups[0].CaseID)
	assert.Equal(t, "c2", groups[1].CaseID)
	assert.Equal(t, "", groups[2].CaseID)
	assert.Equal(t, "Uncategorized", groups[2].CaseName)

	// record order inside a group follows the input order
	assert.Equal(t, "ev-1", groups[0].Records[0].ID)
	assert.Equal(t, "ev-4", groups[0].Records[1].ID)

	// every record lands in exactly one group
	total := 0
	for _, g := range groups {
		assert.NotEmpty(t, g.Records, "no empty groups")
		total += len(g.Records)
	}
	assert.Equal(t, len(records), total)
}

func TestGroupEvidenceEmptyInput(t *testing.T) {
	groups := handlers.GroupEvidence(nil)
	assert.NotNil(t, groups)
	assert.Len(t, groups, 0)
}

func TestEvidence_GroupedEvidenceByUserIDHandler(t *testing.T) {
	req, err := http.NewRequest("GET", "/api/v1/evidence/user/user-1/grouped?verdict=tampered", nil)
	if err != nil {
		t.Fatal(err)
	}
	req = mux.SetURLVars(req, map[string]string{"user_id": "user-1"})
	req.Header.Set("Authorization", "Bearer abc123")

	db := &MockDatabaseHelper{}
	conn := &mocks.CollectionHelper{}
	cursor := &mocks.CursorHelper{}

	cursor.On("All", mock.Anything, mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(1).(*[]models.Evidence)
		*arg = []models.Evidence{
			evidenceFixture("ev-1", "scene.png", "c1", "CASE-001", models.StatusComplete, models.VerdictTampered),
			evidenceFixture("ev-2", "receipt.jpg", "c1", "CASE-001", models.StatusComplete, models.VerdictAuthentic),
		}
	})
	cursor.On("Close", mock.Anything).Return(nil)
	conn.On("Find", mock.Anything, mock.Anything, mock.Anything).Return(cursor, nil)
	db.On("Collection", "evidence").Return(conn)

	e := handlers.Evidence{DB: databases.NewEvidenceDatabase(db), Hub: handlers.NewHub()}

	rr := httptest.NewRecorder()
	http.HandlerFunc(e.GroupedEvidenceByUserIDHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"ev-1"`)
	assert.NotContains(t, rr.Body.String(), `"ev-2"`)
	assert.Contains(t, rr.Body.String(), `"CASE-001"`)
}
