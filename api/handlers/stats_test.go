package handlers_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/verilens/evidence-api/api/handlers"
	"github.com/verilens/evidence-api/databases"
	"github.com/verilens/evidence-api/databases/mocks"
	"github.com/verilens/evidence-api/models"
)

func TestStats_StatsByUserIDHandlerEmptyStore(t *testing.T) {
	req, err := http.NewRequest("GET", "/api/v1/stats/user/user-1", nil)
	if err != nil {
		t.Fatal(err)
	}
	req = mux.SetURLVars(req, map[string]string{"user_id": "user-1"})
	req.Header.Set("Authorization", "Bearer abc123")

	db := &MockDatabaseHelper{}
	evidenceConn := &mocks.CollectionHelper{}
	userConn := &mocks.CollectionHelper{}
	singleResultHelper := &mocks.SingleResultHelper{}

	evidenceConn.On("CountDocuments", mock.Anything, mock.Anything).Return(int64(0), nil)
	singleResultHelper.On("Decode", mock.Anything).Return(errors.New("mongo: no documents in result"))
	userConn.On("FindOne", mock.Anything, mock.Anything).Return(singleResultHelper)
	db.On("Collection", "evidence").Return(evidenceConn)
	db.On("Collection", "users").Return(userConn)

	s := handlers.Stats{
		EDB: databases.NewEvidenceDatabase(db),
		RDB: databases.NewReportDatabase(db),
		UDB: databases.NewUserDatabase(db),
	}

	rr := httptest.NewRecorder()
	http.HandlerFunc(s.StatsByUserIDHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	// an empty store reports all-zero counters, never an error
	assert.JSONEq(t,
		`{"totalEvidence": 0, "verified": 0, "tampered": 0, "reportsGenerated": 0, "blockchainSecured": 0}`,
		rr.Body.String())
}

func TestStats_StatsByUserIDHandlerVerifiedRequiresCompleteStatus(t *testing.T) {
	req, err := http.NewRequest("GET", "/api/v1/stats/user/user-1", nil)
	if err != nil {
		t.Fatal(err)
	}
	req = mux.SetURLVars(req, map[string]string{"user_id": "user-1"})
	req.Header.Set("Authorization", "Bearer abc123")

	db := &MockDatabaseHelper{}
	evidenceConn := &mocks.CollectionHelper{}
	userConn := &mocks.CollectionHelper{}
	singleResultHelper := &mocks.SingleResultHelper{}

	// pin each counter to its exact filter so the verified count can only
	// come from records that are both complete and authentic
	evidenceConn.On("CountDocuments", mock.Anything,
		bson.M{"evidence.ownerId": "user-1"}).Return(int64(6), nil)
	evidenceConn.On("CountDocuments", mock.Anything, bson.M{
		"evidence.ownerId": "user-1",
		"evidence.status":  models.StatusComplete,
		"evidence.verdict": models.VerdictAuthentic,
	}).Return(int64(2), nil)
	evidenceConn.On("CountDocuments", mock.Anything, bson.M{
		"evidence.ownerId": "user-1",
		"evidence.verdict": models.VerdictTampered,
	}).Return(int64(1), nil)
	evidenceConn.On("CountDocuments", mock.Anything, bson.M{
		"evidence.ownerId":          "user-1",
		"evidence.blockchainTxHash": bson.M{"$exists": true, "$ne": ""},
	}).Return(int64(0), nil)

	singleResultHelper.On("Decode", mock.Anything).Return(errors.New("mongo: no documents in result"))
	userConn.On("FindOne", mock.Anything, mock.Anything).Return(singleResultHelper)
	db.On("Collection", "evidence").Return(evidenceConn)
	db.On("Collection", "users").Return(userConn)

	s := handlers.Stats{
		EDB: databases.NewEvidenceDatabase(db),
		RDB: databases.NewReportDatabase(db),
		UDB: databases.NewUserDatabase(db),
	}

	rr := httptest.NewRecorder()
	http.HandlerFunc(s.StatsByUserIDHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t,
		`{"totalEvidence": 6, "verified": 2, "tampered": 1, "reportsGenerated": 0, "blockchainSecured": 0}`,
		rr.Body.String())
}

func TestStats_StatsByUserIDHandler(t *testing.T) {
	req, err := http.NewRequest("GET", "/api/v1/stats/user/user-1", nil)
	if err != nil {
		t.Fatal(err)
	}
	req = mux.SetURLVars(req, map[string]string{"user_id": "user-1"})
	req.Header.Set("Authorization", "Bearer abc123")

	db := &MockDatabaseHelper{}
	evidenceConn := &mocks.CollectionHelper{}
	userConn := &mocks.CollectionHelper{}
	reportConn := &mocks.CollectionHelper{}
	singleResultHelper := &mocks.SingleResultHelper{}

	// total, verified, tampered, secured in call order
	evidenceConn.On("CountDocuments", mock.Anything, mock.Anything).Return(int64(5), nil).Once()
	evidenceConn.On("CountDocuments", mock.Anything, mock.Anything).Return(int64(3), nil).Once()
	evidenceConn.On("CountDocuments", mock.Anything, mock.Anything).Return(int64(1), nil).Once()
	evidenceConn.On("CountDocuments", mock.Anything, mock.Anything).Return(int64(2), nil).Once()

	singleResultHelper.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(**models.User)
		(*arg).ID = "user-1"
		(*arg).Details.Email = "analyst@example.com"
	})
	userConn.On("FindOne", mock.Anything, mock.Anything).Return(singleResultHelper)
	reportConn.On("CountDocuments", mock.Anything, mock.Anything).Return(int64(4), nil)

	db.On("Collection", "evidence").Return(evidenceConn)
	db.On("Collection", "users").Return(userConn)
	db.On("Collection", "reports").Return(reportConn)

	s := handlers.Stats{
		EDB: databases.NewEvidenceDatabase(db),
		RDB: databases.NewReportDatabase(db),
		UDB: databases.NewUserDatabase(db),
	}

	rr := httptest.NewRecorder()
	http.HandlerFunc(s.StatsByUserIDHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t,
		`{"totalEvidence": 5, "verified": 3, "tampered": 1, "reportsGenerated": 4, "blockchainSecured": 2}`,
		rr.Body.String())
}
