package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/verilens/evidence-api/api/handlers"
	"github.com/verilens/evidence-api/chain"
	"github.com/verilens/evidence-api/databases"
	"github.com/verilens/evidence-api/databases/mocks"
	"github.com/verilens/evidence-api/models"
)

func preserveRequest(t *testing.T) *http.Request {
	req, err := http.NewRequest("POST", "/api/v1/evidence/ev-1234/preserve", nil)
	if err != nil {
		t.Fatal(err)
	}
	req = mux.SetURLVars(req, map[string]string{"evidence_id": "ev-1234"})
	req.Header.Set("Authorization", "Bearer abc123")
	return req
}

func TestPreserve_PreserveEvidenceHandlerAlreadyPreserved(t *testing.T) {
	db := &MockDatabaseHelper{}
	conn := &mocks.CollectionHelper{}
	singleResultHelper := &mocks.SingleResultHelper{}

	singleResultHelper.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(**models.Evidence)
		(*arg).ID = "ev-1234"
		(*arg).Details.BlockchainTxHash = "0xdeadbeef"
	})
	conn.On("FindOne", mock.Anything, mock.Anything).Return(singleResultHelper)
	db.On("Collection", "evidence").Return(conn)

	p := handlers.Preserve{
		DB:    databases.NewEvidenceDatabase(db),
		Chain: &chain.MockChainClient{},
		Pin:   &chain.MockPinClient{},
		Hub:   handlers.NewHub(),
	}

	rr := httptest.NewRecorder()
	http.HandlerFunc(p.PreserveEvidenceHandler).ServeHTTP(rr, preserveRequest(t))

	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Contains(t, rr.Body.String(), "evidence already preserved")
}

func TestPreserve_PreserveEvidenceHandler(t *testing.T) {
	db := &MockDatabaseHelper{}
	conn := &mocks.CollectionHelper{}
	singleResultHelper := &mocks.SingleResultHelper{}

	singleResultHelper.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(**models.Evidence)
		(*arg).ID = "ev-1234"
		(*arg).Details.FileName = "scene.png"
		(*arg).Details.Payload = "data:image/png;base64,aGVsbG8="
	})
	conn.On("FindOne", mock.Anything, mock.Anything).Return(singleResultHelper)
	conn.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).
		Return(&mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil)
	db.On("Collection", "evidence").Return(conn)

	p := handlers.Preserve{
		DB:    databases.NewEvidenceDatabase(db),
		Chain: &chain.MockChainClient{},
		Pin:   &chain.MockPinClient{},
		Hub:   handlers.NewHub(),
	}

	rr := httptest.NewRecorder()
	http.HandlerFunc(p.PreserveEvidenceHandler).ServeHTTP(rr, preserveRequest(t))

	assert.Equal(t, http.StatusOK, rr.Code)

	var resp map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	assert.True(t, strings.HasPrefix(resp["ipfsHash"], "Qm"))
	assert.True(t, strings.HasPrefix(resp["blockchainTxHash"], "0x"))
	assert.Len(t, resp["sha256"], 64)
}

func TestPreserve_PreserveEvidenceHandlerNotFound(t *testing.T) {
	db := &MockDatabaseHelper{}
	conn := &mocks.CollectionHelper{}
	singleResultHelper := &mocks.SingleResultHelper{}

	singleResultHelper.On("Decode", mock.Anything).Return(mongo.ErrNoDocuments)
	conn.On("FindOne", mock.Anything, mock.Anything).Return(singleResultHelper)
	db.On("Collection", "evidence").Return(conn)

	p := handlers.Preserve{
		DB:    databases.NewEvidenceDatabase(db),
		Chain: &chain.MockChainClient{},
		Pin:   &chain.MockPinClient{},
		Hub:   handlers.NewHub(),
	}

	rr := httptest.NewRecorder()
	http.HandlerFunc(p.PreserveEvidenceHandler).ServeHTTP(rr, preserveRequest(t))

	assert.Equal(t, http.StatusNotFound, rr.Code)
}
