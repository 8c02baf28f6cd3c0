package databases_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/verilens/evidence-api/databases"
	"github.com/verilens/evidence-api/databases/mocks"
	"github.com/verilens/evidence-api/models"
)

func TestEvidenceDatabase_FindOne(t *testing.T) {

	// define variables for interfaces
	var dbHelper databases.DatabaseHelper
	var collectionHelper databases.CollectionHelper
	var srHelperErr databases.SingleResultHelper
	var srHelperCorrect databases.SingleResultHelper

	// set interfaces implementation to mocked structures
	dbHelper = &mocks.DatabaseHelper{}
	collectionHelper = &mocks.CollectionHelper{}
	srHelperErr = &mocks.SingleResultHelper{}
	srHelperCorrect = &mocks.SingleResultHelper{}

	srHelperErr.(*mocks.SingleResultHelper).
		On("Decode", mock.Anything).
		Return(errors.New("mocked-error"))

	srHelperCorrect.(*mocks.SingleResultHelper).
		On("Decode", mock.Anything).
		Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(**models.Evidence)
		(*arg).ID = "mocked-evidence"
	})

	collectionHelper.(*mocks.CollectionHelper).
		On("FindOne", context.Background(), bson.M{"error": true}).
		Return(srHelperErr)

	collectionHelper.(*mocks.CollectionHelper).
		On("FindOne", context.Background(), bson.M{"error": false}).
		Return(srHelperCorrect)

	dbHelper.(*mocks.DatabaseHelper).
		On("Collection", "evidence").Return(collectionHelper)

	// Create new database with mocked Database interface
	evidenceDba := databases.NewEvidenceDatabase(dbHelper)

	// Call method with defined filter, that in our mocked function returns
	// mocked-error
	record, err := evidenceDba.FindOne(context.Background(), bson.M{"error": true})

	assert.Empty(t, record)
	assert.EqualError(t, err, "mocked-error")

	// Now call the same function with different filter for correct result
	record, err = evidenceDba.FindOne(context.Background(), bson.M{"error": false})

	assert.Equal(t, &models.Evidence{ID: "mocked-evidence"}, record)
	assert.NoError(t, err)
}

func TestEvidenceDatabase_Find(t *testing.T) {

	var dbHelper databases.DatabaseHelper
	var collectionHelper databases.CollectionHelper
	var cursorHelper databases.CursorHelper

	dbHelper = &mocks.DatabaseHelper{}
	collectionHelper = &mocks.CollectionHelper{}
	cursorHelper = &mocks.CursorHelper{}

	cursorHelper.(*mocks.CursorHelper).
		On("All", mock.Anything, mock.Anything).
		Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(1).(*[]models.Evidence)
		(*arg) = []models.Evidence{{ID: "mocked-evidence"}}
	})
	cursorHelper.(*mocks.CursorHelper).
		On("Close", mock.Anything).
		Return(nil)

	collectionHelper.(*mocks.CollectionHelper).
		On("Find", context.Background(), bson.M{"error": false}).
		Return(cursorHelper, nil)

	collectionHelper.(*mocks.CollectionHelper).
		On("Find", context.Background(), bson.M{"error": true}).
		Return(nil, errors.New("mocked-error"))

	dbHelper.(*mocks.DatabaseHelper).
		On("Collection", "evidence").Return(collectionHelper)

	evidenceDba := databases.NewEvidenceDatabase(dbHelper)

	records, err := evidenceDba.Find(context.Background(), bson.M{"error": true})

	assert.Empty(t, records)
	assert.EqualError(t, err, "mocked-error")

	records, err = evidenceDba.Find(context.Background(), bson.M{"error": false})

	assert.Equal(t, []models.Evidence{{ID: "mocked-evidence"}}, records)
	assert.NoError(t, err)
}

func TestEvidenceDatabase_Upsert(t *testing.T) {

	var dbHelper databases.DatabaseHelper
	var collectionHelper databases.CollectionHelper

	dbHelper = &mocks.DatabaseHelper{}
	collectionHelper = &mocks.CollectionHelper{}

	// saving the same id twice must go through ReplaceOne with an upsert
	// option, keyed on _id
	collectionHelper.(*mocks.CollectionHelper).
		On("ReplaceOne", mock.Anything, bson.M{"_id": "ev-1234"}, mock.Anything, mock.Anything).
		Return(&mongo.UpdateResult{MatchedCount: 1}, nil)

	dbHelper.(*mocks.DatabaseHelper).
		On("Collection", "evidence").Return(collectionHelper)

	evidenceDba := databases.NewEvidenceDatabase(dbHelper)

	res, err := evidenceDba.Upsert(context.Background(), models.Evidence{ID: "ev-1234"})

	assert.NoError(t, err)
	assert.Equal(t, int64(1), res.MatchedCount)
	collectionHelper.(*mocks.CollectionHelper).AssertExpectations(t)
}

func TestEvidenceDatabase_UpdateAnalysis(t *testing.T) {

	var dbHelper databases.DatabaseHelper
	var collectionHelper databases.CollectionHelper

	dbHelper = &mocks.DatabaseHelper{}
	collectionHelper = &mocks.CollectionHelper{}

	collectionHelper.(*mocks.CollectionHelper).
		On("UpdateOne", mock.Anything, bson.M{"_id": "ev-present"}, mock.Anything).
		Return(&mongo.UpdateResult{MatchedCount: 1}, nil)

	collectionHelper.(*mocks.CollectionHelper).
		On("UpdateOne", mock.Anything, bson.M{"_id": "ev-gone"}, mock.Anything).
		Return(&mongo.UpdateResult{MatchedCount: 0}, nil)

	dbHelper.(*mocks.DatabaseHelper).
		On("Collection", "evidence").Return(collectionHelper)

	evidenceDba := databases.NewEvidenceDatabase(dbHelper)

	update := models.AnalysisUpdate{
		Verdict:    models.VerdictTampered,
		Confidence: 88.5,
		Anomalies:  []string{"copy-move region detected"},
	}

	matched, err := evidenceDba.UpdateAnalysis(context.Background(), "ev-present", update)
	assert.NoError(t, err)
	assert.True(t, matched)

	// a record deleted mid-analysis is a no-op, not an error
	matched, err = evidenceDba.UpdateAnalysis(context.Background(), "ev-gone", update)
	assert.NoError(t, err)
	assert.False(t, matched)
}

func TestEvidenceDatabase_UpdateAnalysisError(t *testing.T) {

	var dbHelper databases.DatabaseHelper
	var collectionHelper databases.CollectionHelper

	dbHelper = &mocks.DatabaseHelper{}
	collectionHelper = &mocks.CollectionHelper{}

	collectionHelper.(*mocks.CollectionHelper).
		On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("mocked-error"))

	dbHelper.(*mocks.DatabaseHelper).
		On("Collection", "evidence").Return(collectionHelper)

	evidenceDba := databases.NewEvidenceDatabase(dbHelper)

	matched, err := evidenceDba.UpdateAnalysis(context.Background(), "ev-1234", models.AnalysisUpdate{})
	assert.EqualError(t, err, "mocked-error")
	assert.False(t, matched)
}

func TestEvidenceDatabase_DeleteOne(t *testing.T) {

	var dbHelper databases.DatabaseHelper
	var collectionHelper databases.CollectionHelper

	dbHelper = &mocks.DatabaseHelper{}
	collectionHelper = &mocks.CollectionHelper{}

	collectionHelper.(*mocks.CollectionHelper).
		On("DeleteOne", context.Background(), bson.M{"_id": "ev-1234"}).
		Return(int64(1), nil)

	dbHelper.(*mocks.DatabaseHelper).
		On("Collection", "evidence").Return(collectionHelper)

	evidenceDba := databases.NewEvidenceDatabase(dbHelper)

	deleted, err := evidenceDba.DeleteOne(context.Background(), bson.M{"_id": "ev-1234"})

	assert.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}
