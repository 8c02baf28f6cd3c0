package databases

// go generate: mockery --name EvidenceDatabase

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/verilens/evidence-api/models"
)

const evidenceName = "evidence"

// EvidenceDatabase contains the methods to use with the evidence database.
// Each record is its own document keyed by id, so concurrent writers never
// overwrite each other's records.
type EvidenceDatabase interface {
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.Evidence, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Evidence, error)
	Upsert(ctx context.Context, record models.Evidence) (*mongo.UpdateResult, error)
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	UpdateAnalysis(ctx context.Context, id string, result models.AnalysisUpdate) (bool, error)
	DeleteOne(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (int64, error)
	DeleteMany(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (int64, error)
	CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error)
}

type evidenceDatabase struct {
	db DatabaseHelper
}

// NewEvidenceDatabase initializes a new instance of evidence database with the provided db connection
func NewEvidenceDatabase(db DatabaseHelper) EvidenceDatabase {
	return &evidenceDatabase{
		db: db,
	}
}

func (c *evidenceDatabase) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.Evidence, error) {
	record := &models.Evidence{}
	err := c.db.Collection(evidenceName).FindOne(ctx, filter, opts...).Decode(&record)
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (c *evidenceDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Evidence, error) {
	var records []models.Evidence
	curr, err := c.db.Collection(evidenceName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer curr.Close(ctx)
	err = curr.All(ctx, &records)
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Upsert replaces the record with a matching id, or inserts it when absent.
// Saving the same record twice leaves exactly one document behind.
func (c *evidenceDatabase) Upsert(ctx context.Context, record models.Evidence) (*mongo.UpdateResult, error) {
	return c.db.Collection(evidenceName).ReplaceOne(ctx,
		bson.M{"_id": record.ID},
		record,
		options.Replace().SetUpsert(true),
	)
}

func (c *evidenceDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	return c.db.Collection(evidenceName).UpdateOne(ctx, filter, update, opts...)
}

// UpdateAnalysis applies an analysis result payload and moves the record to
// "complete". A record deleted while its analysis was in flight simply no
// longer matches, which makes the update a no-op rather than an error.
func (c *evidenceDatabase) UpdateAnalysis(ctx context.Context, id string, result models.AnalysisUpdate) (bool, error) {
	set := bson.M{
		"evidence.status":     models.StatusComplete,
		"evidence.verdict":    result.Verdict,
		"evidence.confidence": result.Confidence,
		"evidence.analyzedAt": primitive.NewDateTimeFromTime(time.Now()),
	}
	if result.Scores != nil {
		set["evidence.scores"] = result.Scores
	}
	if result.AIScores != nil {
		set["evidence.aiScores"] = result.AIScores
	}
	if result.Metadata != nil {
		set["evidence.metadata"] = result.Metadata
	}
	if result.Anomalies != nil {
		set["evidence.anomalies"] = result.Anomalies
	}

	res, err := c.db.Collection(evidenceName).UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

func (c *evidenceDatabase) DeleteOne(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (int64, error) {
	return c.db.Collection(evidenceName).DeleteOne(ctx, filter, opts...)
}

func (c *evidenceDatabase) DeleteMany(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (int64, error) {
	return c.db.Collection(evidenceName).DeleteMany(ctx, filter, opts...)
}

func (c *evidenceDatabase) CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error) {
	return c.db.Collection(evidenceName).CountDocuments(ctx, filter, opts...)
}
