package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Case holds the structure for the case collection in mongo
type Case struct {
	ID      primitive.ObjectID `json:"_id" bson:"_id"`
	Details CaseDetails        `json:"case" bson:"case"`
	Version int32              `json:"__v" bson:"__v"`
}

// CaseDetails holds the structure for the inner case structure as defined in
// the case collection in mongo. Cases are read-only after creation except for
// deletion, which cascades to referencing evidence.
type CaseDetails struct {
	CaseNumber string             `json:"caseNumber" bson:"caseNumber"`
	CaseName   string             `json:"caseName" bson:"caseName"`
	CreatedBy  string             `json:"createdBy" bson:"createdBy"`
	CreatedAt  primitive.DateTime `json:"createdAt" bson:"createdAt"`
}
