package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// GeneratedReport records that a report document was produced for an
// evidence record. The stats aggregator cross-references these by generator
// email.
type GeneratedReport struct {
	ID           primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	EvidenceID   string             `json:"evidenceId" bson:"evidenceId"`
	EvidenceName string             `json:"evidenceName" bson:"evidenceName"`
	GeneratedBy  ReportAuthor       `json:"generatedBy" bson:"generatedBy"`
	CreatedAt    primitive.DateTime `json:"createdAt" bson:"createdAt"`
}

// ReportAuthor identifies who generated a report
type ReportAuthor struct {
	Email string `json:"email" bson:"email"`
	Name  string `json:"name" bson:"name"`
}
