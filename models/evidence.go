package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Evidence lifecycle statuses. Status only ever moves forward:
// pending -> analyzing -> complete.
const (
	StatusPending   = "pending"
	StatusAnalyzing = "analyzing"
	StatusComplete  = "complete"
)

// Verdict values attached once analysis completes
const (
	VerdictAuthentic = "authentic"
	VerdictTampered  = "tampered"
)

// AnonymousScope is the owner bucket used when a record is written without
// an authenticated identity
const AnonymousScope = "anonymous"

// Evidence holds the structure for the evidence collection in mongo
type Evidence struct {
	ID      string          `json:"_id" bson:"_id"`
	Details EvidenceDetails `json:"evidence" bson:"evidence"`
	Version int32           `json:"__v" bson:"__v"`
}

// EvidenceDetails holds the structure for the inner evidence structure as
// defined in the evidence collection in mongo
type EvidenceDetails struct {
	OwnerID  string `json:"ownerId" bson:"ownerId"`
	FileName string `json:"fileName" bson:"fileName"`
	Label    string `json:"label" bson:"label"`
	// Payload is the image blob as an opaque data URI
	Payload  string `json:"payload" bson:"payload"`
	Size     string `json:"size" bson:"size"`
	MimeType string `json:"mimeType" bson:"mimeType"`

	Status     string  `json:"status" bson:"status"` // "pending", "analyzing", "complete"
	Verdict    string  `json:"verdict,omitempty" bson:"verdict,omitempty"`
	Confidence float64 `json:"confidence" bson:"confidence"`

	Scores    *AnalysisScores    `json:"scores,omitempty" bson:"scores,omitempty"`
	AIScores  *AIDetectionScores `json:"aiScores,omitempty" bson:"aiScores,omitempty"`
	Metadata  map[string]string  `json:"metadata,omitempty" bson:"metadata,omitempty"`
	Anomalies []string           `json:"anomalies,omitempty" bson:"anomalies,omitempty"`
	Faces     *FaceResults       `json:"faces,omitempty" bson:"faces,omitempty"`

	BlockchainTxHash string `json:"blockchainTxHash,omitempty" bson:"blockchainTxHash,omitempty"`
	IpfsHash         string `json:"ipfsHash,omitempty" bson:"ipfsHash,omitempty"`

	CaseID     string `json:"caseId,omitempty" bson:"caseId,omitempty"`
	CaseNumber string `json:"caseNumber,omitempty" bson:"caseNumber,omitempty"`
	CaseName   string `json:"caseName,omitempty" bson:"caseName,omitempty"`

	UploadedAt        primitive.DateTime `json:"uploadedAt" bson:"uploadedAt"`
	AnalysisStartedAt primitive.DateTime `json:"analysisStartedAt,omitempty" bson:"analysisStartedAt,omitempty"`
	AnalyzedAt        primitive.DateTime `json:"analyzedAt,omitempty" bson:"analyzedAt,omitempty"`
}

// AnalysisScores holds the tampering analysis sub-scores returned by the
// forensic backend
type AnalysisScores struct {
	TamperingProbability   float64 `json:"tamperingProbability" bson:"tamperingProbability"`
	AIGeneratedProbability float64 `json:"aiGeneratedProbability" bson:"aiGeneratedProbability"`
	QualityScore           float64 `json:"qualityScore" bson:"qualityScore"`
	ScamProbability        float64 `json:"scamProbability" bson:"scamProbability"`
}

// AIDetectionScores holds the AI-generation detection sub-scores
type AIDetectionScores struct {
	AIGenerated float64 `json:"aiGenerated" bson:"aiGenerated"`
	Deepfake    float64 `json:"deepfake" bson:"deepfake"`
}

// FaceResults holds the face detection and matching results for one record
type FaceResults struct {
	FacesDetected int         `json:"facesDetected" bson:"facesDetected"`
	Matches       []FaceMatch `json:"matches,omitempty" bson:"matches,omitempty"`
}

// FaceMatch is a single face-recognition hit
type FaceMatch struct {
	Name       string  `json:"name" bson:"name"`
	Similarity float64 `json:"similarity" bson:"similarity"`
}

// AnalysisUpdate carries the result payload applied by updateAnalysis. The
// record lands on status "complete" whether the analysis succeeded or not.
type AnalysisUpdate struct {
	Verdict    string
	Confidence float64
	Scores     *AnalysisScores
	AIScores   *AIDetectionScores
	Metadata   map[string]string
	Anomalies  []string
}
