package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/verilens/evidence-api/api"
	"github.com/verilens/evidence-api/config"
	"github.com/verilens/evidence-api/databases"
	"github.com/verilens/evidence-api/forensic"
	"github.com/verilens/evidence-api/models"
	templates "github.com/verilens/evidence-api/templates/html"
)

// Analysis exported for testing purposes
type Analysis struct {
	DB       databases.EvidenceDatabase
	UDB      databases.UserDatabase
	Forensic forensic.Client
	Hub      *Hub
}

// AnalyzeEvidenceHandler runs the tampering analysis for one record. The
// record moves to "analyzing" while the backend works and always lands on
// "complete", carrying either the real verdict or a failure anomaly.
func (a Analysis) AnalyzeEvidenceHandler(w http.ResponseWriter, r *http.Request) {
	evidenceID := mux.Vars(r)["evidence_id"]

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	record, err := a.DB.FindOne(ctx, bson.M{"_id": evidenceID})
	if err != nil {
		config.ErrorStatus("failed to get evidence by ID", http.StatusNotFound, w, err)
		return
	}
	if record.Details.Status == models.StatusAnalyzing {
		config.ErrorStatus("analysis already in progress", http.StatusConflict, w,
			fmt.Errorf("evidence %s is already analyzing", evidenceID))
		return
	}

	payload, _, err := decodePayload(record.Details.Payload)
	if err != nil {
		config.ErrorStatus("failed to decode evidence payload", http.StatusBadRequest, w, err)
		return
	}

	_, err = a.DB.UpdateOne(ctx, bson.M{"_id": evidenceID}, bson.M{"$set": bson.M{
		"evidence.status":            models.StatusAnalyzing,
		"evidence.analysisStartedAt": primitive.NewDateTimeFromTime(time.Now()),
	}})
	if err != nil {
		config.ErrorStatus("failed to mark evidence analyzing", http.StatusInternalServerError, w, err)
		return
	}
	a.Hub.Publish(EventAnalysis, evidenceID, record.Details.OwnerID)

	result, err := a.Forensic.AnalyzeTampering(r.Context(), record.Details.FileName, payload)

	// the query context above may have expired while the backend worked, so
	// the completion writes run on a fresh deadline that also survives the
	// client hanging up
	uctx, ucancel := api.WithQueryTimeout(context.WithoutCancel(r.Context()))
	defer ucancel()

	if err != nil {
		// a failed analysis still completes the record so the dashboard never
		// shows it stuck in "analyzing"
		update := models.AnalysisUpdate{
			Verdict:    models.VerdictAuthentic,
			Confidence: 0,
			Anomalies:  []string{fmt.Sprintf("analysis failed: %v", err)},
		}
		if _, uerr := a.DB.UpdateAnalysis(uctx, evidenceID, update); uerr != nil {
			zap.S().Errorw("failed to record analysis failure", "evidenceId", evidenceID, "error", uerr)
		}
		a.Hub.Publish(EventAnalysis, evidenceID, record.Details.OwnerID)
		config.ErrorStatus("analysis backend failed", http.StatusBadGateway, w, err)
		return
	}

	verdict := models.VerdictAuthentic
	if result.IsTampered || result.TamperingProbability >= 50 {
		verdict = models.VerdictTampered
	}
	update := models.AnalysisUpdate{
		Verdict:    verdict,
		Confidence: result.Confidence,
		Scores: &models.AnalysisScores{
			TamperingProbability:   result.TamperingProbability,
			AIGeneratedProbability: result.AIGeneratedProbability,
			QualityScore:           result.QualityScore,
			ScamProbability:        result.ScamProbability,
		},
		AIScores: &models.AIDetectionScores{
			AIGenerated: result.AIGeneratedProbability,
			Deepfake:    result.DeepfakeProbability,
		},
		Metadata:  result.Metadata,
		Anomalies: result.Anomalies,
	}

	matched, err := a.DB.UpdateAnalysis(uctx, evidenceID, update)
	if err != nil {
		config.ErrorStatus("failed to store analysis result", http.StatusInternalServerError, w, err)
		return
	}
	if !matched {
		// record was deleted while the analysis was in flight
		config.ErrorStatus("evidence no longer exists", http.StatusNotFound, w,
			fmt.Errorf("evidence %s deleted during analysis", evidenceID))
		return
	}
	a.Hub.Publish(EventAnalysis, evidenceID, record.Details.OwnerID)

	go a.sendAnalysisCompleteEmail(record.Details.OwnerID, record.Details.FileName, verdict)

	updated, err := a.DB.FindOne(uctx, bson.M{"_id": evidenceID})
	if err != nil {
		config.ErrorStatus("failed to load analyzed evidence", http.StatusInternalServerError, w, err)
		return
	}
	b, err := json.Marshal(updated)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// DetectFacesHandler runs face detection for one record and stores the
// results on it
func (a Analysis) DetectFacesHandler(w http.ResponseWriter, r *http.Request) {
	evidenceID := mux.Vars(r)["evidence_id"]

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	record, err := a.DB.FindOne(ctx, bson.M{"_id": evidenceID})
	if err != nil {
		config.ErrorStatus("failed to get evidence by ID", http.StatusNotFound, w, err)
		return
	}
	payload, _, err := decodePayload(record.Details.Payload)
	if err != nil {
		config.ErrorStatus("failed to decode evidence payload", http.StatusBadRequest, w, err)
		return
	}

	result, err := a.Forensic.DetectFaces(r.Context(), record.Details.FileName, payload)
	if err != nil {
		config.ErrorStatus("face detection failed", http.StatusBadGateway, w, err)
		return
	}

	faces := models.FaceResults{FacesDetected: result.FacesDetected}
	for _, m := range result.Matches {
		faces.Matches = append(faces.Matches, models.FaceMatch{Name: m.Name, Similarity: m.Similarity})
	}

	_, err = a.DB.UpdateOne(ctx, bson.M{"_id": evidenceID},
		bson.M{"$set": bson.M{"evidence.faces": faces}})
	if err != nil {
		config.ErrorStatus("failed to store face results", http.StatusInternalServerError, w, err)
		return
	}
	a.Hub.Publish(EventUpdated, evidenceID, record.Details.OwnerID)

	b, err := json.Marshal(faces)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// ExtractForensicsHandler pulls deep forensic metadata for one record and
// merges it onto the stored document
func (a Analysis) ExtractForensicsHandler(w http.ResponseWriter, r *http.Request) {
	evidenceID := mux.Vars(r)["evidence_id"]

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	record, err := a.DB.FindOne(ctx, bson.M{"_id": evidenceID})
	if err != nil {
		config.ErrorStatus("failed to get evidence by ID", http.StatusNotFound, w, err)
		return
	}
	payload, _, err := decodePayload(record.Details.Payload)
	if err != nil {
		config.ErrorStatus("failed to decode evidence payload", http.StatusBadRequest, w, err)
		return
	}

	result, err := a.Forensic.ExtractForensics(r.Context(), record.Details.FileName, payload)
	if err != nil {
		config.ErrorStatus("forensics extraction failed", http.StatusBadGateway, w, err)
		return
	}

	metadata := mergeMetadata(record.Details.Metadata, result.Metadata)
	anomalies := mergeAnomalies(record.Details.Anomalies, result.Anomalies)

	_, err = a.DB.UpdateOne(ctx, bson.M{"_id": evidenceID}, bson.M{"$set": bson.M{
		"evidence.metadata":  metadata,
		"evidence.anomalies": anomalies,
	}})
	if err != nil {
		config.ErrorStatus("failed to store forensic results", http.StatusInternalServerError, w, err)
		return
	}
	a.Hub.Publish(EventUpdated, evidenceID, record.Details.OwnerID)

	b, err := json.Marshal(result)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// mergeMetadata overlays fresh keys onto the existing map without losing
// keys the new extraction did not produce
func mergeMetadata(existing, fresh map[string]string) map[string]string {
	merged := make(map[string]string, len(existing)+len(fresh))
	for k, v := range existing {
		merged[k] = v
	}
	for k, v := range fresh {
		merged[k] = v
	}
	return merged
}

// mergeAnomalies appends anomalies not already recorded
func mergeAnomalies(existing, fresh []string) []string {
	seen := make(map[string]bool, len(existing))
	merged := append([]string{}, existing...)
	for _, a := range existing {
		seen[a] = true
	}
	for _, a := range fresh {
		if !seen[a] {
			merged = append(merged, a)
			seen[a] = true
		}
	}
	return merged
}

// sendAnalysisCompleteEmail notifies the owner that analysis finished.
// Anonymous records have nobody to notify.
func (a Analysis) sendAnalysisCompleteEmail(ownerID, fileName, verdict string) {
	if ownerID == "" || ownerID == models.AnonymousScope {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), api.QueryTimeout)
	defer cancel()

	user, err := a.UDB.FindOne(ctx, bson.M{"_id": ownerID})
	if err != nil || user.Details.Email == "" {
		return
	}

	subject := fmt.Sprintf("Analysis complete: %s", fileName)
	body := fmt.Sprintf("Analysis of %s has finished.\nVerdict: %s\n\nOpen your dashboard to review the full report.", fileName, verdict)
	htmlContent := templates.RenderGenericEmail(subject, body)

	from := mail.NewEmail("Verilens", "no-reply@verilens.io")
	to := mail.NewEmail(user.Details.Name, user.Details.Email)
	message := mail.NewSingleEmail(from, subject, to, body, htmlContent)
	client := sendgrid.NewSendClient(os.Getenv("SENDGRID_API_KEY"))
	response, err := client.Send(message)
	if err != nil {
		zap.S().Errorw("failed to send analysis email", "userId", ownerID, "error", err)
		return
	}
	if response.StatusCode >= 400 {
		zap.S().Errorw("sendgrid returned error status", "status", response.StatusCode, "body", response.Body)
	}
}
