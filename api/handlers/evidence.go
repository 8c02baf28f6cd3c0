package handlers

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/verilens/evidence-api/api"
	"github.com/verilens/evidence-api/config"
	"github.com/verilens/evidence-api/databases"
	"github.com/verilens/evidence-api/models"
)

// Evidence exported for testing purposes
type Evidence struct {
	DB  databases.EvidenceDatabase
	Hub *Hub
}

// EvidenceCreateHandler creates a new evidence record. The record starts in
// status "pending" and lands in the anonymous scope when no owner is given.
func (e Evidence) EvidenceCreateHandler(w http.ResponseWriter, r *http.Request) {
	var record models.Evidence
	if err := json.NewDecoder(r.Body).Decode(&record); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	if record.Details.FileName == "" {
		config.ErrorStatus("fileName is required", http.StatusBadRequest, w, fmt.Errorf("missing fileName"))
		return
	}

	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	applyRecordDefaults(&record)

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	if _, err := e.DB.Upsert(ctx, record); err != nil {
		config.ErrorStatus("failed to save evidence", http.StatusInternalServerError, w, err)
		return
	}
	e.Hub.Publish(EventCreated, record.ID, record.Details.OwnerID)

	b, err := json.Marshal(record)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	w.Write(b)
}

// EvidenceUpsertHandler saves a full evidence record under the path id.
// Saving the same record twice leaves exactly one copy behind, and a
// replacement can never move the lifecycle status backward.
func (e Evidence) EvidenceUpsertHandler(w http.ResponseWriter, r *http.Request) {
	evidenceID := mux.Vars(r)["evidence_id"]

	var record models.Evidence
	if err := json.NewDecoder(r.Body).Decode(&record); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	record.ID = evidenceID

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	if existing, err := e.DB.FindOne(ctx, bson.M{"_id": evidenceID}); err == nil {
		// a replayed body without a status inherits the stored one instead of
		// resetting the record to pending
		if record.Details.Status == "" {
			record.Details.Status = existing.Details.Status
		}
		if statusRank(record.Details.Status) < statusRank(existing.Details.Status) {
			config.ErrorStatus("status cannot move backward", http.StatusConflict, w,
				fmt.Errorf("evidence %s is already %s", evidenceID, existing.Details.Status))
			return
		}
	}
	applyRecordDefaults(&record)

	if _, err := e.DB.Upsert(ctx, record); err != nil {
		config.ErrorStatus("failed to save evidence", http.StatusInternalServerError, w, err)
		return
	}
	e.Hub.Publish(EventUpdated, record.ID, record.Details.OwnerID)

	b, err := json.Marshal(record)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// EvidenceByIDHandler returns an evidence record by ID
func (e Evidence) EvidenceByIDHandler(w http.ResponseWriter, r *http.Request) {
	evidenceID := mux.Vars(r)["evidence_id"]

	zap.S().Debugf("evidence_id: %v", evidenceID)

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	dbResp, err := e.DB.FindOne(ctx, bson.M{"_id": evidenceID})
	if err != nil {
		config.ErrorStatus("failed to get evidence by ID", http.StatusNotFound, w, err)
		return
	}

	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// EvidenceByUserIDHandler returns all evidence records owned by the given
// user, newest upload first
func (e Evidence) EvidenceByUserIDHandler(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]

	zap.S().Debugf("user_id: '%v'", userID)

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	dbResp, err := e.DB.Find(ctx,
		bson.M{"evidence.ownerId": userID},
		options.Find().SetSort(bson.D{{Key: "evidence.uploadedAt", Value: -1}}),
	)
	if err != nil {
		// scoped list reads never fail outward, a broken store reads as empty
		zap.S().Errorw("failed to get evidence by user ID", "userId", userID, "error", err)
		dbResp = nil
	}
	// the frontend requires a list, so an empty result set marshals as []
	if len(dbResp) == 0 {
		dbResp = []models.Evidence{}
	}
	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// RenameEvidenceHandler updates the display label of an evidence record
func (e Evidence) RenameEvidenceHandler(w http.ResponseWriter, r *http.Request) {
	evidenceID := mux.Vars(r)["evidence_id"]

	var body struct {
		Label string `json:"label"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	if body.Label == "" {
		config.ErrorStatus("label is required", http.StatusBadRequest, w, fmt.Errorf("missing label"))
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	record, err := e.DB.FindOne(ctx, bson.M{"_id": evidenceID})
	if err != nil {
		config.ErrorStatus("evidence not found", http.StatusNotFound, w, err)
		return
	}

	res, err := e.DB.UpdateOne(ctx,
		bson.M{"_id": evidenceID},
		bson.M{"$set": bson.M{"evidence.label": body.Label}},
	)
	if err != nil {
		config.ErrorStatus("failed to rename evidence", http.StatusInternalServerError, w, err)
		return
	}
	if res.MatchedCount == 0 {
		config.ErrorStatus("evidence not found", http.StatusNotFound, w, fmt.Errorf("no evidence with id %s", evidenceID))
		return
	}
	e.Hub.Publish(EventUpdated, evidenceID, record.Details.OwnerID)

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"renamed": true}`))
}

// DeleteEvidenceHandler removes an evidence record. Deleting a record that
// does not exist is not an error.
func (e Evidence) DeleteEvidenceHandler(w http.ResponseWriter, r *http.Request) {
	evidenceID := mux.Vars(r)["evidence_id"]

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	// read the owner first so the deletion event reaches the right scope
	scope := models.AnonymousScope
	if record, err := e.DB.FindOne(ctx, bson.M{"_id": evidenceID}); err == nil {
		scope = record.Details.OwnerID
	}

	deleted, err := e.DB.DeleteOne(ctx, bson.M{"_id": evidenceID})
	if err != nil {
		config.ErrorStatus("failed to delete evidence", http.StatusInternalServerError, w, err)
		return
	}
	if deleted > 0 {
		e.Hub.Publish(EventDeleted, evidenceID, scope)
	}

	b, _ := json.Marshal(map[string]int64{"deleted": deleted})
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// applyRecordDefaults fills in the fields every stored record must carry
func applyRecordDefaults(record *models.Evidence) {
	if record.Details.OwnerID == "" {
		record.Details.OwnerID = models.AnonymousScope
	}
	if record.Details.Status == "" {
		record.Details.Status = models.StatusPending
	}
	if record.Details.UploadedAt == 0 {
		record.Details.UploadedAt = primitive.NewDateTimeFromTime(time.Now())
	}
}

// statusRank orders the lifecycle statuses so updates can refuse to move a
// record backward
func statusRank(status string) int {
	switch status {
	case models.StatusAnalyzing:
		return 1
	case models.StatusComplete:
		return 2
	default:
		return 0
	}
}

// decodePayload unpacks a data-URI image payload into raw bytes plus the
// declared mime type
func decodePayload(payload string) ([]byte, string, error) {
	if payload == "" {
		return nil, "", fmt.Errorf("record has no image payload")
	}
	if !strings.HasPrefix(payload, "data:") {
		return nil, "", fmt.Errorf("payload is not a data URI")
	}
	comma := strings.Index(payload, ",")
	if comma < 0 {
		return nil, "", fmt.Errorf("malformed data URI")
	}
	header := payload[len("data:"):comma]
	mimeType := header
	if semi := strings.Index(header, ";"); semi >= 0 {
		mimeType = header[:semi]
	}
	if !strings.Contains(header, "base64") {
		return nil, "", fmt.Errorf("data URI is not base64 encoded")
	}
	data, err := base64.StdEncoding.DecodeString(payload[comma+1:])
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode payload: %w", err)
	}
	return data, mimeType, nil
}
