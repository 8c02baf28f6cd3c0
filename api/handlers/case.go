package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/verilens/evidence-api/api"
	"github.com/verilens/evidence-api/config"
	"github.com/verilens/evidence-api/databases"
	"github.com/verilens/evidence-api/models"
)

// Case exported for testing purposes
type Case struct {
	DB  databases.CaseDatabase
	EDB databases.EvidenceDatabase
	Hub *Hub
}

// CreateCaseHandler creates a new case
func (c Case) CreateCaseHandler(w http.ResponseWriter, r *http.Request) {
	var details models.CaseDetails
	if err := json.NewDecoder(r.Body).Decode(&details); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	if details.CaseNumber == "" {
		config.ErrorStatus("caseNumber is required", http.StatusBadRequest, w, fmt.Errorf("missing caseNumber"))
		return
	}
	details.CreatedAt = primitive.NewDateTimeFromTime(time.Now())

	caseRecord := models.Case{
		ID:      primitive.NewObjectID(),
		Details: details,
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	if _, err := c.DB.InsertOne(ctx, caseRecord); err != nil {
		config.ErrorStatus("failed to create case", http.StatusInternalServerError, w, err)
		return
	}

	b, err := json.Marshal(caseRecord)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	w.Write(b)
}

// CasesHandler returns all cases, optionally filtered by creator
func (c Case) CasesHandler(w http.ResponseWriter, r *http.Request) {
	createdBy := r.URL.Query().Get("created_by")

	filter := bson.M{}
	if createdBy != "" {
		filter["case.createdBy"] = createdBy
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	dbResp, err := c.DB.Find(ctx, filter)
	if err != nil {
		config.ErrorStatus("failed to get cases", http.StatusNotFound, w, err)
		return
	}
	// the frontend requires a list, so an empty result set marshals as []
	if len(dbResp) == 0 {
		dbResp = []models.Case{}
	}
	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// DeleteCaseHandler removes a case and every evidence record filed under it.
// The cascade is authoritative: referencing records are deleted inline, and
// the periodic sweep catches anything written concurrently.
func (c Case) DeleteCaseHandler(w http.ResponseWriter, r *http.Request) {
	caseID := mux.Vars(r)["case_id"]

	cID, err := primitive.ObjectIDFromHex(caseID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	deleted, err := c.DB.DeleteOne(ctx, bson.M{"_id": cID})
	if err != nil {
		config.ErrorStatus("failed to delete case", http.StatusInternalServerError, w, err)
		return
	}

	// capture the records going away so their owners get deletion events
	cascading, err := c.EDB.Find(ctx, bson.M{"evidence.caseId": cID.Hex()})
	if err != nil {
		zap.S().Errorw("failed to list case evidence for events", "caseId", caseID, "error", err)
	}

	evidenceRemoved, err := c.EDB.DeleteMany(ctx, bson.M{"evidence.caseId": cID.Hex()})
	if err != nil {
		config.ErrorStatus("failed to delete case evidence", http.StatusInternalServerError, w, err)
		return
	}
	for _, record := range cascading {
		c.Hub.Publish(EventDeleted, record.ID, record.Details.OwnerID)
	}
	zap.S().Infow("deleted case", "caseId", caseID, "evidenceRemoved", evidenceRemoved)

	b, _ := json.Marshal(map[string]int64{
		"deleted":         deleted,
		"evidenceRemoved": evidenceRemoved,
	})
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}
