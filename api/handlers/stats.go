package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"github.com/verilens/evidence-api/api"
	"github.com/verilens/evidence-api/config"
	"github.com/verilens/evidence-api/databases"
	"github.com/verilens/evidence-api/models"
)

// Stats exported for testing purposes
type Stats struct {
	EDB databases.EvidenceDatabase
	RDB databases.ReportDatabase
	UDB databases.UserDatabase
}

// StatsByUserIDHandler returns the dashboard counters for one user's
// evidence. Every counter is zero when the user has no records.
func (s Stats) StatsByUserIDHandler(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	owned := bson.M{"evidence.ownerId": userID}

	total, err := s.EDB.CountDocuments(ctx, owned)
	if err != nil {
		config.ErrorStatus("failed to count evidence", http.StatusInternalServerError, w, err)
		return
	}
	verified, err := s.EDB.CountDocuments(ctx, bson.M{
		"evidence.ownerId": userID,
		"evidence.status":  models.StatusComplete,
		"evidence.verdict": models.VerdictAuthentic,
	})
	if err != nil {
		config.ErrorStatus("failed to count verified evidence", http.StatusInternalServerError, w, err)
		return
	}
	tampered, err := s.EDB.CountDocuments(ctx, bson.M{
		"evidence.ownerId": userID,
		"evidence.verdict": models.VerdictTampered,
	})
	if err != nil {
		config.ErrorStatus("failed to count tampered evidence", http.StatusInternalServerError, w, err)
		return
	}
	secured, err := s.EDB.CountDocuments(ctx, bson.M{
		"evidence.ownerId":          userID,
		"evidence.blockchainTxHash": bson.M{"$exists": true, "$ne": ""},
	})
	if err != nil {
		config.ErrorStatus("failed to count preserved evidence", http.StatusInternalServerError, w, err)
		return
	}

	// reports are keyed by generator email, so resolve the user first. A
	// missing user simply contributes zero reports.
	var reports int64
	user, err := s.UDB.FindOne(ctx, bson.M{"_id": userID})
	if err != nil {
		zap.S().Debugw("stats user lookup failed, reporting zero generated reports",
			"userId", userID, "error", err)
	} else if user.Details.Email != "" {
		reports, err = s.RDB.CountDocuments(ctx, bson.M{"generatedBy.email": user.Details.Email})
		if err != nil {
			config.ErrorStatus("failed to count generated reports", http.StatusInternalServerError, w, err)
			return
		}
	}

	b, err := json.Marshal(models.DashboardStats{
		TotalEvidence:     total,
		Verified:          verified,
		Tampered:          tampered,
		ReportsGenerated:  reports,
		BlockchainSecured: secured,
	})
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}
