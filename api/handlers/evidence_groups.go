package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/verilens/evidence-api/api"
	"github.com/verilens/evidence-api/config"
	"github.com/verilens/evidence-api/models"
)

// EvidenceGroup is one case bucket in the grouped dashboard view. Records
// without a case land in the trailing uncategorized group with an empty
// caseId.
type EvidenceGroup struct {
	CaseID     string            `json:"caseId"`
	CaseNumber string            `json:"caseNumber"`
	CaseName   string            `json:"caseName"`
	Records    []models.Evidence `json:"records"`
}

// EvidenceFilters narrows a record list before grouping. Empty fields match
// everything.
type EvidenceFilters struct {
	Search  string
	Status  string
	Verdict string
}

// FilterEvidence returns the records matching every set filter. Search is a
// case-insensitive substring match over file name, label and case fields.
func FilterEvidence(records []models.Evidence, filters EvidenceFilters) []models.Evidence {
	out := make([]models.Evidence, 0, len(records))
	needle := strings.ToLower(filters.Search)
	for _, record := range records {
		d := record.Details
		if filters.Status != "" && d.Status != filters.Status {
			continue
		}
		if filters.Verdict != "" && d.Verdict != filters.Verdict {
			continue
		}
		if needle != "" && !matchesSearch(d, needle) {
			continue
		}
		out = append(out, record)
	}
	return out
}

func matchesSearch(d models.EvidenceDetails, needle string) bool {
	for _, field := range []string{d.FileName, d.Label, d.CaseNumber, d.CaseName} {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

// GroupEvidence buckets records by their case, preserving the incoming record
// order inside each bucket. Groups appear in order of first appearance, the
// uncategorized bucket always last, and no empty groups are emitted.
func GroupEvidence(records []models.Evidence) []EvidenceGroup {
	groups := []EvidenceGroup{}
	index := map[string]int{}
	var uncategorized []models.Evidence

	for _, record := range records {
		caseID := record.Details.CaseID
		if caseID == "" {
			uncategorized = append(uncategorized, record)
			continue
		}
		i, ok := index[caseID]
		if !ok {
			i = len(groups)
			index[caseID] = i
			groups = append(groups, EvidenceGroup{
				CaseID:     caseID,
				CaseNumber: record.Details.CaseNumber,
				CaseName:   record.Details.CaseName,
			})
		}
		groups[i].Records = append(groups[i].Records, record)
	}

	if len(uncategorized) > 0 {
		groups = append(groups, EvidenceGroup{
			CaseName: "Uncategorized",
			Records:  uncategorized,
		})
	}
	return groups
}

// GroupedEvidenceByUserIDHandler returns the user's evidence grouped by case,
// optionally filtered by search, status and verdict query params
func (e Evidence) GroupedEvidenceByUserIDHandler(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]
	filters := EvidenceFilters{
		Search:  r.URL.Query().Get("search"),
		Status:  r.URL.Query().Get("status"),
		Verdict: r.URL.Query().Get("verdict"),
	}

	zap.S().Debugf("user_id: '%v' filters: %+v", userID, filters)

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

	groups := GroupEvidence(FilterEvidence(dbResp, filters))

	b, err := json.Marshal(groups)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}
