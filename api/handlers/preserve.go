package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"github.com/verilens/evidence-api/api"
	"github.com/verilens/evidence-api/chain"
	"github.com/verilens/evidence-api/config"
	"github.com/verilens/evidence-api/databases"
)

// Preserve exported for testing purposes
type Preserve struct {
	DB    databases.EvidenceDatabase
	Chain chain.ChainClient
	Pin   chain.PinClient
	Hub   *Hub
}

// PreserveEvidenceHandler pins the image bytes to IPFS and anchors their
// hash on the ledger. A record can only be preserved once.
func (p Preserve) PreserveEvidenceHandler(w http.ResponseWriter, r *http.Request) {
	evidenceID := mux.Vars(r)["evidence_id"]

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	record, err := p.DB.FindOne(ctx, bson.M{"_id": evidenceID})
	if err != nil {
		config.ErrorStatus("failed to get evidence by ID", http.StatusNotFound, w, err)
		return
	}
	if record.Details.BlockchainTxHash != "" {
		config.ErrorStatus("evidence already preserved", http.StatusConflict, w,
			fmt.Errorf("evidence %s already has transaction %s", evidenceID, record.Details.BlockchainTxHash))
		return
	}

	payload, _, err := decodePayload(record.Details.Payload)
	if err != nil {
		config.ErrorStatus("failed to decode evidence payload", http.StatusBadRequest, w, err)
		return
	}
	sum := sha256.Sum256(payload)
	sha := hex.EncodeToString(sum[:])

	contentHash, err := p.Pin.Pin(r.Context(), record.Details.FileName, payload)
	if err != nil {
		config.ErrorStatus("failed to pin evidence to ipfs", http.StatusBadGateway, w, err)
		return
	}
	zap.S().Infow("pinned evidence", "evidenceId", evidenceID, "ipfsHash", contentHash)

	txHash, err := p.Chain.PreserveHash(r.Context(), contentHash, sha)
	if err != nil {
		config.ErrorStatus("failed to anchor evidence on chain", http.StatusBadGateway, w, err)
		return
	}
	zap.S().Infow("anchored evidence", "evidenceId", evidenceID, "txHash", txHash)

	_, err = p.DB.UpdateOne(ctx, bson.M{"_id": evidenceID}, bson.M{"$set": bson.M{
		"evidence.ipfsHash":         contentHash,
		"evidence.blockchainTxHash": txHash,
	}})
	if err != nil {
		config.ErrorStatus("failed to store preservation result", http.StatusInternalServerError, w, err)
		return
	}
	p.Hub.Publish(EventPreserved, evidenceID, record.Details.OwnerID)

	b, err := json.Marshal(map[string]string{
		"blockchainTxHash": txHash,
		"ipfsHash":         contentHash,
		"sha256":           sha,
	})
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}
