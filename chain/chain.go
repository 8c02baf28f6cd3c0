// Package chain holds the preservation clients: a blockchain client that
// anchors evidence hashes on a ledger and a pinning client that stores the
// image bytes on IPFS. Both come in a real and a mock flavor, selected by
// configuration, so the preservation flow works without chain credentials.
package chain

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ChainClient anchors a content hash on the ledger and returns the
// transaction hash
type ChainClient interface {
	Connect(ctx context.Context) (string, error)
	PreserveHash(ctx context.Context, contentHash, sha string) (string, error)
}

// NewChainClient selects the real client when a contract address is
// configured and the mock otherwise
func NewChainClient(rpcURL, contractAddress string) ChainClient {
	if contractAddress == "" {
		return &MockChainClient{}
	}
	return &RealChainClient{
		rpcURL:          rpcURL,
		contractAddress: contractAddress,
		client:          &http.Client{Timeout: 30 * time.Second},
	}
}

// RealChainClient invokes the preservation contract through the configured
// signer service
type RealChainClient struct {
	rpcURL          string
	contractAddress string
	client          *http.Client
}

// Connect verifies the signer service is reachable and returns the active account
func (c *RealChainClient) Connect(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.rpcURL+"/account", nil)
	if err != nil {
		return "", err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out struct {
		Account string `json:"account"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.Account, nil
}

// PreserveHash invokes the contract with the IPFS content hash and the
// sha256 of the image bytes, returning the transaction hash
func (c *RealChainClient) PreserveHash(ctx context.Context, contentHash, sha string) (string, error) {
	body, err := json.Marshal(map[string]string{
		"contract":    c.contractAddress,
		"method":      "preserveEvidence",
		"contentHash": contentHash,
		"sha256":      sha,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL+"/invoke", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("chain invocation returned %d: %s", resp.StatusCode, string(b))
	}

	var out struct {
		TxHash string `json:"txHash"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if out.TxHash == "" {
		return "", fmt.Errorf("chain invocation returned no transaction hash")
	}
	return out.TxHash, nil
}

// MockChainClient fabricates deterministic transaction hashes when no
// contract is configured
type MockChainClient struct{}

// Connect always succeeds with a placeholder account
func (c *MockChainClient) Connect(ctx context.Context) (string, error) {
	return "0x0000000000000000000000000000000000000000", nil
}

// PreserveHash derives a synthetic transaction hash from the content hash
func (c *MockChainClient) PreserveHash(ctx context.Context, contentHash, sha string) (string, error) {
	sum := sha256.Sum256([]byte(contentHash + sha))
	return "0x" + hex.EncodeToString(sum[:]), nil
}
