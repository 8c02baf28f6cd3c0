package chain

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// PinClient stores a file on IPFS and returns its content hash
type PinClient interface {
	Pin(ctx context.Context, fileName string, data []byte) (string, error)
}

// NewPinClient selects the real client when pinning credentials are
// configured and the mock otherwise
func NewPinClient(apiURL, jwt string) PinClient {
	if apiURL == "" || jwt == "" {
		return &MockPinClient{}
	}
	return &RealPinClient{
		apiURL: apiURL,
		jwt:    jwt,
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

// RealPinClient talks to a Pinata-style pinning gateway
type RealPinClient struct {
	apiURL string
	jwt    string
	client *http.Client
}

// Pin uploads the file and returns the reported content hash
func (p *RealPinClient) Pin(ctx context.Context, fileName string, data []byte) (string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		return "", err
	}
	if _, err = part.Write(data); err != nil {
		return "", err
	}
	if err = writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL+"/pinning/pinFileToIPFS", body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+p.jwt)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("pinning gateway returned %d: %s", resp.StatusCode, string(b))
	}

	var out struct {
		IpfsHash string `json:"IpfsHash"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if out.IpfsHash == "" {
		return "", fmt.Errorf("pinning gateway returned no content hash")
	}
	return out.IpfsHash, nil
}

// MockPinClient fabricates a deterministic synthetic content hash when no
// pinning credentials are configured
type MockPinClient struct{}

// Pin hashes the payload locally and dresses it up as a content hash
func (p *MockPinClient) Pin(ctx context.Context, fileName string, data []byte) (string, error) {
	sum := sha256.Sum256(data)
	return "Qm" + hex.EncodeToString(sum[:])[:44], nil
}
