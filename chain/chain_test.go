package chain

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewChainClientSelectsMockWithoutContract(t *testing.T) {
	client := NewChainClient("http://localhost:8545", "")
	assert.IsType(t, &MockChainClient{}, client)

	client = NewChainClient("http://localhost:8545", "0xdeadbeef")
	assert.IsType(t, &RealChainClient{}, client)
}

func TestNewPinClientSelectsMockWithoutCredentials(t *testing.T) {
	assert.IsType(t, &MockPinClient{}, NewPinClient("", ""))
	assert.IsType(t, &MockPinClient{}, NewPinClient("https://api.pinata.cloud", ""))
	assert.IsType(t, &RealPinClient{}, NewPinClient("https://api.pinata.cloud", "jwt-token"))
}

func TestMockChainClientPreserveHash(t *testing.T) {
	client := &MockChainClient{}

	tx, err := client.PreserveHash(context.Background(), "QmContentHash", "abc123")
	assert.NoError(t, err)
	assert.True(t, strings.HasPrefix(tx, "0x"))
	assert.Len(t, tx, 66)

	// same inputs always yield the same hash
	again, err := client.PreserveHash(context.Background(), "QmContentHash", "abc123")
	assert.NoError(t, err)
	assert.Equal(t, tx, again)

	other, err := client.PreserveHash(context.Background(), "QmContentHash", "def456")
	assert.NoError(t, err)
	assert.NotEqual(t, tx, other)
}

func TestMockPinClientPin(t *testing.T) {
	client := &MockPinClient{}

	cid, err := client.Pin(context.Background(), "scene.png", []byte("image-bytes"))
	assert.NoError(t, err)
	assert.True(t, strings.HasPrefix(cid, "Qm"))
	assert.Len(t, cid, 46)

	again, err := client.Pin(context.Background(), "other-name.png", []byte("image-bytes"))
	assert.NoError(t, err)
	assert.Equal(t, cid, again, "content hash depends on bytes, not file name")
}

func TestRealChainClientPreserveHash(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/invoke", r.URL.Path)

		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatal(err)
		}
		assert.Equal(t, "0xcontract", body["contract"])
		assert.Equal(t, "preserveEvidence", body["method"])
		assert.Equal(t, "QmContentHash", body["contentHash"])

		json.NewEncoder(w).Encode(map[string]string{"txHash": "0xabcdef"})
	}))
	defer srv.Close()

	client := NewChainClient(srv.URL, "0xcontract")

	tx, err := client.PreserveHash(context.Background(), "QmContentHash", "abc123")
	assert.NoError(t, err)
	assert.Equal(t, "0xabcdef", tx)
}

func TestRealChainClientPreserveHashGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "out of gas", http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewChainClient(srv.URL, "0xcontract")

	_, err := client.PreserveHash(context.Background(), "QmContentHash", "abc123")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestRealPinClientPin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/pinning/pinFileToIPFS", r.URL.Path)
		assert.Equal(t, "Bearer jwt-token", r.Header.Get("Authorization"))

		json.NewEncoder(w).Encode(map[string]string{"IpfsHash": "QmRealHash"})
	}))
	defer srv.Close()

	client := NewPinClient(srv.URL, "jwt-token")

	cid, err := client.Pin(context.Background(), "scene.png", []byte("image-bytes"))
	assert.NoError(t, err)
	assert.Equal(t, "QmRealHash", cid)
}
