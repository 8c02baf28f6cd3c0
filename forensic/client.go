// Package forensic is the HTTP client for the external image analysis
// backend. The backend owns the actual detection algorithms; this client only
// ships image bytes out and maps the JSON verdicts back.
package forensic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// Client is the contract the handlers depend on
type Client interface {
	AnalyzeTampering(ctx context.Context, fileName string, payload []byte) (*TamperResult, error)
	DetectFaces(ctx context.Context, fileName string, payload []byte) (*FaceResult, error)
	ExtractForensics(ctx context.Context, fileName string, payload []byte) (*ForensicsResult, error)
}

// TamperResult is the tampering analysis verdict payload
type TamperResult struct {
	IsTampered             bool              `json:"isTampered"`
	Confidence             float64           `json:"confidence"`
	TamperingProbability   float64           `json:"tamperingProbability"`
	AIGeneratedProbability float64           `json:"aiGeneratedProbability"`
	QualityScore           float64           `json:"qualityScore"`
	ScamProbability        float64           `json:"scamProbability"`
	DeepfakeProbability    float64           `json:"deepfakeProbability"`
	Metadata               map[string]string `json:"metadata"`
	Anomalies              []string          `json:"anomalies"`
}

// FaceResult is the face detection and matching payload
type FaceResult struct {
	FacesDetected int `json:"facesDetected"`
	Matches       []struct {
		Name       string  `json:"name"`
		Similarity float64 `json:"similarity"`
	} `json:"matches"`
}

// ForensicsResult is the metadata/ELA/PRNU payload
type ForensicsResult struct {
	Metadata  map[string]string `json:"metadata"`
	ELAScore  float64           `json:"elaScore"`
	PRNUScore float64           `json:"prnuScore"`
	Anomalies []string          `json:"anomalies"`
}

type httpClient struct {
	baseURL string
	client  *http.Client
}

// New returns a Client talking to the analysis backend at baseURL
func New(baseURL string) Client {
	return &httpClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *httpClient) AnalyzeTampering(ctx context.Context, fileName string, payload []byte) (*TamperResult, error) {
	result := &TamperResult{}
	if err := c.postImage(ctx, "/api/analyze", fileName, payload, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *httpClient) DetectFaces(ctx context.Context, fileName string, payload []byte) (*FaceResult, error) {
	result := &FaceResult{}
	if err := c.postImage(ctx, "/api/face/detect", fileName, payload, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *httpClient) ExtractForensics(ctx context.Context, fileName string, payload []byte) (*ForensicsResult, error) {
	result := &ForensicsResult{}
	if err := c.postImage(ctx, "/api/forensics", fileName, payload, result); err != nil {
		return nil, err
	}
	return result, nil
}

// postImage ships the image as multipart form data and decodes the JSON
// response into out
func (c *httpClient) postImage(ctx context.Context, path, fileName string, payload []byte, out interface{}) error {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		return err
	}
	if _, err = part.Write(payload); err != nil {
		return err
	}
	if err = writer.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("analysis backend returned %d: %s", resp.StatusCode, string(b))
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
