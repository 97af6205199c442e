package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/fyrsmithlabs/distilld/internal/distill"
)

// backendClient talks to the distilld HTTP API.
type backendClient struct {
	baseURL string
	http    *http.Client
}

func newBackendClient(baseURL string) *backendClient {
	return &backendClient{
		baseURL: baseURL,
		// Processing blocks on embedding and reasoning-service calls.
		http: &http.Client{Timeout: 60 * time.Second},
	}
}

type ingestResponse struct {
	SessionID    string `json:"session_id"`
	MessageCount int    `json:"message_count"`
}

// Distill ingests formatted chat text and runs the full pipeline,
// returning the processed result.
func (c *backendClient) Distill(text string) (*distill.ProcessedResult, error) {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, fmt.Errorf("encoding ingest request: %w", err)
	}

	resp, err := c.http.Post(c.baseURL+"/api/ingest", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ingest request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ingest returned status %d", resp.StatusCode)
	}

	var ingest ingestResponse
	if err := json.NewDecoder(resp.Body).Decode(&ingest); err != nil {
		return nil, fmt.Errorf("decoding ingest response: %w", err)
	}
	if ingest.SessionID == "" {
		return nil, fmt.Errorf("ingest response missing session_id")
	}

	procResp, err := c.http.Post(c.baseURL+"/api/process/"+ingest.SessionID, "application/json", nil)
	if err != nil {
		return nil, fmt.Errorf("process request: %w", err)
	}
	defer procResp.Body.Close()
	if procResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("process returned status %d", procResp.StatusCode)
	}

	var result distill.ProcessedResult
	if err := json.NewDecoder(procResp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding processed result: %w", err)
	}
	return &result, nil
}
