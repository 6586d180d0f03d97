package driver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/me/onelane/pkg/model"
)

// Client drives vehicles through the REST API on behalf of the simulator.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new API client with connection pooling.
func NewClient(baseURL string) *Client {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 32,
		IdleConnTimeout:     90 * time.Second,
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
	}
}

// Register adds a vehicle to the queue.
func (c *Client) Register(ctx context.Context, spec model.VehicleSpec) (model.Vehicle, error) {
	body, err := json.Marshal(spec)
	if err != nil {
		return model.Vehicle{}, err
	}

	resp, err := c.doRequest(ctx, http.MethodPost, "/api/v1/vehicles", body)
	if err != nil {
		return model.Vehicle{}, fmt.Errorf("register: %w", err)
	}

	var v model.Vehicle
	if err := decodeResponseData(resp, &v); err != nil {
		return model.Vehicle{}, fmt.Errorf("register: %w", err)
	}
	return v, nil
}

// RequestCrossing asks for the bridge. Denials are returned, not errors.
func (c *Client) RequestCrossing(ctx context.Context, vehicleID int64) (model.CrossingResponse, error) {
	path := fmt.Sprintf("/api/v1/vehicles/%d/request-crossing", vehicleID)
	resp, err := c.doRequest(ctx, http.MethodPost, path, nil)
	if err != nil {
		return model.CrossingResponse{}, fmt.Errorf("request crossing: %w", err)
	}

	var cr model.CrossingResponse
	if err := decodeResponseData(resp, &cr); err != nil {
		return model.CrossingResponse{}, fmt.Errorf("request crossing: %w", err)
	}
	return cr, nil
}

// FinishCrossing leaves the bridge.
func (c *Client) FinishCrossing(ctx context.Context, vehicleID int64) (FinishResult, error) {
	path := fmt.Sprintf("/api/v1/vehicles/%d/finish-crossing", vehicleID)
	resp, err := c.doRequest(ctx, http.MethodPost, path, nil)
	if err != nil {
		return FinishResult{}, fmt.Errorf("finish crossing: %w", err)
	}

	var res FinishResult
	if err := decodeResponseData(resp, &res); err != nil {
		return FinishResult{}, fmt.Errorf("finish crossing: %w", err)
	}
	return res, nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, respBody)
	}

	return resp, nil
}

// decodeResponseData extracts the data field from the API response envelope.
func decodeResponseData(resp *http.Response, dest any) error {
	defer resp.Body.Close()

	var envelope struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
		Error  *model.APIError `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if envelope.Error != nil {
		return envelope.Error
	}
	if dest != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, dest); err != nil {
			return fmt.Errorf("decode data: %w", err)
		}
	}
	return nil
}
