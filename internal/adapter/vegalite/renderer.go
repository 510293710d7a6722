// Package vegalite implements the renderer port against a vl-convert HTTP
// service that turns vega-lite specs into PNGs.
package vegalite

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fundsage/FundSage/internal/domain/chart"
)

// Renderer posts chart specs to a vl-convert service.
type Renderer struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a renderer client for the vl-convert service at baseURL.
func New(baseURL string, timeout time.Duration) *Renderer {
	return &Renderer{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Rasterize converts one spec to a PNG.
func (r *Renderer) Rasterize(ctx context.Context, spec chart.Spec) ([]byte, error) {
	body, err := json.Marshal(spec)
	if err != nil {
		return nil, fmt.Errorf("marshal spec: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/api/v1/convert/vl2png", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "image/png")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("render request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read render response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("render service error %d: %s", resp.StatusCode, string(data))
	}
	return data, nil
}
