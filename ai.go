package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// AIClient talks to the external receipt-OCR service. The wire contract
// is opaque JSON: an image in, a ReceiptScan out. Outbound calls are
// throttled so a burst of scan requests cannot exceed the provider's
// own limits.
type AIClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
}

func NewAIClient(baseURL, apiKey string) *AIClient {
	return &AIClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 30 * time.Second},
		// provider allows ~1 call/sec sustained
		limiter: rate.NewLimiter(rate.Limit(1), 3),
	}
}

type scanRequest struct {
	Image string `json:"image"` // base64
	Mime  string `json:"mime"`
}

// ScanReceipt extracts structured expense data from a receipt image.
func (c *AIClient) ScanReceipt(ctx context.Context, image []byte, mime string) (*ReceiptScan, error) {
	if c.baseURL == "" {
		return nil, appErr(KindUpstream, "Receipt scanning is not configured")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, wrapErr(KindUpstream, "Receipt scanning unavailable", err)
	}

	body, err := json.Marshal(scanRequest{
		Image: base64.StdEncoding.EncodeToString(image),
		Mime:  mime,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/scan", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, wrapErr(KindUpstream, "Receipt scanning unavailable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, wrapErr(KindUpstream, "Receipt scanning unavailable",
			fmt.Errorf("ai service returned %d", resp.StatusCode))
	}

	var scan ReceiptScan
	if err := json.NewDecoder(resp.Body).Decode(&scan); err != nil {
		return nil, wrapErr(KindUpstream, "Receipt scanning unavailable", err)
	}
	return &scan, nil
}
