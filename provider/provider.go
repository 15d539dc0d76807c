package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Intent is what a gateway hands back for a fresh payment attempt: an
// opaque payload for code rendering, a checkout link fallback, and the
// provider's own reference for later status checks.
type Intent struct {
	ProviderRef string
	PayloadText string
	CheckoutURL string
}

// Gateway opens a payment attempt with the external provider.
type Gateway interface {
	CreateIntent(ctx context.Context, bookingID string, amount int64, currency string) (Intent, error)
}

// HTTPChecker talks to a provider's REST API. It implements Gateway via
// POST /v1/bookings/{id}/payment-intents and payment.StatusChecker via
// GET /v1/bookings/{id}/payment-status.
type HTTPChecker struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHTTPChecker(baseURL, apiKey string) *HTTPChecker {
	return &HTTPChecker{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *HTTPChecker) CreateIntent(ctx context.Context, bookingID string, amount int64, currency string) (Intent, error) {
	url := fmt.Sprintf("%s/v1/bookings/%s/payment-intents", c.baseURL, bookingID)
	payload, err := json.Marshal(map[string]interface{}{
		"amount":   amount,
		"currency": currency,
	})
	if err != nil {
		return Intent{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return Intent{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Intent{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return Intent{}, fmt.Errorf("provider: intent endpoint returned %d", resp.StatusCode)
	}

	var body struct {
		ProviderRef string `json:"provider_ref"`
		PayloadText string `json:"payload_text"`
		CheckoutURL string `json:"checkout_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Intent{}, err
	}
	return Intent{
		ProviderRef: body.ProviderRef,
		PayloadText: body.PayloadText,
		CheckoutURL: body.CheckoutURL,
	}, nil
}

func (c *HTTPChecker) Check(ctx context.Context, bookingID string) (string, error) {
	url := fmt.Sprintf("%s/v1/bookings/%s/payment-status", c.baseURL, bookingID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("provider: status endpoint returned %d", resp.StatusCode)
	}

	var body struct {
		DepositStatus string `json:"deposit_status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	return body.DepositStatus, nil
}
