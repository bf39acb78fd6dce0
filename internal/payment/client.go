package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

var ErrGatewayUnavailable = errors.New("payment gateway unavailable")

// Intent is the remote payment-provider object awaiting completion.
type Intent struct {
	ID     string `json:"id"`
	Amount int64  `json:"amount"`
}

// Gateway creates remote payment intents. Amounts are minor units;
// receiptRef carries the order number as the reconciliation key.
type Gateway interface {
	CreateIntent(ctx context.Context, amountMinorUnits int64, currency, receiptRef string) (*Intent, error)
}

type HTTPGateway struct {
	baseURL    string
	keyID      string
	secret     string
	httpClient *http.Client
}

func NewHTTPGateway(baseURL, keyID, secret string) *HTTPGateway {
	return &HTTPGateway{
		baseURL: baseURL,
		keyID:   keyID,
		secret:  secret,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

func (g *HTTPGateway) CreateIntent(ctx context.Context, amountMinorUnits int64, currency, receiptRef string) (*Intent, error) {
	body, err := json.Marshal(map[string]any{
		"amount":   amountMinorUnits,
		"currency": currency,
		"receipt":  receiptRef,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal intent request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(g.keyID, g.secret)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("create intent: %v: %w", err, ErrGatewayUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("create intent: status %d: %w", resp.StatusCode, ErrGatewayUnavailable)
	}

	var intent Intent
	if err := json.NewDecoder(resp.Body).Decode(&intent); err != nil {
		return nil, fmt.Errorf("decode intent response: %w", err)
	}
	if intent.ID == "" {
		return nil, fmt.Errorf("intent response missing id: %w", ErrGatewayUnavailable)
	}
	return &intent, nil
}
