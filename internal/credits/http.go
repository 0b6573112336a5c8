// ABOUTME: HTTP client for the external billing service
// ABOUTME: Implements Authorizer against the balance and deduct endpoints
package credits

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Config contains billing service client configuration
type Config struct {
	Endpoint string // base URL of the billing service
	APIKey   string
	Timeout  time.Duration
}

// Client calls the billing service over HTTP
type Client struct {
	config     Config
	httpClient *http.Client
}

// NewClient creates a billing service client
func NewClient(config Config) *Client {
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
	}
}

type balanceResponse struct {
	Sufficient bool  `json:"sufficient"`
	Remaining  int64 `json:"remaining"`
}

type deductRequest struct {
	UserID string `json:"user_id"`
	Amount int64  `json:"amount"`
}

// Check asks the billing service whether the user can afford a turn
func (c *Client) Check(ctx context.Context, userID string) (bool, int64, error) {
	endpoint := fmt.Sprintf("%s/v1/balance/%s", c.config.Endpoint, url.PathEscape(userID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, 0, fmt.Errorf("failed to build balance request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, 0, fmt.Errorf("balance check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return false, 0, fmt.Errorf("balance check returned %d: %s", resp.StatusCode, body)
	}

	var balance balanceResponse
	if err := json.NewDecoder(resp.Body).Decode(&balance); err != nil {
		return false, 0, fmt.Errorf("failed to decode balance response: %w", err)
	}

	return balance.Sufficient, balance.Remaining, nil
}

// Deduct charges the user for one completed turn
func (c *Client) Deduct(ctx context.Context, userID string, amount int64) error {
	payload, err := json.Marshal(deductRequest{UserID: userID, Amount: amount})
	if err != nil {
		return fmt.Errorf("failed to marshal deduct request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.config.Endpoint+"/v1/deduct", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build deduct request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("deduct failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusPaymentRequired:
		return ErrInsufficientBalance
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("deduct returned %d: %s", resp.StatusCode, body)
	}
}

func (c *Client) authorize(req *http.Request) {
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}
}
