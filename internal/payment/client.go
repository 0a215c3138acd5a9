package payment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

// Payment states reported by the gateway.
const (
	StateCompleted = "COMPLETED"
	StateFailed    = "FAILED"
	StatePending   = "PENDING"
)

// CheckoutResult a created payment session.
type CheckoutResult struct {
	OrderID     string `json:"orderId"`
	RedirectURL string `json:"redirectUrl"`
	State       string `json:"state"`
}

// StatusResult current state of a payment.
type StatusResult struct {
	OrderID string `json:"orderId"`
	State   string `json:"state"`
	Amount  int64  `json:"amount"` // paise
}

// Client is what the purchasing workflow needs from a payment gateway.
// External calls never run inside a stock or lot transaction.
type Client interface {
	CreateCheckout(ctx context.Context, merchantOrderID string, amountPaise int64, redirectURL string) (*CheckoutResult, error)
	Status(ctx context.Context, merchantOrderID string) (*StatusResult, error)
}

// Config gateway credentials and endpoints.
type Config struct {
	BaseURL      string
	AuthURL      string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
}

// PhonePeClient PhonePe-style gateway client. The OAuth token and its expiry
// live on the client instance behind a mutex, not in package state, so each
// injected client refreshes independently.
type PhonePeClient struct {
	http *resty.Client
	cfg  Config

	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
}

func NewPhonePeClient(cfg Config) *PhonePeClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &PhonePeClient{
		http: resty.New().
			SetBaseURL(cfg.BaseURL).
			SetTimeout(cfg.Timeout).
			SetHeader("Content-Type", "application/json"),
		cfg: cfg,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresAt   int64  `json:"expires_at"` // unix seconds
}

// token returns a valid access token, refreshing through the auth endpoint
// when the cached one is within a minute of expiry.
func (c *PhonePeClient) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Until(c.expiresAt) > time.Minute {
		return c.accessToken, nil
	}

	var tok tokenResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/x-www-form-urlencoded").
		SetFormData(map[string]string{
			"client_id":     c.cfg.ClientID,
			"client_secret": c.cfg.ClientSecret,
			"grant_type":    "client_credentials",
		}).
		SetResult(&tok).
		Post(c.cfg.AuthURL)
	if err != nil {
		return "", fmt.Errorf("payment auth request: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("payment auth failed: %s", resp.Status())
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("payment auth returned empty token")
	}

	c.accessToken = tok.AccessToken
	c.expiresAt = time.Unix(tok.ExpiresAt, 0)
	return c.accessToken, nil
}

type checkoutRequest struct {
	MerchantOrderID string          `json:"merchantOrderId"`
	Amount          int64           `json:"amount"`
	PaymentFlow     checkoutPayFlow `json:"paymentFlow"`
}

type checkoutPayFlow struct {
	Type        string `json:"type"`
	RedirectURL string `json:"redirectUrl"`
}

// CreateCheckout opens a hosted checkout session for the given amount.
func (c *PhonePeClient) CreateCheckout(ctx context.Context, merchantOrderID string, amountPaise int64, redirectURL string) (*CheckoutResult, error) {
	tok, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	var result CheckoutResult
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Authorization", "O-Bearer "+tok).
		SetBody(checkoutRequest{
			MerchantOrderID: merchantOrderID,
			Amount:          amountPaise,
			PaymentFlow: checkoutPayFlow{
				Type:        "PG_CHECKOUT",
				RedirectURL: redirectURL,
			},
		}).
		SetResult(&result).
		Post("/checkout/v2/pay")
	if err != nil {
		return nil, fmt.Errorf("create checkout: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("create checkout failed: %s", resp.Status())
	}
	return &result, nil
}

// Status fetches the current state of a payment by merchant order id.
func (c *PhonePeClient) Status(ctx context.Context, merchantOrderID string) (*StatusResult, error) {
	tok, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	var result StatusResult
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Authorization", "O-Bearer "+tok).
		SetResult(&result).
		Get(fmt.Sprintf("/checkout/v2/order/%s/status", merchantOrderID))
	if err != nil {
		return nil, fmt.Errorf("payment status: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("payment status failed: %s", resp.Status())
	}
	return &result, nil
}
