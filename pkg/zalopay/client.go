// Package zalopay is a minimal client for the ZaloPay v2 gateway: order
// creation, callback verification and order status queries. Requests are
// signed with key1, inbound callbacks are verified with key2.
package zalopay

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrInvalidMac is returned when a callback signature does not verify
var ErrInvalidMac = errors.New("zalopay: callback mac mismatch")

// Callback result codes returned to the gateway
const (
	CallbackCodeSuccess    = 1
	CallbackCodeRetry      = 0
	CallbackCodeInvalidMac = -1
)

// Config holds gateway credentials and endpoints
type Config struct {
	AppID       int
	Key1        string
	Key2        string
	Endpoint    string
	QueryURL    string
	CallbackURL string
}

// Client talks to the ZaloPay gateway
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient creates a gateway client with a 30 second request timeout
func NewClient(cfg Config) *Client {
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// NewAppTransID builds the gateway order reference. ZaloPay requires the
// yymmdd_ prefix to match the order creation date.
func NewAppTransID(now time.Time, fragment string) string {
	return fmt.Sprintf("%s_%s", now.Format("060102"), fragment)
}

// CreateOrderRequest describes one order to register with the gateway
type CreateOrderRequest struct {
	AppTransID  string
	AppUser     string
	Amount      int64
	Description string
	EmbedData   string
	Item        string
}

// CreateOrderResponse is the gateway's answer to order creation
type CreateOrderResponse struct {
	ReturnCode       int    `json:"return_code"`
	ReturnMessage    string `json:"return_message"`
	SubReturnCode    int    `json:"sub_return_code"`
	SubReturnMessage string `json:"sub_return_message"`
	OrderURL         string `json:"order_url"`
	ZPTransToken     string `json:"zp_trans_token"`
	OrderToken       string `json:"order_token"`
}

// Success reports whether the gateway accepted the order
func (r *CreateOrderResponse) Success() bool {
	return r.ReturnCode == 1
}

// CreateOrder registers a payment order with the gateway and returns the
// payment URL for the customer
func (c *Client) CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreateOrderResponse, error) {
	appTime := time.Now().UnixMilli()
	embedData := req.EmbedData
	if embedData == "" {
		embedData = "{}"
	}
	item := req.Item
	if item == "" {
		item = "[]"
	}

	// mac input order is fixed by the gateway contract
	macInput := fmt.Sprintf("%d|%s|%s|%d|%d|%s|%s",
		c.cfg.AppID, req.AppTransID, req.AppUser, req.Amount, appTime, embedData, item)

	payload := map[string]interface{}{
		"app_id":       c.cfg.AppID,
		"app_trans_id": req.AppTransID,
		"app_user":     req.AppUser,
		"amount":       req.Amount,
		"app_time":     appTime,
		"embed_data":   embedData,
		"item":         item,
		"description":  req.Description,
		"callback_url": c.cfg.CallbackURL,
		"mac":          c.sign(c.cfg.Key1, macInput),
	}

	var resp CreateOrderResponse
	if err := c.post(ctx, c.cfg.Endpoint, payload, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CallbackEnvelope is the raw callback body posted by the gateway
type CallbackEnvelope struct {
	Data string `json:"data"`
	Mac  string `json:"mac"`
	Type int    `json:"type"`
}

// CallbackData is the verified payload inside a callback envelope
type CallbackData struct {
	AppID       int    `json:"app_id"`
	AppTransID  string `json:"app_trans_id"`
	AppUser     string `json:"app_user"`
	AppTime     int64  `json:"app_time"`
	Amount      int64  `json:"amount"`
	EmbedData   string `json:"embed_data"`
	Item        string `json:"item"`
	ZPTransID   int64  `json:"zp_trans_id"`
	ServerTime  int64  `json:"server_time"`
	Channel     int    `json:"channel"`
	MerchantUID string `json:"merchant_user_id"`
}

// VerifyCallback checks the envelope signature with key2 and, when valid,
// decodes the inner payload. A mac mismatch returns ErrInvalidMac.
func (c *Client) VerifyCallback(env CallbackEnvelope) (*CallbackData, error) {
	expected := c.sign(c.cfg.Key2, env.Data)
	if !hmac.Equal([]byte(expected), []byte(env.Mac)) {
		return nil, ErrInvalidMac
	}

	var data CallbackData
	if err := json.Unmarshal([]byte(env.Data), &data); err != nil {
		return nil, fmt.Errorf("zalopay: failed to decode callback data: %w", err)
	}
	return &data, nil
}

// QueryOrderResponse is the gateway's answer to a status query.
// return_code 1 means paid, 2 means failed, 3 means pending.
type QueryOrderResponse struct {
	ReturnCode    int    `json:"return_code"`
	ReturnMessage string `json:"return_message"`
	IsProcessing  bool   `json:"is_processing"`
	Amount        int64  `json:"amount"`
	ZPTransID     int64  `json:"zp_trans_id"`
}

// Paid reports whether the order settled successfully
func (r *QueryOrderResponse) Paid() bool {
	return r.ReturnCode == 1
}

// QueryOrder asks the gateway for the current status of an order
func (c *Client) QueryOrder(ctx context.Context, appTransID string) (*QueryOrderResponse, error) {
	macInput := fmt.Sprintf("%d|%s|%s", c.cfg.AppID, appTransID, c.cfg.Key1)
	payload := map[string]interface{}{
		"app_id":       c.cfg.AppID,
		"app_trans_id": appTransID,
		"mac":          c.sign(c.cfg.Key1, macInput),
	}

	var resp QueryOrderResponse
	if err := c.post(ctx, c.cfg.QueryURL, payload, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) sign(key, input string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(input))
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *Client) post(ctx context.Context, url string, payload map[string]interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("zalopay: failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("zalopay: failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("zalopay: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("zalopay: failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("zalopay: gateway returned status %d: %s", resp.StatusCode, string(raw))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("zalopay: failed to decode response: %w", err)
	}
	return nil
}
