package zalopay

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(endpoint, queryURL string) Config {
	return Config{
		AppID:       2553,
		Key1:        "test-key1",
		Key2:        "test-key2",
		Endpoint:    endpoint,
		QueryURL:    queryURL,
		CallbackURL: "https://api.example.com/api/v1/payments/zalopay/callback",
	}
}

func signWith(key, input string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(input))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestNewAppTransID(t *testing.T) {
	now := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, "260315_abc123", NewAppTransID(now, "abc123"))
}

func TestCreateOrder(t *testing.T) {
	t.Run("signs request with key1 and returns order url", func(t *testing.T) {
		var received map[string]interface{}
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
			json.NewEncoder(w).Encode(CreateOrderResponse{
				ReturnCode:    1,
				ReturnMessage: "success",
				OrderURL:      "https://qcgateway.zalopay.vn/pay?order=xyz",
			})
		}))
		defer server.Close()

		client := NewClient(testConfig(server.URL, server.URL))
		resp, err := client.CreateOrder(context.Background(), CreateOrderRequest{
			AppTransID:  "260315_abc123",
			AppUser:     "user-1",
			Amount:      2500000,
			Description: "WanderTrip booking",
		})
		require.NoError(t, err)
		assert.True(t, resp.Success())
		assert.Equal(t, "https://qcgateway.zalopay.vn/pay?order=xyz", resp.OrderURL)

		// the mac must cover app_id|app_trans_id|app_user|amount|app_time|embed_data|item
		appTime := int64(received["app_time"].(float64))
		macInput := fmt.Sprintf("2553|260315_abc123|user-1|2500000|%d|{}|[]", appTime)
		assert.Equal(t, signWith("test-key1", macInput), received["mac"])
		assert.Equal(t, "https://api.example.com/api/v1/payments/zalopay/callback", received["callback_url"])
	})

	t.Run("gateway refusal is surfaced, not an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(CreateOrderResponse{ReturnCode: 2, ReturnMessage: "invalid amount"})
		}))
		defer server.Close()

		client := NewClient(testConfig(server.URL, server.URL))
		resp, err := client.CreateOrder(context.Background(), CreateOrderRequest{AppTransID: "260315_x", Amount: -1})
		require.NoError(t, err)
		assert.False(t, resp.Success())
	})

	t.Run("network failure returns error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		server.Close()

		client := NewClient(testConfig(server.URL, server.URL))
		_, err := client.CreateOrder(context.Background(), CreateOrderRequest{AppTransID: "260315_x", Amount: 100})
		assert.Error(t, err)
	})
}

func TestVerifyCallback(t *testing.T) {
	client := NewClient(testConfig("http://unused", "http://unused"))

	payload := CallbackData{
		AppID:      2553,
		AppTransID: "260315_abc123",
		AppUser:    "user-1",
		Amount:     2500000,
		ZPTransID:  190000123456,
	}
	raw, err := json.Marshal(payload)
	require.NoError(t, err)

	t.Run("valid mac decodes payload", func(t *testing.T) {
		env := CallbackEnvelope{
			Data: string(raw),
			Mac:  signWith("test-key2", string(raw)),
		}
		data, err := client.VerifyCallback(env)
		require.NoError(t, err)
		assert.Equal(t, "260315_abc123", data.AppTransID)
		assert.Equal(t, int64(2500000), data.Amount)
		assert.Equal(t, int64(190000123456), data.ZPTransID)
	})

	t.Run("tampered data fails verification", func(t *testing.T) {
		tampered, err := json.Marshal(CallbackData{AppTransID: "260315_abc123", Amount: 1})
		require.NoError(t, err)

		env := CallbackEnvelope{
			Data: string(tampered),
			Mac:  signWith("test-key2", string(raw)),
		}
		_, err = client.VerifyCallback(env)
		assert.ErrorIs(t, err, ErrInvalidMac)
	})

	t.Run("mac signed with wrong key fails verification", func(t *testing.T) {
		env := CallbackEnvelope{
			Data: string(raw),
			Mac:  signWith("attacker-key", string(raw)),
		}
		_, err := client.VerifyCallback(env)
		assert.ErrorIs(t, err, ErrInvalidMac)
	})
}

func TestQueryOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var received map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		macInput := "2553|260315_abc123|test-key1"
		assert.Equal(t, signWith("test-key1", macInput), received["mac"])

		json.NewEncoder(w).Encode(QueryOrderResponse{
			ReturnCode: 1,
			Amount:     2500000,
			ZPTransID:  190000123456,
		})
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL, server.URL))
	resp, err := client.QueryOrder(context.Background(), "260315_abc123")
	require.NoError(t, err)
	assert.True(t, resp.Paid())
	assert.Equal(t, int64(2500000), resp.Amount)
}
