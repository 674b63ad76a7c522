package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mwillard/beacon/internal/config"
)

// SMSChannel delivers messages through a Twilio-compatible REST gateway.
type SMSChannel struct {
	accountSID string
	authToken  string
	fromNumber string
	baseURL    string
	client     *http.Client
}

// NewSMSChannel creates an SMS channel from gateway credentials. Returns an
// error when credentials are incomplete; callers treat that as "gateway not
// configured" and fall back, not as a failure.
func NewSMSChannel(cfg config.SMSConfig) (*SMSChannel, error) {
	if cfg.AccountSID == "" || cfg.AuthToken == "" || cfg.FromNumber == "" {
		return nil, fmt.Errorf("dispatch: sms gateway credentials not configured")
	}
	base := cfg.BaseURL
	if base == "" {
		base = "https://api.twilio.com"
	}
	return &SMSChannel{
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		fromNumber: cfg.FromNumber,
		baseURL:    strings.TrimRight(base, "/"),
		client:     &http.Client{Timeout: 15 * time.Second},
	}, nil
}

func (c *SMSChannel) Name() string { return "sms" }

func (c *SMSChannel) Send(ctx context.Context, phone, body string) (string, string, error) {
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.baseURL, c.accountSID)

	form := url.Values{}
	form.Set("To", phone)
	form.Set("From", c.fromNumber)
	form.Set("Body", body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", "", fmt.Errorf("sms: build request: %w", err)
	}
	req.SetBasicAuth(c.accountSID, c.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("sms: send to %s: %w", phone, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", "", fmt.Errorf("sms: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(raw, &apiErr)
		if apiErr.Message != "" {
			return "", "", fmt.Errorf("sms: gateway rejected send to %s: %s", phone, apiErr.Message)
		}
		return "", "", fmt.Errorf("sms: gateway status %d for %s", resp.StatusCode, phone)
	}

	var msg struct {
		SID    string `json:"sid"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil {
		return "", "", fmt.Errorf("sms: decode response: %w", err)
	}
	return msg.SID, msg.Status, nil
}
