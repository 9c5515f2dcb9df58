package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client delivers verification codes through an HTTP SMS gateway that
// accepts a JSON message and a bearer token.
type Client struct {
	apiURL     string
	apiToken   string
	sender     string
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

func NewClient(apiURL, apiToken, sender string, opts ...Option) *Client {
	c := &Client{
		apiURL:     apiURL,
		apiToken:   apiToken,
		sender:     sender,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured returns true if both the gateway URL and token are set.
func (c *Client) Configured() bool {
	return c.apiURL != "" && c.apiToken != ""
}

type message struct {
	To   string `json:"to"`
	From string `json:"from"`
	Body string `json:"body"`
}

// SendCode texts a verification code to phone. phone is digits only; the
// Brazilian country code is prepended.
func (c *Client) SendCode(ctx context.Context, phone, code string) error {
	if !c.Configured() {
		return fmt.Errorf("sms client not configured: missing gateway url or token")
	}

	payload := message{
		To:   "+55" + phone,
		From: c.sender,
		Body: fmt.Sprintf("Seu código de verificação NIFA é %s. Ele expira em 10 minutos.", code),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal sms: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send sms: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("sms gateway error: status %d", resp.StatusCode)
	}

	return nil
}
