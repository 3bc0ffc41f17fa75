// Package mailbox provides a client for the mailbox provider's message
// API, used to read replies to sent outreach.
package mailbox

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
)

// Client defines the mailbox operations used by the reply monitor.
type Client interface {
	// ListMessages fetches inbound messages received since the given
	// time. A zero time fetches the provider's default window.
	ListMessages(ctx context.Context, since time.Time) ([]Message, error)
}

// Message is one inbound email as the provider reports it. MessageID
// is the provider's globally unique id and is the dedup key for reply
// persistence.
type Message struct {
	MessageID  string    `json:"message_id"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	Subject    string    `json:"subject"`
	InReplyTo  string    `json:"in_reply_to"`
	BodyText   string    `json:"body_text"`
	ReceivedAt time.Time `json:"received_at"`
}

// Option configures the mailbox client.
type Option func(*httpClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates a mailbox client against the provider's base URL.
func NewClient(baseURL, token string, opts ...Option) Client {
	c := &httpClient{
		baseURL: baseURL,
		token:   token,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) ListMessages(ctx context.Context, since time.Time) ([]Message, error) {
	reqURL := c.baseURL + "/v1/messages?direction=inbound"
	if !since.IsZero() {
		reqURL += "&since=" + url.QueryEscape(since.UTC().Format(time.RFC3339))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "mailbox: create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "mailbox: list messages")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "mailbox: read response body")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("mailbox: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		Messages []Message `json:"messages"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "mailbox: unmarshal response")
	}

	for i, m := range result.Messages {
		if m.MessageID == "" {
			return nil, eris.Wrap(fmt.Errorf("message %d has no message_id", i), "mailbox: invalid response")
		}
	}
	return result.Messages, nil
}
