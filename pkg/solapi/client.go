// Package solapi sends SMS messages through the SOLAPI HTTP API.
package solapi

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const defaultBaseURL = "https://api.solapi.com"

// Client sends one SMS message per call.
type Client interface {
	Send(ctx context.Context, to, text string) (*SendResult, error)
}

// SendResult reports the outcome of one send.
type SendResult struct {
	Channel       string `json:"channel"`
	GroupID       string `json:"group_id,omitempty"`
	FailureDetail string `json:"failure_detail,omitempty"`
}

// Config holds SOLAPI credentials and send settings.
type Config struct {
	APIKey    string
	APISecret string
	Sender    string
	// DryRun short-circuits Send with a logged result and no HTTP call.
	DryRun bool
}

// sendRequest is the body of POST /messages/v4/send.
type sendRequest struct {
	Message message `json:"message"`
}

type message struct {
	To   string `json:"to"`
	From string `json:"from"`
	Text string `json:"text"`
}

// sendResponse is the subset of the send response the client reads.
type sendResponse struct {
	GroupID       string `json:"groupId"`
	StatusCode    string `json:"statusCode"`
	StatusMessage string `json:"statusMessage"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithClock overrides the clock used for signature dating.
func WithClock(clock clockwork.Clock) Option {
	return func(c *httpClient) {
		c.clock = clock
	}
}

type httpClient struct {
	cfg     Config
	baseURL string
	http    *http.Client
	clock   clockwork.Clock
}

// NewClient creates a SOLAPI client.
func NewClient(cfg Config, opts ...Option) Client {
	c := &httpClient{
		cfg:     cfg,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
		clock: clockwork.NewRealClock(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Send(ctx context.Context, to, text string) (*SendResult, error) {
	if c.cfg.DryRun {
		zap.L().Info("solapi: dry-run send",
			zap.String("to", maskRecipient(to)),
			zap.Int("text_len", len(text)),
		)
		return &SendResult{Channel: "dry-run"}, nil
	}

	if c.cfg.APIKey == "" || c.cfg.APISecret == "" {
		return nil, eris.New("solapi: missing API credentials")
	}

	body, err := json.Marshal(sendRequest{Message: message{
		To:   to,
		From: c.cfg.Sender,
		Text: text,
	}})
	if err != nil {
		return nil, eris.Wrap(err, "solapi: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages/v4/send", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "solapi: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	auth, err := c.authHeader()
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", auth)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "solapi: send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "solapi: read response")
	}

	var parsed sendResponse
	if len(respBody) > 0 {
		// A failure body may not be JSON; keep the raw text as the detail.
		_ = json.Unmarshal(respBody, &parsed)
	}

	if resp.StatusCode != http.StatusOK {
		detail := parsed.StatusMessage
		if detail == "" {
			detail = strings.TrimSpace(string(respBody))
		}
		return &SendResult{
			Channel:       "sms",
			GroupID:       parsed.GroupID,
			FailureDetail: detail,
		}, eris.Errorf("solapi: unexpected status %d: %s", resp.StatusCode, detail)
	}

	return &SendResult{Channel: "sms", GroupID: parsed.GroupID}, nil
}

// authHeader builds the HMAC-SHA256 authorization header the SOLAPI API
// expects: the signature covers the ISO date concatenated with a random
// salt.
func (c *httpClient) authHeader() (string, error) {
	date := c.clock.Now().UTC().Format(time.RFC3339)

	saltBytes := make([]byte, 16)
	if _, err := rand.Read(saltBytes); err != nil {
		return "", eris.Wrap(err, "solapi: generate salt")
	}
	salt := hex.EncodeToString(saltBytes)

	mac := hmac.New(sha256.New, []byte(c.cfg.APISecret))
	mac.Write([]byte(date + salt))
	signature := hex.EncodeToString(mac.Sum(nil))

	return "HMAC-SHA256 apiKey=" + c.cfg.APIKey +
		", date=" + date +
		", salt=" + salt +
		", signature=" + signature, nil
}

// maskRecipient hides all but the last four digits of a phone number in
// logs.
func maskRecipient(to string) string {
	if len(to) <= 4 {
		return strings.Repeat("*", len(to))
	}
	return strings.Repeat("*", len(to)-4) + to[len(to)-4:]
}
