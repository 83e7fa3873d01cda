// Package twilio sends outbound WhatsApp messages through the Twilio
// Messages REST API.
package twilio

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/NahuelRC/CallCenter/internal/config"
)

const defaultBaseURL = "https://api.twilio.com"

// SendRequest is one outbound message. At least one of Body and
// MediaURLs must be populated; the caller guarantees it.
type SendRequest struct {
	To        string
	Body      string
	MediaURLs []string
}

// Sender is the outbound transport capability.
type Sender interface {
	Send(ctx context.Context, req SendRequest) (sid string, err error)
}

// Client is the REST implementation of Sender.
type Client struct {
	baseURL        string
	accountSID     string
	authToken      string
	from           string
	statusCallback string
	logger         *slog.Logger
	http           *http.Client
}

func NewClient(log *slog.Logger, cfg config.TwilioConfig) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL:        baseURL,
		accountSID:     strings.TrimSpace(cfg.AccountSID),
		authToken:      strings.TrimSpace(cfg.AuthToken),
		from:           strings.TrimSpace(cfg.FromNumber),
		statusCallback: strings.TrimSpace(cfg.StatusCallbackURL),
		logger:         log.With(slog.String("client", "twilio")),
		http:           &http.Client{},
	}
}

func (c *Client) Send(ctx context.Context, req SendRequest) (string, error) {
	if c.accountSID == "" || c.authToken == "" {
		return "", fmt.Errorf("twilio credentials are required")
	}
	if strings.TrimSpace(req.To) == "" {
		return "", fmt.Errorf("twilio send: recipient is required")
	}
	if strings.TrimSpace(req.Body) == "" && len(req.MediaURLs) == 0 {
		return "", fmt.Errorf("twilio send: empty payload")
	}

	form := url.Values{}
	form.Set("From", c.from)
	form.Set("To", req.To)
	if req.Body != "" {
		form.Set("Body", req.Body)
	}
	for _, mediaURL := range req.MediaURLs {
		form.Add("MediaUrl", mediaURL)
	}
	if c.statusCallback != "" {
		form.Set("StatusCallback", c.statusCallback)
	}

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.baseURL, c.accountSID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.SetBasicAuth(c.accountSID, c.authToken)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("twilio error %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var parsed struct {
		Sid string `json:"sid"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", err
	}
	if parsed.Sid == "" {
		return "", fmt.Errorf("twilio response missing sid")
	}
	return parsed.Sid, nil
}
