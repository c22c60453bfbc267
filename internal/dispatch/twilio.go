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
)

const defaultTwilioBaseURL = "https://api.twilio.com"

// TwilioDispatcher sends WhatsApp messages through the Twilio REST API.
type TwilioDispatcher struct {
	accountSID string
	authToken  string
	from       string
	baseURL    string
	client     *http.Client
}

type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	From       string
	BaseURL    string
}

func NewTwilio(cfg TwilioConfig) *TwilioDispatcher {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = defaultTwilioBaseURL
	}
	return &TwilioDispatcher{
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		from:       cfg.From,
		baseURL:    base,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (d *TwilioDispatcher) Send(ctx context.Context, to, body string) (Receipt, error) {
	form := url.Values{}
	form.Set("To", to)
	form.Set("From", d.from)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", d.baseURL, d.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return Receipt{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(d.accountSID, d.authToken)

	res, err := d.client.Do(req)
	if err != nil {
		return Receipt{}, fmt.Errorf("%w: %v", ErrDelivery, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return Receipt{}, fmt.Errorf("%w: twilio status %d: %s", ErrDelivery, res.StatusCode, string(detail))
	}

	var out struct {
		SID string `json:"sid"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return Receipt{}, fmt.Errorf("%w: decode twilio response: %v", ErrDelivery, err)
	}
	return Receipt{SID: out.SID}, nil
}
