package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// HTTPSMSSender posts messages to an SMS gateway over HTTP.
type HTTPSMSSender struct {
	client *resty.Client
	sender string
}

// NewHTTPSMSSender constructs an HTTPSMSSender for the given gateway URL.
// The sender ID appears as the message originator.
func NewHTTPSMSSender(gatewayURL, apiKey, sender string, timeout time.Duration) *HTTPSMSSender {
	client := resty.New().
		SetBaseURL(gatewayURL).
		SetTimeout(timeout).
		SetHeader("Authorization", "Bearer "+apiKey)
	return &HTTPSMSSender{client: client, sender: sender}
}

type smsGatewayRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
	Text string `json:"text"`
}

// SendSMS posts the message to the gateway and checks the response status.
func (s *HTTPSMSSender) SendSMS(ctx context.Context, to, body string) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(smsGatewayRequest{From: s.sender, To: to, Text: body}).
		Post("/messages")
	if err != nil {
		return fmt.Errorf("sms gateway request: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("sms gateway returned %d", resp.StatusCode())
	}
	return nil
}
