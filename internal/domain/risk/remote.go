package risk

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// RemoteClassifier scores check-ins through an external HTTP model service.
// Responses with unknown statuses are rejected so a misbehaving model can
// never push an invalid status into the system.
type RemoteClassifier struct {
	client *resty.Client
}

// NewRemoteClassifier constructs a classifier that posts to baseURL.
func NewRemoteClassifier(baseURL string, timeout time.Duration) *RemoteClassifier {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(1)
	return &RemoteClassifier{client: client}
}

// Classify posts the input to the scoring service.
func (rc *RemoteClassifier) Classify(ctx context.Context, in Input) (Result, error) {
	var out Result
	resp, err := rc.client.R().
		SetContext(ctx).
		SetBody(in).
		SetResult(&out).
		Post("/classify")
	if err != nil {
		return Result{}, fmt.Errorf("remote classifier request: %w", err)
	}
	if resp.IsError() {
		return Result{}, fmt.Errorf("remote classifier returned %d", resp.StatusCode())
	}
	if !ValidStatus(out.Status) {
		return Result{}, fmt.Errorf("remote classifier returned unknown status %q", out.Status)
	}
	out.Score = Clamp(out.Score)
	return out, nil
}
