// Package explain produces the human-readable reasoning attached to every
// decision. An external collaborator may be consulted once, under a strict
// deadline; the deterministic template is always available as the fallback,
// so explanation can never block or fail a decision.
package explain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/adaptivecare/pulse/pkg/hospital"
)

// ErrExplainerUnavailable signals that the external explainer could not
// produce a usable answer in time. Callers substitute the template.
var ErrExplainerUnavailable = errors.New("explainer unavailable")

// Request carries the decision context an explainer turns into prose.
type Request struct {
	PatientID   string                 `json:"patient_id"`
	PatientName string                 `json:"patient_name,omitempty"`
	Action      hospital.Action        `json:"action"`
	TargetUnit  string                 `json:"target_unit,omitempty"`
	RiskScore   float64                `json:"risk_score"`
	Trajectory  hospital.Trajectory    `json:"trajectory"`
	WaitMinutes int                    `json:"wait_minutes"`
	Scores      *hospital.MCDAScoreSet `json:"scores,omitempty"`
}

// Explainer turns a decision context into reasoning text. Implementations
// must respect ctx cancellation; a single call is made per decision cycle.
type Explainer interface {
	Explain(ctx context.Context, req Request) (string, error)
}

// HTTPExplainer posts the request to an external reasoning endpoint.
type HTTPExplainer struct {
	client   *resty.Client
	endpoint string
}

// NewHTTPExplainer creates an explainer for the given endpoint. The timeout
// bounds the whole call; the caller's ctx may bound it tighter.
func NewHTTPExplainer(endpoint string, timeout time.Duration) *HTTPExplainer {
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json")
	return &HTTPExplainer{client: client, endpoint: endpoint}
}

type explainResponse struct {
	Explanation string `json:"explanation"`
}

// Explain posts the decision context and returns the endpoint's explanation.
// Any transport error, timeout, non-200 status, or empty answer maps to
// ErrExplainerUnavailable.
func (h *HTTPExplainer) Explain(ctx context.Context, req Request) (string, error) {
	var out explainResponse
	resp, err := h.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		Post(h.endpoint)
	if err != nil {
		return "", fmt.Errorf("explain request failed: %w", ErrExplainerUnavailable)
	}
	if resp.StatusCode() != 200 {
		return "", fmt.Errorf("explain endpoint returned %d: %w", resp.StatusCode(), ErrExplainerUnavailable)
	}
	if strings.TrimSpace(out.Explanation) == "" {
		return "", fmt.Errorf("explain endpoint returned empty explanation: %w", ErrExplainerUnavailable)
	}
	return out.Explanation, nil
}

// NullExplainer always reports unavailable, forcing the template fallback.
// Used when no endpoint is configured and throughout the test suite.
type NullExplainer struct{}

// Explain implements Explainer.
func (NullExplainer) Explain(ctx context.Context, req Request) (string, error) {
	return "", ErrExplainerUnavailable
}
