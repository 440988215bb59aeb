// Package prediction scores customers against the remote churn model and
// substitutes the local rule engine whenever the remote call does not
// succeed.
package prediction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ignite/churn-scorer/internal/domain"
	"github.com/ignite/churn-scorer/internal/pkg/logger"
	"github.com/ignite/churn-scorer/internal/scoring"
)

const (
	// DefaultBaseURL is used when no endpoint is configured. The remote
	// attempt is still made.
	DefaultBaseURL = "http://localhost:8000"
	// DefaultTimeout bounds each remote call.
	DefaultTimeout = 15 * time.Second

	maxResponseBytes = 1 << 20
)

// HTTPDoer is the interface for executing HTTP requests. *http.Client
// satisfies it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config configures a Client. Zero values select the defaults.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient HTTPDoer
	Now        func() time.Time
}

// Client makes exactly one remote scoring attempt per customer. It is safe
// for concurrent use.
type Client struct {
	baseURL  string
	timeout  time.Duration
	http     HTTPDoer
	fallback *scoring.Fallback
}

// NewClient creates a prediction client.
func NewClient(cfg Config) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL:  baseURL,
		timeout:  timeout,
		http:     httpClient,
		fallback: scoring.NewFallback(cfg.Now),
	}
}

// BaseURL returns the endpoint root the client posts to.
func (c *Client) BaseURL() string { return c.baseURL }

// predictRequest is the remote model's input contract.
type predictRequest struct {
	CustomerID                string  `json:"customerId"`
	Plan                      string  `json:"plan"`
	DaysSinceLastLoginAgo     int     `json:"daysSinceLastLoginAgo"`
	AvgSessionDurationMinutes float64 `json:"avgSessionDurationMinutes"`
	BillingStatus             string  `json:"billingStatus"`
	MonthlyRevenue            float64 `json:"monthlyRevenue"`
	FeatureUsageCount         int     `json:"featureUsageCount"`
	SupportTicketsCount       int     `json:"supportTicketsCount"`
}

// Predict scores one record. It never fails: a remote error of any kind
// (network, timeout, non-2xx, malformed body) yields the rule engine's
// prediction instead. The returned prediction has no ID or AnalysisID.
func (c *Client) Predict(ctx context.Context, rec domain.NormalizedRecord) domain.Prediction {
	local := c.fallback.Score(rec)

	pred := domain.Prediction{
		CustomerID:          rec.CustomerID,
		MonthlyRevenue:      rec.MonthlyRevenue,
		Plan:                rec.Plan,
		DaysSinceSignup:     domain.DefaultDaysSinceSignup,
		DaysSinceLastActive: local.DaysSinceLastLogin,
	}

	remote, err := c.callRemote(ctx, rec, local.DaysSinceLastLogin)
	if err != nil {
		logger.Warn("remote prediction failed, using fallback scorer",
			"customer_id", rec.CustomerID, "error", err)
		pred.Probability = local.Probability
		pred.ContributingFactors = local.ContributingFactors
		pred.RecommendedActions = local.RecommendedActions
		pred.Source = domain.SourceFallback
		pred.RiskLevel = scoring.Tier(pred.Probability)
		return pred
	}

	pred.Probability = scoring.Clamp(remote.Probability)
	pred.ContributingFactors = remote.Factors
	if len(pred.ContributingFactors) == 0 {
		pred.ContributingFactors = local.ContributingFactors
	}
	pred.RecommendedActions = remote.Actions
	if len(pred.RecommendedActions) == 0 {
		pred.RecommendedActions = local.RecommendedActions
	}
	pred.Source = domain.SourceRemote
	pred.RiskLevel = scoring.Tier(pred.Probability)
	return pred
}

func (c *Client) callRemote(ctx context.Context, rec domain.NormalizedRecord, daysSinceLogin int) (Mapped, error) {
	body, err := json.Marshal(predictRequest{
		CustomerID:                rec.CustomerID,
		Plan:                      string(rec.Plan),
		DaysSinceLastLoginAgo:     daysSinceLogin,
		AvgSessionDurationMinutes: rec.AvgSessionMinutes,
		BillingStatus:             rec.BillingStatus,
		MonthlyRevenue:            rec.MonthlyRevenue,
		FeatureUsageCount:         rec.FeatureUsageCount,
		SupportTicketsCount:       rec.SupportTickets,
	})
	if err != nil {
		return Mapped{}, fmt.Errorf("encode request: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.baseURL+"/predict", bytes.NewReader(body))
	if err != nil {
		return Mapped{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Mapped{}, fmt.Errorf("call %s: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Mapped{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Mapped{}, fmt.Errorf("remote model returned status %d", resp.StatusCode)
	}
	return MapResponse(data)
}
