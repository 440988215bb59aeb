// Package digest emails an analysis owner the highest-risk customers of a
// finished run. Delivery is best effort: callers log the returned error and
// carry on.
package digest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/osteele/liquid"

	"github.com/ignite/churn-scorer/internal/domain"
	"github.com/ignite/churn-scorer/internal/pkg/logger"
	"github.com/ignite/churn-scorer/internal/ses"
)

// DefaultTopN is the number of customers listed in a digest.
const DefaultTopN = 5

// ErrNoRecipient is returned when neither the profile store nor the request
// yields an address.
var ErrNoRecipient = errors.New("digest: no recipient for owner")

// ProfileLookup resolves an owner's account email.
type ProfileLookup interface {
	OwnerEmail(ctx context.Context, ownerID string) (string, error)
}

// Sender delivers a rendered message.
type Sender interface {
	Send(ctx context.Context, msg ses.Message) (string, error)
}

// Input is one finished analysis.
type Input struct {
	OwnerID     string
	OwnerEmail  string
	Summary     domain.AnalysisSummary
	Predictions []domain.Prediction
}

// Options configures a Reporter. Empty template strings select the built-in
// templates.
type Options struct {
	TopN         int
	DashboardURL string
	Subject      string
	HTML         string
	Text         string
}

// Reporter renders and sends digests. It is safe for concurrent use.
type Reporter struct {
	profiles     ProfileLookup
	sender       Sender
	topN         int
	dashboardURL string

	subject *liquid.Template
	html    *liquid.Template
	text    *liquid.Template
}

// NewReporter parses the templates up front so a broken template fails at
// startup rather than on every run.
func NewReporter(profiles ProfileLookup, sender Sender, opts Options) (*Reporter, error) {
	engine := newEngine()
	parse := func(name, src, def string) (*liquid.Template, error) {
		if src == "" {
			src = def
		}
		tpl, err := engine.ParseString(src)
		if err != nil {
			return nil, fmt.Errorf("parse %s template: %w", name, err)
		}
		return tpl, nil
	}

	r := &Reporter{
		profiles:     profiles,
		sender:       sender,
		topN:         opts.TopN,
		dashboardURL: opts.DashboardURL,
	}
	if r.topN <= 0 {
		r.topN = DefaultTopN
	}
	var err error
	if r.subject, err = parse("subject", opts.Subject, defaultSubject); err != nil {
		return nil, err
	}
	if r.html, err = parse("html", opts.HTML, defaultHTML); err != nil {
		return nil, err
	}
	if r.text, err = parse("text", opts.Text, defaultText); err != nil {
		return nil, err
	}
	return r, nil
}

// Send renders and delivers the digest for in. An analysis with no scored
// customers sends nothing.
func (r *Reporter) Send(ctx context.Context, in Input) error {
	top := TopRisks(in.Predictions, r.topN)
	if len(top) == 0 {
		logger.Debug("digest skipped, no predictions", "analysis_id", in.Summary.ID)
		return nil
	}

	to, err := r.recipient(ctx, in)
	if err != nil {
		return err
	}

	msg, err := r.Render(in.Summary, top)
	if err != nil {
		return err
	}
	msg.To = to
	msg.Tags = map[string]string{"analysis_id": in.Summary.ID}

	start := time.Now()
	if _, err := r.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("send digest: %w", err)
	}
	logger.Info("digest sent",
		"analysis_id", in.Summary.ID,
		"recipient", to,
		"customers", len(top),
		"duration_ms", time.Since(start).Milliseconds())
	return nil
}

func (r *Reporter) recipient(ctx context.Context, in Input) (string, error) {
	if r.profiles != nil {
		email, err := r.profiles.OwnerEmail(ctx, in.OwnerID)
		if err != nil {
			logger.Warn("profile lookup failed", "owner_id", in.OwnerID, "error", err)
		} else if email = strings.TrimSpace(email); email != "" {
			return email, nil
		}
	}
	if email := strings.TrimSpace(in.OwnerEmail); email != "" {
		return email, nil
	}
	return "", ErrNoRecipient
}

// Render produces the subject and bodies for top without sending them.
func (r *Reporter) Render(summary domain.AnalysisSummary, top []domain.Prediction) (ses.Message, error) {
	bindings := map[string]any{
		"summary":       summaryBindings(summary),
		"customers":     customerBindings(top),
		"file_name":     summary.FileName,
		"dashboard_url": r.dashboardURL,
		"top_n":         len(top),
	}

	subject, err := r.subject.RenderString(bindings)
	if err != nil {
		return ses.Message{}, fmt.Errorf("render subject: %w", err)
	}
	html, err := r.html.RenderString(bindings)
	if err != nil {
		return ses.Message{}, fmt.Errorf("render html: %w", err)
	}
	text, err := r.text.RenderString(bindings)
	if err != nil {
		return ses.Message{}, fmt.Errorf("render text: %w", err)
	}
	return ses.Message{Subject: strings.TrimSpace(subject), HTML: html, Text: text}, nil
}

// TopRisks returns up to n predictions ordered by probability descending.
// Ties keep a stable order by customer id. The input is not modified.
func TopRisks(preds []domain.Prediction, n int) []domain.Prediction {
	sorted := make([]domain.Prediction, len(preds))
	copy(sorted, preds)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Probability != sorted[j].Probability {
			return sorted[i].Probability > sorted[j].Probability
		}
		return sorted[i].CustomerID < sorted[j].CustomerID
	})
	if n >= 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

func summaryBindings(s domain.AnalysisSummary) map[string]any {
	return map[string]any{
		"id":                s.ID,
		"total_customers":   s.TotalCustomers,
		"churn_rate":        s.ChurnRate,
		"high_risk_count":   s.HighRiskCount,
		"medium_risk_count": s.MediumRiskCount,
		"low_risk_count":    s.LowRiskCount,
		"avg_cltv":          s.AvgCLTV,
	}
}

func customerBindings(top []domain.Prediction) []map[string]any {
	out := make([]map[string]any, 0, len(top))
	for _, p := range top {
		out = append(out, map[string]any{
			"customer_id":     p.CustomerID,
			"probability":     p.Probability,
			"risk_level":      string(p.RiskLevel),
			"monthly_revenue": p.MonthlyRevenue,
			"plan":            string(p.Plan),
			"top_factor":      first(p.ContributingFactors),
			"top_action":      first(p.RecommendedActions),
		})
	}
	return out
}

func first(list []string) string {
	if len(list) == 0 {
		return ""
	}
	return list[0]
}

func newEngine() *liquid.Engine {
	engine := liquid.NewEngine()

	// {{ summary.churn_rate | percent }} → "42.5%"
	engine.RegisterFilter("percent", func(v any) string {
		f, ok := toFloat(v)
		if !ok {
			return fmt.Sprintf("%v", v)
		}
		return strconv.FormatFloat(f*100, 'f', 1, 64) + "%"
	})

	// {{ c.monthly_revenue | currency }} → "$1,299.00"
	engine.RegisterFilter("currency", func(v any) string {
		f, ok := toFloat(v)
		if !ok {
			return fmt.Sprintf("%v", v)
		}
		return "$" + groupThousands(strconv.FormatFloat(f, 'f', 2, 64))
	})
	return engine
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func groupThousands(s string) string {
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + b.String() + frac
}
