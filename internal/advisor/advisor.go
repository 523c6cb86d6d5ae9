package advisor

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/agrisense/agrisense/internal/metrics"
	"github.com/agrisense/agrisense/internal/models"
	"github.com/agrisense/agrisense/internal/storage"
)

// Rewriter rewrites a template explanation into more natural prose.
// Implementations must fall back gracefully: any error means the
// template text stands.
type Rewriter interface {
	Rewrite(ctx context.Context, alert *models.Alert, explanation string) (string, error)
}

// Advisor evaluates alerts against the rule set and produces persisted
// recommendations.
type Advisor struct {
	rules    []Rule
	store    storage.RecommendationRepository
	rewriter Rewriter

	// rewriteTimeout bounds the optional LLM call so a slow or
	// unreachable API never stalls alert handling.
	rewriteTimeout time.Duration
}

// Option configures the Advisor.
type Option func(*Advisor)

// WithRules replaces the default rule set.
func WithRules(rules []Rule) Option {
	return func(a *Advisor) { a.rules = rules }
}

// WithRewriter wires an explanation rewriter.
func WithRewriter(r Rewriter) Option {
	return func(a *Advisor) { a.rewriter = r }
}

// New creates an Advisor persisting recommendations to the given repo.
func New(store storage.RecommendationRepository, opts ...Option) *Advisor {
	a := &Advisor{
		rules:          DefaultRules(),
		store:          store,
		rewriteTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(a)
	}

	sort.SliceStable(a.rules, func(i, j int) bool {
		return a.rules[i].Priority() > a.rules[j].Priority()
	})
	return a
}

// Propose evaluates the rules and returns the winning proposal without
// persisting anything. Every alert gets a proposal: when no rule fires
// the fallback is general monitoring.
func (a *Advisor) Propose(alert *models.Alert) *Proposal {
	// Rules are sorted by priority, the first match wins.
	for _, rule := range a.rules {
		if proposal := rule.Evaluate(alert); proposal != nil {
			return proposal
		}
	}
	return &Proposal{
		Action:     models.ActionGeneralMonitoring,
		Urgency:    models.UrgencyLow,
		Confidence: alert.Confidence,
		Reasoning:  "anomaly detected without specific classification",
	}
}

// Recommend produces and persists a recommendation for an alert.
func (a *Advisor) Recommend(ctx context.Context, alert *models.Alert) (*models.Recommendation, error) {
	proposal := a.Propose(alert)
	explanation := Explain(alert, proposal)

	if a.rewriter != nil {
		rctx, cancel := context.WithTimeout(ctx, a.rewriteTimeout)
		start := time.Now()
		rewritten, err := a.rewriter.Rewrite(rctx, alert, explanation)
		metrics.AdvisorRewriteDuration.Observe(time.Since(start).Seconds())
		cancel()
		if err != nil {
			metrics.AdvisorRewriteErrors.Inc()
			log.Printf("advisor: explanation rewrite failed, using template: %v", err)
		} else if rewritten != "" {
			explanation = rewritten
		}
	}

	rec := models.NewRecommendation(alert.ID, proposal.Action, explanation,
		proposal.Confidence*100, proposal.Urgency)

	if err := a.store.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("persist recommendation: %w", err)
	}
	metrics.AdvisorRecommendationsTotal.WithLabelValues(string(rec.ActionType)).Inc()
	return rec, nil
}

// Run consumes alerts from a channel, generating a recommendation for
// each as it is detected. Intended to sit behind the anomaly detector.
func (a *Advisor) Run(ctx context.Context, alerts <-chan *models.Alert) {
	for {
		select {
		case <-ctx.Done():
			return
		case alert, ok := <-alerts:
			if !ok {
				return
			}
			if _, err := a.Recommend(ctx, alert); err != nil {
				log.Printf("advisor: recommend for alert %s: %v", alert.ID, err)
			}
		}
	}
}
