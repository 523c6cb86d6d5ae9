package client

import (
	"context"
	"fmt"

	"github.com/agrisense/agrisense/internal/models"
)

// AlertFilter selects which alerts to list.
type AlertFilter string

const (
	// FilterActive lists unresolved alerts.
	FilterActive AlertFilter = "active"
	// FilterResolved lists resolved alerts.
	FilterResolved AlertFilter = "resolved"
	// FilterAll lists everything.
	FilterAll AlertFilter = "all"
)

// alertsPath maps a filter to the query the API expects: active means
// resolved=false, resolved means resolved=true.
func alertsPath(filter AlertFilter) (string, error) {
	switch filter {
	case FilterActive:
		return "/api/alerts/?resolved=false", nil
	case FilterResolved:
		return "/api/alerts/?resolved=true", nil
	case FilterAll, "":
		return "/api/alerts/", nil
	default:
		return "", fmt.Errorf("invalid alert filter %q (want active, resolved or all)", filter)
	}
}

// ListAlerts returns alerts matching the filter, newest first.
func (c *Client) ListAlerts(ctx context.Context, filter AlertFilter) ([]*models.Alert, error) {
	path, err := alertsPath(filter)
	if err != nil {
		return nil, err
	}

	var alerts []*models.Alert
	if err := c.Get(ctx, path, &alerts); err != nil {
		return nil, err
	}
	return alerts, nil
}

// ResolveAlert marks an alert resolved, then reloads the active list so
// the caller can re-render it. Exactly one POST and one list fetch.
func (c *Client) ResolveAlert(ctx context.Context, alertID string) ([]*models.Alert, error) {
	if err := c.Post(ctx, "/api/alerts/"+alertID+"/resolve/", nil, nil); err != nil {
		return nil, err
	}
	return c.ListAlerts(ctx, FilterActive)
}

// Recommendations returns the AI recommendations for an alert, fetching
// from the server at most once per alert id for the client's lifetime.
func (c *Client) Recommendations(ctx context.Context, alertID string) ([]*models.Recommendation, error) {
	if recs, ok := c.recCache[alertID]; ok {
		return recs, nil
	}

	var recs []*models.Recommendation
	if err := c.Get(ctx, "/api/ai-agent/recommendations/"+alertID+"/", &recs); err != nil {
		return nil, err
	}

	c.recCache[alertID] = recs
	return recs, nil
}
